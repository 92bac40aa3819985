package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go-tweet-video-download/internal/engine"
	"go-tweet-video-download/internal/paths"

	log "github.com/sirupsen/logrus"
)

var (
	ErrMissingID = errors.New("info record has no id")
	ErrInvalidID = errors.New("info record id is not a valid file name")
)

// Fields never carried into a sidecar.
var droppedFields = map[string]struct{}{
	"formats":      {},
	"thumbnails":   {},
	"http_headers": {},
}

const sidecarIndent = "    "

// Sidecar is the metadata persisted next to a downloaded video. Extra holds
// every passthrough field of the engine's info record. tweet_text is only
// emitted when TweetText is set or the info record carried a title.
type Sidecar struct {
	ID        string
	TweetText string
	Extra     map[string]any

	titled bool
}

// ProjectSidecar maps an engine info record onto the sidecar shape: bulky
// fields are dropped and the engine's title becomes tweet_text. The info
// record itself is left untouched.
func ProjectSidecar(info engine.InfoRecord) (Sidecar, error) {
	id, ok := info.ID()
	if !ok {
		return Sidecar{}, ErrMissingID
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return Sidecar{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	s := Sidecar{ID: id, Extra: make(map[string]any, len(info))}
	for k, v := range info {
		switch k {
		case "id":
		case "title":
			s.titled = true
			if text, isString := v.(string); isString {
				s.TweetText = text
			} else if v != nil {
				s.TweetText = fmt.Sprint(v)
			}
		default:
			if _, drop := droppedFields[k]; !drop {
				s.Extra[k] = v
			}
		}
	}
	return s, nil
}

// Fields flattens the sidecar into the map that gets serialized.
func (s Sidecar) Fields() map[string]any {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["id"] = s.ID
	if s.titled || s.TweetText != "" {
		out["tweet_text"] = s.TweetText
	}
	return out
}

func (s Sidecar) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.Fields()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encode renders the sidecar as indented JSON.
func (s Sidecar) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", sidecarIndent)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteSidecar writes <dir>/<id>.json, replacing any existing file.
func WriteSidecar(dir string, s Sidecar) (string, error) {
	metadataPath := paths.SidecarPath(dir, s.ID)

	data, err := s.Encode()
	if err != nil {
		log.WithError(err).Errorf("Failed to marshal sidecar for tweet %s", s.ID)
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, data, 0600); err != nil {
		log.WithError(err).Errorf("Failed to write metadata file %s", metadataPath)
		return "", fmt.Errorf("failed to write metadata file %s: %w", metadataPath, err)
	}
	log.Debugf("Wrote sidecar %s", metadataPath)
	return metadataPath, nil
}
