package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SectionKey is the section of the credentials file holding search API auth.
const SectionKey = "search_tweets_v2"

// DefaultEndpoint is used when the credentials section names none.
const DefaultEndpoint = "https://api.twitter.com/2/tweets/search/recent"

var (
	ErrFileNotFound       = errors.New("credentials file not found")
	ErrUnsupportedFormat  = errors.New("unsupported credentials file format")
	ErrSectionNotFound    = errors.New("credentials section not found")
	ErrMissingBearerToken = errors.New("credentials section has no bearer_token")
)

// Load reads the SectionKey section from a YAML (.yaml, .yml) or TOML (.toml) file.
func Load(path string) (models.Credentials, error) {
	if !helpers.FileExists(path) {
		return models.Credentials{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("reading credentials file %s: %w", path, err)
	}

	sections := map[string]models.Credentials{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sections)
	case ".toml":
		_, err = toml.Decode(string(data), &sections)
	default:
		return models.Credentials{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return models.Credentials{}, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}

	creds, ok := sections[SectionKey]
	if !ok {
		return models.Credentials{}, fmt.Errorf("%w: could not find key %q in %s", ErrSectionNotFound, SectionKey, path)
	}
	creds.BearerToken = strings.TrimSpace(creds.BearerToken)
	if creds.BearerToken == "" {
		return models.Credentials{}, fmt.Errorf("%w (%s)", ErrMissingBearerToken, path)
	}
	if creds.Endpoint == "" {
		creds.Endpoint = DefaultEndpoint
	}

	log.WithField("endpoint", creds.Endpoint).Debug("Loaded search credentials")
	return creds, nil
}
