package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-tweet-video-download/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
	ErrNotVideo    = errors.New("response is not video content")
	ErrMissingPost = errors.New("target has no post ID")
)

const (
	defaultUA       = "go-tweet-video-download"
	downloadTimeout = 15 * time.Minute
)

// HTTP fetches direct media URLs, such as the video variants exposed by the
// search API. Files are named after the target's post ID.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP engine, defaulting to a client with a long timeout.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	return &HTTP{client: client}
}

func (h *HTTP) Name() string { return KindHTTP }

func (h *HTTP) Download(ctx context.Context, targets []Target, opts Options, hook Hook) error {
	opts = opts.withDefaults()
	return runPool(ctx, targets, opts, func(ctx context.Context, t Target) []Event {
		return []Event{h.fetch(ctx, t, opts)}
	}, hook)
}

func (h *HTTP) fetch(ctx context.Context, t Target, opts Options) Event {
	ev := Event{Target: t, Filename: targetFilename(opts, t.PostID)}
	info, err := h.downloadFile(ctx, t, opts, ev.Filename)
	if err != nil {
		log.WithError(err).WithField("url", t.URL).Debug("HTTP download failed")
		ev.Status = StatusError
		ev.Err = err
		return ev
	}
	ev.Status = StatusFinished
	ev.Info = info
	return ev
}

// downloadFile streams the response into a temp file next to targetPath and
// renames it into place once the body has been fully written.
func (h *HTTP) downloadFile(ctx context.Context, t Target, opts Options, targetPath string) (InfoRecord, error) {
	if t.PostID == "" {
		return nil, ErrMissingPost
	}

	targetDir := filepath.Dir(targetPath)
	if !helpers.CheckAndMakeDir(targetDir) {
		return nil, fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating download request for %s: %w", ErrHttpRequest, t.URL, err)
	}
	req.Header.Set("User-Agent", defaultUA)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request for %s: %w", ErrHttpRequest, t.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, t.URL)
	}
	contentType := resp.Header.Get("Content-Type")
	if !helpers.IsVideoMimeType(contentType) {
		return nil, fmt.Errorf("%w: %s served %q", ErrNotVideo, t.URL, contentType)
	}

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(targetPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, targetPath, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	log.Debugf("Downloading %s to %s (Size: %s)", t.URL, targetPath, helpers.BytesToSize(size))

	counter := &helpers.CounterWriter{Writer: tempFile}
	if _, err := io.Copy(counter, resp.Body); err != nil {
		_ = tempFile.Close()
		return nil, fmt.Errorf("writing to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return nil, fmt.Errorf("%w: renaming temporary file to %s: %w", ErrFileSystem, targetPath, err)
	}
	shouldCleanupTemp = false

	ext := strings.TrimPrefix(filepath.Ext(targetPath), ".")
	sourceExt := ext
	if served, ok := helpers.GetExtensionFromMimeType(contentType); ok {
		sourceExt = strings.TrimPrefix(served, ".")
	}
	if sourceExt != opts.FinalExt {
		log.Warnf("%s served %s content, saved unconverted as %s", t.URL, sourceExt, targetPath)
	}
	return InfoRecord{
		"source_ext":   sourceExt,
		"id":           t.PostID,
		"title":        t.Text,
		"url":          t.URL,
		"ext":          ext,
		"filesize":     counter.Total,
		"content_type": contentType,
		"extractor":    KindHTTP,
		"http_headers": map[string]any{"User-Agent": defaultUA},
	}, nil
}
