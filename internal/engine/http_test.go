package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("fake video bytes"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	outDir := t.TempDir()
	targets := []Target{
		{URL: server.URL + "/video.mp4", PostID: "100", Text: "look at this"},
		{URL: server.URL + "/page", PostID: "200"},
		{URL: server.URL + "/missing", PostID: "300"},
	}

	var events []Event
	err := NewHTTP(server.Client()).Download(context.Background(), targets, Options{Dir: outDir}, func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 3)

	ok := events[0]
	assert.Equal(t, StatusFinished, ok.Status)
	assert.Equal(t, filepath.Join(outDir, "100.mp4"), ok.Filename)
	assert.Equal(t, "100", ok.Info["id"])
	assert.Equal(t, "look at this", ok.Info["title"])
	assert.EqualValues(t, len("fake video bytes"), ok.Info["filesize"])
	assert.Equal(t, "mp4", ok.Info["source_ext"])
	data, err := os.ReadFile(ok.Filename)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(data))

	assert.Equal(t, StatusError, events[1].Status)
	assert.ErrorIs(t, events[1].Err, ErrNotVideo)
	assert.NoFileExists(t, filepath.Join(outDir, "200.mp4"))

	assert.Equal(t, StatusError, events[2].Status)
	assert.ErrorIs(t, events[2].Err, ErrHttpStatus)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestHTTP_MissingPostID(t *testing.T) {
	var got Event
	err := NewHTTP(nil).Download(context.Background(), []Target{{URL: "http://127.0.0.1:1/x"}}, Options{Dir: t.TempDir()}, func(ev Event) {
		got = ev
	})
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.ErrorIs(t, got.Err, ErrMissingPost)
}
