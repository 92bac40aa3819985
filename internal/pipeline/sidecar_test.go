package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go-tweet-video-download/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInfo() engine.InfoRecord {
	return engine.InfoRecord{
		"id":           "123",
		"title":        "caption",
		"formats":      []any{map[string]any{"format_id": "hls-832"}},
		"thumbnails":   []any{map[string]any{"url": "https://pbs.test/t.jpg"}},
		"http_headers": map[string]any{"User-Agent": "x"},
		"duration":     json.Number("30"),
	}
}

func TestProjectSidecar(t *testing.T) {
	info := sampleInfo()
	s, err := ProjectSidecar(info)
	require.NoError(t, err)

	assert.Equal(t, "123", s.ID)
	assert.Equal(t, "caption", s.TweetText)
	assert.Equal(t, map[string]any{"duration": json.Number("30")}, s.Extra)
	assert.Contains(t, info, "formats", "the engine record must not be mutated")
	assert.Contains(t, info, "title")
}

func TestProjectSidecar_Errors(t *testing.T) {
	_, err := ProjectSidecar(engine.InfoRecord{"title": "x"})
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = ProjectSidecar(engine.InfoRecord{"id": "../etc"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestWriteSidecar_ExactContent(t *testing.T) {
	dir := t.TempDir()
	s, err := ProjectSidecar(sampleInfo())
	require.NoError(t, err)

	path, err := WriteSidecar(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "123.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := "{\n    \"duration\": 30,\n    \"id\": \"123\",\n    \"tweet_text\": \"caption\"\n}"
	assert.Equal(t, expected, string(data))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"id": "123", "tweet_text": "caption", "duration": float64(30)}, decoded)
}

func TestWriteSidecar_NoHTMLEscaping(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSidecar(dir, Sidecar{ID: "9", TweetText: "A & B <3", Extra: map[string]any{}})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"A & B <3"`)
}

func TestWriteSidecar_Overwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.json"), []byte("stale"), 0600))
	_, err := WriteSidecar(dir, Sidecar{ID: "5", TweetText: "fresh"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "fresh")
}

func TestSidecarFields_TweetTextOnlyFromTitle(t *testing.T) {
	untitled, err := ProjectSidecar(engine.InfoRecord{"id": "1", "duration": 5})
	require.NoError(t, err)
	assert.NotContains(t, untitled.Fields(), "tweet_text")

	emptyTitle, err := ProjectSidecar(engine.InfoRecord{"id": "2", "title": ""})
	require.NoError(t, err)
	assert.Equal(t, "", emptyTitle.Fields()["tweet_text"])

	assert.Equal(t, "hi", Sidecar{ID: "3", TweetText: "hi"}.Fields()["tweet_text"])
}
