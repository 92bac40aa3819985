package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-tweet-video-download/index"
	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEntries(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
		return p
	}

	okVideo := write("1.mp4", "one")
	okHash, err := helpers.HashFileBLAKE3(okVideo)
	require.NoError(t, err)
	changedVideo := write("2.mp4", "two")

	entries := []models.HistoryEntry{
		{TweetID: "1", Status: models.StatusDownloaded, VideoPath: okVideo, MetadataPath: write("1.json", "{}"), VideoBLAKE3: okHash},
		{TweetID: "2", Status: models.StatusDownloaded, VideoPath: changedVideo, MetadataPath: write("2.json", "{}"), VideoBLAKE3: okHash},
		{TweetID: "3", Status: models.StatusDownloaded, VideoPath: filepath.Join(dir, "3.mp4"), MetadataPath: filepath.Join(dir, "3.json")},
		{TweetID: "4", Status: models.StatusDownloaded, VideoPath: write("4.mp4", "four"), MetadataPath: filepath.Join(dir, "4.json")},
		{TweetID: "5", Status: models.StatusDownloaded, VideoPath: write("5.mp4", "five"), MetadataPath: write("5.json", "{}")},
		{TweetID: "6", Status: models.StatusError},
	}

	results := verifyEntries(entries)
	require.Len(t, results, 5, "error entries are not verified")

	got := map[string]string{}
	for _, r := range results {
		got[r.Entry.TweetID] = r.Status
	}
	assert.Equal(t, map[string]string{
		"1": verifyOK,
		"2": verifyHashMismatch,
		"3": verifyMissingVideo,
		"4": verifyMissingMetadata,
		"5": verifyOK,
	}, got)
}

func TestWriteHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	writeHistoryTable(&buf, []models.HistoryEntry{
		{TweetID: "1001", Status: models.StatusDownloaded, Tag: "MBTL_AO", VideoPath: "/d/1001.mp4", Timestamp: 1700000000},
		{TweetID: "1002", Status: models.StatusError, Tag: "MBTL_AO", ErrorDetails: "yt-dlp failed", Timestamp: 1700000001},
	})
	out := buf.String()
	assert.Contains(t, out, "Tweet ID")
	assert.Contains(t, out, "/d/1001.mp4")
	assert.Contains(t, out, "yt-dlp failed")
	assert.True(t, strings.HasSuffix(out, "2 entries\n"))
}

func TestWriteHits(t *testing.T) {
	var buf bytes.Buffer
	writeHits(&buf, nil, 0)
	assert.Equal(t, "No matches.\n", buf.String())

	buf.Reset()
	writeHits(&buf, []index.Hit{{ID: "1001", Score: 1.5, TweetText: "corner\ncombo", Uploader: "ao_player"}}, 3)
	out := buf.String()
	assert.Contains(t, out, "corner combo")
	assert.Contains(t, out, "ao_player")
	assert.Contains(t, out, "Showing 1 of 3 matches")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine(" a\n b\tc ", 10))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
	assert.Equal(t, "日本語", oneLine("日本語", 3))
}
