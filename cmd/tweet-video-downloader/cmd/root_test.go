package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go-tweet-video-download/internal/database"
	"go-tweet-video-download/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, initLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	require.NoError(t, initLogging("warn", "text"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	assert.Error(t, initLogging("loud", "text"))
}

func TestCliFlagsFrom_OnlyChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("character-tag", "", "")
	cmd.Flags().Int("results-size", 10, "")
	cmd.Flags().Bool("no-index", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--character-tag", "MBTL_AO", "--no-index"}))

	flags := cliFlagsFrom(cmd)
	require.NotNil(t, flags.CharacterTag)
	assert.Equal(t, "MBTL_AO", *flags.CharacterTag)
	require.NotNil(t, flags.DisableIndex)
	assert.True(t, *flags.DisableIndex)
	assert.Nil(t, flags.ResultsSize, "defaults must not override config values")
	assert.Nil(t, flags.DownloadsPath, "undefined flags are nil")
}

// searchServer serves one page of results. Posts reference a video variant
// hosted by the same server.
func searchServer(t *testing.T, posts int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if posts == 0 {
			fmt.Fprint(w, `{"meta":{"result_count":0}}`)
			return
		}
		fmt.Fprintf(w, `{
			"data":[{"id":"1001","text":"corner combo https://t.co/abc","attachments":{"media_keys":["7_1001"]}}],
			"includes":{"media":[{"media_key":"7_1001","type":"video","variants":[
				{"content_type":"video/mp4","bit_rate":832000,"url":"%s/video/1001.mp4"}]}]},
			"meta":{"result_count":1}
		}`, srv.URL)
	})
	mux.HandleFunc("/video/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprint(w, "mp4-bytes")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeCredentials(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.yaml")
	content := fmt.Sprintf("search_tweets_v2:\n  endpoint: %s/search\n  bearer_token: test-token\n", endpoint)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// Both runs pass the same flag set, since cobra keeps flag values between
// executions of the same command tree.
func TestRootCommand_Download(t *testing.T) {
	t.Run("no results writes nothing", func(t *testing.T) {
		srv := searchServer(t, 0)
		dir := t.TempDir()

		out, _, err := executeRoot(t,
			"--credentials-file", writeCredentials(t, srv.URL),
			"--character-tag", "MBTL_AO",
			"--downloads-path", dir,
			"--engine", "http",
			"--url-strategy", "media",
		)
		require.NoError(t, err)
		assert.Contains(t, out, "No tweets found for tag: #MBTL_AO")

		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("downloads video and sidecar", func(t *testing.T) {
		srv := searchServer(t, 1)
		dir := t.TempDir()

		out, _, err := executeRoot(t,
			"--credentials-file", writeCredentials(t, srv.URL),
			"--character-tag", "#MBTL_AO",
			"--downloads-path", dir,
			"--engine", "http",
			"--url-strategy", "media",
		)
		require.NoError(t, err)
		assert.Contains(t, out, "Retrieved 1 results. Fetching content to "+dir+".")
		assert.Contains(t, out, "download completed! Wrote metadata to "+filepath.Join(dir, "1001.json"))

		video, err := os.ReadFile(filepath.Join(dir, "1001.mp4"))
		require.NoError(t, err)
		assert.Equal(t, "mp4-bytes", string(video))

		sidecar, err := os.ReadFile(filepath.Join(dir, "1001.json"))
		require.NoError(t, err)
		assert.Contains(t, string(sidecar), `"tweet_text": "corner combo https://t.co/abc"`)
		assert.NotContains(t, string(sidecar), "http_headers")

		db, err := database.Open(globalConfig.DatabasePath)
		require.NoError(t, err)
		defer db.Close()
		entry, err := db.GetEntry("1001")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDownloaded, entry.Status)
		assert.Equal(t, "MBTL_AO", entry.Tag)
		assert.NotEmpty(t, entry.VideoBLAKE3)
		assert.NotEmpty(t, entry.RunID)
	})
}
