package database

import (
	"path/filepath"
	"testing"

	"go-tweet-video-download/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err, "Failed to open database")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBasicOperations(t *testing.T) {
	db := openTestDB(t)

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
		got, err := db.Get([]byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("Has", func(t *testing.T) {
		assert.True(t, db.Has([]byte("k1")))
		assert.False(t, db.Has([]byte("missing")))
	})

	t.Run("Get missing key", func(t *testing.T) {
		_, err := db.Get([]byte("missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("k2"), []byte("v2")))
		require.NoError(t, db.Delete([]byte("k2")))
		assert.False(t, db.Has([]byte("k2")))
	})

	t.Run("Fold", func(t *testing.T) {
		seen := map[string]string{}
		require.NoError(t, db.Fold(func(key, value []byte) error {
			seen[string(key)] = string(value)
			return nil
		}))
		assert.Equal(t, map[string]string{"k1": "v1"}, seen)
	})
}

func TestHistoryEntries(t *testing.T) {
	db := openTestDB(t)

	entries := []models.HistoryEntry{
		{TweetID: "1", RunID: "r1", Status: models.StatusDownloaded, Timestamp: 100, VideoBLAKE3: "abc"},
		{TweetID: "2", RunID: "r1", Status: models.StatusError, Timestamp: 200, ErrorDetails: "unsupported URL"},
		{TweetID: "3", RunID: "r2", Status: models.StatusDownloaded, Timestamp: 300},
	}
	for _, e := range entries {
		require.NoError(t, db.PutEntry(e))
	}
	require.NoError(t, db.Put([]byte("meta_version"), []byte("1")), "foreign keys are ignored")

	got, err := db.GetEntry("2")
	require.NoError(t, err)
	assert.Equal(t, entries[1], got)

	_, err = db.GetEntry("404")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := db.Entries("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"3", "2", "1"}, []string{all[0].TweetID, all[1].TweetID, all[2].TweetID})

	downloaded, err := db.Entries(models.StatusDownloaded)
	require.NoError(t, err)
	assert.Len(t, downloaded, 2)

	// A later event for the same tweet replaces the earlier one.
	require.NoError(t, db.PutEntry(models.HistoryEntry{TweetID: "2", Status: models.StatusDownloaded, Timestamp: 400}))
	got, err = db.GetEntry("2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDownloaded, got.Status)

	assert.Error(t, db.PutEntry(models.HistoryEntry{}))
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.PutEntry(models.HistoryEntry{TweetID: "9", Status: models.StatusDownloaded}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, db.Has([]byte(models.HistoryKey("9"))))
}
