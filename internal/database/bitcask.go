package database

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"go-tweet-video-download/internal/models"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// DB wraps a bitcask store holding the download ledger.
type DB struct {
	db *bitcask.Bitcask
	sync.RWMutex
}

// Open initializes and returns a DB instance, creating the directory if needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", path, err)
	}
	db, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Debugf("Download ledger opened at %s", path)
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	d.Lock()
	defer d.Unlock()
	return d.db.Close()
}

// Has checks if a key exists in the database.
func (d *DB) Has(key []byte) bool {
	d.RLock()
	defer d.RUnlock()
	return d.db.Has(key)
}

// Get retrieves the value for a given key.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.RLock()
	defer d.RUnlock()
	val, err := d.db.Get(key)
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

// Put stores a key-value pair.
func (d *DB) Put(key []byte, value []byte) error {
	d.Lock()
	defer d.Unlock()
	return d.db.Put(key, value)
}

// Delete removes a key.
func (d *DB) Delete(key []byte) error {
	d.Lock()
	defer d.Unlock()
	return d.db.Delete(key)
}

// Fold iterates over all keys, calling fn with each key and its value.
func (d *DB) Fold(fn func(key []byte, value []byte) error) error {
	d.RLock()
	defer d.RUnlock()

	// Values are read after the key walk; bitcask holds its own lock during Fold.
	var keys [][]byte
	if err := d.db.Fold(func(key []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return err
	}
	for _, key := range keys {
		val, err := d.db.Get(key)
		if err != nil {
			return fmt.Errorf("reading value for key %s: %w", key, err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// PutEntry records the latest terminal event for a tweet.
func (d *DB) PutEntry(entry models.HistoryEntry) error {
	if entry.TweetID == "" {
		return errors.New("history entry has no tweet ID")
	}
	data, err := models.MarshalHistoryEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry for %s: %w", entry.TweetID, err)
	}
	if err := d.Put([]byte(models.HistoryKey(entry.TweetID)), data); err != nil {
		return fmt.Errorf("failed to store history entry for %s: %w", entry.TweetID, err)
	}
	return nil
}

// GetEntry loads the ledger entry for a tweet.
func (d *DB) GetEntry(tweetID string) (models.HistoryEntry, error) {
	data, err := d.Get([]byte(models.HistoryKey(tweetID)))
	if err != nil {
		return models.HistoryEntry{}, err
	}
	entry, err := models.UnmarshalHistoryEntry(data)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to unmarshal history entry for %s: %w", tweetID, err)
	}
	return entry, nil
}

// Entries returns every ledger entry, optionally filtered by status, newest first.
// Undecodable values are logged and skipped.
func (d *DB) Entries(status string) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := d.Fold(func(key []byte, value []byte) error {
		if _, ok := models.TweetIDFromKey(string(key)); !ok {
			return nil
		}
		entry, err := models.UnmarshalHistoryEntry(value)
		if err != nil {
			log.WithError(err).Warnf("Skipping undecodable ledger entry %s", key)
			return nil
		}
		if status != "" && entry.Status != status {
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].TweetID < entries[j].TweetID
	})
	return entries, nil
}
