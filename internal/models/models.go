package models

import (
	"encoding/json"
	"strings"
)

type (
	// Config holds the application's configuration settings.
	// It is built once by config.Initialize and passed by value to every stage.
	Config struct {
		CredentialsFile     string       `toml:"CredentialsFile" json:"CredentialsFile"`
		CharacterTag        string       `toml:"CharacterTag" json:"CharacterTag"`
		DownloadsPath       string       `toml:"DownloadsPath" json:"DownloadsPath"`
		StatePath           string       `toml:"StatePath" json:"StatePath"`
		DatabasePath        string       `toml:"DatabasePath" json:"DatabasePath"`
		BleveIndexPath      string       `toml:"BleveIndexPath" json:"BleveIndexPath"`
		LogLevel            string       `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string       `toml:"LogFormat" json:"LogFormat"`
		URLStrategy         string       `toml:"UrlStrategy" json:"UrlStrategy"`
		Engine              EngineConfig `toml:"Engine" json:"Engine"`
		ResultsSize         int          `toml:"ResultsSize" json:"ResultsSize"`
		APIClientTimeoutSec int          `toml:"ApiClientTimeoutSec" json:"ApiClientTimeoutSec"`
		LogApiRequests      bool         `toml:"LogApiRequests" json:"LogApiRequests"`
		DisableHistory      bool         `toml:"DisableHistory" json:"DisableHistory"`
		DisableIndex        bool         `toml:"DisableIndex" json:"DisableIndex"`
	}

	// EngineConfig selects and tunes the download engine.
	EngineConfig struct {
		Kind                string `toml:"Kind" json:"Kind"`
		BinaryPath          string `toml:"BinaryPath" json:"BinaryPath"`
		OutputTemplate      string `toml:"OutputTemplate" json:"OutputTemplate"`
		FinalExt            string `toml:"FinalExt" json:"FinalExt"`
		ConcurrentFragments int    `toml:"ConcurrentFragments" json:"ConcurrentFragments"`
		Concurrency         int    `toml:"Concurrency" json:"Concurrency"`
	}

	// Credentials for the recent-search endpoint.
	Credentials struct {
		Endpoint    string `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
		BearerToken string `yaml:"bearer_token" toml:"bearer_token" json:"-"`
	}

	// SearchRequest is the fully-built request for one search call.
	SearchRequest struct {
		Query       string `json:"query"`
		MaxResults  int    `json:"max_results"`
		MaxTweets   int    `json:"max_tweets"`
		MaxRequests int    `json:"max_requests"`
	}

	// Post is a single tweet returned by the search API.
	Post struct {
		ID          string          `json:"id"`
		Text        string          `json:"text"`
		Attachments PostAttachments `json:"attachments,omitempty"`
	}

	PostAttachments struct {
		MediaKeys []string `json:"media_keys,omitempty"`
	}

	Media struct {
		MediaKey   string    `json:"media_key"`
		Type       string    `json:"type"`
		DurationMs int       `json:"duration_ms,omitempty"`
		Variants   []Variant `json:"variants,omitempty"`
	}

	Variant struct {
		ContentType string `json:"content_type"`
		URL         string `json:"url"`
		BitRate     int    `json:"bit_rate,omitempty"`
	}

	Includes struct {
		Media []Media `json:"media,omitempty"`
	}

	PageMeta struct {
		NewestID    string `json:"newest_id"`
		OldestID    string `json:"oldest_id"`
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	}

	// Page is one response of the recent-search endpoint.
	Page struct {
		Data     []Post   `json:"data"`
		Includes Includes `json:"includes"`
		Meta     PageMeta `json:"meta"`
	}

	// HistoryEntry is the ledger record written for every terminal download event.
	HistoryEntry struct {
		TweetID      string `json:"tweetId"`
		RunID        string `json:"runId"`
		Tag          string `json:"tag"`
		URL          string `json:"url"`
		Status       string `json:"status"`
		VideoPath    string `json:"videoPath,omitempty"`
		MetadataPath string `json:"metadataPath,omitempty"`
		VideoBLAKE3  string `json:"videoBlake3,omitempty"`
		ErrorDetails string `json:"errorDetails,omitempty"`
		Timestamp    int64  `json:"timestamp"`
	}
)

// Database Status Constants
const (
	StatusDownloaded = "Downloaded"
	StatusError      = "Error"
)

// URL extraction strategies
const (
	URLStrategyTrailing = "trailing"
	URLStrategyMedia    = "media"
)

// HistoryKeyPrefix prefixes every ledger key, followed by the tweet ID.
const HistoryKeyPrefix = "t_"

// HistoryKey returns the ledger key for a tweet ID.
func HistoryKey(tweetID string) string {
	return HistoryKeyPrefix + tweetID
}

// TweetIDFromKey strips the ledger prefix. ok is false for foreign keys.
func TweetIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, HistoryKeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, HistoryKeyPrefix), true
}

// MediaByKey indexes the page's expanded media by media key.
func (p Page) MediaByKey() map[string]Media {
	byKey := make(map[string]Media, len(p.Includes.Media))
	for _, m := range p.Includes.Media {
		byKey[m.MediaKey] = m
	}
	return byKey
}

// MarshalHistoryEntry and UnmarshalHistoryEntry keep the ledger encoding in one place.
func MarshalHistoryEntry(e HistoryEntry) ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalHistoryEntry(data []byte) (HistoryEntry, error) {
	var e HistoryEntry
	err := json.Unmarshal(data, &e)
	return e, err
}
