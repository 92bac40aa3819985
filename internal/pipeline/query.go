package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"go-tweet-video-download/internal/models"
)

var (
	ErrEmptyTag    = errors.New("no character tag specified")
	ErrInvalidSize = errors.New("results size must be positive")
)

// MaxResultsPerCall is the most posts the search endpoint returns per request.
const MaxResultsPerCall = 100

// BuildQuery restricts a tag search to original posts carrying video.
func BuildQuery(tag string) string {
	return fmt.Sprintf("#%s has:videos -is:retweet", tag)
}

// NormalizeTag strips whitespace and a leading '#' from a user-supplied tag.
func NormalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}

// BuildSearchRequest builds the single-request search for tag. No
// time-bucketed counts are requested, only the posts themselves.
func BuildSearchRequest(tag string, size int) (models.SearchRequest, error) {
	tag = NormalizeTag(tag)
	if tag == "" {
		return models.SearchRequest{}, ErrEmptyTag
	}
	if size <= 0 {
		return models.SearchRequest{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return models.SearchRequest{
		Query:       BuildQuery(tag),
		MaxResults:  min(MaxResultsPerCall, size),
		MaxTweets:   size,
		MaxRequests: 1,
	}, nil
}
