package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go-tweet-video-download/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited  = errors.New("API rate limit exceeded")
	ErrUnauthorized = errors.New("API request unauthorized (check bearer token)")
	ErrServerError  = errors.New("API server error")
)

// The recent-search endpoint rejects max_results outside this range.
const (
	MinResultsPerCall = 10
	MaxResultsPerCall = 100
)

const (
	tweetFields = "id,text,attachments"
	expansions  = "attachments.media_keys"
	mediaFields = "type,variants,duration_ms"
)

// Client talks to the v2 recent-search endpoint.
type Client struct {
	Endpoint    string
	BearerToken string
	HttpClient  *http.Client
}

// NewClient creates a new API client
func NewClient(creds models.Credentials, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	log.Debugf("NewClient called for %s (API logging handled by transport if enabled)", creds.Endpoint)

	return &Client{
		Endpoint:    creds.Endpoint,
		BearerToken: creds.BearerToken,
		HttpClient:  httpClient,
	}
}

// Search issues req.MaxRequests (always one) request and returns the pages it produced.
// A response without any posts yields no pages.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) ([]models.Page, error) {
	values := SearchRequestToURLValues(req)
	reqURL := fmt.Sprintf("%s?%s", c.Endpoint, values.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.HttpClient.Do(httpReq) // Transport will log if enabled
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		log.WithError(err).Errorf("Search request failed with status %d", resp.StatusCode)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("Error reading response body")
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var page models.Page
	if err := json.Unmarshal(body, &page); err != nil {
		log.WithError(err).Errorf("Error unmarshalling response JSON")
		log.Debugf("Response body causing unmarshal error: %s", string(body))
		return nil, fmt.Errorf("error unmarshalling response JSON: %w", err)
	}

	if len(page.Data) == 0 {
		return nil, nil
	}
	if req.MaxTweets > 0 && len(page.Data) > req.MaxTweets {
		page.Data = page.Data[:req.MaxTweets]
	}
	return []models.Page{page}, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w (status code %d)", ErrServerError, code)
	default:
		return fmt.Errorf("API request failed with status %d", code)
	}
}

// SearchRequestToURLValues converts a SearchRequest into recent-search query parameters.
func SearchRequestToURLValues(req models.SearchRequest) url.Values {
	perCall := req.MaxResults
	if perCall < MinResultsPerCall {
		perCall = MinResultsPerCall
	}
	if perCall > MaxResultsPerCall {
		perCall = MaxResultsPerCall
	}

	values := url.Values{}
	values.Add("query", req.Query)
	values.Add("max_results", strconv.Itoa(perCall))
	values.Add("tweet.fields", tweetFields)
	values.Add("expansions", expansions)
	values.Add("media.fields", mediaFields)
	return values
}
