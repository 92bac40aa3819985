package index

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

// Hit is one search match over indexed sidecars.
type Hit struct {
	ID        string
	Score     float64
	TweetText string
	Uploader  string
}

// Index wraps a bleve index of sidecar documents keyed by tweet ID.
type Index struct {
	bleve.Index
}

// OpenOrCreateIndex opens the index at path, creating it when it does not exist yet.
func OpenOrCreateIndex(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Debugf("Creating new search index at %s", path)
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open or create index at %s: %w", path, err)
	}
	return &Index{Index: idx}, nil
}

// IndexSidecar adds or replaces the document for tweet id.
func (i *Index) IndexSidecar(id string, fields map[string]any) error {
	if err := i.Index.Index(id, fields); err != nil {
		return fmt.Errorf("indexing sidecar %s: %w", id, err)
	}
	return nil
}

// Search runs a query-string query and returns up to limit hits along with
// the total number of matches.
func (i *Index) Search(queryString string, limit int) ([]Hit, uint64, error) {
	if limit <= 0 {
		limit = 10
	}
	query := bleve.NewQueryStringQuery(queryString)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"tweet_text", "uploader"}

	res, err := i.Index.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index for %q: %w", queryString, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if text, ok := h.Fields["tweet_text"].(string); ok {
			hit.TweetText = text
		}
		if uploader, ok := h.Fields["uploader"].(string); ok {
			hit.Uploader = uploader
		}
		hits = append(hits, hit)
	}
	return hits, res.Total, nil
}
