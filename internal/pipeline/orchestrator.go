package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go-tweet-video-download/internal/engine"
	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"

	log "github.com/sirupsen/logrus"
)

// Searcher runs one search request.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.Page, error)
}

// HistoryRecorder stores one ledger entry per terminal download event.
type HistoryRecorder interface {
	PutEntry(entry models.HistoryEntry) error
}

// SidecarIndexer makes written sidecars searchable.
type SidecarIndexer interface {
	IndexSidecar(id string, fields map[string]any) error
}

// Result summarizes one run.
type Result struct {
	Found         int
	Skipped       int
	Unextractable int
	Submitted     int
	Finished      int
	Failed        int
}

// Orchestrator joins search results to a batch download and persists a
// sidecar for every finished item.
type Orchestrator struct {
	Searcher Searcher
	Engine   engine.Engine
	Options  engine.Options
	Tag      string
	Strategy string
	RunID    string

	// Optional bookkeeping. Failures here are logged and never fail an item.
	History HistoryRecorder
	Index   SidecarIndexer

	// Progress, when set, is called after every terminal event.
	Progress func(done, total int)

	Out    io.Writer
	ErrOut io.Writer
}

func (o *Orchestrator) stdout() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o *Orchestrator) stderr() io.Writer {
	if o.ErrOut == nil {
		return os.Stderr
	}
	return o.ErrOut
}

// Search runs req and returns the first page. ok is false when the search
// produced no posts, which callers report without treating it as a failure.
func (o *Orchestrator) Search(ctx context.Context, req models.SearchRequest) (models.Page, bool, error) {
	log.WithField("query", req.Query).Debug("Searching")
	pages, err := o.Searcher.Search(ctx, req)
	if err != nil {
		return models.Page{}, false, fmt.Errorf("searching for %q: %w", req.Query, err)
	}
	if len(pages) == 0 || len(pages[0].Data) == 0 {
		fmt.Fprintf(o.stdout(), "No tweets found for tag: #%s\n", o.Tag)
		return models.Page{}, false, nil
	}
	return pages[0], true, nil
}

// Download filters page against the download directory and submits every
// remaining URL to the engine in a single batch.
func (o *Orchestrator) Download(ctx context.Context, page models.Page) (Result, error) {
	dir := o.Options.Dir
	fmt.Fprintf(o.stdout(), "Retrieved %d results. Fetching content to %s.\n", len(page.Data), dir)

	sel := SelectTargets(o.Options, page, o.Strategy)
	res := Result{
		Found:         len(page.Data),
		Skipped:       len(sel.Skipped),
		Unextractable: len(sel.Unextractable),
		Submitted:     len(sel.Targets),
	}

	var finished, failed, done int64
	total := len(sel.Targets)
	hook := func(ev engine.Event) {
		if o.handle(ev) {
			atomic.AddInt64(&finished, 1)
		} else {
			atomic.AddInt64(&failed, 1)
		}
		n := int(atomic.AddInt64(&done, 1))
		if o.Progress != nil {
			// A playlist URL yields several events, so the total can grow.
			o.Progress(n, max(n, total))
		}
	}

	log.WithField("urls", sel.URLs()).Debugf("Submitting %d URLs to the %s engine", total, o.Engine.Name())
	err := o.Engine.Download(ctx, sel.Targets, o.Options, hook)

	res.Finished = int(atomic.LoadInt64(&finished))
	res.Failed = int(atomic.LoadInt64(&failed))
	if err != nil {
		return res, fmt.Errorf("download batch interrupted: %w", err)
	}
	return res, nil
}

// Run searches and downloads in one go. No results is not an error.
func (o *Orchestrator) Run(ctx context.Context, req models.SearchRequest) (Result, error) {
	page, ok, err := o.Search(ctx, req)
	if err != nil || !ok {
		return Result{}, err
	}
	return o.Download(ctx, page)
}

// handle is the completion hook. It reports whether the item ended with a
// sidecar on disk.
func (o *Orchestrator) handle(ev engine.Event) bool {
	entry := models.HistoryEntry{
		TweetID:   ev.Target.PostID,
		RunID:     o.RunID,
		Tag:       o.Tag,
		URL:       ev.Target.URL,
		VideoPath: ev.Filename,
		Timestamp: time.Now().Unix(),
	}

	if ev.Status != engine.StatusFinished {
		log.WithError(ev.Err).WithField("url", ev.Target.URL).Debug("Engine reported an error")
		fmt.Fprintf(o.stderr(), "Error: Failed to download %s\n", ev.Filename)
		o.recordFailure(entry, ev.Err)
		return false
	}

	sidecar, err := ProjectSidecar(ev.Info)
	if err != nil {
		log.WithError(err).Errorf("Cannot write metadata for %s", ev.Filename)
		fmt.Fprintf(o.stderr(), "Error: Failed to write metadata for %s: %v\n", ev.Filename, err)
		o.recordFailure(entry, err)
		return false
	}

	metadataPath, err := WriteSidecar(o.Options.Dir, sidecar)
	if err != nil {
		fmt.Fprintf(o.stderr(), "Error: Failed to write metadata for %s: %v\n", ev.Filename, err)
		o.recordFailure(entry, err)
		return false
	}
	fmt.Fprintf(o.stdout(), "%s download completed! Wrote metadata to %s\n", ev.Filename, metadataPath)

	entry.TweetID = sidecar.ID
	entry.Status = models.StatusDownloaded
	entry.MetadataPath = metadataPath
	o.recordSuccess(entry, sidecar)
	return true
}

func (o *Orchestrator) recordFailure(entry models.HistoryEntry, cause error) {
	if o.History == nil || entry.TweetID == "" {
		return
	}
	entry.Status = models.StatusError
	if cause != nil {
		entry.ErrorDetails = cause.Error()
	}
	if err := o.History.PutEntry(entry); err != nil {
		log.WithError(err).Warnf("Failed to record failure for tweet %s", entry.TweetID)
	}
}

func (o *Orchestrator) recordSuccess(entry models.HistoryEntry, sidecar Sidecar) {
	if o.History != nil {
		if helpers.FileExists(entry.VideoPath) {
			hash, err := helpers.HashFileBLAKE3(entry.VideoPath)
			if err != nil {
				log.WithError(err).Warnf("Failed to hash %s", entry.VideoPath)
			}
			entry.VideoBLAKE3 = hash
		} else {
			log.Debugf("Video %s not found on disk, ledger entry will carry no hash", entry.VideoPath)
		}
		if err := o.History.PutEntry(entry); err != nil {
			log.WithError(err).Warnf("Failed to record download of tweet %s", entry.TweetID)
		}
	}
	if o.Index != nil {
		if err := o.Index.IndexSidecar(sidecar.ID, sidecar.Fields()); err != nil {
			log.WithError(err).Warnf("Failed to index sidecar for tweet %s", sidecar.ID)
		}
	}
}
