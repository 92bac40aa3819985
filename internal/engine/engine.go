package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go-tweet-video-download/internal/models"
	"go-tweet-video-download/internal/paths"

	log "github.com/sirupsen/logrus"
)

// Engine kinds accepted by New.
const (
	KindYtDlp = "ytdlp"
	KindHTTP  = "http"
)

// Status is the terminal state reported for a target.
type Status string

const (
	StatusFinished Status = "finished"
	StatusError    Status = "error"
)

var ErrUnknownEngine = errors.New("unknown download engine")

// InfoRecord is the engine's open-ended metadata for one downloaded item.
type InfoRecord map[string]any

// ID returns the record's "id" field as a string, if present.
func (r InfoRecord) ID() (string, bool) {
	switch v := r["id"].(type) {
	case string:
		return v, v != ""
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		return "", false
	}
}

// Target is one URL handed to the engine, keyed by the post it came from.
type Target struct {
	URL    string
	PostID string
	Text   string
}

// Event is delivered to the Hook once an item reaches a terminal state.
type Event struct {
	Status   Status
	Target   Target
	Filename string
	Info     InfoRecord
	Err      error
}

// Hook receives terminal events. It runs on the engine's goroutines.
type Hook func(Event)

// Options configure one batch download.
type Options struct {
	Dir                 string
	OutputTemplate      string
	FinalExt            string
	ConcurrentFragments int
	Concurrency         int
	Quiet               bool
}

// Engine downloads a batch of targets, invoking hook for every terminal item.
// Per-item failures are reported through the hook; the returned error is
// reserved for batch-level problems such as cancellation.
type Engine interface {
	Name() string
	Download(ctx context.Context, targets []Target, opts Options, hook Hook) error
}

// New builds the engine selected by cfg.
func New(cfg models.EngineConfig, httpClient *http.Client) (Engine, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindYtDlp:
		return NewYtDlp(cfg.BinaryPath), nil
	case KindHTTP:
		return NewHTTP(httpClient), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, cfg.Kind)
	}
}

// OptionsFromConfig maps the engine config onto batch options for dir.
func OptionsFromConfig(cfg models.EngineConfig, dir string) Options {
	opts := Options{
		Dir:                 dir,
		OutputTemplate:      cfg.OutputTemplate,
		FinalExt:            cfg.FinalExt,
		ConcurrentFragments: cfg.ConcurrentFragments,
		Concurrency:         cfg.Concurrency,
		Quiet:               true,
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.OutputTemplate == "" {
		o.OutputTemplate = paths.DefaultOutputTemplate
	}
	if o.FinalExt == "" {
		o.FinalExt = "mp4"
	}
	o.FinalExt = strings.TrimPrefix(o.FinalExt, ".")
	if o.ConcurrentFragments < 1 {
		o.ConcurrentFragments = 1
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

// VideoPath is where a download for post id lands under opts.
func VideoPath(opts Options, id string) string {
	return targetFilename(opts.withDefaults(), id)
}

// targetFilename is the path a target is expected to land at, used when the
// engine never resolved an ID of its own.
func targetFilename(opts Options, id string) string {
	filename, err := paths.OutputPath(opts.Dir, opts.OutputTemplate, id, opts.FinalExt)
	if err != nil {
		log.WithError(err).Debugf("Could not render output path for %s", id)
		return paths.VideoPath(opts.Dir, id, opts.FinalExt)
	}
	return filename
}

// runPool feeds targets to fetch on opts.Concurrency workers. With a single
// worker the targets are processed in submission order.
func runPool(ctx context.Context, targets []Target, opts Options, fetch func(context.Context, Target) []Event, hook Hook) error {
	jobs := make(chan Target)
	var wg sync.WaitGroup

	workers := opts.Concurrency
	if workers > len(targets) {
		workers = len(targets)
	}
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log.Debugf("[Engine-%d] Starting", id)
			for t := range jobs {
				for _, ev := range fetch(ctx, t) {
					if hook != nil {
						hook(ev)
					}
				}
			}
			log.Debugf("[Engine-%d] Finished", id)
		}(i)
	}

	var err error
feed:
	for _, t := range targets {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- t:
		}
	}
	close(jobs)
	wg.Wait()
	return err
}
