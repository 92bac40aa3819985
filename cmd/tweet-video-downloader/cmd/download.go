package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-tweet-video-download/index"
	"go-tweet-video-download/internal/api"
	"go-tweet-video-download/internal/config"
	"go-tweet-video-download/internal/credentials"
	"go-tweet-video-download/internal/database"
	"go-tweet-video-download/internal/engine"
	"go-tweet-video-download/internal/pipeline"

	"github.com/google/uuid"
	"github.com/gosuri/uilive"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runDownload searches for the configured tag and downloads every video not
// already present in the downloads path.
func runDownload(cmd *cobra.Command, args []string) error {
	defer closeTransport()
	cfg := globalConfig

	if err := config.ValidateDownload(cfg); err != nil {
		return err
	}
	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		return err
	}
	req, err := pipeline.BuildSearchRequest(cfg.CharacterTag, cfg.ResultsSize)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiClient := api.NewClient(creds, &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(cfg.APIClientTimeoutSec) * time.Second,
	})
	eng, err := engine.New(cfg.Engine, nil)
	if err != nil {
		return err
	}

	orch := &pipeline.Orchestrator{
		Searcher: apiClient,
		Engine:   eng,
		Options:  engine.OptionsFromConfig(cfg.Engine, cfg.DownloadsPath),
		Tag:      pipeline.NormalizeTag(cfg.CharacterTag),
		Strategy: cfg.URLStrategy,
		RunID:    uuid.NewString(),
		Out:      cmd.OutOrStdout(),
		ErrOut:   cmd.ErrOrStderr(),
	}

	page, ok, err := orch.Search(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	// Bookkeeping stores are opened only once there is something to record,
	// so an empty search leaves the downloads path untouched.
	if !cfg.DisableHistory {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			log.WithError(err).Warn("History ledger unavailable, continuing without it")
		} else {
			defer db.Close()
			orch.History = db
		}
	}
	if !cfg.DisableIndex {
		idx, err := index.OpenOrCreateIndex(cfg.BleveIndexPath)
		if err != nil {
			log.WithError(err).Warn("Search index unavailable, continuing without it")
		} else {
			defer idx.Close()
			orch.Index = idx
		}
	}

	if isInteractive(cmd.OutOrStdout()) && cfg.LogFormat != "json" {
		writer := uilive.New()
		writer.Out = cmd.OutOrStdout()
		writer.Start()
		defer writer.Stop()
		orch.Out = writer.Newline()
		orch.Progress = func(done, total int) {
			fmt.Fprintf(writer, "Downloaded %d/%d\n", done, total)
		}
	}

	res, err := orch.Download(ctx, page)
	log.WithFields(log.Fields{
		"run":           orch.RunID,
		"found":         res.Found,
		"skipped":       res.Skipped,
		"unextractable": res.Unextractable,
		"submitted":     res.Submitted,
		"finished":      res.Finished,
		"failed":        res.Failed,
	}).Info("Run complete")
	return err
}

func isInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
