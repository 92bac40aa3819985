package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go-tweet-video-download/internal/database"
	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the download history ledger",
	Long: `The history ledger lives under <downloads-path>/.tweetvid and records the
latest outcome of every download attempt. It is informational only: whether a
tweet is skipped is decided by the files in the downloads path.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded downloads, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <tweet-id>",
	Short: "Show the ledger entry for one tweet",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check recorded downloads against the files on disk",
	RunE:  runHistoryVerify,
}

var historyForgetCmd = &cobra.Command{
	Use:   "forget <tweet-id>...",
	Short: "Remove ledger entries (files on disk are left alone)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryForget,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyVerifyCmd, historyForgetCmd)

	historyListCmd.Flags().String("status", "", "Only list entries with this status (Downloaded, Error)")
	historyListCmd.Flags().Bool("json", false, "Print entries as JSON")
}

func openHistory() (*database.DB, error) {
	if globalConfig.DatabasePath == "" {
		return nil, errors.New("database path is not set")
	}
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", globalConfig.DatabasePath, err)
	}
	return db, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	asJSON, _ := cmd.Flags().GetBool("json")

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Entries(status)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	writeHistoryTable(cmd.OutOrStdout(), entries)
	return nil
}

func writeHistoryTable(w io.Writer, entries []models.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Tweet ID\tStatus\tTag\tWhen\tVideo\tError")
	fmt.Fprintln(tw, "--------\t------\t---\t----\t-----\t-----")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.TweetID,
			e.Status,
			e.Tag,
			time.Unix(e.Timestamp, 0).Format(time.DateTime),
			e.VideoPath,
			e.ErrorDetails,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	entry, err := db.GetEntry(args[0])
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no history for tweet %s", args[0])
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

// verifyResult is the on-disk state of one downloaded entry.
type verifyResult struct {
	Entry  models.HistoryEntry
	Status string
}

const (
	verifyOK              = "OK"
	verifyMissingVideo    = "MISSING VIDEO"
	verifyMissingMetadata = "MISSING METADATA"
	verifyHashMismatch    = "HASH MISMATCH"
)

// verifyEntries checks every Downloaded entry's files. Entries recorded
// without a hash are only checked for presence.
func verifyEntries(entries []models.HistoryEntry) []verifyResult {
	results := make([]verifyResult, 0, len(entries))
	for _, e := range entries {
		if e.Status != models.StatusDownloaded {
			continue
		}
		r := verifyResult{Entry: e, Status: verifyOK}
		switch {
		case !helpers.FileExists(e.VideoPath):
			r.Status = verifyMissingVideo
		case !helpers.FileExists(e.MetadataPath):
			r.Status = verifyMissingMetadata
		case e.VideoBLAKE3 != "" && !helpers.CheckHash(e.VideoPath, e.VideoBLAKE3):
			r.Status = verifyHashMismatch
		}
		results = append(results, r)
	}
	return results
}

func runHistoryVerify(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Entries(models.StatusDownloaded)
	if err != nil {
		return err
	}
	results := verifyEntries(entries)

	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Tweet ID\tResult\tVideo")
	problems := 0
	for _, r := range results {
		if r.Status != verifyOK {
			problems++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Entry.TweetID, r.Status, r.Entry.VideoPath)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d checked, %d problems\n", len(results), problems)
	if problems > 0 {
		log.Warn("Tweets with missing files are fetched again on the next run")
	}
	return nil
}

func runHistoryForget(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, id := range args {
		if !db.Has([]byte(models.HistoryKey(id))) {
			log.Warnf("No history for tweet %s", id)
			continue
		}
		if err := db.Delete([]byte(models.HistoryKey(id))); err != nil {
			return fmt.Errorf("failed to forget tweet %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forgot tweet %s\n", id)
	}
	return nil
}
