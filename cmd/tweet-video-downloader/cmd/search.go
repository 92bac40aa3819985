package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"go-tweet-video-download/index"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the captions of downloaded tweets",
	Long: `Runs a query-string search (e.g. "combo", "tweet_text:corner", "+ao -pressure")
over the sidecars written by previous runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	path := globalConfig.BleveIndexPath
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no search index at %s, run a download first", path)
	}

	idx, err := index.OpenOrCreateIndex(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	hits, total, err := idx.Search(strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	writeHits(cmd.OutOrStdout(), hits, total)
	return nil
}

func writeHits(w io.Writer, hits []index.Hit, total uint64) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Tweet ID\tScore\tUploader\tText")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\n", h.ID, h.Score, h.Uploader, oneLine(h.TweetText, 80))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nShowing %d of %d matches\n", len(hits), total)
}

// oneLine flattens s and truncates it to limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
