package cmd

import (
	"fmt"
	"net/http"
	"os"

	"go-tweet-video-download/internal/api"
	"go-tweet-video-download/internal/config"
	"go-tweet-video-download/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ExitSetupFailure is the process exit code for any validation or setup failure.
const ExitSetupFailure = -1

// globalConfig holds the configuration built by loadGlobalConfig.
var globalConfig models.Config

// globalHttpTransport is the API transport, logging-wrapped when --log-api is set.
var globalHttpTransport http.RoundTripper

var rootCmd = &cobra.Command{
	Use:   "tweet-video-downloader",
	Short: "Download tagged tweet videos with JSON sidecars",
	Long: `Searches recent tweets for #<character-tag> that carry video and are not
retweets, downloads each video as <downloads-path>/<tweet_id>.mp4 and writes the
tweet metadata to <downloads-path>/<tweet_id>.json. Tweets that already have
both files are skipped, so re-running only fetches what is missing.`,
	PersistentPreRunE: loadGlobalConfig,
	RunE:              runDownload,
	SilenceErrors:     true,
	SilenceUsage:      true,
}

// Execute runs the root command. Any error is a setup failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitSetupFailure)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Configuration file path (default ./config.toml)")
	pf.String("downloads-path", "", "Path to place video and tweet results (required)")
	pf.String("log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error)")
	pf.String("log-format", config.DefaultLogFormat, "Logging format (text, json)")
	pf.Bool("log-api", false, "Log API requests/responses to api.log in the downloads path")

	f := rootCmd.Flags()
	f.String("credentials-file", "", "Path to yaml or toml credentials file for API authentication (required)")
	f.String("character-tag", "", "Tag to search for, e.g. MBTL_AO, BBCP_JI, GGXRD_VE (required)")
	f.Int("results-size", config.DefaultResultsSize, "Number of results to retrieve from Twitter")
	f.Int("api-timeout", config.DefaultAPIClientTimeoutSec, "Timeout for the search request in seconds")
	f.String("url-strategy", config.DefaultURLStrategy, "How to find the video URL of a tweet (trailing, media)")
	f.String("engine", config.DefaultEngineKind, "Download engine (ytdlp, http)")
	f.String("ytdlp-path", "", "Path to the yt-dlp binary (default: yt-dlp on PATH)")
	f.Int("concurrent-fragments", config.DefaultConcurrentFragments, "Fragments fetched in parallel per video")
	f.Int("concurrency", config.DefaultEngineConcurrency, "Videos downloaded in parallel")
	f.Bool("no-history", false, "Do not record downloads in the history ledger")
	f.Bool("no-index", false, "Do not add sidecars to the search index")
}

// loadGlobalConfig builds the configuration from explicitly set flags and
// configures logging from it.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, transport, err := config.Initialize(cliFlagsFrom(cmd))
	if err != nil {
		return err
	}
	if err := initLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	globalConfig = cfg
	globalHttpTransport = transport
	log.Debugf("Configuration loaded for command %q", cmd.Name())
	return nil
}

// closeTransport flushes the API log, if one was opened.
func closeTransport() {
	if lt, ok := globalHttpTransport.(*api.LoggingTransport); ok {
		if err := lt.Close(); err != nil {
			log.WithError(err).Warn("Failed to close API log")
		}
	}
}

// cliFlagsFrom only populates flags the user actually set, so config file
// and environment values are not clobbered by flag defaults.
func cliFlagsFrom(cmd *cobra.Command) config.CliFlags {
	return config.CliFlags{
		ConfigFilePath:      changedString(cmd, "config"),
		CredentialsFile:     changedString(cmd, "credentials-file"),
		CharacterTag:        changedString(cmd, "character-tag"),
		DownloadsPath:       changedString(cmd, "downloads-path"),
		ResultsSize:         changedInt(cmd, "results-size"),
		LogLevel:            changedString(cmd, "log-level"),
		LogFormat:           changedString(cmd, "log-format"),
		LogApiRequests:      changedBool(cmd, "log-api"),
		APIClientTimeoutSec: changedInt(cmd, "api-timeout"),
		URLStrategy:         changedString(cmd, "url-strategy"),
		DisableHistory:      changedBool(cmd, "no-history"),
		DisableIndex:        changedBool(cmd, "no-index"),
		EngineKind:          changedString(cmd, "engine"),
		BinaryPath:          changedString(cmd, "ytdlp-path"),
		ConcurrentFragments: changedInt(cmd, "concurrent-fragments"),
		Concurrency:         changedInt(cmd, "concurrency"),
	}
}

func changedString(cmd *cobra.Command, name string) *string {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil
	}
	return &v
}

func changedInt(cmd *cobra.Command, name string) *int {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil
	}
	return &v
}

func changedBool(cmd *cobra.Command, name string) *bool {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return nil
	}
	return &v
}

func initLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
