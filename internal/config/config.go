package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-tweet-video-download/internal/api"
	"go-tweet-video-download/internal/engine"
	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"
	"go-tweet-video-download/internal/paths"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultResultsSize         = 10
	DefaultLogApiRequests      = false
	DefaultAPIClientTimeoutSec = 30 // seconds
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultConfigFilePath      = "config.toml"
	DefaultURLStrategy         = models.URLStrategyTrailing

	DefaultEngineKind          = engine.KindYtDlp
	DefaultEngineFinalExt      = "mp4"
	DefaultConcurrentFragments = 4
	DefaultEngineConcurrency   = 1

	// Relative to DownloadsPath
	DefaultStateDir       = ".tweetvid"
	DefaultDatabaseName   = "history.db"
	DefaultBleveIndexName = "index.bleve"

	EnvPrefix = "TWEETVID"
)

// Configuration errors. All of them are fatal before any network activity.
var (
	ErrMissingCredentialsFile = errors.New("missing credentials file path argument")
	ErrCredentialsNotFound    = errors.New("credentials file does not exist")
	ErrMissingTag             = errors.New("no character tag specified")
	ErrMissingDownloadsPath   = errors.New("missing downloads path argument")
	ErrDownloadsPath          = errors.New("downloads path is not a usable directory")
	ErrInvalidOption          = errors.New("invalid configuration option")
)

var validLogFormats = map[string]struct{}{"text": {}, "json": {}}

var validStrategies = map[string]struct{}{
	models.URLStrategyTrailing: {},
	models.URLStrategyMedia:    {},
}

var validEngines = map[string]struct{}{
	engine.KindYtDlp: {},
	engine.KindHTTP:  {},
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("credentialsfile", "")
	v.SetDefault("charactertag", "")
	v.SetDefault("downloadspath", "")
	v.SetDefault("resultssize", DefaultResultsSize)
	v.SetDefault("logapirequests", DefaultLogApiRequests)
	v.SetDefault("apiclienttimeoutsec", DefaultAPIClientTimeoutSec)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("urlstrategy", DefaultURLStrategy)
	v.SetDefault("disablehistory", false)
	v.SetDefault("disableindex", false)

	v.SetDefault("engine.kind", DefaultEngineKind)
	v.SetDefault("engine.binarypath", "")
	v.SetDefault("engine.outputtemplate", paths.DefaultOutputTemplate)
	v.SetDefault("engine.finalext", DefaultEngineFinalExt)
	v.SetDefault("engine.concurrentfragments", DefaultConcurrentFragments)
	v.SetDefault("engine.concurrency", DefaultEngineConcurrency)
}

// CliFlags carries flag values that were explicitly set. Nil means "not set".
type CliFlags struct {
	ConfigFilePath      *string
	CredentialsFile     *string // --credentials-file
	CharacterTag        *string // --character-tag
	DownloadsPath       *string // --downloads-path
	ResultsSize         *int    // --results-size
	LogLevel            *string // --log-level
	LogFormat           *string // --log-format
	LogApiRequests      *bool   // --log-api
	APIClientTimeoutSec *int    // --api-timeout
	URLStrategy         *string // --url-strategy
	DisableHistory      *bool   // --no-history
	DisableIndex        *bool   // --no-index

	EngineKind          *string // --engine
	BinaryPath          *string // --ytdlp-path
	ConcurrentFragments *int    // --concurrent-fragments
	Concurrency         *int    // --concurrency
}

// Initialize merges defaults, the optional TOML config file, TWEETVID_*
// environment variables and explicit CLI flags (highest precedence), then
// validates the result and builds the HTTP transport for API calls.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	configFilePath := DefaultConfigFilePath
	explicitConfig := false
	if flags.ConfigFilePath != nil && *flags.ConfigFilePath != "" {
		configFilePath = *flags.ConfigFilePath
		explicitConfig = true
	}
	v.SetConfigFile(configFilePath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist):
			if explicitConfig {
				return models.Config{}, nil, fmt.Errorf("config file %s not found: %w", configFilePath, err)
			}
			log.Debugf("[Initialize] No config file at '%s'. Using defaults and CLI flags only.", configFilePath)
		default:
			return models.Config{}, nil, fmt.Errorf("error reading config file %s: %w", configFilePath, err)
		}
	} else {
		log.Infof("Using config file: %s", v.ConfigFileUsed())
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	applyFlags(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return models.Config{}, nil, err
	}
	derivePaths(&cfg)

	transport := buildTransport(cfg)
	log.Debugf("[Initialize] Final config: %+v", cfg)
	return cfg, transport, nil
}

func applyFlags(cfg *models.Config, flags CliFlags) {
	if flags.CredentialsFile != nil {
		cfg.CredentialsFile = *flags.CredentialsFile
	}
	if flags.CharacterTag != nil {
		cfg.CharacterTag = *flags.CharacterTag
	}
	if flags.DownloadsPath != nil {
		cfg.DownloadsPath = *flags.DownloadsPath
	}
	if flags.ResultsSize != nil {
		cfg.ResultsSize = *flags.ResultsSize
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.APIClientTimeoutSec != nil {
		cfg.APIClientTimeoutSec = *flags.APIClientTimeoutSec
	}
	if flags.URLStrategy != nil {
		cfg.URLStrategy = *flags.URLStrategy
	}
	if flags.DisableHistory != nil {
		cfg.DisableHistory = *flags.DisableHistory
	}
	if flags.DisableIndex != nil {
		cfg.DisableIndex = *flags.DisableIndex
	}
	if flags.EngineKind != nil {
		cfg.Engine.Kind = *flags.EngineKind
	}
	if flags.BinaryPath != nil {
		cfg.Engine.BinaryPath = *flags.BinaryPath
	}
	if flags.ConcurrentFragments != nil {
		cfg.Engine.ConcurrentFragments = *flags.ConcurrentFragments
	}
	if flags.Concurrency != nil {
		cfg.Engine.Concurrency = *flags.Concurrency
	}
}

// validate checks options shared by every command. Download-only
// requirements are checked by ValidateDownload.
func validate(cfg *models.Config) error {
	cfg.CharacterTag = strings.TrimSpace(cfg.CharacterTag)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.URLStrategy = strings.ToLower(cfg.URLStrategy)
	cfg.Engine.Kind = strings.ToLower(cfg.Engine.Kind)

	if cfg.DownloadsPath == "" {
		return ErrMissingDownloadsPath
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidOption, cfg.LogLevel)
	}
	if _, ok := validLogFormats[cfg.LogFormat]; !ok {
		return fmt.Errorf("%w: log format %q (expected text or json)", ErrInvalidOption, cfg.LogFormat)
	}
	if _, ok := validStrategies[cfg.URLStrategy]; !ok {
		return fmt.Errorf("%w: url strategy %q (expected trailing or media)", ErrInvalidOption, cfg.URLStrategy)
	}
	if _, ok := validEngines[cfg.Engine.Kind]; !ok {
		return fmt.Errorf("%w: engine %q (expected ytdlp or http)", ErrInvalidOption, cfg.Engine.Kind)
	}
	if cfg.ResultsSize <= 0 {
		return fmt.Errorf("%w: results size must be positive, got %d", ErrInvalidOption, cfg.ResultsSize)
	}
	if cfg.APIClientTimeoutSec <= 0 {
		return fmt.Errorf("%w: api timeout must be positive, got %d", ErrInvalidOption, cfg.APIClientTimeoutSec)
	}
	if cfg.Engine.ConcurrentFragments < 1 || cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("%w: engine concurrency settings must be at least 1", ErrInvalidOption)
	}
	if err := validateOutputTemplate(cfg.Engine.OutputTemplate); err != nil {
		return fmt.Errorf("%w: output template: %v", ErrInvalidOption, err)
	}
	return nil
}

// validateOutputTemplate only allows fields known before a download starts,
// so the skip check can find the video a previous run wrote.
func validateOutputTemplate(template string) error {
	if _, err := paths.RenderTemplate(template, map[string]string{"id": "0", "ext": "mp4"}); err != nil {
		return err
	}
	hasID := false
	for _, field := range paths.TemplateFields(template) {
		switch field {
		case "id":
			hasID = true
		case "ext":
		default:
			return fmt.Errorf("field %q is not known until the video is downloaded", field)
		}
	}
	if !hasID {
		return fmt.Errorf("%q must contain %%(id)s", template)
	}
	return nil
}

// derivePaths fills in ledger and index locations beneath the downloads path.
func derivePaths(cfg *models.Config) {
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(cfg.DownloadsPath, DefaultStateDir)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.StatePath, DefaultDatabaseName)
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = filepath.Join(cfg.StatePath, DefaultBleveIndexName)
	}
}

// ValidateDownload checks what the download command needs before touching
// the network, creating the downloads directory when it is missing.
func ValidateDownload(cfg models.Config) error {
	if cfg.CredentialsFile == "" {
		return ErrMissingCredentialsFile
	}
	if !helpers.FileExists(cfg.CredentialsFile) {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, cfg.CredentialsFile)
	}
	if cfg.CharacterTag == "" || strings.TrimPrefix(cfg.CharacterTag, "#") == "" {
		return ErrMissingTag
	}
	if _, err := os.Stat(cfg.DownloadsPath); os.IsNotExist(err) {
		log.Warnf("Path %s does not exist. Creating downloads directory.", cfg.DownloadsPath)
	}
	if !helpers.CheckAndMakeDir(cfg.DownloadsPath) {
		return fmt.Errorf("%w: %s", ErrDownloadsPath, cfg.DownloadsPath)
	}
	return nil
}

func buildTransport(cfg models.Config) http.RoundTripper {
	baseTransport := http.DefaultTransport
	if !cfg.LogApiRequests {
		return baseTransport
	}

	logFilePath := "api.log"
	if helpers.CheckAndMakeDir(cfg.DownloadsPath) {
		logFilePath = filepath.Join(cfg.DownloadsPath, logFilePath)
	} else {
		log.Warnf("Downloads path '%s' is not usable, saving api.log to current directory.", cfg.DownloadsPath)
	}
	log.Infof("API logging to file: %s", logFilePath)

	loggingTransport, err := api.NewLoggingTransport(baseTransport, logFilePath)
	if err != nil {
		log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		return baseTransport
	}
	return loggingTransport
}
