// Package config provides configuration loading and validation for topicofchange.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
	"github.com/Sumatoshi-tech/topicofchange/pkg/tokenize"
)

// EnvPrefix prefixes environment overrides, e.g. TOPICOFCHANGE_CORPUS_MIN_LENGTH.
const EnvPrefix = "TOPICOFCHANGE"

// Sentinel validation errors.
var (
	ErrInvalidEngine       = errors.New("diff engine must be myers or native")
	ErrInvalidContext      = errors.New("diff context lines must not be negative")
	ErrInvalidLimit        = errors.New("repository limit must not be negative")
	ErrInvalidMinLength    = errors.New("corpus min length must not be negative")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("log format must be json or text")
	ErrInvalidCacheSize    = errors.New("invalid blob cache size")
	ErrInvalidCodec        = errors.New("invalid codec")
	ErrInvalidStopwordList = errors.New("invalid stopword list")
)

// Diff engines.
const (
	EngineMyers  = "myers"
	EngineNative = "native"
)

// Config holds all configuration for a corpus build.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Diff       DiffConfig       `mapstructure:"diff"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// RepositoryConfig selects the history to mine.
type RepositoryConfig struct {
	Ref         string `mapstructure:"ref"`
	Since       string `mapstructure:"since"`
	Limit       int    `mapstructure:"limit"`
	FirstParent bool   `mapstructure:"first_parent"`
}

// CorpusConfig controls preprocessing and dictionary building.
type CorpusConfig struct {
	Stopwords      []string `mapstructure:"stopwords"`
	StopwordFiles  []string `mapstructure:"stopword_files"`
	Codecs         []string `mapstructure:"codecs"`
	Languages      []string `mapstructure:"languages"`
	Lang           string   `mapstructure:"lang"`
	MinLength      int      `mapstructure:"min_length"`
	Split          bool     `mapstructure:"split"`
	Lower          bool     `mapstructure:"lower"`
	RemoveStops    bool     `mapstructure:"remove_stops"`
	LazyDictionary bool     `mapstructure:"lazy_dictionary"`
	SkipVendor     bool     `mapstructure:"skip_vendor"`
}

// DiffConfig controls diff extraction.
type DiffConfig struct {
	Engine        string `mapstructure:"engine"`
	BlobCacheSize string `mapstructure:"blob_cache_size"`
	ContextLines  int    `mapstructure:"context_lines"`
	DetectRenames bool   `mapstructure:"detect_renames"`
}

// OutputConfig controls where corpora are written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// With an empty path, topicofchange.yaml is searched in ., ./config and
// /etc/topicofchange; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("topicofchange")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/topicofchange")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.ref", DefaultRef)
	viperCfg.SetDefault("repository.since", "")
	viperCfg.SetDefault("repository.limit", 0)
	viperCfg.SetDefault("repository.first_parent", false)

	viperCfg.SetDefault("corpus.split", true)
	viperCfg.SetDefault("corpus.lower", true)
	viperCfg.SetDefault("corpus.remove_stops", true)
	viperCfg.SetDefault("corpus.min_length", tokenize.DefaultMinLength)
	viperCfg.SetDefault("corpus.stopwords", tokenize.DefaultLists)
	viperCfg.SetDefault("corpus.stopword_files", []string{})
	viperCfg.SetDefault("corpus.codecs", textutil.DefaultCodecs)
	viperCfg.SetDefault("corpus.lang", DefaultLang)
	viperCfg.SetDefault("corpus.lazy_dictionary", false)
	viperCfg.SetDefault("corpus.languages", []string{})
	viperCfg.SetDefault("corpus.skip_vendor", false)

	viperCfg.SetDefault("diff.engine", EngineMyers)
	viperCfg.SetDefault("diff.context_lines", DefaultContextLines)
	viperCfg.SetDefault("diff.detect_renames", true)
	viperCfg.SetDefault("diff.blob_cache_size", DefaultBlobCacheSize)

	viperCfg.SetDefault("output.dir", DefaultOutputDir)
	viperCfg.SetDefault("output.compress", false)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.Diff.Engine != EngineMyers && c.Diff.Engine != EngineNative {
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Diff.Engine)
	}

	if c.Diff.ContextLines < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidContext, c.Diff.ContextLines)
	}

	if c.Repository.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Repository.Limit)
	}

	if c.Corpus.MinLength < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinLength, c.Corpus.MinLength)
	}

	if _, err := c.Diff.BlobCacheBytes(); err != nil {
		return err
	}

	for _, name := range c.Corpus.Codecs {
		if _, err := textutil.LookupCodec(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCodec, err)
		}
	}

	for _, name := range c.Corpus.Stopwords {
		if !slices.Contains(tokenize.Lists(), name) {
			return fmt.Errorf("%w: %q", ErrInvalidStopwordList, name)
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// BlobCacheBytes parses BlobCacheSize. Zero disables the cache.
func (c DiffConfig) BlobCacheBytes() (int64, error) {
	if c.BlobCacheSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.BlobCacheSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCacheSize, err)
	}

	return int64(n), nil //nolint:gosec // sizes beyond MaxInt64 are not meaningful here.
}

// SlogLevel maps Level to a slog level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Level)
	}

	return level, nil
}
