// Package commands implements CLI command handlers for topicofchange.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/topicofchange/pkg/config"
	"github.com/Sumatoshi-tech/topicofchange/pkg/observability"
	"github.com/Sumatoshi-tech/topicofchange/pkg/persist"
	"github.com/Sumatoshi-tech/topicofchange/pkg/version"
)

// ErrUnknownKind is returned for a --kind other than files or changesets.
var ErrUnknownKind = errors.New("corpus kind must be files or changesets")

const metricsShutdownTimeout = 5 * time.Second

// CorporaCommand builds or reuses the files and changesets corpora of a
// repository.
type CorporaCommand struct {
	configPath string
	name       string
	kinds      []string
	rebuild    bool
	noColor    bool
}

// NewCorporaCommand creates the corpora command.
func NewCorporaCommand() *cobra.Command {
	cc := &CorporaCommand{}

	cmd := &cobra.Command{
		Use:   "corpora [repository]",
		Short: "Build the files and changesets corpora of a repository",
		Long: `Build the files and changesets corpora of a repository, or reuse the
persisted ones when they were built from the same commit.

Flags override the configuration file (topicofchange.yaml) and
TOPICOFCHANGE_* environment variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&cc.configPath, "config", "c", "", "Configuration file (default: search topicofchange.yaml)")
	flags.StringVarP(&cc.name, "name", "n", "", "Corpus name prefix (default: repository directory name)")
	flags.StringSliceVar(&cc.kinds, "kind", []string{persist.KindFiles, persist.KindChangesets}, "Corpora to build: files, changesets")
	flags.BoolVar(&cc.rebuild, "rebuild", false, "Rebuild even when a persisted corpus is up to date")
	flags.BoolVar(&cc.noColor, "no-color", false, "Disable colored output")

	flags.String("ref", config.DefaultRef, "Reference to mine")
	flags.String("since", "", "Only mine commits after this time (e.g., '720h', '2024-01-01', RFC3339)")
	flags.Int("limit", 0, "Limit number of commits (0 = no limit)")
	flags.Bool("first-parent", false, "Follow only the first parent of merge commits")

	flags.String("engine", config.EngineMyers, "Diff engine: myers or native")
	flags.Int("context-lines", config.DefaultContextLines, "Unchanged context lines around each hunk")
	flags.String("blob-cache-size", config.DefaultBlobCacheSize, "Max blob cache size (e.g., '256MB'; 0 = disabled)")
	flags.StringSlice("languages", nil, "Only use files of these languages (enry names, e.g. Go,Java)")
	flags.Bool("skip-vendor", false, "Skip vendored and generated paths")
	flags.Bool("lazy", false, "Grow the dictionary during the write pass instead of a separate pass")

	flags.StringP("output-dir", "o", config.DefaultOutputDir, "Directory for persisted corpora")
	flags.Bool("compress", false, "Write lz4-compressed Mallet files")

	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics at this address during the build (e.g., ':9464')")
	flags.String("otlp-endpoint", "", "OTLP gRPC collector address")

	return cmd
}

func (cc *CorporaCommand) run(cmd *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}

	for _, kind := range cc.kinds {
		if kind != persist.KindFiles && kind != persist.KindChangesets {
			return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
	}

	if cc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	cfg, err := loadConfig(cc.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg)
	if err != nil {
		return err
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	if cfg.Telemetry.MetricsAddr != "" {
		srv, srvErr := observability.NewMetricsServer(cfg.Telemetry.MetricsAddr, providers, logger)
		if srvErr != nil {
			return srvErr
		}

		logger.Info("serving metrics", "addr", srv.Addr())

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()

			closeErr := srv.Close(ctx)
			if closeErr != nil {
				logger.Warn("metrics server shutdown failed", "error", closeErr)
			}
		}()
	}

	metrics, err := observability.NewCorpusMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create corpus metrics: %w", err)
	}

	b, err := newBuilder(repoPath, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	name := cc.name
	if name == "" {
		name = filepath.Base(b.repoPath)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := providers.Tracer.Start(ctx, "topicofchange.corpora")
	defer span.End()

	out := cmd.OutOrStdout()

	for _, kind := range []string{persist.KindFiles, persist.KindChangesets} {
		if !slices.Contains(cc.kinds, kind) {
			continue
		}

		res, buildErr := b.build(ctx, name, kind, cc.rebuild)
		if buildErr != nil {
			return buildErr
		}

		metrics.RecordBuild(ctx, res.buildStats())
		printResult(out, res)
	}

	stats, cached := b.cacheStats()
	printCacheStats(out, stats, cached)

	return nil
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	err = applyFlags(cfg, flags)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var errs []error

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			*dst = v
			errs = append(errs, err)
		}
	}

	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			v, err := flags.GetInt(name)
			*dst = v
			errs = append(errs, err)
		}
	}

	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			v, err := flags.GetBool(name)
			*dst = v
			errs = append(errs, err)
		}
	}

	str("ref", &cfg.Repository.Ref)
	str("since", &cfg.Repository.Since)
	integer("limit", &cfg.Repository.Limit)
	boolean("first-parent", &cfg.Repository.FirstParent)

	str("engine", &cfg.Diff.Engine)
	integer("context-lines", &cfg.Diff.ContextLines)
	str("blob-cache-size", &cfg.Diff.BlobCacheSize)
	boolean("skip-vendor", &cfg.Corpus.SkipVendor)
	boolean("lazy", &cfg.Corpus.LazyDictionary)

	if flags.Changed("languages") {
		v, err := flags.GetStringSlice("languages")
		cfg.Corpus.Languages = v
		errs = append(errs, err)
	}

	str("output-dir", &cfg.Output.Dir)
	boolean("compress", &cfg.Output.Compress)

	str("log-level", &cfg.Logging.Level)
	str("log-format", &cfg.Logging.Format)
	str("metrics-addr", &cfg.Telemetry.MetricsAddr)
	str("otlp-endpoint", &cfg.Telemetry.OTLPEndpoint)

	err := errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}

	return nil
}

func initObservability(cfg *config.Config) (observability.Providers, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.TraceVerbose = level == slog.LevelDebug

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}
