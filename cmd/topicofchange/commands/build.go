package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/topicofchange/pkg/cache"
	"github.com/Sumatoshi-tech/topicofchange/pkg/changeset"
	"github.com/Sumatoshi-tech/topicofchange/pkg/config"
	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
	"github.com/Sumatoshi-tech/topicofchange/pkg/observability"
	"github.com/Sumatoshi-tech/topicofchange/pkg/persist"
	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
	"github.com/Sumatoshi-tech/topicofchange/pkg/tokenize"
	"github.com/Sumatoshi-tech/topicofchange/pkg/version"
)

// statsSource is a corpus source that counts what it skipped.
type statsSource interface {
	corpus.DocumentSource
	Stats() corpus.SourceStats
}

// builder holds what every corpus of one run shares: the open repository,
// the optional blob cache and the preprocessing pipeline.
type builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	repoPath string
	repo     *gitlib.Repository
	store    gitlib.Store
	blobs    *cache.CachingStore
	pipeline *tokenize.Pipeline
	filter   *changeset.PathFilter
	since    time.Time
}

// buildResult describes one corpus after build or reuse.
type buildResult struct {
	kind     string
	manifest persist.Manifest
	paths    persist.Paths
	reused   bool
	stats    corpus.SourceStats
	duration time.Duration
	hits     int64
	misses   int64
}

func newBuilder(repoPath string, cfg *config.Config, logger *slog.Logger) (*builder, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path: %w", err)
	}

	pipeline, err := newPipeline(cfg.Corpus)
	if err != nil {
		return nil, err
	}

	var since time.Time

	if cfg.Repository.Since != "" {
		since, err = gitlib.ParseTime(cfg.Repository.Since)
		if err != nil {
			return nil, err
		}
	}

	cacheBytes, err := cfg.Diff.BlobCacheBytes()
	if err != nil {
		return nil, err
	}

	repo, err := gitlib.OpenRepository(absPath, gitlib.WithRenameDetection(cfg.Diff.DetectRenames))
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:      cfg,
		logger:   logger,
		repoPath: absPath,
		repo:     repo,
		store:    repo,
		pipeline: pipeline,
		filter:   changeset.NewPathFilter(cfg.Corpus.SkipVendor, changeset.DefaultSkipPrefixes, cfg.Corpus.Languages),
		since:    since,
	}

	if cacheBytes > 0 {
		b.blobs = cache.NewCachingStore(repo, cacheBytes)
		b.store = b.blobs
	}

	return b, nil
}

// newPipeline assembles normalizer, stopwords and filter from the corpus
// configuration.
func newPipeline(cfg config.CorpusConfig) (*tokenize.Pipeline, error) {
	normalizer, err := textutil.NewNormalizer(cfg.Codecs...)
	if err != nil {
		return nil, err
	}

	stops, err := tokenize.LoadStopwords(cfg.Stopwords...)
	if err != nil {
		return nil, err
	}

	if len(cfg.StopwordFiles) > 0 {
		extra, fileErr := tokenize.LoadStopwordFiles(cfg.StopwordFiles...)
		if fileErr != nil {
			return nil, fileErr
		}

		stops = stops.Union(extra)
	}

	return tokenize.NewPipeline(normalizer, tokenize.NewFilter(stops, cfg.MinLength),
		tokenize.WithSplit(cfg.Split),
		tokenize.WithLower(cfg.Lower),
		tokenize.WithStopwordRemoval(cfg.RemoveStops),
	), nil
}

func (b *builder) Close() {
	b.repo.Free()
}

func (b *builder) cacheStats() (cache.LRUStats, bool) {
	if b.blobs == nil {
		return cache.LRUStats{}, false
	}

	return b.blobs.Stats(), true
}

func (b *builder) source(kind string) statsSource {
	opts := []corpus.SourceOption{
		corpus.WithLang(b.cfg.Corpus.Lang),
		corpus.WithSourceLogger(b.logger),
		corpus.WithPathFilter(b.filter),
	}

	if kind == persist.KindFiles {
		return corpus.NewSnapshotSource(b.store, b.cfg.Repository.Ref, b.pipeline, opts...)
	}

	walkerOpts := []changeset.WalkerOption{
		changeset.WithFirstParent(b.cfg.Repository.FirstParent),
		changeset.WithLimit(b.cfg.Repository.Limit),
	}

	if !b.since.IsZero() {
		walkerOpts = append(walkerOpts, changeset.WithSince(b.since))
	}

	renderer := changeset.Renderer(changeset.NewMyersRenderer(b.cfg.Diff.ContextLines))
	if b.cfg.Diff.Engine == config.EngineNative {
		renderer = changeset.NewNativeRenderer(b.repo, b.cfg.Diff.ContextLines)
	}

	opts = append(opts,
		corpus.WithWalkerOptions(walkerOpts...),
		corpus.WithExtractorOptions(changeset.WithRenderer(renderer)),
	)

	return corpus.NewChangesetSource(b.store, b.cfg.Repository.Ref, b.pipeline, opts...)
}

// corpusOptions are the settings that change the content of a corpus of
// one kind. The reference is left out; the resolved head stands for it.
type corpusOptions struct {
	Kind          string              `yaml:"kind"`
	Corpus        config.CorpusConfig `yaml:"corpus"`
	Since         string              `yaml:"since,omitempty"`
	Limit         int                 `yaml:"limit,omitempty"`
	FirstParent   bool                `yaml:"first_parent,omitempty"`
	Engine        string              `yaml:"engine,omitempty"`
	ContextLines  int                 `yaml:"context_lines,omitempty"`
	DetectRenames bool                `yaml:"detect_renames,omitempty"`
}

func (b *builder) optionsDigest(kind string) (string, error) {
	opts := corpusOptions{Kind: kind, Corpus: b.cfg.Corpus}

	if kind == persist.KindChangesets {
		opts.Since = b.cfg.Repository.Since
		opts.Limit = b.cfg.Repository.Limit
		opts.FirstParent = b.cfg.Repository.FirstParent
		opts.Engine = b.cfg.Diff.Engine
		opts.ContextLines = b.cfg.Diff.ContextLines
		opts.DetectRenames = b.cfg.Diff.DetectRenames
	}

	return persist.OptionsDigest(opts)
}

// build reuses or builds corpus <name>_<kind>. A persisted corpus is reused
// while it was built from the commit the reference points at now and with
// the same content settings.
func (b *builder) build(ctx context.Context, name, kind string, rebuild bool) (buildResult, error) {
	head, err := b.store.ResolveRef(ctx, b.cfg.Repository.Ref)
	if err != nil {
		return buildResult{}, err
	}

	digest, err := b.optionsDigest(kind)
	if err != nil {
		return buildResult{}, err
	}

	corpusName := name + "_" + kind
	dir := b.cfg.Output.Dir

	opts := persist.WriteOptions{
		Compress: b.cfg.Output.Compress,
		Manifest: persist.Manifest{
			Kind:       kind,
			Repository: b.repoPath,
			Ref:        b.cfg.Repository.Ref,
			Head:       head.String(),
			Options:    digest,
			Version:    version.Version,
		},
		Logger: b.logger,
	}

	var src statsSource

	buildCorpus := func(ctx context.Context) (*corpus.Corpus, error) {
		src = b.source(kind)

		return corpus.New(ctx, src,
			corpus.WithMetadata(true),
			corpus.WithLazyDictionary(b.cfg.Corpus.LazyDictionary),
			corpus.WithLogger(b.logger),
		)
	}

	before, _ := b.cacheStats()
	start := time.Now()

	var loaded persist.Loaded

	if rebuild {
		c, buildErr := buildCorpus(ctx)
		if buildErr != nil {
			return buildResult{}, buildErr
		}

		m, writeErr := persist.WriteCorpus(ctx, dir, corpusName, c, opts)
		if writeErr != nil {
			return buildResult{}, writeErr
		}

		loaded = persist.Loaded{Manifest: m}
	} else {
		loaded, err = persist.LoadOrBuild(ctx, dir, corpusName, buildCorpus, opts)
		if err != nil {
			return buildResult{}, err
		}
	}

	after, _ := b.cacheStats()

	res := buildResult{
		kind:     kind,
		manifest: loaded.Manifest,
		paths:    persist.CorpusPaths(dir, corpusName, loaded.Manifest.Compressed),
		reused:   loaded.Reused,
		duration: time.Since(start),
		hits:     after.Hits - before.Hits,
		misses:   after.Misses - before.Misses,
	}

	if src != nil {
		res.stats = src.Stats()
	}

	b.logger.InfoContext(ctx, "corpus ready",
		"name", corpusName, "reused", res.reused,
		"documents", res.manifest.Documents, "terms", res.manifest.Terms)

	return res, nil
}

func (r buildResult) buildStats() observability.BuildStats {
	return observability.BuildStats{
		Kind:            r.kind,
		Reused:          r.reused,
		Duration:        r.duration,
		Documents:       r.manifest.Documents,
		Patches:         r.stats.Patches,
		Binary:          r.stats.Binary,
		Filtered:        r.stats.Filtered,
		Undecodable:     r.stats.Undecodable,
		Terms:           r.manifest.Terms,
		BlobCacheHits:   r.hits,
		BlobCacheMisses: r.misses,
	}
}

// fileSize returns the size of path, or 0 when it cannot be read.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return info.Size()
}
