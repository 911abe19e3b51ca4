package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBuildsTotal      = "topicofchange.corpus.builds.total"
	metricBuildDuration    = "topicofchange.corpus.build.duration.seconds"
	metricDocumentsTotal   = "topicofchange.corpus.documents.total"
	metricPatchesTotal     = "topicofchange.corpus.patches.total"
	metricSkippedTotal     = "topicofchange.corpus.skipped.total"
	metricTermsTotal       = "topicofchange.corpus.terms.total"
	metricCacheHitsTotal   = "topicofchange.cache.hits.total"
	metricCacheMissesTotal = "topicofchange.cache.misses.total"

	attrKind   = "kind"
	attrReason = "reason"
	attrReused = "reused"
	attrCache  = "cache"
)

// durationBucketBoundaries covers 10ms to 600s, from small snapshots to long
// histories.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// CorpusMetrics holds the instruments recorded once per corpus build.
type CorpusMetrics struct {
	builds    metric.Int64Counter
	duration  metric.Float64Histogram
	documents metric.Int64Counter
	patches   metric.Int64Counter
	skipped   metric.Int64Counter
	terms     metric.Int64Counter
	hits      metric.Int64Counter
	misses    metric.Int64Counter
}

// BuildStats describes one finished corpus build, independent of the corpus
// package types.
type BuildStats struct {
	// Kind is "files" or "changesets".
	Kind        string
	Reused      bool
	Duration    time.Duration
	Documents   int
	Patches     int
	Binary      int
	Filtered    int
	Undecodable int
	Terms       int

	BlobCacheHits   int64
	BlobCacheMisses int64
}

// NewCorpusMetrics creates corpus metric instruments from the given meter.
func NewCorpusMetrics(mt metric.Meter) (*CorpusMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &CorpusMetrics{
		builds:    b.counter(metricBuildsTotal, "Corpus builds by kind", "{build}"),
		duration:  b.histogram(metricBuildDuration, "Corpus build duration in seconds", "s", durationBucketBoundaries...),
		documents: b.counter(metricDocumentsTotal, "Documents emitted", "{document}"),
		patches:   b.counter(metricPatchesTotal, "Text patches rendered", "{patch}"),
		skipped:   b.counter(metricSkippedTotal, "Contributions skipped by reason", "{item}"),
		terms:     b.counter(metricTermsTotal, "Dictionary size of built corpora", "{term}"),
		hits:      b.counter(metricCacheHitsTotal, "Cache hits by type", "{hit}"),
		misses:    b.counter(metricCacheMissesTotal, "Cache misses by type", "{miss}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordBuild records a finished build. A reused corpus only counts the build.
// Safe to call on a nil receiver.
func (cm *CorpusMetrics) RecordBuild(ctx context.Context, stats BuildStats) {
	if cm == nil {
		return
	}

	kind := attribute.String(attrKind, stats.Kind)

	cm.builds.Add(ctx, 1, metric.WithAttributes(kind, attribute.Bool(attrReused, stats.Reused)))

	if stats.Reused {
		return
	}

	kindAttrs := metric.WithAttributes(kind)

	cm.duration.Record(ctx, stats.Duration.Seconds(), kindAttrs)
	cm.documents.Add(ctx, int64(stats.Documents), kindAttrs)
	cm.patches.Add(ctx, int64(stats.Patches), kindAttrs)
	cm.terms.Add(ctx, int64(stats.Terms), kindAttrs)

	for reason, n := range map[string]int{
		"binary":      stats.Binary,
		"filtered":    stats.Filtered,
		"undecodable": stats.Undecodable,
	} {
		cm.skipped.Add(ctx, int64(n), metric.WithAttributes(kind, attribute.String(attrReason, reason)))
	}

	blob := metric.WithAttributes(attribute.String(attrCache, "blob"))
	cm.hits.Add(ctx, stats.BlobCacheHits, blob)
	cm.misses.Add(ctx, stats.BlobCacheMisses, blob)
}
