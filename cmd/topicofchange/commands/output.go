package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/topicofchange/pkg/cache"
)

var (
	builtColor  = color.New(color.FgGreen, color.Bold)
	reusedColor = color.New(color.FgCyan)
	mutedColor  = color.New(color.FgHiBlack)
)

// printResult writes one status line per corpus, e.g.
//
//	built  proj_changesets: 1,204 documents, 8,311 terms, 2.1 MiB in 3.2s (4 binary skipped)
func printResult(w io.Writer, r buildResult) {
	status := builtColor.Sprint("built ")
	if r.reused {
		status = reusedColor.Sprint("reused")
	}

	fmt.Fprintf(w, "%s %s: %s documents, %s terms, %s",
		status, r.manifest.Name,
		humanize.Comma(int64(r.manifest.Documents)),
		humanize.Comma(int64(r.manifest.Terms)),
		humanize.IBytes(uint64(max(fileSize(r.paths.Mallet), 0))), //nolint:gosec // clamped above.
	)

	if !r.reused {
		fmt.Fprintf(w, " in %s", r.duration.Round(time.Millisecond))

		if skipped := skippedSummary(r); skipped != "" {
			fmt.Fprint(w, " ", mutedColor.Sprintf("(%s skipped)", skipped))
		}
	}

	fmt.Fprintln(w)
}

func skippedSummary(r buildResult) string {
	var parts []string

	for _, p := range []struct {
		n     int
		label string
	}{
		{r.stats.Binary, "binary"},
		{r.stats.Filtered, "filtered"},
		{r.stats.Undecodable, "undecodable"},
	} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", humanize.Comma(int64(p.n)), p.label))
		}
	}

	return strings.Join(parts, ", ")
}

func printCacheStats(w io.Writer, stats cache.LRUStats, enabled bool) {
	if !enabled || stats.Hits+stats.Misses == 0 {
		return
	}

	fmt.Fprintln(w, mutedColor.Sprintf("blob cache: %s", stats))
}
