package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/topicofchange/pkg/config"
	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
	"github.com/Sumatoshi-tech/topicofchange/pkg/persist"
)

// Dictionary output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ErrUnknownFormat is returned for a --format other than table or json.
var ErrUnknownFormat = errors.New("format must be table or json")

// DictionaryCommand prints the dictionary of a persisted corpus.
type DictionaryCommand struct {
	dir    string
	top    int
	format string
}

// dictionaryReport is the JSON form of the dictionary command.
type dictionaryReport struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Head      string      `json:"head"`
	Documents int         `json:"documents"`
	Terms     int         `json:"terms"`
	Top       []termCount `json:"top"`
}

type termCount struct {
	ID      int    `json:"id"`
	Term    string `json:"term"`
	DocFreq int    `json:"doc_freq"`
}

// NewDictionaryCommand creates the dictionary command.
func NewDictionaryCommand() *cobra.Command {
	dc := &DictionaryCommand{}

	cmd := &cobra.Command{
		Use:   "dictionary <corpus>",
		Short: "Show the most frequent terms of a persisted corpus",
		Long: `Show the terms of a persisted corpus (e.g. myrepo_changesets) ordered by
document frequency.`,
		Args: cobra.ExactArgs(1),
		RunE: dc.run,
	}

	cmd.Flags().StringVarP(&dc.dir, "dir", "d", config.DefaultOutputDir, "Directory of persisted corpora")
	cmd.Flags().IntVar(&dc.top, "top", 20, "Number of terms to show (0 = all)")
	cmd.Flags().StringVar(&dc.format, "format", FormatTable, "Output format: table or json")

	return cmd
}

func (dc *DictionaryCommand) run(cmd *cobra.Command, args []string) error {
	if dc.format != FormatTable && dc.format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, dc.format)
	}

	loaded, err := persist.Load(dc.dir, args[0])
	if err != nil {
		return fmt.Errorf("load corpus %s: %w", args[0], err)
	}

	report := newDictionaryReport(loaded.Manifest, loaded.Dictionary, dc.top)

	if dc.format == FormatJSON {
		return persist.NewJSONCodec().Encode(cmd.OutOrStdout(), report)
	}

	renderDictionaryTable(cmd.OutOrStdout(), report)

	return nil
}

// newDictionaryReport orders terms by descending document frequency, then
// by id, and keeps the first top (all when top <= 0).
func newDictionaryReport(m persist.Manifest, dict *corpus.Dictionary, top int) dictionaryReport {
	entries := dict.Entries()

	slices.SortStableFunc(entries, func(a, b corpus.DictionaryEntry) int {
		return cmp.Or(cmp.Compare(b.DocFreq, a.DocFreq), cmp.Compare(a.ID, b.ID))
	})

	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}

	terms := make([]termCount, len(entries))
	for i, e := range entries {
		terms[i] = termCount{ID: e.ID, Term: e.Term, DocFreq: e.DocFreq}
	}

	return dictionaryReport{
		Name:      m.Name,
		Kind:      m.Kind,
		Head:      m.Head,
		Documents: m.Documents,
		Terms:     m.Terms,
		Top:       terms,
	}
}

func renderDictionaryTable(w io.Writer, r dictionaryReport) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetTitle("%s (%s @ %s)", r.Name, r.Kind, shortHash(r.Head))
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	tbl.AppendHeader(table.Row{"id", "term", "documents", "share"})

	for _, t := range r.Top {
		share := 0.0
		if r.Documents > 0 {
			share = float64(t.DocFreq) / float64(r.Documents) * 100
		}

		tbl.AppendRow(table.Row{t.ID, t.Term, humanize.Comma(int64(t.DocFreq)), fmt.Sprintf("%.1f%%", share)})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("%s terms", humanize.Comma(int64(r.Terms))),
		fmt.Sprintf("%s docs", humanize.Comma(int64(r.Documents))), ""})
	tbl.Render()
}

func shortHash(h string) string {
	const shortLen = 12

	if len(h) > shortLen {
		return h[:shortLen]
	}

	return h
}
