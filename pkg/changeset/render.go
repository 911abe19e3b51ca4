package changeset

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

// DefaultContextLines matches git's default.
const DefaultContextLines = 3

// Renderer produces unified diff text for one change. oldData and newData
// are the blob contents, nil for the missing side of an insertion or deletion.
type Renderer interface {
	Render(ctx context.Context, change *gitlib.Change, oldData, newData []byte) ([]byte, error)
}

// MyersRenderer renders line diffs in pure Go.
type MyersRenderer struct {
	ContextLines int
}

// NewMyersRenderer creates a renderer with the given context width.
func NewMyersRenderer(contextLines int) *MyersRenderer {
	return &MyersRenderer{ContextLines: max(contextLines, 0)}
}

type lineOp struct {
	op   byte
	text string
}

// Render implements Renderer.
func (r *MyersRenderer) Render(_ context.Context, change *gitlib.Change, oldData, newData []byte) ([]byte, error) {
	var buf bytes.Buffer

	gitlib.WriteUnifiedHeader(&buf, change)

	ops := diffLines(string(oldData), string(newData))
	writeHunks(&buf, ops, r.ContextLines)

	return buf.Bytes(), nil
}

func diffLines(oldText, newText string) []lineOp {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []lineOp

	for _, d := range diffs {
		var op byte

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op = ' '
		case diffmatchpatch.DiffInsert:
			op = '+'
		case diffmatchpatch.DiffDelete:
			op = '-'
		}

		for line := range strings.Lines(d.Text) {
			ops = append(ops, lineOp{op: op, text: line})
		}
	}

	return ops
}

// writeHunks groups ops into hunks, merging changes separated by at most
// 2*context unchanged lines.
func writeHunks(buf *bytes.Buffer, ops []lineOp, context int) {
	oldLine := make([]int, len(ops)+1)
	newLine := make([]int, len(ops)+1)

	for i, op := range ops {
		oldLine[i+1], newLine[i+1] = oldLine[i], newLine[i]

		if op.op != '+' {
			oldLine[i+1]++
		}

		if op.op != '-' {
			newLine[i+1]++
		}
	}

	i := 0

	for i < len(ops) {
		for i < len(ops) && ops[i].op == ' ' {
			i++
		}

		if i == len(ops) {
			return
		}

		start := max(i-context, 0)
		end := i

		for {
			for end < len(ops) && ops[end].op != ' ' {
				end++
			}

			next := end
			for next < len(ops) && ops[next].op == ' ' {
				next++
			}

			if next < len(ops) && next-end <= 2*context {
				end = next

				continue
			}

			end = min(end+context, len(ops))

			break
		}

		fmt.Fprintf(buf, "@@ -%s +%s @@\n",
			hunkRange(oldLine[start], oldLine[end]-oldLine[start]),
			hunkRange(newLine[start], newLine[end]-newLine[start]))

		for _, op := range ops[start:end] {
			buf.WriteByte(op.op)
			buf.WriteString(op.text)

			if !strings.HasSuffix(op.text, "\n") {
				buf.WriteString("\n\\ No newline at end of file\n")
			}
		}

		i = end
	}
}

// hunkRange formats "start,count" the way git does: a one-line range drops
// the count and an empty range points at the line before it.
func hunkRange(before, count int) string {
	switch count {
	case 0:
		return fmt.Sprintf("%d,0", before)
	case 1:
		return fmt.Sprintf("%d", before+1)
	default:
		return fmt.Sprintf("%d,%d", before+1, count)
	}
}

// NativeRenderer renders with libgit2's blob differ. It reads blobs itself,
// so the data arguments are ignored.
type NativeRenderer struct {
	Repo         *gitlib.Repository
	ContextLines int
}

// NewNativeRenderer creates a libgit2-backed renderer.
func NewNativeRenderer(repo *gitlib.Repository, contextLines int) *NativeRenderer {
	return &NativeRenderer{Repo: repo, ContextLines: max(contextLines, 0)}
}

// Render implements Renderer.
func (r *NativeRenderer) Render(ctx context.Context, change *gitlib.Change, _, _ []byte) ([]byte, error) {
	return r.Repo.UnifiedDiff(ctx, change, r.ContextLines)
}
