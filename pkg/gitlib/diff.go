package gitlib

import (
	"bytes"
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// DevNull is the path unified diffs print for the missing side of an
// added or deleted file.
const DevNull = "/dev/null"

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// Delta returns the delta at the given index.
func (d *Diff) Delta(index int) (DiffDelta, error) {
	delta, err := d.diff.Delta(index)
	if err != nil {
		return DiffDelta{}, fmt.Errorf("get delta: %w", err)
	}

	return DiffDelta{
		Status:  delta.Status,
		OldFile: diffFileFromNative(delta.OldFile),
		NewFile: diffFileFromNative(delta.NewFile),
	}, nil
}

// FindRenames pairs deleted and added files with similar content.
func (d *Diff) FindRenames() error {
	opts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return fmt.Errorf("get find options: %w", err)
	}

	opts.Flags = git2go.DiffFindRenames

	err = d.diff.FindSimilar(&opts)
	if err != nil {
		return fmt.Errorf("find renames: %w", err)
	}

	return nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	err := d.diff.Free()
	d.diff = nil
	// Consume error - Free() errors are non-actionable in cleanup.
	if err != nil {
		return
	}
}

// DiffDelta represents a file change in a diff.
type DiffDelta struct {
	Status  git2go.Delta
	OldFile DiffFile
	NewFile DiffFile
}

// DiffFile represents a file in a diff delta.
type DiffFile struct {
	Path string
	Hash Hash
	Size int64
	Mode uint16
}

func diffFileFromNative(f git2go.DiffFile) DiffFile {
	return DiffFile{Path: f.Path, Hash: HashFromOid(f.Oid), Size: int64(f.Size), Mode: f.Mode}
}

func (f DiffFile) entry() ChangeEntry {
	return ChangeEntry{Name: f.Path, Hash: f.Hash, Size: f.Size, Mode: f.Mode}
}

// UnifiedDiff renders a change as unified diff text with libgit2's blob
// differ. The missing side of an insertion or deletion is printed as /dev/null.
func (r *Repository) UnifiedDiff(_ context.Context, change *Change, contextLines int) ([]byte, error) {
	var oldBlob, newBlob *git2go.Blob

	if !change.From.Hash.IsZero() {
		blob, err := r.LookupBlob(change.From.Hash)
		if err != nil {
			return nil, accessError("read blob", change.From.Hash, err)
		}
		defer blob.Free()

		oldBlob = blob.blob
	}

	if !change.To.Hash.IsZero() {
		blob, err := r.LookupBlob(change.To.Hash)
		if err != nil {
			return nil, accessError("read blob", change.To.Hash, err)
		}
		defer blob.Free()

		newBlob = blob.blob
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	opts.ContextLines = uint32(max(contextLines, 0))

	var buf bytes.Buffer

	WriteUnifiedHeader(&buf, change)

	fileCallback := func(_ git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		return func(hunk git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			buf.WriteString(hunk.Header)

			return func(line git2go.DiffLine) error {
				writeDiffLine(&buf, line)

				return nil
			}, nil
		}, nil
	}

	err = git2go.DiffBlobs(oldBlob, change.From.Name, newBlob, change.To.Name, &opts, fileCallback, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff blobs: %w", err)
	}

	return buf.Bytes(), nil
}

func writeDiffLine(buf *bytes.Buffer, line git2go.DiffLine) {
	switch line.Origin {
	case git2go.DiffLineContext, git2go.DiffLineAddition, git2go.DiffLineDeletion:
		buf.WriteByte(byte(line.Origin))
		buf.WriteString(line.Content)
	case git2go.DiffLineContextEOFNL, git2go.DiffLineAddEOFNL, git2go.DiffLineDelEOFNL:
		// Content already carries the "\ No newline at end of file" marker.
		buf.WriteString(line.Content)
	case git2go.DiffLineFileHdr, git2go.DiffLineHunkHdr, git2go.DiffLineBinary:
		return
	}
}

// WriteUnifiedHeader writes the "--- a/old" and "+++ b/new" header lines of a change.
func WriteUnifiedHeader(buf *bytes.Buffer, change *Change) {
	oldPath, newPath := DevNull, DevNull

	if !change.From.Hash.IsZero() {
		oldPath = "a/" + change.From.Name
	}

	if !change.To.Hash.IsZero() {
		newPath = "b/" + change.To.Name
	}

	fmt.Fprintf(buf, "--- %s\n+++ %s\n", oldPath, newPath)
}
