// Package changeset walks commit history and folds per-file unified diffs
// into one text per commit.
package changeset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

// Unified diff header prefixes.
const (
	oldHeaderPrefix = "--- "
	newHeaderPrefix = "+++ "
)

// ErrShortPatch is returned by PatchBody for text with fewer than two
// lines starting with '+', '-' or ' ', such as a leaked binary marker.
// A headers-only patch is not short; its body is empty.
var ErrShortPatch = errors.New("patch has no unified body")

// Patch is the unified diff of one path between a commit and one parent.
// A Patch with empty Path and Text only announces its commit.
type Patch struct {
	Commit gitlib.Hash
	// Parent is zero for a root commit diffed against the empty tree.
	Parent gitlib.Hash
	Path   string
	Action gitlib.ChangeAction
	Text   []byte
}

// IsMarker reports whether the patch only opens a commit.
func (p Patch) IsMarker() bool {
	return p.Path == "" && len(p.Text) == 0
}

// Changeset is the aggregated document of one commit.
type Changeset struct {
	Commit gitlib.Hash
	Terms  []string
}

// DiffFormatError reports unified text whose first two lines are not the
// "--- " and "+++ " headers.
type DiffFormatError struct {
	Line int
	Want string
	Got  string
}

// Error implements error.
func (e *DiffFormatError) Error() string {
	return fmt.Sprintf("diff format: line %d: want %q header, got %q", e.Line, e.Want, e.Got)
}

// unifiedLines returns the lines of text starting with '+', ' ' or '-'.
func unifiedLines(text []byte) [][]byte {
	var lines [][]byte

	for line := range bytes.Lines(text) {
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}

		switch line[0] {
		case '+', ' ', '-':
			lines = append(lines, line)
		}
	}

	return lines
}

func validateHeaders(lines [][]byte) error {
	if !bytes.HasPrefix(lines[0], []byte(oldHeaderPrefix)) {
		return &DiffFormatError{Line: 1, Want: oldHeaderPrefix, Got: string(lines[0])}
	}

	if !bytes.HasPrefix(lines[1], []byte(newHeaderPrefix)) {
		return &DiffFormatError{Line: 2, Want: newHeaderPrefix, Got: string(lines[1])}
	}

	return nil
}

// ValidatePatch checks the two header lines of unified diff text.
func ValidatePatch(text []byte) error {
	lines := unifiedLines(text)
	if len(lines) < 2 {
		return ErrShortPatch
	}

	return validateHeaders(lines)
}

// PatchBody strips the headers and the one-character line markers from the
// unified lines of text and joins what remains with single spaces. Hunk
// headers and "\ No newline" markers are dropped.
func PatchBody(text []byte) ([]byte, error) {
	lines := unifiedLines(text)
	if len(lines) < 2 {
		return nil, ErrShortPatch
	}

	err := validateHeaders(lines)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer

	for i, line := range lines[2:] {
		if i > 0 {
			body.WriteByte(' ')
		}

		body.Write(line[1:])
	}

	return body.Bytes(), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
