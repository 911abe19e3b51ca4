package changeset_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/changeset"
	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib/gitlibtest"
)

type fieldsPreprocessor struct{}

func (fieldsPreprocessor) Process(raw []byte, _ ...string) ([]string, error) {
	return strings.Fields(string(raw)), nil
}

func TestRenderersAgreeOnLibgit2Repository(t *testing.T) {
	tr := gitlibtest.NewRepo(t)
	tr.WriteFile("main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	tr.WriteFile("logo.bin", "\x00\x01\x02")
	tr.Commit("initial")
	tr.WriteFile("main.go", "package main\n\nfunc main() {\n\tprintln(\"bye\")\n}\n")
	tr.Remove("logo.bin")
	head := tr.Commit("change greeting")

	repo := tr.Open()
	ctx := context.Background()

	build := func(r changeset.Renderer) []changeset.Changeset {
		ext := changeset.NewExtractor(repo, changeset.WithRenderer(r))
		w := changeset.NewWalker(repo, ext)

		var docs []changeset.Changeset

		for cs, err := range changeset.Aggregate(ctx, w.Patches(ctx, head), fieldsPreprocessor{}, nil) {
			require.NoError(t, err)

			docs = append(docs, cs)
		}

		assert.Equal(t, 2, ext.Stats().Binary)

		return docs
	}

	myers := build(changeset.NewMyersRenderer(changeset.DefaultContextLines))
	native := build(changeset.NewNativeRenderer(repo, changeset.DefaultContextLines))

	require.Len(t, myers, 2)
	assert.Equal(t, myers, native)
	assert.Equal(t, head, myers[0].Commit)
	assert.Contains(t, myers[0].Terms, "println(\"bye\")")
	assert.Contains(t, myers[0].Terms, "println(\"hi\")")
}
