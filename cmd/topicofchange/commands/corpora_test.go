package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/config"
	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib/gitlibtest"
	"github.com/Sumatoshi-tech/topicofchange/pkg/persist"
)

func parserRepo(t *testing.T) *gitlibtest.Repo {
	t.Helper()

	tr := gitlibtest.NewRepo(t)
	tr.WriteFile("src/Parser.java", "class Parser {\n  void parseToken() {}\n}\n")
	tr.Commit("add parser")

	tr.WriteFile("src/Parser.java", "class Parser {\n  void parseToken() {}\n  void readHeader() {}\n}\n")
	tr.Commit("read header")

	return tr
}

func runCorpora(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	cmd := NewCorporaCommand()
	cmd.SetArgs(append(args, "--no-color", "--log-level", "warn"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	require.NoError(t, cmd.Execute())

	return out.String()
}

func TestCorporaCommand_BuildsThenReuses(t *testing.T) {
	tr := parserRepo(t)
	dir := t.TempDir()

	out := runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir)
	assert.Contains(t, out, "built  proj_files: 1 documents, 5 terms")
	assert.Contains(t, out, "built  proj_changesets: 2 documents, 5 terms")
	assert.Contains(t, out, "blob cache:")

	changesets, err := persist.Load(dir, "proj_changesets")
	require.NoError(t, err)
	assert.Equal(t, persist.KindChangesets, changesets.Manifest.Kind)
	assert.Equal(t, 2, changesets.Manifest.Documents)
	assert.Equal(t, config.DefaultRef, changesets.Manifest.Ref)
	assert.NotEmpty(t, changesets.Manifest.Head)

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir)
	assert.Contains(t, out, "reused proj_files")
	assert.Contains(t, out, "reused proj_changesets")

	tr.WriteFile("README.md", "topics of change\n")
	tr.Commit("readme")

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir, "--kind", "changesets")
	assert.Contains(t, out, "built  proj_changesets: 3 documents")
	assert.NotContains(t, out, "proj_files")

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir, "--kind", "changesets", "--rebuild")
	assert.Contains(t, out, "built  proj_changesets: 3 documents")
}

func TestCorporaCommand_RebuildsWhenOptionsChange(t *testing.T) {
	tr := parserRepo(t)
	dir := t.TempDir()

	out := runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir, "--limit", "1")
	assert.Contains(t, out, "built  proj_changesets: 1 documents")

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir)
	assert.Contains(t, out, "reused proj_files")
	assert.Contains(t, out, "built  proj_changesets: 2 documents")

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir)
	assert.Contains(t, out, "reused proj_changesets")

	out = runCorpora(t, tr.Path, "--name", "proj", "--output-dir", dir, "--kind", "files", "--languages", "Go")
	assert.Contains(t, out, "built  proj_files: 0 documents")
}

func TestCorporaCommand_EnginesWriteSameCorpus(t *testing.T) {
	tr := parserRepo(t)
	myersDir, nativeDir := t.TempDir(), t.TempDir()

	runCorpora(t, tr.Path, "--name", "p", "--kind", "changesets", "--output-dir", myersDir, "--engine", "myers")
	runCorpora(t, tr.Path, "--name", "p", "--kind", "changesets", "--output-dir", nativeDir,
		"--engine", "native", "--blob-cache-size", "0")

	myers, err := os.ReadFile(filepath.Join(myersDir, "p_changesets.mallet"))
	require.NoError(t, err)

	native, err := os.ReadFile(filepath.Join(nativeDir, "p_changesets.mallet"))
	require.NoError(t, err)

	assert.Equal(t, string(myers), string(native))
	assert.Contains(t, string(myers), "header")
}

func TestCorporaCommand_CompressedOutput(t *testing.T) {
	tr := parserRepo(t)
	dir := t.TempDir()

	runCorpora(t, tr.Path, "--name", "z", "--kind", "files", "--output-dir", dir, "--compress")

	_, err := os.Stat(filepath.Join(dir, "z_files.mallet.lz4"))
	require.NoError(t, err)

	loaded, err := persist.Load(dir, "z_files")
	require.NoError(t, err)
	assert.True(t, loaded.Manifest.Compressed)
	assert.Equal(t, 1, loaded.Manifest.Documents)
}

func TestCorporaCommand_Errors(t *testing.T) {
	tr := parserRepo(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"kind", []string{tr.Path, "--kind", "commits"}, ErrUnknownKind},
		{"engine", []string{tr.Path, "--engine", "patience"}, config.ErrInvalidEngine},
		{"since", []string{tr.Path, "--since", "last tuesday", "--output-dir", t.TempDir()}, gitlib.ErrInvalidTimeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCorporaCommand()
			cmd.SetArgs(append(tt.args, "--no-color"))
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			require.ErrorIs(t, cmd.Execute(), tt.want)
		})
	}
}

func TestCorporaCommand_NotARepository(t *testing.T) {
	cmd := NewCorporaCommand()
	cmd.SetArgs([]string{t.TempDir(), "--no-color", "--output-dir", t.TempDir()})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	require.Error(t, cmd.Execute())
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topicofchange.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diff:\n  engine: myers\nrepository:\n  limit: 10\ncorpus:\n  min_length: 3\n"), 0o600))

	cmd := NewCorporaCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--engine", "native", "--limit", "5", "--languages", "Go,Java", "--compress"}))

	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, config.EngineNative, cfg.Diff.Engine)
	assert.Equal(t, 5, cfg.Repository.Limit)
	assert.Equal(t, []string{"Go", "Java"}, cfg.Corpus.Languages)
	assert.True(t, cfg.Output.Compress)
	assert.Equal(t, 3, cfg.Corpus.MinLength)
	assert.Equal(t, config.DefaultRef, cfg.Repository.Ref)
}
