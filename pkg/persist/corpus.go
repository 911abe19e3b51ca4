package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
)

// Corpus kinds recorded in the manifest.
const (
	KindFiles      = "files"
	KindChangesets = "changesets"
)

// File name suffixes.
const (
	malletExtension     = ".mallet"
	lz4Extension        = ".lz4"
	dictionaryExtension = ".dict"
	manifestSuffix      = ".manifest"
)

// Manifest describes a persisted corpus. It is written after the corpus and
// dictionary files, so its presence marks a complete build.
type Manifest struct {
	Name       string    `yaml:"name"`
	Kind       string    `yaml:"kind"`
	Repository string    `yaml:"repository"`
	Ref        string    `yaml:"ref"`
	Head       string    `yaml:"head"`
	Options    string    `yaml:"options,omitempty"`
	Documents  int       `yaml:"documents"`
	Terms      int       `yaml:"terms"`
	Compressed bool      `yaml:"compressed"`
	CreatedAt  time.Time `yaml:"created_at"`
	Version    string    `yaml:"version,omitempty"`
}

// Paths are the files of one persisted corpus.
type Paths struct {
	Mallet     string
	Dictionary string
	Manifest   string
}

// CorpusPaths returns the file paths for corpus name in dir.
func CorpusPaths(dir, name string, compressed bool) Paths {
	mallet := name + malletExtension
	if compressed {
		mallet += lz4Extension
	}

	return Paths{
		Mallet:     filepath.Join(dir, mallet),
		Dictionary: filepath.Join(dir, name+dictionaryExtension),
		Manifest:   filepath.Join(dir, manifestPersister(name).Filename()),
	}
}

func manifestPersister(name string) *Persister[Manifest] {
	return NewPersister[Manifest](name+manifestSuffix, NewYAMLCodec())
}

// WriteOptions configures WriteCorpus and LoadOrBuild.
type WriteOptions struct {
	// Compress writes the Mallet file lz4 framed.
	Compress bool
	// Manifest supplies Kind, Repository, Ref, Head, Options and Version.
	// LoadOrBuild reuses a persisted corpus only if its Head and Options match
	// the non-empty values here.
	Manifest Manifest
	Logger   *slog.Logger
}

// WriteCorpus makes one pass over c and persists it as corpus name in dir.
// A failed pass leaves no manifest behind.
func WriteCorpus(ctx context.Context, dir, name string, c *corpus.Corpus, opts WriteOptions) (Manifest, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return Manifest{}, fmt.Errorf("create output dir: %w", err)
	}

	paths := CorpusPaths(dir, name, opts.Compress)

	err = os.Remove(paths.Manifest)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, fmt.Errorf("remove stale manifest: %w", err)
	}

	var docs int

	err = writeAtomic(paths.Mallet, func(w io.Writer) error {
		out := w

		var zw *lz4.Writer
		if opts.Compress {
			zw = lz4.NewWriter(w)
			out = zw
		}

		n, writeErr := WriteMallet(out, c.Entries(ctx), c.Dictionary())
		if writeErr != nil {
			return writeErr
		}

		docs = n

		if zw != nil {
			return zw.Close()
		}

		return nil
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("write corpus %s: %w", name, err)
	}

	err = writeAtomic(paths.Dictionary, func(w io.Writer) error {
		return WriteDictionary(w, c.Dictionary())
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("write dictionary %s: %w", name, err)
	}

	m := opts.Manifest
	m.Name = name
	m.Documents = docs
	m.Terms = c.Dictionary().Len()
	m.Compressed = opts.Compress

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	err = manifestPersister(name).Save(dir, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("write manifest %s: %w", name, err)
	}

	return m, nil
}

// ReadManifest reads the manifest of corpus name. A missing manifest
// wraps fs.ErrNotExist; an unparsable one wraps ErrCorruptCorpus.
func ReadManifest(dir, name string) (Manifest, error) {
	_, err := os.Stat(CorpusPaths(dir, name, false).Manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	m, err := manifestPersister(name).Load(dir)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrCorruptCorpus, err)
	}

	return *m, nil
}

// Loaded is a persisted corpus ready to iterate.
type Loaded struct {
	Manifest   Manifest
	Dictionary *corpus.Dictionary
	Source     *MalletSource
	// Reused is true when LoadOrBuild found a usable corpus on disk.
	Reused bool
}

// Corpus returns a corpus over the persisted documents and dictionary.
func (l Loaded) Corpus(ctx context.Context) (*corpus.Corpus, error) {
	return corpus.New(ctx, l.Source, corpus.WithDictionary(l.Dictionary), corpus.WithMetadata(true))
}

// Load opens persisted corpus name and checks that its files agree.
func Load(dir, name string) (Loaded, error) {
	m, err := ReadManifest(dir, name)
	if err != nil {
		return Loaded{}, err
	}

	paths := CorpusPaths(dir, name, m.Compressed)

	_, err = os.Stat(paths.Mallet)
	if err != nil {
		return Loaded{}, fmt.Errorf("%w: %w", ErrCorruptCorpus, err)
	}

	file, err := os.Open(paths.Dictionary)
	if err != nil {
		return Loaded{}, fmt.Errorf("%w: %w", ErrCorruptCorpus, err)
	}
	defer file.Close()

	dict, err := ReadDictionary(file)
	if err != nil {
		return Loaded{}, err
	}

	if dict.NumDocs() != m.Documents || dict.Len() != m.Terms {
		return Loaded{}, fmt.Errorf("%w: manifest says %d documents and %d terms, dictionary has %d and %d",
			ErrCorruptCorpus, m.Documents, m.Terms, dict.NumDocs(), dict.Len())
	}

	return Loaded{
		Manifest:   m,
		Dictionary: dict,
		Source:     NewMalletSource(paths.Mallet, m.Compressed),
	}, nil
}

// OptionsDigest returns a short stable digest of the YAML encoding of v,
// for Manifest.Options.
func OptionsDigest(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode build options: %w", err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:8]), nil
}

// stale returns why persisted manifest m does not match want, or "".
func stale(m, want Manifest) string {
	switch {
	case want.Head != "" && m.Head != want.Head:
		return "head moved"
	case want.Options != "" && m.Options != want.Options:
		return "build options changed"
	default:
		return ""
	}
}

// BuildFunc builds a corpus from the repository.
type BuildFunc func(ctx context.Context) (*corpus.Corpus, error)

// LoadOrBuild reuses persisted corpus name when it is complete and built
// from the expected head with the expected options, and otherwise builds
// and persists it. Rebuilding
// on a missing or corrupt corpus is the only retry the system performs.
func LoadOrBuild(ctx context.Context, dir, name string, build BuildFunc, opts WriteOptions) (Loaded, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	loaded, err := Load(dir, name)

	switch {
	case err == nil && stale(loaded.Manifest, opts.Manifest) == "":
		loaded.Reused = true
		logger.InfoContext(ctx, "reusing persisted corpus", "name", name, "documents", loaded.Manifest.Documents)

		return loaded, nil
	case err == nil:
		logger.InfoContext(ctx, "persisted corpus is stale", "name", name,
			"reason", stale(loaded.Manifest, opts.Manifest),
			"head", loaded.Manifest.Head, "want", opts.Manifest.Head)
	case errors.Is(err, fs.ErrNotExist):
		logger.InfoContext(ctx, "no persisted corpus", "name", name)
	case errors.Is(err, ErrCorruptCorpus):
		logger.WarnContext(ctx, "persisted corpus is corrupt, rebuilding", "name", name, "error", err)
	default:
		return Loaded{}, err
	}

	c, err := build(ctx)
	if err != nil {
		return Loaded{}, err
	}

	m, err := WriteCorpus(ctx, dir, name, c, opts)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Manifest:   m,
		Dictionary: c.Dictionary(),
		Source:     NewMalletSource(CorpusPaths(dir, name, m.Compressed).Mallet, m.Compressed),
	}, nil
}
