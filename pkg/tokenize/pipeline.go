package tokenize

import (
	"strings"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
)

// Pipeline is the preprocessing shared by every corpus source:
// normalize, tokenize, split identifiers, lower-case, filter.
// It holds no mutable state and may be shared.
type Pipeline struct {
	normalizer  *textutil.Normalizer
	filter      *Filter
	split       bool
	lower       bool
	removeStops bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSplit toggles identifier splitting.
func WithSplit(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.split = enabled }
}

// WithLower toggles lower-casing.
func WithLower(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.lower = enabled }
}

// WithStopwordRemoval toggles stopword, punctuation and number removal.
// The minimum length check applies either way.
func WithStopwordRemoval(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.removeStops = enabled }
}

// NewPipeline creates a pipeline with splitting, lower-casing and stopword
// removal enabled.
func NewPipeline(normalizer *textutil.Normalizer, filter *Filter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		normalizer:  normalizer,
		filter:      filter,
		split:       true,
		lower:       true,
		removeStops: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process decodes raw bytes and returns the resulting terms. context
// identifies the input in a *textutil.DecodeError.
func (p *Pipeline) Process(raw []byte, context ...string) ([]string, error) {
	text, err := p.normalizer.Normalize(raw, context...)
	if err != nil {
		return nil, err
	}

	return p.ProcessText(text), nil
}

// ProcessText runs every stage after normalization.
func (p *Pipeline) ProcessText(text string) []string {
	words := Tokenize(text)

	if p.split {
		words = Split(words)
	}

	if p.lower {
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
	}

	if p.removeStops {
		return p.filter.Apply(words)
	}

	out := words[:0]

	for _, w := range words {
		if utf8.RuneCountInString(w) >= p.filter.MinLength() {
			out = append(out, w)
		}
	}

	return out
}
