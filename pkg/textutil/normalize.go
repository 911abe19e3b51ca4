package textutil

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// Codec names accepted by NewNormalizer.
const (
	CodecUTF8        = "utf-8"
	CodecUTF16       = "utf-16"
	CodecLatin1      = "latin-1"
	CodecWindows1252 = "windows-1252"
	CodecASCII       = "ascii"
)

// DefaultCodecs is the decode order used when none is configured. latin-1
// accepts every byte sequence, so with this order decoding never fails.
var DefaultCodecs = []string{CodecUTF8, CodecLatin1, CodecASCII}

// Sentinel errors.
var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrInvalidUTF8  = errors.New("invalid utf-8")
	ErrNonASCII     = errors.New("non-ascii byte")
)

// Codec decodes raw bytes into a string or reports that it cannot.
type Codec struct {
	Name   string
	decode func([]byte) (string, error)
}

// Decode runs the codec.
func (c Codec) Decode(raw []byte) (string, error) {
	return c.decode(raw)
}

// LookupCodec returns the codec with the given name. Names are case-insensitive
// and accept the common aliases utf8, latin1, iso-8859-1, cp1252 and us-ascii.
func LookupCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case CodecUTF8, "utf8":
		return Codec{Name: CodecUTF8, decode: decodeUTF8}, nil
	case CodecUTF16, "utf16":
		return Codec{Name: CodecUTF16, decode: decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))}, nil
	case CodecLatin1, "latin1", "iso-8859-1":
		return Codec{Name: CodecLatin1, decode: decodeWith(charmap.ISO8859_1)}, nil
	case CodecWindows1252, "cp1252":
		return Codec{Name: CodecWindows1252, decode: decodeWith(charmap.Windows1252)}, nil
	case CodecASCII, "us-ascii":
		return Codec{Name: CodecASCII, decode: decodeASCII}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func decodeUTF8(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}

	return string(raw), nil
}

func decodeASCII(raw []byte) (string, error) {
	for i, b := range raw {
		if b >= utf8.RuneSelf {
			return "", fmt.Errorf("%w at offset %d", ErrNonASCII, i)
		}
	}

	return string(raw), nil
}

func decodeWith(enc encoding.Encoding) func([]byte) (string, error) {
	return func(raw []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}

		return string(out), nil
	}
}

// DecodeError reports that every configured codec rejected the input.
type DecodeError struct {
	// Context identifies the input, e.g. commit hash and path.
	Context []string
	// Errs holds one error per attempted codec, in order.
	Errs []error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", strings.Join(e.Context, " "), errors.Join(e.Errs...))
}

// Unwrap returns the per-codec errors.
func (e *DecodeError) Unwrap() []error {
	return e.Errs
}

// Normalizer turns raw bytes into NFC-normalized text using an ordered list
// of codecs. It is immutable and safe for concurrent use.
type Normalizer struct {
	codecs []Codec
}

// NewNormalizer builds a normalizer trying the named codecs in order.
// With no names, DefaultCodecs is used.
func NewNormalizer(names ...string) (*Normalizer, error) {
	if len(names) == 0 {
		names = DefaultCodecs
	}

	codecs := make([]Codec, 0, len(names))

	for _, name := range names {
		codec, err := LookupCodec(name)
		if err != nil {
			return nil, err
		}

		codecs = append(codecs, codec)
	}

	return &Normalizer{codecs: codecs}, nil
}

// Codecs returns the codec names in decode order.
func (n *Normalizer) Codecs() []string {
	names := make([]string, len(n.codecs))
	for i, c := range n.codecs {
		names[i] = c.Name
	}

	return names
}

// Normalize decodes raw with the first codec that accepts it, replaces NUL
// characters with spaces and trims surrounding whitespace. context is
// attached to the DecodeError returned when no codec accepts the input.
// NULs are replaced after decoding so that UTF-16 input survives; for the
// byte-oriented codecs the result is the same as replacing NUL bytes first.
func (n *Normalizer) Normalize(raw []byte, context ...string) (string, error) {
	errs := make([]error, 0, len(n.codecs))

	for _, codec := range n.codecs {
		text, err := codec.Decode(raw)
		if err == nil {
			text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", " "))

			return norm.NFC.String(text), nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", codec.Name, err))
	}

	return "", &DecodeError{Context: slices.Clone(context), Errs: errs}
}
