package textutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinary_EmptyData(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte{}))
}

func TestIsBinary_PureText(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary([]byte("hello world\n")))
}

func TestIsBinary_NullByte(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBinary([]byte("hello\x00world")))
}

func TestIsBinary_NullAtSniffBoundary(t *testing.T) {
	t.Parallel()

	data := make([]byte, BinarySniffLength)
	data[BinarySniffLength-1] = 0x00

	assert.True(t, IsBinary(data))
}

func TestIsBinary_NullBeyondSniffBoundary(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("a", BinarySniffLength+100))
	data[BinarySniffLength+50] = 0x00

	assert.False(t, IsBinary(data))
}

func TestNormalize_UTF8(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	require.NoError(t, err)

	got, err := n.Normalize([]byte("  héllo wörld \n"))
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", got)
}

func TestNormalize_NULBecomesSpace(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	require.NoError(t, err)

	got, err := n.Normalize([]byte("\x00foo\x00bar\x00"))
	require.NoError(t, err)
	assert.Equal(t, "foo bar", got)
}

func TestNormalize_Latin1Fallback(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	require.NoError(t, err)

	// 0xE9 is "é" in ISO-8859-1 and invalid as a lone UTF-8 byte.
	got, err := n.Normalize([]byte{'c', 'a', 'f', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestNormalize_NFC(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	require.NoError(t, err)

	// "e" followed by U+0301 COMBINING ACUTE ACCENT composes to U+00E9.
	got, err := n.Normalize([]byte("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\u00e9", got)
}

func TestNormalize_UTF16WithBOM(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(CodecUTF16)
	require.NoError(t, err)

	got, err := n.Normalize([]byte{0xFE, 0xFF, 0x00, 'h', 0x00, 'i', 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	_, err = n.Normalize([]byte{0x00, 'h', 0x00, 'i'})
	require.Error(t, err)
}

func TestNormalize_AllCodecsFail(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(CodecUTF8, CodecASCII)
	require.NoError(t, err)

	_, err = n.Normalize([]byte{0xFF, 0xFE, 'x'}, "abc123", "main.go")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, []string{"abc123", "main.go"}, decodeErr.Context)
	assert.Len(t, decodeErr.Errs, 2)
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
	assert.True(t, errors.Is(err, ErrNonASCII))
	assert.Contains(t, err.Error(), "abc123 main.go")
}

func TestNewNormalizer_UnknownCodec(t *testing.T) {
	t.Parallel()

	_, err := NewNormalizer("utf-8", "klingon")
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestLookupCodec_Aliases(t *testing.T) {
	t.Parallel()

	for alias, want := range map[string]string{
		"UTF8":       CodecUTF8,
		"latin1":     CodecLatin1,
		"ISO-8859-1": CodecLatin1,
		"cp1252":     CodecWindows1252,
		"us-ascii":   CodecASCII,
		"utf16":      CodecUTF16,
	} {
		codec, err := LookupCodec(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, codec.Name, alias)
	}
}

func TestNormalizer_Codecs(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	require.NoError(t, err)
	assert.Equal(t, DefaultCodecs, n.Codecs())
}
