package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeContentText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "simple text showing",
			stream: `BT /F1 12 Tf (Hello World) Tj ET`,
			want:   "Hello World \n",
		},
		{
			name:   "TJ array with kerning numbers",
			stream: `BT [(He) -30 (llo)] TJ ET`,
			want:   "Hello \n",
		},
		{
			name:   "positioning starts a new line",
			stream: `(line1) Tj 0 -14 Td (line2) Tj`,
			want:   "line1 \nline2 ",
		},
		{
			name:   "quote operator shows text",
			stream: `(first) Tj (second) '`,
			want:   "first second ",
		},
		{
			name:   "escaped parens and octal",
			stream: `(a\(b\)c \101\102) Tj`,
			want:   "a(b)c AB ",
		},
		{
			name:   "balanced nested parens",
			stream: `(before (inner) after) Tj`,
			want:   "before (inner) after ",
		},
		{
			name:   "hex string",
			stream: `<48656C6C6F> Tj`,
			want:   "Hello ",
		},
		{
			name:   "two byte glyph codes drop their NUL padding",
			stream: `<00480069> Tj`,
			want:   "Hi ",
		},
		{
			name:   "strings without a showing operator are not text",
			stream: `(gone) BT (shown) Tj`,
			want:   "shown ",
		},
		{
			name:   "dictionaries and names carry no text",
			stream: `<< /Length 42 /Type /XObject >> (real) Tj`,
			want:   "real ",
		},
		{
			name:   "comments are skipped",
			stream: "% (not text)\n(real) Tj",
			want:   "real ",
		},
		{
			name:   "empty stream",
			stream: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeContentText([]byte(tt.stream)))
		})
	}
}

func TestReadLiteralString(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		wantNext int
	}{
		{`(plain)`, "plain", 7},
		{`(a(b)c) rest`, "a(b)c", 7},
		{`(tab\there)`, "tab\there", 11},
		{`(unterminated`, "unterminated", 13},
	}
	for _, tt := range tests {
		got, next := readLiteralString([]byte(tt.in), 0)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantNext, next, tt.in)
	}
}

func TestReadHexString(t *testing.T) {
	got, next := readHexString([]byte(`<48656C6C6F>`), 0)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, 12, next)

	// odd digit count is padded with zero
	got, _ = readHexString([]byte(`<48657>`), 0)
	assert.Equal(t, "Hep", got)

	// whitespace inside hex strings is legal
	got, _ = readHexString([]byte(`<48 65>`), 0)
	assert.Equal(t, "He", got)
}

func TestCleanDecodedText(t *testing.T) {
	assert.Equal(t, "Hi", cleanDecodedText("\x00H\x00i"))
	assert.Equal(t, "a\nb\tc", cleanDecodedText("a\nb\tc"))
	assert.Equal(t, "ab", cleanDecodedText("a\x01\x02b"))
}
