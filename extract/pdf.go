// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func (p *documentProcessor) processPDF(ctx context.Context, input Input) (*Result, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	rs := bytes.NewReader(input.Data)
	pages, err := api.PageCount(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("pdf page count: %w", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("pdf seek: %w", err)
	}
	mctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("pdf read: %w", err)
	}

	var b strings.Builder
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(mctx, page)
		if err != nil {
			// A single damaged page does not sink the document.
			p.logger.Warn("pdf page extraction failed",
				"path", input.Path, "page", page, "error", err)
			continue
		}
		if r == nil {
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			p.logger.Warn("pdf page read failed",
				"path", input.Path, "page", page, "error", err)
			continue
		}
		b.WriteString(decodeContentText(raw))
		b.WriteByte('\n')
	}

	text := normalizeText(b.String())
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: titleFromPath(input.Path),
			Pages: pages,
			Words: countWords(text),
		},
	}, nil
}

// decodeContentText recovers the text shown by a PDF page content stream.
// It walks the stream's tokens and emits the string operands consumed by
// the text-showing operators (Tj, TJ, ' and "). Literal string escapes
// and hex strings are resolved; text-positioning operators become
// whitespace so separate showings stay separated.
//
// This is a best-effort plain-text recovery: glyph text that depends on
// font CMaps decodes approximately, which is acceptable for indexing.
func decodeContentText(stream []byte) string {
	var out strings.Builder
	var pending []string

	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}

		case c == '(':
			s, next := readLiteralString(stream, i)
			pending = append(pending, s)
			i = next

		case c == '<' && i+1 < len(stream) && stream[i+1] == '<':
			i += 2 // dictionary open, carries no shown text

		case c == '<':
			s, next := readHexString(stream, i)
			pending = append(pending, s)
			i = next

		case c == '/':
			// name token
			i++
			for i < len(stream) && !isPDFDelim(stream[i]) && !isPDFSpace(stream[i]) {
				i++
			}

		case c == '[' || c == ']' || c == '{' || c == '}' || c == '>':
			i++

		case isPDFSpace(c):
			i++

		default:
			tok, next := readPDFToken(stream, i)
			i = next
			if tok == "" {
				i++
				continue
			}
			if c0 := tok[0]; (c0 >= '0' && c0 <= '9') || c0 == '+' || c0 == '-' || c0 == '.' {
				// Numeric operand. Kerning values inside a TJ array must
				// not discard the strings collected so far.
				continue
			}
			switch tok {
			case "Tj", "TJ", "'", `"`:
				flush()
				out.WriteByte(' ')
			case "Td", "TD", "T*", "ET":
				pending = pending[:0]
				out.WriteByte('\n')
			default:
				pending = pending[:0]
			}
		}
	}

	return cleanDecodedText(out.String())
}

// readLiteralString reads a ( ) literal starting at stream[start] == '('.
// It resolves the escape sequences and balanced inner parentheses and
// returns the decoded text plus the index just past the closing ')'.
func readLiteralString(stream []byte, start int) (string, int) {
	var b strings.Builder
	depth := 1
	i := start + 1
	for i < len(stream) && depth > 0 {
		c := stream[i]
		switch c {
		case '\\':
			i++
			if i >= len(stream) {
				break
			}
			e := stream[i]
			switch e {
			case 'n':
				b.WriteByte('\n')
				i++
			case 'r':
				b.WriteByte('\r')
				i++
			case 't':
				b.WriteByte('\t')
				i++
			case 'b', 'f':
				i++
			case '(', ')', '\\':
				b.WriteByte(e)
				i++
			case '\r':
				// escaped line break continues the string
				i++
				if i < len(stream) && stream[i] == '\n' {
					i++
				}
			case '\n':
				i++
			default:
				if e >= '0' && e <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(stream) && stream[i] >= '0' && stream[i] <= '7' {
						v = v*8 + int(stream[i]-'0')
						i++
						n++
					}
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
					i++
				}
			}
		case '(':
			depth++
			b.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// readHexString reads a < > hex literal starting at stream[start] == '<'.
func readHexString(stream []byte, start int) (string, int) {
	var digits []byte
	i := start + 1
	for i < len(stream) && stream[i] != '>' {
		c := stream[i]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(stream) {
		i++ // consume '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	buf := make([]byte, len(digits)/2)
	if _, err := hex.Decode(buf, digits); err != nil {
		return "", i
	}
	return string(buf), i
}

func readPDFToken(stream []byte, start int) (string, int) {
	i := start
	for i < len(stream) && !isPDFDelim(stream[i]) && !isPDFSpace(stream[i]) {
		i++
	}
	return string(stream[start:i]), i
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// cleanDecodedText strips the control bytes that two-byte glyph codes
// leave behind and coerces the rest to valid UTF-8. Dropping NUL turns
// the common \x00H\x00i pattern back into readable ASCII.
func cleanDecodedText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
