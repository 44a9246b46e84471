package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/poiesic/weavit/core"
)

// grammars maps source formats to their tree-sitter grammar. Formats
// without a grammar fall back to line-based split points.
var grammars = map[core.Format]*sitter.Language{
	core.FormatGo:         sitter.NewLanguage(golang.Language()),
	core.FormatPython:     sitter.NewLanguage(python.Language()),
	core.FormatJavaScript: sitter.NewLanguage(javascript.Language()),
	core.FormatJava:       sitter.NewLanguage(java.Language()),
}

// codeProcessor extracts source files verbatim and marks declaration
// starts as chunk-friendly split points.
type codeProcessor struct {
	logger *slog.Logger
}

var _ Processor = (*codeProcessor)(nil)

func (p *codeProcessor) Process(_ context.Context, input Input) (*Result, error) {
	text := coerceUTF8(input.Data)
	meta := Metadata{
		Title:    filepath.Base(input.Path),
		Words:    countWords(text),
		Language: string(input.Format),
	}

	lang, ok := grammars[input.Format]
	if !ok {
		return &Result{Text: text, Metadata: meta, SplitPoints: lineSplitPoints(text)}, nil
	}

	// A parser is not safe for concurrent use; build one per call.
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	// Parse the coerced bytes so byte offsets line up with Text.
	src := []byte(text)
	tree := parser.Parse(src, nil)
	if tree == nil {
		p.logger.Warn("code parse failed, falling back to line boundaries", "path", input.Path)
		return &Result{Text: text, Metadata: meta, SplitPoints: lineSplitPoints(text)}, nil
	}
	root := tree.RootNode()
	if root == nil {
		return &Result{Text: text, Metadata: meta, SplitPoints: lineSplitPoints(text)}, nil
	}

	return &Result{
		Text:        text,
		Metadata:    meta,
		SplitPoints: runeOffsets(src, declarationStarts(root)),
	}, nil
}

// declarationStarts returns the byte offsets of the root's top-level
// declarations. A run of comments sitting directly above a declaration
// is treated as its doc comment and kept on the declaration's side of
// the boundary.
func declarationStarts(root *sitter.Node) []uint {
	var offs []uint
	var commentStart, commentEnd uint
	hasComment := false

	for i := uint(0); i < uint(root.ChildCount()); i++ {
		child := root.Child(i)
		kind := child.Kind()
		if isCommentKind(kind) {
			if !hasComment || child.StartByte() > commentEnd+2 {
				commentStart = child.StartByte()
				hasComment = true
			}
			commentEnd = child.EndByte()
			continue
		}
		if !isNodeKindWord(kind) {
			hasComment = false
			continue
		}
		start := child.StartByte()
		if hasComment && start <= commentEnd+2 {
			start = commentStart
		}
		hasComment = false
		offs = append(offs, start)
	}
	return offs
}

// isCommentKind matches comment node kinds across grammars: Go, Python,
// and JavaScript use "comment", Java uses "line_comment" and
// "block_comment".
func isCommentKind(kind string) bool {
	return kind == "comment" || strings.HasSuffix(kind, "_comment")
}

// isNodeKindWord filters out anonymous punctuation nodes, whose kinds
// are their literal token text.
func isNodeKindWord(kind string) bool {
	if kind == "" {
		return false
	}
	for _, r := range kind {
		if r != '_' && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// runeOffsets converts increasing byte offsets into src to rune offsets.
func runeOffsets(src []byte, byteOffs []uint) []int {
	out := make([]int, 0, len(byteOffs))
	k := 0
	runeIdx := 0
	for bytePos := 0; bytePos < len(src) && k < len(byteOffs); {
		for k < len(byteOffs) && int(byteOffs[k]) <= bytePos {
			out = append(out, runeIdx)
			k++
		}
		_, size := utf8.DecodeRune(src[bytePos:])
		bytePos += size
		runeIdx++
	}
	for k < len(byteOffs) {
		out = append(out, runeIdx)
		k++
	}
	return out
}

// lineSplitPoints returns rune offsets at the start of each non-blank
// line that follows one or more blank lines. Blank-line boundaries are
// the best structural signal available without a grammar.
func lineSplitPoints(text string) []int {
	var points []int
	offset := 0
	prevBlank := false
	for i, line := range strings.Split(text, "\n") {
		blank := strings.TrimSpace(line) == ""
		if i > 0 && !blank && prevBlank {
			points = append(points, offset)
		}
		prevBlank = blank
		offset += utf8.RuneCountInString(line) + 1
	}
	return points
}
