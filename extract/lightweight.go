package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/poiesic/weavit/core"
)

// lightweightProcessor handles markup and data formats that need only
// light transformation: markdown, HTML, JSON, YAML, XML, and CSV.
type lightweightProcessor struct{}

var _ Processor = (*lightweightProcessor)(nil)

func (p *lightweightProcessor) Process(_ context.Context, input Input) (*Result, error) {
	switch input.Format {
	case core.FormatHTML:
		return p.processHTML(input)
	case core.FormatXML:
		return p.processXML(input)
	case core.FormatMarkdown:
		return p.processMarkdown(input)
	default:
		// json, yaml, csv and anything else routed here pass through.
		text := coerceUTF8(input.Data)
		return &Result{
			Text: text,
			Metadata: Metadata{
				Title: titleFromPath(input.Path),
				Words: countWords(text),
			},
		}, nil
	}
}

func (p *lightweightProcessor) processMarkdown(input Input) (*Result, error) {
	text := coerceUTF8(input.Data)

	title := firstMarkdownHeading(text)
	if title == "" {
		title = titleFromPath(input.Path)
	}

	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: title,
			Words: countWords(text),
		},
	}, nil
}

// firstMarkdownHeading returns the text of the first ATX heading, if any.
func firstMarkdownHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		trimmed := strings.TrimLeft(line, "#")
		if len(line)-len(trimmed) > 6 || !strings.HasPrefix(trimmed, " ") {
			continue
		}
		return strings.TrimSpace(trimmed)
	}
	return ""
}

// blockTags end a line of rendered text when their element closes.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "table": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "header": true, "footer": true, "nav": true,
}

func (p *lightweightProcessor) processHTML(input Input) (*Result, error) {
	z := html.NewTokenizer(bytes.NewReader(input.Data))

	var (
		b       strings.Builder
		title   strings.Builder
		skip    bool // inside script or style raw text
		inTitle bool
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("html tokenize: %w", err)
			}
			text := normalizeText(b.String())
			t := strings.TrimSpace(title.String())
			if t == "" {
				t = titleFromPath(input.Path)
			}
			return &Result{
				Text: text,
				Metadata: Metadata{
					Title: t,
					Words: countWords(text),
				},
			}, nil

		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip = true
			case "title":
				inTitle = true
			case "br":
				b.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				skip = false
			case tag == "title":
				inTitle = false
			case blockTags[tag]:
				b.WriteByte('\n')
			}

		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}

		case html.TextToken:
			if skip {
				continue
			}
			text := string(z.Text())
			if inTitle {
				title.WriteString(text)
				continue
			}
			b.WriteString(text)
			b.WriteByte(' ')
		}
	}
}

func (p *lightweightProcessor) processXML(input Input) (*Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(input.Data))
	// Ingested XML is not always well-formed by the letter of the spec.
	dec.Strict = false

	var b strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml decode: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
			b.WriteByte(' ')
		case xml.EndElement:
			b.WriteByte('\n')
		}
	}

	text := normalizeText(b.String())
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: titleFromPath(input.Path),
			Words: countWords(text),
		},
	}, nil
}
