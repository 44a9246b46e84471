package extract

import (
	"context"
)

// textProcessor is the generic fallback: raw bytes read as UTF-8 with
// invalid sequences replaced, title taken from the file name.
type textProcessor struct{}

var _ Processor = (*textProcessor)(nil)

func (p *textProcessor) Process(_ context.Context, input Input) (*Result, error) {
	text := coerceUTF8(input.Data)
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: titleFromPath(input.Path),
			Words: countWords(text),
		},
	}, nil
}
