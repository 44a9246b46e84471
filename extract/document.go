package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/weavit/core"
)

// documentProcessor handles structured documents: PDF via pdfcpu and the
// OOXML family (docx, xlsx, pptx) via their inner XML parts.
type documentProcessor struct {
	logger *slog.Logger
}

var _ Processor = (*documentProcessor)(nil)

func (p *documentProcessor) Process(ctx context.Context, input Input) (*Result, error) {
	switch input.Format {
	case core.FormatPDF:
		return p.processPDF(ctx, input)
	case core.FormatDocx:
		return p.processDocx(input)
	case core.FormatXlsx:
		return p.processXlsx(input)
	case core.FormatPptx:
		return p.processPptx(input)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, input.Format)
	}
}
