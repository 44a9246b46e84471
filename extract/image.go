package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ocrProcessor recognizes text in images by shelling out to tesseract.
// The "stdout" output target makes the recognized text the process
// output; nothing is written next to the input file.
type ocrProcessor struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Processor = (*ocrProcessor)(nil)

func (p *ocrProcessor) Process(ctx context.Context, input Input) (*Result, error) {
	path, cleanup, err := materialize(input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, path, "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tesseract %s: %w", input.Path, ctxErr)
		}
		return nil, fmt.Errorf("tesseract %s: %w: %s", input.Path, err, tailOf(stderr.Bytes()))
	}

	text := normalizeText(coerceUTF8(stdout.Bytes()))
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: titleFromPath(input.Path),
			Words: countWords(text),
		},
	}, nil
}
