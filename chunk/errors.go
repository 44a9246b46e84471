package chunk

import "errors"

// Chunker configuration errors
var (
	// ErrInvalidSize indicates a non-positive chunk window size.
	ErrInvalidSize = errors.New("chunk size must be greater than zero")

	// ErrInvalidOverlap indicates a negative overlap.
	ErrInvalidOverlap = errors.New("chunk overlap cannot be negative")

	// ErrOverlapTooLarge indicates an overlap that meets or exceeds the
	// window size, which would prevent the window from advancing.
	ErrOverlapTooLarge = errors.New("chunk overlap must be smaller than chunk size")

	// ErrNilTokenCounter indicates a nil TokenCounter option value.
	ErrNilTokenCounter = errors.New("token counter cannot be nil")
)
