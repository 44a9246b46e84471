package extract

import "errors"

var (
	// ErrUnsupportedFormat is returned when a processor receives a format
	// it does not own. The detector and registry normally prevent this.
	ErrUnsupportedFormat = errors.New("format not supported by this processor")

	// ErrMalformedDocument is returned when a structured document is
	// missing the parts its format requires.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnsafeArchivePath is returned when an archive entry would escape
	// the extraction directory.
	ErrUnsafeArchivePath = errors.New("archive entry escapes the extraction directory")

	// ErrNoTranscriber is returned when transcription is requested but no
	// speech-to-text service was configured.
	ErrNoTranscriber = errors.New("no transcriber configured")
)
