package ai

import "errors"

var (
	// ErrTranscriptionUnsupported indicates the provider has no
	// transcription backend configured.
	ErrTranscriptionUnsupported = errors.New("transcription not supported by this provider")
)
