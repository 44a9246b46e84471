package chunk

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports the token count of a chunk's content.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the BPE encoding used by the
// embedding models this pipeline targets.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for the given model name.
// Loading may fetch the BPE tables on first use; callers that need to
// stay offline should fall back to HeuristicCounter.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the exact BPE token count.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as one per four runes, rounded
// up. Used when the BPE tables are unavailable and in tests.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
