package assembler

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text costs.
type TokenCounter interface {
	CountTokens(text string) int
}

// HeuristicCounter estimates 1.3 tokens per whitespace-separated word,
// rounded up. It needs no model data.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * 1.3))
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base".
// The BPE ranks are downloaded on first use unless TIKTOKEN_CACHE_DIR
// already holds them.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
