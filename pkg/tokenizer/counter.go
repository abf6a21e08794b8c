// Package tokenizer counts prompt tokens for inference cost estimation.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// CountTokens returns the token count for text under the named encoding.
// Known tiktoken encodings are counted exactly; anything else uses
// character-based estimation.
func CountTokens(text, encoding string) (int64, error) {
	var enc tokenizer.Codec
	var err error

	switch encoding {
	case "o200k_base":
		enc, err = tokenizer.Get(tokenizer.O200kBase)
	case "cl100k_base":
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
	default:
		return EstimateTokens(text), nil
	}

	if err != nil {
		return 0, fmt.Errorf("load encoding %s: %w", encoding, err)
	}

	ids, _, err := enc.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode text: %w", err)
	}

	return int64(len(ids)), nil
}

// EstimateTokens uses character-based estimation (4 chars per token on
// average). This is the fallback for unknown encodings.
func EstimateTokens(text string) int64 {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return 0
	}
	tokens := (len(text) + 3) / 4 // ceiling division by 4
	return int64(tokens)
}
