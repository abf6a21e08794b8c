package tokenizer_test

import (
	"strings"
	"testing"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens_KnownEncodings(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		encoding string
		minCount int64
		maxCount int64
	}{
		{"short text cl100k", "Hello world", "cl100k_base", 1, 5},
		{"medium text o200k", "The quick brown fox jumps over the lazy dog", "o200k_base", 5, 15},
		{"empty text", "", "cl100k_base", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := tokenizer.CountTokens(tt.text, tt.encoding)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.minCount)
			assert.LessOrEqual(t, count, tt.maxCount)
		})
	}
}

func TestCountTokens_UnknownEncodingFallsBack(t *testing.T) {
	text := strings.Repeat("word ", 20)
	count, err := tokenizer.CountTokens(text, "mystery_base")
	require.NoError(t, err)
	assert.Equal(t, tokenizer.EstimateTokens(text), count)
}

func TestEstimateTokens(t *testing.T) {
	assert.EqualValues(t, 0, tokenizer.EstimateTokens(""))
	assert.EqualValues(t, 0, tokenizer.EstimateTokens("   "))
	assert.EqualValues(t, 1, tokenizer.EstimateTokens("abc"))
	assert.EqualValues(t, 3, tokenizer.EstimateTokens("twelve chars"))
}
