package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "lowercases and strips punctuation",
			input:    "How do I fix ECONNREFUSED?!",
			expected: []string{"how", "do", "i", "fix", "econnrefused"},
		},
		{
			name:     "collapses separators",
			input:    "rate-limiting:  token/bucket",
			expected: []string{"rate", "limiting", "token", "bucket"},
		},
		{
			name:     "keeps digits",
			input:    "HTTP 429 errors",
			expected: []string{"http", "429", "errors"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.expected, Tokens(tt.input))
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{
			name:     "identical sets",
			a:        []string{"go", "http", "retry"},
			b:        []string{"retry", "go", "http"},
			expected: 1,
		},
		{
			name:     "disjoint sets",
			a:        []string{"go"},
			b:        []string{"rust"},
			expected: 0,
		},
		{
			name:     "partial overlap",
			a:        []string{"a", "b", "c", "d"},
			b:        []string{"a", "b", "c", "e"},
			expected: 3.0 / 5.0,
		},
		{
			name:     "duplicates collapse to set semantics",
			a:        []string{"go", "go", "go"},
			b:        []string{"go"},
			expected: 1,
		},
		{
			name:     "both empty",
			a:        nil,
			b:        nil,
			expected: 1,
		},
		{
			name:     "one empty",
			a:        []string{"go"},
			b:        nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTextJaccard_NormalizationMakesPhrasingsMatch(t *testing.T) {
	// Same words, different casing and punctuation.
	sim := TextJaccard("How to fix: rate-limiting in Go?", "how to fix rate limiting in go")
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1,
		},
		{
			name:     "dimension mismatch",
			a:        []float32{1, 2},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0},
			b:        []float32{1, 1},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}
