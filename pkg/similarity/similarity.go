// Package similarity implements the two query-similarity measures used for
// deduplication: token Jaccard overlap for the keyword path and cosine
// similarity for the vector path.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Tokens normalizes text for keyword comparison: lowercase, punctuation
// stripped, split on whitespace. Duplicate tokens are kept; set semantics
// are applied by Jaccard.
func Tokens(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lowered)
	return strings.Fields(cleaned)
}

// Jaccard computes |A∩B| / |A∪B| over the token sets of a and b.
// Two empty sets are identical (1); one empty set matches nothing (0).
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// TextJaccard is Jaccard over the normalized tokens of two raw strings.
func TextJaccard(a, b string) float64 {
	return Jaccard(Tokens(a), Tokens(b))
}

// Cosine computes cosine similarity between two vectors. Mismatched
// dimensions or zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		normA += af * af
		normB += bf * bf
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
