// Package embedding provides text embedding engines used for semantic
// finding recall. Engines are optional: when no API key is configured the
// store falls back to keyword matching.
package embedding

import "context"

// Engine produces dense vector embeddings for text.
type Engine interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// Name returns a human-readable engine name for logging.
	Name() string
}
