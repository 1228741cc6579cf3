package core

import "context"

// EmbeddingProvider turns text into a fixed-dimension vector. Network
// I/O happens behind the context.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
