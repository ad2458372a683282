// Package embedding turns text into fixed-dimension vectors. Providers:
// a local ONNX model (requires CGO), the OpenAI embeddings API, and a
// deterministic feature-hashing embedder that needs no model at all.
package embedding

import "context"

// Embedder produces vector embeddings for text. All embeddings from one
// embedder have the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
