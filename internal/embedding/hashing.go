package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hyperjump/kotaeru/pkg/utils"
)

// HashingEmbedder embeds text with the feature-hashing trick: every term is
// hashed into one of Dimensions buckets with a hash-derived sign, and the
// resulting vector is L2-normalized. It needs no model or network access,
// is fully deterministic, and texts sharing vocabulary land near each other
// under cosine distance. Used as the test embedder and as the fallback
// provider when no model is configured.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a feature-hashing embedder with the given
// dimensionality. Non-positive values default to 384.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the normalized term-frequency vector of text under feature
// hashing. Text with no letters or digits embeds to the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, term := range hashTerms(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum32()
		// Low bit picks the sign, the rest pick the bucket, so sign and
		// bucket stay uncorrelated.
		idx := int((sum >> 1) % uint32(e.dimensions))
		if sum&1 == 1 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimensionality.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}

// hashTerms lowercases text and splits it into letter-and-digit runs, so
// "France?" and "france" hash to the same bucket.
func hashTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
