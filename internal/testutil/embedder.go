// Package testutil provides shared testing utilities: a deterministic
// embedder and a PostgreSQL test container with the pgvector extension.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// HashEmbedder produces deterministic pseudo-random unit vectors derived from
// the input text. Identical texts always embed to identical vectors, distinct
// texts almost certainly to near-orthogonal ones, which is exactly the
// property similarity tests need without a model in the loop.
type HashEmbedder struct {
	Dimension int
}

// NewHashEmbedder creates an embedder producing vectors of the given
// dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{Dimension: dimension}
}

// Embed returns the deterministic unit vector for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8])) //nolint:gosec

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	vec := make([]float32, e.Dimension)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// EmbedBatch embeds each text independently, preserving order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
