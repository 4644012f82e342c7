// Package embeddings provides field-name embedding and an in-memory
// similarity index. Validated mappings feed the index; the scorer queries
// it to find the closest canonical matches for drifted fields.
package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder converts a field name into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const localDimensions = 256

// localEmbedder is a deterministic fallback embedder: character trigrams
// hashed into a fixed-size frequency vector, L2-normalized. No network,
// stable across runs, good enough for lexical closeness.
type localEmbedder struct{}

// NewLocalEmbedder creates the deterministic trigram embedder.
func NewLocalEmbedder() Embedder {
	return &localEmbedder{}
}

func (l *localEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, localDimensions)

	normalized := "^" + strings.ToLower(strings.ReplaceAll(text, "_", " ")) + "$"
	for i := 0; i+3 <= len(normalized); i++ {
		h := fnv.New32a()
		h.Write([]byte(normalized[i : i+3]))
		vec[h.Sum32()%localDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}
