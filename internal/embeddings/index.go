package embeddings

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Match is one similarity hit from the index.
type Match struct {
	CanonicalField string  `json:"canonical_field"`
	Similarity     float64 `json:"similarity"`
}

type indexed struct {
	field  string
	vector []float32
}

// Index is an append-only in-memory similarity index over canonical field
// names. Entries accumulate as mappings are validated; re-storing a field
// replaces its vector.
type Index struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []indexed
	byField map[string]int
}

// NewIndex creates an empty index backed by the given embedder.
func NewIndex(embedder Embedder) *Index {
	return &Index{
		embedder: embedder,
		byField:  make(map[string]int),
	}
}

// Store embeds the canonical field name and adds it to the index.
func (x *Index) Store(ctx context.Context, canonicalField string) error {
	vec, err := x.embedder.Embed(ctx, canonicalField)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if i, ok := x.byField[canonicalField]; ok {
		x.entries[i].vector = vec
		return nil
	}

	x.byField[canonicalField] = len(x.entries)
	x.entries = append(x.entries, indexed{field: canonicalField, vector: vec})
	return nil
}

// Query returns up to topK canonical fields most similar to the name,
// ordered by descending cosine similarity.
func (x *Index) Query(ctx context.Context, name string, topK int) ([]Match, error) {
	if topK < 1 {
		topK = 1
	}

	vec, err := x.embedder.Embed(ctx, name)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	matches := make([]Match, 0, len(x.entries))
	for _, e := range x.entries {
		matches = append(matches, Match{
			CanonicalField: e.field,
			Similarity:     cosine(vec, e.vector),
		})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].CanonicalField < matches[j].CanonicalField
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of indexed canonical fields.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
