package embeddings_test

import (
	"context"
	"math"
	"testing"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := embeddings.NewLocalEmbedder()

	first, err := e.Embed(context.Background(), "account_name")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	second, err := e.Embed(context.Background(), "account_name")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestLocalEmbedderUnitNorm(t *testing.T) {
	e := embeddings.NewLocalEmbedder()

	vec, err := e.Embed(context.Background(), "created_at")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("vector norm = %f, want 1", math.Sqrt(sum))
	}
}

func TestIndexQueryExactMatch(t *testing.T) {
	ctx := context.Background()
	idx := embeddings.NewIndex(embeddings.NewLocalEmbedder())

	for _, field := range []string{"account_name", "email", "amount"} {
		if err := idx.Store(ctx, field); err != nil {
			t.Fatalf("store %s failed: %v", field, err)
		}
	}

	matches, err := idx.Query(ctx, "email", 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].CanonicalField != "email" {
		t.Errorf("top match = %s, want email", matches[0].CanonicalField)
	}
	if matches[0].Similarity < 0.999 {
		t.Errorf("exact match similarity = %f, want ~1", matches[0].Similarity)
	}
}

func TestIndexQueryRanksCloserNamesHigher(t *testing.T) {
	ctx := context.Background()
	idx := embeddings.NewIndex(embeddings.NewLocalEmbedder())

	for _, field := range []string{"account_name", "postal_code"} {
		if err := idx.Store(ctx, field); err != nil {
			t.Fatalf("store %s failed: %v", field, err)
		}
	}

	matches, err := idx.Query(ctx, "acct_name", 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if matches[0].CanonicalField != "account_name" {
		t.Errorf("top match = %s, want account_name", matches[0].CanonicalField)
	}
	if matches[0].Similarity <= matches[1].Similarity {
		t.Errorf("similarities not descending: %f then %f",
			matches[0].Similarity, matches[1].Similarity)
	}
}

func TestIndexStoreReplacesExisting(t *testing.T) {
	ctx := context.Background()
	idx := embeddings.NewIndex(embeddings.NewLocalEmbedder())

	if err := idx.Store(ctx, "amount"); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := idx.Store(ctx, "amount"); err != nil {
		t.Fatalf("re-store failed: %v", err)
	}

	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
}

func TestIndexQueryTopKBound(t *testing.T) {
	ctx := context.Background()
	idx := embeddings.NewIndex(embeddings.NewLocalEmbedder())

	for _, field := range []string{"a_one", "b_two", "c_three", "d_four"} {
		if err := idx.Store(ctx, field); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	matches, err := idx.Query(ctx, "a_one", 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}
