package embeddings

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrEmptyEmbedding indicates the provider returned no vector for the input.
var ErrEmptyEmbedding = errors.New("provider returned empty embedding")

type geminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder backed by the Gemini embedding API.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	return &geminiEmbedder{client: client, model: model}, nil
}

func (g *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", text, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return resp.Embeddings[0].Values, nil
}
