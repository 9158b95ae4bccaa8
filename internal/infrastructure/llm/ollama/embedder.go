package ollama

import (
	"context"
	"fmt"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed maps texts to vectors in one batched call, order-preserving.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.client.acquireModel(ctx, e.client.embedModel); err != nil {
		return nil, domain.WrapError(domain.ErrEmbedderUnavailable, "embed", err)
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.call(ctx, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedderUnavailable, "embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbedderUnavailable, "embed",
			fmt.Errorf("expected %d vectors, got %d", len(texts), len(response.Embeddings)))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedderUnavailable, "embed query",
			fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}
