// Package qdrant adapts a Qdrant instance to the vector index port. Each
// logical collection maps to one Qdrant collection with cosine distance.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
)

type Index struct {
	baseURL    string
	httpClient *http.Client

	mu   sync.Mutex
	dims map[string]int
}

func NewIndex(baseURL string) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dims:       make(map[string]int),
	}
}

// GetOrCreate returns a handle without touching the server; the collection is
// materialized on the first Add, once the vector size is known.
func (ix *Index) GetOrCreate(_ context.Context, name string) (ports.Collection, error) {
	if name == "" {
		return nil, domain.ErrNoActiveCollection
	}
	return &Collection{ix: ix, name: name}, nil
}

// Replace drops any server-side state for name and hands out a fresh handle.
// The per-index lock serializes rebuild against concurrent handle resolution.
func (ix *Index) Replace(ctx context.Context, name string) (ports.Collection, error) {
	if name == "" {
		return nil, domain.ErrNoActiveCollection
	}
	if err := ix.deleteCollection(ctx, name); err != nil {
		return nil, err
	}
	ix.mu.Lock()
	delete(ix.dims, name)
	ix.mu.Unlock()
	return &Collection{ix: ix, name: name}, nil
}

func (ix *Index) Lookup(ctx context.Context, name string) (ports.Collection, error) {
	exists, err := ix.collectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNoActiveCollection)
	}
	return &Collection{ix: ix, name: name}, nil
}

func (ix *Index) Drop(ctx context.Context, name string) error {
	if err := ix.deleteCollection(ctx, name); err != nil {
		return err
	}
	ix.mu.Lock()
	delete(ix.dims, name)
	ix.mu.Unlock()
	return nil
}

type Collection struct {
	ix   *Index
	name string
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrLengthMismatch, "qdrant add",
			fmt.Errorf("%d chunks, %d vectors", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "qdrant add",
				fmt.Errorf("vector %d has dim %d, batch has %d", i, len(v), dim))
		}
	}
	if err := c.ix.ensureCollection(ctx, c.name, dim); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		points = append(points, point{
			ID:     id,
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":        chunk.ID,
				"source_document": chunk.SourceDocument,
				"chunk_index":     i,
				"text":            chunk.Text,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.name)
	return c.ix.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Collection) Search(ctx context.Context, queryVector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		k = 1
	}
	exists, err := c.ix.collectionExists(ctx, c.name)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Handle issued but nothing indexed yet: an empty corpus, not an error.
		return []domain.Match{}, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.name)
	if err := c.ix.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Match, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Match{
			ChunkText: getStringPayload(r.Payload, "text"),
			// Qdrant reports cosine similarity; convert to distance.
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

func (c *Collection) Chunks(ctx context.Context, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	exists, err := c.ix.collectionExists(ctx, c.name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	var scrollResp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", c.name)
	if err := c.ix.doJSON(ctx, http.MethodPost, path, reqBody, &scrollResp, "scroll"); err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, 0, len(scrollResp.Result.Points))
	for _, p := range scrollResp.Result.Points {
		out = append(out, domain.Chunk{
			ID:             getStringPayload(p.Payload, "chunk_id"),
			Text:           getStringPayload(p.Payload, "text"),
			SourceDocument: getStringPayload(p.Payload, "source_document"),
		})
	}
	return out, nil
}

func (c *Collection) Size(ctx context.Context) (int, error) {
	exists, err := c.ix.collectionExists(ctx, c.name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.name)
	if err := c.ix.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &countResp, "count"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (ix *Index) ensureCollection(ctx context.Context, name string, vectorSize int) error {
	ix.mu.Lock()
	if established, ok := ix.dims[name]; ok {
		ix.mu.Unlock()
		if established != vectorSize {
			return domain.WrapError(domain.ErrDimensionMismatch, "qdrant ensure collection",
				fmt.Errorf("collection %q has dim %d, batch has %d", name, established, vectorSize))
		}
		return nil
	}
	ix.mu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := ix.doJSON(ctx, http.MethodPut, "/collections/"+name, reqBody, nil, "ensure collection")
	// 409 means the collection already exists; get-or-create keeps it as-is.
	var statusErr *httpStatusError
	if err != nil && !(asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	ix.mu.Lock()
	ix.dims[name] = vectorSize
	ix.mu.Unlock()
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
