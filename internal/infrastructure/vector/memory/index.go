// Package memory provides a process-local vector index using brute-force
// cosine distance. Collections are ephemeral: durable chat metadata may
// outlive them, which is why callers re-ingest lazily after a restart.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
)

type Index struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

func NewIndex() *Index {
	return &Index{collections: make(map[string]*Collection)}
}

// GetOrCreate reuses an existing collection as-is. It never destroys data;
// full rebuild is the caller's explicit responsibility via Replace.
func (ix *Index) GetOrCreate(_ context.Context, name string) (ports.Collection, error) {
	if name == "" {
		return nil, domain.ErrNoActiveCollection
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if c, ok := ix.collections[name]; ok {
		return c, nil
	}
	c := newCollection(name)
	ix.collections[name] = c
	return c, nil
}

// Replace installs a fresh empty collection under name. Holders of the old
// handle keep reading the old complete data until they re-resolve the name.
func (ix *Index) Replace(_ context.Context, name string) (ports.Collection, error) {
	if name == "" {
		return nil, domain.ErrNoActiveCollection
	}
	c := newCollection(name)
	ix.mu.Lock()
	ix.collections[name] = c
	ix.mu.Unlock()
	return c, nil
}

func (ix *Index) Lookup(_ context.Context, name string) (ports.Collection, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNoActiveCollection)
	}
	return c, nil
}

func (ix *Index) Drop(_ context.Context, name string) error {
	ix.mu.Lock()
	delete(ix.collections, name)
	ix.mu.Unlock()
	return nil
}

type Collection struct {
	name string

	mu      sync.RWMutex
	dim     int
	chunks  []domain.Chunk
	vectors [][]float32
}

func newCollection(name string) *Collection {
	return &Collection{name: name}
}

func (c *Collection) Name() string { return c.name }

// Add appends chunk/vector pairs. Validation runs before any mutation so a
// rejected batch leaves the collection unchanged.
func (c *Collection) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrLengthMismatch, "add documents",
			fmt.Errorf("%d chunks, %d vectors", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dim := c.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "add documents",
				fmt.Errorf("vector %d has dim %d, collection has %d", i, len(v), dim))
		}
	}

	c.dim = dim
	c.chunks = append(c.chunks, chunks...)
	c.vectors = append(c.vectors, vectors...)
	return nil
}

// Search returns the k nearest chunks by cosine distance, ascending. An empty
// collection yields an empty match list, not an error.
func (c *Collection) Search(_ context.Context, queryVector []float32, k int) ([]domain.Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.vectors) == 0 {
		return []domain.Match{}, nil
	}
	if c.dim != len(queryVector) {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "search",
			fmt.Errorf("query has dim %d, collection has %d", len(queryVector), c.dim))
	}
	if k <= 0 {
		k = 1
	}

	matches := make([]domain.Match, 0, len(c.vectors))
	for i, v := range c.vectors {
		matches = append(matches, domain.Match{
			ChunkText: c.chunks[i].Text,
			Distance:  cosineDistance(queryVector, v),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (c *Collection) Chunks(_ context.Context, limit int) ([]domain.Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 || limit > len(c.chunks) {
		limit = len(c.chunks)
	}
	out := make([]domain.Chunk, limit)
	copy(out, c.chunks[:limit])
	return out, nil
}

func (c *Collection) Size(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks), nil
}

// cosineDistance is 1 - cosine similarity; 0 means identical direction.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
