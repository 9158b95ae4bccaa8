package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
)

const defaultTopK = 3

// RetrievalService owns the ingestion and query paths against the vector
// index. Ingestion embeds every chunk in a single batched call; per-chunk
// embedding requests are disallowed because they defeat the batched model.
type RetrievalService struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewRetrievalService(
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *RetrievalService {
	return &RetrievalService{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

// Ingest chunks the document text, embeds the whole batch once, and installs
// the result as a fresh collection under collectionName. Embedding runs
// before the old collection is touched, so an unavailable embedder never
// leaves a partially indexed document behind.
func (s *RetrievalService) Ingest(
	ctx context.Context,
	collectionName string,
	documentName string,
	text string,
) (*domain.IngestStats, error) {
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, domain.WrapError(domain.ErrExtraction, "chunk document", errors.New("no chunks produced"))
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, domain.WrapError(
			domain.ErrLengthMismatch,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(pieces)),
		)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:             uuid.NewString(),
			Text:           piece,
			SourceDocument: documentName,
		}
	}

	collection, err := s.index.Replace(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("replace collection: %w", err)
	}
	if err := collection.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("add chunks to collection: %w", err)
	}

	return &domain.IngestStats{
		DocumentName: documentName,
		ChunkCount:   len(chunks),
		TextBytes:    len(text),
	}, nil
}

// Retrieve embeds the query as a single-element batch, searches the named
// collection, and joins the matched texts in ascending-distance order with a
// blank line between passages.
func (s *RetrievalService) Retrieve(
	ctx context.Context,
	collectionName string,
	query string,
	k int,
) (*domain.RetrievalResult, error) {
	if k <= 0 {
		k = defaultTopK
	}

	collection, err := s.index.Lookup(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("lookup collection: %w", err)
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := collection.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}

	texts := make([]string, len(matches))
	for i, match := range matches {
		texts[i] = match.ChunkText
	}

	return &domain.RetrievalResult{
		Context: strings.Join(texts, "\n\n"),
		Matches: matches,
	}, nil
}

// SampleChunks returns up to limit stored chunks from the named collection,
// used by the study guide generator.
func (s *RetrievalService) SampleChunks(ctx context.Context, collectionName string, limit int) ([]domain.Chunk, error) {
	collection, err := s.index.Lookup(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("lookup collection: %w", err)
	}
	chunks, err := collection.Chunks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read collection chunks: %w", err)
	}
	return chunks, nil
}
