package ports

import (
	"context"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

// TextExtractor turns uploaded file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Chunker splits extracted text into bounded overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder maps texts to fixed-dimension vectors, order-preserving and batched.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Collection is one searchable corpus of chunk/vector pairs.
// Every vector in a collection has identical dimensionality.
type Collection interface {
	Name() string
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.Match, error)
	Chunks(ctx context.Context, limit int) ([]domain.Chunk, error)
	Size(ctx context.Context) (int, error)
}

// VectorIndex owns collection lifecycles. GetOrCreate is the safe default;
// Replace is the explicit full-rebuild path used when the source document
// changes: build the new collection, then swap it in under the same name.
type VectorIndex interface {
	GetOrCreate(ctx context.Context, name string) (Collection, error)
	Replace(ctx context.Context, name string) (Collection, error)
	Lookup(ctx context.Context, name string) (Collection, error)
	Drop(ctx context.Context, name string) error
}

// Generator is the black-box text completion service.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ChatStore persists chat session state and transcripts. Extracted document
// text is kept alongside the session so a lost in-process index can be
// rebuilt without asking the user to upload again.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *domain.ChatSession) error
	GetChat(ctx context.Context, owner, chatID string) (*domain.ChatSession, error)
	AppendMessage(ctx context.Context, msg domain.Message) error
	UpdateMeta(ctx context.Context, chatID string, mode domain.ChatMode, activeDocument, studyGuide string) error
	UpdateTitle(ctx context.Context, chatID, title string) error
	SaveDocumentText(ctx context.Context, chatID, documentName, text string) error
	DocumentText(ctx context.Context, chatID, documentName string) (string, error)
}

// FeedbackPublisher emits user feedback events, fire-and-forget.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, fb domain.Feedback) error
}

// FeedbackConsumer delivers feedback events to the worker.
type FeedbackConsumer interface {
	SubscribeFeedback(ctx context.Context, handler func(context.Context, domain.Feedback) error) error
}

// FeedbackStore persists feedback rows for the offline curation pipeline.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}
