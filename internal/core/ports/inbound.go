package ports

import (
	"context"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

// ChatTutor is the inbound contract for the per-chat tutoring state machine.
type ChatTutor interface {
	CreateChat(ctx context.Context, owner string) (*domain.ChatSession, error)
	GetChat(ctx context.Context, owner, chatID string) (*domain.ChatSession, error)
	Answer(ctx context.Context, owner, chatID, message string) (*domain.TurnResult, error)
	AttachDocument(ctx context.Context, owner, chatID, filename string, data []byte) (*domain.IngestStats, error)
	SetMode(ctx context.Context, owner, chatID string, mode domain.ChatMode) (*domain.ChatSession, error)
	GenerateStudyGuide(ctx context.Context, owner, chatID string) (string, error)
	ClearStudyGuide(ctx context.Context, owner, chatID string) error
}
