package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

// FeedbackRepository persists feedback events consumed off the queue. Rows
// feed the offline dataset-curation scripts and are never read back by the
// serving path.
type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback (id, chat_id, message_id, owner, mode, verdict, comment, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`, fb.ID, fb.ChatID, fb.MessageID, fb.Owner, string(fb.Mode), fb.Verdict, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
