package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChatRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	mode TEXT NOT NULL,
	active_document TEXT NOT NULL DEFAULT '',
	study_guide TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats(owner, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, created_at);

CREATE TABLE IF NOT EXISTS chat_documents (
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	document_name TEXT NOT NULL,
	text_content TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chat_id, document_name)
);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	mode TEXT NOT NULL,
	verdict TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_chat ON feedback(chat_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ChatRepository) CreateChat(ctx context.Context, chat *domain.ChatSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chats (id, owner, title, mode, active_document, study_guide, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, chat.ID, chat.Owner, chat.Title, string(chat.Mode), chat.ActiveDocument, chat.StudyGuide, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetChat(ctx context.Context, owner, chatID string) (*domain.ChatSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner, title, mode, active_document, study_guide, created_at, updated_at
FROM chats
WHERE id = $1 AND owner = $2
`, chatID, owner)

	var chat domain.ChatSession
	var mode string
	err := row.Scan(
		&chat.ID,
		&chat.Owner,
		&chat.Title,
		&mode,
		&chat.ActiveDocument,
		&chat.StudyGuide,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrChatNotFound, "select chat", err)
	}
	if err != nil {
		return nil, fmt.Errorf("select chat: %w", err)
	}
	chat.Mode = domain.ChatMode(mode)

	messages, err := r.listMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages
	return &chat, nil
}

func (r *ChatRepository) listMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, chat_id, role, content, created_at
FROM chat_messages
WHERE chat_id = $1
ORDER BY created_at ASC
`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (r *ChatRepository) AppendMessage(ctx context.Context, msg domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_messages (id, chat_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, msg.ID, msg.ChatID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
UPDATE chats SET updated_at = $2 WHERE id = $1
`, msg.ChatID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) UpdateMeta(ctx context.Context, chatID string, mode domain.ChatMode, activeDocument, studyGuide string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE chats
SET mode = $2, active_document = $3, study_guide = $4, updated_at = $5
WHERE id = $1
`, chatID, string(mode), activeDocument, studyGuide, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update chat meta: %w", err)
	}
	return ensureRowTouched(result, "update chat meta", chatID)
}

func (r *ChatRepository) UpdateTitle(ctx context.Context, chatID, title string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE chats SET title = $2, updated_at = $3 WHERE id = $1
`, chatID, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update chat title: %w", err)
	}
	return ensureRowTouched(result, "update chat title", chatID)
}

func (r *ChatRepository) SaveDocumentText(ctx context.Context, chatID, documentName, text string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_documents (chat_id, document_name, text_content, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (chat_id, document_name) DO UPDATE
SET text_content = EXCLUDED.text_content, updated_at = EXCLUDED.updated_at
`, chatID, documentName, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save document text: %w", err)
	}
	return nil
}

func (r *ChatRepository) DocumentText(ctx context.Context, chatID, documentName string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT text_content FROM chat_documents WHERE chat_id = $1 AND document_name = $2
`, chatID, documentName)

	var text string
	err := row.Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.WrapError(domain.ErrNoDocument, "select document text", err)
	}
	if err != nil {
		return "", fmt.Errorf("select document text: %w", err)
	}
	return text, nil
}

func ensureRowTouched(result sql.Result, operation, chatID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrChatNotFound, operation, errors.New(chatID))
	}
	return nil
}
