package domain

import "time"

type ChatMode string

const (
	ModePlain ChatMode = "plain"
	ModeRAG   ChatMode = "rag"
)

func (m ChatMode) Valid() bool {
	return m == ModePlain || m == ModeRAG
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatSession is the durable per-chat state. Mode and ActiveDocument decide
// whether a turn is answered from the transcript or from retrieved context.
type ChatSession struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Title          string    `json:"title"`
	Mode           ChatMode  `json:"mode"`
	ActiveDocument string    `json:"active_document,omitempty"`
	StudyGuide     string    `json:"study_guide,omitempty"`
	Messages       []Message `json:"messages,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasDocument reports whether the session is bound to an ingested document.
func (s *ChatSession) HasDocument() bool {
	return s.ActiveDocument != ""
}

type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

type Feedback struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Owner     string    `json:"owner"`
	Mode      ChatMode  `json:"mode"`
	Verdict   string    `json:"verdict"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
