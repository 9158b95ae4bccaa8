package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

type stubChunker struct {
	pieces []string
}

func (c *stubChunker) Split(text string) []string {
	if c.pieces != nil {
		return c.pieces
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []string{text}
}

type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32

	batchCalls [][]string
	queryCalls []string
	embedErr   error
	queryErr   error
}

func (e *stubEmbedder) vectorFor(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	if e.fallback != nil {
		return e.fallback
	}
	return []float32{1, 0}
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batchCalls = append(e.batchCalls, append([]string(nil), texts...))
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls = append(e.queryCalls, text)
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vectorFor(text), nil
}

type stubGenerator struct {
	prompts []string
	replies []string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, _ int) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "ok", nil
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(context.Context, string, []byte) (string, error) {
	return e.text, e.err
}

type memStore struct {
	chats map[string]*domain.ChatSession
	docs  map[string]string

	metaUpdates int
	docSaves    int
	titles      []string
	appendErr   error
}

func newMemStore() *memStore {
	return &memStore{
		chats: make(map[string]*domain.ChatSession),
		docs:  make(map[string]string),
	}
}

func (s *memStore) CreateChat(_ context.Context, chat *domain.ChatSession) error {
	clone := *chat
	s.chats[chat.ID] = &clone
	return nil
}

func (s *memStore) GetChat(_ context.Context, owner, chatID string) (*domain.ChatSession, error) {
	chat, ok := s.chats[chatID]
	if !ok || chat.Owner != owner {
		return nil, domain.WrapError(domain.ErrChatNotFound, "get chat", errors.New(chatID))
	}
	clone := *chat
	clone.Messages = append([]domain.Message(nil), chat.Messages...)
	return &clone, nil
}

func (s *memStore) AppendMessage(_ context.Context, msg domain.Message) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	chat, ok := s.chats[msg.ChatID]
	if !ok {
		return domain.WrapError(domain.ErrChatNotFound, "append message", errors.New(msg.ChatID))
	}
	chat.Messages = append(chat.Messages, msg)
	return nil
}

func (s *memStore) UpdateMeta(_ context.Context, chatID string, mode domain.ChatMode, activeDocument, studyGuide string) error {
	chat, ok := s.chats[chatID]
	if !ok {
		return domain.WrapError(domain.ErrChatNotFound, "update meta", errors.New(chatID))
	}
	chat.Mode = mode
	chat.ActiveDocument = activeDocument
	chat.StudyGuide = studyGuide
	s.metaUpdates++
	return nil
}

func (s *memStore) UpdateTitle(_ context.Context, chatID, title string) error {
	chat, ok := s.chats[chatID]
	if !ok {
		return domain.WrapError(domain.ErrChatNotFound, "update title", errors.New(chatID))
	}
	chat.Title = title
	s.titles = append(s.titles, title)
	return nil
}

func (s *memStore) SaveDocumentText(_ context.Context, chatID, documentName, text string) error {
	s.docs[chatID+"/"+documentName] = text
	s.docSaves++
	return nil
}

func (s *memStore) DocumentText(_ context.Context, chatID, documentName string) (string, error) {
	text, ok := s.docs[chatID+"/"+documentName]
	if !ok {
		return "", domain.WrapError(domain.ErrNoDocument, "document text", errors.New("not stored"))
	}
	return text, nil
}
