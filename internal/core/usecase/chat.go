package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
)

const (
	defaultMaxNewTokens     = 1024
	defaultStudyGuideChunks = 3
	defaultChatTitle        = "New chat"
	maxTitleRunes           = 48
)

// TutorService is the per-chat state machine. It decides whether a turn is
// answered from the plain transcript or grounded in retrieved document
// context, and keeps session metadata consistent with the durable store
// after every mutation.
type TutorService struct {
	store     ports.ChatStore
	extractor ports.TextExtractor
	retrieval *RetrievalService
	generator ports.Generator

	topK             int
	maxNewTokens     int
	studyGuideChunks int
	now              func() time.Time
}

type TutorConfig struct {
	TopK             int
	MaxNewTokens     int
	StudyGuideChunks int
}

func NewTutorService(
	store ports.ChatStore,
	extractor ports.TextExtractor,
	retrieval *RetrievalService,
	generator ports.Generator,
	cfg TutorConfig,
) *TutorService {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxNewTokens
	}
	if cfg.StudyGuideChunks <= 0 {
		cfg.StudyGuideChunks = defaultStudyGuideChunks
	}
	return &TutorService{
		store:            store,
		extractor:        extractor,
		retrieval:        retrieval,
		generator:        generator,
		topK:             cfg.TopK,
		maxNewTokens:     cfg.MaxNewTokens,
		studyGuideChunks: cfg.StudyGuideChunks,
		now:              time.Now,
	}
}

var _ ports.ChatTutor = (*TutorService)(nil)

// collectionName scopes vector collections per chat session so two sessions
// can never race on the same collection.
func collectionName(chatID string) string {
	return "chat_" + chatID
}

func (s *TutorService) CreateChat(ctx context.Context, owner string) (*domain.ChatSession, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create chat", errors.New("empty owner"))
	}

	now := s.now().UTC()
	chat := &domain.ChatSession{
		ID:        uuid.NewString(),
		Owner:     owner,
		Title:     defaultChatTitle,
		Mode:      domain.ModePlain,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

func (s *TutorService) GetChat(ctx context.Context, owner, chatID string) (*domain.ChatSession, error) {
	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	return chat, nil
}

// Answer runs one turn. RAG mode with no attached document is a validation
// failure raised before any message is appended or any model call is made.
func (s *TutorService) Answer(ctx context.Context, owner, chatID, message string) (*domain.TurnResult, error) {
	question := strings.TrimSpace(message)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer turn", errors.New("empty message"))
	}

	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat.Mode == domain.ModeRAG && !chat.HasDocument() {
		return nil, domain.WrapError(domain.ErrNoDocument, "answer turn", errors.New("rag mode selected but no document attached"))
	}

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	firstTurn := len(chat.Messages) == 0
	chat.Messages = append(chat.Messages, userMsg)

	result := &domain.TurnResult{Mode: chat.Mode}

	var prompt string
	if chat.Mode == domain.ModeRAG {
		retrievalStart := s.now()
		retrieved, err := s.retrieveForChat(ctx, chat, question)
		if err != nil {
			return nil, err
		}
		result.Retrieval = *retrieved
		result.Retrieved = true
		result.RetrievalElapsed = s.now().Sub(retrievalStart)
		prompt = buildGroundedPrompt(retrieved.Context, question)
	} else {
		prompt = buildConversationPrompt(chat.Messages)
	}

	reply, err := s.generator.Generate(ctx, prompt, s.maxNewTokens)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	result.Reply = reply

	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	if firstTurn && (chat.Title == "" || chat.Title == defaultChatTitle) {
		// Best effort; an untitled chat is not worth failing the turn over.
		_ = s.store.UpdateTitle(ctx, chat.ID, trimTitle(question))
	}

	return result, nil
}

// retrieveForChat queries the chat's collection, lazily re-ingesting the
// named document when the process-local index no longer holds it. Durable
// session metadata outlives the index, so a restart must not force the user
// to upload the document again.
func (s *TutorService) retrieveForChat(ctx context.Context, chat *domain.ChatSession, question string) (*domain.RetrievalResult, error) {
	name := collectionName(chat.ID)

	retrieved, err := s.retrieval.Retrieve(ctx, name, question, s.topK)
	if err == nil {
		return retrieved, nil
	}
	if !domain.IsKind(err, domain.ErrNoActiveCollection) {
		return nil, err
	}

	if err := s.rehydrate(ctx, chat); err != nil {
		return nil, err
	}
	retrieved, err = s.retrieval.Retrieve(ctx, name, question, s.topK)
	if err != nil {
		return nil, err
	}
	return retrieved, nil
}

func (s *TutorService) rehydrate(ctx context.Context, chat *domain.ChatSession) error {
	text, err := s.store.DocumentText(ctx, chat.ID, chat.ActiveDocument)
	if err != nil {
		return fmt.Errorf("load stored document text: %w", err)
	}
	if _, err := s.retrieval.Ingest(ctx, collectionName(chat.ID), chat.ActiveDocument, text); err != nil {
		return fmt.Errorf("re-ingest stored document: %w", err)
	}
	return nil
}

// AttachDocument extracts, chunks, embeds, and indexes the upload, then
// binds it to the session. Any failure aborts the transition and leaves the
// chat in its prior document state.
func (s *TutorService) AttachDocument(ctx context.Context, owner, chatID, filename string, data []byte) (*domain.IngestStats, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "attach document", errors.New("empty filename or payload"))
	}

	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}

	text, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}

	stats, err := s.retrieval.Ingest(ctx, collectionName(chat.ID), filename, text)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveDocumentText(ctx, chat.ID, filename, text); err != nil {
		return nil, fmt.Errorf("store document text: %w", err)
	}
	if err := s.store.UpdateMeta(ctx, chat.ID, chat.Mode, filename, chat.StudyGuide); err != nil {
		return nil, fmt.Errorf("update chat metadata: %w", err)
	}

	if chat.Title == "" || chat.Title == defaultChatTitle {
		s.titleFromDocument(ctx, chat.ID, text)
	}

	return stats, nil
}

// titleFromDocument asks the generator for a short title based on the
// document opening. Failures are ignored.
func (s *TutorService) titleFromDocument(ctx context.Context, chatID, text string) {
	title, err := s.generator.Generate(ctx, buildTitlePrompt(text), 16)
	if err != nil {
		return
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return
	}
	_ = s.store.UpdateTitle(ctx, chatID, trimTitle(title))
}

// SetMode switches the answering mode. Leaving RAG forgets the document
// binding; re-attaching is required to resume grounded answering on the
// same file.
func (s *TutorService) SetMode(ctx context.Context, owner, chatID string, mode domain.ChatMode) (*domain.ChatSession, error) {
	if !mode.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "set mode", fmt.Errorf("unknown mode %q", mode))
	}

	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}

	if mode == domain.ModePlain && chat.HasDocument() {
		// The collection is per chat, so dropping it only affects this session.
		if err := s.retrieval.index.Drop(ctx, collectionName(chat.ID)); err != nil {
			return nil, fmt.Errorf("drop collection: %w", err)
		}
		chat.ActiveDocument = ""
	}
	chat.Mode = mode

	if err := s.store.UpdateMeta(ctx, chat.ID, chat.Mode, chat.ActiveDocument, chat.StudyGuide); err != nil {
		return nil, fmt.Errorf("update chat metadata: %w", err)
	}
	return chat, nil
}

// GenerateStudyGuide builds Q&A pairs from a sample of the indexed chunks
// and stores the result on the session.
func (s *TutorService) GenerateStudyGuide(ctx context.Context, owner, chatID string) (string, error) {
	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return "", fmt.Errorf("load chat: %w", err)
	}
	if !chat.HasDocument() {
		return "", domain.WrapError(domain.ErrNoDocument, "generate study guide", errors.New("no document attached"))
	}

	name := collectionName(chat.ID)
	chunks, err := s.retrieval.SampleChunks(ctx, name, s.studyGuideChunks)
	if domain.IsKind(err, domain.ErrNoActiveCollection) {
		if rerr := s.rehydrate(ctx, chat); rerr != nil {
			return "", rerr
		}
		chunks, err = s.retrieval.SampleChunks(ctx, name, s.studyGuideChunks)
	}
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", domain.WrapError(domain.ErrNoActiveCollection, "generate study guide", errors.New("collection holds no chunks"))
	}

	pairs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		pair, err := s.generator.Generate(ctx, buildStudyGuidePrompt(chunk.Text), s.maxNewTokens)
		if err != nil {
			return "", fmt.Errorf("generate study guide entry: %w", err)
		}
		pairs = append(pairs, strings.TrimSpace(pair))
	}
	guide := strings.Join(pairs, "\n\n")

	if err := s.store.UpdateMeta(ctx, chat.ID, chat.Mode, chat.ActiveDocument, guide); err != nil {
		return "", fmt.Errorf("store study guide: %w", err)
	}
	return guide, nil
}

func (s *TutorService) ClearStudyGuide(ctx context.Context, owner, chatID string) error {
	chat, err := s.store.GetChat(ctx, owner, chatID)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}
	if err := s.store.UpdateMeta(ctx, chat.ID, chat.Mode, chat.ActiveDocument, ""); err != nil {
		return fmt.Errorf("clear study guide: %w", err)
	}
	return nil
}

func trimTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxTitleRunes {
		return string(runes)
	}
	return string(runes[:maxTitleRunes])
}
