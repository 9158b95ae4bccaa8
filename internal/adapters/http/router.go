package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
	"github.com/quizcatalyst/rag-tutor/internal/observability/metrics"
)

const (
	ownerHeader  = "X-User"
	defaultOwner = "default"
)

type Config struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
	UploadWarnBytes  int64
}

type Router struct {
	tutor    ports.ChatTutor
	feedback ports.FeedbackPublisher
	metrics  *metrics.APIMetrics
	cfg      Config
}

func NewRouter(
	tutor ports.ChatTutor,
	feedback ports.FeedbackPublisher,
	m *metrics.APIMetrics,
	cfg Config,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 5 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return &Router{
		tutor:    tutor,
		feedback: feedback,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("POST /v1/chats", rt.createChat)
	mux.HandleFunc("GET /v1/chats/{chat_id}", rt.getChat)
	mux.HandleFunc("POST /v1/chats/{chat_id}/messages", rt.postMessage)
	mux.HandleFunc("POST /v1/chats/{chat_id}/document", rt.attachDocument)
	mux.HandleFunc("PUT /v1/chats/{chat_id}/mode", rt.setMode)
	mux.HandleFunc("POST /v1/chats/{chat_id}/study-guide", rt.createStudyGuide)
	mux.HandleFunc("DELETE /v1/chats/{chat_id}/study-guide", rt.deleteStudyGuide)
	mux.HandleFunc("POST /v1/chats/{chat_id}/feedback", rt.postFeedback)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func ownerFromRequest(r *http.Request) string {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		return defaultOwner
	}
	return owner
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createChat(w http.ResponseWriter, r *http.Request) {
	chat, err := rt.tutor.CreateChat(r.Context(), ownerFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (rt *Router) getChat(w http.ResponseWriter, r *http.Request) {
	chat, err := rt.tutor.GetChat(r.Context(), ownerFromRequest(r), r.PathValue("chat_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (rt *Router) postMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.tutor.Answer(r.Context(), ownerFromRequest(r), r.PathValue("chat_id"), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rt.metrics.RecordTurn(rt.cfg.Service, string(result.Mode), len(result.Reply), time.Since(start))
	if result.Retrieved {
		distances := make([]float64, len(result.Retrieval.Matches))
		for i, match := range result.Retrieval.Matches {
			distances[i] = match.Distance
		}
		rt.metrics.RecordRetrieval(rt.cfg.Service, distances, result.RetrievalElapsed)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply":   result.Reply,
		"mode":    result.Mode,
		"sources": result.Retrieval.Matches,
	})
}

func (rt *Router) attachDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read upload"})
		return
	}
	if rt.cfg.UploadWarnBytes > 0 && int64(len(data)) > rt.cfg.UploadWarnBytes {
		rt.metrics.RecordOversizedUpload(rt.cfg.Service)
		slog.Warn("oversized upload",
			"request_id", requestIDFromContext(r.Context()),
			"filename", fileHeader.Filename,
			"bytes", len(data),
		)
	}

	stats, err := rt.tutor.AttachDocument(r.Context(), ownerFromRequest(r), r.PathValue("chat_id"), fileHeader.Filename, data)
	if err != nil {
		rt.metrics.RecordIngestionError(rt.cfg.Service)
		writeError(w, r, err)
		return
	}
	rt.metrics.RecordIngestion(rt.cfg.Service, stats.ChunkCount)

	writeJSON(w, http.StatusCreated, stats)
}

func (rt *Router) setMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	chat, err := rt.tutor.SetMode(r.Context(), ownerFromRequest(r), r.PathValue("chat_id"), domain.ChatMode(req.Mode))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (rt *Router) createStudyGuide(w http.ResponseWriter, r *http.Request) {
	guide, err := rt.tutor.GenerateStudyGuide(r.Context(), ownerFromRequest(r), r.PathValue("chat_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"study_guide": guide})
}

func (rt *Router) deleteStudyGuide(w http.ResponseWriter, r *http.Request) {
	if err := rt.tutor.ClearStudyGuide(r.Context(), ownerFromRequest(r), r.PathValue("chat_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) postFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		Verdict   string `json:"verdict"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Verdict != "up" && req.Verdict != "down" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "verdict must be 'up' or 'down'"})
		return
	}

	owner := ownerFromRequest(r)
	chat, err := rt.tutor.GetChat(r.Context(), owner, r.PathValue("chat_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	fb := domain.Feedback{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		MessageID: req.MessageID,
		Owner:     owner,
		Mode:      chat.Mode,
		Verdict:   req.Verdict,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	// Feedback is loss-tolerant; a broker outage never fails the request.
	if err := rt.feedback.PublishFeedback(r.Context(), fb); err != nil {
		slog.Warn("feedback publish failed",
			"request_id", requestIDFromContext(r.Context()),
			"feedback_id", fb.ID,
			"error", err,
		)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": fb.ID})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	if status >= 500 {
		slog.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
