package httpadapter

import (
	"net/http"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

// mapError translates a domain failure into an HTTP status and a message
// safe to show the user. Everything reaching the turn boundary becomes a
// user-visible message; nothing crashes the session.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case domain.IsKind(err, domain.ErrChatNotFound):
		return http.StatusNotFound, "chat not found"
	case domain.IsKind(err, domain.ErrNoDocument),
		domain.IsKind(err, domain.ErrNoActiveCollection):
		return http.StatusConflict, "upload a document first"
	case domain.IsKind(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity, "could not extract text from the document"
	case domain.IsKind(err, domain.ErrEmbedderUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "the model backend is unavailable, try again shortly"
	case domain.IsKind(err, domain.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "the model took too long to answer, try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
