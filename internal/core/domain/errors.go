package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction marks an unreadable or empty source document.
	ErrExtraction = errors.New("document extraction failed")
	// ErrEmbedderUnavailable marks embedding model load or inference failure.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
	// ErrGenerationTimeout marks a generation call that exceeded its budget.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrDimensionMismatch marks a vector whose dimensionality disagrees with
	// the collection. Programmer-level misuse, not user-recoverable.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch marks a chunks/vectors count disagreement.
	ErrLengthMismatch = errors.New("chunks/vectors length mismatch")
	// ErrNoActiveCollection marks a query against a missing collection.
	ErrNoActiveCollection = errors.New("no active collection")
	// ErrNoDocument marks a RAG turn attempted before any document is attached.
	ErrNoDocument = errors.New("no document attached")

	ErrChatNotFound = errors.New("chat not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
