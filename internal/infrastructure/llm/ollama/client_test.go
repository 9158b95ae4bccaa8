package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

func newModelAwareServer(t *testing.T, handle http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/show" {
			_, _ = w.Write([]byte(`{"modelfile":"ok"}`))
			return
		}
		handle(w, r)
	}))
}

func TestEmbedBatchedAndOrderPreserving(t *testing.T) {
	var capturedInput []any
	server := newModelAwareServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedInput, _ = payload["input"].([]any)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	})
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", Options{}))
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if len(capturedInput) != 2 || capturedInput[0] != "first" || capturedInput[1] != "second" {
		t.Fatalf("expected one batched request preserving order, got %v", capturedInput)
	}
}

func TestEmbedFailureMapsToEmbedderUnavailable(t *testing.T) {
	server := newModelAwareServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", Options{}))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if !domain.IsKind(err, domain.ErrEmbedderUnavailable) {
		t.Fatalf("expected embedder unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "model crashed") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedModelAcquisitionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", Options{}))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if !domain.IsKind(err, domain.ErrEmbedderUnavailable) {
		t.Fatalf("expected embedder unavailable on acquisition failure, got %v", err)
	}
}

func TestGenerateSendsPromptAndTokenBudget(t *testing.T) {
	var capturedPrompt string
	var capturedOptions map[string]any
	server := newModelAwareServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedOptions, _ = payload["options"].(map[string]any)
		_, _ = w.Write([]byte(`{"response":"  the answer  "}`))
	})
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", Options{}), 0.7)
	out, err := gen.Generate(context.Background(), "[INST] hi [/INST]", 256)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "the answer" {
		t.Fatalf("expected trimmed response, got %q", out)
	}
	if capturedPrompt != "[INST] hi [/INST]" {
		t.Fatalf("unexpected prompt: %q", capturedPrompt)
	}
	if capturedOptions["num_predict"] != float64(256) {
		t.Fatalf("expected num_predict 256, got %v", capturedOptions["num_predict"])
	}
}

func TestGenerateTimeoutMapsToGenerationTimeout(t *testing.T) {
	server := newModelAwareServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"late"}`))
	})
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", Options{CallTimeout: 20 * time.Millisecond}), 0.7)
	_, err := gen.Generate(context.Background(), "prompt", 64)
	if !domain.IsKind(err, domain.ErrGenerationTimeout) {
		t.Fatalf("expected generation timeout, got %v", err)
	}
}

func TestModelAcquiredOncePerProcess(t *testing.T) {
	showCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			showCalls++
			_, _ = w.Write([]byte(`{}`))
		case "/api/embed":
			_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", Options{}))
	for i := 0; i < 3; i++ {
		if _, err := embedder.Embed(context.Background(), []string{"x"}); err != nil {
			t.Fatalf("Embed() call %d error = %v", i, err)
		}
	}
	if showCalls != 1 {
		t.Fatalf("expected a single model acquisition, got %d", showCalls)
	}
}
