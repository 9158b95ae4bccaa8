// Package ollama adapts an Ollama server to the Embedder and Generator ports.
// The generation and embedding models are expensive to load server-side, so
// the client acquires each once on first use and reuses it for all sessions.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor

	callTimeout time.Duration

	acquireMu      sync.Mutex
	acquiredModels map[string]bool
}

type Options struct {
	CallTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string, options Options) *Client {
	callTimeout := options.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		genModel:       genModel,
		embedModel:     embedModel,
		httpClient:     &http.Client{},
		executor:       options.ResilienceExecutor,
		callTimeout:    callTimeout,
		acquiredModels: make(map[string]bool),
	}
}

// acquireModel verifies the model is loadable server-side, once per process.
// A failed acquisition is not cached so a later call can succeed after the
// model becomes available.
func (c *Client) acquireModel(ctx context.Context, model string) error {
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()
	if c.acquiredModels[model] {
		return nil
	}
	if err := c.postJSON(ctx, "/api/show", map[string]any{"model": model}, nil, "show model"); err != nil {
		return fmt.Errorf("acquire model %s: %w", model, err)
	}
	c.acquiredModels[model] = true
	return nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempt := func(attemptCtx context.Context) error {
		callCtx, cancel := context.WithTimeout(attemptCtx, c.callTimeout)
		defer cancel()
		return fn(callCtx)
	}
	if c.executor == nil {
		return attempt(ctx)
	}
	return c.executor.Execute(ctx, operation, attempt, classifyOllamaError)
}
