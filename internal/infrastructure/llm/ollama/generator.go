package ollama

import (
	"context"
	"errors"
	"strings"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

type Generator struct {
	client      *Client
	temperature float64
}

func NewGenerator(client *Client, temperature float64) *Generator {
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Generator{client: client, temperature: temperature}
}

func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := g.client.acquireModel(ctx, g.client.genModel); err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "generate", err)
	}

	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": g.temperature,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	err := g.client.call(ctx, "ollama.generate", func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.WrapError(domain.ErrGenerationTimeout, "generate", err)
		}
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}
