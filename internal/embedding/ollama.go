package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaProvider embeds text via a local Ollama server's embeddings
// endpoint. Grounded on the teacher's internal/extractor/ollama.go
// (api.ClientFromEnvironment construction, Available health check with a
// short timeout) — generalized from text-generation to embeddings.
type OllamaProvider struct {
	client *api.Client
	model  string
	dim    int
}

// NewOllamaProvider constructs a provider against the Ollama server
// described by the OLLAMA_HOST environment variable (or its default),
// using model for embeddings and declaring dim as the fixed output
// dimensionality spec.md §6's embeddings.dim expects.
func NewOllamaProvider(model string, dim int) (*OllamaProvider, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{client: client, model: model, dim: dim}, nil
}

// Available checks whether the Ollama server is reachable, mirroring the
// teacher's short-timeout health check.
func (o *OllamaProvider) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := o.client.List(ctx)
	return err == nil
}

func (o *OllamaProvider) Dim() int { return o.dim }

func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbedRequest{
		Model: o.model,
		Input: text,
	}

	resp, err := o.client.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}

	raw := resp.Embeddings[0]
	out := make([]float32, len(raw))
	copy(out, raw)
	return out, nil
}
