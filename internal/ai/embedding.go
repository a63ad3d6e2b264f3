package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input is empty")
	}

	reqBody := map[string]any{
		"model": cfg.Model,
		"input": text,
	}
	if cfg.Dimension > 0 {
		reqBody["dimensions"] = cfg.Dimension
	}
	raw, err := c.postJSON(ctx, cfg.BaseURL, cfg.APIKey, "/embeddings", reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	return parsed.Data[0].Embedding, nil
}

// RemoteEmbedder serves rag.Embedder from an OpenAI-compatible endpoint.
type RemoteEmbedder struct {
	client *OpenAICompatibleClient
	cfg    EmbeddingConfig
}

func NewRemoteEmbedder(client *OpenAICompatibleClient, cfg EmbeddingConfig) *RemoteEmbedder {
	return &RemoteEmbedder{client: client, cfg: cfg}
}

func (e *RemoteEmbedder) Name() string {
	if e.cfg.Dimension > 0 {
		return fmt.Sprintf("remote-%s-%d", e.cfg.Model, e.cfg.Dimension)
	}
	return "remote-" + e.cfg.Model
}

// Dimension is the configured size, or 0 when the provider decides.
func (e *RemoteEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.cfg, text)
	if err != nil {
		return nil, err
	}
	if e.cfg.Dimension > 0 && len(vec) != e.cfg.Dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), e.cfg.Dimension)
	}
	return vec, nil
}
