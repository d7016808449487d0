package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API with JSON response mode.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// NewGeminiProvider builds the client. baseURL is optional.
func NewGeminiProvider(ctx context.Context, apiKey, modelName, baseURL string, logger *slog.Logger) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName, logger: logger}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Complete(ctx context.Context, r Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(r.User)}
	if len(r.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(r.Image, r.imageMIME()))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if r.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: r.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	return resp.Text(), nil
}
