package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/lifequest/internal/config"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultVeniceModel    = "llama-3.3-70b"
	defaultOllamaModel    = "llama3.2"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGeminiModel    = "gemini-2.0-flash"
)

// NewProvider builds the provider named by LLM_PROVIDER. "none" (or an
// empty value) returns a nil Provider, which puts the gateway offline.
func NewProvider(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	switch name {
	case "", "none":
		return nil, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey, orDefault(model, defaultAnthropicModel), logger), nil
	case "venice":
		if cfg.VeniceAPIKey == "" {
			return nil, fmt.Errorf("VENICE_API_KEY is required for the venice provider")
		}
		return NewVeniceProvider(cfg.VeniceAPIKey, orDefault(model, defaultVeniceModel), logger), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, orDefault(model, defaultOllamaModel), logger), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, orDefault(model, defaultOpenAIModel), logger), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		gp, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, orDefault(model, defaultGeminiModel), "", logger)
		if err != nil {
			return nil, err
		}
		return gp, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// NewGatewayFromConfig builds the text and vision providers and wraps them.
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	text, err := NewProvider(ctx, cfg, cfg.ModelName, logger)
	if err != nil {
		return nil, err
	}
	var vision Provider
	if cfg.VisionModelName != "" && cfg.VisionModelName != cfg.ModelName {
		vision, err = NewProvider(ctx, cfg, cfg.VisionModelName, logger)
		if err != nil {
			return nil, err
		}
	}
	if text == nil {
		logger.Warn("no LLM provider configured, running on template fallbacks")
	} else {
		logger.Info("LLM provider configured", "provider", text.Name())
	}
	return NewGateway(text, vision, GatewayConfigFrom(cfg), logger), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
