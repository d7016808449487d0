package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/lifequest/pkg/chat"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"

	DefaultVeniceTemperature = 0.4
	DefaultVeniceMaxTokens   = 1024
)

// VeniceProvider calls the OpenAI-compatible Venice AI endpoint. Requests
// carrying a schema use json_schema constrained decoding.
type VeniceProvider struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type VeniceResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *VeniceJSONSchema `json:"json_schema,omitempty"`
}

type VeniceJSONSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// veniceMessage carries either a plain string or a list of content parts.
type veniceMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type veniceContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type VeniceChatRequest struct {
	Model            string                `json:"model"`
	Messages         []veniceMessage       `json:"messages"`
	Temperature      float64               `json:"temperature,omitempty"`
	MaxTokens        int                   `json:"max_tokens,omitempty"`
	Stream           bool                  `json:"stream"`
	ResponseFormat   *VeniceResponseFormat `json:"response_format,omitempty"`
	VeniceParameters VeniceParameters      `json:"venice_parameters"`
}

type VeniceChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type VeniceChatResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []VeniceChatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

func NewVeniceProvider(apiKey, modelName string, logger *slog.Logger) *VeniceProvider {
	return &VeniceProvider{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   veniceBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (v *VeniceProvider) WithBaseURL(url string) *VeniceProvider {
	v.baseURL = url
	return v
}

func (v *VeniceProvider) Name() string { return "venice" }

func (v *VeniceProvider) Complete(ctx context.Context, r Request) (string, error) {
	msgs := make([]veniceMessage, 0, 2)
	if r.System != "" {
		msgs = append(msgs, veniceMessage{Role: chat.ChatRoleSystem, Content: r.System})
	}
	if len(r.Image) > 0 {
		img := veniceContentPart{Type: "image_url"}
		img.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: r.DataURL()}
		msgs = append(msgs, veniceMessage{Role: chat.ChatRoleUser, Content: []veniceContentPart{
			{Type: "text", Text: r.User},
			img,
		}})
	} else {
		msgs = append(msgs, veniceMessage{Role: chat.ChatRoleUser, Content: r.User})
	}

	format := &VeniceResponseFormat{Type: "json_object"}
	if r.Schema != nil {
		format = &VeniceResponseFormat{
			Type: "json_schema",
			JSONSchema: &VeniceJSONSchema{
				Name:   r.SchemaName,
				Strict: true,
				Schema: r.Schema,
			},
		}
	}

	request := VeniceChatRequest{
		Model:          v.modelName,
		Messages:       msgs,
		Temperature:    DefaultVeniceTemperature,
		MaxTokens:      DefaultVeniceMaxTokens,
		Stream:         false,
		ResponseFormat: format,
		VeniceParameters: VeniceParameters{
			IncludeVeniceSystemPrompt: false,
			EnableWebSearch:           "off",
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: v.Name(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var veniceResp VeniceChatResponse
	if err := json.Unmarshal(respBody, &veniceResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(veniceResp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	v.logger.Debug("Venice completion",
		"model", v.modelName,
		"prompt_tokens", veniceResp.Usage.PromptTokens,
		"completion_tokens", veniceResp.Usage.CompletionTokens)

	return veniceResp.Choices[0].Message.Content, nil
}
