package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider uses the official SDK. SDK-level retries are disabled;
// the gateway owns the retry policy.
type OpenAIProvider struct {
	client    openai.Client
	modelName string
	logger    *slog.Logger
}

func NewOpenAIProvider(apiKey, modelName string, logger *slog.Logger, opts ...option.RequestOption) *OpenAIProvider {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &OpenAIProvider{
		client:    openai.NewClient(all...),
		modelName: modelName,
		logger:    logger,
	}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Complete(ctx context.Context, r Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if r.System != "" {
		messages = append(messages, openai.SystemMessage(r.System))
	}
	if len(r.Image) > 0 {
		messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(r.User),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: r.DataURL()}),
		}))
	} else {
		messages = append(messages, openai.UserMessage(r.User))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.modelName,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	o.logger.Debug("OpenAI completion",
		"model", o.modelName,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}
