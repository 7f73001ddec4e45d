package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyResponse is returned when the model produces no choices.
var ErrEmptyResponse = errors.New("model returned no response")

// ChatModel implements ai.ChatModel using an OpenAI-compatible chat endpoint.
type ChatModel struct {
	client      *openai.LLM
	temperature float64
	logger      *slog.Logger
}

var _ ai.ChatModel = (*ChatModel)(nil)

func newChatModel(config *ai.Config, opts ...openai.Option) (*ChatModel, error) {
	if err := config.ValidateChat(); err != nil {
		return nil, err
	}

	clientOpts := append([]openai.Option{
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	}, opts...)
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a chat model using the provided configuration.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Complete sends the system prompt followed by the message history.
func (c *ChatModel) Complete(ctx context.Context, system string, messages []ai.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	if system != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	for _, m := range messages {
		content = append(content, llms.MessageContent{
			Role:  messageType(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}

	c.logger.Debug("requesting completion", "messages", len(content))
	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(c.temperature))
	if err != nil {
		c.logger.Error("completion failed", "err", err)
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

func messageType(role core.Role) llms.ChatMessageType {
	if role == core.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
