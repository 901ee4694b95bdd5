// Package llm turns retrieved context and a user question into a
// completion from an OpenAI-compatible chat API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// Completer produces an answer grounded in the supplied context
// passages.
type Completer interface {
	Complete(ctx context.Context, query string, contexts []string, opts *Options) (string, error)
}

// Options override per-request generation settings. Zero values fall
// back to the client defaults.
type Options struct {
	Model        string
	SystemPrompt string
}

// Config holds the client defaults.
type Config struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	TopP         float32
}

// Client calls a chat completion endpoint.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger zerolog.Logger
}

var _ Completer = (*Client)(nil)

// NewClient wires a completion client.
func NewClient(api *openai.Client, cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// Complete implements Completer. The context passages are joined into
// a single prompt ahead of the question.
func (c *Client) Complete(ctx context.Context, query string, contexts []string, opts *Options) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}

	model := c.cfg.Model
	systemPrompt := c.cfg.SystemPrompt
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.SystemPrompt != "" {
			systemPrompt = opts.SystemPrompt
		}
	}

	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", strings.Join(contexts, "\n\n"), query)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion failed: %v", apperr.ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", apperr.ErrProvider)
	}

	c.logger.Debug().Str("model", model).Int("contexts", len(contexts)).Msg("completion generated")
	return resp.Choices[0].Message.Content, nil
}
