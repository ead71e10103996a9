// Package openai implements ports.ChatModel on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aretw0/redline/pkg/ports"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o-mini"

// ErrEmptyReply is returned when the API answers without any choice.
var ErrEmptyReply = errors.New("openai: empty reply")

// Model calls the chat completions endpoint with a fixed model and temperature.
type Model struct {
	client      sdk.Client
	model       string
	temperature float64
	maxTokens   int64
}

// Option configures the Model.
type Option func(*config)

type config struct {
	model       string
	temperature float64
	maxTokens   int64
	reqOpts     []option.RequestOption
}

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(c *config) {
		if name = strings.TrimSpace(name); name != "" {
			c.model = name
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithMaxTokens caps the completion length. Zero leaves the API default.
func WithMaxTokens(n int64) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		if url = strings.TrimSpace(url); url != "" {
			c.reqOpts = append(c.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithRequestOptions passes raw SDK options, such as retries or an HTTP client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, opts...) }
}

// New creates a Model authenticated with apiKey.
func New(apiKey string, opts ...Option) *Model {
	cfg := config{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}, cfg.reqOpts...)
	return &Model{
		client:      sdk.NewClient(reqOpts...),
		model:       cfg.model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}
}

// Chat implements ports.ChatModel.
func (m *Model) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(m.model),
		Messages:    toMessages(messages),
		Temperature: sdk.Float(m.temperature),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(m.maxTokens)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

func toMessages(messages []ports.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ports.RoleSystem:
			out = append(out, sdk.SystemMessage(msg.Content))
		case ports.RoleAssistant:
			out = append(out, sdk.AssistantMessage(msg.Content))
		default:
			out = append(out, sdk.UserMessage(msg.Content))
		}
	}
	return out
}

var _ ports.ChatModel = (*Model)(nil)
