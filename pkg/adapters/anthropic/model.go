// Package anthropic implements ports.ChatModel on the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aretw0/redline/pkg/ports"
)

const (
	// DefaultModel is used when no model name is configured.
	DefaultModel = "claude-3-5-haiku-latest"
	// DefaultMaxTokens bounds each reply; the messages API requires a limit.
	DefaultMaxTokens = 2048
)

// ErrEmptyReply is returned when the reply carries no text block.
var ErrEmptyReply = errors.New("anthropic: empty reply")

// Model calls the messages endpoint. System messages become the system prompt.
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

// WithMaxTokens sets the reply limit.
func WithMaxTokens(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		if url = strings.TrimSpace(url); url != "" {
			c.reqOpts = append(c.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithRequestOptions passes raw SDK options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, opts...) }
}

// New creates a Model authenticated with apiKey.
func New(apiKey string, opts ...Option) *Model {
	cfg := config{model: DefaultModel, maxTokens: DefaultMaxTokens}
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
	var system []string
	turns := make([]sdk.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ports.RoleSystem:
			system = append(system, msg.Content)
		case ports.RoleAssistant:
			turns = append(turns, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}
	// The API rejects a conversation without a user turn.
	if len(turns) == 0 {
		turns = append(turns, sdk.NewUserMessage(sdk.NewTextBlock("Continue.")))
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(m.model),
		MaxTokens:   m.maxTokens,
		Messages:    turns,
		Temperature: sdk.Float(m.temperature),
	}
	if len(system) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}

var _ ports.ChatModel = (*Model)(nil)
