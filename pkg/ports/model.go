package ports

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn sent to the model backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatModel is the model backend contract.
// Implementations return the raw text reply; failures surface as errors which
// the LLM invocation contract turns into graceful degradation.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ChatModelFunc adapts a function to the ChatModel interface.
type ChatModelFunc func(ctx context.Context, messages []Message) (string, error)

// Chat calls f(ctx, messages).
func (f ChatModelFunc) Chat(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
