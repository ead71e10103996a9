package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/redline/pkg/ports"
)

// DefaultTimeout bounds a model call when the request sets none.
const DefaultTimeout = 60 * time.Second

// ErrNoModel is reported when a step runs without a configured model backend.
var ErrNoModel = errors.New("no model configured")

// Request is one role-scoped model call.
type Request struct {
	// Role names the persona of the step, e.g. "contract risk analyst".
	Role    string
	System  string
	Prompt  string
	Timeout time.Duration
}

// Messages renders the request as chat messages.
func (r Request) Messages() []ports.Message {
	var system strings.Builder
	if r.Role != "" {
		fmt.Fprintf(&system, "You are a %s.", r.Role)
	}
	if r.System != "" {
		if system.Len() > 0 {
			system.WriteString("\n\n")
		}
		system.WriteString(r.System)
	}

	msgs := make([]ports.Message, 0, 2)
	if system.Len() > 0 {
		msgs = append(msgs, ports.Message{Role: ports.RoleSystem, Content: system.String()})
	}
	return append(msgs, ports.Message{Role: ports.RoleUser, Content: r.Prompt})
}

// Outcome is the result of a model-backed step.
type Outcome[T any] struct {
	Value T
	// Used is false whenever Value is the fallback.
	Used     bool
	Err      error
	Raw      string
	Duration time.Duration
}

type reply struct {
	text string
	err  error
}

// Invoke calls model and parses its reply into T. On any failure it returns
// fallback with Used=false.
func Invoke[T any](ctx context.Context, model ports.ChatModel, req Request, fallback T) Outcome[T] {
	start := time.Now()
	degrade := func(raw string, err error) Outcome[T] {
		return Outcome[T]{Value: fallback, Used: false, Err: err, Raw: raw, Duration: time.Since(start)}
	}

	if model == nil {
		return degrade("", ErrNoModel)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The call runs on its own goroutine so a backend that ignores ctx still
	// cannot hold the step past its deadline.
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		text, err := model.Chat(callCtx, req.Messages())
		done <- reply{text: text, err: err}
	}()

	var res reply
	select {
	case res = <-done:
	case <-callCtx.Done():
		return degrade("", fmt.Errorf("model call: %w", callCtx.Err()))
	}

	if res.err != nil {
		return degrade(res.text, fmt.Errorf("model call: %w", res.err))
	}

	value, err := ParseStructured[T](res.text)
	if err != nil {
		return degrade(res.text, err)
	}
	return Outcome[T]{Value: value, Used: true, Raw: res.text, Duration: time.Since(start)}
}
