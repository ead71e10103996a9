package llm

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/aretw0/redline/pkg/ports"
)

// Resilient wraps a model backend with retries and an overall deadline.
type Resilient struct {
	inner       ports.ChatModel
	maxAttempts int
	delay       time.Duration
	deadline    time.Duration
}

// ResilientOption configures a Resilient model.
type ResilientOption func(*Resilient)

// WithAttempts sets the maximum number of attempts per call.
func WithAttempts(n int) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		r.delay = d
	}
}

// WithDeadline bounds all attempts of one call together.
func WithDeadline(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.deadline = d
		}
	}
}

// NewResilient wraps inner.
func NewResilient(inner ports.ChatModel, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:       inner,
		maxAttempts: 2,
		delay:       time.Second,
		deadline:    2 * DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chat implements ports.ChatModel.
func (r *Resilient) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	rt := retry.New[string](retry.Config{
		MaxAttempts:   r.maxAttempts,
		InitialDelay:  r.delay,
		BackoffPolicy: retry.BackoffExponential,
	})
	to := timeout.New[string](timeout.Config{
		DefaultTimeout: r.deadline,
	})

	return to.Execute(ctx, r.deadline, func(ctx context.Context) (string, error) {
		return rt.Do(ctx, func(ctx context.Context) (string, error) {
			return r.inner.Chat(ctx, messages)
		})
	})
}
