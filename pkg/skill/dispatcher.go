package skill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
)

// Dispatcher resolves skills, builds their inputs and runs their handlers.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for fallbacks and failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSkillTimeout bounds every skill execution that does not set its own Timeout.
func WithSkillTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   logging.NewNop(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Execute runs skillID for clauseID. It never panics and never returns an error:
// unresolved skills, invalid inputs and handler failures all yield Success=false.
//
// A failing input builder does not fail the skill. The handler then receives
// the minimal fallback input {clause_id, state}, which skips validation.
func (d *Dispatcher) Execute(ctx context.Context, skillID, clauseID string, doc *domain.Document, state *domain.TaskState) Result {
	start := time.Now()

	s, err := d.registry.Resolve(skillID)
	if err != nil {
		return failure(err, start)
	}

	in, built := d.buildInput(s, clauseID, doc, state)
	if built {
		if err := s.ValidateInput(in, true); err != nil {
			d.logger.Warn("Skill input rejected", "skill_id", s.ID, "clause_id", clauseID, "err", err)
			return failure(err, start)
		}
	}

	return d.run(ctx, s, in, start)
}

// Invoke runs skillID with caller-supplied arguments, as a tool-calling client would.
// Arguments are validated against the public contract.
func (d *Dispatcher) Invoke(ctx context.Context, skillID string, args map[string]any) Result {
	start := time.Now()

	s, err := d.registry.Resolve(skillID)
	if err != nil {
		return failure(err, start)
	}
	in := Input(args)
	if err := s.ValidateInput(in, false); err != nil {
		return failure(err, start)
	}
	return d.run(ctx, s, in, start)
}

// buildInput reports false when the fallback input is used.
func (d *Dispatcher) buildInput(s Skill, clauseID string, doc *domain.Document, state *domain.TaskState) (in Input, built bool) {
	if s.InputBuilder == nil {
		return Input{ParamClauseID: clauseID, ParamDocument: doc, ParamState: state}, true
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("Input builder panicked, using fallback input", "skill_id", s.ID, "clause_id", clauseID, "panic", r)
			in, built = fallbackInput(clauseID, state), false
		}
	}()

	in, err := s.InputBuilder.BuildInput(clauseID, doc, state)
	if err != nil {
		d.logger.Warn("Input builder failed, using fallback input", "skill_id", s.ID, "clause_id", clauseID, "err", err)
		return fallbackInput(clauseID, state), false
	}
	if in == nil {
		in = Input{}
	}
	return in, true
}

type handlerReply struct {
	out map[string]any
	err error
}

// run executes the handler on its own goroutine, so a handler that ignores
// ctx still yields a failure once the skill's deadline passes.
func (d *Dispatcher) run(ctx context.Context, s Skill, in Input, start time.Time) Result {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan handlerReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Skill handler panicked", "skill_id", s.ID, "panic", r)
				done <- handlerReply{err: fmt.Errorf("skill %s panicked: %v", s.ID, r)}
			}
		}()
		out, err := s.Handler.Execute(callCtx, in)
		done <- handlerReply{out: out, err: err}
	}()

	var rep handlerReply
	select {
	case rep = <-done:
	case <-callCtx.Done():
		d.logger.Warn("Skill did not finish in time", "skill_id", s.ID, "timeout", timeout)
		return failure(fmt.Errorf("skill %s: %w", s.ID, callCtx.Err()), start)
	}

	if rep.err != nil {
		return failure(rep.err, start)
	}
	if rep.out == nil {
		rep.out = map[string]any{}
	}
	return Result{Success: true, Output: rep.out, Duration: time.Since(start)}
}

func fallbackInput(clauseID string, state *domain.TaskState) Input {
	return Input{ParamClauseID: clauseID, ParamState: state}
}

func failure(err error, start time.Time) Result {
	return Result{Success: false, Error: err.Error(), Duration: time.Since(start)}
}
