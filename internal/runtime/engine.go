// Package runtime implements the review state machine.
//
// One TaskState is advanced node by node until the task either suspends at the
// human approval gate or reaches done. The engine is stateless between calls:
// everything it needs to continue lives in the TaskState, so a checkpoint taken
// at a suspension point can be resumed by any process.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/skill"
)

// DefaultMaxRetries bounds the analyze/validate loop to DefaultMaxRetries+1 attempts per clause.
const DefaultMaxRetries = 2

// maxStepsPerRun guards against a routing bug turning Run into a busy loop.
const maxStepsPerRun = 10000

// Engine is the core state machine runner.
type Engine struct {
	dispatcher   *skill.Dispatcher
	plugins      *plugin.Registry
	model        ports.ChatModel
	sink         ports.EventSink
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	maxRetries   int
	modelTimeout time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithEventSink sets the destination of outbound events.
func WithEventSink(sink ports.EventSink) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithPlugins sets the domain plugin registry used for checklists and baselines.
func WithPlugins(plugins *plugin.Registry) EngineOption {
	return func(e *Engine) {
		if plugins != nil {
			e.plugins = plugins
		}
	}
}

// WithMaxRetries sets how many times a failed validation sends a clause back to analysis.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithModelTimeout bounds every model call.
func WithModelTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.modelTimeout = d
	}
}

// NewEngine creates a new engine with dependencies.
// A nil model is allowed: every model-backed step then degrades to its default.
func NewEngine(dispatcher *skill.Dispatcher, model ports.ChatModel, opts ...EngineOption) *Engine {
	e := &Engine{
		dispatcher: dispatcher,
		plugins:    plugin.NewRegistry(),
		model:      model,
		sink:       ports.FanOut(),
		logger:     logging.NewNop(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRetries returns the configured retry limit.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// Plugins returns the plugin registry the engine reads checklists from.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// NewTask creates a task for doc. A nil checklist uses the domain plugin's checklist.
func (e *Engine) NewTask(taskID, domainID string, doc *domain.Document, checklist []domain.ChecklistItem) *domain.TaskState {
	if checklist == nil {
		checklist = e.plugins.Checklist(domainID)
	}
	return domain.NewTaskState(taskID, domainID, doc, checklist)
}

// Run advances state until it suspends for approval or completes.
// The input is not modified; the returned state is a new snapshot.
// Run on a suspended or completed task returns it unchanged.
func (e *Engine) Run(ctx context.Context, state *domain.TaskState) (*domain.TaskState, error) {
	if state == nil {
		return nil, fmt.Errorf("run: nil state")
	}
	s := state.Clone()
	if s.Status != domain.StatusRunning {
		return s, nil
	}
	return e.advance(ctx, s)
}

func (e *Engine) advance(ctx context.Context, s *domain.TaskState) (*domain.TaskState, error) {
	for steps := 0; steps < maxStepsPerRun; steps++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		node := s.Node
		e.emitNodeEnter(ctx, s)
		halt, err := e.step(ctx, s)
		s.UpdatedAt = time.Now().UTC()
		if err != nil {
			return s, err
		}
		if halt {
			return s, nil
		}
		e.emitNodeLeave(ctx, s, node)
	}
	return s, fmt.Errorf("task %s: exceeded %d steps without suspending or completing", s.TaskID, maxStepsPerRun)
}

// step executes the current node. It reports true when execution must halt.
func (e *Engine) step(ctx context.Context, s *domain.TaskState) (bool, error) {
	switch s.Node {
	case domain.NodeStart:
		s.Node = domain.NodeSelectClause
	case domain.NodeSelectClause:
		e.selectClause(s)
	case domain.NodeAnalyzeClause:
		e.analyzeClause(ctx, s)
	case domain.NodeGenerateDiffs:
		e.generateDiffs(ctx, s)
	case domain.NodeValidate:
		e.validate(ctx, s)
	case domain.NodeHumanApproval:
		return e.enterApproval(ctx, s)
	case domain.NodeSaveClause:
		e.saveClause(ctx, s)
	case domain.NodeSummarize:
		e.summarize(ctx, s)
	case domain.NodeDone:
		return true, e.finish(ctx, s)
	default:
		return true, &UnknownNodeError{TaskID: s.TaskID, Node: s.Node}
	}
	return false, nil
}

func (e *Engine) finish(ctx context.Context, s *domain.TaskState) error {
	if s.Completed {
		return nil
	}
	status, err := Transition(s.TaskID, s.Status, LifecycleFinish)
	if err != nil {
		return err
	}
	s.Status = status
	s.Completed = true
	e.logger.Info("Review completed", "task_id", s.TaskID, "risks", len(s.AllRisks), "diffs", len(s.AllDiffs))
	e.emit(ctx, domain.Event{Type: domain.EventTaskCompleted, TaskID: s.TaskID})
	return nil
}

// Resume lifts the approval suspension of state once every pending diff has a decision,
// applies the decisions and continues execution.
// It returns *domain.IncompleteDecisionsError, leaving state untouched, when decisions are missing.
func (e *Engine) Resume(ctx context.Context, state *domain.TaskState) (*domain.TaskState, error) {
	if state == nil {
		return nil, fmt.Errorf("resume: nil state")
	}
	if state.Node != domain.NodeHumanApproval ||
		(state.Status != domain.StatusAwaitingApproval && state.Status != domain.StatusResuming) {
		return nil, fmt.Errorf("task %s: %w", state.TaskID, domain.ErrNotAwaitingApproval)
	}
	if err := ValidateResume(state); err != nil {
		return nil, err
	}

	s := state.Clone()
	if s.Status == domain.StatusAwaitingApproval {
		status, err := Transition(s.TaskID, s.Status, LifecycleClaim)
		if err != nil {
			return nil, err
		}
		s.Status = status
	}
	status, err := Transition(s.TaskID, s.Status, LifecycleResume)
	if err != nil {
		return nil, err
	}
	s.Status = status

	route := e.applyDecisions(s)
	e.logger.Info("Approval resumed", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "route", route)
	e.emitNodeLeave(ctx, s, domain.NodeHumanApproval)

	return e.advance(ctx, s)
}

func (e *Engine) emit(ctx context.Context, event domain.Event) {
	if e.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	e.sink.Emit(ctx, event)
}

func (e *Engine) emitNodeEnter(ctx context.Context, s *domain.TaskState) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    s.TaskID,
		NodeID:    s.Node,
		ClauseID:  s.CurrentClauseID,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, s *domain.TaskState, node domain.NodeID) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    s.TaskID,
		NodeID:    node,
		ClauseID:  s.CurrentClauseID,
	})
}

func (e *Engine) emitSkillReturn(ctx context.Context, s *domain.TaskState, skillID string, res skill.Result) {
	if e.hooks.OnSkillReturn == nil {
		return
	}
	e.hooks.OnSkillReturn(ctx, &domain.SkillEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    s.TaskID,
		ClauseID:  s.CurrentClauseID,
		SkillID:   skillID,
		Success:   res.Success,
		Error:     res.Error,
		Duration:  res.Duration,
	})
}

func (e *Engine) emitModelReturn(ctx context.Context, s *domain.TaskState, step string, used bool, d time.Duration) {
	if e.hooks.OnModelReturn == nil {
		return
	}
	e.hooks.OnModelReturn(ctx, &domain.ModelEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    s.TaskID,
		ClauseID:  s.CurrentClauseID,
		Step:      step,
		Used:      used,
		Duration:  d,
	})
}

// UnknownNodeError is returned when a checkpoint names a node the engine does not know.
type UnknownNodeError struct {
	TaskID string
	Node   domain.NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("task %s: unknown node %q", e.TaskID, e.Node)
}
