package domain

import (
	"context"
	"time"
)

// EventType defines the category of an outbound event.
type EventType string

const (
	// EventDiffProposed is emitted once per diff pushed to the approval gate.
	EventDiffProposed EventType = "diff_proposed"
	// EventApprovalRequired is emitted once per approval round that introduced new diffs.
	EventApprovalRequired EventType = "approval_required"
	// EventClauseSaved is emitted when a clause's findings are committed.
	EventClauseSaved EventType = "clause_saved"
	// EventTaskCompleted is emitted after the summary is produced.
	EventTaskCompleted EventType = "task_completed"
)

// Event is a signal for the outside world (SSE clients, logs, queues).
type Event struct {
	Type         EventType     `json:"type"`
	TaskID       string        `json:"task_id"`
	ClauseID     string        `json:"clause_id,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	Diff         *ProposedDiff `json:"diff,omitempty"`
	PendingCount int           `json:"pending_count,omitempty"`
	DiffIDs      []string      `json:"diff_ids,omitempty"`
}

// NodeEvent represents entry or exit from a state machine node.
type NodeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	NodeID    NodeID    `json:"node_id"`
	ClauseID  string    `json:"clause_id,omitempty"`
}

// SkillEvent represents one skill execution.
type SkillEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"task_id"`
	ClauseID  string        `json:"clause_id"`
	SkillID   string        `json:"skill_id"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ModelEvent represents one LLM-backed step.
type ModelEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	TaskID    string        `json:"task_id"`
	ClauseID  string        `json:"clause_id,omitempty"`
	Step      string        `json:"step"`
	Used      bool          `json:"used"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnSkillReturn func(context.Context, *SkillEvent)
	OnModelReturn func(context.Context, *ModelEvent)
}

// Merge combines two hook sets so both are invoked.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:   chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:   chain(h.OnNodeLeave, other.OnNodeLeave),
		OnSkillReturn: chain(h.OnSkillReturn, other.OnSkillReturn),
		OnModelReturn: chain(h.OnModelReturn, other.OnModelReturn),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
