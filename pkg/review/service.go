package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/session"
)

// StartRequest describes a new review task.
type StartRequest struct {
	// TaskID is optional; a random id is assigned when empty.
	TaskID   string                 `json:"task_id,omitempty"`
	DomainID string                 `json:"domain_id"`
	Document *domain.Document       `json:"document"`
	// Checklist overrides the domain plugin checklist when non-nil.
	Checklist []domain.ChecklistItem `json:"checklist,omitempty"`
}

// ResumeResult reports what a resume request did.
type ResumeResult struct {
	// Resumed is false when the task was not awaiting approval.
	Resumed bool              `json:"resumed"`
	Status  domain.TaskStatus `json:"status"`
	State   *domain.TaskState `json:"-"`
}

// TaskInfo is the listing view of a task.
type TaskInfo struct {
	TaskID          string            `json:"task_id"`
	DomainID        string            `json:"domain_id"`
	Status          domain.TaskStatus `json:"status"`
	Node            domain.NodeID     `json:"node"`
	CurrentClauseID string            `json:"current_clause_id,omitempty"`
	Progress        string            `json:"progress"`
	Pending         int               `json:"pending"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Service coordinates the engine with checkpoint persistence.
type Service struct {
	engine   *runtime.Engine
	sessions *session.Manager
	logger   *slog.Logger

	wg    sync.WaitGroup
	now   func() time.Time
	lease time.Duration
}

// DefaultClaimLease is how long a "resuming" marker protects a task. A marker
// older than this is left over from a process that died mid-resume.
const DefaultClaimLease = 15 * time.Minute

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClaimLease sets how long a resume claim stays valid without progress.
func WithClaimLease(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lease = d
		}
	}
}

// WithClock overrides the time source used by Reap and claim expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a review service.
func NewService(engine *runtime.Engine, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		sessions: sessions,
		logger:   logging.NewNop(),
		now:      time.Now,
		lease:    DefaultClaimLease,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine.
func (s *Service) Engine() *runtime.Engine {
	return s.engine
}

// Start creates a task and runs it until it suspends for approval or completes.
// The checkpoint is saved even when the run fails part way.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.TaskState, error) {
	if req.Document == nil {
		return nil, errors.New("start: document is required")
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}

	state := s.engine.NewTask(req.TaskID, req.DomainID, req.Document, req.Checklist)
	if len(state.Checklist) == 0 {
		s.logger.Warn("Task has an empty checklist", "task_id", state.TaskID, "domain", state.DomainID)
	}
	if err := s.sessions.Create(ctx, state); err != nil {
		return nil, err
	}
	s.logger.Info("Task started", "task_id", state.TaskID, "domain", state.DomainID, "clauses", len(state.Checklist))

	next, runErr := s.engine.Run(ctx, state)
	if next == nil {
		return nil, runErr
	}
	if err := s.sessions.Save(context.WithoutCancel(ctx), next.TaskID, next); err != nil {
		return next, errors.Join(runErr, fmt.Errorf("failed to save checkpoint: %w", err))
	}
	return next, runErr
}

// Get loads a task checkpoint.
func (s *Service) Get(ctx context.Context, taskID string) (*domain.TaskState, error) {
	return s.sessions.Load(ctx, taskID)
}

// List returns every stored task, sorted by id.
func (s *Service) List(ctx context.Context) ([]TaskInfo, error) {
	ids, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]TaskInfo, 0, len(ids))
	for _, id := range ids {
		st, err := s.sessions.Load(ctx, id)
		if errors.Is(err, domain.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Info(st))
	}
	return out, nil
}

// Info projects a checkpoint onto its listing view.
func Info(st *domain.TaskState) TaskInfo {
	done := st.ClauseIndex
	if done < 0 {
		done = 0
	}
	if done > len(st.Checklist) {
		done = len(st.Checklist)
	}
	return TaskInfo{
		TaskID:          st.TaskID,
		DomainID:        st.DomainID,
		Status:          st.Status,
		Node:            st.Node,
		CurrentClauseID: st.CurrentClauseID,
		Progress:        fmt.Sprintf("%d/%d", done, len(st.Checklist)),
		Pending:         len(st.PendingDiffs),
		UpdatedAt:       st.UpdatedAt,
	}
}

// Delete removes a task checkpoint.
func (s *Service) Delete(ctx context.Context, taskID string) error {
	return s.sessions.Delete(ctx, taskID)
}

// Reap deletes tasks not touched for longer than maxIdle and returns how many
// were removed. Suspended tasks qualify, and so do running or resuming tasks
// whose process died before saving. Completed tasks are kept.
func (s *Service) Reap(ctx context.Context, maxIdle time.Duration) (int, error) {
	ids, err := s.sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxIdle)

	reaped := 0
	for _, id := range ids {
		var removed bool
		err := s.sessions.WithLock(ctx, id, func(ctx context.Context) error {
			st, err := s.sessions.Store().Load(ctx, id)
			if err != nil {
				return err
			}
			if !reapable(st.Status) || !st.UpdatedAt.Before(cutoff) {
				return nil
			}
			removed = true
			return s.sessions.Store().Delete(ctx, id)
		})
		if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			return reaped, err
		}
		if removed {
			reaped++
			s.logger.Info("Reaped abandoned task", "task_id", id)
		}
	}
	return reaped, nil
}

func reapable(status domain.TaskStatus) bool {
	switch status {
	case domain.StatusAwaitingApproval, domain.StatusResuming, domain.StatusRunning:
		return true
	}
	return false
}

// Wait blocks until every background resume started by ResumeAsync has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
