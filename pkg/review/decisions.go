package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
)

// SubmitDecision records a decision on one pending diff.
func (s *Service) SubmitDecision(ctx context.Context, taskID, diffID string, decision domain.Decision) (*domain.TaskState, error) {
	return s.SubmitDecisions(ctx, taskID, map[string]domain.Decision{diffID: decision})
}

// SubmitDecisions records several decisions at once. Either all are recorded or none.
// Decisions are accepted only while the task is awaiting approval and only for
// diffs pending in the current round; a later decision on the same diff replaces
// the earlier one.
func (s *Service) SubmitDecisions(ctx context.Context, taskID string, decisions map[string]domain.Decision) (*domain.TaskState, error) {
	return s.sessions.Update(ctx, taskID, func(st *domain.TaskState) (*domain.TaskState, error) {
		if st.Status != domain.StatusAwaitingApproval {
			return nil, fmt.Errorf("task %s is %s: %w", taskID, st.Status, domain.ErrNotAwaitingApproval)
		}

		pending := make(map[string]bool, len(st.PendingDiffs))
		for _, d := range st.PendingDiffs {
			pending[d.ID] = true
		}

		accepted := make(map[string]domain.Decision, len(decisions))
		for diffID, dec := range decisions {
			if !pending[diffID] {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDiff, diffID)
			}
			dec.Outcome = domain.Outcome(strings.ToLower(strings.TrimSpace(string(dec.Outcome))))
			if !dec.Outcome.Valid() {
				return nil, fmt.Errorf("%w: %q for diff %s", domain.ErrInvalidDecision, dec.Outcome, diffID)
			}
			accepted[diffID] = dec
		}

		for diffID, dec := range accepted {
			st.Decisions[diffID] = dec
		}
		s.logger.Debug("Decisions recorded", "task_id", taskID, "count", len(decisions), "missing", len(runtime.MissingDecisions(st)))
		return st, nil
	})
}

// Missing lists pending diff ids that still need a decision.
func (s *Service) Missing(ctx context.Context, taskID string) ([]string, error) {
	st, err := s.sessions.Load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return runtime.MissingDecisions(st), nil
}
