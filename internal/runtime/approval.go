package runtime

import (
	"context"
	"sort"

	"github.com/aretw0/redline/pkg/domain"
)

// Route is the destination chosen after an approval round.
type Route string

const (
	RouteSave       Route = "save"
	RouteRegenerate Route = "regenerate"
)

// EnterApproval opens a new approval round: the current diffs become pending and
// decisions and feedback from any earlier round are discarded.
// It reports whether the task must suspend, which is the case only when diffs are pending.
func EnterApproval(s *domain.TaskState) bool {
	pending := make([]domain.ProposedDiff, len(s.CurrentDiffs))
	for i, d := range s.CurrentDiffs {
		d.Status = domain.DiffPending
		pending[i] = d
	}
	s.PendingDiffs = pending
	s.Decisions = make(map[string]domain.Decision)
	s.Feedback = make(map[string]string)
	return len(pending) > 0
}

// MissingDecisions lists pending diff ids without a decision, in pending order.
func MissingDecisions(s *domain.TaskState) []string {
	var missing []string
	for _, d := range s.PendingDiffs {
		if _, ok := s.Decisions[d.ID]; !ok {
			missing = append(missing, d.ID)
		}
	}
	return missing
}

// ValidateResume checks that every pending diff has a decision. It never modifies s.
func ValidateResume(s *domain.TaskState) error {
	if missing := MissingDecisions(s); len(missing) > 0 {
		return &domain.IncompleteDecisionsError{TaskID: s.TaskID, Missing: missing}
	}
	return nil
}

// RouteAfterApproval picks the next step from the pending set and its decisions.
// It regenerates only when something was pending and every decision rejects.
// Resume validation guarantees decisions cover pending before this is consulted.
func RouteAfterApproval(pending []domain.ProposedDiff, decisions map[string]domain.Decision) Route {
	if len(pending) == 0 {
		return RouteSave
	}
	for _, d := range decisions {
		if d.Outcome != domain.OutcomeReject {
			return RouteSave
		}
	}
	return RouteRegenerate
}

// applyDecisions stamps decisions onto the pending diffs and moves the task to
// the routed node.
func (e *Engine) applyDecisions(s *domain.TaskState) Route {
	decided := make([]domain.ProposedDiff, 0, len(s.PendingDiffs))
	for _, d := range s.PendingDiffs {
		dec := s.Decisions[d.ID]
		switch dec.Outcome {
		case domain.OutcomeApprove:
			d.Status = domain.DiffApproved
		case domain.OutcomeEdit:
			d.Status = domain.DiffEdited
			if dec.RevisedText != "" {
				d.Replacement = dec.RevisedText
			}
		default:
			d.Status = domain.DiffRejected
		}
		if dec.Comment != "" {
			s.Feedback[d.ID] = dec.Comment
		}
		decided = append(decided, d)
	}

	route := RouteAfterApproval(s.PendingDiffs, s.Decisions)
	s.PendingDiffs = nil

	switch route {
	case RouteRegenerate:
		s.RejectedDiffs = append(s.RejectedDiffs, decided...)
		s.CurrentDiffs = nil
		s.Node = domain.NodeGenerateDiffs
	default:
		s.CurrentDiffs = decided
		s.Node = domain.NodeSaveClause
	}
	return route
}

// enterApproval runs the human_approval node.
func (e *Engine) enterApproval(ctx context.Context, s *domain.TaskState) (bool, error) {
	if !EnterApproval(s) {
		// Nothing to decide: behave as an empty resume.
		e.applyDecisions(s)
		return false, nil
	}

	status, err := Transition(s.TaskID, s.Status, LifecycleSuspend)
	if err != nil {
		return true, err
	}
	s.Status = status

	e.announce(ctx, s)
	e.logger.Info("Awaiting approval", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "pending", len(s.PendingDiffs))
	return true, nil
}

// announce emits one diff_proposed per new diff and one approval_required for the
// round, skipping diffs announced in earlier rounds.
func (e *Engine) announce(ctx context.Context, s *domain.TaskState) {
	seen := make(map[string]bool, len(s.AnnouncedDiffs))
	for _, id := range s.AnnouncedDiffs {
		seen[id] = true
	}

	var fresh []string
	for i := range s.PendingDiffs {
		d := s.PendingDiffs[i]
		if seen[d.ID] {
			continue
		}
		fresh = append(fresh, d.ID)
		e.emit(ctx, domain.Event{
			Type:     domain.EventDiffProposed,
			TaskID:   s.TaskID,
			ClauseID: d.ClauseID,
			Diff:     &d,
		})
	}
	if len(fresh) == 0 {
		return
	}

	s.AnnouncedDiffs = append(s.AnnouncedDiffs, fresh...)
	e.emit(ctx, domain.Event{
		Type:         domain.EventApprovalRequired,
		TaskID:       s.TaskID,
		ClauseID:     s.CurrentClauseID,
		PendingCount: len(s.PendingDiffs),
		DiffIDs:      sortedIDs(s.PendingDiffs),
	})
}

func sortedIDs(diffs []domain.ProposedDiff) []string {
	ids := make([]string, len(diffs))
	for i, d := range diffs {
		ids[i] = d.ID
	}
	sort.Strings(ids)
	return ids
}
