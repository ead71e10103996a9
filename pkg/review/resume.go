package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
)

// Resume continues a suspended task once all pending diffs are decided.
//
// A task that is not awaiting approval (already resuming, running or completed)
// is left alone and reported with Resumed=false. Missing decisions yield a
// *domain.IncompleteDecisionsError and the checkpoint is not modified.
func (s *Service) Resume(ctx context.Context, taskID string) (ResumeResult, error) {
	claimed, res, err := s.claim(ctx, taskID)
	if err != nil || claimed == nil {
		return res, err
	}
	return s.execute(ctx, claimed)
}

// ResumeAsync validates and claims the task synchronously, then continues it in
// the background. The returned status is "resuming" when the claim succeeded.
func (s *Service) ResumeAsync(ctx context.Context, taskID string) (ResumeResult, error) {
	claimed, res, err := s.claim(ctx, taskID)
	if err != nil || claimed == nil {
		return res, err
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(bg, claimed); err != nil {
			s.logger.Error("Background resume failed", "task_id", taskID, "err", err)
		}
	}()
	return ResumeResult{Resumed: true, Status: claimed.Status, State: claimed}, nil
}

// claim moves an awaiting task to "resuming" under the task lock.
// A resuming marker older than the claim lease is released first.
// It returns a nil state when the task was not awaiting approval.
func (s *Service) claim(ctx context.Context, taskID string) (*domain.TaskState, ResumeResult, error) {
	var claimed *domain.TaskState
	current, err := s.sessions.Update(ctx, taskID, func(st *domain.TaskState) (*domain.TaskState, error) {
		if st.Status == domain.StatusResuming && s.now().Sub(st.UpdatedAt) > s.lease {
			status, err := runtime.Transition(taskID, st.Status, runtime.LifecycleRelease)
			if err != nil {
				return nil, err
			}
			s.logger.Warn("Reclaiming stale resume", "task_id", taskID, "claimed_at", st.UpdatedAt)
			st.Status = status
		}
		if st.Status != domain.StatusAwaitingApproval {
			return nil, nil
		}
		if err := runtime.ValidateResume(st); err != nil {
			return nil, err
		}
		status, err := runtime.Transition(taskID, st.Status, runtime.LifecycleClaim)
		if err != nil {
			return nil, err
		}
		st.Status = status
		claimed = st
		return st, nil
	})
	if err != nil {
		return nil, ResumeResult{}, err
	}
	if claimed == nil {
		s.logger.Info("Resume ignored, task not awaiting approval", "task_id", taskID, "status", current.Status)
		return nil, ResumeResult{Resumed: false, Status: current.Status, State: current}, nil
	}
	return claimed.Clone(), ResumeResult{}, nil
}

// execute runs the engine from a claimed checkpoint and persists the outcome.
// On failure the claim is released so the task can be resumed again.
func (s *Service) execute(ctx context.Context, claimed *domain.TaskState) (ResumeResult, error) {
	next, runErr := s.engine.Resume(ctx, claimed)
	if runErr != nil {
		s.logger.Error("Resume failed, releasing claim", "task_id", claimed.TaskID, "err", runErr)
		if err := s.release(context.WithoutCancel(ctx), claimed); err != nil {
			return ResumeResult{}, errors.Join(runErr, err)
		}
		return ResumeResult{}, runErr
	}

	if err := s.sessions.Save(context.WithoutCancel(ctx), next.TaskID, next); err != nil {
		return ResumeResult{}, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return ResumeResult{Resumed: true, Status: next.Status, State: next}, nil
}

func (s *Service) release(ctx context.Context, claimed *domain.TaskState) error {
	_, err := s.sessions.Update(ctx, claimed.TaskID, func(st *domain.TaskState) (*domain.TaskState, error) {
		if st.Status != domain.StatusResuming {
			return nil, nil
		}
		status, err := runtime.Transition(st.TaskID, st.Status, runtime.LifecycleRelease)
		if err != nil {
			return nil, err
		}
		restored := claimed.Clone()
		restored.Status = status
		return restored, nil
	})
	return err
}
