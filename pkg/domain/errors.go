package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTaskNotFound is returned when a task ID cannot be found in the store.
var ErrTaskNotFound = errors.New("task not found")

// ErrNotAwaitingApproval is returned when decisions are submitted to a task that is not suspended.
var ErrNotAwaitingApproval = errors.New("task is not awaiting approval")

// ErrUnknownDiff is returned when a decision references a diff that is not pending.
var ErrUnknownDiff = errors.New("diff is not pending approval")

// ErrInvalidDecision is returned for an outcome other than approve, reject or edit.
var ErrInvalidDecision = errors.New("invalid decision")

// IncompleteDecisionsError rejects a resume request while some pending diffs are undecided.
type IncompleteDecisionsError struct {
	TaskID  string
	Missing []string
}

func (e *IncompleteDecisionsError) Error() string {
	return fmt.Sprintf("task %s: missing decisions for diffs: %s", e.TaskID, strings.Join(e.Missing, ", "))
}

// ErrTaskExists is returned when creating a task whose id is already stored.
var ErrTaskExists = errors.New("task already exists")
