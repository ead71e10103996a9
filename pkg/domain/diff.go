package domain

// TaskDelta represents the changes between two checkpoints of a task.
// It is designed to be serialized to JSON for partial updates on the client.
type TaskDelta struct {
	// TaskID is always present to identify the target.
	TaskID string `json:"task_id"`

	Node     *NodeID     `json:"node,omitempty"`
	Status   *TaskStatus `json:"status,omitempty"`
	ClauseID *string     `json:"clause_id,omitempty"`

	// NewRisks and NewDiffs contain only items appended since the old checkpoint.
	NewRisks []RiskFinding  `json:"new_risks,omitempty"`
	NewDiffs []ProposedDiff `json:"new_diffs,omitempty"`

	// Pending is the full pending set whenever it changed.
	Pending []ProposedDiff `json:"pending,omitempty"`

	Completed *bool `json:"completed,omitempty"`
}

// Delta calculates the difference between oldState and newState.
// If oldState is nil, it returns a delta representing the entire newState (initial load).
// It returns nil when nothing observable changed.
func Delta(oldState, newState *TaskState) *TaskDelta {
	if newState == nil {
		return nil
	}

	delta := &TaskDelta{TaskID: newState.TaskID}

	if oldState == nil || oldState.Node != newState.Node {
		delta.Node = &newState.Node
	}
	if oldState == nil || oldState.Status != newState.Status {
		delta.Status = &newState.Status
	}
	if oldState == nil || oldState.CurrentClauseID != newState.CurrentClauseID {
		delta.ClauseID = &newState.CurrentClauseID
	}
	if oldState == nil {
		if newState.Completed {
			delta.Completed = &newState.Completed
		}
	} else if oldState.Completed != newState.Completed {
		delta.Completed = &newState.Completed
	}

	// Accumulated results are append-only.
	var oldRisks, oldDiffs int
	if oldState != nil {
		oldRisks, oldDiffs = len(oldState.AllRisks), len(oldState.AllDiffs)
	}
	if len(newState.AllRisks) > oldRisks {
		delta.NewRisks = newState.AllRisks[oldRisks:]
	}
	if len(newState.AllDiffs) > oldDiffs {
		delta.NewDiffs = newState.AllDiffs[oldDiffs:]
	}

	if oldState == nil || !samePending(oldState.PendingDiffs, newState.PendingDiffs) {
		delta.Pending = newState.PendingDiffs
	}

	if delta.IsEmpty() {
		return nil
	}
	return delta
}

func samePending(a, b []ProposedDiff) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Status != b[i].Status {
			return false
		}
	}
	return true
}

// IsEmpty checks if the delta contains any actionable changes.
func (d *TaskDelta) IsEmpty() bool {
	return d.Node == nil &&
		d.Status == nil &&
		d.ClauseID == nil &&
		d.Completed == nil &&
		len(d.NewRisks) == 0 &&
		len(d.NewDiffs) == 0 &&
		len(d.Pending) == 0
}
