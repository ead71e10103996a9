package domain

import (
	"time"
)

// TaskStatus defines the current mode of a review task.
type TaskStatus string

const (
	StatusRunning          TaskStatus = "running"           // Engine is advancing nodes
	StatusAwaitingApproval TaskStatus = "awaiting_approval" // Suspended, waiting for human decisions
	StatusResuming         TaskStatus = "resuming"          // A resume is in progress (in-progress marker)
	StatusCompleted        TaskStatus = "completed"         // Summary produced, sink state reached
)

// NodeID identifies a step of the review state machine.
type NodeID string

const (
	NodeStart         NodeID = "start"
	NodeSelectClause  NodeID = "select_clause"
	NodeAnalyzeClause NodeID = "analyze_clause"
	NodeGenerateDiffs NodeID = "generate_diffs"
	NodeValidate      NodeID = "validate"
	NodeHumanApproval NodeID = "human_approval"
	NodeSaveClause    NodeID = "save_clause"
	NodeSummarize     NodeID = "summarize"
	NodeDone          NodeID = "done"
)

// ValidationResult is the outcome of the quality gate for one clause attempt.
type ValidationResult struct {
	Passed  bool     `json:"passed"`
	Issues  []string `json:"issues,omitempty"`
	Forced  bool     `json:"forced,omitempty"`  // Retry limit reached, passed regardless
	LLMUsed bool     `json:"llm_used"`          // False when the validator degraded
	Attempt int      `json:"attempt,omitempty"` // 1-based attempt number
}

// ClauseFindings holds the committed results of one reviewed clause.
type ClauseFindings struct {
	ClauseID string         `json:"clause_id"`
	Name     string         `json:"name,omitempty"`
	Risks    []RiskFinding  `json:"risks"`
	Diffs    []ProposedDiff `json:"diffs"`
	Forced   bool           `json:"forced,omitempty"`

	// DiffsLLMUsed is false when no diffs were drafted because the model degraded.
	DiffsLLMUsed bool `json:"diffs_llm_used"`
}

// TaskState represents the checkpointed snapshot of one review task.
type TaskState struct {
	TaskID   string `json:"task_id"`
	DomainID string `json:"domain_id,omitempty"`

	// Document is opaque to the engine and passed verbatim to skills.
	Document  *Document       `json:"document,omitempty"`
	Checklist []ChecklistItem `json:"checklist"`

	Node   NodeID     `json:"node"`
	Status TaskStatus `json:"status"`

	// ClauseIndex points into Checklist. It is -1 before the first clause is selected.
	ClauseIndex int `json:"clause_index"`

	// Per-clause working fields, reset on every SelectClause.
	CurrentClauseID  string                    `json:"current_clause_id,omitempty"`
	CurrentBaseline  string                    `json:"current_baseline,omitempty"`
	SkillContext     map[string]map[string]any `json:"skill_context,omitempty"`
	SkillFailures    map[string]string         `json:"skill_failures,omitempty"`
	CurrentRisks     []RiskFinding             `json:"current_risks,omitempty"`
	CurrentDiffs     []ProposedDiff            `json:"current_diffs,omitempty"`
	ValidationResult *ValidationResult         `json:"validation_result,omitempty"`
	RetryCount       int                       `json:"retry_count"`
	AnalysisLLMUsed  bool                      `json:"analysis_llm_used"`
	DiffsLLMUsed     bool                      `json:"diffs_llm_used"`

	// Accumulated results.
	AllRisks []RiskFinding            `json:"all_risks"`
	AllDiffs []ProposedDiff           `json:"all_diffs"`
	Findings map[string]ClauseFindings `json:"findings"`

	// Approval round state.
	PendingDiffs   []ProposedDiff      `json:"pending_diffs,omitempty"`
	Decisions      map[string]Decision `json:"decisions"`
	Feedback       map[string]string   `json:"feedback"`
	AnnouncedDiffs []string            `json:"announced_diffs,omitempty"`
	RejectedDiffs  []ProposedDiff      `json:"rejected_diffs,omitempty"`

	Summary   *Summary `json:"summary,omitempty"`
	Completed bool     `json:"completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed holds the encrypted checkpoint when a store encrypts at rest.
	// Only the envelope carries it; a loaded task never does.
	Sealed string `json:"sealed,omitempty"`
}

// NewTaskState creates a clean task positioned at the start node.
func NewTaskState(taskID, domainID string, doc *Document, checklist []ChecklistItem) *TaskState {
	now := time.Now().UTC()
	items := make([]ChecklistItem, len(checklist))
	copy(items, checklist)
	return &TaskState{
		TaskID:        taskID,
		DomainID:      domainID,
		Document:      doc,
		Checklist:     items,
		Node:          NodeStart,
		Status:        StatusRunning,
		ClauseIndex:   -1,
		SkillContext:  make(map[string]map[string]any),
		SkillFailures: make(map[string]string),
		AllRisks:      []RiskFinding{},
		AllDiffs:      []ProposedDiff{},
		Findings:      make(map[string]ClauseFindings),
		Decisions:     make(map[string]Decision),
		Feedback:      make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CurrentItem returns the checklist item being reviewed, if any.
func (s *TaskState) CurrentItem() (ChecklistItem, bool) {
	if s.ClauseIndex < 0 || s.ClauseIndex >= len(s.Checklist) {
		return ChecklistItem{}, false
	}
	return s.Checklist[s.ClauseIndex], true
}

// ResetClause clears the per-clause working fields.
func (s *TaskState) ResetClause() {
	s.CurrentClauseID = ""
	s.CurrentBaseline = ""
	s.SkillContext = make(map[string]map[string]any)
	s.SkillFailures = make(map[string]string)
	s.CurrentRisks = nil
	s.CurrentDiffs = nil
	s.ValidationResult = nil
	s.RetryCount = 0
	s.AnalysisLLMUsed = false
	s.DiffsLLMUsed = false
	s.PendingDiffs = nil
	s.RejectedDiffs = nil
}

// Suspended reports whether the task is halted at the approval gate.
func (s *TaskState) Suspended() bool {
	return s.Status == StatusAwaitingApproval
}

// Clone creates a copy of the state that can be mutated without affecting the source.
// Maps and slices owned by the task are copied; skill outputs are copied one level deep.
func (s *TaskState) Clone() *TaskState {
	if s == nil {
		return nil
	}
	next := *s

	next.Checklist = cloneSlice(s.Checklist)
	next.CurrentRisks = cloneSlice(s.CurrentRisks)
	next.CurrentDiffs = cloneSlice(s.CurrentDiffs)
	next.AllRisks = cloneSlice(s.AllRisks)
	next.AllDiffs = cloneSlice(s.AllDiffs)
	next.PendingDiffs = cloneSlice(s.PendingDiffs)
	next.AnnouncedDiffs = cloneSlice(s.AnnouncedDiffs)
	next.RejectedDiffs = cloneSlice(s.RejectedDiffs)

	if s.ValidationResult != nil {
		v := *s.ValidationResult
		v.Issues = cloneSlice(s.ValidationResult.Issues)
		next.ValidationResult = &v
	}
	if s.Summary != nil {
		sum := s.Summary.clone()
		next.Summary = &sum
	}

	next.SkillContext = make(map[string]map[string]any, len(s.SkillContext))
	for id, out := range s.SkillContext {
		copied := make(map[string]any, len(out))
		for k, v := range out {
			copied[k] = v
		}
		next.SkillContext[id] = copied
	}
	next.SkillFailures = cloneMap(s.SkillFailures)
	next.Decisions = cloneMap(s.Decisions)
	next.Feedback = cloneMap(s.Feedback)

	next.Findings = make(map[string]ClauseFindings, len(s.Findings))
	for id, f := range s.Findings {
		f.Risks = cloneSlice(f.Risks)
		f.Diffs = cloneSlice(f.Diffs)
		next.Findings[id] = f
	}
	return &next
}

func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(src))
	copy(out, src)
	return out
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
