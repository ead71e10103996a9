package domain

import "strings"

// Severity of a risk finding. The engine never decides it; analysis does.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists the known severities from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// NormalizeSeverity maps free-form model output to a known severity.
func NormalizeSeverity(raw string) Severity {
	clean := Severity(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Severities {
		if s == clean {
			return s
		}
	}
	return SeverityMedium
}

// RiskFinding is a risk identified in one clause.
type RiskFinding struct {
	ID          string   `json:"id"`
	ClauseID    string   `json:"clause_id"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description"`
	Rationale   string   `json:"rationale,omitempty"`
	Excerpt     string   `json:"excerpt,omitempty"`
}

// EditKind is the type of text edit a diff proposes.
type EditKind string

const (
	EditReplace EditKind = "replace"
	EditInsert  EditKind = "insert"
	EditDelete  EditKind = "delete"
)

// NormalizeEditKind maps free-form model output to a known edit kind.
func NormalizeEditKind(raw string) EditKind {
	switch EditKind(strings.ToLower(strings.TrimSpace(raw))) {
	case EditInsert:
		return EditInsert
	case EditDelete:
		return EditDelete
	default:
		return EditReplace
	}
}

// DiffStatus is the lifecycle status of a proposed diff.
type DiffStatus string

const (
	DiffPending  DiffStatus = "pending"
	DiffApproved DiffStatus = "approved"
	DiffRejected DiffStatus = "rejected"
	DiffEdited   DiffStatus = "edited"
)

// ProposedDiff is a proposed text edit tied to a clause and optionally to a risk.
type ProposedDiff struct {
	ID          string     `json:"id"`
	ClauseID    string     `json:"clause_id"`
	RiskID      string     `json:"risk_id,omitempty"`
	Kind        EditKind   `json:"kind"`
	Original    string     `json:"original,omitempty"`
	Replacement string     `json:"replacement,omitempty"`
	Rationale   string     `json:"rationale,omitempty"`
	Status      DiffStatus `json:"status"`

	// SpanNotFound flags a diff whose original text is not present verbatim in the clause.
	SpanNotFound bool `json:"span_not_found,omitempty"`
}

// Committable reports whether the save step may persist the diff.
func (d ProposedDiff) Committable() bool {
	return d.Status == DiffApproved || d.Status == DiffEdited
}

// Outcome is the human decision for one diff.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
	OutcomeEdit    Outcome = "edit"
)

// Valid reports whether the outcome is one of the known values.
func (o Outcome) Valid() bool {
	return o == OutcomeApprove || o == OutcomeReject || o == OutcomeEdit
}

// Decision records a human outcome for one diff within one approval round.
type Decision struct {
	Outcome     Outcome `json:"decision"`
	RevisedText string  `json:"revised_text,omitempty"`
	Comment     string  `json:"comment,omitempty"`
}
