package domain

// Priority ranks checklist items.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ChecklistItem describes one clause to review.
// Items are loaded from a domain plugin and never mutated by the engine.
type ChecklistItem struct {
	ClauseID string   `json:"clause_id" yaml:"clause_id" mapstructure:"clause_id"`
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`

	// RequiredSkills run sequentially in this order. A skill that consumes another
	// skill's output must be listed after it.
	RequiredSkills []string `json:"required_skills,omitempty" yaml:"required_skills,omitempty" mapstructure:"required_skills"`

	Guidance string `json:"guidance,omitempty" yaml:"guidance,omitempty" mapstructure:"guidance"`
}
