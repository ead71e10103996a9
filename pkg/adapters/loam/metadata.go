package loam

// ChecklistMetadata is the frontmatter of one checklist document.
// The markdown body carries the reviewer guidance.
type ChecklistMetadata struct {
	ClauseID       string   `json:"clause_id" mapstructure:"clause_id"`
	Name           string   `json:"name" mapstructure:"name"`
	Priority       string   `json:"priority" mapstructure:"priority"`
	RequiredSkills []string `json:"required_skills" mapstructure:"required_skills"`

	// Baseline is the preferred wording for the clause, if the domain has one.
	Baseline string `json:"baseline,omitempty" mapstructure:"baseline"`
}
