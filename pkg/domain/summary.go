package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ClauseSummary is the per-clause line of the final report.
type ClauseSummary struct {
	ClauseID string `json:"clause_id"`
	Name     string `json:"name,omitempty"`
	Risks    int    `json:"risks"`
	Diffs    int    `json:"diffs"`
	Forced   bool   `json:"forced,omitempty"`
}

// Summary is the aggregated report produced by the Summarize step.
type Summary struct {
	// Narrative is the model-written overview. Empty when the model degraded.
	Narrative string `json:"narrative,omitempty"`
	LLMUsed   bool   `json:"llm_used"`

	// Notes are always computed deterministically from the findings.
	Notes          []string         `json:"summary_notes"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	Clauses        []ClauseSummary  `json:"clauses"`
	TotalRisks     int              `json:"total_risks"`
	TotalDiffs     int              `json:"total_diffs"`
}

// BuildSummary aggregates the committed findings of a task in checklist order.
func BuildSummary(state *TaskState) Summary {
	sum := Summary{
		SeverityCounts: make(map[Severity]int),
		Clauses:        []ClauseSummary{},
	}
	for _, r := range state.AllRisks {
		sum.SeverityCounts[r.Severity]++
	}
	sum.TotalRisks = len(state.AllRisks)
	sum.TotalDiffs = len(state.AllDiffs)

	for _, item := range state.Checklist {
		f, ok := state.Findings[item.ClauseID]
		if !ok {
			continue
		}
		sum.Clauses = append(sum.Clauses, ClauseSummary{
			ClauseID: item.ClauseID,
			Name:     item.Name,
			Risks:    len(f.Risks),
			Diffs:    len(f.Diffs),
			Forced:   f.Forced,
		})
	}

	sum.Notes = append(sum.Notes, fmt.Sprintf("Reviewed %d of %d clauses.", len(sum.Clauses), len(state.Checklist)))
	sum.Notes = append(sum.Notes, fmt.Sprintf("Identified %d risks and committed %d edits.", sum.TotalRisks, sum.TotalDiffs))
	for _, sev := range Severities {
		if n := sum.SeverityCounts[sev]; n > 0 {
			sum.Notes = append(sum.Notes, fmt.Sprintf("%s: %d", sev, n))
		}
	}
	for _, c := range sum.Clauses {
		if c.Risks == 0 {
			continue
		}
		line := fmt.Sprintf("Clause %s (%s): %d risks, %d edits", c.ClauseID, c.Name, c.Risks, c.Diffs)
		if c.Forced {
			line += " [validation forced]"
		}
		sum.Notes = append(sum.Notes, line)
	}
	return sum
}

// Markdown renders the report for terminals and documents.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("# Review Summary\n\n")
	if s.Narrative != "" {
		b.WriteString(s.Narrative)
		b.WriteString("\n\n")
	}

	b.WriteString("## Notes\n\n")
	for _, n := range s.Notes {
		fmt.Fprintf(&b, "- %s\n", n)
	}

	if len(s.SeverityCounts) > 0 {
		b.WriteString("\n## Severity\n\n| Severity | Count |\n|---|---|\n")
		keys := make([]string, 0, len(s.SeverityCounts))
		for k := range s.SeverityCounts {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %d |\n", k, s.SeverityCounts[Severity(k)])
		}
	}

	if len(s.Clauses) > 0 {
		b.WriteString("\n## Clauses\n\n| Clause | Name | Risks | Edits |\n|---|---|---|---|\n")
		for _, c := range s.Clauses {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", c.ClauseID, c.Name, c.Risks, c.Diffs)
		}
	}
	return b.String()
}

func (s Summary) clone() Summary {
	out := s
	out.Notes = cloneSlice(s.Notes)
	out.Clauses = cloneSlice(s.Clauses)
	out.SeverityCounts = cloneMap(s.SeverityCounts)
	return out
}
