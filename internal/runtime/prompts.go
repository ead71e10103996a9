package runtime

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"text/template"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/llm"
)

const jsonOnly = "Reply with JSON only. Do not add commentary outside the JSON value."

var promptFuncs = template.FuncMap{
	"json": func(v any) string {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "null"
		}
		return string(b)
	},
	"orNone": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "(none)"
		}
		return s
	},
}

var analysisTemplate = template.Must(template.New("analysis").Funcs(promptFuncs).Parse(`Review clause {{.ClauseID}} ({{.Name}}).

Clause text:
{{orNone .Text}}

Reviewer guidance:
{{orNone .Guidance}}

Preferred baseline wording:
{{orNone .Baseline}}
{{- if .Context}}

Skill results:
{{json .Context}}
{{- end}}
{{- if .Failures}}

Skills that failed (their results are unavailable):
{{range $id, $err := .Failures}}- {{$id}}: {{$err}}
{{end}}
{{- end}}
{{- if .Issues}}

A previous analysis of this clause was rejected by quality review for these reasons:
{{range .Issues}}- {{.}}
{{end}}
{{- end}}

Identify the legal and commercial risks in this clause. Return a JSON array where every
element has: "severity" (critical|high|medium|low|info), "category", "description",
"rationale" and "excerpt" (the exact words of the clause the risk refers to).
Return [] when the clause carries no risk.`))

var diffTemplate = template.Must(template.New("diffs").Funcs(promptFuncs).Parse(`Propose edits to clause {{.ClauseID}} ({{.Name}}) that resolve the risks below.

Clause text:
{{orNone .Text}}

Preferred baseline wording:
{{orNone .Baseline}}

Risks:
{{json .Risks}}
{{- if .Rejected}}

The reviewer rejected these earlier proposals. Do not propose them again:
{{json .Rejected}}
{{- end}}
{{- if .Feedback}}

Reviewer feedback:
{{range .Feedback}}- {{.}}
{{end}}
{{- end}}

Return a JSON array where every element has: "risk_id" (the id of the risk it resolves),
"kind" (replace|insert|delete), "original" (exact text of the clause being replaced or
deleted, empty for insert), "replacement" and "rationale".`))

var validationTemplate = template.Must(template.New("validation").Funcs(promptFuncs).Parse(`Check the review of clause {{.ClauseID}} ({{.Name}}).

Clause text:
{{orNone .Text}}

Risks found:
{{json .Risks}}

Proposed edits:
{{json .Diffs}}

Verify that every risk is grounded in the clause text, that every edit addresses a listed
risk and that no edit introduces a new problem. Return a JSON object:
{"passed": true|false, "issues": ["..."]}`))

var summaryTemplate = template.Must(template.New("summary").Funcs(promptFuncs).Parse(`Write a short executive summary of a contract review.

Document: {{orNone .Title}}

Findings per clause:
{{json .Clauses}}

Severity counts:
{{json .Counts}}

Return a JSON object: {"narrative": "..."}`))

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

type clauseFacts struct {
	ClauseID string
	Name     string
	Text     string
	Guidance string
	Baseline string
}

func (e *Engine) facts(s *domain.TaskState) clauseFacts {
	item, _ := s.CurrentItem()
	return clauseFacts{
		ClauseID: s.CurrentClauseID,
		Name:     item.Name,
		Text:     s.Document.ClauseText(s.CurrentClauseID),
		Guidance: item.Guidance,
		Baseline: s.CurrentBaseline,
	}
}

func (e *Engine) analysisRequest(s *domain.TaskState) llm.Request {
	var issues []string
	if s.ValidationResult != nil && !s.ValidationResult.Passed {
		issues = s.ValidationResult.Issues
	}
	return llm.Request{
		Role:    "contract risk analyst",
		System:  jsonOnly,
		Timeout: e.modelTimeout,
		Prompt: render(analysisTemplate, struct {
			clauseFacts
			Context  map[string]map[string]any
			Failures map[string]string
			Issues   []string
		}{e.facts(s), s.SkillContext, s.SkillFailures, issues}),
	}
}

func (e *Engine) diffRequest(s *domain.TaskState) llm.Request {
	feedback := make([]string, 0, len(s.Feedback))
	for _, id := range sortedKeys(s.Feedback) {
		feedback = append(feedback, s.Feedback[id])
	}
	return llm.Request{
		Role:    "contract drafter",
		System:  jsonOnly,
		Timeout: e.modelTimeout,
		Prompt: render(diffTemplate, struct {
			clauseFacts
			Risks    []domain.RiskFinding
			Rejected []domain.ProposedDiff
			Feedback []string
		}{e.facts(s), s.CurrentRisks, s.RejectedDiffs, feedback}),
	}
}

func (e *Engine) validationRequest(s *domain.TaskState) llm.Request {
	return llm.Request{
		Role:    "senior contract reviewer performing quality control",
		System:  jsonOnly,
		Timeout: e.modelTimeout,
		Prompt: render(validationTemplate, struct {
			clauseFacts
			Risks []domain.RiskFinding
			Diffs []domain.ProposedDiff
		}{e.facts(s), s.CurrentRisks, s.CurrentDiffs}),
	}
}

func (e *Engine) summaryRequest(s *domain.TaskState, sum domain.Summary) llm.Request {
	title := ""
	if s.Document != nil {
		title = s.Document.Title
	}
	return llm.Request{
		Role:    "legal counsel summarizing a review for a business stakeholder",
		System:  jsonOnly,
		Timeout: e.modelTimeout,
		Prompt: render(summaryTemplate, struct {
			Title   string
			Clauses []domain.ClauseSummary
			Counts  map[domain.Severity]int
		}{title, sum.Clauses, sum.SeverityCounts}),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
