package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/llm"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/skill"
)

// Deviation grades.
const (
	DeviationNone     = "none"
	DeviationMinor    = "minor"
	DeviationMaterial = "material"
)

const deviationSystem = `Compare the clause with the preferred wording.
Reply with a JSON object: {"deviation": "none" | "minor" | "material", "rationale": "<one sentence>"}.`

type deviationReply struct {
	Deviation string `json:"deviation"`
	Rationale string `json:"rationale"`
}

// DeviationSkill asks the model how far a clause departs from its baseline.
// Without a usable reply it grades from the similarity score and reports llm_used=false.
func DeviationSkill(model ports.ChatModel) skill.Skill {
	return skill.Skill{
		ID:          AssessDeviation,
		Name:        "Assess deviation",
		Description: "Grade how materially a clause deviates from the preferred wording.",
		Category:    "analysis",
		Active:      true,
		Params: []skill.Param{
			{Name: "text", Type: "string", Required: true, Description: "Clause text"},
			{Name: "baseline", Type: "string", Required: true, Description: "Preferred wording"},
		},
		Output: []skill.Param{
			{Name: "deviation", Type: "string", Enum: []string{DeviationNone, DeviationMinor, DeviationMaterial}},
			{Name: "rationale", Type: "string"},
			{Name: "llm_used", Type: "boolean"},
		},
		InputBuilder: skill.InputBuilderFunc(deviationInput),
		Handler: skill.HandlerFunc(func(ctx context.Context, in skill.Input) (map[string]any, error) {
			return assessDeviation(ctx, model, in)
		}),
	}
}

func deviationInput(clauseID string, doc *domain.Document, state *domain.TaskState) (skill.Input, error) {
	if state == nil {
		return nil, errors.New("no task state")
	}
	prior := state.SkillContext[CompareBaseline]
	baseline := stringField(prior, "baseline")
	if baseline == "" {
		return nil, errors.New(CompareBaseline + " produced no baseline")
	}
	ref, ok := doc.FindClause(clauseID)
	if !ok {
		return nil, errors.New("clause not in document")
	}
	return skill.Input{skill.ParamClauseID: clauseID, "text": fullText(ref.Clause), "baseline": baseline}, nil
}

func assessDeviation(ctx context.Context, model ports.ChatModel, in skill.Input) (map[string]any, error) {
	text, _ := in["text"].(string)
	baseline, _ := in["baseline"].(string)
	if strings.TrimSpace(text) == "" || strings.TrimSpace(baseline) == "" {
		return nil, errors.New("text and baseline are required")
	}

	score, _ := Similarity(text, baseline)
	fallback := deviationReply{
		Deviation: gradeBySimilarity(score),
		Rationale: fmt.Sprintf("Word overlap with the baseline is %.0f%%.", score*100),
	}

	out := llm.Invoke(ctx, model, llm.Request{
		Role:   "contract reviewer",
		System: deviationSystem,
		Prompt: fmt.Sprintf("Clause:\n%s\n\nPreferred wording:\n%s", text, baseline),
	}, fallback)

	reply := out.Value
	used := out.Used
	switch reply.Deviation = strings.ToLower(strings.TrimSpace(reply.Deviation)); reply.Deviation {
	case DeviationNone, DeviationMinor, DeviationMaterial:
	default:
		reply, used = fallback, false
	}

	return map[string]any{
		"deviation":  reply.Deviation,
		"rationale":  reply.Rationale,
		"similarity": score,
		"llm_used":   used,
	}, nil
}

func gradeBySimilarity(score float64) string {
	switch {
	case score >= 0.9:
		return DeviationNone
	case score >= DeviationThreshold:
		return DeviationMinor
	default:
		return DeviationMaterial
	}
}
