package skills

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

// DeviationThreshold is the similarity below which a clause counts as deviating.
const DeviationThreshold = 0.6

// BaselineSkill compares the clause with the domain's preferred wording.
func BaselineSkill(baselines BaselineSource) skill.Skill {
	return skill.Skill{
		ID:          CompareBaseline,
		Name:        "Compare with baseline",
		Description: "Score how closely a clause follows the preferred wording for its domain.",
		Category:    "analysis",
		Active:      true,
		Params: []skill.Param{
			{Name: "text", Type: "string", Required: true, Description: "Clause text"},
			{Name: "baseline", Type: "string", Description: "Preferred wording; when empty there is nothing to compare"},
		},
		Output: []skill.Param{
			{Name: "has_baseline", Type: "boolean"},
			{Name: "similarity", Type: "number"},
			{Name: "deviates", Type: "boolean"},
			{Name: "missing_terms", Type: "array"},
		},
		InputBuilder: skill.InputBuilderFunc(func(clauseID string, doc *domain.Document, state *domain.TaskState) (skill.Input, error) {
			ref, ok := doc.FindClause(clauseID)
			if !ok {
				return nil, errors.New("clause not in document")
			}
			in := skill.Input{skill.ParamClauseID: clauseID, "text": fullText(ref.Clause)}
			if baselines != nil && state != nil {
				if text, ok := baselines.BaselineText(state.DomainID, clauseID); ok {
					in["baseline"] = text
				}
			}
			return in, nil
		}),
		Handler: skill.HandlerFunc(compareBaseline),
	}
}

func compareBaseline(_ context.Context, in skill.Input) (map[string]any, error) {
	text, _ := in["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	baseline, _ := in["baseline"].(string)
	if strings.TrimSpace(baseline) == "" {
		return map[string]any{"has_baseline": false}, nil
	}

	score, missing := Similarity(text, baseline)
	return map[string]any{
		"has_baseline":  true,
		"baseline":      baseline,
		"similarity":    score,
		"deviates":      score < DeviationThreshold,
		"missing_terms": missing,
	}, nil
}

// Similarity is the Jaccard index of the two texts' word sets. missing lists
// baseline words absent from text, in baseline order.
func Similarity(text, baseline string) (score float64, missing []string) {
	a, b := tokens(text), tokens(baseline)
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	other := make(map[string]bool, len(b))
	missing = make([]string, 0)
	inter := 0
	for _, t := range b {
		if other[t] {
			continue
		}
		other[t] = true
		if set[t] {
			inter++
		} else {
			missing = append(missing, t)
		}
	}
	union := len(set) + len(other) - inter
	if union == 0 {
		return 1, missing
	}
	return float64(inter) / float64(union), missing
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
