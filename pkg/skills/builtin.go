package skills

import (
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/skill"
)

// Skill ids.
const (
	GetClauseContext = "get_clause_context"
	FindDefinedTerms = "find_defined_terms"
	CompareBaseline  = "compare_baseline"
	AssessDeviation  = "assess_deviation"
)

// BaselineSource resolves the preferred wording of a clause for a domain.
// *plugin.Registry satisfies it.
type BaselineSource interface {
	BaselineText(domainID, clauseID string) (string, bool)
}

// Builtin returns every built-in generic skill. model may be nil, in which
// case assess_deviation always degrades.
func Builtin(model ports.ChatModel, baselines BaselineSource) []skill.Skill {
	return []skill.Skill{
		ClauseContextSkill(),
		DefinedTermsSkill(),
		BaselineSkill(baselines),
		DeviationSkill(model),
	}
}

// Register adds the built-in skills to reg.
func Register(reg *skill.Registry, model ports.ChatModel, baselines BaselineSource) error {
	for _, s := range Builtin(model, baselines) {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
