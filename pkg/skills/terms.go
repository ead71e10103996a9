package skills

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

var (
	// "Term" means ... / "Term" shall mean ...
	definitionPattern = regexp.MustCompile(`["“]([A-Z][\w\- ]{0,60}?)["”]\s+(?:shall\s+)?means?\s+([^.;]*)`)
	// (the "Term") / (hereinafter "Term")
	inlinePattern = regexp.MustCompile(`\((?:the\s+|hereinafter\s+)?["“]([A-Z][\w\- ]{0,60}?)["”]\)`)
)

// DefinedTermsSkill finds the defined terms a clause introduces or relies on.
// It consumes the text produced by get_clause_context.
func DefinedTermsSkill() skill.Skill {
	return skill.Skill{
		ID:          FindDefinedTerms,
		Name:        "Find defined terms",
		Description: "List defined terms introduced by the clause and defined terms it uses from elsewhere in the contract.",
		Category:    "context",
		Active:      true,
		Params: []skill.Param{
			{Name: "text", Type: "string", Required: true, Description: "Clause text"},
			{Name: skill.ParamDocument, Description: "Parsed contract used to resolve definitions"},
		},
		Output: []skill.Param{
			{Name: "introduced", Type: "array"},
			{Name: "used", Type: "array", Items: "object"},
		},
		InputBuilder: skill.InputBuilderFunc(definedTermsInput),
		Handler:      skill.HandlerFunc(definedTerms),
	}
}

func definedTermsInput(clauseID string, doc *domain.Document, state *domain.TaskState) (skill.Input, error) {
	if state == nil {
		return nil, errors.New("no task state")
	}
	text := stringField(state.SkillContext[GetClauseContext], "text")
	if text == "" {
		return nil, errors.New(GetClauseContext + " output is missing")
	}
	return skill.Input{skill.ParamClauseID: clauseID, "text": text, skill.ParamDocument: doc}, nil
}

// Term is a definition found in the document.
type Term struct {
	Term       string `json:"term"`
	Definition string `json:"definition,omitempty"`
}

func definedTerms(_ context.Context, in skill.Input) (map[string]any, error) {
	text, _ := in["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required; run " + GetClauseContext + " first")
	}
	doc, _ := in[skill.ParamDocument].(*domain.Document)

	introduced := termsIn(text)
	local := make(map[string]bool, len(introduced))
	for _, t := range introduced {
		local[t] = true
	}

	glossary := DocumentDefinitions(doc)
	used := make([]Term, 0)
	for term, def := range glossary {
		if local[term] {
			continue
		}
		if containsWord(text, term) {
			used = append(used, Term{Term: term, Definition: def})
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Term < used[j].Term })

	return map[string]any{
		"introduced": introduced,
		"used":       used,
	}, nil
}

// DocumentDefinitions collects every "Term" means ... definition in doc.
func DocumentDefinitions(doc *domain.Document) map[string]string {
	out := make(map[string]string)
	doc.Walk(func(c domain.Clause, _ *domain.Clause) bool {
		for _, m := range definitionPattern.FindAllStringSubmatch(c.Text, -1) {
			if _, seen := out[m[1]]; !seen {
				out[m[1]] = strings.TrimSpace(m[2])
			}
		}
		for _, m := range inlinePattern.FindAllStringSubmatch(c.Text, -1) {
			if _, seen := out[m[1]]; !seen {
				out[m[1]] = ""
			}
		}
		return true
	})
	return out
}

func termsIn(text string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, p := range []*regexp.Regexp{definitionPattern, inlinePattern} {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	sort.Strings(out)
	return out
}

func containsWord(text, term string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
