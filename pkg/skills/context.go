package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

// ClauseContextSkill returns the clause text together with its place in the document tree.
func ClauseContextSkill() skill.Skill {
	return skill.Skill{
		ID:          GetClauseContext,
		Name:        "Get clause context",
		Description: "Return the clause text, its parent and its sibling clause ids.",
		Category:    "context",
		Active:      true,
		Params: []skill.Param{
			{Name: skill.ParamClauseID, Type: "string", Required: true, Description: "Clause id, e.g. 4.1"},
			{Name: skill.ParamDocument, Required: true, Description: "Parsed contract"},
		},
		Output: []skill.Param{
			{Name: "title", Type: "string"},
			{Name: "text", Type: "string"},
			{Name: "parent_id", Type: "string"},
			{Name: "parent_text", Type: "string"},
			{Name: "siblings", Type: "array"},
		},
		Handler: skill.HandlerFunc(clauseContext),
	}
}

type clauseContextInput struct {
	ClauseID string           `mapstructure:"clause_id"`
	Document *domain.Document `mapstructure:"document"`
}

func clauseContext(_ context.Context, in skill.Input) (map[string]any, error) {
	var args clauseContextInput
	if err := skill.Decode(in, &args); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if args.Document == nil {
		return nil, errors.New("no document supplied")
	}
	ref, ok := args.Document.FindClause(args.ClauseID)
	if !ok {
		return nil, fmt.Errorf("clause %s not found", args.ClauseID)
	}

	out := map[string]any{
		"clause_id": ref.Clause.ID,
		"title":     ref.Clause.Title,
		"text":      fullText(ref.Clause),
		"siblings":  ref.Siblings,
	}
	if ref.Parent != nil {
		out["parent_id"] = ref.Parent.ID
		out["parent_title"] = ref.Parent.Title
		out["parent_text"] = ref.Parent.Text
	}
	return out, nil
}

// fullText joins a clause's text with that of its descendants.
func fullText(c domain.Clause) string {
	if len(c.Children) == 0 {
		return c.Text
	}
	var b strings.Builder
	b.WriteString(c.Text)
	for _, child := range c.Children {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(child.ID + " " + fullText(child))
	}
	return b.String()
}
