package skills_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/llm"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/skill"
	"github.com/aretw0/redline/pkg/skills"
)

type baselines map[string]string

func (b baselines) BaselineText(_, clauseID string) (string, bool) {
	text, ok := b[clauseID]
	return text, ok
}

func contract() *domain.Document {
	return &domain.Document{
		ID: "msa",
		Clauses: []domain.Clause{
			{ID: "1", Title: "Definitions", Text: `"Services" means the services described in Schedule 1. "Fees" means the charges payable.`},
			{ID: "4", Title: "Payment", Text: "The Customer shall pay the Fees.", Children: []domain.Clause{
				{ID: "4.1", Title: "Invoices", Text: "Invoices for the Services are payable within ninety (90) days (the \"Payment Period\")."},
			}},
		},
	}
}

func newDispatcher(t *testing.T, model ports.ChatModel, base skills.BaselineSource) *skill.Dispatcher {
	t.Helper()
	reg := skill.NewRegistry()
	require.NoError(t, skills.Register(reg, model, base))
	return skill.NewDispatcher(reg)
}

// runChain executes skillIDs in order the way the engine does, feeding outputs into the skill context.
func runChain(t *testing.T, d *skill.Dispatcher, clauseID string, skillIDs ...string) *domain.TaskState {
	t.Helper()
	doc := contract()
	state := domain.NewTaskState("t1", "supply", doc, nil)
	for _, id := range skillIDs {
		res := d.Execute(context.Background(), id, clauseID, doc, state)
		require.True(t, res.Success, "%s: %s", id, res.Error)
		state.SkillContext[id] = res.Output
	}
	return state
}

func TestClauseContext(t *testing.T) {
	d := newDispatcher(t, nil, nil)
	state := runChain(t, d, "4.1", skills.GetClauseContext)

	out := state.SkillContext[skills.GetClauseContext]
	assert.Equal(t, "Invoices", out["title"])
	assert.Equal(t, "4", out["parent_id"])
	assert.Contains(t, out["text"], "ninety (90) days")

	res := d.Execute(context.Background(), skills.GetClauseContext, "99", contract(), state)
	assert.False(t, res.Success)

	t.Run("Includes Children", func(t *testing.T) {
		state := runChain(t, d, "4", skills.GetClauseContext)
		assert.Contains(t, state.SkillContext[skills.GetClauseContext]["text"], "4.1 Invoices for the Services")
	})
}

func TestDefinedTerms(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	t.Run("Uses And Introduces", func(t *testing.T) {
		state := runChain(t, d, "4.1", skills.GetClauseContext, skills.FindDefinedTerms)
		out := state.SkillContext[skills.FindDefinedTerms]
		assert.Equal(t, []string{"Payment Period"}, out["introduced"])

		used, ok := out["used"].([]skills.Term)
		require.True(t, ok)
		require.Len(t, used, 1)
		assert.Equal(t, "Services", used[0].Term)
		assert.Contains(t, used[0].Definition, "Schedule 1")
	})

	t.Run("Requires Clause Context", func(t *testing.T) {
		doc := contract()
		state := domain.NewTaskState("t1", "", doc, nil)
		res := d.Execute(context.Background(), skills.FindDefinedTerms, "4.1", doc, state)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, skills.GetClauseContext)
	})
}

func TestDocumentDefinitions(t *testing.T) {
	defs := skills.DocumentDefinitions(contract())
	assert.Contains(t, defs, "Services")
	assert.Contains(t, defs, "Fees")
	assert.Contains(t, defs, "Payment Period")
	assert.Empty(t, skills.DocumentDefinitions(nil))
}

func TestSimilarity(t *testing.T) {
	score, missing := skills.Similarity("Pay within 30 days.", "pay within 30 days")
	assert.Equal(t, 1.0, score)
	assert.Empty(t, missing)

	score, missing = skills.Similarity("pay within 90 days", "pay within 30 days")
	assert.InDelta(t, 0.6, score, 0.001)
	assert.Equal(t, []string{"30"}, missing)
}

func TestCompareBaseline(t *testing.T) {
	base := baselines{"4.1": "Invoices are payable within thirty (30) days of receipt."}
	d := newDispatcher(t, nil, base)

	state := runChain(t, d, "4.1", skills.CompareBaseline)
	out := state.SkillContext[skills.CompareBaseline]
	assert.Equal(t, true, out["has_baseline"])
	assert.Equal(t, true, out["deviates"])
	assert.Contains(t, out["missing_terms"], "thirty")

	state = runChain(t, d, "1", skills.CompareBaseline)
	assert.Equal(t, false, state.SkillContext[skills.CompareBaseline]["has_baseline"])
}

func TestAssessDeviation(t *testing.T) {
	base := baselines{"4.1": "Invoices are payable within thirty (30) days of receipt."}

	t.Run("Model Grade", func(t *testing.T) {
		model := llm.NewScript().On("contract reviewer", `{"deviation":"Material","rationale":"Triple the standard term."}`)
		d := newDispatcher(t, model, base)
		state := runChain(t, d, "4.1", skills.CompareBaseline, skills.AssessDeviation)
		out := state.SkillContext[skills.AssessDeviation]
		assert.Equal(t, skills.DeviationMaterial, out["deviation"])
		assert.Equal(t, true, out["llm_used"])
	})

	t.Run("Degrades Without Model", func(t *testing.T) {
		d := newDispatcher(t, nil, base)
		state := runChain(t, d, "4.1", skills.CompareBaseline, skills.AssessDeviation)
		out := state.SkillContext[skills.AssessDeviation]
		assert.Equal(t, false, out["llm_used"])
		assert.Equal(t, skills.DeviationMaterial, out["deviation"])
		assert.NotEmpty(t, out["rationale"])
	})

	t.Run("Degrades On Failure", func(t *testing.T) {
		model := llm.NewScript().Fail("contract reviewer", errors.New("rate limited"))
		d := newDispatcher(t, model, base)
		state := runChain(t, d, "4.1", skills.CompareBaseline, skills.AssessDeviation)
		assert.Equal(t, false, state.SkillContext[skills.AssessDeviation]["llm_used"])
	})

	t.Run("Unknown Grade Falls Back", func(t *testing.T) {
		model := llm.NewScript().On("contract reviewer", `{"deviation":"catastrophic"}`)
		d := newDispatcher(t, model, base)
		state := runChain(t, d, "4.1", skills.CompareBaseline, skills.AssessDeviation)
		assert.Equal(t, false, state.SkillContext[skills.AssessDeviation]["llm_used"])
	})

	t.Run("Requires Baseline", func(t *testing.T) {
		d := newDispatcher(t, nil, baselines{})
		state := runChain(t, d, "4.1", skills.CompareBaseline)
		res := d.Execute(context.Background(), skills.AssessDeviation, "4.1", state.Document, state)
		assert.False(t, res.Success)
	})
}
