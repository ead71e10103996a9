package redline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline"
	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/skill"
	"github.com/aretw0/redline/pkg/skills"
)

type recorder struct {
	events []domain.Event
}

func (r *recorder) Emit(_ context.Context, e domain.Event) {
	r.events = append(r.events, e)
}

func TestNew_Defaults(t *testing.T) {
	r, err := redline.New()
	require.NoError(t, err)

	assert.Equal(t, []string{"supply"}, r.Plugins().Domains())
	_, err = r.Skills().Resolve(skills.GetClauseContext)
	assert.NoError(t, err)
	assert.Equal(t, runtime.DefaultMaxRetries, r.MaxRetries())
}

func TestNew_WithoutModelDegrades(t *testing.T) {
	rec := &recorder{}
	var visited []domain.NodeID
	r, err := redline.New(
		redline.WithEventSink(rec),
		redline.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { visited = append(visited, e.NodeID) },
		}),
	)
	require.NoError(t, err)

	state, err := r.Service().Start(context.Background(), review.StartRequest{
		DomainID:  "supply",
		Document:  &domain.Document{ID: "d", Clauses: []domain.Clause{{ID: "9", Text: "Either party may terminate on notice."}}},
		Checklist: []domain.ChecklistItem{{ClauseID: "9", RequiredSkills: []string{skills.GetClauseContext}}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, state.Status, "no risks means nothing to approve")
	require.NotNil(t, state.Summary)
	assert.False(t, state.Summary.LLMUsed)
	assert.Contains(t, visited, domain.NodeSummarize)
	require.NotEmpty(t, rec.events)
	assert.Equal(t, domain.EventTaskCompleted, rec.events[len(rec.events)-1].Type)
}

func TestNew_CustomPluginAndSkill(t *testing.T) {
	echo := skill.Skill{
		ID:     "echo",
		Active: true,
		Handler: skill.HandlerFunc(func(ctx context.Context, in skill.Input) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		}),
	}
	r, err := redline.New(
		redline.WithoutBuiltins(),
		redline.WithSkill(echo),
		redline.WithPlugin(plugin.Plugin{DomainID: "nda", Checklist: []domain.ChecklistItem{{ClauseID: "1", RequiredSkills: []string{"echo"}}}}),
		redline.WithMaxRetries(0),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"nda"}, r.Plugins().Domains())
	assert.Equal(t, 0, r.MaxRetries())
	_, err = r.Skills().Resolve(skills.GetClauseContext)
	assert.Error(t, err)

	res := r.Dispatcher().Invoke(context.Background(), "echo", nil)
	assert.True(t, res.Success)
}
