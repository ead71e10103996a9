package supply_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/skill"
	"github.com/aretw0/redline/pkg/skills"
	"github.com/aretw0/redline/pkg/skills/supply"
)

func TestPlugin(t *testing.T) {
	p, err := supply.Plugin()
	require.NoError(t, err)
	assert.Equal(t, supply.DomainID, p.DomainID)
	require.Len(t, p.Checklist, 4)
	assert.Equal(t, domain.PriorityHigh, p.Checklist[1].Priority)
	assert.Contains(t, p.Baselines["4"], "thirty (30) days")

	plugins := plugin.NewRegistry()
	reg := skill.NewRegistry()
	require.NoError(t, skills.Register(reg, nil, plugins))
	require.NoError(t, plugins.Install(p, reg))

	// Every skill a checklist item requires must resolve for the domain.
	for _, item := range plugins.Checklist(supply.DomainID) {
		for _, id := range item.RequiredSkills {
			s, err := reg.Resolve(id)
			require.NoError(t, err, id)
			assert.True(t, s.AvailableIn(supply.DomainID), id)
		}
	}

	text, ok := plugins.BaselineText(supply.DomainID, "7")
	assert.True(t, ok)
	assert.Contains(t, text, "fraud")
}

func TestPaymentDays(t *testing.T) {
	tests := []struct {
		text  string
		days  int
		found bool
	}{
		{"Invoices are payable within 90 days.", 90, true},
		{"payable within thirty (30) days of receipt", 30, true},
		{"within 45 calendar days, or net 60 for disputed amounts", 60, true},
		{"Payment on delivery.", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			days, found := supply.PaymentDays(tt.text)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestPaymentTermsSkill(t *testing.T) {
	reg := skill.NewRegistry()
	reg.MustRegister(supply.PaymentTermsSkill(supply.DefaultMaxPaymentDays))
	d := skill.NewDispatcher(reg)

	doc := &domain.Document{Clauses: []domain.Clause{
		{ID: "4", Text: "The Customer shall pay within 90 days. Late payments bear interest."},
	}}
	state := domain.NewTaskState("t1", supply.DomainID, doc, nil)

	res := d.Execute(context.Background(), supply.CheckPaymentTerms, "4", doc, state)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 90, res.Output["payment_days"])
	assert.Equal(t, true, res.Output["exceeds_limit"])
	assert.Equal(t, true, res.Output["mentions_interest"])

	// The clause context output takes precedence over the raw clause text.
	state.SkillContext[skills.GetClauseContext] = map[string]any{"text": "Net 15."}
	res = d.Execute(context.Background(), supply.CheckPaymentTerms, "4", doc, state)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 15, res.Output["payment_days"])
	assert.Equal(t, false, res.Output["exceeds_limit"])

	res = d.Invoke(context.Background(), supply.CheckPaymentTerms, map[string]any{"text": "Payment on delivery."})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, false, res.Output["found"])
}
