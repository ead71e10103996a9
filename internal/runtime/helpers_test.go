package runtime_test

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/skill"
)

// mockModel routes each call to a step name so tests can script replies per step.
type mockModel struct {
	mock.Mock
}

func (m *mockModel) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	args := m.Called(stepOf(messages))
	return args.String(0), args.Error(1)
}

func stepOf(messages []ports.Message) string {
	if len(messages) == 0 {
		return ""
	}
	system := messages[0].Content
	switch {
	case strings.Contains(system, "risk analyst"):
		return runtime.StepAnalysis
	case strings.Contains(system, "drafter"):
		return runtime.StepDiffs
	case strings.Contains(system, "quality control"):
		return runtime.StepValidation
	case strings.Contains(system, "summarizing"):
		return runtime.StepSummary
	}
	return ""
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Emit(ctx context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t domain.EventType) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

func contractDoc() *domain.Document {
	return &domain.Document{
		ID:    "msa",
		Title: "Supply Agreement",
		Clauses: []domain.Clause{
			{ID: "4", Title: "Payment", Children: []domain.Clause{
				{ID: "4.1", Title: "Invoices", Text: "Invoices are payable within 90 days of receipt."},
			}},
			{ID: "7", Title: "Liability", Text: "Supplier liability is unlimited."},
		},
	}
}

func contextSkill() skill.Skill {
	return skill.Skill{
		ID:     "get_clause_context",
		Active: true,
		Params: []skill.Param{
			{Name: "clause_id", Type: "string", Required: true},
			{Name: "document", Required: true},
		},
		Handler: skill.HandlerFunc(func(ctx context.Context, in skill.Input) (map[string]any, error) {
			doc, _ := in["document"].(*domain.Document)
			id, _ := in["clause_id"].(string)
			return map[string]any{"text": doc.ClauseText(id)}, nil
		}),
	}
}

func newEngine(model ports.ChatModel, sink ports.EventSink, opts ...runtime.EngineOption) *runtime.Engine {
	reg := skill.NewRegistry()
	reg.MustRegister(contextSkill())
	opts = append([]runtime.EngineOption{runtime.WithEventSink(sink)}, opts...)
	return runtime.NewEngine(skill.NewDispatcher(reg), model, opts...)
}

const (
	oneRisk    = `[{"severity":"high","category":"payment","description":"90 day payment term","rationale":"Above policy","excerpt":"90 days"}]`
	oneDiff    = "```json\n[{\"kind\":\"replace\",\"original\":\"90 days\",\"replacement\":\"30 days\",\"rationale\":\"Policy\"}]\n```"
	otherDiff  = `[{"kind":"replace","original":"90 days","replacement":"45 days","rationale":"Compromise"}]`
	passed     = `{"passed": true, "issues": []}`
	failed     = `{"passed": false, "issues": ["diff does not address the risk"]}`
	narrativeA = `{"narrative":"One payment risk was found and fixed."}`
)

func invoiceChecklist() []domain.ChecklistItem {
	return []domain.ChecklistItem{{ClauseID: "4.1", Name: "Invoices", RequiredSkills: []string{"get_clause_context"}}}
}
