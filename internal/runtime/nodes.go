package runtime

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/llm"
)

// Model step names reported through lifecycle hooks.
const (
	StepAnalysis   = "analysis"
	StepDiffs      = "diffs"
	StepValidation = "validation"
	StepSummary    = "summary"
)

type riskDraft struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Excerpt     string `json:"excerpt"`
}

type diffDraft struct {
	RiskID      string `json:"risk_id"`
	Kind        string `json:"kind"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Rationale   string `json:"rationale"`
}

type verdict struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

type narrative struct {
	Narrative string `json:"narrative"`
}

func (e *Engine) selectClause(s *domain.TaskState) {
	s.ResetClause()
	s.ClauseIndex++

	item, ok := s.CurrentItem()
	if !ok {
		s.ClauseIndex = len(s.Checklist)
		s.Node = domain.NodeSummarize
		return
	}

	s.CurrentClauseID = item.ClauseID
	if text, ok := e.plugins.BaselineText(s.DomainID, item.ClauseID); ok {
		s.CurrentBaseline = text
	}
	s.Node = domain.NodeAnalyzeClause
	e.logger.Debug("Clause selected", "task_id", s.TaskID, "clause_id", item.ClauseID, "index", s.ClauseIndex)
}

// analyzeClause runs the required skills in declared order and asks the model for risks.
// Later skills see earlier outputs through s.SkillContext.
func (e *Engine) analyzeClause(ctx context.Context, s *domain.TaskState) {
	item, _ := s.CurrentItem()
	s.SkillContext = make(map[string]map[string]any, len(item.RequiredSkills))
	s.SkillFailures = make(map[string]string)

	for _, skillID := range item.RequiredSkills {
		res := e.dispatcher.Execute(ctx, skillID, s.CurrentClauseID, s.Document, s)
		e.emitSkillReturn(ctx, s, skillID, res)
		if !res.Success {
			s.SkillFailures[skillID] = res.Error
			e.logger.Warn("Skill failed", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "skill_id", skillID, "err", res.Error)
			continue
		}
		s.SkillContext[skillID] = res.Output
	}

	out := llm.Invoke(ctx, e.model, e.analysisRequest(s), []riskDraft{})
	e.emitModelReturn(ctx, s, StepAnalysis, out.Used, out.Duration)
	if !out.Used {
		e.logger.Warn("Risk analysis degraded", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "err", out.Err)
	}

	risks := make([]domain.RiskFinding, 0, len(out.Value))
	for _, d := range out.Value {
		if strings.TrimSpace(d.Description) == "" {
			continue
		}
		risks = append(risks, domain.RiskFinding{
			ID:          "risk-" + uuid.NewString(),
			ClauseID:    s.CurrentClauseID,
			Severity:    domain.NormalizeSeverity(d.Severity),
			Category:    d.Category,
			Description: d.Description,
			Rationale:   d.Rationale,
			Excerpt:     d.Excerpt,
		})
	}
	s.CurrentRisks = risks
	s.CurrentDiffs = nil
	s.AnalysisLLMUsed = out.Used
	s.Node = domain.NodeGenerateDiffs
}

func (e *Engine) generateDiffs(ctx context.Context, s *domain.TaskState) {
	s.Node = domain.NodeValidate
	s.DiffsLLMUsed = false
	if len(s.CurrentRisks) == 0 {
		s.CurrentDiffs = nil
		return
	}

	out := llm.Invoke(ctx, e.model, e.diffRequest(s), []diffDraft{})
	e.emitModelReturn(ctx, s, StepDiffs, out.Used, out.Duration)
	s.DiffsLLMUsed = out.Used
	if !out.Used {
		e.logger.Warn("Diff generation degraded", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "err", out.Err)
	}

	text := s.Document.ClauseText(s.CurrentClauseID)
	diffs := make([]domain.ProposedDiff, 0, len(out.Value))
	for i, d := range out.Value {
		if wasRejected(s.RejectedDiffs, d) {
			continue
		}
		kind := domain.NormalizeEditKind(d.Kind)
		if kind != domain.EditDelete && d.Replacement == "" {
			continue
		}
		diffs = append(diffs, domain.ProposedDiff{
			ID:           "diff-" + uuid.NewString(),
			ClauseID:     s.CurrentClauseID,
			RiskID:       inferRiskID(s.CurrentRisks, d.RiskID, i),
			Kind:         kind,
			Original:     d.Original,
			Replacement:  d.Replacement,
			Rationale:    d.Rationale,
			Status:       domain.DiffPending,
			SpanNotFound: d.Original != "" && !strings.Contains(text, d.Original),
		})
	}
	s.CurrentDiffs = diffs
}

// inferRiskID links a diff to a risk: the id the model gave when it exists,
// the only risk when there is one, otherwise the risk at the same position.
func inferRiskID(risks []domain.RiskFinding, explicit string, index int) string {
	if explicit != "" {
		for _, r := range risks {
			if r.ID == explicit {
				return explicit
			}
		}
	}
	if len(risks) == 1 {
		return risks[0].ID
	}
	if index < len(risks) {
		return risks[index].ID
	}
	return ""
}

func wasRejected(rejected []domain.ProposedDiff, d diffDraft) bool {
	for _, r := range rejected {
		if r.Original == d.Original && r.Replacement == d.Replacement {
			return true
		}
	}
	return false
}

// validate is the quality gate. It fails open: nothing to check, a degraded
// model or an exhausted retry budget all let the clause through.
func (e *Engine) validate(ctx context.Context, s *domain.TaskState) {
	attempt := s.RetryCount + 1
	s.Node = domain.NodeHumanApproval

	if len(s.CurrentRisks) == 0 && len(s.CurrentDiffs) == 0 {
		s.ValidationResult = &domain.ValidationResult{Passed: true, Attempt: attempt}
		return
	}

	out := llm.Invoke(ctx, e.model, e.validationRequest(s), verdict{Passed: true})
	e.emitModelReturn(ctx, s, StepValidation, out.Used, out.Duration)

	result := &domain.ValidationResult{
		Passed:  out.Value.Passed,
		Issues:  out.Value.Issues,
		LLMUsed: out.Used,
		Attempt: attempt,
	}
	s.ValidationResult = result

	switch {
	case !out.Used:
		result.Passed = true
		e.logger.Warn("Validation degraded, passing clause", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "err", out.Err)
	case result.Passed:
	case s.RetryCount < e.maxRetries:
		s.RetryCount++
		s.Node = domain.NodeAnalyzeClause
		e.logger.Info("Validation failed, retrying clause", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "attempt", attempt, "issues", len(result.Issues))
	default:
		result.Passed = true
		result.Forced = true
		e.logger.Warn("Retry limit reached, forcing clause through", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "attempts", attempt)
	}
}

func (e *Engine) saveClause(ctx context.Context, s *domain.TaskState) {
	item, _ := s.CurrentItem()

	committed := make([]domain.ProposedDiff, 0, len(s.CurrentDiffs))
	for _, d := range s.CurrentDiffs {
		if d.Committable() {
			committed = append(committed, d)
		}
	}
	risks := append([]domain.RiskFinding{}, s.CurrentRisks...)

	s.Findings[s.CurrentClauseID] = domain.ClauseFindings{
		ClauseID: s.CurrentClauseID,
		Name:     item.Name,
		Risks:    risks,
		Diffs:    committed,
		Forced:   s.ValidationResult != nil && s.ValidationResult.Forced,

		DiffsLLMUsed: s.DiffsLLMUsed,
	}
	s.AllRisks = append(s.AllRisks, risks...)
	s.AllDiffs = append(s.AllDiffs, committed...)

	e.emit(ctx, domain.Event{Type: domain.EventClauseSaved, TaskID: s.TaskID, ClauseID: s.CurrentClauseID})
	e.logger.Info("Clause saved", "task_id", s.TaskID, "clause_id", s.CurrentClauseID, "risks", len(risks), "diffs", len(committed))

	s.ResetClause()
	s.Node = domain.NodeSelectClause
}

// summarize always produces the deterministic report; the narrative is best effort.
func (e *Engine) summarize(ctx context.Context, s *domain.TaskState) {
	sum := domain.BuildSummary(s)

	out := llm.Invoke(ctx, e.model, e.summaryRequest(s, sum), narrative{})
	e.emitModelReturn(ctx, s, StepSummary, out.Used, out.Duration)
	if out.Used && strings.TrimSpace(out.Value.Narrative) != "" {
		sum.Narrative = strings.TrimSpace(out.Value.Narrative)
		sum.LLMUsed = true
	}

	s.Summary = &sum
	s.Node = domain.NodeDone
}
