// Package supply is the built-in plugin for supply agreements.
package supply

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/skill"
)

// DomainID is the plugin's domain.
const DomainID = "supply"

// CheckPaymentTerms is the id of the domain skill.
const CheckPaymentTerms = "check_payment_terms"

// DefaultMaxPaymentDays is the longest acceptable payment term.
const DefaultMaxPaymentDays = 30

//go:embed supply.yaml
var definition []byte

var (
	daysPattern  = regexp.MustCompile(`(?i)within\s+(?:[a-z\- ]+\s+)?\(?(\d{1,3})\)?\s+(?:calendar\s+|business\s+)?days`)
	netPattern   = regexp.MustCompile(`(?i)\bnet\s+(\d{1,3})\b`)
	interestWord = regexp.MustCompile(`(?i)\binterest\b`)
)

// Plugin returns the supply plugin with its checklist, baselines and skills.
func Plugin() (plugin.Plugin, error) {
	def, err := plugin.ParseYAML(definition)
	if err != nil {
		return plugin.Plugin{}, fmt.Errorf("supply plugin: %w", err)
	}
	p := def.Plugin(nil)
	p.Skills = append(p.Skills, PaymentTermsSkill(DefaultMaxPaymentDays))
	return p, nil
}

// PaymentTermsSkill extracts the payment period and flags terms longer than maxDays.
func PaymentTermsSkill(maxDays int) skill.Skill {
	return skill.Skill{
		ID:          CheckPaymentTerms,
		Name:        "Check payment terms",
		Description: fmt.Sprintf("Extract the payment period in days and flag periods above %d days.", maxDays),
		Domain:      DomainID,
		Category:    "analysis",
		Active:      true,
		Params: []skill.Param{
			{Name: "text", Type: "string", Required: true, Description: "Payment clause text"},
		},
		Output: []skill.Param{
			{Name: "payment_days", Type: "integer"},
			{Name: "exceeds_limit", Type: "boolean"},
			{Name: "mentions_interest", Type: "boolean"},
		},
		InputBuilder: skill.InputBuilderFunc(func(clauseID string, doc *domain.Document, state *domain.TaskState) (skill.Input, error) {
			if state != nil {
				if text, ok := state.SkillContext["get_clause_context"]["text"].(string); ok && text != "" {
					return skill.Input{skill.ParamClauseID: clauseID, "text": text}, nil
				}
			}
			text := doc.ClauseText(clauseID)
			if text == "" {
				return nil, errors.New("clause text unavailable")
			}
			return skill.Input{skill.ParamClauseID: clauseID, "text": text}, nil
		}),
		Handler: skill.HandlerFunc(func(_ context.Context, in skill.Input) (map[string]any, error) {
			text, _ := in["text"].(string)
			if strings.TrimSpace(text) == "" {
				return nil, errors.New("text is required")
			}
			out := map[string]any{"mentions_interest": interestWord.MatchString(text)}
			days, found := PaymentDays(text)
			out["found"] = found
			if found {
				out["payment_days"] = days
				out["exceeds_limit"] = days > maxDays
			}
			return out, nil
		}),
	}
}

// PaymentDays returns the longest payment period stated in text.
func PaymentDays(text string) (int, bool) {
	best, found := 0, false
	for _, p := range []*regexp.Regexp{daysPattern, netPattern} {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if !found || n > best {
				best, found = n, true
			}
		}
	}
	return best, found
}
