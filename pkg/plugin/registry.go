package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

// Plugin bundles the review material of one contract family.
type Plugin struct {
	DomainID    string
	Name        string
	Description string
	Checklist   []domain.ChecklistItem
	Skills      []skill.Skill
	// Baselines maps clause ids to the preferred wording for that clause.
	Baselines map[string]string
}

// Registry maps domain ids to plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for overwrite warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		plugins: make(map[string]Plugin),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds p, replacing any plugin with the same domain id.
func (r *Registry) Register(p Plugin) error {
	if p.DomainID == "" {
		return fmt.Errorf("register plugin: empty domain id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.DomainID]; exists {
		r.logger.Warn("Overwriting registered plugin", "domain_id", p.DomainID)
	}
	r.plugins[p.DomainID] = p
	return nil
}

// Install registers p and adds its skills to skills, scoped to p's domain.
func (r *Registry) Install(p Plugin, skills *skill.Registry) error {
	p.Skills = append([]skill.Skill(nil), p.Skills...)
	for i := range p.Skills {
		if p.Skills[i].Domain == "" || p.Skills[i].Domain == skill.GenericDomain {
			p.Skills[i].Domain = p.DomainID
		}
		if err := skills.Register(p.Skills[i]); err != nil {
			return fmt.Errorf("install plugin %s: %w", p.DomainID, err)
		}
	}
	return r.Register(p)
}

// Clear removes every plugin.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]Plugin)
}

// Get returns the plugin registered for domainID.
func (r *Registry) Get(domainID string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[domainID]
	return p, ok
}

// Domains lists the registered domain ids in order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Checklist returns a copy of the domain's checklist, or an empty list.
func (r *Registry) Checklist(domainID string) []domain.ChecklistItem {
	p, ok := r.Get(domainID)
	if !ok {
		return []domain.ChecklistItem{}
	}
	out := make([]domain.ChecklistItem, len(p.Checklist))
	for i, item := range p.Checklist {
		item.RequiredSkills = append([]string(nil), item.RequiredSkills...)
		out[i] = item
	}
	return out
}

// Skills returns generic followed by the domain's own skills.
func (r *Registry) Skills(domainID string, generic []skill.Skill) []skill.Skill {
	out := append([]skill.Skill(nil), generic...)
	if p, ok := r.Get(domainID); ok {
		out = append(out, p.Skills...)
	}
	return out
}

// BaselineText returns the preferred wording for clauseID, if the domain has one.
func (r *Registry) BaselineText(domainID, clauseID string) (string, bool) {
	p, ok := r.Get(domainID)
	if !ok {
		return "", false
	}
	text, ok := p.Baselines[clauseID]
	return text, ok && text != ""
}
