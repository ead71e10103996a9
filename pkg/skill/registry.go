package skill

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/redline/internal/logging"
)

// ErrSkillNotFound is returned when no skill is registered under an id.
var ErrSkillNotFound = errors.New("skill not found")

// Registry holds the skills available to a process.
// It is safe for concurrent use and read-mostly after startup.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for overwrite warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		skills: make(map[string]Skill),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a skill. Registering an existing id replaces it.
func (r *Registry) Register(s Skill) error {
	if s.ID == "" {
		return fmt.Errorf("register skill: empty id")
	}
	if s.Handler == nil {
		return fmt.Errorf("register skill %q: nil handler", s.ID)
	}
	if s.Backend == "" {
		s.Backend = BackendLocal
	}
	if s.Domain == "" {
		s.Domain = GenericDomain
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[s.ID]; exists {
		r.logger.Warn("Overwriting registered skill", "skill_id", s.ID)
	}
	r.skills[s.ID] = s
	return nil
}

// MustRegister registers skills and panics on an invalid registration.
func (r *Registry) MustRegister(skills ...Skill) {
	for _, s := range skills {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the skill registered under id.
func (r *Registry) Resolve(id string) (Skill, error) {
	r.mu.RLock()
	s, ok := r.skills[id]
	r.mu.RUnlock()

	if !ok {
		return Skill{}, fmt.Errorf("%w: %s", ErrSkillNotFound, id)
	}
	return s, nil
}

// ListForDomain returns the generic skills plus those of domainID, sorted by id.
func (r *Registry) ListForDomain(domainID string) []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		if s.AvailableIn(domainID) {
			out = append(out, s)
		}
	}
	sortSkills(out)
	return out
}

// All returns every registered skill sorted by id.
func (r *Registry) All() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sortSkills(out)
	return out
}

// DescribeTools returns tool descriptions for the active skills visible to domainID.
// An empty domainID includes every domain; an empty category includes every category.
func (r *Registry) DescribeTools(domainID, category string) []ToolDescription {
	var skills []Skill
	if domainID == "" {
		skills = r.All()
	} else {
		skills = r.ListForDomain(domainID)
	}

	out := make([]ToolDescription, 0, len(skills))
	for _, s := range skills {
		if !s.Active {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s.Describe())
	}
	return out
}

func sortSkills(skills []Skill) {
	sort.Slice(skills, func(i, j int) bool { return skills[i].ID < skills[j].ID })
}
