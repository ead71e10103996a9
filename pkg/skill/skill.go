package skill

import (
	"context"
	"time"

	"github.com/aretw0/redline/pkg/domain"
)

// GenericDomain marks a skill available to every domain.
const GenericDomain = "*"

// DefaultTimeout bounds a skill execution when neither the skill nor the
// dispatcher sets a limit.
const DefaultTimeout = 30 * time.Second

// Injected parameter names. They are supplied by the engine and never exposed
// to tool-calling clients.
const (
	ParamClauseID = "clause_id"
	ParamDocument = "document"
	ParamState    = "state"
)

// Backend selects where a skill runs.
type Backend string

const (
	BackendLocal   Backend = "local"
	BackendRemote  Backend = "remote"
	BackendProcess Backend = "process"
)

// Input is the argument map handed to a handler.
type Input map[string]any

// Param declares one input or output field of a skill.
type Param struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"` // string, integer, number, boolean, array, object
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Injected    bool     `json:"injected,omitempty" yaml:"injected,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items       string   `json:"items,omitempty" yaml:"items,omitempty"` // element type for arrays
}

// IsInjected reports whether the engine supplies the parameter.
func (p Param) IsInjected() bool {
	return p.Injected || p.Name == ParamDocument || p.Name == ParamState
}

// Handler executes a skill.
type Handler interface {
	Execute(ctx context.Context, in Input) (map[string]any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, in Input) (map[string]any, error)

func (f HandlerFunc) Execute(ctx context.Context, in Input) (map[string]any, error) {
	return f(ctx, in)
}

// InputBuilder derives a handler input from the clause under review.
type InputBuilder interface {
	BuildInput(clauseID string, doc *domain.Document, state *domain.TaskState) (Input, error)
}

// InputBuilderFunc adapts a function to the InputBuilder interface.
type InputBuilderFunc func(clauseID string, doc *domain.Document, state *domain.TaskState) (Input, error)

func (f InputBuilderFunc) BuildInput(clauseID string, doc *domain.Document, state *domain.TaskState) (Input, error) {
	return f(clauseID, doc, state)
}

// Skill is a registered capability.
type Skill struct {
	ID          string
	Name        string
	Description string
	Params      []Param
	Output      []Param
	Backend     Backend
	Handler     Handler
	// InputBuilder is optional. Without it the dispatcher passes
	// clause_id, document and state.
	InputBuilder InputBuilder
	Domain       string
	Category     string
	Active       bool
	// Timeout overrides the dispatcher's limit for this skill.
	Timeout time.Duration
}

// IsGeneric reports whether the skill is available to every domain.
func (s Skill) IsGeneric() bool {
	return s.Domain == "" || s.Domain == GenericDomain
}

// AvailableIn reports whether the skill may be used by domainID.
func (s Skill) AvailableIn(domainID string) bool {
	return s.IsGeneric() || s.Domain == domainID
}

// Result is the outcome of one skill execution. It is always returned, never raised.
type Result struct {
	Success  bool           `json:"success"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// ToolDescription is the externally visible contract of a skill.
type ToolDescription struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Describe derives the tool description. Injected parameters are stripped.
func (s Skill) Describe() ToolDescription {
	desc := s.Description
	if desc == "" {
		desc = s.Name
	}
	return ToolDescription{
		Name:        s.ID,
		Description: desc,
		Category:    s.Category,
		Domain:      s.Domain,
		Parameters:  s.InputSchema(false),
	}
}
