package redline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/adapters/memory"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/session"
	"github.com/aretw0/redline/pkg/skill"
	"github.com/aretw0/redline/pkg/skills"
	"github.com/aretw0/redline/pkg/skills/supply"
)

// Reviewer is the high-level entry point for the redline library.
// It wires the skill and plugin registries, the engine and the review service.
type Reviewer struct {
	service    *review.Service
	engine     *runtime.Engine
	dispatcher *skill.Dispatcher
	skills     *skill.Registry
	plugins    *plugin.Registry
}

type settings struct {
	model        ports.ChatModel
	store        ports.CheckpointStore
	locker       ports.TaskLocker
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	sinks        []ports.EventSink
	maxRetries   int
	modelTimeout time.Duration
	skillTimeout time.Duration
	plugins      []plugin.Plugin
	skills       []skill.Skill
	noBuiltins   bool
}

// Option defines a functional option for configuring the Reviewer.
type Option func(*settings)

// WithModel sets the language model. Without one every model-backed step degrades.
func WithModel(m ports.ChatModel) Option {
	return func(s *settings) { s.model = m }
}

// WithStore sets the checkpoint store (default: in-memory).
func WithStore(store ports.CheckpointStore) Option {
	return func(s *settings) { s.store = store }
}

// WithLocker adds a distributed lock around checkpoint updates.
func WithLocker(l ports.TaskLocker) Option {
	return func(s *settings) { s.locker = l }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) { s.hooks = s.hooks.Merge(hooks) }
}

// WithEventSink adds a receiver for outbound review events.
func WithEventSink(sink ports.EventSink) Option {
	return func(s *settings) { s.sinks = append(s.sinks, sink) }
}

// WithMaxRetries sets how often a clause that fails validation is analyzed again.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// WithModelTimeout bounds each model call.
func WithModelTimeout(d time.Duration) Option {
	return func(s *settings) { s.modelTimeout = d }
}

// WithSkillTimeout bounds each skill execution that does not set its own limit.
func WithSkillTimeout(d time.Duration) Option {
	return func(s *settings) { s.skillTimeout = d }
}

// WithPlugin installs a domain plugin and its skills.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *settings) { s.plugins = append(s.plugins, p) }
}

// WithSkill registers an extra skill.
func WithSkill(sk skill.Skill) Option {
	return func(s *settings) { s.skills = append(s.skills, sk) }
}

// WithoutBuiltins skips the generic skills and the bundled supply plugin.
func WithoutBuiltins() Option {
	return func(s *settings) { s.noBuiltins = true }
}

// New builds a Reviewer.
func New(opts ...Option) (*Reviewer, error) {
	s := settings{maxRetries: -1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}

	r := &Reviewer{
		skills:  skill.NewRegistry(skill.WithRegistryLogger(s.logger)),
		plugins: plugin.NewRegistry(plugin.WithLogger(s.logger)),
	}

	if !s.noBuiltins {
		if err := skills.Register(r.skills, s.model, r.plugins); err != nil {
			return nil, err
		}
		builtin, err := supply.Plugin()
		if err != nil {
			return nil, err
		}
		s.plugins = append([]plugin.Plugin{builtin}, s.plugins...)
	}
	for _, p := range s.plugins {
		if err := r.plugins.Install(p, r.skills); err != nil {
			return nil, err
		}
	}
	for _, sk := range s.skills {
		if err := r.skills.Register(sk); err != nil {
			return nil, fmt.Errorf("register skill: %w", err)
		}
	}

	r.dispatcher = skill.NewDispatcher(r.skills,
		skill.WithDispatcherLogger(s.logger),
		skill.WithSkillTimeout(s.skillTimeout),
	)
	r.engine = runtime.NewEngine(r.dispatcher, s.model,
		runtime.WithLogger(s.logger),
		runtime.WithPlugins(r.plugins),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithEventSink(ports.FanOut(s.sinks...)),
		runtime.WithMaxRetries(s.maxRetries),
		runtime.WithModelTimeout(s.modelTimeout),
	)

	sessOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(s.locker))
	}
	r.service = review.NewService(r.engine, session.NewManager(s.store, sessOpts...), review.WithLogger(s.logger))
	return r, nil
}

// Service returns the review service: start, decide, resume, list.
func (r *Reviewer) Service() *review.Service {
	return r.service
}

// Dispatcher returns the skill dispatcher shared by the engine and the tool surfaces.
func (r *Reviewer) Dispatcher() *skill.Dispatcher {
	return r.dispatcher
}

// Skills returns the skill registry.
func (r *Reviewer) Skills() *skill.Registry {
	return r.skills
}

// Plugins returns the domain plugin registry.
func (r *Reviewer) Plugins() *plugin.Registry {
	return r.plugins
}

// MaxRetries reports the retry limit in effect.
func (r *Reviewer) MaxRetries() int {
	return r.engine.MaxRetries()
}
