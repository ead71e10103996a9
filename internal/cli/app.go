// Package cli wires configuration into a running review stack and implements
// the interactive review loop used by cmd/redline.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/redline"
	"github.com/aretw0/redline/internal/config"
	"github.com/aretw0/redline/pkg/adapters/anthropic"
	"github.com/aretw0/redline/pkg/adapters/file"
	httpadapter "github.com/aretw0/redline/pkg/adapters/http"
	loamadapter "github.com/aretw0/redline/pkg/adapters/loam"
	"github.com/aretw0/redline/pkg/adapters/memory"
	"github.com/aretw0/redline/pkg/adapters/openai"
	"github.com/aretw0/redline/pkg/adapters/process"
	"github.com/aretw0/redline/pkg/adapters/redis"
	"github.com/aretw0/redline/pkg/adapters/sqlite"
	"github.com/aretw0/redline/pkg/llm"
	"github.com/aretw0/redline/pkg/observability"
	"github.com/aretw0/redline/pkg/persistence/middleware"
	"github.com/aretw0/redline/pkg/plugin"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/skill"
)

// App is a fully wired review stack.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      ports.CheckpointStore
	Skills     *skill.Registry
	Plugins    *plugin.Registry
	Dispatcher *skill.Dispatcher
	Service    *review.Service
	Metrics    *observability.Metrics
	Streams    *httpadapter.StreamManager

	closers []func() error
}

// AppOption adjusts wiring, mostly for tests.
type AppOption func(*appOptions)

type appOptions struct {
	model    ports.ChatModel
	modelSet bool
	store    ports.CheckpointStore
}

// WithModel replaces the configured model provider.
func WithModel(m ports.ChatModel) AppOption {
	return func(o *appOptions) {
		o.model = m
		o.modelSet = true
	}
}

// WithStore replaces the configured checkpoint store.
func WithStore(s ports.CheckpointStore) AppOption {
	return func(o *appOptions) { o.store = s }
}

// NewApp builds every component named by cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Streams: httpadapter.NewStreamManager(logger),
	}

	var locker ports.TaskLocker
	if o.store != nil {
		app.Store = o.store
	} else {
		store, l, err := app.openStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		app.Store, locker = store, l
	}
	if cfg.Store.EncryptionKey != "" {
		sealed, err := sealStore(app.Store, cfg.Store)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Store = sealed
	}

	model := o.model
	if !o.modelSet {
		var err error
		if model, err = newModel(cfg.Model); err != nil {
			app.Close()
			return nil, err
		}
	}

	extensions, err := app.loadExtensions(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	reviewerOpts := append([]redline.Option{
		redline.WithModel(model),
		redline.WithStore(app.Store),
		redline.WithLogger(logger),
		redline.WithLifecycleHooks(app.Metrics.Hooks().Merge(observability.LogHooks(logger))),
		redline.WithEventSink(app.Streams),
		redline.WithEventSink(app.Metrics),
		redline.WithMaxRetries(cfg.Engine.RetryLimit),
		redline.WithModelTimeout(cfg.Model.Timeout),
		redline.WithSkillTimeout(cfg.Engine.SkillTimeout),
	}, extensions...)
	if locker != nil {
		reviewerOpts = append(reviewerOpts, redline.WithLocker(locker))
	}

	reviewer, err := redline.New(reviewerOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Skills = reviewer.Skills()
	app.Plugins = reviewer.Plugins()
	app.Dispatcher = reviewer.Dispatcher()
	app.Service = reviewer.Service()
	return app, nil
}

// Close waits for background resumes and releases the store.
func (a *App) Close() error {
	if a.Service != nil {
		a.Service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(cfg config.StoreConfig) (ports.CheckpointStore, ports.TaskLocker, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Info("Using SQLite checkpoint store", "path", cfg.SQLitePath)
		return store, nil, nil
	case config.StoreRedis:
		opts, err := backend.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(opts)
		var storeOpts []redis.Option
		if cfg.RedisTTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.RedisTTL))
		}
		store := redis.NewFromClient(client, storeOpts...)
		a.closers = append(a.closers, store.Close)
		a.Logger.Info("Using Redis checkpoint store", "addr", opts.Addr)
		return store, redis.NewLocker(client, redis.DefaultPrefix), nil
	case config.StoreFile:
		store := file.NewStore(cfg.FileDir)
		a.Logger.Info("Using file checkpoint store", "dir", store.BasePath)
		return store, nil, nil
	default:
		return memory.NewStore(), nil, nil
	}
}

// sealStore encrypts checkpoints at rest with the configured key ring.
func sealStore(store ports.CheckpointStore, cfg config.StoreConfig) (ports.CheckpointStore, error) {
	active, err := middleware.DecodeKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.PreviousKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("previous key: %w", err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, mw), nil
}

func newModel(cfg config.ModelConfig) (ports.ChatModel, error) {
	var inner ports.ChatModel
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai provider requires an api key")
		}
		inner = openai.New(cfg.APIKey,
			openai.WithModel(cfg.Name),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithTemperature(cfg.Temperature),
			openai.WithMaxTokens(cfg.MaxTokens),
		)
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic provider requires an api key")
		}
		inner = anthropic.New(cfg.APIKey,
			anthropic.WithModel(cfg.Name),
			anthropic.WithBaseURL(cfg.BaseURL),
			anthropic.WithTemperature(cfg.Temperature),
			anthropic.WithMaxTokens(cfg.MaxTokens),
		)
	default:
		return nil, nil
	}
	return llm.NewResilient(inner,
		llm.WithAttempts(cfg.Retries+1),
		llm.WithDeadline(cfg.Timeout),
	), nil
}

// loadExtensions reads plugin files, the markdown checklist directory and
// process skills named by the config.
func (a *App) loadExtensions(ctx context.Context) ([]redline.Option, error) {
	var opts []redline.Option

	defs, err := plugin.LoadDir(a.Config.PluginsDir)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		opts = append(opts, redline.WithPlugin(def.Plugin(nil)))
		a.Logger.Info("Loaded domain plugin", "domain", def.Domain, "clauses", len(def.Checklist))
	}

	if dir := strings.TrimSpace(a.Config.ChecklistsDir); dir != "" {
		loader, err := loamadapter.Open(dir)
		if err != nil {
			return nil, err
		}
		domainID := filepath.Base(filepath.Clean(dir))
		p, err := loader.Plugin(ctx, domainID)
		if err != nil {
			return nil, fmt.Errorf("load checklists from %s: %w", dir, err)
		}
		opts = append(opts, redline.WithPlugin(p))
		a.Logger.Info("Loaded markdown checklist", "domain", domainID, "clauses", len(p.Checklist))
	}

	if a.Config.SkillsFile != "" {
		configs, err := process.LoadSkills(a.Config.SkillsFile)
		if err != nil {
			return nil, err
		}
		runner := process.NewRunner(process.WithRegistry(configs), process.WithBaseDir(filepath.Dir(a.Config.SkillsFile)))
		for _, s := range process.Skills(runner, configs) {
			opts = append(opts, redline.WithSkill(s))
		}
	}
	return opts, nil
}
