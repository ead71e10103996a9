// Package observability turns engine lifecycle hooks and events into logs and Prometheus metrics.
package observability

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/redline/pkg/domain"
)

const namespace = "redline"

// Metrics records engine activity on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	nodeVisits    *prometheus.CounterVec
	skillCalls    *prometheus.CounterVec
	skillDuration *prometheus.HistogramVec
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	events        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors, including the Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of state machine node visits.",
		}, []string{"node_id"}),
		skillCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_calls_total",
			Help:      "Skill executions by outcome.",
		}, []string{"skill_id", "success"}),
		skillDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_duration_seconds",
			Help:      "Duration of skill executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"skill_id"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "LLM-backed steps by whether model output was used.",
		}, []string{"step", "used"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_duration_seconds",
			Help:      "Duration of LLM-backed steps.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Outbound review events by type.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		m.nodeVisits, m.skillCalls, m.skillDuration, m.modelCalls, m.modelDuration, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(string(e.NodeID)).Inc()
		},
		OnSkillReturn: func(_ context.Context, e *domain.SkillEvent) {
			m.skillCalls.WithLabelValues(e.SkillID, strconv.FormatBool(e.Success)).Inc()
			m.skillDuration.WithLabelValues(e.SkillID).Observe(e.Duration.Seconds())
		},
		OnModelReturn: func(_ context.Context, e *domain.ModelEvent) {
			m.modelCalls.WithLabelValues(e.Step, strconv.FormatBool(e.Used)).Inc()
			m.modelDuration.WithLabelValues(e.Step).Observe(e.Duration.Seconds())
		},
	}
}

// Emit counts outbound events. It satisfies ports.EventSink.
func (m *Metrics) Emit(_ context.Context, ev domain.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

// LogHooks returns lifecycle hooks that write structured debug logs.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "task_id", e.TaskID, "node_id", e.NodeID, "clause_id", e.ClauseID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "task_id", e.TaskID, "node_id", e.NodeID)
		},
		OnSkillReturn: func(ctx context.Context, e *domain.SkillEvent) {
			level := slog.LevelDebug
			if !e.Success {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "skill_return",
				"task_id", e.TaskID,
				"clause_id", e.ClauseID,
				"skill_id", e.SkillID,
				"success", e.Success,
				"err", e.Error,
				"duration", e.Duration,
			)
		},
		OnModelReturn: func(ctx context.Context, e *domain.ModelEvent) {
			level := slog.LevelDebug
			if !e.Used {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "model_return",
				"task_id", e.TaskID,
				"clause_id", e.ClauseID,
				"step", e.Step,
				"used", e.Used,
				"duration", e.Duration,
			)
		},
	}
}
