// Package http exposes the review service over a JSON API with server-sent events.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/redline"
	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/skill"
)

// Server serves the review API.
type Server struct {
	service    *review.Service
	dispatcher *skill.Dispatcher
	streams    *StreamManager
	metrics    http.Handler
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager that is also wired as the engine event sink.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler builds the HTTP handler for the review service.
func NewHandler(service *review.Service, dispatcher *skill.Dispatcher, opts ...Option) (http.Handler, error) {
	s := &Server{
		service:    service,
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	specRouter, err := newSpecRouter()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return validateRequests(specRouter, next) })

		r.Get("/health", s.getHealth)
		r.Get("/info", s.getInfo)
		r.Get("/skills", s.listSkills)
		r.Post("/skills/{skillId}/invoke", s.invokeSkill)
		r.Get("/domains", s.listDomains)
		r.Get("/tasks", s.listTasks)
		r.Post("/tasks", s.startTask)
		r.Get("/tasks/{taskId}", s.getTask)
		r.Delete("/tasks/{taskId}", s.deleteTask)
		r.Post("/tasks/{taskId}/decisions", s.submitDecision)
		r.Post("/tasks/{taskId}/resume", s.resumeTask)
		r.Get("/tasks/{taskId}/report", s.getReport)
		r.Get("/events", s.subscribeEvents)
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSpec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "redline-http",
		"version":     strings.TrimSpace(redline.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) listSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tools := s.dispatcher.Registry().DescribeTools(q.Get("domain"), q.Get("category"))
	writeJSON(w, http.StatusOK, tools)
}

func (s *Server) invokeSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "skillId")
	if _, err := s.dispatcher.Registry().Resolve(id); err != nil {
		s.writeError(w, err)
		return
	}

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, s.dispatcher.Invoke(r.Context(), id, args))
}

func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	plugins := s.service.Engine().Plugins()
	out := make([]map[string]any, 0)
	for _, id := range plugins.Domains() {
		p, _ := plugins.Get(id)
		out = append(out, map[string]any{
			"domain_id":   p.DomainID,
			"name":        p.Name,
			"description": p.Description,
			"clauses":     len(p.Checklist),
			"skills":      len(p.Skills),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	var req review.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	state, err := s.service.Start(r.Context(), req)
	if state != nil {
		s.streams.BroadcastDelta(nil, state)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Get(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "taskId")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type decisionRequest struct {
	DiffID      string `json:"diff_id"`
	Decision    string `json:"decision"`
	RevisedText string `json:"revised_text,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func (s *Server) submitDecision(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	before, _ := s.service.Get(r.Context(), taskID)
	state, err := s.service.SubmitDecision(r.Context(), taskID, req.DiffID, domain.Decision{
		Outcome:     domain.Outcome(req.Decision),
		RevisedText: req.RevisedText,
		Comment:     req.Comment,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.streams.BroadcastDelta(before, state)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) resumeTask(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.ResumeAsync(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Resumed {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Get(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if state.Summary == nil {
		writeJSON(w, http.StatusConflict, errorBody{Error: "task has no summary yet"})
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(state.Summary.Markdown()))
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var incomplete *domain.IncompleteDecisionsError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Missing: incomplete.Missing})
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, skill.ErrSkillNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrTaskExists), errors.Is(err, domain.ErrNotAwaitingApproval):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrUnknownDiff):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidDecision):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		s.logger.Error("Request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}
