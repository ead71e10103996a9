package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/internal/runtime"
	httpadapter "github.com/aretw0/redline/pkg/adapters/http"
	"github.com/aretw0/redline/pkg/adapters/memory"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/llm"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/session"
	"github.com/aretw0/redline/pkg/skill"
)

type harness struct {
	handler http.Handler
	service *review.Service
	streams *httpadapter.StreamManager
}

func newHarness(t *testing.T) harness {
	t.Helper()
	model := llm.NewScript().
		On("risk analyst", `[{"severity":"high","description":"Long payment term","excerpt":"90 days"}]`).
		On("drafter", `[{"kind":"replace","original":"90 days","replacement":"30 days"}]`).
		On("quality control", `{"passed": true}`).
		On("summarizing", `{"narrative":"Payment term shortened."}`)

	reg := skill.NewRegistry()
	reg.MustRegister(skill.Skill{
		ID:          "echo",
		Description: "Echo text back",
		Category:    "utility",
		Active:      true,
		Params:      []skill.Param{{Name: "text", Type: "string", Required: true}},
		Handler: skill.HandlerFunc(func(ctx context.Context, in skill.Input) (map[string]any, error) {
			return map[string]any{"text": in["text"]}, nil
		}),
	})
	dispatcher := skill.NewDispatcher(reg)

	streams := httpadapter.NewStreamManager(nil)
	engine := runtime.NewEngine(dispatcher, model, runtime.WithEventSink(streams))
	svc := review.NewService(engine, session.NewManager(memory.NewStore()))

	handler, err := httpadapter.NewHandler(svc, dispatcher,
		httpadapter.WithStreams(streams),
		httpadapter.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("redline_metrics 1\n"))
		})),
	)
	require.NoError(t, err)
	return harness{handler: handler, service: svc, streams: streams}
}

func (h harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func startBody() map[string]any {
	return map[string]any{
		"task_id": "t1",
		"document": map[string]any{
			"id": "msa",
			"clauses": []any{
				map[string]any{"id": "4.1", "title": "Invoices", "text": "Invoices are payable within 90 days."},
			},
		},
		"checklist": []any{map[string]any{"clause_id": "4.1", "name": "Invoices"}},
	}
}

func TestSpec(t *testing.T) {
	doc, err := httpadapter.GetSpec()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)

	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = h.do(t, http.MethodGet, "/info", nil)
	assert.Contains(t, w.Body.String(), `"api_version":"1.0.0"`)

	w = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, w.Body.String(), "redline_metrics")
}

func TestReviewFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/tasks", startBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var state domain.TaskState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Equal(t, domain.StatusAwaitingApproval, state.Status)
	require.Len(t, state.PendingDiffs, 1)
	diffID := state.PendingDiffs[0].ID

	w = h.do(t, http.MethodPost, "/tasks", startBody())
	assert.Equal(t, http.StatusConflict, w.Code)

	// Resume before deciding is a client error listing the missing diffs.
	w = h.do(t, http.MethodPost, "/tasks/t1/resume", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var incomplete struct {
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &incomplete))
	assert.Equal(t, []string{diffID}, incomplete.Missing)

	w = h.do(t, http.MethodPost, "/tasks/t1/decisions", map[string]any{"diff_id": diffID, "decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/tasks/t1/decisions", map[string]any{"diff_id": "diff-unknown", "decision": "approve"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(t, http.MethodPost, "/tasks/missing/decisions", map[string]any{"diff_id": diffID, "decision": "approve"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/tasks/t1/report", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodPost, "/tasks/t1/decisions", map[string]any{
		"diff_id": diffID, "decision": "edit", "revised_text": "45 days",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/tasks/t1/resume", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.service.Wait()

	w = h.do(t, http.MethodGet, "/tasks/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, domain.StatusCompleted, state.Status)
	require.Len(t, state.AllDiffs, 1)
	assert.Equal(t, "45 days", state.AllDiffs[0].Replacement)

	w = h.do(t, http.MethodPost, "/tasks/t1/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resumed":false`)

	w = h.do(t, http.MethodGet, "/tasks/t1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment term shortened.")

	w = h.do(t, http.MethodGet, "/tasks", nil)
	assert.Contains(t, w.Body.String(), `"task_id":"t1"`)

	w = h.do(t, http.MethodDelete, "/tasks/t1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(t, http.MethodGet, "/tasks/t1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartTask_InvalidBody(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/tasks", map[string]any{"task_id": "t1"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "document is required")

	body := startBody()
	body["checklist"] = []any{map[string]any{"clause_id": "4.1", "priority": "urgent"}}
	w = h.do(t, http.MethodPost, "/tasks", body)
	assert.Equal(t, http.StatusBadRequest, w.Code, "priority enum is enforced")
}

func TestSkills(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/skills?category=utility", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tools []skill.ToolDescription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	w = h.do(t, http.MethodPost, "/skills/echo/invoke", map[string]any{"text": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	var res skill.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Output["text"])

	w = h.do(t, http.MethodPost, "/skills/echo/invoke", map[string]any{})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)

	w = h.do(t, http.MethodPost, "/skills/nope/invoke", map[string]any{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// streamRecorder lets the test read an SSE body while the handler is still writing it.
type streamRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (s *streamRecorder) Header() http.Header { return s.rec.Header() }

func (s *streamRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(b)
}

func (s *streamRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}

func (s *streamRecorder) Flush() {}

func (s *streamRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func TestSubscribeEvents(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &streamRecorder{rec: httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodGet, "/events?task_id=t1&types=approval_required,delta", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.handler.ServeHTTP(sub, req)
	}()

	require.Eventually(t, func() bool { return h.streams.Subscribers("t1") == 1 }, time.Second, 10*time.Millisecond)

	w := h.do(t, http.MethodPost, "/tasks", startBody())
	require.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool {
		out := sub.String()
		return strings.Contains(out, "event: approval_required") && strings.Contains(out, "event: delta")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	out := sub.String()
	assert.Contains(t, out, "event: ping")
	assert.NotContains(t, out, "event: diff_proposed", "filtered by types")
	assert.True(t, strings.Contains(out, `"pending_count":1`))
}
