package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
)

// allTasks is the subscription key for clients that watch every task.
const allTasks = "*"

// deltaEvent names SSE messages carrying a domain.TaskDelta.
const deltaEvent = "delta"

// message is one SSE frame.
type message struct {
	event string
	data  string
}

// StreamManager fans engine events out to SSE subscribers.
// It implements ports.EventSink so it can be handed to the engine.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- message]struct{} // task id -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- message]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for taskID ("" listens to every task).
// The returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(taskID string) (<-chan message, func()) {
	if taskID == "" {
		taskID = allTasks
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan message, 32)
	if _, ok := sm.subscribers[taskID]; !ok {
		sm.subscribers[taskID] = make(map[chan<- message]struct{})
	}
	sm.subscribers[taskID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[taskID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, taskID)
				}
			}
		})
	}
}

// Subscribers returns how many listeners watch taskID.
func (sm *StreamManager) Subscribers(taskID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[taskID])
}

// Emit implements ports.EventSink.
func (sm *StreamManager) Emit(ctx context.Context, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: failed to encode event", "type", event.Type, "err", err)
		return
	}
	sm.broadcast(event.TaskID, message{event: string(event.Type), data: string(data)})
}

// BroadcastDelta publishes the change between two checkpoints, if any.
func (sm *StreamManager) BroadcastDelta(before, after *domain.TaskState) {
	delta := domain.Delta(before, after)
	if delta == nil {
		return
	}
	data, err := json.Marshal(delta)
	if err != nil {
		sm.logger.Error("SSE: failed to encode delta", "task_id", delta.TaskID, "err", err)
		return
	}
	sm.broadcast(delta.TaskID, message{event: deltaEvent, data: string(data)})
}

func (sm *StreamManager) broadcast(taskID string, msg message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{taskID, allTasks} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Slow client.
				sm.logger.Warn("SSE: client buffer full, dropping message", "task_id", taskID, "event", msg.event)
			}
		}
	}
}

// subscribeEvents handles GET /events.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming not supported"})
		return
	}

	taskID := r.URL.Query().Get("task_id")
	keep := parseTypes(r.URL.Query().Get("types"))

	ch, cancel := s.streams.Subscribe(taskID)
	defer cancel()
	s.logger.Info("SSE: client subscribed", "task_id", taskID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "task_id", taskID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(keep) > 0 && !keep[msg.event] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
			flusher.Flush()
		}
	}
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	keep := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			keep[t] = true
		}
	}
	return keep
}
