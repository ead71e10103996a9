package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/redline/pkg/ports"
)

// Script is a ChatModel that answers from canned replies, picked by a substring
// of the system prompt. It backs tests and offline demos.
type Script struct {
	mu    sync.Mutex
	rules []*scriptRule
	calls int
}

type scriptRule struct {
	match   string
	replies []string
	err     error
	next    int
}

// NewScript creates an empty script. Unmatched prompts fail.
func NewScript() *Script {
	return &Script{}
}

// On answers prompts whose system message contains match. Replies are used in
// order; the last one repeats.
func (s *Script) On(match string, replies ...string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &scriptRule{match: match, replies: replies})
	return s
}

// Fail makes prompts containing match return err.
func (s *Script) Fail(match string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &scriptRule{match: match, err: err})
	return s
}

// Calls returns how many times Chat was invoked.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Chat implements ports.ChatModel.
func (s *Script) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var system string
	if len(messages) > 0 && messages[0].Role == ports.RoleSystem {
		system = messages[0].Content
	}
	for _, r := range s.rules {
		if !strings.Contains(system, r.match) {
			continue
		}
		if r.err != nil {
			return "", r.err
		}
		if len(r.replies) == 0 {
			return "", nil
		}
		reply := r.replies[min(r.next, len(r.replies)-1)]
		r.next++
		return reply, nil
	}
	return "", fmt.Errorf("script: no reply for prompt %.40q", system)
}
