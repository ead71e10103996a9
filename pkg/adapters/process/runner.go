// Package process runs skills as allow-listed external commands.
//
// A process skill receives its input as a JSON object on stdin; primitive
// arguments are also exported as REDLINE_ARG_<NAME> environment variables.
// It must print a JSON object on stdout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

// EnvPrefix prefixes the argument environment variables.
const EnvPrefix = "REDLINE_ARG_"

// Runner executes registered commands only.
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{Command: tool.Command, Args: tool.Args, Env: tool.Environment}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Handler returns a skill handler bound to the registered command name.
// Lookup happens per call so a handler for an unknown name fails at execution time.
func (r *Runner) Handler(name string) skill.Handler {
	return skill.HandlerFunc(func(ctx context.Context, in skill.Input) (map[string]any, error) {
		return r.Execute(ctx, name, in)
	})
}

// Execute runs the named command with in and decodes its stdout.
func (r *Runner) Execute(ctx context.Context, name string, in skill.Input) (map[string]any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process skill not registered: %s", name)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode process input: %w", err)
	}

	// Arguments never become command-line flags.
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(cmd.Environ(), environment(proc.Env, in)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("process output is not a JSON object: %w", err)
	}
	return out, nil
}

func environment(fixed map[string]string, in skill.Input) []string {
	env := make([]string, 0, len(fixed)+len(in))
	for k, v := range fixed {
		env = append(env, k+"="+v)
	}
	for k, v := range in {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		default:
			// Structured values are only available on stdin.
			continue
		}
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+val)
	}
	return env
}

// ClauseInput builds the input handed to process skills: the clause under
// review plus outputs of earlier skills, never the whole checkpoint.
func ClauseInput(clauseID string, doc *domain.Document, state *domain.TaskState) (skill.Input, error) {
	in := skill.Input{skill.ParamClauseID: clauseID}
	if ref, ok := doc.FindClause(clauseID); ok {
		in["clause_title"] = ref.Clause.Title
		in["clause_text"] = ref.Clause.Text
	}
	if state != nil {
		in["domain_id"] = state.DomainID
		if len(state.SkillContext) > 0 {
			in["skill_context"] = state.SkillContext
		}
	}
	return in, nil
}
