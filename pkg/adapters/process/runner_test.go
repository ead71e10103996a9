package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/process"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)
	runner := process.NewRunner()
	runner.Register("echo_stdin", "cat")
	runner.Register("echo_env", "sh", "-c", `printf '{"msg":"%s"}' "$REDLINE_ARG_MSG"`)
	runner.Register("fail", "sh", "-c", "echo broken >&2; exit 3")
	runner.Register("plain", "echo", "not json")
	ctx := context.Background()

	t.Run("Stdin Round Trip", func(t *testing.T) {
		out, err := runner.Execute(ctx, "echo_stdin", skill.Input{"clause_id": "4.1", "n": 2})
		require.NoError(t, err)
		assert.Equal(t, "4.1", out["clause_id"])
		assert.EqualValues(t, 2, out["n"])
	})

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		out, err := runner.Execute(ctx, "echo_env", skill.Input{"msg": "SecretMessage"})
		require.NoError(t, err)
		assert.Equal(t, "SecretMessage", out["msg"])
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Execute(ctx, "hacker_script", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("Non Zero Exit Carries Stderr", func(t *testing.T) {
		_, err := runner.Execute(ctx, "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("Rejects Non Object Output", func(t *testing.T) {
		_, err := runner.Execute(ctx, "plain", nil)
		assert.Error(t, err)
	})
}

func TestSkills_FromConfig(t *testing.T) {
	skipOnWindows(t)
	path := filepath.Join(t.TempDir(), "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  - name: word_count
    description: Count words in the clause
    category: analysis
    command: sh
    args: ["-c", "printf '{\"words\": %s}' $(echo \"$REDLINE_ARG_CLAUSE_TEXT\" | wc -w)"]
    params:
      - {name: clause_text, type: string, required: true, injected: true}
  - name: hidden
    command: "true"
    disabled: true
  - description: nameless entries are ignored
    command: "true"
`), 0o644))

	configs, err := process.LoadSkills(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	runner := process.NewRunner(process.WithRegistry(configs))
	reg := skill.NewRegistry()
	for _, s := range process.Skills(runner, configs) {
		require.NoError(t, reg.Register(s))
	}
	tools := reg.DescribeTools("", "")
	require.Len(t, tools, 1)
	assert.Equal(t, "word_count", tools[0].Name)

	doc := &domain.Document{Clauses: []domain.Clause{{ID: "1", Text: "one two three"}}}
	state := domain.NewTaskState("t", "", doc, nil)
	res := skill.NewDispatcher(reg).Execute(context.Background(), "word_count", "1", doc, state)
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 3, res.Output["words"])
}

func TestLoadSkills(t *testing.T) {
	t.Run("Missing File", func(t *testing.T) {
		configs, err := process.LoadSkills(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Empty(t, configs)
	})

	t.Run("Command Required", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "skills.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"skills":[{"name":"x"}]}`), 0o644))
		_, err := process.LoadSkills(path)
		assert.Error(t, err)
	})
}
