package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/review"
)

func reviewStart(taskID string) review.StartRequest {
	return review.StartRequest{TaskID: taskID, DomainID: "nda", Document: testDocument()}
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "msa.yaml")
		require.NoError(t, os.WriteFile(path, []byte("clauses:\n  - id: \"1\"\n    text: Hello\n"), 0o644))
		doc, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "msa", doc.ID, "id defaults to the file name")
		assert.Equal(t, "Hello", doc.ClauseText("1"))
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "nda.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"n1","clauses":[{"id":"2","text":"x"}]}`), 0o644))
		doc, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "n1", doc.ID)
	})

	t.Run("No Clauses", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("id: e\n"), 0o644))
		_, err := LoadDocument(path)
		assert.ErrorContains(t, err, "no clauses")
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadDocument(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestRunReview_AutoApprove(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	var out bytes.Buffer

	state, err := RunReview(context.Background(), app.Service, ReviewOptions{
		DomainID:    "nda",
		Document:    testDocument(),
		AutoApprove: true,
		Out:         &out,
		In:          strings.NewReader(""),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Contains(t, out.String(), "approved (auto)")
	assert.Contains(t, out.String(), "# Review Summary")
	assert.Contains(t, out.String(), "One clause tightened.")
}

func TestRunReview_Interactive(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	var out bytes.Buffer
	rendered := false

	state, err := RunReview(context.Background(), app.Service, ReviewOptions{
		TaskID:   "interactive",
		DomainID: "nda",
		Document: testDocument(),
		In:       strings.NewReader("maybe\ne\n\ne\nwithin 45 days\n"),
		Out:      &out,
		Render: func(md string) (string, error) {
			rendered = true
			return md, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.True(t, rendered)
	assert.Contains(t, out.String(), "please answer a, r or e")
	assert.Contains(t, out.String(), "revised text cannot be empty")

	require.Len(t, state.AllDiffs, 1)
	assert.Equal(t, domain.DiffEdited, state.AllDiffs[0].Status)
	assert.Equal(t, "within 45 days", state.AllDiffs[0].Replacement)
}

func TestRunReview_RejectThenApprove(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	var out bytes.Buffer

	state, err := RunReview(context.Background(), app.Service, ReviewOptions{
		DomainID: "nda",
		Document: testDocument(),
		In:       strings.NewReader("r\nkeep it at 60 days\na\n"),
		Out:      &out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Equal(t, 2, strings.Count(out.String(), "await a decision"))
	require.Len(t, state.AllDiffs, 1, "the rejected draft is not proposed again")
	assert.Equal(t, "45 days", state.AllDiffs[0].Replacement)
}

func TestRunReview_ContinueSuspended(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	_, err := app.Service.Start(ctx, reviewStart("later"))
	require.NoError(t, err)

	var out bytes.Buffer
	state, err := RunReview(ctx, app.Service, ReviewOptions{
		TaskID: "later",
		In:     strings.NewReader("a\n"),
		Out:    &out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)
	assert.Contains(t, out.String(), "Continuing task later")
}

func TestRunReview_InputClosed(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	_, err := RunReview(context.Background(), app.Service, ReviewOptions{
		DomainID: "nda",
		Document: testDocument(),
		In:       strings.NewReader(""),
		Out:      &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	assert.NoError(t, HandleExecutionError(err))
}

func TestRunReview_RequiresDocument(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_, err := RunReview(context.Background(), app.Service, ReviewOptions{TaskID: "ghost", Out: &bytes.Buffer{}})
	assert.ErrorContains(t, err, "document is required")
}
