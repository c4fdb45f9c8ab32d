package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summary_review_workflow/workflow"
)

func finishedState() workflow.State {
	st := workflow.NewState("Some long article text.")
	st.Summary = "A *short* summary of the article."
	st.FinalSummary = st.Summary
	st.Title = "Echoes of Tomorrow"
	st.RevisionCount = 2
	st.Approved = true
	st.Outcome = workflow.OutcomeCompleted
	st.TerminatedBy = workflow.TerminatedByApproval
	st.AddDialog(workflow.ActorSystem, "Starting the workflow.")
	st.AddDialog(workflow.ActorSummarizer, "[Summary v1]\nfirst draft")
	idx := st.AddDialog(workflow.ActorSummarizer, "Working...")
	_ = st.SetProgress(idx, 100)
	st.FinishedAt = time.Now()
	return st.Snapshot()
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(finishedState())

	assert.Contains(t, out, "# Echoes of Tomorrow")
	assert.Contains(t, out, "- Terminated by: approval")
	assert.Contains(t, out, "A *short* summary of the article.")
	assert.Contains(t, out, "> [Summary v1]\n> first draft")
	assert.NotContains(t, out, "Working...")
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(finishedState())
	require.NoError(t, err)

	assert.Contains(t, out, "<title>Echoes of Tomorrow</title>")
	assert.Contains(t, out, "<h1>Echoes of Tomorrow</h1>")
	assert.Contains(t, out, "<em>short</em>")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = FormatForPath("out/report.HTML")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.md")
	require.NoError(t, WriteFile(path, finishedState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Echoes of Tomorrow")

	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "report.txt"), finishedState()))
}

func TestPublish(t *testing.T) {
	var got Payload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	p, err := New(ts.URL, ts.Client(), false, nil)
	require.NoError(t, err)

	st := finishedState()
	require.NoError(t, p.Publish(context.Background(), st))

	assert.Equal(t, st.RunID, got.RunID)
	assert.Equal(t, "Echoes of Tomorrow", got.Title)
	assert.Equal(t, st.FinalSummary, got.Summary)
	assert.Equal(t, "A *short* summary of the article.", got.Digest)
	assert.Contains(t, got.ContentHTML, "<em>short</em>")
	assert.Equal(t, 2, got.Revisions)
}

func TestPublishRejectsIncompleteRun(t *testing.T) {
	p, err := New("http://127.0.0.1:0", nil, false, nil)
	require.NoError(t, err)

	st := finishedState()
	st.Outcome = workflow.OutcomeCanceled
	assert.Error(t, p.Publish(context.Background(), st))
}

func TestPublishWebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	p, err := New(ts.URL, ts.Client(), false, nil)
	require.NoError(t, err)
	err = p.Publish(context.Background(), finishedState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", nil, false, nil)
	assert.Error(t, err)
}
