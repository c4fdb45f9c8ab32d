package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	st := NewState("Cafe\u0301 society")

	assert.Equal(t, "Caf\u00e9 society", st.InputText)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, NodeStart, st.CurrentNode)
	assert.Equal(t, OutcomeRunning, st.Outcome)
	assert.Zero(t, st.RevisionCount)
	assert.False(t, st.Complete())

	assert.NotEqual(t, st.RunID, NewState("x").RunID)
}

func TestDialogProgress(t *testing.T) {
	st := NewState("x")
	assert.Equal(t, 0, st.AddDialog(ActorSystem, "start"))
	idx := st.AddDialog(ActorSummarizer, "working")
	assert.Equal(t, 1, idx)

	require.NoError(t, st.SetProgress(idx, 150))
	assert.Equal(t, 100, *st.DialogHistory[idx].Progress)
	require.NoError(t, st.SetProgress(idx, -5))
	assert.Equal(t, 0, *st.DialogHistory[idx].Progress)

	assert.Error(t, st.SetProgress(5, 10))
	assert.Error(t, st.SetProgress(-1, 10))
	assert.Nil(t, st.DialogHistory[0].Progress)
}

func TestTranscript(t *testing.T) {
	st := NewState("x")
	st.AddDialog(ActorSystem, "Starting")
	w := st.AddDialog(ActorSummarizer, "Generating...")
	_ = st.SetProgress(w, 100)
	st.AddDialog(ActorSummarizer, promptLogPrefix+"system prompt")
	st.AddDialog(ActorSummarizer, "[Summary v1]\ndraft")
	st.AddDialog(ActorReviewer, "[Feedback]\nok")

	assert.Equal(t, []string{
		"summarizer: [Summary v1]\ndraft",
		"reviewer: [Feedback]\nok",
	}, st.Transcript())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	st := NewState("x")
	idx := st.AddDialog(ActorSummarizer, "working")
	_ = st.SetProgress(idx, 10)

	snap := st.Snapshot()
	_ = st.SetProgress(idx, 90)
	st.AddDialog(ActorSystem, "more")
	st.Summary = "changed"

	assert.Len(t, snap.DialogHistory, 1)
	assert.Equal(t, 10, *snap.DialogHistory[0].Progress)
	assert.Empty(t, snap.Summary)
}

func TestComplete(t *testing.T) {
	st := NewState("x")
	st.Title = "T"
	assert.False(t, st.Complete())
	st.FinalSummary = "S"
	assert.True(t, st.Complete())
}
