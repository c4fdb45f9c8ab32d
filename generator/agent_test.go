package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizerInitialAndRevise(t *testing.T) {
	llm := newScripted().
		on(TaskSummarize, "  first draft \n").
		on(TaskRefine, "second draft")
	s, err := NewSummarizer(llm, nil)
	require.NoError(t, err)

	out, err := s.GenerateInitial(context.Background(), "the source")
	require.NoError(t, err)
	assert.Equal(t, "first draft", out)

	out, err = s.Revise(context.Background(), "the source", "tighten the ending")
	require.NoError(t, err)
	assert.Equal(t, "second draft", out)

	require.Len(t, llm.calls, 2)
	assert.Equal(t, "the source", llm.calls[0].User)
	assert.Contains(t, llm.calls[0].System, "the source")
	assert.Contains(t, llm.calls[1].System, "tighten the ending")
	assert.False(t, llm.calls[0].JSONMode)
}

func TestSummarizerEmptyReply(t *testing.T) {
	s, err := NewSummarizer(newScripted(), nil)
	require.NoError(t, err)

	_, err = s.GenerateInitial(context.Background(), "the source")
	require.Error(t, err)

	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, AgentSummarizer, agentErr.Agent)
	assert.Equal(t, ErrorKindEmptyResponse, agentErr.Kind)
}

func TestSummarizerCanceled(t *testing.T) {
	s, err := NewSummarizer(newScripted().fail(TaskSummarize, context.Canceled), nil)
	require.NoError(t, err)

	_, err = s.GenerateInitial(context.Background(), "x")
	assert.Equal(t, ErrorKindCanceled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockLLMFlow(t *testing.T) {
	ctx := context.Background()
	m := MockLLM{}

	s, err := NewSummarizer(m, nil)
	require.NoError(t, err)
	draft, err := s.GenerateInitial(ctx, "Wind moves through the tall grass of the valley.")
	require.NoError(t, err)

	r, err := NewReviewer(m, nil, true)
	require.NoError(t, err)
	v, err := r.DecideApproval(ctx, "fine", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, VerdictApproved, v)

	tw, err := NewTitleWriter(m, nil)
	require.NoError(t, err)
	res, err := tw.Compose(ctx, "src", nil, draft)
	require.NoError(t, err)
	assert.Equal(t, "Wind moves through the", res.Title)
}
