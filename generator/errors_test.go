package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, ErrorKindAuth},
		{403, ErrorKindAuth},
		{429, ErrorKindRateLimit},
		{400, ErrorKindBadRequest},
		{404, ErrorKindBadRequest},
		{422, ErrorKindBadRequest},
		{500, ErrorKindTransient},
		{503, ErrorKindTransient},
		{0, ErrorKindUnknown},
	}
	for _, tc := range cases {
		got := classify(base, tc.status)
		assert.Equal(t, tc.want, got.Kind, "status %d", tc.status)
		assert.ErrorIs(t, got, base)
	}
}

func TestClassifyCauses(t *testing.T) {
	assert.Equal(t, ErrorKindCanceled, classify(context.Canceled, 0).Kind)
	assert.Equal(t, ErrorKindTransient, classify(fmt.Errorf("call: %w", context.DeadlineExceeded), 0).Kind)
	assert.Equal(t, ErrorKindTransient, classify(&net.OpError{Op: "dial", Err: errors.New("refused")}, 0).Kind)
	assert.Equal(t, ErrorKindTransient, classify(errors.New("unexpected EOF"), 0).Kind)
	assert.Equal(t, ErrorKindRateLimit, classify(errors.New("quota exhausted"), 0).Kind)
	assert.Equal(t, ErrorKindAuth, classify(errors.New("invalid API key"), 0).Kind)
	// 取消优先于状态码。
	assert.Equal(t, ErrorKindCanceled, classify(context.Canceled, 500).Kind)
}

func TestKindOfUnwrapsAgentError(t *testing.T) {
	err := agentError(AgentReviewer, newLLMError(ErrorKindMalformedOutput, nil, "bad json"))
	wrapped := fmt.Errorf("review: %w", err)

	assert.Equal(t, ErrorKindMalformedOutput, KindOf(wrapped))

	var agentErr *AgentError
	require.ErrorAs(t, wrapped, &agentErr)
	assert.Equal(t, AgentReviewer, agentErr.Agent)
	assert.Contains(t, err.Error(), "reviewer failed (malformed_output)")

	assert.Nil(t, agentError(AgentTitle, nil))
	assert.Equal(t, ErrorKindUnknown, KindOf(nil))
}

func TestLLMErrorMessage(t *testing.T) {
	assert.Equal(t, "llm error (auth): status 401", (&LLMError{Kind: ErrorKindAuth, StatusCode: 401}).Error())
	assert.Equal(t, "llm error (transient): server error: boom",
		(&LLMError{Kind: ErrorKindTransient, Message: "server error", Err: errors.New("boom")}).Error())
}
