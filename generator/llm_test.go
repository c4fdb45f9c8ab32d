package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLM(t *testing.T) {
	_, err := NewLLM(LLMSettings{})
	assert.Error(t, err)

	_, err = NewLLM(LLMSettings{Provider: "unknown", Model: "x"})
	assert.ErrorContains(t, err, "not supported")

	llm, err := NewLLM(LLMSettings{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, MockLLM{}, llm)

	_, err = NewLLM(LLMSettings{Provider: "deepseek", Model: "deepseek-chat"})
	assert.ErrorContains(t, err, "api key")

	llm, err = NewLLM(LLMSettings{Provider: "DeepSeek", Model: "deepseek-chat", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAILLM{}, llm)

	llm, err = NewLLM(LLMSettings{Provider: "anthropic", Model: "claude", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicLLM{}, llm)

	llm, err = NewLLM(LLMSettings{Provider: "ollama", Model: "llama3.1:8b"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaLLM{}, llm)

	llm, err = NewLLM(LLMSettings{Provider: "gemini", Model: "gemini-2.0-flash", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiLLM{}, llm)

	_, err = NewLLM(LLMSettings{Provider: "gemini", Model: "gemini-2.0-flash"})
	assert.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	reply, err := TestConnection(context.Background(), MockLLM{})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	llm := newScripted().fail(TaskPing, context.DeadlineExceeded)
	_, err = TestConnection(context.Background(), llm)
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "deepseek-chat",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"verdict\": \"approved\"}"}}]
		}`))
	}))
	defer ts.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "deepseek-chat", APIKey: "test-key", BaseURL: ts.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	out, err := llm.Complete(context.Background(), Prompt{Task: TaskApproval, System: "sys", User: "usr", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict": "approved"}`, out)

	assert.Equal(t, "deepseek-chat", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, ErrorKindAuth},
		{http.StatusTooManyRequests, ErrorKindRateLimit},
		{http.StatusBadRequest, ErrorKindBadRequest},
		{http.StatusServiceUnavailable, ErrorKindTransient},
	}
	for _, tc := range cases {
		calls := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "error"}}`))
		}))

		llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "m", APIKey: "k", BaseURL: ts.URL})
		require.NoError(t, err)
		_, err = llm.Complete(context.Background(), Prompt{Task: TaskSummarize, System: "s", User: "u"})
		require.Error(t, err)
		assert.Equal(t, tc.want, KindOf(err), "status %d", tc.status)
		assert.Equal(t, 1, calls, "no retries expected")
		ts.Close()
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`))
	}))
	defer ts.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "m", APIKey: "k", BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = llm.Complete(context.Background(), Prompt{Task: TaskSummarize, System: "s", User: "u"})
	assert.Equal(t, ErrorKindEmptyResponse, KindOf(err))
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [{"type": "text", "text": "{\"title\": \"Harbour Light\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer ts.Close()

	llm, err := NewAnthropicLLMFromConfig(&LLMSettings{Model: "claude", APIKey: "k", BaseURL: ts.URL})
	require.NoError(t, err)
	out, err := llm.Complete(context.Background(), Prompt{Task: TaskTitle, System: "sys", User: "usr", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"title": "Harbour Light"}`, out)

	system, _ := json.Marshal(body["system"])
	assert.Contains(t, string(system), "JSON")
}

func TestOllamaComplete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "llama3.1:8b", "created_at": "2024-01-01T00:00:00Z",
			"message": {"role": "assistant", "content": "a short summary"}, "done": true}` + "\n"))
	}))
	defer ts.Close()

	llm, err := NewOllamaLLMFromConfig(&LLMSettings{Model: "llama3.1:8b", BaseURL: ts.URL})
	require.NoError(t, err)
	out, err := llm.Complete(context.Background(), Prompt{Task: TaskSummarize, System: "sys", User: "usr", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, "a short summary", out)

	assert.Equal(t, false, body["stream"])
	assert.Equal(t, "json", body["format"])
}

func TestOllamaServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	llm, err := NewOllamaLLMFromConfig(&LLMSettings{Model: "m", BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = llm.Complete(context.Background(), Prompt{Task: TaskSummarize, System: "s", User: "u"})
	require.Error(t, err)
	assert.Equal(t, ErrorKindTransient, KindOf(err))
}
