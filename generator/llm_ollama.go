package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the local Ollama daemon address.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaLLM implements LLMClient against a local or remote Ollama server.
type OllamaLLM struct {
	Model   string
	Timeout time.Duration
	client  *api.Client
}

func NewOllamaLLMFromConfig(cfg *LLMSettings) (*OllamaLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	host := cfg.BaseURL
	if host == "" {
		host = DefaultOllamaURL
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	return &OllamaLLM{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		client:  api.NewClient(u, http.DefaultClient),
	}, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: o.Model,
		Messages: []api.Message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Stream: &stream,
	}
	if prompt.JSONMode {
		req.Format = json.RawMessage(`"json"`)
	}

	var out api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out = resp
		return nil
	})
	if err != nil {
		var status api.StatusError
		if errors.As(err, &status) {
			return "", classify(err, status.StatusCode)
		}
		return "", classify(err, 0)
	}
	if out.Message.Content == "" {
		return "", newLLMError(ErrorKindEmptyResponse, nil, "ollama: empty message")
	}
	return out.Message.Content, nil
}
