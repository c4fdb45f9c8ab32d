package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiLLM implements LLMClient using the Google GenAI SDK.
type GeminiLLM struct {
	Model   string
	Timeout time.Duration
	apiKey  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiLLMFromConfig(cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	return &GeminiLLM{Model: cfg.Model, Timeout: cfg.Timeout, apiKey: cfg.APIKey}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	// genai needs a context to build its client, so creation is deferred to the first call.
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return "", newLLMError(ErrorKindAuth, g.initErr, "create gemini client")
	}

	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}},
	}
	if prompt.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	result, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", classify(err, geminiStatus(err))
	}
	if result == nil || result.Text() == "" {
		return "", newLLMError(ErrorKindEmptyResponse, nil, "gemini: empty response")
	}
	return result.Text(), nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
