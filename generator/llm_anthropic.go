package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicMaxTokens = 2048
	jsonOnlyInstruction       = "Respond with a single valid JSON object and nothing else."
)

// AnthropicLLM implements LLMClient over the Anthropic Messages API.
type AnthropicLLM struct {
	Model   string
	Timeout time.Duration
	client  anthropic.Client
}

func NewAnthropicLLMFromConfig(cfg *LLMSettings) (*AnthropicLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicLLM{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		client:  anthropic.NewClient(opts...),
	}, nil
}

func (a *AnthropicLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()

	// The Messages API has no JSON response mode, so the constraint goes into the system prompt.
	system := prompt.System
	if prompt.JSONMode {
		system += "\n\n" + jsonOnlyInstruction
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: defaultAnthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classify(err, apiErr.StatusCode)
		}
		return "", classify(err, 0)
	}

	var sb strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			sb.WriteString(resp.Content[i].Text)
		}
	}
	if sb.Len() == 0 {
		return "", newLLMError(ErrorKindEmptyResponse, nil, "anthropic: no text content")
	}
	return sb.String(), nil
}
