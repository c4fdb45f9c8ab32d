package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Task names identify which agent step a prompt belongs to.
const (
	TaskSummarize = "summarize"
	TaskRefine    = "refine"
	TaskReview    = "review"
	TaskApproval  = "approval"
	TaskTitle     = "title"
	TaskPing      = "ping"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// DefaultDeepSeekBaseURL is used for the deepseek provider when no base_url is configured.
const DefaultDeepSeekBaseURL = "https://api.deepseek.com"

// NewLLM builds the provider client named by cfg.Provider.
func NewLLM(cfg LLMSettings) (LLMClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAILLMFromConfig(&cfg)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口。
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultDeepSeekBaseURL
		}
		return NewOpenAILLMFromConfig(&cfg)
	case "anthropic":
		return NewAnthropicLLMFromConfig(&cfg)
	case "ollama":
		return NewOllamaLLMFromConfig(&cfg)
	case "gemini":
		return NewGeminiLLMFromConfig(&cfg)
	case "mock":
		return MockLLM{}, nil
	case "":
		return nil, fmt.Errorf("llm provider is required")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

// withTimeout bounds a single remote call; a zero timeout leaves ctx untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// TestConnection sends a short greeting and returns the model's reply.
func TestConnection(ctx context.Context, llm LLMClient) (string, error) {
	reply, err := llm.Complete(ctx, Prompt{
		Task:   TaskPing,
		System: "You are a helpful assistant.",
		User:   "Hello! Please reply with a short greeting.",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
