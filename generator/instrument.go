package generator

import (
	"context"
	"log"
	"time"
)

// CallObserver receives one record per model call.
type CallObserver interface {
	ObserveLLMCall(model, task, errorKind string, promptTokens, completionTokens int, success bool, d time.Duration)
}

type instrumentedLLM struct {
	next     LLMClient
	model    string
	observer CallObserver
	tokens   *TokenCounter
	logger   *log.Logger
	verbose  bool
}

// Instrument wraps llm so every call is timed, token-counted, logged and reported to observer.
// observer and logger may be nil.
func Instrument(llm LLMClient, model string, observer CallObserver, logger *log.Logger, verbose bool) LLMClient {
	if logger == nil {
		logger = log.Default()
	}
	tc, err := NewTokenCounter()
	if err != nil {
		logger.Printf("[WARN] token counter unavailable, using estimates: %v", err)
	}
	return &instrumentedLLM{
		next:     llm,
		model:    model,
		observer: observer,
		tokens:   tc,
		logger:   logger,
		verbose:  verbose,
	}
}

func (i *instrumentedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, prompt)
	elapsed := time.Since(start)

	kind := ""
	if err != nil {
		kind = KindOf(err).String()
		i.logger.Printf("[WARN] llm %s task=%s failed after %s: %v", i.model, prompt.Task, elapsed.Round(time.Millisecond), err)
	} else if i.verbose {
		i.logger.Printf("[INFO] llm %s task=%s json=%t took %s", i.model, prompt.Task, prompt.JSONMode, elapsed.Round(time.Millisecond))
	}

	if i.observer != nil {
		promptTokens := i.tokens.Count(prompt.System) + i.tokens.Count(prompt.User)
		completionTokens := 0
		if err == nil {
			completionTokens = i.tokens.Count(out)
		}
		i.observer.ObserveLLMCall(i.model, prompt.Task, kind, promptTokens, completionTokens, err == nil, elapsed)
	}
	return out, err
}
