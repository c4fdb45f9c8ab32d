package generator

import (
	"context"
	"errors"
)

// Summarizer is the Draft Generator: it writes the first summary and revises it from critique.
type Summarizer struct {
	llm     LLMClient
	prompts *PromptSet
}

func NewSummarizer(llm LLMClient, prompts *PromptSet) (*Summarizer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Summarizer{llm: llm, prompts: prompts}, nil
}

// InitialPrompt exposes the prompt GenerateInitial would send, for transcript logging.
func (s *Summarizer) InitialPrompt(source string) (Prompt, error) {
	return s.prompts.BuildInitialPrompt(source)
}

// RevisionPrompt exposes the prompt Revise would send.
func (s *Summarizer) RevisionPrompt(source, critique string) (Prompt, error) {
	return s.prompts.BuildRevisionPrompt(source, critique)
}

// GenerateInitial 生成首稿。
func (s *Summarizer) GenerateInitial(ctx context.Context, source string) (string, error) {
	prompt, err := s.InitialPrompt(source)
	if err != nil {
		return "", agentError(AgentSummarizer, err)
	}
	return s.complete(ctx, prompt)
}

// Revise 基于批评修订稿件。
func (s *Summarizer) Revise(ctx context.Context, source, critique string) (string, error) {
	prompt, err := s.RevisionPrompt(source, critique)
	if err != nil {
		return "", agentError(AgentSummarizer, err)
	}
	return s.complete(ctx, prompt)
}

func (s *Summarizer) complete(ctx context.Context, prompt Prompt) (string, error) {
	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", agentError(AgentSummarizer, err)
	}
	draft, err := cleanDraft(raw)
	if err != nil {
		return "", agentError(AgentSummarizer, err)
	}
	return draft, nil
}
