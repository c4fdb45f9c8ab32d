package workflow

import "summary_review_workflow/generator"

// NewWithLLM builds the summarizer, reviewer and title writer on one client and
// wires them into an Engine. A nil prompt set selects the embedded defaults.
func NewWithLLM(llm generator.LLMClient, prompts *generator.PromptSet, lenientFinalReview bool, opts Options) (*Engine, error) {
	if prompts == nil {
		prompts = generator.DefaultPrompts()
	}
	summarizer, err := generator.NewSummarizer(llm, prompts)
	if err != nil {
		return nil, err
	}
	reviewer, err := generator.NewReviewer(llm, prompts, lenientFinalReview)
	if err != nil {
		return nil, err
	}
	titles, err := generator.NewTitleWriter(llm, prompts)
	if err != nil {
		return nil, err
	}
	return New(summarizer, reviewer, titles, opts)
}
