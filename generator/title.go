package generator

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// TitleWriter is the Title Composer. It only ever proposes a title; the summary it
// returns is always the approved draft it was given.
type TitleWriter struct {
	llm     LLMClient
	prompts *PromptSet
}

func NewTitleWriter(llm LLMClient, prompts *PromptSet) (*TitleWriter, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &TitleWriter{llm: llm, prompts: prompts}, nil
}

// Compose asks for a JSON title. A reply that cannot be parsed yields
// ParseErrorTitle together with a malformed_output error; a failed call yields
// the error alone. In every case Summary is the approved draft.
func (t *TitleWriter) Compose(ctx context.Context, source string, transcript []string, approved string) (TitleResult, error) {
	result := TitleResult{Summary: approved}

	prompt, err := t.prompts.BuildTitlePrompt(source, transcript, approved)
	if err != nil {
		return result, agentError(AgentTitle, err)
	}
	raw, err := t.llm.Complete(ctx, prompt)
	if err != nil {
		return result, agentError(AgentTitle, err)
	}

	title, err := ParseTitle(raw)
	if err != nil {
		result.Title = ParseErrorTitle
		return result, agentError(AgentTitle, err)
	}
	result.Title = title
	return result, nil
}

// ParseTitle extracts the title field from model output via ExtractJSONObject.
// Any summary the model echoes back is ignored.
func ParseTitle(raw string) (string, error) {
	doc, err := ExtractJSONObject(raw)
	if err != nil {
		return "", newLLMError(ErrorKindMalformedOutput, err, "title reply")
	}
	if err := validatePayload(titleSchema, doc); err != nil {
		return "", err
	}
	return strings.TrimSpace(gjson.Get(doc, "title").String()), nil
}
