package generator

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Reviewer is the Quality Critic.
type Reviewer struct {
	llm     LLMClient
	prompts *PromptSet
	// lenient selects the approval-leaning template on the final pass.
	lenient bool
}

func NewReviewer(llm LLMClient, prompts *PromptSet, lenientFinalPass bool) (*Reviewer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Reviewer{llm: llm, prompts: prompts, lenient: lenientFinalPass}, nil
}

// Critique evaluates current against the previous draft/critique pair.
func (r *Reviewer) Critique(ctx context.Context, current, prevDraft, prevCritique string, finalPass bool) (string, error) {
	prompt, err := r.prompts.BuildReviewPrompt(current, prevDraft, prevCritique, finalPass && r.lenient)
	if err != nil {
		return "", agentError(AgentReviewer, err)
	}
	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", agentError(AgentReviewer, err)
	}
	critique, err := cleanDraft(raw)
	if err != nil {
		return "", agentError(AgentReviewer, err)
	}
	return critique, nil
}

// DecideApproval classifies a critique. At or past the ceiling it returns
// VerdictForced without calling the model.
func (r *Reviewer) DecideApproval(ctx context.Context, critique string, revisionCount, maxRevisions int) (Verdict, error) {
	if revisionCount >= maxRevisions {
		return VerdictForced, nil
	}
	prompt, err := r.prompts.BuildApprovalPrompt(critique)
	if err != nil {
		return VerdictNeedsRevision, agentError(AgentReviewer, err)
	}
	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return VerdictNeedsRevision, agentError(AgentReviewer, err)
	}
	v, err := ParseVerdict(raw)
	if err != nil {
		return VerdictNeedsRevision, agentError(AgentReviewer, err)
	}
	return v, nil
}

// ParseVerdict reads the structured approval reply. It accepts a JSON object
// {"verdict": ...} (fenced or embedded in prose) or a bare one-word reply.
func ParseVerdict(raw string) (Verdict, error) {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'.`))
	switch Verdict(word) {
	case VerdictApproved, VerdictNeedsRevision:
		return Verdict(word), nil
	}

	doc, err := ExtractJSONObject(raw)
	if err != nil {
		return VerdictNeedsRevision, newLLMError(ErrorKindMalformedOutput, err, "approval reply")
	}
	if err := validatePayload(verdictSchema, doc); err != nil {
		return VerdictNeedsRevision, err
	}
	return Verdict(gjson.Get(doc, "verdict").String()), nil
}
