package workflow

import "summary_review_workflow/generator"

// Action is what the engine does with a failed agent call.
type Action int

const (
	// ActionDegrade substitutes a placeholder value and keeps going.
	ActionDegrade Action = iota
	// ActionAbort jumps straight to END with the partial state.
	ActionAbort
)

// Policy decides per agent and error kind.
type Policy func(agent string, kind generator.ErrorKind) Action

// DefaultPolicy degrades every failure except cancellation.
func DefaultPolicy(_ string, kind generator.ErrorKind) Action {
	if kind == generator.ErrorKindCanceled {
		return ActionAbort
	}
	return ActionDegrade
}

// StrictPolicy also aborts on failures that repeating the run cannot fix.
func StrictPolicy(agent string, kind generator.ErrorKind) Action {
	switch kind {
	case generator.ErrorKindAuth, generator.ErrorKindBadRequest:
		return ActionAbort
	}
	return DefaultPolicy(agent, kind)
}

// Placeholder values used when a failure is degraded.
const (
	PlaceholderDraft    = "An error occurred while generating the summary. Please try again."
	PlaceholderRevision = "An error occurred while improving the summary. Please try again."
	PlaceholderCritique = "An error occurred during the review. Please try again."
	PlaceholderTitle    = "an error occurred"
)
