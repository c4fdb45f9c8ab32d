package generator

// Agent names used in errors, logs and dialog entries.
const (
	AgentSummarizer = "summarizer"
	AgentReviewer   = "reviewer"
	AgentTitle      = "title"
)

// Verdict is the Quality Critic's decision for one review pass.
type Verdict string

const (
	VerdictApproved      Verdict = "approved"
	VerdictNeedsRevision Verdict = "needs_revision"
	// VerdictForced marks the ceiling short-circuit: the model was not consulted.
	VerdictForced Verdict = "forced"
)

// TitleResult is the Title Composer's structured output.
type TitleResult struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ParseErrorTitle is the sentinel title used when no title could be parsed.
const ParseErrorTitle = "parse error"
