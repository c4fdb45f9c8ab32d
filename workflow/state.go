// Package workflow runs the summarize → review → (revise | title) loop and keeps the
// per-run state threaded through every step.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"summary_review_workflow/generator"
)

// Node names a state of the workflow machine.
type Node string

const (
	NodeStart     Node = "start"
	NodeSummarize Node = "summarize"
	NodeReview    Node = "review"
	NodeTitle     Node = "title"
	NodeEnd       Node = "end"
)

// Outcome describes how a run reached END.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCanceled  Outcome = "canceled"
)

// Reasons the loop stopped revising.
const (
	TerminatedByApproval     = "approval"
	TerminatedByMaxRevisions = "max_revisions"
)

// Dialog actors.
const (
	ActorSystem     = "system"
	ActorSummarizer = generator.AgentSummarizer
	ActorReviewer   = generator.AgentReviewer
	ActorTitle      = generator.AgentTitle
)

// DialogEntry is one line of the observable trace. Only Progress may change after append.
type DialogEntry struct {
	Actor     string    `json:"actor"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Progress  *int      `json:"progress_percent,omitempty"`
}

// State 持有一次运行的全部上下文；每次运行新建，不跨运行复用。
type State struct {
	RunID            string            `json:"run_id"`
	InputText        string            `json:"input_text"`
	Summary          string            `json:"summary"`
	Feedback         string            `json:"feedback"`
	PreviousSummary  string            `json:"previous_summary"`
	PreviousFeedback string            `json:"previous_feedback"`
	RevisionCount    int               `json:"revision_count"`
	Approved         bool              `json:"approved"`
	Verdict          generator.Verdict `json:"verdict,omitempty"`
	Title            string            `json:"title"`
	FinalSummary     string            `json:"final_summary"`
	DialogHistory    []DialogEntry     `json:"dialog_history"`

	CurrentNode  Node      `json:"current_node"`
	Outcome      Outcome   `json:"outcome"`
	TerminatedBy string    `json:"terminated_by,omitempty"`
	Err          string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

// NewState creates a fresh state for input. The text is NFC-normalized once here
// and never modified afterwards.
func NewState(input string) *State {
	return &State{
		RunID:       uuid.New().String(),
		InputText:   norm.NFC.String(input),
		CurrentNode: NodeStart,
		Outcome:     OutcomeRunning,
		StartedAt:   time.Now(),
	}
}

// AddDialog appends an entry and returns its index.
func (s *State) AddDialog(actor, text string) int {
	s.DialogHistory = append(s.DialogHistory, DialogEntry{
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now(),
	})
	return len(s.DialogHistory) - 1
}

// SetProgress updates the progress of an existing entry in place.
func (s *State) SetProgress(idx, percent int) error {
	if idx < 0 || idx >= len(s.DialogHistory) {
		return fmt.Errorf("dialog index %d out of range", idx)
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	s.DialogHistory[idx].Progress = &percent
	return nil
}

// Transcript returns the agents' contributions so far, one line per entry.
func (s *State) Transcript() []string {
	var out []string
	for _, d := range s.DialogHistory {
		if d.Actor == ActorSystem || d.Progress != nil || strings.HasPrefix(d.Text, promptLogPrefix) {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", d.Actor, d.Text))
	}
	return out
}

// Complete reports whether the run produced both a title and a final summary.
func (s *State) Complete() bool {
	return s.Title != "" && s.FinalSummary != ""
}

// Snapshot returns a deep copy safe to hand to observers.
func (s *State) Snapshot() State {
	cp := *s
	cp.DialogHistory = make([]DialogEntry, len(s.DialogHistory))
	for i, d := range s.DialogHistory {
		cp.DialogHistory[i] = d
		if d.Progress != nil {
			p := *d.Progress
			cp.DialogHistory[i].Progress = &p
		}
	}
	return cp
}
