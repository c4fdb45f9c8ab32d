package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"summary_review_workflow/generator"
)

// DefaultMaxRevisions is the ceiling on summarize/review cycles.
const DefaultMaxRevisions = 3

const promptLogPrefix = "[Prompt]\n"

// DraftGenerator writes and revises summaries.
type DraftGenerator interface {
	GenerateInitial(ctx context.Context, source string) (string, error)
	Revise(ctx context.Context, source, critique string) (string, error)
}

// PromptPreviewer is implemented by generators that can show the prompt they will send.
type PromptPreviewer interface {
	InitialPrompt(source string) (generator.Prompt, error)
	RevisionPrompt(source, critique string) (generator.Prompt, error)
}

// Critic reviews drafts and classifies its own critique.
type Critic interface {
	Critique(ctx context.Context, current, prevDraft, prevCritique string, finalPass bool) (string, error)
	DecideApproval(ctx context.Context, critique string, revisionCount, maxRevisions int) (generator.Verdict, error)
}

// TitleComposer proposes a title for an approved draft.
type TitleComposer interface {
	Compose(ctx context.Context, source string, transcript []string, approved string) (generator.TitleResult, error)
}

// Observer receives run and node timings.
type Observer interface {
	ObserveNode(node string, d time.Duration)
	ObserveRun(outcome, terminatedBy string, cycles int, d time.Duration)
}

// Options tunes an Engine. Zero values pick the defaults.
type Options struct {
	MaxRevisions int
	LogPrompts   bool
	Policy       Policy
	Observer     Observer
	Logger       *log.Logger
	Verbose      bool
}

// Engine sequences the three agents. It holds no per-run state, so one Engine may
// serve concurrent runs.
type Engine struct {
	drafts  DraftGenerator
	critic  Critic
	titles  TitleComposer
	max     int
	prompts bool
	policy  Policy
	obs     Observer
	logger  *log.Logger
	verbose bool
	tracer  trace.Tracer
}

func New(drafts DraftGenerator, critic Critic, titles TitleComposer, opts Options) (*Engine, error) {
	if drafts == nil || critic == nil || titles == nil {
		return nil, errors.New("draft generator, critic and title composer are required")
	}
	if opts.MaxRevisions < 0 {
		return nil, fmt.Errorf("max revisions must be positive, got %d", opts.MaxRevisions)
	}
	if opts.MaxRevisions == 0 {
		opts.MaxRevisions = DefaultMaxRevisions
	}
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		drafts:  drafts,
		critic:  critic,
		titles:  titles,
		max:     opts.MaxRevisions,
		prompts: opts.LogPrompts,
		policy:  opts.Policy,
		obs:     opts.Observer,
		logger:  opts.Logger,
		verbose: opts.Verbose,
		tracer:  otel.Tracer("summary_review_workflow/workflow"),
	}, nil
}

// MaxRevisions returns the configured ceiling.
func (e *Engine) MaxRevisions() int { return e.max }

// ShouldRevise is the conditional edge out of REVIEW. The ceiling check comes
// first, so the loop ends after at most maxRevisions cycles whatever the verdict.
func ShouldRevise(st *State, maxRevisions int) Node {
	if st.RevisionCount >= maxRevisions {
		return NodeTitle
	}
	if !st.Approved {
		return NodeSummarize
	}
	return NodeTitle
}

// Run executes a workflow to END and returns its final state. It never fails:
// problems are recorded in Outcome and Err.
func (e *Engine) Run(ctx context.Context, input string) *State {
	return e.execute(ctx, NewState(input), nil)
}

// Stream starts a run in its own goroutine and returns its progress events. The
// last event has Node END and carries the final state; the channel is closed after it.
// Consumers must drain the channel: only the END event is delivered after ctx is done.
func (e *Engine) Stream(ctx context.Context, input string) <-chan Event {
	return e.StreamState(ctx, NewState(input))
}

// StreamState is Stream for a caller-created state, letting the caller know the run ID up front.
func (e *Engine) StreamState(ctx context.Context, st *State) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		e.execute(ctx, st, ch)
	}()
	return ch
}

func (e *Engine) infof(format string, args ...interface{}) {
	if !e.verbose {
		return
	}
	e.logger.Printf("[INFO] "+format, args...)
}

type run struct {
	e      *Engine
	st     *State
	events chan<- Event
}

func (e *Engine) execute(ctx context.Context, st *State, events chan<- Event) *State {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run_id", st.RunID),
		attribute.Int("max_revisions", e.max),
	))
	defer span.End()

	r := &run{e: e, st: st, events: events}
	st.CurrentNode = NodeStart
	st.AddDialog(ActorSystem, "New text received. Starting the workflow.")
	r.emit(ctx, NodeStart, ActorSystem, "workflow started")
	e.infof("run %s started (%d chars, max %d revisions)", st.RunID, len([]rune(st.InputText)), e.max)

	node := NodeSummarize
	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			r.stop(OutcomeCanceled, err)
			break
		}
		next, err := r.step(ctx, node)
		if err != nil {
			if ctx.Err() != nil || generator.KindOf(err) == generator.ErrorKindCanceled {
				r.stop(OutcomeCanceled, err)
			} else {
				r.stop(OutcomeAborted, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			break
		}
		node = next
	}

	if st.Outcome == OutcomeRunning {
		st.Outcome = OutcomeCompleted
		st.AddDialog(ActorSystem, "All processing is complete.")
	}
	st.CurrentNode = NodeEnd
	st.FinishedAt = time.Now()
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("outcome", string(st.Outcome)),
		attribute.Int("revision_count", st.RevisionCount),
	)
	if e.obs != nil {
		e.obs.ObserveRun(string(st.Outcome), st.TerminatedBy, st.RevisionCount, elapsed)
	}
	e.infof("run %s finished: outcome=%s revisions=%d terminated_by=%s in %s",
		st.RunID, st.Outcome, st.RevisionCount, st.TerminatedBy, elapsed.Round(time.Millisecond))
	r.emit(ctx, NodeEnd, ActorSystem, fmt.Sprintf("workflow %s", st.Outcome))
	return st
}

// step runs one node and returns the next. Panics in an agent end the run like errors do.
func (r *run) step(ctx context.Context, node Node) (next Node, err error) {
	ctx, span := r.e.tracer.Start(ctx, "workflow."+string(node))
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s step panicked: %v", node, p)
		}
		span.SetAttributes(attribute.Int("revision_count", r.st.RevisionCount))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if r.e.obs != nil {
			r.e.obs.ObserveNode(string(node), time.Since(start))
		}
	}()

	r.st.CurrentNode = node
	switch node {
	case NodeSummarize:
		return NodeReview, r.summarize(ctx)
	case NodeReview:
		if err := r.review(ctx); err != nil {
			return NodeEnd, err
		}
		to := ShouldRevise(r.st, r.e.max)
		if to == NodeTitle {
			if r.st.Approved {
				r.st.TerminatedBy = TerminatedByApproval
			} else {
				r.st.TerminatedBy = TerminatedByMaxRevisions
			}
		}
		return to, nil
	case NodeTitle:
		return NodeEnd, r.title(ctx)
	}
	return NodeEnd, fmt.Errorf("unknown node %q", node)
}

func (r *run) summarize(ctx context.Context) error {
	st := r.st
	st.RevisionCount++
	n := st.RevisionCount

	st.AddDialog(ActorSystem, fmt.Sprintf("Summarizer is drafting the summary (version %d)", n))
	working := st.AddDialog(ActorSummarizer, "Generating the summary...")
	_ = st.SetProgress(working, 0)
	r.emit(ctx, NodeSummarize, ActorSummarizer, fmt.Sprintf("drafting version %d", n))

	if r.e.prompts {
		r.logPrompt(ctx)
	}

	var (
		draft string
		err   error
	)
	if n == 1 {
		draft, err = r.e.drafts.GenerateInitial(ctx, st.InputText)
	} else {
		draft, err = r.e.drafts.Revise(ctx, st.InputText, st.Feedback)
	}
	if err != nil {
		if r.e.policy(generator.AgentSummarizer, generator.KindOf(err)) == ActionAbort {
			return err
		}
		r.degraded(generator.AgentSummarizer, err)
		draft = PlaceholderDraft
		if n > 1 {
			draft = PlaceholderRevision
		}
	}

	st.Summary = draft
	_ = st.SetProgress(working, 100)
	st.AddDialog(ActorSummarizer, fmt.Sprintf("[Summary v%d]\n%s", n, draft))
	r.emit(ctx, NodeSummarize, ActorSummarizer, fmt.Sprintf("summary version %d ready", n))
	return nil
}

func (r *run) logPrompt(ctx context.Context) {
	pp, ok := r.e.drafts.(PromptPreviewer)
	if !ok {
		return
	}
	var (
		p   generator.Prompt
		err error
	)
	if r.st.RevisionCount == 1 {
		p, err = pp.InitialPrompt(r.st.InputText)
	} else {
		p, err = pp.RevisionPrompt(r.st.InputText, r.st.Feedback)
	}
	if err != nil {
		return
	}
	r.st.AddDialog(ActorSummarizer, promptLogPrefix+p.System)
	r.emit(ctx, NodeSummarize, ActorSummarizer, "prompt sent")
}

func (r *run) review(ctx context.Context) error {
	st := r.st
	finalPass := st.RevisionCount >= r.e.max

	st.AddDialog(ActorSystem, "Reviewer is evaluating the summary")
	working := st.AddDialog(ActorReviewer, "Reviewing...")
	_ = st.SetProgress(working, 0)
	r.emit(ctx, NodeReview, ActorReviewer, "reviewing")

	critique, err := r.e.critic.Critique(ctx, st.Summary, st.PreviousSummary, st.PreviousFeedback, finalPass)
	if err != nil {
		if r.e.policy(generator.AgentReviewer, generator.KindOf(err)) == ActionAbort {
			return err
		}
		r.degraded(generator.AgentReviewer, err)
		critique = PlaceholderCritique
	}
	st.Feedback = critique
	st.PreviousSummary = st.Summary
	st.PreviousFeedback = critique
	_ = st.SetProgress(working, 50)
	st.AddDialog(ActorReviewer, "[Feedback]\n"+critique)
	r.emit(ctx, NodeReview, ActorReviewer, "critique ready")

	verdict, err := r.e.critic.DecideApproval(ctx, critique, st.RevisionCount, r.e.max)
	if err != nil {
		if r.e.policy(generator.AgentReviewer, generator.KindOf(err)) == ActionAbort {
			return err
		}
		r.degraded(generator.AgentReviewer, err)
		verdict = generator.VerdictNeedsRevision
	}
	st.Verdict = verdict
	st.Approved = verdict == generator.VerdictApproved
	_ = st.SetProgress(working, 100)

	judgement := "Needs revision"
	switch verdict {
	case generator.VerdictApproved:
		judgement = "Approved"
	case generator.VerdictForced:
		judgement = "Revision limit reached; proceeding with the current summary"
	}
	st.AddDialog(ActorReviewer, "[Verdict] "+judgement)
	r.emit(ctx, NodeReview, ActorReviewer, judgement)
	return nil
}

func (r *run) title(ctx context.Context) error {
	st := r.st
	st.AddDialog(ActorSystem, "Title writer is generating a title")
	working := st.AddDialog(ActorTitle, "Generating the title...")
	_ = st.SetProgress(working, 0)
	r.emit(ctx, NodeTitle, ActorTitle, "generating title")

	approved := st.Summary
	res, err := r.e.titles.Compose(ctx, st.InputText, st.Transcript(), approved)
	if err != nil {
		if r.e.policy(generator.AgentTitle, generator.KindOf(err)) == ActionAbort {
			return err
		}
		r.degraded(generator.AgentTitle, err)
		if res.Title == "" {
			res.Title = PlaceholderTitle
		}
	}
	if res.Summary != approved {
		r.e.logger.Printf("[WARN] run %s: title composer altered the summary; keeping the approved draft", st.RunID)
	}

	st.Title = res.Title
	st.FinalSummary = approved
	_ = st.SetProgress(working, 100)
	st.AddDialog(ActorTitle, fmt.Sprintf("[Title] %q", st.Title))
	r.emit(ctx, NodeTitle, ActorTitle, "title ready")
	return nil
}

func (r *run) degraded(agent string, err error) {
	r.e.logger.Printf("[WARN] run %s: %s degraded: %v", r.st.RunID, agent, err)
	r.st.AddDialog(ActorSystem, fmt.Sprintf("%s failed (%s); continuing with a placeholder", agent, generator.KindOf(err)))
}

func (r *run) stop(outcome Outcome, err error) {
	r.st.Outcome = outcome
	r.st.Err = err.Error()
	r.st.AddDialog(ActorSystem, fmt.Sprintf("Workflow stopped: %v", err))
	r.e.logger.Printf("[WARN] run %s %s: %v", r.st.RunID, outcome, err)
}

// emit publishes a snapshot. Intermediate events are dropped once ctx is done;
// the END event is always delivered.
func (r *run) emit(ctx context.Context, node Node, actor, msg string) {
	if r.events == nil {
		return
	}
	ev := Event{
		RunID:    r.st.RunID,
		Node:     node,
		Percent:  progressFor(node, r.st.RevisionCount, r.e.max),
		Actor:    actor,
		Message:  msg,
		Time:     time.Now(),
		Snapshot: r.st.Snapshot(),
	}
	if ev.Final() {
		r.events <- ev
		return
	}
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}
