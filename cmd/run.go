package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"summary_review_workflow/publisher"
	"summary_review_workflow/tui"
	"summary_review_workflow/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run [text]",
	Short: "Summarize a text, review it and propose a title",
	Long: `Summarize a text through the revision loop and print the title and final summary.

The source text is taken from the positional argument, --example, --file (use "-" for
stdin) or piped stdin, in that order. Progress is shown in an interactive view when
stdout is a terminal and as plain log lines otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	f := runCmd.Flags()
	f.StringP("file", "f", "", "read the source text from a file (\"-\" for stdin)")
	f.Int("example", 0, fmt.Sprintf("use built-in example text 1..%d", len(exampleTexts)))
	f.Int("max-revisions", 0, "maximum summarize/review cycles (default 3)")
	f.StringP("out", "o", "", "write a report to this path (.md or .html)")
	f.String("webhook", "", "POST the finished run to this URL")
	f.Bool("plain", false, "disable the interactive progress view")
	f.Bool("log-prompts", false, "record the summarizer prompts in the dialog history")
	f.Bool("strict", false, "abort on authentication and bad-request errors instead of degrading")

	_ = v.BindPFlag("workflow.max_revisions", f.Lookup("max-revisions"))
	_ = v.BindPFlag("workflow.log_prompts", f.Lookup("log-prompts"))
	_ = v.BindPFlag("publish.output_path", f.Lookup("out"))
	_ = v.BindPFlag("publish.webhook_url", f.Lookup("webhook"))

	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	llm, err := buildLLM(cfg, nil)
	if err != nil {
		return err
	}
	policy := workflow.DefaultPolicy
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		policy = workflow.StrictPolicy
	}
	engine, err := buildEngine(cfg, llm, nil, policy)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	events := engine.Stream(ctx, text)

	plain, _ := cmd.Flags().GetBool("plain")
	var final *workflow.State
	if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
		final, err = tui.Run(events, cancel, nil, nil)
		if err != nil && final == nil {
			return err
		}
	} else {
		final = followPlain(events, cmd.ErrOrStderr())
	}

	printResult(cmd.OutOrStdout(), final)

	if cfg.Publish.OutputPath != "" {
		if err := publisher.WriteFile(cfg.Publish.OutputPath, *final); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Printf("[INFO] report written to %s", cfg.Publish.OutputPath)
	}
	if cfg.Publish.WebhookURL != "" && final.Outcome == workflow.OutcomeCompleted {
		p, err := publisher.New(cfg.Publish.WebhookURL, nil, cfg.Verbose, logger)
		if err != nil {
			return err
		}
		if err := p.Publish(context.WithoutCancel(ctx), *final); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	if final.Outcome != workflow.OutcomeCompleted {
		return fmt.Errorf("workflow %s: %s", final.Outcome, final.Err)
	}
	return nil
}

// followPlain prints one line per event and returns the final state.
func followPlain(events <-chan workflow.Event, w io.Writer) *workflow.State {
	var final *workflow.State
	for ev := range events {
		fmt.Fprintf(w, "[%3d%%] %-9s %s\n", ev.Percent, ev.Node, ev.Message)
		if ev.Final() {
			st := ev.Snapshot
			final = &st
		}
	}
	return final
}

func printResult(w io.Writer, st *workflow.State) {
	if st.Title != "" {
		fmt.Fprintf(w, "\n# %s\n", st.Title)
	}
	if st.FinalSummary != "" {
		fmt.Fprintf(w, "\n%s\n", st.FinalSummary)
	}
	fmt.Fprintf(w, "\n(outcome=%s revisions=%d approved=%t", st.Outcome, st.RevisionCount, st.Approved)
	if st.TerminatedBy != "" {
		fmt.Fprintf(w, " terminated_by=%s", st.TerminatedBy)
	}
	fmt.Fprintln(w, ")")
}
