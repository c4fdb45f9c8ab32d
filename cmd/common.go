package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"summary_review_workflow/config"
	"summary_review_workflow/generator"
	"summary_review_workflow/workflow"
)

// exampleTexts are the built-in demo inputs selectable with --example.
var exampleTexts = []string{
	"Artificial intelligence (AI) refers to computer systems that imitate human-like intelligence " +
		"through techniques such as machine learning, deep learning and natural language processing. " +
		"Rapid progress in recent years has produced innovative applications in many fields, including " +
		"self-driving cars, medical diagnosis and translation services. The development of AI is " +
		"profoundly changing how we live and work, while also raising social and ethical questions " +
		"such as its effects on privacy and employment.",
	"Space exploration is the culmination of human curiosity and technology. From uncrewed probes sent " +
		"to the planets and moons of the solar system, to crewed missions aboard the International Space " +
		"Station, to future plans for human missions to Mars, we keep deepening our understanding of space. " +
		"The scientific data gathered by these missions helps in the search for extraterrestrial life and " +
		"in understanding the origin of the universe. Space exploration drives technological innovation " +
		"and leads to new technologies that are also applied to solving problems on Earth.",
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildLLM creates the configured provider client and wraps it with instrumentation.
func buildLLM(cfg config.Config, observer generator.CallObserver) (generator.LLMClient, error) {
	llm, err := generator.NewLLM(cfg.LLM.Settings())
	if err != nil {
		return nil, err
	}
	return generator.Instrument(llm, cfg.LLM.Model, observer, logger, cfg.Verbose), nil
}

func buildEngine(cfg config.Config, llm generator.LLMClient, observer workflow.Observer, policy workflow.Policy) (*workflow.Engine, error) {
	prompts := generator.DefaultPrompts()
	if cfg.Workflow.PromptsFile != "" {
		var err error
		prompts, err = generator.LoadPromptSet(cfg.Workflow.PromptsFile)
		if err != nil {
			return nil, err
		}
	}
	return workflow.NewWithLLM(llm, prompts, cfg.Workflow.LenientFinalReview, workflow.Options{
		MaxRevisions: cfg.Workflow.MaxRevisions,
		LogPrompts:   cfg.Workflow.LogPrompts,
		Policy:       policy,
		Observer:     observer,
		Logger:       logger,
		Verbose:      cfg.Verbose,
	})
}

// readInput resolves the source text: positional argument, --example, --file, then stdin.
func readInput(cmd *cobra.Command, args []string, stdin io.Reader) (string, error) {
	example, _ := cmd.Flags().GetInt("example")
	file, _ := cmd.Flags().GetString("file")

	var text string
	switch {
	case len(args) > 0:
		text = args[0]
	case example > 0:
		if example > len(exampleTexts) {
			return "", fmt.Errorf("--example must be between 1 and %d", len(exampleTexts))
		}
		text = exampleTexts[example-1]
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		text = string(data)
	default:
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", fmt.Errorf("no input: pass text, --file, --example or pipe text on stdin")
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("input text is empty")
	}
	return text, nil
}
