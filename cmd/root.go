package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"summary_review_workflow/config"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = config.New()
	logger  = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)
)

var rootCmd = &cobra.Command{
	Use:   "summary-review-workflow",
	Short: "Summarize text through a summarizer, a critic and a title writer",
	Long: `Runs a bounded revision loop over a source text: a summarizer drafts a summary,
a critic reviews it and either approves or asks for another revision, and a title
writer names the approved summary once the loop ends.

Use "summary-review-workflow run --help" to summarize from the command line and
"summary-review-workflow serve" to start the HTTP API.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (JSON or YAML); defaults to ./config.yaml when present")
	pf.BoolP("verbose", "v", false, "enable info logs")
	pf.String("provider", "", "LLM provider: deepseek, openai, anthropic, ollama, gemini, mock")
	pf.String("model", "", "model identifier (deepseek: deepseek-chat or deepseek-reasoner)")
	pf.String("base-url", "", "override the provider endpoint")
	pf.Duration("timeout", 0, "per-request timeout, e.g. 60s")

	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("llm.provider", pf.Lookup("provider"))
	_ = v.BindPFlag("llm.model", pf.Lookup("model"))
	_ = v.BindPFlag("llm.base_url", pf.Lookup("base-url"))
	_ = v.BindPFlag("llm.timeout", pf.Lookup("timeout"))
}
