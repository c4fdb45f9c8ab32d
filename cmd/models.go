package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"summary_review_workflow/config"
	"summary_review_workflow/generator"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the selectable models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		current := v.GetString("llm.model")
		for _, m := range config.AvailableModels {
			marker := " "
			if m.ID == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-18s %s\n", marker, m.ID, m.Label)
		}
		return nil
	},
}

var modelsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a greeting to the configured model and print the reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		llm, err := buildLLM(cfg, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		reply, err := generator.TestConnection(ctx, llm)
		if err != nil {
			return fmt.Errorf("connection test failed (%s): %w", generator.KindOf(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %s\n", cfg.LLM.Provider, cfg.LLM.Model, reply)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsTestCmd)
	rootCmd.AddCommand(modelsCmd)
}
