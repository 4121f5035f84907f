// Package main is the entry point for the Evaluator AI playground service.
//
// Start the server:
//
//	evaluator serve
//
// Print the default evaluation configuration:
//
//	evaluator defaults
//
// Print a grading prompt template:
//
//	evaluator prompt --kind answer --style Fast --language en
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/prompt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the command tree. Running without a subcommand serves.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "evaluator",
		Short:        "Evaluator AI - evaluate your QA chains",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(
		buildServeCmd(),
		buildDefaultsCmd(),
		buildPromptCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the playground HTTP server",
		Long: `Start the playground HTTP server.

Configuration is read from CONFIG_PATH (or configs/config.yaml) and
environment variables. Postgres, Valkey and R2 are optional; the server
falls back to in-memory implementations when they are not configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	app, err := initializeApp()
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	return app.Run(ctx)
}

func buildDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default evaluation configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), evalconfig.Defaults())
		},
	}
}

func buildPromptCmd() *cobra.Command {
	var kind, style, language string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print a grading or answering prompt template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := prompt.ParseStyle(style)
			if err != nil {
				return err
			}
			lang := evalconfig.Language(language)
			if !lang.Valid() {
				return fmt.Errorf("unsupported language %q", language)
			}
			tmpl, err := prompt.Lookup(prompt.Kind(kind), parsed, lang)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tmpl.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(prompt.KindGradeAnswer), "template kind: answer, docs, qa or generation")
	cmd.Flags().StringVar(&style, "style", string(evalconfig.GradingDescriptive), "grading style or playground grading label")
	cmd.Flags().StringVar(&language, "language", string(evalconfig.LanguageZhCN), "response language: zh-cn or en")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
