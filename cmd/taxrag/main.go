// Package main provides the taxrag binary entry point.
// taxrag answers capital gains tax questions from a precomputed rule
// knowledge base using slot extraction, embedding retrieval and an LLM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"taxrag/internal/repl"
	"taxrag/internal/tui"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "taxrag"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Capital gains tax assistant",
		Long: `taxrag answers capital gains tax questions.

Each query is parsed into slots (share percentage, company type, asset type,
holding period, transaction year, country), embedded through a persistent
cache, matched against a precomputed rule knowledge base and answered by an
LLM from the retrieved rules.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML; defaults to ./config.yaml or ~/.config/taxrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(askCmd(&g), tuiCmd(&g), buildCmd(&g), versionCmd())
	return cmd
}

func askCmd(g *globalFlags) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask questions interactively, or once with --query",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			pipeline, _, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			if query != "" {
				answer, err := pipeline.Run(ctx, query)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer.Text())
				return nil
			}
			return repl.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), pipeline, repl.WithLogger(a.logger))
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Answer a single query and exit")
	return cmd
}

func tuiCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Ask questions in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			pipeline, n, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d rules loaded from %s", n, a.cfg.Store.MetadataPath)
			m := tui.New(ctx, pipeline, summary)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}

func buildCmd(g *globalFlags) *cobra.Command {
	var kbPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed a rule knowledge base and write the vector and metadata files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			n, err := a.build(ctx, kbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d rules into %s and %s\n", n, a.cfg.Store.VectorsPath, a.cfg.Store.MetadataPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&kbPath, "kb", "data/tax_rules.json", "Knowledge base JSON file (array of rules)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
