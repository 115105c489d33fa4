package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli"
	"github.com/CharlieHasAHeart/CyanScript/internal/cli/config"
)

var (
	// Set at build time with -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitIssues is the exit status of a check that found problems.
const exitIssues = 2

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cyanscript [-i] <markdown file or directory> -t <template.docx>",
		Short: "Converts Markdown into Word documents built from a .docx template.",
		Long: `cyanscript renders Markdown into a Word template. The converted content
replaces the paragraph holding {{main_content}}; every other {{placeholder}}
in the body, headers and footers is filled from flags, config, front matter
and Git, even when Word has split it across several runs.

A directory input converts every Markdown file below it in parallel, with a
content cache for fast re-runs and optional Git diff filtering.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runConvert,
	}
	cmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")
	config.RegisterPersistentFlags(cmd.PersistentFlags())
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newCheckCmd(), newFixCmd())
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if len(args) == 1 {
		if flags.Changed("input") {
			return errors.New("input given both as argument and with --input")
		}
		if err := flags.Set("input", args[0]); err != nil {
			return err
		}
	}
	cfgFile, _ := flags.GetString("config")
	profile, _ := flags.GetString("profile")
	verbose, _ := flags.GetBool("verbose")

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prompter := config.TerminalPrompter()
	opts, logger, err := config.LoadAndValidate(cfgFile, profile, version, verbose, flags, prompter)
	if err != nil {
		return err
	}
	env := cli.ProcessEnv(prompter)
	env.Stdout = cmd.OutOrStdout()
	return cli.Run(ctx, opts, logger, env)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// commandLogger returns the stderr logger used by the subcommands.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrIssuesFound):
		os.Exit(exitIssues)
	default:
		os.Exit(1)
	}
}
