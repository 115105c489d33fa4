// Package cli wires the converter library to the terminal: progress views,
// Git access, overwrite confirmation and the final report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli/config"
	"github.com/CharlieHasAHeart/CyanScript/internal/cli/git"
	"github.com/CharlieHasAHeart/CyanScript/internal/cli/hooks"
	"github.com/CharlieHasAHeart/CyanScript/internal/cli/ui"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

var (
	// ErrFilesFailed is returned when the run finished but some sources
	// could not be converted.
	ErrFilesFailed = errors.New("some files failed to convert")
	// ErrOutputExists is returned when the target document exists and
	// overwriting it was neither forced nor confirmed.
	ErrOutputExists = errors.New("output file already exists")
)

// Env is the process environment a run writes to.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Prompter asks for confirmation; nil means no one can answer.
	Prompter config.Prompter
	// StdoutTTY and StderrTTY report whether the streams are terminals.
	StdoutTTY bool
	StderrTTY bool
}

// ProcessEnv returns the Env of the running process.
func ProcessEnv(prompter config.Prompter) Env {
	return Env{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Prompter:  prompter,
		StdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
		StderrTTY: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// teaSender adapts *tea.Program to hooks.TUIProgram.
type teaSender struct{ p *tea.Program }

func (s teaSender) Send(msg interface{}) { s.p.Send(msg) }

// selectMode picks the progress view for opts in env.
func selectMode(opts converter.Options, env Env) hooks.Mode {
	switch {
	case opts.Verbose:
		return hooks.ModeVerbose
	case opts.TuiEnabled && env.StdoutTTY && env.StderrTTY:
		return hooks.ModeTUI
	case opts.OutputFormat == converter.OutputFormatText && env.StderrTTY:
		return hooks.ModeProgress
	default:
		return hooks.ModeQuiet
	}
}

// Run converts opts.InputPath, shows progress on env and prints the report
// to env.Stdout in opts.OutputFormat.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger, env Env) error {
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logger.Handler()
	}

	if err := confirmOverwrite(opts, env); err != nil {
		return err
	}

	mode := selectMode(opts, env)
	switch mode {
	case hooks.ModeTUI:
		// The TUI owns the terminal; anything worth keeping is in the report.
		opts.Logger = slog.NewTextHandler(io.Discard, nil)
	case hooks.ModeProgress:
		opts.Logger = slog.NewTextHandler(env.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	}
	runLogger := slog.New(opts.Logger).With(slog.String("component", "cli"))

	gitDiff := opts.GitDiffMode != "" && opts.GitDiffMode != converter.GitDiffModeNone
	if gitDiff || opts.GitMetadataEnabled {
		opts.GitClient = git.NewGoGitClient(opts.Logger)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		prog    *tea.Program
		tuiDone chan error
		bar     *progressbar.ProgressBar
	)
	switch mode {
	case hooks.ModeTUI:
		prog = tea.NewProgram(ui.NewModel(opts.AppVersion), tea.WithContext(runCtx), tea.WithOutput(env.Stderr))
		tuiDone = make(chan error, 1)
		go func() {
			_, err := prog.Run()
			tuiDone <- err
			// Leaving the TUI early stops the run.
			cancel()
		}()
		opts.EventHooks = hooks.NewCLIHooks(runLogger, mode, teaSender{prog}, nil, nil)
	case hooks.ModeProgress:
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(env.Stderr),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		opts.EventHooks = hooks.NewCLIHooks(runLogger, mode, nil, bar, env.Stderr)
	default:
		opts.EventHooks = hooks.NewCLIHooks(runLogger, mode, nil, nil, nil)
	}

	report, runErr := converter.GenerateDocuments(runCtx, opts)

	if prog != nil {
		if runErr != nil && report.Summary.Timestamp.IsZero() {
			// Setup failed before any report existed; nothing to show.
			prog.Quit()
		}
		if err := <-tuiDone; err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			runLogger.Warn("TUI exited with error", slog.String("error", err.Error()))
		}
	}

	if !report.Summary.Timestamp.IsZero() {
		if err := WriteReport(env.Stdout, report, opts.OutputFormat); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := report.Summary.ErrorCount; n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, n, report.Summary.TotalFilesScanned)
	}
	return nil
}

// singleTarget returns the document a single-file run will write, or ""
// when the input is a directory or the name depends on the Markdown.
func singleTarget(opts converter.Options) string {
	info, err := os.Stat(opts.InputPath)
	if err != nil || info.IsDir() {
		return ""
	}
	if strings.EqualFold(filepath.Ext(opts.OutputPath), ".docx") {
		return opts.OutputPath
	}
	if opts.OutputNameTemplate != "" || opts.SoftwareName == "" || opts.Version == "" {
		return ""
	}
	return filepath.Join(opts.OutputPath, converter.OutputFileName(opts.SoftwareName, opts.Version))
}

func confirmOverwrite(opts converter.Options, env Env) error {
	if opts.ForceOverwrite {
		return nil
	}
	target := singleTarget(opts)
	if target == "" {
		return nil
	}
	if _, err := os.Stat(target); err != nil {
		return nil
	}
	if env.Prompter == nil {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrOutputExists, target)
	}
	answer, err := env.Prompter.Prompt(fmt.Sprintf("%s already exists. Overwrite? [y/N]", target))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputExists, target, err)
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOutputExists, target)
}
