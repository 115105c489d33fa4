// Package hooks forwards engine progress to whichever view the CLI runs:
// the TUI, verbose logs or a progress bar.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// FileDiscoveredMsg signals that the walker selected a Markdown file.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's processing status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   converter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg carries the final report.
type RunCompleteMsg struct{ Report converter.Report }

// Mode selects where CLIHooks sends events.
type Mode int

const (
	// ModeQuiet only logs failures.
	ModeQuiet Mode = iota
	// ModeTUI sends every event to the Bubble Tea program.
	ModeTUI
	// ModeVerbose logs every event.
	ModeVerbose
	// ModeProgress advances a progress bar per finished file.
	ModeProgress
)

// TUIProgram is the part of *tea.Program the hooks use.
type TUIProgram interface {
	Send(msg interface{})
}

// ProgressBar is the part of *progressbar.ProgressBar the hooks use.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Finish() error
}

// NoOpTUIProgram drops every message.
type NoOpTUIProgram struct{}

func (n *NoOpTUIProgram) Send(msg interface{}) {}

// NoOpProgressBar ignores every update.
type NoOpProgressBar struct{}

func (n *NoOpProgressBar) Add(num int) error { return nil }

func (n *NoOpProgressBar) Describe(description string) {}

func (n *NoOpProgressBar) Finish() error { return nil }

// CLIHooks implements converter.Hooks.
type CLIHooks struct {
	logger      *slog.Logger
	mode        Mode
	tuiProgram  TUIProgram
	progressBar ProgressBar
	out         io.Writer
	mu          sync.Mutex
}

// NewCLIHooks returns hooks for mode. Nil collaborators are replaced by
// no-op ones; out receives the line break after a finished progress bar.
func NewCLIHooks(logger *slog.Logger, mode Mode, tuiProg TUIProgram, progBar ProgressBar, out io.Writer) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	if out == nil {
		out = io.Discard
	}
	return &CLIHooks{
		logger:      logger.With(slog.String("component", "hooks")),
		mode:        mode,
		tuiProgram:  tuiProg,
		progressBar: progBar,
		out:         out,
	}
}

var _ converter.Hooks = (*CLIHooks)(nil)

// OnFileDiscovered implements converter.Hooks.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	switch h.mode {
	case ModeTUI:
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
	case ModeVerbose:
		h.logger.Debug("File discovered", slog.String("path", path))
	}
	return nil
}

func isFinal(status converter.Status) bool {
	switch status {
	case converter.StatusSuccess, converter.StatusFailed, converter.StatusSkipped, converter.StatusCached:
		return true
	}
	return false
}

// OnFileStatusUpdate implements converter.Hooks. It is called concurrently.
func (h *CLIHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	switch h.mode {
	case ModeTUI:
		h.tuiProgram.Send(FileStatusUpdateMsg{Path: path, Status: status, Message: message, Duration: duration})
		return nil
	case ModeVerbose:
		h.logStatus(path, status, message, duration)
		return nil
	case ModeProgress:
		if isFinal(status) {
			h.mu.Lock()
			h.progressBar.Describe(path)
			_ = h.progressBar.Add(1)
			h.mu.Unlock()
		}
	}
	if status == converter.StatusFailed {
		h.logger.Error("File processing failed", slog.String("path", path), slog.String("error", message))
	}
	return nil
}

func (h *CLIHooks) logStatus(path string, status converter.Status, message string, duration time.Duration) {
	level := slog.LevelDebug
	msg := "File status updated"
	attrs := []any{slog.String("path", path), slog.String("status", string(status))}
	if duration > 0 {
		attrs = append(attrs, slog.Duration("duration", duration))
	}
	switch status {
	case converter.StatusSuccess, converter.StatusCached, converter.StatusSkipped:
		level = slog.LevelInfo
	case converter.StatusFailed:
		level = slog.LevelError
		msg = "File processing failed"
	}
	if message != "" {
		key := "message"
		if status == converter.StatusFailed {
			key = "error"
		}
		attrs = append(attrs, slog.String(key, message))
	}
	h.logger.Log(context.Background(), level, msg, attrs...)
}

// OnRunComplete implements converter.Hooks.
func (h *CLIHooks) OnRunComplete(report converter.Report) error {
	switch h.mode {
	case ModeTUI:
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
	case ModeProgress:
		h.mu.Lock()
		h.progressBar.Describe("done")
		_ = h.progressBar.Finish()
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.out)
	}
	return nil
}
