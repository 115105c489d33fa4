package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli/hooks"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel("1.0.0")
	_, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m
}

func send(m *Model, msgs ...tea.Msg) {
	for _, msg := range msgs {
		_, _ = m.Update(msg)
	}
}

func TestModel_Init(t *testing.T) {
	cmd := NewModel("").Init()
	require.NotNil(t, cmd)
	_, ok := cmd().(spinner.TickMsg)
	assert.True(t, ok)
}

func TestModel_Quit(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		t.Run(key.String(), func(t *testing.T) {
			m := newTestModel(t)
			_, cmd := m.Update(key)
			require.NotNil(t, cmd)
			assert.Equal(t, tea.QuitMsg{}, cmd())
			assert.Empty(t, m.View())
		})
	}

	t.Run("enter only after completion", func(t *testing.T) {
		m := newTestModel(t)
		enter := tea.KeyMsg{Type: tea.KeyEnter}
		_, _ = m.Update(enter)
		assert.False(t, m.quitting)

		send(m, hooks.RunCompleteMsg{})
		_, cmd := m.Update(enter)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	})
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel("")
	assert.Equal(t, phaseStarting, m.View())
	send(m, tea.WindowSizeMsg{Width: 100, Height: 3})
	assert.True(t, m.initialized)
	assert.Equal(t, 100, m.width)
}

func TestModel_FileLifecycle(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(hooks.FileDiscoveredMsg{Path: "a.md"})
	assert.NotNil(t, cmd, "first change schedules a list rebuild")
	_, cmd = m.Update(hooks.FileDiscoveredMsg{Path: "b.md"})
	assert.Nil(t, cmd, "rebuilds are coalesced while one is pending")
	send(m, hooks.FileDiscoveredMsg{Path: "a.md"})
	assert.Equal(t, phaseScanning, m.phaseMessage)
	assert.Equal(t, 2, m.Summary().TotalFiles)

	send(m,
		hooks.FileStatusUpdateMsg{Path: "a.md", Status: converter.StatusProcessing},
		hooks.FileStatusUpdateMsg{Path: "a.md", Status: converter.StatusSuccess, Message: "1 warning(s)", Duration: 30 * time.Millisecond},
		hooks.FileStatusUpdateMsg{Path: "b.md", Status: converter.StatusProcessing},
		hooks.FileStatusUpdateMsg{Path: "b.md", Status: converter.StatusFailed, Message: "unresolved placeholder: {{version}}"},
		hooks.FileStatusUpdateMsg{Path: "blob.md", Status: converter.StatusSkipped, Message: "binary_file: content is not text"},
	)
	assert.Equal(t, phaseConverting, m.phaseMessage)

	s := m.Summary()
	assert.Equal(t, 3, s.TotalFiles, "skipped files appear without discovery")
	assert.Equal(t, 1, s.Converted)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Empty(t, m.started)

	a := m.fileItems[m.itemMap["a.md"]]
	assert.Equal(t, 30*time.Millisecond, a.duration)
	assert.Contains(t, a.Description(), "30ms 1 warning(s)")
	assert.Contains(t, m.fileItems[m.itemMap["b.md"]].Description(), "unresolved placeholder")
	assert.True(t, strings.HasSuffix(m.fileItems[m.itemMap["blob.md"]].Description(), "binary_file"))

	send(m, hooks.FileStatusUpdateMsg{Path: "b.md", Status: converter.StatusCached})
	s = m.Summary()
	assert.Zero(t, s.Failed, "a later final status replaces the earlier count")
	assert.Equal(t, 1, s.Cached)

	send(m, UpdateListMsg{})
	assert.False(t, m.listPending)
	assert.Len(t, m.list.Items(), 3)
}

func TestModel_RunComplete(t *testing.T) {
	m := newTestModel(t)
	send(m, hooks.FileDiscoveredMsg{Path: "a.md"}, hooks.RunCompleteMsg{Report: converter.Report{
		Summary: converter.ReportSummary{ConvertedCount: 4, CachedCount: 2, SkippedCount: 1, ErrorCount: 1, WarningCount: 3, FatalErrorOccurred: true},
		Errors: []converter.ErrorInfo{
			{Path: "x.md", Error: "recoverable"},
			{Path: "y.md", Error: "template broken", IsFatal: true},
		},
	}})

	assert.True(t, m.done)
	s := m.Summary()
	assert.Equal(t, Summary{TotalFiles: 1, Converted: 4, Cached: 2, Skipped: 1, Failed: 1, Warnings: 3, StartTime: s.StartTime}, s)
	assert.Equal(t, "Fatal error: template broken (y.md)", m.fatalError)

	_, cmd := m.Update(spinner.TickMsg{})
	assert.Nil(t, cmd, "the spinner stops once the run is complete")

	view := m.View()
	assert.Contains(t, view, "CyanScript 1.0.0")
	assert.Contains(t, view, phaseComplete)
	assert.Contains(t, view, "Converted: 4 | Cached: 2 | Skipped: 1 | Failed: 1 | Warnings: 3 | Files: 1")
	assert.Contains(t, view, "Fatal error: template broken (y.md)")
	assert.Contains(t, view, "enter/q: exit")
}

func TestListItem(t *testing.T) {
	item := listItem{path: "guide/install.md", status: converter.StatusPending}
	assert.Equal(t, "guide/install.md", item.Title())
	assert.Equal(t, "guide/install.md", item.FilterValue())
	assert.Contains(t, item.Description(), "[ ]")

	item.status = converter.StatusSuccess
	assert.Contains(t, item.Description(), "[\u2713]")
	item.status = converter.StatusFailed
	item.message = "boom"
	assert.Contains(t, item.Description(), "boom")
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                       "",
		500 * time.Microsecond:  "500\u00b5s",
		42 * time.Millisecond:   "42ms",
		1500 * time.Millisecond: "1.50s",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatDuration(d), d.String())
	}
}

func TestSpread(t *testing.T) {
	assert.Equal(t, "ab    cd", spread(8, "ab", "cd"))
	assert.Equal(t, "abc xyz", spread(3, "abc", "xyz"), "at least one space")
}
