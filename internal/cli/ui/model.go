// Package ui is the Bubble Tea view of a running batch conversion.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli/hooks"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// listHeightMargin is the height taken by the header and footer.
const listHeightMargin = 4

// listUpdateDebounce bounds how often the list is rebuilt.
const listUpdateDebounce = 50 * time.Millisecond

const (
	phaseStarting   = "Loading template..."
	phaseScanning   = "Scanning..."
	phaseConverting = "Converting..."
	phaseComplete   = "Complete"
)

// Model is the TUI state. Bubble Tea calls Update and View from one
// goroutine, so it needs no locking.
type Model struct {
	title       string
	list        list.Model
	spinner     spinner.Model
	width       int
	height      int
	initialized bool

	fileItems []listItem
	itemMap   map[string]int
	started   map[string]time.Time

	summary      Summary
	phaseMessage string
	fatalError   string
	quitting     bool
	done         bool
	listPending  bool
}

// listItem is one Markdown source in the list.
type listItem struct {
	path     string
	status   converter.Status
	message  string
	duration time.Duration
}

// Summary holds the counters shown in the footer.
type Summary struct {
	TotalFiles int
	Converted  int
	Cached     int
	Skipped    int
	Failed     int
	Warnings   int
	StartTime  time.Time
}

// UpdateListMsg asks the model to rebuild the list items.
type UpdateListMsg struct{}

// NewModel returns the initial model. appVersion is shown in the header.
func NewModel(appVersion string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	title := "CyanScript"
	if appVersion != "" {
		title += " " + appVersion
	}
	return &Model{
		title:        title,
		list:         l,
		spinner:      s,
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: phaseStarting,
		itemMap:      make(map[string]int),
		started:      make(map[string]time.Time),
	}
}

// Summary returns the current counters.
func (m *Model) Summary() Summary { return m.summary }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width, max(m.height-listHeightMargin, 1))
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.done {
				m.quitting = true
				return m, tea.Quit
			}
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		if m.quitting || m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case hooks.FileDiscoveredMsg:
		if _, ok := m.itemMap[msg.Path]; !ok {
			m.addItem(listItem{path: msg.Path, status: converter.StatusPending})
			cmds = append(cmds, m.scheduleListUpdate())
		}
		if m.phaseMessage == phaseStarting {
			m.phaseMessage = phaseScanning
		}

	case hooks.FileStatusUpdateMsg:
		m.applyStatus(msg)
		cmds = append(cmds, m.scheduleListUpdate())
		if msg.Status == converter.StatusProcessing && !m.done {
			m.phaseMessage = phaseConverting
		}

	case hooks.RunCompleteMsg:
		m.done = true
		m.phaseMessage = phaseComplete
		s := msg.Report.Summary
		m.summary.Converted = s.ConvertedCount
		m.summary.Cached = s.CachedCount
		m.summary.Skipped = s.SkippedCount
		m.summary.Failed = s.ErrorCount
		m.summary.Warnings = s.WarningCount
		if s.FatalErrorOccurred {
			m.fatalError = "Run halted due to a fatal error."
			for _, e := range msg.Report.Errors {
				if e.IsFatal {
					m.fatalError = fmt.Sprintf("Fatal error: %s (%s)", e.Error, e.Path)
					break
				}
			}
		}
		cmds = append(cmds, m.rebuildList())

	case UpdateListMsg:
		m.listPending = false
		cmds = append(cmds, m.rebuildList())
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) addItem(item listItem) *listItem {
	m.fileItems = append(m.fileItems, item)
	m.itemMap[item.path] = len(m.fileItems) - 1
	m.summary.TotalFiles++
	return &m.fileItems[len(m.fileItems)-1]
}

func (m *Model) applyStatus(msg hooks.FileStatusUpdateMsg) {
	idx, ok := m.itemMap[msg.Path]
	var item *listItem
	if ok {
		item = &m.fileItems[idx]
	} else {
		// Skipped files are reported without a discovery event.
		item = m.addItem(listItem{path: msg.Path, status: converter.StatusPending})
	}

	switch {
	case msg.Status == converter.StatusProcessing:
		m.started[msg.Path] = time.Now()
		item.duration = 0
	case isFinalStatus(msg.Status):
		item.duration = msg.Duration
		if item.duration == 0 {
			if t, found := m.started[msg.Path]; found {
				item.duration = time.Since(t)
			}
		}
		delete(m.started, msg.Path)
	}

	wasFinal, isFinal := isFinalStatus(item.status), isFinalStatus(msg.Status)
	if wasFinal {
		m.count(item.status, -1)
	}
	if isFinal {
		m.count(msg.Status, 1)
	}
	item.status = msg.Status
	item.message = msg.Message
}

func (m *Model) count(status converter.Status, delta int) {
	switch status {
	case converter.StatusSuccess:
		m.summary.Converted += delta
	case converter.StatusCached:
		m.summary.Cached += delta
	case converter.StatusSkipped:
		m.summary.Skipped += delta
	case converter.StatusFailed:
		m.summary.Failed += delta
	}
}

// scheduleListUpdate coalesces list rebuilds into one per listUpdateDebounce.
func (m *Model) scheduleListUpdate() tea.Cmd {
	if m.listPending {
		return nil
	}
	m.listPending = true
	return tea.Tick(listUpdateDebounce, func(time.Time) tea.Msg { return UpdateListMsg{} })
}

func (m *Model) rebuildList() tea.Cmd {
	items := make([]list.Item, len(m.fileItems))
	for i, item := range m.fileItems {
		items[i] = item
	}
	return m.list.SetItems(items)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.initialized {
		return phaseStarting
	}

	headerRight := m.phaseMessage
	if !m.done {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width-2, m.title, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	counts := fmt.Sprintf("Converted: %d | Cached: %d | Skipped: %d | Failed: %d | Warnings: %d | Files: %d | %s",
		m.summary.Converted, m.summary.Cached, m.summary.Skipped, m.summary.Failed,
		m.summary.Warnings, m.summary.TotalFiles, elapsed)
	hint := "q: quit"
	if m.done {
		hint = "enter/q: exit"
	}
	footer := FooterStyle.Width(m.width).Render(spread(m.width-2, counts, hint))

	parts := []string{header, m.list.View()}
	if m.fatalError != "" {
		parts = append(parts, StatusStyleFailed.Render(m.fatalError))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// spread places left and right at the two ends of width columns.
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func isFinalStatus(status converter.Status) bool {
	return status == converter.StatusSuccess ||
		status == converter.StatusFailed ||
		status == converter.StatusSkipped ||
		status == converter.StatusCached
}

// FilterValue implements list.Item.
func (i listItem) FilterValue() string { return i.path }

// Title implements list.DefaultItem.
func (i listItem) Title() string { return i.path }

// Description implements list.DefaultItem.
func (i listItem) Description() string {
	var style lipgloss.Style
	var icon string
	switch i.status {
	case converter.StatusSuccess:
		style, icon = StatusStyleSuccess, "\u2713"
	case converter.StatusFailed:
		style, icon = StatusStyleFailed, "\u2717"
	case converter.StatusSkipped:
		style, icon = StatusStyleSkipped, "S"
	case converter.StatusCached:
		style, icon = StatusStyleCached, "C"
	case converter.StatusProcessing:
		style, icon = StatusStyleProcessing, "\u2026"
	default:
		style, icon = StatusStylePending, " "
	}

	var details []string
	switch i.status {
	case converter.StatusFailed:
		details = append(details, i.message)
	case converter.StatusSkipped:
		reason, _, _ := strings.Cut(i.message, ":")
		details = append(details, strings.TrimSpace(reason))
	case converter.StatusSuccess, converter.StatusCached:
		if d := formatDuration(i.duration); d != "" {
			details = append(details, d)
		}
		if i.message != "" {
			details = append(details, i.message)
		}
	}
	return strings.TrimRight(style.Render("["+icon+"]")+" "+strings.Join(details, " "), " ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%d\u00b5s", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
