// ABOUTME: Scrollable event log panel using the bubbles viewport component.
// ABOUTME: Engine events are color-coded by type and the oldest entries are evicted at capacity.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389-research/scout/pipeline"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogPanelModel is a scrollable event log.
type LogPanelModel struct {
	entries  []pipeline.Event
	max      int
	viewport viewport.Model
	width    int
	height   int
}

// NewLogPanelModel creates a log panel holding at most maxEntries events (200 when <= 0).
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return LogPanelModel{
		entries:  make([]pipeline.Event, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds an event, evicting the oldest entry if at capacity.
func (m *LogPanelModel) Append(evt pipeline.Event) {
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, evt)
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// border plus title
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// Update forwards scroll keys to the viewport.
func (m LogPanelModel) Update(msg tea.Msg) (LogPanelModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}
	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(TitleStyle.Render("EVENT LOG") + "\n" + content)
}

func (m *LogPanelModel) syncViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, evt := range m.entries {
		lines = append(lines, formatEntry(evt))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single engine event as a log line.
func formatEntry(evt pipeline.Event) string {
	ts := LogTimestampStyle.Render(evt.Timestamp.Format("15:04:05"))
	label := string(evt.Type)
	if evt.StepID != "" {
		label += " " + string(evt.StepID)
	}
	line := ts + " " + styleForEvent(evt.Type).Render(label)
	if data := formatData(evt.Data); data != "" {
		line += " " + data
	}
	return line
}

func styleForEvent(t pipeline.EventType) lipgloss.Style {
	switch t {
	case pipeline.EventStepFailed, pipeline.EventRunFailed:
		return LogErrorStyle
	case pipeline.EventStepCompleted, pipeline.EventRunCompleted:
		return LogSuccessStyle
	case pipeline.EventDeadEnd, pipeline.EventBudgetExhausted:
		return LogWarnStyle
	default:
		return LogEventStyle
	}
}

// formatData renders event data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}
