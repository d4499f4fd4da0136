// ABOUTME: Single-line status bar for the bottom of the TUI showing research progress.
// ABOUTME: Displays the topic, elapsed time, loop iteration, and the active step.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel displays run status in a single line.
type StatusBarModel struct {
	topic         string
	maxIterations int
	startTime     time.Time
	iteration     int
	activeStep    string
	width         int
}

// NewStatusBarModel creates a status bar for topic with the graph's iteration budget.
func NewStatusBarModel(topic string, maxIterations int) StatusBarModel {
	return StatusBarModel{topic: topic, maxIterations: maxIterations}
}

// Start records the run start time.
func (m *StatusBarModel) Start() {
	m.startTime = time.Now()
}

// SetIteration updates the loop iteration counter.
func (m *StatusBarModel) SetIteration(n int) {
	m.iteration = n
}

// SetActiveStep sets the currently running step name.
func (m *StatusBarModel) SetActiveStep(name string) {
	m.activeStep = name
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start was called, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed renders "12s" under a minute and "2m30s" above it.
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	active := m.activeStep
	if active == "" {
		active = "idle"
	}
	content := fmt.Sprintf("Topic: %s | Elapsed: %s | Iteration %d/%d | Active: %s",
		truncate(m.topic, 40), formatElapsed(m.Elapsed()), m.iteration, m.maxIterations, active)
	if m.width <= 0 {
		return StatusBarStyle.Render(content)
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, StatusBarStyle.Width(m.width).Render(content))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
