// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps a pipeline event or run outcome for the tea.Msg interface.
package tui

import (
	"context"
	"time"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/runner"
	tea "github.com/charmbracelet/bubbletea"
)

// EngineEventMsg wraps a pipeline.Event for the Bubble Tea message loop.
type EngineEventMsg struct {
	Event pipeline.Event
}

// RunResultMsg signals that the research run has finished.
type RunResultMsg struct {
	Outcome *runner.Outcome
	Err     error
}

// RunFunc executes the research run being displayed.
type RunFunc func(ctx context.Context) (*runner.Outcome, error)

// EventBridge wraps a tea.Program's Send method for injecting engine events
// into the Bubble Tea message loop.
type EventBridge struct {
	send func(msg tea.Msg)
}

// NewEventBridge creates an EventBridge. Typically called with program.Send.
func NewEventBridge(send func(msg tea.Msg)) *EventBridge {
	return &EventBridge{send: send}
}

// HandleEvent matches pipeline.EngineConfig.EventHandler.
func (b *EventBridge) HandleEvent(evt pipeline.Event) {
	if b == nil || b.send == nil {
		return
	}
	b.send(EngineEventMsg{Event: evt})
}

// RunCmd returns a tea.Cmd that executes run and reports its outcome as a RunResultMsg.
func RunCmd(ctx context.Context, run RunFunc) tea.Cmd {
	return func() tea.Msg {
		out, err := run(ctx)
		return RunResultMsg{Outcome: out, Err: err}
	}
}

// TickMsg drives the elapsed-time display.
type TickMsg struct {
	Time time.Time
}

// TickCmd sends a TickMsg after interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return TickMsg{Time: t} })
}
