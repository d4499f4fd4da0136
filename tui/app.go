// ABOUTME: Top-level Bubble Tea AppModel composing the steps panel, event log, status bar, and answer view.
// ABOUTME: Implements tea.Model and routes engine events and the final run outcome to the sub-panels.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/runner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tickInterval = 100 * time.Millisecond

// AppModel is the top-level Bubble Tea model for a single research run.
type AppModel struct {
	steps     StepsPanelModel
	log       LogPanelModel
	statusBar StatusBarModel

	run RunFunc
	ctx context.Context

	done    bool
	err     error
	outcome *runner.Outcome
	width   int
	height  int
}

// NewAppModel creates an AppModel for g. run is started from Init.
func NewAppModel(ctx context.Context, g *pipeline.GraphSpec, topic string, run RunFunc) AppModel {
	maxIter := 0
	if g != nil {
		maxIter = g.MaxIterations
	}
	return AppModel{
		steps:     NewStepsPanelModel(g),
		log:       NewLogPanelModel(200),
		statusBar: NewStatusBarModel(topic, maxIter),
		run:       run,
		ctx:       ctx,
	}
}

// Outcome returns the finished run, or nil while running or after a failure.
func (m AppModel) Outcome() *runner.Outcome { return m.outcome }

// Err returns the run error, if any.
func (m AppModel) Err() error { return m.err }

// Init starts the run and the tick loop.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(tickInterval)}
	if m.run != nil {
		cmds = append(cmds, RunCmd(m.ctx, m.run))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case EngineEventMsg:
		return m.handleEngineEvent(msg.Event), nil
	case RunResultMsg:
		m.done = true
		m.err = msg.Err
		m.outcome = msg.Outcome
		m.statusBar.SetActiveStep("")
		return m, nil
	case TickMsg:
		m.steps.AdvanceSpinner()
		if m.done {
			return m, nil
		}
		return m, TickCmd(tickInterval)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m AppModel) handleEngineEvent(evt pipeline.Event) AppModel {
	m.log.Append(evt)
	switch evt.Type {
	case pipeline.EventRunStarted:
		m.statusBar.Start()
	case pipeline.EventStepStarted:
		m.steps.SetStatus(evt.StepID, StepRunning)
		m.statusBar.SetActiveStep(string(evt.StepID))
		m.statusBar.SetIteration(evt.Iteration)
	case pipeline.EventStepCompleted:
		m.steps.SetStatus(evt.StepID, StepCompleted)
	case pipeline.EventStepFailed:
		m.steps.SetStatus(evt.StepID, StepFailed)
	case pipeline.EventRunCompleted, pipeline.EventBudgetExhausted:
		m.statusBar.SetIteration(evt.Iteration)
	}
	return m
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	leftWidth := max(m.width*35/100, 20)
	bodyHeight := max(m.height-1, 3)

	m.steps.SetWidth(leftWidth)
	m.statusBar.SetWidth(m.width)

	left := m.steps.View()
	if m.done {
		left = lipgloss.JoinVertical(lipgloss.Left, left, m.resultView(leftWidth))
	}
	m.log.SetSize(m.width-leftWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.log.View())

	status := m.statusBar.View()
	switch {
	case m.done && m.err != nil:
		status += " " + FailedStyle.Render(fmt.Sprintf("FAILED: %v", m.err))
	case m.done:
		status += " " + CompletedStyle.Render("DONE (q to quit)")
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(status)
	return b.String()
}

func (m AppModel) resultView(width int) string {
	if m.outcome == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("ANSWER"))
	b.WriteString("\n")
	b.WriteString(m.outcome.Result.Answer)
	for _, c := range m.outcome.Result.Citations {
		fmt.Fprintf(&b, "\n[%d] %s", c.ID, c.URL)
	}
	return AnswerStyle.Width(max(width-2, 10)).Render(b.String())
}
