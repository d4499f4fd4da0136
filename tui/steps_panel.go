// ABOUTME: Panel listing the graph's steps in execution order with status, visit count, and a spinner.
// ABOUTME: The spinner is a bubbles spinner shown next to the running step.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/scout/pipeline"
	"github.com/charmbracelet/bubbles/spinner"
)

// StepStatus is the display state of a step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepCompleted
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Icon returns a bracket-style status marker.
func (s StepStatus) Icon() string {
	switch s {
	case StepRunning:
		return "[~]"
	case StepCompleted:
		return "[*]"
	case StepFailed:
		return "[!]"
	default:
		return "[ ]"
	}
}

type stepRow struct {
	id       pipeline.StepID
	status   StepStatus
	visits   int
	terminal bool
}

// StepsPanelModel renders the step list.
type StepsPanelModel struct {
	rows    []stepRow
	index   map[pipeline.StepID]int
	spinner spinner.Model
	width   int
}

// NewStepsPanelModel lists g's steps in graph order.
func NewStepsPanelModel(g *pipeline.GraphSpec) StepsPanelModel {
	m := StepsPanelModel{
		index:   map[pipeline.StepID]int{},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(RunningStyle)),
	}
	if g == nil {
		return m
	}
	for _, id := range g.StepIDs() {
		m.index[id] = len(m.rows)
		m.rows = append(m.rows, stepRow{id: id, terminal: id == g.Terminal})
	}
	return m
}

// SetStatus updates a step; unknown steps are appended.
func (m *StepsPanelModel) SetStatus(id pipeline.StepID, status StepStatus) {
	i, ok := m.index[id]
	if !ok {
		i = len(m.rows)
		m.index[id] = i
		m.rows = append(m.rows, stepRow{id: id})
	}
	if status == StepRunning {
		m.rows[i].visits++
	}
	m.rows[i].status = status
}

// Status returns the current status of id.
func (m StepsPanelModel) Status(id pipeline.StepID) StepStatus {
	if i, ok := m.index[id]; ok {
		return m.rows[i].status
	}
	return StepPending
}

// Visits returns how many times id has started.
func (m StepsPanelModel) Visits(id pipeline.StepID) int {
	if i, ok := m.index[id]; ok {
		return m.rows[i].visits
	}
	return 0
}

// SetWidth sets the render width.
func (m *StepsPanelModel) SetWidth(w int) { m.width = w }

// View renders one line per step.
func (m StepsPanelModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("STEPS"))
	for _, r := range m.rows {
		marker := r.status.Icon()
		if r.status == StepRunning {
			marker = "[" + m.spinner.View() + "]"
		}
		name := string(r.id)
		if r.terminal {
			name += " (final)"
		}
		line := fmt.Sprintf("%s %s", marker, name)
		if r.visits > 1 {
			line += fmt.Sprintf(" x%d", r.visits)
		}
		b.WriteString("\n")
		b.WriteString(StyleForStatus(r.status).Render(line))
	}
	w := m.width - 2
	if w < 10 {
		w = 10
	}
	return BorderStyle.Width(w).Render(b.String())
}

// AdvanceSpinner steps the running-step spinner forward one frame.
func (m *StepsPanelModel) AdvanceSpinner() {
	m.spinner, _ = m.spinner.Update(spinner.TickMsg{})
}
