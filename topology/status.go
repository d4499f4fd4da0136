// ABOUTME: Per-step execution status derived from engine events, used for colored graph overlays.
// ABOUTME: The last event seen for a step decides its status.
package topology

import "github.com/2389-research/scout/pipeline"

// StepStatus is a step's execution state in a status overlay.
type StepStatus string

const (
	StatusPending   StepStatus = ""
	StatusRunning   StepStatus = "running"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
)

// Fill colors for SerializeWithStatus.
const (
	StatusColorCompleted = "#4CAF50"
	StatusColorFailed    = "#F44336"
	StatusColorRunning   = "#FFC107"
	StatusColorPending   = "#9E9E9E"
)

// Color returns the fill color for s.
func (s StepStatus) Color() string {
	switch s {
	case StatusRunning:
		return StatusColorRunning
	case StatusCompleted:
		return StatusColorCompleted
	case StatusFailed:
		return StatusColorFailed
	default:
		return StatusColorPending
	}
}

// StatusFromEvents folds step events into a status per step.
func StatusFromEvents(events []pipeline.Event) map[pipeline.StepID]StepStatus {
	out := make(map[pipeline.StepID]StepStatus)
	for _, evt := range events {
		if evt.StepID == "" {
			continue
		}
		switch evt.Type {
		case pipeline.EventStepStarted:
			out[evt.StepID] = StatusRunning
		case pipeline.EventStepCompleted:
			out[evt.StepID] = StatusCompleted
		case pipeline.EventStepFailed:
			out[evt.StepID] = StatusFailed
		}
	}
	return out
}
