// ABOUTME: Lifecycle events the engine emits while a run progresses.
// ABOUTME: Consumers (store recorder, TUI bridge, verbose logger) subscribe via EngineConfig.EventHandler.
package pipeline

import "time"

// EventType names a lifecycle event.
type EventType string

const (
	EventRunStarted      EventType = "run.started"
	EventStepStarted     EventType = "step.started"
	EventStepCompleted   EventType = "step.completed"
	EventStepFailed      EventType = "step.failed"
	EventDeadEnd         EventType = "run.dead_end"
	EventBudgetExhausted EventType = "run.budget_exhausted"
	EventRunCompleted    EventType = "run.completed"
	EventRunFailed       EventType = "run.failed"
)

// Event is a single engine lifecycle notification.
type Event struct {
	Type         EventType      `json:"type"`
	RunID        string         `json:"run_id,omitempty"`
	StepID       StepID         `json:"step_id,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
	Iteration    int            `json:"iteration"`
	Data         map[string]any `json:"data,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// MultiHandler fans an event out to several handlers in order. Nil handlers are skipped.
func MultiHandler(handlers ...func(Event)) func(Event) {
	return func(evt Event) {
		for _, h := range handlers {
			if h != nil {
				h(evt)
			}
		}
	}
}
