// ABOUTME: Recorder adapts the engine's event stream into rows of the events table.
// ABOUTME: Write failures are logged and never interrupt the run being recorded.
package store

import (
	"encoding/json"
	"log/slog"

	"github.com/2389-research/scout/pipeline"
)

// Recorder persists pipeline events for one run.
type Recorder struct {
	store  *SqliteStore
	runID  string
	logger *slog.Logger
}

// NewRecorder returns a recorder writing under runID. The run row must already exist.
func NewRecorder(s *SqliteStore, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, runID: runID, logger: logger}
}

// Handle stores evt. It is meant for pipeline.EngineConfig.EventHandler.
func (r *Recorder) Handle(evt pipeline.Event) {
	row := EventRow{
		RunID:        r.runID,
		Type:         string(evt.Type),
		StepID:       string(evt.StepID),
		InvocationID: evt.InvocationID,
		Iteration:    evt.Iteration,
		Timestamp:    evt.Timestamp,
	}
	if len(evt.Data) > 0 {
		raw, err := json.Marshal(evt.Data)
		if err != nil {
			r.logger.Warn("event data not encodable", "type", evt.Type, "error", err)
		} else {
			row.Data = raw
		}
	}
	if _, err := r.store.AppendEvent(row); err != nil {
		r.logger.Warn("failed to record event", "run_id", r.runID, "type", evt.Type, "error", err)
	}
}
