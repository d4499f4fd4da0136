// ABOUTME: Configuration and graph errors raised by the engine outside of step execution.
// ABOUTME: StepError lives in step.go alongside the Step interface it reports on.
package pipeline

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a GraphSpec that failed validation. No step has executed.
type ConfigurationError struct {
	Diagnostics []Diagnostic
}

func (e *ConfigurationError) Error() string {
	if len(e.Diagnostics) == 1 {
		return "invalid graph: " + e.Diagnostics[0].Message
	}
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.Message
	}
	return fmt.Sprintf("invalid graph (%d errors): %s", len(e.Diagnostics), strings.Join(msgs, "; "))
}

// GraphError reports a structural problem found while a run was in progress.
type GraphError struct {
	StepID StepID
	Err    error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error at %q: %v", e.StepID, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }
