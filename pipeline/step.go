// ABOUTME: Step interface, its function adapter, and the StepError failure type.
// ABOUTME: Steps read the current state and return an Update; the engine owns merging.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// StepID names a step within a graph. It is both the step map key and an edge endpoint.
type StepID string

// Step is one unit of work in a pipeline.
type Step interface {
	Execute(ctx context.Context, state State) (Update, error)
}

// StepFunc adapts a plain function to the Step interface.
type StepFunc func(ctx context.Context, state State) (Update, error)

// Execute calls f.
func (f StepFunc) Execute(ctx context.Context, state State) (Update, error) {
	return f(ctx, state)
}

// KeyDeclarer is implemented by steps that publish which state keys they consume and
// produce. Declared keys feed the key_flow validation rule.
type KeyDeclarer interface {
	Reads() []string
	Writes() []string
}

// Sentinel errors for errors.Is checks.
var (
	ErrMissingInput    = errors.New("missing input")
	ErrMalformedOutput = errors.New("malformed output")
	ErrUnknownStep     = errors.New("unknown step")
)

// StepErrorKind classifies a step failure.
type StepErrorKind string

const (
	KindMissingInput    StepErrorKind = "missing_input"
	KindMalformedOutput StepErrorKind = "malformed_output"
	KindUpstream        StepErrorKind = "upstream"
	KindPanic           StepErrorKind = "panic"
)

// StepError reports that a step failed. The run is aborted and no partial state is returned.
type StepError struct {
	StepID StepID
	Kind   StepErrorKind
	Err    error
}

func (e *StepError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("step %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("step %q %s: %v", e.StepID, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// MissingInput builds a StepError for an absent or mistyped state key.
func MissingInput(key string) *StepError {
	return &StepError{Kind: KindMissingInput, Err: fmt.Errorf("%w: key %q", ErrMissingInput, key)}
}

// MalformedOutput builds a StepError for collaborator output that could not be parsed.
func MalformedOutput(format string, args ...any) *StepError {
	return &StepError{Kind: KindMalformedOutput, Err: fmt.Errorf("%w: %s", ErrMalformedOutput, fmt.Sprintf(format, args...))}
}

// Upstream wraps a failure of an external collaborator.
func Upstream(err error) *StepError {
	return &StepError{Kind: KindUpstream, Err: err}
}

// asStepError attributes err to id. Errors that are already StepErrors keep their kind;
// anything else is treated as an upstream failure.
func asStepError(id StepID, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		out := *se
		if out.StepID == "" {
			out.StepID = id
		}
		return &out
	}
	return &StepError{StepID: id, Kind: KindUpstream, Err: err}
}
