// ABOUTME: Graph executor that walks a GraphSpec from entry to terminal under an iteration budget.
// ABOUTME: Follows the first declared edge, merges step updates shallowly, and always runs the terminal once.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"time"

	"github.com/2389-research/scout/logging"
	"github.com/google/uuid"
)

// Termination describes why the loop body stopped before the terminal step ran.
type Termination string

const (
	TerminationReachedTerminal Termination = "reached_terminal"
	TerminationBudgetExhausted Termination = "budget_exhausted"
	TerminationDeadEnd         Termination = "dead_end"
)

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	EventHandler func(Event)  // optional lifecycle callback
	Logger       *slog.Logger // defaults to the logger carried by the run context
	ExtraRules   []LintRule   // additional validation rules run before execution
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID       string
	State       State
	Trace       []StepID // every step invocation in order, terminal last
	Iterations  int
	Termination Termination
}

// BudgetExhausted reports whether the iteration budget ended the loop.
func (r *RunResult) BudgetExhausted() bool {
	return r.Termination == TerminationBudgetExhausted
}

// Engine executes GraphSpecs. It is safe to share between goroutines; each Run owns its state.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an engine with the given configuration.
func NewEngine(config EngineConfig) *Engine {
	return &Engine{config: config}
}

// RunOption customises a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runID string
}

// WithRunID tags the run's events and logs with id instead of a generated one.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Run validates g and executes it against a copy of initial.
//
// Any error aborts the run and no partial state is returned: a *ConfigurationError before
// execution, a *GraphError for a missing step or a bad routing choice, and a *StepError for
// a failed step. Running out of budget is a normal outcome reported in RunResult.Termination.
func (e *Engine) Run(ctx context.Context, g *GraphSpec, initial map[string]any, opts ...RunOption) (*RunResult, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	logger := e.config.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.With("run_id", o.runID)
	ctx = logging.WithLogger(ctx, logger)

	if g == nil {
		return nil, &ConfigurationError{Diagnostics: []Diagnostic{{Rule: "graph_present", Severity: SeverityError, Message: "graph is nil"}}}
	}
	initialKeys := slices.Sorted(maps.Keys(initial))
	diags, err := ValidateOrError(g, initialKeys, e.config.ExtraRules...)
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			logger.Warn("graph validation", "rule", d.Rule, "message", d.Message)
		}
	}
	if err != nil {
		return nil, err
	}

	r := &run{engine: e, runID: o.runID, logger: logger}
	r.emit(Event{Type: EventRunStarted, StepID: g.Entry, Data: map[string]any{
		"graph":          g.Name,
		"entry":          string(g.Entry),
		"terminal":       string(g.Terminal),
		"max_iterations": g.MaxIterations,
	}})

	result, err := r.execute(ctx, g, NewState(initial))
	if err != nil {
		r.emit(Event{Type: EventRunFailed, Data: map[string]any{"error": err.Error()}})
		return nil, err
	}
	r.emit(Event{Type: EventRunCompleted, Iteration: result.Iterations, Data: map[string]any{
		"termination": string(result.Termination),
		"steps":       len(result.Trace),
	}})
	return result, nil
}

// run carries per-execution bookkeeping.
type run struct {
	engine *Engine
	runID  string
	logger *slog.Logger
}

func (r *run) execute(ctx context.Context, g *GraphSpec, state State) (*RunResult, error) {
	table := g.Transitions()
	current := g.Entry
	iterations := 0
	deadEnd := false
	var trace []StepID

	for current != g.Terminal && iterations < g.MaxIterations {
		step, ok := g.Steps[current]
		if !ok || step == nil {
			return nil, &GraphError{StepID: current, Err: ErrUnknownStep}
		}

		update, err := r.invoke(ctx, current, step, state, iterations)
		if err != nil {
			return nil, err
		}
		state = state.Merge(update)
		trace = append(trace, current)

		next, ok, err := r.selectNext(g, table, current, state)
		if err != nil {
			return nil, err
		}
		if !ok {
			deadEnd = true
			r.logger.Info("dead end", "step", string(current), "iteration", iterations)
			r.emit(Event{Type: EventDeadEnd, StepID: current, Iteration: iterations})
			break
		}
		current = next
		iterations++
	}

	termination := TerminationReachedTerminal
	switch {
	case deadEnd:
		termination = TerminationDeadEnd
	case current != g.Terminal:
		termination = TerminationBudgetExhausted
		r.logger.Info("iteration budget exhausted", "max_iterations", g.MaxIterations, "pending_step", string(current))
		r.emit(Event{Type: EventBudgetExhausted, StepID: current, Iteration: iterations, Data: map[string]any{
			"max_iterations": g.MaxIterations,
		}})
	}

	terminal, ok := g.Steps[g.Terminal]
	if !ok || terminal == nil {
		return nil, &GraphError{StepID: g.Terminal, Err: ErrUnknownStep}
	}
	update, err := r.invoke(ctx, g.Terminal, terminal, state, iterations)
	if err != nil {
		return nil, err
	}
	state = state.Merge(update)
	trace = append(trace, g.Terminal)

	return &RunResult{
		RunID:       r.runID,
		State:       state,
		Trace:       trace,
		Iterations:  iterations,
		Termination: termination,
	}, nil
}

// selectNext returns the step to run after current. Without a router the first declared
// edge wins; a router may pick any declared target.
func (r *run) selectNext(g *GraphSpec, table *TransitionTable, current StepID, state State) (StepID, bool, error) {
	targets := table.Targets(current)
	if len(targets) == 0 {
		return "", false, nil
	}
	router := g.Routers[current]
	if router == nil {
		return targets[0], true, nil
	}
	chosen, err := router(state, slices.Clone(targets))
	if err != nil {
		return "", false, &GraphError{StepID: current, Err: fmt.Errorf("router: %w", err)}
	}
	if !slices.Contains(targets, chosen) {
		return "", false, &GraphError{StepID: current, Err: fmt.Errorf("router chose %q which is not a declared target", chosen)}
	}
	return chosen, true, nil
}

func (r *run) invoke(ctx context.Context, id StepID, step Step, state State, iteration int) (Update, error) {
	invocationID := uuid.NewString()
	r.logger.Debug("step started", "step", string(id), "iteration", iteration, "invocation_id", invocationID)
	r.emit(Event{Type: EventStepStarted, StepID: id, InvocationID: invocationID, Iteration: iteration})

	start := time.Now()
	update, err := safeExecute(ctx, id, step, state)
	elapsed := time.Since(start)
	if err != nil {
		se := asStepError(id, err)
		r.logger.Debug("step failed", "step", string(id), "kind", string(se.Kind), "error", se.Err)
		r.emit(Event{Type: EventStepFailed, StepID: id, InvocationID: invocationID, Iteration: iteration, Data: map[string]any{
			"kind":  string(se.Kind),
			"error": se.Err.Error(),
		}})
		return nil, se
	}

	keys := slices.Sorted(maps.Keys(update))
	r.logger.Debug("step completed", "step", string(id), "keys", keys, "elapsed", elapsed)
	r.emit(Event{Type: EventStepCompleted, StepID: id, InvocationID: invocationID, Iteration: iteration, Data: map[string]any{
		"keys":        keys,
		"duration_ms": elapsed.Milliseconds(),
	}})
	return update, nil
}

func (r *run) emit(evt Event) {
	if r.engine.config.EventHandler == nil {
		return
	}
	evt.RunID = r.runID
	evt.Timestamp = time.Now()
	r.engine.config.EventHandler(evt)
}

// safeExecute runs step.Execute, converting a panic into a StepError carrying the stack.
func safeExecute(ctx context.Context, id StepID, step Step, state State) (update Update, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			update = nil
			err = &StepError{StepID: id, Kind: KindPanic, Err: fmt.Errorf("%v\n%s", rec, debug.Stack())}
		}
	}()
	return step.Execute(ctx, state)
}
