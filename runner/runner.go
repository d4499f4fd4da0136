// ABOUTME: Executes one research run end to end: history row, engine run, finalize, outcome recording.
// ABOUTME: Shared by the CLI and the HTTP server so both record runs the same way.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/research"
	"github.com/2389-research/scout/store"
)

// Runner runs a fixed research graph against many topics.
type Runner struct {
	Graph  *pipeline.GraphSpec
	Store  *store.SqliteStore // optional run history
	Logger *slog.Logger
}

// Outcome is a finished run.
type Outcome struct {
	RunID  string
	Result research.Result
	Run    *pipeline.RunResult
}

// NewRunID returns an id suitable for Research.
func NewRunID() string { return store.NewRunID() }

// Research runs the graph for topic. When runID is empty a new one is generated.
// A history row already created for runID is adopted as long as it is still running.
// Extra handlers receive every engine event after the history recorder.
func (r *Runner) Research(ctx context.Context, runID, topic string, handlers ...func(pipeline.Event)) (*Outcome, error) {
	if r.Graph == nil {
		return nil, errors.New("runner: no graph configured")
	}
	if runID == "" {
		runID = NewRunID()
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.With("run_id", runID)

	var recorder func(pipeline.Event)
	if r.Store != nil {
		if err := r.ensureRun(runID, topic); err != nil {
			return nil, err
		}
		recorder = store.NewRecorder(r.Store, runID, logger).Handle
	}

	engine := pipeline.NewEngine(pipeline.EngineConfig{
		EventHandler: pipeline.MultiHandler(append([]func(pipeline.Event){recorder}, handlers...)...),
		Logger:       logger,
	})
	logger.Info("research started", "topic", topic)
	res, err := engine.Run(ctx, r.Graph, map[string]any{research.KeyTopic: topic}, pipeline.WithRunID(runID))
	if err == nil {
		var final research.Result
		if final, err = research.Finalize(res.State); err == nil {
			logger.Info("research finished", "termination", res.Termination, "iterations", res.Iterations,
				"docs", len(research.Docs(res.State)), "citations", len(final.Citations))
			if r.Store != nil {
				if serr := r.Store.FinishRun(runID, string(res.Termination), res.Iterations, final); serr != nil {
					logger.Warn("failed to record outcome", "error", serr)
				}
			}
			return &Outcome{RunID: runID, Result: final, Run: res}, nil
		}
	}

	logger.Error("research failed", "error", err)
	if r.Store != nil {
		if serr := r.Store.FailRun(runID, err); serr != nil {
			logger.Warn("failed to record failure", "error", serr)
		}
	}
	return nil, err
}

func (r *Runner) ensureRun(runID, topic string) error {
	run, err := r.Store.GetRun(runID)
	switch {
	case err == nil:
		if run.Status != store.StatusRunning {
			return fmt.Errorf("runner: run %s is already %s", runID, run.Status)
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		_, err = r.Store.CreateRun(runID, topic)
		return err
	default:
		return err
	}
}
