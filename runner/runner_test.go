// ABOUTME: Tests for the shared run executor against a temp SQLite history.
// ABOUTME: Uses the real research pipeline with a scripted LLM and the mock search provider.
package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/research"
	"github.com/2389-research/scout/search"
	"github.com/2389-research/scout/store"
)

type cannedLLM struct{ err error }

func (c cannedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	text := `["alpha", "beta"]`
	if req.JSONOutput {
		text = `{"answer": "Alpha and beta.", "citations": [{"id": 1, "title": "alpha - Result 1", "url": "https://example.com/alpha_1"}]}`
	}
	return &llm.Response{Message: llm.AssistantMessage(text)}, nil
}

func newRunner(t *testing.T, c research.Completer) *Runner {
	t.Helper()
	g, err := research.NewPipeline(research.Options{LLM: c, Search: &search.Mock{}, MaxIterations: 3})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s, err := store.OpenSqlite(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return &Runner{Graph: g, Store: s, Logger: logging.Discard()}
}

func TestResearchRecordsSuccess(t *testing.T) {
	r := newRunner(t, cannedLLM{})
	var seen int
	out, err := r.Research(context.Background(), "", "alpha beta", func(pipeline.Event) { seen++ })
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if out.Result.Answer != "Alpha and beta. [1]" {
		t.Errorf("got answer %q", out.Result.Answer)
	}
	if seen == 0 {
		t.Error("extra handler received no events")
	}

	run, err := r.Store.GetRun(out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.StatusCompleted || run.Termination != "reached_terminal" {
		t.Errorf("unexpected stored run: %+v", run)
	}
	events, _ := r.Store.Events(out.RunID)
	if len(events) != seen {
		t.Errorf("stored %d events, handler saw %d", len(events), seen)
	}
}

func TestResearchRecordsFailure(t *testing.T) {
	r := newRunner(t, cannedLLM{err: errors.New("quota")})
	_, err := r.Research(context.Background(), "run-x", "topic")
	var se *pipeline.StepError
	if !errors.As(err, &se) || se.StepID != research.StepGenerate {
		t.Fatalf("expected StepError from generate_queries, got %v", err)
	}
	run, gerr := r.Store.GetRun("run-x")
	if gerr != nil {
		t.Fatalf("GetRun: %v", gerr)
	}
	if run.Status != store.StatusFailed || run.Error == "" {
		t.Errorf("unexpected stored run: %+v", run)
	}
}

func TestResearchWithoutStore(t *testing.T) {
	r := newRunner(t, cannedLLM{})
	r.Store = nil
	out, err := r.Research(context.Background(), "", "alpha")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if out.RunID == "" || len(out.Run.Trace) != 4 {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestResearchAdoptsCreatedRun(t *testing.T) {
	r := newRunner(t, cannedLLM{})
	if _, err := r.Store.CreateRun("run-pre", "alpha"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := r.Research(context.Background(), "run-pre", "alpha"); err != nil {
		t.Fatalf("Research: %v", err)
	}
	runs, err := r.Store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-pre" || runs[0].Status != store.StatusCompleted {
		t.Errorf("unexpected runs %+v", runs)
	}

	if _, err := r.Research(context.Background(), "run-pre", "alpha"); err == nil {
		t.Error("expected error when reusing a finished run id")
	}
}
