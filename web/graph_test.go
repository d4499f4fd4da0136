// ABOUTME: Tests for the graph DOT and SVG endpoints, including the per-run status overlay.
// ABOUTME: SVG rendering uses a fake render function so graphviz is not required.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/render"
	"github.com/2389-research/scout/store"
)

func TestRunGraphOverlay(t *testing.T) {
	srv, fr := newTestServer(t)
	if _, err := fr.store.CreateRun("r1", "topic"); err != nil {
		t.Fatal(err)
	}
	for _, row := range []store.EventRow{
		{RunID: "r1", Type: string(pipeline.EventStepStarted), StepID: "a"},
		{RunID: "r1", Type: string(pipeline.EventStepCompleted), StepID: "a"},
		{RunID: "r1", Type: string(pipeline.EventStepStarted), StepID: "b"},
		{RunID: "r1", Type: string(pipeline.EventStepFailed), StepID: "b"},
	} {
		if _, err := fr.store.AppendEvent(row); err != nil {
			t.Fatal(err)
		}
	}

	rec := do(t, srv, http.MethodGet, "/api/runs/r1/graph.dot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run graph: %d %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{`a [fillcolor="#4CAF50"`, `b [fillcolor="#F44336"`} {
		if !strings.Contains(body, want) {
			t.Errorf("graph missing %q:\n%s", want, body)
		}
	}

	if rec := do(t, srv, http.MethodGet, "/api/runs/missing/graph.dot", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing run: %d", rec.Code)
	}
}

func TestGraphSVG(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/api/graph.svg", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("without renderer: %d", rec.Code)
	}

	srv.cfg.Render = func(_ context.Context, dot, format string) ([]byte, error) {
		return []byte(fmt.Sprintf("<svg>%s %d</svg>", format, len(dot))), nil
	}
	rec := do(t, srv, http.MethodGet, "/api/graph.svg", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "<svg>svg ") {
		t.Errorf("unexpected body %q", rec.Body)
	}

	srv.cfg.Render = func(context.Context, string, string) ([]byte, error) {
		return nil, fmt.Errorf("render svg: %w", render.ErrGraphvizMissing)
	}
	if rec := do(t, srv, http.MethodGet, "/api/graph.svg", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("graphviz missing: %d", rec.Code)
	}
}
