// ABOUTME: Tests for DOT topology parsing, binding to a step registry, and round-trip serialization.
// ABOUTME: Uses a stub registry of no-op steps so bound graphs can be validated and run.
package topology

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/2389-research/scout/pipeline"
	"github.com/google/go-cmp/cmp"
)

const researchDOT = `
// research loop
digraph research {
  graph [entry=generate, terminal="synthesize"]
  max_iterations = 4;
  node [shape=box]

  generate [step="generate_queries"]
  search [step=web_search, label="Search the web"]
  /* the cycle */
  generate -> search -> reflect
  reflect -> search
  reflect -> synthesize [label="enough"]
}
`

func noop() pipeline.Step {
	return pipeline.StepFunc(func(context.Context, pipeline.State) (pipeline.Update, error) {
		return pipeline.Update{}, nil
	})
}

func registry() map[string]pipeline.Step {
	return map[string]pipeline.Step{
		"generate_queries": noop(),
		"web_search":       noop(),
		"reflect":          noop(),
		"synthesize":       noop(),
	}
}

func edgePairs(edges []Edge) [][2]string {
	out := make([][2]string, len(edges))
	for i, e := range edges {
		out[i] = [2]string{e.From, e.To}
	}
	return out
}

func TestParse(t *testing.T) {
	topo, err := Parse(researchDOT)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if topo.Name != "research" {
		t.Errorf("got name %q", topo.Name)
	}
	wantAttrs := map[string]string{"entry": "generate", "terminal": "synthesize", "max_iterations": "4"}
	if diff := cmp.Diff(wantAttrs, topo.Attrs); diff != "" {
		t.Errorf("graph attrs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"generate", "search", "reflect", "synthesize"}, topo.Order); diff != "" {
		t.Errorf("node order mismatch (-want +got):\n%s", diff)
	}
	wantEdges := [][2]string{
		{"generate", "search"}, {"search", "reflect"}, {"reflect", "search"}, {"reflect", "synthesize"},
	}
	if diff := cmp.Diff(wantEdges, edgePairs(topo.Edges)); diff != "" {
		t.Errorf("edge order mismatch (-want +got):\n%s", diff)
	}
	search := topo.Nodes["search"]
	if search.Attrs["label"] != "Search the web" || search.Attrs["shape"] != "box" || search.Attrs["step"] != "web_search" {
		t.Errorf("unexpected search attrs: %v", search.Attrs)
	}
	if topo.Edges[3].Attrs["label"] != "enough" {
		t.Errorf("edge attrs lost: %v", topo.Edges[3].Attrs)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"undirected graph", `graph g { a -- b }`},
		{"undirected edge", `digraph g { a -- b }`},
		{"strict", `strict digraph g { a }`},
		{"unterminated string", `digraph g { a [label="oops] }`},
		{"missing brace", `digraph g { a -> b`},
		{"dangling arrow", `digraph g { a -> ; }`},
		{"two graphs", `digraph a { x } digraph b { y }`},
		{"bad character", `digraph g { a @ b }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %T: %v", err, err)
			}
			if se.Line < 1 || se.Col < 1 {
				t.Errorf("bad position %d:%d", se.Line, se.Col)
			}
		})
	}
}

func TestBind(t *testing.T) {
	topo, err := Parse(researchDOT)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g, err := Bind(topo, registry(), WithDefaultMaxIterations(9))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if g.Entry != "generate" || g.Terminal != "synthesize" || g.MaxIterations != 4 {
		t.Errorf("got entry=%q terminal=%q max=%d", g.Entry, g.Terminal, g.MaxIterations)
	}
	if len(g.Steps) != 4 {
		t.Errorf("got %d steps, want 4", len(g.Steps))
	}

	res, err := pipeline.NewEngine(pipeline.EngineConfig{}).Run(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []pipeline.StepID{"generate", "search", "reflect", "search", "synthesize"}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestBindShapesAndDefaults(t *testing.T) {
	src := `digraph g {
		reflect [shape=Mdiamond]
		synthesize [shape=Msquare]
		reflect -> synthesize
	}`
	topo, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	route := func(pipeline.State, []pipeline.StepID) (pipeline.StepID, error) { return "synthesize", nil }
	g, err := Bind(topo, registry(),
		WithDefaultMaxIterations(3),
		WithRouters(map[pipeline.StepID]pipeline.Router{"reflect": route, "absent": route}),
	)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if g.Entry != "reflect" || g.Terminal != "synthesize" || g.MaxIterations != 3 {
		t.Errorf("got entry=%q terminal=%q max=%d", g.Entry, g.Terminal, g.MaxIterations)
	}
	if _, ok := g.Routers["reflect"]; !ok || len(g.Routers) != 1 {
		t.Errorf("unexpected routers: %v", g.Routers)
	}
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown step", `digraph g { graph [entry=a, terminal=b] a -> b }`, "no step registered"},
		{"no entry", `digraph g { graph [terminal=reflect] reflect }`, "no entry"},
		{"ambiguous terminal", `digraph g { graph [entry=reflect] reflect [shape=Msquare]; synthesize [shape=Msquare] }`, "ambiguous terminal"},
		{"bad budget", `digraph g { graph [entry=reflect, terminal=reflect, max_iterations=lots] reflect }`, "not an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err = Bind(topo, registry())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	topo, err := Parse(researchDOT)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg := map[string]pipeline.Step{"generate": noop(), "search": noop(), "reflect": noop(), "synthesize": noop()}
	for _, n := range topo.Nodes {
		delete(n.Attrs, "step")
	}
	g, err := Bind(topo, reg)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	out := Serialize(g)
	for _, want := range []string{
		"digraph research {",
		"graph [entry=generate, max_iterations=4, terminal=synthesize]",
		"generate [shape=Mdiamond]",
		"synthesize [shape=Msquare]",
		"reflect [shape=box]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse: %v\n%s", err, out)
	}
	if diff := cmp.Diff(edgePairs(topo.Edges), edgePairs(again.Edges)); diff != "" {
		t.Errorf("edges changed in round trip (-want +got):\n%s", diff)
	}
	g2, err := Bind(again, reg)
	if err != nil {
		t.Fatalf("re-bind: %v", err)
	}
	if g2.Entry != g.Entry || g2.Terminal != g.Terminal || g2.MaxIterations != g.MaxIterations {
		t.Errorf("round trip changed endpoints: %+v vs %+v", g2, g)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"web_search": "web_search",
		"42":         "42",
		"two words":  `"two words"`,
		`say "hi"`:   `"say \"hi\""`,
		"node":       `"node"`,
		"":           `""`,
	}
	for in, want := range tests {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusOverlay(t *testing.T) {
	events := []pipeline.Event{
		{Type: pipeline.EventRunStarted},
		{Type: pipeline.EventStepStarted, StepID: "generate"},
		{Type: pipeline.EventStepCompleted, StepID: "generate"},
		{Type: pipeline.EventStepStarted, StepID: "search"},
		{Type: pipeline.EventStepCompleted, StepID: "search"},
		{Type: pipeline.EventStepStarted, StepID: "search"},
		{Type: pipeline.EventStepStarted, StepID: "reflect"},
		{Type: pipeline.EventStepFailed, StepID: "reflect"},
	}
	status := StatusFromEvents(events)
	want := map[pipeline.StepID]StepStatus{
		"generate": StatusCompleted,
		"search":   StatusRunning,
		"reflect":  StatusFailed,
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	g := &pipeline.GraphSpec{
		Name:     "research",
		Steps:    map[pipeline.StepID]pipeline.Step{"generate": noop(), "search": noop(), "reflect": noop(), "synthesize": noop()},
		Edges:    []pipeline.Edge{{From: "generate", To: "search"}, {From: "search", To: "reflect"}, {From: "reflect", To: "synthesize"}},
		Entry:    "generate",
		Terminal: "synthesize",
	}
	out := SerializeWithStatus(g, status)
	for _, want := range []string{
		`generate [fillcolor="#4CAF50", shape=Mdiamond, style=filled]`,
		`search [fillcolor="#FFC107", shape=box, style=filled]`,
		`reflect [fillcolor="#F44336", shape=box, style=filled]`,
		`synthesize [fillcolor="#9E9E9E", shape=Msquare, style=filled]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := Parse(out); err != nil {
		t.Errorf("overlay output does not parse: %v", err)
	}
	if strings.Contains(Serialize(g), "fillcolor") {
		t.Error("plain Serialize should not color nodes")
	}
}
