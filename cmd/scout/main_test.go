// ABOUTME: Tests for scout CLI flag parsing, config overlay, graph building, and output.
// ABOUTME: Research runs use a canned LLM and the mock search provider, so no network is needed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/scout/config"
	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/research"
	"github.com/2389-research/scout/runner"
	"github.com/2389-research/scout/search"
	"github.com/google/go-cmp/cmp"
)

type cannedLLM struct{}

func (cannedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	text := `["wal mode", "sqlite journaling", "checkpoints"]`
	if req.JSONOutput {
		text = `{"answer": "WAL appends <changes> to a log.", "citations": [{"id": 1, "title": "t", "url": "https://example.com/wal_mode_1"}]}`
	}
	return &llm.Response{Message: llm.AssistantMessage(text)}, nil
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-loop", "-max-iter", "4", "sqlite", "wal", "mode"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.topic != "sqlite wal mode" || !o.loop || o.maxIter != 4 {
		t.Errorf("unexpected options %+v", o)
	}
	if !o.set["loop"] || !o.set["max-iter"] || o.set["adaptive"] {
		t.Errorf("unexpected set flags %v", o.set)
	}

	o, err = parseFlags([]string{"-topic", "  explicit  ", "ignored"}, io.Discard)
	if err != nil || o.topic != "explicit" {
		t.Errorf("topic = %q, err %v", o.topic, err)
	}

	if _, err := parseFlags([]string{"-no-such-flag"}, io.Discard); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestApplyFlagsOnlyOverridesGivenFlags(t *testing.T) {
	o, err := parseFlags([]string{"-model", "gpt-4.1", "-port", "9000", "-adaptive", "-verbose", "x"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Search = "tavily"
	cfg.MaxIterations = 7
	applyFlags(&cfg, o)

	want := config.Default()
	want.Search = "tavily"
	want.MaxIterations = 7
	want.Model = "gpt-4.1"
	want.Server.Addr = "127.0.0.1:9000"
	want.Adaptive = true
	want.Log.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteResultKeepsHTML(t *testing.T) {
	var buf bytes.Buffer
	res := research.Result{Answer: "a <b> & c", Citations: []research.Citation{{ID: 1, Title: "t", URL: "https://x.test/?a=1&b=2"}}}
	if err := writeResult(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"answer": "a <b> & c"`, `https://x.test/?a=1&b=2`, "\n  \"citations\": ["} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildGraphFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.dot")
	src := `digraph custom {
		graph [entry=gen, terminal=synth]
		gen [step=generate_queries]
		search [step=web_search]
		synth [step=synthesize]
		gen -> search -> synth
	}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Graph = path
	cfg.MaxIterations = 3
	g, err := buildGraph(cfg, cannedLLM{}, &search.Mock{})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	if g.Entry != "gen" || g.Terminal != "synth" || g.MaxIterations != 3 {
		t.Errorf("unexpected graph %+v", g)
	}

	cfg.Graph = filepath.Join(t.TempDir(), "missing.dot")
	if _, err := buildGraph(cfg, cannedLLM{}, &search.Mock{}); err == nil {
		t.Error("expected error for missing graph file")
	}
}

func TestRunOncePrintsJSON(t *testing.T) {
	cfg := config.Default()
	g, err := buildGraph(cfg, cannedLLM{}, &search.Mock{})
	if err != nil {
		t.Fatal(err)
	}
	r := &runner.Runner{Graph: g, Logger: logging.Discard()}

	var stdout, stderr bytes.Buffer
	if code := runOnce(context.Background(), r, "sqlite wal", &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var res research.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout.String())
	}
	want := research.Result{
		Answer:    "WAL appends <changes> to a log. [1]",
		Citations: []research.Citation{{ID: 1, Title: "t", URL: "https://example.com/wal_mode_1"}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPrintGraphWithoutKeys(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "SERPAPI_API_KEY", "SCOUT_CONFIG", "SCOUT_SEARCH"} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	o, err := parseFlags([]string{"-print-graph", "-loop", "-max-iter", "5"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), o, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"digraph research {", "max_iterations=5", "reflect -> web_search", "reflect -> synthesize"} {
		if !strings.Contains(out, want) {
			t.Errorf("graph missing %q:\n%s", want, out)
		}
	}
}

func TestRunRequiresTopic(t *testing.T) {
	t.Setenv("SCOUT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stderr bytes.Buffer
	if code := run(context.Background(), options{set: map[string]bool{}}, io.Discard, &stderr); code != 2 {
		t.Errorf("exit %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Error("help not printed")
	}
}

func TestUnavailableLLM(t *testing.T) {
	boom := &llm.ConfigurationError{Message: "no keys"}
	_, err := unavailableLLM{err: boom}.Complete(context.Background(), llm.Request{})
	if err != boom {
		t.Errorf("err = %v", err)
	}
}

func TestZeroBudgetRunsOnlySynthesis(t *testing.T) {
	o, err := parseFlags([]string{"-max-iter", "0", "sqlite wal"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := config.Default()
	applyFlags(&cfg, o)
	g, err := buildGraph(cfg, cannedLLM{}, &search.Mock{})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	if g.MaxIterations != 0 {
		t.Fatalf("graph budget = %d, want 0", g.MaxIterations)
	}

	r := &runner.Runner{Graph: g, Logger: logging.Discard()}
	out, err := r.Research(context.Background(), "", o.topic)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if diff := cmp.Diff([]pipeline.StepID{research.StepSynthesize}, out.Run.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if out.Result.Answer != research.NoDocumentsAnswer {
		t.Errorf("got answer %q", out.Result.Answer)
	}
}
