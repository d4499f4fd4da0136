// ABOUTME: CLI entrypoint for scout: one-shot research, terminal UI, and HTTP server modes.
// ABOUTME: Resolves config, builds the LLM client, search provider, and graph, then dispatches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/2389-research/scout/config"
	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/render"
	"github.com/2389-research/scout/research"
	"github.com/2389-research/scout/runner"
	"github.com/2389-research/scout/search"
	"github.com/2389-research/scout/store"
	"github.com/2389-research/scout/topology"
	"github.com/2389-research/scout/tui"
	"github.com/2389-research/scout/web"

	tea "github.com/charmbracelet/bubbletea"
)

var version = "dev"

// options holds the parsed command line.
type options struct {
	topic       string
	configPath  string
	provider    string
	model       string
	baseURL     string
	search      string
	graphFile   string
	dataDir     string
	dbPath      string
	addr        string
	port        int
	maxIter     int
	loop        bool
	adaptive    bool
	failSearch  bool
	noHistory   bool
	tuiMode     bool
	serverMode  bool
	printGraph  bool
	graphFormat string
	verbose     bool
	logFormat   string
	showVersion bool

	set map[string]bool // flags given explicitly
}

func main() {
	config.LoadDotEnvAuto()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("scout %s\n", version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, opts, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// parseFlags parses args. The topic is -topic or the positional arguments joined by spaces.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("scout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.topic, "topic", "", "Research topic (or pass it as positional arguments)")
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default: $XDG_CONFIG_HOME/scout/config.yaml)")
	fs.StringVar(&o.provider, "provider", "", "LLM provider: gemini or openai (default: first key found)")
	fs.StringVar(&o.model, "model", "", "LLM model name")
	fs.StringVar(&o.baseURL, "base-url", "", "Custom base URL for the OpenAI-compatible provider")
	fs.StringVar(&o.search, "search", "", "Search provider: serpapi, tavily, or mock")
	fs.StringVar(&o.graphFile, "graph", "", "DOT file describing the step topology")
	fs.StringVar(&o.dataDir, "data-dir", "", "Directory for run history (default: $XDG_DATA_HOME/scout)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite history file (overrides -data-dir)")
	fs.StringVar(&o.addr, "addr", "", "Server listen address (default: 127.0.0.1:2389)")
	fs.IntVar(&o.port, "port", 0, "Server port on 127.0.0.1 (shorthand for -addr)")
	fs.IntVar(&o.maxIter, "max-iter", 0, "Iteration budget for the non-terminal steps")
	fs.BoolVar(&o.loop, "loop", false, "Add the reflect -> web_search loop edge")
	fs.BoolVar(&o.adaptive, "adaptive", false, "Loop only while reflect asks for more documents")
	fs.BoolVar(&o.failSearch, "fail-on-search-error", false, "Abort when any search query fails")
	fs.BoolVar(&o.noHistory, "no-history", false, "Do not record the run in the history database")
	fs.BoolVar(&o.tuiMode, "tui", false, "Run with interactive terminal UI")
	fs.BoolVar(&o.serverMode, "server", false, "Start the HTTP server")
	fs.BoolVar(&o.printGraph, "print-graph", false, "Print the resolved graph and exit")
	fs.StringVar(&o.graphFormat, "graph-format", "dot", "Output format for -print-graph: dot, svg, or png")
	fs.BoolVar(&o.verbose, "verbose", false, "Debug logging")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: text or json")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() { printHelp(stderr, version) }

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	if o.topic == "" && fs.NArg() > 0 {
		o.topic = strings.Join(fs.Args(), " ")
	}
	o.topic = strings.TrimSpace(o.topic)
	return o, nil
}

// applyFlags overlays explicitly given flags onto cfg.
func applyFlags(cfg *config.Config, o options) {
	str := func(name, v string, dst *string) {
		if o.set[name] {
			*dst = v
		}
	}
	str("provider", o.provider, &cfg.Provider)
	str("model", o.model, &cfg.Model)
	str("base-url", o.baseURL, &cfg.BaseURL)
	str("search", o.search, &cfg.Search)
	str("graph", o.graphFile, &cfg.Graph)
	str("data-dir", o.dataDir, &cfg.DataDir)
	str("addr", o.addr, &cfg.Server.Addr)
	str("log-format", o.logFormat, &cfg.Log.Format)
	if o.set["port"] {
		cfg.Server.Addr = fmt.Sprintf("127.0.0.1:%d", o.port)
	}
	if o.set["max-iter"] {
		cfg.MaxIterations = o.maxIter
	}
	if o.set["loop"] {
		cfg.Loop = o.loop
	}
	if o.set["adaptive"] {
		cfg.Adaptive = o.adaptive
	}
	if o.set["fail-on-search-error"] {
		cfg.FailOnSearchError = o.failSearch
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
}

// run dispatches to the selected mode and returns the exit code.
func run(ctx context.Context, o options, stdout, stderr io.Writer) int {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	applyFlags(&cfg, o)

	logOut := stderr
	if o.tuiMode && !o.serverMode {
		logOut = io.Discard
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	ctx = logging.WithLogger(ctx, logger)

	if !o.serverMode && !o.printGraph && o.topic == "" {
		printHelp(stderr, version)
		return 2
	}

	client, llmErr := newLLMClient(cfg, logger)
	var completer research.Completer = client
	if llmErr != nil {
		if !o.printGraph {
			fmt.Fprintf(stderr, "error: %v\n", llmErr)
			fmt.Fprintln(stderr, "Set GEMINI_API_KEY or OPENAI_API_KEY.")
			return 1
		}
		completer = unavailableLLM{err: llmErr}
	} else {
		defer client.Close()
	}

	provider, err := search.New(cfg.Search, search.Keys{SerpAPI: cfg.SerpAPIKey, Tavily: cfg.TavilyKey})
	if err != nil {
		if !o.printGraph {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		provider = &search.Mock{}
	}

	graph, err := buildGraph(cfg, completer, provider)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if o.printGraph {
		out, err := render.Render(ctx, topology.Serialize(graph), o.graphFormat)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(out)
		return 0
	}

	var history *store.SqliteStore
	if !o.noHistory || o.serverMode {
		history, err = openHistory(cfg, o.dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer history.Close()
	}
	r := &runner.Runner{Graph: graph, Store: history, Logger: logger}

	switch {
	case o.serverMode:
		return runServer(ctx, cfg, r, history, logger, stderr)
	case o.tuiMode:
		return runTUI(ctx, r, o.topic, stdout, stderr)
	default:
		return runOnce(ctx, r, o.topic, stdout, stderr)
	}
}

func newLLMClient(cfg config.Config, logger *slog.Logger) (*llm.Client, error) {
	return llm.FromEnv(
		llm.EnvConfig{Provider: cfg.Provider, OpenAIBaseURL: cfg.BaseURL},
		llm.WithMiddleware(llm.LoggingMiddleware(logger), llm.RetryMiddleware(llm.DefaultRetryPolicy())),
	)
}

// buildGraph returns the standard pipeline, or the topology in cfg.Graph bound to the standard steps.
func buildGraph(cfg config.Config, completer research.Completer, provider search.Provider) (*pipeline.GraphSpec, error) {
	opts := research.Options{
		LLM:               completer,
		Search:            provider,
		Model:             cfg.Model,
		MaxIterations:     cfg.MaxIterations,
		Loop:              cfg.Loop,
		Adaptive:          cfg.Adaptive,
		FailOnSearchError: cfg.FailOnSearchError,
	}
	if cfg.Graph == "" {
		return research.NewPipeline(opts)
	}

	src, err := os.ReadFile(cfg.Graph)
	if err != nil {
		return nil, err
	}
	t, err := topology.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Graph, err)
	}
	registry, err := research.Registry(opts)
	if err != nil {
		return nil, err
	}
	g, err := topology.Bind(t, registry,
		topology.WithDefaultMaxIterations(cfg.MaxIterations),
		topology.WithRouters(research.Routers(opts)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Graph, err)
	}
	return g, nil
}

func openHistory(cfg config.Config, dbPath string) (*store.SqliteStore, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = cfg.DatabasePath(); err != nil {
			return nil, err
		}
	}
	return store.OpenSqlite(dbPath)
}

// runOnce researches topic and prints the result as JSON.
func runOnce(ctx context.Context, r *runner.Runner, topic string, stdout, stderr io.Writer) int {
	out, err := r.Research(ctx, "", topic)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := writeResult(stdout, out.Result); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// writeResult prints res as indented JSON without HTML escaping.
func writeResult(w io.Writer, res research.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}

func runTUI(ctx context.Context, r *runner.Runner, topic string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var bridge *tui.EventBridge
	model := tui.NewAppModel(ctx, r.Graph, topic, func(ctx context.Context) (*runner.Outcome, error) {
		return r.Research(ctx, "", topic, bridge.HandleEvent)
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge = tui.NewEventBridge(p.Send)

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	m, ok := final.(tui.AppModel)
	if !ok || m.Outcome() == nil {
		if ok && m.Err() != nil {
			fmt.Fprintf(stderr, "error: %v\n", m.Err())
		}
		return 1
	}
	if err := writeResult(stdout, m.Outcome().Result); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg config.Config, r *runner.Runner, history *store.SqliteStore, logger *slog.Logger, stderr io.Writer) int {
	var renderFn render.Func
	if render.GraphvizAvailable() {
		renderFn = render.NewCache(render.Render, 10*time.Minute).Render
	} else {
		logger.Info("graphviz not found, svg graph endpoints disabled")
	}
	srv, err := web.NewServer(web.ServerConfig{
		Addr:       cfg.Server.Addr,
		Researcher: r,
		Store:      history,
		Graph:      r.Graph,
		Render:     renderFn,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "listening on http://%s\n", cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// unavailableLLM stands in for a missing client when only the graph shape is needed.
type unavailableLLM struct{ err error }

func (u unavailableLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return nil, u.err
}
