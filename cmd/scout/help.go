// ABOUTME: Help display for the scout CLI with grouped flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for API key detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes usage, grouped flags, examples, and environment status to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "scout %s: iterative web research with cited answers\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  scout [flags] <topic...>            Research a topic and print JSON")
	fmt.Fprintln(w, "  scout -tui <topic...>               Research with the terminal UI")
	fmt.Fprintln(w, "  scout -server [-port 2389]          Start the HTTP server")
	fmt.Fprintln(w, "  scout -print-graph [-graph f.dot]   Print the resolved graph as DOT")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Research Flags:")
	fmt.Fprintln(w, "  -topic <text>         Topic (alternative to positional arguments)")
	fmt.Fprintln(w, "  -max-iter <n>         Iteration budget before the final step (default: 2)")
	fmt.Fprintln(w, "  -loop                 Repeat search and reflect until the budget runs out")
	fmt.Fprintln(w, "  -adaptive             Repeat only while more documents are needed")
	fmt.Fprintln(w, "  -graph <file.dot>     Custom step topology")
	fmt.Fprintln(w, "  -search <name>        serpapi, tavily, or mock (default: serpapi)")
	fmt.Fprintln(w, "  -fail-on-search-error Abort when a search query fails")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "LLM Flags:")
	fmt.Fprintln(w, "  -provider <name>      gemini or openai (default: first key found)")
	fmt.Fprintln(w, "  -model <name>         Model name")
	fmt.Fprintln(w, "  -base-url <url>       Base URL for an OpenAI-compatible API")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Storage and Server:")
	fmt.Fprintln(w, "  -data-dir <dir>       History directory (default: $XDG_DATA_HOME/scout)")
	fmt.Fprintln(w, "  -db <file>            History database file")
	fmt.Fprintln(w, "  -no-history           Skip recording the run")
	fmt.Fprintln(w, "  -server               Start HTTP server mode")
	fmt.Fprintln(w, "  -port <port>          Server port on 127.0.0.1 (default: 2389)")
	fmt.Fprintln(w, "  -addr <host:port>     Server listen address")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -graph-format <fmt>   dot, svg, or png for -print-graph (svg/png need graphviz)")
	fmt.Fprintln(w, "  -config <file>        YAML config (default: $XDG_CONFIG_HOME/scout/config.yaml)")
	fmt.Fprintln(w, "  -verbose              Debug logging")
	fmt.Fprintln(w, "  -log-format <fmt>     text or json")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  scout how does sqlite WAL mode work")
	fmt.Fprintln(w, "  scout -adaptive -max-iter 6 -search tavily \"rust async runtimes\"")
	fmt.Fprintln(w, "  scout -tui -loop -max-iter 4 quantum error correction")
	fmt.Fprintln(w, "  scout -server -port 8080")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "SERPAPI_API_KEY", "TAVILY_API_KEY"} {
		fmt.Fprintf(w, "  %-21s %s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  One LLM key and one search key are required for research.")
}

// envStatus returns "[set]" if the named environment variable is non-empty.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
