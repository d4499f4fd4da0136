// ABOUTME: Entry step that asks the LLM to break a research topic into web search queries.
// ABOUTME: Expects a JSON array of strings; anything else is a malformed-output StepError.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
)

// GenerateQueries turns KeyTopic into KeyQueries.
type GenerateQueries struct {
	LLM        Completer
	Model      string
	MinQueries int // lower bound requested in the prompt, default 3
	MaxQueries int // upper bound requested and enforced, default 5
}

func (g *GenerateQueries) Reads() []string  { return []string{KeyTopic} }
func (g *GenerateQueries) Writes() []string { return []string{KeyQueries} }

func (g *GenerateQueries) bounds() (int, int) {
	lo, hi := g.MinQueries, g.MaxQueries
	if lo <= 0 {
		lo = 3
	}
	if hi < lo {
		hi = max(lo, 5)
	}
	return lo, hi
}

// Execute implements pipeline.Step.
func (g *GenerateQueries) Execute(ctx context.Context, state pipeline.State) (pipeline.Update, error) {
	topic := strings.TrimSpace(state.GetString(KeyTopic, ""))
	if topic == "" {
		return nil, pipeline.MissingInput(KeyTopic)
	}
	lo, hi := g.bounds()

	prompt := fmt.Sprintf(
		"Break the following research question into %d-%d distinct English web search queries.\n"+
			"Return only a JSON array of strings, with no markdown and no commentary.\n\n"+
			"Question: %s\nQueries:", lo, hi, topic)

	resp, err := g.LLM.Complete(ctx, llm.Request{
		Model:       g.Model,
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		Temperature: llm.Float64Ptr(0.3),
	})
	if err != nil {
		return nil, pipeline.Upstream(err)
	}

	queries, err := parseQueries(resp.Text())
	if err != nil {
		return nil, err
	}
	if len(queries) > hi {
		queries = queries[:hi]
	}
	if len(queries) < lo {
		logging.FromContext(ctx).Warn("fewer queries than requested", "got", len(queries), "want_min", lo)
	}
	return pipeline.Update{KeyQueries: queries}, nil
}

// parseQueries decodes a JSON array of strings, trimming blanks and dropping duplicates.
func parseQueries(text string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &raw); err != nil {
		return nil, pipeline.MalformedOutput("query list is not a JSON array of strings: %v", err)
	}
	seen := make(map[string]bool, len(raw))
	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, pipeline.MalformedOutput("query list is empty")
	}
	return queries, nil
}
