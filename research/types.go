// ABOUTME: State keys and value types exchanged between the research pipeline steps.
// ABOUTME: Each key has exactly one Go type; steps read and write through the typed helpers here.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/pipeline"
)

// State keys. The caller supplies KeyTopic; every other key is produced by a step.
const (
	KeyTopic      = "topic"       // string
	KeyQueries    = "queries"     // []string
	KeyDocs       = "docs"        // []Doc
	KeyNeedMore   = "need_more"   // bool
	KeyNewQueries = "new_queries" // []string
	KeyAnswer     = "answer"      // string
	KeyCitations  = "citations"   // []Citation
)

// Step ids of the standard pipeline.
const (
	StepGenerate   pipeline.StepID = "generate_queries"
	StepSearch     pipeline.StepID = "web_search"
	StepReflect    pipeline.StepID = "reflect"
	StepSynthesize pipeline.StepID = "synthesize"
)

// Doc is a retrieved source document.
type Doc struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Citation links an answer marker [ID] to a source.
type Citation struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// UnmarshalJSON accepts the id as a number or a numeric string, since models emit both.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
		URL   string          `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Title, c.URL = raw.Title, raw.URL
	c.ID = 0
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw.ID, &n); err == nil {
		c.ID = n
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ID, &s); err != nil {
		return fmt.Errorf("citation id: %w", err)
	}
	n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(s), "[]"))
	if err != nil {
		return fmt.Errorf("citation id %q is not a number", s)
	}
	c.ID = n
	return nil
}

// Completer is the slice of the LLM client the steps need.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

func stringsFrom(state pipeline.State, key string) ([]string, bool) {
	return pipeline.Lookup[[]string](state, key)
}

func docsFrom(state pipeline.State) []Doc {
	docs, _ := pipeline.Lookup[[]Doc](state, KeyDocs)
	return docs
}

// Docs returns the documents gathered so far.
func Docs(state pipeline.State) []Doc { return docsFrom(state) }

// Citations returns the citations produced by synthesis.
func Citations(state pipeline.State) []Citation {
	c, _ := pipeline.Lookup[[]Citation](state, KeyCitations)
	return c
}
