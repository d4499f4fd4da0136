// ABOUTME: Builds the standard research GraphSpec and the named step registry used by DOT topologies.
// ABOUTME: Also formats the final state into the answer/citations result printed by the CLI.
package research

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/search"
)

// DefaultMaxIterations is the research budget used when none is configured.
const DefaultMaxIterations = 2

// Options configures the standard pipeline.
type Options struct {
	LLM           Completer
	Search        search.Provider
	Model         string
	MaxIterations int // zero runs only the terminal step; negative is rejected by validation

	// Loop adds the reflect -> web_search edge ahead of reflect -> synthesize.
	Loop bool
	// Adaptive installs NeedMoreRouter on reflect so the loop only repeats while need_more holds.
	Adaptive bool

	FailOnSearchError bool
}

// Registry returns the standard steps keyed by their registry names.
func Registry(opts Options) (map[string]pipeline.Step, error) {
	if opts.LLM == nil {
		return nil, errors.New("research: an LLM client is required")
	}
	if opts.Search == nil {
		return nil, errors.New("research: a search provider is required")
	}
	return map[string]pipeline.Step{
		string(StepGenerate):   &GenerateQueries{LLM: opts.LLM, Model: opts.Model},
		string(StepSearch):     &WebSearch{Provider: opts.Search, FailOnSearchError: opts.FailOnSearchError},
		string(StepReflect):    &Reflect{},
		string(StepSynthesize): &Synthesize{LLM: opts.LLM, Model: opts.Model},
	}, nil
}

// Routers returns the routers enabled by opts, keyed by step id.
func Routers(opts Options) map[pipeline.StepID]pipeline.Router {
	if !opts.Adaptive {
		return nil
	}
	return map[pipeline.StepID]pipeline.Router{StepReflect: NeedMoreRouter(StepSearch)}
}

// NewPipeline wires generate_queries -> web_search -> reflect -> synthesize.
func NewPipeline(opts Options) (*pipeline.GraphSpec, error) {
	reg, err := Registry(opts)
	if err != nil {
		return nil, err
	}
	steps := make(map[pipeline.StepID]pipeline.Step, len(reg))
	for name, s := range reg {
		steps[pipeline.StepID(name)] = s
	}

	edges := []pipeline.Edge{
		{From: StepGenerate, To: StepSearch},
		{From: StepSearch, To: StepReflect},
	}
	if opts.Loop || opts.Adaptive {
		edges = append(edges, pipeline.Edge{From: StepReflect, To: StepSearch})
	}
	edges = append(edges, pipeline.Edge{From: StepReflect, To: StepSynthesize})

	return &pipeline.GraphSpec{
		Name:          "research",
		Steps:         steps,
		Edges:         edges,
		Entry:         StepGenerate,
		Terminal:      StepSynthesize,
		MaxIterations: opts.MaxIterations,
		Routers:       Routers(opts),
	}, nil
}

// Result is the user-facing outcome of a research run.
type Result struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Finalize extracts the answer and citations from a final state. When the answer cites
// nothing inline, the citation ids are appended as " [1, 2]".
func Finalize(state pipeline.State) (Result, error) {
	answer, ok := pipeline.Lookup[string](state, KeyAnswer)
	if !ok {
		return Result{}, fmt.Errorf("final state has no %q", KeyAnswer)
	}
	citations := Citations(state)
	if citations == nil {
		citations = []Citation{}
	}
	if len(citations) > 0 && !citesAny(answer, citations) {
		var ids []string
		for _, c := range citations {
			if c.ID != 0 {
				ids = append(ids, strconv.Itoa(c.ID))
			}
		}
		if len(ids) > 0 {
			answer = strings.TrimSpace(answer) + " [" + strings.Join(ids, ", ") + "]"
		}
	}
	return Result{Answer: answer, Citations: citations}, nil
}

func citesAny(answer string, citations []Citation) bool {
	ids := make(map[int]bool, len(citations))
	for _, c := range citations {
		ids[c.ID] = true
	}
	for _, m := range markerPattern.FindAllStringSubmatch(answer, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && ids[n] {
			return true
		}
	}
	return false
}
