// ABOUTME: Sufficiency check deciding whether another retrieval round is worthwhile.
// ABOUTME: Pure function of state: too few docs means need_more with refined follow-up queries.
package research

import (
	"context"

	"github.com/2389-research/scout/pipeline"
)

// DefaultMinDocs is the document count at which research is considered sufficient.
const DefaultMinDocs = 6

// Reflect writes KeyNeedMore and KeyNewQueries.
type Reflect struct {
	MinDocs      int    // default DefaultMinDocs
	MaxFollowUps int    // number of refined queries, default 3
	RefineSuffix string // appended to each follow-up, default " (refined)"
}

func (r *Reflect) Reads() []string  { return []string{KeyDocs, KeyQueries} }
func (r *Reflect) Writes() []string { return []string{KeyNeedMore, KeyNewQueries} }

// Execute implements pipeline.Step.
func (r *Reflect) Execute(_ context.Context, state pipeline.State) (pipeline.Update, error) {
	queries, ok := stringsFrom(state, KeyQueries)
	if !ok {
		return nil, pipeline.MissingInput(KeyQueries)
	}
	minDocs := r.MinDocs
	if minDocs <= 0 {
		minDocs = DefaultMinDocs
	}
	docs := docsFrom(state)
	if len(docs) >= minDocs {
		return pipeline.Update{KeyNeedMore: false, KeyNewQueries: []string{}}, nil
	}

	n := r.MaxFollowUps
	if n <= 0 {
		n = 3
	}
	suffix := r.RefineSuffix
	if suffix == "" {
		suffix = " (refined)"
	}
	followUps := make([]string, 0, min(n, len(queries)))
	for _, q := range queries[:min(n, len(queries))] {
		followUps = append(followUps, q+suffix)
	}
	return pipeline.Update{KeyNeedMore: true, KeyNewQueries: followUps}, nil
}

// NeedMoreRouter follows the edge into the retrieval step while need_more is set and
// otherwise takes the first target that is not retrieval.
func NeedMoreRouter(retrieval pipeline.StepID) pipeline.Router {
	return func(state pipeline.State, targets []pipeline.StepID) (pipeline.StepID, error) {
		want := state.GetBool(KeyNeedMore)
		for _, t := range targets {
			if (t == retrieval) == want {
				return t, nil
			}
		}
		return targets[0], nil
	}
}
