// ABOUTME: Retrieval step that fans out one search per query with a bounded worker pool.
// ABOUTME: Results are merged in query order and deduplicated by URL with earlier documents kept.
package research

import (
	"context"
	"fmt"

	"github.com/2389-research/scout/logging"
	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/search"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent searches per step invocation.
const DefaultWorkers = 5

// WebSearch searches every pending query and accumulates KeyDocs.
//
// Pending queries are KeyNewQueries when a reflection round produced any, otherwise
// KeyQueries. Documents from earlier rounds stay ahead of new ones.
type WebSearch struct {
	Provider search.Provider
	Workers  int

	// FailOnSearchError turns a per-query failure into a StepError instead of skipping it.
	FailOnSearchError bool
}

func (w *WebSearch) Reads() []string  { return []string{KeyQueries} }
func (w *WebSearch) Writes() []string { return []string{KeyDocs} }

// Execute implements pipeline.Step.
func (w *WebSearch) Execute(ctx context.Context, state pipeline.State) (pipeline.Update, error) {
	queries, ok := stringsFrom(state, KeyNewQueries)
	if !ok || len(queries) == 0 {
		queries, ok = stringsFrom(state, KeyQueries)
		if !ok {
			return nil, pipeline.MissingInput(KeyQueries)
		}
	}

	results, err := w.searchAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	sets := make([][]Doc, 0, len(results)+1)
	sets = append(sets, docsFrom(state))
	sets = append(sets, results...)
	docs := MergeUnique(docURL, sets...)
	if docs == nil {
		docs = []Doc{}
	}
	logging.FromContext(ctx).Debug("search round finished", "queries", len(queries), "docs", len(docs))
	return pipeline.Update{KeyDocs: docs}, nil
}

// searchAll runs the queries concurrently and returns their results indexed by query order.
func (w *WebSearch) searchAll(ctx context.Context, queries []string) ([][]Doc, error) {
	workers := w.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := logging.FromContext(ctx)

	results := make([][]Doc, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		g.Go(func() error {
			hits, err := w.Provider.Search(gctx, q)
			if err != nil {
				if w.FailOnSearchError || ctx.Err() != nil {
					return fmt.Errorf("search %q: %w", q, err)
				}
				logger.Warn("search failed, skipping query", "provider", w.Provider.Name(), "query", q, "error", err)
				return nil
			}
			docs := make([]Doc, 0, len(hits))
			for _, h := range hits {
				docs = append(docs, Doc{Title: h.Title, URL: h.URL, Snippet: h.Snippet})
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pipeline.Upstream(err)
	}
	return results, nil
}
