// ABOUTME: GraphSpec, Edge, and Router types describing a pipeline's topology.
// ABOUTME: A GraphSpec is built once per run and treated as read-only while executing.
package pipeline

// Edge is a directed transition from one step to the next.
type Edge struct {
	From StepID
	To   StepID
}

// Router picks the next step among the declared targets of a step, in declaration order.
// It must return one of targets.
type Router func(state State, targets []StepID) (StepID, error)

// GraphSpec is the complete description of a run: steps, ordered edges, entry and
// terminal steps, and the iteration budget for the loop body.
type GraphSpec struct {
	Name          string
	Steps         map[StepID]Step
	Edges         []Edge
	Entry         StepID
	Terminal      StepID
	MaxIterations int

	// Routers override first-declared-edge selection for the steps they are keyed by.
	Routers map[StepID]Router
}

// Transitions builds the transition table for the graph's edges.
func (g *GraphSpec) Transitions() *TransitionTable {
	return NewTransitionTable(g.Edges)
}

// StepIDs returns the ids of every step, entry first, then in order of first edge
// appearance, then any step not mentioned by an edge sorted by name.
func (g *GraphSpec) StepIDs() []StepID {
	seen := make(map[StepID]bool, len(g.Steps))
	var out []StepID
	add := func(id StepID) {
		if id == "" || seen[id] {
			return
		}
		if _, ok := g.Steps[id]; !ok {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(g.Entry)
	for _, e := range g.Edges {
		add(e.From)
		add(e.To)
	}
	var rest []StepID
	for id := range g.Steps {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sortStepIDs(rest)
	out = append(out, rest...)
	add(g.Terminal)
	return out
}
