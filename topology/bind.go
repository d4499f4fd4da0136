// ABOUTME: Binds a parsed Topology to concrete steps from a registry, producing a pipeline.GraphSpec.
// ABOUTME: Graph attributes select entry, terminal, and the iteration budget; node shapes are a fallback.
package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389-research/scout/pipeline"
)

// Recognised attribute names.
const (
	AttrEntry         = "entry"
	AttrTerminal      = "terminal"
	AttrMaxIterations = "max_iterations"
	AttrStep          = "step"
	AttrShape         = "shape"

	ShapeEntry    = "Mdiamond"
	ShapeTerminal = "Msquare"
)

type bindOptions struct {
	maxIterations int
	routers       map[pipeline.StepID]pipeline.Router
}

// BindOption customises Bind.
type BindOption func(*bindOptions)

// WithDefaultMaxIterations sets the budget used when the graph has no max_iterations attribute.
func WithDefaultMaxIterations(n int) BindOption {
	return func(o *bindOptions) { o.maxIterations = n }
}

// WithRouters attaches routers to the bound graph. Routers keyed by a node id absent from
// the topology are ignored.
func WithRouters(r map[pipeline.StepID]pipeline.Router) BindOption {
	return func(o *bindOptions) { o.routers = r }
}

// Bind resolves each node to a registry step. A node's step attribute names the registry
// entry; without one the node id is used.
func Bind(t *Topology, registry map[string]pipeline.Step, opts ...BindOption) (*pipeline.GraphSpec, error) {
	var o bindOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &pipeline.GraphSpec{
		Name:          t.Name,
		Steps:         make(map[pipeline.StepID]pipeline.Step, len(t.Nodes)),
		MaxIterations: o.maxIterations,
	}
	for _, id := range t.Order {
		n := t.Nodes[id]
		name := n.Attrs[AttrStep]
		if name == "" {
			name = id
		}
		step, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("topology: node %q: no step registered as %q (known: %s)", id, name, knownSteps(registry))
		}
		g.Steps[pipeline.StepID(id)] = step
	}
	for _, e := range t.Edges {
		g.Edges = append(g.Edges, pipeline.Edge{From: pipeline.StepID(e.From), To: pipeline.StepID(e.To)})
	}

	var err error
	if g.Entry, err = pickNode(t, AttrEntry, ShapeEntry); err != nil {
		return nil, err
	}
	if g.Terminal, err = pickNode(t, AttrTerminal, ShapeTerminal); err != nil {
		return nil, err
	}
	if raw, ok := t.Attrs[AttrMaxIterations]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("topology: %s=%q is not an integer", AttrMaxIterations, raw)
		}
		g.MaxIterations = n
	}

	for id, r := range o.routers {
		if _, ok := g.Steps[id]; !ok {
			continue
		}
		if g.Routers == nil {
			g.Routers = map[pipeline.StepID]pipeline.Router{}
		}
		g.Routers[id] = r
	}
	return g, nil
}

// pickNode returns the node named by the graph attribute, or the single node with the shape.
func pickNode(t *Topology, attr, shape string) (pipeline.StepID, error) {
	if id := t.Attrs[attr]; id != "" {
		return pipeline.StepID(id), nil
	}
	var found []string
	for _, id := range t.Order {
		if t.Nodes[id].Attrs[AttrShape] == shape {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("topology: no %s: set graph attribute %s or give one node shape=%s", attr, attr, shape)
	case 1:
		return pipeline.StepID(found[0]), nil
	default:
		return "", fmt.Errorf("topology: ambiguous %s: nodes %s all have shape=%s", attr, strings.Join(found, ", "), shape)
	}
}

func knownSteps(registry map[string]pipeline.Step) string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sortStrings(names)
	return strings.Join(names, ", ")
}
