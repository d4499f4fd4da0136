// ABOUTME: Pre-run validation of a GraphSpec through pluggable lint rules.
// ABOUTME: Error-severity findings become a ConfigurationError before any step executes.
package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Severity represents diagnostic severity level.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String returns a human-readable name for the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Diagnostic represents a validation finding.
type Diagnostic struct {
	Rule     string
	Severity Severity
	Message  string
	StepID   StepID // optional
	Edge     *Edge  // optional
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Rule, d.Message)
}

// LintRule is one validation check over a GraphSpec. initialKeys lists the state keys the
// caller will supply.
type LintRule interface {
	Name() string
	Apply(g *GraphSpec, initialKeys []string) []Diagnostic
}

func builtinRules() []LintRule {
	return []LintRule{
		&stepsPresentRule{},
		&nilStepRule{},
		&entryExistsRule{},
		&terminalExistsRule{},
		&edgeEndpointsRule{},
		&budgetRule{},
		&routerSourceRule{},
		&terminalReachableRule{},
		&keyFlowRule{},
	}
}

// Validate runs the built-in rules plus any extra rules and returns every finding.
func Validate(g *GraphSpec, initialKeys []string, extraRules ...LintRule) []Diagnostic {
	var diags []Diagnostic
	rules := append(builtinRules(), extraRules...)
	for _, rule := range rules {
		diags = append(diags, rule.Apply(g, initialKeys)...)
	}
	return diags
}

// ValidateOrError runs validation and returns a *ConfigurationError if any ERROR-severity
// diagnostics exist.
func ValidateOrError(g *GraphSpec, initialKeys []string, extraRules ...LintRule) ([]Diagnostic, error) {
	diags := Validate(g, initialKeys, extraRules...)
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return diags, &ConfigurationError{Diagnostics: errs}
	}
	return diags, nil
}

// --- Built-in lint rules ---

type stepsPresentRule struct{}

func (r *stepsPresentRule) Name() string { return "steps_present" }

func (r *stepsPresentRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	if len(g.Steps) > 0 {
		return nil
	}
	return []Diagnostic{{Rule: r.Name(), Severity: SeverityError, Message: "graph declares no steps"}}
}

type nilStepRule struct{}

func (r *nilStepRule) Name() string { return "nil_step" }

func (r *nilStepRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	var diags []Diagnostic
	for _, id := range sortedSteps(g) {
		if g.Steps[id] == nil {
			diags = append(diags, Diagnostic{
				Rule:     r.Name(),
				Severity: SeverityError,
				Message:  fmt.Sprintf("step %q has no implementation", id),
				StepID:   id,
			})
		}
	}
	return diags
}

type entryExistsRule struct{}

func (r *entryExistsRule) Name() string { return "entry_exists" }

func (r *entryExistsRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	if g.Entry == "" {
		return []Diagnostic{{Rule: r.Name(), Severity: SeverityError, Message: "entry step is not set"}}
	}
	if _, ok := g.Steps[g.Entry]; !ok {
		return []Diagnostic{{
			Rule:     r.Name(),
			Severity: SeverityError,
			Message:  fmt.Sprintf("entry step %q is not defined", g.Entry),
			StepID:   g.Entry,
		}}
	}
	return nil
}

type terminalExistsRule struct{}

func (r *terminalExistsRule) Name() string { return "terminal_exists" }

func (r *terminalExistsRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	if g.Terminal == "" {
		return []Diagnostic{{Rule: r.Name(), Severity: SeverityError, Message: "terminal step is not set"}}
	}
	if _, ok := g.Steps[g.Terminal]; !ok {
		return []Diagnostic{{
			Rule:     r.Name(),
			Severity: SeverityError,
			Message:  fmt.Sprintf("terminal step %q is not defined", g.Terminal),
			StepID:   g.Terminal,
		}}
	}
	return nil
}

type edgeEndpointsRule struct{}

func (r *edgeEndpointsRule) Name() string { return "edge_endpoints" }

func (r *edgeEndpointsRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	var diags []Diagnostic
	for i := range g.Edges {
		e := g.Edges[i]
		if e.To == "" {
			diags = append(diags, Diagnostic{
				Rule:     r.Name(),
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge from %q has an empty target", e.From),
				Edge:     &e,
			})
			continue
		}
		for _, end := range []StepID{e.From, e.To} {
			if _, ok := g.Steps[end]; !ok {
				diags = append(diags, Diagnostic{
					Rule:     r.Name(),
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge %s -> %s references undefined step %q", e.From, e.To, end),
					StepID:   end,
					Edge:     &e,
				})
			}
		}
	}
	return diags
}

type budgetRule struct{}

func (r *budgetRule) Name() string { return "nonnegative_budget" }

func (r *budgetRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	if g.MaxIterations >= 0 {
		return nil
	}
	return []Diagnostic{{
		Rule:     r.Name(),
		Severity: SeverityError,
		Message:  fmt.Sprintf("max iterations must be >= 0, got %d", g.MaxIterations),
	}}
}

type routerSourceRule struct{}

func (r *routerSourceRule) Name() string { return "router_source" }

func (r *routerSourceRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	var diags []Diagnostic
	for _, id := range slices.Sorted(maps.Keys(g.Routers)) {
		if _, ok := g.Steps[id]; !ok {
			diags = append(diags, Diagnostic{
				Rule:     r.Name(),
				Severity: SeverityError,
				Message:  fmt.Sprintf("router attached to undefined step %q", id),
				StepID:   id,
			})
		}
		if g.Routers[id] == nil {
			diags = append(diags, Diagnostic{
				Rule:     r.Name(),
				Severity: SeverityError,
				Message:  fmt.Sprintf("router for step %q is nil", id),
				StepID:   id,
			})
		}
	}
	return diags
}

type terminalReachableRule struct{}

func (r *terminalReachableRule) Name() string { return "terminal_reachable" }

func (r *terminalReachableRule) Apply(g *GraphSpec, _ []string) []Diagnostic {
	if g.Entry == "" || g.Terminal == "" {
		return nil
	}
	if g.Transitions().Reachable(g.Entry)[g.Terminal] {
		return nil
	}
	return []Diagnostic{{
		Rule:     r.Name(),
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("terminal %q is not reachable from entry %q; the loop ends only on budget or dead end", g.Terminal, g.Entry),
		StepID:   g.Terminal,
	}}
}

// keyFlowRule checks that every key a step declares it reads is supplied by the caller or
// written by a step that can run before it. Steps that do not declare keys are skipped.
type keyFlowRule struct{}

func (r *keyFlowRule) Name() string { return "key_flow" }

func (r *keyFlowRule) Apply(g *GraphSpec, initialKeys []string) []Diagnostic {
	if _, ok := g.Steps[g.Entry]; !ok {
		return nil
	}
	table := loopTable(g)
	reachable := table.Reachable(g.Entry)

	var diags []Diagnostic
	for _, id := range sortedSteps(g) {
		decl, ok := g.Steps[id].(KeyDeclarer)
		if !ok {
			continue
		}
		preds := make(map[StepID]bool)
		switch {
		case id == g.Entry:
			// The entry's first invocation sees only the initial state.
		case id == g.Terminal:
			// The terminal runs after the loop, so anything the loop visited may precede it.
			maps.Copy(preds, reachable)
			delete(preds, g.Terminal)
		default:
			if !reachable[id] {
				continue
			}
			preds = table.Predecessors(g.Entry, id)
		}

		available := make(map[string]bool, len(initialKeys))
		for _, k := range initialKeys {
			available[k] = true
		}
		for p := range preds {
			if pd, ok := g.Steps[p].(KeyDeclarer); ok {
				for _, k := range pd.Writes() {
					available[k] = true
				}
			} else {
				// An undeclared predecessor may write anything.
				available = nil
				break
			}
		}
		if available == nil {
			continue
		}

		var missing []string
		for _, k := range decl.Reads() {
			if !available[k] {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			diags = append(diags, Diagnostic{
				Rule:     r.Name(),
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("step %q reads %s which no earlier step or initial state provides", id, strings.Join(missing, ", ")),
				StepID:   id,
			})
		}
	}
	return diags
}

// loopTable returns the transition table as the loop sees it: edges leaving the terminal
// are never followed.
func loopTable(g *GraphSpec) *TransitionTable {
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.From != g.Terminal {
			edges = append(edges, e)
		}
	}
	return NewTransitionTable(edges)
}

func sortedSteps(g *GraphSpec) []StepID {
	return slices.Sorted(maps.Keys(g.Steps))
}
