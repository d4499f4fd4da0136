// ABOUTME: TransitionTable groups edges by source step while preserving declaration order.
// ABOUTME: The first target listed for a step is the one the engine follows by default.
package pipeline

import "slices"

// TransitionTable maps a step to its ordered outgoing targets.
type TransitionTable struct {
	out map[StepID][]StepID
}

// NewTransitionTable groups edges by From, keeping the order in which they were declared.
func NewTransitionTable(edges []Edge) *TransitionTable {
	t := &TransitionTable{out: make(map[StepID][]StepID)}
	for _, e := range edges {
		t.out[e.From] = append(t.out[e.From], e.To)
	}
	return t
}

// Targets returns the targets of from in declaration order. The slice must not be modified.
func (t *TransitionTable) Targets(from StepID) []StepID {
	return t.out[from]
}

// Next returns the first declared target of from, or false when from is a dead end.
func (t *TransitionTable) Next(from StepID) (StepID, bool) {
	targets := t.out[from]
	if len(targets) == 0 {
		return "", false
	}
	return targets[0], true
}

// Reachable returns every step reachable from start, including start itself.
func (t *TransitionTable) Reachable(start StepID) map[StepID]bool {
	seen := map[StepID]bool{start: true}
	queue := []StepID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range t.out[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// Predecessors returns the set of steps that can run before target on some path from start.
func (t *TransitionTable) Predecessors(start, target StepID) map[StepID]bool {
	preds := make(map[StepID]bool)
	for from := range t.Reachable(start) {
		if from == target {
			continue
		}
		if t.reachesVia(from, target) {
			preds[from] = true
		}
	}
	return preds
}

func (t *TransitionTable) reachesVia(from, target StepID) bool {
	for _, next := range t.out[from] {
		if t.Reachable(next)[target] {
			return true
		}
	}
	return false
}

func sortStepIDs(ids []StepID) {
	slices.Sort(ids)
}
