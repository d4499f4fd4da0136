// ABOUTME: Renders a pipeline.GraphSpec back to DOT source with deterministic output.
// ABOUTME: Entry and terminal get the Mdiamond and Msquare shapes; edge order is preserved.
package topology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/2389-research/scout/pipeline"
)

// Serialize writes g as a digraph that Parse and Bind accept.
func Serialize(g *pipeline.GraphSpec) string {
	return SerializeWithStatus(g, nil)
}

// SerializeWithStatus is Serialize with each node filled by its execution status.
// A nil status map writes no fill attributes; steps missing from it are pending.
func SerializeWithStatus(g *pipeline.GraphSpec, status map[pipeline.StepID]StepStatus) string {
	var b strings.Builder
	name := g.Name
	if name == "" {
		name = "pipeline"
	}
	fmt.Fprintf(&b, "digraph %s {\n", quote(name))
	fmt.Fprintf(&b, "  graph [%s]\n", formatAttrs(map[string]string{
		AttrEntry:         string(g.Entry),
		AttrTerminal:      string(g.Terminal),
		AttrMaxIterations: strconv.Itoa(g.MaxIterations),
	}))
	b.WriteString("\n")

	for _, id := range g.StepIDs() {
		attrs := map[string]string{AttrShape: "box"}
		switch id {
		case g.Entry:
			attrs[AttrShape] = ShapeEntry
		case g.Terminal:
			attrs[AttrShape] = ShapeTerminal
		}
		if status != nil {
			attrs["style"] = "filled"
			attrs["fillcolor"] = status[id].Color()
		}
		fmt.Fprintf(&b, "  %s [%s]\n", quote(string(id)), formatAttrs(attrs))
	}
	if len(g.Edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range g.Edges {
		if _, routed := g.Routers[e.From]; routed {
			fmt.Fprintf(&b, "  %s -> %s [style=dashed]\n", quote(string(e.From)), quote(string(e.To)))
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s\n", quote(string(e.From)), quote(string(e.To)))
	}
	b.WriteString("}\n")
	return b.String()
}

func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sortStrings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quote(attrs[k])
	}
	return strings.Join(parts, ", ")
}

// quote returns val bare when it is a simple identifier or number, otherwise a
// double-quoted string with DOT escapes.
func quote(val string) string {
	if isBare(val) {
		return val
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range val {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isBare(val string) bool {
	if val == "" {
		return false
	}
	if _, err := strconv.Atoi(val); err == nil {
		return true
	}
	if _, ok := keywords[val]; ok {
		return false
	}
	for i, r := range val {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func sortStrings(s []string) { sort.Strings(s) }
