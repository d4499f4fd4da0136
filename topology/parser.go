// ABOUTME: Recursive descent parser turning DOT source into a Topology of nodes and ordered edges.
// ABOUTME: Supports graph/node/edge attribute statements, top-level key=value, and chained edges.
package topology

import "fmt"

// Topology is a parsed pipeline description. Edge order is declaration order.
type Topology struct {
	Name  string
	Attrs map[string]string
	Nodes map[string]*Node
	Order []string // node ids in first-mention order
	Edges []Edge
}

// Node is a graph vertex with its attributes.
type Node struct {
	ID    string
	Attrs map[string]string
}

// Edge is a directed transition with its attributes.
type Edge struct {
	From, To string
	Attrs    map[string]string
}

type parser struct {
	toks         []token
	pos          int
	topo         *Topology
	nodeDefaults map[string]string
	edgeDefaults map[string]string
}

// Parse reads a single DOT digraph.
func Parse(src string) (*Topology, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks: toks,
		topo: &Topology{
			Attrs: map[string]string{},
			Nodes: map[string]*Node{},
		},
		nodeDefaults: map[string]string{},
		edgeDefaults: map[string]string{},
	}
	if err := p.graph(); err != nil {
		return nil, err
	}
	return p.topo, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peek() token {
	if p.pos+1 >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+1]
}

func (p *parser) take() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.cur()
	if t.kind != kind {
		return t, p.errorf(t, "expected %v, got %v %q", kind, t.kind, t.text)
	}
	return p.take(), nil
}

func (p *parser) optionalSemicolon() {
	if p.cur().kind == tokSemicolon {
		p.take()
	}
}

func (p *parser) graph() error {
	if t := p.cur(); t.kind == tokIdent && t.text == "strict" {
		return p.errorf(t, "strict graphs are not supported")
	}
	if t := p.cur(); t.kind == tokGraph {
		return p.errorf(t, "undirected graphs are not supported; use digraph")
	}
	if _, err := p.expect(tokDigraph); err != nil {
		return err
	}
	if t := p.cur(); t.kind == tokIdent || t.kind == tokString {
		p.topo.Name = p.take().text
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	for p.cur().kind != tokRBrace {
		if p.cur().kind == tokEOF {
			return p.errorf(p.cur(), "missing closing '}'")
		}
		if err := p.statement(); err != nil {
			return err
		}
	}
	p.take()
	if t := p.cur(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %v after graph body; only one digraph per source", t.kind)
	}
	return nil
}

func (p *parser) statement() error {
	t := p.cur()
	switch t.kind {
	case tokSemicolon:
		p.take()
		return nil
	case tokGraph, tokNode, tokEdge:
		p.take()
		attrs, err := p.attrList()
		if err != nil {
			return err
		}
		target := map[tokenKind]map[string]string{
			tokGraph: p.topo.Attrs,
			tokNode:  p.nodeDefaults,
			tokEdge:  p.edgeDefaults,
		}[t.kind]
		for k, v := range attrs {
			target[k] = v
		}
		p.optionalSemicolon()
		return nil
	case tokIdent, tokString:
		if p.peek().kind == tokEquals {
			key := p.take().text
			p.take()
			val, err := p.value()
			if err != nil {
				return err
			}
			p.topo.Attrs[key] = val
			p.optionalSemicolon()
			return nil
		}
		return p.nodeOrEdges()
	default:
		return p.errorf(t, "unexpected %v %q", t.kind, t.text)
	}
}

func (p *parser) nodeOrEdges() error {
	chain := []string{p.take().text}
	for p.cur().kind == tokArrow {
		p.take()
		t := p.cur()
		if t.kind != tokIdent && t.kind != tokString {
			return p.errorf(t, "expected node id after '->'")
		}
		chain = append(chain, p.take().text)
	}

	attrs, err := p.attrList()
	if err != nil {
		return err
	}
	p.optionalSemicolon()

	if len(chain) == 1 {
		p.node(chain[0], attrs)
		return nil
	}
	for _, id := range chain {
		p.node(id, nil)
	}
	for i := 0; i+1 < len(chain); i++ {
		ea := make(map[string]string, len(p.edgeDefaults)+len(attrs))
		for k, v := range p.edgeDefaults {
			ea[k] = v
		}
		for k, v := range attrs {
			ea[k] = v
		}
		p.topo.Edges = append(p.topo.Edges, Edge{From: chain[i], To: chain[i+1], Attrs: ea})
	}
	return nil
}

func (p *parser) node(id string, attrs map[string]string) {
	n, ok := p.topo.Nodes[id]
	if !ok {
		n = &Node{ID: id, Attrs: map[string]string{}}
		for k, v := range p.nodeDefaults {
			n.Attrs[k] = v
		}
		p.topo.Nodes[id] = n
		p.topo.Order = append(p.topo.Order, id)
	}
	for k, v := range attrs {
		n.Attrs[k] = v
	}
}

// attrList parses zero or more '[' k=v (',' | ';')... ']' blocks.
func (p *parser) attrList() (map[string]string, error) {
	attrs := map[string]string{}
	for p.cur().kind == tokLBracket {
		p.take()
		for p.cur().kind != tokRBracket {
			kt := p.cur()
			if kt.kind != tokIdent && kt.kind != tokString {
				return nil, p.errorf(kt, "expected attribute name, got %v", kt.kind)
			}
			p.take()
			if _, err := p.expect(tokEquals); err != nil {
				return nil, err
			}
			val, err := p.value()
			if err != nil {
				return nil, err
			}
			attrs[kt.text] = val
			if k := p.cur().kind; k == tokComma || k == tokSemicolon {
				p.take()
			}
		}
		p.take()
	}
	return attrs, nil
}

func (p *parser) value() (string, error) {
	t := p.cur()
	switch t.kind {
	case tokIdent, tokString, tokNumber:
		p.take()
		return t.text, nil
	default:
		return "", p.errorf(t, "expected attribute value, got %v", t.kind)
	}
}
