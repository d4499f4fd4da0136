// ABOUTME: Tokenizer for the DOT subset used to describe research pipeline topologies.
// ABOUTME: Handles identifiers, quoted strings, numbers, comments, arrows, and DOT punctuation.
package topology

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind is the lexical category of a token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokDigraph
	tokGraph
	tokNode
	tokEdge
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokArrow
	tokEquals
	tokComma
	tokSemicolon
	tokIdent
	tokString
	tokNumber
)

var kindNames = map[tokenKind]string{
	tokEOF:       "end of input",
	tokDigraph:   "'digraph'",
	tokGraph:     "'graph'",
	tokNode:      "'node'",
	tokEdge:      "'edge'",
	tokLBrace:    "'{'",
	tokRBrace:    "'}'",
	tokLBracket:  "'['",
	tokRBracket:  "']'",
	tokArrow:     "'->'",
	tokEquals:    "'='",
	tokComma:     "','",
	tokSemicolon: "';'",
	tokIdent:     "identifier",
	tokString:    "string",
	tokNumber:    "number",
}

func (k tokenKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]tokenKind{
	"digraph": tokDigraph,
	"graph":   tokGraph,
	"node":    tokNode,
	"edge":    tokEdge,
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// SyntaxError reports a lexing or parsing failure at a source position.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("topology: line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

type scanner struct {
	src  []rune
	pos  int
	line int
	col  int
	out  []token
}

func tokenize(src string) ([]token, error) {
	s := &scanner{src: []rune(src), line: 1, col: 1}
	for {
		s.skipSpaceAndComments()
		if s.pos >= len(s.src) {
			s.out = append(s.out, token{kind: tokEOF, line: s.line, col: s.col})
			return s.out, nil
		}
		if err := s.next(); err != nil {
			return nil, err
		}
	}
}

func (s *scanner) peekAt(offset int) rune {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

func (s *scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *scanner) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		r := s.peekAt(0)
		switch {
		case unicode.IsSpace(r):
			s.advance()
		case r == '#' && s.col == 1:
			s.skipLine()
		case r == '/' && s.peekAt(1) == '/':
			s.skipLine()
		case r == '/' && s.peekAt(1) == '*':
			s.advance()
			s.advance()
			for s.pos < len(s.src) && !(s.peekAt(0) == '*' && s.peekAt(1) == '/') {
				s.advance()
			}
			if s.pos < len(s.src) {
				s.advance()
				s.advance()
			}
		default:
			return
		}
	}
}

func (s *scanner) skipLine() {
	for s.pos < len(s.src) && s.peekAt(0) != '\n' {
		s.advance()
	}
}

func (s *scanner) emit(kind tokenKind, text string, line, col int) {
	s.out = append(s.out, token{kind: kind, text: text, line: line, col: col})
}

func (s *scanner) next() error {
	line, col := s.line, s.col
	r := s.peekAt(0)

	switch {
	case r == '"':
		return s.quoted(line, col)
	case r == '-' && s.peekAt(1) == '>':
		s.advance()
		s.advance()
		s.emit(tokArrow, "->", line, col)
		return nil
	case r == '-' && s.peekAt(1) == '-':
		return s.errorf(line, col, "undirected edges (--) are not supported")
	case r == '-' || r == '.' || unicode.IsDigit(r):
		s.number(line, col)
		return nil
	case r == '_' || unicode.IsLetter(r):
		s.ident(line, col)
		return nil
	}

	punct := map[rune]tokenKind{
		'{': tokLBrace, '}': tokRBrace, '[': tokLBracket, ']': tokRBracket,
		'=': tokEquals, ',': tokComma, ';': tokSemicolon,
	}
	kind, ok := punct[r]
	if !ok {
		return s.errorf(line, col, "unexpected character %q", r)
	}
	s.advance()
	s.emit(kind, string(r), line, col)
	return nil
}

func (s *scanner) quoted(line, col int) error {
	s.advance()
	var sb strings.Builder
	for s.pos < len(s.src) {
		r := s.advance()
		switch r {
		case '"':
			s.emit(tokString, sb.String(), line, col)
			return nil
		case '\\':
			if s.pos >= len(s.src) {
				break
			}
			esc := s.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return s.errorf(line, col, "unterminated string")
}

func (s *scanner) number(line, col int) {
	var sb strings.Builder
	if s.peekAt(0) == '-' {
		sb.WriteRune(s.advance())
	}
	for s.pos < len(s.src) && (unicode.IsDigit(s.peekAt(0)) || s.peekAt(0) == '.') {
		sb.WriteRune(s.advance())
	}
	s.emit(tokNumber, sb.String(), line, col)
}

func (s *scanner) ident(line, col int) {
	var sb strings.Builder
	for s.pos < len(s.src) {
		r := s.peekAt(0)
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		sb.WriteRune(s.advance())
	}
	word := sb.String()
	if kind, ok := keywords[word]; ok {
		s.emit(kind, word, line, col)
		return
	}
	s.emit(tokIdent, word, line, col)
}
