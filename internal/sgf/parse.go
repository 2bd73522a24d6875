package sgf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrSyntax is returned for input that is not a well-formed SGF collection.
var ErrSyntax = errors.New("sgf syntax error")

// ParseFile parses every game tree in the file at path.
func ParseFile(path string, ids *IDCounter) ([]*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	roots, err := ParseString(string(data), ids)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return roots, nil
}

// Parse parses every game tree read from r.
func Parse(r io.Reader, ids *IDCounter) ([]*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseString(string(data), ids)
}

// ParseString parses a collection of game trees and returns their roots.
func ParseString(s string, ids *IDCounter) ([]*Node, error) {
	p := &parser{src: s, ids: ids}
	var roots []*Node
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		if p.peek() != '(' {
			// Text outside game trees is ignored, as most readers do.
			p.pos++
			continue
		}
		root, err := p.gameTree(nil)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no game tree found", ErrSyntax)
	}
	return roots, nil
}

type parser struct {
	src string
	pos int
	ids *IDCounter
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && strings.IndexByte(" \t\r\n", p.peek()) >= 0 {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

// gameTree parses "(" sequence { gameTree } ")" and returns the first node
// of its sequence, attached to parent when parent is not nil.
func (p *parser) gameTree(parent *Node) (*Node, error) {
	p.pos++ // '('
	var first *Node
	curr := parent
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated game tree")
		}
		switch p.peek() {
		case ';':
			p.pos++
			node := NewNode(p.ids)
			if err := p.properties(node); err != nil {
				return nil, err
			}
			if curr != nil {
				curr.AddChild(node)
			}
			if first == nil {
				first = node
			}
			curr = node
		case '(':
			if curr == nil {
				return nil, p.errorf("variation before first node")
			}
			if _, err := p.gameTree(curr); err != nil {
				return nil, err
			}
		case ')':
			p.pos++
			if first == nil {
				return nil, p.errorf("empty game tree")
			}
			return first, nil
		default:
			return nil, p.errorf("unexpected %q", p.peek())
		}
	}
}

func (p *parser) properties(node *Node) error {
	for {
		p.skipSpace()
		if p.eof() {
			return nil
		}
		c := p.peek()
		if !(c >= 'A' && c <= 'Z') && !(c >= 'a' && c <= 'z') {
			return nil
		}

		// FF[1]-era identifiers may contain lowercase letters; only the
		// uppercase ones are significant.
		var ident strings.Builder
		for !p.eof() {
			c := p.peek()
			if c >= 'A' && c <= 'Z' {
				ident.WriteByte(c)
			} else if !(c >= 'a' && c <= 'z') {
				break
			}
			p.pos++
		}
		if ident.Len() == 0 {
			return p.errorf("property identifier without uppercase letters")
		}

		var values []string
		for {
			p.skipSpace()
			if p.eof() || p.peek() != '[' {
				break
			}
			v, err := p.value()
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			return p.errorf("property %s has no value", ident.String())
		}
		node.Append(ident.String(), values...)
	}
}

func (p *parser) value() (string, error) {
	p.pos++ // '['
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated property value")
		}
		c := p.peek()
		p.pos++
		switch c {
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			next := p.peek()
			p.pos++
			// Escaped line breaks are soft breaks and vanish.
			if next == '\n' || next == '\r' {
				if !p.eof() && (p.peek() == '\n' || p.peek() == '\r') && p.peek() != next {
					p.pos++
				}
				continue
			}
			b.WriteByte(next)
		case ']':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}
