// Package sgf reads and writes Smart Game Format game records as trees of
// nodes.
package sgf

import (
	"slices"
	"sync/atomic"
)

// IDCounter hands out node identifiers that are unique for the lifetime of
// the counter. One counter is shared by every tree parsed or extended in a
// process.
type IDCounter struct {
	next atomic.Int64
}

// Next returns a fresh identifier.
func (c *IDCounter) Next() int64 {
	return c.next.Add(1) - 1
}

// Node is one node of a game tree. Children[0] is the main line.
type Node struct {
	ID       int64
	Parent   *Node
	Children []*Node

	keys  []string
	props map[string][]string
}

// NewNode creates an empty node with the next identifier from ids.
func NewNode(ids *IDCounter) *Node {
	return &Node{
		ID:    ids.Next(),
		props: make(map[string][]string),
	}
}

// AddChild appends child to n and sets its parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Get returns the first value of a property.
func (n *Node) Get(key string) (string, bool) {
	values := n.props[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns every value of a property.
func (n *Node) Values(key string) []string {
	return n.props[key]
}

// Has reports whether the property is present.
func (n *Node) Has(key string) bool {
	_, ok := n.props[key]
	return ok
}

// Set replaces a property's values, keeping its original position when it
// already exists.
func (n *Node) Set(key string, values ...string) {
	if n.props == nil {
		n.props = make(map[string][]string)
	}
	if _, ok := n.props[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.props[key] = values
}

// Append adds values to a property.
func (n *Node) Append(key string, values ...string) {
	n.Set(key, append(slices.Clone(n.props[key]), values...)...)
}

// Delete removes a property.
func (n *Node) Delete(key string) {
	if _, ok := n.props[key]; !ok {
		return
	}
	delete(n.props, key)
	n.keys = slices.DeleteFunc(n.keys, func(k string) bool { return k == key })
}

// Keys returns property identifiers in insertion order.
func (n *Node) Keys() []string {
	return slices.Clone(n.keys)
}

// MainLine returns n followed by every children[0] descendant.
func (n *Node) MainLine() []*Node {
	line := []*Node{n}
	for curr := n; len(curr.Children) > 0; {
		curr = curr.Children[0]
		line = append(line, curr)
	}
	return line
}
