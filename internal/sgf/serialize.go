package sgf

import (
	"strings"
)

// Stringify serializes game trees back to SGF text, one tree per line.
func Stringify(roots []*Node) string {
	var b strings.Builder
	for _, root := range roots {
		writeTree(&b, root)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeTree(b *strings.Builder, first *Node) {
	b.WriteByte('(')
	curr := first
	for {
		writeNode(b, curr)
		if len(curr.Children) != 1 {
			break
		}
		curr = curr.Children[0]
	}
	for _, child := range curr.Children {
		writeTree(b, child)
	}
	b.WriteByte(')')
}

func writeNode(b *strings.Builder, n *Node) {
	b.WriteByte(';')
	for _, key := range n.keys {
		b.WriteString(key)
		for _, v := range n.props[key] {
			b.WriteByte('[')
			b.WriteString(escape(v))
			b.WriteByte(']')
		}
	}
}

var escaper = strings.NewReplacer(`\`, `\\`, `]`, `\]`)

func escape(v string) string {
	return escaper.Replace(v)
}
