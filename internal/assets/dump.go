package assets

import "strings"

type dumpNode struct {
	name     string
	folder   bool
	children []*dumpNode
}

func (n *dumpNode) child(name string) *dumpNode {
	for _, c := range n.children {
		if c.folder && c.name == name {
			return c
		}
	}
	c := &dumpNode{name: name, folder: true}
	n.children = append(n.children, c)
	return c
}

// Dump renders the canonical layout as a tree, folders first seen first.
func (r *Repository) Dump() string {
	root := &dumpNode{folder: true}
	for _, p := range r.order {
		cur := root
		for _, f := range p.Subfolders {
			cur = cur.child(f)
		}
		cur.children = append(cur.children, &dumpNode{name: p.Filename})
	}

	var b strings.Builder
	dumpChildren(&b, root, nil)
	return b.String()
}

func dumpChildren(b *strings.Builder, n *dumpNode, last []bool) {
	for i, c := range n.children {
		isLast := i == len(n.children)-1
		for _, l := range last {
			if l {
				b.WriteString("   ")
			} else {
				b.WriteString("│  ")
			}
		}
		if isLast {
			b.WriteString("└── ")
		} else {
			b.WriteString("├── ")
		}
		b.WriteString(c.name)
		if c.folder {
			b.WriteString("/")
		}
		b.WriteString("\n")
		if c.folder {
			dumpChildren(b, c, append(last, isLast))
		}
	}
}
