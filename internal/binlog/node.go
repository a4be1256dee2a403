// Package binlog models the hierarchical build trace produced by an external
// structured-log reader. Decoding the binary log itself happens elsewhere; this
// package only exposes the node tree and the traversal helpers stump relies on.
package binlog

import "fmt"

// Kind is the node type of a trace element.
type Kind string

const (
	KindBuild             Kind = "Build"
	KindProject           Kind = "Project"
	KindTarget            Kind = "Target"
	KindTask              Kind = "Task"
	KindFolder            Kind = "Folder"
	KindProperty          Kind = "Property"
	KindParameter         Kind = "Parameter"
	KindItem              Kind = "Item"
	KindMetadata          Kind = "Metadata"
	KindMessage           Kind = "Message"
	KindAddItem           Kind = "AddItem"
	KindTaskParameterItem Kind = "TaskParameterItem"
)

// Well-known folder names under a Task node.
const (
	FolderParameters  = "Parameters"
	FolderOutputItems = "OutputItems"
)

// Node is one element of the trace tree.
type Node struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`

	// ProjectFile is set on Project nodes.
	ProjectFile string `json:"projectFile,omitempty"`
	// FromAssembly and IsDerived are set on Task nodes.
	FromAssembly string `json:"fromAssembly,omitempty"`
	IsDerived    bool   `json:"isDerived,omitempty"`
	// ParameterName is set on TaskParameterItem nodes.
	ParameterName string `json:"parameterName,omitempty"`

	Children []*Node `json:"children,omitempty"`

	parent *Node
}

// String renders the node for log messages.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Value != "" {
		return fmt.Sprintf("%s %s = %s", n.Kind, n.Name, n.Value)
	}
	return fmt.Sprintf("%s %s", n.Kind, n.Name)
}

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Add appends child to n and links its parent pointer.
func (n *Node) Add(child *Node) *Node {
	child.parent = n
	n.Children = append(n.Children, child)
	return n
}

// Link sets parent pointers for the whole subtree rooted at n.
func (n *Node) Link() {
	for _, c := range n.Children {
		c.parent = n
		c.Link()
	}
}

// NearestParent walks up from n and returns the first ancestor of the given kind.
func (n *Node) NearestParent(kind Kind) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if p.Kind == kind {
			return p
		}
	}
	return nil
}

// FindChild returns the first immediate child with the given kind and name.
func (n *Node) FindChild(kind Kind, name string) *Node {
	for _, c := range n.Children {
		if c.Kind == kind && c.Name == name {
			return c
		}
	}
	return nil
}

// FindFirstDescendant returns the first node below n, depth-first, matching pred.
func (n *Node) FindFirstDescendant(pred func(*Node) bool) *Node {
	for _, c := range n.Children {
		if pred(c) {
			return c
		}
		if found := c.FindFirstDescendant(pred); found != nil {
			return found
		}
	}
	return nil
}

// FindDescendants returns every node below n, depth-first, matching pred.
func (n *Node) FindDescendants(pred func(*Node) bool) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// IsTask returns a predicate matching Task nodes with the given name.
func IsTask(name string) func(*Node) bool {
	return func(n *Node) bool {
		return n.Kind == KindTask && n.Name == name
	}
}
