package preftree

import "github.com/dissemin/urltheory/token"

// Snapshot is the exported, gob-encodable mirror of a node, used by package
// forest to persist a Tree without exposing its internal node type.
type Snapshot struct {
	URLCount     float64
	SuccessCount float64
	Wildcard     bool
	Reversed     bool
	Children     []ChildSnapshot
}

// ChildSnapshot pairs an edge key with the child's own snapshot, preserving
// the slice-of-pairs shape (and its insertion order) of the live tree.
type ChildSnapshot struct {
	Key  token.Sequence
	Node Snapshot
}

// Snapshot captures the tree's current structure for serialization.
func (t *Tree) Snapshot() Snapshot {
	return t.root.snapshot()
}

// FromSnapshot rebuilds a Tree from a previously captured Snapshot.
func FromSnapshot(s Snapshot) *Tree {
	return &Tree{root: nodeFromSnapshot(s)}
}

func (n *node) snapshot() Snapshot {
	children := make([]ChildSnapshot, len(n.children))
	for i, e := range n.children {
		children[i] = ChildSnapshot{Key: e.key.Clone(), Node: e.node.snapshot()}
	}
	return Snapshot{
		URLCount:     n.urlCount,
		SuccessCount: n.successCount,
		Wildcard:     n.wildcard,
		Reversed:     n.reversed,
		Children:     children,
	}
}

func nodeFromSnapshot(s Snapshot) *node {
	children := make([]edge, len(s.Children))
	for i, c := range s.Children {
		children[i] = edge{key: c.Key.Clone(), node: nodeFromSnapshot(c.Node)}
	}
	return &node{
		urlCount:     s.URLCount,
		successCount: s.SuccessCount,
		wildcard:     s.Wildcard,
		reversed:     s.Reversed,
		children:     children,
	}
}
