// Package stacktree assigns dense ids to stack prefixes shared across
// samples.
package stacktree

import (
	"github.com/grafana/pf2/pkg/model"
)

const (
	// RootID is returned for an empty stack.
	RootID = -1
	// NoPrefix is the prefix of nodes at the top of the tree.
	NoPrefix = -1
)

// Node is a single stack prefix: the path from the root down to Location.
type Node struct {
	ID       int
	Prefix   int
	Location int

	// Children in insertion order.
	children []int
}

// HasPrefix reports whether the node has a parent.
func (n Node) HasPrefix() bool { return n.Prefix != NoPrefix }

// Tree is a trie over location index sequences. Ids are assigned in node
// creation order.
type Tree struct {
	nodes []Node
	// Lookup of the child of a node by location. The root is keyed as RootID.
	edges map[edge]int
	top   []int
}

type edge struct {
	parent   int
	location int
}

func New() *Tree {
	return &Tree{edges: make(map[edge]int)}
}

// Insert adds the root to leaf path and returns the id of its leaf node.
func (t *Tree) Insert(path []int) int {
	current := RootID
	for _, loc := range path {
		e := edge{parent: current, location: loc}
		id, ok := t.edges[e]
		if !ok {
			id = len(t.nodes)
			t.nodes = append(t.nodes, Node{ID: id, Prefix: current, Location: loc})
			t.edges[e] = id
			if current == RootID {
				t.top = append(t.top, id)
			} else {
				t.nodes[current].children = append(t.nodes[current].children, id)
			}
		}
		current = id
	}
	return current
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id int) Node { return t.nodes[id] }

// Nodes returns all nodes in id order.
func (t *Tree) Nodes() []Node { return t.nodes }

// Walk visits every node breadth first, children in insertion order. A node
// is always visited after its prefix.
func (t *Tree) Walk(fn func(Node)) {
	var q model.Queue[int]
	for _, id := range t.top {
		q.Push(id)
	}
	for q.Len() > 0 {
		id, _ := q.Pop()
		n := t.nodes[id]
		fn(n)
		for _, c := range n.children {
			q.Push(c)
		}
	}
}
