// Package graph implements a generic directed graph with an editor for
// structural mutation, ported from elang/base/graphs/graph.h and
// graph_editor.h.
package graph

import "fmt"

// Graph owns an insertion-ordered sequence of nodes of type N, plus the
// predecessor/successor relation between them. N is typically a pointer
// type (e.g. *lir.BasicBlock); the zero value of N must never be used as
// a node.
type Graph[N comparable] struct {
	nodes []N
	index map[N]int

	successors   map[N][]N
	successorSet map[N]map[N]struct{}
	predecessors map[N][]N
	predecessorSet map[N]map[N]struct{}

	entry N
	exit  N
	hasEntry bool
	hasExit  bool
}

// New returns an empty graph.
func New[N comparable]() *Graph[N] {
	return &Graph[N]{
		index:          make(map[N]int),
		successors:     make(map[N][]N),
		successorSet:   make(map[N]map[N]struct{}),
		predecessors:   make(map[N][]N),
		predecessorSet: make(map[N]map[N]struct{}),
	}
}

// Nodes returns the graph's nodes in insertion order. Callers must not
// mutate the returned slice.
func (g *Graph[N]) Nodes() []N {
	return g.nodes
}

// FirstNode returns the first node in insertion order, or the zero value
// if the graph is empty.
func (g *Graph[N]) FirstNode() N {
	var zero N
	if len(g.nodes) == 0 {
		return zero
	}
	return g.nodes[0]
}

// LastNode returns the last node in insertion order, or the zero value if
// the graph is empty.
func (g *Graph[N]) LastNode() N {
	var zero N
	if len(g.nodes) == 0 {
		return zero
	}
	return g.nodes[len(g.nodes)-1]
}

// SetEntry designates the graph's entry node, the root for forward
// traversals (sorters, forward dominators).
func (g *Graph[N]) SetEntry(n N) {
	g.entry = n
	g.hasEntry = true
}

// Entry returns the designated entry node. Panics if none was set.
func (g *Graph[N]) Entry() N {
	if !g.hasEntry {
		panic("graph: entry node not set")
	}
	return g.entry
}

// SetExit designates the graph's exit node, the root for backward
// traversals (post-dominators).
func (g *Graph[N]) SetExit(n N) {
	g.exit = n
	g.hasExit = true
}

// Exit returns the designated exit node. Panics if none was set.
func (g *Graph[N]) Exit() N {
	if !g.hasExit {
		panic("graph: exit node not set")
	}
	return g.exit
}

// HasNode reports whether n belongs to this graph.
func (g *Graph[N]) HasNode(n N) bool {
	_, ok := g.index[n]
	return ok
}

// Successors returns n's successors in insertion order.
func (g *Graph[N]) Successors(n N) []N {
	return g.successors[n]
}

// Predecessors returns n's predecessors in insertion order.
func (g *Graph[N]) Predecessors(n N) []N {
	return g.predecessors[n]
}

// HasMoreThanOnePredecessor reports whether n has 2+ predecessors.
func (g *Graph[N]) HasMoreThanOnePredecessor(n N) bool {
	return len(g.predecessors[n]) > 1
}

// HasPredecessor reports whether n has any predecessor.
func (g *Graph[N]) HasPredecessor(n N) bool {
	return len(g.predecessors[n]) > 0
}

// HasSuccessor reports whether n has any successor.
func (g *Graph[N]) HasSuccessor(n N) bool {
	return len(g.successors[n]) > 0
}

// HasEdge reports whether there is an edge from -> to.
func (g *Graph[N]) HasEdge(from, to N) bool {
	_, ok := g.successorSet[from][to]
	return ok
}

func (g *Graph[N]) checkNode(n N) {
	if !g.HasNode(n) {
		panic(fmt.Sprintf("graph: node %v is not a member of this graph", n))
	}
}
