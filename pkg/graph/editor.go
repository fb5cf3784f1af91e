package graph

import "fmt"

// Editor performs structural mutation of a Graph. Edge operations keep
// the predecessor and successor sides in sync atomically, ported from
// GraphEditor in graph_editor.h.
type Editor[N comparable] struct {
	graph *Graph[N]
}

// NewEditor returns an Editor over g.
func NewEditor[N comparable](g *Graph[N]) *Editor[N] {
	return &Editor[N]{graph: g}
}

// AppendNode adds n at the end of the node list.
func (e *Editor[N]) AppendNode(n N) {
	g := e.graph
	if g.HasNode(n) {
		panic(fmt.Sprintf("graph: node %v already belongs to this graph", n))
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// InsertNode inserts newNode immediately before refNode.
func (e *Editor[N]) InsertNode(newNode, refNode N) {
	g := e.graph
	if g.HasNode(newNode) {
		panic(fmt.Sprintf("graph: node %v already belongs to this graph", newNode))
	}
	g.checkNode(refNode)
	pos := g.index[refNode]
	g.nodes = append(g.nodes, newNode)
	copy(g.nodes[pos+1:], g.nodes[pos:len(g.nodes)-1])
	g.nodes[pos] = newNode
	for i := pos; i < len(g.nodes); i++ {
		g.index[g.nodes[i]] = i
	}
}

// RemoveNode removes n from the graph. n must have no remaining edges.
func (e *Editor[N]) RemoveNode(n N) {
	g := e.graph
	g.checkNode(n)
	if g.HasSuccessor(n) || g.HasPredecessor(n) {
		panic(fmt.Sprintf("graph: node %v still has edges", n))
	}
	pos := g.index[n]
	g.nodes = append(g.nodes[:pos], g.nodes[pos+1:]...)
	delete(g.index, n)
	for i := pos; i < len(g.nodes); i++ {
		g.index[g.nodes[i]] = i
	}
	delete(g.successors, n)
	delete(g.successorSet, n)
	delete(g.predecessors, n)
	delete(g.predecessorSet, n)
}

// AddEdge adds an edge from -> to. Both nodes must already belong to the
// graph; duplicate edges and self-edges are rejected.
func (e *Editor[N]) AddEdge(from, to N) {
	g := e.graph
	g.checkNode(from)
	g.checkNode(to)
	if from == to {
		panic("graph: self-edges are not permitted")
	}
	if g.HasEdge(from, to) {
		panic(fmt.Sprintf("graph: duplicate edge %v -> %v", from, to))
	}
	if g.successorSet[from] == nil {
		g.successorSet[from] = make(map[N]struct{})
	}
	if g.predecessorSet[to] == nil {
		g.predecessorSet[to] = make(map[N]struct{})
	}
	g.successorSet[from][to] = struct{}{}
	g.predecessorSet[to][from] = struct{}{}
	g.successors[from] = append(g.successors[from], to)
	g.predecessors[to] = append(g.predecessors[to], from)
}

// RemoveEdge removes the edge from -> to.
func (e *Editor[N]) RemoveEdge(from, to N) {
	g := e.graph
	if !g.HasEdge(from, to) {
		panic(fmt.Sprintf("graph: no edge %v -> %v to remove", from, to))
	}
	delete(g.successorSet[from], to)
	delete(g.predecessorSet[to], from)
	g.successors[from] = removeOne(g.successors[from], to)
	g.predecessors[to] = removeOne(g.predecessors[to], from)
}

func removeOne[N comparable](s []N, v N) []N {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
