// Package dominator builds dominator and post-dominator trees over a
// graph.Graph by the iterative algorithm from
// elang/base/analysis/dominator_tree_builder.h (Cooper, Harvey & Kennedy).
package dominator

import "github.com/corebackend/backend/pkg/graph"

// Direction selects whether Build computes the forward dominator tree
// (rooted at graph.Entry, walking successors) or the backward
// post-dominator tree (rooted at graph.Exit, walking predecessors).
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Node is one entry of a dominator tree: the bijective graph node it
// represents, its immediate dominator (parent), children, depth, RPO
// position, and dominance-frontier set.
type Node[N comparable] struct {
	Value       N
	parent      *Node[N]
	children    []*Node[N]
	depth       int
	rpoPosition int
	frontier    []*Node[N]
}

// Parent returns the node's immediate dominator, or nil for the root.
func (n *Node[N]) Parent() *Node[N] { return n.parent }

// Children returns the node's children in the tree.
func (n *Node[N]) Children() []*Node[N] { return n.children }

// Depth returns the node's depth in the tree; the root has depth 1.
func (n *Node[N]) Depth() int { return n.depth }

// Frontier returns the node's dominance frontier.
func (n *Node[N]) Frontier() []*Node[N] { return n.frontier }

// Tree is a complete dominator (or post-dominator) tree over a graph.
type Tree[N comparable] struct {
	direction Direction
	root      *Node[N]
	nodes     map[N]*Node[N]
}

// Root returns the tree's root node (graph.Entry for Forward,
// graph.Exit for Backward).
func (t *Tree[N]) Root() *Node[N] { return t.root }

// NodeOf returns the tree node bijective with graph node v.
func (t *Tree[N]) NodeOf(v N) *Node[N] {
	n, ok := t.nodes[v]
	if !ok {
		panic("dominator: value is not a member of this graph")
	}
	return n
}

// Dominates reports whether a dominates b, i.e. a is an ancestor of b in
// the tree (or a == b).
func (t *Tree[N]) Dominates(a, b N) bool {
	na, nb := t.NodeOf(a), t.NodeOf(b)
	for cur := nb; cur != nil; cur = cur.parent {
		if cur == na {
			return true
		}
		if cur.parent == cur {
			break
		}
	}
	return false
}

func successorsOf[N comparable](g *graph.Graph[N], dir Direction, n N) []N {
	if dir == Forward {
		return g.Successors(n)
	}
	return g.Predecessors(n)
}

func predecessorsOf[N comparable](g *graph.Graph[N], dir Direction, n N) []N {
	if dir == Forward {
		return g.Predecessors(n)
	}
	return g.Successors(n)
}

func hasMoreThanOnePredecessor[N comparable](g *graph.Graph[N], dir Direction, n N) bool {
	return len(predecessorsOf(g, dir, n)) > 1
}

func rootValueOf[N comparable](g *graph.Graph[N], dir Direction) N {
	if dir == Forward {
		return g.Entry()
	}
	return g.Exit()
}

// directedReversePostorder performs a DFS over g following successorsOf
// in the given direction, rooted at rootValueOf, and returns nodes in
// reverse postorder (RPO) — the same algorithm as graph.sorter but
// parameterized by traversal direction rather than fixed to the real
// graph successors.
func directedReversePostorder[N comparable](g *graph.Graph[N], dir Direction) []N {
	var post []N
	visited := make(map[N]struct{})
	root := rootValueOf(g, dir)
	var visit func(n N)
	visit = func(n N) {
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}
		for _, s := range successorsOf(g, dir, n) {
			visit(s)
		}
		post = append(post, n)
	}
	visit(root)
	rpo := make([]N, len(post))
	for i, n := range post {
		rpo[len(post)-1-i] = n
	}
	return rpo
}

type builder[N comparable] struct {
	graph     *graph.Graph[N]
	direction Direction
	rpo       []N
	tree      *Tree[N]
	entry     *Node[N]
}

// Build constructs the dominator (Forward) or post-dominator (Backward)
// tree of g.
func Build[N comparable](g *graph.Graph[N], dir Direction) *Tree[N] {
	b := &builder[N]{
		graph:     g,
		direction: dir,
		rpo:       directedReversePostorder(g, dir),
	}
	b.tree = &Tree[N]{direction: dir, nodes: make(map[N]*Node[N], len(b.rpo))}
	for i, v := range b.rpo {
		b.tree.nodes[v] = &Node[N]{Value: v, rpoPosition: i}
	}
	b.entry = b.tree.nodes[rootValueOf(g, dir)]

	// Sentinel: entry is its own parent during the fixed-point loop so
	// Intersect treats it as already resolved.
	b.entry.parent = b.entry
	b.entry.depth = 1
	b.computeParentForAll()
	b.entry.parent = nil
	b.entry.depth = 1

	b.computeChildren()
	b.computeFrontiers()

	b.tree.root = b.entry
	return b.tree
}

func (b *builder[N]) computeParentForAll() {
	changed := true
	for changed {
		changed = false
		for _, v := range b.rpo {
			node := b.tree.nodes[v]
			if node == b.entry {
				continue
			}
			if b.computeParentForNode(node) {
				changed = true
			}
		}
	}
}

func (b *builder[N]) computeParentForNode(node *Node[N]) bool {
	preds := predecessorsOf(b.graph, b.direction, node.Value)
	var candidate *Node[N]
	for _, p := range preds {
		pn := b.tree.nodes[p]
		if pn.parent == nil {
			continue
		}
		if candidate == nil {
			candidate = pn
			continue
		}
		candidate = b.intersect(candidate, pn)
	}
	if candidate == nil {
		return false
	}
	if node.parent != candidate {
		node.parent = candidate
		node.depth = candidate.depth + 1
		return true
	}
	return false
}

func (b *builder[N]) intersect(finger1, finger2 *Node[N]) *Node[N] {
	for finger1 != finger2 {
		for finger1.rpoPosition > finger2.rpoPosition {
			finger1 = finger1.parent
		}
		for finger2.rpoPosition > finger1.rpoPosition {
			finger2 = finger2.parent
		}
	}
	return finger1
}

func (b *builder[N]) computeChildren() {
	for _, v := range b.rpo {
		node := b.tree.nodes[v]
		if node.parent == nil {
			continue
		}
		node.parent.children = append(node.parent.children, node)
	}
}

func (b *builder[N]) computeFrontiers() {
	for _, v := range b.rpo {
		if !hasMoreThanOnePredecessor(b.graph, b.direction, v) {
			continue
		}
		node := b.tree.nodes[v]
		for _, p := range predecessorsOf(b.graph, b.direction, v) {
			for runner := b.tree.nodes[p]; runner != node.parent; runner = runner.parent {
				addFrontier(runner, node)
			}
		}
	}
}

func addFrontier[N comparable](node, frontier *Node[N]) {
	for _, f := range node.frontier {
		if f == frontier {
			return
		}
	}
	node.frontier = append(node.frontier, frontier)
}
