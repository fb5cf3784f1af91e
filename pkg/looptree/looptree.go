// Package looptree classifies the loop nest of a graph.Graph by the
// algorithm of Wei, Mao, Zou & Chen ("A New Algorithm for Identifying
// Loops in Decompilation"), ported from
// elang/base/analysis/loop_tree_builder.h.
package looptree

import "github.com/corebackend/backend/pkg/graph"

// Kind classifies a loop-tree node.
type Kind int

const (
	Root Kind = iota
	SingleEntryLoop
	MultipleEntryLoop
)

// TreeNode is one node of the loop nest: a designated entry graph node,
// parent/children in the nest, depth, and the graph nodes contained
// directly (not inside any child loop).
type TreeNode[N comparable] struct {
	kind     Kind
	entry    N
	parent   *TreeNode[N]
	children []*TreeNode[N]
	depth    int
	nodes    []N
}

func (t *TreeNode[N]) Kind() Kind              { return t.kind }
func (t *TreeNode[N]) Entry() N                { return t.entry }
func (t *TreeNode[N]) Parent() *TreeNode[N]    { return t.parent }
func (t *TreeNode[N]) Children() []*TreeNode[N] { return t.children }
func (t *TreeNode[N]) Depth() int              { return t.depth }
func (t *TreeNode[N]) Nodes() []N              { return t.nodes }
func (t *TreeNode[N]) IsRoot() bool            { return t.kind == Root }
func (t *TreeNode[N]) IsSingleEntry() bool     { return t.kind == SingleEntryLoop }
func (t *TreeNode[N]) IsMultipleEntry() bool   { return t.kind == MultipleEntryLoop }

// Tree is the complete loop nest over a graph.
type Tree[N comparable] struct {
	root *TreeNode[N]
	of   map[N]*TreeNode[N]
}

// Root returns the tree's root, containing every node not inside a loop.
func (t *Tree[N]) Root() *TreeNode[N] { return t.root }

// NodeOf returns the tree node that directly contains graph node v.
func (t *Tree[N]) NodeOf(v N) *TreeNode[N] {
	n, ok := t.of[v]
	if !ok {
		panic("looptree: value is not a member of this graph")
	}
	return n
}

// nodeInfo is the per-graph-node bookkeeping state used during Traverse,
// mirroring LoopTreeBuilder::NodeInfo. position is the node's depth in
// the DFS spanning tree while still on the current path; it is reset to
// 0 by RemoveFromPath once the node's successors have all been visited.
type nodeInfo[N comparable] struct {
	node       N
	kind       Kind
	loopHeader *nodeInfo[N]
	position   int
}

func (ni *nodeInfo[N]) inPath() bool { return ni.position > 0 }

type builder[N comparable] struct {
	graph *graph.Graph[N]
	list  []*nodeInfo[N]
	info  map[N]*nodeInfo[N]
}

// Build classifies g's loop nest, rooted at g.Entry().
func Build[N comparable](g *graph.Graph[N]) *Tree[N] {
	b := &builder[N]{graph: g, info: make(map[N]*nodeInfo[N])}
	b.traverse(g.Entry(), 1)

	treeNodeOf := make(map[*nodeInfo[N]]*TreeNode[N], len(b.list))
	tree := &Tree[N]{of: make(map[N]*TreeNode[N], len(b.list))}

	for _, info := range b.list {
		if info.loopHeader == nil {
			info.loopHeader = b.list[0]
		}

		if info.loopHeader == info {
			tn := &TreeNode[N]{kind: info.kind, entry: info.node}
			treeNodeOf[info] = tn
			tree.of[info.node] = tn
			continue
		}

		if info.kind == Root {
			headerNode := treeNodeOf[info.loopHeader]
			headerNode.nodes = append(headerNode.nodes, info.node)
			tree.of[info.node] = headerNode
			continue
		}

		tn := &TreeNode[N]{kind: info.kind, entry: info.node}
		treeNodeOf[info] = tn
		tree.of[info.node] = tn

		headerNode := treeNodeOf[info.loopHeader]
		tn.parent = headerNode
		tn.depth = headerNode.depth + 1
		headerNode.children = append(headerNode.children, tn)
	}

	tree.root = tree.of[g.Entry()]
	return tree
}

// traverse performs the DFS described by cases A-E of the Wei/Mao/Zou
// algorithm and returns the loop header of node (nil if node is not
// inside any loop).
func (b *builder[N]) traverse(node N, position int) *nodeInfo[N] {
	info := &nodeInfo[N]{node: node, kind: Root, position: position}
	b.info[node] = info
	b.list = append(b.list, info)

	for _, succ := range b.graph.Successors(node) {
		succInfo, visited := b.info[succ]
		if !visited {
			// Case A: successor not yet visited.
			loopHeader := b.traverse(succ, position+1)
			b.tagLoop(info, loopHeader)
			continue
		}
		if succInfo.inPath() {
			// Case B: successor is an ancestor on the current path -
			// natural loop header.
			succInfo.kind = SingleEntryLoop
			b.tagLoop(info, succInfo)
			continue
		}
		loopHeader := succInfo.loopHeader
		if loopHeader == nil {
			// Case C: successor already fully processed, not in a loop.
			continue
		}
		if loopHeader.inPath() {
			// Case D: successor's loop header is an ancestor.
			b.tagLoop(info, loopHeader)
			continue
		}
		// Case E: re-entry into an already-closed loop - irreducible.
		succInfo.kind = MultipleEntryLoop
		loopHeader.kind = MultipleEntryLoop
		for runner := loopHeader; runner != nil; runner = runner.loopHeader {
			if runner.inPath() {
				b.tagLoop(info, runner)
				break
			}
			runner.kind = MultipleEntryLoop
		}
	}

	info.position = 0
	return info.loopHeader
}

// tagLoop records that node belongs to the loop headed by loopHeader,
// merging nested loop-header chains as needed.
func (b *builder[N]) tagLoop(node, loopHeader *nodeInfo[N]) {
	if node == loopHeader || loopHeader == nil {
		return
	}
	runner1 := node
	runner2 := loopHeader
	for {
		next := runner1.loopHeader
		if next == nil {
			break
		}
		if next == runner2 {
			return
		}
		if next.position < runner2.position {
			runner1.loopHeader = runner2
			runner1 = runner2
			runner2 = next
			continue
		}
		runner1 = next
	}
	runner1.loopHeader = runner2
}
