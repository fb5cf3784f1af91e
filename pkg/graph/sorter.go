package graph

// order selects whether a node is recorded when the DFS first discovers
// it (PreOrder) or when the DFS finishes visiting it (PostOrder).
type order int

const (
	preOrder order = iota
	postOrder
)

// sorter performs a single depth-first traversal of a graph rooted at
// its entry node, recording nodes in the builder according to order, and
// optionally reversing the result. Ported from GraphSorter in
// graph_sorter.h.
type sorter[N comparable] struct {
	graph   *Graph[N]
	order   order
	reverse bool
	visited map[N]struct{}
}

func (s *sorter[N]) sort() *OrderedList[N] {
	b := &orderedListBuilder[N]{}
	s.visit(b, s.graph.Entry())
	if s.reverse {
		b.Reverse()
	}
	return b.Get()
}

func (s *sorter[N]) visit(b *orderedListBuilder[N], n N) {
	if _, ok := s.visited[n]; ok {
		return
	}
	s.visited[n] = struct{}{}
	if s.order == preOrder {
		b.Add(n)
	}
	for _, succ := range s.graph.Successors(n) {
		s.visit(b, succ)
	}
	if s.order == postOrder {
		b.Add(n)
	}
}

func newSorter[N comparable](g *Graph[N], o order, reverse bool) *sorter[N] {
	return &sorter[N]{graph: g, order: o, reverse: reverse, visited: make(map[N]struct{})}
}

// SortByPreOrder returns graph nodes in DFS preorder from the entry node.
func SortByPreOrder[N comparable](g *Graph[N]) *OrderedList[N] {
	return newSorter(g, preOrder, false).sort()
}

// SortByPostOrder returns graph nodes in DFS postorder from the entry
// node.
func SortByPostOrder[N comparable](g *Graph[N]) *OrderedList[N] {
	return newSorter(g, postOrder, false).sort()
}

// SortByReversePreOrder returns the reversal of SortByPreOrder.
func SortByReversePreOrder[N comparable](g *Graph[N]) *OrderedList[N] {
	return newSorter(g, preOrder, true).sort()
}

// SortByReversePostOrder returns the reversal of SortByPostOrder. This is
// the RPO ordering used by the dominator-tree builder and register
// allocator.
func SortByReversePostOrder[N comparable](g *Graph[N]) *OrderedList[N] {
	return newSorter(g, postOrder, true).sort()
}
