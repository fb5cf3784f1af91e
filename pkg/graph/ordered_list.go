package graph

// OrderedList is an insertion-ordered sequence of nodes that also
// supports O(1) position lookup for any member, as produced by the graph
// sorters.
type OrderedList[N comparable] struct {
	items    []N
	position map[N]int
}

// Len returns the number of nodes in the list.
func (l *OrderedList[N]) Len() int {
	return len(l.items)
}

// At returns the node at position i.
func (l *OrderedList[N]) At(i int) N {
	return l.items[i]
}

// Items returns the underlying slice in list order. Callers must not
// mutate it.
func (l *OrderedList[N]) Items() []N {
	return l.items
}

// PositionOf returns n's index in the list and whether n is a member.
func (l *OrderedList[N]) PositionOf(n N) (int, bool) {
	p, ok := l.position[n]
	return p, ok
}

// orderedListBuilder accumulates nodes in visit order and can reverse the
// final sequence, matching OrderedList::Builder's Add/Reverse/Get
// contract.
type orderedListBuilder[N comparable] struct {
	items []N
}

func (b *orderedListBuilder[N]) Add(n N) {
	b.items = append(b.items, n)
}

func (b *orderedListBuilder[N]) Reverse() {
	for i, j := 0, len(b.items)-1; i < j; i, j = i+1, j-1 {
		b.items[i], b.items[j] = b.items[j], b.items[i]
	}
}

func (b *orderedListBuilder[N]) Get() *OrderedList[N] {
	position := make(map[N]int, len(b.items))
	for i, n := range b.items {
		position[n] = i
	}
	return &OrderedList[N]{items: b.items, position: position}
}
