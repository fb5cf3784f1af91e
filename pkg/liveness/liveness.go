// Package liveness computes backward fixed-point liveness (IN/OUT/KILL)
// over a graph.Graph, ported from
// elang/base/analysis/data_flow_solver.h.
package liveness

import (
	"fmt"

	"github.com/corebackend/backend/pkg/bitset"
	"github.com/corebackend/backend/pkg/graph"
)

const maxIterations = 10000

// Record holds the three per-node bitsets tracked by the solver: IN
// (variables live on entry to the node), OUT (live on exit), and KILL
// (variables the node (re)defines). IN additionally starts out holding
// the node's "use before any local kill" set, which the solver folds in
// on every iteration.
type Record struct {
	In   *bitset.BitSet
	Out  *bitset.BitSet
	Kill *bitset.BitSet
}

// Collection owns a node->Record mapping and a dense variable numbering
// shared by every record's bitsets.
type Collection[N comparable, V comparable] struct {
	records  map[N]*Record
	varIndex map[V]int
	vars     []V
}

// NewCollection allocates a Collection over nodes and vars. Every
// record's bitsets start empty; callers populate KILL and the initial
// IN (use-before-kill) directly through Kill(n) and In(n) before
// calling SolveBackward.
func NewCollection[N comparable, V comparable](nodes []N, vars []V) *Collection[N, V] {
	c := &Collection[N, V]{
		records:  make(map[N]*Record, len(nodes)),
		varIndex: make(map[V]int, len(vars)),
		vars:     append([]V(nil), vars...),
	}
	for i, v := range vars {
		c.varIndex[v] = i
	}
	capacity := len(vars)
	for _, n := range nodes {
		c.records[n] = &Record{
			In:   bitset.New(capacity),
			Out:  bitset.New(capacity),
			Kill: bitset.New(capacity),
		}
	}
	return c
}

// IndexOf returns the dense index assigned to variable v.
func (c *Collection[N, V]) IndexOf(v V) int {
	i, ok := c.varIndex[v]
	if !ok {
		panic(fmt.Sprintf("liveness: variable %v was not registered", v))
	}
	return i
}

// VariableAt returns the variable assigned dense index i.
func (c *Collection[N, V]) VariableAt(i int) V {
	return c.vars[i]
}

// Vars returns every variable registered with this collection, in dense
// index order.
func (c *Collection[N, V]) Vars() []V {
	return c.vars
}

func (c *Collection[N, V]) recordOf(n N) *Record {
	r, ok := c.records[n]
	if !ok {
		panic("liveness: node is not a member of this collection")
	}
	return r
}

// In returns node n's mutable IN bitset.
func (c *Collection[N, V]) In(n N) *bitset.BitSet { return c.recordOf(n).In }

// Out returns node n's mutable OUT bitset.
func (c *Collection[N, V]) Out(n N) *bitset.BitSet { return c.recordOf(n).Out }

// Kill returns node n's mutable KILL bitset.
func (c *Collection[N, V]) Kill(n N) *bitset.BitSet { return c.recordOf(n).Kill }

// SolveBackward runs the backward liveness fixed point described in
// data_flow_solver.h over g, populating each node's OUT from its
// successors' IN and refining IN as (OUT \ KILL) ∪ IN until stable.
// The entry node's IN, and every node's OUT, must be empty on entry;
// panics if not. Panics if entry's IN is non-empty when the solve
// completes (a malformed KILL/initial-IN input), or if the fixed point
// fails to converge within maxIterations.
func SolveBackward[N comparable, V comparable](g *graph.Graph[N], c *Collection[N, V]) {
	entry := g.Entry()
	if !c.recordOf(entry).In.IsEmpty() {
		panic("liveness: In(entry) must be empty before solving")
	}
	for _, n := range g.Nodes() {
		if !c.recordOf(n).Out.IsEmpty() {
			panic("liveness: Out(*) must be empty before solving")
		}
	}

	order := graph.SortByReversePreOrder(g).Items()
	capacity := len(c.vars)
	work := bitset.New(capacity)

	changed := true
	iterations := 0
	for changed {
		iterations++
		if iterations >= maxIterations {
			panic("liveness: fixed point did not converge; graph too complex")
		}
		changed = false
		for _, n := range order {
			r := c.recordOf(n)
			for _, succ := range g.Successors(n) {
				r.Out.Union(c.recordOf(succ).In)
			}
			work.CopyFrom(r.Out)
			work.Subtract(r.Kill)
			work.Union(r.In)
			if r.In.Equals(work) {
				continue
			}
			r.In.CopyFrom(work)
			changed = true
		}
	}

	if !c.recordOf(entry).In.IsEmpty() {
		panic("liveness: In(entry) must be empty after solving")
	}
	if !c.recordOf(g.Exit()).Out.IsEmpty() {
		panic("liveness: Out(exit) must be empty after solving")
	}
}
