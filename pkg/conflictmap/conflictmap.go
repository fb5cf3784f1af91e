// Package conflictmap builds interference classes over virtual registers:
// the set of registers that must not share a physical register because
// they are live at the same program point.
package conflictmap

import (
	"github.com/corebackend/backend/pkg/bitset"
	"github.com/corebackend/backend/pkg/disjointset"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/liveness"
)

// Map records, via disjoint-set union, which virtual registers conflict.
type Map struct {
	sets *disjointset.DisjointSets[lir.Value]
}

// IsConflict reports whether r1 and r2 are live together and therefore
// must not be assigned the same physical register.
func (m *Map) IsConflict(r1, r2 lir.Value) bool {
	return m.sets.InSameSet(r1, r2)
}

// Build runs the reverse-scan algorithm over f using the given liveness
// collection (already solved by liveness.SolveBackward): every block's
// Live-Out set is folded into one class, then the block's non-phi
// instructions are walked in reverse unioning each register input with
// every virtual register currently live, and finally the Live-In set and
// each phi output are folded together.
func Build(f *lir.Function, c *liveness.Collection[*lir.BasicBlock, lir.Value]) *Map {
	sets := disjointset.New[lir.Value]()
	vars := c.Vars()
	for _, v := range vars {
		sets.MakeSet(v)
	}

	work := bitset.New(len(vars))
	for _, b := range f.BasicBlocks() {
		foldLiveness(sets, c, c.Out(b))

		work.Clear()
		copyInto(work, c.Out(b))

		instructions := b.Instructions()
		for i := len(instructions) - 1; i >= 0; i-- {
			inst := instructions[i]
			for _, out := range inst.Outputs {
				if out.IsVirtual() {
					work.Remove(c.IndexOf(out))
				}
			}
			for _, in := range inst.Inputs {
				if !in.IsVirtual() {
					continue
				}
				for _, idx := range work.ToSlice() {
					sets.Union(in, c.VariableAt(idx))
				}
				work.Add(c.IndexOf(in))
			}
		}

		foldLiveness(sets, c, c.In(b))

		for _, phi := range b.Phis() {
			output := phi.Output()
			for _, idx := range work.ToSlice() {
				sets.Union(output, c.VariableAt(idx))
			}
		}
	}

	return &Map{sets: sets}
}

// foldLiveness unions every variable named by lives into a single class.
func foldLiveness(sets *disjointset.DisjointSets[lir.Value], c *liveness.Collection[*lir.BasicBlock, lir.Value], lives *bitset.BitSet) {
	var first lir.Value
	haveFirst := false
	for _, idx := range lives.ToSlice() {
		v := c.VariableAt(idx)
		if !haveFirst {
			first = v
			haveFirst = true
			continue
		}
		sets.Union(first, v)
	}
}

func copyInto(dst *bitset.BitSet, src *bitset.BitSet) {
	for _, idx := range src.ToSlice() {
		dst.Add(idx)
	}
}
