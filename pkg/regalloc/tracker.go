package regalloc

import "github.com/corebackend/backend/pkg/lir"

// physID identifies a physical register independent of the operand
// size it is currently viewed through, mirroring
// register_allocation_tracker.cc's EqualsIgnoringSize: the same
// register index can appear packed at different Value sizes, but it is
// the same piece of hardware either way.
type physID struct {
	float  bool
	number int32
}

func idOf(physical lir.Value) physID {
	return physID{float: physical.IsFloat(), number: physical.Data()}
}

// tracker holds the physical_map live within the block currently being
// processed: which virtual register currently occupies which physical
// register. It is cleared at the start of every block (startBlock) and
// published into the Assignments at the end of every block by
// allocateBlock, following RegisterAllocationTracker.
type tracker struct {
	physicalOf map[lir.Value]lir.Value
	virtualOf  map[physID]lir.Value
	order      []lir.Value // vregs with a tracked physical, assignment order
}

func newTracker() *tracker {
	return &tracker{
		physicalOf: make(map[lir.Value]lir.Value),
		virtualOf:  make(map[physID]lir.Value),
	}
}

func (t *tracker) startBlock() {
	t.physicalOf = make(map[lir.Value]lir.Value)
	t.virtualOf = make(map[physID]lir.Value)
	t.order = nil
}

func (t *tracker) physicalFor(vreg lir.Value) (lir.Value, bool) {
	p, ok := t.physicalOf[vreg]
	return p, ok
}

func (t *tracker) isBusy(id physID) bool {
	_, ok := t.virtualOf[id]
	return ok
}

func (t *tracker) trackPhysical(vreg, physical lir.Value) {
	if _, already := t.physicalOf[vreg]; !already {
		t.order = append(t.order, vreg)
	}
	t.physicalOf[vreg] = physical
	t.virtualOf[idOf(physical)] = vreg
}

func (t *tracker) freeVirtual(vreg lir.Value) {
	physical, ok := t.physicalOf[vreg]
	if !ok {
		return
	}
	delete(t.physicalOf, vreg)
	delete(t.virtualOf, idOf(physical))
	for i, v := range t.order {
		if v == vreg {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// liveVregs returns every vreg currently holding a physical register,
// in the deterministic order each was first assigned one.
func (t *tracker) liveVregs() []lir.Value {
	return t.order
}
