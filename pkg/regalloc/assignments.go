package regalloc

import "github.com/corebackend/backend/pkg/lir"

// Assignments is the final, queryable result of a Run: the physical or
// stack-slot allocation chosen for every virtual register at every
// point it is live, plus the synthetic instructions Run had to splice
// in to realize those choices. Ported from the shape of
// elang/lir/transforms/register_assignments.h (itself the eventual
// home for the fields register_allocation.h declares under the
// RegisterAllocation name in the same directory).
type Assignments struct {
	blockValue       map[blockValueKey]lir.Value
	instructionValue map[instructionValueKey]lir.Value
	stackSlot        map[lir.Value]lir.Value
	beforeActions    map[*lir.Instruction][]*lir.Instruction
	nextStackSlot    int32
}

type blockValueKey struct {
	block *lir.BasicBlock
	value lir.Value
}

type instructionValueKey struct {
	instr *lir.Instruction
	value lir.Value
}

func newAssignments() *Assignments {
	return &Assignments{
		blockValue:       make(map[blockValueKey]lir.Value),
		instructionValue: make(map[instructionValueKey]lir.Value),
		stackSlot:        make(map[lir.Value]lir.Value),
		beforeActions:    make(map[*lir.Instruction][]*lir.Instruction),
	}
}

// AllocationOf returns the physical register or stack slot vreg holds
// after the last instruction of block. Non-virtual values are returned
// unchanged.
func (a *Assignments) AllocationOf(block *lir.BasicBlock, vreg lir.Value) lir.Value {
	if !vreg.IsVirtual() {
		return vreg
	}
	return a.blockValue[blockValueKey{block, vreg}]
}

// AllocationAt returns the physical register or stack slot vreg was
// allocated to for its use or def at instr. Non-virtual values are
// returned unchanged.
func (a *Assignments) AllocationAt(instr *lir.Instruction, vreg lir.Value) lir.Value {
	if !vreg.IsVirtual() {
		return vreg
	}
	return a.instructionValue[instructionValueKey{instr, vreg}]
}

// BeforeActionsOf returns the synthetic instructions (spills, fills,
// edge copies) that must execute immediately before instr, in
// insertion order.
func (a *Assignments) BeforeActionsOf(instr *lir.Instruction) []*lir.Instruction {
	return a.beforeActions[instr]
}

// StackSlotFor returns the stack slot assigned to vreg, or the void
// value if vreg was never spilled.
func (a *Assignments) StackSlotFor(vreg lir.Value) lir.Value {
	return a.stackSlot[vreg]
}

// VirtualFor returns the virtual register allocated to physical at
// instr's own point in the program, the reverse lookup of
// AllocationAt. Ported "for testing purpose" the way
// RegisterAllocationTracker::VirtualFor is documented in
// elang/lir/transforms/register_allocation_tracker.h; a linear scan is
// fine here since nothing but tests and --dump-lir-style introspection
// calls it.
func (a *Assignments) VirtualFor(instr *lir.Instruction, physical lir.Value) (lir.Value, bool) {
	for key, allocation := range a.instructionValue {
		if key.instr == instr && allocation == physical {
			return key.value, true
		}
	}
	return lir.Value(0), false
}

func (a *Assignments) setAllocation(instr *lir.Instruction, vreg, allocation lir.Value) {
	a.instructionValue[instructionValueKey{instr, vreg}] = allocation
}

func (a *Assignments) setPhysical(block *lir.BasicBlock, vreg, physical lir.Value) {
	a.blockValue[blockValueKey{block, vreg}] = physical
}

func (a *Assignments) stackSlotOf(vreg lir.Value) lir.Value {
	if slot, ok := a.stackSlot[vreg]; ok {
		return slot
	}
	slot := lir.NewStackSlot(vreg.Size(), a.nextStackSlot)
	a.nextStackSlot++
	a.stackSlot[vreg] = slot
	return slot
}

func (a *Assignments) insertBefore(newInstr, refInstr *lir.Instruction) {
	a.beforeActions[refInstr] = append(a.beforeActions[refInstr], newInstr)
}
