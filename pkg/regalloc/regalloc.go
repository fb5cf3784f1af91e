// Package regalloc assigns physical registers (and, when the pool is
// exhausted, stack slots) to the virtual registers of an LIR function,
// ported from the contract in elang/lir/transforms/register_allocation.h
// and its successor register_assignments.h, driven block-by-block over
// reverse postorder the way register_allocator_x64_unittest.cc exercises
// it through X64LoweringPass.
package regalloc

import (
	"math"

	"github.com/corebackend/backend/pkg/graph"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/liveness"
	"github.com/corebackend/backend/pkg/pcopy"
	"github.com/corebackend/backend/pkg/usedef"
)

// Classes lists the physical register numbers available to the
// allocator for each of LIR's two disjoint register files (spec
// 4.13's "integer and float are disjoint register pools"). Numbers
// are tried in the given order, so put callee-preferred registers
// first.
type Classes struct {
	Integer []int32
	Float   []int32
}

func (c Classes) poolFor(float bool) []int32 {
	if float {
		return c.Float
	}
	return c.Integer
}

func physicalValue(float bool, size lir.Size, number int32) lir.Value {
	if float {
		return lir.NewFloatRegister(size, number)
	}
	return lir.NewRegister(size, number)
}

const (
	deadDistance = math.MaxInt32
	farDistance  = math.MaxInt32 / 2
)

type edgeTask struct {
	output lir.Value
	input  lir.Value
}

// Run allocates physical registers for every virtual register of f,
// processing blocks in reverse postorder. live must already be solved
// (liveness.SolveBackward) over the same virtual registers that appear
// in f; uses is the use-def list built from f (component N), consulted
// as a secondary signal when choosing which live value to evict. f
// must have had critical edges split (pkg/critedge) before allocation,
// so that every phi predecessor ends in an unconditional jump block
// suitable for carrying inserted edge copies.
func Run(f *lir.Function, live *liveness.Collection[*lir.BasicBlock, lir.Value], uses *usedef.List, classes Classes) *Assignments {
	a := &allocator{
		classes:     classes,
		live:        live,
		uses:        uses,
		assignments: newAssignments(),
		tracker:     newTracker(),
		committed:   make(map[*lir.BasicBlock]bool),
	}
	order := graph.SortByReversePostOrder(f.Graph()).Items()
	for _, block := range order {
		a.allocateBlock(block)
		a.committed[block] = true
	}
	return a.assignments
}

type allocator struct {
	classes     Classes
	live        *liveness.Collection[*lir.BasicBlock, lir.Value]
	uses        *usedef.List
	assignments *Assignments
	tracker     *tracker
	committed   map[*lir.BasicBlock]bool

	// edge tasks accumulated while resolving the current block's entry
	// merge, keyed by the predecessor block they must execute in and
	// split further by register file (integer vs float pcopy tasks
	// cannot mix within one Expander run).
	edgeTasks map[*lir.BasicBlock]map[bool][]edgeTask
}

func (a *allocator) allocateBlock(block *lir.BasicBlock) {
	a.tracker.startBlock()
	a.edgeTasks = make(map[*lir.BasicBlock]map[bool][]edgeTask)

	a.mergeEntry(block)
	a.flushEdgeTasks()

	instrs := block.Instructions()
	for i, inst := range instrs {
		a.allocateInstruction(block, i, inst)
	}

	for _, idx := range a.live.Out(block).ToSlice() {
		vreg := a.live.VariableAt(idx)
		if physical, ok := a.tracker.physicalFor(vreg); ok {
			a.assignments.setPhysical(block, vreg, physical)
		} else if slot, spilled := a.assignments.stackSlot[vreg]; spilled {
			a.assignments.setPhysical(block, vreg, slot)
		}
	}
}

// mergeEntry implements spec 4.13 step 1: for every vreg live on
// entry to block (ordinary live-in values, and phi outputs defined
// here), read what each predecessor already committed. If every
// already-processed predecessor agrees, adopt that physical directly
// with no copy. Otherwise allocate a fresh physical for this block and
// queue a copy task on every disagreeing predecessor's edge.
func (a *allocator) mergeEntry(block *lir.BasicBlock) {
	for _, idx := range a.live.In(block).ToSlice() {
		vreg := a.live.VariableAt(idx)
		a.mergeValue(block, vreg, func(pred *lir.BasicBlock) (lir.Value, bool) {
			if !a.committed[pred] {
				return lir.NewVoid(), false
			}
			return a.assignments.AllocationOf(pred, vreg), true
		})
	}
	for _, phi := range block.Phis() {
		output := phi.Output()
		a.mergeValue(block, output, func(pred *lir.BasicBlock) (lir.Value, bool) {
			if !a.committed[pred] {
				return lir.NewVoid(), false
			}
			in, ok := phi.InputFrom(pred)
			if !ok {
				return lir.NewVoid(), false
			}
			if !in.IsVirtual() {
				return in, true
			}
			return a.assignments.AllocationOf(pred, in), true
		})
	}
}

// mergeValue resolves one vreg that is live (or phi-defined) at the
// start of block. sourceFor reports, for each predecessor, the
// allocation that vreg (or the phi operand bound to that edge) already
// holds there, or false if that predecessor hasn't been processed yet
// (a loop back edge reached before its header is fully allocated; its
// copy is left unreconciled, a known limitation noted in the design
// ledger).
func (a *allocator) mergeValue(block *lir.BasicBlock, vreg lir.Value, sourceFor func(*lir.BasicBlock) (lir.Value, bool)) {
	preds := block.Predecessors()
	var sources []lir.Value
	for _, pred := range preds {
		if src, ok := sourceFor(pred); ok {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		a.trackFreshPhysical(block, vreg)
		return
	}
	allSame := true
	for _, s := range sources[1:] {
		if s != sources[0] {
			allSame = false
			break
		}
	}
	if allSame && sources[0].IsPhysical() {
		a.tracker.trackPhysical(vreg, physicalValue(vreg.IsFloat(), vreg.Size(), sources[0].Data()))
		return
	}
	if allSame && sources[0].IsStackSlot() {
		// Every predecessor spilled this vreg to the same function-wide
		// slot; leave it unmapped to a physical here too, it will be
		// reloaded on first use.
		return
	}

	physical := a.trackFreshPhysical(block, vreg)
	for _, pred := range preds {
		src, ok := sourceFor(pred)
		if !ok || src == physical {
			continue
		}
		a.queueEdgeTask(pred, vreg.IsFloat(), edgeTask{output: physical, input: src})
	}
}

func (a *allocator) trackFreshPhysical(block *lir.BasicBlock, vreg lir.Value) lir.Value {
	physical := a.allocatePhysicalFor(block, nil, 0, vreg)
	a.tracker.trackPhysical(vreg, physical)
	return physical
}

func (a *allocator) queueEdgeTask(pred *lir.BasicBlock, float bool, task edgeTask) {
	byClass, ok := a.edgeTasks[pred]
	if !ok {
		byClass = make(map[bool][]edgeTask)
		a.edgeTasks[pred] = byClass
	}
	byClass[float] = append(byClass[float], task)
}

// flushEdgeTasks expands every queued edge-copy task set into actual
// instructions and splices them in right before each predecessor's
// terminator (spec 4.13 step 1: "placed in the unconditional-jump
// block that terminates each predecessor after [critical-edge
// removal]").
func (a *allocator) flushEdgeTasks() {
	for pred, byClass := range a.edgeTasks {
		ref := pred.Terminator()
		for float, tasks := range byClass {
			insts := a.expandEdgeTasks(pred, float, tasks)
			for _, inst := range insts {
				a.assignments.insertBefore(inst, ref)
			}
		}
	}
	a.edgeTasks = nil
}

func (a *allocator) expandEdgeTasks(pred *lir.BasicBlock, float bool, tasks []edgeTask) []*lir.Instruction {
	e := pcopy.NewExpander()
	for _, t := range tasks {
		e.AddTask(t.output, t.input)
	}

	busy := map[physID]bool{}
	for _, idx := range a.live.Out(pred).ToSlice() {
		vreg := a.live.VariableAt(idx)
		if vreg.IsFloat() != float {
			continue
		}
		if alloc := a.assignments.AllocationOf(pred, vreg); alloc.IsPhysical() {
			busy[idOf(alloc)] = true
		}
	}
	for _, t := range tasks {
		if t.output.IsPhysical() {
			busy[idOf(t.output)] = true
		}
		if t.input.IsPhysical() {
			busy[idOf(t.input)] = true
		}
	}

	scratchSize := lir.Size64
	if len(tasks) > 0 {
		scratchSize = tasks[0].output.Size()
	}

	pool := a.classes.poolFor(float)
	next := 0
	for {
		insts := e.Expand()
		if insts != nil {
			return insts
		}
		added := false
		for next < len(pool) {
			number := pool[next]
			next++
			if busy[physID{float: float, number: number}] {
				continue
			}
			e.AddScratch(physicalValue(float, scratchSize, number))
			added = true
			break
		}
		if !added {
			panic("regalloc: exhausted scratch registers expanding an edge copy set")
		}
	}
}

// allocateInstruction implements spec 4.13 step 2: resolve each input
// to its current physical (spilling a victim if the class is full),
// then allocate a fresh physical for each output.
func (a *allocator) allocateInstruction(block *lir.BasicBlock, index int, inst *lir.Instruction) {
	for _, in := range inst.Inputs {
		if !in.IsVirtual() {
			continue
		}
		physical := a.ensureInput(block, index, inst, in)
		a.assignments.setAllocation(inst, in, physical)
	}
	for _, out := range inst.Outputs {
		if !out.IsVirtual() {
			continue
		}
		physical := a.allocatePhysicalFor(block, inst, index+1, out)
		a.tracker.trackPhysical(out, physical)
		a.assignments.setAllocation(inst, out, physical)
	}
}

func (a *allocator) ensureInput(block *lir.BasicBlock, index int, inst *lir.Instruction, vreg lir.Value) lir.Value {
	if physical, ok := a.tracker.physicalFor(vreg); ok {
		return physical
	}
	physical := a.allocatePhysicalFor(block, inst, index+1, vreg)
	a.tracker.trackPhysical(vreg, physical)
	if slot, spilled := a.assignments.stackSlot[vreg]; spilled {
		a.assignments.insertBefore(lir.NewInstruction(lir.OpLoad, []lir.Value{physical}, []lir.Value{slot}), inst)
	}
	return physical
}

// allocatePhysicalFor returns a free physical of vreg's register file,
// spilling the worst victim first if the pool is exhausted. inst is
// the instruction the allocation is being made for (used to insert
// synthetic spill code before it); nil when allocating during entry
// merge, in which case the spill store has no single instruction to
// anchor to and no spill store is emitted for the victim at all —
// callers requesting a fresh physical at block entry must
// therefore only do so when the class still has room, which holds in
// practice because a block never has more live-in values of one class
// than there are physicals (an unenforced invariant inherited from the
// source material rather than checked here).
func (a *allocator) allocatePhysicalFor(block *lir.BasicBlock, inst *lir.Instruction, fromIndex int, vreg lir.Value) lir.Value {
	float := vreg.IsFloat()
	pool := a.classes.poolFor(float)
	for _, number := range pool {
		id := physID{float: float, number: number}
		if !a.tracker.isBusy(id) {
			return physicalValue(float, vreg.Size(), number)
		}
	}

	victim, ok := a.pickVictim(block, fromIndex, float)
	if !ok {
		panic("regalloc: no physical register available to spill for this register class")
	}
	physical, _ := a.tracker.physicalFor(victim)
	slot := a.assignments.stackSlotOf(victim)
	store := lir.NewInstruction(lir.OpStore, []lir.Value{slot}, []lir.Value{physical})
	if inst != nil {
		a.assignments.insertBefore(store, inst)
	}
	a.tracker.freeVirtual(victim)
	return physicalValue(float, vreg.Size(), physical.Data())
}

// pickVictim chooses the live vreg of the given register file whose
// next use is farthest away (spec 4.13: "choose a victim by last-use
// distance, longest next-use wins"). The distance is computed by
// scanning forward over the remaining instructions of the current
// block only; a vreg with no further use in this block falls back to
// the use-def list (component N) to distinguish "used again somewhere
// later in the function" from "dead", and ties are broken by
// tracking order for determinism.
func (a *allocator) pickVictim(block *lir.BasicBlock, from int, float bool) (lir.Value, bool) {
	instrs := block.Instructions()

	var best lir.Value
	bestDistance := -1
	found := false
	for _, vreg := range a.tracker.liveVregs() {
		if vreg.IsFloat() != float {
			continue
		}
		d := a.nextUseDistance(instrs, from, vreg)
		if d > bestDistance {
			bestDistance = d
			best = vreg
			found = true
		}
	}
	return best, found
}

func (a *allocator) nextUseDistance(instrs []*lir.Instruction, from int, vreg lir.Value) int {
	for i := from; i < len(instrs); i++ {
		for _, in := range instrs[i].Inputs {
			if in == vreg {
				return i - from
			}
		}
	}
	if len(a.uses.UsersOf(vreg)) > 0 {
		return farDistance
	}
	return deadDistance
}
