// Package pcopy expands a set of simultaneous "output <- input" copy
// tasks (the pcopy pseudo-instruction materialized at phi edges and at
// register-allocation edits) into a sequence of ordinary Mov/Lit/Load/
// Store/Swap instructions, ported from the contract documented in
// elang/lir/transforms/parallel_copy_expander.h.
package pcopy

import "github.com/corebackend/backend/pkg/lir"

// Task is one "output <- input" binding to execute simultaneously with
// every other task in the same Expander. Output must be a physical
// register or a stack slot; Input must be a physical register,
// immediate, literal, or stack slot.
type Task struct {
	Output lir.Value
	Input  lir.Value
}

type location int

const (
	locNone location = iota
	locPhysical
	locMemory
)

func locationOf(v lir.Value) (location, int32) {
	switch {
	case v.IsPhysical():
		return locPhysical, v.Data()
	case v.IsStackSlot():
		return locMemory, v.Data()
	default:
		return locNone, 0
	}
}

func sameLocation(a, b lir.Value) bool {
	ka, da := locationOf(a)
	kb, db := locationOf(b)
	return ka != locNone && ka == kb && da == db
}

// Expander accumulates tasks and scratch registers and produces the
// instruction sequence realizing them.
type Expander struct {
	tasks     []Task
	scratches []lir.Value
}

// NewExpander returns an empty Expander.
func NewExpander() *Expander {
	return &Expander{}
}

// HasTasks reports whether at least one task has been added.
func (e *Expander) HasTasks() bool { return len(e.tasks) > 0 }

// AddTask registers a copy to perform as part of the simultaneous set.
func (e *Expander) AddTask(output, input lir.Value) {
	e.tasks = append(e.tasks, Task{Output: output, Input: input})
}

// AddScratch makes an additional physical register available as scratch
// space for breaking cycles. Must only be called while HasTasks is true.
func (e *Expander) AddScratch(physical lir.Value) {
	e.scratches = append(e.scratches, physical)
}

// Expand returns the instruction sequence realizing every added task, or
// nil if more scratch registers are required than are currently
// available; callers should AddScratch and retry in that case.
func (e *Expander) Expand() []*lir.Instruction {
	pending := append([]Task(nil), e.tasks...)
	scratch := append([]lir.Value(nil), e.scratches...)
	var out []*lir.Instruction

	for len(pending) > 0 {
		pending = drainFreeTasks(pending, &scratch, &out)
		if len(pending) == 0 {
			break
		}

		cycle, rest := extractCycle(pending)
		insts, ok := breakCycle(cycle, &scratch)
		if !ok {
			return nil
		}
		out = append(out, insts...)
		pending = rest
	}
	return out
}

// drainFreeTasks repeatedly emits any task whose output location is not
// required as an input by another pending task (spec 4.14 step 2),
// returning the remaining (purely cyclic) tasks.
func drainFreeTasks(pending []Task, scratch *[]lir.Value, out *[]*lir.Instruction) []Task {
	progress := true
	for progress {
		progress = false
		for i, t := range pending {
			if !isFree(t, pending) {
				continue
			}
			inst, freed, ok := emitDirect(t)
			if !ok {
				continue
			}
			*out = append(*out, inst)
			if freed.IsRegister() {
				*scratch = append(*scratch, freed)
			}
			pending = append(append([]Task(nil), pending[:i]...), pending[i+1:]...)
			progress = true
			break
		}
	}
	return pending
}

// isFree reports whether t's output location is not needed as the input
// of any other pending task.
func isFree(t Task, pending []Task) bool {
	for _, other := range pending {
		if other == t {
			continue
		}
		if sameLocation(other.Input, t.Output) {
			return false
		}
	}
	return true
}

// emitDirect emits the single instruction realizing a free task that
// does not require a scratch: physical<-physical/memory/immediate/
// literal, or memory<-physical/immediate/literal. A memory<-memory free
// task cannot be emitted directly (no such addressing mode exists) and
// is left for cycle-breaking to resolve through a scratch even though it
// isn't actually part of a cycle. The second return value is the
// physical register freed for scratch reuse when this task was a store
// of a physical to memory (spec 4.14 bullet 4: opportunistic scratch
// recovery), or Void otherwise.
func emitDirect(t Task) (*lir.Instruction, lir.Value, bool) {
	outLoc, _ := locationOf(t.Output)
	inLoc, _ := locationOf(t.Input)

	switch {
	case outLoc == locPhysical && inLoc == locPhysical:
		return lir.NewInstruction(lir.OpMov, []lir.Value{t.Output}, []lir.Value{t.Input}), lir.NewVoid(), true
	case outLoc == locPhysical && inLoc == locMemory:
		return lir.NewInstruction(lir.OpLoad, []lir.Value{t.Output}, []lir.Value{t.Input}), lir.NewVoid(), true
	case outLoc == locPhysical && (t.Input.IsImmediate() || t.Input.IsLiteral()):
		return lir.NewInstruction(lir.OpLit, []lir.Value{t.Output}, []lir.Value{t.Input}), lir.NewVoid(), true
	case outLoc == locMemory && inLoc == locPhysical:
		return lir.NewInstruction(lir.OpStore, []lir.Value{t.Output}, []lir.Value{t.Input}), t.Input, true
	case outLoc == locMemory && (t.Input.IsImmediate() || t.Input.IsLiteral()):
		return lir.NewInstruction(lir.OpStore, []lir.Value{t.Output}, []lir.Value{t.Input}), lir.NewVoid(), true
	default:
		return nil, lir.NewVoid(), false
	}
}

func takeScratch(scratch []lir.Value) (lir.Value, []lir.Value, bool) {
	if len(scratch) == 0 {
		return lir.NewVoid(), scratch, false
	}
	return scratch[0], scratch[1:], true
}

// extractCycle pulls one closed chain of mutually dependent tasks out of
// pending: starting from the first task, repeatedly find the task whose
// output matches the current task's input, until the chain returns to
// its start. If no such task exists the "cycle" is really a standalone
// memory-to-memory task that only needs a scratch, not cycle-breaking
// proper; breakCycle's n==1 case handles that. The remaining tasks
// (outside the cycle) are returned as rest.
func extractCycle(pending []Task) (cycle []Task, rest []Task) {
	used := make([]bool, len(pending))
	cycle = append(cycle, pending[0])
	used[0] = true
	cur := pending[0]
	for {
		next, idx, ok := findByOutput(pending, used, cur.Input)
		if !ok {
			break
		}
		cycle = append(cycle, next)
		used[idx] = true
		cur = next
		if sameLocation(cur.Input, cycle[0].Output) {
			break
		}
	}
	for i, t := range pending {
		if !used[i] {
			rest = append(rest, t)
		}
	}
	return cycle, rest
}

func findByOutput(pending []Task, used []bool, loc lir.Value) (Task, int, bool) {
	for i, t := range pending {
		if used[i] {
			continue
		}
		if sameLocation(t.Output, loc) {
			return t, i, true
		}
	}
	return Task{}, -1, false
}

// breakCycle realizes one closed dependency chain per spec 4.14 step 3:
// a physical-only 2-cycle becomes a single swap pseudo, a physical-only
// k-cycle (k>2) rotates through one scratch or expands to k-1 swaps, and
// any chain touching memory (including the degenerate single-task
// memory-to-memory case) routes through scratch registers.
func breakCycle(cycle []Task, scratch *[]lir.Value) ([]*lir.Instruction, bool) {
	if allPhysical(cycle) {
		return breakPhysicalCycle(cycle, scratch), true
	}
	return breakMemoryChain(cycle, scratch)
}

func allPhysical(cycle []Task) bool {
	for _, t := range cycle {
		if loc, _ := locationOf(t.Output); loc != locPhysical {
			return false
		}
		if loc, _ := locationOf(t.Input); loc != locPhysical {
			return false
		}
	}
	return true
}

func breakPhysicalCycle(cycle []Task, scratch *[]lir.Value) []*lir.Instruction {
	if len(cycle) == 2 {
		return []*lir.Instruction{swap(cycle[0].Output, cycle[1].Output)}
	}
	if s, rest, ok := takeScratch(*scratch); ok {
		*scratch = rest
		var out []*lir.Instruction
		n := len(cycle)
		out = append(out, lir.NewInstruction(lir.OpMov, []lir.Value{s}, []lir.Value{cycle[0].Output}))
		for i := 0; i < n-1; i++ {
			out = append(out, lir.NewInstruction(lir.OpMov, []lir.Value{cycle[i].Output}, []lir.Value{cycle[i+1].Output}))
		}
		out = append(out, lir.NewInstruction(lir.OpMov, []lir.Value{cycle[n-1].Output}, []lir.Value{s}))
		*scratch = append(*scratch, s)
		return out
	}
	// No scratch available: expand into k-1 chained swaps walking the
	// cycle.
	var out []*lir.Instruction
	for i := 0; i+1 < len(cycle); i++ {
		out = append(out, swap(cycle[i].Output, cycle[i+1].Output))
	}
	return out
}

func swap(a, b lir.Value) *lir.Instruction {
	return lir.NewInstruction(lir.OpParallelCopy, []lir.Value{a, b}, []lir.Value{b, a})
}

// breakMemoryChain handles any cycle (or degenerate single task) that
// touches at least one memory location, using at most two scratch
// registers regardless of how many of the chain's locations are memory
// (spec 4.14 step 3's "memory-to-memory rotation of n locations needs at
// most two scratches", generalized uniformly here rather than
// special-casing how few memory locations actually appear, which the
// original's scratch-minimizing heuristics exploit but this port does
// not attempt to reproduce — see the grounding ledger).
func breakMemoryChain(cycle []Task, scratch *[]lir.Value) ([]*lir.Instruction, bool) {
	n := len(cycle)
	if n == 1 {
		s, rest, ok := takeScratch(*scratch)
		if !ok {
			return nil, false
		}
		*scratch = rest
		out := []*lir.Instruction{
			loadInto(s, cycle[0].Input),
			storeFrom(cycle[0].Output, s),
		}
		*scratch = append(*scratch, s)
		return out, true
	}

	if n == 2 {
		if insts, ok := breakTwoCycleWithOneScratch(cycle, scratch); ok {
			return insts, true
		}
	}

	if len(*scratch) < 2 {
		return nil, false
	}
	s1, rest, _ := takeScratch(*scratch)
	s2, rest, _ := takeScratch(rest)

	var out []*lir.Instruction
	out = append(out, loadInto(s1, cycle[0].Output))      // save old L0
	out = append(out, loadInto(s2, cycle[n-1].Output))    // save old L(n-1)
	out = append(out, storeFrom(cycle[n-1].Output, s1))   // L(n-1) <- old L0

	held := s1
	for i := 0; i <= n-3; i++ {
		out = append(out, loadInto(held, cycle[i+1].Output)) // reuses s1
		out = append(out, storeFrom(cycle[i].Output, held))
	}
	out = append(out, storeFrom(cycle[n-2].Output, s2))

	*scratch = append(rest, s1, s2)
	return out, true
}

// breakTwoCycleWithOneScratch handles a 2-cycle with at least one
// physical-register location using only one scratch: preserve the
// location the other task is about to overwrite, let that task copy
// directly (its source is still untouched), then finish the preserved
// task from scratch. Tried in both directions; fails (ok=false) if
// neither task is directly emittable (both locations are memory, which
// needs the general two-scratch chain algorithm instead) or no scratch
// is available.
func breakTwoCycleWithOneScratch(cycle []Task, scratch *[]lir.Value) ([]*lir.Instruction, bool) {
	if len(*scratch) < 1 {
		return nil, false
	}
	if canEmitDirectly(cycle[1].Output, cycle[1].Input) {
		s, rest, _ := takeScratch(*scratch)
		out := []*lir.Instruction{
			loadInto(s, cycle[0].Input),
			genericCopy(cycle[1].Output, cycle[1].Input),
			genericCopy(cycle[0].Output, s),
		}
		*scratch = append(rest, s)
		return out, true
	}
	if canEmitDirectly(cycle[0].Output, cycle[0].Input) {
		s, rest, _ := takeScratch(*scratch)
		out := []*lir.Instruction{
			loadInto(s, cycle[1].Input),
			genericCopy(cycle[0].Output, cycle[0].Input),
			genericCopy(cycle[1].Output, s),
		}
		*scratch = append(rest, s)
		return out, true
	}
	return nil, false
}

func canEmitDirectly(output, input lir.Value) bool {
	outLoc, _ := locationOf(output)
	inLoc, _ := locationOf(input)
	return !(outLoc == locMemory && inLoc == locMemory)
}

func genericCopy(dst, src lir.Value) *lir.Instruction {
	dstLoc, _ := locationOf(dst)
	srcLoc, _ := locationOf(src)
	switch {
	case dstLoc == locMemory:
		return lir.NewInstruction(lir.OpStore, []lir.Value{dst}, []lir.Value{src})
	case srcLoc == locMemory:
		return lir.NewInstruction(lir.OpLoad, []lir.Value{dst}, []lir.Value{src})
	default:
		return lir.NewInstruction(lir.OpMov, []lir.Value{dst}, []lir.Value{src})
	}
}

func loadInto(dst, src lir.Value) *lir.Instruction {
	if loc, _ := locationOf(src); loc == locMemory {
		return lir.NewInstruction(lir.OpLoad, []lir.Value{dst}, []lir.Value{src})
	}
	return lir.NewInstruction(lir.OpMov, []lir.Value{dst}, []lir.Value{src})
}

func storeFrom(dst, src lir.Value) *lir.Instruction {
	if loc, _ := locationOf(dst); loc == locMemory {
		return lir.NewInstruction(lir.OpStore, []lir.Value{dst}, []lir.Value{src})
	}
	return lir.NewInstruction(lir.OpMov, []lir.Value{dst}, []lir.Value{src})
}
