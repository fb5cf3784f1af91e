package lir

import (
	"fmt"

	"github.com/corebackend/backend/pkg/graph"
	"github.com/corebackend/backend/pkg/zone"
)

// Editor mutates a Function's blocks and instructions. It enters edit
// mode for one block at a time: AppendInstruction/InsertInstruction/
// RemoveInstruction operate on the block passed to Edit; a cross-block
// edit requires leaving the current block (Edit again) first. Structural
// block-graph edits (NewBasicBlock/AddEdge/RemoveEdge) are not bound to
// the current block. Commit runs the validator described in 4.9.3.
type Editor struct {
	function    *Function
	graphEditor *graph.Editor[*BasicBlock]
	current     *BasicBlock
}

// NewEditor returns an Editor over f.
func NewEditor(f *Function) *Editor {
	return &Editor{function: f, graphEditor: graph.NewEditor(f.graph)}
}

// Edit enters edit mode for block b. Must be called before
// Append/Insert/RemoveInstruction.
func (e *Editor) Edit(b *BasicBlock) {
	if b != nil && b.function != e.function {
		panic("lir: block does not belong to this function")
	}
	e.current = b
}

// Exit leaves edit mode.
func (e *Editor) Exit() { e.current = nil }

func (e *Editor) requireCurrent() *BasicBlock {
	if e.current == nil {
		panic("lir: no block is being edited; call Edit first")
	}
	return e.current
}

// NewBasicBlock allocates a fresh block and appends it to the function's
// block graph.
func (e *Editor) NewBasicBlock() *BasicBlock {
	b := e.function.newBasicBlock()
	e.graphEditor.AppendNode(b)
	return b
}

// InsertBasicBlock allocates a fresh block positioned immediately before
// refBlock in the function's block list.
func (e *Editor) InsertBasicBlock(refBlock *BasicBlock) *BasicBlock {
	b := e.function.newBasicBlock()
	e.graphEditor.InsertNode(b, refBlock)
	return b
}

// AddEdge adds a control-flow edge from -> to.
func (e *Editor) AddEdge(from, to *BasicBlock) { e.graphEditor.AddEdge(from, to) }

// RemoveEdge removes a control-flow edge from -> to.
func (e *Editor) RemoveEdge(from, to *BasicBlock) { e.graphEditor.RemoveEdge(from, to) }

// SetEntry designates the function's entry block.
func (e *Editor) SetEntry(b *BasicBlock) { e.function.graph.SetEntry(b) }

// SetExit designates the function's exit block.
func (e *Editor) SetExit(b *BasicBlock) { e.function.graph.SetExit(b) }

// AppendInstruction appends inst to the block currently being edited.
// Phi instructions are appended to the phi list; everything else to the
// non-phi list.
func (e *Editor) AppendInstruction(inst *Instruction) {
	b := e.requireCurrent()
	inst.block = b
	if inst.Opcode.IsPhi() {
		inst.position = b.phis.Len()
		b.phis.Append(inst)
		return
	}
	inst.position = b.phis.Len() + b.instructions.Len()
	b.instructions.Append(inst)
}

// InsertInstruction inserts inst immediately before ref within the
// current block; ref must belong to the same list (phi or non-phi) as
// inst.
func (e *Editor) InsertInstruction(inst, ref *Instruction) {
	b := e.requireCurrent()
	inst.block = b
	if inst.Opcode.IsPhi() {
		insertBefore(b.phis, inst, ref)
	} else {
		insertBefore(b.instructions, inst, ref)
	}
	renumber(b)
}

// RemoveInstruction removes inst from the current block.
func (e *Editor) RemoveInstruction(inst *Instruction) {
	b := e.requireCurrent()
	if inst.Opcode.IsPhi() {
		removeInstruction(b.phis, inst)
	} else {
		removeInstruction(b.instructions, inst)
	}
	inst.block = nil
	renumber(b)
}

// insertBefore finds ref's index in list and inserts inst there,
// shifting ref (and everything after it) one slot to the right.
func insertBefore(list *zone.List[*Instruction], inst, ref *Instruction) {
	for i, x := range list.Items() {
		if x == ref {
			list.InsertAt(i, inst)
			return
		}
	}
	panic("lir: InsertInstruction: ref instruction not found in this block's list")
}

// removeInstruction finds inst's index in list and deletes it.
func removeInstruction(list *zone.List[*Instruction], inst *Instruction) {
	for i, x := range list.Items() {
		if x == inst {
			list.RemoveAt(i)
			return
		}
	}
	panic("lir: RemoveInstruction: instruction not found in this block")
}

func renumber(b *BasicBlock) {
	pos := 0
	for _, i := range b.phis.Items() {
		i.position = pos
		pos++
	}
	for _, i := range b.instructions.Items() {
		i.position = pos
		pos++
	}
}

// Commit runs the structural validator over the whole function. It does
// not clear edit state; callers may continue editing after a successful
// Commit.
func (e *Editor) Commit() error {
	return Validate(e.function)
}

// Validate checks the invariants from 4.9.3: every phi's operand count
// equals its block's predecessor count, the exit block has no
// successors, and every instruction correctly threads back to its
// owning block.
func Validate(f *Function) error {
	for _, b := range f.BasicBlocks() {
		predCount := len(b.Predecessors())
		for _, phi := range b.Phis() {
			if len(phi.PhiInputs) != predCount {
				return fmt.Errorf("lir: block %d: phi has %d operands, want %d (predecessor count)", b.ID(), len(phi.PhiInputs), predCount)
			}
			seen := make(map[*BasicBlock]struct{}, predCount)
			for _, in := range phi.PhiInputs {
				if _, dup := seen[in.Block]; dup {
					return fmt.Errorf("lir: block %d: phi has duplicate operand for predecessor %d", b.ID(), in.Block.ID())
				}
				seen[in.Block] = struct{}{}
			}
			for _, pred := range b.Predecessors() {
				if _, ok := seen[pred]; !ok {
					return fmt.Errorf("lir: block %d: phi is missing an operand for predecessor %d", b.ID(), pred.ID())
				}
			}
		}
		for _, inst := range b.All() {
			if inst.block != b {
				return fmt.Errorf("lir: block %d: instruction does not point back to its block", b.ID())
			}
		}
	}
	if exit := f.Exit(); len(exit.Successors()) != 0 {
		return fmt.Errorf("lir: exit block %d must have no successors", exit.ID())
	}
	return nil
}
