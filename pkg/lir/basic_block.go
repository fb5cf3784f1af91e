package lir

import "github.com/corebackend/backend/pkg/zone"

// BasicBlock is a basic block within a Function: a zone-owned list of
// phi instructions followed by non-phi instructions. Predecessor and
// successor edges are owned by the Function's block graph, not by the
// block itself.
type BasicBlock struct {
	id           int
	function     *Function
	phis         *zone.List[*Instruction]
	instructions *zone.List[*Instruction]
}

// ID returns a stable, function-unique identifier assigned at creation.
func (b *BasicBlock) ID() int { return b.id }

// Function returns the function this block belongs to.
func (b *BasicBlock) Function() *Function { return b.function }

// Phis returns the block's phi instructions, in order.
func (b *BasicBlock) Phis() []*Instruction { return b.phis.Items() }

// Instructions returns the block's non-phi instructions, in order.
func (b *BasicBlock) Instructions() []*Instruction { return b.instructions.Items() }

// All returns phis followed by non-phi instructions, the block's full
// instruction sequence.
func (b *BasicBlock) All() []*Instruction {
	out := make([]*Instruction, 0, b.phis.Len()+b.instructions.Len())
	out = append(out, b.phis.Items()...)
	out = append(out, b.instructions.Items()...)
	return out
}

// Predecessors returns the block's predecessors in the function graph.
func (b *BasicBlock) Predecessors() []*BasicBlock {
	return b.function.graph.Predecessors(b)
}

// Successors returns the block's successors in the function graph.
func (b *BasicBlock) Successors() []*BasicBlock {
	return b.function.graph.Successors(b)
}

// Terminator returns the block's last non-phi instruction, or nil if
// the block has none.
func (b *BasicBlock) Terminator() *Instruction {
	if b.instructions.Len() == 0 {
		return nil
	}
	return b.instructions.At(b.instructions.Len() - 1)
}
