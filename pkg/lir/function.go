package lir

import (
	"github.com/corebackend/backend/pkg/graph"
	"github.com/corebackend/backend/pkg/zone"
)

// Function is a zone-owned directed graph of basic blocks with a
// distinguished entry and exit block.
type Function struct {
	zone.Owner

	Name string

	graph        *graph.Graph[*BasicBlock]
	literals     LiteralTable
	nextBlockID  int
	nextVirtualRegister int32
}

// NewFunction returns an empty function ready to have blocks appended
// through an Editor.
func NewFunction(name string) *Function {
	f := &Function{Name: name, graph: graph.New[*BasicBlock]()}
	f.literals = newLiteralTable(f.Zone())
	return f
}

// Graph returns the function's block graph.
func (f *Function) Graph() *graph.Graph[*BasicBlock] { return f.graph }

// Entry returns the function's entry block.
func (f *Function) Entry() *BasicBlock { return f.graph.Entry() }

// Exit returns the function's exit block.
func (f *Function) Exit() *BasicBlock { return f.graph.Exit() }

// Literals returns the function's literal table.
func (f *Function) Literals() *LiteralTable { return &f.literals }

// newBasicBlock allocates a fresh block with a function-unique ID; it
// is not yet linked into the graph until an Editor appends it.
func (f *Function) newBasicBlock() *BasicBlock {
	b := &BasicBlock{
		id:           f.nextBlockID,
		function:     f,
		phis:         zone.NewList[*Instruction](f.Zone()),
		instructions: zone.NewList[*Instruction](f.Zone()),
	}
	f.nextBlockID++
	return b
}

// NewVirtualRegister allocates a fresh, function-unique virtual register
// of the given type and size.
func (f *Function) NewVirtualRegister(t Type, s Size) Value {
	id := f.nextVirtualRegister
	f.nextVirtualRegister++
	return NewVirtualRegister(t, s, id)
}

// BasicBlocks returns the function's blocks in insertion order.
func (f *Function) BasicBlocks() []*BasicBlock {
	return f.graph.Nodes()
}
