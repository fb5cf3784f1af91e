package hir

import (
	"fmt"

	"github.com/corebackend/backend/pkg/graph"
	"github.com/corebackend/backend/pkg/zone"
)

// Signature is the parameter/return type shape a Function's body must
// match, mirroring what Method.Signature reports for the method the
// function is the body of.
type Signature struct {
	Parameters []Type
	Return     Type
}

// Function is a zone-owned directed graph of basic blocks carrying an
// SSA-form value graph, spec.md §4.8's "function representation holding
// ordered basic blocks with value nodes." A Function on its own is just
// a container; producing a well-formed one (entry/exit wired, every phi
// operand count matching its block's predecessor count, every value's
// type consistent with Signature) is the translator's job. Validate
// checks part of that rather than enforcing it by construction: phi
// operand counts, parameter value types, and an exit block with no
// successors. It does not check non-parameter value types, and it
// assumes an exit block has been set.
type Function struct {
	zone.Owner

	Name      string
	Signature Signature

	graph             *graph.Graph[*BasicBlock]
	nextBlockID       int
	nextValueID       int32
}

func newFunction(name string, signature Signature) *Function {
	return &Function{Name: name, Signature: signature, graph: graph.New[*BasicBlock]()}
}

// Graph returns the function's block graph.
func (f *Function) Graph() *graph.Graph[*BasicBlock] { return f.graph }

// Entry returns the function's entry block.
func (f *Function) Entry() *BasicBlock { return f.graph.Entry() }

// Exit returns the function's exit block.
func (f *Function) Exit() *BasicBlock { return f.graph.Exit() }

// BasicBlocks returns the function's blocks in insertion order.
func (f *Function) BasicBlocks() []*BasicBlock { return f.graph.Nodes() }

func (f *Function) newBasicBlock() *BasicBlock {
	b := &BasicBlock{
		id:       f.nextBlockID,
		function: f,
		phis:     zone.NewList[*Value](f.Zone()),
		values:   zone.NewList[*Value](f.Zone()),
	}
	f.nextBlockID++
	return b
}

// newValue allocates a fresh function-unique value ID; ValueKind/Type/
// Operands are filled in by the Editor method that creates the value.
func (f *Function) newValue() int32 {
	id := f.nextValueID
	f.nextValueID++
	return id
}

// Validate checks the "contract the core relies on" spec.md §4.8
// states in full: every phi's operand count matches its block's
// predecessor count, every parameter value's type is consistent with
// the function's declared Signature, and the exit block has no
// successors — the same shape lir.Validate checks for the lower-level
// IR, applied one level up.
func (f *Function) Validate() error {
	for _, b := range f.graph.Nodes() {
		preds := len(b.Predecessors())
		for _, phi := range b.phis.Items() {
			if len(phi.Operands) != preds {
				return fmt.Errorf("hir: block %d phi %d has %d operands, want %d (predecessor count)",
					b.id, phi.id, len(phi.Operands), preds)
			}
		}
		for _, v := range b.values.Items() {
			if v.Kind == ValueParameter {
				if v.paramIndex < 0 || v.paramIndex >= len(f.Signature.Parameters) {
					return fmt.Errorf("hir: value %d is parameter %d, outside signature's %d parameters",
						v.id, v.paramIndex, len(f.Signature.Parameters))
				}
				want := f.Signature.Parameters[v.paramIndex]
				if v.Type != want {
					return fmt.Errorf("hir: parameter %d has type %v, signature declares %v", v.paramIndex, v.Type, want)
				}
			}
		}
	}
	if exit := f.Exit(); len(exit.Successors()) != 0 {
		return fmt.Errorf("hir: exit block %d must have no successors", exit.id)
	}
	return nil
}

// BasicBlock is a basic block within a Function's value graph: a list
// of phi values followed by ordinary values, the HIR-level counterpart
// of lir.BasicBlock. Predecessor and successor edges are owned by the
// Function's block graph, not by the block itself.
type BasicBlock struct {
	id       int
	function *Function
	phis     *zone.List[*Value]
	values   *zone.List[*Value]
}

// ID returns a stable, function-unique identifier assigned at creation.
func (b *BasicBlock) ID() int { return b.id }

// Function returns the function this block belongs to.
func (b *BasicBlock) Function() *Function { return b.function }

// Phis returns the block's phi values, in order.
func (b *BasicBlock) Phis() []*Value { return b.phis.Items() }

// Values returns the block's non-phi values, in order.
func (b *BasicBlock) Values() []*Value { return b.values.Items() }

// Predecessors returns the block's predecessors in the function graph.
func (b *BasicBlock) Predecessors() []*BasicBlock { return b.function.graph.Predecessors(b) }

// Successors returns the block's successors in the function graph.
func (b *BasicBlock) Successors() []*BasicBlock { return b.function.graph.Successors(b) }

// ValueKind distinguishes the handful of SSA node shapes this core
// needs to express and validate: a block-entry phi, a function
// parameter, a constant literal, and an ordinary operation applying an
// opcode to operands.
type ValueKind int

const (
	ValuePhi ValueKind = iota
	ValueParameter
	ValueLiteral
	ValueOp
)

// Value is one node of a Function's SSA value graph.
type Value struct {
	id         int32
	Kind       ValueKind
	Type       Type
	Operands   []*Value
	Op         string // opcode name, meaningful only when Kind == ValueOp
	Literal    int64  // constant payload, meaningful only when Kind == ValueLiteral
	paramIndex int    // signature index, meaningful only when Kind == ValueParameter
	block      *BasicBlock
}

// ID returns a stable, function-unique identifier assigned at creation.
func (v *Value) ID() int32 { return v.id }

// Block returns the basic block this value belongs to.
func (v *Value) Block() *BasicBlock { return v.block }
