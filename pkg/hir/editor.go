package hir

import "github.com/corebackend/backend/pkg/graph"

// Editor mutates a Function's block graph and value lists, the HIR
// counterpart of lir.Editor. It enters edit mode for one block at a
// time: NewPhi/NewParameter/NewLiteral/NewOp operate on the block
// passed to Edit; structural
// block-graph edits (NewBasicBlock/AddEdge/RemoveEdge/SetEntry/SetExit)
// are not bound to the current block. This is the construction surface
// a Translator implementation builds a function's SSA graph through;
// producing a well-formed graph through it is the translator's
// responsibility, checked afterward by Commit.
type Editor struct {
	function    *Function
	graphEditor *graph.Editor[*BasicBlock]
	current     *BasicBlock
}

// NewEditor returns an Editor over f.
func NewEditor(f *Function) *Editor {
	return &Editor{function: f, graphEditor: graph.NewEditor(f.graph)}
}

// Edit enters edit mode for block b.
func (e *Editor) Edit(b *BasicBlock) {
	if b != nil && b.function != e.function {
		panic("hir: block does not belong to this function")
	}
	e.current = b
}

// Exit leaves edit mode.
func (e *Editor) Exit() { e.current = nil }

func (e *Editor) requireCurrent() *BasicBlock {
	if e.current == nil {
		panic("hir: no block is being edited; call Edit first")
	}
	return e.current
}

// NewBasicBlock allocates a fresh block and appends it to the
// function's block graph.
func (e *Editor) NewBasicBlock() *BasicBlock {
	b := e.function.newBasicBlock()
	e.graphEditor.AppendNode(b)
	return b
}

// InsertBasicBlock allocates a fresh block positioned immediately
// before refBlock in the function's block list.
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

// NewPhi creates an empty phi value (no operands yet — add them with
// AddPhiOperand, one per predecessor) in the block currently being
// edited.
func (e *Editor) NewPhi(t Type) *Value {
	b := e.requireCurrent()
	v := &Value{id: e.function.newValue(), Kind: ValuePhi, Type: t, block: b}
	b.phis.Append(v)
	return v
}

// AddPhiOperand appends operand to phi's operand list, in the same
// order its predecessor appears in Predecessors() — the order Validate
// checks against.
func (e *Editor) AddPhiOperand(phi, operand *Value) {
	phi.Operands = append(phi.Operands, operand)
}

// NewParameter creates a value reading the paramIndex'th argument of
// the function's declared Signature, in the block currently being
// edited.
func (e *Editor) NewParameter(paramIndex int) *Value {
	b := e.requireCurrent()
	t := e.function.Signature.Parameters[paramIndex]
	v := &Value{id: e.function.newValue(), Kind: ValueParameter, Type: t, paramIndex: paramIndex, block: b}
	b.values.Append(v)
	return v
}

// NewLiteral creates a constant value in the block currently being
// edited.
func (e *Editor) NewLiteral(t Type, constant int64) *Value {
	b := e.requireCurrent()
	v := &Value{id: e.function.newValue(), Kind: ValueLiteral, Type: t, Literal: constant, block: b}
	b.values.Append(v)
	return v
}

// NewOp creates an ordinary operation value applying op to operands, in
// the block currently being edited.
func (e *Editor) NewOp(op string, t Type, operands ...*Value) *Value {
	b := e.requireCurrent()
	v := &Value{id: e.function.newValue(), Kind: ValueOp, Type: t, Op: op, Operands: operands, block: b}
	b.values.Append(v)
	return v
}

// Commit runs Validate over the whole function. It does not clear edit
// state; callers may continue editing after a successful Commit.
func (e *Editor) Commit() error {
	return e.function.Validate()
}
