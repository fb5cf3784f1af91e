// Package critedge splits every critical edge, whether or not its target
// block has phis, the editing pass that runs right after LIR
// construction so every later analysis sees a graph with no critical
// edges.
package critedge

import "github.com/corebackend/backend/pkg/lir"

// Run splits every critical edge (P -> B) where P has multiple successors
// and B has multiple predecessors: a fresh block X carrying a single
// unconditional jump to B is inserted between them, P's successor edge is
// redirected from B to X, and every phi in B that names P as a predecessor
// is rewritten to name X instead. e must not be mid-edit.
func Run(e *lir.Editor, f *lir.Function) {
	for _, b := range f.BasicBlocks() {
		if len(b.Predecessors()) < 2 {
			continue
		}
		for _, p := range append([]*lir.BasicBlock(nil), b.Predecessors()...) {
			if len(p.Successors()) < 2 {
				continue
			}
			splitEdge(e, f, p, b)
		}
	}
}

func splitEdge(e *lir.Editor, f *lir.Function, p, b *lir.BasicBlock) {
	x := e.NewBasicBlock()

	e.RemoveEdge(p, b)
	e.AddEdge(p, x)
	e.AddEdge(x, b)

	e.Edit(x)
	e.AppendInstruction(lir.NewInstruction(lir.OpJump, nil, nil))
	e.Exit()

	for _, phi := range b.Phis() {
		if v, ok := phi.InputFrom(p); ok {
			phi.RebindInput(p, x, v)
		}
	}
}
