package regalloc

import (
	"fmt"

	"github.com/corebackend/backend/pkg/conflictmap"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/liveness"
)

// CheckConflicts cross-checks a completed Run's assignments against the
// conflict map (component M) built from the same liveness collection:
// two virtual registers that are live simultaneously anywhere in f must
// never have been resolved to the same physical register at any block
// exit. The allocator's own tracker already prevents this by
// construction (a physical busy with one live vreg is never handed to
// another), so this is a redundant, cheap self-check rather than a load-
// bearing step of allocation itself — its purpose is to reject a bad
// assignment, not to produce one.
func CheckConflicts(f *lir.Function, live *liveness.Collection[*lir.BasicBlock, lir.Value], assignments *Assignments) error {
	m := conflictmap.Build(f, live)
	vars := live.Vars()

	for _, b := range f.BasicBlocks() {
		for i, v1 := range vars {
			p1 := assignments.AllocationOf(b, v1)
			if !p1.IsPhysical() {
				continue
			}
			for _, v2 := range vars[i+1:] {
				p2 := assignments.AllocationOf(b, v2)
				if !p2.IsPhysical() || p1 != p2 {
					continue
				}
				if m.IsConflict(v1, v2) {
					return fmt.Errorf("regalloc: block %d: conflicting virtual registers %v and %v were both assigned physical %v", b.ID(), v1, v2, p1)
				}
			}
		}
	}
	return nil
}
