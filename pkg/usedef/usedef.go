// Package usedef builds the per-virtual-register user lists consulted by
// the register allocator when deciding which live value to spill.
package usedef

import "github.com/corebackend/backend/pkg/lir"

// List maps each virtual register to the instructions that consume it.
type List struct {
	users map[lir.Value][]*lir.Instruction
}

// UsersOf returns the instructions that read v, in scan order. v must be
// a virtual register that was actually used somewhere in the function
// the list was built from; an unused register returns an empty slice.
func (l *List) UsersOf(v lir.Value) []*lir.Instruction {
	return l.users[v]
}

// Build scans every instruction of f and records, for each virtual
// register appearing as an input, the instructions that use it.
func Build(f *lir.Function) *List {
	l := &List{users: make(map[lir.Value][]*lir.Instruction)}
	for _, b := range f.BasicBlocks() {
		for _, inst := range b.All() {
			if inst.Opcode.IsPhi() {
				for _, in := range inst.PhiInputs {
					recordUse(l, in.Value, inst)
				}
				continue
			}
			for _, in := range inst.Inputs {
				recordUse(l, in, inst)
			}
		}
	}
	return l
}

func recordUse(l *List, v lir.Value, inst *lir.Instruction) {
	if !v.IsVirtual() {
		return
	}
	l.users[v] = append(l.users[v], inst)
}
