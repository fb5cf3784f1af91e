package lir

import (
	"fmt"
	"strings"
)

// printValue renders one operand the way
// elang/lir/printer_generic.cc's GenericPrintableValue operator<<
// does: a short kind-tagged tag plus its packed data, with no type or
// size decoration (that detail lives in Value.String's own, more
// verbose format, used for debug prints rather than this dump).
func printValue(v Value) string {
	switch v.Kind() {
	case Argument:
		return fmt.Sprintf("arg[%d]", v.Data())
	case Immediate:
		return fmt.Sprintf("#%d", v.Data())
	case Parameter:
		return fmt.Sprintf("param[%d]", v.Data())
	case PhysicalRegister:
		if v.IsFloat() {
			return fmt.Sprintf("F%d", v.Data())
		}
		return fmt.Sprintf("R%d", v.Data())
	case VirtualRegister:
		if v.IsFloat() {
			return fmt.Sprintf("%%f%d", v.Data())
		}
		return fmt.Sprintf("%%r%d", v.Data())
	case StackSlot:
		return fmt.Sprintf("sp[%d]", v.Data())
	case LiteralRef:
		return fmt.Sprintf("lit[%d]", v.Data())
	case Void:
		return "void"
	default:
		return fmt.Sprintf("UNSUPPORTED(%v)", v)
	}
}

// printInstruction renders one instruction as "<mnemonic> <outputs> =
// <inputs>", the same shape GenericPrintableInstruction's operator<<
// builds. A phi's per-predecessor operands are printed as plain values
// in predecessor order; the predecessor block itself isn't named,
// matching the source's own phi handling (it has no special case for
// OpPhi beyond instr->inputs(), which for this port means PhiInputs).
func printInstruction(instr *Instruction) string {
	var b strings.Builder
	b.WriteString(instr.Opcode.String())

	sep := " "
	for _, out := range instr.Outputs {
		b.WriteString(sep)
		b.WriteString(printValue(out))
		sep = ", "
	}
	b.WriteString(" =")

	sep = " "
	if instr.Opcode.IsPhi() {
		for _, in := range instr.PhiInputs {
			b.WriteString(sep)
			b.WriteString(printValue(in.Value))
			sep = ", "
		}
	} else {
		for _, in := range instr.Inputs {
			b.WriteString(sep)
			b.WriteString(printValue(in))
			sep = ", "
		}
	}
	return b.String()
}

// Print renders f as a textual CFG dump: one "block N:" header per
// basic block, its predecessor/successor block IDs, and every phi and
// instruction in order. This is the generic printer
// elang/lir/printer_generic.{h,cc} provides for debugging, used here
// by cmd/corebackend's --dump-lir flag and by tests asserting pipeline
// shape without depending on exact byte output.
func Print(f *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s\n", f.Name)
	for _, block := range f.BasicBlocks() {
		fmt.Fprintf(&b, "block %d:", block.ID())
		if preds := block.Predecessors(); len(preds) > 0 {
			b.WriteString(" preds[")
			for i, p := range preds {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%d", p.ID())
			}
			b.WriteString("]")
		}
		if succs := block.Successors(); len(succs) > 0 {
			b.WriteString(" succs[")
			for i, s := range succs {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%d", s.ID())
			}
			b.WriteString("]")
		}
		b.WriteString("\n")
		for _, instr := range block.All() {
			b.WriteString("  ")
			b.WriteString(printInstruction(instr))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// String implements fmt.Stringer by delegating to Print, so a
// *Function prints its full CFG dump wherever it's interpolated into a
// format string (log lines, test failure messages).
func (f *Function) String() string {
	return Print(f)
}
