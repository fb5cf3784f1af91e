package textir

import (
	"strings"
	"testing"

	"github.com/corebackend/backend/pkg/lir"
)

func TestParseBuildsAStraightLineAddFunction(t *testing.T) {
	src := `
		function add
		arg a
		arg b
		add sum = a, b
		ret sum
	`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Name != "add" {
		t.Fatalf("Name = %q, want add", f.Name)
	}
	blocks := f.BasicBlocks()
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	insts := blocks[0].All()
	if len(insts) != 2 {
		t.Fatalf("got %d instructions, want 2 (add, ret)", len(insts))
	}
	if insts[0].Opcode != lir.OpAdd {
		t.Errorf("insts[0].Opcode = %v, want OpAdd", insts[0].Opcode)
	}
	if !insts[0].Inputs[0].IsPhysical() || !insts[0].Inputs[1].IsPhysical() {
		t.Errorf("add's operands must resolve to the declared physical argument registers, got %v", insts[0].Inputs)
	}
	if insts[1].Opcode != lir.OpRet {
		t.Errorf("insts[1].Opcode = %v, want OpRet", insts[1].Opcode)
	}
	if !insts[1].Inputs[0].IsVirtual() {
		t.Errorf("ret must read the virtual register add defined, got %v", insts[1].Inputs[0])
	}
}

func TestParseRejectsUnknownInstructions(t *testing.T) {
	_, err := Parse("function f\nbogus x = a, b\n")
	if err == nil {
		t.Fatal("expected an error for an unrecognized instruction")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q should name the offending keyword", err)
	}
}

func TestParseRejectsAnUndeclaredOperand(t *testing.T) {
	_, err := Parse("function f\nret nope\n")
	if err == nil {
		t.Fatal("expected an error referencing an undeclared name")
	}
}

func TestParseRequiresAFunctionLine(t *testing.T) {
	_, err := Parse("ret #0\n")
	if err == nil {
		t.Fatal("expected an error when no \"function\" line is present")
	}
}

func TestParseSupportsLiteralsAndBitwiseOps(t *testing.T) {
	f, err := Parse(`
		function k
		lit x = #41
		vreg y
		bitor y = x, #1
		ret y
	`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	insts := f.BasicBlocks()[0].All()
	if len(insts) != 3 {
		t.Fatalf("got %d instructions, want 3 (lit, bitor, ret)", len(insts))
	}
	if insts[0].Opcode != lir.OpLit || insts[1].Opcode != lir.OpBitOr {
		t.Errorf("unexpected opcodes: %v, %v", insts[0].Opcode, insts[1].Opcode)
	}
	if !insts[1].Inputs[1].IsImmediate() {
		t.Errorf("bitor's second operand must be the immediate literal, got %v", insts[1].Inputs[1])
	}
}
