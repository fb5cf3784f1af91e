package lir

import "testing"

// TestPrintRendersBlocksInstructionsAndEdges checks the generic dump
// names every block's predecessor/successor IDs and every instruction's
// opcode, without pinning down the exact register numbers a later
// allocation pass would choose (Print runs directly on an unallocated
// function, before any virtual register has a physical home).
func TestPrintRendersBlocksInstructionsAndEdges(t *testing.T) {
	f := NewFunction("example")
	e := NewEditor(f)
	entry := e.NewBasicBlock()
	exit := e.NewBasicBlock()
	e.SetEntry(entry)
	e.SetExit(exit)

	v := f.NewVirtualRegister(Integer, Size32)

	e.Edit(entry)
	e.AppendInstruction(NewInstruction(OpLit, []Value{v}, []Value{NewImmediate(Size32, 7)}))
	e.AppendInstruction(NewInstruction(OpJump, nil, nil))
	e.AddEdge(entry, exit)

	e.Edit(exit)
	e.AppendInstruction(NewInstruction(OpRet, nil, []Value{v}))
	e.Exit()

	out := Print(f)

	if got := f.String(); got != out {
		t.Fatalf("Function.String() must delegate to Print; got %q want %q", got, out)
	}

	wantSubstrings := []string{
		"function example",
		"block 0:",
		"succs[1]",
		"block 1:",
		"preds[0]",
		"lit",
		"jump",
		"ret",
		"#7",
		"%r0",
	}
	for _, want := range wantSubstrings {
		if !containsString(out, want) {
			t.Errorf("Print output missing %q, got:\n%s", want, out)
		}
	}
}

// TestPrintValueCoversEveryOperandKind exercises printValue's full
// switch directly, the way the source's GenericPrintableValue
// operator<< is exercised in elang's own unit tests.
func TestPrintValueCoversEveryOperandKind(t *testing.T) {
	cases := []struct {
		value Value
		want  string
	}{
		{NewArgument(Integer, Size32, 2), "arg[2]"},
		{NewImmediate(Size32, 5), "#5"},
		{NewParameter(Integer, Size32, 1), "param[1]"},
		{NewRegister(Size32, 3), "R3"},
		{NewFloatRegister(Size32, 3), "F3"},
		{NewVirtualRegister(Integer, Size32, 4), "%r4"},
		{NewVirtualRegister(Float, Size32, 4), "%f4"},
		{NewStackSlot(Size32, 0), "sp[0]"},
		{NewLiteral(Size32, 1), "lit[1]"},
		{NewVoid(), "void"},
	}
	for _, c := range cases {
		if got := printValue(c.value); got != c.want {
			t.Errorf("printValue(%v) = %q, want %q", c.value, got, c.want)
		}
	}
}

func containsString(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
