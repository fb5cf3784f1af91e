package compiler

import (
	"context"
	"testing"

	"github.com/corebackend/backend/pkg/clog"
	"github.com/corebackend/backend/pkg/config"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/regalloc"
)

// integerClasses gives the allocator the same usable pool
// pkg/codegen's own straight-line test uses, leaving RAX (0) free for
// the straight-line tests below to land a sum in without any spill
// churn from a too-small pool.
var integerClasses = regalloc.Classes{Integer: []int32{0, 1, 2, 3, 6, 7}}

func newTestCompilation(t *testing.T) *Compilation {
	t.Helper()
	cfg := &config.PipelineConfig{}
	cfg.Pipeline.WorkerCount = 1
	cfg.Pipeline.LivenessIterationCap = 100
	cfg.VM.CodePoolSegmentSize = 4096
	cfg.VM.DataPoolSegmentSize = 4096
	comp, err := NewCompilation(cfg, &clog.NullLogger{})
	if err != nil {
		t.Fatalf("NewCompilation: %v", err)
	}
	t.Cleanup(func() { comp.Close() })
	return comp
}

// buildAddFunction constructs a straight-line function that reads its
// two incoming integer arguments directly out of the System V argument
// registers (RDI, RSI — physical register numbers 7 and 6, the same
// numbering pkg/vm's native call trampoline assumes) into fresh virtual
// registers, adds them, and returns the sum. Because register
// allocation never touches a non-virtual instruction input (it only
// resolves virtual ones), these two physical reads pass straight
// through to the emitter unchanged and are never reassigned to a
// different virtual register before being consumed two instructions
// later.
func buildAddFunction() *lir.Function {
	f := lir.NewFunction("add")
	e := lir.NewEditor(f)
	entry := e.NewBasicBlock()
	e.SetEntry(entry)
	e.SetExit(entry)

	a := f.NewVirtualRegister(lir.Integer, lir.Size64)
	b := f.NewVirtualRegister(lir.Integer, lir.Size64)
	sum := f.NewVirtualRegister(lir.Integer, lir.Size64)

	e.Edit(entry)
	e.AppendInstruction(lir.NewInstruction(lir.OpMov, []lir.Value{a}, []lir.Value{lir.NewRegister(lir.Size64, 7)}))
	e.AppendInstruction(lir.NewInstruction(lir.OpMov, []lir.Value{b}, []lir.Value{lir.NewRegister(lir.Size64, 6)}))
	e.AppendInstruction(lir.NewInstruction(lir.OpAdd, []lir.Value{sum}, []lir.Value{a, b}))
	e.AppendInstruction(lir.NewInstruction(lir.OpRet, nil, []lir.Value{sum}))
	e.Exit()

	return f
}

// TestRunCompilesInstallsAndInvokesAnAddFunction is this backend's
// version of the end-to-end add-function regression scenario: compile
// a two-parameter integer function through every pipeline phase,
// install it, and invoke it for several argument pairs, checking the
// native call actually returns their sum.
func TestRunCompilesInstallsAndInvokesAnAddFunction(t *testing.T) {
	comp := newTestCompilation(t)
	pipeline := NewPipeline(comp, integerClasses)

	result, err := pipeline.Run(context.Background(), "add", buildAddFunction())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Installed == nil {
		t.Fatal("expected an installed function")
	}
	if len(result.Passes) != 6 {
		t.Fatalf("expected 6 pass records, got %d", len(result.Passes))
	}
	for _, pass := range result.Passes {
		if pass.Duration() < 0 {
			t.Fatalf("phase %q reported a negative duration", pass.Name())
		}
	}

	fn, ok := comp.MachineCode.FunctionByName("add")
	if !ok {
		t.Fatal("expected \"add\" to be registered in the machine-code collection")
	}

	cases := []struct{ x, y, want int64 }{
		{2, 3, 5},
		{-1, 1, 0},
		{100, 250, 350},
		{0, 0, 0},
	}
	for _, c := range cases {
		got := fn.Invoke(c.x, c.y)
		if got != c.want {
			t.Errorf("Invoke(%d, %d) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

// TestRunRejectsASecondInstallUnderTheSameName exercises the
// machine-code collection's name-collision guard through the pipeline,
// rather than directly against pkg/vm, so the error kind it surfaces
// through Pipeline.Run is also covered.
func TestRunRejectsASecondInstallUnderTheSameName(t *testing.T) {
	comp := newTestCompilation(t)
	pipeline := NewPipeline(comp, integerClasses)
	ctx := context.Background()

	if _, err := pipeline.Run(ctx, "add", buildAddFunction()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := pipeline.Run(ctx, "add", buildAddFunction()); err == nil {
		t.Fatal("expected the second install under the same name to fail")
	}
}

// TestCollectVirtualRegistersFindsEveryOperand checks the liveness var
// list the pipeline builds covers every vreg an instruction reads or
// writes, including ones that only ever appear as an input.
func TestCollectVirtualRegistersFindsEveryOperand(t *testing.T) {
	f := buildAddFunction()
	vars := collectVirtualRegisters(f)
	if len(vars) != 3 {
		t.Fatalf("expected 3 virtual registers, got %d: %v", len(vars), vars)
	}
}
