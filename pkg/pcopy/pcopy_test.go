package pcopy

import (
	"testing"

	"github.com/corebackend/backend/pkg/lir"
)

func physical(n int32) lir.Value  { return lir.NewRegister(lir.Size32, n) }
func stackSlot(n int32) lir.Value { return lir.NewStackSlot(lir.Size32, n) }

// machine simulates executing the expanded instructions against a flat
// register/memory file seeded with arbitrary distinguishable values, so
// each test can assert the final state matches what the task set
// demanded without depending on a particular instruction encoding.
type machine struct {
	regs map[int32]int32
	mem  map[int32]int32
}

func newMachine() *machine {
	return &machine{regs: map[int32]int32{}, mem: map[int32]int32{}}
}

func (m *machine) read(v lir.Value) int32 {
	switch {
	case v.IsPhysical():
		return m.regs[v.Data()]
	case v.IsStackSlot():
		return m.mem[v.Data()]
	case v.IsImmediate():
		return v.Data()
	default:
		panic("unsupported operand in simulation")
	}
}

func (m *machine) write(v lir.Value, val int32) {
	switch {
	case v.IsPhysical():
		m.regs[v.Data()] = val
	case v.IsStackSlot():
		m.mem[v.Data()] = val
	default:
		panic("unsupported write target in simulation")
	}
}

func (m *machine) run(instructions []*lir.Instruction) {
	for _, inst := range instructions {
		switch inst.Opcode {
		case lir.OpMov, lir.OpLoad, lir.OpStore, lir.OpLit:
			m.write(inst.Outputs[0], m.read(inst.Inputs[0]))
		case lir.OpParallelCopy:
			a, b := inst.Outputs[0], inst.Outputs[1]
			va, vb := m.read(inst.Inputs[0]), m.read(inst.Inputs[1])
			m.write(a, va)
			m.write(b, vb)
		default:
			panic("unexpected opcode in expanded sequence: " + inst.Opcode.String())
		}
	}
}

func TestBasicCopiesNoCycle(t *testing.T) {
	e := NewExpander()
	e.AddTask(physical(0), physical(1))
	e.AddTask(physical(2), physical(1))
	e.AddTask(physical(4), physical(3))

	m := newMachine()
	m.regs[1] = 111
	m.regs[3] = 333

	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected a non-nil instruction sequence")
	}
	m.run(insts)
	if m.regs[0] != 111 || m.regs[2] != 111 || m.regs[4] != 333 {
		t.Fatalf("unexpected final state: %+v", m.regs)
	}
}

func TestPhysicalSwap(t *testing.T) {
	e := NewExpander()
	e.AddTask(physical(0), physical(1))
	e.AddTask(physical(1), physical(0))

	m := newMachine()
	m.regs[0] = 10
	m.regs[1] = 20

	insts := e.Expand()
	if insts == nil {
		t.Fatal("a pure register swap never needs scratch")
	}
	m.run(insts)
	if m.regs[0] != 20 || m.regs[1] != 10 {
		t.Fatalf("expected swapped registers, got %+v", m.regs)
	}
}

func TestPhysicalThreeCycleWithoutScratch(t *testing.T) {
	e := NewExpander()
	e.AddTask(physical(0), physical(1))
	e.AddTask(physical(1), physical(2))
	e.AddTask(physical(2), physical(0))

	m := newMachine()
	m.regs[0] = 10
	m.regs[1] = 20
	m.regs[2] = 30

	insts := e.Expand()
	if insts == nil {
		t.Fatal("a physical-only k-cycle is always realizable without scratch via swaps")
	}
	m.run(insts)
	if m.regs[0] != 20 || m.regs[1] != 30 || m.regs[2] != 10 {
		t.Fatalf("unexpected rotation result: %+v", m.regs)
	}
}

func TestMemorySwapRequiresTwoScratches(t *testing.T) {
	e := NewExpander()
	e.AddTask(stackSlot(0), stackSlot(1))
	e.AddTask(stackSlot(1), stackSlot(0))

	if got := e.Expand(); got != nil {
		t.Fatal("expected nil: a memory-to-memory swap needs scratch registers")
	}

	e.AddScratch(physical(2))
	if got := e.Expand(); got != nil {
		t.Fatal("expected nil: a memory-to-memory swap needs two scratch registers, not one")
	}

	e.AddScratch(physical(3))
	m := newMachine()
	m.mem[0] = 100
	m.mem[1] = 200

	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected a realizable sequence with two scratches")
	}
	m.run(insts)
	if m.mem[0] != 200 || m.mem[1] != 100 {
		t.Fatalf("unexpected final memory state: %+v", m.mem)
	}
}

func TestMemoryRotationOfThreeLocations(t *testing.T) {
	e := NewExpander()
	e.AddTask(stackSlot(0), stackSlot(1))
	e.AddTask(stackSlot(1), stackSlot(2))
	e.AddTask(stackSlot(2), stackSlot(0))
	e.AddScratch(physical(4))
	e.AddScratch(physical(5))

	m := newMachine()
	m.mem[0] = 1
	m.mem[1] = 2
	m.mem[2] = 3

	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected a realizable sequence with two scratches")
	}
	m.run(insts)
	if m.mem[0] != 2 || m.mem[1] != 3 || m.mem[2] != 1 {
		t.Fatalf("unexpected rotated memory state: %+v", m.mem)
	}
}

func TestMixedPhysicalAndMemoryCycle(t *testing.T) {
	e := NewExpander()
	e.AddTask(physical(0), physical(1))
	e.AddTask(physical(1), stackSlot(2))
	e.AddTask(stackSlot(2), physical(0))
	e.AddScratch(physical(3))
	e.AddScratch(physical(6))

	m := newMachine()
	m.regs[0] = 10
	m.regs[1] = 20
	m.mem[2] = 30

	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected a realizable sequence")
	}
	m.run(insts)
	if m.regs[0] != 20 || m.regs[1] != 30 || m.mem[2] != 10 {
		t.Fatalf("unexpected final state: regs=%+v mem=%+v", m.regs, m.mem)
	}
}

func TestStoreFreesItsSourceAsScratch(t *testing.T) {
	// r0 <- M1 <- r0 is a physical/memory 2-cycle needing a scratch; the
	// unrelated free task M2 <- r3 stores r3 out first, and per spec
	// 4.14 bullet 4 that frees r3 as scratch for the rest of expansion.
	e := NewExpander()
	e.AddTask(physical(0), stackSlot(1))
	e.AddTask(stackSlot(1), physical(0))
	e.AddTask(stackSlot(2), physical(3))

	m := newMachine()
	m.regs[0] = 10
	m.mem[1] = 20
	m.regs[3] = 30

	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected the store of r3 to free it as scratch for the r0/M1 swap")
	}
	m.run(insts)
	if m.regs[0] != 20 || m.mem[1] != 10 || m.mem[2] != 30 {
		t.Fatalf("unexpected final state: regs=%+v mem=%+v", m.regs, m.mem)
	}
}

func TestImmediateAndLiteralSources(t *testing.T) {
	e := NewExpander()
	e.AddTask(physical(1), lir.NewImmediate(lir.Size32, 42))
	e.AddTask(stackSlot(0), lir.NewImmediate(lir.Size32, 7))

	m := newMachine()
	insts := e.Expand()
	if insts == nil {
		t.Fatal("expected a realizable sequence for immediate sources")
	}
	m.run(insts)
	if m.regs[1] != 42 || m.mem[0] != 7 {
		t.Fatalf("unexpected final state: regs=%+v mem=%+v", m.regs, m.mem)
	}
}
