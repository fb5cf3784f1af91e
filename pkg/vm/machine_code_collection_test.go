package vm

import "testing"

func installRet(t *testing.T, pool *MemoryPool, imm byte) *MachineCodeFunction {
	t.Helper()
	// MOV EAX, imm ; RET
	code := []byte{0xB8, imm, 0x00, 0x00, 0x00, 0xC3}
	fn, err := Install(pool, code, nil)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	return fn
}

// TestCollectionRoundTripsByNameAndAddress installs two functions and
// confirms both lookup paths MachineCodeCollection exposes find them.
func TestCollectionRoundTripsByNameAndAddress(t *testing.T) {
	pool, err := NewMemoryPool(KindCode, DefaultAlignment)
	if err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	defer pool.Close()

	coll := NewMachineCodeCollection()
	one := installRet(t, pool, 1)
	two := installRet(t, pool, 2)

	if err := coll.Install("One", one); err != nil {
		t.Fatalf("Install One: %v", err)
	}
	if err := coll.Install("Two", two); err != nil {
		t.Fatalf("Install Two: %v", err)
	}

	if got, ok := coll.FunctionByName("One"); !ok || got != one {
		t.Fatalf("FunctionByName(One) = %v, %v", got, ok)
	}
	if got, ok := coll.FunctionByName("Two"); !ok || got != two {
		t.Fatalf("FunctionByName(Two) = %v, %v", got, ok)
	}
	if _, ok := coll.FunctionByName("Missing"); ok {
		t.Fatalf("FunctionByName(Missing) unexpectedly found something")
	}

	if got, ok := coll.FunctionByAddress(one.Address()); !ok || got != one {
		t.Fatalf("FunctionByAddress(one) = %v, %v", got, ok)
	}
	// An address one byte into the function's code still resolves to
	// it, confirming the floor-then-range-check lookup (rather than
	// requiring an exact entry-point match).
	if got, ok := coll.FunctionByAddress(one.Address() + 1); !ok || got != one {
		t.Fatalf("FunctionByAddress(one+1) = %v, %v", got, ok)
	}
}

// TestCollectionRejectsDuplicateName mirrors RegisterFunction's
// DCHECK(!name_map_.count(name)) as a returned error instead of a
// crash, the idiomatic Go way to surface a caller mistake.
func TestCollectionRejectsDuplicateName(t *testing.T) {
	pool, err := NewMemoryPool(KindCode, DefaultAlignment)
	if err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	defer pool.Close()

	coll := NewMachineCodeCollection()
	fn := installRet(t, pool, 1)
	if err := coll.Install("Dup", fn); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	other := installRet(t, pool, 2)
	if err := coll.Install("Dup", other); err == nil {
		t.Fatalf("expected an error installing a second function under the same name")
	}
}

// TestFunctionByAddressMissesOutsideAnyFunction confirms an address
// that falls before the first installed function, or past the end of
// the last one, reports not-found rather than the nearest neighbor.
func TestFunctionByAddressMissesOutsideAnyFunction(t *testing.T) {
	pool, err := NewMemoryPool(KindCode, DefaultAlignment)
	if err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	defer pool.Close()

	coll := NewMachineCodeCollection()
	fn := installRet(t, pool, 1)
	if err := coll.Install("Only", fn); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, ok := coll.FunctionByAddress(fn.Address() - 1); ok {
		t.Fatalf("address before the function unexpectedly resolved")
	}
	if _, ok := coll.FunctionByAddress(fn.Address() + uintptr(fn.CodeSize())); ok {
		t.Fatalf("address past the function's end unexpectedly resolved")
	}
}
