package lir

import "testing"

func TestValuePackingRoundTrips(t *testing.T) {
	v := NewVirtualRegister(Integer, Size64, 12345)
	if v.Kind() != VirtualRegister || v.Size() != Size64 || v.Type() != Integer || v.Data() != 12345 {
		t.Fatalf("unexpected packed fields: kind=%v size=%v type=%v data=%d", v.Kind(), v.Size(), v.Type(), v.Data())
	}
}

func TestValueEqualityIsFullBitPattern(t *testing.T) {
	a := NewRegister(Size32, 3)
	b := NewRegister(Size32, 3)
	c := NewRegister(Size64, 3)
	if a != b {
		t.Fatal("expected identical packed values to be equal")
	}
	if a == c {
		t.Fatal("expected values differing by size to be unequal")
	}
}

func TestImmediateNegativeDataSignExtends(t *testing.T) {
	v := NewImmediate(Size32, -1)
	if v.Data() != -1 {
		t.Fatalf("expected sign-extended -1, got %d", v.Data())
	}
	v2 := NewImmediate(Size32, minimumImmediate)
	if v2.Data() != minimumImmediate {
		t.Fatalf("expected %d, got %d", minimumImmediate, v2.Data())
	}
}

func TestDataOutOfImmediateRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range payload")
		}
	}()
	NewImmediate(Size32, maximumImmediate)
}

func TestCanBeImmediate(t *testing.T) {
	if !CanBeImmediate(0) || !CanBeImmediate(maximumImmediate - 1) || !CanBeImmediate(minimumImmediate) {
		t.Fatal("expected boundary values to be representable as immediates")
	}
	if CanBeImmediate(maximumImmediate) || CanBeImmediate(minimumImmediate - 1) {
		t.Fatal("expected out-of-range values to require a Literal")
	}
}

func TestVoidValue(t *testing.T) {
	if !NewVoid().IsVoid() {
		t.Fatal("expected NewVoid to be void")
	}
}
