package x64

import (
	"bytes"
	"testing"
)

// TestDecodeKnownEncodings fixes three concrete byte sequences and their
// expected decoded form to the exact printed strings a disassembler
// would produce, grounded on operand_x64.cc's address/immediate/relative
// formatting.
func TestDecodeKnownEncodings(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want string
	}{
		{"mov mem8,reg8 disp8", []byte{0x88, 0x51, 0x01}, "MOV [RCX+1], DL"},
		{"mov reg64,imm32-as-c7", []byte{0x48, 0xC7, 0xC3, 0x01, 0x02, 0x03, 0x04}, "MOV RBX, 67305985"},
		{"jb rel32", []byte{0x0F, 0x82, 0x01, 0x02, 0x03, 0x04}, "JB RIP+67305985"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inst := Decode(c.code)
			if !inst.IsValid() {
				t.Fatalf("decode failed for %x", c.code)
			}
			if inst.Size != len(c.code) {
				t.Fatalf("decoded length %d, want %d (consumed too few/many bytes)", inst.Size, len(c.code))
			}
			if got := inst.String(); got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

// TestEncodeMatchesKnownBytes checks the other direction: building the
// same three instructions by hand must reproduce the exact bytes above,
// since the encoder is expected to choose the same form the decoder
// just read.
func TestEncodeMatchesKnownBytes(t *testing.T) {
	cases := []struct {
		name string
		inst Inst
		want []byte
	}{
		{
			"mov mem8,reg8 disp8",
			Inst{Mnemonic: Mov, Operands: []Operand{Addr(Size8, RCX, 1), Reg(RegisterOf(Size8, 2))}},
			[]byte{0x88, 0x51, 0x01},
		},
		{
			"mov reg64,imm32",
			Inst{Mnemonic: Mov, Operands: []Operand{Reg(RBX), Imm(Size64, 67305985)}},
			[]byte{0x48, 0xC7, 0xC3, 0x01, 0x02, 0x03, 0x04},
		},
		{
			"jb rel32",
			Inst{Mnemonic: Jcc, Cond: Below, Operands: []Operand{Rel(67305985)}},
			[]byte{0x0F, 0x82, 0x01, 0x02, 0x03, 0x04},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Encode(c.inst)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			if !bytes.Equal(got, c.want) {
				t.Fatalf("got % x, want % x", got, c.want)
			}
		})
	}
}

// TestRoundTripALUAndShift exercises the register-pool arithmetic and
// shift forms the code generator actually emits, encoding each then
// decoding the result back and checking the decoded mnemonic/operands
// agree with what was asked for.
func TestRoundTripALUAndShift(t *testing.T) {
	cases := []Inst{
		{Mnemonic: Add, Operands: []Operand{Reg(RegisterOf(Size32, 0)), Reg(RegisterOf(Size32, 1))}},
		{Mnemonic: Sub, Operands: []Operand{Reg(RAX), Imm(Size64, 42)}},
		{Mnemonic: Xor, Operands: []Operand{Reg(RegisterOf(Size32, 2)), Imm(Size32, 1000000)}},
		{Mnemonic: Cmp, Operands: []Operand{Reg(RegisterOf(Size32, 5)), Reg(RegisterOf(Size32, 6))}},
		{Mnemonic: Shl, Operands: []Operand{Reg(RegisterOf(Size32, 3)), Imm(Size8, 4)}},
		{Mnemonic: Shr, Operands: []Operand{Reg(RAX), Imm(Size8, 1)}},
	}
	for _, want := range cases {
		encoded, err := Encode(want)
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}
		got := Decode(encoded)
		if !got.IsValid() {
			t.Fatalf("decode of % x failed", encoded)
		}
		if got.Size != len(encoded) {
			t.Fatalf("decode consumed %d bytes, encoder produced %d", got.Size, len(encoded))
		}
		if got.Mnemonic != want.Mnemonic {
			t.Fatalf("mnemonic got %v want %v", got.Mnemonic, want.Mnemonic)
		}
		if len(got.Operands) != len(want.Operands) {
			t.Fatalf("operand count got %d want %d", len(got.Operands), len(want.Operands))
		}
		for i := range want.Operands {
			if got.Operands[i].String() != want.Operands[i].String() {
				t.Fatalf("operand %d got %q want %q", i, got.Operands[i].String(), want.Operands[i].String())
			}
		}
	}
}

// TestRoundTripLoadStore covers the spill/reload addressing forms the
// register allocator relies on: a stack-relative store and reload
// through RBP, which must survive an encode/decode cycle unchanged.
func TestRoundTripLoadStore(t *testing.T) {
	store := Inst{Mnemonic: Mov, Operands: []Operand{Addr(Size32, RBP, -8), Reg(RegisterOf(Size32, 0))}}
	encoded, err := Encode(store)
	if err != nil {
		t.Fatalf("encode store: %v", err)
	}
	got := Decode(encoded)
	if !got.IsValid() || got.Size != len(encoded) {
		t.Fatalf("decode mismatch: %+v over % x", got, encoded)
	}
	if got.String() != "MOV [RBP-8], EAX" {
		t.Fatalf("got %q", got.String())
	}

	load := Inst{Mnemonic: Mov, Operands: []Operand{Reg(RegisterOf(Size32, 1)), Addr(Size32, RBP, -8)}}
	encoded2, err := Encode(load)
	if err != nil {
		t.Fatalf("encode load: %v", err)
	}
	got2 := Decode(encoded2)
	if !got2.IsValid() || got2.Size != len(encoded2) {
		t.Fatalf("decode mismatch: %+v over % x", got2, encoded2)
	}
	if got2.String() != "MOV ECX, [RBP-8]" {
		t.Fatalf("got %q", got2.String())
	}
}

// TestJmpShortestForm checks that a displacement within int8 range is
// encoded with the two-byte short form (0xEB) rather than the five-byte
// near form, and that it decodes back to the same Rel.
func TestJmpShortestForm(t *testing.T) {
	encoded, err := Encode(Inst{Mnemonic: Jmp, Operands: []Operand{Rel(10)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != 2 || encoded[0] != 0xEB {
		t.Fatalf("expected short jmp form, got % x", encoded)
	}
	got := Decode(encoded)
	if !got.IsValid() || got.Operands[0].Rel != 10 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	far, err := Encode(Inst{Mnemonic: Jmp, Operands: []Operand{Rel(1000)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(far) != 5 || far[0] != 0xE9 {
		t.Fatalf("expected near jmp form, got % x", far)
	}
}

// TestRoundTripXchg covers the register-swap form the parallel-copy
// expander's scratch-free fallback relies on.
func TestRoundTripXchg(t *testing.T) {
	want := Inst{Mnemonic: Xchg, Operands: []Operand{Reg(RegisterOf(Size64, 0)), Reg(RegisterOf(Size64, 3))}}
	encoded, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := Decode(encoded)
	if !got.IsValid() || got.Size != len(encoded) {
		t.Fatalf("decode mismatch: %+v over % x", got, encoded)
	}
	if got.Mnemonic != Xchg {
		t.Fatalf("mnemonic got %v want Xchg", got.Mnemonic)
	}
	if got.Operands[0].String() != "RAX" || got.Operands[1].String() != "RBX" {
		t.Fatalf("operands got %q, %q", got.Operands[0].String(), got.Operands[1].String())
	}
}

// TestRoundTripMovImm64 confirms MovImm64's fixed B8+r/imm64 placeholder
// form decodes back to the exact immediate, a gap the decoder didn't
// cover before this component needed to reserve a genuine 8-byte hole
// for deferred Int64/Float64/String-pointer literal patches (the
// decoder previously recognized no opcode in the 0xB8-0xBF range at
// all).
func TestRoundTripMovImm64(t *testing.T) {
	encoded := MovImm64(RBX, 0x1122334455667788)
	if len(encoded) != 10 {
		t.Fatalf("expected the fixed 10-byte form, got %d bytes: % x", len(encoded), encoded)
	}
	got := Decode(encoded)
	if !got.IsValid() || got.Size != len(encoded) {
		t.Fatalf("decode mismatch: %+v over % x", got, encoded)
	}
	if got.Mnemonic != Mov {
		t.Fatalf("mnemonic got %v want Mov", got.Mnemonic)
	}
	if got.Operands[0].String() != "RBX" {
		t.Fatalf("dst got %q want RBX", got.Operands[0].String())
	}
	if got.Operands[1].Imm != 0x1122334455667788 {
		t.Fatalf("imm got %#x want 0x1122334455667788", got.Operands[1].Imm)
	}
}

// TestDisassembleStopsOnUnknown checks that Disassemble walks a buffer
// of several valid instructions and stops cleanly instead of panicking
// when it runs into bytes outside this package's opcode family.
func TestDisassembleStopsOnUnknown(t *testing.T) {
	var code []byte
	push, _ := Encode(Inst{Mnemonic: Push, Operands: []Operand{Reg(RBX)}})
	ret, _ := Encode(Inst{Mnemonic: Ret})
	code = append(code, push...)
	code = append(code, ret...)
	code = append(code, 0x0F, 0x05) // syscall: outside this package's scope

	insts := Disassemble(code)
	if len(insts) != 2 {
		t.Fatalf("expected 2 instructions before the unknown opcode, got %d", len(insts))
	}
	if insts[0].Mnemonic != Push || insts[1].Mnemonic != Ret {
		t.Fatalf("unexpected decode order: %+v", insts)
	}
}
