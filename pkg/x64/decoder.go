package x64

import "encoding/binary"

type rexBits struct {
	present bool
	w, r, x, b bool
}

// Decode reads one instruction starting at code[0]. It returns a zero
// Inst (IsValid() == false) if the bytes don't form a recognized
// instruction from the opcode family this package covers — this never
// panics on garbage input, matching instruction_x64.h's Decode, which
// always returns an object whose IsValid() callers must check.
func Decode(code []byte) Inst {
	pos := 0
	operandSize := Size32
	for pos < len(code) {
		switch code[pos] {
		case 0x66:
			operandSize = Size16
			pos++
			continue
		case 0x67, 0xF0, 0xF2, 0xF3, 0x2E, 0x36, 0x3E, 0x26, 0x64, 0x65:
			pos++
			continue
		}
		break
	}
	if pos >= len(code) {
		return Inst{}
	}

	var rex rexBits
	if code[pos]&0xF0 == 0x40 {
		b := code[pos]
		rex = rexBits{present: true, w: b&0x08 != 0, r: b&0x04 != 0, x: b&0x02 != 0, b: b&0x01 != 0}
		pos++
	}
	if rex.w {
		operandSize = Size64
	}
	if pos >= len(code) {
		return Inst{}
	}

	op := code[pos]
	pos++
	if op == 0x0F {
		return decodeTwoByte(code, pos, rex, operandSize)
	}
	return decodeOneByte(code, op, pos, rex, operandSize)
}

// decodedRM is what decodeModRM produces: the register-field value (with
// REX.R already folded in) and the decoded r/m operand.
type decodedRM struct {
	reg  int
	rm   Operand
	next int
}

func decodeModRM(code []byte, pos int, rex rexBits, size Size) (decodedRM, bool) {
	if pos >= len(code) {
		return decodedRM{}, false
	}
	b := code[pos]
	pos++
	mod := b >> 6
	regField := int((b>>3)&7) | boolBit(rex.r)<<3
	rmField := b & 7

	if mod == 3 {
		num := int(rmField) | boolBit(rex.b)<<3
		return decodedRM{reg: regField, rm: Reg(RegisterOf(size, num)), next: pos}, true
	}

	if rmField == 5 && mod == 0 {
		if pos+4 > len(code) {
			return decodedRM{}, false
		}
		disp := int32(binary.LittleEndian.Uint32(code[pos:]))
		pos += 4
		return decodedRM{reg: regField, rm: RIPRelative(size, disp), next: pos}, true
	}

	var base, index Register
	var scale ScaledIndex
	hasBase, hasIndex := true, false
	baseNum := int(rmField) | boolBit(rex.b)<<3

	if rmField == 4 {
		if pos >= len(code) {
			return decodedRM{}, false
		}
		sib := code[pos]
		pos++
		sc := sib >> 6
		rawIndex := (sib >> 3) & 7
		sibBase := sib & 7
		if rawIndex != 4 {
			hasIndex = true
			index = RegisterOf(Size64, int(rawIndex)|boolBit(rex.x)<<3)
			scale = []ScaledIndex{Scale1, Scale2, Scale4, Scale8}[sc]
		}
		if sibBase == 5 && mod == 0 {
			hasBase = false
		} else {
			baseNum = int(sibBase) | boolBit(rex.b)<<3
		}
	}

	if hasBase {
		base = RegisterOf(Size64, baseNum)
	} else {
		base = noRegister
	}

	var disp int32
	switch {
	case !hasBase:
		if pos+4 > len(code) {
			return decodedRM{}, false
		}
		disp = int32(binary.LittleEndian.Uint32(code[pos:]))
		pos += 4
	case mod == 1:
		if pos >= len(code) {
			return decodedRM{}, false
		}
		disp = int32(int8(code[pos]))
		pos++
	case mod == 2:
		if pos+4 > len(code) {
			return decodedRM{}, false
		}
		disp = int32(binary.LittleEndian.Uint32(code[pos:]))
		pos += 4
	}

	addr := Operand{Kind: KindAddress, Size: size, Base: base, Index: noRegister, Disp: disp}
	if hasIndex {
		addr.Index = index
		addr.Scale = scale
	} else {
		addr.Index = noRegister
	}
	return decodedRM{reg: regField, rm: addr, next: pos}, true
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func readImm32(code []byte, pos int) (int32, int, bool) {
	if pos+4 > len(code) {
		return 0, pos, false
	}
	return int32(binary.LittleEndian.Uint32(code[pos:])), pos + 4, true
}

func readImm16(code []byte, pos int) (int16, int, bool) {
	if pos+2 > len(code) {
		return 0, pos, false
	}
	return int16(binary.LittleEndian.Uint16(code[pos:])), pos + 2, true
}

func readImm8(code []byte, pos int) (int8, int, bool) {
	if pos >= len(code) {
		return 0, pos, false
	}
	return int8(code[pos]), pos + 1, true
}

func readImm64(code []byte, pos int) (int64, int, bool) {
	if pos+8 > len(code) {
		return 0, pos, false
	}
	return int64(binary.LittleEndian.Uint64(code[pos:])), pos + 8, true
}

// izSize is the width of a Iz-class immediate (used by C7, group-1 /81,
// and F7): imm16 under the 0x66 operand-size prefix, imm32 otherwise —
// REX.W never widens it past 32 bits, it only widens the destination
// the sign-extended value is written into.
func izSize(operandSize Size) Size {
	if operandSize == Size16 {
		return Size16
	}
	return Size32
}

var aluBaseFor = map[byte]Mnemonic{0x00: Add, 0x08: Or, 0x20: And, 0x28: Sub, 0x30: Xor, 0x38: Cmp}
var digitToALU = map[byte]Mnemonic{0: Add, 1: Or, 4: And, 5: Sub, 6: Xor, 7: Cmp}
var digitToShift = map[byte]Mnemonic{4: Shl, 5: Shr, 6: Shl, 7: Sar}

func decodeOneByte(code []byte, op byte, pos int, rex rexBits, size Size) Inst {
	switch op {
	case 0x88, 0x8A:
		return decodeRegMemALU(Mov, code, op == 0x8A, pos, rex, Size8)
	case 0x89, 0x8B:
		return decodeRegMemALU(Mov, code, op == 0x8B, pos, rex, size)
	case 0x86, 0x87:
		opSize := size
		if op == 0x86 {
			opSize = Size8
		}
		return decodeRegMemALU(Xchg, code, true, pos, rex, opSize)
	case 0x8D:
		d, ok := decodeModRM(code, pos, rex, size)
		if !ok || d.rm.Kind != KindAddress {
			return Inst{}
		}
		return Inst{Mnemonic: Lea, Operands: []Operand{Reg(RegisterOf(size, d.reg)), d.rm}, Size: d.next}
	case 0x84, 0x85:
		opSize := size
		if op == 0x84 {
			opSize = Size8
		}
		return decodeRegMemALU(Test, code, false, pos, rex, opSize)
	case 0xC6, 0xC7:
		immSize := izSize(size)
		if op == 0xC6 {
			immSize = Size8
		}
		d, ok := decodeModRM(code, pos, rex, size)
		if !ok {
			return Inst{}
		}
		imm, next, ok := readImmBySize(code, d.next, immSize)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Mov, Operands: []Operand{setSize(d.rm, size), Imm(size, imm)}, Size: next}
	case 0xF6, 0xF7:
		d, ok := decodeModRM(code, pos, rex, size)
		if !ok || d.reg&7 != 0 {
			return Inst{}
		}
		immSize := izSize(size)
		if op == 0xF6 {
			immSize = Size8
		}
		imm, next, ok := readImmBySize(code, d.next, immSize)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Test, Operands: []Operand{setSize(d.rm, size), Imm(size, imm)}, Size: next}
	case 0x80, 0x81, 0x83:
		opSize := size
		immSize := izSize(size)
		if op == 0x80 {
			opSize, immSize = Size8, Size8
		} else if op == 0x83 {
			immSize = Size8
		}
		d, ok := decodeModRM(code, pos, rex, opSize)
		if !ok {
			return Inst{}
		}
		m, known := digitToALU[byte(d.reg&7)]
		if !known {
			return Inst{}
		}
		imm, next, ok := readImmBySize(code, d.next, immSize)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: m, Operands: []Operand{setSize(d.rm, opSize), Imm(opSize, imm)}, Size: next}
	case 0xC0, 0xC1, 0xD0, 0xD1, 0xD2, 0xD3:
		opSize := size
		if op == 0xC0 || op == 0xD0 || op == 0xD2 {
			opSize = Size8
		}
		d, ok := decodeModRM(code, pos, rex, opSize)
		if !ok {
			return Inst{}
		}
		m, known := digitToShift[byte(d.reg&7)]
		if !known {
			return Inst{}
		}
		switch op {
		case 0xC0, 0xC1:
			imm8, next, ok := readImm8(code, d.next)
			if !ok {
				return Inst{}
			}
			return Inst{Mnemonic: m, Operands: []Operand{setSize(d.rm, opSize), Imm(Size8, int64(imm8))}, Size: next}
		case 0xD0, 0xD1:
			return Inst{Mnemonic: m, Operands: []Operand{setSize(d.rm, opSize), Imm(Size8, 1)}, Size: d.next}
		default:
			return Inst{Mnemonic: m, Operands: []Operand{setSize(d.rm, opSize), Reg(RegisterOf(Size8, 1))}, Size: d.next}
		}
	case 0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57:
		num := int(op-0x50) | boolBit(rex.b)<<3
		return Inst{Mnemonic: Push, Operands: []Operand{Reg(RegisterOf(Size64, num))}, Size: pos}
	case 0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F:
		num := int(op-0x58) | boolBit(rex.b)<<3
		return Inst{Mnemonic: Pop, Operands: []Operand{Reg(RegisterOf(Size64, num))}, Size: pos}
	case 0xE8:
		rel, next, ok := readImm32(code, pos)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Call, Operands: []Operand{Rel(rel)}, Size: next}
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		num := int(op-0xB8) | boolBit(rex.b)<<3
		imm, next, ok := readImmBySize(code, pos, size)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Mov, Operands: []Operand{Reg(RegisterOf(size, num)), Imm(size, imm)}, Size: next}
	case 0xC3:
		return Inst{Mnemonic: Ret, Size: pos}
	case 0x90:
		return Inst{Mnemonic: Nop, Size: pos}
	case 0xE9:
		rel, next, ok := readImm32(code, pos)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Jmp, Operands: []Operand{Rel(rel)}, Size: next}
	case 0xEB:
		rel, next, ok := readImm8(code, pos)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Jmp, Operands: []Operand{Rel(int32(rel))}, Size: next}
	}

	if op >= 0x70 && op <= 0x7F {
		rel, next, ok := readImm8(code, pos)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Jcc, Cond: Tttn(op - 0x70), Operands: []Operand{Rel(int32(rel))}, Size: next}
	}
	if base, known := aluBaseFor[op&0xF8]; known {
		variant := op & 0x07
		switch variant {
		case 0:
			return decodeRegMemALU(base, code, false, pos, rex, Size8)
		case 1:
			return decodeRegMemALU(base, code, false, pos, rex, size)
		case 2:
			return decodeRegMemALU(base, code, true, pos, rex, Size8)
		case 3:
			return decodeRegMemALU(base, code, true, pos, rex, size)
		}
	}
	return Inst{}
}

func decodeTwoByte(code []byte, pos int, rex rexBits, size Size) Inst {
	if pos >= len(code) {
		return Inst{}
	}
	op := code[pos]
	pos++
	if op >= 0x80 && op <= 0x8F {
		rel, next, ok := readImm32(code, pos)
		if !ok {
			return Inst{}
		}
		return Inst{Mnemonic: Jcc, Cond: Tttn(op - 0x80), Operands: []Operand{Rel(rel)}, Size: next}
	}
	return Inst{}
}

// decodeRegMemALU decodes the Eb/Gb, Ev/Gv, Gb/Eb, Gv/Ev forms shared by
// MOV and the ALU group: regIsDst flips which side the ModRM.reg field
// names.
func decodeRegMemALU(m Mnemonic, code []byte, regIsDst bool, pos int, rex rexBits, size Size) Inst {
	d, ok := decodeModRM(code, pos, rex, size)
	if !ok {
		return Inst{}
	}
	reg := Reg(RegisterOf(size, d.reg))
	rm := setSize(d.rm, size)
	if regIsDst {
		return Inst{Mnemonic: m, Operands: []Operand{reg, rm}, Size: d.next}
	}
	return Inst{Mnemonic: m, Operands: []Operand{rm, reg}, Size: d.next}
}

func setSize(o Operand, size Size) Operand {
	o.Size = size
	if o.Kind == KindRegister {
		o.Reg = RegisterSizeOf(o.Reg, size)
	}
	return o
}

func readImmBySize(code []byte, pos int, size Size) (int64, int, bool) {
	switch size {
	case Size8:
		v, next, ok := readImm8(code, pos)
		return int64(v), next, ok
	case Size16:
		v, next, ok := readImm16(code, pos)
		return int64(v), next, ok
	case Size64:
		v, next, ok := readImm64(code, pos)
		return v, next, ok
	default:
		v, next, ok := readImm32(code, pos)
		return int64(v), next, ok
	}
}

// Disassemble walks code start to end, decoding one instruction at a
// time. A byte sequence this package doesn't recognize stops the walk
// rather than producing a partial or garbage Inst — callers asking for
// more than this opcode family covers get a short list back, not a
// panic.
func Disassemble(code []byte) []Inst {
	var out []Inst
	pos := 0
	for pos < len(code) {
		inst := Decode(code[pos:])
		if !inst.IsValid() {
			break
		}
		out = append(out, inst)
		pos += inst.Size
	}
	return out
}
