package x64

import (
	"encoding/binary"
	"fmt"
)

// modrm accumulates the ModRM/SIB/displacement bytes for one operand
// together with the REX.R/X/B bits that operand's register numbers
// demand, mirroring how instruction_x64.cc builds an instruction up one
// field at a time rather than formatting the whole thing in one pass.
type modrm struct {
	bytes []byte
	rexR  bool
	rexX  bool
	rexB  bool
}

// encodeRM lays out the ModRM (+ SIB + disp) bytes for rm paired with
// regField, which is either an actual register (reg-to-reg/mem forms) or
// a fixed opcode-extension digit (immediate-group forms).
func encodeRM(rm Operand, regField byte) (*modrm, error) {
	m := &modrm{}
	reg3 := regField & 7
	if regField >= 8 {
		m.rexR = true
	}

	switch rm.Kind {
	case KindRegister:
		rmNum := byte(rm.Reg.Number())
		m.bytes = append(m.bytes, encodeModRMByte(3, reg3, rmNum&7))
		if rmNum >= 8 {
			m.rexB = true
		}
		return m, nil

	case KindAddress:
		if rm.isRIPRelative() {
			m.bytes = append(m.bytes, encodeModRMByte(0, reg3, 5))
			m.bytes = appendInt32(m.bytes, rm.Disp)
			return m, nil
		}

		base := rm.Base
		hasBase := base != noRegister
		baseLow3 := byte(0)
		baseExt := false
		if hasBase {
			baseLow3 = byte(base.Number()) & 7
			baseExt = base.Number() >= 8
		}

		needsSIB := rm.hasIndex() || (hasBase && baseLow3 == 4) || !hasBase
		mod, dispBytes := addressMod(hasBase, baseLow3, rm.Disp)

		if !needsSIB {
			m.bytes = append(m.bytes, encodeModRMByte(mod, reg3, baseLow3))
			m.rexB = baseExt
			m.bytes = append(m.bytes, dispBytes...)
			return m, nil
		}

		m.bytes = append(m.bytes, encodeModRMByte(mod, reg3, 4))
		scale := scaleBits(rm.Scale)
		indexLow3 := byte(4) // SIB.index == 0b100 means "no index" (RSP can't be an index)
		if rm.hasIndex() {
			indexLow3 = byte(rm.Index.Number()) & 7
			m.rexX = rm.Index.Number() >= 8
		}
		sibBase := baseLow3
		if !hasBase {
			sibBase = 5 // disp32, no base
			mod = 0
			m.bytes[len(m.bytes)-1] = encodeModRMByte(0, reg3, 4)
			dispBytes = appendInt32(nil, rm.Disp)
		}
		m.bytes = append(m.bytes, encodeSIBByte(scale, indexLow3, sibBase))
		m.rexB = hasBase && baseExt
		m.bytes = append(m.bytes, dispBytes...)
		return m, nil

	default:
		return nil, fmt.Errorf("x64: operand kind %d is not a valid ModRM operand", rm.Kind)
	}
}

func encodeModRMByte(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

func encodeSIBByte(scale, index, base byte) byte {
	return scale<<6 | (index&7)<<3 | (base & 7)
}

func scaleBits(s ScaledIndex) byte {
	switch s {
	case ScaleNone, Scale1:
		return 0
	case Scale2:
		return 1
	case Scale4:
		return 2
	case Scale8:
		return 3
	default:
		panic(fmt.Sprintf("x64: invalid SIB scale %d", s))
	}
}

// addressMod picks Mod and the displacement bytes to follow. RBP (low3
// == 5) can never be encoded with Mod00 (that encoding is reserved for
// RIP-relative / no-base), so a zero displacement off RBP is forced out
// to an explicit disp8 of 0.
func addressMod(hasBase bool, baseLow3 byte, disp int32) (byte, []byte) {
	if !hasBase {
		return 0, appendInt32(nil, disp)
	}
	if disp == 0 && baseLow3 != 5 {
		return 0, nil
	}
	if disp >= -128 && disp <= 127 {
		return 1, []byte{byte(int8(disp))}
	}
	return 2, appendInt32(nil, disp)
}

func appendInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return append(dst, buf[:]...)
}

// rex composes the REX prefix byte, or returns (0, false) when none of
// W/R/X/B are set and neither operand needs one to select the SPL/BPL/
// SIL/DIL bank over the legacy AH/CH/DH/BH one.
func rex(w bool, m *modrm, forceLowByte bool) (byte, bool) {
	need := w || m.rexR || m.rexX || m.rexB || forceLowByte
	if !need {
		return 0, false
	}
	b := byte(0x40)
	if w {
		b |= 0x08
	}
	if m.rexR {
		b |= 0x04
	}
	if m.rexX {
		b |= 0x02
	}
	if m.rexB {
		b |= 0x01
	}
	return b, true
}

func sizePrefix(size Size) []byte {
	if size == Size16 {
		return []byte{0x66}
	}
	return nil
}

func needsLowByteREX(ops ...Operand) bool {
	for _, o := range ops {
		if o.Kind == KindRegister && o.Size == Size8 && o.Reg.Number() >= 4 && o.Reg.Number() <= 7 {
			return true
		}
	}
	return false
}

func assemble(sizePfx []byte, w bool, m *modrm, forceLowByte bool, opcode []byte, imm []byte) []byte {
	out := append([]byte{}, sizePfx...)
	if rb, ok := rex(w, m, forceLowByte); ok {
		out = append(out, rb)
	}
	out = append(out, opcode...)
	out = append(out, m.bytes...)
	out = append(out, imm...)
	return out
}

// Encode turns one Inst into its machine-code bytes. Where it chooses
// between forms it takes the shorter one: disp8 over disp32, a
// sign-extended imm8 (83) over imm32 (81) for the ALU group, and rel8
// over rel32 for Jmp/Jcc unless Wide is set. It does not always produce
// the shortest legal encoding: a register-immediate MOV uses C6/C7 /0
// (B8+r only for a 64-bit immediate that does not fit in 32 bits), and
// the accumulator short forms are never emitted.
func Encode(inst Inst) ([]byte, error) {
	switch inst.Mnemonic {
	case Mov:
		return encodeMov(inst.Operands[0], inst.Operands[1])
	case Add, Sub, And, Or, Xor, Cmp:
		return encodeALU(inst.Mnemonic, inst.Operands[0], inst.Operands[1])
	case Test:
		return encodeTest(inst.Operands[0], inst.Operands[1])
	case Shl, Shr, Sar:
		return encodeShift(inst.Mnemonic, inst.Operands[0], inst.Operands[1])
	case Lea:
		return encodeLea(inst.Operands[0], inst.Operands[1])
	case Push:
		return encodePushPop(0x50, inst.Operands[0])
	case Pop:
		return encodePushPop(0x58, inst.Operands[0])
	case Call:
		return encodeRel32(0xE8, inst.Operands[0])
	case Ret:
		return []byte{0xC3}, nil
	case Nop:
		return []byte{0x90}, nil
	case Jmp:
		return encodeJmp(inst.Operands[0], inst.Wide)
	case Jcc:
		return encodeJcc(inst.Cond, inst.Operands[0], inst.Wide)
	case Xchg:
		return encodeXchg(inst.Operands[0], inst.Operands[1])
	default:
		return nil, fmt.Errorf("x64: mnemonic %d cannot be encoded", inst.Mnemonic)
	}
}

func encodeMov(dst, src Operand) ([]byte, error) {
	if dst.Kind == KindRegister && src.Kind == KindImmediate {
		return encodeMovImm(dst.Reg, dst.Size, src.Imm)
	}
	if src.Kind == KindImmediate {
		return encodeMovMemImm(dst, src.Imm)
	}
	if src.Kind == KindRegister {
		return encodeRegMemOp([]byte{0x88}, []byte{0x89}, dst, src.Reg)
	}
	if dst.Kind == KindRegister {
		return encodeRegMemOp([]byte{0x8A}, []byte{0x8B}, src, dst.Reg)
	}
	return nil, fmt.Errorf("x64: unsupported MOV operand shape %+v, %+v", dst, src)
}

// MovImm64 always uses the B8+r/imm64 form (10 bytes: REX.W, opcode,
// 8 little-endian immediate bytes) regardless of whether v fits in 32
// bits. A caller that needs to reserve a fixed 8-byte hole for a later
// patch — rather than the shortest legal encoding Encode would otherwise
// pick for a small or zero value — builds the placeholder this way.
func MovImm64(dst Register, v int64) []byte {
	m := &modrm{}
	opcode := byte(0xB8) + byte(dst.Number()&7)
	if dst.Number() >= 8 {
		m.rexB = true
	}
	return assemble(nil, true, m, false, []byte{opcode}, appendInt64(nil, v))
}

func encodeMovImm(dst Register, size Size, v int64) ([]byte, error) {
	w := size == Size64
	if size == Size64 && (v < -(1<<31) || v >= (1<<31)) {
		return MovImm64(dst, v), nil
	}
	rm, err := encodeRM(Reg(dst), 0)
	if err != nil {
		return nil, err
	}
	opcode := byte(0xC7)
	immSize := Size32
	if size == Size8 {
		opcode = 0xC6
		immSize = Size8
	} else if size == Size16 {
		immSize = Size16
	}
	imm := encodeImmBytes(immSize, v)
	return assemble(sizePrefix(size), w, rm, needsLowByteREX(Reg(dst)), []byte{opcode}, imm), nil
}

func encodeMovMemImm(dst Operand, v int64) ([]byte, error) {
	rm, err := encodeRM(dst, 0)
	if err != nil {
		return nil, err
	}
	opcode := byte(0xC7)
	immSize := Size32
	if dst.Size == Size8 {
		opcode = 0xC6
		immSize = Size8
	} else if dst.Size == Size16 {
		immSize = Size16
	}
	imm := encodeImmBytes(immSize, v)
	return assemble(sizePrefix(dst.Size), dst.Size == Size64, rm, needsLowByteREX(dst), []byte{opcode}, imm), nil
}

func encodeImmBytes(size Size, v int64) []byte {
	switch size {
	case Size8:
		return []byte{byte(int8(v))}
	case Size16:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(int16(v)))
		return buf[:]
	default:
		return appendInt32(nil, int32(v))
	}
}

// encodeRegMemOp encodes the two-operand forms shared by MOV and the ALU
// group: byteOp for 8-bit operands, wideOp (plus a 0x66 prefix for
// 16-bit and REX.W for 64-bit) otherwise. rm is whichever operand is the
// memory/register-indirect side; reg is the other, fixed, register.
func encodeRegMemOp(byteOp, wideOp []byte, rm Operand, reg Register) ([]byte, error) {
	size := rm.Size
	if rm.Kind == KindRegister {
		size = reg.Kind()
	}
	m, err := encodeRM(rm, byte(reg.Number()))
	if err != nil {
		return nil, err
	}
	opcode := wideOp
	if size == Size8 {
		opcode = byteOp
	}
	return assemble(sizePrefix(size), size == Size64, m, needsLowByteREX(rm, Reg(reg)), opcode, nil), nil
}

var aluDigit = map[Mnemonic]byte{Add: 0, Or: 1, And: 4, Sub: 5, Xor: 6, Cmp: 7}
var aluBaseOp = map[Mnemonic]byte{Add: 0x00, Or: 0x08, And: 0x20, Sub: 0x28, Xor: 0x30, Cmp: 0x38}

func encodeALU(op Mnemonic, dst, src Operand) ([]byte, error) {
	if src.Kind == KindRegister {
		base := aluBaseOp[op]
		return encodeRegMemOp([]byte{base}, []byte{base + 1}, dst, src.Reg)
	}
	if src.Kind == KindImmediate {
		return encodeGroup1Imm(aluDigit[op], dst, src.Imm)
	}
	return nil, fmt.Errorf("x64: unsupported ALU operand shape %+v, %+v", dst, src)
}

// encodeGroup1Imm encodes the opcode-extension immediate-group forms
// (80/81/83 /digit): 83 with a sign-extended imm8 is used whenever the
// immediate fits in a byte and the destination is wider than a byte,
// since that is always the shorter legal encoding.
func encodeGroup1Imm(digit byte, dst Operand, v int64) ([]byte, error) {
	m, err := encodeRM(dst, digit)
	if err != nil {
		return nil, err
	}
	if dst.Size == Size8 {
		return assemble(nil, false, m, needsLowByteREX(dst), []byte{0x80}, []byte{byte(int8(v))}), nil
	}
	if v >= -128 && v <= 127 {
		return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, false, []byte{0x83}, []byte{byte(int8(v))}), nil
	}
	imm := encodeImmBytes(dst.Size, v) // Iz: imm16 or imm32, REX.W never widens the immediate itself
	return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, false, []byte{0x81}, imm), nil
}

func encodeTest(dst, src Operand) ([]byte, error) {
	if src.Kind == KindRegister {
		return encodeRegMemOp([]byte{0x84}, []byte{0x85}, dst, src.Reg)
	}
	m, err := encodeRM(dst, 0)
	if err != nil {
		return nil, err
	}
	opcode := byte(0xF7)
	immSize := Size32
	if dst.Size == Size8 {
		opcode = 0xF6
		immSize = Size8
	} else if dst.Size == Size16 {
		immSize = Size16
	}
	return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, needsLowByteREX(dst), []byte{opcode}, encodeImmBytes(immSize, src.Imm)), nil
}

var shiftDigit = map[Mnemonic]byte{Shl: 4, Shr: 5, Sar: 7}

func encodeShift(op Mnemonic, dst, count Operand) ([]byte, error) {
	digit := shiftDigit[op]
	m, err := encodeRM(dst, digit)
	if err != nil {
		return nil, err
	}
	byteForm := dst.Size == Size8
	if count.Kind == KindRegister && count.Reg == RegisterOf(Size8, 1) {
		opcode := byte(0xD2)
		if !byteForm {
			opcode = 0xD3
		}
		return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, needsLowByteREX(dst), []byte{opcode}, nil), nil
	}
	if count.Kind == KindImmediate && count.Imm == 1 {
		opcode := byte(0xD0)
		if !byteForm {
			opcode = 0xD1
		}
		return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, needsLowByteREX(dst), []byte{opcode}, nil), nil
	}
	opcode := byte(0xC0)
	if !byteForm {
		opcode = 0xC1
	}
	return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, needsLowByteREX(dst), []byte{opcode}, []byte{byte(count.Imm)}), nil
}

func encodeLea(dst, src Operand) ([]byte, error) {
	m, err := encodeRM(src, byte(dst.Reg.Number()))
	if err != nil {
		return nil, err
	}
	return assemble(sizePrefix(dst.Size), dst.Size == Size64, m, false, []byte{0x8D}, nil), nil
}

func encodePushPop(baseOp byte, op Operand) ([]byte, error) {
	if op.Kind != KindRegister {
		return nil, fmt.Errorf("x64: push/pop only supports register operands, got %+v", op)
	}
	n := op.Reg.Number()
	opcode := baseOp + byte(n&7)
	if n >= 8 {
		return []byte{0x41, opcode}, nil
	}
	return []byte{opcode}, nil
}

// encodeXchg covers only the register/register and register/memory forms
// the parallel-copy expander's scratch-free swap fallback needs (86/87
// /r); the accumulator-shorthand 0x90+r forms are never emitted since
// this package has no caller that benefits from the one-byte saving.
func encodeXchg(dst, src Operand) ([]byte, error) {
	if dst.Kind == KindRegister && src.Kind == KindRegister {
		// Both operands fit in the ModRM.rm field; put dst in reg and src
		// in rm so a decode reports back [dst, src] the way it was asked.
		return encodeRegMemOp([]byte{0x86}, []byte{0x87}, src, dst.Reg)
	}
	if src.Kind == KindRegister {
		return encodeRegMemOp([]byte{0x86}, []byte{0x87}, dst, src.Reg)
	}
	if dst.Kind == KindRegister {
		return encodeRegMemOp([]byte{0x86}, []byte{0x87}, src, dst.Reg)
	}
	return nil, fmt.Errorf("x64: xchg requires at least one register operand, got %+v, %+v", dst, src)
}

func encodeRel32(opcode byte, op Operand) ([]byte, error) {
	if op.Kind != KindRelative {
		return nil, fmt.Errorf("x64: expected a relative operand, got %+v", op)
	}
	return append([]byte{opcode}, appendInt32(nil, op.Rel)...), nil
}

// Operand.Rel is carried as the raw field the opcode stores, not a
// value pre-adjusted for the instruction's own length: operand_x64.cc's
// Relative formatting just echoes the stored displacement back, and
// this port follows that exactly rather than reconstructing a
// true post-instruction-RIP target. Callers computing a branch target
// are responsible for accounting for instruction length themselves.
//
// encodeJmp picks the one-byte-displacement short form whenever the
// raw displacement fits in an int8, falling back to the near rel32 form
// otherwise — the shortest-legal-encoding rule spelled out for this
// instruction set.
func encodeJmp(op Operand, wide bool) ([]byte, error) {
	if op.Kind != KindRelative {
		return nil, fmt.Errorf("x64: jmp expects a relative operand, got %+v", op)
	}
	if !wide && op.Rel >= -128 && op.Rel <= 127 {
		return []byte{0xEB, byte(int8(op.Rel))}, nil
	}
	return append([]byte{0xE9}, appendInt32(nil, op.Rel)...), nil
}

func encodeJcc(cond Tttn, op Operand, wide bool) ([]byte, error) {
	if op.Kind != KindRelative {
		return nil, fmt.Errorf("x64: jcc expects a relative operand, got %+v", op)
	}
	if !wide && op.Rel >= -128 && op.Rel <= 127 {
		return []byte{0x70 + byte(cond), byte(int8(op.Rel))}, nil
	}
	return append([]byte{0x0F, 0x80 + byte(cond)}, appendInt32(nil, op.Rel)...), nil
}
