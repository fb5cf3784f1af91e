package x64

import (
	"fmt"
	"strings"
)

// Operand.Kind discriminates the tagged union below. The teacher's
// Operand packs all five variants into one detail_/offset_ word; this
// port spells them out as a plain Go struct instead, which is simpler to
// construct and pattern-match on without losing any of the information
// the packed form carried.
type OperandKind uint8

const (
	KindAddress OperandKind = iota
	KindImmediate
	KindOffset
	KindRegister
	KindRelative
)

// Operand is any of: a memory address ([base+index*scale+disp]), an
// immediate, an absolute moffs offset, a bare register, or a
// RIP-relative displacement.
type Operand struct {
	Kind OperandKind
	Size Size

	Reg Register // KindRegister

	Base  Register    // KindAddress; noRegister if absent
	Index Register    // KindAddress; noRegister if absent
	Scale ScaledIndex // KindAddress
	Disp  int32       // KindAddress

	Imm int64 // KindImmediate

	Moffs uint64 // KindOffset

	Rel int32 // KindRelative, relative to the next instruction's RIP
}

func Reg(r Register) Operand {
	return Operand{Kind: KindRegister, Size: r.Kind(), Reg: r}
}

func Imm(size Size, v int64) Operand {
	return Operand{Kind: KindImmediate, Size: size, Imm: v}
}

func Addr(size Size, base Register, disp int32) Operand {
	return Operand{Kind: KindAddress, Size: size, Base: base, Index: noRegister, Disp: disp}
}

func AddrIndexed(size Size, base, index Register, scale ScaledIndex, disp int32) Operand {
	return Operand{Kind: KindAddress, Size: size, Base: base, Index: index, Scale: scale, Disp: disp}
}

func RIPRelative(size Size, disp int32) Operand {
	return Operand{Kind: KindAddress, Size: size, Base: RIP, Index: noRegister, Disp: disp}
}

func Rel(v int32) Operand {
	return Operand{Kind: KindRelative, Rel: v}
}

func Offset(size Size, v uint64) Operand {
	return Operand{Kind: KindOffset, Size: size, Moffs: v}
}

// hasIndex reports whether an Address operand carries a SIB index.
func (o Operand) hasIndex() bool {
	return o.Kind == KindAddress && o.Index != noRegister && o.Index != 0
}

// isRIPRelative reports whether an Address's base is the RIP marker.
func (o Operand) isRIPRelative() bool {
	return o.Kind == KindAddress && o.Base == RIP
}

// String renders an operand the way operand_x64.cc's operator<< does:
// "[base+index*scale+disp]" for an address, the bare decimal for an
// immediate, "[0xHEX]" for an absolute offset, the register name for a
// register, and "RIP+disp"/"RIP-disp" for a relative operand.
func (o Operand) String() string {
	switch o.Kind {
	case KindRegister:
		return o.Reg.String()
	case KindImmediate:
		return fmt.Sprintf("%d", o.Imm)
	case KindOffset:
		return fmt.Sprintf("[%#x]", o.Moffs)
	case KindRelative:
		if o.Rel < 0 {
			return fmt.Sprintf("RIP%d", o.Rel)
		}
		return fmt.Sprintf("RIP+%d", o.Rel)
	case KindAddress:
		if o.isRIPRelative() {
			if o.Disp < 0 {
				return fmt.Sprintf("[RIP%d]", o.Disp)
			}
			return fmt.Sprintf("[RIP+%d]", o.Disp)
		}
		var b strings.Builder
		b.WriteByte('[')
		wrote := false
		if o.Base != noRegister {
			b.WriteString(o.Base.String())
			wrote = true
		}
		if o.hasIndex() {
			if wrote {
				b.WriteByte('+')
			}
			fmt.Fprintf(&b, "%s*%d", o.Index.String(), o.Scale)
			wrote = true
		}
		if o.Disp != 0 || !wrote {
			if wrote {
				if o.Disp >= 0 {
					b.WriteByte('+')
				}
			}
			fmt.Fprintf(&b, "%d", o.Disp)
		}
		b.WriteByte(']')
		return b.String()
	default:
		return "?operand"
	}
}
