// Package lir implements the low-level, machine-oriented intermediate
// representation: packed Values, Instructions, BasicBlocks and
// Functions, ported from elang/lir/value.h and the shape described by
// the component design for LIR (K).
package lir

import "fmt"

// Type is the one-bit type tag of a Value.
type Type uint32

const (
	Integer Type = iota
	Float
)

// Size is the three-bit operand width of a Value.
type Size uint32

const (
	Size8 Size = iota
	Size16
	Size32
	Size64
)

// Kind is the four-bit operand kind of a Value.
type Kind uint32

const (
	Void Kind = iota
	Immediate
	LiteralRef // index into the function's LiteralTable
	Parameter
	PhysicalRegister
	VirtualRegister
	PseudoRegister // x64 EFLAGS
	Argument
	StackSlot
	InstructionRef // reference to an instruction, used for ErrorData
)

const (
	maximumImmediate = 1 << 23
	minimumImmediate = -(1 << 23)
)

// Value is a 32-bit tagged union packed as {type:1, size:3, kind:4,
// data:24}, mirroring the C bitfield struct in value.h bit-for-bit.
// Equality compares the full 32-bit pattern.
type Value uint32

const (
	typeShift = 0
	typeBits  = 1
	sizeShift = typeShift + typeBits
	sizeBits  = 3
	kindShift = sizeShift + sizeBits
	kindBits  = 4
	dataShift = kindShift + kindBits
	dataBits  = 24
)

func pack(t Type, s Size, k Kind, data int32) Value {
	if data < minimumImmediate || data > maximumImmediate-1 {
		panic(fmt.Sprintf("lir: data %d does not fit in a 24-bit payload", data))
	}
	v := uint32(t)<<typeShift | uint32(s)<<sizeShift | uint32(k)<<kindShift
	v |= (uint32(data) & ((1 << dataBits) - 1)) << dataShift
	return Value(v)
}

// Type returns the value's type tag.
func (v Value) Type() Type { return Type((uint32(v) >> typeShift) & ((1 << typeBits) - 1)) }

// Size returns the value's operand width.
func (v Value) Size() Size { return Size((uint32(v) >> sizeShift) & ((1 << sizeBits) - 1)) }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return Kind((uint32(v) >> kindShift) & ((1 << kindBits) - 1)) }

// Data returns the value's sign-extended 24-bit payload.
func (v Value) Data() int32 {
	raw := int32((uint32(v) >> dataShift) & ((1 << dataBits) - 1))
	if raw >= (1 << (dataBits - 1)) {
		raw -= 1 << dataBits
	}
	return raw
}

func (v Value) IsFloat() bool      { return v.Type() == Float }
func (v Value) IsInteger() bool    { return v.Type() == Integer }
func (v Value) IsImmediate() bool  { return v.Kind() == Immediate }
func (v Value) IsLiteral() bool    { return v.Kind() == LiteralRef }
func (v Value) IsPhysical() bool   { return v.Kind() == PhysicalRegister }
func (v Value) IsVirtual() bool    { return v.Kind() == VirtualRegister }
func (v Value) IsRegister() bool   { return v.IsPhysical() || v.IsVirtual() }
func (v Value) IsReadOnly() bool   { return v.IsImmediate() || v.IsLiteral() }
func (v Value) IsVoid() bool       { return v.Kind() == Void }
func (v Value) IsStackSlot() bool  { return v.Kind() == StackSlot }

// CanBeImmediate reports whether value fits the 24-bit immediate range;
// values outside it must be materialized as a Literal instead.
func CanBeImmediate(value int64) bool {
	return value >= minimumImmediate && value < maximumImmediate
}

// NewVoid returns the void value (no operand).
func NewVoid() Value { return pack(Integer, Size8, Void, 0) }

// NewImmediate returns a signed immediate operand of size s.
func NewImmediate(s Size, data int32) Value {
	return pack(Integer, s, Immediate, data)
}

// NewLiteral returns an operand referencing the literal at zone-index
// data (see Literal / LiteralTable).
func NewLiteral(s Size, data int32) Value {
	return pack(Integer, s, LiteralRef, data)
}

// NewRegister returns an integer physical register operand.
func NewRegister(s Size, number int32) Value {
	return pack(Integer, s, PhysicalRegister, number)
}

// NewFloatRegister returns a float physical register operand.
func NewFloatRegister(s Size, number int32) Value {
	return pack(Float, s, PhysicalRegister, number)
}

// NewVirtualRegister returns a fresh virtual register operand numbered
// id; id is unique within its function.
func NewVirtualRegister(t Type, s Size, id int32) Value {
	return pack(t, s, VirtualRegister, id)
}

// NewParameter returns a positional incoming-parameter operand.
func NewParameter(t Type, s Size, position int32) Value {
	return pack(t, s, Parameter, position)
}

// NewArgument returns a call-site argument-slot operand.
func NewArgument(t Type, s Size, position int32) Value {
	return pack(t, s, Argument, position)
}

// NewStackSlot returns an operand referencing spill-slot number index.
func NewStackSlot(s Size, index int32) Value {
	return pack(Integer, s, StackSlot, index)
}

func (k Kind) String() string {
	switch k {
	case Void:
		return "Void"
	case Immediate:
		return "Immediate"
	case LiteralRef:
		return "Literal"
	case Parameter:
		return "Parameter"
	case PhysicalRegister:
		return "PhysicalRegister"
	case VirtualRegister:
		return "VirtualRegister"
	case PseudoRegister:
		return "PseudoRegister"
	case Argument:
		return "Argument"
	case StackSlot:
		return "StackSlot"
	case InstructionRef:
		return "Instruction"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

func (s Size) String() string {
	switch s {
	case Size8:
		return "8"
	case Size16:
		return "16"
	case Size32:
		return "32"
	case Size64:
		return "64"
	default:
		return fmt.Sprintf("Size(%d)", uint32(s))
	}
}

func (v Value) String() string {
	if v.IsVoid() {
		return "void"
	}
	return fmt.Sprintf("%v.%v%v[%d]", v.Type(), v.Kind(), v.Size(), v.Data())
}

func (t Type) String() string {
	if t == Float {
		return "f"
	}
	return "i"
}
