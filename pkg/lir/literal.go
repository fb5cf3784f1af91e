package lir

import "github.com/corebackend/backend/pkg/zone"

// Literal is a zone-owned constant too wide for a Value's 24-bit
// immediate payload: a 32/64-bit float, a 32/64-bit integer, or a UTF-16
// string. Values of kind LiteralRef (see NewLiteral) index into a
// Function's literal table to recover one of these.
type Literal struct {
	Float32 float32
	Float64 float64
	Int32   int32
	Int64   int64
	String  []uint16
	kind    literalKind
}

type literalKind int

const (
	literalFloat32 literalKind = iota
	literalFloat64
	literalInt32
	literalInt64
	literalString
)

// IsFloat32, IsFloat64, IsInt32, IsInt64, and IsString report which field
// of the Literal actually holds data, letting a patch-emission visitor
// dispatch the way elang/lir/code_emitter_x64.cc's ValueEmitter does.
func (l *Literal) IsFloat32() bool { return l.kind == literalFloat32 }
func (l *Literal) IsFloat64() bool { return l.kind == literalFloat64 }
func (l *Literal) IsInt32() bool   { return l.kind == literalInt32 }
func (l *Literal) IsInt64() bool   { return l.kind == literalInt64 }
func (l *Literal) IsString() bool  { return l.kind == literalString }

func NewFloat32Literal(v float32) *Literal { return &Literal{Float32: v, kind: literalFloat32} }
func NewFloat64Literal(v float64) *Literal { return &Literal{Float64: v, kind: literalFloat64} }
func NewInt32Literal(v int32) *Literal     { return &Literal{Int32: v, kind: literalInt32} }
func NewInt64Literal(v int64) *Literal     { return &Literal{Int64: v, kind: literalInt64} }

// NewStringLiteral encodes s as UTF-16, matching the original's string
// literal representation.
func NewStringLiteral(s string) *Literal {
	return &Literal{String: utf16Encode(s), kind: literalString}
}

func utf16Encode(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

// LiteralTable is a zone-owned, index-addressed table of literals a
// Function's Literal-kind Values refer to by payload index.
type LiteralTable struct {
	literals *zone.List[*Literal]
}

// newLiteralTable returns a LiteralTable backed by zone z.
func newLiteralTable(z *zone.Zone) LiteralTable {
	return LiteralTable{literals: zone.NewList[*Literal](z)}
}

// Add appends lit and returns its table index, for use as a Value's
// payload via NewLiteral.
func (t *LiteralTable) Add(lit *Literal) int32 {
	t.literals.Append(lit)
	return int32(t.literals.Len() - 1)
}

// At returns the literal at index i.
func (t *LiteralTable) At(i int32) *Literal {
	return t.literals.At(int(i))
}
