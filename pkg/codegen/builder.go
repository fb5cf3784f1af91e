// Package codegen lowers a register-allocated LIR function into x86-64
// machine code, ported from the call sequence elang/vm's
// MachineCodeBuilderImpl documents and the buffer/deferred-patch idiom
// elang/lir/code_emitter_x64.cc's CodeBuffer/ValueEmitter implement.
package codegen

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AnnotationKind tags what a byte offset in a Builder's buffer records,
// mirroring the {kind:4, offset:28} packing of
// elang/vm/machine_code_annotation.h's MachineCodeAnnotation (kept here
// as two separate fields rather than packed into one int — Go has no
// pressure to bit-pack a struct this small).
type AnnotationKind int

const (
	AnnotationCallSite AnnotationKind = iota
	AnnotationSourceLocation
)

// Annotation is one non-functional metadata record: elang/vm's
// SetCallSite/SetSourceCodeLocation calls are explicitly "non-functional
// metadata" (spec.md §4.16), so a Builder just keeps them as an ordered
// list rather than threading them through any further computation.
type Annotation struct {
	Kind   AnnotationKind
	Offset int
	Text   string
}

// Builder accumulates one function's machine code and applies deferred
// patches to it, following the exact call sequence spec.md §4.16 and
// machine_code_builder_impl.h specify: PrepareCode first, then any
// number of EmitCode calls, then any mix of Set* patches, then exactly
// one FinishCode. Unlike the retrieved MachineCodeBuilderImpl, whose
// SetInt32/SetInt64/SetFloat32/SetFloat64/SetCodeOffset bodies are all
// DCHECK-only stubs that never actually touch bytes_, this Builder's
// Set* methods perform the real patch — a working emitter has no way to
// produce correct branch targets or literal operands otherwise.
type Builder struct {
	bytes       []byte
	annotations []Annotation
	prepared    bool
	finished    bool
}

// NewBuilder returns an empty Builder ready for PrepareCode.
func NewBuilder() *Builder { return &Builder{} }

// PrepareCode reserves capacity for the function's total code size, a
// hint only — EmitCode still appends and grows the buffer if the hint
// undershoots.
func (b *Builder) PrepareCode(size int) {
	if b.finished {
		panic("codegen: PrepareCode called after FinishCode")
	}
	if cap(b.bytes) < size {
		grown := make([]byte, len(b.bytes), size)
		copy(grown, b.bytes)
		b.bytes = grown
	}
	b.prepared = true
}

// EmitCode appends one basic block's already-encoded bytes and returns
// the offset it was written at, so the caller can record where that
// block begins for later jump-target patching.
func (b *Builder) EmitCode(code []byte) int {
	if !b.prepared {
		panic("codegen: EmitCode called before PrepareCode")
	}
	offset := len(b.bytes)
	b.bytes = append(b.bytes, code...)
	return offset
}

// SetCodeOffset patches the 32-bit relative displacement whose four
// bytes start at offset so the branch instruction containing them jumps
// to target. offset is the position of the displacement field itself
// (the last four bytes of the branch instruction in every form this
// package's encoder emits), not the start of the instruction.
func (b *Builder) SetCodeOffset(offset, target int) {
	b.checkRange(offset, 4)
	rel := int32(target - (offset + 4))
	binary.LittleEndian.PutUint32(b.bytes[offset:], uint32(rel))
}

// SetInt32 patches four bytes starting at offset with v.
func (b *Builder) SetInt32(offset int, v int32) {
	b.checkRange(offset, 4)
	binary.LittleEndian.PutUint32(b.bytes[offset:], uint32(v))
}

// SetInt64 patches eight bytes starting at offset with v.
func (b *Builder) SetInt64(offset int, v int64) {
	b.checkRange(offset, 8)
	binary.LittleEndian.PutUint64(b.bytes[offset:], uint64(v))
}

// SetFloat32 patches four bytes starting at offset with v's bit
// pattern.
func (b *Builder) SetFloat32(offset int, v float32) {
	b.SetInt32(offset, int32(math.Float32bits(v)))
}

// SetFloat64 patches eight bytes starting at offset with v's bit
// pattern.
func (b *Builder) SetFloat64(offset int, v float64) {
	b.SetInt64(offset, int64(math.Float64bits(v)))
}

// SetString patches eight bytes starting at offset with a pointer into
// the data pool (component S) where the string's UTF-16 payload lives.
// Resolving that pointer is the data pool's job; the Builder only
// writes whatever address it is given.
func (b *Builder) SetString(offset int, dataPointer uint64) {
	b.checkRange(offset, 8)
	binary.LittleEndian.PutUint64(b.bytes[offset:], dataPointer)
}

// SetCallSite records, at offset, the name of the function a call
// instruction targets. Matching spec.md §4.16, this is metadata only:
// resolving the name to an address (elang/vm/machine_code_collection.h's
// FunctionByName) is the machine-code collection's job, not the
// builder's.
func (b *Builder) SetCallSite(offset int, name string) {
	b.checkRange(offset, 0)
	b.annotations = append(b.annotations, Annotation{Kind: AnnotationCallSite, Offset: offset, Text: name})
}

// SetSourceCodeLocation records a debug-info marker at offset. Metadata
// only, same as SetCallSite.
func (b *Builder) SetSourceCodeLocation(offset int, location string) {
	b.checkRange(offset, 0)
	b.annotations = append(b.annotations, Annotation{Kind: AnnotationSourceLocation, Offset: offset, Text: location})
}

// FinishCode marks the buffer complete. A component S consumer calls
// Bytes/Annotations afterward to allocate executable memory and copy
// the finished code in (elang/vm/machine_code_builder_impl.cc's
// NewMachineCodeFunction); that allocation step belongs to the virtual
// memory pool, not to this package.
func (b *Builder) FinishCode() {
	b.finished = true
}

// Bytes returns the finished function's machine code. Valid only after
// FinishCode.
func (b *Builder) Bytes() []byte {
	if !b.finished {
		panic("codegen: Bytes called before FinishCode")
	}
	return b.bytes
}

// Annotations returns the call-site and source-location records
// accumulated during emission, in the order they were set.
func (b *Builder) Annotations() []Annotation { return b.annotations }

func (b *Builder) checkRange(offset, width int) {
	if offset < 0 || offset+width > len(b.bytes) {
		panic(fmt.Sprintf("codegen: patch at offset %d (width %d) is out of range of a %d-byte buffer", offset, width, len(b.bytes)))
	}
}
