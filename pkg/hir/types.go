package hir

// Type answers the type queries spec.md §4.8 lists as part of HIR's
// surface: instance size, value size, element type, and rank (the
// last two meaningful only for array types).
type Type interface {
	// InstanceSize is the size in bytes of a boxed/heap instance of
	// this type.
	InstanceSize() int
	// ValueSize is the size in bytes of this type when held by value
	// (a register or a stack slot), which for a class type is the
	// size of a reference rather than InstanceSize.
	ValueSize() int
	// ElementType returns the array element type, or nil for a
	// non-array type.
	ElementType() Type
	// Rank returns the array rank (number of dimensions), or 0 for a
	// non-array type.
	Rank() int
}

// ClassType is the Type view of a Class: its instance size is the
// class's own declared instance_size, and (unlike a value type) its
// value size is always a pointer width, since a class value is held by
// reference.
type ClassType struct {
	class *Class
}

func (t ClassType) InstanceSize() int { return t.class.InstanceSize }
func (t ClassType) ValueSize() int    { return referenceSize }
func (t ClassType) ElementType() Type { return nil }
func (t ClassType) Rank() int         { return 0 }

// referenceSize is the width of a reference on the 64-bit target this
// backend emits code for.
const referenceSize = 8

// ArrayType pairs an element type with a rank, matching spec.md §4.8's
// "array types carry an element type and a rank."
type ArrayType struct {
	Element Type
	rank    int
}

// NewArrayType returns the array type of element with the given rank
// (1 for a single-dimension array).
func NewArrayType(element Type, rank int) ArrayType {
	return ArrayType{Element: element, rank: rank}
}

func (t ArrayType) InstanceSize() int { return referenceSize }
func (t ArrayType) ValueSize() int    { return referenceSize }
func (t ArrayType) ElementType() Type { return t.Element }
func (t ArrayType) Rank() int         { return t.rank }

// PrimitiveType is a fixed-size value type with no element type or
// rank — the HIR-level stand-in for the target's built-in numeric and
// boolean types (int32, int64, float32, float64, bool, and so on).
type PrimitiveType struct {
	Name string
	Size int
}

func (t PrimitiveType) InstanceSize() int { return t.Size }
func (t PrimitiveType) ValueSize() int    { return t.Size }
func (t PrimitiveType) ElementType() Type { return nil }
func (t PrimitiveType) Rank() int         { return 0 }
