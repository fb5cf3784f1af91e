package hir

import (
	"fmt"

	"github.com/corebackend/backend/pkg/zone"
)

// Enum is a namespace of ordered enum members sharing an underlying
// integer type, one of the nine member kinds. Unlike a general
// Namespace, member order matters for default-value numbering (an enum
// member with no explicit expression takes "previous value + 1"), so
// Enum keeps its own ordered list alongside the inherited name→member
// map.
type Enum struct {
	Namespace
	Underlying Type
	members    *zone.List[*EnumMember]
}

func newEnum(z *zone.Zone, outer *Namespace, simpleName string, underlying Type) *Enum {
	return &Enum{
		Namespace:  newNamespace(z, outer, simpleName),
		Underlying: underlying,
		members:    zone.NewList[*EnumMember](z),
	}
}

func (e *Enum) Kind() Kind { return KindEnum }

// Members returns the enum's members in declaration order, the order
// previousPlusOne numbering depends on.
func (e *Enum) Members() []*EnumMember { return e.members.Items() }

// AddMember appends member to the enum's ordered list in addition to
// registering it in the inherited name→member map, so default-value
// numbering sees declaration order.
func (e *Enum) AddMember(member *EnumMember) error {
	if err := e.Namespace.AddMember(member); err != nil {
		return err
	}
	member.owner = e
	e.members.Append(member)
	return nil
}

// EnumMember carries a constant expression that is folded with cycle
// detection, spec.md §4.8's closing clause on enum members. A member
// with no explicit Expr takes the value of the previous member plus
// one (or zero for the first member), mirroring ordinary enum
// numbering rules.
type EnumMember struct {
	memberBase
	Expr Expr // nil means "implicit: previous value + 1"

	owner    *Enum
	resolved bool
	value    int64
}

func newEnumMember(outer *Namespace, simpleName string, expr Expr) *EnumMember {
	return &EnumMember{memberBase: memberBase{outer: outer, simpleName: simpleName}, Expr: expr}
}

func (m *EnumMember) Kind() Kind { return KindEnumMember }

// Expr is a constant expression an enum member's value folds from.
// The set of expression shapes is deliberately small: this core only
// needs to evaluate integer constants and references to other enum
// members, the only shapes a translator could plausibly produce for an
// enum initializer.
type Expr interface {
	fold(resolve func(*EnumMember) (int64, error)) (int64, error)
}

// IntLiteral is a constant integer expression.
type IntLiteral int64

func (e IntLiteral) fold(func(*EnumMember) (int64, error)) (int64, error) {
	return int64(e), nil
}

// EnumMemberRef is a constant expression referring to another member's
// value, the shape that makes cycle detection necessary (`A = B, B = A`
// would otherwise recurse forever).
type EnumMemberRef struct {
	Member *EnumMember
}

func (e EnumMemberRef) fold(resolve func(*EnumMember) (int64, error)) (int64, error) {
	return resolve(e.Member)
}

// Value returns m's folded constant value, evaluating Expr (or the
// previous-member-plus-one rule) on first use and caching the result.
// A cycle among EnumMemberRef expressions is reported as an error
// rather than a stack overflow, the "cycle detection" spec.md §4.8
// calls for.
func (m *EnumMember) Value() (int64, error) {
	return m.resolve(make(map[*EnumMember]bool))
}

func (m *EnumMember) resolve(path map[*EnumMember]bool) (int64, error) {
	if m.resolved {
		return m.value, nil
	}
	if path[m] {
		return 0, fmt.Errorf("hir: cyclic enum constant expression involving %q", m.simpleName)
	}
	path[m] = true

	var v int64
	var err error
	if m.Expr != nil {
		v, err = m.Expr.fold(func(other *EnumMember) (int64, error) {
			return other.resolve(path)
		})
	} else {
		v, err = m.previousPlusOne(path)
	}
	if err != nil {
		return 0, err
	}
	m.value = v
	m.resolved = true
	return v, nil
}

// previousPlusOne implements the implicit-value rule: the member
// immediately before m in its enum's declaration order, plus one, or
// zero if m is first.
func (m *EnumMember) previousPlusOne(path map[*EnumMember]bool) (int64, error) {
	if m.owner == nil {
		return 0, fmt.Errorf("hir: enum member %q has no owning enum", m.simpleName)
	}
	members := m.owner.members.Items()
	for i, member := range members {
		if member != m {
			continue
		}
		if i == 0 {
			return 0, nil
		}
		prev, err := members[i-1].resolve(path)
		if err != nil {
			return 0, err
		}
		return prev + 1, nil
	}
	return 0, fmt.Errorf("hir: enum member %q not found in its enum's member list", m.simpleName)
}
