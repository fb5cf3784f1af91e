// Package hir is a zone-owned tree of namespaces, classes, fields,
// methods, method groups, enums, aliases, and imports, plus an
// SSA-form value graph produced by an (externally-supplied) translator,
// ported from elang/hir/{node,namespace,namespace_member,class,
// simple_name,atomic_string}.* and spec.md §4.8. Translation from an
// external AST into this tree is explicitly out of scope (spec.md
// §4.8's "Translator is external to this spec; the core observes only
// the interface above") — Translator below is the interface boundary,
// not an implementation.
package hir

import "fmt"

// Kind distinguishes the nine member kinds spec.md §4.8's HIR-entities
// paragraph names: namespace, class, method, method-group, field,
// alias, import, enum, enum-member.
type Kind int

const (
	KindNamespace Kind = iota
	KindClass
	KindMethod
	KindMethodGroup
	KindField
	KindAlias
	KindImport
	KindEnum
	KindEnumMember
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindMethodGroup:
		return "method-group"
	case KindField:
		return "field"
	case KindAlias:
		return "alias"
	case KindImport:
		return "import"
	case KindEnum:
		return "enum"
	case KindEnumMember:
		return "enum-member"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Member is anything a Namespace can hold under a simple name, mirroring
// elang/hir/namespace_member.h's NamespaceMember base: every member
// knows its own kind, its simple name, and the namespace that directly
// contains it (nil only for the root namespace).
type Member interface {
	Kind() Kind
	SimpleName() string
	Outer() *Namespace
	// IsDescendantOf reports whether this member's namespace chain
	// passes through other, mirroring NamespaceMember::IsDescendantOf.
	IsDescendantOf(other *Namespace) bool
}

// memberBase is embedded by every concrete member type; it carries the
// fields NamespaceMember declares and implements SimpleName/Outer/
// IsDescendantOf once for all of them.
type memberBase struct {
	outer      *Namespace
	simpleName string
}

func (m *memberBase) SimpleName() string { return m.simpleName }
func (m *memberBase) Outer() *Namespace  { return m.outer }

func (m *memberBase) IsDescendantOf(other *Namespace) bool {
	for ns := m.outer; ns != nil; ns = ns.outer {
		if ns == other {
			return true
		}
	}
	return false
}
