package hir

import "github.com/corebackend/backend/pkg/zone"

// Class is a namespace that also carries a base-class list, instance
// and value sizes, and declaration modifiers, ported from
// elang/hir/class.h. Like the original, a Class embeds Namespace: a
// class can itself hold nested members (methods, fields, nested
// classes) under its own name→member map.
type Class struct {
	Namespace
	BaseClasses  []*Class
	Modifiers    Modifiers
	InstanceSize int
	ValueSize    int
}

func newClass(z *zone.Zone, outer *Namespace, simpleName string, baseClasses []*Class, modifiers Modifiers) *Class {
	return &Class{
		Namespace:   newNamespace(z, outer, simpleName),
		BaseClasses: baseClasses,
		Modifiers:   modifiers,
	}
}

func (c *Class) Kind() Kind { return KindClass }

// Type returns the Type view of c, used wherever a field, parameter,
// or return type needs to query instance/value size polymorphically
// with array and primitive types.
func (c *Class) Type() Type { return ClassType{class: c} }

// IsSubclassOf reports whether c derives from other, directly or
// transitively, walking BaseClasses depth-first. Cyclic base-class
// lists (which a well-formed front end never produces) are guarded
// against with a visited set so a malformed input can't spin forever.
func (c *Class) IsSubclassOf(other *Class) bool {
	seen := map[*Class]bool{}
	var walk func(*Class) bool
	walk = func(cur *Class) bool {
		if cur == other {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		for _, base := range cur.BaseClasses {
			if walk(base) {
				return true
			}
		}
		return false
	}
	for _, base := range c.BaseClasses {
		if walk(base) {
			return true
		}
	}
	return false
}
