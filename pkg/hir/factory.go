package hir

import "github.com/corebackend/backend/pkg/zone"

// Factory is the sole constructor of HIR nodes, mirroring
// elang/hir/namespace.h and class.h's `friend class Factory` pattern:
// every concrete node type's constructor is unexported, so a node can
// only come into existence through the factory that owns its zone.
type Factory struct {
	zone.Owner
}

// NewFactory returns a Factory with a fresh zone.
func NewFactory() *Factory { return &Factory{} }

// NewNamespace creates a namespace nested directly under outer (nil
// for the root namespace).
func (f *Factory) NewNamespace(outer *Namespace, simpleName string) *Namespace {
	ns := newNamespace(f.Zone(), outer, simpleName)
	return &ns
}

// NewClass creates a class nested under outer with the given base
// classes and modifiers.
func (f *Factory) NewClass(outer *Namespace, simpleName string, baseClasses []*Class, modifiers Modifiers) *Class {
	return newClass(f.Zone(), outer, simpleName, baseClasses, modifiers)
}

// NewMethodGroup creates an (initially empty) overload group nested
// under outer.
func (f *Factory) NewMethodGroup(outer *Namespace, simpleName string) *MethodGroup {
	return newMethodGroup(f.Zone(), outer, simpleName)
}

// NewMethod creates a method belonging to group, appending it to the
// group's overload list.
func (f *Factory) NewMethod(outer *Namespace, group *MethodGroup, params []Parameter, returnType Type, modifiers Modifiers) *Method {
	m := newMethod(outer, group.simpleName, group, params, returnType, modifiers)
	group.AddMethod(m)
	return m
}

// NewField creates a field nested under outer.
func (f *Factory) NewField(outer *Namespace, simpleName string, t Type, modifiers Modifiers) *Field {
	return newField(outer, simpleName, t, modifiers)
}

// NewEnum creates an (initially empty) enum nested under outer.
func (f *Factory) NewEnum(outer *Namespace, simpleName string, underlying Type) *Enum {
	return newEnum(f.Zone(), outer, simpleName, underlying)
}

// NewEnumMember creates an enum member with the given constant
// expression (nil for the implicit previous-plus-one rule) and appends
// it to enum's ordered member list.
func (f *Factory) NewEnumMember(enum *Enum, simpleName string, expr Expr) (*EnumMember, error) {
	m := newEnumMember(&enum.Namespace, simpleName, expr)
	if err := enum.AddMember(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewAlias creates an alias member nested under outer.
func (f *Factory) NewAlias(outer *Namespace, simpleName string, target Member) *Alias {
	return newAlias(outer, simpleName, target)
}

// NewImport creates an import member nested under outer.
func (f *Factory) NewImport(outer *Namespace, simpleName string, target *Namespace) *Import {
	return newImport(outer, simpleName, target)
}

// NewFunction creates an empty SSA-form function body ready for a
// Translator to populate.
func (f *Factory) NewFunction(name string, signature Signature) *Function {
	return newFunction(name, signature)
}
