package hir

import "github.com/corebackend/backend/pkg/zone"

// MethodGroup collects every overload sharing one simple name within a
// namespace, one of the nine member kinds spec.md §4.8 lists; method
// overload resolution (not part of this core) works against a group's
// Methods list rather than a single Method.
type MethodGroup struct {
	memberBase
	methods *zone.List[*Method]
}

func newMethodGroup(z *zone.Zone, outer *Namespace, simpleName string) *MethodGroup {
	return &MethodGroup{
		memberBase: memberBase{outer: outer, simpleName: simpleName},
		methods:    zone.NewList[*Method](z),
	}
}

func (g *MethodGroup) Kind() Kind { return KindMethodGroup }

// Methods returns the group's overloads in the order they were added.
func (g *MethodGroup) Methods() []*Method { return g.methods.Items() }

// AddMethod appends m to the group's overload list.
func (g *MethodGroup) AddMethod(m *Method) { g.methods.Append(m) }

// Method carries a parameter list, return type, and declaration
// modifiers (spec.md §4.8), plus the translated SSA body a Translator
// attaches once available — nil for a method with no body (abstract,
// extern).
type Method struct {
	memberBase
	Group      *MethodGroup
	Parameters []Parameter
	ReturnType Type
	Modifiers  Modifiers
	Body       *Function
}

func newMethod(outer *Namespace, simpleName string, group *MethodGroup, params []Parameter, returnType Type, modifiers Modifiers) *Method {
	return &Method{
		memberBase: memberBase{outer: outer, simpleName: simpleName},
		Group:      group,
		Parameters: params,
		ReturnType: returnType,
		Modifiers:  modifiers,
	}
}

func (m *Method) Kind() Kind { return KindMethod }

// Signature reports the parameter types and return type a Function
// body attached to this method must match, used by Function.Validate.
func (m *Method) Signature() Signature {
	types := make([]Type, len(m.Parameters))
	for i, p := range m.Parameters {
		types[i] = p.Type
	}
	return Signature{Parameters: types, Return: m.ReturnType}
}
