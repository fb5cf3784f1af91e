package hir

// Field is a named, typed member of a class, one of the nine member
// kinds spec.md §4.8 lists.
type Field struct {
	memberBase
	Type      Type
	Modifiers Modifiers
}

func newField(outer *Namespace, simpleName string, t Type, modifiers Modifiers) *Field {
	return &Field{
		memberBase: memberBase{outer: outer, simpleName: simpleName},
		Type:       t,
		Modifiers:  modifiers,
	}
}

func (f *Field) Kind() Kind { return KindField }

// Parameter is one entry in a method's parameter list, spec.md §4.8's
// "methods carry parameter list, return type, modifiers."
type Parameter struct {
	Name string
	Type Type
}

// Alias renames another member within this namespace without copying
// it, one of the nine member kinds.
type Alias struct {
	memberBase
	Target Member
}

func newAlias(outer *Namespace, simpleName string, target Member) *Alias {
	return &Alias{memberBase: memberBase{outer: outer, simpleName: simpleName}, Target: target}
}

func (a *Alias) Kind() Kind { return KindAlias }

// Import brings another namespace's members into scope under this
// namespace without nesting it, one of the nine member kinds.
type Import struct {
	memberBase
	Target *Namespace
}

func newImport(outer *Namespace, simpleName string, target *Namespace) *Import {
	return &Import{memberBase: memberBase{outer: outer, simpleName: simpleName}, Target: target}
}

func (i *Import) Kind() Kind { return KindImport }
