package hir

import (
	"fmt"

	"github.com/corebackend/backend/pkg/zone"
)

// Namespace holds an unordered name→member map, matching spec.md
// §4.8's "a namespace holds an unordered name→member map" and
// elang/hir/namespace.h's AddMember/FindMember pair. A Namespace is
// itself a Member (nested namespaces, and classes which embed one),
// mirroring Namespace's inheritance from NamespaceMember. The member
// map is carved from the owning Factory's zone, so every Namespace
// a Factory produces is reclaimed in one Reset along with the rest of
// that factory's tree.
type Namespace struct {
	memberBase
	members *zone.Map[string, Member]
}

// newNamespace wires up a Namespace's embedded member fields; concrete
// constructors (NewNamespace, NewClass, ...) call this instead of
// duplicating the outer/simpleName/members setup. z is the zone the
// enclosing Factory owns.
func newNamespace(z *zone.Zone, outer *Namespace, simpleName string) Namespace {
	return Namespace{
		memberBase: memberBase{outer: outer, simpleName: simpleName},
		members:    zone.NewMap[string, Member](z),
	}
}

func (n *Namespace) Kind() Kind { return KindNamespace }

// AddMember inserts member under its own simple name, mirroring
// Namespace::AddMember. Returns an error instead of the original's
// DCHECK-on-collision, since a Go factory has no assertion-only escape
// hatch for a caller mistake that can legitimately occur at translation
// time (a name collision the front end failed to reject).
func (n *Namespace) AddMember(member Member) error {
	name := member.SimpleName()
	if _, exists := n.members.Get(name); exists {
		return fmt.Errorf("hir: namespace %q already has a member named %q", n.simpleName, name)
	}
	n.members.Set(name, member)
	return nil
}

// FindMember looks up a direct child by simple name, mirroring
// Namespace::FindMember. Returns (nil, false) rather than a null
// pointer on a miss.
func (n *Namespace) FindMember(simpleName string) (Member, bool) {
	return n.members.Get(simpleName)
}

// Members returns every direct child, in no particular order — the
// map itself is the source of truth, matching the "unordered" name→
// member map spec.md describes.
func (n *Namespace) Members() []Member {
	out := make([]Member, 0, n.members.Len())
	n.members.ForEach(func(_ string, m Member) {
		out = append(out, m)
	})
	return out
}

// ToNamespace reports that a Namespace is, unsurprisingly, a
// Namespace — mirroring NamespaceMember::ToNamespace's virtual
// override pattern, kept here as a plain method since Go dispatches on
// concrete type rather than a virtual function table.
func (n *Namespace) ToNamespace() *Namespace { return n }
