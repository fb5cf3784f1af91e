package vm

import (
	"fmt"
	"sort"
)

// MachineCodeCollection is the process-wide table of installed
// functions, keyed both by name and by entry-point address, ported
// from elang/vm/machine_code_collection.{h,cc}. spec.md's concurrency
// section names this as the one resource needing caller-serialized
// updates across a collection's lifetime; this type performs no
// locking of its own and expects the same external serialization the
// rest of the pipeline already applies to shared compiler state.
type MachineCodeCollection struct {
	byName    map[string]*MachineCodeFunction
	addresses []uintptr // sorted ascending, parallel to byAddress
	byAddress []*MachineCodeFunction
}

// NewMachineCodeCollection returns an empty collection.
func NewMachineCodeCollection() *MachineCodeCollection {
	return &MachineCodeCollection{byName: make(map[string]*MachineCodeFunction)}
}

// Install registers fn under name, rejecting a name collision or an
// address range that overlaps a previously installed function,
// mirroring MachineCodeCollection::RegisterFunction's DCHECKs against
// a second registration.
func (c *MachineCodeCollection) Install(name string, fn *MachineCodeFunction) error {
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("vm: function %q already installed", name)
	}
	addr := fn.Address()
	i := sort.Search(len(c.addresses), func(i int) bool { return c.addresses[i] >= addr })
	if i < len(c.addresses) && c.addresses[i] < addr+uintptr(fn.CodeSize()) {
		return fmt.Errorf("vm: function at %#x overlaps an installed function", addr)
	}
	if i > 0 {
		prev := c.byAddress[i-1]
		if c.addresses[i-1]+uintptr(prev.CodeSize()) > addr {
			return fmt.Errorf("vm: function at %#x overlaps an installed function", addr)
		}
	}

	c.addresses = append(c.addresses, 0)
	copy(c.addresses[i+1:], c.addresses[i:])
	c.addresses[i] = addr

	c.byAddress = append(c.byAddress, nil)
	copy(c.byAddress[i+1:], c.byAddress[i:])
	c.byAddress[i] = fn

	c.byName[name] = fn
	return nil
}

// FunctionByName looks up a previously installed function by its
// registered name, mirroring MachineCodeCollection::FunctionByName.
func (c *MachineCodeCollection) FunctionByName(name string) (*MachineCodeFunction, bool) {
	fn, ok := c.byName[name]
	return fn, ok
}

// FunctionByAddress finds the installed function whose code range
// contains address, mirroring MachineCodeCollection::FunctionByAddress.
// The retrieved std::map::lower_bound scan only succeeds when address
// is exactly a registered entry point; this port instead floors to the
// last function starting at or before address and range-checks against
// its code size, so an interior address (a return address captured
// mid-call, say) resolves to the right function too.
func (c *MachineCodeCollection) FunctionByAddress(address uintptr) (*MachineCodeFunction, bool) {
	i := sort.Search(len(c.addresses), func(i int) bool { return c.addresses[i] > address }) - 1
	if i < 0 {
		return nil, false
	}
	fn := c.byAddress[i]
	if address-c.addresses[i] >= uintptr(fn.CodeSize()) {
		return nil, false
	}
	return fn, true
}
