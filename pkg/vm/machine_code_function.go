package vm

import (
	"unsafe"

	"github.com/corebackend/backend/pkg/codegen"
)

// MachineCodeFunction pairs a pool-allocated, already-populated
// executable region with the annotations a codegen.Builder recorded
// while emitting it, ported from elang/vm/machine_code_function.h.
// Its surface is narrow by design, mirroring the retrieved type's own
// code_size_for_testing/code_start_for_testing plus Call/Invoke: once
// code has been committed executable there is nothing left to do with
// it but run it or report where it lives.
type MachineCodeFunction struct {
	code        []byte
	annotations []codegen.Annotation
}

// Install copies code into a pool-allocated executable region and
// wraps it as a MachineCodeFunction, the Go equivalent of
// MachineCodeBuilderImpl::NewMachineCodeFunction (which allocates from
// a Factory-owned code pool and memcpys bytes_ into it).
func Install(pool *MemoryPool, code []byte, annotations []codegen.Annotation) (*MachineCodeFunction, error) {
	region, err := pool.Allocate(len(code))
	if err != nil {
		return nil, err
	}
	copy(region, code)
	return &MachineCodeFunction{code: region, annotations: annotations}, nil
}

// Address returns the entry point's address, the Go equivalent of
// MachineCodeFunction::address() (the base used by
// MachineCodeCollection's address-keyed lookup).
func (f *MachineCodeFunction) Address() uintptr {
	return uintptr(unsafe.Pointer(&f.code[0]))
}

// CodeSize returns the number of bytes of machine code installed,
// mirroring code_size_for_testing().
func (f *MachineCodeFunction) CodeSize() int { return len(f.code) }

// Annotations returns the call-site and source-location records the
// builder attached while emitting this function.
func (f *MachineCodeFunction) Annotations() []codegen.Annotation { return f.annotations }

// Invoke calls the function with up to six integer/pointer-sized
// arguments using the System V AMD64 calling convention the retrieved
// header's reinterpret_cast<EntryPoint> relies on, and returns its RAX
// result. Go has no reinterpret_cast for function pointers, so this
// goes through a small assembly trampoline (call_amd64.s) rather than
// the templated Call<Return,Params...>/Invoke<Params...> methods the
// retrieved header declares.
func (f *MachineCodeFunction) Invoke(args ...int64) int64 {
	var a [6]int64
	copy(a[:], args)
	return callNative(f.Address(), a[0], a[1], a[2], a[3], a[4], a[5])
}
