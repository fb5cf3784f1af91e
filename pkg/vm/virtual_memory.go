// Package vm implements the runtime's executable and data memory pools:
// bump-allocated segments backed by real OS virtual-memory reservations,
// ported from elang/vm/memory_pool.{h,cc} and
// elang/vm/platform/virtual_memory.{h,cc}. The retrieved source reserves
// and commits through Win32's VirtualAlloc/VirtualFree; this port does
// the same two-step dance through golang.org/x/sys/unix's mmap/mprotect/
// munmap, the only platform binding in the whole corpus that actually
// fits this concern (already present in go.mod as a transitive
// dependency of the otel/grpc stack, promoted here to a direct import).
package vm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocateUnit is the minimum size of a single virtual-memory
// reservation, mirroring virtual_memory_win.cc's kAllocateUnit (64 KiB).
const allocateUnit = 64 * 1024

// virtualMemory is one OS-level reservation, committed to either
// executable or read-write protection exactly once and released in
// full on close. There is no decommit: pools free everything on
// teardown, never piecemeal, matching VirtualMemory's destructor-only
// release.
type virtualMemory struct {
	data []byte
}

// reserve reserves at least size bytes of address space, rounded up to
// allocateUnit. The region carries no access permissions until a
// commit call, mirroring VirtualMemory's constructor reserving with
// PAGE_NOACCESS via MEM_RESERVE.
func reserve(size int) (*virtualMemory, error) {
	rounded := roundUp(size, allocateUnit)
	data, err := unix.Mmap(-1, 0, rounded, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("vm: reserve %d bytes: %w", rounded, err)
	}
	return &virtualMemory{data: data}, nil
}

// commitExecutable makes the whole reservation readable, writable, and
// executable, mirroring VirtualMemory::CommitCode's PAGE_EXECUTE_READWRITE.
func (m *virtualMemory) commitExecutable() error {
	if err := unix.Mprotect(m.data, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("vm: commit executable: %w", err)
	}
	return nil
}

// commitReadWrite makes the whole reservation readable and writable,
// mirroring VirtualMemory::CommitData's PAGE_READWRITE.
func (m *virtualMemory) commitReadWrite() error {
	if err := unix.Mprotect(m.data, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vm: commit read-write: %w", err)
	}
	return nil
}

// release unmaps the whole reservation, mirroring VirtualMemory's
// destructor calling VirtualFree with MEM_RELEASE.
func (m *virtualMemory) release() error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("vm: release: %w", err)
	}
	return nil
}

func (m *virtualMemory) size() int { return len(m.data) }

func roundUp(num, unit int) int {
	return ((num + unit - 1) / unit) * unit
}
