package vm

import "fmt"

// Kind distinguishes the protection a pool's segments are committed
// with, mirroring MemoryPool::Kind in memory_pool.h.
type Kind int

const (
	KindCode Kind = iota
	KindData
)

// DefaultAlignment is the bump-allocation alignment spec.md's pool
// section names (8 bytes), matching every allocation size elang's
// Factory/MemoryPool pairing rounds up to.
const DefaultAlignment = 8

// largeBlobThreshold separates small, frequently churned allocations
// from large ones, mirroring memory_pool.cc's kLargeDataThreshold: a
// request at or under this size goes to the small-blob chain, anything
// larger gets its own chain so large-object churn can't fragment the
// region small objects live in.
const largeBlobThreshold = 1024

// segment is one bump-allocated region backed by a single virtual
// memory reservation, mirroring MemoryPool::Segment. Once a segment
// runs out of room it is never reused for a different request size;
// the owning pool just appends a fresh one, the same simplification
// memory_pool.cc's Allocate leaves a TODO about ("we should remember
// rest of memory in segment").
type segment struct {
	memory *virtualMemory
	offset int
	size   int
}

func newSegment(kind Kind, size int) (*segment, error) {
	mem, err := reserve(size)
	if err != nil {
		return nil, err
	}
	if kind == KindCode {
		err = mem.commitExecutable()
	} else {
		err = mem.commitReadWrite()
	}
	if err != nil {
		return nil, err
	}
	return &segment{memory: mem, size: mem.size()}, nil
}

// allocate bump-allocates size bytes from the segment, returning nil
// if the segment doesn't have room.
func (s *segment) allocate(size int) []byte {
	newOffset := s.offset + size
	if newOffset > s.size {
		return nil
	}
	result := s.memory.data[s.offset:newOffset]
	s.offset = newOffset
	return result
}

// MemoryPool is a chain of bump-allocated segments of one Kind, split
// into a small-blob chain and a large-blob chain so that large
// allocations can't fragment the space small ones churn through,
// ported from elang/vm/memory_pool.{h,cc}.
type MemoryPool struct {
	kind      Kind
	alignment int
	small     []*segment
	large     []*segment
}

// NewMemoryPool returns a pool of the given Kind with every allocation
// rounded up to alignment bytes, seeding both chains with a one-byte
// segment exactly as MemoryPool's constructor does — the real size a
// segment reserves is always rounded up to allocateUnit regardless of
// the size requested here.
func NewMemoryPool(kind Kind, alignment int) (*MemoryPool, error) {
	small, err := newSegment(kind, 1)
	if err != nil {
		return nil, err
	}
	large, err := newSegment(kind, 1)
	if err != nil {
		return nil, err
	}
	return &MemoryPool{
		kind:      kind,
		alignment: alignment,
		small:     []*segment{small},
		large:     []*segment{large},
	}, nil
}

// Allocate bump-allocates requestedSize bytes, rounded up to the
// pool's alignment, routing to the large-blob chain when the rounded
// size exceeds largeBlobThreshold, and appending a fresh segment to
// whichever chain runs out of room. The returned slice has length
// requestedSize.
func (p *MemoryPool) Allocate(requestedSize int) ([]byte, error) {
	if requestedSize < 0 {
		return nil, fmt.Errorf("vm: negative allocation size %d", requestedSize)
	}
	size := roundUp(requestedSize, p.alignment)
	chain := &p.small
	if size > largeBlobThreshold {
		chain = &p.large
	}
	result, err := p.allocateFrom(chain, size)
	if err != nil {
		return nil, err
	}
	return result[:requestedSize], nil
}

func (p *MemoryPool) allocateFrom(chain *[]*segment, size int) ([]byte, error) {
	for {
		last := (*chain)[len(*chain)-1]
		if result := last.allocate(size); result != nil {
			return result, nil
		}
		fresh, err := newSegment(p.kind, size)
		if err != nil {
			return nil, err
		}
		*chain = append(*chain, fresh)
	}
}

// Close releases every segment's virtual-memory reservation. Pools
// never decommit piecemeal; this is the only way memory returns to
// the OS, matching spec.md's "pools free everything on teardown."
func (p *MemoryPool) Close() error {
	for _, chain := range [][]*segment{p.small, p.large} {
		for _, s := range chain {
			if err := s.memory.release(); err != nil {
				return err
			}
		}
	}
	return nil
}
