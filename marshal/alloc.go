package marshal

import (
	"sync"

	bindgen "github.com/wippyai/native-bindgen"
)

// Allocation is one temporary native buffer.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Scratch tracks temporary buffers (parameter and return buffers) so they
// can be released together after a call.
type Scratch struct {
	allocations []Allocation
}

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{allocations: make([]Allocation, 0, 8)}
	},
}

const maxPooledScratch = 128

func NewScratch() *Scratch {
	return scratchPool.Get().(*Scratch)
}

// Alloc allocates a zeroed buffer and records it.
func (s *Scratch) Alloc(n *Native, size, align uint32) (uint32, error) {
	ptr, err := n.Alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	s.allocations = append(s.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
	if err := zeroRange(n, ptr, size); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Release frees every buffer in reverse order and returns s to the pool.
// s is invalid afterwards.
func (s *Scratch) Release(alloc bindgen.Allocator) {
	if alloc != nil {
		for i := len(s.allocations) - 1; i >= 0; i-- {
			a := s.allocations[i]
			if a.Ptr != 0 {
				alloc.Free(a.Ptr, a.Size, a.Align)
			}
		}
	}
	if cap(s.allocations) > maxPooledScratch {
		return
	}
	s.allocations = s.allocations[:0]
	scratchPool.Put(s)
}

func (s *Scratch) Count() int {
	return len(s.allocations)
}
