package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	bindgen "github.com/wippyai/native-bindgen"
)

const pageSize = 65536

// Wrap adapts guest linear memory to bindgen.Memory.
func Wrap(mem api.Memory) bindgen.Memory {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to bindgen.Memory.
type Wrapper struct {
	Mem api.Memory
}

func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if !m.Mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// HeapAllocator is a bump allocator over guest memory. It claims pages past
// the guest's initial size with Grow, so guest data is never overwritten.
type HeapAllocator struct {
	Mem  api.Memory
	next uint32
	end  uint32
	mu   sync.Mutex
}

// NewHeapAllocator returns an allocator that starts at the current end of mem.
func NewHeapAllocator(mem api.Memory) *HeapAllocator {
	size := mem.Size()
	return &HeapAllocator{Mem: mem, next: size, end: size}
}

func (h *HeapAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ptr := (h.next + align - 1) &^ (align - 1)
	need := uint64(ptr) + uint64(size)
	if need > uint64(h.end) {
		pages := uint32((need - uint64(h.end) + pageSize - 1) / pageSize)
		if _, ok := h.Mem.Grow(pages); !ok {
			return 0, fmt.Errorf("guest memory grow failed: pages=%d", pages)
		}
		h.end = h.Mem.Size()
	}
	h.next = uint32(need)
	return ptr, nil
}

// Free reclaims only the most recent allocation.
func (h *HeapAllocator) Free(ptr, size, _ uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ptr+size == h.next {
		h.next = ptr
	}
}

// WrapAllocator adapts a guest-exported allocator with the realloc
// signature (ptr, oldSize, align, newSize) -> ptr.
func WrapAllocator(ctx context.Context, fn api.Function) bindgen.Allocator {
	if fn == nil {
		return nil
	}
	return &AllocatorWrapper{Ctx: ctx, Fn: fn}
}

// AllocatorWrapper calls a guest realloc export.
type AllocatorWrapper struct {
	Ctx context.Context
	Fn  api.Function
}

func (a *AllocatorWrapper) Alloc(size, align uint32) (uint32, error) {
	results, err := a.Fn.Call(a.Ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, fmt.Errorf("allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocation returned no result")
	}
	return uint32(results[0]), nil
}

func (a *AllocatorWrapper) Free(ptr, size, align uint32) {
	_, _ = a.Fn.Call(a.Ctx, uint64(ptr), uint64(size), uint64(align), 0)
}
