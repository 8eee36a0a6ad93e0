package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// arenaBase keeps address 0 unused so it can stand for null.
const arenaBase = 8

// Arena is an in-process native buffer with a bump allocator. It implements
// bindgen.Memory and bindgen.Allocator and is safe for concurrent use.
type Arena struct {
	buf  []byte
	next uint32
	live int
	mu   sync.Mutex
}

// NewArena returns an arena with capacity bytes preallocated.
func NewArena(capacity int) *Arena {
	if capacity < arenaBase {
		capacity = arenaBase
	}
	return &Arena{buf: make([]byte, arenaBase, capacity), next: arenaBase}
}

// Size returns the number of addressable bytes.
func (a *Arena) Size() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(len(a.buf))
}

// Live returns the number of allocations not yet freed.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Alloc reserves size zeroed bytes aligned to align.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ptr := (a.next + align - 1) &^ (align - 1)
	end := uint64(ptr) + uint64(size)
	if end > math.MaxUint32 {
		return 0, fmt.Errorf("arena exhausted: size=%d align=%d", size, align)
	}
	if int(end) > len(a.buf) {
		grown := make([]byte, end, max(int(end), 2*cap(a.buf)))
		copy(grown, a.buf)
		a.buf = grown
	}
	clear(a.buf[ptr:end])
	a.next = uint32(end)
	a.live++
	return ptr, nil
}

// Free releases an allocation. Space is reclaimed when ptr is the most
// recent allocation.
func (a *Arena) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live > 0 {
		a.live--
	}
	if ptr+size == a.next {
		a.next = ptr
	}
}

func (a *Arena) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(a.buf)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (a *Arena) Read(offset, length uint32) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, a.buf[offset:])
	return out, nil
}

func (a *Arena) Write(offset uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(a.buf[offset:], data)
	return nil
}

func (a *Arena) ReadU8(offset uint32) (uint8, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 1); err != nil {
		return 0, err
	}
	return a.buf[offset], nil
}

func (a *Arena) ReadU16(offset uint32) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(a.buf[offset:]), nil
}

func (a *Arena) ReadU32(offset uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(a.buf[offset:]), nil
}

func (a *Arena) ReadU64(offset uint32) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.buf[offset:]), nil
}

func (a *Arena) WriteU8(offset uint32, value uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 1); err != nil {
		return err
	}
	a.buf[offset] = value
	return nil
}

func (a *Arena) WriteU16(offset uint32, value uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(a.buf[offset:], value)
	return nil
}

func (a *Arena) WriteU32(offset uint32, value uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.buf[offset:], value)
	return nil
}

func (a *Arena) WriteU64(offset uint32, value uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.buf[offset:], value)
	return nil
}
