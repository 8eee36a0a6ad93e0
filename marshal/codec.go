package marshal

import (
	"math"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
)

// Codec converts between a native buffer element and its managed value.
// The element lives at addr + index*Size().
type Codec interface {
	FromNative(n *Native, addr uint32, index int) (any, error)
	ToNative(n *Native, addr uint32, index int, v any) error
	Size() uint32
}

// Destructor is implemented by codecs that own native allocations.
type Destructor interface {
	Destroy(n *Native, addr uint32, index int) error
}

// Native bundles the native memory a codec operates on.
type Native struct {
	Mem     bindgen.Memory
	Alloc   bindgen.Allocator
	Names   *NameTable
	Objects *ObjectTable
}

// NewNative returns a Native with fresh name and object tables.
func NewNative(mem bindgen.Memory, alloc bindgen.Allocator) *Native {
	return &Native{
		Mem:     mem,
		Alloc:   alloc,
		Names:   NewNameTable(),
		Objects: NewObjectTable(),
	}
}

// Destroy releases allocations owned by the element if c owns any.
func Destroy(c Codec, n *Native, addr uint32, index int) error {
	if d, ok := c.(Destructor); ok {
		return d.Destroy(n, addr, index)
	}
	return nil
}

func elemAddr(addr uint32, index int, size uint32) (uint32, error) {
	if index < 0 {
		return 0, errors.OutOfBounds(errors.PhaseMarshal, nil, index, 0)
	}
	off := uint64(addr) + uint64(index)*uint64(size)
	if off > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseMarshal, nil, off, "address")
	}
	return uint32(off), nil
}

func mismatch(want string, v any) error {
	return errors.TypeMismatch(errors.PhaseMarshal, nil, typeName(v), want)
}

func memErr(err error, detail string) error {
	return errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, detail)
}

func readPtr(mem bindgen.Memory, addr uint32) (uint32, error) {
	v, err := mem.ReadU64(addr)
	if err != nil {
		return 0, memErr(err, "read pointer")
	}
	if v > math.MaxUint32 {
		return 0, errors.InvalidData(errors.PhaseMarshal, nil, "pointer outside addressable memory")
	}
	return uint32(v), nil
}
