package marshal

import (
	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
)

// header is the script array header {data u64, num i32, max i32}.
type header struct {
	data uint32
	num  int32
	max  int32
}

func readHeader(mem bindgen.Memory, at uint32) (header, error) {
	data, err := readPtr(mem, at+layout.ArrayDataOffset)
	if err != nil {
		return header{}, err
	}
	num, err := mem.ReadU32(at + layout.ArrayNumOffset)
	if err != nil {
		return header{}, memErr(err, "read array count")
	}
	capacity, err := mem.ReadU32(at + layout.ArrayMaxOffset)
	if err != nil {
		return header{}, memErr(err, "read array capacity")
	}
	h := header{data: data, num: int32(num), max: int32(capacity)}
	if h.num < 0 || h.max < h.num || h.num > layout.MaxElements || (h.num > 0 && h.data == 0) {
		return header{}, errors.InvalidData(errors.PhaseMarshal, nil, "corrupt script array header")
	}
	return h, nil
}

func writeHeader(mem bindgen.Memory, at uint32, h header) error {
	if err := mem.WriteU64(at+layout.ArrayDataOffset, uint64(h.data)); err != nil {
		return memErr(err, "write array header")
	}
	if err := mem.WriteU32(at+layout.ArrayNumOffset, uint32(h.num)); err != nil {
		return memErr(err, "write array header")
	}
	if err := mem.WriteU32(at+layout.ArrayMaxOffset, uint32(h.max)); err != nil {
		return memErr(err, "write array header")
	}
	return nil
}

// ensure returns a header whose buffer holds at least count elements. When
// preserve is set the existing elements are carried over on reallocation.
// The returned header is not written back.
func ensure(n *Native, at uint32, count int, stride, align uint32, preserve bool) (header, error) {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return header{}, err
	}
	if int(h.max) >= count && h.data != 0 {
		return h, nil
	}
	if count > layout.MaxElements {
		return header{}, errors.Overflow(errors.PhaseMarshal, nil, count, "script array")
	}
	if n.Alloc == nil {
		return header{}, errors.New(errors.PhaseMarshal, errors.KindAllocation).Detail("no allocator").Build()
	}

	capacity := count
	if preserve && int(h.max)*2 > capacity {
		capacity = int(h.max) * 2
	}
	size, ok := layout.SafeMul(uint32(capacity), stride)
	if !ok {
		return header{}, errors.Overflow(errors.PhaseMarshal, nil, capacity, "script array")
	}
	data, err := n.Alloc.Alloc(size, align)
	if err != nil {
		return header{}, errors.Wrap(errors.PhaseMarshal, errors.KindAllocation, err, "allocate script array")
	}
	if err := zeroRange(n, data, size); err != nil {
		return header{}, err
	}

	if h.data != 0 {
		if preserve && h.num > 0 {
			old, err := n.Mem.Read(h.data, uint32(h.num)*stride)
			if err != nil {
				return header{}, memErr(err, "read script array")
			}
			if err := n.Mem.Write(data, old); err != nil {
				return header{}, memErr(err, "write script array")
			}
		}
		n.Alloc.Free(h.data, uint32(h.max)*stride, align)
	}
	return header{data: data, num: h.num, max: int32(capacity)}, nil
}

// freeArray releases the buffer of the script array at at and zeroes its
// header. Element destructors must already have run.
func freeArray(n *Native, at uint32, stride, align uint32) error {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return err
	}
	if h.data != 0 && n.Alloc != nil {
		n.Alloc.Free(h.data, uint32(h.max)*stride, align)
	}
	return writeHeader(n.Mem, at, header{})
}

func zeroRange(n *Native, addr, length uint32) error {
	if length == 0 {
		return nil
	}
	if err := n.Mem.Write(addr, make([]byte, length)); err != nil {
		return memErr(err, "zero buffer")
	}
	return nil
}

// removeSlot deletes slot i by shifting the tail down, keeping order.
func removeSlot(n *Native, at uint32, h header, stride uint32, i int) error {
	slot := h.data + uint32(i)*stride
	tail := uint32(int(h.num)-i-1) * stride
	if tail > 0 {
		rest, err := n.Mem.Read(slot+stride, tail)
		if err != nil {
			return memErr(err, "read script array")
		}
		if err := n.Mem.Write(slot, rest); err != nil {
			return memErr(err, "write script array")
		}
	}
	if err := zeroRange(n, h.data+uint32(h.num-1)*stride, stride); err != nil {
		return err
	}
	h.num--
	return writeHeader(n.Mem, at, h)
}

// ArrayCopy converts a script array to and from a detached []any. It is
// the variant used for struct members and parameters.
type ArrayCopy struct {
	Elem  Codec
	Align uint32
}

func NewArrayCopy(elem Codec, align uint32) *ArrayCopy {
	return &ArrayCopy{Elem: elem, Align: align}
}

func (a *ArrayCopy) Size() uint32 { return layout.ArrayHeaderSize }

func (a *ArrayCopy) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	return readElements(n, at, a.Elem)
}

func (a *ArrayCopy) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	items, err := arrayItems(v)
	if err != nil {
		return err
	}
	return writeElements(n, at, a.Elem, a.Align, items)
}

func (a *ArrayCopy) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return destroyArray(n, at, a.Elem, a.Align)
}

// ArrayLive converts a script array to an *ArrayView that reads and writes
// the native buffer in place. It is the variant used for class members.
type ArrayLive struct {
	Elem  Codec
	Align uint32
}

func NewArrayLive(elem Codec, align uint32) *ArrayLive {
	return &ArrayLive{Elem: elem, Align: align}
}

func (a *ArrayLive) Size() uint32 { return layout.ArrayHeaderSize }

func (a *ArrayLive) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	if _, err := readHeader(n.Mem, at); err != nil {
		return nil, err
	}
	return &ArrayView{n: n, addr: at, elem: a.Elem, align: a.Align}, nil
}

func (a *ArrayLive) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	if view, ok := v.(*ArrayView); ok && view.n == n && view.addr == at {
		return nil
	}
	items, err := arrayItems(v)
	if err != nil {
		return err
	}
	return writeElements(n, at, a.Elem, a.Align, items)
}

func (a *ArrayLive) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return destroyArray(n, at, a.Elem, a.Align)
}

func arrayItems(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case nil:
		return nil, nil
	case *ArrayView:
		return x.Slice()
	}
	return nil, mismatch("[]any", v)
}

func readElements(n *Native, at uint32, elem Codec) ([]any, error) {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return nil, err
	}
	out := make([]any, h.num)
	for i := range out {
		v, err := elem.FromNative(n, h.data, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeElements(n *Native, at uint32, elem Codec, align uint32, items []any) error {
	if err := destroyArray(n, at, elem, align); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	h, err := ensure(n, at, len(items), elem.Size(), align, false)
	if err != nil {
		return err
	}
	for i, v := range items {
		if err := elem.ToNative(n, h.data, i, v); err != nil {
			discard(n, h, i+1, elem.Size(), align, func(k int) error {
				return Destroy(elem, n, h.data, k)
			})
			return err
		}
	}
	h.num = int32(len(items))
	return writeHeader(n.Mem, at, h)
}

// discard releases a buffer from ensure after its first count elements
// were written and a later write failed. The array header is still the
// empty one destroyArray left behind.
func discard(n *Native, h header, count int, stride, align uint32, destroy func(i int) error) {
	for i := 0; i < count; i++ {
		_ = destroy(i)
	}
	n.Alloc.Free(h.data, uint32(h.max)*stride, align)
}

func destroyArray(n *Native, at uint32, elem Codec, align uint32) error {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return err
	}
	if d, ok := elem.(Destructor); ok {
		for i := 0; i < int(h.num); i++ {
			if err := d.Destroy(n, h.data, i); err != nil {
				return err
			}
		}
	}
	return freeArray(n, at, elem.Size(), align)
}

// ArrayView is a live handle on a native script array. Every call reads or
// writes native memory directly.
type ArrayView struct {
	n     *Native
	elem  Codec
	addr  uint32
	align uint32
}

// Address returns the native address of the array header.
func (v *ArrayView) Address() uint32 { return v.addr }

func (v *ArrayView) Len() (int, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return 0, err
	}
	return int(h.num), nil
}

func (v *ArrayView) Get(i int) (any, error) {
	h, err := v.bounds(i)
	if err != nil {
		return nil, err
	}
	return v.elem.FromNative(v.n, h.data, i)
}

func (v *ArrayView) Set(i int, value any) error {
	h, err := v.bounds(i)
	if err != nil {
		return err
	}
	return v.elem.ToNative(v.n, h.data, i, value)
}

// Append adds value at the end, growing the buffer when full.
func (v *ArrayView) Append(value any) error {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return err
	}
	h, err = ensure(v.n, v.addr, int(h.num)+1, v.elem.Size(), v.align, true)
	if err != nil {
		return err
	}
	if err := v.elem.ToNative(v.n, h.data, int(h.num), value); err != nil {
		return err
	}
	h.num++
	return writeHeader(v.n.Mem, v.addr, h)
}

// RemoveAt deletes element i, keeping the order of the rest.
func (v *ArrayView) RemoveAt(i int) error {
	h, err := v.bounds(i)
	if err != nil {
		return err
	}
	if err := Destroy(v.elem, v.n, h.data, i); err != nil {
		return err
	}
	return removeSlot(v.n, v.addr, h, v.elem.Size(), i)
}

// Clear destroys every element and releases the buffer.
func (v *ArrayView) Clear() error {
	return destroyArray(v.n, v.addr, v.elem, v.align)
}

// Slice copies the current elements out.
func (v *ArrayView) Slice() ([]any, error) {
	return readElements(v.n, v.addr, v.elem)
}

func (v *ArrayView) bounds(i int) (header, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return header{}, err
	}
	if i < 0 || i >= int(h.num) {
		return header{}, errors.OutOfBounds(errors.PhaseMarshal, nil, i, int(h.num))
	}
	return h, nil
}
