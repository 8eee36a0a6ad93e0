package marshal

import (
	"github.com/wippyai/native-bindgen/layout"
)

// ObjectCodec stores a native object address. Reads return the unique
// proxy for that address.
type ObjectCodec struct {
	Class string
}

func (ObjectCodec) Size() uint32 { return 8 }

func (o ObjectCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return nil, err
	}
	ptr, err := n.Mem.ReadU64(at)
	if err != nil {
		return nil, memErr(err, "read object")
	}
	return n.Objects.Proxy(ptr, o.Class), nil
}

func (ObjectCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	var ptr uint64
	switch x := v.(type) {
	case *Object:
		if x != nil {
			ptr = x.Address
		}
	case nil:
	default:
		return mismatch("*marshal.Object", v)
	}
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return err
	}
	if err := n.Mem.WriteU64(at, ptr); err != nil {
		return memErr(err, "write object")
	}
	return nil
}

// WeakCodec stores {index, serial}.
type WeakCodec struct{}

func (WeakCodec) Size() uint32 { return 8 }

func (WeakCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return nil, err
	}
	return readWeak(n, at)
}

func (WeakCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	w, ok := v.(WeakRef)
	if !ok {
		return mismatch("marshal.WeakRef", v)
	}
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return err
	}
	return writeWeak(n, at, w)
}

func readWeak(n *Native, at uint32) (WeakRef, error) {
	idx, err := n.Mem.ReadU32(at + layout.WeakIndexOffset)
	if err != nil {
		return WeakRef{}, memErr(err, "read weak reference")
	}
	serial, err := n.Mem.ReadU32(at + layout.WeakSerialOffset)
	if err != nil {
		return WeakRef{}, memErr(err, "read weak reference")
	}
	return WeakRef{Index: int32(idx), Serial: int32(serial)}, nil
}

func writeWeak(n *Native, at uint32, w WeakRef) error {
	if err := n.Mem.WriteU32(at+layout.WeakIndexOffset, uint32(w.Index)); err != nil {
		return memErr(err, "write weak reference")
	}
	if err := n.Mem.WriteU32(at+layout.WeakSerialOffset, uint32(w.Serial)); err != nil {
		return memErr(err, "write weak reference")
	}
	return nil
}

// SoftCodec stores a weak reference, a tag and the object path.
type SoftCodec struct{}

func (SoftCodec) Size() uint32 { return 32 }

func (SoftCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 32)
	if err != nil {
		return nil, err
	}
	w, err := readWeak(n, at+layout.SoftWeakOffset)
	if err != nil {
		return nil, err
	}
	tag, err := n.Mem.ReadU32(at + layout.SoftTagOffset)
	if err != nil {
		return nil, memErr(err, "read soft reference")
	}
	path, err := readString(n, at+layout.SoftPathOffset)
	if err != nil {
		return nil, err
	}
	return SoftRef{Weak: w, Tag: int32(tag), Path: path}, nil
}

func (SoftCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	s, ok := v.(SoftRef)
	if !ok {
		return mismatch("marshal.SoftRef", v)
	}
	at, err := elemAddr(addr, index, 32)
	if err != nil {
		return err
	}
	if err := writeWeak(n, at+layout.SoftWeakOffset, s.Weak); err != nil {
		return err
	}
	if err := n.Mem.WriteU32(at+layout.SoftTagOffset, uint32(s.Tag)); err != nil {
		return memErr(err, "write soft reference")
	}
	return writeString(n, at+layout.SoftPathOffset, s.Path)
}

func (SoftCodec) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, 32)
	if err != nil {
		return err
	}
	return freeArray(n, at+layout.SoftPathOffset, 2, 2)
}

// InterfaceCodec stores {object, interface} addresses.
type InterfaceCodec struct {
	Class string
}

func (InterfaceCodec) Size() uint32 { return 16 }

func (c InterfaceCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return nil, err
	}
	obj, err := n.Mem.ReadU64(at + layout.InterfaceObjectOffset)
	if err != nil {
		return nil, memErr(err, "read interface")
	}
	iface, err := n.Mem.ReadU64(at + layout.InterfaceIfaceOffset)
	if err != nil {
		return nil, memErr(err, "read interface")
	}
	return Interface{Object: n.Objects.Proxy(obj, c.Class), Interface: iface}, nil
}

func (InterfaceCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	var iface Interface
	switch x := v.(type) {
	case Interface:
		iface = x
	case nil:
	default:
		return mismatch("marshal.Interface", v)
	}
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return err
	}
	var obj uint64
	if iface.Object != nil {
		obj = iface.Object.Address
	}
	if err := n.Mem.WriteU64(at+layout.InterfaceObjectOffset, obj); err != nil {
		return memErr(err, "write interface")
	}
	if err := n.Mem.WriteU64(at+layout.InterfaceIfaceOffset, iface.Interface); err != nil {
		return memErr(err, "write interface")
	}
	return nil
}

// DelegateCodec stores a weak target and the bound function name.
type DelegateCodec struct{}

func (DelegateCodec) Size() uint32 { return 16 }

func (DelegateCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return nil, err
	}
	w, err := readWeak(n, at+layout.DelegateObjectOffset)
	if err != nil {
		return nil, err
	}
	fn, err := NameCodec{}.FromNative(n, at+layout.DelegateNameOffset, 0)
	if err != nil {
		return nil, err
	}
	return Delegate{Object: w, Function: fn.(Name)}, nil
}

func (DelegateCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	d, ok := v.(Delegate)
	if !ok {
		return mismatch("marshal.Delegate", v)
	}
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return err
	}
	if err := writeWeak(n, at+layout.DelegateObjectOffset, d.Object); err != nil {
		return err
	}
	return NameCodec{}.ToNative(n, at+layout.DelegateNameOffset, 0, d.Function)
}

// MulticastCodec stores an invocation list of delegates as a script array.
// Reads return a detached []Delegate.
type MulticastCodec struct{}

func (MulticastCodec) Size() uint32 { return layout.ArrayHeaderSize }

func (MulticastCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	items, err := readElements(n, at, DelegateCodec{})
	if err != nil {
		return nil, err
	}
	out := make([]Delegate, len(items))
	for i, it := range items {
		out[i] = it.(Delegate)
	}
	return out, nil
}

func (MulticastCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	list, ok := v.([]Delegate)
	if !ok && v != nil {
		return mismatch("[]marshal.Delegate", v)
	}
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	items := make([]any, len(list))
	for i, d := range list {
		items[i] = d
	}
	return writeElements(n, at, DelegateCodec{}, 4, items)
}

func (MulticastCodec) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return freeArray(n, at, 16, 4)
}
