package marshal

import (
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
)

// pairs is the element store shared by map codecs: a script array of
// (key, value) pairs laid out by layout.MapPair.
type pairs struct {
	key   Codec
	value Codec
	pair  layout.Pair
}

func (p pairs) read(n *Native, at uint32) (Map, error) {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return nil, err
	}
	out := make(Map, h.num)
	for i := range out {
		slot := h.data + uint32(i)*p.pair.Stride
		k, err := p.key.FromNative(n, slot+p.pair.KeyOffset, 0)
		if err != nil {
			return nil, err
		}
		v, err := p.value.FromNative(n, slot+p.pair.ValueOffset, 0)
		if err != nil {
			return nil, err
		}
		out[i] = Pair{Key: k, Value: v}
	}
	return out, nil
}

func (p pairs) write(n *Native, at uint32, m Map) error {
	for i := range m {
		for j := 0; j < i; j++ {
			if equal(m[i].Key, m[j].Key) {
				return errors.InvalidData(errors.PhaseMarshal, nil, "duplicate map key")
			}
		}
	}
	if err := p.destroy(n, at); err != nil {
		return err
	}
	if len(m) == 0 {
		return nil
	}
	h, err := ensure(n, at, len(m), p.pair.Stride, p.pair.Align, false)
	if err != nil {
		return err
	}
	for i, kv := range m {
		if err := p.writeSlot(n, h.data+uint32(i)*p.pair.Stride, kv); err != nil {
			discard(n, h, i+1, p.pair.Stride, p.pair.Align, func(k int) error {
				return p.destroySlot(n, h.data+uint32(k)*p.pair.Stride)
			})
			return err
		}
	}
	h.num = int32(len(m))
	return writeHeader(n.Mem, at, h)
}

func (p pairs) writeSlot(n *Native, slot uint32, kv Pair) error {
	if err := p.key.ToNative(n, slot+p.pair.KeyOffset, 0, kv.Key); err != nil {
		return err
	}
	return p.value.ToNative(n, slot+p.pair.ValueOffset, 0, kv.Value)
}

func (p pairs) destroySlot(n *Native, slot uint32) error {
	if err := Destroy(p.key, n, slot+p.pair.KeyOffset, 0); err != nil {
		return err
	}
	return Destroy(p.value, n, slot+p.pair.ValueOffset, 0)
}

func (p pairs) destroy(n *Native, at uint32) error {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return err
	}
	for i := 0; i < int(h.num); i++ {
		if err := p.destroySlot(n, h.data+uint32(i)*p.pair.Stride); err != nil {
			return err
		}
	}
	return freeArray(n, at, p.pair.Stride, p.pair.Align)
}

// find returns the index of key, or -1.
func (p pairs) find(n *Native, h header, key any) (int, error) {
	for i := 0; i < int(h.num); i++ {
		k, err := p.key.FromNative(n, h.data+uint32(i)*p.pair.Stride+p.pair.KeyOffset, 0)
		if err != nil {
			return -1, err
		}
		if equal(k, key) {
			return i, nil
		}
	}
	return -1, nil
}

func mapItems(v any) (Map, error) {
	switch x := v.(type) {
	case Map:
		return x, nil
	case []Pair:
		return Map(x), nil
	case nil:
		return nil, nil
	case *MapView:
		return x.Pairs()
	}
	return nil, mismatch("marshal.Map", v)
}

// MapCopy converts a native map to and from a detached Map.
type MapCopy struct {
	pairs
}

func NewMapCopy(key, value Codec, keyInfo, valueInfo layout.Info) *MapCopy {
	return &MapCopy{pairs{key: key, value: value, pair: layout.MapPair(keyInfo, valueInfo)}}
}

func (m *MapCopy) Size() uint32 { return layout.ArrayHeaderSize }

func (m *MapCopy) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	return m.read(n, at)
}

func (m *MapCopy) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	items, err := mapItems(v)
	if err != nil {
		return err
	}
	return m.write(n, at, items)
}

func (m *MapCopy) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return m.destroy(n, at)
}

// MapLive converts a native map to a *MapView over the native buffer.
type MapLive struct {
	pairs
}

func NewMapLive(key, value Codec, keyInfo, valueInfo layout.Info) *MapLive {
	return &MapLive{pairs{key: key, value: value, pair: layout.MapPair(keyInfo, valueInfo)}}
}

func (m *MapLive) Size() uint32 { return layout.ArrayHeaderSize }

func (m *MapLive) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	if _, err := readHeader(n.Mem, at); err != nil {
		return nil, err
	}
	return &MapView{n: n, addr: at, pairs: m.pairs}, nil
}

func (m *MapLive) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	if view, ok := v.(*MapView); ok && view.n == n && view.addr == at {
		return nil
	}
	items, err := mapItems(v)
	if err != nil {
		return err
	}
	return m.write(n, at, items)
}

func (m *MapLive) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return m.destroy(n, at)
}

// MapView is a live handle on a native map.
type MapView struct {
	n     *Native
	pairs pairs
	addr  uint32
}

func (v *MapView) Address() uint32 { return v.addr }

func (v *MapView) Len() (int, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return 0, err
	}
	return int(h.num), nil
}

// Get returns the value stored under key.
func (v *MapView) Get(key any) (any, bool, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return nil, false, err
	}
	i, err := v.pairs.find(v.n, h, key)
	if err != nil || i < 0 {
		return nil, false, err
	}
	val, err := v.pairs.value.FromNative(v.n, h.data+uint32(i)*v.pairs.pair.Stride+v.pairs.pair.ValueOffset, 0)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set replaces the value under key in place or appends a new pair.
func (v *MapView) Set(key, value any) error {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return err
	}
	i, err := v.pairs.find(v.n, h, key)
	if err != nil {
		return err
	}
	if i >= 0 {
		return v.pairs.value.ToNative(v.n, h.data+uint32(i)*v.pairs.pair.Stride+v.pairs.pair.ValueOffset, 0, value)
	}
	h, err = ensure(v.n, v.addr, int(h.num)+1, v.pairs.pair.Stride, v.pairs.pair.Align, true)
	if err != nil {
		return err
	}
	if err := v.pairs.writeSlot(v.n, h.data+uint32(h.num)*v.pairs.pair.Stride, Pair{Key: key, Value: value}); err != nil {
		return err
	}
	h.num++
	return writeHeader(v.n.Mem, v.addr, h)
}

// Remove deletes key and reports whether it was present.
func (v *MapView) Remove(key any) (bool, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return false, err
	}
	i, err := v.pairs.find(v.n, h, key)
	if err != nil || i < 0 {
		return false, err
	}
	if err := v.pairs.destroySlot(v.n, h.data+uint32(i)*v.pairs.pair.Stride); err != nil {
		return false, err
	}
	return true, removeSlot(v.n, v.addr, h, v.pairs.pair.Stride, i)
}

func (v *MapView) Clear() error {
	return v.pairs.destroy(v.n, v.addr)
}

// Pairs copies the current entries out in native order.
func (v *MapView) Pairs() (Map, error) {
	return v.pairs.read(v.n, v.addr)
}

func setItems(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case nil:
		return nil, nil
	case *SetView:
		return x.Items()
	}
	return nil, mismatch("[]any", v)
}

func checkUnique(items []any) error {
	for i := range items {
		for j := 0; j < i; j++ {
			if equal(items[i], items[j]) {
				return errors.InvalidData(errors.PhaseMarshal, nil, "duplicate set element")
			}
		}
	}
	return nil
}

// SetCopy converts a native set to and from a detached []any.
type SetCopy struct {
	Elem  Codec
	Align uint32
}

func NewSetCopy(elem Codec, align uint32) *SetCopy {
	return &SetCopy{Elem: elem, Align: align}
}

func (s *SetCopy) Size() uint32 { return layout.ArrayHeaderSize }

func (s *SetCopy) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	return readElements(n, at, s.Elem)
}

func (s *SetCopy) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	items, err := setItems(v)
	if err != nil {
		return err
	}
	if err := checkUnique(items); err != nil {
		return err
	}
	return writeElements(n, at, s.Elem, s.Align, items)
}

func (s *SetCopy) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return destroyArray(n, at, s.Elem, s.Align)
}

// SetLive converts a native set to a *SetView over the native buffer.
type SetLive struct {
	Elem  Codec
	Align uint32
}

func NewSetLive(elem Codec, align uint32) *SetLive {
	return &SetLive{Elem: elem, Align: align}
}

func (s *SetLive) Size() uint32 { return layout.ArrayHeaderSize }

func (s *SetLive) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	if _, err := readHeader(n.Mem, at); err != nil {
		return nil, err
	}
	return &SetView{n: n, addr: at, elem: s.Elem, align: s.Align}, nil
}

func (s *SetLive) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	if view, ok := v.(*SetView); ok && view.n == n && view.addr == at {
		return nil
	}
	items, err := setItems(v)
	if err != nil {
		return err
	}
	if err := checkUnique(items); err != nil {
		return err
	}
	return writeElements(n, at, s.Elem, s.Align, items)
}

func (s *SetLive) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, layout.ArrayHeaderSize)
	if err != nil {
		return err
	}
	return destroyArray(n, at, s.Elem, s.Align)
}

// SetView is a live handle on a native set.
type SetView struct {
	n     *Native
	elem  Codec
	addr  uint32
	align uint32
}

func (v *SetView) Address() uint32 { return v.addr }

func (v *SetView) Len() (int, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return 0, err
	}
	return int(h.num), nil
}

func (v *SetView) indexOf(h header, item any) (int, error) {
	for i := 0; i < int(h.num); i++ {
		e, err := v.elem.FromNative(v.n, h.data, i)
		if err != nil {
			return -1, err
		}
		if equal(e, item) {
			return i, nil
		}
	}
	return -1, nil
}

func (v *SetView) Contains(item any) (bool, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return false, err
	}
	i, err := v.indexOf(h, item)
	return i >= 0, err
}

// Add inserts item and reports whether it was new.
func (v *SetView) Add(item any) (bool, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return false, err
	}
	if i, err := v.indexOf(h, item); err != nil || i >= 0 {
		return false, err
	}
	h, err = ensure(v.n, v.addr, int(h.num)+1, v.elem.Size(), v.align, true)
	if err != nil {
		return false, err
	}
	if err := v.elem.ToNative(v.n, h.data, int(h.num), item); err != nil {
		return false, err
	}
	h.num++
	return true, writeHeader(v.n.Mem, v.addr, h)
}

// Remove deletes item and reports whether it was present.
func (v *SetView) Remove(item any) (bool, error) {
	h, err := readHeader(v.n.Mem, v.addr)
	if err != nil {
		return false, err
	}
	i, err := v.indexOf(h, item)
	if err != nil || i < 0 {
		return false, err
	}
	if err := Destroy(v.elem, v.n, h.data, i); err != nil {
		return false, err
	}
	return true, removeSlot(v.n, v.addr, h, v.elem.Size(), i)
}

func (v *SetView) Clear() error {
	return destroyArray(v.n, v.addr, v.elem, v.align)
}

// Items copies the current elements out.
func (v *SetView) Items() ([]any, error) {
	return readElements(v.n, v.addr, v.elem)
}
