package marshal

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/memory"
)

func newNative(t *testing.T) (*Native, *memory.Arena) {
	t.Helper()
	arena := memory.NewArena(4096)
	return NewNative(arena, arena), arena
}

func scratch(t *testing.T, n *Native, size uint32) uint32 {
	t.Helper()
	p, err := n.Alloc.Alloc(size, 8)
	require.NoError(t, err)
	return p
}

func TestPrimitive_RoundTripBitPatterns(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 8)

	patterns := []uint64{0, 1, 0x7F, 0x80, 0xFF, 0x8000, 0xFFFF, 0x7FFFFFFF, 0x80000000,
		0xFFFFFFFF, 0x7FF8000000000001, 0xFFF0000000000000, math.MaxUint64, 0x0123456789ABCDEF}

	for _, kind := range []descriptor.Kind{
		descriptor.KindInt8, descriptor.KindInt16, descriptor.KindInt32, descriptor.KindInt64,
		descriptor.KindUint8, descriptor.KindUint16, descriptor.KindUint32, descriptor.KindUint64,
		descriptor.KindFloat, descriptor.KindDouble,
	} {
		c := Primitive{Kind: kind}
		width := kind.Width()
		for _, p := range patterns {
			raw := make([]byte, 8)
			for i := 0; i < width; i++ {
				raw[i] = byte(p >> (8 * i))
			}
			require.NoError(t, n.Mem.Write(buf, raw))

			v, err := c.FromNative(n, buf, 0)
			require.NoError(t, err)
			require.NoError(t, c.ToNative(n, buf, 0, v))

			got, err := n.Mem.Read(buf, 8)
			require.NoError(t, err)
			assert.Equal(t, raw, got, "%s pattern %x", kind, p)
		}
	}
}

func TestPrimitive_TypesAndCoercion(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 8)

	c := Primitive{Kind: descriptor.KindInt16}
	require.NoError(t, c.ToNative(n, buf, 0, -2))
	v, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int16(-2), v)

	f := Primitive{Kind: descriptor.KindFloat}
	require.NoError(t, f.ToNative(n, buf, 0, 1.5))
	v, err = f.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v)

	u := Primitive{Kind: descriptor.KindUint8}
	err = u.ToNative(n, buf, 0, 256)
	assertKind(t, err, errors.KindOverflow)
	err = u.ToNative(n, buf, 0, -1)
	assertKind(t, err, errors.KindOverflow)
	err = c.ToNative(n, buf, 0, "x")
	assertKind(t, err, errors.KindTypeMismatch)
}

func TestPrimitive_Index(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	c := Primitive{Kind: descriptor.KindInt32}
	for i := 0; i < 4; i++ {
		require.NoError(t, c.ToNative(n, buf, i, int32(i*10)))
	}
	v, err := c.FromNative(n, buf+8, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(20), v)
}

func TestBoolAndBitfield(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 1)

	require.NoError(t, Bool{}.ToNative(n, buf, 0, true))
	b, _ := n.Mem.ReadU8(buf)
	assert.Equal(t, uint8(1), b)

	require.NoError(t, n.Mem.WriteU8(buf, 0b1010_0001))
	bf := Bitfield{Mask: 0b0000_0100}
	v, err := bf.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	require.NoError(t, bf.ToNative(n, buf, 0, true))
	b, _ = n.Mem.ReadU8(buf)
	assert.Equal(t, uint8(0b1010_0101), b)

	require.NoError(t, Bitfield{Mask: 0b1000_0000}.ToNative(n, buf, 0, false))
	b, _ = n.Mem.ReadU8(buf)
	assert.Equal(t, uint8(0b0010_0101), b)
}

func TestEnum(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 1)
	e := Enum{Width: 1}
	require.NoError(t, e.ToNative(n, buf, 0, 200))
	v, err := e.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), v)
	assertKind(t, e.ToNative(n, buf, 0, 256), errors.KindOverflow)
}

func TestString(t *testing.T) {
	n, arena := newNative(t)
	buf := scratch(t, n, 16)

	for _, s := range []string{"hello", "héllo wörld", "日本語", "emoji 🎮", ""} {
		require.NoError(t, String{}.ToNative(n, buf, 0, s))
		v, err := String{}.FromNative(n, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, s, v)
	}

	require.NoError(t, String{}.ToNative(n, buf, 0, "ab"))
	num, _ := n.Mem.ReadU32(buf + layout.ArrayNumOffset)
	assert.Equal(t, uint32(3), num, "count includes the terminator")

	live := arena.Live()
	require.NoError(t, String{}.Destroy(n, buf, 0))
	assert.Equal(t, live-1, arena.Live())
	data, _ := n.Mem.ReadU64(buf)
	assert.Zero(t, data)
}

func TestNameAndText(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 32)

	require.NoError(t, NameCodec{}.ToNative(n, buf, 0, Name{Value: "Fire", Number: 3}))
	v, err := NameCodec{}.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Name{Value: "Fire", Number: 3}, v)
	assert.Equal(t, "Fire_2", v.(Name).String())

	require.NoError(t, TextCodec{}.ToNative(n, buf, 0, Text{Value: "Press Start", Flags: 2}))
	tv, err := TextCodec{}.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Text{Value: "Press Start", Flags: 2}, tv)
}

func vector2() *descriptor.StructInfo {
	return &descriptor.StructInfo{
		Name: "Vector2", Size: 8, Align: 4, Blittable: true,
		Fields: []descriptor.Field{
			{Name: "X", Offset: 0, Type: descriptor.Primitive(descriptor.KindFloat)},
			{Name: "Y", Offset: 4, Type: descriptor.Primitive(descriptor.KindFloat)},
		},
	}
}

func TestBlittableStruct_TwoFloats(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 8)

	c, err := NewBlittableStruct(vector2())
	require.NoError(t, err)

	x := math.Float32frombits(0x3FC00001)
	y := float32(-0.0)
	require.NoError(t, c.ToNative(n, buf, 0, Struct{"X": x, "Y": y}))

	v, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	s := v.(Struct)
	assert.Equal(t, math.Float32bits(x), math.Float32bits(s["X"].(float32)))
	assert.Equal(t, math.Float32bits(y), math.Float32bits(s["Y"].(float32)))
}

func TestBlittableStruct_RoundTripPreservesPadding(t *testing.T) {
	n, _ := newNative(t)
	info := &descriptor.StructInfo{
		Name: "Padded", Size: 8, Align: 4, Blittable: true,
		Fields: []descriptor.Field{
			{Name: "A", Offset: 0, Type: descriptor.Primitive(descriptor.KindUint8)},
			{Name: "B", Offset: 4, Type: descriptor.Primitive(descriptor.KindInt32)},
		},
	}
	c, err := NewBlittableStruct(info)
	require.NoError(t, err)

	buf := scratch(t, n, 8)
	raw := []byte{0x11, 0xAA, 0xBB, 0xCC, 0xFE, 0xFF, 0xFF, 0xFF}
	require.NoError(t, n.Mem.Write(buf, raw))

	v, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	require.NoError(t, c.ToNative(n, buf, 0, v))

	got, _ := n.Mem.Read(buf, 8)
	assert.Equal(t, raw, got)
}

func TestBlittableStruct_RejectsNonBlittableField(t *testing.T) {
	info := vector2()
	info.Fields = append(info.Fields, descriptor.Field{Name: "S", Offset: 8, Type: descriptor.New(descriptor.KindString, "String")})
	_, err := NewBlittableStruct(info)
	assertKind(t, err, errors.KindInvalidComposite)
}

func TestStructCodec(t *testing.T) {
	n, arena := newNative(t)
	c := NewStructCodec("Item", 24, []StructField{
		{Name: "Label", Offset: 0, Codec: String{}},
		{Name: "Count", Offset: 16, Codec: Primitive{Kind: descriptor.KindInt32}},
	})
	buf := scratch(t, n, 24)

	require.NoError(t, c.ToNative(n, buf, 0, Struct{"Label": "sword", "Count": int32(2)}))
	v, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Struct{"Label": "sword", "Count": int32(2)}, v)

	err = c.ToNative(n, buf, 0, Struct{"Label": "x"})
	assertKind(t, err, errors.KindInvalidData)

	live := arena.Live()
	require.NoError(t, c.Destroy(n, buf, 0))
	assert.Equal(t, live-1, arena.Live())
}

func TestArray_OrderPreserved(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	c := NewArrayCopy(Primitive{Kind: descriptor.KindInt32}, 4)

	for _, count := range []int{0, 1, 2, 7, 64} {
		in := make([]any, count)
		for i := range in {
			in[i] = int32(count*100 - i)
		}
		require.NoError(t, c.ToNative(n, buf, 0, in))
		out, err := c.FromNative(n, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, in, out, "N=%d", count)
	}
}

func TestArray_Strings(t *testing.T) {
	n, arena := newNative(t)
	buf := scratch(t, n, 16)
	before := arena.Live()
	c := NewArrayCopy(String{}, 8)

	require.NoError(t, c.ToNative(n, buf, 0, []any{"a", "bc", ""}))
	out, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "bc", ""}, out)

	require.NoError(t, c.ToNative(n, buf, 0, []any{}))
	assert.Equal(t, before, arena.Live(), "clearing must release element and buffer allocations")
}

func TestContainer_ClassVsStructAliasing(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	elem := Primitive{Kind: descriptor.KindInt32}
	live := NewArrayLive(elem, 4)
	cp := NewArrayCopy(elem, 4)

	require.NoError(t, cp.ToNative(n, buf, 0, []any{int32(1), int32(2), int32(3)}))

	// class owner: mutation through the handle is visible on the next read
	v, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	view := v.(*ArrayView)
	require.NoError(t, view.Set(0, int32(10)))
	require.NoError(t, view.Append(int32(4)))

	again, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	first, err := again.(*ArrayView).Get(0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), first)
	size, _ := again.(*ArrayView).Len()
	assert.Equal(t, 4, size)

	// struct owner: the copy is detached until written back
	c, err := cp.FromNative(n, buf, 0)
	require.NoError(t, err)
	detached := c.([]any)
	detached[0] = int32(99)

	reread, err := cp.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), reread.([]any)[0])

	require.NoError(t, cp.ToNative(n, buf, 0, detached))
	reread, err = cp.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(99), reread.([]any)[0])
}

func TestArrayView_RemoveAtKeepsOrder(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	live := NewArrayLive(String{}, 8)
	require.NoError(t, live.ToNative(n, buf, 0, []any{"a", "b", "c", "d"}))

	v, _ := live.FromNative(n, buf, 0)
	view := v.(*ArrayView)
	require.NoError(t, view.RemoveAt(1))
	items, err := view.Slice()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c", "d"}, items)

	_, err = view.Get(3)
	assertKind(t, err, errors.KindOutOfBounds)

	require.NoError(t, live.ToNative(n, buf, 0, view), "writing a view onto itself is a no-op")
	require.NoError(t, view.Clear())
	size, _ := view.Len()
	assert.Zero(t, size)
}

func int32StringMapInfo() (layout.Info, layout.Info) {
	return layout.Info{Size: 4, Align: 4}, layout.Info{Size: 16, Align: 8}
}

func TestMap_Int32StringInClass(t *testing.T) {
	n, arena := newNative(t)
	buf := scratch(t, n, 16)
	before := arena.Live()
	ki, vi := int32StringMapInfo()
	key, val := Primitive{Kind: descriptor.KindInt32}, String{}

	// build the native buffer by hand: two pairs of stride 24
	data, err := n.Alloc.Alloc(48, 8)
	require.NoError(t, err)
	require.NoError(t, n.Mem.WriteU32(data, 1))
	require.NoError(t, val.ToNative(n, data+8, 0, "a"))
	require.NoError(t, n.Mem.WriteU32(data+24, 2))
	require.NoError(t, val.ToNative(n, data+32, 0, "b"))
	require.NoError(t, n.Mem.WriteU64(buf, uint64(data)))
	require.NoError(t, n.Mem.WriteU32(buf+8, 2))
	require.NoError(t, n.Mem.WriteU32(buf+12, 2))

	live := NewMapLive(key, val, ki, vi)
	v, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	pairs, err := v.(*MapView).Pairs()
	require.NoError(t, err)
	assert.Equal(t, Map{{Key: int32(1), Value: "a"}, {Key: int32(2), Value: "b"}}, pairs)

	got, ok, err := v.(*MapView).Get(int32(2))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", got)

	require.NoError(t, live.ToNative(n, buf, 0, Map{}))
	hdr, err := n.Mem.Read(buf, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), hdr)
	assert.Equal(t, before, arena.Live())
}

func TestMapView_Mutation(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	ki, vi := int32StringMapInfo()
	live := NewMapLive(Primitive{Kind: descriptor.KindInt32}, String{}, ki, vi)

	v, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	view := v.(*MapView)
	require.NoError(t, view.Set(int32(1), "a"))
	require.NoError(t, view.Set(int32(2), "b"))
	require.NoError(t, view.Set(int32(3), "c"))
	require.NoError(t, view.Set(int32(2), "B"))

	removed, err := view.Remove(int32(1))
	require.NoError(t, err)
	assert.True(t, removed)

	cp := NewMapCopy(Primitive{Kind: descriptor.KindInt32}, String{}, ki, vi)
	out, err := cp.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Map{{Key: int32(2), Value: "B"}, {Key: int32(3), Value: "c"}}, out)

	err = cp.ToNative(n, buf, 0, Map{{Key: int32(1), Value: "x"}, {Key: int32(1), Value: "y"}})
	assertKind(t, err, errors.KindInvalidData)
}

func TestSet(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	live := NewSetLive(NameCodec{}, 4)

	v, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	view := v.(*SetView)

	added, err := view.Add(Name{Value: "Red"})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = view.Add(Name{Value: "Red"})
	require.NoError(t, err)
	assert.False(t, added)
	_, err = view.Add(Name{Value: "Blue"})
	require.NoError(t, err)

	ok, err := view.Contains(Name{Value: "Blue"})
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := view.Remove(Name{Value: "Red"})
	require.NoError(t, err)
	assert.True(t, removed)

	items, err := NewSetCopy(NameCodec{}, 4).FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{Name{Value: "Blue"}}, items)

	err = NewSetCopy(NameCodec{}, 4).ToNative(n, buf, 0, []any{Name{Value: "A"}, Name{Value: "A"}})
	assertKind(t, err, errors.KindInvalidData)
}

func TestOptional(t *testing.T) {
	n, arena := newNative(t)
	c := NewOptional(String{}, layout.Info{Size: 16, Align: 8})
	assert.Equal(t, uint32(24), c.Size())
	buf := scratch(t, n, 24)
	before := arena.Live()

	v, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Option{}, v)

	require.NoError(t, c.ToNative(n, buf, 0, Some("hi")))
	v, err = c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Some("hi"), v)
	flag, _ := n.Mem.ReadU8(buf + 16)
	assert.Equal(t, uint8(1), flag)

	require.NoError(t, c.ToNative(n, buf, 0, nil))
	v, err = c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.False(t, v.(Option).Valid)
	assert.Equal(t, before, arena.Live())
}

func TestReferences(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 64)

	obj := ObjectCodec{Class: "Actor"}
	require.NoError(t, n.Mem.WriteU64(buf, 0x1000))
	a, err := obj.FromNative(n, buf, 0)
	require.NoError(t, err)
	b, err := obj.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Same(t, a, b, "proxies are unique per address")
	assert.Equal(t, "Actor", a.(*Object).Class)

	require.NoError(t, obj.ToNative(n, buf, 0, nil))
	v, err := obj.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Nil(t, v)

	soft := SoftRef{Weak: WeakRef{Index: 4, Serial: 9}, Tag: 1, Path: "/Game/Hero.Hero"}
	require.NoError(t, SoftCodec{}.ToNative(n, buf, 0, soft))
	sv, err := SoftCodec{}.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, soft, sv)

	d := Delegate{Object: WeakRef{Index: 2, Serial: 1}, Function: Name{Value: "OnHit"}}
	require.NoError(t, DelegateCodec{}.ToNative(n, buf+32, 0, d))
	dv, err := DelegateCodec{}.FromNative(n, buf+32, 0)
	require.NoError(t, err)
	assert.Equal(t, d, dv)
	assert.True(t, dv.(Delegate).IsBound())
}

func TestMulticast(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	list := []Delegate{
		{Object: WeakRef{Index: 1, Serial: 1}, Function: Name{Value: "A"}},
		{Object: WeakRef{Index: 2, Serial: 1}, Function: Name{Value: "B"}},
	}
	require.NoError(t, MulticastCodec{}.ToNative(n, buf, 0, list))
	v, err := MulticastCodec{}.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, list, v)
}

func TestCorruptHeader(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	require.NoError(t, n.Mem.WriteU32(buf+8, 5))
	_, err := NewArrayCopy(Primitive{Kind: descriptor.KindInt32}, 4).FromNative(n, buf, 0)
	assertKind(t, err, errors.KindInvalidData)
}

func TestObjectTable_Handles(t *testing.T) {
	tbl := NewObjectTable()
	h := tbl.Insert("value")
	require.NotZero(t, h)

	v, ok := tbl.Get(h)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = tbl.Remove(h)
	assert.True(t, ok)
	_, ok = tbl.Get(h)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())

	assert.Equal(t, h, tbl.Insert("reused"), "freed handles are reused")
}

func TestScratch(t *testing.T) {
	n, arena := newNative(t)
	before := arena.Live()
	s := NewScratch()
	_, err := s.Alloc(n, 32, 8)
	require.NoError(t, err)
	_, err = s.Alloc(n, 16, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count())
	s.Release(n.Alloc)
	assert.Equal(t, before, arena.Live())
}

func assertKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	require.Error(t, err)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e), "not a structured error: %v", err)
	assert.Equal(t, kind, e.Kind, err.Error())
}

func TestBoolAndBitfield_NegativeIndex(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 8)

	_, err := Bool{}.FromNative(n, buf, -1)
	assertKind(t, err, errors.KindOutOfBounds)
	assertKind(t, Bool{}.ToNative(n, buf, -1, true), errors.KindOutOfBounds)

	bf := Bitfield{Mask: 0x1}
	_, err = bf.FromNative(n, buf, -1)
	assertKind(t, err, errors.KindOutOfBounds)
	assertKind(t, bf.ToNative(n, buf, -1, true), errors.KindOutOfBounds)
}

func TestArray_FailedWriteReleasesBuffer(t *testing.T) {
	n, arena := newNative(t)
	buf := scratch(t, n, 16)
	c := NewArrayCopy(String{}, 8)
	require.NoError(t, c.ToNative(n, buf, 0, []any{"old"}))
	before := arena.Live()

	err := c.ToNative(n, buf, 0, []any{"a", "bc", 7})
	assertKind(t, err, errors.KindTypeMismatch)
	assert.Equal(t, before-2, arena.Live(), "old contents and the partial write are both released")

	hdr, err := n.Mem.Read(buf, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), hdr)
}

func TestMap_FailedWriteReleasesBuffer(t *testing.T) {
	n, arena := newNative(t)
	buf := scratch(t, n, 16)
	before := arena.Live()
	ki, vi := int32StringMapInfo()
	cp := NewMapCopy(Primitive{Kind: descriptor.KindInt32}, String{}, ki, vi)

	err := cp.ToNative(n, buf, 0, Map{{Key: int32(1), Value: "a"}, {Key: int32(2), Value: 3}})
	assertKind(t, err, errors.KindTypeMismatch)
	assert.Equal(t, before, arena.Live())

	hdr, err := n.Mem.Read(buf, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), hdr)
}

func TestMap_IntegerKeysCompareByValue(t *testing.T) {
	n, _ := newNative(t)
	buf := scratch(t, n, 16)
	ki, vi := int32StringMapInfo()
	live := NewMapLive(Primitive{Kind: descriptor.KindInt32}, String{}, ki, vi)

	v, err := live.FromNative(n, buf, 0)
	require.NoError(t, err)
	view := v.(*MapView)
	require.NoError(t, view.Set(int32(2), "b"))

	got, ok, err := view.Get(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", got)

	_, ok, err = view.Get(uint8(3))
	require.NoError(t, err)
	assert.False(t, ok)

	cp := NewMapCopy(Primitive{Kind: descriptor.KindInt32}, String{}, ki, vi)
	err = cp.ToNative(n, buf, 0, Map{{Key: int32(1), Value: "x"}, {Key: 1, Value: "y"}})
	assertKind(t, err, errors.KindInvalidData)
}
