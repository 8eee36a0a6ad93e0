package layout

import (
	"math"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
)

// Info is the native size and alignment of a descriptor.
type Info struct {
	Size  uint32
	Align uint32
}

// Script array header: {data u64, num i32, max i32}.
const (
	ArrayHeaderSize  = 16
	ArrayHeaderAlign = 8
	ArrayDataOffset  = 0
	ArrayNumOffset   = 8
	ArrayMaxOffset   = 12
)

// Composite layouts of reference kinds.
const (
	NameIndexOffset  = 0
	NameNumberOffset = 4

	TextStringOffset = 0
	TextFlagsOffset  = 16

	WeakIndexOffset  = 0
	WeakSerialOffset = 4

	SoftWeakOffset = 0
	SoftTagOffset  = 8
	SoftPathOffset = 16

	InterfaceObjectOffset = 0
	InterfaceIfaceOffset  = 8

	DelegateObjectOffset = 0
	DelegateNameOffset   = 8
)

const (
	MaxStringUnits = 1 << 28
	MaxElements    = 1 << 27
)

var fixed = [...]Info{
	descriptor.KindInt8:              {1, 1},
	descriptor.KindUint8:             {1, 1},
	descriptor.KindBool:              {1, 1},
	descriptor.KindInt16:             {2, 2},
	descriptor.KindUint16:            {2, 2},
	descriptor.KindInt32:             {4, 4},
	descriptor.KindUint32:            {4, 4},
	descriptor.KindFloat:             {4, 4},
	descriptor.KindInt64:             {8, 8},
	descriptor.KindUint64:            {8, 8},
	descriptor.KindDouble:            {8, 8},
	descriptor.KindString:            {16, 8},
	descriptor.KindName:              {8, 4},
	descriptor.KindText:              {24, 8},
	descriptor.KindObject:            {8, 8},
	descriptor.KindClass:             {8, 8},
	descriptor.KindPointer:           {8, 8},
	descriptor.KindWeakObject:        {8, 4},
	descriptor.KindSoftObject:        {32, 8},
	descriptor.KindInterface:         {16, 8},
	descriptor.KindDelegate:          {16, 4},
	descriptor.KindMulticastDelegate: {ArrayHeaderSize, ArrayHeaderAlign},
	descriptor.KindArray:             {ArrayHeaderSize, ArrayHeaderAlign},
	descriptor.KindMap:               {ArrayHeaderSize, ArrayHeaderAlign},
	descriptor.KindSet:               {ArrayHeaderSize, ArrayHeaderAlign},
}

// Of returns the size and alignment of one element of t, ignoring the
// static array dimension.
func Of(t *descriptor.Type) (Info, error) {
	switch t.Kind {
	case descriptor.KindStruct:
		if t.Struct == nil {
			return Info{}, errors.InvalidComposite(errors.PhaseTranslate, t.Name, "struct without layout")
		}
		align := t.Struct.Align
		if align == 0 {
			align = 1
		}
		return Info{Size: t.Struct.Size, Align: align}, nil
	case descriptor.KindEnum:
		if t.Enum == nil || !validWidth(t.Enum.Width) {
			return Info{}, errors.InvalidComposite(errors.PhaseTranslate, t.Name, "enum without a valid underlying width")
		}
		w := uint32(t.Enum.Width)
		return Info{Size: w, Align: w}, nil
	case descriptor.KindOptional:
		elem := t.Elem()
		if elem == nil {
			return Info{}, errors.InvalidComposite(errors.PhaseTranslate, t.Name, "optional without value type")
		}
		inner, err := Of(elem)
		if err != nil {
			return Info{}, err
		}
		return Info{Size: AlignTo(inner.Size+1, inner.Align), Align: inner.Align}, nil
	case descriptor.KindUnknown:
		return Info{Size: 0, Align: 1}, nil
	}
	if int(t.Kind) < len(fixed) && fixed[t.Kind].Size != 0 {
		return fixed[t.Kind], nil
	}
	return Info{}, errors.UnsupportedType(errors.PhaseTranslate, t.Name, "no native layout")
}

// Total returns the byte size of t including the static array dimension.
func Total(t *descriptor.Type) (uint32, error) {
	info, err := Of(t)
	if err != nil {
		return 0, err
	}
	n, ok := SafeMul(info.Size, uint32(t.Dim()))
	if !ok {
		return 0, errors.Overflow(errors.PhaseTranslate, nil, t.Dim(), t.Name)
	}
	return n, nil
}

// OptionalFlagOffset is the offset of the is-set byte of an optional.
func OptionalFlagOffset(value Info) uint32 {
	return value.Size
}

// Pair is the layout of one map entry.
type Pair struct {
	KeyOffset   uint32
	ValueOffset uint32
	Stride      uint32
	Align       uint32
}

// MapPair lays out a (key, value) pair as stored in a map's element array.
func MapPair(key, value Info) Pair {
	align := key.Align
	if value.Align > align {
		align = value.Align
	}
	valueOff := AlignTo(key.Size, value.Align)
	return Pair{
		KeyOffset:   0,
		ValueOffset: valueOff,
		Stride:      AlignTo(valueOff+value.Size, align),
		Align:       align,
	}
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func SafeMul(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAdd(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

func validWidth(w int) bool {
	return w == 1 || w == 2 || w == 4 || w == 8
}
