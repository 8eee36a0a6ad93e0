package marshal

import (
	"math"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
)

// Primitive converts numeric kinds to the matching Go numeric type.
type Primitive struct {
	Kind descriptor.Kind
}

func (p Primitive) Size() uint32 { return uint32(p.Kind.Width()) }

func (p Primitive) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, p.Size())
	if err != nil {
		return nil, err
	}
	bits, err := readWidth(n.Mem, at, p.Kind.Width())
	if err != nil {
		return nil, err
	}
	return fromBits(p.Kind, bits), nil
}

func (p Primitive) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, p.Size())
	if err != nil {
		return err
	}
	bits, err := toBits(p.Kind, v)
	if err != nil {
		return err
	}
	return writeWidth(n.Mem, at, p.Kind.Width(), bits)
}

// Bool stores a whole byte: 1 for true, 0 for false.
type Bool struct{}

func (Bool) Size() uint32 { return 1 }

func (Bool) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 1)
	if err != nil {
		return nil, err
	}
	b, err := n.Mem.ReadU8(at)
	if err != nil {
		return nil, memErr(err, "read bool")
	}
	return b != 0, nil
}

func (Bool) ToNative(n *Native, addr uint32, index int, v any) error {
	b, ok := v.(bool)
	if !ok {
		return mismatch("bool", v)
	}
	at, err := elemAddr(addr, index, 1)
	if err != nil {
		return err
	}
	var raw uint8
	if b {
		raw = 1
	}
	if err := n.Mem.WriteU8(at, raw); err != nil {
		return memErr(err, "write bool")
	}
	return nil
}

// Bitfield is a bool packed into one bit of a shared byte.
type Bitfield struct {
	Mask uint8
}

func (Bitfield) Size() uint32 { return 1 }

func (b Bitfield) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 1)
	if err != nil {
		return nil, err
	}
	raw, err := n.Mem.ReadU8(at)
	if err != nil {
		return nil, memErr(err, "read bitfield")
	}
	return raw&b.Mask != 0, nil
}

func (b Bitfield) ToNative(n *Native, addr uint32, index int, v any) error {
	set, ok := v.(bool)
	if !ok {
		return mismatch("bool", v)
	}
	at, err := elemAddr(addr, index, 1)
	if err != nil {
		return err
	}
	raw, err := n.Mem.ReadU8(at)
	if err != nil {
		return memErr(err, "read bitfield")
	}
	raw &^= b.Mask
	if set {
		raw |= b.Mask
	}
	if err := n.Mem.WriteU8(at, raw); err != nil {
		return memErr(err, "write bitfield")
	}
	return nil
}

// Enum stores an enumerator in its underlying unsigned width.
type Enum struct {
	Width int
}

func (e Enum) Size() uint32 { return uint32(e.Width) }

func (e Enum) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, e.Size())
	if err != nil {
		return nil, err
	}
	bits, err := readWidth(n.Mem, at, e.Width)
	if err != nil {
		return nil, err
	}
	return int64(bits), nil
}

func (e Enum) ToNative(n *Native, addr uint32, index int, v any) error {
	at, err := elemAddr(addr, index, e.Size())
	if err != nil {
		return err
	}
	bits, err := enumBits(e.Width, v)
	if err != nil {
		return err
	}
	return writeWidth(n.Mem, at, e.Width, bits)
}

func enumBits(width int, v any) (uint64, error) {
	i, ok := toInt64(v)
	if !ok {
		u, uok := toUint64(v)
		if !uok {
			return 0, mismatch("enum", v)
		}
		if width < 8 && u >= 1<<(8*width) {
			return 0, errors.Overflow(errors.PhaseMarshal, nil, v, "enum")
		}
		return u, nil
	}
	if i < 0 || (width < 8 && i >= 1<<(8*width)) {
		return 0, errors.Overflow(errors.PhaseMarshal, nil, v, "enum")
	}
	return uint64(i), nil
}

func readWidth(mem bindgen.Memory, at uint32, width int) (uint64, error) {
	var (
		v   uint64
		err error
	)
	switch width {
	case 1:
		var b uint8
		b, err = mem.ReadU8(at)
		v = uint64(b)
	case 2:
		var h uint16
		h, err = mem.ReadU16(at)
		v = uint64(h)
	case 4:
		var w uint32
		w, err = mem.ReadU32(at)
		v = uint64(w)
	case 8:
		v, err = mem.ReadU64(at)
	default:
		return 0, errors.InvalidData(errors.PhaseMarshal, nil, "unsupported width")
	}
	if err != nil {
		return 0, memErr(err, "read scalar")
	}
	return v, nil
}

func writeWidth(mem bindgen.Memory, at uint32, width int, v uint64) error {
	var err error
	switch width {
	case 1:
		err = mem.WriteU8(at, uint8(v))
	case 2:
		err = mem.WriteU16(at, uint16(v))
	case 4:
		err = mem.WriteU32(at, uint32(v))
	case 8:
		err = mem.WriteU64(at, v)
	default:
		return errors.InvalidData(errors.PhaseMarshal, nil, "unsupported width")
	}
	if err != nil {
		return memErr(err, "write scalar")
	}
	return nil
}

// fromBits widens raw little-endian bits to the Go type of k.
func fromBits(k descriptor.Kind, bits uint64) any {
	switch k {
	case descriptor.KindInt8:
		return int8(bits)
	case descriptor.KindInt16:
		return int16(bits)
	case descriptor.KindInt32:
		return int32(bits)
	case descriptor.KindInt64:
		return int64(bits)
	case descriptor.KindUint8:
		return uint8(bits)
	case descriptor.KindUint16:
		return uint16(bits)
	case descriptor.KindUint32:
		return uint32(bits)
	case descriptor.KindUint64:
		return bits
	case descriptor.KindFloat:
		return math.Float32frombits(uint32(bits))
	case descriptor.KindDouble:
		return math.Float64frombits(bits)
	case descriptor.KindBool:
		return bits != 0
	}
	return bits
}

// toBits narrows a managed numeric to raw bits, rejecting values that do
// not fit k.
func toBits(k descriptor.Kind, v any) (uint64, error) {
	switch k {
	case descriptor.KindFloat:
		if f, ok := v.(float32); ok {
			return uint64(math.Float32bits(f)), nil
		}
		f, ok := toFloat64(v)
		if !ok {
			return 0, mismatch("float32", v)
		}
		return uint64(math.Float32bits(float32(f))), nil
	case descriptor.KindDouble:
		f, ok := toFloat64(v)
		if !ok {
			return 0, mismatch("float64", v)
		}
		return math.Float64bits(f), nil
	case descriptor.KindBool:
		b, ok := v.(bool)
		if !ok {
			return 0, mismatch("bool", v)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}

	width := k.Width()
	if width == 0 {
		return 0, errors.UnsupportedType(errors.PhaseMarshal, k.String(), "not a scalar")
	}
	bitsWide := uint(8 * width)

	if k.IsSigned() {
		i, ok := toInt64(v)
		if !ok {
			if u, uok := toUint64(v); uok && u > math.MaxInt64 {
				return 0, errors.Overflow(errors.PhaseMarshal, nil, v, k.String())
			}
			return 0, mismatch(k.String(), v)
		}
		if width < 8 {
			lo, hi := -int64(1)<<(bitsWide-1), int64(1)<<(bitsWide-1)-1
			if i < lo || i > hi {
				return 0, errors.Overflow(errors.PhaseMarshal, nil, v, k.String())
			}
		}
		return uint64(i) & widthMask(width), nil
	}

	u, ok := toUint64(v)
	if !ok {
		if _, iok := toInt64(v); iok {
			return 0, errors.Overflow(errors.PhaseMarshal, nil, v, k.String())
		}
		return 0, mismatch(k.String(), v)
	}
	if width < 8 && u >= uint64(1)<<bitsWide {
		return 0, errors.Overflow(errors.PhaseMarshal, nil, v, k.String())
	}
	return u, nil
}

func widthMask(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return uint64(1)<<(8*width) - 1
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	if i, ok := toInt64(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	if u, ok := toUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}
