package marshal

import (
	"encoding/binary"
	stderrors "errors"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
)

// BlitField is one scalar or nested field of a blittable struct.
type BlitField struct {
	Nested *BlittableStruct
	Name   string
	Offset uint32
	Kind   descriptor.Kind
	Width  int
}

// BlittableStruct copies a fixed-layout struct with a single read or write.
// Padding bytes are preserved on write.
type BlittableStruct struct {
	Name   string
	Fields []BlitField
	size   uint32
}

// NewBlittableStruct builds a codec for a struct whose every field is
// blittable.
func NewBlittableStruct(info *descriptor.StructInfo) (*BlittableStruct, error) {
	b := &BlittableStruct{Name: info.Name, size: info.Size}
	for _, f := range info.Fields {
		bf := BlitField{Name: f.Name, Offset: f.Offset, Kind: f.Type.Kind}
		switch {
		case f.Type.Kind.IsNumeric():
			bf.Width = f.Type.Kind.Width()
		case f.Type.Kind == descriptor.KindEnum && f.Type.Enum != nil:
			bf.Width = f.Type.Enum.Width
		case f.Type.Kind == descriptor.KindStruct && f.Type.IsBlittable():
			nested, err := NewBlittableStruct(f.Type.Struct)
			if err != nil {
				return nil, err
			}
			bf.Nested = nested
			bf.Width = int(nested.size)
		default:
			return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidComposite).
				NativeType(info.Name).
				Path(f.Name).
				Detail("field of type %s is not blittable", f.Type.String()).
				Build()
		}
		if f.Offset+uint32(bf.Width) > info.Size {
			return nil, errors.InvalidComposite(errors.PhaseMarshal, info.Name, "field "+f.Name+" exceeds struct size")
		}
		b.Fields = append(b.Fields, bf)
	}
	return b, nil
}

func (b *BlittableStruct) Size() uint32 { return b.size }

func (b *BlittableStruct) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, b.size)
	if err != nil {
		return nil, err
	}
	raw, err := n.Mem.Read(at, b.size)
	if err != nil {
		return nil, memErr(err, "read struct")
	}
	return b.decode(raw), nil
}

func (b *BlittableStruct) ToNative(n *Native, addr uint32, index int, v any) error {
	s, ok := v.(Struct)
	if !ok {
		return mismatch("marshal.Struct", v)
	}
	at, err := elemAddr(addr, index, b.size)
	if err != nil {
		return err
	}
	raw, err := n.Mem.Read(at, b.size)
	if err != nil {
		return memErr(err, "read struct")
	}
	if err := b.encode(raw, s); err != nil {
		return err
	}
	if err := n.Mem.Write(at, raw); err != nil {
		return memErr(err, "write struct")
	}
	return nil
}

func (b *BlittableStruct) decode(raw []byte) Struct {
	out := make(Struct, len(b.Fields))
	for _, f := range b.Fields {
		chunk := raw[f.Offset : f.Offset+uint32(f.Width)]
		switch {
		case f.Nested != nil:
			out[f.Name] = f.Nested.decode(chunk)
		case f.Kind == descriptor.KindEnum:
			out[f.Name] = int64(leBits(chunk))
		default:
			out[f.Name] = fromBits(f.Kind, leBits(chunk))
		}
	}
	return out
}

func (b *BlittableStruct) encode(raw []byte, s Struct) error {
	for _, f := range b.Fields {
		v, ok := s[f.Name]
		if !ok {
			return errors.New(errors.PhaseMarshal, errors.KindInvalidData).
				NativeType(b.Name).Path(f.Name).Detail("missing field").Build()
		}
		chunk := raw[f.Offset : f.Offset+uint32(f.Width)]
		switch {
		case f.Nested != nil:
			inner, ok := v.(Struct)
			if !ok {
				return mismatch("marshal.Struct", v)
			}
			if err := f.Nested.encode(chunk, inner); err != nil {
				return err
			}
		case f.Kind == descriptor.KindEnum:
			bits, err := enumBits(f.Width, v)
			if err != nil {
				return err
			}
			putLEBits(chunk, bits)
		default:
			bits, err := toBits(f.Kind, v)
			if err != nil {
				return err
			}
			putLEBits(chunk, bits)
		}
	}
	return nil
}

func leBits(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func putLEBits(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// StructField binds a field name and offset to its codec.
type StructField struct {
	Codec  Codec
	Name   string
	Offset uint32
}

// StructCodec converts a non-blittable struct field by field.
type StructCodec struct {
	Name   string
	Fields []StructField
	size   uint32
}

func NewStructCodec(name string, size uint32, fields []StructField) *StructCodec {
	return &StructCodec{Name: name, Fields: fields, size: size}
}

func (s *StructCodec) Size() uint32 { return s.size }

func (s *StructCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, s.size)
	if err != nil {
		return nil, err
	}
	out := make(Struct, len(s.Fields))
	for _, f := range s.Fields {
		v, err := f.Codec.FromNative(n, at+f.Offset, 0)
		if err != nil {
			return nil, withPath(err, f.Name)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (s *StructCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	in, ok := v.(Struct)
	if !ok {
		return mismatch("marshal.Struct", v)
	}
	at, err := elemAddr(addr, index, s.size)
	if err != nil {
		return err
	}
	for _, f := range s.Fields {
		fv, ok := in[f.Name]
		if !ok {
			return errors.New(errors.PhaseMarshal, errors.KindInvalidData).
				NativeType(s.Name).Path(f.Name).Detail("missing field").Build()
		}
		if err := f.Codec.ToNative(n, at+f.Offset, 0, fv); err != nil {
			return withPath(err, f.Name)
		}
	}
	return nil
}

func (s *StructCodec) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, s.size)
	if err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := Destroy(f.Codec, n, at+f.Offset, 0); err != nil {
			return err
		}
	}
	return nil
}

// StaticArray handles fixed-dimension members such as int32 Values[4].
type StaticArray struct {
	Elem Codec
	Dim  int
}

func (a StaticArray) Size() uint32 { return a.Elem.Size() * uint32(a.Dim) }

func (a StaticArray) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, a.Size())
	if err != nil {
		return nil, err
	}
	out := make([]any, a.Dim)
	for i := range out {
		v, err := a.Elem.FromNative(n, at, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a StaticArray) ToNative(n *Native, addr uint32, index int, v any) error {
	items, ok := v.([]any)
	if !ok {
		return mismatch("[]any", v)
	}
	if len(items) != a.Dim {
		return errors.OutOfBounds(errors.PhaseMarshal, nil, len(items), a.Dim)
	}
	at, err := elemAddr(addr, index, a.Size())
	if err != nil {
		return err
	}
	for i, it := range items {
		if err := a.Elem.ToNative(n, at, i, it); err != nil {
			return err
		}
	}
	return nil
}

func (a StaticArray) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, a.Size())
	if err != nil {
		return err
	}
	for i := 0; i < a.Dim; i++ {
		if err := Destroy(a.Elem, n, at, i); err != nil {
			return err
		}
	}
	return nil
}

func withPath(err error, name string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		c := *e
		c.Path = append([]string{name}, e.Path...)
		return &c
	}
	return err
}
