package marshal

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// String stores UTF-16LE text in a script array that includes the
// terminating zero unit. The empty string has no allocation.
type String struct{}

func (String) Size() uint32 { return 16 }

func (String) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return nil, err
	}
	return readString(n, at)
}

func (String) ToNative(n *Native, addr uint32, index int, v any) error {
	s, ok := v.(string)
	if !ok {
		return mismatch("string", v)
	}
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return err
	}
	return writeString(n, at, s)
}

func (String) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, 16)
	if err != nil {
		return err
	}
	return freeArray(n, at, 2, 2)
}

func readString(n *Native, at uint32) (string, error) {
	h, err := readHeader(n.Mem, at)
	if err != nil {
		return "", err
	}
	if h.num <= 1 || h.data == 0 {
		return "", nil
	}
	if h.num > layout.MaxStringUnits {
		return "", errors.InvalidData(errors.PhaseMarshal, nil, "string length exceeds limit")
	}
	raw, err := n.Mem.Read(h.data, uint32(h.num-1)*2)
	if err != nil {
		return "", memErr(err, "read string data")
	}
	out, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "decode utf-16")
	}
	return string(out), nil
}

func writeString(n *Native, at uint32, s string) error {
	if s == "" {
		return freeArray(n, at, 2, 2)
	}
	units, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "encode utf-16")
	}
	count := len(units)/2 + 1
	if count > layout.MaxStringUnits {
		return errors.InvalidData(errors.PhaseMarshal, nil, "string length exceeds limit")
	}
	h, err := ensure(n, at, count, 2, 2, false)
	if err != nil {
		return err
	}
	buf := make([]byte, count*2)
	copy(buf, units)
	if err := n.Mem.Write(h.data, buf); err != nil {
		return memErr(err, "write string data")
	}
	h.num = int32(count)
	return writeHeader(n.Mem, at, h)
}

// NameCodec stores {index, number} into the name table.
type NameCodec struct{}

func (NameCodec) Size() uint32 { return 8 }

func (NameCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return nil, err
	}
	idx, err := n.Mem.ReadU32(at + layout.NameIndexOffset)
	if err != nil {
		return nil, memErr(err, "read name")
	}
	num, err := n.Mem.ReadU32(at + layout.NameNumberOffset)
	if err != nil {
		return nil, memErr(err, "read name")
	}
	s, ok := n.Names.Lookup(idx)
	if !ok {
		return nil, errors.InvalidData(errors.PhaseMarshal, nil, "unknown name index")
	}
	return Name{Value: s, Number: num}, nil
}

func (NameCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	var name Name
	switch x := v.(type) {
	case Name:
		name = x
	case string:
		name = Name{Value: x}
	default:
		return mismatch("marshal.Name", v)
	}
	at, err := elemAddr(addr, index, 8)
	if err != nil {
		return err
	}
	if err := n.Mem.WriteU32(at+layout.NameIndexOffset, n.Names.Intern(name.Value)); err != nil {
		return memErr(err, "write name")
	}
	if err := n.Mem.WriteU32(at+layout.NameNumberOffset, name.Number); err != nil {
		return memErr(err, "write name")
	}
	return nil
}

// TextCodec stores a string followed by display flags.
type TextCodec struct{}

func (TextCodec) Size() uint32 { return 24 }

func (TextCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, 24)
	if err != nil {
		return nil, err
	}
	s, err := readString(n, at+layout.TextStringOffset)
	if err != nil {
		return nil, err
	}
	flags, err := n.Mem.ReadU32(at + layout.TextFlagsOffset)
	if err != nil {
		return nil, memErr(err, "read text flags")
	}
	return Text{Value: s, Flags: flags}, nil
}

func (TextCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	var t Text
	switch x := v.(type) {
	case Text:
		t = x
	case string:
		t = Text{Value: x}
	default:
		return mismatch("marshal.Text", v)
	}
	at, err := elemAddr(addr, index, 24)
	if err != nil {
		return err
	}
	if err := writeString(n, at+layout.TextStringOffset, t.Value); err != nil {
		return err
	}
	if err := n.Mem.WriteU32(at+layout.TextFlagsOffset, t.Flags); err != nil {
		return memErr(err, "write text flags")
	}
	return nil
}

func (TextCodec) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, 24)
	if err != nil {
		return err
	}
	return freeArray(n, at+layout.TextStringOffset, 2, 2)
}
