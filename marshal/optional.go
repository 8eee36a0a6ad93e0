package marshal

import (
	"github.com/wippyai/native-bindgen/layout"
)

// OptionalCodec stores the value at offset 0 followed by an is-set byte.
type OptionalCodec struct {
	Value Codec
	info  layout.Info
	size  uint32
}

func NewOptional(value Codec, info layout.Info) *OptionalCodec {
	return &OptionalCodec{
		Value: value,
		info:  info,
		size:  layout.AlignTo(info.Size+1, info.Align),
	}
}

func (o *OptionalCodec) Size() uint32 { return o.size }

func (o *OptionalCodec) FromNative(n *Native, addr uint32, index int) (any, error) {
	at, err := elemAddr(addr, index, o.size)
	if err != nil {
		return nil, err
	}
	set, err := n.Mem.ReadU8(at + layout.OptionalFlagOffset(o.info))
	if err != nil {
		return nil, memErr(err, "read optional flag")
	}
	if set == 0 {
		return Option{}, nil
	}
	v, err := o.Value.FromNative(n, at, 0)
	if err != nil {
		return nil, err
	}
	return Some(v), nil
}

// ToNative accepts an Option, nil for unset, or a bare value for set.
func (o *OptionalCodec) ToNative(n *Native, addr uint32, index int, v any) error {
	opt, ok := v.(Option)
	if !ok {
		opt = Option{Value: v, Valid: v != nil}
	}
	at, err := elemAddr(addr, index, o.size)
	if err != nil {
		return err
	}
	flagAt := at + layout.OptionalFlagOffset(o.info)

	if !opt.Valid {
		if err := o.Destroy(n, addr, index); err != nil {
			return err
		}
		if err := zeroRange(n, at, o.info.Size); err != nil {
			return err
		}
		if err := n.Mem.WriteU8(flagAt, 0); err != nil {
			return memErr(err, "write optional flag")
		}
		return nil
	}
	if err := o.Value.ToNative(n, at, 0, opt.Value); err != nil {
		return err
	}
	if err := n.Mem.WriteU8(flagAt, 1); err != nil {
		return memErr(err, "write optional flag")
	}
	return nil
}

func (o *OptionalCodec) Destroy(n *Native, addr uint32, index int) error {
	at, err := elemAddr(addr, index, o.size)
	if err != nil {
		return err
	}
	set, err := n.Mem.ReadU8(at + layout.OptionalFlagOffset(o.info))
	if err != nil {
		return memErr(err, "read optional flag")
	}
	if set == 0 {
		return nil
	}
	return Destroy(o.Value, n, at, 0)
}
