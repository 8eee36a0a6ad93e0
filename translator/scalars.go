package translator

import (
	"fmt"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

var managedNumerics = map[descriptor.Kind]string{
	descriptor.KindInt8:   "sbyte",
	descriptor.KindInt16:  "short",
	descriptor.KindInt32:  "int",
	descriptor.KindInt64:  "long",
	descriptor.KindUint8:  "byte",
	descriptor.KindUint16: "ushort",
	descriptor.KindUint32: "uint",
	descriptor.KindUint64: "ulong",
	descriptor.KindFloat:  "float",
	descriptor.KindDouble: "double",
}

// Primitive handles the ten numeric kinds with direct loads and stores.
var Primitive Translator = primitive{base{
	name: "primitive",
	kinds: []descriptor.Kind{
		descriptor.KindInt8, descriptor.KindInt16, descriptor.KindInt32, descriptor.KindInt64,
		descriptor.KindUint8, descriptor.KindUint16, descriptor.KindUint32, descriptor.KindUint64,
		descriptor.KindFloat, descriptor.KindDouble,
	},
}}

type primitive struct{ base }

func (primitive) CanExport(t *descriptor.Type) bool { return t.Kind.IsNumeric() }

func (primitive) ManagedType(m *Match, _ plan.OwnerKind) string {
	return managedNumerics[m.Type.Kind]
}

func (p primitive) Marshaller(m *Match, owner plan.OwnerKind) string {
	return "BlittableMarshaller<" + p.ManagedType(m, owner) + ">"
}

func (primitive) FromNative(ctx *Context) (plan.Expr, error) {
	return plan.Load{Addr: ctx.Addr, Kind: ctx.Match.Type.Kind}, nil
}

func (primitive) ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error) {
	return plan.Store{Value: value, Addr: ctx.Addr, Kind: ctx.Match.Type.Kind}, nil
}

func (primitive) NewCodec(m *Match, _ CodecOptions) (marshal.Codec, error) {
	return marshal.Primitive{Kind: m.Type.Kind}, nil
}

// Bool handles plain bools and single-bit bitfield bools. The bitfield
// mask is resolved by the binding program, not here.
var Bool Translator = boolean{base{name: "bool", kinds: []descriptor.Kind{descriptor.KindBool}}}

type boolean struct{ base }

func (boolean) CanExport(t *descriptor.Type) bool { return t.Kind == descriptor.KindBool }

func (boolean) ManagedType(*Match, plan.OwnerKind) string { return "bool" }

func (boolean) Marshaller(m *Match, _ plan.OwnerKind) string {
	if m.Type.Flags.Has(descriptor.FlagBitfield) {
		return "BitfieldBoolMarshaller"
	}
	return "BoolMarshaller"
}

func (boolean) FromNative(ctx *Context) (plan.Expr, error) {
	if ctx.Match.Type.Flags.Has(descriptor.FlagBitfield) {
		return plan.MaskedLoad{Addr: ctx.Addr, MaskField: ctx.MaskField()}, nil
	}
	return plan.Load{Addr: ctx.Addr, Kind: descriptor.KindBool}, nil
}

func (boolean) ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error) {
	if ctx.Match.Type.Flags.Has(descriptor.FlagBitfield) {
		return plan.MaskedStore{Value: value, Addr: ctx.Addr, MaskField: ctx.MaskField()}, nil
	}
	return plan.Store{Value: value, Addr: ctx.Addr, Kind: descriptor.KindBool}, nil
}

func (boolean) NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error) {
	if !m.Type.Flags.Has(descriptor.FlagBitfield) {
		return marshal.Bool{}, nil
	}
	if opts.Mask == 0 {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "bitfield bool needs a resolved mask")
	}
	return marshal.Bitfield{Mask: opts.Mask}, nil
}

// Enum handles enums backed by a single byte. Wider enums are rejected by
// Validate rather than silently truncated.
var Enum Translator = enum{base{name: "enum", kinds: []descriptor.Kind{descriptor.KindEnum}}}

type enum struct{ base }

func (enum) CanExport(t *descriptor.Type) bool { return t.Kind == descriptor.KindEnum }

func (enum) Validate(t *descriptor.Type) error {
	if t.Enum == nil {
		return errors.InvalidComposite(errors.PhaseTranslate, t.Name, "enum has no metadata")
	}
	if t.Enum.Width != 1 {
		return errors.InvalidComposite(errors.PhaseTranslate, t.Name,
			fmt.Sprintf("enum underlying width is %d bytes; only 1-byte enums are exportable", t.Enum.Width))
	}
	return nil
}

func (enum) ManagedType(m *Match, _ plan.OwnerKind) string { return m.Type.Name }

func (enum) Marshaller(m *Match, _ plan.OwnerKind) string {
	return "EnumMarshaller<" + m.Type.Name + ">"
}

func (enum) FromNative(ctx *Context) (plan.Expr, error) {
	return plan.Load{Addr: ctx.Addr, Kind: descriptor.KindEnum, Width: ctx.Match.Type.Enum.Width}, nil
}

func (enum) ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error) {
	return plan.Store{Value: value, Addr: ctx.Addr, Kind: descriptor.KindEnum, Width: ctx.Match.Type.Enum.Width}, nil
}

func (enum) NewCodec(m *Match, _ CodecOptions) (marshal.Codec, error) {
	return marshal.Enum{Width: m.Type.Enum.Width}, nil
}
