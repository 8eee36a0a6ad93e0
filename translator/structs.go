package translator

import (
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// BlittableStruct copies fixed-layout structs in one piece. It precedes
// Struct in the table and shadows it.
var BlittableStruct Translator = blittableStruct{static{
	base:       base{name: "blittable-struct", kinds: []descriptor.Kind{descriptor.KindStruct}},
	marshaller: generic("BlittableMarshaller", typeName),
}}

type blittableStruct struct{ static }

func (blittableStruct) CanExport(t *descriptor.Type) bool {
	return t.Kind == descriptor.KindStruct && t.IsBlittable()
}

func (blittableStruct) ManagedType(m *Match, _ plan.OwnerKind) string { return m.Type.Name }

func (blittableStruct) NewCodec(m *Match, _ CodecOptions) (marshal.Codec, error) {
	c, err := marshal.NewBlittableStruct(m.Type.Struct)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Struct converts structs field by field through a marshaller cell built
// from the struct's generated FromNative and ToNative members.
var Struct Translator = composedStruct{composite{base{
	name:  "struct",
	kinds: []descriptor.Kind{descriptor.KindStruct},
}}}

type composedStruct struct{ composite }

func (composedStruct) CanExport(t *descriptor.Type) bool {
	return t.Kind == descriptor.KindStruct && t.Struct != nil
}

func (composedStruct) ManagedType(m *Match, _ plan.OwnerKind) string { return m.Type.Name }

func (composedStruct) Marshaller(m *Match, _ plan.OwnerKind) string {
	return "StructMarshaller<" + m.Type.Name + ">"
}

func (s composedStruct) StaticBinding(ctx *Context) ([]plan.Static, error) {
	name := ctx.Match.Type.Name
	return cell(ctx, s.Marshaller(ctx.Match, ctx.Owner),
		plan.MethodRef{Marshaller: name, Method: "ToNative"},
		plan.MethodRef{Marshaller: name, Method: "FromNative"},
	), nil
}

func (composedStruct) NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error) {
	if opts.Registry == nil {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "struct codec needs a registry")
	}
	info := m.Type.Struct
	fields := make([]marshal.StructField, 0, len(info.Fields))
	for _, f := range info.Fields {
		c, _, err := opts.Registry.codecFor(f.Type, CodecOptions{Owner: plan.OwnerStruct})
		if err != nil {
			return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidComposite).
				NativeType(m.Type.Name).
				Path(f.Name).
				Cause(err).
				Detail("field %s cannot be converted", f.Name).
				Build()
		}
		fields = append(fields, marshal.StructField{Codec: c, Name: f.Name, Offset: f.Offset})
	}
	return marshal.NewStructCodec(info.Name, info.Size, fields), nil
}

// Delegate handles single-cast delegates.
var Delegate Translator = delegate{
	composite:  composite{base{name: "delegate", kinds: []descriptor.Kind{descriptor.KindDelegate}}},
	kind:       descriptor.KindDelegate,
	marshaller: "DelegateMarshaller",
	codec:      marshal.DelegateCodec{},
}

// MulticastDelegate handles delegates with an invocation list.
var MulticastDelegate Translator = delegate{
	composite:  composite{base{name: "multicast-delegate", kinds: []descriptor.Kind{descriptor.KindMulticastDelegate}}},
	kind:       descriptor.KindMulticastDelegate,
	marshaller: "MulticastDelegateMarshaller",
	codec:      marshal.MulticastCodec{},
}

type delegate struct {
	composite
	codec      marshal.Codec
	marshaller string
	kind       descriptor.Kind
}

func (d delegate) CanExport(t *descriptor.Type) bool { return t.Kind == d.kind }

func (delegate) ManagedType(m *Match, _ plan.OwnerKind) string { return m.Type.Name }

func (d delegate) Marshaller(m *Match, _ plan.OwnerKind) string {
	return d.marshaller + "<" + m.Type.Name + ">"
}

func (d delegate) StaticBinding(ctx *Context) ([]plan.Static, error) {
	return cell(ctx, d.Marshaller(ctx.Match, ctx.Owner)), nil
}

func (d delegate) NewCodec(*Match, CodecOptions) (marshal.Codec, error) {
	return d.codec, nil
}
