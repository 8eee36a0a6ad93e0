package translator

import (
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// FixedArray wraps members declared with a static dimension, such as
// int32 Values[4]. It is never registered; Lookup synthesizes it around
// the match of the element.
var FixedArray Translator = fixedArray{
	composite: composite{base{name: "fixed-array"}},
}

type fixedArray struct {
	composite
}

func (fixedArray) CanExport(t *descriptor.Type) bool { return t.Dim() > 1 }

func (fixedArray) ManagedType(m *Match, owner plan.OwnerKind) string {
	e := m.Elem()
	return "FixedSizeArray<" + e.Translator.ManagedType(e, owner) + ">"
}

func (fixedArray) Marshaller(m *Match, owner plan.OwnerKind) string {
	e := m.Elem()
	return "FixedSizeArrayMarshaller<" + e.Translator.ManagedType(e, owner) + ">"
}

// StaticBinding creates the cell from the property handle, which carries
// the dimension, and the element's conversion delegates.
func (f fixedArray) StaticBinding(ctx *Context) ([]plan.Static, error) {
	return cell(ctx, f.Marshaller(ctx.Match, ctx.Owner), delegates(ctx.Match.Elem())...), nil
}

func (fixedArray) NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error) {
	e := m.Elem()
	if e == nil {
		return nil, errors.InvalidComposite(errors.PhaseTranslate, m.Type.String(), "fixed array element was not composed")
	}
	var c marshal.Codec
	var err error
	if opts.Registry != nil {
		c, err = opts.Registry.NewCodec(e, opts)
	} else {
		c, err = e.Translator.NewCodec(e, opts)
	}
	if err != nil {
		return nil, err
	}
	return marshal.StaticArray{Elem: c, Dim: m.Type.Dim()}, nil
}
