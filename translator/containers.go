package translator

import (
	"strings"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// container composes the marshallers of its children. Owners that are
// classes get the live variant aliasing native storage; structs and
// function parameters get the copy variant.
type container struct {
	composite
	managedLive string
	managedCopy string
	liveCodec   string
	copyCodec   string
	kind        descriptor.Kind
	arity       int
}

var (
	Array Translator = container{
		composite:   composite{base{name: "array", kinds: []descriptor.Kind{descriptor.KindArray}}},
		managedLive: "IList", managedCopy: "List",
		liveCodec: "ArrayMarshaller", copyCodec: "ArrayCopyMarshaller",
		kind: descriptor.KindArray, arity: 1,
	}
	Map Translator = container{
		composite:   composite{base{name: "map", kinds: []descriptor.Kind{descriptor.KindMap}}},
		managedLive: "IDictionary", managedCopy: "Dictionary",
		liveCodec: "MapMarshaller", copyCodec: "MapCopyMarshaller",
		kind: descriptor.KindMap, arity: 2,
	}
	Set Translator = container{
		composite:   composite{base{name: "set", kinds: []descriptor.Kind{descriptor.KindSet}}},
		managedLive: "ISet", managedCopy: "HashSet",
		liveCodec: "SetMarshaller", copyCodec: "SetCopyMarshaller",
		kind: descriptor.KindSet, arity: 1,
	}
	// Optional has no live variant; the value is always copied.
	Optional Translator = container{
		composite:   composite{base{name: "optional", kinds: []descriptor.Kind{descriptor.KindOptional}}},
		managedLive: "Optional", managedCopy: "Optional",
		liveCodec: "OptionalMarshaller", copyCodec: "OptionalMarshaller",
		kind: descriptor.KindOptional, arity: 1,
	}
)

func (c container) CanExport(t *descriptor.Type) bool {
	return t.Kind == c.kind && len(t.Args) == c.arity
}

func (c container) args(m *Match, owner plan.OwnerKind) string {
	names := make([]string, len(m.Args))
	for i, a := range m.Args {
		names[i] = a.Translator.ManagedType(a, owner)
	}
	return strings.Join(names, ", ")
}

func (c container) ManagedType(m *Match, owner plan.OwnerKind) string {
	name := c.managedCopy
	if owner.Live() {
		name = c.managedLive
	}
	return name + "<" + c.args(m, owner) + ">"
}

func (c container) Marshaller(m *Match, owner plan.OwnerKind) string {
	name := c.copyCodec
	if owner.Live() {
		name = c.liveCodec
	}
	return name + "<" + c.args(m, owner) + ">"
}

// StaticBinding creates the cell from the property handle and the
// conversion delegates of every child, in descriptor order.
func (c container) StaticBinding(ctx *Context) ([]plan.Static, error) {
	var args []plan.Expr
	for _, a := range ctx.Match.Args {
		args = append(args, delegates(a)...)
	}
	return cell(ctx, c.Marshaller(ctx.Match, ctx.Owner), args...), nil
}

func (c container) NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error) {
	if opts.Registry == nil {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "container codec needs a registry")
	}
	if len(m.Args) != c.arity {
		return nil, errors.InvalidComposite(errors.PhaseTranslate, m.Type.String(), "container children were not composed")
	}

	codecs := make([]marshal.Codec, c.arity)
	infos := make([]layout.Info, c.arity)
	for i, a := range m.Args {
		ec, err := opts.Registry.NewCodec(a, CodecOptions{Owner: plan.OwnerStruct})
		if err != nil {
			return nil, err
		}
		info, err := layout.Of(a.Type)
		if err != nil {
			return nil, err
		}
		codecs[i], infos[i] = ec, info
	}

	live := opts.Owner.Live()
	switch c.kind {
	case descriptor.KindArray:
		if live {
			return marshal.NewArrayLive(codecs[0], infos[0].Align), nil
		}
		return marshal.NewArrayCopy(codecs[0], infos[0].Align), nil
	case descriptor.KindMap:
		if live {
			return marshal.NewMapLive(codecs[0], codecs[1], infos[0], infos[1]), nil
		}
		return marshal.NewMapCopy(codecs[0], codecs[1], infos[0], infos[1]), nil
	case descriptor.KindSet:
		if live {
			return marshal.NewSetLive(codecs[0], infos[0].Align), nil
		}
		return marshal.NewSetCopy(codecs[0], infos[0].Align), nil
	default:
		return marshal.NewOptional(codecs[0], infos[0]), nil
	}
}
