package translator

import (
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// simple is a single-kind translator backed by a static marshaller.
type simple struct {
	static
	managed func(m *Match) string
	codec   func(m *Match) marshal.Codec
	kind    descriptor.Kind
}

func newSimple(name string, kind descriptor.Kind, owned bool, managed, marshaller func(*Match) string, codec func(*Match) marshal.Codec) simple {
	return simple{
		static: static{
			base:       base{name: name, kinds: []descriptor.Kind{kind}},
			marshaller: marshaller,
			owned:      owned,
		},
		managed: managed,
		codec:   codec,
		kind:    kind,
	}
}

func (s simple) CanExport(t *descriptor.Type) bool { return t.Kind == s.kind }

func (s simple) ManagedType(m *Match, _ plan.OwnerKind) string { return s.managed(m) }

func (s simple) NewCodec(m *Match, _ CodecOptions) (marshal.Codec, error) {
	return s.codec(m), nil
}

func fixed(s string) func(*Match) string {
	return func(*Match) string { return s }
}

func generic(prefix string, arg func(*Match) string) func(*Match) string {
	return func(m *Match) string { return prefix + "<" + arg(m) + ">" }
}

// className is the referenced class of an object-like descriptor.
func className(m *Match) string {
	if m.Type.Class != "" {
		return m.Type.Class
	}
	return m.Type.Name
}

func typeName(m *Match) string { return m.Type.Name }

var (
	// String handles native strings as UTF-16 script arrays.
	String Translator = newSimple("string", descriptor.KindString, true,
		fixed("string"), fixed("StringMarshaller"),
		func(*Match) marshal.Codec { return marshal.String{} })

	Name Translator = newSimple("name", descriptor.KindName, false,
		fixed("Name"), fixed("NameMarshaller"),
		func(*Match) marshal.Codec { return marshal.NameCodec{} })

	Text Translator = newSimple("text", descriptor.KindText, true,
		fixed("Text"), fixed("TextMarshaller"),
		func(*Match) marshal.Codec { return marshal.TextCodec{} })

	// Object handles strong object references; the managed side sees one
	// proxy per native address.
	Object Translator = newSimple("object", descriptor.KindObject, false,
		className, generic("ObjectMarshaller", className),
		func(m *Match) marshal.Codec { return marshal.ObjectCodec{Class: className(m)} })

	WeakObject Translator = newSimple("weak-object", descriptor.KindWeakObject, false,
		generic("WeakObject", className), generic("WeakObjectMarshaller", className),
		func(*Match) marshal.Codec { return marshal.WeakCodec{} })

	SoftObject Translator = newSimple("soft-object", descriptor.KindSoftObject, true,
		generic("SoftObject", className), generic("SoftObjectMarshaller", className),
		func(*Match) marshal.Codec { return marshal.SoftCodec{} })

	Class Translator = newSimple("class", descriptor.KindClass, false,
		generic("SubclassOf", className), generic("SubclassOfMarshaller", className),
		func(m *Match) marshal.Codec { return marshal.ObjectCodec{Class: className(m)} })

	Interface Translator = newSimple("interface", descriptor.KindInterface, false,
		className, generic("ScriptInterfaceMarshaller", className),
		func(m *Match) marshal.Codec { return marshal.InterfaceCodec{Class: className(m)} })
)
