package descriptor

import (
	"strings"

	"github.com/wippyai/native-bindgen/errors"
)

// Type is an immutable native type descriptor. Build one through Classify
// or the constructors below; derive variants with the With helpers.
type Type struct {
	Struct    *StructInfo
	Enum      *EnumInfo
	Signature *Signature

	// Name is the native spelling, e.g. "int32" or "Map<int32,String>".
	Name string
	// Class names the referenced class for object-like kinds.
	Class string

	// Args holds child descriptors: the element of array, set and optional,
	// key then value of map.
	Args     []*Type
	Flags    Flags
	ArrayDim int
	Kind     Kind
}

// Field is one member of a struct layout.
type Field struct {
	Type   *Type
	Name   string
	Offset uint32
}

// StructInfo describes a native struct layout.
type StructInfo struct {
	Name      string
	Fields    []Field
	Size      uint32
	Align     uint32
	Blittable bool
}

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string
	Value int64
}

// EnumInfo describes an enum and its underlying integer width in bytes.
type EnumInfo struct {
	Name   string
	Values []EnumValue
	Width  int
}

// Param is one delegate or function parameter.
type Param struct {
	Type *Type
	Name string
}

// Signature is the parameter list of a delegate or function.
type Signature struct {
	Return *Type
	Name   string
	Params []Param
}

// New returns a descriptor of kind with the given native name.
func New(kind Kind, name string, args ...*Type) *Type {
	return &Type{Kind: kind, Name: name, Args: args, ArrayDim: 1}
}

// Primitive returns the descriptor of a numeric or bool kind.
func Primitive(kind Kind) *Type {
	return New(kind, kind.String())
}

// Elem returns the element of array, set and optional descriptors.
func (t *Type) Elem() *Type {
	switch t.Kind {
	case KindArray, KindSet, KindOptional:
		if len(t.Args) > 0 {
			return t.Args[0]
		}
	}
	return nil
}

// Key returns the key of a map descriptor.
func (t *Type) Key() *Type {
	if t.Kind == KindMap && len(t.Args) > 0 {
		return t.Args[0]
	}
	return nil
}

// Value returns the value of a map descriptor.
func (t *Type) Value() *Type {
	if t.Kind == KindMap && len(t.Args) > 1 {
		return t.Args[1]
	}
	return nil
}

// Dim returns the static array dimension, at least 1.
func (t *Type) Dim() int {
	if t.ArrayDim < 1 {
		return 1
	}
	return t.ArrayDim
}

// WithFlags returns a copy of t with flags replaced.
func (t *Type) WithFlags(f Flags) *Type {
	c := *t
	c.Flags = f
	return &c
}

// WithAddedFlags returns a copy of t with f added.
func (t *Type) WithAddedFlags(f Flags) *Type {
	return t.WithFlags(t.Flags | f)
}

// WithArrayDim returns a copy of t with the static dimension set.
func (t *Type) WithArrayDim(dim int) *Type {
	c := *t
	c.ArrayDim = dim
	return &c
}

// WithArgs returns a copy of t with child descriptors replaced.
func (t *Type) WithArgs(args ...*Type) *Type {
	c := *t
	c.Args = args
	return &c
}

// IsBlittable reports whether the native and managed layouts are identical.
func (t *Type) IsBlittable() bool {
	switch {
	case t.Kind.IsNumeric():
		return true
	case t.Kind == KindEnum:
		return true
	case t.Kind == KindStruct:
		if t.Struct == nil || !t.Struct.Blittable {
			return false
		}
		for _, f := range t.Struct.Fields {
			if f.Type == nil || !f.Type.IsBlittable() {
				return false
			}
		}
		return true
	}
	return false
}

// VerifyBlittable fails when a struct carries the blittable marker but one
// of its fields is not blittable.
func (t *Type) VerifyBlittable() error {
	if t.Kind != KindStruct || t.Struct == nil || !t.Struct.Blittable {
		return nil
	}
	for _, f := range t.Struct.Fields {
		if f.Type == nil || !f.Type.IsBlittable() {
			fieldType := "<nil>"
			if f.Type != nil {
				fieldType = f.Type.String()
			}
			return errors.New(errors.PhaseClassify, errors.KindInvalidComposite).
				NativeType(t.Name).
				Path(f.Name).
				Detail("struct is marked blittable but field %s of type %s is not", f.Name, fieldType).
				Build()
		}
	}
	return nil
}

// String renders the descriptor in template syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	var b strings.Builder
	b.WriteString(baseName(t.Name))
	b.WriteByte('<')
	for i, a := range t.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte('>')
	return b.String()
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}
	return name
}
