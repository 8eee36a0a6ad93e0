package plan

import (
	"github.com/wippyai/native-bindgen/descriptor"
)

// AddressingMode selects how a conversion addresses its native buffer.
type AddressingMode uint8

const (
	// Direct addresses base + cached offset.
	Direct AddressingMode = iota
	// ReturnBuffer addresses a dedicated return buffer with no offset.
	ReturnBuffer
	// ParamBuffer addresses the stack-allocated parameter buffer plus the
	// parameter's cached offset.
	ParamBuffer
)

func (m AddressingMode) String() string {
	switch m {
	case ReturnBuffer:
		return "return-buffer"
	case ParamBuffer:
		return "param-buffer"
	}
	return "direct"
}

// OwnerKind is the kind of the entity owning a member.
type OwnerKind uint8

const (
	OwnerClass OwnerKind = iota
	OwnerStruct
	OwnerFunction
)

func (o OwnerKind) String() string {
	switch o {
	case OwnerStruct:
		return "struct"
	case OwnerFunction:
		return "function"
	}
	return "class"
}

// Live reports whether containers owned by o alias native memory.
func (o OwnerKind) Live() bool {
	return o == OwnerClass
}

// Direction of a function parameter.
type Direction uint8

const (
	In Direction = iota
	Out
	Ref
	Return
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case Ref:
		return "ref"
	case Return:
		return "return"
	}
	return "in"
}

// DirectionOf derives the parameter direction from descriptor flags.
func DirectionOf(f descriptor.Flags) Direction {
	switch {
	case f.Has(descriptor.FlagReturn):
		return Return
	case f.Has(descriptor.FlagOut) && !f.Has(descriptor.FlagConst):
		if f.Has(descriptor.FlagReference) {
			return Ref
		}
		return Out
	case f.Has(descriptor.FlagReference) && !f.Has(descriptor.FlagConst):
		return Ref
	}
	return In
}

// Base names of the buffers conversions address.
const (
	BaseObject = "NativeObject"
	BaseParams = "ParamsBuffer"
	BaseReturn = "ReturnBuffer"
	BaseStruct = "Buffer"
)

// PropertyPlan is the conversion plan of one property.
type PropertyPlan struct {
	Type        *descriptor.Type
	Get         Expr
	Set         Stmt
	Name        string
	Translator  string
	ManagedType string
	Marshaller  string
	OffsetField string
	Statics     []Static
	ReadOnly    bool
}

// ParamPlan is the conversion plan of one parameter or return value.
type ParamPlan struct {
	Type        *descriptor.Type
	FromNative  Expr
	ToNative    Stmt
	WriteBack   Stmt
	Name        string
	Translator  string
	ManagedType string
	Marshaller  string
	OffsetField string
	Cleanup     []Stmt
	Statics     []Static
	Direction   Direction
}

// FunctionPlan is the invoker plan of one function.
type FunctionPlan struct {
	Return      *ParamPlan
	Name        string
	HandleField string
	SizeField   string
	Params      []ParamPlan
	Statics     []Static
	ReturnSize  uint32
	Replicated  bool
}

// TypePlan is everything emitted for one owning type.
type TypePlan struct {
	Name        string
	NativeName  string
	Namespace   string
	HandleField string
	SizeField   string
	Properties  []PropertyPlan
	Functions   []FunctionPlan
	// Statics is the type-level part of the resolution program; members
	// carry their own, emitted after it in member order.
	Statics []Static
	// Enum is set for enum types, which have no members and no program.
	Enum *descriptor.EnumInfo
	// Delegate is the invoke signature of delegate types.
	Delegate  *FunctionPlan
	Super     string
	Owner     OwnerKind
	Multicast bool
	Blittable bool
}

// IsValueOnly reports whether t has no native binding of its own.
func (t *TypePlan) IsValueOnly() bool {
	return t.Enum != nil || t.Delegate != nil
}

// Program returns the full resolution program of the type in order.
func (t *TypePlan) Program() []Static {
	out := append([]Static(nil), t.Statics...)
	for _, p := range t.Properties {
		out = append(out, p.Statics...)
	}
	for _, f := range t.Functions {
		out = append(out, f.Statics...)
		for _, p := range f.Params {
			out = append(out, p.Statics...)
		}
		if f.Return != nil {
			out = append(out, f.Return.Statics...)
		}
	}
	return out
}

// Fields returns the cached static fields the program declares, in order.
func (t *TypePlan) Fields() []Static {
	var out []Static
	for _, s := range t.Program() {
		switch v := s.(type) {
		case Resolve:
			if v.Cached {
				out = append(out, s)
			}
		case CellInit:
			out = append(out, s)
		}
	}
	return out
}
