package plan

import (
	"github.com/wippyai/native-bindgen/descriptor"
)

// Expr produces a managed value or address.
type Expr interface{ isExpr() }

// Stmt performs a native write or side effect.
type Stmt interface{ isStmt() }

// Static is one step of the one-time resolution program.
type Static interface{ isStatic() }

// Address is base + cached offset, or the bare base for return buffers.
type Address struct {
	Base        string
	OffsetField string
	Mode        AddressingMode
}

// At builds an address for mode. Return buffers ignore the offset.
func At(mode AddressingMode, base, offsetField string) Address {
	if mode == ReturnBuffer {
		return Address{Mode: mode, Base: base}
	}
	return Address{Mode: mode, Base: base, OffsetField: offsetField}
}

// Load reads a primitive of Kind's width.
type Load struct {
	Addr Address
	Kind descriptor.Kind
	// Width overrides Kind's width for enums.
	Width int
}

// MaskedLoad reads one bit of a bitfield byte.
type MaskedLoad struct {
	Addr      Address
	MaskField string
}

// Call invokes a marshaller. Static names a marshaller type with static
// methods; Cell names a cached marshaller instance. Value is nil for reads.
type Call struct {
	Value  Expr
	Static string
	Cell   string
	Method string
	Addr   Address
	Index  int
}

// Value names a managed variable, e.g. the setter's incoming value.
type Value struct {
	Name string
}

// MethodRef is a conversion delegate passed to composite marshallers.
type MethodRef struct {
	Marshaller string
	Method     string
}

// Deref reads through an out/ref pointer.
type Deref struct {
	Pointer Expr
	Kind    descriptor.Kind
}

// Store writes a primitive of Kind's width.
type Store struct {
	Value Expr
	Addr  Address
	Kind  descriptor.Kind
	Width int
}

// MaskedStore sets or clears one bit of a bitfield byte.
type MaskedStore struct {
	Value     Expr
	Addr      Address
	MaskField string
}

// Eval runs a call for its side effect.
type Eval struct {
	Call Call
}

// StoreIndirect writes a value back through an out/ref pointer, by
// primitive width or, when Object is set, through object indirection.
type StoreIndirect struct {
	Pointer Expr
	Value   Expr
	Kind    descriptor.Kind
	Width   int
	Object  bool
}

// Query is a reflection query run by the resolution program.
type Query uint8

const (
	QueryTypeHandle Query = iota
	QueryFunctionHandle
	QueryPropertyHandle
	QueryPropertyOffset
	QueryOffsetByName
	QueryParamsSize
	QueryStructSize
	QueryBoolMask
)

var queryNames = [...]string{
	QueryTypeHandle:     "type_handle",
	QueryFunctionHandle: "function_handle",
	QueryPropertyHandle: "property_handle",
	QueryPropertyOffset: "property_offset",
	QueryOffsetByName:   "offset_by_name",
	QueryParamsSize:     "params_size",
	QueryStructSize:     "struct_size",
	QueryBoolMask:       "bool_mask",
}

func (q Query) String() string {
	if int(q) < len(queryNames) {
		return queryNames[q]
	}
	return "unknown"
}

// Resolve stores the result of one reflection query in Field. Owner names
// the field holding the handle the query is made against; Name is the
// queried native name. Uncached results live only for the duration of the
// resolution program.
type Resolve struct {
	Field  string
	Owner  string
	Name   string
	Query  Query
	Cached bool
}

// CellInit constructs a composite marshaller once and stores it in Field.
type CellInit struct {
	Field      string
	Marshaller string
	Property   string
	Args       []Expr
}

func (Address) isExpr()    {}
func (Load) isExpr()       {}
func (MaskedLoad) isExpr() {}
func (Call) isExpr()       {}
func (Value) isExpr()      {}
func (MethodRef) isExpr()  {}
func (Deref) isExpr()      {}

func (Store) isStmt()         {}
func (MaskedStore) isStmt()   {}
func (Eval) isStmt()          {}
func (StoreIndirect) isStmt() {}

func (Resolve) isStatic()  {}
func (CellInit) isStatic() {}

// Field names shared by both emitters.
const (
	TypeHandleField = "NativeClassPtr"
	TypeSizeField   = "NativeDataSize"
)

func OffsetField(member string) string   { return member + "_Offset" }
func PropertyField(member string) string { return member + "_NativeProperty" }
func MaskField(member string) string     { return member + "_FieldMask" }
func CellField(member string) string     { return member + "_Marshaller" }
func FunctionField(fn string) string     { return fn + "_NativeFunction" }
func ParamsSizeField(fn string) string   { return fn + "_ParamsSize" }

// ParamMember names a parameter for field naming, e.g. "Fire_Target".
func ParamMember(fn, param string) string { return fn + "_" + param }
