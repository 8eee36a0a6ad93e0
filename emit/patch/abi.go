package patch

import (
	"fmt"

	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

// ImportModule is the host module every patched assembly imports from.
const ImportModule = "bindgen"

// Host imports. Names are passed as (ptr, len) pairs into the names data
// segment; handles, offsets, cells and managed values are i32.
const (
	ImportTypeHandle       = "type_handle"       // (name, len) -> type
	ImportFunctionHandle   = "function_handle"   // (type, name, len) -> fn
	ImportPropertyHandle   = "property_handle"   // (owner, name, len) -> prop
	ImportPropertyOffset   = "property_offset"   // (prop) -> offset
	ImportOffsetByName     = "offset_by_name"    // (owner, name, len) -> offset
	ImportParamsSize       = "params_size"       // (fn) -> size
	ImportStructSize       = "struct_size"       // (type) -> size
	ImportBoolMask         = "bool_mask"         // (owner, name, len) -> mask
	ImportInstanceFunction = "instance_function" // (object, name, len) -> fn
	ImportCellNew          = "cell_new"          // (marshaller, len, prop, owner) -> cell
	ImportFromNative       = "from_native"       // (cell, addr, index) -> value
	ImportToNative         = "to_native"         // (cell, addr, index, value)
	ImportDestroy          = "destroy"           // (cell, addr, index)
	ImportInvoke           = "invoke"            // (object, fn, params, ret)
)

// Import is one host function of the ABI.
type Import struct {
	Name string
	Type assembly.FuncType
}

var i32 = assembly.ValI32

func sig(params int, result bool) assembly.FuncType {
	ft := assembly.FuncType{Params: make([]assembly.ValType, params)}
	for i := range ft.Params {
		ft.Params[i] = i32
	}
	if result {
		ft.Results = []assembly.ValType{i32}
	}
	return ft
}

// Imports is the host ABI in import order.
var Imports = []Import{
	{ImportTypeHandle, sig(2, true)},
	{ImportFunctionHandle, sig(3, true)},
	{ImportPropertyHandle, sig(3, true)},
	{ImportPropertyOffset, sig(1, true)},
	{ImportOffsetByName, sig(3, true)},
	{ImportParamsSize, sig(1, true)},
	{ImportStructSize, sig(1, true)},
	{ImportBoolMask, sig(3, true)},
	{ImportInstanceFunction, sig(3, true)},
	{ImportCellNew, sig(4, true)},
	{ImportFromNative, sig(3, true)},
	{ImportToNative, sig(4, false)},
	{ImportDestroy, sig(3, false)},
	{ImportInvoke, sig(4, false)},
}

var queryImports = map[plan.Query]string{
	plan.QueryTypeHandle:     ImportTypeHandle,
	plan.QueryFunctionHandle: ImportFunctionHandle,
	plan.QueryPropertyHandle: ImportPropertyHandle,
	plan.QueryPropertyOffset: ImportPropertyOffset,
	plan.QueryOffsetByName:   ImportOffsetByName,
	plan.QueryParamsSize:     ImportParamsSize,
	plan.QueryStructSize:     ImportStructSize,
	plan.QueryBoolMask:       ImportBoolMask,
}

// Stub export names.
func GetterExport(owner, member string) string { return owner + ".get_" + member }
func SetterExport(owner, member string) string { return owner + ".set_" + member }
func InvokerExport(owner, fn string) string     { return owner + "." + fn }
func BinderExport(owner string) string          { return owner + ".__bind" }

// kindType is the value type a primitive of kind k travels as.
func kindType(k descriptor.Kind, width int) assembly.ValType {
	switch k {
	case descriptor.KindInt64, descriptor.KindUint64:
		return assembly.ValI64
	case descriptor.KindFloat:
		return assembly.ValF32
	case descriptor.KindDouble:
		return assembly.ValF64
	case descriptor.KindEnum:
		if width == 8 {
			return assembly.ValI64
		}
	}
	return i32
}

// valueType is the type a managed value produced by e travels as. Values
// converted by a marshaller travel as managed-value handles.
func valueType(e plan.Expr) (assembly.ValType, error) {
	switch v := e.(type) {
	case plan.Load:
		return kindType(v.Kind, v.Width), nil
	case plan.Deref:
		return kindType(v.Kind, 0), nil
	case plan.MaskedLoad, plan.Call:
		return i32, nil
	}
	return 0, errors.InvalidInput(errors.PhasePatch, fmt.Sprintf("no value type for %T", e))
}

func loadOp(k descriptor.Kind, width int) (byte, error) {
	if k == descriptor.KindEnum {
		k = widthKind(width)
	}
	switch k {
	case descriptor.KindInt8:
		return assembly.OpI32Load8S, nil
	case descriptor.KindUint8, descriptor.KindBool:
		return assembly.OpI32Load8U, nil
	case descriptor.KindInt16:
		return assembly.OpI32Load16S, nil
	case descriptor.KindUint16:
		return assembly.OpI32Load16U, nil
	case descriptor.KindInt32, descriptor.KindUint32:
		return assembly.OpI32Load, nil
	case descriptor.KindInt64, descriptor.KindUint64:
		return assembly.OpI64Load, nil
	case descriptor.KindFloat:
		return assembly.OpF32Load, nil
	case descriptor.KindDouble:
		return assembly.OpF64Load, nil
	}
	return 0, errors.UnsupportedType(errors.PhasePatch, k.String(), "no load instruction")
}

func storeOp(k descriptor.Kind, width int) (byte, error) {
	if k == descriptor.KindEnum {
		k = widthKind(width)
	}
	switch k {
	case descriptor.KindInt8, descriptor.KindUint8, descriptor.KindBool:
		return assembly.OpI32Store8, nil
	case descriptor.KindInt16, descriptor.KindUint16:
		return assembly.OpI32Store16, nil
	case descriptor.KindInt32, descriptor.KindUint32:
		return assembly.OpI32Store, nil
	case descriptor.KindInt64, descriptor.KindUint64:
		return assembly.OpI64Store, nil
	case descriptor.KindFloat:
		return assembly.OpF32Store, nil
	case descriptor.KindDouble:
		return assembly.OpF64Store, nil
	}
	return 0, errors.UnsupportedType(errors.PhasePatch, k.String(), "no store instruction")
}

// widthKind maps an enum's underlying width to the unsigned kind of that
// width.
func widthKind(width int) descriptor.Kind {
	switch width {
	case 1:
		return descriptor.KindUint8
	case 2:
		return descriptor.KindUint16
	case 4:
		return descriptor.KindUint32
	case 8:
		return descriptor.KindUint64
	}
	return descriptor.KindUnknown
}
