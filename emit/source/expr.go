package source

import (
	"fmt"
	"strings"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

var csNumerics = map[descriptor.Kind]string{
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

// underlying is the unsigned C# type of an enum of the given width.
func underlying(width int) string {
	switch width {
	case 2:
		return "ushort"
	case 4:
		return "uint"
	case 8:
		return "ulong"
	}
	return "byte"
}

// printer renders plan nodes as C# for one member. managed is the member's
// managed type, needed to cast enum loads.
type printer struct {
	managed string
	symbol  string
}

func (p printer) fail(node any) error {
	return errors.New(errors.PhaseEmit, errors.KindInvalidInput).
		Symbol(p.symbol).
		Detail("cannot render %T", node).
		Build()
}

func (p printer) addr(a plan.Address) string {
	if a.Mode == plan.ReturnBuffer || a.OffsetField == "" {
		return a.Base
	}
	return "(" + a.Base + " + " + a.OffsetField + ")"
}

func (p printer) expr(e plan.Expr) (string, error) {
	switch v := e.(type) {
	case plan.Address:
		return p.addr(v), nil
	case plan.Value:
		return v.Name, nil
	case plan.MethodRef:
		return v.Marshaller + "." + v.Method, nil
	case plan.Load:
		switch {
		case v.Kind == descriptor.KindBool:
			return "*(byte*)" + p.addr(v.Addr) + " != 0", nil
		case v.Kind == descriptor.KindEnum:
			return "(" + p.managed + ")(*(" + underlying(v.Width) + "*)" + p.addr(v.Addr) + ")", nil
		}
		t, ok := csNumerics[v.Kind]
		if !ok {
			return "", p.fail(v)
		}
		return "*(" + t + "*)" + p.addr(v.Addr), nil
	case plan.MaskedLoad:
		return "(*(byte*)" + p.addr(v.Addr) + " & " + v.MaskField + ") != 0", nil
	case plan.Deref:
		t, ok := csNumerics[v.Kind]
		if !ok {
			return "", p.fail(v)
		}
		ptr, err := p.expr(v.Pointer)
		if err != nil {
			return "", err
		}
		return "*(" + t + "*)" + ptr, nil
	case plan.Call:
		return p.call(v)
	}
	return "", p.fail(e)
}

func (p printer) call(c plan.Call) (string, error) {
	target := c.Static
	if c.Cell != "" {
		target = c.Cell
	}
	if target == "" {
		return "", p.fail(c)
	}
	args := []string{p.addr(c.Addr), fmt.Sprint(c.Index)}
	if c.Value != nil {
		v, err := p.expr(c.Value)
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}
	return target + "." + c.Method + "(" + strings.Join(args, ", ") + ")", nil
}

func (p printer) stmt(s plan.Stmt) (string, error) {
	switch v := s.(type) {
	case plan.Eval:
		c, err := p.call(v.Call)
		if err != nil {
			return "", err
		}
		return c + ";", nil
	case plan.Store:
		val, err := p.expr(v.Value)
		if err != nil {
			return "", err
		}
		switch {
		case v.Kind == descriptor.KindBool:
			return "*(byte*)" + p.addr(v.Addr) + " = (byte)(" + val + " ? 1 : 0);", nil
		case v.Kind == descriptor.KindEnum:
			t := underlying(v.Width)
			return "*(" + t + "*)" + p.addr(v.Addr) + " = (" + t + ")" + val + ";", nil
		}
		t, ok := csNumerics[v.Kind]
		if !ok {
			return "", p.fail(v)
		}
		return "*(" + t + "*)" + p.addr(v.Addr) + " = " + val + ";", nil
	case plan.MaskedStore:
		val, err := p.expr(v.Value)
		if err != nil {
			return "", err
		}
		return "BitfieldBoolMarshaller.ToNative(" + p.addr(v.Addr) + ", " + v.MaskField + ", " + val + ");", nil
	case plan.StoreIndirect:
		ptr, err := p.expr(v.Pointer)
		if err != nil {
			return "", err
		}
		val, err := p.expr(v.Value)
		if err != nil {
			return "", err
		}
		return ptr + " = " + val + ";", nil
	}
	return "", p.fail(s)
}

// static renders one step of the resolution program. Uncached results
// become locals of the static constructor.
func static(s plan.Static) (string, error) {
	switch v := s.(type) {
	case plan.Resolve:
		call, err := query(v)
		if err != nil {
			return "", err
		}
		if v.Cached {
			return v.Field + " = " + call + ";", nil
		}
		return fieldType(v) + " " + v.Field + " = " + call + ";", nil
	case plan.CellInit:
		args := []string{v.Property}
		p := printer{symbol: v.Field}
		for _, a := range v.Args {
			s, err := p.expr(a)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		return v.Field + " = new " + v.Marshaller + "(" + strings.Join(args, ", ") + ");", nil
	}
	return "", errors.InvalidInput(errors.PhaseEmit, fmt.Sprintf("cannot render static %T", s))
}

func query(r plan.Resolve) (string, error) {
	switch r.Query {
	case plan.QueryTypeHandle:
		return fmt.Sprintf("NativeReflection.GetNativeTypeHandle(%q)", r.Name), nil
	case plan.QueryFunctionHandle:
		return fmt.Sprintf("NativeReflection.GetNativeFunctionHandle(%s, %q)", r.Owner, r.Name), nil
	case plan.QueryPropertyHandle:
		return fmt.Sprintf("NativeReflection.GetNativePropertyHandle(%s, %q)", r.Owner, r.Name), nil
	case plan.QueryPropertyOffset:
		return fmt.Sprintf("NativeReflection.GetPropertyOffset(%s)", r.Owner), nil
	case plan.QueryOffsetByName:
		return fmt.Sprintf("NativeReflection.GetPropertyOffsetFromName(%s, %q)", r.Owner, r.Name), nil
	case plan.QueryParamsSize:
		return fmt.Sprintf("NativeReflection.GetFunctionParamsSize(%s)", r.Owner), nil
	case plan.QueryStructSize:
		return fmt.Sprintf("NativeReflection.GetNativeStructSize(%s)", r.Owner), nil
	case plan.QueryBoolMask:
		return fmt.Sprintf("NativeReflection.GetBoolPropertyFieldMask(%s, %q)", r.Owner, r.Name), nil
	}
	return "", errors.InvalidInput(errors.PhaseEmit, "unknown query "+r.Query.String())
}

func fieldType(s plan.Static) string {
	switch v := s.(type) {
	case plan.CellInit:
		return v.Marshaller
	case plan.Resolve:
		switch v.Query {
		case plan.QueryTypeHandle, plan.QueryFunctionHandle, plan.QueryPropertyHandle:
			return "IntPtr"
		case plan.QueryBoolMask:
			return "byte"
		}
	}
	return "int"
}
