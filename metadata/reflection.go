package metadata

import (
	"fmt"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
)

func (db *Database) NativeTypeHandle(name string) (bindgen.Handle, error) {
	t, ok := db.byName[name]
	if !ok || t.External {
		return 0, errors.NotFound(errors.PhaseBind, "type", name)
	}
	return t.Handle, nil
}

// NativeFunctionHandle looks name up on typ and then on its super types.
func (db *Database) NativeFunctionHandle(typ bindgen.Handle, name string) (bindgen.Handle, error) {
	t, err := db.typeAt(typ)
	if err != nil {
		return 0, err
	}
	if fn := findFunction(t, name); fn != nil {
		return fn.Handle, nil
	}
	return 0, errors.NotFound(errors.PhaseBind, "function", t.Name+"."+name)
}

// NativePropertyHandle accepts a type handle, searching super types too,
// or a function handle, searching its parameters and return value.
func (db *Database) NativePropertyHandle(owner bindgen.Handle, name string) (bindgen.Handle, error) {
	n, ok := db.node(owner)
	switch {
	case !ok:
	case n.fn != nil:
		for _, p := range n.fn.Params {
			if p.Name == name {
				return p.Handle, nil
			}
		}
		if n.fn.Return != nil && n.fn.Return.Name == name {
			return n.fn.Return.Handle, nil
		}
		return 0, errors.NotFound(errors.PhaseBind, "parameter", n.fn.Name+"."+name)
	case n.typ != nil:
		for t := n.typ; t != nil; t = t.super {
			for _, p := range t.Properties {
				if p.Name == name {
					return p.Handle, nil
				}
			}
		}
		return 0, errors.NotFound(errors.PhaseBind, "property", n.typ.Name+"."+name)
	}
	return 0, errors.NotFound(errors.PhaseBind, "owner handle", fmt.Sprint(owner))
}

func (db *Database) PropertyOffset(property bindgen.Handle) (int32, error) {
	p, ok := db.Property(property)
	if !ok {
		return 0, errors.NotFound(errors.PhaseBind, "property handle", fmt.Sprint(property))
	}
	return p.Offset, nil
}

func (db *Database) PropertyOffsetByName(owner bindgen.Handle, name string) (int32, error) {
	h, err := db.NativePropertyHandle(owner, name)
	if err != nil {
		return 0, err
	}
	return db.PropertyOffset(h)
}

func (db *Database) FunctionParamsSize(fn bindgen.Handle) (int32, error) {
	f, ok := db.Function(fn)
	if !ok {
		return 0, errors.NotFound(errors.PhaseBind, "function handle", fmt.Sprint(fn))
	}
	return f.ParamsSize, nil
}

func (db *Database) StructNativeSize(typ bindgen.Handle) (int32, error) {
	t, err := db.typeAt(typ)
	if err != nil {
		return 0, err
	}
	if t.Struct == nil {
		return 0, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Symbol(t.Name).
			Detail("%s is a %s, not a struct", t.Name, t.Category).
			Build()
	}
	return int32(t.Struct.Size), nil
}

func (db *Database) BoolFieldMask(owner bindgen.Handle, name string) (uint8, error) {
	h, err := db.NativePropertyHandle(owner, name)
	if err != nil {
		return 0, err
	}
	p, _ := db.Property(h)
	if p.Mask == 0 {
		return 0, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Symbol(name).
			Detail("%s is not a bitfield", name).
			Build()
	}
	return p.Mask, nil
}

// InstanceFunctionHandle resolves name through the class registered for
// object, so the most derived override wins.
func (db *Database) InstanceFunctionHandle(object uint32, name string) (bindgen.Handle, error) {
	v, ok := db.instances.Load(object)
	if !ok {
		return 0, errors.NotFound(errors.PhaseBind, "instance", fmt.Sprintf("0x%x", object))
	}
	t := v.(*TypeInfo)
	if fn := findFunction(t, name); fn != nil {
		return fn.Handle, nil
	}
	return 0, errors.NotFound(errors.PhaseBind, "function", t.Name+"."+name)
}

func (db *Database) typeAt(h bindgen.Handle) (*TypeInfo, error) {
	n, ok := db.node(h)
	if !ok || n.typ == nil {
		return nil, errors.NotFound(errors.PhaseBind, "type handle", fmt.Sprint(h))
	}
	return n.typ, nil
}

func findFunction(t *TypeInfo, name string) *FunctionInfo {
	for ; t != nil; t = t.super {
		for _, fn := range t.Functions {
			if fn.Name == name {
				return fn
			}
		}
	}
	return nil
}
