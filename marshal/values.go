package marshal

import (
	"fmt"
	"reflect"
)

// Name is an interned native name with its numeric suffix.
type Name struct {
	Value  string
	Number uint32
}

func (n Name) String() string {
	if n.Number == 0 {
		return n.Value
	}
	return fmt.Sprintf("%s_%d", n.Value, n.Number-1)
}

// Text is localized display text.
type Text struct {
	Value string
	Flags uint32
}

// Struct is the managed form of a composite struct, keyed by field name.
type Struct map[string]any

// Object is the managed proxy of a native object. Proxies are unique per
// native address within an ObjectTable.
type Object struct {
	Class   string
	Address uint64
}

// WeakRef is a weak object reference: object index plus serial number.
type WeakRef struct {
	Index  int32
	Serial int32
}

// IsNull reports whether the reference points nowhere.
func (w WeakRef) IsNull() bool {
	return w.Index == 0 && w.Serial == 0
}

// SoftRef is a lazily loaded object reference identified by path.
type SoftRef struct {
	Path string
	Weak WeakRef
	Tag  int32
}

// Interface is an object together with its interface vtable address.
type Interface struct {
	Object    *Object
	Interface uint64
}

// Delegate is a single-cast delegate bound to an object and function name.
type Delegate struct {
	Function Name
	Object   WeakRef
}

// IsBound reports whether the delegate has a target.
func (d Delegate) IsBound() bool {
	return !d.Object.IsNull() && d.Function.Value != ""
}

// Pair is one map entry.
type Pair struct {
	Key   any
	Value any
}

// Map is the copied, ordered form of a native map.
type Map []Pair

// Get returns the value stored under key.
func (m Map) Get(key any) (any, bool) {
	for _, p := range m {
		if equal(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

// Option is the managed form of an optional value.
type Option struct {
	Value any
	Valid bool
}

// Some returns a set optional.
func Some(v any) Option {
	return Option{Value: v, Valid: true}
}

// equal compares map keys. Integers compare by value whatever their Go
// width, so an int key finds an int32 entry.
func equal(a, b any) bool {
	if na, ma, ok := integer(a); ok {
		nb, mb, ok := integer(b)
		return ok && na == nb && ma == mb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// integer splits any Go integer into sign and magnitude.
func integer(v any) (neg bool, mag uint64, ok bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return true, uint64(-i), true
		}
		return false, uint64(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return false, rv.Uint(), true
	}
	return false, 0, false
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
