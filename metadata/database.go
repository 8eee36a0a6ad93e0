package metadata

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
)

// ReturnName is the member name of a function's return value.
const ReturnName = "ReturnValue"

// TypeInfo is an ingested native type.
type TypeInfo struct {
	Struct    *descriptor.StructInfo
	Enum      *descriptor.EnumInfo
	Signature *descriptor.Signature
	// Err is set when the type itself is malformed, e.g. a struct marked
	// blittable with a non-blittable field.
	Err        error
	super      *TypeInfo
	Name       string
	Namespace  string
	Super      string
	Location   string
	Properties []*PropertyInfo
	Functions  []*FunctionInfo
	Flags      descriptor.Flags
	Handle     bindgen.Handle
	Category   descriptor.Category
	External   bool
}

// IsStruct reports whether the type is a value type.
func (t *TypeInfo) IsStruct() bool { return t.Category == descriptor.CategoryStruct }

// PropertyInfo is a property, struct field, parameter or return value.
type PropertyInfo struct {
	Type *descriptor.Type
	// Owner is the declaring type of a field or property; Function is the
	// function owning a parameter or return value. Exactly one is set for
	// members reachable through a handle.
	Owner    *TypeInfo
	Function *FunctionInfo
	// Err is set when the declared type could not be classified. The
	// member is then skipped with a diagnostic; its siblings are not.
	Err      error
	Name     string
	TypeName string
	Location string
	Handle   bindgen.Handle
	Offset   int32
	Mask     uint8
}

// FunctionInfo is a reflected function.
type FunctionInfo struct {
	Owner      *TypeInfo
	Return     *PropertyInfo
	Name       string
	Location   string
	Params     []*PropertyInfo
	Flags      descriptor.Flags
	Handle     bindgen.Handle
	ParamsSize int32
}

type node struct {
	typ  *TypeInfo
	fn   *FunctionInfo
	prop *PropertyInfo
}

// Database is the ingested reflection metadata. It implements
// bindgen.Reflection with sequential handles and is immutable after
// construction except for the live-instance registry.
type Database struct {
	byName    map[string]*TypeInfo
	types     []*TypeInfo
	nodes     []node
	instances sync.Map // uint32 -> *TypeInfo
}

var _ bindgen.Reflection = (*Database)(nil)

// LoadFile reads a YAML or JSON reflection dump from path.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIngest, errors.KindNotFound, err, "open "+path)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML or JSON reflection dump.
func Load(r io.Reader) (*Database, error) {
	var d Dump
	if err := yaml.NewDecoder(r).Decode(&d); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseIngest, errors.KindInvalidData, err, "decode reflection dump")
	}
	return New(&d)
}

// New builds a database from a decoded dump.
func New(d *Dump) (*Database, error) {
	db := &Database{byName: make(map[string]*TypeInfo, len(d.Types))}

	// Types are registered first so that member types can refer to any
	// type in the dump regardless of order.
	for i := range d.Types {
		if err := db.addType(&d.Types[i]); err != nil {
			return nil, err
		}
	}
	for _, t := range db.types {
		if t.Super == "" {
			continue
		}
		s, ok := db.byName[t.Super]
		if !ok {
			return nil, errors.New(errors.PhaseIngest, errors.KindNotFound).
				Symbol(t.Name).Location(t.Location).
				Detail("super type %s is not in the dump", t.Super).
				Build()
		}
		t.super = s
	}

	for i := range d.Types {
		def := &d.Types[i]
		if db.byName[def.Name].IsStruct() {
			if err := db.addFields(def); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range db.types {
		if t.Struct != nil {
			fixAlign(t.Struct, make(map[*descriptor.StructInfo]bool))
		}
	}
	for i := range d.Types {
		def := &d.Types[i]
		t := db.byName[def.Name]
		switch t.Category {
		case descriptor.CategoryDelegate, descriptor.CategoryMulticastDelegate:
			if err := db.addSignature(t, def); err != nil {
				return nil, err
			}
		case descriptor.CategoryClass, descriptor.CategoryInterface:
			if err := db.addMembers(t, def); err != nil {
				return nil, err
			}
		}
	}

	for _, t := range db.types {
		if t.Struct == nil {
			continue
		}
		st := descriptor.New(descriptor.KindStruct, t.Name)
		st.Struct = t.Struct
		if err := st.VerifyBlittable(); err != nil {
			t.Err = err
		}
	}
	return db, nil
}

func (db *Database) handle() bindgen.Handle {
	db.nodes = append(db.nodes, node{})
	return bindgen.Handle(len(db.nodes))
}

func (db *Database) set(h bindgen.Handle, n node) { db.nodes[h-1] = n }

func (db *Database) addType(def *TypeDef) error {
	if def.Name == "" {
		return errors.InvalidInput(errors.PhaseIngest, "type without a name")
	}
	if _, dup := db.byName[def.Name]; dup {
		return errors.New(errors.PhaseIngest, errors.KindInvalidInput).
			Symbol(def.Name).Location(def.Location).
			Detail("duplicate type").
			Build()
	}
	cat, ok := descriptor.ParseCategory(def.Kind)
	if !ok || cat == descriptor.CategoryNone || cat == descriptor.CategoryPrimitive || cat == descriptor.CategoryPointer {
		return errors.New(errors.PhaseIngest, errors.KindInvalidInput).
			Symbol(def.Name).Location(def.Location).
			Detail("unknown type kind %q", def.Kind).
			Build()
	}
	flags, err := parseFlags(def.Flags)
	if err != nil {
		return withSymbol(err, def.Name, def.Location)
	}

	t := &TypeInfo{
		Name:      def.Name,
		Namespace: def.Namespace,
		Super:     def.Super,
		Location:  def.Location,
		Category:  cat,
		Flags:     flags,
	}
	switch cat {
	case descriptor.CategoryStruct:
		t.Struct = &descriptor.StructInfo{Name: def.Name, Size: def.Size, Align: def.Align, Blittable: def.Blittable}
	case descriptor.CategoryEnum:
		width := def.Width
		if width == 0 {
			width = 1
		}
		t.Enum = &descriptor.EnumInfo{Name: def.Name, Width: width}
		for _, v := range def.Values {
			t.Enum.Values = append(t.Enum.Values, descriptor.EnumValue{Name: v.Name, Value: v.Value})
		}
	case descriptor.CategoryDelegate, descriptor.CategoryMulticastDelegate:
		t.Signature = &descriptor.Signature{Name: def.Name}
	}

	t.Handle = db.handle()
	db.set(t.Handle, node{typ: t})
	db.byName[t.Name] = t
	db.types = append(db.types, t)
	return nil
}

func (db *Database) addFields(def *TypeDef) error {
	t := db.byName[def.Name]
	for _, pd := range def.Properties {
		p, err := db.property(pd)
		if err != nil {
			return withSymbol(err, def.Name+"."+pd.Name, pd.Location)
		}
		p.Owner = t
		t.Properties = append(t.Properties, p)
		if p.Err == nil {
			t.Struct.Fields = append(t.Struct.Fields, descriptor.Field{Type: p.Type, Name: p.Name, Offset: uint32(p.Offset)})
		}
	}
	return nil
}

func (db *Database) addSignature(t *TypeInfo, def *TypeDef) error {
	for _, pd := range def.Params {
		p, err := db.property(pd)
		if err != nil {
			return withSymbol(err, def.Name+"."+pd.Name, pd.Location)
		}
		if p.Err != nil {
			t.Err = p.Err
			continue
		}
		t.Signature.Params = append(t.Signature.Params, descriptor.Param{Type: p.Type, Name: p.Name})
	}
	if def.Return != "" && def.Return != "void" {
		rt, err := db.Classify(def.Return, descriptor.FlagReturn, 0)
		if err != nil {
			t.Err = err
		}
		t.Signature.Return = rt
	}
	return nil
}

func (db *Database) addMembers(t *TypeInfo, def *TypeDef) error {
	for _, pd := range def.Properties {
		p, err := db.property(pd)
		if err != nil {
			return withSymbol(err, def.Name+"."+pd.Name, pd.Location)
		}
		p.Owner = t
		t.Properties = append(t.Properties, p)
	}
	for i := range def.Functions {
		fd := &def.Functions[i]
		fn, err := db.function(t, fd)
		if err != nil {
			return withSymbol(err, def.Name+"."+fd.Name, fd.Location)
		}
		t.Functions = append(t.Functions, fn)
	}
	return nil
}

func (db *Database) function(owner *TypeInfo, fd *FunctionDef) (*FunctionInfo, error) {
	flags, err := parseFlags(fd.Flags)
	if err != nil {
		return nil, err
	}
	fn := &FunctionInfo{Owner: owner, Name: fd.Name, Location: fd.Location, Flags: flags}
	fn.Handle = db.handle()
	db.set(fn.Handle, node{fn: fn})

	var end uint32
	for _, pd := range fd.Params {
		p, err := db.property(pd)
		if err != nil {
			return nil, err
		}
		p.Function = fn
		fn.Params = append(fn.Params, p)
		if p.Err == nil {
			if size, err := layout.Total(p.Type); err == nil && uint32(p.Offset)+size > end {
				end = uint32(p.Offset) + size
			}
		}
	}
	if fd.Return != "" && fd.Return != "void" {
		p, err := db.property(PropertyDef{Name: ReturnName, Type: fd.Return, Flags: []string{"return"}, Location: fd.Location})
		if err != nil {
			return nil, err
		}
		p.Function = fn
		fn.Return = p
	}

	fn.ParamsSize = fd.ParamsSize
	if fn.ParamsSize == 0 {
		fn.ParamsSize = int32(layout.AlignTo(end, 8))
	}
	return fn, nil
}

// property registers a member handle. Classification failures are kept on
// the member rather than returned.
func (db *Database) property(pd PropertyDef) (*PropertyInfo, error) {
	if pd.Name == "" {
		return nil, errors.InvalidInput(errors.PhaseIngest, "member without a name")
	}
	flags, err := parseFlags(pd.Flags)
	if err != nil {
		return nil, err
	}
	if pd.Mask != 0 {
		flags |= descriptor.FlagBitfield
	}
	p := &PropertyInfo{
		Name:     pd.Name,
		TypeName: pd.Type,
		Location: pd.Location,
		Offset:   pd.Offset,
		Mask:     pd.Mask,
	}
	p.Type, p.Err = db.Classify(pd.Type, flags, pd.ArrayDim)
	p.Handle = db.handle()
	db.set(p.Handle, node{prop: p})
	return p, nil
}

// Classify parses a native type name and converts it to a descriptor,
// resolving user-defined names against the database.
func (db *Database) Classify(name string, flags descriptor.Flags, arrayDim int) (*descriptor.Type, error) {
	spec, err := descriptor.ParseSpec(name)
	if err != nil {
		return nil, err
	}
	spec.Flags |= flags
	spec.ArrayDim = arrayDim
	return descriptor.ClassifyWith(spec, db)
}

// LookupSpec implements descriptor.Lookup.
func (db *Database) LookupSpec(name string) (descriptor.Spec, bool) {
	t, ok := db.byName[name]
	if !ok {
		return descriptor.Spec{}, false
	}
	return descriptor.Spec{
		Name:      t.Name,
		Category:  t.Category,
		Struct:    t.Struct,
		Enum:      t.Enum,
		Signature: t.Signature,
	}, true
}

// Types returns every type in dump order, imported external types last.
func (db *Database) Types() []*TypeInfo { return db.types }

// Type returns the type named name.
func (db *Database) Type(name string) (*TypeInfo, bool) {
	t, ok := db.byName[name]
	return t, ok
}

// Property returns the member behind a property handle.
func (db *Database) Property(h bindgen.Handle) (*PropertyInfo, bool) {
	n, ok := db.node(h)
	return n.prop, ok && n.prop != nil
}

// Function returns the function behind a function handle.
func (db *Database) Function(h bindgen.Handle) (*FunctionInfo, bool) {
	n, ok := db.node(h)
	return n.fn, ok && n.fn != nil
}

// PropertyType returns the descriptor of a property handle.
func (db *Database) PropertyType(h bindgen.Handle) (*descriptor.Type, error) {
	p, ok := db.Property(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "property handle", fmt.Sprint(h))
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Type, nil
}

// RegisterInstance records the class of a live native object so that
// InstanceFunctionHandle can resolve overrides.
func (db *Database) RegisterInstance(object uint32, class string) error {
	t, ok := db.byName[class]
	if !ok {
		return errors.NotFound(errors.PhaseHost, "class", class)
	}
	db.instances.Store(object, t)
	return nil
}

func (db *Database) node(h bindgen.Handle) (node, bool) {
	if h == 0 || int(h) > len(db.nodes) {
		return node{}, false
	}
	return db.nodes[h-1], true
}

// fixAlign derives a missing struct alignment from its fields, nested
// structs first.
func fixAlign(s *descriptor.StructInfo, visiting map[*descriptor.StructInfo]bool) {
	if s.Align != 0 || visiting[s] {
		return
	}
	visiting[s] = true
	align := uint32(1)
	for _, f := range s.Fields {
		if f.Type.Kind == descriptor.KindStruct && f.Type.Struct != nil {
			fixAlign(f.Type.Struct, visiting)
		}
		if info, err := layout.Of(f.Type); err == nil && info.Align > align {
			align = info.Align
		}
	}
	s.Align = align
}

func parseFlags(names []string) (descriptor.Flags, error) {
	var out descriptor.Flags
	for _, n := range names {
		f, ok := descriptor.ParseFlag(n)
		if !ok {
			return 0, errors.InvalidInput(errors.PhaseIngest, fmt.Sprintf("unknown flag %q", n))
		}
		out |= f
	}
	return out, nil
}

func withSymbol(err error, symbol, location string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.At(symbol, location)
	}
	return err
}
