package assembly

// ValType is a value type byte.
type ValType byte

// String returns the text-format name.
func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	}
	return "unknown"
}

// Module is a decoded core module. Only MVP sections plus data count and
// bulk-memory segment forms are modelled.
type Module struct {
	Start          *uint32
	DataCount      *uint32
	Types          []FuncType
	Imports        []Import
	Funcs          []uint32
	Tables         []Table
	Memories       []Limits
	Globals        []Global
	Exports        []Export
	Elements       []Element
	Code           []FuncBody
	Data           []DataSegment
	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import is a single import entry.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// ImportDesc describes what is imported. Exactly one payload matches Kind.
type ImportDesc struct {
	Table   *Table
	Memory  *Limits
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// Limits bounds a memory or table.
type Limits struct {
	Max *uint64
	Min uint64
}

// Table is a table definition.
type Table struct {
	Limits   Limits
	ElemType ValType
}

// GlobalType is the type of a global.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-defined global. Init holds the constant expression
// including its trailing end opcode.
type Global struct {
	Init []byte
	Type GlobalType
}

// Export is a single export entry.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is a segment of function indices. Flags follows the binary
// encoding: 0 and 2 are active, 1 is passive, 3 is declarative.
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
	Flags    uint32
	TableIdx uint32
}

// FuncBody is a function's locals and instruction bytes. Code includes the
// final end opcode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is a data segment. Flags 1 marks a passive segment.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// CustomSection is preserved verbatim and re-emitted after the data
// section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs counts function imports.
func (m *Module) NumImportedFuncs() int {
	return m.numImported(KindFunc)
}

// NumImportedGlobals counts global imports.
func (m *Module) NumImportedGlobals() int {
	return m.numImported(KindGlobal)
}

func (m *Module) numImported(kind byte) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			n++
		}
	}
	return n
}

// NumFuncs is the size of the function index space.
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs() + len(m.Funcs)
}

// FuncTypeOf returns the signature of the function at idx in the function
// index space.
func (m *Module) FuncTypeOf(idx uint32) (FuncType, bool) {
	n := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == idx {
			return m.typeAt(imp.Desc.TypeIdx)
		}
		n++
	}
	local := idx - n
	if idx < n || int(local) >= len(m.Funcs) {
		return FuncType{}, false
	}
	return m.typeAt(m.Funcs[local])
}

func (m *Module) typeAt(idx uint32) (FuncType, bool) {
	if int(idx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[idx], true
}

// Body returns the code of a module-defined function by its index in the
// function index space.
func (m *Module) Body(idx uint32) (*FuncBody, bool) {
	n := uint32(m.NumImportedFuncs())
	if idx < n || int(idx-n) >= len(m.Code) {
		return nil, false
	}
	return &m.Code[idx-n], true
}

// AddType returns the index of ft, appending it when no identical type
// exists.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// AddFunc appends a module-defined function and returns its index.
func (m *Module) AddFunc(ft FuncType, body FuncBody) uint32 {
	m.Funcs = append(m.Funcs, m.AddType(ft))
	m.Code = append(m.Code, body)
	return uint32(m.NumFuncs() - 1)
}

// AddGlobal appends a module-defined global and returns its index.
func (m *Module) AddGlobal(g Global) uint32 {
	m.Globals = append(m.Globals, g)
	return uint32(m.NumImportedGlobals() + len(m.Globals) - 1)
}

// Export looks up an export by name.
func (m *Module) Export(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// AddExport appends an export, replacing one with the same name.
func (m *Module) AddExport(e Export) {
	for i := range m.Exports {
		if m.Exports[i].Name == e.Name {
			m.Exports[i] = e
			return
		}
	}
	m.Exports = append(m.Exports, e)
}

// HasMemory reports whether the module defines or imports a memory.
func (m *Module) HasMemory() bool {
	if len(m.Memories) > 0 {
		return true
	}
	return m.numImported(KindMemory) > 0
}

// ConstI32 encodes an i32.const initializer.
func ConstI32(v int32) []byte {
	return EncodeInstructions([]Instruction{
		{Opcode: OpI32Const, Imm: I32Imm{Value: v}},
		{Opcode: OpEnd},
	})
}
