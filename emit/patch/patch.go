package patch

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

const pageSize = 65536

// DefaultStackSize is the shadow stack reserved for parameter buffers.
const DefaultStackSize = 64 * 1024

// Options configures Patch.
type Options struct {
	// StackSize is the shadow stack size in bytes.
	StackSize uint32
}

func (o Options) withDefaults() Options {
	if o.StackSize == 0 {
		o.StackSize = DefaultStackSize
	}
	return o
}

// Result is a patched assembly.
type Result struct {
	Diagnostics *errors.Diagnostics
	Binary      []byte
	// Patched lists the stub exports whose bodies were rewritten.
	Patched []string
	// Unbound lists planned members with no stub in the assembly.
	Unbound []string
	// Binders lists the static initialiser export of every bound type.
	Binders []string
}

// typeScope holds the globals of one type's cached statics.
type typeScope struct {
	fields map[string]uint32
	// codecs maps a member to the cell of its static marshaller.
	codecs map[string]string
}

// step is a static with the owner kind its cell is created for.
type step struct {
	static plan.Static
	owner  plan.OwnerKind
}

type patcher struct {
	m       *assembly.Module
	diags   *errors.Diagnostics
	names   *nameTable
	imports map[string]uint32
	res     *Result
	opts    Options
	sp      uint32
	limit   uint32
}

// Patch rewrites the stubs of bin so they perform the conversions planned
// in plans. A member whose stub cannot be rewritten is reported and left
// untouched; the run still produces a binary for every other member.
func Patch(ctx context.Context, bin []byte, plans []*plan.TypePlan, opts Options) (*Result, error) {
	m, err := assembly.Decode(bin)
	if err != nil {
		return nil, err
	}
	p := &patcher{
		m:     m,
		diags: &errors.Diagnostics{},
		opts:  opts.withDefaults(),
		res:   &Result{},
	}
	p.res.Diagnostics = p.diags

	base, err := p.reserveMemory()
	if err != nil {
		return nil, err
	}
	p.names = newNameTable(base)
	if err := p.addImports(); err != nil {
		return nil, err
	}
	p.sp = m.AddGlobal(assembly.Global{Type: assembly.GlobalType{ValType: i32, Mutable: true}})
	p.limit = m.AddGlobal(assembly.Global{Type: assembly.GlobalType{ValType: i32}})

	var binders []uint32
	for _, tp := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tp.IsValueOnly() {
			continue
		}
		if idx, ok := p.patchType(tp); ok {
			binders = append(binders, idx)
		}
	}

	p.chainStart(binders)
	if err := p.layout(base); err != nil {
		return nil, err
	}
	p.res.Binary = m.Encode()
	Logger().Info("assembly patched",
		zap.Int("stubs", len(p.res.Patched)),
		zap.Int("unbound", len(p.res.Unbound)),
		zap.Int("diagnostics", p.diags.Len()))
	return p.res, p.diags.Err()
}

// reserveMemory returns the address past the module's initial memory,
// where the names segment and the shadow stack go.
func (p *patcher) reserveMemory() (uint32, error) {
	for _, imp := range p.m.Imports {
		if imp.Desc.Kind == assembly.KindMemory {
			return 0, errors.InvalidInput(errors.PhasePatch, "assemblies importing their memory are not supported")
		}
	}
	if len(p.m.Memories) == 0 {
		p.m.Memories = append(p.m.Memories, assembly.Limits{})
	}
	hasExport := false
	for _, e := range p.m.Exports {
		hasExport = hasExport || e.Kind == assembly.KindMemory
	}
	if !hasExport {
		p.m.AddExport(assembly.Export{Name: "memory", Kind: assembly.KindMemory})
	}
	return uint32(p.m.Memories[0].Min) * pageSize, nil
}

func (p *patcher) addImports() error {
	imports := make([]assembly.FuncImport, len(Imports))
	for i, imp := range Imports {
		imports[i] = assembly.FuncImport{Module: ImportModule, Name: imp.Name, Type: imp.Type}
	}
	first, err := p.m.AddFuncImports(imports...)
	if err != nil {
		return err
	}
	p.imports = make(map[string]uint32, len(Imports))
	for i, imp := range Imports {
		p.imports[imp.Name] = first + uint32(i)
	}
	return nil
}

// layout places the names segment and the shadow stack after base and
// grows the initial memory to cover them.
func (p *patcher) layout(base uint32) error {
	names := p.names.bytes()
	stackBase := alignUp(base+uint32(len(names)), 16)
	top := alignUp(stackBase+p.opts.StackSize, pageSize)
	pages := uint64((top - base) / pageSize)

	mem := &p.m.Memories[0]
	mem.Min += pages
	if mem.Max != nil && *mem.Max < mem.Min {
		return errors.InvalidInput(errors.PhasePatch,
			fmt.Sprintf("memory maximum %d pages is below the %d pages needed", *mem.Max, mem.Min))
	}

	p.global(p.sp).Init = assembly.ConstI32(int32(top))
	p.global(p.limit).Init = assembly.ConstI32(int32(stackBase))
	if len(names) > 0 {
		p.m.Data = append(p.m.Data, assembly.DataSegment{Offset: assembly.ConstI32(int32(base)), Init: names})
		if p.m.DataCount != nil {
			n := *p.m.DataCount + 1
			p.m.DataCount = &n
		}
	}
	return nil
}

func (p *patcher) global(idx uint32) *assembly.Global {
	return &p.m.Globals[idx-uint32(p.m.NumImportedGlobals())]
}

func (p *patcher) newGlobal() uint32 {
	return p.m.AddGlobal(assembly.Global{
		Type: assembly.GlobalType{ValType: i32, Mutable: true},
		Init: assembly.ConstI32(0),
	})
}

func (p *patcher) fail(symbol string, err error) {
	if e, ok := err.(*errors.Error); ok {
		err = e.At(symbol, "")
	}
	p.diags.Add(errors.SeverityError, err)
	Logger().Debug("stub skipped", zap.String("symbol", symbol), zap.Error(err))
}

// stub finds the module-defined function exported as name and checks its
// signature.
func (p *patcher) stub(name string, want assembly.FuncType) (uint32, bool, error) {
	e, ok := p.m.Export(name)
	if !ok || e.Kind != assembly.KindFunc {
		return 0, false, nil
	}
	if _, local := p.m.Body(e.Idx); !local {
		return 0, true, errors.New(errors.PhasePatch, errors.KindInvalidInput).
			Symbol(name).Detail("stub is an imported function").Build()
	}
	got, _ := p.m.FuncTypeOf(e.Idx)
	if !got.Equal(want) {
		return 0, true, errors.New(errors.PhasePatch, errors.KindTypeMismatch).
			Symbol(name).
			Detail("stub signature %s, want %s", sigString(got), sigString(want)).
			Build()
	}
	return e.Idx, true, nil
}

func (p *patcher) replace(idx uint32, name string, fb assembly.FuncBody) {
	b, _ := p.m.Body(idx)
	*b = fb
	p.res.Patched = append(p.res.Patched, name)
}

// chainStart runs every binder before the module's own start function.
func (p *patcher) chainStart(binders []uint32) {
	if len(binders) == 0 {
		return
	}
	b := &body{}
	for _, idx := range binders {
		b.call(idx)
	}
	if p.m.Start != nil {
		b.call(*p.m.Start)
	}
	idx := p.m.AddFunc(assembly.FuncType{}, b.finish())
	p.m.Start = &idx
}

// Verify compiles bin with wazero, which validates every function body.
func Verify(ctx context.Context, bin []byte) error {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "patched assembly does not validate")
	}
	return compiled.Close(ctx)
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// nameTable interns the strings the binding program passes to the host.
type nameTable struct {
	index map[string]int32
	data  []byte
	base  uint32
}

func newNameTable(base uint32) *nameTable {
	return &nameTable{base: base, index: map[string]int32{}}
}

func (n *nameTable) ref(s string) (ptr, length int32) {
	off, ok := n.index[s]
	if !ok {
		off = int32(len(n.data))
		n.index[s] = off
		n.data = append(n.data, s...)
	}
	return int32(n.base) + off, int32(len(s))
}

func (n *nameTable) bytes() []byte { return n.data }
