package patch

import (
	"fmt"

	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

// body accumulates the instructions and extra locals of one function.
type body struct {
	code    []assembly.Instruction
	locals  []assembly.ValType
	nparams uint32
}

func (b *body) op(opcode byte) {
	b.code = append(b.code, assembly.Instruction{Opcode: opcode})
}

func (b *body) imm(opcode byte, imm any) {
	b.code = append(b.code, assembly.Instruction{Opcode: opcode, Imm: imm})
}

func (b *body) i32(v int32)           { b.imm(assembly.OpI32Const, assembly.I32Imm{Value: v}) }
func (b *body) get(local uint32)      { b.imm(assembly.OpLocalGet, assembly.LocalImm{LocalIdx: local}) }
func (b *body) set(local uint32)      { b.imm(assembly.OpLocalSet, assembly.LocalImm{LocalIdx: local}) }
func (b *body) tee(local uint32)      { b.imm(assembly.OpLocalTee, assembly.LocalImm{LocalIdx: local}) }
func (b *body) globalGet(g uint32)    { b.imm(assembly.OpGlobalGet, assembly.GlobalImm{GlobalIdx: g}) }
func (b *body) globalSet(g uint32)    { b.imm(assembly.OpGlobalSet, assembly.GlobalImm{GlobalIdx: g}) }
func (b *body) call(fn uint32)        { b.imm(assembly.OpCall, assembly.CallImm{FuncIdx: fn}) }
func (b *body) mem(opcode byte)       { b.imm(opcode, assembly.MemoryImm{}) }
func (b *body) block(opcode byte)     { b.imm(opcode, assembly.BlockImm{Type: assembly.BlockTypeVoid}) }
func (b *body) local(vt assembly.ValType) uint32 {
	b.locals = append(b.locals, vt)
	return b.nparams + uint32(len(b.locals)) - 1
}

// finish terminates the body and run-length encodes its locals.
func (b *body) finish() assembly.FuncBody {
	b.op(assembly.OpEnd)
	var entries []assembly.LocalEntry
	for _, vt := range b.locals {
		if n := len(entries); n > 0 && entries[n-1].ValType == vt {
			entries[n-1].Count++
			continue
		}
		entries = append(entries, assembly.LocalEntry{Count: 1, ValType: vt})
	}
	return assembly.FuncBody{Locals: entries, Code: assembly.EncodeInstructions(b.code)}
}

// lowerer turns plan expressions and statements into instructions for one
// function of one type.
type lowerer struct {
	body
	p      *patcher
	t      *typeScope
	bases  map[string]uint32
	values map[string]uint32
	// temps hold uncached resolution results inside the binder.
	temps   map[string]uint32
	codec   string
	symbol  string
	scratch uint32
	hasTmp  bool
}

func (p *patcher) lowerer(t *typeScope, symbol string, nparams uint32) *lowerer {
	return &lowerer{
		body:   body{nparams: nparams},
		p:      p,
		t:      t,
		bases:  map[string]uint32{},
		values: map[string]uint32{},
		temps:  map[string]uint32{},
		symbol: symbol,
	}
}

// member switches the static-marshaller cell used by Call nodes.
func (l *lowerer) member(name string) {
	l.codec = l.t.codecs[name]
}

func (l *lowerer) fail(format string, args ...any) error {
	return errors.New(errors.PhasePatch, errors.KindInvalidInput).
		Symbol(l.symbol).
		Detail(format, args...).
		Build()
}

func (l *lowerer) tmp() uint32 {
	if !l.hasTmp {
		l.scratch = l.local(assembly.ValI32)
		l.hasTmp = true
	}
	return l.scratch
}

func (l *lowerer) global(field string) (uint32, error) {
	g, ok := l.t.fields[field]
	if !ok {
		return 0, l.fail("field %s is not resolved by the binding program", field)
	}
	return g, nil
}

// handle pushes a resolved handle, preferring a binder-local uncached one.
func (l *lowerer) handle(field string) error {
	if t, ok := l.temps[field]; ok {
		l.get(t)
		return nil
	}
	g, err := l.global(field)
	if err != nil {
		return err
	}
	l.globalGet(g)
	return nil
}

func (l *lowerer) name(s string) {
	ptr, n := l.p.names.ref(s)
	l.i32(ptr)
	l.i32(n)
}

func (l *lowerer) callImport(name string) {
	l.call(l.p.imports[name])
}

func (l *lowerer) addr(a plan.Address) error {
	base, ok := l.bases[a.Base]
	if !ok {
		return l.fail("buffer %s is not available here", a.Base)
	}
	l.get(base)
	if a.Mode == plan.ReturnBuffer || a.OffsetField == "" {
		return nil
	}
	g, err := l.global(a.OffsetField)
	if err != nil {
		return err
	}
	l.globalGet(g)
	l.op(assembly.OpI32Add)
	return nil
}

func (l *lowerer) normalizeBool() {
	l.i32(0)
	l.op(assembly.OpI32Ne)
}

func (l *lowerer) expr(e plan.Expr) error {
	switch v := e.(type) {
	case plan.Address:
		return l.addr(v)
	case plan.Value:
		local, ok := l.values[v.Name]
		if !ok {
			return l.fail("unknown value %s", v.Name)
		}
		l.get(local)
		return nil
	case plan.Load:
		op, err := loadOp(v.Kind, v.Width)
		if err != nil {
			return err
		}
		if err := l.addr(v.Addr); err != nil {
			return err
		}
		l.mem(op)
		if v.Kind == descriptor.KindBool {
			l.normalizeBool()
		}
		return nil
	case plan.MaskedLoad:
		if err := l.addr(v.Addr); err != nil {
			return err
		}
		l.mem(assembly.OpI32Load8U)
		g, err := l.global(v.MaskField)
		if err != nil {
			return err
		}
		l.globalGet(g)
		l.op(assembly.OpI32And)
		l.normalizeBool()
		return nil
	case plan.Deref:
		op, err := loadOp(v.Kind, 0)
		if err != nil {
			return err
		}
		if err := l.expr(v.Pointer); err != nil {
			return err
		}
		l.mem(op)
		return nil
	case plan.Call:
		if v.Method != "FromNative" {
			return l.fail("call %s produces no value", v.Method)
		}
		return l.marshal(v)
	}
	return l.fail("cannot lower expression %T", e)
}

func (l *lowerer) stmt(s plan.Stmt) error {
	switch v := s.(type) {
	case plan.Store:
		op, err := storeOp(v.Kind, v.Width)
		if err != nil {
			return err
		}
		if err := l.addr(v.Addr); err != nil {
			return err
		}
		if err := l.expr(v.Value); err != nil {
			return err
		}
		if v.Kind == descriptor.KindBool {
			l.normalizeBool()
		}
		l.mem(op)
		return nil
	case plan.MaskedStore:
		return l.maskedStore(v)
	case plan.Eval:
		return l.marshal(v.Call)
	case plan.StoreIndirect:
		op := assembly.OpI32Store
		if !v.Object {
			var err error
			if op, err = storeOp(v.Kind, v.Width); err != nil {
				return err
			}
		}
		if err := l.expr(v.Pointer); err != nil {
			return err
		}
		if err := l.expr(v.Value); err != nil {
			return err
		}
		if !v.Object && v.Kind == descriptor.KindBool {
			l.normalizeBool()
		}
		l.mem(op)
		return nil
	}
	return l.fail("cannot lower statement %T", s)
}

// maskedStore sets or clears the mask bit depending on the value:
// store8(a, value ? byte|mask : byte&^mask).
func (l *lowerer) maskedStore(v plan.MaskedStore) error {
	g, err := l.global(v.MaskField)
	if err != nil {
		return err
	}
	a := l.tmp()
	if err := l.addr(v.Addr); err != nil {
		return err
	}
	l.tee(a)

	l.get(a)
	l.mem(assembly.OpI32Load8U)
	l.globalGet(g)
	l.op(assembly.OpI32Or)

	l.get(a)
	l.mem(assembly.OpI32Load8U)
	l.globalGet(g)
	l.i32(-1)
	l.op(assembly.OpI32Xor)
	l.op(assembly.OpI32And)

	if err := l.expr(v.Value); err != nil {
		return err
	}
	l.op(assembly.OpSelect)
	l.mem(assembly.OpI32Store8)
	return nil
}

// marshal lowers a marshaller call to the cell imports. Static marshallers
// use the cell the binder created for the current member.
func (l *lowerer) marshal(c plan.Call) error {
	cell := c.Cell
	if cell == "" {
		if c.Static == "" || l.codec == "" {
			return l.fail("no cell for marshaller %q", c.Static)
		}
		cell = l.codec
	}
	g, err := l.global(cell)
	if err != nil {
		return err
	}
	l.globalGet(g)
	if err := l.addr(c.Addr); err != nil {
		return err
	}
	l.i32(int32(c.Index))

	switch c.Method {
	case "FromNative":
		l.callImport(ImportFromNative)
	case "ToNative":
		if c.Value == nil {
			return l.fail("ToNative without a value")
		}
		if err := l.expr(c.Value); err != nil {
			return err
		}
		l.callImport(ImportToNative)
	case "DestructInstance":
		l.callImport(ImportDestroy)
	default:
		return l.fail("unsupported marshaller method %s", c.Method)
	}
	return nil
}

// resolve lowers one reflection query of the binding program.
func (l *lowerer) resolve(r plan.Resolve) error {
	imp, ok := queryImports[r.Query]
	if !ok {
		return l.fail("unknown query %s", r.Query)
	}
	switch r.Query {
	case plan.QueryTypeHandle:
		l.name(r.Name)
	case plan.QueryFunctionHandle, plan.QueryPropertyHandle, plan.QueryOffsetByName, plan.QueryBoolMask:
		if err := l.handle(r.Owner); err != nil {
			return err
		}
		l.name(r.Name)
	default:
		if err := l.handle(r.Owner); err != nil {
			return err
		}
	}
	l.callImport(imp)

	if !r.Cached {
		t := l.local(assembly.ValI32)
		l.temps[r.Field] = t
		l.set(t)
		return nil
	}
	g, err := l.global(r.Field)
	if err != nil {
		return err
	}
	l.globalSet(g)
	return nil
}

func (l *lowerer) cellInit(c plan.CellInit, owner plan.OwnerKind) error {
	l.name(c.Marshaller)
	if err := l.handle(c.Property); err != nil {
		return err
	}
	l.i32(int32(owner))
	l.callImport(ImportCellNew)
	g, err := l.global(c.Field)
	if err != nil {
		return err
	}
	l.globalSet(g)
	return nil
}

func (l *lowerer) static(s step) error {
	switch v := s.static.(type) {
	case plan.Resolve:
		return l.resolve(v)
	case plan.CellInit:
		return l.cellInit(v, s.owner)
	}
	return l.fail("cannot lower static %T", s.static)
}

func sigString(ft assembly.FuncType) string {
	return fmt.Sprintf("%v -> %v", ft.Params, ft.Results)
}
