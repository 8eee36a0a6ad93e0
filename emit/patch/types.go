package patch

import (
	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

// patchType installs the binder of tp and rewrites its member stubs. A
// type whose binding program cannot be lowered is skipped entirely.
func (p *patcher) patchType(tp *plan.TypePlan) (uint32, bool) {
	t := &typeScope{fields: map[string]uint32{}, codecs: map[string]string{}}
	steps := p.program(tp, t)
	for _, s := range steps {
		switch v := s.static.(type) {
		case plan.Resolve:
			if v.Cached {
				t.fields[v.Field] = p.newGlobal()
			}
		case plan.CellInit:
			t.fields[v.Field] = p.newGlobal()
		}
	}

	binder, err := p.binder(tp, t, steps)
	if err != nil {
		p.fail(tp.Name, err)
		return 0, false
	}

	for i := range tp.Properties {
		pp := &tp.Properties[i]
		if err := p.getter(tp, t, pp); err != nil {
			p.fail(GetterExport(tp.Name, pp.Name), err)
		}
		if pp.ReadOnly {
			continue
		}
		if err := p.setter(tp, t, pp); err != nil {
			p.fail(SetterExport(tp.Name, pp.Name), err)
		}
	}
	for i := range tp.Functions {
		fp := &tp.Functions[i]
		if err := p.invoker(tp, t, fp); err != nil {
			p.fail(InvokerExport(tp.Name, fp.Name), err)
		}
	}
	return binder, true
}

// program is the type's resolution program with a cell appended for every
// member converted by a static marshaller. The host builds those cells from
// the member's property handle like any composite cell.
func (p *patcher) program(tp *plan.TypePlan, t *typeScope) []step {
	var steps []step
	declared := map[string]bool{}
	add := func(owner plan.OwnerKind, statics []plan.Static) {
		for _, s := range statics {
			steps = append(steps, step{static: s, owner: owner})
			if r, ok := s.(plan.Resolve); ok {
				declared[r.Field] = true
			}
		}
	}
	codec := func(owner plan.OwnerKind, member, ownerField, nativeName string, nodes ...any) {
		marshaller := staticMarshaller(nodes...)
		if marshaller == "" {
			return
		}
		prop := plan.PropertyField(member)
		if !declared[prop] {
			add(owner, []plan.Static{plan.Resolve{
				Field: prop, Owner: ownerField, Name: nativeName,
				Query: plan.QueryPropertyHandle, Cached: true,
			}})
		}
		field := member + "_Codec"
		add(owner, []plan.Static{plan.CellInit{Field: field, Marshaller: marshaller, Property: prop}})
		t.codecs[member] = field
	}

	add(tp.Owner, tp.Statics)
	for _, pp := range tp.Properties {
		add(tp.Owner, pp.Statics)
		codec(tp.Owner, pp.Name, plan.TypeHandleField, pp.Name, pp.Get, pp.Set)
	}
	for _, fp := range tp.Functions {
		add(plan.OwnerFunction, fp.Statics)
		params := fp.Params
		if fp.Return != nil {
			params = append(params[:len(params):len(params)], *fp.Return)
		}
		for _, pp := range params {
			add(plan.OwnerFunction, pp.Statics)
			nodes := []any{pp.FromNative, pp.ToNative, pp.WriteBack}
			for _, c := range pp.Cleanup {
				nodes = append(nodes, c)
			}
			codec(plan.OwnerFunction, plan.ParamMember(fp.Name, pp.Name), fp.HandleField, pp.Name, nodes...)
		}
	}
	return steps
}

func staticMarshaller(nodes ...any) string {
	for _, n := range nodes {
		var found string
		switch v := n.(type) {
		case plan.Call:
			if v.Static != "" {
				return v.Static
			}
			if v.Value != nil {
				found = staticMarshaller(v.Value)
			}
		case plan.Eval:
			found = staticMarshaller(v.Call)
		case plan.Store:
			found = staticMarshaller(v.Value)
		case plan.StoreIndirect:
			found = staticMarshaller(v.Value)
		}
		if found != "" {
			return found
		}
	}
	return ""
}

// binder builds the type's static initialiser. It runs the program once;
// a guard global makes later calls no-ops.
func (p *patcher) binder(tp *plan.TypePlan, t *typeScope, steps []step) (uint32, error) {
	name := BinderExport(tp.Name)
	l := p.lowerer(t, name, 0)
	guard := p.newGlobal()
	l.globalGet(guard)
	l.block(assembly.OpIf)
	l.op(assembly.OpReturn)
	l.op(assembly.OpEnd)
	l.i32(1)
	l.globalSet(guard)
	for _, s := range steps {
		if err := l.static(s); err != nil {
			return 0, err
		}
	}
	fb := l.finish()

	idx, found, err := p.stub(name, assembly.FuncType{})
	if err != nil {
		return 0, err
	}
	if found {
		p.replace(idx, name, fb)
	} else {
		idx = p.m.AddFunc(assembly.FuncType{}, fb)
		p.m.AddExport(assembly.Export{Name: name, Kind: assembly.KindFunc, Idx: idx})
	}
	p.res.Binders = append(p.res.Binders, name)
	return idx, nil
}

// objectBases maps the buffers a class or struct accessor addresses to
// its first parameter.
func objectBases(l *lowerer) {
	l.bases[plan.BaseObject] = 0
	l.bases[plan.BaseStruct] = 0
}

func (p *patcher) getter(tp *plan.TypePlan, t *typeScope, pp *plan.PropertyPlan) error {
	name := GetterExport(tp.Name, pp.Name)
	ft, err := getterType(pp)
	if err != nil {
		return err
	}
	idx, found, err := p.stub(name, ft)
	if err != nil || !found {
		p.unbound(name, found)
		return err
	}
	l := p.lowerer(t, name, 1)
	objectBases(l)
	l.member(pp.Name)
	if err := l.expr(pp.Get); err != nil {
		return err
	}
	p.replace(idx, name, l.finish())
	return nil
}

func (p *patcher) setter(tp *plan.TypePlan, t *typeScope, pp *plan.PropertyPlan) error {
	name := SetterExport(tp.Name, pp.Name)
	ft, err := setterType(pp)
	if err != nil {
		return err
	}
	idx, found, err := p.stub(name, ft)
	if err != nil || !found {
		p.unbound(name, found)
		return err
	}
	l := p.lowerer(t, name, 2)
	objectBases(l)
	l.values["value"] = 1
	l.values[pp.Name] = 1
	l.member(pp.Name)
	if err := l.stmt(pp.Set); err != nil {
		return err
	}
	p.replace(idx, name, l.finish())
	return nil
}

func (p *patcher) unbound(name string, found bool) {
	if !found {
		p.res.Unbound = append(p.res.Unbound, name)
	}
}

// signature is the stub type of an invoker: the object, then every
// parameter by value or, for out and ref, by pointer.
func signature(fp *plan.FunctionPlan) (assembly.FuncType, error) {
	ft := assembly.FuncType{Params: []assembly.ValType{i32}}
	for _, pp := range fp.Params {
		if pp.Direction == plan.Out || pp.Direction == plan.Ref {
			ft.Params = append(ft.Params, i32)
			continue
		}
		vt, err := valueType(pp.FromNative)
		if err != nil {
			return ft, err
		}
		ft.Params = append(ft.Params, vt)
	}
	if fp.Return != nil {
		vt, err := valueType(fp.Return.FromNative)
		if err != nil {
			return ft, err
		}
		ft.Results = []assembly.ValType{vt}
	}
	return ft, nil
}

// invoker lowers a function call: claim a zeroed parameter and return
// buffer from the shadow stack, marshal in and ref parameters, invoke,
// write back out and ref parameters, read the result, run cleanups and
// release the buffer.
func (p *patcher) invoker(tp *plan.TypePlan, t *typeScope, fp *plan.FunctionPlan) error {
	name := InvokerExport(tp.Name, fp.Name)
	ft, err := signature(fp)
	if err != nil {
		return err
	}
	idx, found, err := p.stub(name, ft)
	if err != nil || !found {
		p.unbound(name, found)
		return err
	}

	l := p.lowerer(t, name, uint32(len(ft.Params)))
	for i, pp := range fp.Params {
		l.values[pp.Name] = uint32(i + 1)
	}
	pbuf, rbuf, size := l.local(i32), l.local(i32), l.local(i32)
	l.bases[plan.BaseParams] = pbuf
	l.bases[plan.BaseReturn] = rbuf
	retSize := int32(alignUp(fp.ReturnSize, 8))

	sizeField, err := l.global(fp.SizeField)
	if err != nil {
		return err
	}
	l.globalGet(sizeField)
	l.i32(7)
	l.op(assembly.OpI32Add)
	l.i32(-8)
	l.op(assembly.OpI32And)
	l.i32(retSize)
	l.op(assembly.OpI32Add)
	l.set(size)

	l.globalGet(p.sp)
	l.get(size)
	l.op(assembly.OpI32Sub)
	l.tee(pbuf)
	l.globalGet(p.limit)
	l.op(assembly.OpI32LtU)
	l.block(assembly.OpIf)
	l.op(assembly.OpUnreachable)
	l.op(assembly.OpEnd)
	l.get(pbuf)
	l.globalSet(p.sp)

	if retSize > 0 {
		l.get(pbuf)
		l.get(size)
		l.op(assembly.OpI32Add)
		l.i32(retSize)
		l.op(assembly.OpI32Sub)
		l.set(rbuf)
	}

	l.get(pbuf)
	l.i32(0)
	l.get(size)
	l.imm(assembly.OpPrefixMisc, assembly.MiscImm{SubOp: assembly.MiscMemoryFill, Operands: []uint32{0}})

	for _, pp := range fp.Params {
		if pp.ToNative == nil {
			continue
		}
		l.member(plan.ParamMember(fp.Name, pp.Name))
		ptr := l.values[pp.Name]
		if pp.Direction == plan.Ref {
			if err := l.deref(pp, ptr); err != nil {
				return paramErr(err, pp.Name)
			}
		}
		if err := l.stmt(pp.ToNative); err != nil {
			return paramErr(err, pp.Name)
		}
		l.values[pp.Name] = ptr
	}

	l.get(0)
	if fp.Replicated {
		l.get(0)
		l.name(fp.Name)
		l.callImport(ImportInstanceFunction)
	} else {
		h, err := l.global(fp.HandleField)
		if err != nil {
			return err
		}
		l.globalGet(h)
	}
	l.get(pbuf)
	l.get(rbuf)
	l.callImport(ImportInvoke)

	for _, pp := range fp.Params {
		if pp.WriteBack == nil {
			continue
		}
		l.member(plan.ParamMember(fp.Name, pp.Name))
		if err := l.stmt(pp.WriteBack); err != nil {
			return paramErr(err, pp.Name)
		}
	}

	var result uint32
	if fp.Return != nil {
		result = l.local(ft.Results[0])
		l.member(plan.ParamMember(fp.Name, fp.Return.Name))
		if err := l.expr(fp.Return.FromNative); err != nil {
			return paramErr(err, fp.Return.Name)
		}
		l.set(result)
	}

	cleanup := fp.Params
	if fp.Return != nil {
		cleanup = append(cleanup[:len(cleanup):len(cleanup)], *fp.Return)
	}
	for _, pp := range cleanup {
		l.member(plan.ParamMember(fp.Name, pp.Name))
		for _, c := range pp.Cleanup {
			if err := l.stmt(c); err != nil {
				return paramErr(err, pp.Name)
			}
		}
	}

	l.get(pbuf)
	l.get(size)
	l.op(assembly.OpI32Add)
	l.globalSet(p.sp)
	if fp.Return != nil {
		l.get(result)
	}
	p.replace(idx, name, l.finish())
	return nil
}

func paramErr(err error, name string) error {
	if e, ok := err.(*errors.Error); ok {
		c := *e
		c.Path = append([]string{name}, e.Path...)
		return &c
	}
	return err
}

// deref loads a ref parameter's current value through its pointer, the
// same width its write-back stores, and binds the name to it.
func (l *lowerer) deref(pp plan.ParamPlan, ptr uint32) error {
	wb, ok := pp.WriteBack.(plan.StoreIndirect)
	if !ok {
		return l.fail("ref parameter %s has no write-back", pp.Name)
	}
	op := assembly.OpI32Load
	if !wb.Object {
		var err error
		if op, err = loadOp(wb.Kind, wb.Width); err != nil {
			return err
		}
	}
	vt, err := valueType(pp.FromNative)
	if err != nil {
		return err
	}
	v := l.local(vt)
	l.get(ptr)
	l.mem(op)
	l.set(v)
	l.values[pp.Name] = v
	return nil
}
