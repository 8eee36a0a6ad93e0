package generator

import (
	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/binding"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
	"github.com/wippyai/native-bindgen/translator"
)

// planner builds the plan of one type. Members are planned sequentially in
// declaration order so the resolution program is deterministic.
type planner struct {
	reg       *translator.Registry
	diags     *errors.Diagnostics
	namespace string
}

// typePlan returns nil when the type itself cannot be bound. Member
// failures are recorded and the member is left out of the plan.
func (p *planner) typePlan(ti *metadata.TypeInfo) *plan.TypePlan {
	if ti.Err != nil {
		p.fail(ti.Name, ti.Location, ti.Err)
		return nil
	}

	tp := &plan.TypePlan{
		Name:        ti.Name,
		NativeName:  ti.Name,
		Namespace:   ti.Namespace,
		HandleField: plan.TypeHandleField,
		Super:       ti.Super,
	}
	if tp.Namespace == "" {
		tp.Namespace = p.namespace
	}

	switch ti.Category {
	case descriptor.CategoryEnum:
		tp.Enum = ti.Enum
		return tp
	case descriptor.CategoryDelegate, descriptor.CategoryMulticastDelegate:
		sig, err := p.signature(ti)
		if err != nil {
			p.fail(ti.Name, ti.Location, err)
			return nil
		}
		tp.Delegate = sig
		tp.Multicast = ti.Category == descriptor.CategoryMulticastDelegate
		return tp
	case descriptor.CategoryStruct:
		tp.Owner = plan.OwnerStruct
		tp.SizeField = plan.TypeSizeField
		tp.Blittable = ti.Struct != nil && ti.Struct.Blittable
	}

	tp.Statics = binding.TypeSteps(ti.Name, tp.Owner == plan.OwnerStruct)
	for _, pi := range ti.Properties {
		pp, err := p.property(ti, pi, tp.Owner)
		if err != nil {
			p.fail(ti.Name+"."+pi.Name, pi.Location, err)
			continue
		}
		tp.Properties = append(tp.Properties, pp)
	}
	for _, fi := range ti.Functions {
		fp, err := p.function(ti, fi)
		if err != nil {
			p.fail(ti.Name+"."+fi.Name, fi.Location, err)
			continue
		}
		tp.Functions = append(tp.Functions, fp)
	}
	return tp
}

func (p *planner) fail(symbol, location string, err error) {
	if e, ok := err.(*errors.Error); ok {
		err = e.At(symbol, location)
	}
	p.diags.Add(errors.SeverityError, err)
	Logger().Debug("member skipped", zap.String("symbol", symbol), zap.Error(err))
}

func (p *planner) property(ti *metadata.TypeInfo, pi *metadata.PropertyInfo, owner plan.OwnerKind) (plan.PropertyPlan, error) {
	if pi.Err != nil {
		return plan.PropertyPlan{}, pi.Err
	}
	m, err := p.reg.Lookup(pi.Type)
	if err != nil {
		return plan.PropertyPlan{}, err
	}

	// Struct members are fields; ToNative writes the field itself.
	buf, value := plan.BaseObject, "value"
	if owner == plan.OwnerStruct {
		buf, value = plan.BaseStruct, pi.Name
	}
	ctx := &translator.Context{
		Match:      m,
		Member:     pi.Name,
		NativeName: pi.Name,
		OwnerField: plan.TypeHandleField,
		Addr:       plan.At(plan.Direct, buf, plan.OffsetField(pi.Name)),
		Owner:      owner,
	}
	statics := binding.Steps(binding.Request{
		Owner:               ti.Name,
		Member:              pi.Name,
		NativeName:          pi.Name,
		Kind:                binding.MemberProperty,
		Bitfield:            pi.Type.Flags.Has(descriptor.FlagBitfield),
		NeedsPropertyHandle: m.Composite(),
	})
	bound, err := m.Translator.StaticBinding(ctx)
	if err != nil {
		return plan.PropertyPlan{}, err
	}

	get, err := m.Translator.FromNative(ctx)
	if err != nil {
		return plan.PropertyPlan{}, err
	}
	set, err := m.Translator.ToNative(ctx, plan.Value{Name: value})
	if err != nil {
		return plan.PropertyPlan{}, err
	}

	return plan.PropertyPlan{
		Type:        pi.Type,
		Get:         get,
		Set:         set,
		Name:        pi.Name,
		Translator:  m.Translator.Name(),
		ManagedType: m.Translator.ManagedType(m, owner),
		Marshaller:  m.Translator.Marshaller(m, owner),
		OffsetField: plan.OffsetField(pi.Name),
		Statics:     append(statics, bound...),
		ReadOnly:    pi.Type.Flags.Has(descriptor.FlagConst),
	}, nil
}

func (p *planner) function(ti *metadata.TypeInfo, fi *metadata.FunctionInfo) (plan.FunctionPlan, error) {
	replicated := fi.Flags.Has(descriptor.FlagReplicated)
	fp := plan.FunctionPlan{
		Name:        fi.Name,
		HandleField: plan.FunctionField(fi.Name),
		SizeField:   plan.ParamsSizeField(fi.Name),
		Replicated:  replicated,
		Statics: binding.Steps(binding.Request{
			Owner:      ti.Name,
			Member:     fi.Name,
			NativeName: fi.Name,
			Kind:       binding.MemberFunction,
			Replicated: replicated,
		}),
	}

	for _, pi := range fi.Params {
		pp, err := p.param(ti, fi, pi, plan.At(plan.ParamBuffer, plan.BaseParams, plan.OffsetField(plan.ParamMember(fi.Name, pi.Name))))
		if err != nil {
			return plan.FunctionPlan{}, wrapParam(err, pi.Name)
		}
		fp.Params = append(fp.Params, pp)
	}

	if fi.Return != nil {
		rp, err := p.param(ti, fi, fi.Return, plan.At(plan.ReturnBuffer, plan.BaseReturn, ""))
		if err != nil {
			return plan.FunctionPlan{}, wrapParam(err, metadata.ReturnName)
		}
		size, err := layout.Total(fi.Return.Type)
		if err != nil {
			return plan.FunctionPlan{}, err
		}
		fp.Return = &rp
		fp.ReturnSize = size
	}
	return fp, nil
}

func (p *planner) param(ti *metadata.TypeInfo, fi *metadata.FunctionInfo, pi *metadata.PropertyInfo, addr plan.Address) (plan.ParamPlan, error) {
	if pi.Err != nil {
		return plan.ParamPlan{}, pi.Err
	}
	m, err := p.reg.Lookup(pi.Type)
	if err != nil {
		return plan.ParamPlan{}, err
	}

	member := plan.ParamMember(fi.Name, pi.Name)
	ctx := &translator.Context{
		Match:      m,
		Member:     member,
		NativeName: pi.Name,
		OwnerField: plan.FunctionField(fi.Name),
		Addr:       addr,
		Owner:      plan.OwnerFunction,
	}
	dir := plan.DirectionOf(pi.Type.Flags)

	// Return buffers are read at +0 and need no offset; composite returns
	// still need the property handle for their cell.
	var statics []plan.Static
	if dir != plan.Return || m.Composite() {
		statics = binding.Steps(binding.Request{
			Owner:               ti.Name,
			Member:              member,
			NativeName:          pi.Name,
			Function:            fi.Name,
			Kind:                binding.MemberParameter,
			NeedsPropertyHandle: m.Composite(),
		})
	}
	bound, err := m.Translator.StaticBinding(ctx)
	if err != nil {
		return plan.ParamPlan{}, err
	}

	pp := plan.ParamPlan{
		Type:        pi.Type,
		Name:        pi.Name,
		Translator:  m.Translator.Name(),
		ManagedType: m.Translator.ManagedType(m, plan.OwnerFunction),
		Marshaller:  m.Translator.Marshaller(m, plan.OwnerFunction),
		Statics:     append(statics, bound...),
		Direction:   dir,
	}
	if dir != plan.Return {
		pp.OffsetField = plan.OffsetField(member)
	}

	if pp.FromNative, err = m.Translator.FromNative(ctx); err != nil {
		return plan.ParamPlan{}, err
	}
	if dir == plan.In || dir == plan.Ref {
		if pp.ToNative, err = m.Translator.ToNative(ctx, plan.Value{Name: pi.Name}); err != nil {
			return plan.ParamPlan{}, err
		}
	}
	if dir == plan.Out || dir == plan.Ref {
		pp.WriteBack = writeBack(pi, pp.FromNative)
	}
	if pp.Cleanup, err = m.Translator.Cleanup(ctx); err != nil {
		return plan.ParamPlan{}, err
	}
	return pp, nil
}

// writeBack stores a converted out/ref value through the caller's pointer:
// numeric kinds by width, everything else through object indirection.
func writeBack(pi *metadata.PropertyInfo, value plan.Expr) plan.Stmt {
	k := pi.Type.Kind
	st := plan.StoreIndirect{Pointer: plan.Value{Name: pi.Name}, Value: value, Kind: k}
	switch {
	case k.IsNumeric() || k == descriptor.KindBool:
		st.Width = k.Width()
	case k == descriptor.KindEnum && pi.Type.Enum != nil:
		st.Width = pi.Type.Enum.Width
	default:
		st.Object = true
	}
	return st
}

// signature plans the invoke signature of a delegate type. Only managed
// types are needed; delegates are marshalled through their owner's cell.
func (p *planner) signature(ti *metadata.TypeInfo) (*plan.FunctionPlan, error) {
	fp := &plan.FunctionPlan{Name: "Invoke"}
	if ti.Signature == nil {
		return fp, nil
	}
	for _, prm := range ti.Signature.Params {
		m, err := p.reg.Lookup(prm.Type)
		if err != nil {
			return nil, wrapParam(err, prm.Name)
		}
		fp.Params = append(fp.Params, plan.ParamPlan{
			Type:        prm.Type,
			Name:        prm.Name,
			Translator:  m.Translator.Name(),
			ManagedType: m.Translator.ManagedType(m, plan.OwnerFunction),
			Direction:   plan.DirectionOf(prm.Type.Flags),
		})
	}
	if rt := ti.Signature.Return; rt != nil {
		m, err := p.reg.Lookup(rt)
		if err != nil {
			return nil, wrapParam(err, metadata.ReturnName)
		}
		fp.Return = &plan.ParamPlan{
			Type:        rt,
			Name:        metadata.ReturnName,
			Translator:  m.Translator.Name(),
			ManagedType: m.Translator.ManagedType(m, plan.OwnerFunction),
			Direction:   plan.Return,
		}
	}
	return fp, nil
}

func wrapParam(err error, name string) error {
	if e, ok := err.(*errors.Error); ok {
		c := *e
		c.Path = append([]string{name}, e.Path...)
		return &c
	}
	return err
}
