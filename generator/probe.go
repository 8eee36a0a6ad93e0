package generator

import (
	"github.com/wippyai/native-bindgen/binding"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/emit/source"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
)

// ProbeType and ProbeMember name the synthetic owner a probed descriptor
// is planned on.
const (
	ProbeType   = "Probe"
	ProbeMember = "Value"
)

// Probe is the translation of a single native type name as a member of a
// class or struct.
type Probe struct {
	Type       *descriptor.Type
	Property   plan.PropertyPlan
	Candidates []string
	// Source is the rendered owner holding only the probed member.
	Source string
}

// Probe classifies typeName against the database, selects its translator
// and renders the accessor a member of that type would get.
func (g *Generator) Probe(typeName string, flags descriptor.Flags, owner plan.OwnerKind) (*Probe, error) {
	t, err := g.db.Classify(typeName, flags, 0)
	if err != nil {
		return nil, err
	}
	pr := &Probe{Type: t, Candidates: g.opts.Registry.Candidates(t)}

	ti := &metadata.TypeInfo{Name: ProbeType, Namespace: g.opts.Namespace, Category: descriptor.CategoryClass}
	if owner == plan.OwnerStruct {
		ti.Category = descriptor.CategoryStruct
	}
	pi := &metadata.PropertyInfo{Name: ProbeMember, TypeName: typeName, Type: t}

	p := &planner{reg: g.opts.Registry, diags: &errors.Diagnostics{}, namespace: g.opts.Namespace}
	pr.Property, err = p.property(ti, pi, owner)
	if err != nil {
		return pr, err
	}

	tp := &plan.TypePlan{
		Name:        ProbeType,
		NativeName:  ProbeType,
		Namespace:   g.opts.Namespace,
		HandleField: plan.TypeHandleField,
		Owner:       owner,
		Statics:     binding.TypeSteps(ProbeType, owner == plan.OwnerStruct),
		Properties:  []plan.PropertyPlan{pr.Property},
	}
	if owner == plan.OwnerStruct {
		tp.SizeField = plan.TypeSizeField
	}
	f, err := source.Render(tp)
	if err != nil {
		return pr, err
	}
	pr.Source = string(f.Content)
	return pr, nil
}
