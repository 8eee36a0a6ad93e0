package patch

import (
	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/plan"
)

// Stub is an export the managed compiler leaves for one bound member.
type Stub struct {
	Name string
	Type assembly.FuncType
}

// Stubs lists the stubs Patch rewrites for plans, in plan order. A member
// whose value type cannot be lowered fails the whole listing.
func Stubs(plans []*plan.TypePlan) ([]Stub, error) {
	var out []Stub
	for _, tp := range plans {
		if tp.IsValueOnly() {
			continue
		}
		for i := range tp.Properties {
			pp := &tp.Properties[i]
			ft, err := getterType(pp)
			if err != nil {
				return nil, paramErr(err, tp.Name+"."+pp.Name)
			}
			out = append(out, Stub{Name: GetterExport(tp.Name, pp.Name), Type: ft})
			if pp.ReadOnly {
				continue
			}
			ft, _ = setterType(pp)
			out = append(out, Stub{Name: SetterExport(tp.Name, pp.Name), Type: ft})
		}
		for i := range tp.Functions {
			fp := &tp.Functions[i]
			ft, err := signature(fp)
			if err != nil {
				return nil, paramErr(err, tp.Name+"."+fp.Name)
			}
			out = append(out, Stub{Name: InvokerExport(tp.Name, fp.Name), Type: ft})
		}
	}
	return out, nil
}

func getterType(pp *plan.PropertyPlan) (assembly.FuncType, error) {
	vt, err := valueType(pp.Get)
	if err != nil {
		return assembly.FuncType{}, err
	}
	return assembly.FuncType{Params: []assembly.ValType{i32}, Results: []assembly.ValType{vt}}, nil
}

func setterType(pp *plan.PropertyPlan) (assembly.FuncType, error) {
	vt, err := valueType(pp.Get)
	if err != nil {
		return assembly.FuncType{}, err
	}
	return assembly.FuncType{Params: []assembly.ValType{i32, vt}}, nil
}
