package binding

import (
	"github.com/wippyai/native-bindgen/plan"
)

// MemberKind selects which resolution program Steps produces.
type MemberKind uint8

const (
	MemberProperty MemberKind = iota
	MemberFunction
	MemberStructSize
	MemberParameter
)

func (k MemberKind) String() string {
	switch k {
	case MemberProperty:
		return "property"
	case MemberFunction:
		return "function"
	case MemberStructSize:
		return "struct_size"
	case MemberParameter:
		return "parameter"
	}
	return "unknown"
}

// Request describes one member to bind.
type Request struct {
	// Owner is the native name of the owning type.
	Owner string
	// Member is the field-naming key, e.g. "Health" or "Fire_Target".
	Member string
	// NativeName is the member's name in reflection metadata.
	NativeName string
	// Function is the native name of the function owning a parameter.
	Function string
	Kind     MemberKind

	Bitfield bool
	// Replicated marks a replicated function, or for a parameter the
	// function owning it.
	Replicated          bool
	NeedsPropertyHandle bool
}

// Symbol is the diagnostic name of the request.
func (r Request) Symbol() string {
	if r.Kind == MemberParameter {
		return r.Owner + "." + r.Function + "." + r.NativeName
	}
	if r.Member == "" {
		return r.Owner
	}
	return r.Owner + "." + r.Member
}

// TypeSteps is the type-level part of every program. Structs also resolve
// their native size.
func TypeSteps(owner string, structOwner bool) []plan.Static {
	steps := []plan.Static{plan.Resolve{
		Field:  plan.TypeHandleField,
		Name:   owner,
		Query:  plan.QueryTypeHandle,
		Cached: true,
	}}
	if structOwner {
		steps = append(steps, plan.Resolve{
			Field:  plan.TypeSizeField,
			Owner:  plan.TypeHandleField,
			Query:  plan.QueryStructSize,
			Cached: true,
		})
	}
	return steps
}

// Steps returns the member part of the resolution program in execution
// order. The owning type handle is expected in plan.TypeHandleField.
func Steps(req Request) []plan.Static {
	switch req.Kind {
	case MemberStructSize:
		return []plan.Static{plan.Resolve{
			Field:  plan.TypeSizeField,
			Owner:  plan.TypeHandleField,
			Query:  plan.QueryStructSize,
			Cached: true,
		}}

	case MemberFunction:
		// Replicated functions keep the type-snapshot handle local; the
		// invocation handle is re-resolved from the live instance.
		handle := plan.FunctionField(req.Member)
		return []plan.Static{
			plan.Resolve{
				Field:  handle,
				Owner:  plan.TypeHandleField,
				Name:   req.NativeName,
				Query:  plan.QueryFunctionHandle,
				Cached: !req.Replicated,
			},
			plan.Resolve{
				Field:  plan.ParamsSizeField(req.Member),
				Owner:  handle,
				Query:  plan.QueryParamsSize,
				Cached: true,
			},
		}

	case MemberParameter:
		return memberSteps(req, plan.FunctionField(req.Function))
	}
	return memberSteps(req, plan.TypeHandleField)
}

func memberSteps(req Request, owner string) []plan.Static {
	var steps []plan.Static
	if req.NeedsPropertyHandle {
		prop := plan.PropertyField(req.Member)
		steps = append(steps,
			plan.Resolve{
				Field:  prop,
				Owner:  owner,
				Name:   req.NativeName,
				Query:  plan.QueryPropertyHandle,
				Cached: true,
			},
			plan.Resolve{
				Field:  plan.OffsetField(req.Member),
				Owner:  prop,
				Query:  plan.QueryPropertyOffset,
				Cached: true,
			})
	} else {
		steps = append(steps, plan.Resolve{
			Field:  plan.OffsetField(req.Member),
			Owner:  owner,
			Name:   req.NativeName,
			Query:  plan.QueryOffsetByName,
			Cached: true,
		})
	}
	if req.Bitfield {
		steps = append(steps, plan.Resolve{
			Field:  plan.MaskField(req.Member),
			Owner:  owner,
			Name:   req.NativeName,
			Query:  plan.QueryBoolMask,
			Cached: true,
		})
	}
	return steps
}
