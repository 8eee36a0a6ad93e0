package translator

import (
	"github.com/wippyai/native-bindgen/descriptor"
)

var probeNames = map[descriptor.Kind]string{
	descriptor.KindWeakObject: "WeakObject",
	descriptor.KindSoftObject: "SoftObject",
	descriptor.KindArray:      "Array",
	descriptor.KindSet:        "Set",
	descriptor.KindOptional:   "Optional",
}

var probeFlags = []descriptor.Flags{
	0,
	descriptor.FlagBitfield,
	descriptor.FlagConst | descriptor.FlagReference,
	descriptor.FlagOut,
	descriptor.FlagReturn,
	descriptor.FlagReplicated,
}

// Probes returns representative descriptors of kind k across the flag
// combinations that change translator predicates.
func Probes(k descriptor.Kind) []*descriptor.Type {
	var out []*descriptor.Type
	for _, t := range probeShapes(k) {
		for _, f := range probeFlags {
			out = append(out, t.WithFlags(f))
		}
	}
	return out
}

func probeShapes(k descriptor.Kind) []*descriptor.Type {
	i32 := descriptor.Primitive(descriptor.KindInt32)
	str := descriptor.New(descriptor.KindString, "String")

	switch {
	case k.IsNumeric(), k == descriptor.KindBool:
		return []*descriptor.Type{descriptor.Primitive(k)}
	}

	switch k {
	case descriptor.KindString, descriptor.KindName, descriptor.KindText:
		return []*descriptor.Type{descriptor.New(k, k.String())}

	case descriptor.KindEnum:
		var out []*descriptor.Type
		for _, w := range []int{1, 4} {
			t := descriptor.New(k, "EProbe")
			t.Enum = &descriptor.EnumInfo{Name: "EProbe", Width: w}
			out = append(out, t)
		}
		return out

	case descriptor.KindStruct:
		f32 := descriptor.Primitive(descriptor.KindFloat)
		blit := descriptor.New(k, "ProbeBlit")
		blit.Struct = &descriptor.StructInfo{
			Name: "ProbeBlit", Size: 8, Align: 4, Blittable: true,
			Fields: []descriptor.Field{{Name: "X", Type: f32}, {Name: "Y", Type: f32, Offset: 4}},
		}
		comp := descriptor.New(k, "ProbeComposite")
		comp.Struct = &descriptor.StructInfo{
			Name: "ProbeComposite", Size: 16, Align: 8,
			Fields: []descriptor.Field{{Name: "Label", Type: str}},
		}
		return []*descriptor.Type{blit, comp}

	case descriptor.KindObject, descriptor.KindClass:
		t := descriptor.New(k, "Actor")
		t.Class = "Actor"
		return []*descriptor.Type{t}

	case descriptor.KindWeakObject, descriptor.KindSoftObject:
		obj := descriptor.New(descriptor.KindObject, "Actor")
		obj.Class = "Actor"
		t := descriptor.New(k, probeNames[k], obj)
		t.Class = "Actor"
		return []*descriptor.Type{t}

	case descriptor.KindInterface:
		t := descriptor.New(k, "IProbe")
		t.Class = "IProbe"
		return []*descriptor.Type{t}

	case descriptor.KindDelegate, descriptor.KindMulticastDelegate:
		t := descriptor.New(k, "FProbe")
		t.Signature = &descriptor.Signature{Name: "FProbe", Params: []descriptor.Param{{Name: "Value", Type: i32}}}
		return []*descriptor.Type{t}

	case descriptor.KindArray, descriptor.KindSet, descriptor.KindOptional:
		return []*descriptor.Type{descriptor.New(k, probeNames[k], i32)}

	case descriptor.KindMap:
		return []*descriptor.Type{descriptor.New(k, "Map", i32, str)}

	case descriptor.KindPointer:
		return []*descriptor.Type{descriptor.New(k, "void*")}
	}
	return nil
}
