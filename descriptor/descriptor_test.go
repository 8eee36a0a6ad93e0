package descriptor

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bindgen/errors"
)

type lookupMap map[string]Spec

func (m lookupMap) LookupSpec(name string) (Spec, bool) {
	s, ok := m[name]
	return s, ok
}

func vectorInfo(blittable bool) *StructInfo {
	return &StructInfo{
		Name:      "Vector2",
		Size:      8,
		Align:     4,
		Blittable: blittable,
		Fields: []Field{
			{Name: "X", Offset: 0, Type: Primitive(KindFloat)},
			{Name: "Y", Offset: 4, Type: Primitive(KindFloat)},
		},
	}
}

func TestClassify_NameTable(t *testing.T) {
	tests := []struct {
		name string
		spec string
		kind Kind
	}{
		{"int32", "int32", KindInt32},
		{"alias int", "int", KindInt32},
		{"double", "double", KindDouble},
		{"bool", "bool", KindBool},
		{"string", "String", KindString},
		{"name", "FName", KindName},
		{"text", "Text", KindText},
		{"array", "Array<int32>", KindArray},
		{"map", "Map<int32,String>", KindMap},
		{"set", "TSet<Name>", KindSet},
		{"optional", "Option<float>", KindOptional},
		{"void", "void", KindUnknown},
		{"raw pointer", "void*", KindPointer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSpec(tt.spec)
			require.NoError(t, err)
			typ, err := Classify(spec)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, typ.Kind)
			assert.Equal(t, 1, typ.Dim())
		})
	}
}

func TestClassify_CategoryFallback(t *testing.T) {
	l := lookupMap{
		"Actor":    {Name: "Actor", Category: CategoryClass},
		"IUsable":  {Name: "IUsable", Category: CategoryInterface},
		"Vector2":  {Name: "Vector2", Category: CategoryStruct, Struct: vectorInfo(true)},
		"EColor":   {Name: "EColor", Category: CategoryEnum, Enum: &EnumInfo{Name: "EColor", Width: 1}},
		"OnHit":    {Name: "OnHit", Category: CategoryDelegate, Signature: &Signature{Name: "OnHit"}},
		"OnDamage": {Name: "OnDamage", Category: CategoryMulticastDelegate, Signature: &Signature{Name: "OnDamage"}},
	}

	tests := []struct {
		spec  string
		kind  Kind
		class string
	}{
		{"Actor", KindObject, "Actor"},
		{"IUsable", KindInterface, "IUsable"},
		{"Vector2", KindStruct, ""},
		{"EColor", KindEnum, ""},
		{"OnHit", KindDelegate, ""},
		{"OnDamage", KindMulticastDelegate, ""},
		{"WeakObject<Actor>", KindWeakObject, "Actor"},
		{"SoftObject<Actor>", KindSoftObject, "Actor"},
		{"SubclassOf<Actor>", KindClass, "Actor"},
		{"ScriptInterface<IUsable>", KindInterface, "IUsable"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			spec, err := ParseSpec(tt.spec)
			require.NoError(t, err)
			typ, err := ClassifyWith(spec, l)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, typ.Kind)
			assert.Equal(t, tt.class, typ.Class)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		kind errors.Kind
	}{
		{"unknown name", Spec{Name: "Mystery"}, errors.KindUnsupportedType},
		{"unknown template", Spec{Name: "Tuple", Args: []Spec{{Name: "int32"}}}, errors.KindUnsupportedType},
		{"array arity", Spec{Name: "Array"}, errors.KindInvalidComposite},
		{"map arity", Spec{Name: "Map", Args: []Spec{{Name: "int32"}}}, errors.KindInvalidComposite},
		{"negative dimension", Spec{Name: "int32", ArrayDim: -1}, errors.KindInvalidComposite},
		{"struct without layout", Spec{Name: "S", Category: CategoryStruct}, errors.KindInvalidComposite},
		{"enum without info", Spec{Name: "E", Category: CategoryEnum}, errors.KindInvalidComposite},
		{"weak of struct", Spec{Name: "WeakObject", Args: []Spec{{Name: "S", Category: CategoryStruct, Struct: vectorInfo(false)}}}, errors.KindInvalidComposite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.spec)
			require.Error(t, err)
			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, errors.PhaseClassify, e.Phase)
		})
	}
}

func TestClassify_BlittableMarkerVerified(t *testing.T) {
	info := vectorInfo(true)
	info.Fields = append(info.Fields, Field{Name: "Label", Offset: 8, Type: New(KindString, "String")})

	_, err := Classify(Spec{Name: "Vector2", Category: CategoryStruct, Struct: info})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Label")
}

func TestClassify_PropagatesContainerFlags(t *testing.T) {
	flags := FlagEditable | FlagConfig | FlagReplicated

	arr, err := Classify(Spec{Name: "Array", Flags: flags, Args: []Spec{{Name: "int32"}}})
	require.NoError(t, err)
	assert.True(t, arr.Elem().Flags.Has(FlagConfig))
	assert.False(t, arr.Elem().Flags.Has(FlagEditable))
	assert.False(t, arr.Elem().Flags.Has(FlagReplicated))

	m, err := Classify(Spec{Name: "Map", Flags: flags, Args: []Spec{{Name: "int32"}, {Name: "String"}}})
	require.NoError(t, err)
	assert.True(t, m.Key().Flags.Has(FlagEditable|FlagConfig))
	assert.True(t, m.Value().Flags.Has(FlagEditable|FlagConfig))
}

func TestPropagateFlags(t *testing.T) {
	all := Flags(0)
	for _, fn := range flagNames {
		all |= fn.flag
	}

	expect := FlagExportObject | FlagPersistentInstance | FlagInstancedReference |
		FlagContainsInstancedReference | FlagConfig | FlagEditConst | FlagDeprecated |
		FlagEditorOnly | FlagAutoWeak | FlagWrapper

	assert.Equal(t, expect, PropagateFlags(all, RoleArrayElement))
	assert.Equal(t, expect, PropagateFlags(all, RoleOptionalValue))
	assert.Equal(t, expect|FlagEditable, PropagateFlags(all, RoleMapKey))
	assert.Equal(t, expect|FlagEditable, PropagateFlags(all, RoleMapValue))
	assert.Equal(t, expect|FlagEditable, PropagateFlags(all, RoleSetElement))
	assert.Zero(t, PropagateFlags(FlagConst|FlagOut|FlagReturn|FlagBitfield, RoleMapValue))
}

func TestIsBlittable(t *testing.T) {
	assert.True(t, Primitive(KindInt32).IsBlittable())
	assert.True(t, Primitive(KindDouble).IsBlittable())
	assert.False(t, Primitive(KindBool).IsBlittable())
	assert.True(t, (&Type{Kind: KindEnum, Enum: &EnumInfo{Width: 1}}).IsBlittable())
	assert.True(t, (&Type{Kind: KindStruct, Struct: vectorInfo(true)}).IsBlittable())
	assert.False(t, (&Type{Kind: KindStruct, Struct: vectorInfo(false)}).IsBlittable())
	assert.False(t, New(KindString, "String").IsBlittable())
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec(" Map< int32 , Array<String> > ")
	require.NoError(t, err)
	assert.Equal(t, "Map", spec.Name)
	require.Len(t, spec.Args, 2)
	assert.Equal(t, "Array", spec.Args[1].Name)
	assert.Equal(t, "String", spec.Args[1].Args[0].Name)

	for _, bad := range []string{"", "Array<", "Array<int32", "Map<int32;String>", "int32 x"} {
		_, err := ParseSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestTypeString(t *testing.T) {
	spec, err := ParseSpec("Map<int32,Array<String>>")
	require.NoError(t, err)
	typ, err := Classify(spec)
	require.NoError(t, err)
	assert.Equal(t, "Map<int32,Array<String>>", typ.String())
}

func TestWithHelpersCopy(t *testing.T) {
	base := Primitive(KindInt32)
	out := base.WithAddedFlags(FlagOut)
	assert.Zero(t, base.Flags)
	assert.True(t, out.Flags.Has(FlagOut))
	assert.Equal(t, 4, base.WithArrayDim(4).Dim())
	assert.Equal(t, 1, base.Dim())
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "none", Flags(0).String())
	assert.Equal(t, "const|out", (FlagConst | FlagOut).String())
	f, ok := ParseFlag("Editor-Only")
	assert.True(t, ok)
	assert.Equal(t, FlagEditorOnly, f)
	_, ok = ParseFlag("bogus")
	assert.False(t, ok)
}

func TestKind(t *testing.T) {
	assert.Len(t, Kinds(), int(kindCount))
	assert.Equal(t, "multicast-delegate", KindMulticastDelegate.String())
	assert.Equal(t, 4, KindFloat.Width())
	assert.True(t, KindOptional.IsContainer())
	assert.True(t, KindSoftObject.IsReference())
	assert.False(t, KindBool.IsNumeric())
}
