package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/memory"
	"github.com/wippyai/native-bindgen/plan"
)

func i32() *descriptor.Type { return descriptor.Primitive(descriptor.KindInt32) }

func str() *descriptor.Type { return descriptor.New(descriptor.KindString, "String") }

func vector2() *descriptor.Type {
	f32 := descriptor.Primitive(descriptor.KindFloat)
	t := descriptor.New(descriptor.KindStruct, "Vector2")
	t.Struct = &descriptor.StructInfo{
		Name: "Vector2", Size: 8, Align: 4, Blittable: true,
		Fields: []descriptor.Field{{Name: "X", Type: f32}, {Name: "Y", Type: f32, Offset: 4}},
	}
	return t
}

func item() *descriptor.Type {
	t := descriptor.New(descriptor.KindStruct, "Item")
	t.Struct = &descriptor.StructInfo{
		Name: "Item", Size: 24, Align: 8,
		Fields: []descriptor.Field{{Name: "Label", Type: str()}, {Name: "Count", Type: i32(), Offset: 16}},
	}
	return t
}

func enumOf(width int) *descriptor.Type {
	t := descriptor.New(descriptor.KindEnum, "EColor")
	t.Enum = &descriptor.EnumInfo{Name: "EColor", Width: width, Values: []descriptor.EnumValue{{Name: "Red"}, {Name: "Blue", Value: 1}}}
	return t
}

func assertKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, kind), "want %s, got %v", kind, err)
}

func TestDefault_BuildsOnce(t *testing.T) {
	r := Default()
	require.NotNil(t, r)
	assert.Same(t, r, Default())
	assert.Equal(t, len(DefaultEntries()), r.Len())
}

func TestLookup_PrecedenceByKind(t *testing.T) {
	obj := descriptor.New(descriptor.KindObject, "Actor")
	obj.Class = "Actor"

	tests := []struct {
		typ  *descriptor.Type
		want string
	}{
		{i32(), "primitive"},
		{descriptor.Primitive(descriptor.KindDouble), "primitive"},
		{descriptor.Primitive(descriptor.KindBool), "bool"},
		{descriptor.Primitive(descriptor.KindBool).WithFlags(descriptor.FlagBitfield), "bool"},
		{str(), "string"},
		{descriptor.New(descriptor.KindName, "Name"), "name"},
		{descriptor.New(descriptor.KindText, "Text"), "text"},
		{enumOf(1), "enum"},
		{vector2(), "blittable-struct"},
		{item(), "struct"},
		{obj, "object"},
		{descriptor.New(descriptor.KindArray, "Array", i32()), "array"},
		{descriptor.New(descriptor.KindMap, "Map", i32(), str()), "map"},
		{descriptor.New(descriptor.KindSet, "Set", str()), "set"},
		{descriptor.New(descriptor.KindOptional, "Optional", vector2()), "optional"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			m, err := Default().Lookup(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Translator.Name())
		})
	}
}

func TestLookup_Deterministic(t *testing.T) {
	typ := descriptor.New(descriptor.KindMap, "Map", i32(), str())
	first, err := Default().Lookup(typ)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Default().Lookup(typ)
		require.NoError(t, err)
		assert.Equal(t, first.Index, again.Index)
		assert.Equal(t, first.Translator, again.Translator)
		require.Len(t, again.Args, 2)
		assert.Equal(t, first.Args[1].Translator, again.Args[1].Translator)
	}
}

func TestRegistry_BlittableShadowsStruct(t *testing.T) {
	assert.Equal(t, []string{"blittable-struct", "struct"}, Default().Candidates(vector2()))
	assert.Equal(t, []string{"struct"}, Default().Candidates(item()))
}

func TestNewRegistry_RejectsUndeclaredOverlap(t *testing.T) {
	_, err := NewRegistry([]Entry{{Translator: BlittableStruct}, {Translator: Struct}})
	assertKind(t, err, errors.KindAmbiguousMatch)

	_, err = NewRegistry([]Entry{{Translator: BlittableStruct, Shadows: []string{"struct"}}, {Translator: Struct}})
	assert.NoError(t, err)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Entry{{Translator: Primitive}, {Translator: Primitive}})
	assertKind(t, err, errors.KindAmbiguousMatch)

	_, err = NewRegistry([]Entry{{}})
	assertKind(t, err, errors.KindInvalidInput)
}

func TestLookup_PointerUnsupported(t *testing.T) {
	_, err := Default().Lookup(descriptor.New(descriptor.KindPointer, "void*"))
	assertKind(t, err, errors.KindUnsupportedType)
}

func TestLookup_EnumWidth(t *testing.T) {
	_, err := Default().Lookup(enumOf(4))
	assertKind(t, err, errors.KindInvalidComposite)

	_, err = Default().Lookup(descriptor.New(descriptor.KindEnum, "EBare"))
	assertKind(t, err, errors.KindInvalidComposite)

	m, err := Default().Lookup(enumOf(1))
	require.NoError(t, err)
	assert.Equal(t, "EColor", m.Translator.ManagedType(m, plan.OwnerClass))
}

func TestLookup_Containers(t *testing.T) {
	nested := descriptor.New(descriptor.KindArray, "Array", descriptor.New(descriptor.KindArray, "Array", i32()))
	_, err := Default().Lookup(nested)
	assertKind(t, err, errors.KindInvalidComposite)

	ptr := descriptor.New(descriptor.KindPointer, "void*")
	_, err = Default().Lookup(descriptor.New(descriptor.KindArray, "Array", ptr))
	assertKind(t, err, errors.KindUnsupportedType)
	assert.Contains(t, err.Error(), "element type void*")

	_, err = Default().Lookup(descriptor.New(descriptor.KindMap, "Map", i32(), enumOf(2)))
	assertKind(t, err, errors.KindInvalidComposite)

	_, err = Default().Lookup(descriptor.New(descriptor.KindArray, "Array"))
	assertKind(t, err, errors.KindUnsupportedType)
}

func TestManagedTypesAndMarshallers(t *testing.T) {
	arr := descriptor.New(descriptor.KindArray, "Array", i32())
	mp := descriptor.New(descriptor.KindMap, "Map", i32(), str())
	weakTarget := descriptor.New(descriptor.KindObject, "Actor")
	weakTarget.Class = "Actor"
	weak := descriptor.New(descriptor.KindWeakObject, "WeakObject", weakTarget)
	weak.Class = "Actor"

	tests := []struct {
		typ        *descriptor.Type
		owner      plan.OwnerKind
		managed    string
		marshaller string
	}{
		{i32(), plan.OwnerClass, "int", "BlittableMarshaller<int>"},
		{descriptor.Primitive(descriptor.KindUint64), plan.OwnerClass, "ulong", "BlittableMarshaller<ulong>"},
		{str(), plan.OwnerFunction, "string", "StringMarshaller"},
		{vector2(), plan.OwnerClass, "Vector2", "BlittableMarshaller<Vector2>"},
		{item(), plan.OwnerClass, "Item", "StructMarshaller<Item>"},
		{weak, plan.OwnerClass, "WeakObject<Actor>", "WeakObjectMarshaller<Actor>"},
		{arr, plan.OwnerClass, "IList<int>", "ArrayMarshaller<int>"},
		{arr, plan.OwnerStruct, "List<int>", "ArrayCopyMarshaller<int>"},
		{arr, plan.OwnerFunction, "List<int>", "ArrayCopyMarshaller<int>"},
		{mp, plan.OwnerClass, "IDictionary<int, string>", "MapMarshaller<int, string>"},
		{mp, plan.OwnerStruct, "Dictionary<int, string>", "MapCopyMarshaller<int, string>"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.owner.String(), func(t *testing.T) {
			m, err := Default().Lookup(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.managed, m.Translator.ManagedType(m, tt.owner))
			assert.Equal(t, tt.marshaller, m.Translator.Marshaller(m, tt.owner))
		})
	}
}

func TestComposite(t *testing.T) {
	tests := []struct {
		typ  *descriptor.Type
		want bool
	}{
		{i32(), false},
		{str(), false},
		{vector2(), false},
		{item(), true},
		{descriptor.New(descriptor.KindArray, "Array", vector2()), true},
		{descriptor.New(descriptor.KindDelegate, "FOnHit"), true},
	}
	for _, tt := range tests {
		m, err := Default().Lookup(tt.typ)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Composite(), tt.typ.String())
	}
}

func newContext(t *testing.T, typ *descriptor.Type, owner plan.OwnerKind, member string) *Context {
	t.Helper()
	m, err := Default().Lookup(typ)
	require.NoError(t, err)
	buf := plan.BaseObject
	mode := plan.Direct
	if owner == plan.OwnerFunction {
		buf, mode = plan.BaseParams, plan.ParamBuffer
	}
	return &Context{
		Match:      m,
		Member:     member,
		NativeName: member,
		OwnerField: plan.TypeHandleField,
		Addr:       plan.At(mode, buf, plan.OffsetField(member)),
		Owner:      owner,
	}
}

func TestEmission_Primitive(t *testing.T) {
	ctx := newContext(t, i32(), plan.OwnerClass, "Health")

	get, err := ctx.Match.Translator.FromNative(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.Load{Addr: ctx.Addr, Kind: descriptor.KindInt32}, get)

	set, err := ctx.Match.Translator.ToNative(ctx, plan.Value{Name: "value"})
	require.NoError(t, err)
	assert.Equal(t, plan.Store{Value: plan.Value{Name: "value"}, Addr: ctx.Addr, Kind: descriptor.KindInt32}, set)

	statics, err := ctx.Match.Translator.StaticBinding(ctx)
	require.NoError(t, err)
	assert.Empty(t, statics)
}

func TestEmission_Bitfield(t *testing.T) {
	ctx := newContext(t, descriptor.Primitive(descriptor.KindBool).WithFlags(descriptor.FlagBitfield), plan.OwnerClass, "bHidden")

	get, err := ctx.Match.Translator.FromNative(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.MaskedLoad{Addr: ctx.Addr, MaskField: "bHidden_FieldMask"}, get)

	_, err = ctx.Match.Translator.NewCodec(ctx.Match, CodecOptions{})
	assertKind(t, err, errors.KindInvalidInput)

	c, err := ctx.Match.Translator.NewCodec(ctx.Match, CodecOptions{Mask: 0x4})
	require.NoError(t, err)
	assert.Equal(t, marshal.Bitfield{Mask: 0x4}, c)
}

func TestEmission_StringCleanupOnlyForParams(t *testing.T) {
	prop := newContext(t, str(), plan.OwnerClass, "Label")
	stmts, err := prop.Match.Translator.Cleanup(prop)
	require.NoError(t, err)
	assert.Empty(t, stmts)

	param := newContext(t, str(), plan.OwnerFunction, "Say_Text")
	stmts, err = param.Match.Translator.Cleanup(param)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, plan.Eval{Call: plan.Call{Static: "StringMarshaller", Method: "DestructInstance", Addr: param.Addr}}, stmts[0])
}

func TestEmission_ContainerCell(t *testing.T) {
	ctx := newContext(t, descriptor.New(descriptor.KindMap, "Map", i32(), str()), plan.OwnerClass, "Scores")

	statics, err := ctx.Match.Translator.StaticBinding(ctx)
	require.NoError(t, err)
	require.Len(t, statics, 1)
	assert.Equal(t, plan.CellInit{
		Field:      "Scores_Marshaller",
		Marshaller: "MapMarshaller<int, string>",
		Property:   "Scores_NativeProperty",
		Args: []plan.Expr{
			plan.MethodRef{Marshaller: "BlittableMarshaller<int>", Method: "ToNative"},
			plan.MethodRef{Marshaller: "BlittableMarshaller<int>", Method: "FromNative"},
			plan.MethodRef{Marshaller: "StringMarshaller", Method: "ToNative"},
			plan.MethodRef{Marshaller: "StringMarshaller", Method: "FromNative"},
		},
	}, statics[0])

	get, err := ctx.Match.Translator.FromNative(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.Call{Cell: "Scores_Marshaller", Method: "FromNative", Addr: ctx.Addr}, get)
}

func TestEmission_StructCell(t *testing.T) {
	ctx := newContext(t, item(), plan.OwnerFunction, "Give_Item")

	statics, err := ctx.Match.Translator.StaticBinding(ctx)
	require.NoError(t, err)
	require.Len(t, statics, 1)
	ci := statics[0].(plan.CellInit)
	assert.Equal(t, "Give_Item_Marshaller", ci.Field)
	assert.Equal(t, []plan.Expr{
		plan.MethodRef{Marshaller: "Item", Method: "ToNative"},
		plan.MethodRef{Marshaller: "Item", Method: "FromNative"},
	}, ci.Args)

	cleanup, err := ctx.Match.Translator.Cleanup(ctx)
	require.NoError(t, err)
	assert.Len(t, cleanup, 1)
}

func TestNewCodec_ClassVsStruct(t *testing.T) {
	arr := descriptor.New(descriptor.KindArray, "Array", i32())
	m, err := Default().Lookup(arr)
	require.NoError(t, err)

	live, err := Default().NewCodec(m, CodecOptions{Owner: plan.OwnerClass})
	require.NoError(t, err)
	assert.IsType(t, &marshal.ArrayLive{}, live)

	cp, err := Default().NewCodec(m, CodecOptions{Owner: plan.OwnerStruct})
	require.NoError(t, err)
	assert.IsType(t, &marshal.ArrayCopy{}, cp)

	_, err = m.Translator.NewCodec(m, CodecOptions{})
	assertKind(t, err, errors.KindInvalidInput)
}

func TestNewCodec_StaticArrayDim(t *testing.T) {
	m, err := Default().Lookup(i32().WithArrayDim(4))
	require.NoError(t, err)
	c, err := Default().NewCodec(m, CodecOptions{Owner: plan.OwnerClass})
	require.NoError(t, err)
	assert.Equal(t, uint32(16), c.Size())
}

func TestLookup_FixedArray(t *testing.T) {
	m, err := Default().Lookup(i32().WithArrayDim(4))
	require.NoError(t, err)
	assert.Equal(t, "fixed-array", m.Translator.Name())
	require.NotNil(t, m.Elem())
	assert.Equal(t, "primitive", m.Elem().Translator.Name())
	assert.True(t, m.Composite())
	assert.Equal(t, "FixedSizeArray<int>", m.Translator.ManagedType(m, plan.OwnerClass))

	ctx := newContext(t, i32().WithArrayDim(4), plan.OwnerClass, "Slots")
	statics, err := ctx.Match.Translator.StaticBinding(ctx)
	require.NoError(t, err)
	require.Len(t, statics, 1)
	ci := statics[0].(plan.CellInit)
	assert.Equal(t, "FixedSizeArrayMarshaller<int>", ci.Marshaller)
	assert.Equal(t, "Slots_NativeProperty", ci.Property)
	assert.Len(t, ci.Args, 2)

	_, err = Default().Lookup(descriptor.New(descriptor.KindArray, "Array", i32()).WithArrayDim(2))
	assertKind(t, err, errors.KindInvalidComposite)
}

func TestNewCodec_MapRoundTrip(t *testing.T) {
	arena := memory.NewArena(4096)
	n := marshal.NewNative(arena, arena)
	buf, err := arena.Alloc(16, 8)
	require.NoError(t, err)

	m, err := Default().Lookup(descriptor.New(descriptor.KindMap, "Map", i32(), str()))
	require.NoError(t, err)
	c, err := Default().NewCodec(m, CodecOptions{Owner: plan.OwnerStruct})
	require.NoError(t, err)

	in := marshal.Map{{Key: int32(1), Value: "one"}, {Key: int32(2), Value: "two"}}
	require.NoError(t, c.ToNative(n, buf, 0, in))
	out, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewCodec_StructFields(t *testing.T) {
	arena := memory.NewArena(4096)
	n := marshal.NewNative(arena, arena)
	buf, err := arena.Alloc(24, 8)
	require.NoError(t, err)

	m, err := Default().Lookup(item())
	require.NoError(t, err)
	c, err := Default().NewCodec(m, CodecOptions{Owner: plan.OwnerClass})
	require.NoError(t, err)

	in := marshal.Struct{"Label": "sword", "Count": int32(3)}
	require.NoError(t, c.ToNative(n, buf, 0, in))
	out, err := c.FromNative(n, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// special accepts a single named int32 that the default probes never cover.
type special struct{ Translator }

func (special) Name() string { return "special" }

func (special) CanExport(t *descriptor.Type) bool {
	return t.Kind == descriptor.KindInt32 && t.Name == "Special"
}

func TestLookup_DebugWarnsOnAmbiguity(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	r, err := NewRegistry([]Entry{{Translator: Primitive}, {Translator: special{Primitive}}}, WithDebug(true))
	require.NoError(t, err)

	typ := descriptor.New(descriptor.KindInt32, "Special")
	m, err := r.Lookup(typ)
	require.NoError(t, err)
	assert.Equal(t, "primitive", m.Translator.Name())
	assert.Equal(t, []string{"primitive", "special"}, r.Candidates(typ))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "special", logs.All()[0].ContextMap()["also"])

	_, err = r.Lookup(i32())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestProbes(t *testing.T) {
	for _, k := range descriptor.Kinds() {
		for _, p := range Probes(k) {
			assert.Equal(t, k, p.Kind)
		}
	}
	assert.NotEmpty(t, Probes(descriptor.KindStruct))
	assert.Empty(t, Probes(descriptor.KindUnknown))
}
