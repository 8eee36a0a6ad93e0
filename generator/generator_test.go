package generator

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/emit/patch"
	"github.com/wippyai/native-bindgen/emit/patch/patchtest"
	"github.com/wippyai/native-bindgen/emit/source"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
	"github.com/wippyai/native-bindgen/translator"
)

func loadGame(t *testing.T) *metadata.Database {
	t.Helper()
	db, err := metadata.LoadFile("../metadata/testdata/game.yaml")
	require.NoError(t, err)
	return db
}

func planOf(t *testing.T, plans []*plan.TypePlan, name string) *plan.TypePlan {
	t.Helper()
	for _, tp := range plans {
		if tp.Name == name {
			return tp
		}
	}
	t.Fatalf("no plan for %s", name)
	return nil
}

func fileOf(t *testing.T, files []source.File, name string) string {
	t.Helper()
	for _, f := range files {
		if f.Name == name {
			return string(f.Content)
		}
	}
	t.Fatalf("no file %s", name)
	return ""
}

func symbols(d *errors.Diagnostics) []string {
	var out []string
	for _, it := range d.Items() {
		var e *errors.Error
		if stderrors.As(it.Err, &e) {
			out = append(out, e.Symbol)
		}
	}
	return out
}

func TestGenerate_FailingMembersKeepSiblings(t *testing.T) {
	res, err := New(loadGame(t), Options{}).Generate(context.Background())
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedType))

	assert.Equal(t, []string{"Actor.Handle", "Actor.Mystery"}, symbols(res.Diagnostics))
	assert.True(t, res.Diagnostics.Fatal())

	assert.Len(t, res.Plans, 7)
	actor := planOf(t, res.Plans, "Actor")
	var names []string
	for _, pp := range actor.Properties {
		names = append(names, pp.Name)
	}
	assert.Equal(t, []string{
		"Health", "Speed", "bHidden", "Label", "Scores", "Tags",
		"Velocity", "Color", "Target", "Owner", "Loot", "OnHit",
	}, names)
	assert.Len(t, actor.Functions, 3)
	assert.Len(t, res.Files, 7)
}

func TestPlan_ProgramOrder(t *testing.T) {
	plans, _, err := New(loadGame(t), Options{}).Plan(context.Background())
	require.NoError(t, err)

	var fields []string
	for _, s := range planOf(t, plans, "Actor").Program()[:10] {
		switch v := s.(type) {
		case plan.Resolve:
			fields = append(fields, v.Field)
		case plan.CellInit:
			fields = append(fields, v.Field)
		}
	}
	assert.Equal(t, []string{
		"NativeClassPtr",
		"Health_Offset",
		"Speed_Offset",
		"bHidden_Offset", "bHidden_FieldMask",
		"Label_Offset",
		"Scores_NativeProperty", "Scores_Offset", "Scores_Marshaller",
		"Tags_NativeProperty",
	}, fields)
}

func TestPlan_DeterministicAcrossParallelism(t *testing.T) {
	db := loadGame(t)
	serial, d1, err := New(db, Options{Parallelism: 1}).Plan(context.Background())
	require.NoError(t, err)
	parallel, d2, err := New(db, Options{Parallelism: 8}).Plan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	assert.Equal(t, d1.String(), d2.String())
}

func TestPlan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(loadGame(t), Options{}).Plan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlan_Functions(t *testing.T) {
	plans, _, err := New(loadGame(t), Options{}).Plan(context.Background())
	require.NoError(t, err)
	actor := planOf(t, plans, "Actor")

	fire := actor.Functions[0]
	assert.Equal(t, "Fire", fire.Name)
	require.NotNil(t, fire.Return)
	assert.Equal(t, plan.Return, fire.Return.Direction)
	assert.Equal(t, uint32(4), fire.ReturnSize)
	assert.Empty(t, fire.Return.Statics)

	require.Len(t, fire.Params, 3)
	hits := fire.Params[2]
	assert.Equal(t, plan.Out, hits.Direction)
	assert.Nil(t, hits.ToNative)
	assert.Equal(t, plan.StoreIndirect{
		Pointer: plan.Value{Name: "Hits"},
		Value:   hits.FromNative,
		Kind:    hits.Type.Kind,
		Width:   4,
	}, hits.WriteBack)

	rename := actor.Functions[1]
	require.Len(t, rename.Params, 1)
	assert.Equal(t, plan.In, rename.Params[0].Direction)
	assert.Len(t, rename.Params[0].Cleanup, 1, "owned string parameters are released")

	sync := actor.Functions[2]
	assert.True(t, sync.Replicated)
	first := sync.Statics[0].(plan.Resolve)
	assert.False(t, first.Cached)
}

func TestPlan_StructOwnersCopy(t *testing.T) {
	plans, _, err := New(loadGame(t), Options{}).Plan(context.Background())
	require.NoError(t, err)

	item := planOf(t, plans, "Item")
	assert.Equal(t, plan.OwnerStruct, item.Owner)
	assert.Equal(t, plan.TypeSizeField, item.SizeField)
	assert.False(t, item.Blittable)
	assert.True(t, planOf(t, plans, "Vector2").Blittable)

	actor := planOf(t, plans, "Actor")
	for _, pp := range actor.Properties {
		if pp.Name == "Loot" {
			assert.Equal(t, "IList<Item>", pp.ManagedType)
		}
	}
}

func TestPlan_ValueOnlyTypes(t *testing.T) {
	plans, _, err := New(loadGame(t), Options{}).Plan(context.Background())
	require.NoError(t, err)

	color := planOf(t, plans, "EColor")
	require.NotNil(t, color.Enum)
	assert.True(t, color.IsValueOnly())
	assert.Empty(t, color.Program())

	hit := planOf(t, plans, "FOnHit")
	require.NotNil(t, hit.Delegate)
	assert.True(t, hit.Multicast)
	require.Len(t, hit.Delegate.Params, 1)
	assert.Equal(t, "float", hit.Delegate.Params[0].ManagedType)
}

func TestGenerate_Sources(t *testing.T) {
	res, _ := New(loadGame(t), Options{}).Generate(context.Background())
	require.NotNil(t, res)

	actor := fileOf(t, res.Files, "Game/Actor.g.cs")
	for _, want := range []string{
		"namespace Game;",
		"public unsafe partial class Actor : Object",
		"static readonly IntPtr NativeClassPtr;",
		`NativeClassPtr = NativeReflection.GetNativeTypeHandle("Actor");`,
		`Health_Offset = NativeReflection.GetPropertyOffsetFromName(NativeClassPtr, "Health");`,
		"get { return *(int*)(NativeObject + Health_Offset); }",
		`bHidden_FieldMask = NativeReflection.GetBoolPropertyFieldMask(NativeClassPtr, "bHidden");`,
		"get { return (*(byte*)(NativeObject + bHidden_Offset) & bHidden_FieldMask) != 0; }",
		"Scores_Marshaller = new MapMarshaller<int, string>(Scores_NativeProperty, BlittableMarshaller<int>.ToNative, BlittableMarshaller<int>.FromNative, StringMarshaller.ToNative, StringMarshaller.FromNative);",
		"public IDictionary<int, string> Scores",
		"get { return (EColor)(*(byte*)(NativeObject + Color_Offset)); }",
		"public int Fire(Actor Target, float Power, out int Hits)",
		"byte* paramsMemory = stackalloc byte[Fire_ParamsSize];",
		"Hits = *(int*)(ParamsBuffer + Fire_Hits_Offset);",
		"int result = *(int*)ReturnBuffer;",
		"StringMarshaller.DestructInstance((ParamsBuffer + Rename_NewName_Offset), 0);",
		`IntPtr Sync_NativeFunction = NativeReflection.GetNativeFunctionHandle(NativeClassPtr, "Sync");`,
		`NativeReflection.InvokeFunction(NativeObject, NativeReflection.GetInstanceFunctionHandle(NativeObject, "Sync"), ParamsBuffer, ReturnBuffer);`,
	} {
		assert.Contains(t, actor, want)
	}
	assert.NotContains(t, actor, "Handle_Offset")
	assert.NotContains(t, actor, "Mystery")
	assert.NotContains(t, actor, "static readonly IntPtr Sync_NativeFunction")

	obj := fileOf(t, res.Files, "Core/Object.g.cs")
	assert.Contains(t, obj, "public unsafe partial class Object : "+source.RootClass)

	vec := fileOf(t, res.Files, "Game/Vector2.g.cs")
	for _, want := range []string{
		"public unsafe partial struct Vector2",
		"public static readonly int NativeDataSize;",
		"NativeDataSize = NativeReflection.GetNativeStructSize(NativeClassPtr);",
		"X = *(float*)(Buffer + X_Offset);",
		"*(float*)(Buffer + Y_Offset) = Y;",
	} {
		assert.Contains(t, vec, want)
	}

	assert.Contains(t, fileOf(t, res.Files, "Game/EColor.g.cs"), "Green = 1,")
	assert.Contains(t, fileOf(t, res.Files, "Game/FOnHit.g.cs"), "public delegate void FOnHit(float Damage);")
}

func TestGenerate_FunctionFailureIsolated(t *testing.T) {
	db, err := metadata.New(&metadata.Dump{Types: []metadata.TypeDef{{
		Name: "Widget",
		Kind: "class",
		Functions: []metadata.FunctionDef{
			{Name: "Bad", Params: []metadata.PropertyDef{{Name: "P", Type: "void*"}}},
			{Name: "Good", Return: "int32"},
		},
	}}})
	require.NoError(t, err)

	res, err := New(db, Options{Namespace: "UI"}).Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"Widget.Bad"}, symbols(res.Diagnostics))

	widget := planOf(t, res.Plans, "Widget")
	assert.Equal(t, "UI", widget.Namespace)
	require.Len(t, widget.Functions, 1)
	assert.Equal(t, "Good", widget.Functions[0].Name)

	var e *errors.Error
	require.True(t, stderrors.As(res.Diagnostics.Items()[0].Err, &e))
	assert.Equal(t, []string{"P"}, e.Path)
}

func TestGenerate_CleanRun(t *testing.T) {
	db, err := metadata.New(&metadata.Dump{Types: []metadata.TypeDef{{
		Name:       "Counter",
		Kind:       "class",
		Properties: []metadata.PropertyDef{{Name: "Value", Type: "int64", Offset: 8}},
	}}})
	require.NoError(t, err)

	res, err := New(db, Options{}).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Diagnostics.Len())
	require.Len(t, res.Files, 1)
	assert.Equal(t, "Bindings/Counter.g.cs", res.Files[0].Name)
	assert.True(t, strings.Contains(string(res.Files[0].Content), "public long Value"))
}

func TestBuildSidecar(t *testing.T) {
	db := loadGame(t)
	res, _ := New(db, Options{Assembly: "Game"}).Generate(context.Background())
	sc := res.Sidecar
	require.NotNil(t, sc)
	assert.Equal(t, "Game", sc.Assembly)
	assert.Equal(t, metadata.SidecarVersion, sc.Version)
	require.Len(t, sc.Types, 7)

	var actor metadata.SidecarType
	for _, st := range sc.Types {
		if st.Name == "Actor" {
			actor = st
		}
	}
	assert.Equal(t, "class", actor.Kind)
	assert.Len(t, actor.Members, 15)
	assert.Equal(t, []string{"Array<Item>", "Array<Name>", "Map<int32,String>"}, actor.Templates)

	health := actor.Members[0]
	assert.Equal(t, "Health", health.Name)
	assert.Equal(t, metadata.MemberProperty, health.Kind)
	assert.Equal(t, int32(16), health.Offset)
	assert.Equal(t, "int", health.Managed)

	// The sidecar can be imported by another run.
	other, err := metadata.New(&metadata.Dump{})
	require.NoError(t, err)
	require.NoError(t, other.Import(sc))
	vec, ok := other.Type("Vector2")
	require.True(t, ok)
	assert.True(t, vec.External)
	require.NotNil(t, vec.Struct)
	assert.Len(t, vec.Struct.Fields, 2)
}

func TestPatch_CleanAssembly(t *testing.T) {
	db, err := metadata.LoadFile("../metadata/testdata/counter.yaml")
	require.NoError(t, err)
	g := New(db, Options{})
	plans, _, err := g.Plan(context.Background())
	require.NoError(t, err)
	stubs, err := patch.Stubs(plans)
	require.NoError(t, err)

	res, err := g.Patch(context.Background(), patchtest.Binary(stubs), patch.Options{})
	require.NoError(t, err)
	assert.Len(t, res.Patched, len(stubs))
	assert.Equal(t, 0, res.Diagnostics.Len())
}

func TestPatch_MergesPlanningDiagnostics(t *testing.T) {
	g := New(loadGame(t), Options{})
	plans, _, err := g.Plan(context.Background())
	require.NoError(t, err)
	stubs, err := patch.Stubs(plans)
	require.NoError(t, err)
	stubs = patchtest.Without(stubs, "Actor.Rename")

	res, err := g.Patch(context.Background(), patchtest.Binary(stubs), patch.Options{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Subset(t, symbols(res.Diagnostics), []string{"Actor.Handle", "Actor.Mystery"})
	assert.Contains(t, res.Unbound, "Actor.Rename")
	assert.Contains(t, res.Patched, "Actor.get_Health")
	assert.NotContains(t, res.Patched, "Actor.get_Handle")
	assert.NotEmpty(t, res.Binary)
}

func TestProbe_ContainerOwners(t *testing.T) {
	g := New(loadGame(t), Options{})

	pr, err := g.Probe("Map<int32, String>", 0, plan.OwnerClass)
	require.NoError(t, err)
	assert.Equal(t, "map", pr.Property.Translator)
	assert.Equal(t, "IDictionary<int, string>", pr.Property.ManagedType)
	assert.Equal(t, []string{"map"}, pr.Candidates)
	assert.Contains(t, pr.Source, "public IDictionary<int, string> Value")
	assert.Contains(t, pr.Source, "Value_Marshaller = new MapMarshaller<int, string>(Value_NativeProperty")

	pr, err = g.Probe("Map<int32, String>", 0, plan.OwnerStruct)
	require.NoError(t, err)
	assert.Equal(t, "Dictionary<int, string>", pr.Property.ManagedType)
	assert.Contains(t, pr.Source, "public unsafe partial struct Probe")
}

func TestProbe_Unsupported(t *testing.T) {
	g := New(loadGame(t), Options{})
	pr, err := g.Probe("void*", 0, plan.OwnerClass)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedType))
	if pr != nil {
		assert.Empty(t, pr.Source)
	}
}

// constInt32 overlaps the primitive translator on const int32 values, a
// shape the registry's overlap probes never build.
type constInt32 struct{ translator.Translator }

func (constInt32) Name() string { return "const_int32" }

func (constInt32) CanExport(t *descriptor.Type) bool {
	return t.Kind == descriptor.KindInt32 &&
		t.Flags.Has(descriptor.FlagConst) && !t.Flags.Has(descriptor.FlagReference)
}

func TestPlan_DebugRegistryWarnsOnAmbiguity(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := translator.Logger()
	translator.SetLogger(zap.New(core))
	defer translator.SetLogger(prev)

	db, err := metadata.LoadFile("../metadata/testdata/counter.yaml")
	require.NoError(t, err)
	entries := append(translator.DefaultEntries(), translator.Entry{Translator: constInt32{translator.Primitive}})

	quiet, err := translator.NewRegistry(entries)
	require.NoError(t, err)
	_, _, err = New(db, Options{Registry: quiet}).Plan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, logs.Len(), "ambiguity is only checked in debug mode")

	reg, err := translator.NewRegistry(entries, translator.WithDebug(true))
	require.NoError(t, err)
	plans, diags, err := New(db, Options{Registry: reg}).Plan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, diags.Len(), "ambiguity is a warning, not a diagnostic")

	for _, pp := range planOf(t, plans, "Counter").Properties {
		if pp.Name == "Limit" {
			assert.Equal(t, "primitive", pp.Translator, "the earlier registration wins")
		}
	}

	warned := logs.FilterMessage("ambiguous translator match").All()
	require.NotEmpty(t, warned)
	for _, e := range warned {
		assert.Equal(t, "primitive", e.ContextMap()["selected"])
		assert.Equal(t, "const_int32", e.ContextMap()["also"])
	}
}

func TestGenerate_ReturnedStringIsReleased(t *testing.T) {
	db, err := metadata.LoadFile("../metadata/testdata/counter.yaml")
	require.NoError(t, err)
	res, err := New(db, Options{Namespace: "Demo"}).Generate(context.Background())
	require.NoError(t, err)

	var counter string
	for _, f := range res.Files {
		if strings.HasSuffix(f.Name, "Counter.g.cs") {
			counter = string(f.Content)
		}
	}
	require.NotEmpty(t, counter)

	result := strings.Index(counter, "string result = StringMarshaller.FromNative(ReturnBuffer, 0);")
	release := strings.Index(counter, "StringMarshaller.DestructInstance(ReturnBuffer, 0);")
	require.Positive(t, result)
	require.Positive(t, release)
	assert.Less(t, result, release, "the return value is read before its native copy is released")

	plans, _, err := New(db, Options{}).Plan(context.Background())
	require.NoError(t, err)
	for _, fp := range planOf(t, plans, "Counter").Functions {
		switch fp.Name {
		case "Describe":
			assert.Len(t, fp.Return.Cleanup, 1)
		case "Add":
			assert.Empty(t, fp.Return.Cleanup, "blittable returns own nothing")
		}
	}
}
