package runtime_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/native-bindgen/emit/patch"
	"github.com/wippyai/native-bindgen/emit/patch/patchtest"
	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
	"github.com/wippyai/native-bindgen/runtime"
)

type fixture struct {
	rt   *runtime.Runtime
	inst *runtime.Instance
	obj  uint32
}

func loadCounter(t *testing.T) (*metadata.Database, []*plan.TypePlan) {
	t.Helper()
	db, err := metadata.LoadFile("../metadata/testdata/counter.yaml")
	require.NoError(t, err)
	plans, diags, err := generator.New(db, generator.Options{}).Plan(context.Background())
	require.NoError(t, err)
	require.Zero(t, diags.Len(), diags.String())
	return db, plans
}

func patched(t *testing.T, plans []*plan.TypePlan) []byte {
	t.Helper()
	stubs, err := patch.Stubs(plans)
	require.NoError(t, err)
	res, err := patch.Patch(context.Background(), patchtest.Binary(stubs), plans, patch.Options{})
	require.NoError(t, err)
	return res.Binary
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, plans := loadCounter(t)

	rt, err := runtime.New(ctx, db, runtime.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.Load(ctx, patched(t, plans))
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)

	obj, err := inst.New("Counter")
	require.NoError(t, err)
	return &fixture{rt: rt, inst: inst, obj: obj}
}

func (f *fixture) call(t *testing.T, name string, args ...uint64) []uint64 {
	t.Helper()
	res, err := f.inst.Call(context.Background(), name, args...)
	require.NoError(t, err)
	return res
}

func TestInstantiate_RunsResolutionProgramOnce(t *testing.T) {
	f := newFixture(t)
	// Label, Describe's Prefix and Describe's return value.
	assert.Equal(t, 3, f.inst.Cells())

	f.call(t, "Counter.__bind")
	f.call(t, "Point.__bind")
	assert.Equal(t, 3, f.inst.Cells())
}

func TestProperty_Primitives(t *testing.T) {
	f := newFixture(t)
	obj := uint64(f.obj)

	f.call(t, "Counter.set_Count", obj, api.EncodeI32(-41))
	assert.Equal(t, int32(-41), api.DecodeI32(f.call(t, "Counter.get_Count", obj)[0]))
	raw, err := f.inst.Memory().ReadU32(f.obj + 8)
	require.NoError(t, err)
	assert.Equal(t, int32(-41), int32(raw))

	f.call(t, "Counter.set_Ratio", obj, api.EncodeF64(0.25))
	assert.Equal(t, 0.25, api.DecodeF64(f.call(t, "Counter.get_Ratio", obj)[0]))

	f.call(t, "Counter.set_Big", obj, api.EncodeI64(1<<40))
	assert.Equal(t, int64(1<<40), int64(f.call(t, "Counter.get_Big", obj)[0]))

	v, err := f.inst.Property(f.obj, "Counter", "Big")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), v)
}

func TestProperty_BitfieldKeepsNeighbourBits(t *testing.T) {
	f := newFixture(t)
	obj := uint64(f.obj)
	mem := f.inst.Memory()
	require.NoError(t, mem.WriteU8(f.obj+32, 0x01))

	f.call(t, "Counter.set_bArmed", obj, 1)
	b, err := mem.ReadU8(f.obj + 32)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x05), b)
	assert.Equal(t, uint64(1), f.call(t, "Counter.get_bArmed", obj)[0])

	armed, err := f.inst.Property(f.obj, "Counter", "bArmed")
	require.NoError(t, err)
	assert.Equal(t, true, armed)

	f.call(t, "Counter.set_bArmed", obj, 0)
	b, err = mem.ReadU8(f.obj + 32)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), b)
	assert.Equal(t, uint64(0), f.call(t, "Counter.get_bArmed", obj)[0])
}

func TestProperty_StringThroughHandles(t *testing.T) {
	f := newFixture(t)
	obj := uint64(f.obj)

	empty := f.call(t, "Counter.get_Label", obj)[0]
	v, ok := f.inst.Value(uint32(empty))
	require.True(t, ok)
	assert.Equal(t, "", v)

	f.call(t, "Counter.set_Label", obj, uint64(f.inst.Put("héllo")))
	h := uint32(f.call(t, "Counter.get_Label", obj)[0])
	v, ok = f.inst.Value(h)
	require.True(t, ok)
	assert.Equal(t, "héllo", v)
	f.inst.Release(h)
	_, ok = f.inst.Value(h)
	assert.False(t, ok)

	native, err := f.inst.Property(f.obj, "Counter", "Label")
	require.NoError(t, err)
	assert.Equal(t, "héllo", native)
}

func TestProperty_WrongValueTypeTraps(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Call(context.Background(), "Counter.set_Label", uint64(f.obj), uint64(f.inst.Put(42)))
	require.Error(t, err)
	assert.ErrorContains(t, err, "type_mismatch")
}

func TestStruct_Fields(t *testing.T) {
	f := newFixture(t)
	p, err := f.inst.New("Point")
	require.NoError(t, err)

	f.call(t, "Point.set_X", uint64(p), api.EncodeF32(1.5))
	f.call(t, "Point.set_Y", uint64(p), api.EncodeF32(-2))
	assert.Equal(t, float32(1.5), api.DecodeF32(f.call(t, "Point.get_X", uint64(p))[0]))

	y, err := f.inst.Property(p, "Point", "Y")
	require.NoError(t, err)
	assert.Equal(t, float32(-2), y)
}

func TestInvoke_OutParamAndReturn(t *testing.T) {
	f := newFixture(t)
	f.rt.Bind("Counter", "Add", func(_ context.Context, fr *runtime.Frame) error {
		amount, err := fr.Arg("Amount")
		if err != nil {
			return err
		}
		count, err := fr.Self("Count")
		if err != nil {
			return err
		}
		next := count.(int32) + amount.(int32)
		if err := fr.SetSelf("Count", next); err != nil {
			return err
		}
		if err := fr.SetArg("Total", next*10); err != nil {
			return err
		}
		return fr.SetReturn(next)
	})

	out, err := f.inst.Alloc(4, 4)
	require.NoError(t, err)
	obj := uint64(f.obj)
	f.call(t, "Counter.set_Count", obj, api.EncodeI32(2))

	res := f.call(t, "Counter.Add", obj, api.EncodeI32(5), uint64(out))
	assert.Equal(t, int32(7), api.DecodeI32(res[0]))
	total, err := f.inst.Memory().ReadU32(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(70), total)
	assert.Equal(t, int32(7), api.DecodeI32(f.call(t, "Counter.get_Count", obj)[0]))

	// The parameter buffer is released after every call.
	for range 100 {
		f.call(t, "Counter.Add", obj, api.EncodeI32(1), uint64(out))
	}
	assert.Equal(t, int32(107), api.DecodeI32(f.call(t, "Counter.get_Count", obj)[0]))
}

func TestInvoke_RefParamReadAndWrittenBack(t *testing.T) {
	f := newFixture(t)
	f.rt.Bind("Counter", "Scale", func(_ context.Context, fr *runtime.Frame) error {
		factor, err := fr.Arg("Factor")
		if err != nil {
			return err
		}
		count, err := fr.Self("Count")
		if err != nil {
			return err
		}
		if err := fr.SetSelf("Count", count.(int32)*factor.(int32)); err != nil {
			return err
		}
		return fr.SetArg("Factor", count)
	})

	ref, err := f.inst.Alloc(4, 4)
	require.NoError(t, err)
	require.NoError(t, f.inst.Memory().WriteU32(ref, 3))
	obj := uint64(f.obj)
	f.call(t, "Counter.set_Count", obj, api.EncodeI32(4))

	f.call(t, "Counter.Scale", obj, uint64(ref))
	assert.Equal(t, int32(12), api.DecodeI32(f.call(t, "Counter.get_Count", obj)[0]))
	old, err := f.inst.Memory().ReadU32(ref)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), old)
}

func TestInvoke_StringParamAndReturn(t *testing.T) {
	f := newFixture(t)
	f.rt.Bind("Counter", "Describe", func(_ context.Context, fr *runtime.Frame) error {
		prefix, err := fr.Arg("Prefix")
		if err != nil {
			return err
		}
		count, err := fr.Self("Count")
		if err != nil {
			return err
		}
		return fr.SetReturn(fmt.Sprintf("%s%d", prefix, count))
	})
	obj := uint64(f.obj)
	f.call(t, "Counter.set_Count", obj, api.EncodeI32(42))

	h := f.call(t, "Counter.Describe", obj, uint64(f.inst.Put("count=")))[0]
	v, ok := f.inst.Value(uint32(h))
	require.True(t, ok)
	assert.Equal(t, "count=42", v)
}

func TestInvoke_ReplicatedResolvesThroughInstance(t *testing.T) {
	f := newFixture(t)
	var ticks []uint32
	f.rt.Bind("Counter", "Tick", func(_ context.Context, fr *runtime.Frame) error {
		ticks = append(ticks, fr.Object)
		return nil
	})

	f.call(t, "Counter.Tick", uint64(f.obj))
	f.call(t, "Counter.Tick", uint64(f.obj))
	assert.Equal(t, []uint32{f.obj, f.obj}, ticks)

	other, err := f.inst.New("Counter")
	require.NoError(t, err)
	f.call(t, "Counter.Tick", uint64(other))
	assert.Equal(t, []uint32{f.obj, f.obj, other}, ticks)

	// Each call resolves through its own receiver, so an object with no
	// registered class fails even after earlier calls succeeded.
	stray, err := f.inst.Alloc(16, 8)
	require.NoError(t, err)
	_, err = f.inst.Call(context.Background(), "Counter.Tick", uint64(stray))
	require.Error(t, err)
	assert.Len(t, ticks, 3)
}

func TestInstance_InvokeFromGo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rt.Bind("Counter", "Add", func(_ context.Context, fr *runtime.Frame) error {
		amount, err := fr.Arg("Amount")
		if err != nil {
			return err
		}
		if err := fr.SetArg("Total", amount.(int32)*10); err != nil {
			return err
		}
		return fr.SetReturn(amount.(int32) + 1)
	})
	f.rt.Bind("Counter", "Describe", func(_ context.Context, fr *runtime.Frame) error {
		prefix, err := fr.Arg("Prefix")
		if err != nil {
			return err
		}
		return fr.SetReturn(prefix.(string) + "!")
	})

	out, err := f.inst.Invoke(ctx, f.obj, "Counter", "Add", map[string]any{"Amount": int32(5)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Total": int32(50), metadata.ReturnName: int32(6)}, out)

	for range 50 {
		out, err = f.inst.Invoke(ctx, f.obj, "Counter", "Describe", map[string]any{"Prefix": "hi"})
		require.NoError(t, err)
	}
	assert.Equal(t, "hi!", out[metadata.ReturnName])

	_, err = f.inst.Invoke(ctx, f.obj, "Counter", "Add", map[string]any{"Missing": int32(1)})
	assert.ErrorContains(t, err, "Missing")

	_, err = f.inst.Invoke(ctx, f.obj, "Counter", "Nope", nil)
	assert.Error(t, err)
}

func TestInstance_InvokeReplicatedFromGo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ticks []uint32
	f.rt.Bind("Counter", "Tick", func(_ context.Context, fr *runtime.Frame) error {
		ticks = append(ticks, fr.Object)
		return nil
	})

	out, err := f.inst.Invoke(ctx, f.obj, "Counter", "Tick", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	stray, err := f.inst.Alloc(16, 8)
	require.NoError(t, err)
	_, err = f.inst.Invoke(ctx, stray, "Counter", "Tick", nil)
	require.Error(t, err)
	assert.Equal(t, []uint32{f.obj}, ticks)
}

func TestInvoke_UnboundNativeTraps(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Call(context.Background(), "Counter.Tick", uint64(f.obj))
	require.Error(t, err)
	assert.ErrorContains(t, err, "Counter.Tick")

	f.rt.Bind("Counter", "Tick", func(context.Context, *runtime.Frame) error { return nil })
	_, err = f.inst.Call(context.Background(), "Counter.Tick", uint64(f.obj))
	assert.NoError(t, err)
}

func TestInstantiate_MarshallerMismatchFails(t *testing.T) {
	ctx := context.Background()
	db, plans := loadCounter(t)
	for _, tp := range plans {
		for i := range tp.Properties {
			pp := &tp.Properties[i]
			if pp.Name == "Label" {
				get := pp.Get.(plan.Call)
				get.Static = "NameMarshaller"
				pp.Get = get
			}
		}
	}

	rt, err := runtime.New(ctx, db, runtime.Options{})
	require.NoError(t, err)
	defer rt.Close(ctx)
	mod, err := rt.Load(ctx, patched(t, plans))
	require.NoError(t, err)
	_, err = mod.Instantiate(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "registry selects StringMarshaller")
}

func TestCall_UnknownExport(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Call(context.Background(), "Counter.get_Nothing", 0)
	assert.ErrorContains(t, err, "Counter.get_Nothing")
}
