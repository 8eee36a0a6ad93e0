package runtime

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/emit/patch"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// instantiateHost registers one Go function per import of the patch ABI.
// Host functions report failures by panicking; wazero turns the panic into
// an error returned from the guest call that reached it.
func (r *Runtime) instantiateHost(ctx context.Context) error {
	funcs := map[string]api.GoModuleFunc{
		patch.ImportTypeHandle:       r.typeHandle,
		patch.ImportFunctionHandle:   r.functionHandle,
		patch.ImportPropertyHandle:   r.propertyHandle,
		patch.ImportPropertyOffset:   r.propertyOffset,
		patch.ImportOffsetByName:     r.offsetByName,
		patch.ImportParamsSize:       r.paramsSize,
		patch.ImportStructSize:       r.structSize,
		patch.ImportBoolMask:         r.boolMask,
		patch.ImportInstanceFunction: r.instanceFunction,
		patch.ImportCellNew:          r.cellNew,
		patch.ImportFromNative:       r.fromNative,
		patch.ImportToNative:         r.toNative,
		patch.ImportDestroy:          r.destroy,
		patch.ImportInvoke:           r.invoke,
	}

	builder := r.wazero.NewHostModuleBuilder(patch.ImportModule)
	for _, imp := range patch.Imports {
		fn, ok := funcs[imp.Name]
		if !ok {
			return errors.NotFound(errors.PhaseHost, "host function", imp.Name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn, valueTypes(imp.Type.Params), valueTypes(imp.Type.Results)).
			Export(imp.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindBindingFailed, err, "instantiate host module")
	}
	return nil
}

func valueTypes(in []assembly.ValType) []api.ValueType {
	out := make([]api.ValueType, len(in))
	for i, v := range in {
		out[i] = api.ValueType(v)
	}
	return out
}

// trap aborts the current guest call with err.
func trap(err error) {
	Logger().Debug("host call failed", zap.Error(err))
	panic(err)
}

func check[T any](v T, err error) T {
	if err != nil {
		trap(err)
	}
	return v
}

func handle(v uint64) bindgen.Handle { return bindgen.Handle(uint32(v)) }

func (r *Runtime) typeHandle(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[0], stack[1])
	stack[0] = uint64(check(r.db.NativeTypeHandle(name)))
}

func (r *Runtime) functionHandle(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[1], stack[2])
	stack[0] = uint64(check(r.db.NativeFunctionHandle(handle(stack[0]), name)))
}

func (r *Runtime) propertyHandle(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[1], stack[2])
	stack[0] = uint64(check(r.db.NativePropertyHandle(handle(stack[0]), name)))
}

func (r *Runtime) propertyOffset(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(check(r.db.PropertyOffset(handle(stack[0]))))
}

func (r *Runtime) offsetByName(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[1], stack[2])
	stack[0] = api.EncodeI32(check(r.db.PropertyOffsetByName(handle(stack[0]), name)))
}

func (r *Runtime) paramsSize(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(check(r.db.FunctionParamsSize(handle(stack[0]))))
}

func (r *Runtime) structSize(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(check(r.db.StructNativeSize(handle(stack[0]))))
}

func (r *Runtime) boolMask(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[1], stack[2])
	stack[0] = uint64(check(r.db.BoolFieldMask(handle(stack[0]), name)))
}

func (r *Runtime) instanceFunction(ctx context.Context, mod api.Module, stack []uint64) {
	name := instanceOf(ctx, mod).name(stack[1], stack[2])
	stack[0] = uint64(check(r.db.InstanceFunctionHandle(uint32(stack[0]), name)))
}

// cellNew builds the codec of a member from its property handle. The
// marshaller the assembly was generated against must be the one the
// registry selects for the property today.
func (r *Runtime) cellNew(ctx context.Context, mod api.Module, stack []uint64) {
	inst := instanceOf(ctx, mod)
	want := inst.name(stack[0], stack[1])
	owner := plan.OwnerKind(uint32(stack[3]))

	c, pi := check2(r.codec(handle(stack[2]), owner))
	m := check(r.lookup(pi))
	if got := m.Translator.Marshaller(m, owner); got != want {
		trap(errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Symbol(pi.Name).
			ManagedType(want).
			NativeType(pi.TypeName).
			Detail("assembly expects marshaller %s, registry selects %s", want, got).
			Build())
	}
	stack[0] = uint64(inst.addCell(want, c))
	Logger().Debug("cell created", zap.String("member", pi.Name), zap.String("marshaller", want))
}

func (r *Runtime) fromNative(ctx context.Context, mod api.Module, stack []uint64) {
	inst := instanceOf(ctx, mod)
	c := inst.cell(uint32(stack[0]))
	v := check(c.FromNative(inst.native, uint32(stack[1]), int(api.DecodeI32(stack[2]))))
	stack[0] = uint64(inst.native.Objects.Insert(v))
}

func (r *Runtime) toNative(ctx context.Context, mod api.Module, stack []uint64) {
	inst := instanceOf(ctx, mod)
	c := inst.cell(uint32(stack[0]))
	v, _ := inst.Value(uint32(stack[3]))
	if err := c.ToNative(inst.native, uint32(stack[1]), int(api.DecodeI32(stack[2])), v); err != nil {
		trap(err)
	}
}

func (r *Runtime) destroy(ctx context.Context, mod api.Module, stack []uint64) {
	inst := instanceOf(ctx, mod)
	c := inst.cell(uint32(stack[0]))
	if err := marshal.Destroy(c, inst.native, uint32(stack[1]), int(api.DecodeI32(stack[2]))); err != nil {
		trap(err)
	}
}

func (r *Runtime) invoke(ctx context.Context, mod api.Module, stack []uint64) {
	inst := instanceOf(ctx, mod)
	fi, ok := r.db.Function(handle(stack[1]))
	if !ok {
		trap(errors.NotFound(errors.PhaseHost, "function handle", fmt.Sprint(uint32(stack[1]))))
	}
	f := &Frame{
		inst:     inst,
		Object:   uint32(stack[0]),
		Function: fi,
		Params:   uint32(stack[2]),
		Return:   uint32(stack[3]),
	}
	if err := r.call(ctx, f); err != nil {
		trap(err)
	}
}

func check2[A, B any](a A, b B, err error) (A, B) {
	if err != nil {
		trap(err)
	}
	return a, b
}
