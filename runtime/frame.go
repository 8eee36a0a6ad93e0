package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/binding"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
)

// Frame is one invocation of a native function. Params and Return are the
// addresses of the parameter and return buffers the invoker claimed from
// its shadow stack.
type Frame struct {
	inst     *Instance
	Function *metadata.FunctionInfo
	Object   uint32
	Params   uint32
	Return   uint32
}

// Instance is the assembly the call came from.
func (f *Frame) Instance() *Instance { return f.inst }

// Arg reads a parameter from the parameter buffer.
func (f *Frame) Arg(name string) (any, error) {
	c, pi, err := f.param(name)
	if err != nil {
		return nil, err
	}
	return c.FromNative(f.inst.native, f.Params+uint32(pi.Offset), 0)
}

// SetArg writes an out or ref parameter back into the parameter buffer.
func (f *Frame) SetArg(name string, v any) error {
	c, pi, err := f.param(name)
	if err != nil {
		return err
	}
	return c.ToNative(f.inst.native, f.Params+uint32(pi.Offset), 0, v)
}

// SetReturn writes the return value into the return buffer.
func (f *Frame) SetReturn(v any) error {
	if f.Function.Return == nil {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Symbol(f.symbol()).
			Detail("function returns nothing").
			Build()
	}
	c, _, err := f.inst.runtime.codec(f.Function.Return.Handle, plan.OwnerFunction)
	if err != nil {
		return err
	}
	return c.ToNative(f.inst.native, f.Return, 0, v)
}

// Self reads a property of the receiver.
func (f *Frame) Self(member string) (any, error) {
	return f.inst.Property(f.Object, f.Function.Owner.Name, member)
}

// SetSelf writes a property of the receiver.
func (f *Frame) SetSelf(member string, v any) error {
	return f.inst.SetProperty(f.Object, f.Function.Owner.Name, member, v)
}

func (f *Frame) param(name string) (marshal.Codec, *metadata.PropertyInfo, error) {
	for _, p := range f.Function.Params {
		if p.Name == name {
			return f.inst.runtime.codec(p.Handle, plan.OwnerFunction)
		}
	}
	return nil, nil, errors.NotFound(errors.PhaseHost, "parameter", f.symbol()+"."+name)
}

func (f *Frame) symbol() string {
	return f.Function.Owner.Name + "." + f.Function.Name
}

// Invoke calls class.function on object from Go the way generated code
// does. args are marshalled into a scratch parameter buffer, the bound
// native runs, and the return value plus every out and ref parameter are
// read back under their parameter names (metadata.ReturnName for the
// return value). Replicated functions dispatch through the class object
// is registered as.
func (i *Instance) Invoke(ctx context.Context, object uint32, class, function string, args map[string]any) (map[string]any, error) {
	r := i.runtime
	t, ok := r.db.Type(class)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "type", class)
	}
	fh, err := r.db.NativeFunctionHandle(t.Handle, function)
	if err != nil {
		return nil, err
	}
	declared, _ := r.db.Function(fh)
	site, err := r.resolver.Resolve(binding.Request{
		Owner:      declared.Owner.Name,
		Member:     function,
		NativeName: function,
		Kind:       binding.MemberFunction,
		Replicated: declared.Flags.Has(descriptor.FlagReplicated),
	})
	if err != nil {
		return nil, err
	}
	h, err := site.Invocation(object)
	if err != nil {
		return nil, err
	}
	fi, ok := r.db.Function(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "function handle", fmt.Sprint(h))
	}

	scratch := marshal.NewScratch()
	defer scratch.Release(i.native.Alloc)
	f := &Frame{inst: i, Object: object, Function: fi}
	if f.Params, err = scratch.Alloc(i.native, max(uint32(site.Size), 1), 8); err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindAllocation, err, "allocate parameter buffer")
	}
	if fi.Return != nil {
		if fi.Return.Err != nil {
			return nil, fi.Return.Err
		}
		size, err := layout.Total(fi.Return.Type)
		if err != nil {
			return nil, err
		}
		if f.Return, err = scratch.Alloc(i.native, max(size, 1), 8); err != nil {
			return nil, errors.Wrap(errors.PhaseHost, errors.KindAllocation, err, "allocate return buffer")
		}
	}

	defer f.release()
	for name, v := range args {
		if err := f.SetArg(name, v); err != nil {
			return nil, err
		}
	}
	if err := r.call(ctx, f); err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, p := range fi.Params {
		if p.Err != nil || plan.DirectionOf(p.Type.Flags) == plan.In {
			continue
		}
		v, err := f.Arg(p.Name)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	if fi.Return != nil {
		c, _, err := r.codec(fi.Return.Handle, plan.OwnerFunction)
		if err != nil {
			return nil, err
		}
		v, err := c.FromNative(i.native, f.Return, 0)
		if err != nil {
			return nil, err
		}
		out[metadata.ReturnName] = v
	}
	return out, nil
}

// release destroys the payloads parameters and the return value own.
func (f *Frame) release() {
	members := f.Function.Params
	if f.Function.Return != nil {
		members = append(members[:len(members):len(members)], f.Function.Return)
	}
	for _, p := range members {
		c, _, err := f.inst.runtime.codec(p.Handle, plan.OwnerFunction)
		if err != nil {
			continue
		}
		addr := f.Params + uint32(p.Offset)
		if p == f.Function.Return {
			addr = f.Return
		}
		if err := marshal.Destroy(c, f.inst.native, addr, 0); err != nil {
			Logger().Debug("release failed", zap.String("member", f.symbol()+"."+p.Name), zap.Error(err))
		}
	}
}

func (r *Runtime) call(ctx context.Context, f *Frame) error {
	fn, err := r.native(f.Function)
	if err != nil {
		return err
	}
	if err := fn(ctx, f); err != nil {
		return errors.BindingFailed(f.symbol(), "native call", err)
	}
	return nil
}
