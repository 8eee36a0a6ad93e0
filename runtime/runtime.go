package runtime

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/binding"
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
	"github.com/wippyai/native-bindgen/translator"
)

// NativeFunc implements a reflected function. It reads its arguments from
// and writes its results to the frame's buffers.
type NativeFunc func(ctx context.Context, f *Frame) error

// Options configures a Runtime.
type Options struct {
	// Registry defaults to translator.Default().
	Registry *translator.Registry
}

// Runtime hosts patched assemblies against one reflection database.
type Runtime struct {
	wazero   wazero.Runtime
	db       *metadata.Database
	reg      *translator.Registry
	resolver *binding.Resolver
	natives  map[string]NativeFunc
	seq      atomic.Uint64
	mu       sync.RWMutex
}

// New creates a runtime and instantiates the host module patched
// assemblies import.
func New(ctx context.Context, db *metadata.Database, opts Options) (*Runtime, error) {
	if db == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "reflection database is required")
	}
	if opts.Registry == nil {
		opts.Registry = translator.Default()
	}
	r := &Runtime{
		wazero:   wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig()),
		db:       db,
		reg:      opts.Registry,
		resolver: binding.NewResolver(db),
		natives:  make(map[string]NativeFunc),
	}
	if err := r.instantiateHost(ctx); err != nil {
		_ = r.wazero.Close(ctx)
		return nil, err
	}
	return r, nil
}

// Close releases all runtime resources, including every instance.
func (r *Runtime) Close(ctx context.Context) error {
	return r.wazero.Close(ctx)
}

// Bind registers the implementation of owner.function. Bindings may be
// added at any time; they are looked up on every invocation.
func (r *Runtime) Bind(owner, function string, fn NativeFunc) {
	r.mu.Lock()
	r.natives[owner+"."+function] = fn
	r.mu.Unlock()
}

func (r *Runtime) native(fi *metadata.FunctionInfo) (NativeFunc, error) {
	key := fi.Owner.Name + "." + fi.Name
	r.mu.RLock()
	fn, ok := r.natives[key]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "native function", key)
	}
	return fn, nil
}

// Load compiles a patched assembly.
func (r *Runtime) Load(ctx context.Context, bin []byte) (*Module, error) {
	compiled, err := r.wazero.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "compile assembly")
	}
	return &Module{runtime: r, compiled: compiled}, nil
}

// codec returns the runtime codec of a member. The member's binding site is
// resolved against the database first; its codec is built once per site.
func (r *Runtime) codec(prop bindgen.Handle, owner plan.OwnerKind) (marshal.Codec, *metadata.PropertyInfo, error) {
	pi, ok := r.db.Property(prop)
	if !ok {
		return nil, nil, errors.NotFound(errors.PhaseHost, "property handle", fmt.Sprint(prop))
	}
	req, kind, err := memberRequest(pi)
	if err != nil {
		return nil, nil, err
	}
	if owner != kind {
		return nil, nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Symbol(req.Symbol()).
			Detail("member is owned by a %s, not a %s", kind, owner).
			Build()
	}
	site, err := r.resolver.Resolve(req)
	if err != nil {
		return nil, nil, err
	}
	c, err := site.Codec(func() (marshal.Codec, error) {
		m, err := r.lookup(pi)
		if err != nil {
			return nil, err
		}
		return r.reg.NewCodec(m, translator.CodecOptions{Owner: kind, Mask: site.Mask})
	})
	if err != nil {
		return nil, nil, err
	}
	return c, pi, nil
}

// memberRequest describes the binding site of pi and the kind of its owner.
func memberRequest(pi *metadata.PropertyInfo) (binding.Request, plan.OwnerKind, error) {
	req := binding.Request{Member: pi.Name, NativeName: pi.Name, Bitfield: pi.Mask != 0}
	switch {
	case pi.Function != nil:
		fn := pi.Function
		req.Owner = fn.Owner.Name
		req.Member = plan.ParamMember(fn.Name, pi.Name)
		req.Function = fn.Name
		req.Kind = binding.MemberParameter
		req.Replicated = fn.Flags.Has(descriptor.FlagReplicated)
		return req, plan.OwnerFunction, nil
	case pi.Owner != nil:
		req.Owner = pi.Owner.Name
		req.Kind = binding.MemberProperty
		if pi.Owner.IsStruct() {
			return req, plan.OwnerStruct, nil
		}
		return req, plan.OwnerClass, nil
	}
	return req, 0, errors.NotFound(errors.PhaseHost, "member owner", pi.Name)
}

func (r *Runtime) lookup(pi *metadata.PropertyInfo) (*translator.Match, error) {
	t, err := r.db.PropertyType(pi.Handle)
	if err != nil {
		return nil, err
	}
	return r.reg.Lookup(t)
}

// Module is a compiled patched assembly.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
}

// Instantiate runs the assembly's start function, which runs every
// type's resolution program, and returns the live instance.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	r := m.runtime
	inst := &Instance{runtime: r}
	name := "assembly-" + strconv.FormatUint(r.seq.Add(1), 10)
	mod, err := r.wazero.InstantiateModule(withInstance(ctx, inst), m.compiled,
		wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindBindingFailed, err, "instantiate assembly")
	}
	inst.attach(mod)
	Logger().Info("assembly instantiated",
		zap.String("module", name),
		zap.Int("cells", inst.Cells()))
	return inst, nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
