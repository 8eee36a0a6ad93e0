package binding

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

var errNullHandle = stderrors.New("reflection returned the null handle")

// memberType keys the cached type-handle resolution of an owner.
const memberType MemberKind = 255

type siteKey struct {
	owner      string
	member     string
	function   string
	kind       MemberKind
	replicated bool
}

type siteEntry struct {
	site *Site
	err  error
	once sync.Once
}

// Resolver executes resolution programs against a Reflection. Each
// (owner, member) is resolved exactly once; results and failures are
// cached for the lifetime of the Resolver.
type Resolver struct {
	refl  bindgen.Reflection
	sites sync.Map // siteKey -> *siteEntry
}

func NewResolver(refl bindgen.Reflection) *Resolver {
	return &Resolver{refl: refl}
}

// Resolve returns the binding site of req, running its program on first
// use. Concurrent callers for the same site block until the first finishes.
func (r *Resolver) Resolve(req Request) (*Site, error) {
	key := siteKey{
		owner:      req.Owner,
		member:     req.Member,
		function:   req.Function,
		kind:       req.Kind,
		replicated: req.Replicated,
	}
	v, _ := r.sites.LoadOrStore(key, &siteEntry{})
	e := v.(*siteEntry)
	e.once.Do(func() {
		e.site, e.err = r.resolve(req)
		if e.err != nil {
			Logger().Debug("binding failed", zap.String("symbol", req.Symbol()), zap.Error(e.err))
			return
		}
		Logger().Debug("binding resolved",
			zap.String("symbol", req.Symbol()),
			zap.Int32("offset", e.site.Offset),
			zap.Int32("size", e.site.Size))
	})
	return e.site, e.err
}

// TypeHandle returns the cached native handle of owner.
func (r *Resolver) TypeHandle(owner string) (bindgen.Handle, error) {
	s, err := r.Resolve(Request{Owner: owner, Kind: memberType})
	if err != nil {
		return 0, err
	}
	return s.TypeHandle, nil
}

func (r *Resolver) resolve(req Request) (*Site, error) {
	site := &Site{
		refl:       r.refl,
		Owner:      req.Owner,
		Member:     req.Member,
		nativeName: req.NativeName,
		Kind:       req.Kind,
		Replicated: req.Replicated,
	}

	if req.Kind == memberType {
		env := make(map[string]int64)
		if err := r.run(req, TypeSteps(req.Owner, false), env, site); err != nil {
			return nil, err
		}
		site.State = Ready
		return site, nil
	}

	th, err := r.TypeHandle(req.Owner)
	if err != nil {
		return nil, err
	}
	env := map[string]int64{plan.TypeHandleField: int64(th)}
	site.TypeHandle = th
	site.State = TypeHandleResolved

	if req.Kind == MemberParameter {
		// Replicated on a parameter request marks the owning function.
		fn, err := r.Resolve(Request{
			Owner:      req.Owner,
			Member:     req.Function,
			NativeName: req.Function,
			Kind:       MemberFunction,
			Replicated: req.Replicated,
		})
		if err != nil {
			return nil, err
		}
		h := fn.FunctionHandle
		if fn.Replicated {
			local, err := r.query(plan.Resolve{Query: plan.QueryFunctionHandle, Name: req.Function}, th)
			if err != nil {
				return nil, errors.BindingFailed(req.Symbol(), plan.QueryFunctionHandle.String(), err)
			}
			h = bindgen.Handle(local)
		} else {
			site.FunctionHandle = h
		}
		env[plan.FunctionField(req.Function)] = int64(h)
		site.State = FunctionHandleResolved
	}

	if err := r.run(req, Steps(req), env, site); err != nil {
		return nil, err
	}
	site.State = Ready
	return site, nil
}

// run executes steps in order, recording each result in env and on site.
func (r *Resolver) run(req Request, steps []plan.Static, env map[string]int64, site *Site) error {
	for _, st := range steps {
		rs, ok := st.(plan.Resolve)
		if !ok {
			continue
		}
		owner := bindgen.Handle(env[rs.Owner])
		v, err := r.query(rs, owner)
		if err != nil {
			return errors.BindingFailed(req.Symbol(), rs.Query.String(), err)
		}
		env[rs.Field] = v

		switch rs.Query {
		case plan.QueryTypeHandle:
			site.TypeHandle = bindgen.Handle(v)
			site.State = TypeHandleResolved
		case plan.QueryFunctionHandle:
			// An uncached handle only feeds the steps after it.
			if rs.Cached {
				site.FunctionHandle = bindgen.Handle(v)
			}
			site.State = FunctionHandleResolved
		case plan.QueryPropertyHandle:
			site.PropertyHandle = bindgen.Handle(v)
		case plan.QueryPropertyOffset, plan.QueryOffsetByName:
			site.Offset = int32(v)
			site.State = OffsetResolved
		case plan.QueryParamsSize, plan.QueryStructSize:
			site.Size = int32(v)
			site.State = SizeResolved
		case plan.QueryBoolMask:
			site.Mask = uint8(v)
		}
	}
	return nil
}

func (r *Resolver) query(rs plan.Resolve, owner bindgen.Handle) (int64, error) {
	switch rs.Query {
	case plan.QueryTypeHandle:
		return handle(r.refl.NativeTypeHandle(rs.Name))
	case plan.QueryFunctionHandle:
		return handle(r.refl.NativeFunctionHandle(owner, rs.Name))
	case plan.QueryPropertyHandle:
		return handle(r.refl.NativePropertyHandle(owner, rs.Name))
	case plan.QueryPropertyOffset:
		return nonNegative(r.refl.PropertyOffset(owner))
	case plan.QueryOffsetByName:
		return nonNegative(r.refl.PropertyOffsetByName(owner, rs.Name))
	case plan.QueryParamsSize:
		return nonNegative(r.refl.FunctionParamsSize(owner))
	case plan.QueryStructSize:
		return nonNegative(r.refl.StructNativeSize(owner))
	case plan.QueryBoolMask:
		m, err := r.refl.BoolFieldMask(owner, rs.Name)
		if err != nil {
			return 0, err
		}
		if m == 0 {
			return 0, stderrors.New("bitfield mask is zero")
		}
		return int64(m), nil
	}
	return 0, stderrors.New("unknown query " + rs.Query.String())
}

func handle(h bindgen.Handle, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if h == 0 {
		return 0, errNullHandle
	}
	return int64(h), nil
}

func nonNegative(v int32, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, stderrors.New("reflection returned a negative value")
	}
	return int64(v), nil
}
