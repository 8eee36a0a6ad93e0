package generator

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/native-bindgen/emit/patch"
	"github.com/wippyai/native-bindgen/emit/source"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
	"github.com/wippyai/native-bindgen/translator"
)

// Options configures a generation run.
type Options struct {
	// Registry defaults to translator.Default().
	Registry *translator.Registry
	// Namespace is used for types whose metadata carries none.
	Namespace string
	// Assembly names the sidecar of this run.
	Assembly string
	// Parallelism bounds the number of types translated at once. Zero uses
	// GOMAXPROCS.
	Parallelism int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Namespace:   "Bindings",
		Assembly:    "Bindings",
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Registry == nil {
		o.Registry = translator.Default()
	}
	if o.Namespace == "" {
		o.Namespace = d.Namespace
	}
	if o.Assembly == "" {
		o.Assembly = d.Assembly
	}
	if o.Parallelism <= 0 {
		o.Parallelism = d.Parallelism
	}
	return o
}

// Generator translates the types of a metadata database.
type Generator struct {
	db   *metadata.Database
	opts Options
}

// New creates a generator over db.
func New(db *metadata.Database, opts Options) *Generator {
	return &Generator{db: db, opts: opts.withDefaults()}
}

// Result is the output of a run. It is returned even when the run fails so
// callers can report what was generated.
type Result struct {
	Diagnostics *errors.Diagnostics
	Sidecar     *metadata.Sidecar
	// Plans holds one plan per bound type, in metadata order.
	Plans []*plan.TypePlan
	Files []source.File
}

// Plan translates every local type. Types are planned in parallel; the
// members of one type are planned sequentially. Member failures are
// collected in the returned diagnostics; the error is non-nil only when
// ctx is cancelled.
func (g *Generator) Plan(ctx context.Context) ([]*plan.TypePlan, *errors.Diagnostics, error) {
	var types []*metadata.TypeInfo
	for _, ti := range g.db.Types() {
		if !ti.External {
			types = append(types, ti)
		}
	}

	diags := &errors.Diagnostics{}
	p := &planner{reg: g.opts.Registry, diags: diags, namespace: g.opts.Namespace}
	plans := make([]*plan.TypePlan, len(types))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Parallelism)
	for i, ti := range types {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plans[i] = p.typePlan(ti)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, diags, err
	}

	out := plans[:0]
	for _, tp := range plans {
		if tp != nil {
			out = append(out, tp)
		}
	}
	Logger().Debug("planned types",
		zap.Int("types", len(out)),
		zap.Int("diagnostics", diags.Len()))
	return out, diags, nil
}

// Generate plans every type, renders its source and builds the sidecar.
// A fatal diagnostic fails the run after every type has been processed;
// members that failed are absent from the output, their siblings are not.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	plans, diags, err := g.Plan(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Diagnostics: diags, Plans: plans}

	for _, tp := range plans {
		f, err := source.Render(tp)
		if err != nil {
			diags.Add(errors.SeverityError, err)
			continue
		}
		res.Files = append(res.Files, f)
	}
	res.Sidecar = BuildSidecar(g.opts.Assembly, g.db, plans)

	Logger().Info("generation finished",
		zap.Int("files", len(res.Files)),
		zap.Int("diagnostics", diags.Len()),
		zap.Bool("failed", diags.Fatal()))
	return res, diags.Err()
}

// Patch plans every type and rewrites the member stubs of the compiled
// assembly bin. Planning and patching diagnostics are merged; as with
// Generate, the result is returned even when the run fails.
func (g *Generator) Patch(ctx context.Context, bin []byte, opts patch.Options) (*patch.Result, error) {
	plans, diags, err := g.Plan(ctx)
	if err != nil {
		return nil, err
	}
	res, err := patch.Patch(ctx, bin, plans, opts)
	if res == nil {
		return nil, err
	}
	diags.Merge(res.Diagnostics)
	res.Diagnostics = diags

	Logger().Info("patch finished",
		zap.Int("patched", len(res.Patched)),
		zap.Int("unbound", len(res.Unbound)),
		zap.Int("diagnostics", diags.Len()),
		zap.Bool("failed", diags.Fatal()))
	return res, diags.Err()
}
