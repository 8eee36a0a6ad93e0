package translator

import (
	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/plan"
)

// Translator is the conversion and codegen strategy for one or more
// descriptor kinds. Translators are stateless and shared by every lookup.
type Translator interface {
	Name() string
	Kinds() []descriptor.Kind

	// CanExport is the predicate refining a kind match.
	CanExport(t *descriptor.Type) bool

	ManagedType(m *Match, owner plan.OwnerKind) string
	Marshaller(m *Match, owner plan.OwnerKind) string

	// Composite reports whether the member needs a once-initialised
	// marshaller cell built from its property handle.
	Composite(m *Match) bool

	FromNative(ctx *Context) (plan.Expr, error)
	ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error)
	StaticBinding(ctx *Context) ([]plan.Static, error)
	Cleanup(ctx *Context) ([]plan.Stmt, error)

	NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error)
}

// Validator is implemented by translators with constraints beyond their
// predicate. A failing Validate makes the descriptor invalid rather than
// unsupported.
type Validator interface {
	Validate(t *descriptor.Type) error
}

// Match is the result of a registry lookup. Args holds the matches of
// container children in descriptor order.
type Match struct {
	Type       *descriptor.Type
	Translator Translator
	Args       []*Match
	Index      int
}

// Elem returns the first child match.
func (m *Match) Elem() *Match {
	if len(m.Args) > 0 {
		return m.Args[0]
	}
	return nil
}

// Composite is shorthand for m.Translator.Composite(m).
func (m *Match) Composite() bool {
	return m.Translator.Composite(m)
}

// Context carries everything a translator needs to emit one member.
type Context struct {
	Match *Match
	// Member is the field-naming key, e.g. "Health" or "Fire_Target".
	Member string
	// NativeName is the member's name in reflection metadata.
	NativeName string
	// OwnerField names the field holding the owning type or function handle.
	OwnerField string
	Addr       plan.Address
	Owner      plan.OwnerKind
}

func (c *Context) CellField() string     { return plan.CellField(c.Member) }
func (c *Context) MaskField() string     { return plan.MaskField(c.Member) }
func (c *Context) PropertyField() string { return plan.PropertyField(c.Member) }

// CodecOptions parameterise runtime codec construction.
type CodecOptions struct {
	Registry *Registry
	Owner    plan.OwnerKind
	// Mask is the resolved bit of a bitfield bool.
	Mask uint8
}

// base supplies the defaults shared by most translators.
type base struct {
	name  string
	kinds []descriptor.Kind
}

func (b base) Name() string             { return b.name }
func (b base) Kinds() []descriptor.Kind { return b.kinds }
func (base) Composite(*Match) bool      { return false }

func (base) StaticBinding(*Context) ([]plan.Static, error) { return nil, nil }
func (base) Cleanup(*Context) ([]plan.Stmt, error)         { return nil, nil }

// static is embedded by translators whose marshaller is a type with static
// FromNative and ToNative methods.
type static struct {
	base
	marshaller func(m *Match) string
	owned      bool
}

func (s static) Marshaller(m *Match, _ plan.OwnerKind) string {
	return s.marshaller(m)
}

func (s static) FromNative(ctx *Context) (plan.Expr, error) {
	return plan.Call{Static: s.marshaller(ctx.Match), Method: "FromNative", Addr: ctx.Addr}, nil
}

func (s static) ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error) {
	return plan.Eval{Call: plan.Call{Static: s.marshaller(ctx.Match), Method: "ToNative", Addr: ctx.Addr, Value: value}}, nil
}

// Cleanup releases the native allocations of owned values copied into a
// parameter buffer.
func (s static) Cleanup(ctx *Context) ([]plan.Stmt, error) {
	if !s.owned || ctx.Owner != plan.OwnerFunction {
		return nil, nil
	}
	return []plan.Stmt{plan.Eval{Call: plan.Call{Static: s.marshaller(ctx.Match), Method: "DestructInstance", Addr: ctx.Addr}}}, nil
}

// composite is embedded by translators that need a marshaller cell.
type composite struct {
	base
}

func (composite) Composite(*Match) bool { return true }

func (composite) FromNative(ctx *Context) (plan.Expr, error) {
	return plan.Call{Cell: ctx.CellField(), Method: "FromNative", Addr: ctx.Addr}, nil
}

func (composite) ToNative(ctx *Context, value plan.Expr) (plan.Stmt, error) {
	return plan.Eval{Call: plan.Call{Cell: ctx.CellField(), Method: "ToNative", Addr: ctx.Addr, Value: value}}, nil
}

func (composite) Cleanup(ctx *Context) ([]plan.Stmt, error) {
	if ctx.Owner != plan.OwnerFunction {
		return nil, nil
	}
	return []plan.Stmt{plan.Eval{Call: plan.Call{Cell: ctx.CellField(), Method: "DestructInstance", Addr: ctx.Addr}}}, nil
}

// cell builds the CellInit of a composite member; args are the inner
// conversion delegates.
func cell(ctx *Context, marshaller string, args ...plan.Expr) []plan.Static {
	return []plan.Static{plan.CellInit{
		Field:      ctx.CellField(),
		Marshaller: marshaller,
		Property:   ctx.PropertyField(),
		Args:       args,
	}}
}

// delegates returns the ToNative/FromNative delegate pair of an inner match.
func delegates(m *Match) []plan.Expr {
	name := m.Translator.Marshaller(m, plan.OwnerFunction)
	return []plan.Expr{
		plan.MethodRef{Marshaller: name, Method: "ToNative"},
		plan.MethodRef{Marshaller: name, Method: "FromNative"},
	}
}
