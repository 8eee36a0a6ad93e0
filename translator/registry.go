package translator

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/marshal"
)

// Entry is one row of the translator table. Shadows lists the names of
// later translators this one is allowed to overlap with; its earlier
// position wins.
type Entry struct {
	Translator Translator
	Shadows    []string
}

// Registry is an immutable, ordered translator table. Lookup is a pure
// function over table indices, so a Registry is safe for concurrent use.
type Registry struct {
	entries []Entry
	byKind  map[descriptor.Kind][]int
	debug   bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithDebug enables the per-lookup ambiguity check.
func WithDebug(on bool) Option {
	return func(r *Registry) { r.debug = on }
}

// NewRegistry builds a registry from entries in precedence order. It fails
// when two entries accept the same probe descriptor and the earlier one
// does not declare that it shadows the later one.
func NewRegistry(entries []Entry, opts ...Option) (*Registry, error) {
	r := &Registry{
		entries: append([]Entry(nil), entries...),
		byKind:  make(map[descriptor.Kind][]int),
	}
	for _, opt := range opts {
		opt(r)
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range r.entries {
		if e.Translator == nil {
			return nil, errors.InvalidInput(errors.PhaseTranslate, fmt.Sprintf("entry %d has no translator", i))
		}
		name := e.Translator.Name()
		if seen[name] {
			return nil, errors.New(errors.PhaseTranslate, errors.KindAmbiguousMatch).
				Symbol(name).
				Detail("translator registered twice").
				Build()
		}
		seen[name] = true
		for _, k := range e.Translator.Kinds() {
			r.byKind[k] = append(r.byKind[k], i)
		}
	}

	if err := r.checkOverlap(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) checkOverlap() error {
	for k, idx := range r.byKind {
		if len(idx) < 2 {
			continue
		}
		for _, probe := range Probes(k) {
			accepting := r.accepting(probe)
			for a := 0; a < len(accepting); a++ {
				for b := a + 1; b < len(accepting); b++ {
					first := r.entries[accepting[a]]
					second := r.entries[accepting[b]].Translator.Name()
					if !shadows(first, second) {
						return errors.New(errors.PhaseTranslate, errors.KindAmbiguousMatch).
							NativeType(probe.String()).
							Detail("%s and %s both accept %s %s without a shadowing declaration",
								first.Translator.Name(), second, k, probe.Flags).
							Build()
					}
				}
			}
		}
	}
	return nil
}

func shadows(e Entry, name string) bool {
	for _, s := range e.Shadows {
		if s == name {
			return true
		}
	}
	return false
}

func (r *Registry) accepting(t *descriptor.Type) []int {
	var out []int
	for _, i := range r.byKind[t.Kind] {
		if r.entries[i].Translator.CanExport(t) {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of registered translators.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a copy of the table in precedence order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Candidates returns the names of every translator accepting t, in
// precedence order.
func (r *Registry) Candidates(t *descriptor.Type) []string {
	var out []string
	for _, i := range r.accepting(t) {
		out = append(out, r.entries[i].Translator.Name())
	}
	return out
}

// Lookup selects the first accepting translator for t and recursively for
// container children. A container whose element has no translator is not
// exportable; nested containers are rejected.
func (r *Registry) Lookup(t *descriptor.Type) (*Match, error) {
	if t == nil {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "nil descriptor")
	}

	if t.Dim() > 1 {
		return r.lookupFixed(t)
	}

	accepting := r.accepting(t)
	if len(accepting) == 0 {
		return nil, errors.UnsupportedType(errors.PhaseTranslate, t.String(),
			fmt.Sprintf("no translator accepts %s", t.Kind))
	}
	if r.debug && len(accepting) > 1 {
		r.warnAmbiguous(t, accepting)
	}

	idx := accepting[0]
	m := &Match{Type: t, Translator: r.entries[idx].Translator, Index: idx}

	if v, ok := m.Translator.(Validator); ok {
		if err := v.Validate(t); err != nil {
			return nil, err
		}
	}

	if !t.Kind.IsContainer() {
		return m, nil
	}
	for _, child := range t.Args {
		if child.Kind.IsContainer() {
			return nil, errors.InvalidComposite(errors.PhaseTranslate, t.String(),
				fmt.Sprintf("nested container %s is not supported", child))
		}
		cm, err := r.Lookup(child)
		if err != nil {
			if errors.IsKind(err, errors.KindUnsupportedType) {
				return nil, errors.New(errors.PhaseTranslate, errors.KindUnsupportedType).
					NativeType(t.String()).
					Cause(err).
					Detail("element type %s has no translator", child).
					Build()
			}
			return nil, err
		}
		m.Args = append(m.Args, cm)
	}
	return m, nil
}

func (r *Registry) lookupFixed(t *descriptor.Type) (*Match, error) {
	elem := t.WithArrayDim(1)
	if elem.Kind.IsContainer() {
		return nil, errors.InvalidComposite(errors.PhaseTranslate, t.String(),
			fmt.Sprintf("static dimension %d on container %s", t.Dim(), elem))
	}
	em, err := r.Lookup(elem)
	if err != nil {
		return nil, err
	}
	return &Match{Type: t, Translator: FixedArray, Args: []*Match{em}, Index: em.Index}, nil
}

func (r *Registry) warnAmbiguous(t *descriptor.Type, accepting []int) {
	first := r.entries[accepting[0]]
	for _, i := range accepting[1:] {
		name := r.entries[i].Translator.Name()
		if shadows(first, name) {
			continue
		}
		Logger().Warn("ambiguous translator match",
			zap.String("type", t.String()),
			zap.String("selected", first.Translator.Name()),
			zap.String("also", name))
	}
}

// NewCodec builds the runtime codec of m.
func (r *Registry) NewCodec(m *Match, opts CodecOptions) (marshal.Codec, error) {
	opts.Registry = r
	return m.Translator.NewCodec(m, opts)
}

// codecFor looks up t and builds its codec with the given owner.
func (r *Registry) codecFor(t *descriptor.Type, opts CodecOptions) (marshal.Codec, layout.Info, error) {
	m, err := r.Lookup(t)
	if err != nil {
		return nil, layout.Info{}, err
	}
	c, err := r.NewCodec(m, opts)
	if err != nil {
		return nil, layout.Info{}, err
	}
	info, err := layout.Of(t)
	if err != nil {
		return nil, layout.Info{}, err
	}
	return c, info, nil
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry built from DefaultEntries.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(DefaultEntries())
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// DefaultEntries is the built-in translator table in precedence order.
func DefaultEntries() []Entry {
	return []Entry{
		{Translator: Primitive},
		{Translator: Bool},
		{Translator: String},
		{Translator: Name},
		{Translator: Text},
		{Translator: Enum},
		{Translator: BlittableStruct, Shadows: []string{"struct"}},
		{Translator: Struct},
		{Translator: Object},
		{Translator: WeakObject},
		{Translator: SoftObject},
		{Translator: Class},
		{Translator: Interface},
		{Translator: Delegate},
		{Translator: MulticastDelegate},
		{Translator: Array},
		{Translator: Map},
		{Translator: Set},
		{Translator: Optional},
	}
}
