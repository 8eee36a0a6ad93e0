package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseIngest    Phase = "ingest"    // reflection metadata loading
	PhaseClassify  Phase = "classify"  // native name to descriptor
	PhaseTranslate Phase = "translate" // translator selection and planning
	PhaseBind      Phase = "bind"      // handle/offset resolution
	PhaseEmit      Phase = "emit"      // source emission
	PhasePatch     Phase = "patch"     // instruction rewriting
	PhaseMarshal   Phase = "marshal"   // runtime buffer conversion
	PhaseHost      Phase = "host"      // patched assembly hosting
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedType  Kind = "unsupported_type"
	KindInvalidComposite Kind = "invalid_composite"
	KindAmbiguousMatch   Kind = "ambiguous_match"
	KindBindingFailed    Kind = "binding_failed"
	KindTypeMismatch     Kind = "type_mismatch"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInvalidData      Kind = "invalid_data"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindNilPointer       Kind = "nil_pointer"
	KindAllocation       Kind = "allocation"
	KindOverflow         Kind = "overflow"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	Symbol      string // owning symbol, e.g. "Actor.Health"
	Location    string // source location of the symbol, e.g. "Actor.h:42"
	NativeType  string
	ManagedType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" in ")
		b.WriteString(e.Symbol)
		if e.Location != "" {
			b.WriteString(" (")
			b.WriteString(e.Location)
			b.WriteByte(')')
		}
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.NativeType != "" || e.ManagedType != "" {
		b.WriteString(": ")
		if e.NativeType != "" && e.ManagedType != "" {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
			b.WriteString(", managed type ")
			b.WriteString(e.ManagedType)
		} else if e.NativeType != "" {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		} else {
			b.WriteString("managed type ")
			b.WriteString(e.ManagedType)
		}
	}

	if e.Detail != "" {
		if e.NativeType != "" || e.ManagedType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is or wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// At returns a copy of e attributed to the given symbol and source location.
// Empty arguments keep the existing values.
func (e *Error) At(symbol, location string) *Error {
	c := *e
	if symbol != "" {
		c.Symbol = symbol
	}
	if location != "" {
		c.Location = location
	}
	return &c
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Symbol sets the owning symbol
func (b *Builder) Symbol(s string) *Builder {
	b.err.Symbol = s
	return b
}

// Location sets the symbol's source location
func (b *Builder) Location(loc string) *Builder {
	b.err.Location = loc
	return b
}

// NativeType sets the native type name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// ManagedType sets the managed type name
func (b *Builder) ManagedType(t string) *Builder {
	b.err.ManagedType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnsupportedType reports a native type that no translator accepts
func UnsupportedType(phase Phase, nativeType, detail string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindUnsupportedType,
		NativeType: nativeType,
		Detail:     detail,
	}
}

// InvalidComposite reports a composite type that is structurally invalid
func InvalidComposite(phase Phase, nativeType, detail string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindInvalidComposite,
		NativeType: nativeType,
		Detail:     detail,
	}
}

// BindingFailed reports a native handle or offset that could not be resolved
func BindingFailed(symbol, what string, cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindBindingFailed,
		Symbol: symbol,
		Detail: fmt.Sprintf("resolve %s", what),
		Cause:  cause,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, managedType, nativeType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		Path:        path,
		ManagedType: managedType,
		NativeType:  nativeType,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, managedType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindNilPointer,
		Path:        path,
		ManagedType: managedType,
		Detail:      "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		NativeType: targetType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:      value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
