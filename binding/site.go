package binding

import (
	"sync"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/marshal"
)

// Site is a resolved (owner, member) binding. Its fields are written once
// by the Resolver and must be treated as read-only afterwards.
type Site struct {
	refl       bindgen.Reflection
	codec      marshal.Codec
	codecErr   error
	Owner      string
	Member     string
	nativeName string

	TypeHandle     bindgen.Handle
	FunctionHandle bindgen.Handle
	PropertyHandle bindgen.Handle

	Offset     int32
	Size       int32
	Mask       uint8
	State      State
	Kind       MemberKind
	Replicated bool

	codecOnce sync.Once
}

// Symbol returns "Owner.Member".
func (s *Site) Symbol() string {
	if s.Member == "" {
		return s.Owner
	}
	return s.Owner + "." + s.Member
}

// Invocation returns the function handle to call through. Replicated
// functions re-resolve it from object on every call, so each live
// instance dispatches to its own override.
func (s *Site) Invocation(object uint32) (bindgen.Handle, error) {
	if !s.Replicated {
		return s.FunctionHandle, nil
	}
	h, err := s.refl.InstanceFunctionHandle(object, s.nativeName)
	switch {
	case err != nil:
		return 0, errors.BindingFailed(s.Symbol(), "instance function handle", err)
	case h == 0:
		return 0, errors.BindingFailed(s.Symbol(), "instance function handle", errNullHandle)
	}
	return h, nil
}

// Codec returns the site's composite marshaller, building it on first use.
// build runs at most once even under concurrent callers.
func (s *Site) Codec(build func() (marshal.Codec, error)) (marshal.Codec, error) {
	s.codecOnce.Do(func() {
		s.codec, s.codecErr = build()
	})
	return s.codec, s.codecErr
}
