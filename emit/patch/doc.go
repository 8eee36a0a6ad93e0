// Package patch rewrites the stub exports of a compiled managed assembly
// so they perform the conversions of a translation plan.
//
// The managed compiler leaves one exported stub per bound member:
//
//	<Type>.get_<Member>  (obj i32) -> value
//	<Type>.set_<Member>  (obj i32, value)
//	<Type>.<Function>    (obj i32, params...) -> result
//
// Objects are addresses in linear memory. Values converted by a
// marshaller travel as i32 handles into the host's managed object table;
// out and ref parameters are i32 pointers. Patch replaces each stub body
// with the lowered plan expression and reports stubs that are missing or
// have the wrong signature without aborting the rest of the assembly.
//
// Reflection queries and marshaller calls are imported from the "bindgen"
// host module. Every type gets a <Type>.__bind export running its
// resolution program once, guarded by a global; binders are chained into
// the module's start function ahead of any existing one. Names passed to
// the host live in a data segment placed past the original memory,
// followed by the shadow stack invokers claim their parameter buffers
// from.
package patch
