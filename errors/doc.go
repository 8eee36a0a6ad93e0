// Package errors provides structured error types for native-bindgen.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the owning symbol, its source location, native and
// managed type names, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTranslate, errors.KindUnsupportedType).
//		Symbol("Actor.Target").
//		Location("Actor.h:42").
//		NativeType("void*").
//		Detail("no translator accepts raw pointers").
//		Build()
//
// Generation collects per-member failures into Diagnostics instead of
// stopping at the first one:
//
//	var diags errors.Diagnostics
//	diags.Add(errors.SeverityError, err)
//	if diags.Fatal() {
//		return diags.Err()
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
