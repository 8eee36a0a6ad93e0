// Package translator selects a conversion strategy for every native type
// descriptor and turns it into plan IR and runtime codecs.
//
// A Registry is an ordered table of translators. Lookup walks the entries
// registered for the descriptor's kind and returns the first whose
// predicate accepts it; containers are composed recursively from the
// matches of their children. The table is immutable after construction and
// NewRegistry rejects overlapping entries that do not declare which one
// shadows the other, so lookups are deterministic and safe to run from any
// number of goroutines.
//
// Translators never touch native memory themselves. FromNative, ToNative,
// StaticBinding and Cleanup produce plan expressions consumed by the
// emitters, and NewCodec builds the marshal.Codec used when the same
// conversion runs in process.
package translator
