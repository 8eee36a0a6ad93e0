// Package binding resolves native handles, offsets and sizes for generated
// members.
//
// Steps is the single description of the resolution program: the emitters
// turn it into static fields and initialisers, and the Resolver executes
// the same program against a live bindgen.Reflection. Every (owner, member)
// pair is resolved exactly once; later lookups, including failed ones,
// return the cached result.
package binding
