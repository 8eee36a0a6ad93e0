// Package source renders translation plans as managed-language (C#) source,
// one file per native type.
//
// Classes get static handle and offset fields initialised by the static
// constructor, which runs the resolution program in order and creates the
// marshaller cells; the managed runtime guarantees it runs once. Property
// accessors and function invokers address native memory as base plus
// cached offset, except return values, which are read from a dedicated
// return buffer at offset zero.
package source
