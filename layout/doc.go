// Package layout computes native sizes, alignments and composite offsets
// for descriptors.
//
// Strings, arrays, maps, sets and multicast delegates share the script array
// header. Maps store a compact array of (key, value) pairs laid out by
// MapPair; sets store a compact array of elements.
package layout
