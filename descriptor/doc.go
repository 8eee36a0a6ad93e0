// Package descriptor is the closed model of native type variants.
//
// Names only exist at the metadata boundary: a Spec (native spelling plus
// structural category) is converted once by Classify into a Type, and every
// later stage switches on Type.Kind.
package descriptor
