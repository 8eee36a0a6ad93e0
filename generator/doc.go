// Package generator orchestrates a binding run: it plans every type of a
// metadata database, renders managed sources, builds the sidecar and
// patches compiled assemblies.
//
// Types are planned in parallel; the members of a type are planned
// sequentially in declaration order, so the resolution program of each
// type is deterministic. A member that cannot be translated is dropped
// with a diagnostic carrying its symbol and source location; its siblings
// are still generated and the run fails once every type was processed.
package generator
