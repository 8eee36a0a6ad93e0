// Package metadata ingests reflection dumps and reads and writes sidecars.
//
// A Database is built from a YAML or JSON dump of the native runtime's
// reflection system. Type names are converted to descriptors here and
// nowhere else; members whose type cannot be classified keep the error so
// the generator can report them without dropping their siblings. The
// Database also answers the bindgen.Reflection queries with sequential
// handles, which makes it the reflection backend for tests and for the
// wazero host.
//
// Sidecars record the managed surface of one generated assembly in JSON,
// YAML, TOML or CBOR so later runs can import those types as external.
package metadata
