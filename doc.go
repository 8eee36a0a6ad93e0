// Package bindgen translates native reflected types into managed bindings.
//
// A native runtime exposes its types, fields and functions through
// queryable metadata (name, offset, size, function handle). This module
// decides, for every native type descriptor, which managed type represents
// it, how values move between a raw native buffer and that representation,
// how the offsets and handles needed to address the buffer are resolved
// and cached, and how container types compose those decisions.
//
// # Architecture Overview
//
//	bindgen/            Root package with Memory, Allocator and Reflection contracts
//	├── descriptor/     Closed type descriptor model and classification
//	├── layout/         Native size and alignment of every descriptor kind
//	├── translator/     Translator strategies and the ordered registry
//	├── binding/        Binding site resolution (handles, offsets, sizes)
//	├── marshal/        Runtime marshallers operating on native buffers
//	├── plan/           Backend-neutral translation plan
//	├── emit/source/    Text backend (managed source files)
//	├── emit/patch/     Instruction backend (patches compiled assemblies)
//	├── assembly/       Compiled assembly binary codec
//	├── runtime/        wazero host for patched assemblies
//	├── metadata/       Reflection dump ingestion and sidecar records
//	├── generator/      Per-type orchestration and diagnostics
//	├── memory/         Native buffer implementations
//	├── errors/         Structured error types
//	└── cmd/bindgen/    CLI: generate, patch, sidecar, inspect
//
// # Flow
//
//	descriptor.Classify → translator.Registry.Lookup → binding.Steps
//	    → plan.TypePlan → emit/source | emit/patch
//
// The same plan drives both backends, so the text and instruction outputs
// cannot drift apart.
//
// # Thread Safety
//
// Registries, descriptors and plans are immutable once built and safe for
// concurrent use. The runtime resolves members through one binding.Resolver,
// which serializes first resolution per site.
// marshal.Native values are not safe for concurrent mutation of the same
// native buffer.
package bindgen
