// Package assembly decodes, edits and re-encodes the core WebAssembly
// modules the patch backend rewrites.
//
// The model covers the MVP sections plus data count, the bulk memory
// instructions and the function-index element segment forms. Instruction
// bodies stay as raw bytes until something needs to inspect or rewrite
// them:
//
//	m, err := assembly.Decode(bin)
//	first, err := m.AddFuncImports(assembly.FuncImport{Module: "env", Name: "f", Type: ft})
//	out := m.Encode()
package assembly
