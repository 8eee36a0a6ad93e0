// Package patchtest builds guest assemblies for exercising Patch and the
// host runtime without a managed compiler.
package patchtest

import (
	"github.com/wippyai/native-bindgen/assembly"
	"github.com/wippyai/native-bindgen/emit/patch"
)

// Module returns a guest with one page of memory, exported as "memory",
// and one exported function per stub. Stub bodies trap.
func Module(stubs []patch.Stub) *assembly.Module {
	m := &assembly.Module{Memories: []assembly.Limits{{Min: 1}}}
	m.AddExport(assembly.Export{Name: "memory", Kind: assembly.KindMemory})
	for _, s := range stubs {
		AddStub(m, s)
	}
	return m
}

// AddStub appends a trapping function exported under s.Name.
func AddStub(m *assembly.Module, s patch.Stub) uint32 {
	body := assembly.FuncBody{Code: []byte{assembly.OpUnreachable, assembly.OpEnd}}
	idx := m.AddFunc(s.Type, body)
	m.AddExport(assembly.Export{Name: s.Name, Kind: assembly.KindFunc, Idx: idx})
	return idx
}

// Binary is the encoded Module of stubs.
func Binary(stubs []patch.Stub) []byte {
	return Module(stubs).Encode()
}

// Without returns stubs minus the named ones.
func Without(stubs []patch.Stub, names ...string) []patch.Stub {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var out []patch.Stub
	for _, s := range stubs {
		if !drop[s.Name] {
			out = append(out, s)
		}
	}
	return out
}
