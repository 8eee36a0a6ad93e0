package assembly

import (
	"fmt"

	"github.com/wippyai/native-bindgen/errors"
)

// FuncImport names a function to import and its signature.
type FuncImport struct {
	Module string
	Name   string
	Type   FuncType
}

// AddFuncImports appends function imports and returns the index of the
// first. Module-defined functions move up by len(imports); every call,
// ref.func, export, element and start reference is rewritten to match.
// The name section is dropped because its indices no longer hold.
func (m *Module) AddFuncImports(imports ...FuncImport) (uint32, error) {
	first := uint32(m.NumImportedFuncs())
	if len(imports) == 0 {
		return first, nil
	}
	delta := uint32(len(imports))
	shift := func(idx uint32) uint32 {
		if idx >= first {
			return idx + delta
		}
		return idx
	}

	for i := range m.Code {
		code, err := relocateCode(m.Code[i].Code, shift)
		if err != nil {
			return 0, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err,
				fmt.Sprintf("relocate function %d", int(first)+i))
		}
		m.Code[i].Code = code
	}
	for i := range m.Globals {
		init, err := relocateCode(m.Globals[i].Init, shift)
		if err != nil {
			return 0, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err,
				fmt.Sprintf("relocate global %d", i))
		}
		m.Globals[i].Init = init
	}
	for i := range m.Exports {
		if m.Exports[i].Kind == KindFunc {
			m.Exports[i].Idx = shift(m.Exports[i].Idx)
		}
	}
	for i := range m.Elements {
		for j, f := range m.Elements[i].FuncIdxs {
			m.Elements[i].FuncIdxs[j] = shift(f)
		}
	}
	if m.Start != nil {
		s := shift(*m.Start)
		m.Start = &s
	}

	kept := m.CustomSections[:0]
	for _, cs := range m.CustomSections {
		if cs.Name != "name" {
			kept = append(kept, cs)
		}
	}
	m.CustomSections = kept

	for _, fi := range imports {
		m.Imports = append(m.Imports, Import{
			Module: fi.Module,
			Name:   fi.Name,
			Desc:   ImportDesc{Kind: KindFunc, TypeIdx: m.AddType(fi.Type)},
		})
	}
	return first, nil
}

func relocateCode(code []byte, shift func(uint32) uint32) ([]byte, error) {
	instrs, err := DecodeInstructions(code)
	if err != nil {
		return nil, err
	}
	changed := false
	for i := range instrs {
		switch imm := instrs[i].Imm.(type) {
		case CallImm:
			if n := shift(imm.FuncIdx); n != imm.FuncIdx {
				instrs[i].Imm = CallImm{FuncIdx: n}
				changed = true
			}
		case RefFuncImm:
			if n := shift(imm.FuncIdx); n != imm.FuncIdx {
				instrs[i].Imm = RefFuncImm{FuncIdx: n}
				changed = true
			}
		}
	}
	if !changed {
		return code, nil
	}
	return EncodeInstructions(instrs), nil
}
