package assembly

import "bytes"

// Encode serializes m. Custom sections are written after the data section.
func (m *Module) Encode() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})

	section := func(id byte, body func(*bytes.Buffer)) {
		var b bytes.Buffer
		body(&b)
		out.WriteByte(id)
		WriteLEB128u(&out, uint32(b.Len()))
		out.Write(b.Bytes())
	}
	vec := func(id byte, n int, item func(*bytes.Buffer, int)) {
		if n == 0 {
			return
		}
		section(id, func(b *bytes.Buffer) {
			WriteLEB128u(b, uint32(n))
			for i := range n {
				item(b, i)
			}
		})
	}

	vec(SectionType, len(m.Types), func(b *bytes.Buffer, i int) {
		ft := m.Types[i]
		b.WriteByte(FuncTypeByte)
		writeValTypes(b, ft.Params)
		writeValTypes(b, ft.Results)
	})
	vec(SectionImport, len(m.Imports), func(b *bytes.Buffer, i int) {
		imp := m.Imports[i]
		writeName(b, imp.Module)
		writeName(b, imp.Name)
		b.WriteByte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			WriteLEB128u(b, imp.Desc.TypeIdx)
		case KindTable:
			writeTable(b, *imp.Desc.Table)
		case KindMemory:
			writeLimits(b, *imp.Desc.Memory)
		case KindGlobal:
			writeGlobalType(b, *imp.Desc.Global)
		}
	})
	vec(SectionFunction, len(m.Funcs), func(b *bytes.Buffer, i int) {
		WriteLEB128u(b, m.Funcs[i])
	})
	vec(SectionTable, len(m.Tables), func(b *bytes.Buffer, i int) {
		writeTable(b, m.Tables[i])
	})
	vec(SectionMemory, len(m.Memories), func(b *bytes.Buffer, i int) {
		writeLimits(b, m.Memories[i])
	})
	vec(SectionGlobal, len(m.Globals), func(b *bytes.Buffer, i int) {
		writeGlobalType(b, m.Globals[i].Type)
		b.Write(m.Globals[i].Init)
	})
	vec(SectionExport, len(m.Exports), func(b *bytes.Buffer, i int) {
		e := m.Exports[i]
		writeName(b, e.Name)
		b.WriteByte(e.Kind)
		WriteLEB128u(b, e.Idx)
	})
	if m.Start != nil {
		section(SectionStart, func(b *bytes.Buffer) { WriteLEB128u(b, *m.Start) })
	}
	vec(SectionElement, len(m.Elements), func(b *bytes.Buffer, i int) {
		el := m.Elements[i]
		WriteLEB128u(b, el.Flags)
		if el.Flags == 2 {
			WriteLEB128u(b, el.TableIdx)
		}
		if el.Flags == 0 || el.Flags == 2 {
			b.Write(el.Offset)
		}
		if el.Flags != 0 {
			b.WriteByte(0)
		}
		WriteLEB128u(b, uint32(len(el.FuncIdxs)))
		for _, f := range el.FuncIdxs {
			WriteLEB128u(b, f)
		}
	})
	if m.DataCount != nil {
		section(SectionDataCount, func(b *bytes.Buffer) { WriteLEB128u(b, *m.DataCount) })
	}
	vec(SectionCode, len(m.Code), func(b *bytes.Buffer, i int) {
		var body bytes.Buffer
		WriteLEB128u(&body, uint32(len(m.Code[i].Locals)))
		for _, l := range m.Code[i].Locals {
			WriteLEB128u(&body, l.Count)
			body.WriteByte(byte(l.ValType))
		}
		body.Write(m.Code[i].Code)
		WriteLEB128u(b, uint32(body.Len()))
		b.Write(body.Bytes())
	})
	vec(SectionData, len(m.Data), func(b *bytes.Buffer, i int) {
		seg := m.Data[i]
		WriteLEB128u(b, seg.Flags)
		if seg.Flags == 2 {
			WriteLEB128u(b, seg.MemIdx)
		}
		if seg.Flags != 1 {
			b.Write(seg.Offset)
		}
		WriteLEB128u(b, uint32(len(seg.Init)))
		b.Write(seg.Init)
	})
	for _, cs := range m.CustomSections {
		section(SectionCustom, func(b *bytes.Buffer) {
			writeName(b, cs.Name)
			b.Write(cs.Data)
		})
	}
	return out.Bytes()
}

func writeName(b *bytes.Buffer, s string) {
	WriteLEB128u(b, uint32(len(s)))
	b.WriteString(s)
}

func writeValTypes(b *bytes.Buffer, vs []ValType) {
	WriteLEB128u(b, uint32(len(vs)))
	for _, v := range vs {
		b.WriteByte(byte(v))
	}
}

func writeLimits(b *bytes.Buffer, l Limits) {
	if l.Max == nil {
		b.WriteByte(0)
		WriteLEB128u(b, uint32(l.Min))
		return
	}
	b.WriteByte(1)
	WriteLEB128u(b, uint32(l.Min))
	WriteLEB128u(b, uint32(*l.Max))
}

func writeTable(b *bytes.Buffer, t Table) {
	b.WriteByte(byte(t.ElemType))
	writeLimits(b, t.Limits)
}

func writeGlobalType(b *bytes.Buffer, gt GlobalType) {
	b.WriteByte(byte(gt.ValType))
	if gt.Mutable {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
}
