package assembly

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/native-bindgen/errors"
)

// Header errors.
var (
	ErrInvalidMagic   = stderrors.New("invalid magic number")
	ErrInvalidVersion = stderrors.New("invalid version")
)

// sectionRank orders non-custom sections; data count sits between
// element and code.
var sectionRank = map[byte]int{
	SectionType: 1, SectionImport: 2, SectionFunction: 3, SectionTable: 4,
	SectionMemory: 5, SectionGlobal: 6, SectionExport: 7, SectionStart: 8,
	SectionElement: 9, SectionDataCount: 10, SectionCode: 11, SectionData: 12,
}

var sectionNames = map[byte]string{
	SectionCustom: "custom", SectionType: "type", SectionImport: "import",
	SectionFunction: "function", SectionTable: "table", SectionMemory: "memory",
	SectionGlobal: "global", SectionExport: "export", SectionStart: "start",
	SectionElement: "element", SectionCode: "code", SectionData: "data",
	SectionDataCount: "data count",
}

type reader struct {
	*bytes.Reader
}

func (r reader) u32() (uint32, error) { return ReadLEB128u(r) }

func (r reader) vec() (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	// Every vector element takes at least one byte.
	if int(n) > r.Len() {
		return 0, fmt.Errorf("vector of %d exceeds %d remaining bytes", n, r.Len())
	}
	return int(n), nil
}

func (r reader) bytes(n int) ([]byte, error) {
	if n > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}

func (r reader) name() (string, error) {
	n, err := r.vec()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	return string(b), err
}

func (r reader) valType() (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch v := ValType(b); v {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return v, nil
	}
	return 0, fmt.Errorf("unsupported value type 0x%02x", b)
}

func (r reader) limits() (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flag > 1 {
		return Limits{}, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	minimum, err := r.u32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: uint64(minimum)}
	if flag == 1 {
		maximum, err := r.u32()
		if err != nil {
			return Limits{}, err
		}
		m := uint64(maximum)
		l.Max = &m
	}
	return l, nil
}

// constExpr reads a constant expression up to and including its end.
func (r reader) constExpr() ([]byte, error) {
	start := r.Size() - int64(r.Len())
	for {
		ins, err := decodeInstruction(r.Reader)
		if err != nil {
			return nil, err
		}
		switch ins.Opcode {
		case OpEnd:
			n := int(r.Size() - int64(r.Len()) - start)
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return nil, err
			}
			return r.bytes(n)
		case OpI32Const, OpI64Const, OpF32Const, OpF64Const, OpGlobalGet, OpRefNull, OpRefFunc:
		default:
			return nil, fmt.Errorf("opcode 0x%02x in constant expression", ins.Opcode)
		}
	}
}

// Decode parses a binary module.
func Decode(data []byte) (*Module, error) {
	r := reader{bytes.NewReader(data)}
	head, err := r.bytes(8)
	if err != nil {
		return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "header")
	}
	if le32(head[:4]) != Magic {
		return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, ErrInvalidMagic, "header")
	}
	if le32(head[4:]) != Version {
		return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, ErrInvalidVersion, "header")
	}

	m := &Module{}
	last := 0
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		name, known := sectionNames[id]
		if !known {
			return nil, errors.InvalidData(errors.PhasePatch, nil, fmt.Sprintf("unknown section id 0x%02x", id))
		}
		if id != SectionCustom {
			if sectionRank[id] <= last {
				return nil, errors.InvalidData(errors.PhasePatch, []string{name}, "section out of order")
			}
			last = sectionRank[id]
		}
		size, err := r.u32()
		if err != nil {
			return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, name+" section size")
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, name+" section")
		}
		sr := reader{bytes.NewReader(body)}
		if err := decodeSection(sr, id, m); err != nil {
			return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, name+" section")
		}
		if id != SectionCustom && sr.Len() != 0 {
			return nil, errors.InvalidData(errors.PhasePatch, []string{name}, fmt.Sprintf("%d trailing bytes", sr.Len()))
		}
	}
	if len(m.Funcs) != len(m.Code) {
		return nil, errors.InvalidData(errors.PhasePatch, nil,
			fmt.Sprintf("%d function declarations but %d bodies", len(m.Funcs), len(m.Code)))
	}
	return m, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func decodeSection(r reader, id byte, m *Module) error {
	switch id {
	case SectionCustom:
		name, err := r.name()
		if err != nil {
			return err
		}
		data, err := r.bytes(r.Len())
		if err != nil {
			return err
		}
		m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
		return nil
	case SectionStart:
		idx, err := r.u32()
		m.Start = &idx
		return err
	case SectionDataCount:
		n, err := r.u32()
		m.DataCount = &n
		return err
	}

	n, err := r.vec()
	if err != nil {
		return err
	}
	for i := range n {
		if err := decodeEntry(r, id, m); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func decodeEntry(r reader, id byte, m *Module) error {
	switch id {
	case SectionType:
		return decodeFuncType(r, m)
	case SectionImport:
		return decodeImport(r, m)
	case SectionFunction:
		idx, err := r.u32()
		m.Funcs = append(m.Funcs, idx)
		return err
	case SectionTable:
		t, err := decodeTable(r)
		m.Tables = append(m.Tables, t)
		return err
	case SectionMemory:
		l, err := r.limits()
		m.Memories = append(m.Memories, l)
		return err
	case SectionGlobal:
		gt, err := decodeGlobalType(r)
		if err != nil {
			return err
		}
		init, err := r.constExpr()
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
		return err
	case SectionExport:
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
		return err
	case SectionElement:
		return decodeElement(r, m)
	case SectionCode:
		return decodeBody(r, m)
	case SectionData:
		return decodeData(r, m)
	}
	return fmt.Errorf("unexpected section %d", id)
}

func decodeFuncType(r reader, m *Module) error {
	form, err := r.ReadByte()
	if err != nil {
		return err
	}
	if form != FuncTypeByte {
		return fmt.Errorf("unsupported type form 0x%02x", form)
	}
	var ft FuncType
	for _, dst := range []*[]ValType{&ft.Params, &ft.Results} {
		n, err := r.vec()
		if err != nil {
			return err
		}
		for range n {
			v, err := r.valType()
			if err != nil {
				return err
			}
			*dst = append(*dst, v)
		}
	}
	m.Types = append(m.Types, ft)
	return nil
}

func decodeImport(r reader, m *Module) error {
	mod, err := r.name()
	if err != nil {
		return err
	}
	name, err := r.name()
	if err != nil {
		return err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return err
	}
	imp := Import{Module: mod, Name: name, Desc: ImportDesc{Kind: kind}}
	switch kind {
	case KindFunc:
		imp.Desc.TypeIdx, err = r.u32()
	case KindTable:
		var t Table
		t, err = decodeTable(r)
		imp.Desc.Table = &t
	case KindMemory:
		var l Limits
		l, err = r.limits()
		imp.Desc.Memory = &l
	case KindGlobal:
		var gt GlobalType
		gt, err = decodeGlobalType(r)
		imp.Desc.Global = &gt
	default:
		err = fmt.Errorf("unsupported import kind 0x%02x", kind)
	}
	m.Imports = append(m.Imports, imp)
	return err
}

func decodeTable(r reader) (Table, error) {
	et, err := r.valType()
	if err != nil {
		return Table{}, err
	}
	l, err := r.limits()
	return Table{ElemType: et, Limits: l}, err
}

func decodeGlobalType(r reader) (GlobalType, error) {
	vt, err := r.valType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func decodeElement(r reader, m *Module) error {
	flags, err := r.u32()
	if err != nil {
		return err
	}
	if flags > 3 {
		return fmt.Errorf("unsupported element segment form %d", flags)
	}
	el := Element{Flags: flags}
	if flags == 2 {
		if el.TableIdx, err = r.u32(); err != nil {
			return err
		}
	}
	if flags == 0 || flags == 2 {
		if el.Offset, err = r.constExpr(); err != nil {
			return err
		}
	}
	if flags != 0 {
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind != 0 {
			return fmt.Errorf("unsupported element kind 0x%02x", kind)
		}
	}
	n, err := r.vec()
	if err != nil {
		return err
	}
	el.FuncIdxs = make([]uint32, n)
	for i := range el.FuncIdxs {
		if el.FuncIdxs[i], err = r.u32(); err != nil {
			return err
		}
	}
	m.Elements = append(m.Elements, el)
	return nil
}

func decodeBody(r reader, m *Module) error {
	size, err := r.u32()
	if err != nil {
		return err
	}
	raw, err := r.bytes(int(size))
	if err != nil {
		return err
	}
	br := reader{bytes.NewReader(raw)}
	n, err := br.vec()
	if err != nil {
		return err
	}
	var body FuncBody
	for range n {
		count, err := br.u32()
		if err != nil {
			return err
		}
		vt, err := br.valType()
		if err != nil {
			return err
		}
		body.Locals = append(body.Locals, LocalEntry{Count: count, ValType: vt})
	}
	if body.Code, err = br.bytes(br.Len()); err != nil {
		return err
	}
	if len(body.Code) == 0 || body.Code[len(body.Code)-1] != OpEnd {
		return fmt.Errorf("function body %d does not end with end", len(m.Code))
	}
	m.Code = append(m.Code, body)
	return nil
}

func decodeData(r reader, m *Module) error {
	flags, err := r.u32()
	if err != nil {
		return err
	}
	seg := DataSegment{Flags: flags}
	switch flags {
	case 0:
	case 1:
	case 2:
		if seg.MemIdx, err = r.u32(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported data segment form %d", flags)
	}
	if flags != 1 {
		if seg.Offset, err = r.constExpr(); err != nil {
			return err
		}
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	if seg.Init, err = r.bytes(int(n)); err != nil {
		return err
	}
	m.Data = append(m.Data, seg)
	return nil
}
