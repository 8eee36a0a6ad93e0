package assembly

import (
	"bytes"
	"fmt"
)

// Instruction is a decoded instruction.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type of block, loop and if.
type BlockImm struct {
	Type int32 // -64 void, -1..-4 a single value type, >=0 a type index
}

// BranchImm holds the label of br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the labels of br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the callee of call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds the signature and table of call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds a local index.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds a global index.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds a table index.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm is a memarg.
type MemoryImm struct {
	Offset uint64
	Align  uint32
}

// I32Imm is an i32.const operand.
type I32Imm struct {
	Value int32
}

// I64Imm is an i64.const operand.
type I64Imm struct {
	Value int64
}

// F32Imm is an f32.const operand.
type F32Imm struct {
	Value float32
}

// F64Imm is an f64.const operand.
type F64Imm struct {
	Value float64
}

// RefNullImm holds the heap type of ref.null.
type RefNullImm struct {
	HeapType ValType
}

// RefFuncImm holds the function of ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the operand types of typed select.
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm is a 0xFC-prefixed instruction with its index operands.
type MiscImm struct {
	Operands []uint32
	SubOp    uint32
}

// miscOperands is the number of index operands each misc sub-opcode takes.
// memory.copy and memory.fill carry reserved memory bytes that decode as
// operands too.
var miscOperands = map[uint32]int{
	0x00: 0, 0x01: 0, 0x02: 0, 0x03: 0, 0x04: 0, 0x05: 0, 0x06: 0, 0x07: 0,
	MiscMemoryInit: 2,
	MiscDataDrop:   1,
	MiscMemoryCopy: 2,
	MiscMemoryFill: 1,
	MiscTableInit:  2,
	MiscElemDrop:   1,
	MiscTableCopy:  2,
	MiscTableGrow:  1,
	MiscTableSize:  1,
	MiscTableFill:  1,
}

// DecodeInstructions decodes a complete instruction sequence.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	var out []Instruction
	for r.Len() > 0 {
		at := len(code) - r.Len()
		ins, err := decodeInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("instruction at %d: %w", at, err)
		}
		out = append(out, ins)
	}
	return out, nil
}

func decodeInstruction(r *bytes.Reader) (Instruction, error) {
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	ins := Instruction{Opcode: op}

	switch {
	case op == OpUnreachable, op == OpNop, op == OpElse, op == OpEnd, op == OpReturn,
		op == OpDrop, op == OpSelect, op == OpRefIsNull:
		return ins, nil
	case op >= OpI32Eqz && op <= OpI64Extend32S:
		return ins, nil
	case op >= OpI32Load && op <= OpI64Store32:
		align, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		off, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		ins.Imm = MemoryImm{Align: align, Offset: uint64(off)}
		return ins, nil
	}

	switch op {
	case OpBlock, OpLoop, OpIf:
		bt, err := ReadLEB128s64(r)
		if err != nil {
			return ins, err
		}
		ins.Imm = BlockImm{Type: int32(bt)}
	case OpBr, OpBrIf:
		v, err := ReadLEB128u(r)
		ins.Imm = BranchImm{LabelIdx: v}
		return ins, err
	case OpBrTable:
		n, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		if int(n) > r.Len() {
			return ins, fmt.Errorf("br_table of %d labels exceeds body", n)
		}
		imm := BrTableImm{Labels: make([]uint32, n)}
		for i := range imm.Labels {
			if imm.Labels[i], err = ReadLEB128u(r); err != nil {
				return ins, err
			}
		}
		if imm.Default, err = ReadLEB128u(r); err != nil {
			return ins, err
		}
		ins.Imm = imm
	case OpCall:
		v, err := ReadLEB128u(r)
		ins.Imm = CallImm{FuncIdx: v}
		return ins, err
	case OpCallIndirect:
		typ, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		tbl, err := ReadLEB128u(r)
		ins.Imm = CallIndirectImm{TypeIdx: typ, TableIdx: tbl}
		return ins, err
	case OpSelectType:
		n, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		if int(n) > r.Len() {
			return ins, fmt.Errorf("select of %d types exceeds body", n)
		}
		imm := SelectTypeImm{Types: make([]ValType, n)}
		for i := range imm.Types {
			b, err := r.ReadByte()
			if err != nil {
				return ins, err
			}
			imm.Types[i] = ValType(b)
		}
		ins.Imm = imm
	case OpLocalGet, OpLocalSet, OpLocalTee:
		v, err := ReadLEB128u(r)
		ins.Imm = LocalImm{LocalIdx: v}
		return ins, err
	case OpGlobalGet, OpGlobalSet:
		v, err := ReadLEB128u(r)
		ins.Imm = GlobalImm{GlobalIdx: v}
		return ins, err
	case OpTableGet, OpTableSet:
		v, err := ReadLEB128u(r)
		ins.Imm = TableImm{TableIdx: v}
		return ins, err
	case OpMemorySize, OpMemoryGrow:
		if _, err := r.ReadByte(); err != nil {
			return ins, err
		}
	case OpI32Const:
		v, err := ReadLEB128s(r)
		ins.Imm = I32Imm{Value: v}
		return ins, err
	case OpI64Const:
		v, err := ReadLEB128s64(r)
		ins.Imm = I64Imm{Value: v}
		return ins, err
	case OpF32Const:
		v, err := readFloat32(r)
		ins.Imm = F32Imm{Value: v}
		return ins, err
	case OpF64Const:
		v, err := readFloat64(r)
		ins.Imm = F64Imm{Value: v}
		return ins, err
	case OpRefNull:
		b, err := r.ReadByte()
		ins.Imm = RefNullImm{HeapType: ValType(b)}
		return ins, err
	case OpRefFunc:
		v, err := ReadLEB128u(r)
		ins.Imm = RefFuncImm{FuncIdx: v}
		return ins, err
	case OpPrefixMisc:
		sub, err := ReadLEB128u(r)
		if err != nil {
			return ins, err
		}
		n, ok := miscOperands[sub]
		if !ok {
			return ins, fmt.Errorf("unsupported misc opcode 0xfc %d", sub)
		}
		imm := MiscImm{SubOp: sub}
		for range n {
			v, err := ReadLEB128u(r)
			if err != nil {
				return ins, err
			}
			imm.Operands = append(imm.Operands, v)
		}
		ins.Imm = imm
	default:
		return ins, fmt.Errorf("unsupported opcode 0x%02x", op)
	}
	return ins, nil
}

// EncodeInstructionTo appends the encoding of ins to buf.
func EncodeInstructionTo(buf *bytes.Buffer, ins *Instruction) {
	buf.WriteByte(ins.Opcode)
	switch imm := ins.Imm.(type) {
	case BlockImm:
		WriteLEB128s(buf, imm.Type)
	case BranchImm:
		WriteLEB128u(buf, imm.LabelIdx)
	case BrTableImm:
		WriteLEB128u(buf, uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			WriteLEB128u(buf, l)
		}
		WriteLEB128u(buf, imm.Default)
	case CallImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case CallIndirectImm:
		WriteLEB128u(buf, imm.TypeIdx)
		WriteLEB128u(buf, imm.TableIdx)
	case SelectTypeImm:
		WriteLEB128u(buf, uint32(len(imm.Types)))
		for _, t := range imm.Types {
			buf.WriteByte(byte(t))
		}
	case LocalImm:
		WriteLEB128u(buf, imm.LocalIdx)
	case GlobalImm:
		WriteLEB128u(buf, imm.GlobalIdx)
	case TableImm:
		WriteLEB128u(buf, imm.TableIdx)
	case MemoryImm:
		WriteLEB128u(buf, imm.Align)
		WriteLEB128u(buf, uint32(imm.Offset))
	case I32Imm:
		WriteLEB128s(buf, imm.Value)
	case I64Imm:
		WriteLEB128s64(buf, imm.Value)
	case F32Imm:
		writeFloat32(buf, imm.Value)
	case F64Imm:
		writeFloat64(buf, imm.Value)
	case RefNullImm:
		buf.WriteByte(byte(imm.HeapType))
	case RefFuncImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case MiscImm:
		WriteLEB128u(buf, imm.SubOp)
		for _, v := range imm.Operands {
			WriteLEB128u(buf, v)
		}
	case nil:
		if ins.Opcode == OpMemorySize || ins.Opcode == OpMemoryGrow {
			buf.WriteByte(0)
		}
	}
}

// EncodeInstructions encodes a complete instruction sequence.
func EncodeInstructions(instrs []Instruction) []byte {
	var buf bytes.Buffer
	for i := range instrs {
		EncodeInstructionTo(&buf, &instrs[i])
	}
	return buf.Bytes()
}
