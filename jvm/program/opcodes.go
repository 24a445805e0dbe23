package program

import "fmt"

// Opcode byte values. Operands follow the opcode byte, little-endian.
// "slot" is a signed frame slot index in units of SlotSize bytes.
const (
	// Misc
	NOP   byte = 0x00 // -
	NOP_N byte = 0x01 // u8 n: skip n+1 bytes in total
	ERROR byte = 0x02 // -
	EXIT  byte = 0x03 // -

	// Stack manipulation
	PUSH       byte = 0x10 // slot
	PUSH_I32   byte = 0x11 // imm32
	PUSH_I64   byte = 0x12 // imm64
	PUSH_I32_0 byte = 0x13 // -
	POP        byte = 0x14 // u8 byte count
	POP_I32    byte = 0x15 // -
	POP_I64    byte = 0x16 // -
	ADD_SP     byte = 0x17 // i32 byte count
	ADD_SP_4   byte = 0x18 // -

	// Data movement
	LOAD_EAX      byte = 0x20 // imm32
	STORE         byte = 0x21 // slot, imm32
	MOVE          byte = 0x22 // dst slot, src slot
	MOVE_TO_EAX   byte = 0x23 // slot
	COPY_FROM_EAX byte = 0x24 // slot

	// Arithmetic, 32-bit wraparound
	ADD         byte = 0x30 // dst slot, src slot
	ADD_IMM     byte = 0x31 // slot, imm32
	ADD_EAX     byte = 0x32 // slot
	ADD_EAX_IMM byte = 0x33 // imm32
	SUB         byte = 0x34 // dst slot, src slot
	SUB_IMM     byte = 0x35 // slot, imm32
	SUB_EAX     byte = 0x36 // slot
	SUB_EAX_IMM byte = 0x37 // imm32
	INC         byte = 0x38 // slot
	DEC         byte = 0x39 // slot

	// Comparison; the trailing byte is a condition code
	CMP         byte = 0x40 // slot, cond (eax vs slot, signed)
	CMP_I32     byte = 0x41 // slot, slot, cond
	CMP_U32     byte = 0x42 // slot, slot, cond
	CMP_IMM_I32 byte = 0x43 // slot, imm32, cond
	CMP_IMM_U32 byte = 0x44 // slot, imm32, cond

	// Unconditional and conditional control transfer
	JMP       byte = 0x50 // ptr32
	JMP_NEAR  byte = 0x51 // rel8
	JMP_SHORT byte = 0x52 // rel16
	JMP_LONG  byte = 0x53 // rel32
	JL_NEAR   byte = 0x54 // rel8
	JL_SHORT  byte = 0x55 // rel16
	JL_LONG   byte = 0x56 // rel32

	// Calls
	CALL            byte = 0x60 // ptr32
	CALL_NEAR       byte = 0x61 // rel8
	CALL_SHORT      byte = 0x62 // rel16
	CALL_LONG       byte = 0x63 // rel32
	FAST_CALL_SHORT byte = 0x64 // u8 local size, rel16

	// Returns
	RET            byte = 0x70 // -
	RET_N          byte = 0x71 // u16 local size
	RET_N_SM       byte = 0x72 // u8 local size
	RET_EAX        byte = 0x73 // imm32
	RET_EAX_N      byte = 0x74 // u8 local size, imm32
	FAST_RET_N     byte = 0x75 // u8 local size
	FAST_RET_EAX_N byte = 0x76 // u8 local size, imm32
)

// Condition codes evaluated by the compare family.
const (
	CondJZ byte = iota
	CondJNZ
	CondJE
	CondJNE
	CondJL
	CondJLE
	CondJG
	CondJGE
	CondJS
	CondJNS
	numConds
)

const (
	SlotSize = 4
	// LinkedFrameSize is the linkage a linked call places below the new frame pointer.
	LinkedFrameSize = 16
	// FastFrameSize is the linkage a fast call places below the new frame pointer.
	FastFrameSize = 8
)

// Shape describes the operand layout of an opcode.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeU8
	ShapeU16
	ShapeI32
	ShapeImm32
	ShapeImm64
	ShapeSlot
	ShapeSlotSlot
	ShapeSlotImm32
	ShapeSlotCond
	ShapeSlotSlotCond
	ShapeSlotImm32Cond
	ShapePtr32
	ShapeRel8
	ShapeRel16
	ShapeRel32
	ShapeU8Rel16
	ShapeU8Imm32
)

var shapeFields = [...][]Field{
	ShapeNone:          nil,
	ShapeU8:            {FieldU8},
	ShapeU16:           {FieldU16},
	ShapeI32:           {FieldI32},
	ShapeImm32:         {FieldImm32},
	ShapeImm64:         {FieldImm64},
	ShapeSlot:          {FieldSlot},
	ShapeSlotSlot:      {FieldSlot, FieldSlot},
	ShapeSlotImm32:     {FieldSlot, FieldImm32},
	ShapeSlotCond:      {FieldSlot, FieldCond},
	ShapeSlotSlotCond:  {FieldSlot, FieldSlot, FieldCond},
	ShapeSlotImm32Cond: {FieldSlot, FieldImm32, FieldCond},
	ShapePtr32:         {FieldPtr32},
	ShapeRel8:          {FieldRel8},
	ShapeRel16:         {FieldRel16},
	ShapeRel32:         {FieldRel32},
	ShapeU8Rel16:       {FieldU8, FieldRel16},
	ShapeU8Imm32:       {FieldU8, FieldImm32},
}

var shapeOperandBytes = func() [len(shapeFields)]int {
	var n [len(shapeFields)]int
	for s, fields := range shapeFields {
		for _, f := range fields {
			n[s] += f.Width()
		}
	}
	return n
}()

// Fields lists the operands of the shape in encoding order.
func (s Shape) Fields() []Field { return shapeFields[s] }

// OperandBytes is the number of operand bytes following the opcode.
func (s Shape) OperandBytes() int { return shapeOperandBytes[s] }

// IsRelative reports whether the last operand is a jump offset.
func (s Shape) IsRelative() bool {
	fields := shapeFields[s]
	return len(fields) > 0 && fields[len(fields)-1].IsRel()
}

// OpInfo is the static description of one opcode.
type OpInfo struct {
	Name  string
	Shape Shape
	Valid bool
}

// Size is the total encoded length of the instruction, opcode byte included.
// NOP_N is variable and reports its minimum.
func (o OpInfo) Size() int { return 1 + o.Shape.OperandBytes() }

var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [256]OpInfo {
	var t [256]OpInfo
	def := func(op byte, name string, shape Shape) {
		t[op] = OpInfo{Name: name, Shape: shape, Valid: true}
	}
	def(NOP, "nop", ShapeNone)
	def(NOP_N, "nop_n", ShapeU8)
	def(ERROR, "error", ShapeNone)
	def(EXIT, "exit", ShapeNone)

	def(PUSH, "push", ShapeSlot)
	def(PUSH_I32, "push_i32", ShapeImm32)
	def(PUSH_I64, "push_i64", ShapeImm64)
	def(PUSH_I32_0, "push_i32_0", ShapeNone)
	def(POP, "pop", ShapeU8)
	def(POP_I32, "pop_i32", ShapeNone)
	def(POP_I64, "pop_i64", ShapeNone)
	def(ADD_SP, "add_sp", ShapeI32)
	def(ADD_SP_4, "add_sp_4", ShapeNone)

	def(LOAD_EAX, "load_eax", ShapeImm32)
	def(STORE, "store", ShapeSlotImm32)
	def(MOVE, "move", ShapeSlotSlot)
	def(MOVE_TO_EAX, "move_to_eax", ShapeSlot)
	def(COPY_FROM_EAX, "copy_from_eax", ShapeSlot)

	def(ADD, "add", ShapeSlotSlot)
	def(ADD_IMM, "add_imm", ShapeSlotImm32)
	def(ADD_EAX, "add_eax", ShapeSlot)
	def(ADD_EAX_IMM, "add_eax_imm", ShapeImm32)
	def(SUB, "sub", ShapeSlotSlot)
	def(SUB_IMM, "sub_imm", ShapeSlotImm32)
	def(SUB_EAX, "sub_eax", ShapeSlot)
	def(SUB_EAX_IMM, "sub_eax_imm", ShapeImm32)
	def(INC, "inc", ShapeSlot)
	def(DEC, "dec", ShapeSlot)

	def(CMP, "cmp", ShapeSlotCond)
	def(CMP_I32, "cmp_i32", ShapeSlotSlotCond)
	def(CMP_U32, "cmp_u32", ShapeSlotSlotCond)
	def(CMP_IMM_I32, "cmp_imm_i32", ShapeSlotImm32Cond)
	def(CMP_IMM_U32, "cmp_imm_u32", ShapeSlotImm32Cond)

	def(JMP, "jmp", ShapePtr32)
	def(JMP_NEAR, "jmp_near", ShapeRel8)
	def(JMP_SHORT, "jmp_short", ShapeRel16)
	def(JMP_LONG, "jmp_long", ShapeRel32)
	def(JL_NEAR, "jl_near", ShapeRel8)
	def(JL_SHORT, "jl_short", ShapeRel16)
	def(JL_LONG, "jl_long", ShapeRel32)

	def(CALL, "call", ShapePtr32)
	def(CALL_NEAR, "call_near", ShapeRel8)
	def(CALL_SHORT, "call_short", ShapeRel16)
	def(CALL_LONG, "call_long", ShapeRel32)
	def(FAST_CALL_SHORT, "fast_call_short", ShapeU8Rel16)

	def(RET, "ret", ShapeNone)
	def(RET_N, "ret_n", ShapeU16)
	def(RET_N_SM, "ret_n_sm", ShapeU8)
	def(RET_EAX, "ret_eax", ShapeImm32)
	def(RET_EAX_N, "ret_eax_n", ShapeU8Imm32)
	def(FAST_RET_N, "fast_ret_n", ShapeU8)
	def(FAST_RET_EAX_N, "fast_ret_eax_n", ShapeU8Imm32)
	return t
}

var condNames = [numConds]string{"jz", "jnz", "je", "jne", "jl", "jle", "jg", "jge", "js", "jns"}

// Info returns the table entry for op. Unknown opcodes have Valid == false.
func Info(op byte) OpInfo { return opcodeTable[op] }

// OpcodeName returns the mnemonic of op, or a hex placeholder for unknown bytes.
func OpcodeName(op byte) string {
	if info := opcodeTable[op]; info.Valid {
		return info.Name
	}
	return fmt.Sprintf("db 0x%02x", op)
}

// Lookup maps a mnemonic back to its opcode.
func Lookup(name string) (byte, bool) {
	op, ok := mnemonics[name]
	return op, ok
}

var mnemonics = func() map[string]byte {
	m := make(map[string]byte, 64)
	for i, info := range opcodeTable {
		if info.Valid {
			m[info.Name] = byte(i)
		}
	}
	return m
}()

// CondName returns the mnemonic of a condition code.
func CondName(cond byte) string {
	if cond < numConds {
		return condNames[cond]
	}
	return fmt.Sprintf("cond(0x%02x)", cond)
}

// ValidCond reports whether cond is a defined condition code.
func ValidCond(cond byte) bool { return cond < numConds }

// IsCall reports whether op pushes a frame.
func IsCall(op byte) bool {
	switch op {
	case CALL, CALL_NEAR, CALL_SHORT, CALL_LONG, FAST_CALL_SHORT:
		return true
	}
	return false
}

// KeepsFlags reports whether op leaves flags.Low for the next instruction: the
// compare family sets it and the conditional jumps consume it. Every other
// opcode clears it.
func KeepsFlags(op byte) bool {
	return (op >= CMP && op <= CMP_IMM_U32) || (op >= JL_NEAR && op <= JL_LONG)
}

// IsReturn reports whether op pops a frame.
func IsReturn(op byte) bool { return op >= RET && op <= FAST_RET_EAX_N }

// InstructionLength is the encoded size of the instruction starting with op.
// Unknown opcodes occupy a single byte.
func InstructionLength(op byte, operands []byte) int {
	info := opcodeTable[op]
	if !info.Valid {
		return 1
	}
	if op == NOP_N && len(operands) > 0 && operands[0] > 1 {
		return int(operands[0]) + 1
	}
	return info.Size()
}
