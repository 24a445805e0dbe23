package jvm

import "github.com/colorfulnotion/jasm/jvm/program"

func init() {
	initDispatchTable()
}

// OpcodeHandler executes one decoded instruction. operands excludes the opcode byte.
type OpcodeHandler func(ctx *Context, operands []byte) (execState, error)

var dispatchTable [256]OpcodeHandler

func initDispatchTable() {
	for i := range dispatchTable {
		dispatchTable[i] = func(ctx *Context, _ []byte) (execState, error) {
			return ctx.unknownOpcode(ctx.op)
		}
	}

	// Misc
	dispatchTable[program.NOP] = (*Context).handleNOP
	dispatchTable[program.NOP_N] = (*Context).handleNOP_N
	dispatchTable[program.ERROR] = (*Context).handleERROR
	dispatchTable[program.EXIT] = (*Context).handleEXIT

	// Stack
	dispatchTable[program.PUSH] = (*Context).handlePUSH
	dispatchTable[program.PUSH_I32] = (*Context).handlePUSH_I32
	dispatchTable[program.PUSH_I64] = (*Context).handlePUSH_I64
	dispatchTable[program.PUSH_I32_0] = (*Context).handlePUSH_I32_0
	dispatchTable[program.POP] = (*Context).handlePOP
	dispatchTable[program.POP_I32] = (*Context).handlePOP_I32
	dispatchTable[program.POP_I64] = (*Context).handlePOP_I64
	dispatchTable[program.ADD_SP] = (*Context).handleADD_SP
	dispatchTable[program.ADD_SP_4] = (*Context).handleADD_SP_4

	// Data
	dispatchTable[program.LOAD_EAX] = (*Context).handleLOAD_EAX
	dispatchTable[program.STORE] = (*Context).handleSTORE
	dispatchTable[program.MOVE] = (*Context).handleMOVE
	dispatchTable[program.MOVE_TO_EAX] = (*Context).handleMOVE_TO_EAX
	dispatchTable[program.COPY_FROM_EAX] = (*Context).handleCOPY_FROM_EAX

	// Arithmetic
	dispatchTable[program.ADD] = (*Context).handleADD
	dispatchTable[program.ADD_IMM] = (*Context).handleADD_IMM
	dispatchTable[program.ADD_EAX] = (*Context).handleADD_EAX
	dispatchTable[program.ADD_EAX_IMM] = (*Context).handleADD_EAX_IMM
	dispatchTable[program.SUB] = (*Context).handleSUB
	dispatchTable[program.SUB_IMM] = (*Context).handleSUB_IMM
	dispatchTable[program.SUB_EAX] = (*Context).handleSUB_EAX
	dispatchTable[program.SUB_EAX_IMM] = (*Context).handleSUB_EAX_IMM
	dispatchTable[program.INC] = (*Context).handleINC
	dispatchTable[program.DEC] = (*Context).handleDEC

	// Compare
	dispatchTable[program.CMP] = (*Context).handleCMP
	dispatchTable[program.CMP_I32] = (*Context).handleCMP_I32
	dispatchTable[program.CMP_U32] = (*Context).handleCMP_U32
	dispatchTable[program.CMP_IMM_I32] = (*Context).handleCMP_IMM_I32
	dispatchTable[program.CMP_IMM_U32] = (*Context).handleCMP_IMM_U32

	// Jumps
	dispatchTable[program.JMP] = (*Context).handleJMP
	dispatchTable[program.JMP_NEAR] = (*Context).handleJMP_REL
	dispatchTable[program.JMP_SHORT] = (*Context).handleJMP_REL
	dispatchTable[program.JMP_LONG] = (*Context).handleJMP_REL
	dispatchTable[program.JL_NEAR] = (*Context).handleJL
	dispatchTable[program.JL_SHORT] = (*Context).handleJL
	dispatchTable[program.JL_LONG] = (*Context).handleJL

	// Calls
	dispatchTable[program.CALL] = (*Context).handleCALL
	dispatchTable[program.CALL_NEAR] = (*Context).handleCALL_REL
	dispatchTable[program.CALL_SHORT] = (*Context).handleCALL_REL
	dispatchTable[program.CALL_LONG] = (*Context).handleCALL_REL
	dispatchTable[program.FAST_CALL_SHORT] = (*Context).handleFAST_CALL_SHORT

	// Returns
	dispatchTable[program.RET] = (*Context).handleRET
	dispatchTable[program.RET_N] = (*Context).handleRET_N
	dispatchTable[program.RET_N_SM] = (*Context).handleRET_N_SM
	dispatchTable[program.RET_EAX] = (*Context).handleRET_EAX
	dispatchTable[program.RET_EAX_N] = (*Context).handleRET_EAX_N
	dispatchTable[program.FAST_RET_N] = (*Context).handleFAST_RET_N
	dispatchTable[program.FAST_RET_EAX_N] = (*Context).handleFAST_RET_EAX_N
}

// Operand extraction. Handlers are only dispatched with a full operand slice.

func extractSlot(operands []byte, at int) int8 { return int8(operands[at]) }

func extractU8(operands []byte, at int) uint8 { return operands[at] }

func extractU16(operands []byte, at int) uint16 {
	return uint16(program.DecodeField(program.FieldU16, operands[at:]))
}

func extractImm32(operands []byte, at int) uint32 {
	return uint32(program.DecodeField(program.FieldImm32, operands[at:]))
}

func extractI32(operands []byte, at int) int32 {
	return int32(program.DecodeField(program.FieldI32, operands[at:]))
}

func extractImm64(operands []byte, at int) uint64 {
	return uint64(program.DecodeField(program.FieldImm64, operands[at:]))
}

// extractRel decodes a trailing relative offset of any width.
func extractRel(operands []byte, at int) int64 {
	switch len(operands) - at {
	case 1:
		return program.DecodeField(program.FieldRel8, operands[at:])
	case 2:
		return program.DecodeField(program.FieldRel16, operands[at:])
	default:
		return program.DecodeField(program.FieldRel32, operands[at:])
	}
}
