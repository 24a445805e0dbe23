package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// Misc handlers

func (ctx *Context) handleNOP(operands []byte) (execState, error) {
	return ctx.next(operands)
}

// handleNOP_N skips n+1 bytes counted from the opcode.
func (ctx *Context) handleNOP_N(operands []byte) (execState, error) {
	n := int(extractU8(operands, 0))
	if n < 1 {
		return stateHalted, fmt.Errorf("nop_n 0: %w", vmerrors.ErrMalformedProgram)
	}
	if ctx.ip+n+1 > ctx.limit {
		return stateHalted, fmt.Errorf("nop_n %d runs past the image: %w", n, vmerrors.ErrOutOfBounds)
	}
	ctx.ip += n + 1
	return stateRunning, nil
}

func (ctx *Context) handleERROR(operands []byte) (execState, error) {
	log.Error(log.VMExec, "error opcode", "ip", ctx.ip, "sp", ctx.stack.Pos(), "fp", ctx.fp, "eax", ctx.regs.EAX())
	return ctx.next(operands)
}

func (ctx *Context) handleEXIT(operands []byte) (execState, error) {
	return stateHalted, nil
}

// Jump handlers

func (ctx *Context) after(operands []byte) int { return ctx.ip + 1 + len(operands) }

func (ctx *Context) handleJMP(operands []byte) (execState, error) {
	ctx.ip = int(extractImm32(operands, 0))
	return stateRunning, nil
}

func (ctx *Context) handleJMP_REL(operands []byte) (execState, error) {
	ctx.ip = ctx.after(operands) + int(extractRel(operands, 0))
	return stateRunning, nil
}

// handleJL consumes flags.Low: it branches when set and always clears it.
func (ctx *Context) handleJL(operands []byte) (execState, error) {
	taken := ctx.regs.Flags.Low()
	ctx.regs.Flags.SetLow(false)
	if !taken {
		return ctx.next(operands)
	}
	ctx.ip = ctx.after(operands) + int(extractRel(operands, 0))
	return stateRunning, nil
}

// Call handlers

func (ctx *Context) handleCALL(operands []byte) (execState, error) {
	return ctx.linkedCall(int(extractImm32(operands, 0)), ctx.after(operands))
}

func (ctx *Context) handleCALL_REL(operands []byte) (execState, error) {
	next := ctx.after(operands)
	return ctx.linkedCall(next+int(extractRel(operands, 0)), next)
}

func (ctx *Context) handleFAST_CALL_SHORT(operands []byte) (execState, error) {
	next := ctx.after(operands)
	return ctx.fastCall(int(extractU8(operands, 0)), next+int(extractRel(operands, 1)), next)
}

// Return handlers

func (ctx *Context) handleRET(operands []byte) (execState, error) {
	return ctx.linkedReturn(0)
}

func (ctx *Context) handleRET_N(operands []byte) (execState, error) {
	return ctx.returnN(int(extractU16(operands, 0)))
}

func (ctx *Context) handleRET_N_SM(operands []byte) (execState, error) {
	return ctx.returnN(int(extractU8(operands, 0)))
}

func (ctx *Context) handleRET_EAX(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, extractImm32(operands, 0))
	return ctx.linkedReturn(0)
}

func (ctx *Context) handleRET_EAX_N(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, extractImm32(operands, 1))
	return ctx.returnN(int(extractU8(operands, 0)))
}

func (ctx *Context) handleFAST_RET_N(operands []byte) (execState, error) {
	return ctx.fastReturn(int(extractU8(operands, 0)))
}

func (ctx *Context) handleFAST_RET_EAX_N(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, extractImm32(operands, 1))
	return ctx.fastReturn(int(extractU8(operands, 0)))
}
