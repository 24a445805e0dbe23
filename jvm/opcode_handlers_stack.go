package jvm

import "github.com/colorfulnotion/jasm/jvm/memory"

// Stack manipulation handlers

func (ctx *Context) handlePUSH(operands []byte) (execState, error) {
	v, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	if err := memory.Push(ctx.stack, v); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handlePUSH_I32(operands []byte) (execState, error) {
	if err := memory.Push(ctx.stack, extractImm32(operands, 0)); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handlePUSH_I64(operands []byte) (execState, error) {
	if err := memory.Push(ctx.stack, extractImm64(operands, 0)); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handlePUSH_I32_0(operands []byte) (execState, error) {
	if err := memory.Push(ctx.stack, uint32(0)); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

// handlePOP discards n bytes.
func (ctx *Context) handlePOP(operands []byte) (execState, error) {
	if err := ctx.stack.Back(int(extractU8(operands, 0))); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handlePOP_I32(operands []byte) (execState, error) {
	if err := ctx.stack.Back(4); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handlePOP_I64(operands []byte) (execState, error) {
	if err := ctx.stack.Back(8); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

// handleADD_SP reserves (or, when negative, releases) n bytes of locals.
func (ctx *Context) handleADD_SP(operands []byte) (execState, error) {
	if err := ctx.stack.Next(int(extractI32(operands, 0))); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleADD_SP_4(operands []byte) (execState, error) {
	if err := ctx.stack.Next(4); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

// Data movement handlers

func (ctx *Context) handleLOAD_EAX(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, extractImm32(operands, 0))
	return ctx.next(operands)
}

func (ctx *Context) handleSTORE(operands []byte) (execState, error) {
	if err := ctx.setSlot(extractSlot(operands, 0), extractImm32(operands, 1)); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleMOVE(operands []byte) (execState, error) {
	v, err := ctx.slot(extractSlot(operands, 1))
	if err != nil {
		return stateHalted, err
	}
	if err := ctx.setSlot(extractSlot(operands, 0), v); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleMOVE_TO_EAX(operands []byte) (execState, error) {
	v, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	SetReg(&ctx.regs, EAX, v)
	return ctx.next(operands)
}

func (ctx *Context) handleCOPY_FROM_EAX(operands []byte) (execState, error) {
	if err := ctx.setSlot(extractSlot(operands, 0), ctx.regs.EAX()); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}
