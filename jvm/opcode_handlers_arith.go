package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// Arithmetic handlers. All arithmetic is on 32-bit values and wraps.

// slotOp applies f to slot dst in place.
func (ctx *Context) slotOp(dst int8, f func(uint32) uint32) error {
	v, err := ctx.slot(dst)
	if err != nil {
		return err
	}
	return ctx.setSlot(dst, f(v))
}

func (ctx *Context) handleADD(operands []byte) (execState, error) {
	src, err := ctx.slot(extractSlot(operands, 1))
	if err != nil {
		return stateHalted, err
	}
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v + src }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleADD_IMM(operands []byte) (execState, error) {
	imm := extractImm32(operands, 1)
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v + imm }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleADD_EAX(operands []byte) (execState, error) {
	v, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	SetReg(&ctx.regs, EAX, ctx.regs.EAX()+v)
	return ctx.next(operands)
}

func (ctx *Context) handleADD_EAX_IMM(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, ctx.regs.EAX()+extractImm32(operands, 0))
	return ctx.next(operands)
}

func (ctx *Context) handleSUB(operands []byte) (execState, error) {
	src, err := ctx.slot(extractSlot(operands, 1))
	if err != nil {
		return stateHalted, err
	}
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v - src }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleSUB_IMM(operands []byte) (execState, error) {
	imm := extractImm32(operands, 1)
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v - imm }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleSUB_EAX(operands []byte) (execState, error) {
	v, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	SetReg(&ctx.regs, EAX, ctx.regs.EAX()-v)
	return ctx.next(operands)
}

func (ctx *Context) handleSUB_EAX_IMM(operands []byte) (execState, error) {
	SetReg(&ctx.regs, EAX, ctx.regs.EAX()-extractImm32(operands, 0))
	return ctx.next(operands)
}

func (ctx *Context) handleINC(operands []byte) (execState, error) {
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v + 1 }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

func (ctx *Context) handleDEC(operands []byte) (execState, error) {
	if err := ctx.slotOp(extractSlot(operands, 0), func(v uint32) uint32 { return v - 1 }); err != nil {
		return stateHalted, err
	}
	return ctx.next(operands)
}

// Compare handlers. The condition lands in flags.Low for the next jl_*.

// evalCond compares a with b. js/jns look at the sign of the 32-bit difference.
func evalCond(cond byte, a, b uint32, signed bool) (bool, error) {
	less := a < b
	if signed {
		less = int32(a) < int32(b)
	}
	switch cond {
	case program.CondJZ, program.CondJE:
		return a == b, nil
	case program.CondJNZ, program.CondJNE:
		return a != b, nil
	case program.CondJL:
		return less, nil
	case program.CondJLE:
		return less || a == b, nil
	case program.CondJG:
		return !less && a != b, nil
	case program.CondJGE:
		return !less, nil
	case program.CondJS:
		return int32(a-b) < 0, nil
	case program.CondJNS:
		return int32(a-b) >= 0, nil
	}
	return false, fmt.Errorf("condition code 0x%02x: %w", cond, vmerrors.ErrMalformedProgram)
}

func (ctx *Context) compare(operands []byte, a, b uint32, signed bool) (execState, error) {
	taken, err := evalCond(operands[len(operands)-1], a, b, signed)
	if err != nil {
		return stateHalted, err
	}
	ctx.regs.Flags.SetLow(taken)
	return ctx.next(operands)
}

// handleCMP compares eax against a slot, signed.
func (ctx *Context) handleCMP(operands []byte) (execState, error) {
	b, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	return ctx.compare(operands, ctx.regs.EAX(), b, true)
}

func (ctx *Context) slotPair(operands []byte) (uint32, uint32, error) {
	a, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return 0, 0, err
	}
	b, err := ctx.slot(extractSlot(operands, 1))
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (ctx *Context) handleCMP_I32(operands []byte) (execState, error) {
	a, b, err := ctx.slotPair(operands)
	if err != nil {
		return stateHalted, err
	}
	return ctx.compare(operands, a, b, true)
}

func (ctx *Context) handleCMP_U32(operands []byte) (execState, error) {
	a, b, err := ctx.slotPair(operands)
	if err != nil {
		return stateHalted, err
	}
	return ctx.compare(operands, a, b, false)
}

func (ctx *Context) handleCMP_IMM_I32(operands []byte) (execState, error) {
	a, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	return ctx.compare(operands, a, extractImm32(operands, 1), true)
}

func (ctx *Context) handleCMP_IMM_U32(operands []byte) (execState, error) {
	a, err := ctx.slot(extractSlot(operands, 0))
	if err != nil {
		return stateHalted, err
	}
	return ctx.compare(operands, a, extractImm32(operands, 1), false)
}
