package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// Linked frames: [saved fp][return ip] fp-> [locals]
// Fast frames:   [caller locals: L][return ip] fp-> [locals]

// frameRecord shadows one live call so returns can be checked and frames walked.
type frameRecord struct {
	conv  program.Convention
	local int // caller local size, fast frames only
}

func (ctx *Context) linkedCall(target, next int) (execState, error) {
	if err := memory.Push(ctx.stack, memory.Pointer(ctx.fp)); err != nil {
		return stateHalted, err
	}
	if err := memory.Push(ctx.stack, memory.Pointer(next)); err != nil {
		return stateHalted, err
	}
	ctx.fp = ctx.stack.Pos()
	return ctx.enter(frameRecord{conv: program.Linked}, target, next)
}

// fastCall places the return address right after the caller's local area.
func (ctx *Context) fastCall(local, target, next int) (execState, error) {
	if err := ctx.stack.SetPos(ctx.stack.Offset(ctx.fp, local)); err != nil {
		return stateHalted, err
	}
	if err := memory.Push(ctx.stack, memory.Pointer(next)); err != nil {
		return stateHalted, err
	}
	ctx.fp = ctx.stack.Pos()
	return ctx.enter(frameRecord{conv: program.Fast, local: local}, target, next)
}

func (ctx *Context) enter(rec frameRecord, target, next int) (execState, error) {
	if ctx.inline {
		if err := ctx.pushContinuation(next); err != nil {
			return stateHalted, err
		}
	}
	ctx.frames = append(ctx.frames, rec)
	ctx.depth++
	if ctx.depth > ctx.maxDepth {
		ctx.maxDepth = ctx.depth
	}
	ctx.ip = target
	if ctx.breakDepth > 0 && ctx.depth == ctx.breakDepth && ctx.trap == nil {
		ctx.trap = ctx.newTrap()
	}
	return stateCall, nil
}

// returnN serves the ret_n family for both conventions: n is the local area a
// linked frame releases, or the caller local size a fast call reserved. The
// innermost live call picks which; the root frame returns linked.
func (ctx *Context) returnN(n int) (execState, error) {
	if k := len(ctx.frames); k > 0 && ctx.frames[k-1].conv == program.Fast {
		return ctx.fastReturn(n)
	}
	return ctx.linkedReturn(n)
}

// linkedReturn releases n bytes of locals, then pops the return ip and the saved fp.
func (ctx *Context) linkedReturn(n int) (execState, error) {
	if err := ctx.stack.Back(n); err != nil {
		return stateHalted, err
	}
	if ctx.cfg.CheckFrames {
		if sp := ctx.stack.Pos(); sp != ctx.fp {
			return stateHalted, fmt.Errorf("return releasing %d bytes leaves sp %d, fp %d: %w", n, sp, ctx.fp, vmerrors.ErrFrameMismatch)
		}
		if err := ctx.checkFrame(program.Linked, 0); err != nil {
			return stateHalted, err
		}
	}
	ret, err := memory.Pop[memory.Pointer](ctx.stack)
	if err != nil {
		return stateHalted, err
	}
	saved, err := memory.Pop[memory.Pointer](ctx.stack)
	if err != nil {
		return stateHalted, err
	}
	ctx.fp = int(saved)
	return ctx.leave(int(ret))
}

// fastReturn drops the callee frame and restores the caller fp from its local size.
func (ctx *Context) fastReturn(local int) (execState, error) {
	if err := ctx.stack.SetPos(ctx.fp); err != nil {
		return stateHalted, err
	}
	if ctx.cfg.CheckFrames {
		if err := ctx.checkFrame(program.Fast, local); err != nil {
			return stateHalted, err
		}
	}
	ret, err := memory.Pop[memory.Pointer](ctx.stack)
	if err != nil {
		return stateHalted, err
	}
	ctx.fp = ctx.stack.Offset(ctx.stack.Pos(), -local)
	return ctx.leave(int(ret))
}

// checkFrame matches a return against the innermost live call. The root record
// seeded by reset has no shadow entry and accepts any return.
func (ctx *Context) checkFrame(conv program.Convention, local int) error {
	if len(ctx.frames) == 0 {
		return nil
	}
	top := ctx.frames[len(ctx.frames)-1]
	if top.conv != conv {
		return fmt.Errorf("%s return from a %s call: %w", conv, top.conv, vmerrors.ErrFrameMismatch)
	}
	if conv == program.Fast && top.local != local {
		return fmt.Errorf("fast return of %d bytes, call reserved %d: %w", local, top.local, vmerrors.ErrFrameMismatch)
	}
	return nil
}

// leave resumes the caller at ret. A null return address halts the run.
func (ctx *Context) leave(ret int) (execState, error) {
	if n := len(ctx.frames); n > 0 {
		ctx.frames = ctx.frames[:n-1]
	}
	if ctx.depth > 0 {
		ctx.depth--
	}
	if ctx.inline {
		return ctx.resumeContinuation(ret)
	}
	if ret == 0 {
		return stateHalted, nil
	}
	ctx.ip = ret
	return stateReturn, nil
}
