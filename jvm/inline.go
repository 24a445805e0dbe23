package jvm

import (
	"fmt"
	"math"

	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// ContinuationID names a resumption point in RunInline. Each distinct return address
// gets one the first time a call site is executed; 0 is reserved for halting.
type ContinuationID uint16

const haltContinuation ContinuationID = 0

func (ctx *Context) continuationFor(ip int) (ContinuationID, error) {
	if id, ok := ctx.tags[ip]; ok {
		return id, nil
	}
	if len(ctx.resume) > math.MaxUint16 {
		return 0, fmt.Errorf("more than %d resumption points: %w", math.MaxUint16, vmerrors.ErrBadContinuation)
	}
	id := ContinuationID(len(ctx.resume))
	ctx.resume = append(ctx.resume, ip)
	ctx.tags[ip] = id
	return id, nil
}

func (ctx *Context) pushContinuation(ip int) error {
	id, err := ctx.continuationFor(ip)
	if err != nil {
		return err
	}
	return memory.Push(ctx.calls, id)
}

// resumeContinuation pops the innermost tag and jumps to its resumption point.
// ret is the address the frame linkage recorded; with CheckFrames both must agree
// for every tag but the halt tag.
func (ctx *Context) resumeContinuation(ret int) (execState, error) {
	id, err := memory.Pop[ContinuationID](ctx.calls)
	if err != nil {
		return stateHalted, err
	}
	if id == haltContinuation {
		if ret == 0 {
			return stateHalted, nil
		}
		// The root linkage holds a live address: keep running there as Run does,
		// with the halt tag still outermost.
		if err := memory.Push(ctx.calls, haltContinuation); err != nil {
			return stateHalted, err
		}
		ctx.ip = ret
		return stateReturn, nil
	}
	if int(id) >= len(ctx.resume) {
		return stateHalted, fmt.Errorf("continuation %d: %w", id, vmerrors.ErrBadContinuation)
	}
	ip := ctx.resume[id]
	if ctx.cfg.CheckFrames && ip != ret {
		return stateHalted, fmt.Errorf("continuation %d resumes at %d, frame returns to %d: %w", id, ip, ret, vmerrors.ErrFrameMismatch)
	}
	ctx.ip = ip
	return stateReturn, nil
}

// Continuations reports how many resumption points have been assigned.
func (ctx *Context) Continuations() int { return len(ctx.resume) - 1 }
