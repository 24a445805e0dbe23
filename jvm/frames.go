package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/jvm/program"
)

// FrameInfo describes one live frame, innermost first in a backtrace.
type FrameInfo struct {
	Depth      int                `json:"depth"`
	Convention program.Convention `json:"convention"`
	FP         int                `json:"fp"`
	ReturnIP   int                `json:"return_ip"`
	Local      int                `json:"local,omitempty"`
}

func (f FrameInfo) String() string {
	if f.Depth == 0 {
		return fmt.Sprintf("#0 root fp=%d", f.FP)
	}
	return fmt.Sprintf("#%d %s fp=%d ret=0x%04x", f.Depth, f.Convention, f.FP, f.ReturnIP)
}

// Backtrace walks the frame chain from the current fp to the root record.
func (ctx *Context) Backtrace() ([]FrameInfo, error) {
	out := make([]FrameInfo, 0, len(ctx.frames)+1)
	fp := ctx.fp
	for i := len(ctx.frames) - 1; i >= 0; i-- {
		rec := ctx.frames[i]
		ret, err := memory.GetAt[memory.Pointer](ctx.stack, fp, 0, -1)
		if err != nil {
			return out, err
		}
		out = append(out, FrameInfo{Depth: i + 1, Convention: rec.conv, FP: fp, ReturnIP: int(ret), Local: rec.local})
		if rec.conv == program.Linked {
			saved, err := memory.GetAt[memory.Pointer](ctx.stack, fp, 0, -2)
			if err != nil {
				return out, err
			}
			fp = int(saved)
		} else {
			fp = ctx.stack.Offset(fp, -(memory.PointerSize + rec.local))
		}
	}
	return append(out, FrameInfo{Depth: 0, FP: fp}), nil
}

// Depth is the number of live VM calls.
func (ctx *Context) Depth() int { return ctx.depth }

// Trap is captured the first time a run reaches the break depth.
type Trap struct {
	Depth  int           `json:"depth"`
	IP     int           `json:"ip"`
	Frames []FrameInfo   `json:"frames"`
	State  StateSnapshot `json:"state"`
	Err    string        `json:"error,omitempty"`
}

// SetBreakDepth arms a trap for the next runs; 0 disarms it.
func (ctx *Context) SetBreakDepth(depth int) { ctx.breakDepth = depth }

// Trap returns the trap captured by the last run, or nil.
func (ctx *Context) Trap() *Trap { return ctx.trap }

func (ctx *Context) newTrap() *Trap {
	t := &Trap{Depth: ctx.depth, IP: ctx.ip, State: ctx.State()}
	frames, err := ctx.Backtrace()
	t.Frames = frames
	if err != nil {
		t.Err = err.Error()
	}
	return t
}
