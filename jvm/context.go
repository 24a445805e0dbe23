// Package jvm executes jasm images.
//
// A Context owns one image, the register file, and the stack buffers. It offers two ways
// of realising VM calls: Run recurses into the host dispatch loop for every call, while
// RunInline keeps the loop flat and resumes returns through continuation tags.
package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/config"
	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// Config sizes and tunes a Context.
type Config struct {
	StackSize     int
	CallStackSize int // continuation tag buffer used by RunInline
	Direction     memory.Direction
	Strict        bool // unknown opcodes fail instead of being skipped
	CheckFrames   bool
	MaxCallDepth  int // host recursion limit for Run
	Trace         bool
}

// DefaultConfig mirrors config.Default().
func DefaultConfig() Config {
	cfg, _ := NewConfig(config.Default().VM)
	return cfg
}

// NewConfig converts the file representation.
func NewConfig(vc config.VMConfig) (Config, error) {
	dir, err := memory.ParseDirection(vc.Direction)
	if err != nil {
		return Config{}, err
	}
	return Config{
		StackSize:     vc.StackSize,
		CallStackSize: vc.CallStackSize,
		Direction:     dir,
		Strict:        vc.Strict,
		CheckFrames:   vc.FramesChecked(),
		MaxCallDepth:  vc.MaxCallDepth,
		Trace:         vc.Trace,
	}, nil
}

// RunError locates a failure in the instruction stream.
type RunError struct {
	IP     int
	Opcode byte
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ip 0x%04x (%s): %v", e.IP, program.OpcodeName(e.Opcode), e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

type execState uint8

const (
	stateRunning execState = iota
	stateCall              // linkage pushed, ip at the callee
	stateReturn            // linkage popped, ip at the resumption point
	stateHalted
)

// Context is the per-image execution state. It is not safe for concurrent use.
type Context struct {
	cfg   Config
	img   *program.Image
	code  []byte
	limit int

	regs  Registers
	stack *memory.Cursor // sp is stack.Pos()
	fp    int
	ip    int

	// op and opIP describe the instruction being executed.
	op   byte
	opIP int

	inline bool
	calls  *memory.Cursor // continuation tags, RunInline only
	resume []int          // continuation tag -> ip; tag 0 halts
	tags   map[int]ContinuationID

	frames     []frameRecord
	depth      int
	maxDepth   int
	steps      uint64
	tracing    bool
	breakDepth int
	trap       *Trap
	result     ReturnValue
}

func NewContext(img *program.Image, cfg Config) (*Context, error) {
	if img == nil {
		return nil, vmerrors.ErrNotCreated
	}
	if cfg.Direction == nil {
		cfg.Direction = memory.Forward{}
	}
	if cfg.StackSize < 2*memory.PointerSize {
		return nil, fmt.Errorf("stack size %d cannot hold the root frame", cfg.StackSize)
	}
	if cfg.CallStackSize < 2 {
		cfg.CallStackSize = config.DefaultCallStackSize
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = config.DefaultMaxCallDepth
	}
	return &Context{
		cfg:    cfg,
		img:    img,
		code:   img.Code(),
		limit:  img.Size(),
		stack:  memory.NewCursor(make([]byte, cfg.StackSize), cfg.Direction),
		calls:  memory.NewCursor(make([]byte, cfg.CallStackSize), cfg.Direction),
		resume: []int{0},
		tags:   make(map[int]ContinuationID),
	}, nil
}

func (ctx *Context) Config() Config        { return ctx.cfg }
func (ctx *Context) Image() *program.Image { return ctx.img }
func (ctx *Context) Registers() *Registers { return &ctx.regs }
func (ctx *Context) IP() int               { return ctx.ip }
func (ctx *Context) SP() int               { return ctx.stack.Pos() }
func (ctx *Context) FP() int               { return ctx.fp }
func (ctx *Context) Steps() uint64         { return ctx.steps }
func (ctx *Context) MaxDepth() int         { return ctx.maxDepth }
func (ctx *Context) Result() ReturnValue   { return ctx.result }

// Stack exposes the value stack; its Pos is sp.
func (ctx *Context) Stack() *memory.Cursor { return ctx.stack }

// Run executes the image from its entry with host recursion per VM call.
func (ctx *Context) Run() (ReturnValue, error) { return ctx.run(false) }

// RunInline executes the image without host recursion.
func (ctx *Context) RunInline() (ReturnValue, error) { return ctx.run(true) }

func (ctx *Context) run(inline bool) (ReturnValue, error) {
	if err := ctx.reset(inline); err != nil {
		return ReturnValue{}, err
	}
	if _, err := ctx.execute(0); err != nil {
		log.Debug(log.VMExec, "run failed", "err", err, "steps", ctx.steps)
		return ReturnValue{}, err
	}
	ctx.result = ReturnValue{Kind: Basic, Raw: ctx.regs.Get64(EAX)}
	log.Debug(log.VMExec, "halt", "eax", ctx.result.Raw, "steps", ctx.steps, "maxDepth", ctx.maxDepth, "inline", inline)
	return ctx.result, nil
}

// reset rewinds every cursor in place and seeds the null linkage record.
func (ctx *Context) reset(inline bool) error {
	ctx.regs.Reset()
	ctx.stack.Reset()
	ctx.calls.Reset()
	ctx.frames = ctx.frames[:0]
	ctx.depth, ctx.maxDepth, ctx.steps = 0, 0, 0
	ctx.trap = nil
	ctx.result = ReturnValue{}
	ctx.inline = inline
	ctx.tracing = ctx.cfg.Trace && log.IsModuleEnabled(log.VMTrace)

	if err := memory.Push(ctx.stack, memory.Pointer(0)); err != nil {
		return err
	}
	if err := memory.Push(ctx.stack, memory.Pointer(0)); err != nil {
		return err
	}
	ctx.fp = ctx.stack.Pos()
	if inline {
		if err := memory.Push(ctx.calls, haltContinuation); err != nil {
			return err
		}
	}
	ctx.ip = ctx.img.Entry()
	return nil
}

// execute runs the dispatch loop. level is the host recursion depth of this invocation.
func (ctx *Context) execute(level int) (execState, error) {
	for {
		if ctx.ip == ctx.limit {
			return stateHalted, nil
		}
		st, err := ctx.step()
		if err != nil {
			return stateHalted, err
		}
		switch st {
		case stateHalted:
			return stateHalted, nil
		case stateCall:
			if ctx.inline {
				continue
			}
			if level+1 > ctx.cfg.MaxCallDepth {
				return stateHalted, &RunError{IP: ctx.opIP, Opcode: ctx.op, Err: fmt.Errorf("depth %d: %w", level+1, vmerrors.ErrCallDepthExceeded)}
			}
			st, err = ctx.execute(level + 1)
			if err != nil || st == stateHalted {
				return stateHalted, err
			}
		case stateReturn:
			if !ctx.inline && level > 0 {
				return stateReturn, nil
			}
		}
	}
}

func (ctx *Context) step() (execState, error) {
	ip := ctx.ip
	if ip < 0 || ip >= ctx.limit {
		return stateHalted, &RunError{IP: ip, Err: fmt.Errorf("fetch at %d, image size %d: %w", ip, ctx.limit, vmerrors.ErrOutOfBounds)}
	}
	op := ctx.code[ip]
	ctx.op, ctx.opIP = op, ip
	if !program.KeepsFlags(op) {
		ctx.regs.Flags.SetLow(false)
	}
	info := program.Info(op)
	if !info.Valid {
		return ctx.unknownOpcode(op)
	}
	end := ip + info.Size()
	if end > ctx.limit {
		return stateHalted, &RunError{IP: ip, Opcode: op, Err: fmt.Errorf("truncated %s: %w", info.Name, vmerrors.ErrMalformedProgram)}
	}
	operands := ctx.code[ip+1 : end]
	if ctx.tracing {
		ctx.traceStep(op, operands)
	}
	ctx.steps++
	st, err := dispatchTable[op](ctx, operands)
	if err != nil {
		return stateHalted, &RunError{IP: ip, Opcode: op, Err: err}
	}
	return st, nil
}

func (ctx *Context) unknownOpcode(op byte) (execState, error) {
	log.Trace(log.VMExec, "unknown opcode", "ip", ctx.ip, "op", fmt.Sprintf("0x%02x", op))
	if ctx.cfg.Strict {
		return stateHalted, &RunError{IP: ctx.ip, Opcode: op, Err: fmt.Errorf("unknown opcode 0x%02x: %w", op, vmerrors.ErrMalformedProgram)}
	}
	ctx.ip++
	return stateRunning, nil
}

func (ctx *Context) traceStep(op byte, operands []byte) {
	log.Trace(log.VMTrace, program.DisassembleSingleInstruction(op, operands, ctx.ip),
		"ip", fmt.Sprintf("0x%04x", ctx.ip),
		"sp", ctx.stack.Pos(),
		"fp", ctx.fp,
		"eax", ctx.regs.EAX(),
		"flags", uint64(ctx.regs.Flags),
		"depth", ctx.depth,
	)
}

// next moves past the current instruction.
func (ctx *Context) next(operands []byte) (execState, error) {
	ctx.ip += 1 + len(operands)
	return stateRunning, nil
}

// slot reads the 32-bit frame slot idx relative to fp.
func (ctx *Context) slot(idx int8) (uint32, error) {
	return memory.GetAt[uint32](ctx.stack, ctx.fp, 0, int(idx))
}

func (ctx *Context) setSlot(idx int8, v uint32) error {
	return memory.PutAt(ctx.stack, ctx.fp, 0, int(idx), v)
}

// Slot exposes frame slot idx of the current frame.
func (ctx *Context) Slot(idx int8) (uint32, error) { return ctx.slot(idx) }
