package jvm

import (
	"fmt"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// Mode selects how VM calls are realised.
type Mode uint8

const (
	ModeStandard Mode = iota // host recursion per call
	ModeInline               // flat loop with continuation tags
)

func (m Mode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "standard"
}

// ResultCache stores finished runs. Keys come from RunKey.
type ResultCache interface {
	Get(key common.Hash) (ReturnValue, bool, error)
	Put(key common.Hash, v ReturnValue) error
}

// RunKey identifies a run of an image on one input in one mode under the
// settings that can change its outcome.
func RunKey(image common.Hash, input uint32, mode Mode, cfg Config) common.Hash {
	return common.Blake2HashParts(image.Bytes(), common.Uint32ToBytes(input), []byte{byte(mode)}, cfg.outcomeKey())
}

// outcomeKey encodes the settings a result depends on. Direction and Trace
// only change layout and logging.
func (c Config) outcomeKey() []byte {
	var bits byte
	if c.Strict {
		bits |= 1
	}
	if c.CheckFrames {
		bits |= 2
	}
	out := append(common.Uint64ToBytes(uint64(c.StackSize)), common.Uint64ToBytes(uint64(c.CallStackSize))...)
	out = append(out, common.Uint64ToBytes(uint64(c.MaxCallDepth))...)
	return append(out, bits)
}

// Engine loads an image once and runs it on many inputs.
type Engine struct {
	loader program.Loader
	cfg    Config
	cache  ResultCache

	img *program.Image
	ctx *Context
}

func NewEngine(loader program.Loader, cfg Config) *Engine {
	return &Engine{loader: loader, cfg: cfg}
}

// WithCache makes successful runs consult and fill c.
func (e *Engine) WithCache(c ResultCache) *Engine {
	e.cache = c
	return e
}

// Create loads the image and builds the execution context.
func (e *Engine) Create() error {
	if e.loader == nil {
		return fmt.Errorf("no loader: %w", vmerrors.ErrLoad)
	}
	img, err := e.loader.Load()
	if err != nil {
		return err
	}
	ctx, err := NewContext(img, e.cfg)
	if err != nil {
		return err
	}
	e.img, e.ctx = img, ctx
	log.Debug(log.VMEngine, "image loaded", "size", img.Size(), "entry", img.Entry(), "input", img.InputOffset(), "hash", img.Hash().String_short())
	return nil
}

func (e *Engine) Image() *program.Image { return e.img }

// Context returns the execution context, or nil before Create.
func (e *Engine) Context() *Context { return e.ctx }

// Run patches input into the image and executes it with host recursion.
func (e *Engine) Run(input uint32) (ReturnValue, error) { return e.run(input, ModeStandard) }

// RunInline is Run without host recursion.
func (e *Engine) RunInline(input uint32) (ReturnValue, error) { return e.run(input, ModeInline) }

// RunMode dispatches on mode.
func (e *Engine) RunMode(input uint32, mode Mode) (ReturnValue, error) { return e.run(input, mode) }

func (e *Engine) run(input uint32, mode Mode) (ReturnValue, error) {
	if e.ctx == nil {
		return ReturnValue{}, vmerrors.ErrNotCreated
	}
	var key common.Hash
	if e.cache != nil {
		key = RunKey(e.img.Hash(), input, mode, e.cfg)
		rv, ok, err := e.cache.Get(key)
		if err != nil {
			log.Warn(log.CacheMod, "result cache read failed", "err", err)
		} else if ok {
			log.Debug(log.CacheMod, "result cache hit", "input", input, "mode", mode, "raw", rv.Raw)
			return rv, nil
		}
	}

	if e.img.InputOffset() != program.NoInput {
		if err := e.img.PatchInput(input); err != nil {
			return ReturnValue{}, err
		}
	}

	var (
		rv  ReturnValue
		err error
	)
	if mode == ModeInline {
		rv, err = e.ctx.RunInline()
	} else {
		rv, err = e.ctx.Run()
	}
	if err != nil {
		return ReturnValue{}, err
	}
	if e.cache != nil {
		if err := e.cache.Put(key, rv); err != nil {
			log.Warn(log.CacheMod, "result cache write failed", "err", err)
		}
	}
	return rv, nil
}
