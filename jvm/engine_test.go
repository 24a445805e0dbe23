package jvm

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/vmerrors"
	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	m          map[common.Hash]ReturnValue
	hits, puts int
}

func newMapCache() *mapCache { return &mapCache{m: make(map[common.Hash]ReturnValue)} }

func (c *mapCache) Get(key common.Hash) (ReturnValue, bool, error) {
	v, ok := c.m[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Put(key common.Hash, v ReturnValue) error {
	c.puts++
	c.m[key] = v
	return nil
}

func fibEngine(t *testing.T, conv program.Convention, cfg Config) *Engine {
	t.Helper()
	img, err := program.Fibonacci(conv)
	require.NoError(t, err)
	e := NewEngine(program.Static(img), cfg)
	require.NoError(t, e.Create())
	return e
}

func TestEngineLifecycle(t *testing.T) {
	e := NewEngine(program.LoaderFunc(func() (*program.Image, error) {
		return nil, vmerrors.ErrLoad
	}), DefaultConfig())
	_, err := e.Run(1)
	assert.ErrorIs(t, err, vmerrors.ErrNotCreated)
	assert.ErrorIs(t, e.Create(), vmerrors.ErrLoad)
	assert.Nil(t, e.Context())

	assert.ErrorIs(t, NewEngine(nil, DefaultConfig()).Create(), vmerrors.ErrLoad)
}

func TestEngineRunsManyInputs(t *testing.T) {
	for _, conv := range []program.Convention{program.Linked, program.Fast} {
		e := fibEngine(t, conv, testConfig(memory.Backward{}))
		for _, n := range []uint32{20, 1, 9, 20} {
			rv, err := e.Run(n)
			require.NoError(t, err)
			assert.Equal(t, program.FibReference(n), rv.U32())

			rv, err = e.RunInline(n)
			require.NoError(t, err)
			assert.Equal(t, program.FibReference(n), rv.U32())
		}
		rv, err := e.RunMode(20, ModeInline)
		require.NoError(t, err)
		assert.Equal(t, uint64(6765), rv.Raw)
	}
}

func TestEngineWithoutInputLiteral(t *testing.T) {
	e := NewEngine(program.BytesLoader{Code: []byte{program.LOAD_EAX, 3, 0, 0, 0}, InputOffset: program.NoInput}, DefaultConfig())
	require.NoError(t, e.Create())
	rv, err := e.Run(99)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rv.U32())
}

func TestEngineResultCache(t *testing.T) {
	cache := newMapCache()
	e := fibEngine(t, program.Linked, testConfig(memory.Forward{})).WithCache(cache)

	rv, err := e.Run(15)
	require.NoError(t, err)
	steps := e.Context().Steps()
	require.NotZero(t, steps)
	assert.Equal(t, 1, cache.puts)

	again, err := e.Run(15)
	require.NoError(t, err)
	assert.Equal(t, rv, again)
	assert.Equal(t, 1, cache.hits)

	// inline runs are keyed separately
	_, err = e.RunInline(15)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.puts)

	cfg := testConfig(memory.Forward{})
	h := e.Image().Hash()
	assert.NotEqual(t, RunKey(h, 15, ModeStandard, cfg), RunKey(h, 16, ModeStandard, cfg))
	assert.NotEqual(t, RunKey(h, 15, ModeStandard, cfg), RunKey(h, 15, ModeInline, cfg))

	backward := cfg
	backward.Direction = memory.Backward{}
	backward.Trace = true
	assert.Equal(t, RunKey(h, 15, ModeStandard, cfg), RunKey(h, 15, ModeStandard, backward))
}

func TestResultCacheKeyedBySettings(t *testing.T) {
	base := testConfig(memory.Forward{})
	h := common.Blake2Hash([]byte("image"))
	for name, change := range map[string]func(*Config){
		"strict":          func(c *Config) { c.Strict = !c.Strict },
		"check_frames":    func(c *Config) { c.CheckFrames = !c.CheckFrames },
		"max_call_depth":  func(c *Config) { c.MaxCallDepth++ },
		"stack_size":      func(c *Config) { c.StackSize *= 2 },
		"call_stack_size": func(c *Config) { c.CallStackSize *= 2 },
	} {
		other := base
		change(&other)
		assert.NotEqual(t, RunKey(h, 1, ModeStandard, base), RunKey(h, 1, ModeStandard, other), name)
	}
}

func TestSharedCacheHonoursStrict(t *testing.T) {
	cache := newMapCache()
	loader := program.BytesLoader{Code: []byte{0xee, program.LOAD_EAX, 7, 0, 0, 0}, InputOffset: program.NoInput}

	lax := testConfig(memory.Forward{})
	lax.Strict = false
	e := NewEngine(loader, lax).WithCache(cache)
	require.NoError(t, e.Create())
	rv, err := e.Run(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), rv.U32())
	require.Equal(t, 1, cache.puts)

	strict := lax
	strict.Strict = true
	e = NewEngine(loader, strict).WithCache(cache)
	require.NoError(t, e.Create())
	_, err = e.Run(0)
	assert.ErrorIs(t, err, vmerrors.ErrMalformedProgram)
	assert.Zero(t, cache.hits)
}

func TestSharedCacheHonoursCallDepth(t *testing.T) {
	cache := newMapCache()
	_, err := fibEngine(t, program.Fast, testConfig(memory.Forward{})).WithCache(cache).Run(12)
	require.NoError(t, err)

	limited := testConfig(memory.Forward{})
	limited.MaxCallDepth = 4
	_, err = fibEngine(t, program.Fast, limited).WithCache(cache).Run(12)
	assert.ErrorIs(t, err, vmerrors.ErrCallDepthExceeded)
	assert.Zero(t, cache.hits)
}

func TestEngineRunErrorIsNotCached(t *testing.T) {
	cache := newMapCache()
	cfg := testConfig(memory.Forward{})
	cfg.MaxCallDepth = 4
	e := fibEngine(t, program.Fast, cfg).WithCache(cache)
	_, err := e.Run(12)
	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, vmerrors.ErrCallDepthExceeded)
	assert.Zero(t, cache.puts)
}

func snapshotJSON(t *testing.T, ctx *Context) []byte {
	t.Helper()
	s := ctx.State()
	s.Inline = false
	b, err := s.JSON()
	require.NoError(t, err)
	return b
}

func TestStandardAndInlineReachSameState(t *testing.T) {
	e := fibEngine(t, program.Fast, testConfig(memory.Forward{}))
	_, err := e.Run(18)
	require.NoError(t, err)
	standard := snapshotJSON(t, e.Context())

	_, err = e.RunInline(18)
	require.NoError(t, err)
	inline := snapshotJSON(t, e.Context())

	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare(standard, inline, &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, explanation)
}

func TestDirectionChangesOnlyLayout(t *testing.T) {
	fwd := fibEngine(t, program.Linked, testConfig(memory.Forward{}))
	bwd := fibEngine(t, program.Linked, testConfig(memory.Backward{}))
	_, err := fwd.Run(11)
	require.NoError(t, err)
	_, err = bwd.Run(11)
	require.NoError(t, err)

	a, b := fwd.Context().State(), bwd.Context().State()
	assert.Equal(t, a.Result, b.Result)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.MaxDepth, b.MaxDepth)
	assert.Equal(t, a.Registers, b.Registers)

	opts := jsondiff.DefaultConsoleOptions()
	aj, err := a.JSON()
	require.NoError(t, err)
	bj, err := b.JSON()
	require.NoError(t, err)
	diff, _ := jsondiff.Compare(aj, bj, &opts)
	assert.Equal(t, jsondiff.NoMatch, diff, "sp and fp differ between directions")
}
