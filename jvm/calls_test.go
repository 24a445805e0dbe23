package jvm

import (
	"testing"

	"github.com/colorfulnotion/jasm/jvm/memory"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fibContext(t *testing.T, conv program.Convention, cfg Config) (*program.Image, *Context) {
	t.Helper()
	img, err := program.Fibonacci(conv)
	require.NoError(t, err)
	return img, newTestContext(t, img, cfg)
}

func TestFibonacciMatchesReference(t *testing.T) {
	for _, conv := range []program.Convention{program.Linked, program.Fast} {
		for _, dir := range directions {
			for _, inline := range []bool{false, true} {
				img, ctx := fibContext(t, conv, testConfig(dir))
				for n := uint32(1); n <= 25; n++ {
					require.NoError(t, img.PatchInput(n))
					var (
						rv  ReturnValue
						err error
					)
					if inline {
						rv, err = ctx.RunInline()
					} else {
						rv, err = ctx.Run()
					}
					require.NoError(t, err, "%s %s inline=%v n=%d", conv, dir, inline, n)
					require.Equal(t, program.FibReference(n), rv.U32(), "%s %s inline=%v n=%d", conv, dir, inline, n)
				}
			}
		}
	}
}

func TestFastFibonacciOfTwenty(t *testing.T) {
	img := mustBuild(t, func(b *program.Builder) {
		b.Emit(program.STORE, 0, 20).
			FastCall(8, "fib").
			Emit(program.RET_N, 8).
			Label("fib").
			Emit(program.CMP_IMM_U32, -4, 3, int64(program.CondJL)).
			Jump(program.JL_NEAR, "base").
			Emit(program.MOVE, 0, -4).
			Emit(program.DEC, 0).
			FastCall(8, "fib").
			Emit(program.COPY_FROM_EAX, 1).
			Emit(program.DEC, 0).
			FastCall(8, "fib").
			Emit(program.ADD_EAX, 1).
			Emit(program.RET_N, 8).
			Label("base").
			Emit(program.RET_EAX_N, 8, 1)
	})
	for _, dir := range directions {
		ctx := newTestContext(t, img, testConfig(dir))
		rv, err := ctx.Run()
		require.NoError(t, err, "%s", dir)
		assert.Equal(t, uint64(6765), rv.Raw, "%s", dir)

		rv, err = ctx.RunInline()
		require.NoError(t, err, "%s inline", dir)
		assert.Equal(t, uint64(6765), rv.Raw, "%s inline", dir)
	}
}

// ret_n returns through whichever convention made the innermost call.
func TestRetNFollowsInnermostCall(t *testing.T) {
	for _, dir := range directions {
		img := mustBuild(t, func(b *program.Builder) {
			b.FastCall(12, "f").
				Emit(program.EXIT).
				Label("f").
				Emit(program.MOVE_TO_EAX, -5).
				Emit(program.RET_N_SM, 12)
		})
		ctx := newTestContext(t, img, testConfig(dir))
		require.NoError(t, ctx.reset(false))
		fp, sp := ctx.FP(), ctx.SP()
		require.NoError(t, ctx.setSlot(0, 44))

		_, err := ctx.step()
		require.NoError(t, err)
		_, err = ctx.step()
		require.NoError(t, err)
		st, err := ctx.step()
		require.NoError(t, err)
		require.Equal(t, stateReturn, st)
		assert.Equal(t, 4, ctx.IP())
		assert.Equal(t, fp, ctx.FP())
		assert.Equal(t, ctx.Stack().Offset(sp, 12), ctx.SP())
		assert.Equal(t, uint32(44), ctx.Registers().EAX())
		assert.Zero(t, ctx.Depth())
	}
}

func TestLinkedAndFastAgree(t *testing.T) {
	linkedImg, linked := fibContext(t, program.Linked, testConfig(memory.Forward{}))
	fastImg, fast := fibContext(t, program.Fast, testConfig(memory.Backward{}))
	for _, n := range []uint32{1, 2, 7, 16} {
		require.NoError(t, linkedImg.PatchInput(n))
		require.NoError(t, fastImg.PatchInput(n))
		a, err := linked.Run()
		require.NoError(t, err)
		b, err := fast.RunInline()
		require.NoError(t, err)
		assert.Equal(t, a, b, "n=%d", n)
	}
}

func TestLinkedCallReturnRestoresState(t *testing.T) {
	for _, dir := range directions {
		img := mustBuild(t, func(b *program.Builder) {
			b.Call("f").
				Emit(program.EXIT).
				Label("f").
				Emit(program.ADD_SP, 8).
				Emit(program.RET_N, 8)
		})
		ctx := newTestContext(t, img, testConfig(dir))
		require.NoError(t, ctx.reset(false))
		fp, sp := ctx.FP(), ctx.SP()

		st, err := ctx.step()
		require.NoError(t, err)
		require.Equal(t, stateCall, st)
		assert.Equal(t, 4, ctx.IP())
		assert.Equal(t, ctx.SP(), ctx.FP())
		assert.Equal(t, ctx.Stack().Offset(fp, 2*memory.PointerSize), ctx.FP())
		assert.Equal(t, 1, ctx.Depth())

		_, err = ctx.step() // add_sp
		require.NoError(t, err)
		st, err = ctx.step() // ret_n
		require.NoError(t, err)
		require.Equal(t, stateReturn, st)
		assert.Equal(t, 3, ctx.IP())
		assert.Equal(t, fp, ctx.FP())
		assert.Equal(t, sp, ctx.SP())
		assert.Equal(t, 0, ctx.Depth())
	}
}

func TestFastCallReturnRestoresState(t *testing.T) {
	for _, dir := range directions {
		img := mustBuild(t, func(b *program.Builder) {
			b.FastCall(12, "f").
				Emit(program.EXIT).
				Label("f").
				Emit(program.MOVE_TO_EAX, -5).
				Emit(program.FAST_RET_N, 12)
		})
		ctx := newTestContext(t, img, testConfig(dir))
		require.NoError(t, ctx.reset(false))
		fp, sp := ctx.FP(), ctx.SP()
		require.NoError(t, ctx.setSlot(0, 31))

		st, err := ctx.step()
		require.NoError(t, err)
		require.Equal(t, stateCall, st)
		assert.Equal(t, 5, ctx.IP())
		assert.Equal(t, ctx.Stack().Offset(fp, 12+memory.PointerSize), ctx.FP())

		// caller slot 0 is callee slot 0 - (12+8)/4
		v, err := ctx.Slot(-5)
		require.NoError(t, err)
		assert.Equal(t, uint32(31), v)

		_, err = ctx.step()
		require.NoError(t, err)
		st, err = ctx.step()
		require.NoError(t, err)
		require.Equal(t, stateReturn, st)
		assert.Equal(t, 4, ctx.IP())
		assert.Equal(t, fp, ctx.FP())
		assert.Equal(t, ctx.Stack().Offset(sp, 12), ctx.SP(), "sp stays past the caller locals")
		assert.Equal(t, uint32(31), ctx.Registers().EAX())
	}
}

func TestFrameMismatch(t *testing.T) {
	cases := []struct {
		name string
		emit func(b *program.Builder)
	}{
		{"linked_short_release", func(b *program.Builder) {
			b.Call("f").Emit(program.EXIT).
				Label("f").Emit(program.ADD_SP, 8).Emit(program.RET_N, 4)
		}},
		{"fast_wrong_local", func(b *program.Builder) {
			b.FastCall(8, "f").Emit(program.EXIT).
				Label("f").Emit(program.FAST_RET_N, 4)
		}},
		{"fast_return_from_linked_call", func(b *program.Builder) {
			b.Call("f").Emit(program.EXIT).
				Label("f").Emit(program.FAST_RET_N, 0)
		}},
		{"ret_n_wrong_local_on_fast_call", func(b *program.Builder) {
			b.FastCall(8, "f").Emit(program.EXIT).
				Label("f").Emit(program.RET_N, 4)
		}},
		{"ret_eax_n_wrong_local_on_fast_call", func(b *program.Builder) {
			b.FastCall(8, "f").Emit(program.EXIT).
				Label("f").Emit(program.RET_EAX_N, 12, 1)
		}},
		{"linked_return_from_fast_call", func(b *program.Builder) {
			b.FastCall(0, "f").Emit(program.EXIT).
				Label("f").Emit(program.RET)
		}},
	}
	for _, tc := range cases {
		img := mustBuild(t, tc.emit)
		for _, dir := range directions {
			ctx := newTestContext(t, img, testConfig(dir))
			_, err := ctx.Run()
			assert.ErrorIs(t, err, vmerrors.ErrFrameMismatch, "%s %s", tc.name, dir)
			_, err = ctx.RunInline()
			assert.ErrorIs(t, err, vmerrors.ErrFrameMismatch, "%s %s inline", tc.name, dir)
		}
	}
}

func TestFrameCheckDisabled(t *testing.T) {
	img := mustBuild(t, func(b *program.Builder) {
		b.FastCall(8, "f").Emit(program.EXIT).
			Label("f").Emit(program.LOAD_EAX, 5).Emit(program.FAST_RET_N, 8)
	})
	cfg := testConfig(memory.Forward{})
	cfg.CheckFrames = false
	rv, err := newTestContext(t, img, cfg).RunInline()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), rv.U32())
}

func TestCallDepthLimit(t *testing.T) {
	cfg := testConfig(memory.Forward{})
	cfg.MaxCallDepth = 10
	img, ctx := fibContext(t, program.Linked, cfg)
	require.NoError(t, img.PatchInput(20))

	_, err := ctx.Run()
	require.ErrorIs(t, err, vmerrors.ErrCallDepthExceeded)
	assert.Equal(t, "X4", vmerrors.Code(err))

	// the flat loop is bounded by its buffers only
	rv, err := ctx.RunInline()
	require.NoError(t, err)
	assert.Equal(t, uint32(6765), rv.U32())
	assert.Equal(t, 19, ctx.MaxDepth())
}

func TestInlineContinuationStackExhaustion(t *testing.T) {
	cfg := testConfig(memory.Forward{})
	cfg.CallStackSize = 8 // halt tag plus three calls
	img, ctx := fibContext(t, program.Fast, cfg)
	require.NoError(t, img.PatchInput(10))
	_, err := ctx.RunInline()
	assert.ErrorIs(t, err, vmerrors.ErrOutOfBounds)

	require.NoError(t, img.PatchInput(4))
	rv, err := ctx.RunInline()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rv.U32())
}

func TestContinuationsAssignedPerReturnSite(t *testing.T) {
	img, ctx := fibContext(t, program.Linked, testConfig(memory.Forward{}))
	require.NoError(t, img.PatchInput(12))
	_, err := ctx.RunInline()
	require.NoError(t, err)
	// main's call plus the two recursive call sites
	assert.Equal(t, 3, ctx.Continuations())

	_, err = ctx.RunInline()
	require.NoError(t, err)
	assert.Equal(t, 3, ctx.Continuations())
}

func TestBadContinuationTag(t *testing.T) {
	img := mustBuild(t, func(b *program.Builder) {
		b.Call("f").Emit(program.EXIT).Label("f").Emit(program.RET)
	})
	ctx := newTestContext(t, img, testConfig(memory.Forward{}))
	require.NoError(t, ctx.reset(true))
	_, err := ctx.step()
	require.NoError(t, err)
	// corrupt the innermost tag
	_, err = memory.Pop[ContinuationID](ctx.calls)
	require.NoError(t, err)
	require.NoError(t, memory.Push(ctx.calls, ContinuationID(99)))
	_, err = ctx.step()
	assert.ErrorIs(t, err, vmerrors.ErrBadContinuation)
}

func TestBacktraceAtBreakDepth(t *testing.T) {
	for _, conv := range []program.Convention{program.Linked, program.Fast} {
		for _, dir := range directions {
			img, ctx := fibContext(t, conv, testConfig(dir))
			require.NoError(t, img.PatchInput(10))
			ctx.SetBreakDepth(3)
			rv, err := ctx.Run()
			require.NoError(t, err)
			assert.Equal(t, uint32(55), rv.U32())

			trap := ctx.Trap()
			require.NotNil(t, trap, "%s %s", conv, dir)
			assert.Empty(t, trap.Err)
			assert.Equal(t, 3, trap.Depth)
			require.Len(t, trap.Frames, 4)
			for i, f := range trap.Frames {
				assert.Equal(t, 3-i, f.Depth)
				if f.Depth > 0 {
					assert.Equal(t, conv, f.Convention)
					assert.NotZero(t, f.ReturnIP)
				}
			}
			// the root frame is where reset left fp
			assert.Equal(t, ctx.Stack().Offset(ctx.Stack().Origin(), 2*memory.PointerSize), trap.Frames[3].FP)
			assert.Equal(t, trap.IP, trap.State.IP)
		}
	}
}
