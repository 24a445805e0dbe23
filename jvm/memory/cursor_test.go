package memory

import (
	"math"
	"testing"

	"github.com/colorfulnotion/jasm/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/constraints"
)

var directions = []Direction{Forward{}, Backward{}}

func roundTrip[T constraints.Integer](t *testing.T, dir Direction, v T) {
	t.Helper()
	c := NewCursor(make([]byte, 64), dir)
	require.NoError(t, c.Next(8))
	before := c.Pos()

	require.NoError(t, Push(c, v))
	assert.Equal(t, sizeOf[T](), c.Used()-8)
	got, err := Pop[T](c)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Equal(t, before, c.Pos())
}

func TestPushPopRoundTrip(t *testing.T) {
	for _, dir := range directions {
		t.Run(dir.String(), func(t *testing.T) {
			roundTrip(t, dir, int8(-7))
			roundTrip(t, dir, uint8(0xfe))
			roundTrip(t, dir, int16(math.MinInt16))
			roundTrip(t, dir, uint16(0xbeef))
			roundTrip(t, dir, int32(-123456))
			roundTrip(t, dir, uint32(math.MaxUint32))
			roundTrip(t, dir, int64(math.MinInt64))
			roundTrip(t, dir, uint64(0x0123456789abcdef))
			roundTrip(t, dir, Pointer(0xdeadbeef))
		})
	}
}

func TestPushPopOrder(t *testing.T) {
	for _, dir := range directions {
		c := NewCursor(make([]byte, 32), dir)
		require.NoError(t, Push(c, uint32(1)))
		require.NoError(t, Push(c, uint64(2)))
		require.NoError(t, Push(c, uint8(3)))

		b, err := Pop[uint8](c)
		require.NoError(t, err)
		q, err := Pop[uint64](c)
		require.NoError(t, err)
		d, err := Pop[uint32](c)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 2, 1}, []uint64{uint64(b), q, uint64(d)}, dir.String())
		assert.Equal(t, c.Origin(), c.Pos())
	}
}

func TestGetPutDoNotMove(t *testing.T) {
	for _, dir := range directions {
		c := NewCursor(make([]byte, 16), dir)
		require.NoError(t, c.Next(8))
		pos := c.Pos()
		// Put at the current position writes the slot that the next push would fill.
		require.NoError(t, Put(c, uint32(99)))
		v, err := Get[uint32](c)
		require.NoError(t, err)
		assert.Equal(t, uint32(99), v)
		assert.Equal(t, pos, c.Pos())
	}
}

func TestIndexedAccess(t *testing.T) {
	for _, dir := range directions {
		c := NewCursor(make([]byte, 64), dir)
		require.NoError(t, Push(c, uint32(10))) // slot -2 relative to fp below
		require.NoError(t, Push(c, uint32(20))) // slot -1
		fp := c.Pos()
		require.NoError(t, Push(c, uint32(30))) // slot 0
		require.NoError(t, Push(c, uint32(40))) // slot 1

		for idx, want := range map[int]uint32{-2: 10, -1: 20, 0: 30, 1: 40} {
			got, err := GetAt[uint32](c, fp, 0, idx)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s slot %d", dir, idx)
		}

		require.NoError(t, PutAt(c, fp, 0, -2, uint32(11)))
		got, err := GetAt[uint32](c, fp, -8, 0)
		require.NoError(t, err)
		assert.Equal(t, uint32(11), got)
	}
}

func TestBoundsChecked(t *testing.T) {
	for _, dir := range directions {
		c := NewCursor(make([]byte, 6), dir)
		require.NoError(t, Push(c, uint32(1)))
		err := Push(c, uint32(2))
		assert.ErrorIs(t, err, vmerrors.ErrOutOfBounds, dir.String())

		c.Reset()
		_, err = Pop[uint16](c)
		assert.ErrorIs(t, err, vmerrors.ErrOutOfBounds)
		assert.ErrorIs(t, c.Back(1), vmerrors.ErrOutOfBounds)
		assert.Equal(t, c.Origin(), c.Pos())
	}
}

func TestReadAdvances(t *testing.T) {
	c := NewCursor([]byte{0x01, 0xff, 0x34, 0x12, 0xff, 0xff, 0xff, 0xff}, Forward{})
	op, err := Read[uint8](c)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), op)
	near, err := Read[int8](c)
	require.NoError(t, err)
	assert.Equal(t, int8(-1), near)
	short, err := Read[uint16](c)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), short)
	long, err := Read[int32](c)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), long)
	_, err = Read[uint8](c)
	assert.ErrorIs(t, err, vmerrors.ErrOutOfBounds)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("backward")
	require.NoError(t, err)
	assert.Equal(t, Backward{}, d)
	_, err = ParseDirection("up")
	assert.Error(t, err)
}
