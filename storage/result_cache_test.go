package storage

import (
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStoreRoundTrip(t *testing.T) {
	s, err := OpenResultStore("")
	require.NoError(t, err)
	defer s.Close()

	key := common.Blake2Hash([]byte("run"))
	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(key, jvm.ReturnValue{Raw: 6765}))
	rv, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(6765), rv.U32())

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultStoreBacksEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	img, err := program.Fibonacci(program.Fast)
	require.NoError(t, err)

	s, err := OpenResultStore(path)
	require.NoError(t, err)
	e := jvm.NewEngine(program.Static(img), jvm.DefaultConfig()).WithCache(s)
	require.NoError(t, e.Create())
	rv, err := e.Run(22)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenResultStore(path)
	require.NoError(t, err)
	defer s.Close()
	cached, ok, err := s.Get(jvm.RunKey(img.Hash(), 22, jvm.ModeStandard, jvm.DefaultConfig()))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rv, cached)
	assert.Equal(t, program.FibReference(22), cached.U32())

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultStoreImages(t *testing.T) {
	s, err := OpenResultStore("")
	require.NoError(t, err)
	defer s.Close()

	img, err := program.Fibonacci(program.Linked)
	require.NoError(t, err)
	require.NoError(t, s.PutImage(img))

	hashes, err := s.Images()
	require.NoError(t, err)
	require.Equal(t, []common.Hash{img.Hash()}, hashes)

	e := jvm.NewEngine(s.Loader(img.Hash()), jvm.DefaultConfig())
	require.NoError(t, e.Create())
	assert.Equal(t, img.InputOffset(), e.Image().InputOffset())
	rv, err := e.RunInline(10)
	require.NoError(t, err)
	assert.Equal(t, uint32(55), rv.U32())

	_, err = s.Image(common.Blake2Hash([]byte("missing")))
	assert.ErrorIs(t, err, vmerrors.ErrLoad)

	// results and images live under separate prefixes
	n, err := s.Clear()
	require.NoError(t, err)
	assert.Zero(t, n)
	hashes, err = s.Images()
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestResultStorePatchedImageMismatch(t *testing.T) {
	s, err := OpenResultStore("")
	require.NoError(t, err)
	defer s.Close()

	img, err := program.Fibonacci(program.Fast)
	require.NoError(t, err)
	require.NoError(t, img.PatchInput(7))
	require.NoError(t, s.PutImage(img))
	_, err = s.Image(img.Hash())
	assert.ErrorIs(t, err, vmerrors.ErrLoad)
}
