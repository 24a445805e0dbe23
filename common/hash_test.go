package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlake2HashParts(t *testing.T) {
	whole := Blake2Hash([]byte("jasm-image"))
	parts := Blake2HashParts([]byte("jasm"), []byte("-image"))
	assert.Equal(t, whole, parts)
	assert.False(t, IsNilHash(whole))
}

func TestHashJSON(t *testing.T) {
	h := Blake2Hash([]byte{1, 2, 3})
	b, err := json.Marshal(h)
	require.NoError(t, err)

	var back Hash
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, h, back)
	assert.Len(t, h.String_short(), 10)
}

func TestFromHex(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad}, FromHex("0xdead"))
	assert.Equal(t, []byte{0xbe, 0xef}, FromHex("beef"))
	assert.Equal(t, "0x0102", Bytes2Hex([]byte{1, 2}))
}
