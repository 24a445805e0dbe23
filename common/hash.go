package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// ComputeHash computes the BLAKE2b hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, val)
	return bytes
}

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, val)
	return bytes
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

// Blake2HashParts hashes the concatenation of parts without building the joined slice.
func Blake2HashParts(parts ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	return BytesToHash(h.Sum(nil))
}

func IsNilHash(h Hash) bool {
	return h == Hash{}
}
