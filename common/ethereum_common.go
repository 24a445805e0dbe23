package common

import (
	"encoding/json"
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
)

// Hash is a custom type based on Ethereum's common.Hash
type Hash ethereumCommon.Hash

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte {
	return ethereumCommon.Hash(h).Bytes()
}

// String returns the string representation of the hash.
func (h Hash) String() string {
	return ethereumCommon.Hash(h).String()
}

func (h Hash) String_short() string {
	return fmt.Sprintf("%s..%s", h.Hex()[2:6], h.Hex()[62:66])
}

// Hex returns the hexadecimal string representation of the hash.
func (h Hash) Hex() string {
	return ethereumCommon.Hash(h).Hex()
}

// BytesToHash converts a byte slice to a Hash.
func BytesToHash(b []byte) Hash {
	return Hash(ethereumCommon.BytesToHash(b))
}

func Bytes2Hex(d []byte) string {
	return "0x" + ethereumCommon.Bytes2Hex(d)
}

// FromHex decodes a hex string with or without the 0x prefix. Invalid input yields nil.
func FromHex(b string) []byte {
	return ethereumCommon.FromHex(b)
}

// HexToHash converts a hexadecimal string to a Hash.
func HexToHash(s string) Hash {
	return Hash(ethereumCommon.HexToHash(s))
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*h = HexToHash(s)
	return nil
}
