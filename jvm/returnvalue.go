package jvm

import "fmt"

type ValueKind uint8

const (
	// Basic is a plain 64-bit integer taken from eax.
	Basic ValueKind = iota
)

// ReturnValue is the single result of a run.
type ReturnValue struct {
	Kind ValueKind `json:"kind"`
	Raw  uint64    `json:"raw"`
}

func (v ReturnValue) U32() uint32 { return uint32(v.Raw) }
func (v ReturnValue) I32() int32  { return int32(v.Raw) }

func (v ReturnValue) String() string {
	return fmt.Sprintf("%d", v.Raw)
}
