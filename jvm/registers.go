package jvm

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

type Register uint8

const (
	EAX Register = iota
	EBX
	ECX
	EDX
	numRegisters
)

var registerNames = [numRegisters]string{"eax", "ebx", "ecx", "edx"}

func (r Register) String() string {
	if r < numRegisters {
		return registerNames[r]
	}
	return fmt.Sprintf("r%d", uint8(r))
}

// Flags is the condition word. Only the low byte is defined: 1 when the last compare held.
type Flags uint64

func (f Flags) Low() bool { return byte(f) != 0 }

func (f *Flags) SetLow(on bool) {
	*f &^= 0xff
	if on {
		*f |= 1
	}
}

// Registers is the general purpose register file.
type Registers struct {
	r     [numRegisters]uint64
	Flags Flags
}

func (rs *Registers) Reset() {
	rs.r = [numRegisters]uint64{}
	rs.Flags = 0
}

// Get64 returns the full register.
func (rs *Registers) Get64(r Register) uint64 { return rs.r[r] }

// Set64 overwrites the full register.
func (rs *Registers) Set64(r Register, v uint64) { rs.r[r] = v }

// GetReg reads the low sizeof(T) bytes of r.
func GetReg[T constraints.Integer](rs *Registers, r Register) T { return T(rs.r[r]) }

// SetReg writes v through the sizeof(T) view of r. Signed T sign-extends into the
// full register, unsigned T zero-extends.
func SetReg[T constraints.Integer](rs *Registers, r Register, v T) { rs.r[r] = uint64(v) }

func (rs *Registers) EAX() uint32 { return uint32(rs.r[EAX]) }

// Snapshot copies the registers in index order.
func (rs *Registers) Snapshot() [numRegisters]uint64 { return rs.r }
