package program

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/colorfulnotion/jasm/vmerrors"
)

// Field is one encoded operand.
type Field uint8

const (
	FieldU8 Field = iota
	FieldU16
	FieldI32
	FieldImm32
	FieldImm64
	FieldSlot
	FieldCond
	FieldPtr32
	FieldRel8  // near
	FieldRel16 // short
	FieldRel32 // long
)

var fieldWidths = [...]int{
	FieldU8:    1,
	FieldU16:   2,
	FieldI32:   4,
	FieldImm32: 4,
	FieldImm64: 8,
	FieldSlot:  1,
	FieldCond:  1,
	FieldPtr32: 4,
	FieldRel8:  1,
	FieldRel16: 2,
	FieldRel32: 4,
}

func (f Field) Width() int { return fieldWidths[f] }

func (f Field) IsRel() bool { return f == FieldRel8 || f == FieldRel16 || f == FieldRel32 }

func (f Field) signed() bool {
	switch f {
	case FieldI32, FieldSlot, FieldRel8, FieldRel16, FieldRel32:
		return true
	}
	return false
}

// Range returns the inclusive bounds EncodeField accepts for f.
// 32-bit immediates take either a signed or an unsigned reading of the same bits.
func (f Field) Range() (lo, hi int64) {
	switch f {
	case FieldU8:
		return 0, math.MaxUint8
	case FieldU16:
		return 0, math.MaxUint16
	case FieldI32, FieldRel32:
		return math.MinInt32, math.MaxInt32
	case FieldImm32:
		return math.MinInt32, math.MaxUint32
	case FieldPtr32:
		return 0, math.MaxUint32
	case FieldSlot, FieldRel8:
		return math.MinInt8, math.MaxInt8
	case FieldRel16:
		return math.MinInt16, math.MaxInt16
	case FieldCond:
		return 0, int64(numConds) - 1
	}
	return math.MinInt64, math.MaxInt64
}

// EncodeField writes v into dst[:f.Width()] little-endian.
func EncodeField(f Field, v int64, dst []byte) error {
	if lo, hi := f.Range(); v < lo || v > hi {
		return fmt.Errorf("operand %d does not fit %s: %w", v, f, vmerrors.ErrMalformedProgram)
	}
	switch f.Width() {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	}
	return nil
}

// DecodeField reads f from the front of b. Signed fields are sign-extended.
func DecodeField(f Field, b []byte) int64 {
	var u uint64
	switch f.Width() {
	case 1:
		u = uint64(b[0])
		if f.signed() {
			return int64(int8(u))
		}
	case 2:
		u = uint64(binary.LittleEndian.Uint16(b))
		if f.signed() {
			return int64(int16(u))
		}
	case 4:
		u = uint64(binary.LittleEndian.Uint32(b))
		if f.signed() {
			return int64(int32(u))
		}
	case 8:
		u = binary.LittleEndian.Uint64(b)
	}
	return int64(u)
}

// DecodeOperands splits an operand slice into its fields.
func DecodeOperands(shape Shape, b []byte) ([]int64, error) {
	if len(b) < shape.OperandBytes() {
		return nil, fmt.Errorf("need %d operand bytes, have %d: %w", shape.OperandBytes(), len(b), vmerrors.ErrMalformedProgram)
	}
	fields := shape.Fields()
	out := make([]int64, len(fields))
	off := 0
	for i, f := range fields {
		out[i] = DecodeField(f, b[off:])
		off += f.Width()
	}
	return out, nil
}

// RelTarget resolves a relative offset. after is the position just past the offset operand.
func RelTarget(after int, rel int64) int { return after + int(rel) }

// RelOffset is the inverse of RelTarget; it fails when the distance does not fit f.
func RelOffset(f Field, after, target int) (int64, error) {
	rel := int64(target - after)
	if lo, hi := f.Range(); rel < lo || rel > hi {
		return 0, fmt.Errorf("jump distance %d out of %s range: %w", rel, f, vmerrors.ErrMalformedProgram)
	}
	return rel, nil
}

// RelField picks the narrowest offset encoding for a distance.
func RelField(rel int64) Field {
	switch {
	case rel >= math.MinInt8 && rel <= math.MaxInt8:
		return FieldRel8
	case rel >= math.MinInt16 && rel <= math.MaxInt16:
		return FieldRel16
	}
	return FieldRel32
}

func (f Field) String() string {
	switch f {
	case FieldU8:
		return "u8"
	case FieldU16:
		return "u16"
	case FieldI32:
		return "i32"
	case FieldImm32:
		return "imm32"
	case FieldImm64:
		return "imm64"
	case FieldSlot:
		return "slot"
	case FieldCond:
		return "cond"
	case FieldPtr32:
		return "ptr32"
	case FieldRel8:
		return "near"
	case FieldRel16:
		return "short"
	case FieldRel32:
		return "long"
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}
