// Package memory provides the byte cursor shared by the instruction stream and the VM stacks.
//
// A Cursor walks a fixed buffer in one of two growth directions. Every sized access is
// derived from the Direction's three primitives (Advance, Retreat, Slot), so code written
// against a Cursor runs unchanged on a stack that grows toward higher or lower offsets.
package memory

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/colorfulnotion/jasm/vmerrors"
	"golang.org/x/exp/constraints"
)

// Pointer is an absolute offset stored in VM memory (return addresses, saved frame pointers).
type Pointer uint64

const PointerSize = 8

// Direction is the stack growth policy.
type Direction interface {
	// Advance moves pos n bytes in the growth direction.
	Advance(pos, n int) int
	// Retreat moves pos n bytes against the growth direction.
	Retreat(pos, n int) int
	// Slot returns the physical start of the n-byte value that sits at pos.
	Slot(pos, n int) int
	// Origin is the empty-stack position for a buffer of the given size.
	Origin(size int) int
	String() string
}

// Forward grows toward higher offsets.
type Forward struct{}

func (Forward) Advance(pos, n int) int { return pos + n }
func (Forward) Retreat(pos, n int) int { return pos - n }
func (Forward) Slot(pos, n int) int    { return pos }
func (Forward) Origin(size int) int    { return 0 }
func (Forward) String() string         { return "forward" }

// Backward grows toward lower offsets.
type Backward struct{}

func (Backward) Advance(pos, n int) int { return pos - n }
func (Backward) Retreat(pos, n int) int { return pos + n }
func (Backward) Slot(pos, n int) int    { return pos - n }
func (Backward) Origin(size int) int    { return size }
func (Backward) String() string         { return "backward" }

// ParseDirection maps "forward"/"backward" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "forward":
		return Forward{}, nil
	case "backward":
		return Backward{}, nil
	}
	return nil, fmt.Errorf("unknown stack direction %q", s)
}

// Cursor is a position inside a buffer. It never reallocates the buffer.
type Cursor struct {
	buf []byte
	pos int
	dir Direction
}

func NewCursor(buf []byte, dir Direction) *Cursor {
	if dir == nil {
		dir = Forward{}
	}
	return &Cursor{buf: buf, pos: dir.Origin(len(buf)), dir: dir}
}

func (c *Cursor) Pos() int             { return c.pos }
func (c *Cursor) Len() int             { return len(c.buf) }
func (c *Cursor) Direction() Direction { return c.dir }
func (c *Cursor) Bytes() []byte        { return c.buf }

// Origin is the position of the empty cursor.
func (c *Cursor) Origin() int { return c.dir.Origin(len(c.buf)) }

// Reset moves the cursor back to its origin.
func (c *Cursor) Reset() { c.pos = c.Origin() }

// Used is the number of bytes between the origin and the current position.
func (c *Cursor) Used() int {
	if c.pos >= c.Origin() {
		return c.pos - c.Origin()
	}
	return c.Origin() - c.pos
}

func (c *Cursor) SetPos(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return fmt.Errorf("cursor position %d outside [0,%d]: %w", pos, len(c.buf), vmerrors.ErrOutOfBounds)
	}
	c.pos = pos
	return nil
}

// Offset returns base moved n bytes in the growth direction (n may be negative).
func (c *Cursor) Offset(base, n int) int {
	if n < 0 {
		return c.dir.Retreat(base, -n)
	}
	return c.dir.Advance(base, n)
}

// Next advances the cursor n bytes.
func (c *Cursor) Next(n int) error { return c.SetPos(c.Offset(c.pos, n)) }

// Back retreats the cursor n bytes.
func (c *Cursor) Back(n int) error { return c.SetPos(c.Offset(c.pos, -n)) }

func (c *Cursor) span(pos, n int) ([]byte, error) {
	start := c.dir.Slot(pos, n)
	if start < 0 || start+n > len(c.buf) {
		return nil, fmt.Errorf("%d-byte access at %d (%s, size %d): %w", n, pos, c.dir, len(c.buf), vmerrors.ErrOutOfBounds)
	}
	return c.buf[start : start+n], nil
}

func sizeOf[T constraints.Integer]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func decode[T constraints.Integer](b []byte) T {
	switch len(b) {
	case 1:
		return T(b[0])
	case 2:
		return T(binary.LittleEndian.Uint16(b))
	case 4:
		return T(binary.LittleEndian.Uint32(b))
	default:
		return T(binary.LittleEndian.Uint64(b))
	}
}

func encode[T constraints.Integer](b []byte, v T) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

// Get reads a T at the current position without moving.
func Get[T constraints.Integer](c *Cursor) (T, error) {
	return GetAt[T](c, c.pos, 0, 0)
}

// Put writes v at the current position without moving.
func Put[T constraints.Integer](c *Cursor, v T) error {
	return PutAt[T](c, c.pos, 0, 0, v)
}

// Push writes v then advances past it.
func Push[T constraints.Integer](c *Cursor, v T) error {
	n := sizeOf[T]()
	b, err := c.span(c.pos, n)
	if err != nil {
		return err
	}
	encode(b, v)
	c.pos = c.dir.Advance(c.pos, n)
	return nil
}

// Pop retreats over a T and returns it.
func Pop[T constraints.Integer](c *Cursor) (T, error) {
	n := sizeOf[T]()
	pos := c.dir.Retreat(c.pos, n)
	b, err := c.span(pos, n)
	if err != nil {
		return 0, err
	}
	c.pos = pos
	return decode[T](b), nil
}

// Read reads a T at the current position and advances past it.
func Read[T constraints.Integer](c *Cursor) (T, error) {
	n := sizeOf[T]()
	b, err := c.span(c.pos, n)
	if err != nil {
		return 0, err
	}
	c.pos = c.dir.Advance(c.pos, n)
	return decode[T](b), nil
}

// GetAt reads the T found at base ⊕ (offset + sizeof(T)*index).
func GetAt[T constraints.Integer](c *Cursor, base, offset, index int) (T, error) {
	n := sizeOf[T]()
	b, err := c.span(c.Offset(base, offset+n*index), n)
	if err != nil {
		return 0, err
	}
	return decode[T](b), nil
}

// PutAt writes v at base ⊕ (offset + sizeof(T)*index).
func PutAt[T constraints.Integer](c *Cursor, base, offset, index int, v T) error {
	n := sizeOf[T]()
	b, err := c.span(c.Offset(base, offset+n*index), n)
	if err != nil {
		return err
	}
	encode(b, v)
	return nil
}
