package program

import (
	"fmt"

	"github.com/colorfulnotion/jasm/vmerrors"
)

// Builder assembles instructions into an Image. Jumps and calls may name labels that are
// defined later; offsets are patched in Build. The first error sticks and is returned by Build.
type Builder struct {
	code        []byte
	labels      map[string]int
	fixups      []fixup
	inputOffset int
	err         error
}

type fixup struct {
	label string
	field Field
	at    int // start of the offset operand
	after int // position the offset is relative to
}

func NewBuilder() *Builder {
	return &Builder{labels: make(map[string]int), inputOffset: NoInput}
}

// Pos is the offset the next instruction will be written at.
func (b *Builder) Pos() int { return len(b.code) }

// Label binds name to the current position.
func (b *Builder) Label(name string) *Builder {
	if _, dup := b.labels[name]; dup {
		b.fail(fmt.Errorf("label %q defined twice", name))
		return b
	}
	b.labels[name] = len(b.code)
	return b
}

// Emit appends op with its operands in encoding order.
func (b *Builder) Emit(op byte, args ...int64) *Builder {
	if b.err != nil {
		return b
	}
	info := Info(op)
	if !info.Valid {
		b.fail(fmt.Errorf("opcode 0x%02x is not defined", op))
		return b
	}
	fields := info.Shape.Fields()
	if len(args) != len(fields) {
		b.fail(fmt.Errorf("%s takes %d operands, got %d", info.Name, len(fields), len(args)))
		return b
	}
	start := len(b.code)
	b.code = append(b.code, op)
	b.code = append(b.code, make([]byte, info.Shape.OperandBytes())...)
	off := start + 1
	for i, f := range fields {
		if err := EncodeField(f, args[i], b.code[off:]); err != nil {
			b.fail(fmt.Errorf("%s at %d: %w", info.Name, start, err))
			return b
		}
		off += f.Width()
	}
	return b
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(bs ...byte) *Builder {
	b.code = append(b.code, bs...)
	return b
}

// Jump emits a relative jump or call whose last operand is the offset to label.
// Leading operands (the local size of fast_call_short) come first in args.
func (b *Builder) Jump(op byte, label string, args ...int64) *Builder {
	info := Info(op)
	if !info.Shape.IsRelative() {
		b.fail(fmt.Errorf("%s does not take a relative offset", OpcodeName(op)))
		return b
	}
	fields := info.Shape.Fields()
	operands := append(append([]int64(nil), args...), 0)
	b.Emit(op, operands...)
	if b.err != nil {
		return b
	}
	end := len(b.code)
	rel := fields[len(fields)-1]
	b.fixups = append(b.fixups, fixup{label: label, field: rel, at: end - rel.Width(), after: end})
	return b
}

// Call emits a linked call_short to label.
func (b *Builder) Call(label string) *Builder { return b.Jump(CALL_SHORT, label) }

// FastCall emits fast_call_short with the caller's local size.
func (b *Builder) FastCall(local uint8, label string) *Builder {
	return b.Jump(FAST_CALL_SHORT, label, int64(local))
}

// StoreInput emits `store slot, 0` and records its immediate as the image input literal.
func (b *Builder) StoreInput(slot int8) *Builder {
	b.Emit(STORE, int64(slot), 0)
	if b.err == nil {
		b.inputOffset = len(b.code) - 4
	}
	return b
}

// Build resolves labels and loads the result with entry at the given label.
func (b *Builder) Build(entry string) (*Image, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, fx := range b.fixups {
		target, ok := b.labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q: %w", fx.label, vmerrors.ErrMalformedProgram)
		}
		rel, err := RelOffset(fx.field, fx.after, target)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", fx.label, err)
		}
		if err := EncodeField(fx.field, rel, b.code[fx.at:]); err != nil {
			return nil, err
		}
	}
	start, ok := b.labels[entry]
	if !ok {
		return nil, fmt.Errorf("undefined entry label %q: %w", entry, vmerrors.ErrEntryOutOfRange)
	}
	img, err := Load(b.code, start)
	if err != nil {
		return nil, err
	}
	if err := img.SetInputOffset(b.inputOffset); err != nil {
		return nil, err
	}
	return img, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		if !isTaxonomy(err) {
			err = fmt.Errorf("%v: %w", err, vmerrors.ErrMalformedProgram)
		}
		b.err = err
	}
}

func isTaxonomy(err error) bool { return vmerrors.Code(err) != "" }
