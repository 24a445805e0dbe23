package program

import (
	"fmt"
	"strings"
)

// DisassembledInstruction represents a decoded instruction
type DisassembledInstruction struct {
	Offset int
	Opcode byte
	Name   string
	Args   string
	RawHex string
	Length int
}

func (d DisassembledInstruction) String() string {
	if d.Args == "" {
		return d.Name
	}
	return d.Name + " " + d.Args
}

// DisassembleCode decodes code from offset 0 to the end. Truncated trailing
// instructions are reported with a "<truncated>" argument.
func DisassembleCode(code []byte) []DisassembledInstruction {
	var out []DisassembledInstruction
	for pc := 0; pc < len(code); {
		op := code[pc]
		length := InstructionLength(op, code[pc+1:])
		end := pc + length
		args := ""
		if end > len(code) {
			end = len(code)
			args = "<truncated>"
		} else {
			args = formatArgs(op, code[pc+1:end], end)
		}
		out = append(out, DisassembledInstruction{
			Offset: pc,
			Opcode: op,
			Name:   OpcodeName(op),
			Args:   args,
			RawHex: bytesToHex(code[pc:end]),
			Length: end - pc,
		})
		pc = end
	}
	return out
}

// DisassembleSingleInstruction formats one instruction found at pc.
func DisassembleSingleInstruction(opcode byte, operands []byte, pc int) string {
	d := DisassembledInstruction{Name: OpcodeName(opcode)}
	next := pc + InstructionLength(opcode, operands)
	if need := next - pc - 1; len(operands) < need {
		d.Args = "<truncated>"
	} else {
		d.Args = formatArgs(opcode, operands[:need], next)
	}
	return d.String()
}

// Disassemble renders a listing of img, one instruction per line, marking the entry
// point and the input literal.
func Disassemble(img *Image) string {
	var sb strings.Builder
	for _, inst := range DisassembleCode(img.Code()) {
		marker := "  "
		if inst.Offset == img.Entry() {
			marker = "=>"
		}
		fmt.Fprintf(&sb, "%s 0x%04x: %-30s %s", marker, inst.Offset, inst.RawHex, inst.String())
		if in := img.InputOffset(); in != NoInput && in > inst.Offset && in < inst.Offset+inst.Length {
			sb.WriteString("  ; input")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatArgs(op byte, operands []byte, next int) string {
	info := Info(op)
	if !info.Valid {
		return ""
	}
	if op == NOP_N {
		if len(operands) == 0 {
			return ""
		}
		return fmt.Sprintf("%d", operands[0])
	}
	vals, err := DecodeOperands(info.Shape, operands)
	if err != nil {
		return "<truncated>"
	}
	parts := make([]string, len(vals))
	for i, f := range info.Shape.Fields() {
		v := vals[i]
		switch {
		case f == FieldCond:
			parts[i] = CondName(byte(v))
		case f == FieldPtr32:
			parts[i] = fmt.Sprintf("0x%04x", v)
		case f.IsRel():
			parts[i] = fmt.Sprintf("0x%04x (%+d)", RelTarget(next, v), v)
		case f == FieldImm32:
			parts[i] = fmt.Sprintf("%d", int32(uint32(v)))
		case f == FieldImm64:
			parts[i] = fmt.Sprintf("0x%x", uint64(v))
		default:
			parts[i] = fmt.Sprintf("%d", v)
		}
	}
	return strings.Join(parts, ", ")
}

func bytesToHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
