package vm

import (
	"fmt"
	"strings"
)

// Instruction is one VM operation. Slots, jump targets and names are
// carried in Operand as int and string values.
type Instruction struct {
	Op      Opcode
	Operand Value
}

func (i Instruction) String() string {
	if i.Operand.Kind == KindNone {
		return i.Op.String()
	}
	return fmt.Sprintf("%s(%s)", i.Op, i.Operand)
}

// Target returns the slot index or jump target held in the operand.
func (i Instruction) Target() int { return int(i.Operand.Int) }

// Name returns the function or field name held in the operand.
func (i Instruction) Name() string { return i.Operand.Str }

func Push(v Value) Instruction      { return Instruction{Op: OpPUSH, Operand: v} }
func Load(slot int) Instruction     { return Instruction{Op: OpLOAD, Operand: Int(int64(slot))} }
func Store(slot int) Instruction    { return Instruction{Op: OpSTORE, Operand: Int(int64(slot))} }
func Jmp(target int) Instruction    { return Instruction{Op: OpJMP, Operand: Int(int64(target))} }
func Jmpf(target int) Instruction   { return Instruction{Op: OpJMPF, Operand: Int(int64(target))} }
func Call(name string) Instruction  { return Instruction{Op: OpCALL, Operand: String(name)} }
func SetF(field string) Instruction { return Instruction{Op: OpSETF, Operand: String(field)} }
func GetF(field string) Instruction { return Instruction{Op: OpGETF, Operand: String(field)} }

// Simple builds an instruction that takes no operand.
func Simple(op Opcode) Instruction { return Instruction{Op: op} }

// FrameTemplate is the compiled form of one function, shared by every
// activation of it.
type FrameTemplate struct {
	Name         string
	ArgCount     int
	Instructions []Instruction
}

// NewFrameTemplate returns an empty template for a function taking argCount
// parameters.
func NewFrameTemplate(name string, argCount int) *FrameTemplate {
	return &FrameTemplate{Name: name, ArgCount: argCount}
}

// Listing renders the template with numbered instructions.
func (t *FrameTemplate) Listing() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Frame %s\n", t.Name)
	for i, instr := range t.Instructions {
		fmt.Fprintf(&sb, "  %d: %s\n", i, instr)
	}
	return sb.String()
}
