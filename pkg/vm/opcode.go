package vm

import "fmt"

// Opcode identifies a VM instruction.
type Opcode uint8

const (
	// literals and variables
	OpPUSH  Opcode = iota // push operand
	OpPOP                 // discard top of stack
	OpLOAD                // push locals[operand]
	OpSTORE               // pop into locals[operand]

	// arithmetic, logic, comparison
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpAND
	OpOR
	OpNOT
	OpCMPLT
	OpCMPLE
	OpCMPEQ
	OpCMPNE

	// branching
	OpJMP  // pc = operand
	OpJMPF // pop; pc = operand when false or null

	// functions
	OpCALL // operand names the frame template
	OpRET

	// built-ins
	OpWRITE
	OpREAD
	OpLEN
	OpGETC
	OpTOINT
	OpTODBL
	OpTOSTR

	// heap
	OpALLOCS
	OpSETF
	OpGETF
	OpALLOCA
	OpSETI
	OpGETI

	// special
	OpDUP
	OpNOP
)

var opcodeNames = [...]string{
	OpPUSH:   "PUSH",
	OpPOP:    "POP",
	OpLOAD:   "LOAD",
	OpSTORE:  "STORE",
	OpADD:    "ADD",
	OpSUB:    "SUB",
	OpMUL:    "MUL",
	OpDIV:    "DIV",
	OpAND:    "AND",
	OpOR:     "OR",
	OpNOT:    "NOT",
	OpCMPLT:  "CMPLT",
	OpCMPLE:  "CMPLE",
	OpCMPEQ:  "CMPEQ",
	OpCMPNE:  "CMPNE",
	OpJMP:    "JMP",
	OpJMPF:   "JMPF",
	OpCALL:   "CALL",
	OpRET:    "RET",
	OpWRITE:  "WRITE",
	OpREAD:   "READ",
	OpLEN:    "LEN",
	OpGETC:   "GETC",
	OpTOINT:  "TOINT",
	OpTODBL:  "TODBL",
	OpTOSTR:  "TOSTR",
	OpALLOCS: "ALLOCS",
	OpSETF:   "SETF",
	OpGETF:   "GETF",
	OpALLOCA: "ALLOCA",
	OpSETI:   "SETI",
	OpGETI:   "GETI",
	OpDUP:    "DUP",
	OpNOP:    "NOP",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// OpcodeByName looks up an opcode by its mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// OperandKind describes what an opcode expects in its operand slot.
type OperandKind int

const (
	NoOperand OperandKind = iota
	LiteralOperand
	SlotOperand
	TargetOperand
	NameOperand
)

// Operand reports the operand kind of op.
func (op Opcode) Operand() OperandKind {
	switch op {
	case OpPUSH:
		return LiteralOperand
	case OpLOAD, OpSTORE:
		return SlotOperand
	case OpJMP, OpJMPF:
		return TargetOperand
	case OpCALL, OpSETF, OpGETF:
		return NameOperand
	}
	return NoOperand
}
