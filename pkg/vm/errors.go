package vm

import (
	"errors"
	"fmt"
)

// ErrBadImage is wrapped by every bytecode image decoding failure.
var ErrBadImage = errors.New("bad bytecode image")

// Error is a runtime failure. When HasFrame is set the message is suffixed
// with the function, pc and instruction that failed.
type Error struct {
	Msg      string
	Function string
	PC       int
	Instr    Instruction
	HasFrame bool
}

func (e *Error) Error() string {
	if !e.HasFrame {
		return "VM error: " + e.Msg
	}
	return fmt.Sprintf("VM error: %s (in %s at %d: %s)", e.Msg, e.Function, e.PC, e.Instr)
}
