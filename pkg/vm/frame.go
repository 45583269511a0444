package vm

import "fmt"

// Frame is a live activation of a FrameTemplate.
type Frame struct {
	template *FrameTemplate
	pc       int
	stack    []Value
	locals   []Value
}

func newFrame(t *FrameTemplate) *Frame {
	return &Frame{template: t}
}

func (f *Frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() (Value, error) {
	if len(f.stack) == 0 {
		return Null, fmt.Errorf("operand stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *Frame) top() (Value, error) {
	if len(f.stack) == 0 {
		return Null, fmt.Errorf("operand stack underflow")
	}
	return f.stack[len(f.stack)-1], nil
}

func (f *Frame) store(slot int, v Value) error {
	if slot < 0 {
		return fmt.Errorf("invalid variable slot %d", slot)
	}
	for len(f.locals) <= slot {
		f.locals = append(f.locals, None)
	}
	f.locals[slot] = v
	return nil
}

func (f *Frame) load(slot int) (Value, error) {
	if slot < 0 || slot >= len(f.locals) || f.locals[slot].Kind == KindNone {
		return Null, fmt.Errorf("variable slot %d is not initialized", slot)
	}
	return f.locals[slot], nil
}

// jump moves pc to target. One past the last instruction is allowed and
// ends the frame.
func (f *Frame) jump(target int) error {
	if target < 0 || target > len(f.template.Instructions) {
		return fmt.Errorf("jump target %d out of range", target)
	}
	f.pc = target
	return nil
}
