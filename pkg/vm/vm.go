// Package vm implements the MyPL stack virtual machine: frame templates,
// a call stack of frames with operand stacks and local slots, and a heap of
// struct and array objects addressed by integer ids.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// State is the lifecycle of a VM run.
type State int

const (
	Ready State = iota
	Running
	Halted
	Errored
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithObjectBase sets the first heap object id.
func WithObjectBase(base int64) Option {
	return func(m *VM) { m.objectBase = base }
}

// WithTrace enables per-instruction tracing to w.
func WithTrace(w io.Writer) Option {
	return func(m *VM) { m.Trace = w }
}

type VM struct {
	Output io.Writer // program output; os.Stdout when nil
	Input  io.Reader // program input; os.Stdin when nil
	Trace  io.Writer // one line per executed instruction when non-nil

	templates  map[string]*FrameTemplate
	order      []string
	objectBase int64
	heap       *Heap
	callStack  []*Frame
	frame      *Frame
	reader     *bufio.Reader
	state      State
}

func New(opts ...Option) *VM {
	m := &VM{
		templates:  make(map[string]*FrameTemplate),
		objectBase: DefaultObjectBase,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.heap = NewHeap(m.objectBase)
	return m
}

func (m *VM) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

func (m *VM) inputSource() *bufio.Reader {
	if m.reader == nil {
		var r io.Reader = os.Stdin
		if m.Input != nil {
			r = m.Input
		}
		m.reader = bufio.NewReader(r)
	}
	return m.reader
}

// AddFrameTemplate registers a compiled function, replacing any template
// with the same name.
func (m *VM) AddFrameTemplate(t *FrameTemplate) {
	if _, ok := m.templates[t.Name]; !ok {
		m.order = append(m.order, t.Name)
	}
	m.templates[t.Name] = t
}

// Load registers every template in ts.
func (m *VM) Load(ts []*FrameTemplate) {
	for _, t := range ts {
		m.AddFrameTemplate(t)
	}
}

// Templates returns the registered templates in registration order.
func (m *VM) Templates() []*FrameTemplate {
	out := make([]*FrameTemplate, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.templates[name])
	}
	return out
}

func (m *VM) Heap() *Heap    { return m.heap }
func (m *VM) State() State   { return m.state }
func (m *VM) Depth() int     { return len(m.callStack) }
func (m *VM) String() string { return m.listing() }

func (m *VM) listing() string {
	var sb strings.Builder
	for _, t := range m.Templates() {
		sb.WriteString("\n")
		sb.WriteString(t.Listing())
	}
	return sb.String()
}

// Run executes main until the call stack empties.
func (m *VM) Run() error {
	if err := m.start(); err != nil {
		return err
	}
	for m.state == Running {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *VM) start() error {
	t, ok := m.templates["main"]
	if !ok {
		m.state = Errored
		return &Error{Msg: `no "main" function`}
	}
	m.heap = NewHeap(m.objectBase)
	m.frame = newFrame(t)
	m.callStack = []*Frame{m.frame}
	m.state = Running
	return nil
}

// Step executes a single instruction, starting the run if needed.
func (m *VM) Step() error {
	if m.state == Ready {
		if err := m.start(); err != nil {
			return err
		}
	}
	if m.state != Running {
		return nil
	}

	f := m.frame
	if f.pc < 0 {
		m.state = Errored
		return &Error{Msg: fmt.Sprintf("pc %d out of range in %s", f.pc, f.template.Name)}
	}
	if f.pc >= len(f.template.Instructions) {
		m.state = Halted
		return nil
	}
	pc := f.pc
	instr := f.template.Instructions[pc]
	f.pc++
	if m.Trace != nil {
		m.trace(f, pc, instr)
	}

	if err := m.exec(f, instr); err != nil {
		m.state = Errored
		return &Error{
			Msg:      err.Error(),
			Function: f.template.Name,
			PC:       pc,
			Instr:    instr,
			HasFrame: true,
		}
	}
	if len(m.callStack) == 0 {
		m.state = Halted
	}
	return nil
}

func (m *VM) trace(f *Frame, pc int, instr Instruction) {
	top := "-"
	if len(f.stack) > 0 {
		top = f.stack[len(f.stack)-1].String()
	}
	fmt.Fprintf(m.Trace, "%-12s %4d  %-20s top=%s depth=%d\n", f.template.Name, pc, instr, top, len(m.callStack))
}

// pop2 returns the top of stack (right operand) and the value below it.
func pop2(f *Frame) (right, left Value, err error) {
	if right, err = f.pop(); err != nil {
		return
	}
	left, err = f.pop()
	return
}

func (m *VM) exec(f *Frame, instr Instruction) error {
	switch instr.Op {
	case OpPUSH:
		if instr.Operand.Kind == KindNone {
			return errors.New("PUSH without operand")
		}
		f.push(instr.Operand)

	case OpPOP:
		_, err := f.pop()
		return err

	case OpSTORE:
		v, err := f.pop()
		if err != nil {
			return err
		}
		return f.store(instr.Target(), v)

	case OpLOAD:
		v, err := f.load(instr.Target())
		if err != nil {
			return err
		}
		f.push(v)

	case OpADD, OpSUB, OpMUL, OpDIV:
		right, left, err := pop2(f)
		if err != nil {
			return err
		}
		v, err := arith(instr.Op, left, right)
		if err != nil {
			return err
		}
		f.push(v)

	case OpAND, OpOR:
		right, left, err := pop2(f)
		if err != nil {
			return err
		}
		if left.IsNull() || right.IsNull() {
			return errors.New("null operand")
		}
		if instr.Op == OpAND {
			f.push(Bool(left.truthy() && right.truthy()))
		} else {
			f.push(Bool(left.truthy() || right.truthy()))
		}

	case OpNOT:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.IsNull() {
			return errors.New("null operand")
		}
		f.push(Bool(!v.truthy()))

	case OpCMPLT, OpCMPLE:
		right, left, err := pop2(f)
		if err != nil {
			return err
		}
		c, err := compare(left, right)
		if err != nil {
			return err
		}
		if instr.Op == OpCMPLT {
			f.push(Bool(c < 0))
		} else {
			f.push(Bool(c <= 0))
		}

	case OpCMPEQ, OpCMPNE:
		right, left, err := pop2(f)
		if err != nil {
			return err
		}
		eq := left.Equal(right)
		if instr.Op == OpCMPNE {
			eq = !eq
		}
		f.push(Bool(eq))

	case OpJMP:
		return f.jump(instr.Target())

	case OpJMPF:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.IsNull() || (v.Kind == KindBool && !v.Bool) {
			return f.jump(instr.Target())
		}

	case OpCALL:
		t, ok := m.templates[instr.Name()]
		if !ok {
			return fmt.Errorf("unknown function %q", instr.Name())
		}
		callee := newFrame(t)
		for i := 0; i < t.ArgCount; i++ {
			arg, err := f.pop()
			if err != nil {
				return err
			}
			callee.push(arg)
		}
		m.callStack = append(m.callStack, callee)
		m.frame = callee

	case OpRET:
		v, err := f.pop()
		if err != nil {
			return err
		}
		m.callStack = m.callStack[:len(m.callStack)-1]
		if len(m.callStack) > 0 {
			m.frame = m.callStack[len(m.callStack)-1]
			m.frame.push(v)
		}

	case OpWRITE:
		v, err := f.pop()
		if err != nil {
			return err
		}
		fmt.Fprint(m.outputSink(), v.Display())

	case OpREAD:
		line, err := m.inputSource().ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return errors.New("end of input")
			}
			return err
		}
		f.push(String(strings.TrimRight(line, "\r\n")))

	case OpLEN:
		v, err := f.pop()
		if err != nil {
			return err
		}
		switch v.Kind {
		case KindString:
			f.push(Int(int64(utf8.RuneCountInString(v.Str))))
		case KindArray:
			n, err := m.heap.ArrayLen(v)
			if err != nil {
				return err
			}
			f.push(Int(int64(n)))
		case KindNull:
			return errors.New("length of null")
		default:
			return fmt.Errorf("length of %s", v.Kind)
		}

	case OpGETC:
		s, idx, err := pop2(f)
		if err != nil {
			return err
		}
		if s.IsNull() || idx.IsNull() {
			return errors.New("null operand")
		}
		if s.Kind != KindString || idx.Kind != KindInt {
			return fmt.Errorf("get expects an int and a string, found %s and %s", idx.Kind, s.Kind)
		}
		runes := []rune(s.Str)
		if idx.Int < 0 || idx.Int >= int64(len(runes)) {
			return fmt.Errorf("string index %d out of bounds (length %d)", idx.Int, len(runes))
		}
		f.push(String(string(runes[idx.Int])))

	case OpTOINT:
		v, err := f.pop()
		if err != nil {
			return err
		}
		out, err := toInt(v)
		if err != nil {
			return err
		}
		f.push(out)

	case OpTODBL:
		v, err := f.pop()
		if err != nil {
			return err
		}
		out, err := toDouble(v)
		if err != nil {
			return err
		}
		f.push(out)

	case OpTOSTR:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.IsNull() {
			return errors.New("cannot convert null to string")
		}
		f.push(String(v.Display()))

	case OpALLOCS:
		f.push(m.heap.AllocStruct())

	case OpSETF:
		v, ref, err := pop2(f)
		if err != nil {
			return err
		}
		return m.heap.SetField(ref, instr.Name(), v)

	case OpGETF:
		ref, err := f.pop()
		if err != nil {
			return err
		}
		v, err := m.heap.GetField(ref, instr.Name())
		if err != nil {
			return err
		}
		f.push(v)

	case OpALLOCA:
		n, err := f.pop()
		if err != nil {
			return err
		}
		if n.Kind != KindInt || n.Int < 0 {
			return fmt.Errorf("invalid array size %s", n.Display())
		}
		f.push(m.heap.AllocArray(int(n.Int)))

	case OpSETI:
		v, idx, err := pop2(f)
		if err != nil {
			return err
		}
		ref, err := f.pop()
		if err != nil {
			return err
		}
		return m.heap.SetIndex(ref, idx, v)

	case OpGETI:
		idx, ref, err := pop2(f)
		if err != nil {
			return err
		}
		v, err := m.heap.GetIndex(ref, idx)
		if err != nil {
			return err
		}
		f.push(v)

	case OpDUP:
		v, err := f.top()
		if err != nil {
			return err
		}
		f.push(v)

	case OpNOP:

	default:
		return fmt.Errorf("unsupported operation %s", instr)
	}
	return nil
}

func arith(op Opcode, left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null, errors.New("null operand")
	}
	if op == OpADD && left.Kind == KindString && right.Kind == KindString {
		return String(left.Str + right.Str), nil
	}
	if !left.isNumeric() || !right.isNumeric() {
		return Null, fmt.Errorf("invalid operands %s and %s", left.Kind, right.Kind)
	}

	if left.Kind == KindInt && right.Kind == KindInt {
		a, b := left.Int, right.Int
		switch op {
		case OpADD:
			return Int(a + b), nil
		case OpSUB:
			return Int(a - b), nil
		case OpMUL:
			return Int(a * b), nil
		default:
			if b == 0 {
				return Null, errors.New("division by zero")
			}
			return Int(int64(float64(a) / float64(b))), nil
		}
	}

	a, b := left.asDouble(), right.asDouble()
	switch op {
	case OpADD:
		return Double(a + b), nil
	case OpSUB:
		return Double(a - b), nil
	case OpMUL:
		return Double(a * b), nil
	default:
		if b == 0 {
			return Null, errors.New("division by zero")
		}
		return Double(a / b), nil
	}
}

// compare orders two non-null values of compatible kinds.
func compare(left, right Value) (int, error) {
	if left.IsNull() || right.IsNull() {
		return 0, errors.New("null operand")
	}
	switch {
	case left.isNumeric() && right.isNumeric():
		if left.Kind == KindInt && right.Kind == KindInt {
			return cmp3(left.Int < right.Int, left.Int == right.Int), nil
		}
		a, b := left.asDouble(), right.asDouble()
		return cmp3(a < b, a == b), nil
	case left.Kind == KindString && right.Kind == KindString:
		return strings.Compare(left.Str, right.Str), nil
	case left.Kind == KindBool && right.Kind == KindBool:
		return cmp3(!left.Bool && right.Bool, left.Bool == right.Bool), nil
	}
	return 0, fmt.Errorf("cannot compare %s and %s", left.Kind, right.Kind)
}

func cmp3(less, equal bool) int {
	switch {
	case less:
		return -1
	case equal:
		return 0
	}
	return 1
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// looksNumeric accepts digits with at most one decimal point.
func looksNumeric(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func toInt(v Value) (Value, error) {
	switch {
	case v.IsNull():
		return Null, errors.New("cannot convert null to int")
	case v.Kind == KindDouble:
		return Int(int64(v.Double)), nil
	case v.Kind == KindString && isDigits(v.Str):
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return Null, fmt.Errorf("cannot convert %q to int", v.Str)
		}
		return Int(n), nil
	}
	return Null, fmt.Errorf("cannot convert %s %s to int", v.Kind, v)
}

func toDouble(v Value) (Value, error) {
	switch {
	case v.IsNull():
		return Null, errors.New("cannot convert null to double")
	case v.isNumeric():
		return Double(v.asDouble()), nil
	case v.Kind == KindString && looksNumeric(v.Str):
		d, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return Null, fmt.Errorf("cannot convert %q to double", v.Str)
		}
		return Double(d), nil
	}
	return Null, fmt.Errorf("cannot convert %s %s to double", v.Kind, v)
}
