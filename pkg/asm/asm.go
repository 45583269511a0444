// Package asm assembles and disassembles VM listings.
//
// A listing is a sequence of frames. Each frame starts with a header naming
// the function and its parameter count, followed by one instruction per
// line. Labels are local to their frame.
//
//	frame main 0
//	loop:
//	    LOAD 0
//	    JMPF done
//	    PUSH "tick"
//	    WRITE
//	    JMP loop
//	done:
//	    NOP
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"mypl/pkg/vm"
)

type Assembler struct {
	labels map[string]map[string]int // frame -> label -> instruction index
}

type parsedLine struct {
	lineNo   int
	labels   []string
	frame    *frameHeader
	mnemonic string
	operand  string
}

type frameHeader struct {
	name     string
	argCount int
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]map[string]int),
	}
}

func Assemble(code string) ([]*vm.FrameTemplate, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]*vm.FrameTemplate, error) {
	lines := strings.Split(code, "\n")

	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	if err := a.pass1(parsed); err != nil {
		return nil, err
	}
	return a.pass2(parsed)
}

// pass1 records the instruction index of every label.
func (a *Assembler) pass1(lines []parsedLine) error {
	var frame string
	var index int

	for _, p := range lines {
		if p.frame != nil {
			if _, exists := a.labels[p.frame.name]; exists {
				return fmt.Errorf("duplicate frame '%s' on line %d", p.frame.name, p.lineNo)
			}
			frame = p.frame.name
			a.labels[frame] = make(map[string]int)
			index = 0
			continue
		}

		for _, lbl := range p.labels {
			if frame == "" {
				return fmt.Errorf("label '%s' outside a frame on line %d", lbl, p.lineNo)
			}
			if _, exists := a.labels[frame][lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			a.labels[frame][lbl] = index
		}

		if p.mnemonic == "" {
			continue
		}
		if frame == "" {
			return fmt.Errorf("instruction outside a frame on line %d: %s", p.lineNo, p.mnemonic)
		}
		index++
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]*vm.FrameTemplate, error) {
	var templates []*vm.FrameTemplate
	var curr *vm.FrameTemplate

	for _, p := range lines {
		if p.frame != nil {
			curr = vm.NewFrameTemplate(p.frame.name, p.frame.argCount)
			templates = append(templates, curr)
			continue
		}
		if p.mnemonic == "" {
			continue
		}

		op, ok := vm.OpcodeByName(p.mnemonic)
		if !ok {
			return nil, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
		instr, err := a.encode(curr.Name, op, p)
		if err != nil {
			return nil, err
		}
		curr.Instructions = append(curr.Instructions, instr)
	}
	return templates, nil
}

func (a *Assembler) encode(frame string, op vm.Opcode, p parsedLine) (vm.Instruction, error) {
	kind := op.Operand()
	if kind == vm.NoOperand {
		if p.operand != "" {
			return vm.Instruction{}, fmt.Errorf("%s expects 0 operands on line %d", p.mnemonic, p.lineNo)
		}
		return vm.Simple(op), nil
	}
	if p.operand == "" {
		return vm.Instruction{}, fmt.Errorf("%s expects 1 operand on line %d", p.mnemonic, p.lineNo)
	}

	switch kind {
	case vm.LiteralOperand:
		v, err := parseLiteral(p.operand, p.lineNo)
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Push(v), nil

	case vm.SlotOperand:
		slot, err := strconv.Atoi(p.operand)
		if err != nil || slot < 0 {
			return vm.Instruction{}, fmt.Errorf("invalid slot '%s' on line %d", p.operand, p.lineNo)
		}
		return vm.Instruction{Op: op, Operand: vm.Int(int64(slot))}, nil

	case vm.TargetOperand:
		target, err := a.parseTarget(frame, p.operand, p.lineNo)
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Op: op, Operand: vm.Int(int64(target))}, nil

	default:
		name := p.operand
		if strings.HasPrefix(name, `"`) {
			unquoted, err := strconv.Unquote(name)
			if err != nil {
				return vm.Instruction{}, fmt.Errorf("invalid name %s on line %d", name, p.lineNo)
			}
			name = unquoted
		} else if !isIdentifier(name) {
			return vm.Instruction{}, fmt.Errorf("invalid name '%s' on line %d", name, p.lineNo)
		}
		return vm.Instruction{Op: op, Operand: vm.String(name)}, nil
	}
}

// parseTarget resolves a jump operand: a frame-local label or a raw index.
func (a *Assembler) parseTarget(frame, token string, lineNo int) (int, error) {
	if n, err := strconv.Atoi(token); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative jump target on line %d: %s", lineNo, token)
		}
		return n, nil
	}
	if idx, ok := a.labels[frame][token]; ok {
		return idx, nil
	}
	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}
	return 0, fmt.Errorf("invalid jump target '%s' on line %d", token, lineNo)
}

// parseLiteral reads a PUSH operand: int, double, quoted string, bool or
// null.
func parseLiteral(token string, lineNo int) (vm.Value, error) {
	switch token {
	case "null":
		return vm.Null, nil
	case "true":
		return vm.Bool(true), nil
	case "false":
		return vm.Bool(false), nil
	}
	if strings.HasPrefix(token, `"`) {
		s, err := strconv.Unquote(token)
		if err != nil {
			return vm.Null, fmt.Errorf("invalid string literal on line %d", lineNo)
		}
		return vm.String(s), nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return vm.Int(i), nil
	}
	if d, err := strconv.ParseFloat(token, 64); err == nil {
		return vm.Double(d), nil
	}
	return vm.Null, fmt.Errorf("invalid literal '%s' on line %d", token, lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	if fields := strings.Fields(line); strings.EqualFold(fields[0], "frame") {
		if len(fields) != 3 || !isIdentifier(fields[1]) {
			return p, fmt.Errorf("frame header expects a name and a parameter count on line %d", lineNo)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid parameter count '%s' on line %d", fields[2], lineNo)
		}
		p.frame = &frameHeader{name: fields[1], argCount: n}
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 || strings.HasPrefix(line, `"`) {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t\"") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexFunc(line, unicode.IsSpace); sp > 0 {
		mnemonic, rest = line[:sp], line[sp:]
	}
	p.mnemonic = strings.ToUpper(mnemonic)
	p.operand = strings.TrimSpace(rest)

	// listing form: PUSH(1), CALL("f")
	if open := strings.IndexByte(p.mnemonic, '('); open > 0 && strings.HasSuffix(line, ")") {
		p.mnemonic = strings.ToUpper(line[:open])
		p.operand = strings.TrimSpace(line[open+1 : len(line)-1])
	}
	return p, nil
}

// stripComments cuts a ';' or '//' comment that is not inside a string.
func stripComments(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && inString:
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == ';':
			return line[:i]
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// Disassemble renders templates in the form Assemble reads. Jump targets
// become labels named L<index>.
func Disassemble(templates []*vm.FrameTemplate) string {
	var sb strings.Builder
	for i, t := range templates {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "frame %s %d\n", t.Name, t.ArgCount)

		targets := make(map[int]bool)
		for _, instr := range t.Instructions {
			if instr.Op.Operand() == vm.TargetOperand {
				targets[instr.Target()] = true
			}
		}

		for idx, instr := range t.Instructions {
			if targets[idx] {
				fmt.Fprintf(&sb, "L%d:\n", idx)
			}
			sb.WriteString("    ")
			sb.WriteString(formatInstruction(instr))
			sb.WriteString("\n")
		}
		// a jump may target the index just past the last instruction
		if targets[len(t.Instructions)] {
			fmt.Fprintf(&sb, "L%d:\n", len(t.Instructions))
		}
	}
	return sb.String()
}

func formatInstruction(instr vm.Instruction) string {
	switch instr.Op.Operand() {
	case vm.NoOperand:
		return instr.Op.String()
	case vm.TargetOperand:
		return fmt.Sprintf("%s L%d", instr.Op, instr.Target())
	case vm.SlotOperand:
		return fmt.Sprintf("%s %d", instr.Op, instr.Target())
	case vm.NameOperand:
		if isIdentifier(instr.Name()) {
			return fmt.Sprintf("%s %s", instr.Op, instr.Name())
		}
		return fmt.Sprintf("%s %q", instr.Op, instr.Name())
	}
	return fmt.Sprintf("%s %s", instr.Op, instr.Operand)
}
