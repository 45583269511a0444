package asm

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"mypl/pkg/compiler"
	"mypl/pkg/vm"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	comments := []struct {
		line string
		want string
	}{
		{"PUSH 1 ; one", "PUSH 1 "},
		{"PUSH 1 // one", "PUSH 1 "},
		{`PUSH "a;b"`, `PUSH "a;b"`},
		{`PUSH "a\"//b" ; x`, `PUSH "a\"//b" `},
		{"; only", ""},
	}
	for _, tc := range comments {
		if got := stripComments(tc.line); got != tc.want {
			t.Errorf("stripComments(%q) = %q; want %q", tc.line, got, tc.want)
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			"LOAD 0",
			parsedLine{lineNo: 1, mnemonic: "LOAD", operand: "0"},
			false,
		},
		{
			"  store\t3  ; comment",
			parsedLine{lineNo: 1, mnemonic: "STORE", operand: "3"},
			false,
		},
		{
			"loop: JMP loop",
			parsedLine{lineNo: 1, labels: []string{"loop"}, mnemonic: "JMP", operand: "loop"},
			false,
		},
		{
			"a: b:",
			parsedLine{lineNo: 1, labels: []string{"a", "b"}},
			false,
		},
		{
			`PUSH "x: y"`,
			parsedLine{lineNo: 1, mnemonic: "PUSH", operand: `"x: y"`},
			false,
		},
		{
			`PUSH("a b")`,
			parsedLine{lineNo: 1, mnemonic: "PUSH", operand: `"a b"`},
			false,
		},
		{
			"CALL(fib)",
			parsedLine{lineNo: 1, mnemonic: "CALL", operand: "fib"},
			false,
		},
		{
			"frame main 0",
			parsedLine{lineNo: 1, frame: &frameHeader{name: "main", argCount: 0}},
			false,
		},
		{
			"",
			parsedLine{lineNo: 1},
			false,
		},
		{"frame main", parsedLine{}, true},
		{"frame main -1", parsedLine{}, true},
		{"1bad: NOP", parsedLine{}, true},
	}

	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseLine(%q) = %+v; want %+v", tc.line, got, tc.want)
		}
	}
}

func TestAssemble(t *testing.T) {
	code := `
; counts down from 3
frame main 0
    PUSH 3
    STORE 0
loop:
    PUSH 0
    LOAD 0
    CMPLT        // 0 < n
    JMPF done
    LOAD 0
    WRITE
    LOAD 0
    PUSH 1
    SUB
    STORE 0
    JMP loop
done:
    PUSH null
    RET
`
	templates, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("got %d templates, want 1", len(templates))
	}

	got := templates[0]
	if got.Name != "main" || got.ArgCount != 0 {
		t.Errorf("header = %s/%d, want main/0", got.Name, got.ArgCount)
	}
	want := []vm.Instruction{
		vm.Push(vm.Int(3)), vm.Store(0),
		vm.Push(vm.Int(0)), vm.Load(0), vm.Simple(vm.OpCMPLT), vm.Jmpf(13),
		vm.Load(0), vm.Simple(vm.OpWRITE),
		vm.Load(0), vm.Push(vm.Int(1)), vm.Simple(vm.OpSUB), vm.Store(0),
		vm.Jmp(2),
		vm.Push(vm.Null), vm.Simple(vm.OpRET),
	}
	if !reflect.DeepEqual(got.Instructions, want) {
		t.Errorf("instructions:\n%v\nwant:\n%v", got.Instructions, want)
	}

	var out bytes.Buffer
	m := vm.New()
	m.Output = &out
	m.Load(templates)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != "321" {
		t.Errorf("output = %q, want %q", out.String(), "321")
	}
}

func TestAssembleLiterals(t *testing.T) {
	tests := []struct {
		operand string
		want    vm.Value
	}{
		{"42", vm.Int(42)},
		{"-7", vm.Int(-7)},
		{"2.5", vm.Double(2.5)},
		{"1e3", vm.Double(1000)},
		{"true", vm.Bool(true)},
		{"false", vm.Bool(false)},
		{"null", vm.Null},
		{`"hi\tthere"`, vm.String("hi\tthere")},
		{`""`, vm.String("")},
	}

	for _, tc := range tests {
		templates, err := Assemble("frame main 0\nPUSH " + tc.operand + "\n")
		if err != nil {
			t.Errorf("PUSH %s: %v", tc.operand, err)
			continue
		}
		got := templates[0].Instructions[0]
		if !reflect.DeepEqual(got, vm.Push(tc.want)) {
			t.Errorf("PUSH %s = %v; want %v", tc.operand, got, vm.Push(tc.want))
		}
	}
}

func TestAssembleLabelsAreFrameLocal(t *testing.T) {
	code := `frame f 1
    STORE 0
top:
    JMP end
end:
frame main 0
top:
    NOP
    JMP top
`
	templates, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if got := templates[0].Instructions[1]; !reflect.DeepEqual(got, vm.Jmp(2)) {
		t.Errorf("f: JMP end = %v; want JMP(2)", got)
	}
	if got := templates[1].Instructions[1]; !reflect.DeepEqual(got, vm.Jmp(0)) {
		t.Errorf("main: JMP top = %v; want JMP(0)", got)
	}
	if templates[0].ArgCount != 1 {
		t.Errorf("f arg count = %d, want 1", templates[0].ArgCount)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{"unknown instruction", "frame main 0\nFOO", "unknown instruction on line 2"},
		{"undefined label", "frame main 0\nJMP nowhere", "undefined label 'nowhere'"},
		{"missing operand", "frame main 0\nPUSH", "expects 1 operand"},
		{"extra operand", "frame main 0\nADD 1", "expects 0 operands"},
		{"instruction outside frame", "NOP", "outside a frame"},
		{"label outside frame", "x:", "outside a frame"},
		{"duplicate label", "frame main 0\nx:\nx:", "duplicate label"},
		{"duplicate frame", "frame main 0\nframe main 0", "duplicate frame"},
		{"bad slot", "frame main 0\nLOAD -1", "invalid slot"},
		{"bad literal", "frame main 0\nPUSH abc", "invalid literal"},
		{"bad string", "frame main 0\nPUSH \"abc", "invalid string literal"},
		{"bad name", "frame main 0\nCALL 1f", "invalid name"},
		{"labels do not cross frames", "frame a 0\nx:\nframe main 0\nJMP x", "undefined label 'x'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.code)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err, tt.message)
			}
		})
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	sources := []string{
		`void main() { print("hello; world // not a comment"); }`,
		`int fib(int n) {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}
void main() { print(fib(10)); }`,
		`struct Node { int val; Node next; }
void main() {
  Node head = null;
  for (int i = 0; i < 3; i = i + 1) { head = new Node(i, head); }
  while (head != null) { print(head.val); head = head.next; }
  double d = 2.0;
  bool b = true and not false;
  print(d);
}`,
	}

	for _, src := range sources {
		templates, err := compiler.Compile(src)
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		text := Disassemble(templates)
		back, err := Assemble(text)
		if err != nil {
			t.Fatalf("Assemble(Disassemble()) error = %v\n%s", err, text)
		}
		if !reflect.DeepEqual(back, templates) {
			t.Errorf("round trip differs for listing:\n%s", text)
		}
	}
}

func TestDisassembleFormat(t *testing.T) {
	templates := []*vm.FrameTemplate{{
		Name:     "main",
		ArgCount: 0,
		Instructions: []vm.Instruction{
			vm.Push(vm.Bool(true)),
			vm.Jmpf(3),
			vm.SetF("two words"),
			vm.Call("f"),
		},
	}}
	want := `frame main 0
    PUSH true
    JMPF L3
    SETF "two words"
L3:
    CALL f
`
	if got := Disassemble(templates); got != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", got, want)
	}
}
