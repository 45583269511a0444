package compiler

import (
	"reflect"
	"strings"
	"testing"

	"mypl/pkg/vm"
)

// listing compiles src and returns the instructions of function fn as text.
func listing(t *testing.T, src, fn string) []string {
	t.Helper()
	templates, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for _, tmpl := range templates {
		if tmpl.Name == fn {
			out := make([]string, len(tmpl.Instructions))
			for i, instr := range tmpl.Instructions {
				out[i] = instr.String()
			}
			return out
		}
	}
	t.Fatalf("no template %q", fn)
	return nil
}

func TestGenerateLowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		want []string
	}{
		{
			name: "empty main",
			src:  "void main() { }",
			fn:   "main",
			want: []string{"PUSH(null)", "RET"},
		},
		{
			name: "declarations",
			src:  `void main() { int x; double d = 2.5; string s = ""; bool b = false; }`,
			fn:   "main",
			want: []string{
				"PUSH(null)", "STORE(0)",
				"PUSH(2.5)", "STORE(1)",
				`PUSH("")`, "STORE(2)",
				"PUSH(false)", "STORE(3)",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "explicit return has no implicit tail",
			src:  "int one() { return 1; } void main() { }",
			fn:   "one",
			want: []string{"PUSH(1)", "RET"},
		},
		{
			name: "params stored in order",
			src:  "int sub(int a, int b) { return a - b; } void main() { }",
			fn:   "sub",
			want: []string{"STORE(0)", "STORE(1)", "LOAD(0)", "LOAD(1)", "SUB", "RET"},
		},
		{
			name: "call statement pops result",
			src:  "int sub(int a, int b) { return a - b; } void main() { sub(1, 2); print(3); }",
			fn:   "main",
			want: []string{`PUSH(1)`, `PUSH(2)`, `CALL("sub")`, "POP", "PUSH(3)", "WRITE", "PUSH(null)", "RET"},
		},
		{
			name: "for loop",
			src:  "void main() { for (int i = 0; i < 10; i = i + 1) { } }",
			fn:   "main",
			want: []string{
				"PUSH(0)", "STORE(0)",
				"LOAD(0)", "PUSH(10)", "CMPLT", "JMPF(11)",
				"LOAD(0)", "PUSH(1)", "ADD", "STORE(0)",
				"JMP(2)", "NOP",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "while loop",
			src:  "void main() { bool go = true; while (go) { go = false; } }",
			fn:   "main",
			want: []string{
				"PUSH(true)", "STORE(0)",
				"LOAD(0)", "JMPF(7)",
				"PUSH(false)", "STORE(0)",
				"JMP(2)", "NOP",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "if elseif else",
			src: `void main() {
  int x = 1;
  if (x < 2) { print("a"); } elseif (x < 3) { print("b"); } else { print("c"); }
}`,
			fn: "main",
			want: []string{
				"PUSH(1)", "STORE(0)",
				"LOAD(0)", "PUSH(2)", "CMPLT", "JMPF(9)",
				`PUSH("a")`, "WRITE", "JMP(18)",
				"LOAD(0)", "PUSH(3)", "CMPLT", "JMPF(16)",
				`PUSH("b")`, "WRITE", "JMP(18)",
				`PUSH("c")`, "WRITE",
				"NOP",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "if alone",
			src:  "void main() { if (true) { print(1); } }",
			fn:   "main",
			want: []string{"PUSH(true)", "JMPF(5)", "PUSH(1)", "WRITE", "JMP(5)", "NOP", "PUSH(null)", "RET"},
		},
		{
			name: "not applies to first term",
			src:  "void main() { bool a = true; bool c = not a and true; }",
			fn:   "main",
			want: []string{"PUSH(true)", "STORE(0)", "LOAD(0)", "NOT", "PUSH(true)", "AND", "STORE(1)", "PUSH(null)", "RET"},
		},
		{
			name: "chain leans right",
			src:  "void main() { int x = 1 - 2 - 3; }",
			fn:   "main",
			want: []string{"PUSH(1)", "PUSH(2)", "PUSH(3)", "SUB", "SUB", "STORE(0)", "PUSH(null)", "RET"},
		},
		{
			name: "struct allocation",
			src:  "struct P { int x; int y; } void main() { P p = new P(1, 2); }",
			fn:   "main",
			want: []string{
				"ALLOCS",
				"DUP", "PUSH(1)", `SETF("x")`,
				"DUP", "PUSH(2)", `SETF("y")`,
				"STORE(0)", "PUSH(null)", "RET",
			},
		},
		{
			name: "array allocation and index",
			src:  "void main() { array int xs = new int[5]; xs[1] = 7; int y = xs[1]; }",
			fn:   "main",
			want: []string{
				"PUSH(5)", "ALLOCA", "STORE(0)",
				"LOAD(0)", "PUSH(1)", "PUSH(7)", "SETI",
				"LOAD(0)", "PUSH(1)", "GETI", "STORE(1)",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "field paths",
			src: `struct N { int val; N next; array int items; }
void main() { N n = new N(); n.next.val = 5; n.items[2] = 7; int v = n.next.val; int w = n.items[2]; }`,
			fn: "main",
			want: []string{
				"ALLOCS", "STORE(0)",
				"LOAD(0)", `GETF("next")`, "PUSH(5)", `SETF("val")`,
				"LOAD(0)", `GETF("items")`, "PUSH(2)", "PUSH(7)", "SETI",
				"LOAD(0)", `GETF("next")`, `GETF("val")`, "STORE(1)",
				"LOAD(0)", `GETF("items")`, "PUSH(2)", "GETI", "STORE(2)",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "builtins",
			src: `void main() {
  string s = input(); int n = stoi(s); double d = itod(n); string t = dtos(d);
  int l = length(t); string c = get(0, t); double e = stod("1.5"); int i = dtoi(e);
}`,
			fn: "main",
			want: []string{
				"READ", "STORE(0)",
				"LOAD(0)", "TOINT", "STORE(1)",
				"LOAD(1)", "TODBL", "STORE(2)",
				"LOAD(2)", "TOSTR", "STORE(3)",
				"LOAD(3)", "LEN", "STORE(4)",
				"PUSH(0)", "LOAD(3)", "GETC", "STORE(5)",
				`PUSH("1.5")`, "TODBL", "STORE(6)",
				"LOAD(6)", "TOINT", "STORE(7)",
				"PUSH(null)", "RET",
			},
		},
		{
			name: "shadowed slots",
			src:  "void main() { int x = 1; while (x < 2) { int x = 5; print(x); } print(x); }",
			fn:   "main",
			want: []string{
				"PUSH(1)", "STORE(0)",
				"LOAD(0)", "PUSH(2)", "CMPLT", "JMPF(11)",
				"PUSH(5)", "STORE(1)", "LOAD(1)", "WRITE",
				"JMP(2)", "NOP",
				"LOAD(0)", "WRITE",
				"PUSH(null)", "RET",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listing(t, tt.src, tt.fn)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("instructions:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestGreaterIsFlippedLess(t *testing.T) {
	gt := listing(t, "void main() { int a = 1; int b = 2; print(a > b); }", "main")
	lt := listing(t, "void main() { int a = 1; int b = 2; print(b < a); }", "main")
	if !reflect.DeepEqual(gt, lt) {
		t.Errorf("a > b and b < a differ:\n%v\n%v", gt, lt)
	}
	ge := listing(t, "void main() { int a = 1; int b = 2; print(a >= b); }", "main")
	le := listing(t, "void main() { int a = 1; int b = 2; print(b <= a); }", "main")
	if !reflect.DeepEqual(ge, le) {
		t.Errorf("a >= b and b <= a differ:\n%v\n%v", ge, le)
	}
	if gt[4] != "LOAD(1)" || gt[5] != "LOAD(0)" || gt[6] != "CMPLT" {
		t.Errorf("expected right operand first, got %v", gt[4:7])
	}
}

func TestGenerateStringEscapes(t *testing.T) {
	templates, err := Compile(`void main() { print("a\tb\n"); }`)
	if err != nil {
		t.Fatal(err)
	}
	push := templates[0].Instructions[0]
	if push.Op != vm.OpPUSH || push.Operand.Str != "a\tb\n" {
		t.Errorf("escapes not resolved: %v", push)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"unknown struct", "void main() { int x = new X(); }", `unknown struct "X"`},
		{"too many fields", "struct P { int x; } void main() { P p = new P(1, 2); }", "too many values"},
		{"undeclared variable", "void main() { x = 1; }", `undeclared variable "x"`},
		{"undeclared read", "void main() { print(y); }", `undeclared variable "y"`},
		{"missing builtin argument", "void main() { int x = stoi(); }", "stoi() requires an argument"},
		{"int overflow", "void main() { int x = 99999999999999999999; }", "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			_, err = Generate(prog)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if stage, _ := StageOf(err); stage != StageCodegen {
				t.Errorf("stage = %v, want codegen", stage)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err, tt.message)
			}
		})
	}
}

func TestCompileAttachesSnippet(t *testing.T) {
	_, err := Compile("void main() {\n  int x = \"no\";\n}")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "static error: int \"x\" initialized with STRING_VAL at line 2, column 11\n  |> int x = \"no\";"
	if err.Error() != want {
		t.Errorf("error =\n%s\nwant\n%s", err, want)
	}
}

func TestGenerateReportsSlots(t *testing.T) {
	prog, err := Parse("void main() { int x = 1; while (x < 2) { int y = 5; x = y; } string s = \"\"; }")
	if err != nil {
		t.Fatal(err)
	}
	var buf strings.Builder
	cg := NewCodeGen()
	cg.Slots = &buf
	if _, err := cg.Generate(prog); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"Frame main\n", "Slots (3):", "slot 0", "slot 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("slot dump missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "    y ") {
		t.Errorf("block-local y should be out of scope:\n%s", got)
	}
}
