package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mypl/pkg/asm"
	"mypl/pkg/compiler"
	"mypl/pkg/vm"
)

// TestPrograms builds every program under testdata, round-trips it through
// an image file and compares its output with the matching .out file. A .in
// file, when present, is fed to the program as input.
func TestPrograms(t *testing.T) {
	var sources []string
	for _, pattern := range []string{"testdata/*.mypl", "testdata/*.masm"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			t.Fatal(err)
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		t.Fatal("no programs under testdata")
	}

	for _, src := range sources {
		base := strings.TrimSuffix(src, filepath.Ext(src))
		t.Run(filepath.Base(base), func(t *testing.T) {
			templates, err := buildFile(src)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}

			image := filepath.Join(t.TempDir(), "prog.mbc")
			if err := vm.SaveImage(image, templates); err != nil {
				t.Fatalf("SaveImage() error = %v", err)
			}
			loaded, err := vm.LoadImage(image)
			if err != nil {
				t.Fatalf("LoadImage() error = %v", err)
			}

			want, err := os.ReadFile(base + ".out")
			if err != nil {
				t.Fatalf("missing golden output: %v", err)
			}
			input, err := os.ReadFile(base + ".in")
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				t.Fatal(err)
			}

			var out bytes.Buffer
			m := vm.New()
			m.Output = &out
			m.Input = bytes.NewReader(input)
			m.Load(loaded)
			if err := m.Run(); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if out.String() != string(want) {
				t.Errorf("output = %q, want %q", out.String(), string(want))
			}
		})
	}
}

// TestListingRunsLikeSource checks that a disassembled program assembles
// back into one with identical behaviour.
func TestListingRunsLikeSource(t *testing.T) {
	source, err := os.ReadFile("testdata/list.mypl")
	if err != nil {
		t.Fatal(err)
	}
	templates, err := compiler.Compile(string(source))
	if err != nil {
		t.Fatal(err)
	}
	reassembled, err := asm.Assemble(asm.Disassemble(templates))
	if err != nil {
		t.Fatal(err)
	}

	outputs := make([]string, 2)
	for i, prog := range [][]*vm.FrameTemplate{templates, reassembled} {
		var out bytes.Buffer
		m := vm.New()
		m.Output = &out
		m.Load(prog)
		if err := m.Run(); err != nil {
			t.Fatal(err)
		}
		outputs[i] = out.String()
	}
	if outputs[0] != outputs[1] {
		t.Errorf("source output %q, listing output %q", outputs[0], outputs[1])
	}
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.mypl")
	if err := os.WriteFile(bad, []byte("void main() { int x = \"s\"; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	badListing := filepath.Join(dir, "bad.masm")
	if err := os.WriteFile(badListing, []byte("frame main 0\nJMP nowhere\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	good, err := filepath.Glob("testdata/*.m*")
	if err != nil {
		t.Fatal(err)
	}
	if failed := checkFiles(good, 2); failed != 0 {
		t.Errorf("checkFiles(testdata) = %d failures, want 0", failed)
	}
	paths := append([]string{bad, badListing, filepath.Join(dir, "missing.mypl")}, good...)
	if failed := checkFiles(paths, 2); failed != 3 {
		t.Errorf("checkFiles() = %d failures, want 3", failed)
	}
}

func TestRuntimeErrorCarriesFunction(t *testing.T) {
	templates, err := compiler.Compile(`int at(array int xs, int i) { return xs[i]; }
void main() { array int xs = new int[2]; print(at(xs, 2)); }`)
	if err != nil {
		t.Fatal(err)
	}
	err = runTemplates(templates, runConfig{objectBase: vm.DefaultObjectBase})
	var verr *vm.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *vm.Error, got %v", err)
	}
	if verr.Function != "at" {
		t.Errorf("error function = %q, want at", verr.Function)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"prog.mypl", "prog.mbc"},
		{"dir/prog.masm", "dir/prog.mbc"},
		{"prog", "prog.mbc"},
	}
	for _, tt := range tests {
		if got := defaultOutputPath(tt.in); got != tt.want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
