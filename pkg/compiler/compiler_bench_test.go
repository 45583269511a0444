package compiler

import "testing"

// simpleSource is a minimal program used for benchmarking the fast path.
const simpleSource = `
int add(int a, int b) {
  return a + b;
}

void main() {
  int x = add(3, 4);
  print(x);
}
`

// complexSource exercises structs, arrays, loops, branches and recursion.
const complexSource = `
struct Point {
  int x;
  int y;
}

struct Poly {
  array Point pts;
  int n;
}

int absVal(int n) {
  if (n < 0) {
    return 0 - n;
  }
  return n;
}

int sumArray(array int xs, int n) {
  int total = 0;
  for (int i = 0; i < n; i = i + 1) {
    total = total + xs[i];
  }
  return total;
}

int fib(int n) {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}

int perimeter(Poly p) {
  int total = 0;
  int i = 0;
  while (i < p.n - 1) {
    total = total + absVal(p.pts[i].x - p.pts[i + 1].x) + absVal(p.pts[i].y - p.pts[i + 1].y);
    i = i + 1;
  }
  return total;
}

void main() {
  array int xs = new int[8];
  for (int i = 0; i < 8; i = i + 1) {
    xs[i] = i * 3;
  }
  Poly p = new Poly(new Point[4], 4);
  p.pts[0] = new Point(0, 0);
  p.pts[1] = new Point(3, 0);
  p.pts[2] = new Point(3, 4);
  p.pts[3] = new Point(0, 4);
  int s = sumArray(xs, 8);
  int f = fib(8);
  int q = perimeter(p);
  if (s > f) {
    print("sum ");
  } elseif (s == f) {
    print("same ");
  } else {
    print("fib ");
  }
  print(itos(s + f + q));
}
`

// --- Lex benchmarks ---

func BenchmarkLex_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Lex(simpleSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLex_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Lex(complexSource); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Parse benchmarks ---
// The parser pulls tokens itself, so these include lexing.

func BenchmarkParse_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(simpleSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParse_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(complexSource); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Check and Generate benchmarks ---
// The AST is built outside the timed region.

func BenchmarkCheck_Complex(b *testing.B) {
	prog, err := Parse(complexSource)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Check(prog); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGenerate_Simple(b *testing.B) {
	prog, err := Parse(simpleSource)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(prog); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGenerate_Complex(b *testing.B) {
	prog, err := Parse(complexSource)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(prog); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Full pipeline benchmarks ---

func BenchmarkCompile_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(simpleSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(complexSource); err != nil {
			b.Fatal(err)
		}
	}
}

func TestBenchmarkSourcesCompile(t *testing.T) {
	for name, src := range map[string]string{"simple": simpleSource, "complex": complexSource} {
		if _, err := Compile(src); err != nil {
			t.Errorf("%s source: %v", name, err)
		}
	}
}
