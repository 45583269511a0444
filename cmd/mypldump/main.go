package main

import (
	"fmt"
	"os"

	"mypl/pkg/compiler"
)

const testSource = `struct Pair {
  int a;
  int b;
}

void main() {
  Pair p = new Pair(10, 20);
  print(p.a + p.b);
}
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse
	prog, err := compiler.Parse(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("AST")
	fmt.Print(compiler.Format(prog))
	fmt.Println()

	// Check
	fmt.Println("Symbols")
	checker := compiler.NewChecker()
	checker.Symbols = os.Stdout
	if err := checker.Check(prog); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println()

	// code Generation
	fmt.Println("Slots")
	gen := compiler.NewCodeGen()
	gen.Slots = os.Stdout
	templates, err := gen.Generate(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println()

	fmt.Println("Bytecode")
	for _, t := range templates {
		fmt.Print(t.Listing())
	}
}
