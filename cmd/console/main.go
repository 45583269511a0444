package main

import (
	"fmt"
	"log"
	"os"

	"mypl/pkg/compiler"
	"mypl/pkg/utils"
	"mypl/pkg/vm"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <file.mypl> [--show-bytecode] [--trace]", os.Args[0])
	}
	filename := os.Args[1]
	showBytecode := false
	trace := false
	for _, arg := range os.Args[2:] {
		switch arg {
		case "--show-bytecode":
			showBytecode = true
		case "--trace":
			trace = true
		}
	}

	fullPath, baseDir, err := utils.GetPathInfo(filename)
	if err != nil {
		log.Fatalf("Failed to resolve source path: %v", err)
	}
	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	fmt.Fprintln(os.Stderr, "Compiling source file:", fullPath)
	fmt.Fprintln(os.Stderr, "Base directory:", baseDir)

	templates, err := compiler.Compile(string(sourceBytes))
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	var opts []vm.Option
	if trace {
		opts = append(opts, vm.WithTrace(os.Stderr))
	}
	machine := vm.New(opts...)
	machine.Load(templates)

	if showBytecode {
		fmt.Fprint(os.Stderr, "Generated Bytecode:\n", machine, "\n")
	}

	if err := machine.Run(); err != nil {
		log.Fatalf("Runtime error: %v", err)
	}
}
