//go:build !js

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"mypl/pkg/asm"
	"mypl/pkg/compiler"
	"mypl/pkg/project"
	"mypl/pkg/utils"
	"mypl/pkg/vm"
)

type runConfig struct {
	trace      bool
	objectBase int64
}

func main() {
	inPath := flag.String("in", "", "input source (.mypl) or VM listing (.masm)")
	outPath := flag.String("out", "", "output image path (default: input with .mbc extension)")
	runProgram := flag.Bool("run", false, "run the compiled program")
	runBinPath := flag.String("run-bin", "", "run an existing .mbc image")
	projectPath := flag.String("project", "", "build the project described by a mypl.yml file or the nearest one above a directory")
	checkOnly := flag.Bool("check", false, "check the sources given as arguments (and the project's sources) without writing an image")
	traceRun := flag.Bool("trace", false, "trace every executed instruction to stderr")
	showListing := flag.Bool("listing", false, "print the compiled program as a VM listing")
	jobs := flag.Int("jobs", runtime.NumCPU(), "parallel checks with -check")
	flag.Parse()

	cfg := runConfig{trace: *traceRun, objectBase: vm.DefaultObjectBase}
	checkPaths := flag.Args()

	if *projectPath != "" {
		m, err := loadProject(*projectPath)
		if err != nil {
			log.Fatalf("project: %v", err)
		}
		if *inPath == "" {
			*inPath = m.MainPath()
		}
		if *outPath == "" {
			*outPath = m.OutputPath()
		}
		cfg.trace = cfg.trace || m.VM.Trace
		cfg.objectBase = m.VM.ObjectBase
		checkPaths = append(checkPaths, m.SourcePaths()...)
	}

	if *checkOnly {
		if *inPath != "" && *projectPath == "" {
			checkPaths = append(checkPaths, *inPath)
		}
		if len(checkPaths) == 0 {
			fmt.Fprintln(os.Stderr, "-check needs source files as arguments, -in, or -project")
			os.Exit(2)
		}
		if failed := checkFiles(checkPaths, *jobs); failed > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(checkPaths))
			os.Exit(1)
		}
		fmt.Printf("checked %d files\n", len(checkPaths))
		return
	}

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	var compiled []*vm.FrameTemplate
	if *inPath != "" {
		templates, err := buildFile(*inPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}
		if err := vm.SaveImage(output, templates); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write image %q: %v\n", output, err)
			os.Exit(1)
		}

		fmt.Printf("compiled %d functions -> %s\n", len(templates), output)
		if *showListing {
			fmt.Print(asm.Disassemble(templates))
		}
		compiled = templates
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to compile, -run to run the compiled output, -run-bin <file> to run an existing image, or -check <files>")
		flag.Usage()
		os.Exit(2)
	}

	var program []*vm.FrameTemplate
	switch {
	case *runBinPath != "":
		templates, err := vm.LoadImage(*runBinPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load image %q: %v\n", *runBinPath, err)
			os.Exit(1)
		}
		if *showListing && *inPath == "" {
			fmt.Print(asm.Disassemble(templates))
		}
		program = templates
	case *runProgram:
		if compiled == nil {
			fmt.Fprintln(os.Stderr, "-run requires -in or -project, or use -run-bin <file>")
			os.Exit(2)
		}
		program = compiled
	default:
		return
	}

	if err := runTemplates(program, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "runtime error:", err)
		os.Exit(1)
	}
}

func loadProject(path string) (*project.Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		if path, err = project.FindManifest(path); err != nil {
			return nil, err
		}
	}
	return project.LoadManifest(path)
}

// buildFile compiles a .mypl source or assembles a .masm listing.
func buildFile(path string) ([]*vm.FrameTemplate, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %q: %w", path, err)
	}
	if utils.IsListing(path) {
		templates, err := asm.Assemble(string(source))
		if err != nil {
			return nil, fmt.Errorf("assembly failed: %w", err)
		}
		return templates, nil
	}
	return compiler.Compile(string(source))
}

// checkFiles checks every path with at most jobs files in flight and
// reports each failure on stderr in argument order. It returns the number
// of failures.
func checkFiles(paths []string, jobs int) int {
	results := make([]error, len(paths))

	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = checkFile(path)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", paths[i], err)
			failed++
		}
	}
	return failed
}

func checkFile(path string) error {
	if utils.IsListing(path) {
		_, err := buildFile(path)
		return err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = compiler.CheckSource(string(source))
	return err
}

func runTemplates(templates []*vm.FrameTemplate, cfg runConfig) error {
	opts := []vm.Option{vm.WithObjectBase(cfg.objectBase)}
	if cfg.trace {
		opts = append(opts, vm.WithTrace(os.Stderr))
	}
	m := vm.New(opts...)
	m.Load(templates)
	return m.Run()
}

func defaultOutputPath(inPath string) string {
	return utils.ReplaceExt(inPath, ".mbc")
}
