package compiler

import (
	"mypl/pkg/vm"
)

// Compile runs the whole pipeline over src. Errors carry the offending
// source line when they have a position.
func Compile(src string) ([]*vm.FrameTemplate, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, withSnippet(err, src)
	}

	if err := Check(prog); err != nil {
		return nil, withSnippet(err, src)
	}

	templates, err := Generate(prog)
	if err != nil {
		return nil, withSnippet(err, src)
	}
	return templates, nil
}

// CheckSource parses and checks src without generating code.
func CheckSource(src string) (*Program, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, withSnippet(err, src)
	}
	if err := Check(prog); err != nil {
		return nil, withSnippet(err, src)
	}
	return prog, nil
}
