// Package compiler provides the MyPL lexer, parser, semantic checker and
// code generator targeting the stack VM in package vm.
//
// Pipeline: MyPL source → Lex → Parse → Check → Generate → vm.FrameTemplate
package compiler
