package compiler

import (
	"io"
	"strings"
)

// Print writes prog as source text. The output parses back to an
// equivalent Program.
func Print(w io.Writer, prog *Program) error {
	_, err := io.WriteString(w, Format(prog))
	return err
}

// Format renders prog as source text with two-space indentation.
func Format(prog *Program) string {
	p := &printer{}
	first := true
	sep := func() {
		if !first {
			p.sb.WriteString("\n")
		}
		first = false
	}
	for _, s := range prog.Structs {
		sep()
		p.structDef(s)
	}
	for _, f := range prog.Funs {
		sep()
		p.funDef(f)
	}
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(parts ...string) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	for _, s := range parts {
		p.sb.WriteString(s)
	}
	p.sb.WriteString("\n")
}

func (p *printer) structDef(s *StructDef) {
	p.line("struct ", s.Name.Lexeme, " {")
	p.indent++
	for _, f := range s.Fields {
		p.line(varDef(f), ";")
	}
	p.indent--
	p.line("}")
}

func (p *printer) funDef(f *FunDef) {
	params := make([]string, len(f.Params))
	for i, def := range f.Params {
		params[i] = varDef(def)
	}
	p.line(typeString(f.ReturnType), " ", f.Name.Lexeme, "(", strings.Join(params, ", "), ") {")
	p.body(f.Stmts)
	p.line("}")
}

func (p *printer) body(stmts []Stmt) {
	p.indent++
	for _, s := range stmts {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *VarDecl:
		p.line(varDecl(s), ";")
	case *AssignStmt:
		p.line(assign(s), ";")
	case *ReturnStmt:
		p.line("return ", exprString(s.Expr), ";")
	case *CallExpr:
		p.line(callString(s), ";")
	case *WhileStmt:
		p.line("while (", exprString(s.Cond), ") {")
		p.body(s.Stmts)
		p.line("}")
	case *ForStmt:
		p.line("for (", varDecl(s.Init), "; ", exprString(s.Cond), "; ", assign(s.Step), ") {")
		p.body(s.Stmts)
		p.line("}")
	case *IfStmt:
		p.line("if (", exprString(s.If.Cond), ") {")
		p.body(s.If.Stmts)
		p.line("}")
		for _, b := range s.ElseIfs {
			p.line("elseif (", exprString(b.Cond), ") {")
			p.body(b.Stmts)
			p.line("}")
		}
		if s.Else != nil {
			p.line("else {")
			p.body(s.Else)
			p.line("}")
		}
	}
}

func varDef(d VarDef) string {
	return typeString(d.Type) + " " + d.Name.Lexeme
}

func varDecl(d *VarDecl) string {
	if d.Init == nil {
		return varDef(d.Def)
	}
	return varDef(d.Def) + " = " + exprString(d.Init)
}

func assign(a *AssignStmt) string {
	return pathString(a.LValue) + " = " + exprString(a.Expr)
}

func pathString(path []VarRef) string {
	var sb strings.Builder
	for i, ref := range path {
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(ref.Name.Lexeme)
		if ref.Index != nil {
			sb.WriteString("[" + exprString(ref.Index) + "]")
		}
	}
	return sb.String()
}

func exprString(e *Expr) string {
	var sb strings.Builder
	if e.Not {
		sb.WriteString("not ")
	}
	switch t := e.First.(type) {
	case *ComplexTerm:
		sb.WriteString("(" + exprString(t.Expr) + ")")
	case *SimpleTerm:
		sb.WriteString(rvalueString(t.RValue))
	}
	if e.Op != nil {
		sb.WriteString(" " + e.Op.Lexeme + " " + exprString(e.Rest))
	}
	return sb.String()
}

func rvalueString(rv RValue) string {
	switch rv := rv.(type) {
	case *SimpleRValue:
		if rv.Value.Type == STRING_VAL {
			return `"` + rv.Value.Lexeme + `"`
		}
		return rv.Value.Lexeme
	case *NewRValue:
		if rv.IsArray() {
			return "new " + rv.TypeName.Lexeme + "[" + exprString(rv.Size) + "]"
		}
		return "new " + rv.TypeName.Lexeme + "(" + argsString(rv.Args) + ")"
	case *VarRValue:
		return pathString(rv.Path)
	case *CallExpr:
		return callString(rv)
	}
	return ""
}

func callString(c *CallExpr) string {
	return c.Name.Lexeme + "(" + argsString(c.Args) + ")"
}

func argsString(args []*Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = exprString(a)
	}
	return strings.Join(parts, ", ")
}
