package compiler

import (
	"fmt"
	"io"
)

// builtins are the reserved function names lowered to dedicated opcodes.
var builtins = map[string]bool{
	"print":  true,
	"input":  true,
	"itos":   true,
	"itod":   true,
	"dtos":   true,
	"dtoi":   true,
	"stoi":   true,
	"stod":   true,
	"length": true,
	"get":    true,
}

// builtinArity lists the built-ins whose argument count is checked.
var builtinArity = map[string]int{
	"print":  1,
	"length": 1,
	"itos":   1,
	"dtos":   1,
	"itod":   1,
	"dtoi":   1,
	"get":    2,
	"input":  0,
}

// builtinReturn is the declared type a variable must have to receive the
// result of a built-in in its initializer.
var builtinReturn = map[string]string{
	"itos":   "string",
	"dtos":   "string",
	"input":  "string",
	"get":    "string",
	"itod":   "double",
	"dtoi":   "int",
	"length": "int",
}

// literalArg is the literal kind a built-in accepts as its first argument.
var literalArg = map[string]TokenType{
	"itos":   INT_VAL,
	"itod":   INT_VAL,
	"get":    INT_VAL,
	"dtos":   DOUBLE_VAL,
	"dtoi":   DOUBLE_VAL,
	"length": STRING_VAL,
}

// literalTypes maps a declared base type to the literal tokens that may
// initialize it.
var literalTypes = map[string][]TokenType{
	"int":    {INT_VAL},
	"double": {DOUBLE_VAL},
	"string": {STRING_VAL},
	"bool":   {BOOL_VAL, INT_VAL},
}

// Checker validates declarations, built-in calls and variable initializers.
// It does not type-check general expressions.
type Checker struct {
	// Symbols receives each function's symbol table after its body checks.
	Symbols io.Writer

	syms    *SymbolTable
	structs map[string]*StructDef
	funs    map[string]*FunDef
}

func NewChecker() *Checker {
	return &Checker{
		syms:    NewSymbolTable(),
		structs: make(map[string]*StructDef),
		funs:    make(map[string]*FunDef),
	}
}

// Check runs a fresh Checker over prog.
func Check(prog *Program) error {
	return NewChecker().Check(prog)
}

func (c *Checker) errorf(tok Token, format string, args ...any) error {
	return errorAt(StageCheck, tok, format, args...)
}

func (c *Checker) Check(prog *Program) error {
	for _, s := range prog.Structs {
		if _, dup := c.structs[s.Name.Lexeme]; dup {
			return c.errorf(s.Name, "duplicate struct definition %q", s.Name.Lexeme)
		}
		c.structs[s.Name.Lexeme] = s
	}

	var mainFn *FunDef
	for _, f := range prog.Funs {
		name := f.Name.Lexeme
		if builtins[name] {
			return c.errorf(f.Name, "redefining built-in function %q", name)
		}
		if _, dup := c.funs[name]; dup {
			return c.errorf(f.Name, "duplicate function definition %q", name)
		}
		if name == "main" {
			if f.ReturnType.TypeName.Type != VOID_TYPE || f.ReturnType.IsArray {
				return c.errorf(f.ReturnType.TypeName, "main must have a void return type")
			}
			if len(f.Params) > 0 {
				return c.errorf(f.Params[0].Name, "main must not take parameters")
			}
			mainFn = f
		}
		c.funs[name] = f
	}
	if mainFn == nil {
		return &Error{Stage: StageCheck, Msg: "missing main function"}
	}

	c.syms.PushEnvironment()
	defer c.syms.PopEnvironment()

	for _, s := range prog.Structs {
		if err := c.checkStruct(s); err != nil {
			return err
		}
	}
	for _, f := range prog.Funs {
		if err := c.checkFun(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStruct(s *StructDef) error {
	c.syms.PushEnvironment()
	defer c.syms.PopEnvironment()
	for _, field := range s.Fields {
		if err := c.checkVarDef(field); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkFun(f *FunDef) error {
	if err := c.checkDataType(f.ReturnType); err != nil {
		return err
	}
	c.syms.PushEnvironment()
	defer c.syms.PopEnvironment()
	for _, param := range f.Params {
		if err := c.checkVarDef(param); err != nil {
			return err
		}
	}
	if err := c.checkStmts(f.Stmts); err != nil {
		return err
	}
	if c.Symbols != nil {
		fmt.Fprintf(c.Symbols, "Function %s\n%s", f.Name.Lexeme, c.syms)
	}
	return nil
}

// checkDataType accepts base types, void and declared struct names.
func (c *Checker) checkDataType(dt DataType) error {
	tok := dt.TypeName
	if tok.Type.isBaseType() || tok.Type == VOID_TYPE {
		return nil
	}
	if _, ok := c.structs[tok.Lexeme]; ok {
		return nil
	}
	return c.errorf(tok, "invalid type %q", tok.Lexeme)
}

// checkVarDef validates the type and binds the name in the current scope.
func (c *Checker) checkVarDef(def VarDef) error {
	if err := c.checkDataType(def.Type); err != nil {
		return err
	}
	if c.syms.ExistsInCurrEnv(def.Name.Lexeme) {
		return c.errorf(def.Name, "%q is already defined in this scope", def.Name.Lexeme)
	}
	c.syms.Add(def.Name.Lexeme, def.Type)
	return nil
}

// checkBlock checks stmts inside a fresh scope.
func (c *Checker) checkBlock(stmts []Stmt) error {
	c.syms.PushEnvironment()
	defer c.syms.PopEnvironment()
	return c.checkStmts(stmts)
}

func (c *Checker) checkStmts(stmts []Stmt) error {
	for _, s := range stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStmt(s Stmt) error {
	switch s := s.(type) {
	case *VarDecl:
		return c.checkVarDecl(s)
	case *AssignStmt:
		if err := c.checkPath(s.LValue); err != nil {
			return err
		}
		return c.checkExpr(s.Expr)
	case *WhileStmt:
		if err := c.checkExpr(s.Cond); err != nil {
			return err
		}
		return c.checkBlock(s.Stmts)
	case *ForStmt:
		c.syms.PushEnvironment()
		defer c.syms.PopEnvironment()
		if err := c.checkVarDecl(s.Init); err != nil {
			return err
		}
		if err := c.checkExpr(s.Cond); err != nil {
			return err
		}
		if err := c.checkBlock(s.Stmts); err != nil {
			return err
		}
		return c.checkStmt(s.Step)
	case *IfStmt:
		branches := append([]BasicIf{s.If}, s.ElseIfs...)
		for _, b := range branches {
			if err := c.checkExpr(b.Cond); err != nil {
				return err
			}
			if err := c.checkBlock(b.Stmts); err != nil {
				return err
			}
		}
		if s.Else != nil {
			return c.checkBlock(s.Else)
		}
		return nil
	case *ReturnStmt:
		return c.checkExpr(s.Expr)
	case *CallExpr:
		return c.checkCall(s)
	}
	return nil
}

func (c *Checker) checkVarDecl(d *VarDecl) error {
	if err := c.checkVarDef(d.Def); err != nil {
		return err
	}
	if d.Init == nil {
		return nil
	}
	if err := c.checkExpr(d.Init); err != nil {
		return err
	}

	declared := d.Def.Type.TypeName.Lexeme
	switch rv := firstRValue(d.Init).(type) {
	case *CallExpr:
		want, ok := builtinReturn[rv.Name.Lexeme]
		if ok && (declared != want || d.Def.Type.IsArray) {
			return c.errorf(rv.Name, "%s() returns %s, cannot initialize %s %q",
				rv.Name.Lexeme, want, typeString(d.Def.Type), d.Def.Name.Lexeme)
		}
	case *SimpleRValue:
		lit := rv.Value
		if lit.Type == NULL_VAL {
			return nil
		}
		if d.Def.Type.IsArray {
			return c.errorf(lit, "array %q must be initialized with new", d.Def.Name.Lexeme)
		}
		allowed, ok := literalTypes[declared]
		if !ok {
			return nil
		}
		for _, tt := range allowed {
			if lit.Type == tt {
				return nil
			}
		}
		return c.errorf(lit, "%s %q initialized with %s", declared, d.Def.Name.Lexeme, lit.Type)
	case *VarRValue:
		srcType, ok := c.pathType(rv.Path)
		if !ok || srcType.IsArray || !srcType.TypeName.Type.isBaseType() {
			return nil
		}
		if srcType.TypeName.Lexeme != declared {
			return c.errorf(rv.Path[0].Name, "%q is %s but %q is %s",
				d.Def.Name.Lexeme, declared, pathString(rv.Path), srcType.TypeName.Lexeme)
		}
	}
	return nil
}

// pathType resolves the declared type at the end of a variable path through
// struct field definitions. It reports false when any segment cannot be
// resolved statically.
func (c *Checker) pathType(path []VarRef) (DataType, bool) {
	dt, ok := c.syms.Get(path[0].Name.Lexeme)
	if !ok {
		return DataType{}, false
	}
	for i, ref := range path {
		if i > 0 {
			if dt.IsArray {
				return DataType{}, false
			}
			field, ok := c.field(dt.TypeName.Lexeme, ref.Name.Lexeme)
			if !ok {
				return DataType{}, false
			}
			dt = field
		}
		if ref.Index != nil {
			if !dt.IsArray {
				return DataType{}, false
			}
			dt.IsArray = false
		}
	}
	return dt, true
}

func (c *Checker) field(structName, name string) (DataType, bool) {
	sd, ok := c.structs[structName]
	if !ok {
		return DataType{}, false
	}
	for _, f := range sd.Fields {
		if f.Name.Lexeme == name {
			return f.Type, true
		}
	}
	return DataType{}, false
}

// checkCall applies built-in arity and literal argument rules, then checks
// the arguments themselves.
func (c *Checker) checkCall(call *CallExpr) error {
	name := call.Name.Lexeme
	if want, ok := builtinArity[name]; ok && len(call.Args) != want {
		switch want {
		case 0:
			return c.errorf(call.Name, "%s() takes no arguments", name)
		case 1:
			return c.errorf(call.Name, "%s() requires one argument", name)
		default:
			return c.errorf(call.Name, "%s() requires %d arguments", name, want)
		}
	}

	if len(call.Args) > 0 {
		if lit, ok := literalOf(call.Args[0]); ok {
			want, ok := literalArg[name]
			if ok && lit.Type != want {
				return c.errorf(lit, "%s() argument must be %s, got %s", name, want, lit.Type)
			}
		}
	}
	if name == "get" && len(call.Args) == 2 {
		switch rv := firstRValue(call.Args[1]).(type) {
		case *NewRValue:
			return c.errorf(rv.TypeName, "get() second argument must not be a new allocation")
		case *SimpleRValue:
			if rv.Value.Type != STRING_VAL {
				return c.errorf(rv.Value, "get() second argument must be %s, got %s", STRING_VAL, rv.Value.Type)
			}
		}
	}

	for _, arg := range call.Args {
		if err := c.checkExpr(arg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkExpr(e *Expr) error {
	for ; e != nil; e = e.Rest {
		switch t := e.First.(type) {
		case *ComplexTerm:
			if err := c.checkExpr(t.Expr); err != nil {
				return err
			}
		case *SimpleTerm:
			if err := c.checkRValue(t.RValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) checkRValue(rv RValue) error {
	switch rv := rv.(type) {
	case *CallExpr:
		return c.checkCall(rv)
	case *VarRValue:
		return c.checkPath(rv.Path)
	case *NewRValue:
		if rv.IsArray() {
			return c.checkExpr(rv.Size)
		}
		for _, arg := range rv.Args {
			if err := c.checkExpr(arg); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPath checks the index expressions of a variable path.
func (c *Checker) checkPath(path []VarRef) error {
	for _, ref := range path {
		if ref.Index == nil {
			continue
		}
		if err := c.checkExpr(ref.Index); err != nil {
			return err
		}
	}
	return nil
}
