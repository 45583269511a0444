package compiler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"mypl/pkg/vm"
)

// CodeGen lowers a checked AST to VM frame templates, one per function.
type CodeGen struct {
	// Slots receives each function's slot table once its body is compiled.
	Slots io.Writer

	vars    *VarTable
	structs map[string]*StructDef
	curr    *vm.FrameTemplate
}

func NewCodeGen() *CodeGen {
	return &CodeGen{
		vars:    NewVarTable(),
		structs: make(map[string]*StructDef),
	}
}

// Generate compiles every function of prog in declaration order.
func Generate(prog *Program) ([]*vm.FrameTemplate, error) {
	return NewCodeGen().Generate(prog)
}

func (cg *CodeGen) Generate(prog *Program) ([]*vm.FrameTemplate, error) {
	for _, s := range prog.Structs {
		cg.structs[s.Name.Lexeme] = s
	}
	templates := make([]*vm.FrameTemplate, 0, len(prog.Funs))
	for _, f := range prog.Funs {
		t, err := cg.genFun(f)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (cg *CodeGen) errorf(tok Token, format string, args ...any) error {
	return errorAt(StageCodegen, tok, format, args...)
}

// emit appends instr and returns its index.
func (cg *CodeGen) emit(instr vm.Instruction) int {
	cg.curr.Instructions = append(cg.curr.Instructions, instr)
	return len(cg.curr.Instructions) - 1
}

func (cg *CodeGen) emitOp(op vm.Opcode) int {
	return cg.emit(vm.Simple(op))
}

// next is the index the next emitted instruction will get.
func (cg *CodeGen) next() int {
	return len(cg.curr.Instructions)
}

// patch points the jump at index at to target.
func (cg *CodeGen) patch(at, target int) {
	cg.curr.Instructions[at].Operand = vm.Int(int64(target))
}

func (cg *CodeGen) genFun(f *FunDef) (*vm.FrameTemplate, error) {
	cg.curr = vm.NewFrameTemplate(f.Name.Lexeme, len(f.Params))
	cg.vars.EnterFunction()
	defer cg.vars.PopEnvironment()

	// Arguments arrive reversed on the operand stack, so the first pop is
	// the first parameter.
	for _, p := range f.Params {
		cg.emit(vm.Store(cg.vars.Add(p.Name.Lexeme)))
	}
	if err := cg.genStmts(f.Stmts); err != nil {
		return nil, err
	}

	explicitReturn := false
	if n := len(f.Stmts); n > 0 {
		_, explicitReturn = f.Stmts[n-1].(*ReturnStmt)
	}
	if !explicitReturn {
		cg.emit(vm.Push(vm.Null))
		cg.emitOp(vm.OpRET)
	}
	if cg.Slots != nil {
		fmt.Fprintf(cg.Slots, "Frame %s\n%s", cg.curr.Name, cg.vars)
	}
	return cg.curr, nil
}

// genBlock compiles stmts in a nested scope.
func (cg *CodeGen) genBlock(stmts []Stmt) error {
	cg.vars.PushEnvironment()
	defer cg.vars.PopEnvironment()
	return cg.genStmts(stmts)
}

func (cg *CodeGen) genStmts(stmts []Stmt) error {
	for _, s := range stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch s := s.(type) {
	case *VarDecl:
		return cg.genVarDecl(s)
	case *AssignStmt:
		return cg.genAssign(s)
	case *WhileStmt:
		return cg.genWhile(s)
	case *ForStmt:
		return cg.genFor(s)
	case *IfStmt:
		return cg.genIf(s)
	case *ReturnStmt:
		if err := cg.genExpr(s.Expr); err != nil {
			return err
		}
		cg.emitOp(vm.OpRET)
		return nil
	case *CallExpr:
		if err := cg.genCall(s); err != nil {
			return err
		}
		if s.Name.Lexeme != "print" {
			cg.emitOp(vm.OpPOP)
		}
		return nil
	}
	return nil
}

func (cg *CodeGen) genVarDecl(d *VarDecl) error {
	if d.Init != nil {
		if err := cg.genExpr(d.Init); err != nil {
			return err
		}
	} else {
		cg.emit(vm.Push(vm.Null))
	}
	cg.emit(vm.Store(cg.vars.Add(d.Def.Name.Lexeme)))
	return nil
}

func (cg *CodeGen) slot(name Token) (int, error) {
	slot, ok := cg.vars.Get(name.Lexeme)
	if !ok {
		return 0, cg.errorf(name, "undeclared variable %q", name.Lexeme)
	}
	return slot, nil
}

// genAssign walks the path to the object holding the target, then stores
// into its final segment.
func (cg *CodeGen) genAssign(a *AssignStmt) error {
	path := a.LValue
	base := path[0]
	slot, err := cg.slot(base.Name)
	if err != nil {
		return err
	}

	if len(path) == 1 && base.Index == nil {
		if err := cg.genExpr(a.Expr); err != nil {
			return err
		}
		cg.emit(vm.Store(slot))
		return nil
	}

	cg.emit(vm.Load(slot))
	last := path[len(path)-1]
	if len(path) > 1 {
		if base.Index != nil {
			if err := cg.genIndex(base.Index); err != nil {
				return err
			}
		}
		for _, ref := range path[1 : len(path)-1] {
			if err := cg.genField(ref); err != nil {
				return err
			}
		}
		if last.Index != nil {
			cg.emit(vm.GetF(last.Name.Lexeme))
		}
	}

	if last.Index != nil {
		if err := cg.genExpr(last.Index); err != nil {
			return err
		}
		if err := cg.genExpr(a.Expr); err != nil {
			return err
		}
		cg.emitOp(vm.OpSETI)
		return nil
	}
	if err := cg.genExpr(a.Expr); err != nil {
		return err
	}
	cg.emit(vm.SetF(last.Name.Lexeme))
	return nil
}

// genIndex reads element idx of the array on top of the stack.
func (cg *CodeGen) genIndex(idx *Expr) error {
	if err := cg.genExpr(idx); err != nil {
		return err
	}
	cg.emitOp(vm.OpGETI)
	return nil
}

// genField reads a field, and its element when indexed, from the struct on
// top of the stack.
func (cg *CodeGen) genField(ref VarRef) error {
	cg.emit(vm.GetF(ref.Name.Lexeme))
	if ref.Index != nil {
		return cg.genIndex(ref.Index)
	}
	return nil
}

func (cg *CodeGen) genPath(path []VarRef) error {
	slot, err := cg.slot(path[0].Name)
	if err != nil {
		return err
	}
	cg.emit(vm.Load(slot))
	if path[0].Index != nil {
		if err := cg.genIndex(path[0].Index); err != nil {
			return err
		}
	}
	for _, ref := range path[1:] {
		if err := cg.genField(ref); err != nil {
			return err
		}
	}
	return nil
}

//	start: cond
//	       JMPF end
//	       body
//	       JMP start
//	end:   NOP
func (cg *CodeGen) genWhile(w *WhileStmt) error {
	start := cg.next()
	if err := cg.genExpr(w.Cond); err != nil {
		return err
	}
	exit := cg.emit(vm.Jmpf(-1))
	if err := cg.genBlock(w.Stmts); err != nil {
		return err
	}
	cg.emit(vm.Jmp(start))
	cg.patch(exit, cg.emitOp(vm.OpNOP))
	return nil
}

func (cg *CodeGen) genFor(f *ForStmt) error {
	cg.vars.PushEnvironment()
	defer cg.vars.PopEnvironment()

	if err := cg.genVarDecl(f.Init); err != nil {
		return err
	}
	start := cg.next()
	if err := cg.genExpr(f.Cond); err != nil {
		return err
	}
	exit := cg.emit(vm.Jmpf(-1))
	if err := cg.genBlock(f.Stmts); err != nil {
		return err
	}
	if err := cg.genAssign(f.Step); err != nil {
		return err
	}
	cg.emit(vm.Jmp(start))
	cg.patch(exit, cg.emitOp(vm.OpNOP))
	return nil
}

// genIf emits a JMPF cascade. Each false branch falls to the next
// condition (or the else block) and each taken branch jumps to the NOP
// that closes the statement.
func (cg *CodeGen) genIf(s *IfStmt) error {
	branches := append([]BasicIf{s.If}, s.ElseIfs...)
	var ends []int
	for _, b := range branches {
		if err := cg.genExpr(b.Cond); err != nil {
			return err
		}
		skip := cg.emit(vm.Jmpf(-1))
		if err := cg.genBlock(b.Stmts); err != nil {
			return err
		}
		ends = append(ends, cg.emit(vm.Jmp(-1)))
		cg.patch(skip, cg.next())
	}
	if s.Else != nil {
		if err := cg.genBlock(s.Else); err != nil {
			return err
		}
	}
	end := cg.emitOp(vm.OpNOP)
	for _, j := range ends {
		cg.patch(j, end)
	}
	return nil
}

// binOps maps chain operators to opcodes. ">" and ">=" reuse the less-than
// opcodes with their operands swapped.
var binOps = map[TokenType]vm.Opcode{
	PLUS:       vm.OpADD,
	MINUS:      vm.OpSUB,
	TIMES:      vm.OpMUL,
	DIVIDE:     vm.OpDIV,
	AND:        vm.OpAND,
	OR:         vm.OpOR,
	LESS:       vm.OpCMPLT,
	GREATER:    vm.OpCMPLT,
	LESS_EQ:    vm.OpCMPLE,
	GREATER_EQ: vm.OpCMPLE,
	EQUAL:      vm.OpCMPEQ,
	NOT_EQUAL:  vm.OpCMPNE,
}

// genExpr evaluates the chain right-associatively: First op (Rest). A
// "not" flag negates the first term only.
func (cg *CodeGen) genExpr(e *Expr) error {
	flipped := e.Op != nil && (e.Op.Type == GREATER || e.Op.Type == GREATER_EQ)
	if flipped {
		if err := cg.genExpr(e.Rest); err != nil {
			return err
		}
	}
	if err := cg.genTerm(e.First); err != nil {
		return err
	}
	if e.Not {
		cg.emitOp(vm.OpNOT)
	}
	if e.Op == nil {
		return nil
	}
	if !flipped {
		if err := cg.genExpr(e.Rest); err != nil {
			return err
		}
	}
	op, ok := binOps[e.Op.Type]
	if !ok {
		return cg.errorf(*e.Op, "unsupported operator %q", e.Op.Lexeme)
	}
	cg.emitOp(op)
	return nil
}

func (cg *CodeGen) genTerm(t Term) error {
	switch t := t.(type) {
	case *ComplexTerm:
		return cg.genExpr(t.Expr)
	case *SimpleTerm:
		return cg.genRValue(t.RValue)
	}
	return nil
}

func (cg *CodeGen) genRValue(rv RValue) error {
	switch rv := rv.(type) {
	case *SimpleRValue:
		v, err := cg.literal(rv.Value)
		if err != nil {
			return err
		}
		cg.emit(vm.Push(v))
	case *NewRValue:
		return cg.genNew(rv)
	case *CallExpr:
		return cg.genCall(rv)
	case *VarRValue:
		return cg.genPath(rv.Path)
	}
	return nil
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t")

func (cg *CodeGen) literal(tok Token) (vm.Value, error) {
	switch tok.Type {
	case INT_VAL:
		i, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return vm.Null, cg.errorf(tok, "integer literal %s out of range", tok.Lexeme)
		}
		return vm.Int(i), nil
	case DOUBLE_VAL:
		d, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return vm.Null, cg.errorf(tok, "bad double literal %s", tok.Lexeme)
		}
		return vm.Double(d), nil
	case STRING_VAL:
		return vm.String(escapes.Replace(tok.Lexeme)), nil
	case BOOL_VAL:
		return vm.Bool(tok.Lexeme == "true"), nil
	}
	return vm.Null, nil
}

//	ALLOCS
//	DUP, arg0, SETF(field0)
//	DUP, arg1, SETF(field1) ...
func (cg *CodeGen) genNew(n *NewRValue) error {
	if n.IsArray() {
		if err := cg.genExpr(n.Size); err != nil {
			return err
		}
		cg.emitOp(vm.OpALLOCA)
		return nil
	}

	def, ok := cg.structs[n.TypeName.Lexeme]
	if !ok {
		return cg.errorf(n.TypeName, "unknown struct %q", n.TypeName.Lexeme)
	}
	if len(n.Args) > len(def.Fields) {
		return cg.errorf(n.TypeName, "too many values for struct %s: %d given, %d fields",
			def.Name.Lexeme, len(n.Args), len(def.Fields))
	}
	cg.emitOp(vm.OpALLOCS)
	for i, arg := range n.Args {
		cg.emitOp(vm.OpDUP)
		if err := cg.genExpr(arg); err != nil {
			return err
		}
		cg.emit(vm.SetF(def.Fields[i].Name.Lexeme))
	}
	return nil
}

// builtinOps maps single-argument built-ins to their opcode.
var builtinOps = map[string]vm.Opcode{
	"print":  vm.OpWRITE,
	"stoi":   vm.OpTOINT,
	"dtoi":   vm.OpTOINT,
	"itos":   vm.OpTOSTR,
	"dtos":   vm.OpTOSTR,
	"itod":   vm.OpTODBL,
	"stod":   vm.OpTODBL,
	"length": vm.OpLEN,
}

func (cg *CodeGen) genCall(c *CallExpr) error {
	name := c.Name.Lexeme
	if op, ok := builtinOps[name]; ok {
		if len(c.Args) < 1 {
			return cg.errorf(c.Name, "%s() requires an argument", name)
		}
		if err := cg.genExpr(c.Args[0]); err != nil {
			return err
		}
		cg.emitOp(op)
		return nil
	}

	switch name {
	case "input":
		cg.emitOp(vm.OpREAD)
		return nil
	case "get":
		if len(c.Args) < 2 {
			return cg.errorf(c.Name, "get() requires an index and a string")
		}
		if err := cg.genExpr(c.Args[0]); err != nil {
			return err
		}
		if err := cg.genExpr(c.Args[1]); err != nil {
			return err
		}
		cg.emitOp(vm.OpGETC)
		return nil
	}

	for _, arg := range c.Args {
		if err := cg.genExpr(arg); err != nil {
			return err
		}
	}
	cg.emit(vm.Call(name))
	return nil
}
