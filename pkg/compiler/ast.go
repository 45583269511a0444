package compiler

// Program is the root of the AST.
type Program struct {
	Structs []*StructDef
	Funs    []*FunDef
}

// StructDef declares a struct type.
//
//	struct Node { int val; Node next; }
type StructDef struct {
	Name   Token
	Fields []VarDef
}

// FunDef declares a function.
//
//	int add(int x, int y) { return x + y; }
type FunDef struct {
	ReturnType DataType
	Name       Token
	Params     []VarDef
	Stmts      []Stmt
}

// DataType is a declared type: a base type, void, or a struct name,
// optionally prefixed by "array".
type DataType struct {
	IsArray  bool
	TypeName Token
}

// VarDef pairs a type with a name (fields, params, declarations).
type VarDef struct {
	Type DataType
	Name Token
}

// VarRef is one segment of a variable path, optionally indexed.
//
//	a.b[i].c
//	^ ^^^^ ^  three VarRefs, the second with Index i
type VarRef struct {
	Name  Token
	Index *Expr
}

//  Statements

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
}

// VarDecl declares a local variable with an optional initializer.
//
//	int x = 10;
type VarDecl struct {
	Def  VarDef
	Init *Expr
}

// AssignStmt stores into a variable path.
//
//	p.items[2] = x;
type AssignStmt struct {
	LValue []VarRef
	Expr   *Expr
}

type WhileStmt struct {
	Cond  *Expr
	Stmts []Stmt
}

// ForStmt is a counted loop.
//
//	for (int i = 0; i < 10; i = i + 1) { ... }
type ForStmt struct {
	Init  *VarDecl
	Cond  *Expr
	Step  *AssignStmt
	Stmts []Stmt
}

// BasicIf is a condition with its body: the if part or one elseif.
type BasicIf struct {
	Cond  *Expr
	Stmts []Stmt
}

// IfStmt is an if with any number of elseifs and an optional else.
type IfStmt struct {
	If      BasicIf
	ElseIfs []BasicIf
	Else    []Stmt
}

type ReturnStmt struct {
	Expr *Expr
}

// CallExpr is a function call, usable both as a statement and an r-value.
type CallExpr struct {
	Name Token
	Args []*Expr
}

func (*VarDecl) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*IfStmt) stmtNode()     {}
func (*ReturnStmt) stmtNode() {}
func (*CallExpr) stmtNode()   {}

//  Expressions

// Expr is a right-leaning operator chain: First Op Rest. There is no
// precedence; Rest holds everything to the right of Op.
//
//	not a + b * c
//	Expr{Not: true, First: a, Op: +, Rest: Expr{First: b, Op: *, Rest: Expr{First: c}}}
type Expr struct {
	Not   bool
	First Term
	Op    *Token
	Rest  *Expr
}

// Term is a SimpleTerm or a parenthesized ComplexTerm.
type Term interface {
	termNode()
}

type SimpleTerm struct {
	RValue RValue
}

type ComplexTerm struct {
	Expr *Expr
}

func (*SimpleTerm) termNode()  {}
func (*ComplexTerm) termNode() {}

// RValue is anything that produces a value inside a term.
type RValue interface {
	rvalueNode()
}

// SimpleRValue is a literal: int, double, string, bool or null.
type SimpleRValue struct {
	Value Token
}

// NewRValue allocates a struct (Args) or an array (Size).
//
//	new Point(1, 2)
//	new int[10]
type NewRValue struct {
	TypeName Token
	Args     []*Expr
	Size     *Expr
}

// IsArray reports whether the allocation is an array.
func (n *NewRValue) IsArray() bool { return n.Size != nil }

// VarRValue reads a variable path.
type VarRValue struct {
	Path []VarRef
}

func (*SimpleRValue) rvalueNode() {}
func (*NewRValue) rvalueNode()    {}
func (*VarRValue) rvalueNode()    {}
func (*CallExpr) rvalueNode()     {}

// literalOf returns the literal token when e begins with a bare literal.
func literalOf(e *Expr) (Token, bool) {
	if e == nil {
		return Token{}, false
	}
	st, ok := e.First.(*SimpleTerm)
	if !ok {
		return Token{}, false
	}
	lit, ok := st.RValue.(*SimpleRValue)
	if !ok {
		return Token{}, false
	}
	return lit.Value, true
}

// firstRValue returns the r-value of e's first term when it is simple.
func firstRValue(e *Expr) RValue {
	if e == nil {
		return nil
	}
	if st, ok := e.First.(*SimpleTerm); ok {
		return st.RValue
	}
	return nil
}
