package compiler

import "strings"

// Parser builds a Program from the token stream of a Lexer, pulling one
// token at a time and skipping comments.
//
// Grammar:
//
//	program   = (structDef | funDef)* EOS
//	structDef = "struct" ID "{" (dataType ID ";")* "}"
//	funDef    = (dataType | "void") ID "(" params ")" "{" stmt* "}"
//	params    = [dataType ID ("," dataType ID)*]
//	dataType  = baseType | ID | "array" (baseType | ID)
//	stmt      = while | if | for | return ";" | vdecl ";" | assign ";" | call ";"
//	vdecl     = dataType ID ["=" expr]
//	assign    = path "=" expr
//	if        = "if" "(" expr ")" block ("elseif" "(" expr ")" block)* ["else" block]
//	while     = "while" "(" expr ")" block
//	for       = "for" "(" vdecl ";" expr ";" assign ")" block
//	return    = "return" expr
//	call      = ID "(" [expr ("," expr)*] ")"
//	expr      = ("not" expr | "(" expr ")" | rvalue) [binOp expr]
//	rvalue    = literal | "null" | new | call | path
//	new       = "new" ID "(" args ")" | "new" (ID | baseType) "[" expr "]"
//	path      = ID ["[" expr "]"] ("." ID ["[" expr "]"])*
type Parser struct {
	lex  *Lexer
	curr Token
}

func NewParser(lex *Lexer) *Parser {
	return &Parser{lex: lex}
}

// Parse lexes and parses src.
func Parse(src string) (*Program, error) {
	return NewParser(NewLexer(strings.NewReader(src))).Parse()
}

// advance moves to the next non-comment token.
func (p *Parser) advance() error {
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return err
		}
		if tok.Type != COMMENT {
			p.curr = tok
			return nil
		}
	}
}

func (p *Parser) match(tt TokenType) bool {
	return p.curr.Type == tt
}

func (p *Parser) errorf(format string, args ...any) error {
	return errorAt(StageParse, p.curr, format, args...)
}

// eat consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) eat(tt TokenType) (Token, error) {
	tok := p.curr
	if tok.Type != tt {
		return tok, p.errorf("expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, p.advance()
}

// Parse consumes the whole token stream.
func (p *Parser) Parse() (*Program, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	prog := &Program{}
	for !p.match(EOS) {
		if p.match(STRUCT) {
			s, err := p.structDef()
			if err != nil {
				return nil, err
			}
			prog.Structs = append(prog.Structs, s)
			continue
		}
		f, err := p.funDef()
		if err != nil {
			return nil, err
		}
		prog.Funs = append(prog.Funs, f)
	}
	return prog, nil
}

func (p *Parser) structDef() (*StructDef, error) {
	if _, err := p.eat(STRUCT); err != nil {
		return nil, err
	}
	name, err := p.eat(ID)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LBRACE); err != nil {
		return nil, err
	}
	s := &StructDef{Name: name}
	for !p.match(RBRACE) {
		def, err := p.varDef()
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(SEMICOLON); err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, def)
	}
	_, err = p.eat(RBRACE)
	return s, err
}

func (p *Parser) funDef() (*FunDef, error) {
	f := &FunDef{}
	if p.match(VOID_TYPE) {
		f.ReturnType = DataType{TypeName: p.curr}
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else {
		dt, err := p.dataType()
		if err != nil {
			return nil, err
		}
		f.ReturnType = dt
	}

	var err error
	if f.Name, err = p.eat(ID); err != nil {
		return nil, err
	}
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	if !p.match(RPAREN) {
		for {
			def, err := p.varDef()
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, def)
			if !p.match(COMMA) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	if f.Stmts, err = p.block(); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *Parser) varDef() (VarDef, error) {
	dt, err := p.dataType()
	if err != nil {
		return VarDef{}, err
	}
	name, err := p.eat(ID)
	return VarDef{Type: dt, Name: name}, err
}

func (p *Parser) dataType() (DataType, error) {
	var dt DataType
	if p.match(ARRAY) {
		dt.IsArray = true
		if err := p.advance(); err != nil {
			return dt, err
		}
	}
	if !p.curr.Type.isBaseType() && !p.match(ID) {
		return dt, p.errorf("expected data type, got %s (%q)", p.curr.Type, p.curr.Lexeme)
	}
	dt.TypeName = p.curr
	return dt, p.advance()
}

// block parses "{" stmt* "}".
func (p *Parser) block() ([]Stmt, error) {
	if _, err := p.eat(LBRACE); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.match(RBRACE) {
		s, err := p.stmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	_, err := p.eat(RBRACE)
	return stmts, err
}

func (p *Parser) stmt() (Stmt, error) {
	switch {
	case p.match(WHILE):
		return p.whileStmt()
	case p.match(IF):
		return p.ifStmt()
	case p.match(FOR):
		return p.forStmt()
	case p.match(RETURN):
		s, err := p.returnStmt()
		return p.endStmt(s, err)
	case p.match(ELSEIF), p.match(ELSE):
		return nil, p.errorf("%q without a matching if", p.curr.Lexeme)
	case p.curr.Type.isBaseType(), p.match(ARRAY):
		s, err := p.vdecl()
		return p.endStmt(s, err)
	case p.match(ID):
		name := p.curr
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch p.curr.Type {
		case LPAREN:
			s, err := p.callRest(name)
			return p.endStmt(s, err)
		case LBRACE, DOT, ASSIGN, LBRACKET:
			s, err := p.assignRest(name)
			return p.endStmt(s, err)
		}
		s, err := p.vdeclRest(DataType{TypeName: name})
		return p.endStmt(s, err)
	}
	return nil, p.errorf("expected statement, got %s (%q)", p.curr.Type, p.curr.Lexeme)
}

// endStmt consumes the semicolon that closes a simple statement.
func (p *Parser) endStmt(s Stmt, err error) (Stmt, error) {
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMICOLON); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) vdecl() (*VarDecl, error) {
	dt, err := p.dataType()
	if err != nil {
		return nil, err
	}
	return p.vdeclRest(dt)
}

func (p *Parser) vdeclRest(dt DataType) (*VarDecl, error) {
	name, err := p.eat(ID)
	if err != nil {
		return nil, err
	}
	d := &VarDecl{Def: VarDef{Type: dt, Name: name}}
	if p.match(ASSIGN) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if d.Init, err = p.expr(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (p *Parser) assign() (*AssignStmt, error) {
	name, err := p.eat(ID)
	if err != nil {
		return nil, err
	}
	return p.assignRest(name)
}

func (p *Parser) assignRest(first Token) (*AssignStmt, error) {
	path, err := p.pathRest(first)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(ASSIGN); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &AssignStmt{LValue: path, Expr: e}, nil
}

// pathRest parses a variable path whose leading name is already consumed.
func (p *Parser) pathRest(first Token) ([]VarRef, error) {
	ref, err := p.varRef(first)
	if err != nil {
		return nil, err
	}
	path := []VarRef{ref}
	for p.match(DOT) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.eat(ID)
		if err != nil {
			return nil, err
		}
		ref, err := p.varRef(name)
		if err != nil {
			return nil, err
		}
		path = append(path, ref)
	}
	return path, nil
}

// varRef parses the optional "[" expr "]" after a path segment name.
func (p *Parser) varRef(name Token) (VarRef, error) {
	ref := VarRef{Name: name}
	if !p.match(LBRACKET) {
		return ref, nil
	}
	if err := p.advance(); err != nil {
		return ref, err
	}
	idx, err := p.expr()
	if err != nil {
		return ref, err
	}
	ref.Index = idx
	_, err = p.eat(RBRACKET)
	return ref, err
}

func (p *Parser) ifStmt() (*IfStmt, error) {
	if _, err := p.eat(IF); err != nil {
		return nil, err
	}
	first, err := p.basicIf()
	if err != nil {
		return nil, err
	}
	s := &IfStmt{If: first}
	for p.match(ELSEIF) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		b, err := p.basicIf()
		if err != nil {
			return nil, err
		}
		s.ElseIfs = append(s.ElseIfs, b)
	}
	if p.match(ELSE) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// basicIf parses "(" expr ")" block after an if or elseif keyword.
func (p *Parser) basicIf() (BasicIf, error) {
	cond, err := p.paren()
	if err != nil {
		return BasicIf{}, err
	}
	stmts, err := p.block()
	return BasicIf{Cond: cond, Stmts: stmts}, err
}

// paren parses "(" expr ")".
func (p *Parser) paren() (*Expr, error) {
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	_, err = p.eat(RPAREN)
	return e, err
}

func (p *Parser) whileStmt() (*WhileStmt, error) {
	if _, err := p.eat(WHILE); err != nil {
		return nil, err
	}
	cond, err := p.paren()
	if err != nil {
		return nil, err
	}
	stmts, err := p.block()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Stmts: stmts}, nil
}

func (p *Parser) forStmt() (*ForStmt, error) {
	if _, err := p.eat(FOR); err != nil {
		return nil, err
	}
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	s := &ForStmt{}
	var err error
	if s.Init, err = p.vdecl(); err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMICOLON); err != nil {
		return nil, err
	}
	if s.Cond, err = p.expr(); err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMICOLON); err != nil {
		return nil, err
	}
	if s.Step, err = p.assign(); err != nil {
		return nil, err
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	if s.Stmts, err = p.block(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) returnStmt() (*ReturnStmt, error) {
	if _, err := p.eat(RETURN); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: e}, nil
}

// callRest parses the argument list of a call whose name is already consumed.
func (p *Parser) callRest(name Token) (*CallExpr, error) {
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	return &CallExpr{Name: name, Args: args}, nil
}

// args parses "(" [expr ("," expr)*] ")".
func (p *Parser) args() ([]*Expr, error) {
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	var args []*Expr
	if !p.match(RPAREN) {
		for {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if !p.match(COMMA) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	_, err := p.eat(RPAREN)
	return args, err
}

// expr parses one term and, if an operator follows, the rest of the chain.
// A leading "not" flags the whole chain.
func (p *Parser) expr() (*Expr, error) {
	if p.match(NOT) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		e.Not = true
		return e, nil
	}

	e := &Expr{}
	if p.match(LPAREN) {
		inner, err := p.paren()
		if err != nil {
			return nil, err
		}
		e.First = &ComplexTerm{Expr: inner}
	} else {
		rv, err := p.rvalue()
		if err != nil {
			return nil, err
		}
		e.First = &SimpleTerm{RValue: rv}
	}

	if p.curr.Type.isBinOp() {
		op := p.curr
		if err := p.advance(); err != nil {
			return nil, err
		}
		rest, err := p.expr()
		if err != nil {
			return nil, err
		}
		e.Op, e.Rest = &op, rest
	}
	return e, nil
}

func (p *Parser) rvalue() (RValue, error) {
	switch {
	case p.curr.Type.isLiteral():
		tok := p.curr
		return &SimpleRValue{Value: tok}, p.advance()
	case p.match(NEW):
		return p.newRValue()
	case p.match(ID):
		name := p.curr
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.match(LPAREN) {
			return p.callRest(name)
		}
		path, err := p.pathRest(name)
		if err != nil {
			return nil, err
		}
		return &VarRValue{Path: path}, nil
	}
	return nil, p.errorf("expected value, got %s (%q)", p.curr.Type, p.curr.Lexeme)
}

func (p *Parser) newRValue() (*NewRValue, error) {
	if _, err := p.eat(NEW); err != nil {
		return nil, err
	}
	if !p.match(ID) && !p.curr.Type.isBaseType() {
		return nil, p.errorf("expected type after new, got %s (%q)", p.curr.Type, p.curr.Lexeme)
	}
	n := &NewRValue{TypeName: p.curr}
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch {
	case p.match(LPAREN) && n.TypeName.Type == ID:
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		n.Args = args
	case p.match(LBRACKET):
		if err := p.advance(); err != nil {
			return nil, err
		}
		size, err := p.expr()
		if err != nil {
			return nil, err
		}
		n.Size = size
		if _, err := p.eat(RBRACKET); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf("expected ( or [ after new %s, got %s (%q)",
			n.TypeName.Lexeme, p.curr.Type, p.curr.Lexeme)
	}
	return n, nil
}
