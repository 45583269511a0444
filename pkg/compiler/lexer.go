package compiler

import (
	"bufio"
	"io"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":    INT_TYPE,
	"double": DOUBLE_TYPE,
	"string": STRING_TYPE,
	"bool":   BOOL_TYPE,
	"void":   VOID_TYPE,
	"and":    AND,
	"or":     OR,
	"not":    NOT,
	"if":     IF,
	"elseif": ELSEIF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"return": RETURN,
	"struct": STRUCT,
	"array":  ARRAY,
	"new":    NEW,
	"null":   NULL_VAL,
	"true":   BOOL_VAL,
	"false":  BOOL_VAL,
}

// eof is returned by read and peek once the input is exhausted.
const eof rune = -1

// Lexer turns a character stream into tokens on demand.
type Lexer struct {
	in     *bufio.Reader
	line   int // line of the last rune read
	column int // column of the last rune read
}

func NewLexer(r io.Reader) *Lexer {
	return &Lexer{in: bufio.NewReader(r), line: 1}
}

// read consumes one rune.
func (l *Lexer) read() rune {
	r, _, err := l.in.ReadRune()
	if err != nil {
		return eof
	}
	if r == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	return r
}

// peek returns the next rune without consuming it.
func (l *Lexer) peek() rune {
	r, _, err := l.in.ReadRune()
	if err != nil {
		return eof
	}
	_ = l.in.UnreadRune()
	return r
}

func (l *Lexer) errorf(line, column int, format string, args ...any) error {
	return errorAt(StageLex, Token{Line: line, Column: column}, format, args...)
}

// NextToken returns the next token, including comments. Once the input is
// exhausted it keeps returning EOS.
func (l *Lexer) NextToken() (Token, error) {
	for unicode.IsSpace(l.peek()) {
		l.read()
	}

	ch := l.read()
	line, col := l.line, l.column
	tok := func(tt TokenType, lexeme string) (Token, error) {
		return Token{Type: tt, Lexeme: lexeme, Line: line, Column: col}, nil
	}

	switch ch {
	case eof:
		return Token{Type: EOS, Line: l.line, Column: l.column + 1}, nil
	case '.':
		return tok(DOT, ".")
	case ',':
		return tok(COMMA, ",")
	case ';':
		return tok(SEMICOLON, ";")
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case '{':
		return tok(LBRACE, "{")
	case '}':
		return tok(RBRACE, "}")
	case '+':
		return tok(PLUS, "+")
	case '-':
		return tok(MINUS, "-")
	case '*':
		return tok(TIMES, "*")
	case '/':
		if l.peek() == '/' {
			l.read()
			return tok(COMMENT, l.scanComment())
		}
		return tok(DIVIDE, "/")
	case '=':
		if l.peek() == '=' {
			l.read()
			return tok(EQUAL, "==")
		}
		return tok(ASSIGN, "=")
	case '<':
		if l.peek() == '=' {
			l.read()
			return tok(LESS_EQ, "<=")
		}
		return tok(LESS, "<")
	case '>':
		if l.peek() == '=' {
			l.read()
			return tok(GREATER_EQ, ">=")
		}
		return tok(GREATER, ">")
	case '!':
		if l.peek() == '=' {
			l.read()
			return tok(NOT_EQUAL, "!=")
		}
		return Token{}, l.errorf(line, col, "expecting '=' after '!'")
	case '"':
		s, err := l.scanString(line, col)
		if err != nil {
			return Token{}, err
		}
		return tok(STRING_VAL, s)
	}

	switch {
	case isDigit(ch):
		return l.scanNumber(ch, line, col)
	case unicode.IsLetter(ch):
		lexeme := l.scanIdent(ch)
		if kw, ok := keywords[lexeme]; ok {
			return tok(kw, lexeme)
		}
		return tok(ID, lexeme)
	}
	return Token{}, l.errorf(line, col, "unexpected character %q", ch)
}

// scanComment collects the rest of the line after "//".
func (l *Lexer) scanComment() string {
	var sb strings.Builder
	for r := l.peek(); r != '\n' && r != eof; r = l.peek() {
		sb.WriteRune(l.read())
	}
	return strings.TrimRight(sb.String(), "\r")
}

// scanString collects everything up to the closing quote. Escapes are left
// as written.
func (l *Lexer) scanString(line, col int) (string, error) {
	var sb strings.Builder
	for {
		r := l.read()
		switch r {
		case eof:
			return "", l.errorf(line, col, "unterminated string")
		case '"':
			return sb.String(), nil
		}
		sb.WriteRune(r)
	}
}

func (l *Lexer) scanNumber(first rune, line, col int) (Token, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for isDigit(l.peek()) {
		sb.WriteRune(l.read())
	}
	if first == '0' && sb.Len() > 1 {
		return Token{}, l.errorf(line, col, "leading zero in number %q", sb.String())
	}

	tt := INT_VAL
	if l.peek() == '.' {
		sb.WriteRune(l.read())
		if !isDigit(l.peek()) {
			return Token{}, l.errorf(line, col, "missing digit after decimal point in %q", sb.String())
		}
		for isDigit(l.peek()) {
			sb.WriteRune(l.read())
		}
		if l.peek() == '.' {
			return Token{}, l.errorf(line, col, "too many decimal points in %q", sb.String()+".")
		}
		tt = DOUBLE_VAL
	}

	if r := l.peek(); unicode.IsLetter(r) || r == '_' {
		return Token{}, l.errorf(line, col, "invalid character %q in number", r)
	}
	return Token{Type: tt, Lexeme: sb.String(), Line: line, Column: col}, nil
}

// scanIdent collects an identifier or keyword whose first rune is already read.
func (l *Lexer) scanIdent(first rune) string {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		r := l.peek()
		if !unicode.IsLetter(r) && !isDigit(r) && r != '_' {
			break
		}
		sb.WriteRune(l.read())
	}
	return sb.String()
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Lex scans src completely and returns every token, comments included,
// ending with EOS.
func Lex(src string) ([]Token, error) {
	l := NewLexer(strings.NewReader(src))
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOS {
			return tokens, nil
		}
	}
}
