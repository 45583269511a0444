package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOS     TokenType = iota // sentinel: end of input
	COMMENT                  // "// ..." (lexeme is the comment text)

	// Literals and names
	ID         // identifier
	INT_VAL    // 42
	DOUBLE_VAL // 4.2
	STRING_VAL // "..." (lexeme excludes the quotes)
	BOOL_VAL   // true / false
	NULL_VAL   // null

	// Punctuation
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }

	// Operators
	PLUS       // +
	MINUS      // -
	TIMES      // *
	DIVIDE     // /
	ASSIGN     // =
	EQUAL      // ==
	NOT_EQUAL  // !=
	LESS       // <
	LESS_EQ    // <=
	GREATER    // >
	GREATER_EQ // >=
	AND        // "and"
	OR         // "or"
	NOT        // "not"

	// Types
	INT_TYPE    // "int"
	DOUBLE_TYPE // "double"
	STRING_TYPE // "string"
	BOOL_TYPE   // "bool"
	VOID_TYPE   // "void"

	// Keywords
	STRUCT // "struct"
	ARRAY  // "array"
	NEW    // "new"
	IF     // "if"
	ELSEIF // "elseif"
	ELSE   // "else"
	WHILE  // "while"
	FOR    // "for"
	RETURN // "return"
)

var tokenNames = [...]string{
	EOS:         "EOS",
	COMMENT:     "COMMENT",
	ID:          "ID",
	INT_VAL:     "INT_VAL",
	DOUBLE_VAL:  "DOUBLE_VAL",
	STRING_VAL:  "STRING_VAL",
	BOOL_VAL:    "BOOL_VAL",
	NULL_VAL:    "NULL_VAL",
	DOT:         "DOT",
	COMMA:       "COMMA",
	SEMICOLON:   "SEMICOLON",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	TIMES:       "TIMES",
	DIVIDE:      "DIVIDE",
	ASSIGN:      "ASSIGN",
	EQUAL:       "EQUAL",
	NOT_EQUAL:   "NOT_EQUAL",
	LESS:        "LESS",
	LESS_EQ:     "LESS_EQ",
	GREATER:     "GREATER",
	GREATER_EQ:  "GREATER_EQ",
	AND:         "AND",
	OR:          "OR",
	NOT:         "NOT",
	INT_TYPE:    "INT_TYPE",
	DOUBLE_TYPE: "DOUBLE_TYPE",
	STRING_TYPE: "STRING_TYPE",
	BOOL_TYPE:   "BOOL_TYPE",
	VOID_TYPE:   "VOID_TYPE",
	STRUCT:      "STRUCT",
	ARRAY:       "ARRAY",
	NEW:         "NEW",
	IF:          "IF",
	ELSEIF:      "ELSEIF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	FOR:         "FOR",
	RETURN:      "RETURN",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// isBaseType reports whether tt names one of the four value types.
func (tt TokenType) isBaseType() bool {
	switch tt {
	case INT_TYPE, DOUBLE_TYPE, STRING_TYPE, BOOL_TYPE:
		return true
	}
	return false
}

// isBinOp reports whether tt may join two terms of an expression.
func (tt TokenType) isBinOp() bool {
	switch tt {
	case PLUS, MINUS, TIMES, DIVIDE, AND, OR,
		EQUAL, NOT_EQUAL, LESS, LESS_EQ, GREATER, GREATER_EQ:
		return true
	}
	return false
}

// isLiteral reports whether tt is a literal value token.
func (tt TokenType) isLiteral() bool {
	switch tt {
	case INT_VAL, DOUBLE_VAL, STRING_VAL, BOOL_VAL, NULL_VAL:
		return true
	}
	return false
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // source text; string literals exclude their quotes
	Line   int    // 1-based source line
	Column int    // 1-based column of the first character
}

func (t Token) String() string {
	return fmt.Sprintf("%-11s %-14q  line %d, column %d", t.Type, t.Lexeme, t.Line, t.Column)
}
