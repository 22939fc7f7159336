package cparse

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // type, tag, field or macro name
	INTEGER    // integer literal, any base, suffix kept in the lexeme
	FLOAT      // floating literal
	CHARLIT    // character literal 'c'
	STRING     // string literal "..."

	// Keywords
	TYPEDEF
	STRUCT
	UNION
	ENUM
	STORAGE   // extern static auto register inline _Noreturn
	QUALIFIER // const volatile restrict _Atomic
	BASICTYPE // void char short int long float double signed unsigned _Bool _Complex
	ATTRIBUTE // __attribute__ __declspec __asm__ and friends
	SIZEOF

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	ELLIPSIS  // ...
	DOT       // .
	ASSIGN    // =
	QUESTION  // ?
	ARROW     // ->

	// Operators that may appear in constant expressions
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	PERCENT     // %
	AND         // &
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	NOT         // !
	SHL_OP      // <<
	SHR_OP      // >>
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	EQUALS      // ==
	NOT_EQ      // !=
	LESS        // <
	GREATER     // >
	LESS_EQ     // <=
	GREATER_EQ  // >=
	OTHER       // any other operator (++, +=, ...), only valid inside skipped regions
)

// tokenNames is indexed by TokenType; its length must track the const block.
var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	INTEGER:     "INTEGER",
	FLOAT:       "FLOAT",
	CHARLIT:     "CHARLIT",
	STRING:      "STRING",
	TYPEDEF:     "TYPEDEF",
	STRUCT:      "STRUCT",
	UNION:       "UNION",
	ENUM:        "ENUM",
	STORAGE:     "STORAGE",
	QUALIFIER:   "QUALIFIER",
	BASICTYPE:   "BASICTYPE",
	ATTRIBUTE:   "ATTRIBUTE",
	SIZEOF:      "SIZEOF",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	SEMICOLON:   "SEMICOLON",
	COMMA:       "COMMA",
	COLON:       "COLON",
	ELLIPSIS:    "ELLIPSIS",
	DOT:         "DOT",
	ASSIGN:      "ASSIGN",
	QUESTION:    "QUESTION",
	ARROW:       "ARROW",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	PERCENT:     "PERCENT",
	AND:         "AND",
	PIPE:        "PIPE",
	CARET:       "CARET",
	TILDE:       "TILDE",
	NOT:         "NOT",
	SHL_OP:      "SHL_OP",
	SHR_OP:      "SHR_OP",
	AND_LOGICAL: "AND_LOGICAL",
	OR_LOGICAL:  "OR_LOGICAL",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	LESS:        "LESS",
	GREATER:     "GREATER",
	LESS_EQ:     "LESS_EQ",
	GREATER_EQ:  "GREATER_EQ",
	OTHER:       "OTHER",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
