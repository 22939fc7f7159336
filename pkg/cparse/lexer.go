package cparse

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"typedef": TYPEDEF,
	"struct":  STRUCT,
	"union":   UNION,
	"enum":    ENUM,
	"sizeof":  SIZEOF,

	"extern":    STORAGE,
	"static":    STORAGE,
	"auto":      STORAGE,
	"register":  STORAGE,
	"inline":    STORAGE,
	"__inline":  STORAGE,
	"_Noreturn": STORAGE,

	"const":         QUALIFIER,
	"volatile":      QUALIFIER,
	"restrict":      QUALIFIER,
	"__restrict":    QUALIFIER,
	"_Atomic":       QUALIFIER,
	"__extension__": QUALIFIER,

	"void":     BASICTYPE,
	"char":     BASICTYPE,
	"short":    BASICTYPE,
	"int":      BASICTYPE,
	"long":     BASICTYPE,
	"float":    BASICTYPE,
	"double":   BASICTYPE,
	"signed":   BASICTYPE,
	"unsigned": BASICTYPE,
	"_Bool":    BASICTYPE,
	"_Complex": BASICTYPE,

	"__attribute__": ATTRIBUTE,
	"__attribute":   ATTRIBUTE,
	"__declspec":    ATTRIBUTE,
	"__asm__":       ATTRIBUTE,
	"__asm":         ATTRIBUTE,
	"_Alignas":      ATTRIBUTE,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanNumber collects an integer literal in decimal, octal or hex form with
// any u/U/l/L suffix, or a floating literal. The suffix stays in the lexeme;
// constant evaluation strips it.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	isFloat := false

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	for l.pos < len(l.src) {
		r := l.peek()
		if r == 'u' || r == 'U' || r == 'l' || r == 'L' || (isFloat && (r == 'f' || r == 'F')) {
			l.advance()
			continue
		}
		break
	}

	tt := INTEGER
	if isFloat {
		tt = FLOAT
	}
	return Token{Type: tt, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// scanQuoted collects a character or string literal delimited by quote,
// keeping escape sequences verbatim.
func (l *Lexer) scanQuoted(quote rune, tt TokenType) (Token, error) {
	line := l.line
	start := l.pos
	l.advance() // opening quote

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '\n' {
			break
		}
		if r == '\\' {
			l.advance()
			l.advance()
			continue
		}
		l.advance()
		if r == quote {
			return Token{Type: tt, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
		}
	}

	if tt == CHARLIT {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peek2())) {
		return l.scanNumber(), nil
	}
	if ch == '"' {
		return l.scanQuoted('"', STRING)
	}
	if ch == '\'' {
		return l.scanQuoted('\'', CHARLIT)
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return Token{LBRACE, "{", line}, nil
	case '}':
		return Token{RBRACE, "}", line}, nil
	case '(':
		return Token{LPAREN, "(", line}, nil
	case ')':
		return Token{RPAREN, ")", line}, nil
	case '[':
		return Token{LBRACKET, "[", line}, nil
	case ']':
		return Token{RBRACKET, "]", line}, nil
	case ';':
		return Token{SEMICOLON, ";", line}, nil
	case ',':
		return Token{COMMA, ",", line}, nil
	case ':':
		return Token{COLON, ":", line}, nil
	case '?':
		return Token{QUESTION, "?", line}, nil
	case '~':
		return Token{TILDE, "~", line}, nil
	case '^':
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "^=", line}, nil
		}
		return Token{CARET, "^", line}, nil
	case '%':
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "%=", line}, nil
		}
		return Token{PERCENT, "%", line}, nil
	case '.':
		if l.peek() == '.' && l.peek2() == '.' {
			l.advance()
			l.advance()
			return Token{ELLIPSIS, "...", line}, nil
		}
		return Token{DOT, ".", line}, nil
	case '+':
		if l.peek() == '+' || l.peek() == '=' {
			op := "+" + string(l.advance())
			return Token{OTHER, op, line}, nil
		}
		return Token{PLUS, "+", line}, nil
	case '-':
		if l.peek() == '>' {
			l.advance()
			return Token{ARROW, "->", line}, nil
		}
		if l.peek() == '-' || l.peek() == '=' {
			op := "-" + string(l.advance())
			return Token{OTHER, op, line}, nil
		}
		return Token{MINUS, "-", line}, nil
	case '*':
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "*=", line}, nil
		}
		return Token{STAR, "*", line}, nil
	case '/':
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "/=", line}, nil
		}
		return Token{SLASH, "/", line}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{AND_LOGICAL, "&&", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "&=", line}, nil
		}
		return Token{AND, "&", line}, nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return Token{OR_LOGICAL, "||", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{OTHER, "|=", line}, nil
		}
		return Token{PIPE, "|", line}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{NOT_EQ, "!=", line}, nil
		}
		return Token{NOT, "!", line}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{LESS_EQ, "<=", line}, nil
		}
		if l.peek() == '<' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return Token{OTHER, "<<=", line}, nil
			}
			return Token{SHL_OP, "<<", line}, nil
		}
		return Token{LESS, "<", line}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{GREATER_EQ, ">=", line}, nil
		}
		if l.peek() == '>' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return Token{OTHER, ">>=", line}, nil
			}
			return Token{SHR_OP, ">>", line}, nil
		}
		return Token{GREATER, ">", line}, nil
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return Token{EQUALS, "==", line}, nil
		}
		return Token{ASSIGN, "=", line}, nil
	default:
		return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
