package cparse

import (
	"fmt"
	"strings"

	"cstruct2yaml/pkg/diag"
)

// Parser consumes the flat token slice produced by the Lexer and builds a
// declaration tree. Statements and initializers are never interpreted: a
// function body is skipped by brace balancing and an initializer by scanning
// to the next top-level ',' or ';'.
//
// Grammar (declaration subset):
//
//	file        = external* EOF
//	external    = ";" | declspec (declarator ("=" init)? ("," declarator ("=" init)?)*)? (";" | body)
//	declspec    = (typedef | storage | qualifier | attribute | basictype | record | enum | typename)+
//	record      = ("struct" | "union") attribute* IDENTIFIER? ("{" member* "}")?
//	member      = declspec (mdeclarator ("," mdeclarator)*)? ";"
//	mdeclarator = declarator? (":" constexpr)?
//	enum        = "enum" IDENTIFIER? ("{" IDENTIFIER ("=" constexpr)? ("," ...)* ","? "}")?
//	declarator  = ("*" qualifier*)* ("(" declarator ")" | IDENTIFIER)? suffix
//	suffix      = "[" constexpr? "]" suffix | "(" params ")" | ε
//	constexpr   = logical_or ("?" constexpr ":" constexpr)?
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
	typedefs    map[string]bool
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{
		tokens:      tokens,
		sourceLines: strings.Split(rawSource, "\n"),
		typedefs:    make(map[string]bool),
	}
}

// Parse is a convenience wrapper around NewParser and ParseFile.
func Parse(tokens []Token, rawSource string) (*File, error) {
	return NewParser(tokens, rawSource).ParseFile()
}

// fmtError builds a syntax error carrying the line and source text where tok appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return diag.New(diag.PhaseParse, diag.KindSyntax).
		Line(tok.Line).
		Snippet(snippet).
		Detail(format, args...).
		Build()
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// ParseFile parses the whole token stream.
func (p *Parser) ParseFile() (*File, error) {
	file := &File{}
	for p.peek().Type != EOF {
		decls, err := p.parseExternal()
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decls...)
	}
	return file, nil
}

// parseExternal parses one top-level declaration, which may declare several names.
func (p *Parser) parseExternal() ([]ExternalDecl, error) {
	start := p.peek()
	if start.Type == SEMICOLON {
		p.advance()
		return nil, nil
	}

	isTypedef, base, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}

	if p.peek().Type == SEMICOLON {
		p.advance()
		switch base.(type) {
		case *StructType, *UnionType, *EnumType:
			return []ExternalDecl{&TagDecl{Type: base, Line: start.Line}}, nil
		}
		return nil, nil
	}

	var out []ExternalDecl
	for {
		line := p.peek().Line
		name, typ, err := p.parseDeclarator(base)
		if err != nil {
			return nil, err
		}
		p.skipAttributes()

		if isTypedef {
			if name == "" {
				return nil, p.fmtError(p.peek(), "typedef without a name")
			}
			p.typedefs[name] = true
			out = append(out, &Typedef{Name: name, Type: typ, Line: line})
		} else {
			out = append(out, &Decl{Name: name, Type: typ, Line: line})
			if _, isFunc := typ.(*FuncType); isFunc && p.peek().Type == LBRACE {
				if err := p.skipBalanced(LBRACE, RBRACE); err != nil {
					return nil, err
				}
				return out, nil
			}
			if p.peek().Type == ASSIGN {
				p.advance()
				if err := p.skipInitializer(); err != nil {
					return nil, err
				}
			}
		}

		if p.peek().Type == COMMA {
			p.advance()
			continue
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// parseDeclSpec consumes declaration specifiers and returns the base type.
func (p *Parser) parseDeclSpec() (bool, TypeNode, error) {
	isTypedef := false
	var names []string
	var tag TypeNode
	start := p.peek()

loop:
	for {
		tok := p.peek()
		switch tok.Type {
		case TYPEDEF:
			isTypedef = true
			p.advance()
		case STORAGE, QUALIFIER:
			p.advance()
		case ATTRIBUTE:
			p.skipAttributes()
		case BASICTYPE:
			names = append(names, tok.Lexeme)
			p.advance()
		case STRUCT, UNION:
			if tag != nil || len(names) > 0 {
				return false, nil, p.fmtError(tok, "multiple types in declaration specifiers")
			}
			rec, err := p.parseRecord()
			if err != nil {
				return false, nil, err
			}
			tag = rec
		case ENUM:
			if tag != nil || len(names) > 0 {
				return false, nil, p.fmtError(tok, "multiple types in declaration specifiers")
			}
			en, err := p.parseEnum()
			if err != nil {
				return false, nil, err
			}
			tag = en
		case IDENTIFIER:
			// A plain identifier names a type only when nothing else has.
			if tag != nil || len(names) > 0 {
				break loop
			}
			names = append(names, tok.Lexeme)
			p.advance()
		default:
			break loop
		}
	}

	if tag != nil {
		return isTypedef, tag, nil
	}
	if len(names) == 0 {
		return false, nil, p.fmtError(start, "expected type specifier, got %s (%q)", start.Type, start.Lexeme)
	}
	return isTypedef, &IdentType{Names: names}, nil
}

// parseRecord parses a struct or union specifier. The current token is the keyword.
func (p *Parser) parseRecord() (TypeNode, error) {
	kw := p.advance()
	p.skipAttributes()

	name := ""
	if p.peek().Type == IDENTIFIER {
		name = p.advance().Lexeme
	}
	p.skipAttributes()

	var decls []*Decl
	defined := false
	if p.peek().Type == LBRACE {
		p.advance()
		defined = true
		for p.peek().Type != RBRACE {
			if p.peek().Type == EOF {
				return nil, p.fmtError(p.peek(), "unterminated %s body", kw.Lexeme)
			}
			members, err := p.parseMember()
			if err != nil {
				return nil, err
			}
			decls = append(decls, members...)
		}
		p.advance() // }
		p.skipAttributes()
	} else if name == "" {
		return nil, p.fmtError(p.peek(), "expected tag name or '{' after %s", kw.Lexeme)
	}

	if kw.Type == UNION {
		return &UnionType{Name: name, Decls: decls, Defined: defined}, nil
	}
	return &StructType{Name: name, Decls: decls, Defined: defined}, nil
}

// parseMember parses one member declaration of a struct or union body.
func (p *Parser) parseMember() ([]*Decl, error) {
	start := p.peek()
	if start.Type == SEMICOLON {
		p.advance()
		return nil, nil
	}

	_, base, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}

	// struct { union { int a; float b; }; } and friends.
	if p.peek().Type == SEMICOLON {
		p.advance()
		return []*Decl{{Type: base, Line: start.Line}}, nil
	}

	var out []*Decl
	for {
		d := &Decl{Type: base, Line: p.peek().Line}
		if p.peek().Type != COLON {
			name, typ, err := p.parseDeclarator(base)
			if err != nil {
				return nil, err
			}
			d.Name, d.Type = name, typ
		}
		if p.peek().Type == COLON {
			p.advance()
			width, err := p.parseConstExpr()
			if err != nil {
				return nil, err
			}
			d.BitSize = width
		}
		p.skipAttributes()
		out = append(out, d)

		if p.peek().Type == COMMA {
			p.advance()
			continue
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// parseEnum parses an enum specifier. The current token is the keyword.
func (p *Parser) parseEnum() (TypeNode, error) {
	p.advance() // enum
	p.skipAttributes()

	en := &EnumType{}
	if p.peek().Type == IDENTIFIER {
		en.Name = p.advance().Lexeme
	}
	if p.peek().Type != LBRACE {
		if en.Name == "" {
			return nil, p.fmtError(p.peek(), "expected tag name or '{' after enum")
		}
		return en, nil
	}
	p.advance()
	en.Defined = true

	for p.peek().Type != RBRACE {
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		e := &Enumerator{Name: nameTok.Lexeme}
		if p.peek().Type == ASSIGN {
			p.advance()
			if e.Value, err = p.parseConstExpr(); err != nil {
				return nil, err
			}
		}
		en.Values = append(en.Values, e)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	p.skipAttributes()
	return en, nil
}

// parseDeclarator parses a possibly abstract declarator applied to base.
//
// Parenthesised declarators are handled by parsing what follows the closing
// parenthesis first, then re-parsing the inner declarator with that type as
// its base: for int (*fp)[4], the suffix [4] applies to int and the pointer
// applies to the resulting array.
func (p *Parser) parseDeclarator(base TypeNode) (string, TypeNode, error) {
	for p.peek().Type == STAR {
		p.advance()
		base = &PtrType{Elem: base}
		for p.peek().Type == QUALIFIER || p.peek().Type == ATTRIBUTE {
			p.skipAttributes()
			if p.peek().Type == QUALIFIER {
				p.advance()
			}
		}
	}

	if p.peek().Type == LPAREN && p.isGroupingParen() {
		p.advance() // (
		inner := p.pos
		p.pos--
		if err := p.skipBalanced(LPAREN, RPAREN); err != nil {
			return "", nil, err
		}
		outer, err := p.parseSuffixes(base)
		if err != nil {
			return "", nil, err
		}
		end := p.pos

		p.pos = inner
		name, typ, err := p.parseDeclarator(outer)
		if err != nil {
			return "", nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return "", nil, err
		}
		p.pos = end
		return name, typ, nil
	}

	name := ""
	if p.peek().Type == IDENTIFIER {
		name = p.advance().Lexeme
	}
	typ, err := p.parseSuffixes(base)
	if err != nil {
		return "", nil, err
	}
	return name, typ, nil
}

// isGroupingParen reports whether the '(' at the cursor opens a nested
// declarator rather than a parameter list.
func (p *Parser) isGroupingParen() bool {
	switch p.peekAt(1).Type {
	case STAR, LPAREN, ATTRIBUTE:
		return true
	case IDENTIFIER:
		return !p.typedefs[p.peekAt(1).Lexeme] && p.peekAt(2).Type != COMMA
	}
	return false
}

// parseSuffixes parses array and function suffixes. Array dimensions nest
// outer-to-inner: int a[2][3] is ArrayType{Dim: 2, Elem: ArrayType{Dim: 3}}.
func (p *Parser) parseSuffixes(base TypeNode) (TypeNode, error) {
	switch p.peek().Type {
	case LBRACKET:
		p.advance()
		for p.peek().Type == QUALIFIER || p.peek().Type == STORAGE {
			p.advance()
		}
		var dim Expr
		if p.peek().Type != RBRACKET {
			var err error
			if dim, err = p.parseConstExpr(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		elem, err := p.parseSuffixes(base)
		if err != nil {
			return nil, err
		}
		return &ArrayType{Elem: elem, Dim: dim}, nil

	case LPAREN:
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		return &FuncType{Result: base, Params: params}, nil
	}
	return base, nil
}

// parseParams parses "(" params ")". (void) yields an empty list.
func (p *Parser) parseParams() ([]*Decl, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if p.peek().Type == BASICTYPE && p.peek().Lexeme == "void" && p.peekAt(1).Type == RPAREN {
		p.advance()
	}

	var params []*Decl
	for p.peek().Type != RPAREN {
		if p.peek().Type == ELLIPSIS {
			p.advance()
			break
		}
		line := p.peek().Line
		_, base, err := p.parseDeclSpec()
		if err != nil {
			return nil, err
		}
		name, typ, err := p.parseDeclarator(base)
		if err != nil {
			return nil, err
		}
		p.skipAttributes()
		params = append(params, &Decl{Name: name, Type: typ, Line: line})
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

// skipAttributes discards __attribute__((...)), __declspec(...), __asm__(...)
// and _Alignas(...) groups.
func (p *Parser) skipAttributes() {
	for p.peek().Type == ATTRIBUTE {
		p.advance()
		if p.peek().Type == LPAREN {
			_ = p.skipBalanced(LPAREN, RPAREN)
		}
	}
}

// skipBalanced consumes a balanced open...close group. The current token
// must be open.
func (p *Parser) skipBalanced(open, close TokenType) error {
	start, err := p.expect(open)
	if err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok := p.advance()
		switch tok.Type {
		case open:
			depth++
		case close:
			depth--
		case EOF:
			return p.fmtError(start, "unbalanced %s", open)
		}
	}
	return nil
}

// skipInitializer consumes tokens up to the ',' or ';' that ends the
// current initializer.
func (p *Parser) skipInitializer() error {
	depth := 0
	for {
		tok := p.peek()
		switch tok.Type {
		case EOF:
			return p.fmtError(tok, "unterminated initializer")
		case LPAREN, LBRACE, LBRACKET:
			depth++
		case RPAREN, RBRACE, RBRACKET:
			depth--
		case COMMA, SEMICOLON:
			if depth == 0 {
				return nil
			}
		}
		p.advance()
	}
}

// isTypeName reports whether tok can start a type name in a cast or sizeof.
func (p *Parser) isTypeName(tok Token) bool {
	switch tok.Type {
	case BASICTYPE, STRUCT, UNION, ENUM, QUALIFIER:
		return true
	case IDENTIFIER:
		return p.typedefs[tok.Lexeme]
	}
	return false
}

// parseTypeName parses a declspec followed by an abstract declarator.
func (p *Parser) parseTypeName() (TypeNode, error) {
	_, base, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}
	_, typ, err := p.parseDeclarator(base)
	return typ, err
}

//  Constant expressions

// binaryPrec maps binary operators to precedence; higher binds tighter.
var binaryPrec = map[TokenType]int{
	OR_LOGICAL:  1,
	AND_LOGICAL: 2,
	PIPE:        3,
	CARET:       4,
	AND:         5,
	EQUALS:      6,
	NOT_EQ:      6,
	LESS:        7,
	GREATER:     7,
	LESS_EQ:     7,
	GREATER_EQ:  7,
	SHL_OP:      8,
	SHR_OP:      8,
	PLUS:        9,
	MINUS:       9,
	STAR:        10,
	SLASH:       10,
	PERCENT:     10,
}

// parseConstExpr parses a conditional expression.
func (p *Parser) parseConstExpr() (Expr, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return cond, nil
	}
	p.advance()
	then, err := p.parseConstExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	els, err := p.parseConstExpr()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: "?", X: cond, Y: &Binary{Op: ":", X: then, Y: els}}, nil
}

// parseBinary implements precedence climbing over binaryPrec.
func (p *Parser) parseBinary(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := binaryPrec[op.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op.Lexeme, X: left, Y: right}
	}
}

// parseUnary handles prefix operators, casts and sizeof.
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case MINUS, PLUS, TILDE, NOT:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: tok.Lexeme, X: x}, nil

	case SIZEOF:
		p.advance()
		if p.peek().Type == LPAREN && p.isTypeName(p.peekAt(1)) {
			p.advance()
			typ, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return &Unary{Op: "sizeof", X: &Paren{X: &Ident{Name: typ.String()}}}, nil
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "sizeof ", X: x}, nil

	case LPAREN:
		if p.isTypeName(p.peekAt(1)) {
			p.advance()
			typ, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: fmt.Sprintf("(%s)", typ), X: x}, nil
		}
	}
	return p.parsePrimary()
}

// parsePrimary handles literals, names and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch tok.Type {
	case INTEGER, FLOAT, CHARLIT, STRING:
		return &Constant{Kind: tok.Type, Value: tok.Lexeme}, nil
	case IDENTIFIER:
		return &Ident{Name: tok.Lexeme}, nil
	case LPAREN:
		x, err := p.parseConstExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &Paren{X: x}, nil
	}
	return nil, p.fmtError(tok, "expected constant expression, got %s (%q)", tok.Type, tok.Lexeme)
}
