package preprocess

import (
	"fmt"
	"strconv"
	"strings"
)

type exprKind int

const (
	exprEOF exprKind = iota
	exprNum
	exprIdent
	exprOp
)

type exprToken struct {
	kind exprKind
	text string
	num  int64
}

// twoCharOps are recognised so that unsupported operators such as == fail as
// a whole instead of being misread as two tokens.
var twoCharOps = []string{"&&", "||", "==", "!=", "<=", ">=", "<<", ">>"}

// scanExpr splits a directive expression into tokens. It fails only on
// characters that cannot appear in any C constant expression.
func scanExpr(s string) ([]exprToken, error) {
	var toks []exprToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c >= '0' && c <= '9':
			start := i
			for i < len(s) && (isIdentPart(rune(s[i]))) {
				i++
			}
			n, err := parseIntLiteral(s[start:i])
			if err != nil {
				return nil, err
			}
			toks = append(toks, exprToken{kind: exprNum, text: s[start:i], num: n})

		case isIdentStart(rune(c)):
			start := i
			for i < len(s) && isIdentPart(rune(s[i])) {
				i++
			}
			toks = append(toks, exprToken{kind: exprIdent, text: s[start:i]})

		default:
			op := ""
			for _, two := range twoCharOps {
				if strings.HasPrefix(s[i:], two) {
					op = two
					break
				}
			}
			if op == "" {
				if !strings.ContainsRune("()+-*/%!<>&|^~?:,", rune(c)) {
					return nil, fmt.Errorf("unexpected character %q", c)
				}
				op = string(c)
			}
			toks = append(toks, exprToken{kind: exprOp, text: op})
			i += len(op)
		}
	}
	return append(toks, exprToken{kind: exprEOF}), nil
}

// parseIntLiteral parses a C integer literal: 0x hex, leading-0 octal or
// decimal, with any u/U/l/L suffix.
func parseIntLiteral(lit string) (int64, error) {
	s := strings.TrimRight(lit, "uUlL")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
		s = s[1:]
	}
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", lit)
	}
	return n, nil
}

type exprParser struct {
	toks []exprToken
	pos  int
}

func (p *exprParser) peek() exprToken { return p.toks[p.pos] }

func (p *exprParser) next() exprToken {
	t := p.toks[p.pos]
	if t.kind != exprEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) isOp(op string) bool {
	t := p.peek()
	return t.kind == exprOp && t.text == op
}

func (p *exprParser) expectOp(op string) error {
	if !p.isOp(op) {
		return fmt.Errorf("expected %q, got %q", op, p.peek().text)
	}
	p.next()
	return nil
}

func (p *exprParser) done() error {
	if t := p.peek(); t.kind != exprEOF {
		return fmt.Errorf("unexpected %q", t.text)
	}
	return nil
}

//  Conditions

// condEvaluator evaluates #if/#elif expressions against the macro table.
//
//	or      = and ("||" and)*
//	and     = unary ("&&" unary)*
//	unary   = "!" unary | primary
//	primary = NUMBER | "defined" ("(" IDENT ")" | IDENT) | IDENT | "(" or ")"
type condEvaluator struct {
	exprParser
	macros *MacroTable
}

// EvalCondition evaluates expr. A known macro contributes its numeric value,
// or 1 when its value is not numeric; an unknown identifier is 0. An error
// means expr is outside the supported grammar.
func EvalCondition(expr string, macros *MacroTable) (bool, error) {
	toks, err := scanExpr(expr)
	if err != nil {
		return false, err
	}
	ev := &condEvaluator{exprParser: exprParser{toks: toks}, macros: macros}
	v, err := ev.or()
	if err != nil {
		return false, err
	}
	if err := ev.done(); err != nil {
		return false, err
	}
	return v != 0, nil
}

func (e *condEvaluator) or() (int64, error) {
	v, err := e.and()
	if err != nil {
		return 0, err
	}
	for e.isOp("||") {
		e.next()
		r, err := e.and()
		if err != nil {
			return 0, err
		}
		v = boolInt(v != 0 || r != 0)
	}
	return v, nil
}

func (e *condEvaluator) and() (int64, error) {
	v, err := e.unary()
	if err != nil {
		return 0, err
	}
	for e.isOp("&&") {
		e.next()
		r, err := e.unary()
		if err != nil {
			return 0, err
		}
		v = boolInt(v != 0 && r != 0)
	}
	return v, nil
}

func (e *condEvaluator) unary() (int64, error) {
	if e.isOp("!") {
		e.next()
		v, err := e.unary()
		if err != nil {
			return 0, err
		}
		return boolInt(v == 0), nil
	}
	return e.primary()
}

func (e *condEvaluator) primary() (int64, error) {
	t := e.next()
	switch t.kind {
	case exprNum:
		return t.num, nil

	case exprIdent:
		if t.text == "defined" {
			return e.defined()
		}
		m, ok := e.macros.Lookup(t.text)
		if !ok {
			return 0, nil
		}
		if m.Numeric {
			return m.Value, nil
		}
		return 1, nil

	case exprOp:
		if t.text == "(" {
			v, err := e.or()
			if err != nil {
				return 0, err
			}
			return v, e.expectOp(")")
		}
	}
	return 0, fmt.Errorf("unsupported token %q", t.text)
}

func (e *condEvaluator) defined() (int64, error) {
	paren := e.isOp("(")
	if paren {
		e.next()
	}
	name := e.next()
	if name.kind != exprIdent {
		return 0, fmt.Errorf("defined expects a name, got %q", name.text)
	}
	if paren {
		if err := e.expectOp(")"); err != nil {
			return 0, err
		}
	}
	_, ok := e.macros.Lookup(name.text)
	return boolInt(ok), nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

//  Macro arithmetic

// arithEvaluator reduces a macro value made only of integers and + - * / ( ).
//
//	expr   = term (("+" | "-") term)*
//	term   = factor (("*" | "/") factor)*
//	factor = ("+" | "-") factor | NUMBER | "(" expr ")"
type arithEvaluator struct {
	exprParser
}

// EvalArithmetic evaluates text that has already had known macros
// substituted into it. Division truncates toward zero.
func EvalArithmetic(text string) (int64, error) {
	toks, err := scanExpr(text)
	if err != nil {
		return 0, err
	}
	ev := &arithEvaluator{exprParser{toks: toks}}
	v, err := ev.expr()
	if err != nil {
		return 0, err
	}
	return v, ev.done()
}

func (e *arithEvaluator) expr() (int64, error) {
	v, err := e.term()
	if err != nil {
		return 0, err
	}
	for e.isOp("+") || e.isOp("-") {
		op := e.next().text
		r, err := e.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

func (e *arithEvaluator) term() (int64, error) {
	v, err := e.factor()
	if err != nil {
		return 0, err
	}
	for e.isOp("*") || e.isOp("/") {
		op := e.next().text
		r, err := e.factor()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			v *= r
			continue
		}
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		v /= r
	}
	return v, nil
}

func (e *arithEvaluator) factor() (int64, error) {
	t := e.next()
	switch {
	case t.kind == exprNum:
		return t.num, nil
	case t.kind == exprOp && t.text == "-":
		v, err := e.factor()
		return -v, err
	case t.kind == exprOp && t.text == "+":
		return e.factor()
	case t.kind == exprOp && t.text == "(":
		v, err := e.expr()
		if err != nil {
			return 0, err
		}
		return v, e.expectOp(")")
	}
	return 0, fmt.Errorf("unsupported token %q", t.text)
}
