package layout

import (
	"strconv"
	"strings"

	"cstruct2yaml/pkg/cparse"
)

// literalInt returns the value of an integer literal, ignoring redundant
// parentheses and u/l suffixes. Any other expression is not a literal.
func literalInt(e cparse.Expr) (int, bool) {
	for {
		p, ok := e.(*cparse.Paren)
		if !ok {
			break
		}
		e = p.X
	}
	c, ok := e.(*cparse.Constant)
	if !ok || c.Kind != cparse.INTEGER {
		return 0, false
	}
	lit := strings.TrimRight(c.Value, "uUlL")
	n, err := strconv.ParseInt(lit, 0, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return int(n), true
}
