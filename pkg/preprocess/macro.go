package preprocess

import (
	"strconv"
	"strings"
)

// Macro is one #define. Body holds the replacement text: the evaluated
// integer when Numeric, otherwise the value with earlier macros substituted.
type Macro struct {
	Name    string
	Params  []string // nil for object-like macros
	Body    string
	Raw     string // value as written
	Value   int64
	Numeric bool
	Line    int
}

// Empty reports whether the macro expands to nothing. Empty macros are never
// substituted.
func (m *Macro) Empty() bool { return m.Body == "" }

// FunctionLike reports whether the macro was defined with a parameter list.
func (m *Macro) FunctionLike() bool { return m.Params != nil }

// MacroTable keeps macros in definition order. Redefining a name replaces
// its value but keeps its original position.
type MacroTable struct {
	names  []string
	byName map[string]*Macro
}

func NewMacroTable() *MacroTable {
	return &MacroTable{byName: make(map[string]*Macro)}
}

// Define adds or replaces m.
func (t *MacroTable) Define(m *Macro) {
	if _, ok := t.byName[m.Name]; !ok {
		t.names = append(t.names, m.Name)
	}
	t.byName[m.Name] = m
}

// Lookup returns the macro called name. A nil table holds nothing.
func (t *MacroTable) Lookup(name string) (*Macro, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := t.byName[name]
	return m, ok
}

// Names returns macro names in definition order.
func (t *MacroTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *MacroTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// parseDefine parses the text after "#define". It returns nil when no
// macro name is present or the parameter list is unterminated.
func parseDefine(rest string) *Macro {
	rest = strings.TrimSpace(rest)
	nameEnd := 0
	for nameEnd < len(rest) && isIdentPart(rune(rest[nameEnd])) {
		nameEnd++
	}
	if nameEnd == 0 || !isIdentStart(rune(rest[0])) {
		return nil
	}
	m := &Macro{Name: rest[:nameEnd]}
	rest = rest[nameEnd:]

	// Function-like: '(' must follow the name immediately.
	if len(rest) > 0 && rest[0] == '(' {
		closeParen := strings.IndexByte(rest, ')')
		if closeParen == -1 {
			return nil
		}
		m.Params = []string{}
		if argStr := strings.TrimSpace(rest[1:closeParen]); argStr != "" {
			for _, arg := range strings.Split(argStr, ",") {
				m.Params = append(m.Params, strings.TrimSpace(arg))
			}
		}
		rest = rest[closeParen+1:]
	}

	m.Raw = strings.TrimSpace(rest)
	return m
}

// evaluate fills Body, Value and Numeric for an object-like macro from its
// raw value and the macros defined before it.
func (m *Macro) evaluate(known *MacroTable) {
	m.Body = m.Raw
	if m.Raw == "" || m.FunctionLike() {
		return
	}

	if isDecimal(m.Raw) {
		if n, err := strconv.ParseInt(m.Raw, 10, 64); err == nil {
			m.Value, m.Numeric = n, true
			return
		}
	}
	if !isArithmetic(m.Raw) {
		return
	}

	substituted := substituteObjectMacros(m.Raw, known)
	m.Body = substituted
	if n, err := EvalArithmetic(substituted); err == nil {
		m.Body = strconv.FormatInt(n, 10)
		m.Value, m.Numeric = n, true
	}
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isArithmetic reports whether s uses only digits, identifiers, whitespace
// and + - * / ( ). Identifiers are allowed so known macros can be
// substituted before evaluation.
func isArithmetic(s string) bool {
	for _, r := range s {
		switch {
		case isIdentPart(r):
		case strings.ContainsRune("+-*/() \t", r):
		default:
			return false
		}
	}
	return true
}

// substituteObjectMacros replaces known, non-empty object-like macros in s.
func substituteObjectMacros(s string, known *MacroTable) string {
	return expandLine(s, func(name string) (*Macro, bool) {
		m, ok := known.Lookup(name)
		if !ok || m.FunctionLike() || m.Empty() {
			return nil, false
		}
		return m, true
	})
}

// expandLine performs one substitution pass over input. It replaces
// identifiers for which lookup returns a macro, on word boundaries and never
// inside string or character literals. Function-like macros are replaced
// only when followed by a matching argument list.
func expandLine(input string, lookup func(string) (*Macro, bool)) string {
	var sb strings.Builder
	n := len(input)
	i := 0

	for i < n {
		c := input[i]
		if c == '"' || c == '\'' {
			end := skipLiteral(input, i)
			sb.WriteString(input[i:end])
			i = end
			continue
		}
		if !isIdentStart(rune(c)) {
			// Digits run together with letters so suffixes like 10u stay whole.
			start := i
			if c >= '0' && c <= '9' {
				for i < n && isIdentPart(rune(input[i])) {
					i++
				}
			} else {
				i++
			}
			sb.WriteString(input[start:i])
			continue
		}

		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := lookup(word)
		if !ok {
			sb.WriteString(word)
			continue
		}
		if !macro.FunctionLike() {
			sb.WriteString(macro.Body)
			continue
		}

		args, end, ok := scanArgs(input, i)
		if ok && len(macro.Params) == 0 && len(args) == 1 && args[0] == "" {
			args = nil
		}
		if !ok || len(args) != len(macro.Params) {
			sb.WriteString(word)
			continue
		}
		// A single pass over the body so an argument value is never
		// re-substituted by a later parameter name.
		params := make(map[string]*Macro, len(macro.Params))
		for k, p := range macro.Params {
			params[p] = &Macro{Name: p, Body: args[k]}
		}
		sb.WriteString(expandLine(macro.Body, func(name string) (*Macro, bool) {
			m, ok := params[name]
			return m, ok
		}))
		i = end
	}
	return sb.String()
}

// skipLiteral returns the index just past the string or character literal
// starting at input[start]. An unterminated literal ends at the newline.
func skipLiteral(input string, start int) int {
	quote := input[start]
	i := start + 1
	for i < len(input) {
		switch input[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			return i
		case quote:
			return i + 1
		}
		i++
	}
	return len(input)
}

// scanArgs reads a parenthesised, comma-separated argument list starting at
// or after pos (leading blanks allowed). It returns the trimmed arguments and
// the index just past the closing parenthesis.
func scanArgs(input string, pos int) ([]string, int, bool) {
	j := pos
	for j < len(input) && (input[j] == ' ' || input[j] == '\t') {
		j++
	}
	if j >= len(input) || input[j] != '(' {
		return nil, 0, false
	}
	j++

	var args []string
	var current strings.Builder
	depth := 1
	for j < len(input) {
		c := input[j]
		switch {
		case c == '"' || c == '\'':
			end := skipLiteral(input, j)
			current.WriteString(input[j:end])
			j = end
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(current.String()))
				return args, j + 1, true
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
			j++
			continue
		}
		current.WriteByte(c)
		j++
	}
	return nil, 0, false
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
