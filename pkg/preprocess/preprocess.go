package preprocess

import (
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cstruct2yaml/pkg/diag"
)

// expansionPasses bounds macro expansion so macros defined in terms of other
// macros resolve without risking a self-referential loop.
const expansionPasses = 3

var packPattern = regexp.MustCompile(`#\s*pragma\s+pack\s*\(\s*(\d+)\s*\)`)

// Result is the outcome of preprocessing one translation unit.
type Result struct {
	Text     string      // parser-ready text
	PackBits int         // last #pragma pack(N) as N*8, 0 when absent
	Macros   *MacroTable // every #define seen, in definition order
	Includes []string    // files read, root first
}

// Preprocessor runs the text pipeline described in the package doc.
type Preprocessor struct {
	fsys  fs.FS
	diags *diag.Collector
}

// New returns a Preprocessor that resolves includes in fsys and reports
// recoverable problems to diags. Either may be nil: without fsys includes
// are left for the final cleanup to drop.
func New(fsys fs.FS, diags *diag.Collector) *Preprocessor {
	return &Preprocessor{fsys: fsys, diags: diags}
}

// ProcessFile reads name from the file system, inlines its includes and
// preprocesses the result.
func (p *Preprocessor) ProcessFile(name string) (*Result, error) {
	if p.fsys == nil {
		return nil, fmt.Errorf("preprocess %s: no file system configured", name)
	}
	in := newInliner(p.fsys, p.diags)
	text, err := in.file(name)
	if err != nil {
		return nil, fmt.Errorf("preprocess %s: %w", name, err)
	}
	res := p.run(text)
	res.Includes = in.order
	return res, nil
}

// Process preprocesses src. Includes resolve relative to the root of the
// file system, when one is configured.
func (p *Preprocessor) Process(src string) *Result {
	if p.fsys == nil {
		return p.run(src)
	}
	in := newInliner(p.fsys, p.diags)
	res := p.run(in.text(src, "."))
	res.Includes = in.order
	return res
}

// Preprocess runs the pipeline over src without include resolution.
func Preprocess(src string) *Result {
	return New(nil, nil).Process(src)
}

func (p *Preprocessor) run(src string) *Result {
	text := joinContinuations(src)
	text = RemoveComments(text)

	res := &Result{PackBits: ExtractPack(text)}
	if res.PackBits > 0 {
		Logger().Info("pack alignment from pragma", zap.Int("bits", res.PackBits))
	}

	lines := strings.Split(text, "\n")
	res.Macros = collectMacros(lines)

	lines = p.evalConditionals(lines, res.Macros)
	lines = expandMacros(lines, res.Macros)
	lines = dropDirectives(lines)

	res.Text = strings.Join(lines, "\n")
	return res
}

// joinContinuations splices backslash-newline sequences. Each spliced line
// is followed by an empty line so later line numbers are unchanged.
func joinContinuations(src string) string {
	if !strings.Contains(src, "\\\n") && !strings.Contains(src, "\\\r\n") {
		return src
	}
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		joined := 0
		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			joined++
			line = line[:len(line)-1] + strings.TrimSuffix(lines[i], "\r")
		}
		out = append(out, line)
		for ; joined > 0; joined-- {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

// RemoveComments strips block comments first, then line comments. Newlines
// inside block comments are kept. Comment markers inside string and
// character literals are left alone.
func RemoveComments(src string) string {
	return stripLineComments(stripBlockComments(src))
}

func stripBlockComments(src string) string {
	var sb strings.Builder
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end := skipLiteral(src, i)
			sb.WriteString(src[i:end])
			i = end
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			// Line comments are left for stripLineComments, but a "/*"
			// inside one must not open a block.
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src)
			} else {
				end += i
			}
			sb.WriteString(src[i:end])
			i = end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = len(src)
			} else {
				end += i + 4
			}
			sb.WriteString(strings.Repeat("\n", strings.Count(src[i:end], "\n")))
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

func stripLineComments(src string) string {
	lines := strings.Split(src, "\n")
	for n, line := range lines {
		i := 0
		for i < len(line) {
			c := line[i]
			if c == '"' || c == '\'' {
				i = skipLiteral(line, i)
				continue
			}
			if c == '/' && i+1 < len(line) && line[i+1] == '/' {
				lines[n] = strings.TrimRight(line[:i], " \t")
				break
			}
			i++
		}
	}
	return strings.Join(lines, "\n")
}

// ExtractPack returns the last #pragma pack(N) in src as N*8 bits, or 0 when
// there is none. pack(0) restores the default and also yields 0.
func ExtractPack(src string) int {
	matches := packPattern.FindAllStringSubmatch(src, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return n * 8
}

// directive splits a line of the form "# name rest". ok is false for lines
// that are not directives.
func directive(line string) (name, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	trimmed = strings.TrimSpace(trimmed[1:])
	end := 0
	for end < len(trimmed) && isIdentPart(rune(trimmed[end])) {
		end++
	}
	return trimmed[:end], strings.TrimSpace(trimmed[end:]), true
}

// collectMacros records every #define in order, regardless of conditional
// blocks. Object-like values are evaluated against the macros before them.
func collectMacros(lines []string) *MacroTable {
	table := NewMacroTable()
	for i, line := range lines {
		name, rest, ok := directive(line)
		if !ok || name != "define" {
			continue
		}
		m := parseDefine(rest)
		if m == nil {
			Logger().Debug("ignoring malformed #define", zap.Int("line", i+1), zap.String("text", rest))
			continue
		}
		m.Line = i + 1
		m.evaluate(table)
		if prev, ok := table.Lookup(m.Name); ok && prev.Body != m.Body {
			Logger().Debug("macro redefined", zap.String("name", m.Name),
				zap.String("old", prev.Body), zap.String("new", m.Body))
		}
		table.Define(m)
		Logger().Debug("macro defined",
			zap.String("name", m.Name),
			zap.String("value", m.Raw),
			zap.String("expansion", m.Body),
			zap.Bool("numeric", m.Numeric))
	}
	return table
}

// condFrame is one level of the conditional stack.
type condFrame struct {
	parent   bool // inclusion state outside this block
	taken    bool // some branch of this block has been selected
	seenElse bool
}

// evalConditionals blanks every line excluded by the conditional directives,
// and the conditional directives themselves.
func (p *Preprocessor) evalConditionals(lines []string, macros *MacroTable) []string {
	out := make([]string, len(lines))
	var stack []condFrame
	active := true

	for i, line := range lines {
		name, rest, ok := directive(line)
		if !ok {
			if active {
				out[i] = line
			}
			continue
		}

		switch name {
		case "if":
			cond := p.condition(i+1, rest, macros)
			stack = append(stack, condFrame{parent: active, taken: cond})
			active = active && cond

		case "ifdef":
			_, cond := macros.Lookup(firstWord(rest))
			stack = append(stack, condFrame{parent: active, taken: cond})
			active = active && cond

		case "ifndef":
			guard := firstWord(rest)
			cond := true
			if !strings.HasSuffix(guard, "_H") {
				_, defined := macros.Lookup(guard)
				cond = !defined
			}
			stack = append(stack, condFrame{parent: active, taken: cond})
			active = active && cond

		case "elif":
			if len(stack) == 0 {
				continue
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				continue
			}
			if top.taken {
				active = false
				continue
			}
			cond := p.condition(i+1, rest, macros)
			top.taken = cond
			active = top.parent && cond

		case "else":
			if len(stack) == 0 {
				continue
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				continue
			}
			top.seenElse = true
			active = top.parent && !top.taken
			top.taken = true

		case "endif":
			if len(stack) == 0 {
				continue
			}
			active = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]

		default:
			if active {
				out[i] = line
			}
		}
	}
	return out
}

// condition evaluates a #if/#elif expression, reporting and returning false
// when it is outside the supported grammar.
func (p *Preprocessor) condition(line int, expr string, macros *MacroTable) bool {
	v, err := EvalCondition(expr, macros)
	if err != nil {
		Logger().Warn("unparseable condition", zap.Int("line", line), zap.String("expr", expr), zap.Error(err))
		p.diags.Report(diag.UnparseableCondition(line, expr))
		return false
	}
	return v
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// expandMacros substitutes macros over non-directive lines, repeating the
// pass expansionPasses times. Empty macros are never substituted.
func expandMacros(lines []string, macros *MacroTable) []string {
	if macros.Len() == 0 {
		return lines
	}
	lookup := func(name string) (*Macro, bool) {
		m, ok := macros.Lookup(name)
		if !ok || m.Empty() {
			return nil, false
		}
		return m, true
	}
	for i, line := range lines {
		if _, _, isDirective := directive(line); isDirective || line == "" {
			continue
		}
		for pass := 0; pass < expansionPasses; pass++ {
			expanded := expandLine(line, lookup)
			if expanded == line {
				break
			}
			line = expanded
		}
		lines[i] = line
	}
	return lines
}

// dropDirectives blanks every line that still starts with '#'.
func dropDirectives(lines []string) []string {
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			lines[i] = ""
		}
	}
	return lines
}
