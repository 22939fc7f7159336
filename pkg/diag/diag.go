package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Phase indicates which pipeline stage produced the error.
type Phase string

const (
	PhasePreprocess Phase = "preprocess" // macro/conditional/include handling
	PhaseParse      Phase = "parse"      // C declaration front-end
	PhaseResolve    Phase = "resolve"    // catalog + layout resolution
	PhaseEmit       Phase = "emit"       // document encoding and queries
	PhaseConfig     Phase = "config"     // option loading and validation
)

// Kind categorizes the error.
type Kind string

const (
	KindSyntax               Kind = "syntax"
	KindUnresolvedType       Kind = "unresolved_type"
	KindUnsupportedConstant  Kind = "unsupported_constant"
	KindMissingDefinition    Kind = "missing_definition"
	KindUnparseableCondition Kind = "unparseable_condition"
	KindIncludeNotFound      Kind = "include_not_found"
	KindRedefinition         Kind = "redefinition"
	KindNotFound             Kind = "not_found"
	KindInvalidConfig        Kind = "invalid_config"
)

// Recoverable reports whether errors of this kind degrade to a documented
// default instead of aborting the run.
func (k Kind) Recoverable() bool {
	switch k {
	case KindUnresolvedType, KindUnsupportedConstant, KindMissingDefinition,
		KindUnparseableCondition, KindIncludeNotFound, KindRedefinition:
		return true
	}
	return false
}

// Error is the structured error type used by every package of the module.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	File    string
	Line    int
	Symbol  string
	Detail  string
	Snippet string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.File != "" || e.Line > 0 {
		b.WriteString(" at ")
		if e.File != "" {
			b.WriteString(e.File)
			if e.Line > 0 {
				b.WriteByte(':')
			}
		}
		if e.Line > 0 {
			fmt.Fprintf(&b, "line %d", e.Line)
		}
	}

	if e.Symbol != "" {
		b.WriteString(" (")
		b.WriteString(e.Symbol)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Snippet != "" {
		b.WriteString("\n  |> ")
		b.WriteString(e.Snippet)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two errors match when they
// share phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// File sets the source file name
func (b *Builder) File(name string) *Builder {
	b.err.File = name
	return b
}

// Line sets the 1-based source line
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Symbol sets the type, macro or field the error refers to
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Snippet sets the offending source text
func (b *Builder) Snippet(s string) *Builder {
	b.err.Snippet = s
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the recoverable conditions

// UnresolvedType reports a type name that is neither basic nor cataloged.
func UnresolvedType(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolvedType,
		Symbol: name,
		Detail: "unknown type, assuming 32-bit unsigned scalar",
	}
}

// UnsupportedConstant reports an array dimension or bitfield width that is
// not a literal integer.
func UnsupportedConstant(field, expr string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnsupportedConstant,
		Symbol: field,
		Detail: fmt.Sprintf("constant expression %q is not a literal, using 1", expr),
	}
}

// MissingDefinition reports a struct/union reference with no cataloged body.
func MissingDefinition(tag string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMissingDefinition,
		Symbol: tag,
		Detail: "no definition found, size is 0",
	}
}

// UnparseableCondition reports a #if/#elif expression outside the supported
// grammar.
func UnparseableCondition(line int, expr string) *Error {
	return &Error{
		Phase:  PhasePreprocess,
		Kind:   KindUnparseableCondition,
		Line:   line,
		Detail: fmt.Sprintf("cannot evaluate %q, treating as false", expr),
	}
}

// Collector accumulates recoverable diagnostics. It is safe for concurrent
// use by independent layout requests.
type Collector struct {
	mu   sync.Mutex
	errs []*Error
	seen map[string]bool
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]bool)}
}

// Report records err. Identical messages are kept once, so re-resolving the
// same nested type from several parents does not multiply warnings.
// A nil collector discards everything.
func (c *Collector) Report(err *Error) {
	if c == nil || err == nil {
		return
	}
	key := err.Error()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.errs = append(c.errs, err)
}

// Len returns the number of distinct diagnostics recorded.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// List returns a copy of the diagnostics ordered by phase, line and message.
func (c *Collector) List() []*Error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]*Error, len(c.errs))
	copy(out, c.errs)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Phase != out[j].Phase {
			return phaseOrder(out[i].Phase) < phaseOrder(out[j].Phase)
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Error() < out[j].Error()
	})
	return out
}

func phaseOrder(p Phase) int {
	switch p {
	case PhaseConfig:
		return 0
	case PhasePreprocess:
		return 1
	case PhaseParse:
		return 2
	case PhaseResolve:
		return 3
	default:
		return 4
	}
}
