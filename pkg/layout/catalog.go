package layout

import (
	"go.uber.org/zap"

	"cstruct2yaml/pkg/cparse"
	"cstruct2yaml/pkg/diag"
)

// table is a name -> value map that remembers first-insertion order.
// Replacing a value keeps its original position.
type table[T any] struct {
	names  []string
	byName map[string]T
}

func newTable[T any]() table[T] {
	return table[T]{byName: make(map[string]T)}
}

// put stores v and reports the previous value, if any.
func (t *table[T]) put(name string, v T) (prev T, replaced bool) {
	prev, replaced = t.byName[name]
	if !replaced {
		t.names = append(t.names, name)
	}
	t.byName[name] = v
	return prev, replaced
}

func (t *table[T]) get(name string) (T, bool) {
	v, ok := t.byName[name]
	return v, ok
}

func (t *table[T]) keys() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Catalog maps names to the aggregate, enum and typedef definitions of one
// translation unit.
//
// An aggregate with a body is registered under its tag. A typedef of an
// aggregate is also registered under the typedef name; when the aggregate
// has no body the typedef follows the tag at lookup time, so a definition
// appearing later in the file still applies. Bodiless references never
// replace a definition. Otherwise the last definition of a name wins.
//
// A Catalog is populated once and then only read, so it may be shared by
// concurrent layout requests.
type Catalog struct {
	structs  table[*cparse.StructType]
	unions   table[*cparse.UnionType]
	enums    table[*cparse.EnumType]
	typedefs table[*cparse.Typedef]

	// aggregate typedef names, in registration order, interleaved with tags
	structNames table[bool]
	unionNames  table[bool]

	diags *diag.Collector
}

// NewCatalog returns an empty catalog reporting redefinitions to diags.
func NewCatalog(diags *diag.Collector) *Catalog {
	return &Catalog{
		structs:     newTable[*cparse.StructType](),
		unions:      newTable[*cparse.UnionType](),
		enums:       newTable[*cparse.EnumType](),
		typedefs:    newTable[*cparse.Typedef](),
		structNames: newTable[bool](),
		unionNames:  newTable[bool](),
		diags:       diags,
	}
}

// BuildCatalog collects every definition in f.
func BuildCatalog(f *cparse.File, diags *diag.Collector) *Catalog {
	c := NewCatalog(diags)
	c.Collect(f)
	return c
}

// Collect walks f, including definitions nested inside other aggregates
// and declarator types.
func (c *Catalog) Collect(f *cparse.File) {
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *cparse.Typedef:
			c.addTypedef(d)
			c.walkType(d.Type, d.Line)
		case *cparse.Decl:
			c.walkType(d.Type, d.Line)
		case *cparse.TagDecl:
			c.walkType(d.Type, d.Line)
		}
	}
	Logger().Debug("catalog built",
		zap.Int("structs", len(c.structs.names)),
		zap.Int("unions", len(c.unions.names)),
		zap.Int("enums", len(c.enums.names)),
		zap.Int("typedefs", len(c.typedefs.names)))
}

func (c *Catalog) addTypedef(td *cparse.Typedef) {
	c.typedefs.put(td.Name, td)
	switch t := td.Type.(type) {
	case *cparse.StructType:
		if t.Defined {
			c.putStruct(td.Name, t, td.Line)
		} else {
			c.structNames.put(td.Name, true)
		}
	case *cparse.UnionType:
		if t.Defined {
			c.putUnion(td.Name, t, td.Line)
		} else {
			c.unionNames.put(td.Name, true)
		}
	}
}

// walkType registers every defined tag reachable from t.
func (c *Catalog) walkType(t cparse.TypeNode, line int) {
	switch t := t.(type) {
	case *cparse.StructType:
		if t.Defined && t.Name != "" {
			c.putStruct(t.Name, t, line)
		}
		c.walkDecls(t.Decls)
	case *cparse.UnionType:
		if t.Defined && t.Name != "" {
			c.putUnion(t.Name, t, line)
		}
		c.walkDecls(t.Decls)
	case *cparse.EnumType:
		if t.Defined && t.Name != "" {
			c.putEnum(t.Name, t, line)
		}
	case *cparse.PtrType:
		c.walkType(t.Elem, line)
	case *cparse.ArrayType:
		c.walkType(t.Elem, line)
	case *cparse.FuncType:
		c.walkType(t.Result, line)
		c.walkDecls(t.Params)
	}
}

func (c *Catalog) walkDecls(decls []*cparse.Decl) {
	for _, d := range decls {
		c.walkType(d.Type, d.Line)
	}
}

func (c *Catalog) putStruct(name string, t *cparse.StructType, line int) {
	if prev, ok := c.structs.put(name, t); ok && prev != t {
		c.redefined("struct", name, line)
	}
	c.structNames.put(name, true)
}

func (c *Catalog) putUnion(name string, t *cparse.UnionType, line int) {
	if prev, ok := c.unions.put(name, t); ok && prev != t {
		c.redefined("union", name, line)
	}
	c.unionNames.put(name, true)
}

func (c *Catalog) putEnum(name string, t *cparse.EnumType, line int) {
	if prev, ok := c.enums.put(name, t); ok && prev != t {
		c.redefined("enum", name, line)
	}
}

func (c *Catalog) redefined(kind, name string, line int) {
	Logger().Debug("definition replaced", zap.String("kind", kind), zap.String("name", name), zap.Int("line", line))
	c.diags.Report(diag.New(diag.PhaseResolve, diag.KindRedefinition).
		Line(line).
		Symbol(kind + " " + name).
		Detail("redefined, the later definition is used").
		Build())
}

// Struct returns the struct definition registered as name, following a
// typedef of a bodiless struct to its tag.
func (c *Catalog) Struct(name string) (*cparse.StructType, bool) {
	if t, ok := c.structs.get(name); ok {
		return t, true
	}
	if td, ok := c.typedefs.get(name); ok {
		if ref, ok := td.Type.(*cparse.StructType); ok && ref.Name != "" {
			return c.structs.get(ref.Name)
		}
	}
	return nil, false
}

// Union returns the union definition registered as name, following a
// typedef of a bodiless union to its tag.
func (c *Catalog) Union(name string) (*cparse.UnionType, bool) {
	if t, ok := c.unions.get(name); ok {
		return t, true
	}
	if td, ok := c.typedefs.get(name); ok {
		if ref, ok := td.Type.(*cparse.UnionType); ok && ref.Name != "" {
			return c.unions.get(ref.Name)
		}
	}
	return nil, false
}

func (c *Catalog) Enum(name string) (*cparse.EnumType, bool) {
	return c.enums.get(name)
}

func (c *Catalog) Typedef(name string) (*cparse.Typedef, bool) {
	return c.typedefs.get(name)
}

// StructNames returns every name that resolves to a struct definition, in
// registration order.
func (c *Catalog) StructNames() []string {
	var out []string
	for _, n := range c.structNames.keys() {
		if _, ok := c.Struct(n); ok {
			out = append(out, n)
		}
	}
	return out
}

// UnionNames returns every name that resolves to a union definition, in
// registration order.
func (c *Catalog) UnionNames() []string {
	var out []string
	for _, n := range c.unionNames.keys() {
		if _, ok := c.Union(n); ok {
			out = append(out, n)
		}
	}
	return out
}

func (c *Catalog) EnumNames() []string    { return c.enums.keys() }
func (c *Catalog) TypedefNames() []string { return c.typedefs.keys() }
