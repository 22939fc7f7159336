package layout

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cstruct2yaml/pkg/cparse"
	"cstruct2yaml/pkg/diag"
)

// Cursor is the placement state while laying out one aggregate body. Each
// nested aggregate is resolved with its own zero Cursor, so the enclosing
// cursor is never disturbed by a member's internals.
type Cursor struct {
	Offset    int // next free bit, or the start of the open bitfield unit
	BitOffset int // bits consumed in the open unit
	UnitBits  int // width of the open unit, 0 when none is open
}

// closeUnit moves past an open bitfield storage unit.
func (c *Cursor) closeUnit() {
	if c.UnitBits == 0 && c.BitOffset == 0 {
		return
	}
	c.Offset += AlignTo(c.BitOffset, max(c.UnitBits, 8))
	c.BitOffset, c.UnitBits = 0, 0
}

// placeBits places a bitfield of width bits whose type has the given unit
// size, returning the unit offset and the bit position inside it.
func (c *Cursor) placeBits(width, unit int) (offset, bit int) {
	if width == 0 {
		c.closeUnit()
		c.Offset = AlignTo(c.Offset, unit)
		return c.Offset, 0
	}
	if c.BitOffset+width > unit {
		c.closeUnit()
		c.Offset = AlignTo(c.Offset, unit)
	}
	offset, bit = c.Offset, c.BitOffset
	c.BitOffset += width
	c.UnitBits = max(c.UnitBits, unit)
	return offset, bit
}

// place places an ordinary field, closing any open bitfield unit first.
func (c *Cursor) place(size, align int) int {
	c.closeUnit()
	c.Offset = AlignTo(c.Offset, align)
	offset := c.Offset
	c.Offset += size
	return offset
}

// Resolver computes type information and layouts against a Catalog and a
// Policy. It keeps no state between calls, so one Resolver may serve many
// goroutines.
type Resolver struct {
	catalog *Catalog
	policy  Policy
	diags   *diag.Collector
}

// NewResolver returns a Resolver. diags may be nil.
func NewResolver(c *Catalog, p Policy, diags *diag.Collector) *Resolver {
	return &Resolver{catalog: c, policy: p, diags: diags}
}

func (r *Resolver) Policy() Policy     { return r.policy }
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// aggregate is a resolved struct or union body.
type aggregate struct {
	children []*FieldDescriptor
	size     int
}

// request is the state of one top-level call: bodies already resolved, and
// the typedefs and bodies currently being resolved.
type request struct {
	*Resolver
	memo   map[cparse.TypeNode]*aggregate
	active map[any]bool
}

func (r *Resolver) newRequest() *request {
	return &request{
		Resolver: r,
		memo:     make(map[cparse.TypeNode]*aggregate),
		active:   make(map[any]bool),
	}
}

// Layout returns the layout tree of the struct called name, or of the union
// called name when no such struct exists.
func (r *Resolver) Layout(name string) (*FieldDescriptor, error) {
	if _, ok := r.catalog.Struct(name); ok {
		return r.LayoutStruct(name)
	}
	if _, ok := r.catalog.Union(name); ok {
		return r.LayoutUnion(name)
	}
	return nil, notFound("struct or union", name)
}

func (r *Resolver) LayoutStruct(name string) (*FieldDescriptor, error) {
	def, ok := r.catalog.Struct(name)
	if !ok {
		return nil, notFound("struct", name)
	}
	agg := r.newRequest().aggregateOf(def, "struct "+name, KindStruct, def.Decls)
	return root(name, "struct", KindStruct, agg), nil
}

func (r *Resolver) LayoutUnion(name string) (*FieldDescriptor, error) {
	def, ok := r.catalog.Union(name)
	if !ok {
		return nil, notFound("union", name)
	}
	agg := r.newRequest().aggregateOf(def, "union "+name, KindUnion, def.Decls)
	return root(name, "union", KindUnion, agg), nil
}

func root(name, keyword string, kind Kind, agg *aggregate) *FieldDescriptor {
	return &FieldDescriptor{
		Name:     name,
		Type:     TypeInfo{Name: keyword + " " + name, Kind: kind, SizeBits: agg.size},
		SizeBits: agg.size,
		Children: agg.children,
	}
}

func notFound(what, name string) *diag.Error {
	return diag.New(diag.PhaseResolve, diag.KindNotFound).
		Symbol(name).
		Detail("no %s named %q", what, name).
		Build()
}

// ResolveType returns the type information for t.
func (r *Resolver) ResolveType(t cparse.TypeNode) TypeInfo {
	info, _ := r.newRequest().resolveType(t, 0)
	return info
}

// ResolveField places d at cur and advances cur. It returns nil when d
// declares no member, as for a nested tag definition with no declarator.
func (r *Resolver) ResolveField(d *cparse.Decl, cur *Cursor) *FieldDescriptor {
	return r.newRequest().resolveField(d, cur)
}

// ResolveAggregate lays out decls as the body of a struct or union and
// returns the members and the total size in bits.
func (r *Resolver) ResolveAggregate(kind Kind, decls []*cparse.Decl) ([]*FieldDescriptor, int) {
	agg := r.newRequest().resolveAggregate(kind, decls)
	return agg.children, agg.size
}

func (req *request) report(err *diag.Error, line int) {
	if err.Line == 0 {
		err.Line = line
	}
	Logger().Debug("layout degraded", zap.String("kind", string(err.Kind)),
		zap.String("symbol", err.Symbol), zap.Int("line", err.Line))
	req.diags.Report(err)
}

func (req *request) resolveType(t cparse.TypeNode, line int) (TypeInfo, *aggregate) {
	switch t := t.(type) {
	case *cparse.IdentType:
		return req.resolveNamed(t.Names, line)

	case *cparse.PtrType:
		base := pointeeName(t.Elem)
		return TypeInfo{
			Name:     base + " *",
			Kind:     KindPointer,
			SizeBits: req.policy.PointerBits,
			BaseType: base,
		}, nil

	case *cparse.ArrayType:
		elem, agg := req.resolveType(t.Elem, line)
		dim := 1
		if t.Dim != nil {
			dim = req.constant(t.Dim, t.String(), line)
		}
		info := TypeInfo{
			Name:         elem.Name,
			Kind:         KindArray,
			ElemKind:     elem.Kind,
			SizeBits:     elem.SizeBits * dim,
			ElemSizeBits: elem.SizeBits,
			Signed:       elem.Signed,
			BaseType:     elem.Name,
			Dims:         []int{dim},
		}
		if elem.Kind == KindArray {
			info.ElemKind = elem.ElemKind
			info.ElemSizeBits = elem.ElemSizeBits
			info.BaseType = elem.BaseType
			info.Dims = append(info.Dims, elem.Dims...)
		}
		return info, agg

	case *cparse.FuncType:
		return TypeInfo{Name: "function", Kind: KindFunction, SizeBits: req.policy.PointerBits}, nil

	case *cparse.StructType:
		name := tagName("struct", t.Name)
		def := t
		if !t.Defined {
			if def = req.lookupStruct(t.Name); def == nil {
				req.report(diag.MissingDefinition(name), line)
				return TypeInfo{Name: name, Kind: KindStruct}, nil
			}
		}
		agg := req.aggregateOf(def, name, KindStruct, def.Decls)
		return TypeInfo{Name: name, Kind: KindStruct, SizeBits: agg.size}, agg

	case *cparse.UnionType:
		name := tagName("union", t.Name)
		def := t
		if !t.Defined {
			if def = req.lookupUnion(t.Name); def == nil {
				req.report(diag.MissingDefinition(name), line)
				return TypeInfo{Name: name, Kind: KindUnion}, nil
			}
		}
		agg := req.aggregateOf(def, name, KindUnion, def.Decls)
		return TypeInfo{Name: name, Kind: KindUnion, SizeBits: agg.size}, agg

	case *cparse.EnumType:
		return TypeInfo{Name: tagName("enum", t.Name), Kind: KindEnum, SizeBits: 32, Signed: true}, nil
	}

	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	req.report(diag.UnresolvedType(name), line)
	return TypeInfo{Name: name, Kind: KindScalar, SizeBits: 32}, nil
}

func (req *request) lookupStruct(tag string) *cparse.StructType {
	if tag == "" {
		return nil
	}
	def, _ := req.catalog.Struct(tag)
	return def
}

func (req *request) lookupUnion(tag string) *cparse.UnionType {
	if tag == "" {
		return nil
	}
	def, _ := req.catalog.Union(tag)
	return def
}

// resolveNamed resolves a type written as specifier words or a single
// identifier. Typedefs shadow basic names; plain identifiers that are struct,
// union or enum tags are accepted as well.
func (req *request) resolveNamed(words []string, line int) (TypeInfo, *aggregate) {
	name := strings.Join(words, " ")
	if len(words) == 1 {
		if td, ok := req.catalog.Typedef(name); ok {
			return req.resolveTypedef(td, line)
		}
	}
	if size, signed, ok := basicType(words, name); ok {
		return TypeInfo{Name: name, Kind: KindScalar, SizeBits: size, Signed: signed}, nil
	}
	if len(words) == 1 {
		if def, ok := req.catalog.Struct(name); ok {
			agg := req.aggregateOf(def, name, KindStruct, def.Decls)
			return TypeInfo{Name: name, Kind: KindStruct, SizeBits: agg.size}, agg
		}
		if def, ok := req.catalog.Union(name); ok {
			agg := req.aggregateOf(def, name, KindUnion, def.Decls)
			return TypeInfo{Name: name, Kind: KindUnion, SizeBits: agg.size}, agg
		}
		if _, ok := req.catalog.Enum(name); ok {
			return TypeInfo{Name: name, Kind: KindEnum, SizeBits: 32, Signed: true}, nil
		}
	}
	req.report(diag.UnresolvedType(name), line)
	return TypeInfo{Name: name, Kind: KindScalar, SizeBits: 32}, nil
}

// resolveTypedef resolves td's underlying type under td's name. Typedefs of
// arrays become opaque scalars of the array's total size.
func (req *request) resolveTypedef(td *cparse.Typedef, line int) (TypeInfo, *aggregate) {
	if req.active[td] {
		req.report(diag.UnresolvedType(td.Name), line)
		return TypeInfo{Name: td.Name, Kind: KindScalar, SizeBits: 32}, nil
	}
	req.active[td] = true
	defer delete(req.active, td)

	info, agg := req.resolveType(td.Type, line)
	if info.Kind == KindArray {
		return TypeInfo{Name: td.Name, Kind: KindScalar, SizeBits: info.SizeBits, Signed: info.Signed}, nil
	}
	info.Name = td.Name
	return info, agg
}

// aggregateOf resolves a struct or union body once per request. A body that
// contains itself by value resolves to size 0.
func (req *request) aggregateOf(node cparse.TypeNode, name string, kind Kind, decls []*cparse.Decl) *aggregate {
	if agg, ok := req.memo[node]; ok {
		return agg
	}
	if req.active[node] {
		req.report(diag.New(diag.PhaseResolve, diag.KindMissingDefinition).
			Symbol(name).
			Detail("contains itself by value, size is 0").
			Build(), 0)
		return &aggregate{}
	}
	req.active[node] = true
	agg := req.resolveAggregate(kind, decls)
	delete(req.active, node)
	req.memo[node] = agg
	return agg
}

func (req *request) resolveAggregate(kind Kind, decls []*cparse.Decl) *aggregate {
	var (
		cur     Cursor
		largest int
		agg     = &aggregate{}
	)
	for _, d := range decls {
		if kind == KindUnion {
			cur = Cursor{}
		}
		f := req.resolveField(d, &cur)
		if f == nil {
			continue
		}
		agg.children = append(agg.children, f)
		largest = max(largest, f.SizeBits)
	}
	if kind == KindUnion {
		agg.size = AlignTo(largest, req.policy.PackBits)
		return agg
	}
	cur.closeUnit()
	agg.size = AlignTo(cur.Offset, req.policy.PackBits)
	return agg
}

func (req *request) resolveField(d *cparse.Decl, cur *Cursor) *FieldDescriptor {
	anonymous := d.Name == ""
	if anonymous && d.BitSize == nil && !isAnonymousAggregate(d.Type) {
		return nil
	}

	info, agg := req.resolveType(d.Type, d.Line)
	f := &FieldDescriptor{Name: d.Name, Type: info, Anonymous: anonymous}
	if agg != nil {
		f.Children = agg.children
	}

	bitPos := 0
	if d.BitSize != nil {
		width := req.constant(d.BitSize, d.String(), d.Line)
		f.OffsetBits, bitPos = cur.placeBits(width, req.policy.AlignOf(info))
		f.SizeBits = width
		f.Bitfield = &Bitfield{Width: width, Offset: bitPos}
	} else {
		f.OffsetBits = cur.place(info.SizeBits, req.policy.AlignOf(info))
		f.SizeBits = info.SizeBits
	}
	if anonymous {
		f.Name = fmt.Sprintf("anonymous_%d", f.OffsetBits)
	}
	return f
}

// constant evaluates an array dimension or bitfield width. Anything but an
// integer literal is reported and counts as 1.
func (req *request) constant(e cparse.Expr, field string, line int) int {
	if n, ok := literalInt(e); ok {
		return n
	}
	req.report(diag.UnsupportedConstant(field, e.String()), line)
	return 1
}

// isAnonymousAggregate reports whether t is an untagged struct or union
// body, the only kind of member that may be declared without a name.
func isAnonymousAggregate(t cparse.TypeNode) bool {
	switch t := t.(type) {
	case *cparse.StructType:
		return t.Name == "" && t.Defined
	case *cparse.UnionType:
		return t.Name == "" && t.Defined
	}
	return false
}

func tagName(keyword, tag string) string {
	if tag == "" {
		return keyword + " anonymous"
	}
	return keyword + " " + tag
}

// pointeeName names the target of a pointer without resolving it, so
// self-referential structs never recurse.
func pointeeName(t cparse.TypeNode) string {
	switch t := t.(type) {
	case *cparse.IdentType:
		return strings.Join(t.Names, " ")
	case *cparse.StructType:
		return tagName("struct", t.Name)
	case *cparse.UnionType:
		return tagName("union", t.Name)
	case *cparse.EnumType:
		return tagName("enum", t.Name)
	case *cparse.PtrType:
		return pointeeName(t.Elem) + " *"
	case *cparse.ArrayType:
		dim := ""
		if t.Dim != nil {
			dim = t.Dim.String()
		}
		return pointeeName(t.Elem) + "[" + dim + "]"
	case *cparse.FuncType:
		return "function"
	}
	return "void"
}
