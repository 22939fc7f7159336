package layout

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cstruct2yaml/pkg/cparse"
	"cstruct2yaml/pkg/diag"
)

func mustResolver(t *testing.T, src string, packBits int) (*Resolver, *diag.Collector) {
	t.Helper()
	tokens, err := cparse.Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	file, err := cparse.Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	policy, err := NewPolicy(packBits, 32)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	diags := diag.NewCollector()
	return NewResolver(BuildCatalog(file, diags), policy, diags), diags
}

func mustLayout(t *testing.T, r *Resolver, name string) *FieldDescriptor {
	t.Helper()
	fd, err := r.Layout(name)
	if err != nil {
		t.Fatalf("Layout(%q) failed: %v", name, err)
	}
	return fd
}

type placement struct {
	name   string
	offset int
	size   int
}

func placements(fd *FieldDescriptor) []placement {
	var out []placement
	for _, c := range fd.Children {
		out = append(out, placement{c.Name, c.OffsetBits, c.SizeBits})
	}
	return out
}

func hasDiag(diags *diag.Collector, kind diag.Kind) bool {
	for _, e := range diags.List() {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestStructLayout(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target string
		pack   int
		size   int
		fields []placement
	}{
		{
			name:   "Char then int, pack 4",
			src:    "struct s { char a; int b; };",
			target: "s", pack: 32, size: 64,
			fields: []placement{{"a", 0, 8}, {"b", 32, 32}},
		},
		{
			name:   "Char then int, pack 2",
			src:    "struct s { char a; int b; };",
			target: "s", pack: 16, size: 48,
			fields: []placement{{"a", 0, 8}, {"b", 16, 32}},
		},
		{
			name:   "Char then int, pack 1",
			src:    "struct s { char a; int b; };",
			target: "s", pack: 8, size: 40,
			fields: []placement{{"a", 0, 8}, {"b", 8, 32}},
		},
		{
			name:   "Pointer alignment ignores packing",
			src:    "struct s { char c; void *p; };",
			target: "s", pack: 8, size: 64,
			fields: []placement{{"c", 0, 8}, {"p", 32, 32}},
		},
		{
			name:   "Tail padding to pack",
			src:    "struct s { int a; char b; };",
			target: "s", pack: 32, size: 64,
			fields: []placement{{"a", 0, 32}, {"b", 32, 8}},
		},
		{
			name:   "Array of structs",
			src:    "struct p { short x; short y; }; struct l { struct p pts[3]; char n; };",
			target: "l", pack: 8, size: 104,
			fields: []placement{{"pts", 0, 96}, {"n", 96, 8}},
		},
		{
			name:   "Array aligns by its total size",
			src:    "struct s { char a; char buf[16]; int n; };",
			target: "s", pack: 32, size: 192,
			fields: []placement{{"a", 0, 8}, {"buf", 32, 128}, {"n", 160, 32}},
		},
		{
			name:   "Three-byte array takes the 32-bit class",
			src:    "struct s { char a; char b[3]; };",
			target: "s", pack: 32, size: 64,
			fields: []placement{{"a", 0, 8}, {"b", 32, 24}},
		},
		{
			name:   "Large array capped at 64 bits",
			src:    "struct u { char a; int arr[4]; };",
			target: "u", pack: 64, size: 192,
			fields: []placement{{"a", 0, 8}, {"arr", 64, 128}},
		},
		{
			name:   "Typedef of array aligns like the inline array",
			src:    "typedef char name_t[3]; struct v { char a; name_t n; char b[3]; };",
			target: "v", pack: 64, size: 128,
			fields: []placement{{"a", 0, 8}, {"n", 32, 24}, {"b", 64, 24}},
		},
		{
			name:   "Nested tag without declarator adds no member",
			src:    "struct o { struct i { int x; }; int y; };",
			target: "o", pack: 8, size: 32,
			fields: []placement{{"y", 0, 32}},
		},
		{
			name:   "Empty struct",
			src:    "struct e { };",
			target: "e", pack: 8, size: 0,
		},
		{
			name:   "Enum member",
			src:    "enum color { RED, GREEN }; struct e { char c; enum color col; };",
			target: "e", pack: 32, size: 64,
			fields: []placement{{"c", 0, 8}, {"col", 32, 32}},
		},
		{
			name:   "Typedef names resolve through the catalog",
			src:    "typedef unsigned char u8; typedef struct { u8 a; u8 b; } pair_t; struct w { pair_t p; u8 c; };",
			target: "w", pack: 8, size: 24,
			fields: []placement{{"p", 0, 16}, {"c", 16, 8}},
		},
		{
			name:   "Typedef of array is opaque",
			src:    "typedef char name_t[16]; struct t { name_t n; char c; };",
			target: "t", pack: 8, size: 136,
			fields: []placement{{"n", 0, 128}, {"c", 128, 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := mustResolver(t, tt.src, tt.pack)
			fd := mustLayout(t, r, tt.target)
			if fd.SizeBits != tt.size {
				t.Errorf("size: expected %d, got %d", tt.size, fd.SizeBits)
			}
			if diff := cmp.Diff(tt.fields, placements(fd), cmp.AllowUnexported(placement{})); diff != "" {
				t.Errorf("placements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBitfieldLayout(t *testing.T) {
	type bits struct {
		name   string
		offset int
		bit    int
		width  int
	}
	tests := []struct {
		name   string
		src    string
		pack   int
		size   int
		fields []bits
	}{
		{
			name: "Overflow starts a new unit",
			src:  "struct s { unsigned int a:3; unsigned int b:5; unsigned int c:30; };",
			pack: 32, size: 64,
			fields: []bits{{"a", 0, 0, 3}, {"b", 0, 3, 5}, {"c", 32, 0, 30}},
		},
		{
			name: "Exact fill stays in unit",
			src:  "struct s { unsigned int a:16; unsigned int b:16; };",
			pack: 32, size: 32,
			fields: []bits{{"a", 0, 0, 16}, {"b", 0, 16, 16}},
		},
		{
			name: "Zero width closes the unit",
			src:  "struct s { unsigned a:3; unsigned :0; unsigned b:2; };",
			pack: 32, size: 64,
			fields: []bits{{"a", 0, 0, 3}, {"anonymous_32", 32, 0, 0}, {"b", 32, 0, 2}},
		},
		{
			name: "Byte units under pack 1",
			src:  "struct s { unsigned char x:4; unsigned char y:4; unsigned char z:1; };",
			pack: 8, size: 16,
			fields: []bits{{"x", 0, 0, 4}, {"y", 0, 4, 4}, {"z", 8, 0, 1}},
		},
		{
			name: "Unnamed padding bits",
			src:  "struct s { unsigned int a:2; unsigned int :6; unsigned int b:8; };",
			pack: 32, size: 32,
			fields: []bits{{"a", 0, 0, 2}, {"anonymous_0", 0, 2, 6}, {"b", 0, 8, 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := mustResolver(t, tt.src, tt.pack)
			fd := mustLayout(t, r, "s")
			if fd.SizeBits != tt.size {
				t.Errorf("size: expected %d, got %d", tt.size, fd.SizeBits)
			}
			var got []bits
			for _, c := range fd.Children {
				if !c.IsBitfield() {
					t.Fatalf("%s: expected a bitfield", c.Name)
				}
				got = append(got, bits{c.Name, c.OffsetBits, c.Bitfield.Offset, c.Bitfield.Width})
			}
			if diff := cmp.Diff(tt.fields, got, cmp.AllowUnexported(bits{})); diff != "" {
				t.Errorf("bitfields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBitfieldThenPlainField(t *testing.T) {
	r, _ := mustResolver(t, "struct s { unsigned a:3; char c; };", 32)
	fd := mustLayout(t, r, "s")
	c := fd.Children[1]
	if c.OffsetBits != 32 {
		t.Errorf("c offset: expected 32 (unit closed), got %d", c.OffsetBits)
	}
	if fd.SizeBits != 64 {
		t.Errorf("size: expected 64, got %d", fd.SizeBits)
	}
}

func TestUnionLayout(t *testing.T) {
	src := "union u { char c; int i; short s[3]; unsigned flag:1; };"
	tests := []struct {
		pack int
		size int
	}{
		{8, 48},
		{32, 64},
	}
	for _, tt := range tests {
		r, _ := mustResolver(t, src, tt.pack)
		fd := mustLayout(t, r, "u")
		if fd.Type.Kind != KindUnion {
			t.Errorf("pack %d: expected union kind, got %v", tt.pack, fd.Type.Kind)
		}
		if fd.SizeBits != tt.size {
			t.Errorf("pack %d: size expected %d, got %d", tt.pack, tt.size, fd.SizeBits)
		}
		for _, c := range fd.Children {
			if c.OffsetBits != 0 {
				t.Errorf("pack %d: %s offset expected 0, got %d", tt.pack, c.Name, c.OffsetBits)
			}
			if c.Bitfield != nil && c.Bitfield.Offset != 0 {
				t.Errorf("pack %d: %s bit offset expected 0, got %d", tt.pack, c.Name, c.Bitfield.Offset)
			}
		}
	}
}

func TestAnonymousMembers(t *testing.T) {
	src := `
struct packet {
    char tag;
    union {
        int i;
        float f;
    };
    struct {
        char lo;
        char hi;
    };
};`
	r, _ := mustResolver(t, src, 8)
	fd := mustLayout(t, r, "packet")

	want := []placement{{"tag", 0, 8}, {"anonymous_8", 8, 32}, {"anonymous_40", 40, 16}}
	if diff := cmp.Diff(want, placements(fd), cmp.AllowUnexported(placement{})); diff != "" {
		t.Fatalf("placements mismatch (-want +got):\n%s", diff)
	}

	u := fd.Children[1]
	if !u.Anonymous || u.Type.Kind != KindUnion || u.Type.Name != "union anonymous" {
		t.Errorf("unexpected anonymous union descriptor: %+v", u)
	}
	if diff := cmp.Diff([]placement{{"i", 0, 32}, {"f", 0, 32}}, placements(u), cmp.AllowUnexported(placement{})); diff != "" {
		t.Errorf("union members mismatch (-want +got):\n%s", diff)
	}

	var flat []placement
	for _, c := range fd.Flatten() {
		flat = append(flat, placement{c.Name, c.OffsetBits, c.SizeBits})
	}
	wantFlat := []placement{{"tag", 0, 8}, {"i", 8, 32}, {"f", 8, 32}, {"lo", 40, 8}, {"hi", 48, 8}}
	if diff := cmp.Diff(wantFlat, flat, cmp.AllowUnexported(placement{})); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
	if fd.Children[1].Children[0].OffsetBits != 0 {
		t.Error("Flatten modified the original tree")
	}
}

func TestSelfReferentialPointer(t *testing.T) {
	src := "struct node { int value; struct node *next; struct node *prev; };"
	r, diags := mustResolver(t, src, 8)
	fd := mustLayout(t, r, "node")

	if fd.SizeBits != 96 {
		t.Errorf("size: expected 96, got %d", fd.SizeBits)
	}
	next := fd.Children[1]
	if next.Type.Kind != KindPointer {
		t.Fatalf("next: expected pointer, got %v", next.Type.Kind)
	}
	if next.Type.BaseType != "struct node" {
		t.Errorf("next base type: expected %q, got %q", "struct node", next.Type.BaseType)
	}
	if len(next.Children) != 0 {
		t.Errorf("pointer members must not be expanded, got %d children", len(next.Children))
	}
	if diags.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", diags.List())
	}
}

func TestStructContainingItself(t *testing.T) {
	r, diags := mustResolver(t, "struct a { int x; struct a inner; };", 8)
	fd := mustLayout(t, r, "a")
	if fd.SizeBits != 32 {
		t.Errorf("size: expected 32, got %d", fd.SizeBits)
	}
	if !hasDiag(diags, diag.KindMissingDefinition) {
		t.Error("expected a diagnostic for the recursive member")
	}
}

func TestArrayTypes(t *testing.T) {
	src := `
struct point { short x; short y; };
struct shapes {
    int grid[2][3];
    struct point pts[4];
    char *names[2];
};`
	r, _ := mustResolver(t, src, 32)
	fd := mustLayout(t, r, "shapes")

	grid := fd.Children[0].Type
	if grid.Kind != KindArray || grid.Name != "int" || grid.SizeBits != 192 {
		t.Errorf("grid: unexpected type %+v", grid)
	}
	if diff := cmp.Diff([]int{2, 3}, grid.Dims); diff != "" {
		t.Errorf("grid dims mismatch (-want +got):\n%s", diff)
	}
	if grid.DisplayName() != "int[2][3]" {
		t.Errorf("grid display name: got %q", grid.DisplayName())
	}

	pts := fd.Children[1]
	if !pts.Type.IsStruct() || pts.Type.DisplayName() != "struct point[4]" {
		t.Errorf("pts: unexpected type %+v", pts.Type)
	}
	if len(pts.Children) != 2 {
		t.Errorf("pts: expected element members, got %d", len(pts.Children))
	}

	if pts.OffsetBits != 192 {
		t.Errorf("pts: expected offset 192, got %d", pts.OffsetBits)
	}

	// 64 bits of pointers take the 64-bit class, clamped to pack 4.
	names := fd.Children[2]
	if names.Type.ElemKind != KindPointer || names.SizeBits != 64 || names.OffsetBits != 320 {
		t.Errorf("names: unexpected descriptor %+v", names)
	}
}

func TestTypedefForwardReference(t *testing.T) {
	src := "typedef struct node node_t; struct node { int v; node_t *next; };"
	r, _ := mustResolver(t, src, 8)
	fd := mustLayout(t, r, "node_t")
	if fd.SizeBits != 64 {
		t.Errorf("size: expected 64, got %d", fd.SizeBits)
	}
	if fd.Type.Name != "struct node_t" {
		t.Errorf("type name: got %q", fd.Type.Name)
	}
}

func TestDegradedResolution(t *testing.T) {
	tests := []struct {
		name string
		src  string
		size int
		kind diag.Kind
	}{
		{"Unknown type", "struct s { mystery_t x; };", 32, diag.KindUnresolvedType},
		{"Non-literal dimension", "struct s { char buf[N]; };", 8, diag.KindUnsupportedConstant},
		{"Expression dimension", "struct s { char buf[4 * 2]; };", 8, diag.KindUnsupportedConstant},
		{"Missing definition", "struct s { struct missing m; };", 0, diag.KindMissingDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, diags := mustResolver(t, tt.src, 8)
			fd := mustLayout(t, r, "s")
			if fd.SizeBits != tt.size {
				t.Errorf("size: expected %d, got %d", tt.size, fd.SizeBits)
			}
			if !hasDiag(diags, tt.kind) {
				t.Errorf("expected a %s diagnostic, got %v", tt.kind, diags.List())
			}
			for _, e := range diags.List() {
				if !e.Kind.Recoverable() {
					t.Errorf("diagnostic %v should be recoverable", e)
				}
			}
		})
	}
}

func TestLayoutNotFound(t *testing.T) {
	r, _ := mustResolver(t, "struct s { int a; };", 8)
	_, err := r.Layout("nope")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, &diag.Error{Phase: diag.PhaseResolve, Kind: diag.KindNotFound}) {
		t.Errorf("expected a not_found error, got %v", err)
	}
}

func TestLayoutIsIdempotent(t *testing.T) {
	src := `
typedef struct {
    unsigned int id : 12;
    unsigned int flags : 4;
    union { int i; char c[4]; };
    struct { short a; short b; } pair[2];
    void (*cb)(int);
} record_t;`
	r, _ := mustResolver(t, src, 16)
	first := mustLayout(t, r, "record_t")
	second := mustLayout(t, r, "record_t")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("layouts differ (-first +second):\n%s", diff)
	}
}

func TestResolveType(t *testing.T) {
	r, _ := mustResolver(t, "typedef unsigned short u16; enum e { A };", 8)
	tests := []struct {
		name   string
		node   cparse.TypeNode
		size   int
		signed bool
		kind   Kind
	}{
		{"unsigned long int", &cparse.IdentType{Names: []string{"long", "unsigned", "int"}}, 32, false, KindScalar},
		{"long long", &cparse.IdentType{Names: []string{"long", "long"}}, 64, true, KindScalar},
		{"long double", &cparse.IdentType{Names: []string{"long", "double"}}, 128, true, KindScalar},
		{"signed char", &cparse.IdentType{Names: []string{"signed", "char"}}, 8, true, KindScalar},
		{"uint16_t", &cparse.IdentType{Names: []string{"uint16_t"}}, 16, false, KindScalar},
		{"typedef", &cparse.IdentType{Names: []string{"u16"}}, 16, false, KindScalar},
		{"enum", &cparse.EnumType{Name: "e"}, 32, true, KindEnum},
		{"function", &cparse.FuncType{Result: &cparse.IdentType{Names: []string{"int"}}}, 32, false, KindFunction},
		{"pointer", &cparse.PtrType{Elem: &cparse.IdentType{Names: []string{"double"}}}, 32, false, KindPointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := r.ResolveType(tt.node)
			if info.SizeBits != tt.size || info.Signed != tt.signed || info.Kind != tt.kind {
				t.Errorf("expected size=%d signed=%v kind=%v, got %+v", tt.size, tt.signed, tt.kind, info)
			}
		})
	}
}

func TestResolveFieldAdvancesCursor(t *testing.T) {
	r, _ := mustResolver(t, "struct inner { unsigned a:3; char b; };", 8)
	cur := Cursor{Offset: 8}
	f := r.ResolveField(&cparse.Decl{Name: "in", Type: &cparse.StructType{Name: "inner"}}, &cur)
	if f.OffsetBits != 8 || f.SizeBits != 16 {
		t.Errorf("expected offset 8 size 16, got offset %d size %d", f.OffsetBits, f.SizeBits)
	}
	if cur.Offset != 24 || cur.BitOffset != 0 {
		t.Errorf("cursor: expected offset 24, got %+v", cur)
	}

	children, size := r.ResolveAggregate(KindUnion, []*cparse.Decl{
		{Name: "x", Type: &cparse.IdentType{Names: []string{"short"}}},
		{Name: "y", Type: &cparse.IdentType{Names: []string{"char"}}},
	})
	if len(children) != 2 || size != 16 {
		t.Errorf("union aggregate: expected 2 members of size 16, got %d members, size %d", len(children), size)
	}
}
