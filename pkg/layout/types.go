package layout

import (
	"fmt"
	"strings"
)

// Kind classifies a resolved type.
type Kind int

const (
	KindScalar Kind = iota
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFunction
)

var kindNames = [...]string{
	KindScalar:   "scalar",
	KindPointer:  "pointer",
	KindArray:    "array",
	KindStruct:   "struct",
	KindUnion:    "union",
	KindEnum:     "enum",
	KindFunction: "function",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TypeInfo describes a resolved type.
//
// For arrays, Name and BaseType are the element type name, Dims lists the
// dimensions outer-to-inner across nested array declarators, and ElemKind
// carries the element's kind so an array of structs is still recognisable.
// For pointers, BaseType names the pointee; the pointee is never resolved.
type TypeInfo struct {
	Name         string
	Kind         Kind
	ElemKind     Kind
	SizeBits     int
	ElemSizeBits int
	Signed       bool
	BaseType     string
	Dims         []int
}

// IsStruct reports whether t is a struct or an array of structs.
func (t TypeInfo) IsStruct() bool {
	return t.Kind == KindStruct || (t.Kind == KindArray && t.ElemKind == KindStruct)
}

// IsUnion reports whether t is a union or an array of unions.
func (t TypeInfo) IsUnion() bool {
	return t.Kind == KindUnion || (t.Kind == KindArray && t.ElemKind == KindUnion)
}

// IsEnum reports whether t is an enum or an array of enums.
func (t TypeInfo) IsEnum() bool {
	return t.Kind == KindEnum || (t.Kind == KindArray && t.ElemKind == KindEnum)
}

// DisplayName renders the type the way C would declare it, with array
// dimensions appended: "char[16]", "struct point[2][3]".
func (t TypeInfo) DisplayName() string {
	if t.Kind != KindArray || len(t.Dims) == 0 {
		return t.Name
	}
	var b strings.Builder
	b.WriteString(t.Name)
	for _, d := range t.Dims {
		fmt.Fprintf(&b, "[%d]", d)
	}
	return b.String()
}

// Bitfield is the placement of a bitfield member inside its storage unit.
type Bitfield struct {
	Width  int // declared width in bits
	Offset int // bit position inside the unit that starts at OffsetBits
}

// FieldDescriptor is one node of a layout tree. OffsetBits is relative to
// the enclosing aggregate. Children are present only for struct, union and
// array-of-aggregate members; their offsets are relative to the member.
type FieldDescriptor struct {
	Name       string
	Type       TypeInfo
	OffsetBits int
	SizeBits   int
	Bitfield   *Bitfield
	Anonymous  bool
	Children   []*FieldDescriptor
}

// IsBitfield reports whether the field was declared with a width.
func (f *FieldDescriptor) IsBitfield() bool { return f.Bitfield != nil }

// CountMembers returns the number of descendants of f.
func (f *FieldDescriptor) CountMembers() int {
	n := len(f.Children)
	for _, c := range f.Children {
		n += c.CountMembers()
	}
	return n
}

// Flatten returns f's members with every anonymous struct or union member
// replaced by its own members, recursively, at offsets relative to f. This is
// the set of names reachable as f.name in C. Named members are copied as-is,
// children included. f is not modified.
func (f *FieldDescriptor) Flatten() []*FieldDescriptor {
	var out []*FieldDescriptor
	for _, c := range f.Children {
		if c.Anonymous && len(c.Children) > 0 && (c.Type.Kind == KindStruct || c.Type.Kind == KindUnion) {
			for _, gc := range c.Flatten() {
				moved := *gc
				moved.OffsetBits += c.OffsetBits
				out = append(out, &moved)
			}
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}
