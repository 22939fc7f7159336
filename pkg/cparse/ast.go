package cparse

import (
	"fmt"
	"strings"
)

//  Constant expressions

// Expr is implemented by every constant-expression node. Array dimensions,
// bitfield widths and enumerator values are kept in this form; only literal
// Constants are ever reduced to integers.
type Expr interface {
	exprNode()
	String() string
}

// Constant is a literal exactly as written in the source.
//
//	int buf[0x10];
//	        ^^^^  Constant{Kind: INTEGER, Value: "0x10"}
type Constant struct {
	Kind  TokenType // INTEGER, FLOAT, CHARLIT or STRING
	Value string
}

func (*Constant) exprNode()        {}
func (c *Constant) String() string { return c.Value }

// Ident is a reference to a name that survived preprocessing, usually an
// enumerator or an undefined macro.
type Ident struct {
	Name string
}

func (*Ident) exprNode()        {}
func (i *Ident) String() string { return i.Name }

// Unary is Op X (e.g. -1, ~0, sizeof x).
type Unary struct {
	Op string
	X  Expr
}

func (*Unary) exprNode()        {}
func (u *Unary) String() string { return u.Op + u.X.String() }

// Binary is X Op Y.
type Binary struct {
	Op string
	X  Expr
	Y  Expr
}

func (*Binary) exprNode() {}
func (b *Binary) String() string {
	return fmt.Sprintf("%s %s %s", b.X, b.Op, b.Y)
}

// Paren is a parenthesized expression, kept so String reproduces the source.
type Paren struct {
	X Expr
}

func (*Paren) exprNode()        {}
func (p *Paren) String() string { return "(" + p.X.String() + ")" }

//  Type nodes

// TypeNode is the closed set of declarator kinds. The layout resolver
// switches over the concrete types below; nothing outside this package
// implements it.
type TypeNode interface {
	typeNode()
	String() string
}

// IdentType is a type named by keywords or a typedef name. Names keeps the
// specifier words in source order, e.g. ["unsigned", "long", "int"].
type IdentType struct {
	Names []string
}

func (*IdentType) typeNode()        {}
func (t *IdentType) String() string { return strings.Join(t.Names, " ") }

// PtrType is a pointer to Elem.
type PtrType struct {
	Elem TypeNode
}

func (*PtrType) typeNode()        {}
func (t *PtrType) String() string { return fmt.Sprintf("%s*", t.Elem) }

// ArrayType is Elem[Dim]. Dim is nil for an unsized array. For int a[2][3]
// the outer ArrayType carries Dim 2 and its Elem carries Dim 3.
type ArrayType struct {
	Elem TypeNode
	Dim  Expr
}

func (*ArrayType) typeNode() {}
func (t *ArrayType) String() string {
	dim := ""
	if t.Dim != nil {
		dim = t.Dim.String()
	}
	return fmt.Sprintf("%s[%s]", t.Elem, dim)
}

// FuncType is a function declarator. Parameters are recorded for the dump
// output only; layout treats every function as opaque.
type FuncType struct {
	Result TypeNode
	Params []*Decl
}

func (*FuncType) typeNode() {}
func (t *FuncType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.Type.String()
	}
	return fmt.Sprintf("%s(%s)", t.Result, strings.Join(parts, ", "))
}

// StructType is a struct specifier. Defined is true when the specifier has
// a member list, even an empty one; a bare "struct tag" reference has
// Defined false and Decls nil.
type StructType struct {
	Name    string
	Decls   []*Decl
	Defined bool
}

func (*StructType) typeNode() {}
func (t *StructType) String() string {
	if t.Name == "" {
		return "struct <anonymous>"
	}
	return "struct " + t.Name
}

// UnionType is a union specifier with the same conventions as StructType.
type UnionType struct {
	Name    string
	Decls   []*Decl
	Defined bool
}

func (*UnionType) typeNode() {}
func (t *UnionType) String() string {
	if t.Name == "" {
		return "union <anonymous>"
	}
	return "union " + t.Name
}

// Enumerator is one NAME [= value] entry of an enum body.
type Enumerator struct {
	Name  string
	Value Expr // nil when implicit
}

// EnumType is an enum specifier.
type EnumType struct {
	Name    string
	Values  []*Enumerator
	Defined bool
}

func (*EnumType) typeNode() {}
func (t *EnumType) String() string {
	if t.Name == "" {
		return "enum <anonymous>"
	}
	return "enum " + t.Name
}

//  Declarations

// Decl is one declarator of a declaration: a struct member, a parameter,
// a variable or a function. Name is empty for abstract declarators and for
// anonymous members such as `union { int a; float b; };`.
type Decl struct {
	Name    string
	Type    TypeNode
	BitSize Expr // non-nil only for bitfield members
	Line    int
}

func (d *Decl) String() string {
	s := d.Type.String()
	if d.Name != "" {
		s += " " + d.Name
	}
	if d.BitSize != nil {
		s += " : " + d.BitSize.String()
	}
	return s
}

// Typedef binds Name to Type.
type Typedef struct {
	Name string
	Type TypeNode
	Line int
}

func (t *Typedef) String() string {
	return fmt.Sprintf("typedef %s %s", t.Type, t.Name)
}

// ExternalDecl is a top-level item: *Decl, *Typedef, or *TagDecl.
type ExternalDecl interface {
	String() string
}

// TagDecl is a declaration that only introduces a tag, as in
// `struct point { int x, y; };` or `enum color { RED };`.
type TagDecl struct {
	Type TypeNode
	Line int
}

func (t *TagDecl) String() string { return t.Type.String() + ";" }

// File is the parsed translation unit, top-level declarations in source order.
type File struct {
	Decls []ExternalDecl
}
