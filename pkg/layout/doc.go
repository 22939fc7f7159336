// Package layout computes the memory layout of C structs and unions.
//
// A Catalog indexes the definitions of a parsed translation unit, a Policy
// fixes pack alignment and pointer size, and a Resolver turns a struct or
// union name into a tree of FieldDescriptors with bit-precise offsets.
//
// Alignment: pointers align to the pointer size; any other type aligns to
// the power of two implied by its total size, arrays included, at most 64
// bits and never more than the pack alignment.
//
// Bitfields share a storage unit the size of their type's alignment. A
// bitfield that does not fit in the open unit, a zero-width bitfield and any
// ordinary member all close the unit.
//
// Unions place every member at offset 0. Struct and union sizes are rounded
// up to the pack alignment. Pointer targets are never expanded.
//
// An anonymous struct or union member is kept as one descriptor named
// anonymous_<offset> that carries its members. FieldDescriptor.Flatten
// gives the C view instead, with those members spliced into the parent at
// their absolute offsets.
package layout
