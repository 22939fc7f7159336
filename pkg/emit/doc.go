// Package emit turns layout trees into YAML or JSON documents.
//
// Keys are written in a fixed order: name, type and size first, then the
// offset block, bitfield placement, the anonymous marker, array and pointer
// details, the aggregate kind and finally the nested members. Options decide
// which of the optional blocks appear; they never change the numbers.
package emit
