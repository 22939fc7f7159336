package layout

import "fmt"

// Default policy values, in bits.
const (
	DefaultPackBits    = 8
	DefaultPointerBits = 32
)

// Policy is the alignment policy of one translation unit. It is immutable
// once built and safe to share between concurrent layout requests.
type Policy struct {
	PackBits    int // maximum alignment of any non-pointer type
	PointerBits int // size and alignment of pointers and function pointers
}

// NewPolicy validates and builds a Policy. Zero values take the defaults.
func NewPolicy(packBits, pointerBits int) (Policy, error) {
	if packBits == 0 {
		packBits = DefaultPackBits
	}
	if pointerBits == 0 {
		pointerBits = DefaultPointerBits
	}
	if packBits < 0 || packBits%8 != 0 {
		return Policy{}, fmt.Errorf("pack alignment must be a positive multiple of 8 bits, got %d", packBits)
	}
	if pointerBits < 0 || pointerBits%8 != 0 {
		return Policy{}, fmt.Errorf("pointer size must be a positive multiple of 8 bits, got %d", pointerBits)
	}
	return Policy{PackBits: packBits, PointerBits: pointerBits}, nil
}

// WithPack returns a copy of p using packBits, as set by #pragma pack.
func (p Policy) WithPack(packBits int) Policy {
	if packBits > 0 {
		p.PackBits = packBits
	}
	return p
}

// naturalClass is the alignment implied by size alone.
func (p Policy) naturalClass(sizeBits int) int {
	switch {
	case sizeBits <= 8:
		return 8
	case sizeBits <= 16:
		return 16
	case sizeBits <= 32:
		return 32
	case sizeBits <= 64:
		return 64
	default:
		return min(p.PackBits, 64)
	}
}

// AlignOf returns the alignment of t in bits. Pointers align to the pointer
// size regardless of packing; everything else, arrays included, takes the
// natural class of its total size, clamped to the pack alignment.
func (p Policy) AlignOf(t TypeInfo) int {
	if t.Kind == KindPointer {
		return p.PointerBits
	}
	return min(p.naturalClass(t.SizeBits), p.PackBits)
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align int) int {
	if align <= 0 {
		return offset
	}
	return (offset + align - 1) / align * align
}
