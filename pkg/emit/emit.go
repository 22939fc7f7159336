package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/diag"
	"cstruct2yaml/pkg/layout"
)

// Generator is written into every document's metadata.
const Generator = "cstruct2yaml"

// Options gates the optional parts of each member and fills the metadata.
type Options struct {
	IncludeAnonymous bool
	IncludeBitfields bool
	IncludeOffsets   bool
	IncludeChildren  bool
	BitPrecision     bool
	FlattenAnonymous bool // splice anonymous struct/union members into their parent
	PackBits         int
	Now              func() time.Time
}

// NewOptions takes the output switches from cfg. packBits is the effective
// pack alignment of the unit, which may come from a pragma.
func NewOptions(cfg config.Config, packBits int) Options {
	return Options{
		IncludeAnonymous: cfg.IncludeAnonymous,
		IncludeBitfields: cfg.IncludeBitfields,
		IncludeOffsets:   cfg.IncludeOffsets,
		IncludeChildren:  cfg.IncludeChildren,
		BitPrecision:     cfg.BitPrecision,
		FlattenAnonymous: cfg.FlattenAnonymous,
		PackBits:         packBits,
		Now:              time.Now,
	}
}

func (o Options) timestamp() string {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().Format(time.RFC3339)
}

// Member converts one descriptor and, when enabled, its children.
func Member(fd *layout.FieldDescriptor, opts Options) *Map {
	m := NewMap().
		Set("name", fd.Name).
		Set("type", fd.Type.DisplayName()).
		Set("size_bits", fd.SizeBits)

	if opts.IncludeOffsets {
		m.Set("offset_bits", fd.OffsetBits)
		if opts.BitPrecision {
			m.Set("offset_bytes", fd.OffsetBits/8).
				Set("offset_bit_in_byte", fd.OffsetBits%8).
				Set("size_bytes", fd.SizeBits/8).
				Set("size_bit_remainder", fd.SizeBits%8)
		}
	}

	if opts.IncludeBitfields && fd.Bitfield != nil {
		m.Set("is_bitfield", true).
			Set("bit_width", fd.Bitfield.Width).
			Set("bit_offset", fd.Bitfield.Offset)
	}

	if opts.IncludeAnonymous && fd.Anonymous {
		m.Set("is_anonymous", true)
	}

	t := fd.Type
	if t.Kind == layout.KindArray {
		m.Set("is_array", true).Set("array_dimensions", t.Dims)
	}
	if t.Kind == layout.KindPointer {
		m.Set("is_pointer", true).Set("base_type", t.BaseType)
	}
	switch {
	case t.IsStruct():
		m.Set("is_struct", true)
	case t.IsUnion():
		m.Set("is_union", true)
	case t.IsEnum():
		m.Set("is_enum", true)
	}

	children := fd.Children
	if opts.FlattenAnonymous {
		children = fd.Flatten()
	}
	if opts.IncludeChildren && len(children) > 0 {
		members := make([]*Map, len(children))
		for i, c := range children {
			members[i] = Member(c, opts)
		}
		m.Set("members", members)
	}
	return m
}

// Single is the document for one requested type.
func Single(fd *layout.FieldDescriptor, opts Options) *Map {
	info := NewMap().
		Set("name", fd.Name).
		Set("total_size_bits", fd.SizeBits).
		Set("total_size_bytes", fd.SizeBits/8).
		Set("pack_alignment", opts.PackBits).
		Set("generated_at", opts.timestamp()).
		Set("generator", Generator)
	return NewMap().
		Set("struct_info", info).
		Set("struct_definition", Member(fd, opts))
}

// All is the document for every struct and union of a unit.
func All(structs, unions []*layout.FieldDescriptor, opts Options) *Map {
	s := NewMap()
	for _, fd := range structs {
		s.Set(fd.Name, Member(fd, opts))
	}
	u := NewMap()
	for _, fd := range unions {
		u.Set(fd.Name, Member(fd, opts))
	}
	info := NewMap().
		Set("generated_at", opts.timestamp()).
		Set("generator", Generator).
		Set("pack_alignment", opts.PackBits).
		Set("total_structs", len(structs)).
		Set("total_unions", len(unions))
	return NewMap().
		Set("structs", s).
		Set("unions", u).
		Set("generation_info", info)
}

// Write encodes v in the given format: config.FormatYAML or
// config.FormatJSON.
func Write(w io.Writer, v any, format string) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return encodeError(format, err)
		}
		return nil
	case config.FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return encodeError(format, err)
		}
		if err := enc.Close(); err != nil {
			return encodeError(format, err)
		}
		return nil
	}
	return diag.New(diag.PhaseEmit, diag.KindInvalidConfig).
		Symbol(format).
		Detail("unknown output format").
		Build()
}

func encodeError(format string, err error) error {
	return diag.New(diag.PhaseEmit, diag.KindSyntax).
		Symbol(format).
		Detail("cannot encode document").
		Cause(err).
		Build()
}

// Summary is the short report printed after generation.
type Summary struct {
	Name     string
	SizeBits int
	PackBits int
	Members  int
	Structs  int
	Unions   int
	Multiple bool
}

func SingleSummary(fd *layout.FieldDescriptor, packBits int) Summary {
	return Summary{Name: fd.Name, SizeBits: fd.SizeBits, PackBits: packBits, Members: fd.CountMembers()}
}

func AllSummary(structs, unions []*layout.FieldDescriptor, packBits int) Summary {
	return Summary{Structs: len(structs), Unions: len(unions), PackBits: packBits, Multiple: true}
}

// Rows returns label/value pairs in display order.
func (s Summary) Rows() [][2]string {
	if s.Multiple {
		return [][2]string{
			{"Structs", fmt.Sprint(s.Structs)},
			{"Unions", fmt.Sprint(s.Unions)},
			{"Alignment", fmt.Sprintf("%d bits", s.PackBits)},
		}
	}
	return [][2]string{
		{"Name", s.Name},
		{"Total size", fmt.Sprintf("%d bits (%d bytes)", s.SizeBits, s.SizeBits/8)},
		{"Alignment", fmt.Sprintf("%d bits", s.PackBits)},
		{"Members", fmt.Sprint(s.Members)},
	}
}
