package diagram

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cstruct2yaml/pkg/layout"
)

// header is struct header { unsigned char kind:3; unsigned char flags:5;
// struct { short lo; short hi; } range; int tail[3]; }
func header() *layout.FieldDescriptor {
	u8 := layout.TypeInfo{Name: "unsigned char", SizeBits: 8}
	short := layout.TypeInfo{Name: "short", SizeBits: 16, Signed: true}
	return &layout.FieldDescriptor{
		Name:     "header",
		Type:     layout.TypeInfo{Name: "struct header", Kind: layout.KindStruct, SizeBits: 160},
		SizeBits: 160,
		Children: []*layout.FieldDescriptor{
			{Name: "kind", Type: u8, SizeBits: 3, Bitfield: &layout.Bitfield{Width: 3}},
			{Name: "flags", Type: u8, SizeBits: 5, Bitfield: &layout.Bitfield{Width: 5, Offset: 3}},
			{Name: "range", OffsetBits: 16, SizeBits: 32,
				Type: layout.TypeInfo{Name: "struct range", Kind: layout.KindStruct, SizeBits: 32},
				Children: []*layout.FieldDescriptor{
					{Name: "lo", Type: short, SizeBits: 16},
					{Name: "hi", Type: short, OffsetBits: 16, SizeBits: 16},
				}},
			{Name: "tail", OffsetBits: 64, SizeBits: 96, Type: layout.TypeInfo{
				Name: "int", Kind: layout.KindArray, SizeBits: 96, ElemSizeBits: 32, Dims: []int{3},
			}},
		},
	}
}

func TestBuild(t *testing.T) {
	d := Build(header(), 0)
	want := []Band{
		{Path: "kind", StartBit: 0, Bits: 3, Bitfield: true},
		{Path: "flags", StartBit: 3, Bits: 5, Bitfield: true},
		{Path: "range.lo", StartBit: 16, Bits: 16},
		{Path: "range.hi", StartBit: 32, Bits: 16},
		{Path: "tail", StartBit: 64, Bits: 96},
	}
	if diff := cmp.Diff(want, d.Bands); diff != "" {
		t.Errorf("bands mismatch (-want +got):\n%s", diff)
	}
	if d.Title != "struct header" || d.BytesPerRow != DefaultBytesPerRow {
		t.Errorf("unexpected header: %q, %d bytes per row", d.Title, d.BytesPerRow)
	}
	if d.Rows() != 3 {
		t.Errorf("expected 3 rows, got %d", d.Rows())
	}
}

func TestBuildUnion(t *testing.T) {
	u := &layout.FieldDescriptor{
		Name:     "value",
		Type:     layout.TypeInfo{Name: "union value", Kind: layout.KindUnion, SizeBits: 64},
		SizeBits: 64,
		Children: []*layout.FieldDescriptor{
			{Name: "i", SizeBits: 32, Type: layout.TypeInfo{Name: "int", SizeBits: 32}},
			{Name: "d", SizeBits: 64, Type: layout.TypeInfo{Name: "double", SizeBits: 64}},
		},
	}
	d := Build(u, 4)
	if diff := cmp.Diff([]Band{{Path: "value", Bits: 64}}, d.Bands); diff != "" {
		t.Errorf("bands mismatch (-want +got):\n%s", diff)
	}
}

func TestSegments(t *testing.T) {
	d := Build(header(), 4)
	got := d.Segments()
	want := []Segment{
		{Band: 0, Row: 0, Col: 0, Bits: 3},
		{Band: 1, Row: 0, Col: 3, Bits: 5},
		{Band: 2, Row: 0, Col: 16, Bits: 16},
		{Band: 3, Row: 1, Col: 0, Bits: 16},
		{Band: 4, Row: 2, Col: 0, Bits: 32},
		{Band: 4, Row: 3, Col: 0, Bits: 32},
		{Band: 4, Row: 4, Col: 0, Bits: 32},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		path  string
		width int
		want  string
	}{
		{"flags", 100, "flags"},
		{"range.lo", 30, "lo"},
		{"checksum", 46, "check~"},
		{"k", 3, ""},
		{"kind", 12, "k"},
	}
	for _, tt := range tests {
		if got := label(tt.path, tt.width, 7); got != tt.want {
			t.Errorf("label(%q, %d) = %q; want %q", tt.path, tt.width, got, tt.want)
		}
	}
}

func TestWritePNG(t *testing.T) {
	d := Build(header(), 0)
	var buf bytes.Buffer
	if err := d.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds() != d.Bounds() {
		t.Errorf("expected bounds %v, got %v", d.Bounds(), img.Bounds())
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := Build(header(), 0).WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<svg", "struct header (160 bits)", "range.hi: bits 32..47", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG output missing %q", want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	d := Build(header(), 0)
	dir := t.TempDir()
	for _, name := range []string{"out.png", "out.svg"} {
		path := filepath.Join(dir, name)
		if err := d.WriteFile(path); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Errorf("%s was not written", name)
		}
	}
	if err := d.WriteFile(filepath.Join(dir, "out.gif")); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
