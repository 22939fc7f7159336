// Package diagram draws the byte map of a struct or union layout.
//
// A layout is reduced to bands: one per leaf member, placed at its absolute
// bit offset. Nested named structs are opened up, while arrays, unions and
// scalars stay whole. The bands are then cut into segments along rows of
// BytesPerRow bytes, which is what the PNG and SVG renderers draw.
package diagram

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/colornames"

	"cstruct2yaml/pkg/grid"
	"cstruct2yaml/pkg/layout"
)

// DefaultBytesPerRow is the row width used when none is given.
const DefaultBytesPerRow = 8

const (
	bitWidth   = 12 // pixels per bit
	rowHeight  = 40
	marginLeft = 56
	marginTop  = 28
	marginEnd  = 12
)

// Band is one leaf member of the layout.
type Band struct {
	Path     string // dotted member path from the root
	StartBit int
	Bits     int
	Bitfield bool
}

// Segment is the part of a band that falls on one row.
type Segment struct {
	Band int // index into Diagram.Bands
	Row  int
	Col  int // first bit within the row
	Bits int
}

type Diagram struct {
	Title       string
	SizeBits    int
	BytesPerRow int
	Bands       []Band
}

// Build collects the bands of fd. bytesPerRow <= 0 selects
// DefaultBytesPerRow.
func Build(fd *layout.FieldDescriptor, bytesPerRow int) *Diagram {
	if bytesPerRow <= 0 {
		bytesPerRow = DefaultBytesPerRow
	}
	d := &Diagram{
		Title:       fd.Type.DisplayName(),
		SizeBits:    fd.SizeBits,
		BytesPerRow: bytesPerRow,
	}
	if fd.Type.Kind == layout.KindUnion {
		// Every member starts at zero; draw the union as a whole.
		d.Bands = append(d.Bands, Band{Path: fd.Name, Bits: fd.SizeBits})
		return d
	}
	d.collect(fd.Children, 0, "")
	return d
}

func (d *Diagram) collect(fields []*layout.FieldDescriptor, base int, prefix string) {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		switch {
		case f.Bitfield != nil:
			if f.Bitfield.Width == 0 {
				continue
			}
			d.Bands = append(d.Bands, Band{
				Path:     path,
				StartBit: base + f.OffsetBits + f.Bitfield.Offset,
				Bits:     f.Bitfield.Width,
				Bitfield: true,
			})
		case f.Type.Kind == layout.KindStruct && len(f.Children) > 0:
			d.collect(f.Children, base+f.OffsetBits, path)
		case f.SizeBits > 0:
			d.Bands = append(d.Bands, Band{Path: path, StartBit: base + f.OffsetBits, Bits: f.SizeBits})
		}
	}
}

func (d *Diagram) rowBits() int { return d.BytesPerRow * 8 }

// Rows returns the number of rows needed to show every byte.
func (d *Diagram) Rows() int {
	rows := grid.Rows((d.SizeBits+7)/8, d.BytesPerRow)
	if rows == 0 {
		return 1
	}
	return rows
}

// Segments cuts every band at row boundaries.
func (d *Diagram) Segments() []Segment {
	var out []Segment
	rb := d.rowBits()
	for i, b := range d.Bands {
		bit, left := b.StartBit, b.Bits
		for left > 0 {
			col, row := grid.GetGridCoords(bit, rb)
			n := min(left, rb-col)
			out = append(out, Segment{Band: i, Row: row, Col: col, Bits: n})
			bit += n
			left -= n
		}
	}
	return out
}

// Bounds is the pixel size of the rendered diagram.
func (d *Diagram) Bounds() image.Rectangle {
	return image.Rect(0, 0,
		marginLeft+d.rowBits()*bitWidth+marginEnd,
		marginTop+d.Rows()*rowHeight+marginEnd)
}

func (d *Diagram) segmentRect(s Segment) image.Rectangle {
	x := marginLeft + s.Col*bitWidth
	y := marginTop + s.Row*rowHeight
	return image.Rect(x, y, x+s.Bits*bitWidth, y+rowHeight)
}

func (d *Diagram) byteRect(index int) image.Rectangle {
	col, row := grid.GetGridCoords(index, d.BytesPerRow)
	x := marginLeft + col*8*bitWidth
	y := marginTop + row*rowHeight
	return image.Rect(x, y, x+8*bitWidth, y+rowHeight)
}

var palette = []color.RGBA{
	colornames.Lightsteelblue,
	colornames.Palegreen,
	colornames.Khaki,
	colornames.Lightsalmon,
	colornames.Plum,
	colornames.Paleturquoise,
	colornames.Wheat,
	colornames.Lightpink,
}

var (
	background = colornames.White
	padding    = colornames.Whitesmoke
	gridLine   = colornames.Lightgray
	ink        = colornames.Black
	bitfieldFg = colornames.Darkslategray
)

func (d *Diagram) fill(s Segment) color.RGBA {
	return palette[s.Band%len(palette)]
}

// label fits the band path into a segment of width px, using advance pixels
// per character.
func label(path string, width, advance int) string {
	n := (width - 4) / advance
	if n <= 0 {
		return ""
	}
	if len(path) <= n {
		return path
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 && len(path)-i-1 <= n {
		return path[i+1:]
	}
	if n == 1 {
		return path[:1]
	}
	return path[:n-1] + "~"
}
