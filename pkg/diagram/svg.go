package diagram

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	svg "github.com/ajstarks/svgo"

	"cstruct2yaml/pkg/diag"
)

const svgAdvance = 7

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// WriteSVG writes the diagram as an SVG document.
func (d *Diagram) WriteSVG(w io.Writer) error {
	b := d.Bounds()
	canvas := svg.New(w)
	canvas.Start(b.Dx(), b.Dy())
	canvas.Title(d.Title)
	canvas.Rect(0, 0, b.Dx(), b.Dy(), "fill:"+hex(background))

	textStyle := "font-family:monospace;font-size:11px;fill:" + hex(ink)
	canvas.Text(marginLeft, marginTop-10, fmt.Sprintf("%s (%d bits)", d.Title, d.SizeBits), textStyle)

	bytes := max((d.SizeBits+7)/8, 1)
	cell := fmt.Sprintf("fill:%s;stroke:%s", hex(padding), hex(gridLine))
	for i := 0; i < bytes; i++ {
		r := d.byteRect(i)
		canvas.Rect(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), cell)
	}

	for _, s := range d.Segments() {
		r := d.segmentRect(s).Inset(1)
		band := d.Bands[s.Band]
		canvas.Group()
		canvas.Title(fmt.Sprintf("%s: bits %d..%d", band.Path, band.StartBit, band.StartBit+band.Bits-1))
		canvas.Rect(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), "fill:"+hex(d.fill(s)))
		if l := label(band.Path, r.Dx(), svgAdvance); l != "" {
			style := textStyle
			if band.Bitfield {
				style = "font-family:monospace;font-size:11px;font-style:italic;fill:" + hex(bitfieldFg)
			}
			canvas.Text(r.Min.X+2, r.Min.Y+rowHeight/2+4, l, style)
		}
		canvas.Gend()
	}

	for row := 0; row < d.Rows(); row++ {
		canvas.Text(4, marginTop+row*rowHeight+rowHeight/2+4, fmt.Sprintf("+%#04x", row*d.BytesPerRow), textStyle)
	}
	canvas.End()
	return nil
}

// WriteFile writes the diagram to path, choosing PNG or SVG by extension.
func (d *Diagram) WriteFile(path string) error {
	var write func(io.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		write = d.WritePNG
	case ".svg":
		write = d.WriteSVG
	default:
		return diag.New(diag.PhaseEmit, diag.KindInvalidConfig).
			Symbol(path).
			Detail("diagram file must end in .png or .svg").
			Build()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
