package diagram

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Image renders the diagram into an RGBA image.
func (d *Diagram) Image() *image.RGBA {
	img := image.NewRGBA(d.Bounds())
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	bytes := max((d.SizeBits+7)/8, 1)
	for i := 0; i < bytes; i++ {
		r := d.byteRect(i)
		draw.Draw(img, r, image.NewUniform(padding), image.Point{}, draw.Src)
	}

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(ink), Face: face}
	text := func(x, y int, s string, c color.Color) {
		drawer.Src = image.NewUniform(c)
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(s)
	}

	for _, s := range d.Segments() {
		r := d.segmentRect(s).Inset(1)
		draw.Draw(img, r, image.NewUniform(d.fill(s)), image.Point{}, draw.Src)
		b := d.Bands[s.Band]
		fg := color.Color(ink)
		if b.Bitfield {
			fg = bitfieldFg
		}
		if l := label(b.Path, r.Dx(), face.Advance); l != "" {
			text(r.Min.X+2, r.Min.Y+rowHeight/2+4, l, fg)
		}
	}

	for i := 0; i < bytes; i++ {
		outline(img, d.byteRect(i), gridLine)
	}
	for row := 0; row < d.Rows(); row++ {
		text(4, marginTop+row*rowHeight+rowHeight/2+4, fmt.Sprintf("+%#04x", row*d.BytesPerRow), ink)
	}
	text(marginLeft, marginTop-10, fmt.Sprintf("%s (%d bits)", d.Title, d.SizeBits), ink)
	return img
}

func outline(img draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// WritePNG encodes the rendered diagram as PNG.
func (d *Diagram) WritePNG(w io.Writer) error {
	return png.Encode(w, d.Image())
}
