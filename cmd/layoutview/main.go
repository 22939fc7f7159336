// Command layoutview shows the byte map of every struct and union of a C
// header in a window. Left and right switch between types, up and down
// scroll long layouts.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/diagram"
	"cstruct2yaml/pkg/layout"
)

const (
	screenWidth  = 840
	screenHeight = 560
	headerHeight = 20
	scrollStep   = 40
)

type Viewer struct {
	filename string
	types    []*layout.FieldDescriptor
	index    int
	scroll   int
	bytes    int // bytes per diagram row

	page      *ebiten.Image // rendered diagram of types[index]
	pageIndex int
}

func NewViewer(filename string, res *analyze.Results, bytesPerRow int) *Viewer {
	types := append([]*layout.FieldDescriptor{}, res.Structs...)
	types = append(types, res.Unions...)
	return &Viewer{filename: filename, types: types, bytes: bytesPerRow, pageIndex: -1}
}

// step moves the selection by delta, wrapping at either end.
func (v *Viewer) step(delta int) {
	if len(v.types) == 0 {
		return
	}
	v.index = (v.index + delta + len(v.types)) % len(v.types)
	v.scroll = 0
}

func (v *Viewer) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyRight):
		v.step(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft):
		v.step(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyDown):
		v.scroll += scrollStep
	case inpututil.IsKeyJustPressed(ebiten.KeyUp):
		v.scroll = max(v.scroll-scrollStep, 0)
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	}
	return nil
}

func (v *Viewer) title() string {
	if len(v.types) == 0 {
		return fmt.Sprintf("%s: no structs or unions", v.filename)
	}
	fd := v.types[v.index]
	return fmt.Sprintf("%s  [%d/%d] %s, %d bits", v.filename, v.index+1, len(v.types), fd.Type.DisplayName(), fd.SizeBits)
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, v.title(), 4, 2)
	if len(v.types) == 0 {
		return
	}

	if v.page == nil || v.pageIndex != v.index {
		d := diagram.Build(v.types[v.index], v.bytes)
		v.page = ebiten.NewImageFromImage(d.Image())
		v.pageIndex = v.index
	}

	// Keep the last screenful reachable but no further.
	limit := max(v.page.Bounds().Dy()-(screenHeight-headerHeight), 0)
	v.scroll = min(v.scroll, limit)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(0, float64(headerHeight-v.scroll))
	screen.DrawImage(v.page, op)
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func newCmd() *cobra.Command {
	var (
		structName string
		pack       int
	)
	cmd := &cobra.Command{
		Use:   "layoutview <header.h>",
		Short: "Show struct and union byte maps in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.PackAlignment = pack * 8
			u, err := analyze.LoadPath(args[0], cfg)
			if err != nil {
				return err
			}
			res, err := u.ResolveAll(cmd.Context())
			if err != nil {
				return err
			}

			viewer := NewViewer(args[0], res, diagram.DefaultBytesPerRow)
			if structName != "" {
				if !viewer.selectByName(structName) {
					return fmt.Errorf("struct or union %q not found", structName)
				}
			}

			ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
			ebiten.SetWindowSize(screenWidth, screenHeight)
			ebiten.SetWindowTitle("cstruct2yaml layout viewer")
			return ebiten.RunGame(viewer)
		},
	}
	cmd.Flags().StringVarP(&structName, "struct", "s", "", "type to show first")
	cmd.Flags().IntVarP(&pack, "pack", "p", 1, "pack alignment in bytes")
	return cmd
}

// selectByName shows the type called name, reporting whether it exists.
func (v *Viewer) selectByName(name string) bool {
	for i, fd := range v.types {
		if fd.Name == name {
			v.index = i
			return true
		}
	}
	return false
}

func main() {
	if err := newCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
