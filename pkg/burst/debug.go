package burst

import(
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/burstmerge/burstmerge/pkg/bmath"
)

// WritePNG16 saves a grid as 16-bit grayscale, scaled so maxValue
// maps to full white.
func WritePNG16(g *bmath.Grid, maxValue float32, filename string) error {
	if maxValue <= 0 {
		maxValue = sensorMax
	}
	img := image.NewGray16(image.Rect(0, 0, g.Dx(), g.Dy()))
	for y:=0; y<g.Dy(); y++ {
		for x:=0; x<g.Dx(); x++ {
			v := g.Get(x, y) / maxValue * 65535.0
			if v < 0 { v = 0 }
			if v > 65535 { v = 65535 }
			img.SetGray16(x, y, color.Gray16{uint16(v)})
		}
	}

	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()
	return png.Encode(writer, img)
}

// WriteAlignmentPNG renders an alignment field as a vector plot: one
// cell per tile, line direction is the displacement, hue encodes the
// angle and saturation the magnitude. Handy for eyeballing whether
// the motion field is coherent.
func WriteAlignmentPNG(field AlignmentField, filename string) error {
	const cell = 12
	dc := gg.NewContext(field.TilesX*cell, field.TilesY*cell)
	dc.SetRGB(0.08, 0.08, 0.08)
	dc.Clear()
	dc.SetLineWidth(1.5)

	maxMag := 1.0
	for _, off := range field.Offsets {
		if m := math.Hypot(float64(off.X), float64(off.Y)); m > maxMag {
			maxMag = m
		}
	}

	for ty:=0; ty<field.TilesY; ty++ {
		for tx:=0; tx<field.TilesX; tx++ {
			off := field.At(tx, ty)
			cx := float64(tx)*cell + cell/2
			cy := float64(ty)*cell + cell/2

			mag := math.Hypot(float64(off.X), float64(off.Y))
			if mag == 0 {
				dc.SetRGB(0.3, 0.3, 0.3)
				dc.DrawPoint(cx, cy, 1)
				dc.Fill()
				continue
			}

			angle := math.Atan2(float64(off.Y), float64(off.X))*180/math.Pi + 180
			dc.SetColor(colorful.Hsv(angle, 0.4+0.6*mag/maxMag, 1.0))
			scale := (cell / 2.0) / maxMag
			dc.DrawLine(cx, cy, cx+float64(off.X)*scale, cy+float64(off.Y)*scale)
			dc.Stroke()
		}
	}

	return dc.SavePNG(filename)
}

// hdrGrid adapts a grid to the hdr.Image interfaces so the merged
// buffer can be dumped as Radiance HDR and inspected in external HDR
// tools before any tone correction.
type hdrGrid struct {
	g     *bmath.Grid
	scale float64
}

func (hg hdrGrid)ColorModel() color.Model { return hdrcolor.RGBModel }
func (hg hdrGrid)Bounds() image.Rectangle { return image.Rect(0, 0, hg.g.Dx(), hg.g.Dy()) }
func (hg hdrGrid)Size() int               { return hg.g.Dx() * hg.g.Dy() }
func (hg hdrGrid)At(x, y int) color.Color { return hg.HDRAt(x, y) }

func (hg hdrGrid)HDRAt(x, y int) hdrcolor.Color {
	v := float64(hg.g.Get(x, y)) * hg.scale
	return hdrcolor.RGB{R: v, G: v, B: v}
}

// WriteHDR dumps the grid as a grayscale Radiance HDR file,
// normalized so maxValue maps to 1.0.
func WriteHDR(g *bmath.Grid, maxValue float32, filename string) error {
	if maxValue <= 0 {
		maxValue = sensorMax
	}
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()
	return rgbe.Encode(writer, hdrGrid{g: g, scale: 1 / float64(maxValue)})
}
