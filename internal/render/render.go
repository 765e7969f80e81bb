// Package render rasterizes analysis grids to PNG maps: a diverging
// red-to-green ramp for trend slopes, a sequential ramp for index values
// and a categorical palette for cluster labels. Masked pixels render
// transparent so the maps overlay cleanly on basemaps.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"vegtrend/internal/raster"
)

// scale is the pixel magnification applied to grids, which are coarse
// (tens of cells across) at typical analysis resolutions.
const scale = 8

const legendHeight = 24

// clusterPalette is a categorical palette for cluster labels. Labels
// beyond its length wrap around.
var clusterPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
}

// SlopePNG writes a trend-slope map. The color range is symmetric about
// zero so neutral pixels read as white regardless of the data range.
func SlopePNG(g *raster.Grid, w io.Writer) error {
	limit := 0.0
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if g.Masked(x, y) {
				continue
			}
			if a := math.Abs(g.At(x, y)); a > limit {
				limit = a
			}
		}
	}
	if limit == 0 {
		limit = 1
	}

	img := newCanvas(g)
	paint(img, g, func(v float64) color.RGBA {
		return diverging(v / limit)
	})
	drawLegend(img, fmt.Sprintf("slope %+.4f .. %+.4f /yr", -limit, limit))
	return png.Encode(w, img)
}

// IndexPNG writes a vegetation-index map on a brown-to-green ramp over
// the grid's own value range.
func IndexPNG(g *raster.Grid, w io.Writer) error {
	lo, hi := g.MinMax()
	if math.IsNaN(lo) || hi == lo {
		lo, hi = 0, 1
	}

	img := newCanvas(g)
	paint(img, g, func(v float64) color.RGBA {
		return sequential((v - lo) / (hi - lo))
	})
	drawLegend(img, fmt.Sprintf("index %.3f .. %.3f", lo, hi))
	return png.Encode(w, img)
}

// LabelPNG writes a cluster-label map. Label values are rounded to the
// nearest integer before palette lookup.
func LabelPNG(g *raster.Grid, w io.Writer) error {
	img := newCanvas(g)
	paint(img, g, func(v float64) color.RGBA {
		label := int(math.Round(v))
		if label < 0 {
			label = 0
		}
		return clusterPalette[label%len(clusterPalette)]
	})
	drawLegend(img, "cluster labels")
	return png.Encode(w, img)
}

func newCanvas(g *raster.Grid) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, g.W*scale, g.H*scale+legendHeight))
}

func paint(img *image.RGBA, g *raster.Grid, ramp func(float64) color.RGBA) {
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var c color.RGBA
			if !g.Masked(x, y) {
				c = ramp(g.At(x, y))
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
}

// diverging maps t in [-1, 1] onto red through white to green.
func diverging(t float64) color.RGBA {
	t = clamp(t, -1, 1)
	if t < 0 {
		return lerp(color.RGBA{165, 0, 38, 255}, color.RGBA{255, 255, 255, 255}, t+1)
	}
	return lerp(color.RGBA{255, 255, 255, 255}, color.RGBA{0, 104, 55, 255}, t)
}

// sequential maps t in [0, 1] onto brown through yellow to green.
func sequential(t float64) color.RGBA {
	t = clamp(t, 0, 1)
	if t < 0.5 {
		return lerp(color.RGBA{140, 81, 10, 255}, color.RGBA{246, 232, 195, 255}, t*2)
	}
	return lerp(color.RGBA{246, 232, 195, 255}, color.RGBA{0, 104, 55, 255}, (t-0.5)*2)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func drawLegend(img *image.RGBA, text string) {
	bounds := img.Bounds()
	top := bounds.Max.Y - legendHeight
	for y := top; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{230, 230, 230, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(6), Y: fixed.I(top + 16)},
	}
	d.DrawString(text)
}
