package raster

import "math"

// Extent is a geographic bounding box in lon/lat degrees.
type Extent struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

func (e Extent) Width() float64  { return e.MaxLon - e.MinLon }
func (e Extent) Height() float64 { return e.MaxLat - e.MinLat }

// Grid is a single-band raster clipped to a region of interest.
// Masked pixels hold NaN.
type Grid struct {
	W, H   int
	Extent Extent
	data   []float64
}

func New(w, h int, extent Extent) *Grid {
	return &Grid{W: w, H: h, Extent: extent, data: make([]float64, w*h)}
}

// NewMasked returns a grid with every pixel masked.
func NewMasked(w, h int, extent Extent) *Grid {
	g := New(w, h, extent)
	for i := range g.data {
		g.data[i] = math.NaN()
	}
	return g
}

// Like returns an all-masked grid with the same shape and extent as g.
func Like(g *Grid) *Grid {
	return NewMasked(g.W, g.H, g.Extent)
}

func (g *Grid) At(x, y int) float64     { return g.data[y*g.W+x] }
func (g *Grid) Set(x, y int, v float64) { g.data[y*g.W+x] = v }
func (g *Grid) MaskOut(x, y int)        { g.data[y*g.W+x] = math.NaN() }

func (g *Grid) Masked(x, y int) bool { return math.IsNaN(g.data[y*g.W+x]) }

// ValidCount is the number of unmasked pixels.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func (g *Grid) Clone() *Grid {
	out := New(g.W, g.H, g.Extent)
	copy(out.data, g.data)
	return out
}

// SameShape reports whether two grids can be combined pixel-for-pixel.
func (g *Grid) SameShape(o *Grid) bool {
	return g.W == o.W && g.H == o.H
}

// LonLat returns the geographic center of pixel (x, y). Row 0 is the
// northern edge of the extent.
func (g *Grid) LonLat(x, y int) (lon, lat float64) {
	lon = g.Extent.MinLon + (float64(x)+0.5)/float64(g.W)*g.Extent.Width()
	lat = g.Extent.MaxLat - (float64(y)+0.5)/float64(g.H)*g.Extent.Height()
	return lon, lat
}

// Mean is the mean of unmasked pixels, or NaN when every pixel is masked.
func (g *Grid) Mean() float64 {
	sum, n := 0.0, 0
	for _, v := range g.data {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// MinMax returns the unmasked value range, or NaNs when fully masked.
func (g *Grid) MinMax() (min, max float64) {
	min, max = math.NaN(), math.NaN()
	for _, v := range g.data {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return min, max
}

// Layer is a named grid, the unit handed to the clustering and sampling
// stages.
type Layer struct {
	Name string
	Grid *Grid
}
