package spectral

import "vegtrend/internal/raster"

// A Mask decides whether pixel (x, y) of a scene survives filtering.
// Masks are pure: they read band values and return keep/drop.
type Mask func(s *Scene, x, y int) bool

const (
	cloudProbThreshold = 20.0 // percent
	brightThreshold    = 0.9  // mean of blue+red reflectance
)

// CloudMask drops pixels with high cloud probability or a cloudy scene
// classification, including shadows.
func CloudMask(s *Scene, x, y int) bool {
	if cld, ok := s.Bands[BandCloudProb]; ok && !cld.Masked(x, y) && cld.At(x, y) > cloudProbThreshold {
		return false
	}
	if scl, ok := s.Bands[BandSCL]; ok && !scl.Masked(x, y) {
		switch int(scl.At(x, y)) {
		case sclCloudShadow, sclCloudMedium, sclCloudHigh:
			return false
		}
	}
	return true
}

// CirrusMask drops thin high cloud.
func CirrusMask(s *Scene, x, y int) bool {
	if scl, ok := s.Bands[BandSCL]; ok && !scl.Masked(x, y) && int(scl.At(x, y)) == sclCirrus {
		return false
	}
	return true
}

// SnowMask drops snow and ice pixels.
func SnowMask(s *Scene, x, y int) bool {
	if scl, ok := s.Bands[BandSCL]; ok && !scl.Masked(x, y) && int(scl.At(x, y)) == sclSnow {
		return false
	}
	return true
}

// BrightMask drops saturated white pixels where the mean of the blue and
// red reflectances exceeds the brightness threshold.
func BrightMask(s *Scene, x, y int) bool {
	blue, okB := s.Bands[BandBlue]
	red, okR := s.Bands[BandRed]
	if !okB || !okR || blue.Masked(x, y) || red.Masked(x, y) {
		return true
	}
	return (blue.At(x, y)+red.At(x, y))/2 <= brightThreshold
}

// WaterMask drops open water.
func WaterMask(s *Scene, x, y int) bool {
	if scl, ok := s.Bands[BandSCL]; ok && !scl.Masked(x, y) && int(scl.At(x, y)) == sclWater {
		return false
	}
	return true
}

// DefaultMasks is the full filter chain applied to every raw scene.
func DefaultMasks() []Mask {
	return []Mask{CloudMask, CirrusMask, SnowMask, BrightMask, WaterMask}
}

// Apply combines masks by logical AND: a pixel survives only if every mask
// passes. The input scene is not modified; the returned scene keeps the
// capture timestamp. A fully-masked result is legal and must be tolerated
// downstream. Re-applying the same masks removes no further pixels.
func Apply(s *Scene, masks ...Mask) *Scene {
	out := &Scene{ID: s.ID, Time: s.Time, CloudCover: s.CloudCover, Bands: make(map[Band]*raster.Grid, len(s.Bands))}
	for name, g := range s.Bands {
		out.Bands[name] = g.Clone()
	}
	var w, h int
	for _, g := range s.Bands {
		w, h = g.W, g.H
		break
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			keep := true
			for _, m := range masks {
				if !m(s, x, y) {
					keep = false
					break
				}
			}
			if keep {
				continue
			}
			for _, g := range out.Bands {
				g.MaskOut(x, y)
			}
		}
	}
	return out
}
