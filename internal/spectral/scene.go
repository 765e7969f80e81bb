// Package spectral holds per-scene band arithmetic: vegetation index
// derivation and the cloud/snow/bright/water masking pipeline applied
// before any statistic is computed.
package spectral

import (
	"fmt"
	"time"

	"vegtrend/internal/raster"
)

// Band names follow the Sentinel-2 convention used by the imagery platform.
type Band string

const (
	BandBlue      Band = "B02"
	BandRed       Band = "B04"
	BandNIR       Band = "B08"
	BandSWIR      Band = "B11"
	BandSCL       Band = "SCL" // scene classification layer
	BandCloudProb Band = "CLD" // cloud probability percent
)

// Scene classification values relevant to masking.
const (
	sclCloudShadow = 3
	sclWater       = 6
	sclCloudMedium = 8
	sclCloudHigh   = 9
	sclCirrus      = 10
	sclSnow        = 11
)

// Scene is one clipped multi-band capture. The capture timestamp survives
// every derived product.
type Scene struct {
	ID         string
	Time       time.Time
	CloudCover float64
	Bands      map[Band]*raster.Grid
}

func (s *Scene) Band(b Band) (*raster.Grid, error) {
	g, ok := s.Bands[b]
	if !ok {
		return nil, fmt.Errorf("scene %s: band %s missing", s.ID, b)
	}
	return g, nil
}

// IndexImage is a single derived index band tagged with its source capture
// time.
type IndexImage struct {
	SceneID string
	Time    time.Time
	Grid    *raster.Grid
}

// NDVI derives (nir-red)/(nir+red). Pixels masked in either input band, or
// with a zero denominator, are masked in the output.
func NDVI(s *Scene) (IndexImage, error) {
	nir, err := s.Band(BandNIR)
	if err != nil {
		return IndexImage{}, err
	}
	red, err := s.Band(BandRed)
	if err != nil {
		return IndexImage{}, err
	}
	if !nir.SameShape(red) {
		return IndexImage{}, fmt.Errorf("scene %s: band shapes differ", s.ID)
	}

	out := raster.Like(nir)
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			if nir.Masked(x, y) || red.Masked(x, y) {
				continue
			}
			n, r := nir.At(x, y), red.At(x, y)
			if n+r == 0 {
				continue
			}
			out.Set(x, y, (n-r)/(n+r))
		}
	}
	return IndexImage{SceneID: s.ID, Time: s.Time, Grid: out}, nil
}
