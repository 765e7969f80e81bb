// Package trend fits a per-pixel ordinary least-squares line of index
// value against elapsed time, for intra-season trends over individual
// captures and for year-over-year trends of annual aggregates.
package trend

import (
	"fmt"
	"math"
	"time"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/raster"
	"vegtrend/internal/spectral"
)

// Time is normalized to elapsed years before fitting so the regression is
// well conditioned. Fixed design parameter, not user-configurable.
const secondsPerYear = 365.25 * 24 * 60 * 60

// Surface is the fit result. Slope is the quantity visualized as rate of
// change, in index units per year. Pixels with fewer than two usable
// samples are masked in both grids.
type Surface struct {
	Slope     *raster.Grid
	Intercept *raster.Grid
	Start     time.Time // origin of the normalized time axis
	Count     int       // images or aggregates that entered the fit
}

// Fit regresses each pixel across a collection of captures. Fully-masked
// captures contribute nothing but do not fail the fit; a fit over fewer
// than two images returns an all-masked surface.
func Fit(images []spectral.IndexImage) (*Surface, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("trend: empty collection")
	}
	tmpl := images[0].Grid
	start := images[0].Time
	for _, img := range images {
		if img.Time.Before(start) {
			start = img.Time
		}
		if !img.Grid.SameShape(tmpl) {
			return nil, fmt.Errorf("trend: image shapes differ")
		}
	}

	surf := &Surface{
		Slope:     raster.Like(tmpl),
		Intercept: raster.Like(tmpl),
		Start:     start,
		Count:     len(images),
	}

	xs := make([]float64, 0, len(images))
	ys := make([]float64, 0, len(images))
	for py := 0; py < tmpl.H; py++ {
		for px := 0; px < tmpl.W; px++ {
			xs, ys = xs[:0], ys[:0]
			for _, img := range images {
				v := img.Grid.At(px, py)
				if math.IsNaN(v) {
					continue
				}
				xs = append(xs, img.Time.Sub(start).Seconds()/secondsPerYear)
				ys = append(ys, v)
			}
			slope, intercept, ok := ols(xs, ys)
			if !ok {
				continue
			}
			surf.Slope.Set(px, py, slope)
			surf.Intercept.Set(px, py, intercept)
		}
	}
	return surf, nil
}

// FitStats regresses each pixel across annual statistic images: the trend
// of the trend when the inputs are themselves fitted or reduced per year.
// Zero-count years are skipped; the time axis is whole elapsed years.
func FitStats(stats []aggregate.Stat) (*Surface, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("trend: empty aggregate collection")
	}
	tmpl := stats[0].Grid
	firstYear := stats[0].Year
	used := 0
	for _, st := range stats {
		if st.Year < firstYear {
			firstYear = st.Year
		}
		if st.Count > 0 {
			used++
		}
	}

	surf := &Surface{
		Slope:     raster.Like(tmpl),
		Intercept: raster.Like(tmpl),
		Start:     time.Date(firstYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		Count:     used,
	}

	xs := make([]float64, 0, len(stats))
	ys := make([]float64, 0, len(stats))
	for py := 0; py < tmpl.H; py++ {
		for px := 0; px < tmpl.W; px++ {
			xs, ys = xs[:0], ys[:0]
			for _, st := range stats {
				if st.Count == 0 {
					continue
				}
				v := st.Grid.At(px, py)
				if math.IsNaN(v) {
					continue
				}
				xs = append(xs, float64(st.Year-firstYear))
				ys = append(ys, v)
			}
			slope, intercept, ok := ols(xs, ys)
			if !ok {
				continue
			}
			surf.Slope.Set(px, py, slope)
			surf.Intercept.Set(px, py, intercept)
		}
	}
	return surf, nil
}

// FitSeries regresses the regional mean series, for the chart overlay.
func FitSeries(points []aggregate.SeriesPoint) (slope, intercept float64, ok bool) {
	var xs, ys []float64
	firstYear := 0
	for _, p := range points {
		if p.ImageCount == 0 {
			continue
		}
		if len(xs) == 0 {
			firstYear = p.Year
		}
		xs = append(xs, float64(p.Year-firstYear))
		ys = append(ys, p.MeanIndex)
	}
	return ols(xs, ys)
}

func ols(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	if len(xs) < 2 {
		return 0, 0, false
	}
	var sumX, sumY, sumXX, sumXY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXX += xs[i] * xs[i]
		sumXY += xs[i] * ys[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// All samples at the same instant.
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}
