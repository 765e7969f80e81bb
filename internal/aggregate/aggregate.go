// Package aggregate groups masked index images by year within a month
// window and reduces each group to one statistic image tagged with the
// count of contributing captures.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"vegtrend/internal/raster"
	"vegtrend/internal/spectral"
)

// Mode is the per-pixel reducer. Exactly four values are valid; anything
// else is a configuration error, never a silent default.
type Mode string

const (
	ModeMean   Mode = "mean"
	ModeMedian Mode = "median"
	ModeMin    Mode = "min"
	ModeMax    Mode = "max"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMean, ModeMedian, ModeMin, ModeMax:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid analysis mode %q: must be one of mean, median, min, max", s)
}

// Window is a season filter over calendar months, inclusive on both ends.
// Start after End wraps across the year boundary (e.g. Nov–Feb).
type Window struct {
	Start, End time.Month
}

func NewWindow(start, end int) (Window, error) {
	if start < 1 || start > 12 || end < 1 || end > 12 {
		return Window{}, fmt.Errorf("month window %d-%d out of range", start, end)
	}
	return Window{Start: time.Month(start), End: time.Month(end)}, nil
}

func (w Window) Contains(t time.Time) bool {
	m := t.Month()
	if w.Start <= w.End {
		return m >= w.Start && m <= w.End
	}
	return m >= w.Start || m <= w.End
}

// Stat is one reduced image: the statistic grid, the group year and the
// number of source images that contributed. Count zero means the grid is
// fully masked, which is a valid result, not an error.
type Stat struct {
	Year   int
	Count  int
	Mode   Mode
	Grid   *raster.Grid
	StdDev *raster.Grid // populated for ModeMean only
}

// Annual filters images to the window, groups them by calendar year from
// startYear through endYear inclusive, and reduces each group. Years with
// no qualifying images yield a fully-masked Stat with Count 0. When the
// input collection is empty there is no grid shape to masked-fill from, so
// the result is empty.
func Annual(images []spectral.IndexImage, w Window, mode Mode, startYear, endYear int) ([]Stat, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("year range %d-%d inverted", startYear, endYear)
	}
	if len(images) == 0 {
		return nil, nil
	}
	tmpl := images[0].Grid
	for _, img := range images {
		if !img.Grid.SameShape(tmpl) {
			return nil, fmt.Errorf("aggregate: image shapes differ")
		}
	}

	byYear := make(map[int][]spectral.IndexImage)
	for _, img := range images {
		if !w.Contains(img.Time) {
			continue
		}
		y := img.Time.Year()
		if y < startYear || y > endYear {
			continue
		}
		byYear[y] = append(byYear[y], img)
	}

	stats := make([]Stat, 0, endYear-startYear+1)
	for y := startYear; y <= endYear; y++ {
		stats = append(stats, reduceYear(y, byYear[y], mode, tmpl))
	}
	return stats, nil
}

func reduceYear(year int, images []spectral.IndexImage, mode Mode, tmpl *raster.Grid) Stat {
	st := Stat{Year: year, Count: len(images), Mode: mode, Grid: raster.Like(tmpl)}
	if mode == ModeMean {
		st.StdDev = raster.Like(tmpl)
	}
	if len(images) == 0 {
		return st
	}

	vals := make([]float64, 0, len(images))
	for y := 0; y < tmpl.H; y++ {
		for x := 0; x < tmpl.W; x++ {
			vals = vals[:0]
			for _, img := range images {
				if v := img.Grid.At(x, y); !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			if len(vals) == 0 {
				continue
			}
			st.Grid.Set(x, y, reduce(vals, mode))
			if mode == ModeMean {
				st.StdDev.Set(x, y, stddev(vals))
			}
		}
	}
	return st
}

func reduce(vals []float64, mode Mode) float64 {
	switch mode {
	case ModeMean:
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	case ModeMedian:
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2]
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2
	case ModeMin:
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case ModeMax:
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return max
	}
	// ParseMode is the only way to obtain a Mode.
	panic(fmt.Sprintf("unreachable mode %q", mode))
}

func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}
