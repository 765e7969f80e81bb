// Package sample converts raster bands into a flat point-sample table for
// local statistical plotting and CSV export. The sample is a bounded
// random draw within the region of interest; the bound is an upper limit,
// not a guarantee.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"vegtrend/internal/raster"
	"vegtrend/internal/region"
)

// ShapeError means the table is missing a band the plotting stage expects.
// Fatal for plotting only; upstream stages never produce it.
type ShapeError struct {
	Band string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("sample table missing band %q", e.Band)
}

// Row is one sampled point. Values is parallel to Table.Columns.
type Row struct {
	Lon, Lat float64
	Values   []float64
}

type Table struct {
	Columns []string
	Rows    []Row
}

// FromStack draws up to maxRows pixels whose centers fall inside the
// region and that are unmasked in every layer. Regions smaller than the
// bound return fewer rows. Deterministic for a given seed.
func FromStack(layers []raster.Layer, reg *region.Region, maxRows int, seed int64) (*Table, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("sample: no layers")
	}
	tmpl := layers[0].Grid
	for _, l := range layers[1:] {
		if !l.Grid.SameShape(tmpl) {
			return nil, fmt.Errorf("sample: layer %s shape differs", l.Name)
		}
	}

	t := &Table{Columns: make([]string, len(layers))}
	for i, l := range layers {
		t.Columns[i] = l.Name
	}

	for y := 0; y < tmpl.H; y++ {
		for x := 0; x < tmpl.W; x++ {
			lon, lat := tmpl.LonLat(x, y)
			if reg != nil && !reg.Contains(lon, lat) {
				continue
			}
			values := make([]float64, len(layers))
			masked := false
			for i, l := range layers {
				v := l.Grid.At(x, y)
				if math.IsNaN(v) {
					masked = true
					break
				}
				values[i] = v
			}
			if masked {
				continue
			}
			t.Rows = append(t.Rows, Row{Lon: lon, Lat: lat, Values: values})
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(t.Rows), func(i, j int) { t.Rows[i], t.Rows[j] = t.Rows[j], t.Rows[i] })
	if len(t.Rows) > maxRows {
		t.Rows = t.Rows[:maxRows]
	}
	return t, nil
}

// Column extracts one band's values across all rows.
func (t *Table) Column(name string) ([]float64, error) {
	for i, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for j, r := range t.Rows {
			out[j] = r.Values[i]
		}
		return out, nil
	}
	return nil, &ShapeError{Band: name}
}

// WriteCSV emits lon, lat and one column per band. Band columns are
// dynamic per run, so rows are encoded by hand rather than through struct
// tags.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"lon", "lat"}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, 0, len(header))
	for _, r := range t.Rows {
		rec = rec[:0]
		rec = append(rec, formatFloat(r.Lon), formatFloat(r.Lat))
		for _, v := range r.Values {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
