package charts

import (
	"os"
	"path/filepath"
	"testing"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/sample"
)

func TestSaveSeries(t *testing.T) {
	points := []aggregate.SeriesPoint{
		{Year: 2018, MeanIndex: 0.40, ImageCount: 4},
		{Year: 2019, MeanIndex: 0.43, ImageCount: 6},
		{Year: 2020, ImageCount: 0},
		{Year: 2021, MeanIndex: 0.48, ImageCount: 5},
	}

	path := filepath.Join(t.TempDir(), "series.png")
	if err := SaveSeries(points, path); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("series chart is empty")
	}
}

func TestSaveSeriesNoData(t *testing.T) {
	points := []aggregate.SeriesPoint{
		{Year: 2018, ImageCount: 0},
		{Year: 2019, ImageCount: 0},
	}
	path := filepath.Join(t.TempDir(), "series.png")
	if err := SaveSeries(points, path); err == nil {
		t.Fatal("SaveSeries with no datapoints should fail")
	}
}

func TestSaveClusterScatter(t *testing.T) {
	tbl := &sample.Table{
		Columns: []string{"slope", "mean_index", "cluster"},
		Rows: []sample.Row{
			{Lon: 147.0, Lat: -36.8, Values: []float64{0.01, 0.5, 0}},
			{Lon: 147.1, Lat: -36.8, Values: []float64{0.02, 0.6, 1}},
			{Lon: 147.2, Lat: -36.8, Values: []float64{-0.01, 0.3, 1}},
		},
	}

	path := filepath.Join(t.TempDir(), "clusters.png")
	if err := SaveClusterScatter(tbl, path); err != nil {
		t.Fatalf("SaveClusterScatter: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("scatter not written: %v", err)
	}
}

func TestSaveSlopeBoxes(t *testing.T) {
	tbl := &sample.Table{
		Columns: []string{"slope", "mean_index", "cluster"},
		Rows: []sample.Row{
			{Values: []float64{0.010, 0.5, 0}},
			{Values: []float64{0.012, 0.5, 0}},
			{Values: []float64{0.008, 0.5, 0}},
			{Values: []float64{-0.004, 0.3, 1}},
			{Values: []float64{-0.006, 0.3, 1}},
			{Values: []float64{-0.002, 0.3, 1}},
		},
	}

	path := filepath.Join(t.TempDir(), "boxes.png")
	if err := SaveSlopeBoxes(tbl, path); err != nil {
		t.Fatalf("SaveSlopeBoxes: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("boxes not written: %v", err)
	}
}

func TestSaveClusterScatterMissingColumn(t *testing.T) {
	tbl := &sample.Table{
		Columns: []string{"slope"},
		Rows:    []sample.Row{{Values: []float64{0.01}}},
	}
	if err := SaveClusterScatter(tbl, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Fatal("missing columns should fail")
	}
}
