package aggregate

import (
	"math"
	"testing"
	"time"

	"vegtrend/internal/raster"
	"vegtrend/internal/spectral"
)

func indexImage(t time.Time, value float64) spectral.IndexImage {
	g := raster.New(2, 2, raster.Extent{MinLon: 146, MinLat: -37, MaxLon: 147, MaxLat: -36})
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			g.Set(x, y, value)
		}
	}
	return spectral.IndexImage{Time: t, Grid: g}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"mean", ModeMean, false},
		{"median", ModeMedian, false},
		{"min", ModeMin, false},
		{"max", ModeMax, false},
		{"average", "", true},
		{"", "", true},
		{"Mean", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWindowContains(t *testing.T) {
	summer, err := NewWindow(11, 2) // southern summer, wraps the year
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	growing, err := NewWindow(9, 12)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	tests := []struct {
		w    Window
		t    time.Time
		want bool
	}{
		{summer, date(2024, time.December, 1), true},
		{summer, date(2024, time.January, 15), true},
		{summer, date(2024, time.June, 1), false},
		{growing, date(2024, time.September, 1), true},
		{growing, date(2024, time.December, 31), true},
		{growing, date(2024, time.August, 31), false},
	}
	for _, tt := range tests {
		if got := tt.w.Contains(tt.t); got != tt.want {
			t.Errorf("window %v Contains(%s) = %v, want %v", tt.w, tt.t.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestNewWindowRange(t *testing.T) {
	if _, err := NewWindow(0, 5); err == nil {
		t.Error("month 0 should be rejected")
	}
	if _, err := NewWindow(1, 13); err == nil {
		t.Error("month 13 should be rejected")
	}
}

// Count must equal the number of images actually passing the year/month
// filter, for every valid mode, including zero.
func TestAnnualCounts(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{
		indexImage(date(2021, time.March, 1), 0.2),
		indexImage(date(2021, time.April, 1), 0.3),
		indexImage(date(2023, time.March, 1), 0.5),
	}

	for _, mode := range []Mode{ModeMean, ModeMedian, ModeMin, ModeMax} {
		stats, err := Annual(images, window, mode, 2021, 2023)
		if err != nil {
			t.Fatalf("Annual(%s): %v", mode, err)
		}
		if len(stats) != 3 {
			t.Fatalf("Annual(%s) returned %d stats, want 3", mode, len(stats))
		}
		wantCounts := []int{2, 0, 1}
		for i, st := range stats {
			if st.Count != wantCounts[i] {
				t.Errorf("mode %s year %d: count = %d, want %d", mode, st.Year, st.Count, wantCounts[i])
			}
		}
	}
}

// A year with zero qualifying images must yield a valid fully-masked
// image, never an error that aborts the batch.
func TestAnnualZeroImageYear(t *testing.T) {
	window, _ := NewWindow(6, 8)
	images := []spectral.IndexImage{
		indexImage(date(2022, time.January, 1), 0.4), // outside window
	}

	stats, err := Annual(images, window, ModeMean, 2022, 2022)
	if err != nil {
		t.Fatalf("Annual: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d stats, want 1", len(stats))
	}
	st := stats[0]
	if st.Count != 0 {
		t.Errorf("count = %d, want 0", st.Count)
	}
	if st.Grid == nil || st.Grid.ValidCount() != 0 {
		t.Error("zero-image year should produce a fully-masked grid")
	}
}

func TestAnnualReducers(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{
		indexImage(date(2022, time.February, 1), 0.2),
		indexImage(date(2022, time.March, 1), 0.4),
		indexImage(date(2022, time.April, 1), 0.9),
	}

	tests := []struct {
		mode Mode
		want float64
	}{
		{ModeMean, 0.5},
		{ModeMedian, 0.4},
		{ModeMin, 0.2},
		{ModeMax, 0.9},
	}
	for _, tt := range tests {
		stats, err := Annual(images, window, tt.mode, 2022, 2022)
		if err != nil {
			t.Fatalf("Annual(%s): %v", tt.mode, err)
		}
		if got := stats[0].Grid.At(0, 0); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("mode %s: value = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestAnnualMeanStdDev(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{
		indexImage(date(2022, time.February, 1), 0.2),
		indexImage(date(2022, time.March, 1), 0.4),
	}

	stats, err := Annual(images, window, ModeMean, 2022, 2022)
	if err != nil {
		t.Fatalf("Annual: %v", err)
	}
	if stats[0].StdDev == nil {
		t.Fatal("mean mode should carry a stddev band")
	}
	want := math.Sqrt(0.02) // sample stddev of {0.2, 0.4}
	if got := stats[0].StdDev.At(0, 0); math.Abs(got-want) > 1e-9 {
		t.Errorf("stddev = %v, want %v", got, want)
	}
}

// The example scenario: per-year max over a [0.2, 0.4, 0.6] series returns
// each value with count 1.
func TestAnnualMaxScenario(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{
		indexImage(date(2020, time.March, 1), 0.2),
		indexImage(date(2021, time.March, 1), 0.4),
		indexImage(date(2022, time.March, 1), 0.6),
	}

	stats, err := Annual(images, window, ModeMax, 2020, 2022)
	if err != nil {
		t.Fatalf("Annual: %v", err)
	}
	want := []float64{0.2, 0.4, 0.6}
	for i, st := range stats {
		if st.Count != 1 {
			t.Errorf("year %d: count = %d, want 1", st.Year, st.Count)
		}
		if got := st.Grid.At(0, 0); math.Abs(got-want[i]) > 1e-12 {
			t.Errorf("year %d: max = %v, want %v", st.Year, got, want[i])
		}
	}
}

func TestAnnualShapeMismatch(t *testing.T) {
	small := raster.New(1, 1, raster.Extent{MinLon: 146, MinLat: -37, MaxLon: 147, MaxLat: -36})
	small.Set(0, 0, 0.5)
	images := []spectral.IndexImage{
		indexImage(date(2020, time.March, 1), 0.4),
		{Time: date(2020, time.April, 1), Grid: small},
	}

	w, _ := NewWindow(1, 12)
	if _, err := Annual(images, w, ModeMean, 2020, 2020); err == nil {
		t.Fatal("mismatched grid shapes should fail, not panic")
	}
}

func TestAnnualInvertedYearRange(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{indexImage(date(2022, time.March, 1), 0.2)}
	if _, err := Annual(images, window, ModeMean, 2023, 2021); err == nil {
		t.Fatal("inverted year range should error")
	}
}

func TestSeries(t *testing.T) {
	window, _ := NewWindow(1, 12)
	images := []spectral.IndexImage{
		indexImage(date(2021, time.March, 1), 0.2),
		indexImage(date(2021, time.March, 20), 0.4),
		indexImage(date(2023, time.March, 1), 0.6),
	}
	stats, err := Annual(images, window, ModeMean, 2021, 2023)
	if err != nil {
		t.Fatalf("Annual: %v", err)
	}

	points := Series(stats)
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if math.Abs(points[0].MeanIndex-0.3) > 1e-12 || points[0].ImageCount != 2 {
		t.Errorf("2021 point = %+v, want mean 0.3 count 2", points[0])
	}
	if points[1].ImageCount != 0 || points[1].MeanIndex != 0 {
		t.Errorf("2022 gap point = %+v, want zero count and zero mean", points[1])
	}
}
