package config

import (
	"errors"
	"testing"
)

func validAnalysis() Analysis {
	return Analysis{
		Region:    RegionSource{WatershedID: "405219"},
		StartYear: 2019,
		EndYear:   2024,
		Mode:      "mean",
	}.Defaults()
}

func TestValidateOK(t *testing.T) {
	if err := validAnalysis().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Analysis)
		field  string
	}{
		{"no region source", func(a *Analysis) { a.Region = RegionSource{} }, "region"},
		{"two region sources", func(a *Analysis) { a.Region.GeoJSONPath = "aoi.geojson" }, "region"},
		{"missing years", func(a *Analysis) { a.StartYear, a.EndYear = 0, 0 }, "years"},
		{"inverted years", func(a *Analysis) { a.StartYear, a.EndYear = 2024, 2019 }, "years"},
		{"bad month", func(a *Analysis) { a.StartMonth = 13 }, "months"},
		{"bad mode", func(a *Analysis) { a.Mode = "average" }, "mode"},
		{"empty mode", func(a *Analysis) { a.Mode = "" }, "mode"},
		{"cloud cover out of range", func(a *Analysis) { a.MaxCloudCover = 150 }, "max-cloud-cover"},
		{"zero clusters", func(a *Analysis) { a.Clusters = -1 }, "clusters"},
		{"tiny resolution", func(a *Analysis) { a.ResolutionM = 5 }, "resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis()
			tt.mutate(&a)
			err := a.Validate()
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *config.Error", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// An invalid mode must fail validation, never silently default.
func TestModeNeverDefaults(t *testing.T) {
	a := validAnalysis()
	a.Mode = "avg"
	if err := a.Validate(); err == nil {
		t.Fatal("invalid mode must not validate")
	}
}

func TestDefaults(t *testing.T) {
	a := Analysis{
		Region:    RegionSource{GeoJSONPath: "aoi.geojson"},
		StartYear: 2020,
		EndYear:   2022,
		Mode:      "max",
	}.Defaults()

	if a.StartMonth != 1 || a.EndMonth != 12 {
		t.Errorf("default months = %d-%d, want 1-12", a.StartMonth, a.EndMonth)
	}
	if a.Clusters != 4 {
		t.Errorf("default clusters = %d, want 4", a.Clusters)
	}
	if a.SampleSize != 500 {
		t.Errorf("default sample size = %d, want 500", a.SampleSize)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

// Zero cloud cover means cloud-free scenes only; Defaults must not turn
// it into the CLI's 30 percent ceiling.
func TestDefaultsKeepZeroCloudCover(t *testing.T) {
	a := Analysis{
		Region:        RegionSource{WatershedID: "405219"},
		StartYear:     2020,
		EndYear:       2022,
		Mode:          "mean",
		MaxCloudCover: 0,
	}.Defaults()

	if a.MaxCloudCover != 0 {
		t.Errorf("MaxCloudCover = %v after Defaults, want 0", a.MaxCloudCover)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("zero cloud cover should validate: %v", err)
	}
}

func TestWindowAndMode(t *testing.T) {
	a := validAnalysis()
	a.StartMonth, a.EndMonth = 11, 2
	if err := a.Validate(); err != nil {
		t.Fatalf("wrapping window should validate: %v", err)
	}
	w := a.Window()
	if w.Start != 11 || w.End != 2 {
		t.Errorf("window = %v", w)
	}
	if a.AggMode() != "mean" {
		t.Errorf("mode = %q", a.AggMode())
	}
}
