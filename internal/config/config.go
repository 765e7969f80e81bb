// Package config defines the immutable analysis configuration threaded
// through every pipeline stage.
package config

import (
	"fmt"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/cluster"
)

// Error is a configuration error: invalid analysis mode, inconsistent
// year/month ranges and the like. Always fatal before any remote call.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// RegionSource selects exactly one of the three region-of-interest inputs.
type RegionSource struct {
	WatershedID string  // boundary lookup by ID
	GeoJSONPath string  // uploaded polygon file
	Lat, Lon    float64 // buffered point
	BufferM     float64
}

func (rs RegionSource) kind() string {
	switch {
	case rs.WatershedID != "":
		return "watershed"
	case rs.GeoJSONPath != "":
		return "geojson"
	case rs.BufferM > 0:
		return "point"
	}
	return ""
}

// Analysis is the full run configuration. Construct, Validate once, then
// treat as read-only; every stage receives it explicitly.
type Analysis struct {
	Region RegionSource

	StartYear, EndYear   int
	StartMonth, EndMonth int

	Mode          string  // mean, median, min or max
	MaxCloudCover float64 // percent, scene-level filter

	Clusters   int
	SampleSize int
	Seed       int64

	ResolutionM int // pixel size of clipped scene rasters, meters
}

// Defaults fills unset numeric knobs, where the zero value could not be a
// deliberate setting. MaxCloudCover is left alone: zero there means
// cloud-free scenes only, and the CLI flag carries its own default.
// Region, years and mode stay as given and are checked by Validate.
func (a Analysis) Defaults() Analysis {
	if a.StartMonth == 0 {
		a.StartMonth = 1
	}
	if a.EndMonth == 0 {
		a.EndMonth = 12
	}
	if a.Clusters == 0 {
		a.Clusters = cluster.DefaultClusters
	}
	if a.SampleSize == 0 {
		a.SampleSize = 500
	}
	if a.ResolutionM == 0 {
		a.ResolutionM = 120
	}
	return a
}

func (a Analysis) Validate() error {
	if a.Region.kind() == "" {
		return &Error{Field: "region", Reason: "one of watershed ID, geojson path or buffered point required"}
	}
	sources := 0
	if a.Region.WatershedID != "" {
		sources++
	}
	if a.Region.GeoJSONPath != "" {
		sources++
	}
	if a.Region.BufferM > 0 {
		sources++
	}
	if sources > 1 {
		return &Error{Field: "region", Reason: "multiple region sources given, choose one"}
	}

	if a.StartYear == 0 || a.EndYear == 0 {
		return &Error{Field: "years", Reason: "start and end year required"}
	}
	if a.StartYear > a.EndYear {
		return &Error{Field: "years", Reason: fmt.Sprintf("start year %d after end year %d", a.StartYear, a.EndYear)}
	}

	if _, err := aggregate.NewWindow(a.StartMonth, a.EndMonth); err != nil {
		return &Error{Field: "months", Reason: err.Error()}
	}

	if _, err := aggregate.ParseMode(a.Mode); err != nil {
		return &Error{Field: "mode", Reason: err.Error()}
	}

	if a.MaxCloudCover < 0 || a.MaxCloudCover > 100 {
		return &Error{Field: "max-cloud-cover", Reason: fmt.Sprintf("%v percent out of range", a.MaxCloudCover)}
	}
	if a.Clusters < 1 {
		return &Error{Field: "clusters", Reason: "must be at least 1"}
	}
	if a.SampleSize < 1 {
		return &Error{Field: "sample-size", Reason: "must be at least 1"}
	}
	if a.ResolutionM < 10 {
		return &Error{Field: "resolution", Reason: "below 10m makes clipped rasters too large to retrieve"}
	}
	return nil
}

// AggMode returns the validated reducer mode.
func (a Analysis) AggMode() aggregate.Mode {
	m, err := aggregate.ParseMode(a.Mode)
	if err != nil {
		panic("config: AggMode called before Validate")
	}
	return m
}

// Window returns the validated month window.
func (a Analysis) Window() aggregate.Window {
	w, err := aggregate.NewWindow(a.StartMonth, a.EndMonth)
	if err != nil {
		panic("config: Window called before Validate")
	}
	return w
}
