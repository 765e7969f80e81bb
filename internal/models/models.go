package models

import (
	"database/sql"
	"time"
)

// Run is one completed (or in-progress) analysis: the full configuration
// snapshot plus headline results, so series and samples can be re-plotted
// without touching the imagery platform again.
type Run struct {
	ID            int64
	CreatedAt     time.Time
	RegionSource  string // "watershed", "geojson" or "point"
	RegionRef     string // watershed ID, file path or "lat,lon,buffer"
	RegionGeoJSON string
	StartYear     int
	EndYear       int
	StartMonth    int
	EndMonth      int
	Mode          string
	MaxCloudCover float64
	ResolutionM   int
	Clusters      int
	SampleSize    int
	Seed          int64
	SceneCount    int
	MeanSlope     sql.NullFloat64
}

// Scene is the archive metadata for one retrieved capture.
type Scene struct {
	ID          int64
	RunID       int64
	SceneID     string
	CapturedAt  time.Time
	CloudCover  float64
	ValidPixels int
}

// SampleRow is one exported point sample.
type SampleRow struct {
	RunID     int64
	Lon       float64
	Lat       float64
	Slope     float64
	MeanIndex float64
	Cluster   int
}
