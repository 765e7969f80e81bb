// Package pipeline runs a full analysis: resolve the region, pull and mask
// scenes, reduce to annual composites, fit the per-pixel trend, cluster
// trend behavior and draw the point sample. Each stage takes explicit
// inputs and returns explicit outputs; nothing is recomputed behind the
// caller's back.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/catalog"
	"vegtrend/internal/cluster"
	"vegtrend/internal/config"
	"vegtrend/internal/metrics"
	"vegtrend/internal/models"
	"vegtrend/internal/raster"
	"vegtrend/internal/region"
	"vegtrend/internal/sample"
	"vegtrend/internal/spectral"
	"vegtrend/internal/store"
	"vegtrend/internal/trend"
)

// Catalog is the subset of the imagery platform the pipeline needs.
type Catalog interface {
	SearchScenes(ctx context.Context, reg *region.Region, start, end time.Time, maxCloud float64) ([]catalog.SceneMeta, error)
	FetchScenes(ctx context.Context, metas []catalog.SceneMeta, reg *region.Region, resolutionM int) ([]*spectral.Scene, error)
	LookupBoundary(ctx context.Context, watershedID string) (*region.Region, error)
}

type Pipeline struct {
	cfg   config.Analysis
	cat   Catalog
	store *store.Store // nil disables persistence
}

func New(cfg config.Analysis, cat Catalog, st *store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, cat: cat, store: st}
}

// Result collects every stage output. SceneCount zero is a complete,
// valid result: all grids nil or fully masked, Series empty.
type Result struct {
	RunID      int64
	Region     *region.Region
	SceneCount int
	Stats      []aggregate.Stat
	Series     []aggregate.SeriesPoint
	Surface    *trend.Surface
	MeanIndex  *raster.Grid // per-pixel mean across contributing years
	Labels     *raster.Grid
	ClusterLen []int
	Samples    *sample.Table
	MeanSlope  float64 // NaN when no pixel had enough samples
}

// Run executes every stage. The configuration is validated first; a
// configuration error aborts before any remote call.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, err := p.resolveRegion(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{Region: reg, MeanSlope: math.NaN()}

	if p.store != nil {
		run, err := p.createRun(cfg, reg)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		res.RunID = run.ID
	}

	images, err := p.collect(ctx, cfg, reg, res.RunID)
	if err != nil {
		return nil, err
	}
	res.SceneCount = len(images)

	if len(images) == 0 {
		log.Printf("pipeline: no usable scenes for %d-%d, returning empty result", cfg.StartYear, cfg.EndYear)
		return res, p.finish(res)
	}

	stats, err := aggregate.Annual(images, cfg.Window(), cfg.AggMode(), cfg.StartYear, cfg.EndYear)
	if err != nil {
		return nil, err
	}
	res.Stats = stats
	res.Series = aggregate.Series(stats)

	surf, err := trend.FitStats(stats)
	if err != nil {
		return nil, err
	}
	res.Surface = surf
	if surf.Slope.ValidCount() > 0 {
		res.MeanSlope = surf.Slope.Mean()
	}

	layers := featureLayers(surf, stats)
	res.MeanIndex = layers[1].Grid
	if err := p.clusterAndSample(cfg, reg, layers, res); err != nil {
		return nil, err
	}

	return res, p.finish(res)
}

func (p *Pipeline) resolveRegion(ctx context.Context, cfg config.Analysis) (*region.Region, error) {
	switch {
	case cfg.Region.WatershedID != "":
		return p.cat.LookupBoundary(ctx, cfg.Region.WatershedID)
	case cfg.Region.GeoJSONPath != "":
		f, err := os.Open(cfg.Region.GeoJSONPath)
		if err != nil {
			return nil, &config.Error{Field: "region", Reason: err.Error()}
		}
		defer f.Close()
		reg, err := region.FromGeoJSON(f)
		if err != nil {
			return nil, &config.Error{Field: "region", Reason: err.Error()}
		}
		return reg, nil
	default:
		return region.FromPoint(cfg.Region.Lat, cfg.Region.Lon, cfg.Region.BufferM)
	}
}

// collect searches the archive across the full year range, keeps captures
// inside the month window, retrieves them, masks them and computes the
// index image for each. Scenes whose pixels are all masked are kept: they
// contribute a count of zero everywhere but keep the year's record honest.
func (p *Pipeline) collect(ctx context.Context, cfg config.Analysis, reg *region.Region, runID int64) ([]spectral.IndexImage, error) {
	start := time.Date(cfg.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(cfg.EndYear, time.December, 31, 23, 59, 59, 0, time.UTC)

	metas, err := p.cat.SearchScenes(ctx, reg, start, end, cfg.MaxCloudCover)
	if err != nil {
		return nil, err
	}

	window := cfg.Window()
	kept := metas[:0]
	for _, m := range metas {
		if window.Contains(m.CapturedAt) {
			kept = append(kept, m)
		}
	}
	log.Printf("pipeline: %d of %d scenes inside month window %d-%d", len(kept), len(metas), cfg.StartMonth, cfg.EndMonth)

	scenes, err := p.cat.FetchScenes(ctx, kept, reg, cfg.ResolutionM)
	if err != nil {
		return nil, err
	}

	images := make([]spectral.IndexImage, 0, len(scenes))
	for i, sc := range scenes {
		masked := spectral.Apply(sc, spectral.DefaultMasks()...)
		img, err := spectral.NDVI(masked)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
		}
		valid := img.Grid.ValidCount()
		if valid == 0 {
			metrics.ScenesFullyMasked.Inc()
		}
		images = append(images, img)

		if p.store != nil {
			rec := models.Scene{
				RunID:       runID,
				SceneID:     kept[i].ID,
				CapturedAt:  kept[i].CapturedAt,
				CloudCover:  kept[i].CloudCover,
				ValidPixels: valid,
			}
			if err := p.store.InsertScene(rec); err != nil {
				return nil, fmt.Errorf("record scene %s: %w", kept[i].ID, err)
			}
		}
	}
	return images, nil
}

// featureLayers builds the clustering feature stack: the fitted slope and
// the pixel's mean annual index. A pixel masked in either layer is
// excluded from clustering and sampling.
func featureLayers(surf *trend.Surface, stats []aggregate.Stat) []raster.Layer {
	mean := raster.Like(surf.Slope)
	for y := 0; y < mean.H; y++ {
		for x := 0; x < mean.W; x++ {
			var sum float64
			var n int
			for _, st := range stats {
				if st.Count == 0 || st.Grid.Masked(x, y) {
					continue
				}
				sum += st.Grid.At(x, y)
				n++
			}
			if n > 0 {
				mean.Set(x, y, sum/float64(n))
			}
		}
	}
	return []raster.Layer{
		{Name: "slope", Grid: surf.Slope},
		{Name: "mean_index", Grid: mean},
	}
}

func (p *Pipeline) clusterAndSample(cfg config.Analysis, reg *region.Region, layers []raster.Layer, res *Result) error {
	feats, err := cluster.SampleFeatures(layers, cfg.SampleSize, cfg.Seed)
	if err != nil {
		return err
	}
	if len(feats) < cfg.Clusters {
		log.Printf("pipeline: %d usable pixels, fewer than %d clusters, skipping clustering", len(feats), cfg.Clusters)
		return nil
	}

	model, err := cluster.New(cfg.Clusters, cfg.Seed).Fit(feats)
	if err != nil {
		return err
	}
	labels, err := model.Label(layers)
	if err != nil {
		return err
	}
	res.Labels = labels

	res.ClusterLen = make([]int, cfg.Clusters)
	for y := 0; y < labels.H; y++ {
		for x := 0; x < labels.W; x++ {
			if !labels.Masked(x, y) {
				res.ClusterLen[int(labels.At(x, y))]++
			}
		}
	}

	stack := append(append([]raster.Layer{}, layers...), raster.Layer{Name: "cluster", Grid: labels})
	tbl, err := sample.FromStack(stack, reg, cfg.SampleSize, cfg.Seed)
	if err != nil {
		return err
	}
	res.Samples = tbl
	return nil
}

func (p *Pipeline) createRun(cfg config.Analysis, reg *region.Region) (*models.Run, error) {
	var geo bytes.Buffer
	if err := reg.WriteGeoJSON(&geo); err != nil {
		return nil, err
	}
	run := &models.Run{
		RegionSource:  regionKind(cfg.Region),
		RegionRef:     regionRef(cfg.Region),
		RegionGeoJSON: geo.String(),
		StartYear:     cfg.StartYear,
		EndYear:       cfg.EndYear,
		StartMonth:    cfg.StartMonth,
		EndMonth:      cfg.EndMonth,
		Mode:          cfg.Mode,
		MaxCloudCover: cfg.MaxCloudCover,
		ResolutionM:   cfg.ResolutionM,
		Clusters:      cfg.Clusters,
		SampleSize:    cfg.SampleSize,
		Seed:          cfg.Seed,
	}
	if err := p.store.CreateRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (p *Pipeline) finish(res *Result) error {
	if p.store == nil {
		return nil
	}
	if len(res.Series) > 0 {
		if err := p.store.SaveSeries(res.RunID, res.Series); err != nil {
			return fmt.Errorf("save series: %w", err)
		}
	}
	if res.Samples != nil {
		if err := p.store.SaveSamples(res.RunID, res.Samples); err != nil {
			return fmt.Errorf("save samples: %w", err)
		}
	}
	if err := p.store.FinishRun(res.RunID, res.SceneCount, res.MeanSlope); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func regionKind(rs config.RegionSource) string {
	switch {
	case rs.WatershedID != "":
		return "watershed"
	case rs.GeoJSONPath != "":
		return "geojson"
	default:
		return "point"
	}
}

func regionRef(rs config.RegionSource) string {
	switch {
	case rs.WatershedID != "":
		return rs.WatershedID
	case rs.GeoJSONPath != "":
		return rs.GeoJSONPath
	default:
		return fmt.Sprintf("%.5f,%.5f,%.0f", rs.Lat, rs.Lon, rs.BufferM)
	}
}
