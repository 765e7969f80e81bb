package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/gocarina/gocsv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"vegtrend/internal/catalog"
	"vegtrend/internal/charts"
	"vegtrend/internal/config"
	"vegtrend/internal/narrative"
	"vegtrend/internal/pipeline"
	"vegtrend/internal/raster"
	"vegtrend/internal/region"
	"vegtrend/internal/render"
	"vegtrend/internal/sample"
	"vegtrend/internal/store"
)

type cli struct {
	APIBase  string `env:"VEGTREND_API_BASE" required:"" help:"Imagery platform base URL."`
	APIToken string `env:"VEGTREND_API_TOKEN" help:"Imagery platform bearer token."`
	DB       string `default:"data/vegtrend.db" help:"Path to the SQLite cache."`

	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)."`

	Run    runCmd    `cmd:"" help:"Run a full vegetation trend analysis."`
	Region regionCmd `cmd:"" help:"Resolve a region and print its GeoJSON."`
	Series seriesCmd `cmd:"" help:"Print the annual series of a cached run as CSV."`
	Plot   plotCmd   `cmd:"" help:"Re-plot a cached run without touching the imagery platform."`
}

type regionFlags struct {
	Watershed string  `help:"Watershed boundary ID." xor:"region"`
	GeoJSON   string  `help:"Path to a GeoJSON polygon." type:"existingfile" xor:"region"`
	Lat       float64 `help:"Point latitude, with --lon and --buffer."`
	Lon       float64 `help:"Point longitude."`
	Buffer    float64 `help:"Point buffer radius in meters." xor:"region"`
}

func (rf regionFlags) source() config.RegionSource {
	return config.RegionSource{
		WatershedID: rf.Watershed,
		GeoJSONPath: rf.GeoJSON,
		Lat:         rf.Lat,
		Lon:         rf.Lon,
		BufferM:     rf.Buffer,
	}
}

type runCmd struct {
	regionFlags

	StartYear     int     `required:"" help:"First year of the analysis range."`
	EndYear       int     `required:"" help:"Last year, inclusive."`
	StartMonth    int     `default:"1" help:"First month of the seasonal window."`
	EndMonth      int     `default:"12" help:"Last month, inclusive; may wrap past December."`
	Mode          string  `default:"median" help:"Annual reducer: mean, median, min or max."`
	MaxCloudCover float64 `default:"30" help:"Scene-level cloud cover ceiling, percent."`
	Resolution    int     `default:"120" help:"Clipped raster pixel size, meters."`
	Clusters      int     `default:"4" help:"Number of trend clusters."`
	SampleSize    int     `default:"500" help:"Maximum exported sample points."`
	Seed          int64   `default:"1" help:"Seed for sampling and clustering."`

	Out       string `default:"out" help:"Output directory." type:"path"`
	Summarize bool   `help:"Write a model-generated plain-language summary (needs OPENAI_API_KEY)."`
}

func (r *runCmd) Run(app *appCtx) error {
	cfg := config.Analysis{
		Region:        r.source(),
		StartYear:     r.StartYear,
		EndYear:       r.EndYear,
		StartMonth:    r.StartMonth,
		EndMonth:      r.EndMonth,
		Mode:          r.Mode,
		MaxCloudCover: r.MaxCloudCover,
		ResolutionM:   r.Resolution,
		Clusters:      r.Clusters,
		SampleSize:    r.SampleSize,
		Seed:          r.Seed,
	}

	res, err := pipeline.New(cfg, app.catalog, app.store).Run(app.ctx)
	if err != nil {
		return err
	}

	if res.SceneCount == 0 {
		log.Println("no usable scenes in range; nothing to export")
		return nil
	}

	if err := os.MkdirAll(r.Out, 0o755); err != nil {
		return err
	}

	seriesPath := filepath.Join(r.Out, "series.csv")
	f, err := os.Create(seriesPath)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(&res.Series, f); err != nil {
		f.Close()
		return fmt.Errorf("write series: %w", err)
	}
	f.Close()

	if res.Samples != nil {
		sf, err := os.Create(filepath.Join(r.Out, "samples.csv"))
		if err != nil {
			return err
		}
		if err := res.Samples.WriteCSV(sf); err != nil {
			sf.Close()
			return fmt.Errorf("write samples: %w", err)
		}
		sf.Close()
	}

	if err := writePNG(filepath.Join(r.Out, "slope.png"), res.Surface.Slope, render.SlopePNG); err != nil {
		return err
	}
	if res.MeanIndex != nil {
		if err := writePNG(filepath.Join(r.Out, "mean_index.png"), res.MeanIndex, render.IndexPNG); err != nil {
			return err
		}
	}
	if res.Labels != nil {
		if err := writePNG(filepath.Join(r.Out, "clusters.png"), res.Labels, render.LabelPNG); err != nil {
			return err
		}
	}

	if err := charts.SaveSeries(res.Series, filepath.Join(r.Out, "series_chart.png")); err != nil {
		log.Printf("series chart skipped: %v", err)
	}
	if res.Samples != nil {
		if err := charts.SaveClusterScatter(res.Samples, filepath.Join(r.Out, "cluster_scatter.png")); err != nil {
			log.Printf("cluster scatter skipped: %v", err)
		}
		if err := charts.SaveSlopeBoxes(res.Samples, filepath.Join(r.Out, "slope_boxes.png")); err != nil {
			log.Printf("slope boxes skipped: %v", err)
		}
	}

	if r.Summarize {
		r.writeSummary(app, res)
	}

	log.Printf("run %d: %d scenes, mean trend %+.4f/yr, outputs in %s", res.RunID, res.SceneCount, res.MeanSlope, r.Out)
	return nil
}

func (r *runCmd) writeSummary(app *appCtx, res *pipeline.Result) {
	sum, err := narrative.NewSummarizer()
	if err != nil {
		log.Printf("summary skipped: %v", err)
		return
	}
	facts := narrative.RunFacts{
		RegionLabel: regionLabel(r.regionFlags),
		StartYear:   r.StartYear,
		EndYear:     r.EndYear,
		Mode:        r.Mode,
		SceneCount:  res.SceneCount,
		MeanSlope:   res.MeanSlope,
		Series:      res.Series,
		ClusterSize: res.ClusterLen,
	}
	text, err := sum.Summarize(app.ctx, facts)
	if err != nil {
		log.Printf("summary skipped: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(r.Out, "summary.txt"), []byte(text+"\n"), 0o644); err != nil {
		log.Printf("summary skipped: %v", err)
	}
}

func writePNG(path string, g *raster.Grid, enc func(*raster.Grid, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(g, f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func regionLabel(rf regionFlags) string {
	switch {
	case rf.Watershed != "":
		return "watershed " + rf.Watershed
	case rf.GeoJSON != "":
		return filepath.Base(rf.GeoJSON)
	default:
		return fmt.Sprintf("%.3f,%.3f (%.0fm buffer)", rf.Lat, rf.Lon, rf.Buffer)
	}
}

type regionCmd struct {
	regionFlags
}

func (r *regionCmd) Run(app *appCtx) error {
	src := r.source()
	var (
		reg *region.Region
		err error
	)
	switch {
	case src.WatershedID != "":
		reg, err = app.catalog.LookupBoundary(app.ctx, src.WatershedID)
	case src.GeoJSONPath != "":
		var f *os.File
		if f, err = os.Open(src.GeoJSONPath); err == nil {
			reg, err = region.FromGeoJSON(f)
			f.Close()
		}
	case src.BufferM > 0:
		reg, err = region.FromPoint(src.Lat, src.Lon, src.BufferM)
	default:
		return fmt.Errorf("one of --watershed, --geojson or --buffer required")
	}
	if err != nil {
		return err
	}
	return reg.WriteGeoJSON(os.Stdout)
}

type seriesCmd struct {
	RunID int64 `help:"Run to export; defaults to the most recent."`
}

func (s *seriesCmd) Run(app *appCtx) error {
	runID := s.RunID
	if runID == 0 {
		run, err := app.store.LatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no cached runs")
		}
		runID = run.ID
	}
	points, err := app.store.GetSeries(runID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("run %d has no series", runID)
	}
	return gocsv.Marshal(&points, os.Stdout)
}

type plotCmd struct {
	RunID int64  `help:"Run to plot; defaults to the most recent."`
	Out   string `default:"out" help:"Output directory." type:"path"`
}

func (p *plotCmd) Run(app *appCtx) error {
	runID := p.RunID
	if runID == 0 {
		run, err := app.store.LatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no cached runs")
		}
		runID = run.ID
	}

	if err := os.MkdirAll(p.Out, 0o755); err != nil {
		return err
	}

	series, err := app.store.GetSeries(runID)
	if err != nil {
		return err
	}
	if len(series) > 0 {
		if err := charts.SaveSeries(series, filepath.Join(p.Out, "series_chart.png")); err != nil {
			return err
		}
	}

	rows, err := app.store.GetSamples(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Printf("run %d has no samples, series chart only", runID)
		return nil
	}
	tbl := &sample.Table{Columns: []string{"slope", "mean_index", "cluster"}}
	for _, row := range rows {
		tbl.Rows = append(tbl.Rows, sample.Row{
			Lon:    row.Lon,
			Lat:    row.Lat,
			Values: []float64{row.Slope, row.MeanIndex, float64(row.Cluster)},
		})
	}
	if err := charts.SaveClusterScatter(tbl, filepath.Join(p.Out, "cluster_scatter.png")); err != nil {
		return err
	}
	if err := charts.SaveSlopeBoxes(tbl, filepath.Join(p.Out, "slope_boxes.png")); err != nil {
		return err
	}
	log.Printf("run %d: plots written to %s", runID, p.Out)
	return nil
}

type appCtx struct {
	ctx     context.Context
	catalog *catalog.Client
	store   *store.Store
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("vegtrend"),
		kong.Description("Vegetation index trend analysis over satellite imagery."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	if err := os.MkdirAll(filepath.Dir(flags.DB), 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if flags.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("metrics on %s", flags.MetricsAddr)
			if err := http.ListenAndServe(flags.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	app := &appCtx{
		ctx:     context.Background(),
		catalog: catalog.NewClient(flags.APIBase, flags.APIToken),
		store:   st,
	}
	kctx.FatalIfErrorf(kctx.Run(app))
}
