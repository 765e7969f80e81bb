package store

import (
	"database/sql"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/models"
	"vegtrend/internal/sample"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testRun() *models.Run {
	return &models.Run{
		RegionSource:  "watershed",
		RegionRef:     "hydroshed-4121051890",
		StartYear:     2018,
		EndYear:       2023,
		StartMonth:    6,
		EndMonth:      9,
		Mode:          "median",
		MaxCloudCover: 30,
		ResolutionM:   120,
		Clusters:      4,
		SampleSize:    500,
		Seed:          42,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("CreateRun did not set ID")
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RegionRef != "hydroshed-4121051890" {
		t.Errorf("RegionRef = %q, want hydroshed-4121051890", got.RegionRef)
	}
	if got.Mode != "median" {
		t.Errorf("Mode = %q, want median", got.Mode)
	}
	if got.SceneCount != 0 {
		t.Errorf("SceneCount = %d, want 0 before FinishRun", got.SceneCount)
	}
	if got.MeanSlope.Valid {
		t.Error("MeanSlope valid before FinishRun")
	}
}

func TestFinishRun(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.FinishRun(run.ID, 17, 0.012); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.SceneCount != 17 {
		t.Errorf("SceneCount = %d, want 17", got.SceneCount)
	}
	if !got.MeanSlope.Valid || math.Abs(got.MeanSlope.Float64-0.012) > 1e-12 {
		t.Errorf("MeanSlope = %+v, want 0.012", got.MeanSlope)
	}
}

func TestFinishRunNaNSlope(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.FinishRun(run.ID, 0, math.NaN()); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.MeanSlope.Valid {
		t.Error("MeanSlope should be NULL for a fully masked run")
	}
}

func TestLatestRun(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun on empty store: %v", err)
	}
	if latest != nil {
		t.Fatal("LatestRun on empty store should be nil")
	}

	first := testRun()
	if err := store.CreateRun(first); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	second := testRun()
	second.RegionRef = "hydroshed-4120928630"
	if err := store.CreateRun(second); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	latest, err = store.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("LatestRun = %+v, want run %d", latest, second.ID)
	}
}

func TestInsertSceneIdempotent(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	sc := models.Scene{
		RunID:       run.ID,
		SceneID:     "S2A_20210714T003701",
		CapturedAt:  time.Date(2021, 7, 14, 0, 37, 1, 0, time.UTC),
		CloudCover:  12.5,
		ValidPixels: 1800,
	}
	if err := store.InsertScene(sc); err != nil {
		t.Fatalf("InsertScene: %v", err)
	}
	if err := store.InsertScene(sc); err != nil {
		t.Fatalf("InsertScene (duplicate): %v", err)
	}

	scenes, err := store.GetScenes(run.ID)
	if err != nil {
		t.Fatalf("GetScenes: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("len(scenes) = %d, want 1 after duplicate insert", len(scenes))
	}
	if scenes[0].SceneID != "S2A_20210714T003701" {
		t.Errorf("SceneID = %q", scenes[0].SceneID)
	}
}

func TestSaveAndGetSeries(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	points := []aggregate.SeriesPoint{
		{Year: 2018, MeanIndex: 0.41, ImageCount: 5},
		{Year: 2019, ImageCount: 0},
		{Year: 2020, MeanIndex: 0.47, ImageCount: 8},
	}
	if err := store.SaveSeries(run.ID, points); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}

	got, err := store.GetSeries(run.ID)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(series) = %d, want 3", len(got))
	}
	if got[0].Year != 2018 || math.Abs(got[0].MeanIndex-0.41) > 1e-12 {
		t.Errorf("series[0] = %+v", got[0])
	}
	if got[1].ImageCount != 0 || got[1].MeanIndex != 0 {
		t.Errorf("zero-count year = %+v, want zero mean and count", got[1])
	}

	// Saving again replaces, not appends.
	if err := store.SaveSeries(run.ID, points[:1]); err != nil {
		t.Fatalf("SaveSeries (replace): %v", err)
	}
	got, err = store.GetSeries(run.ID)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(series) = %d after replace, want 1", len(got))
	}
}

func TestSaveAndGetSamples(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	tbl := &sample.Table{
		Columns: []string{"slope", "mean_index", "cluster"},
		Rows: []sample.Row{
			{Lon: 147.01, Lat: -36.79, Values: []float64{0.011, 0.52, 2}},
			{Lon: 147.02, Lat: -36.80, Values: []float64{-0.004, 0.33, 0}},
		},
	}
	if err := store.SaveSamples(run.ID, tbl); err != nil {
		t.Fatalf("SaveSamples: %v", err)
	}

	got, err := store.GetSamples(run.ID)
	if err != nil {
		t.Fatalf("GetSamples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(got))
	}
	if got[0].Cluster != 2 {
		t.Errorf("samples[0].Cluster = %d, want 2", got[0].Cluster)
	}
	if math.Abs(got[1].Slope+0.004) > 1e-12 {
		t.Errorf("samples[1].Slope = %v, want -0.004", got[1].Slope)
	}
}

func TestSaveSamplesMissingColumn(t *testing.T) {
	store := setupTestStore(t)

	run := testRun()
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	tbl := &sample.Table{
		Columns: []string{"slope", "mean_index"},
		Rows:    []sample.Row{{Lon: 147, Lat: -36.8, Values: []float64{0.01, 0.4}}},
	}
	if err := store.SaveSamples(run.ID, tbl); err == nil {
		t.Fatal("SaveSamples without cluster column should fail")
	}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	v, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("MigrationVersion = %d, want 1", v)
	}
}
