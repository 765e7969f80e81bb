// Package store caches run configuration, retrieved scene metadata and
// computed results in SQLite, so series and sample tables can be
// re-exported and re-plotted without re-querying the imagery platform.
package store

import (
	"database/sql"
	"math"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/models"
	"vegtrend/internal/sample"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateRun(run *models.Run) error {
	res, err := s.db.Exec(`
		INSERT INTO runs (region_source, region_ref, region_geojson, start_year, end_year, start_month, end_month, mode, max_cloud_cover, resolution_m, clusters, sample_size, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RegionSource, run.RegionRef, run.RegionGeoJSON, run.StartYear, run.EndYear, run.StartMonth, run.EndMonth, run.Mode, run.MaxCloudCover, run.ResolutionM, run.Clusters, run.SampleSize, run.Seed)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *Store) FinishRun(runID int64, sceneCount int, meanSlope float64) error {
	slope := sql.NullFloat64{Float64: meanSlope, Valid: !math.IsNaN(meanSlope)}
	_, err := s.db.Exec(`UPDATE runs SET scene_count = ?, mean_slope = ? WHERE id = ?`, sceneCount, slope, runID)
	return err
}

func (s *Store) GetRun(runID int64) (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, region_source, region_ref, region_geojson, start_year, end_year, start_month, end_month, mode, max_cloud_cover, resolution_m, clusters, sample_size, seed, scene_count, mean_slope
		FROM runs WHERE id = ?
	`, runID)
	return scanRun(row)
}

// LatestRun returns the most recent run, or nil when the cache is empty.
func (s *Store) LatestRun() (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, region_source, region_ref, region_geojson, start_year, end_year, start_month, end_month, mode, max_cloud_cover, resolution_m, clusters, sample_size, seed, scene_count, mean_slope
		FROM runs ORDER BY id DESC LIMIT 1
	`)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func scanRun(row *sql.Row) (*models.Run, error) {
	var run models.Run
	err := row.Scan(&run.ID, &run.CreatedAt, &run.RegionSource, &run.RegionRef, &run.RegionGeoJSON,
		&run.StartYear, &run.EndYear, &run.StartMonth, &run.EndMonth, &run.Mode,
		&run.MaxCloudCover, &run.ResolutionM, &run.Clusters, &run.SampleSize, &run.Seed,
		&run.SceneCount, &run.MeanSlope)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) InsertScene(sc models.Scene) error {
	_, err := s.db.Exec(`
		INSERT INTO scenes (run_id, scene_id, captured_at, cloud_cover, valid_pixels)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, scene_id) DO NOTHING
	`, sc.RunID, sc.SceneID, sc.CapturedAt, sc.CloudCover, sc.ValidPixels)
	return err
}

func (s *Store) GetScenes(runID int64) ([]models.Scene, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, scene_id, captured_at, cloud_cover, valid_pixels
		FROM scenes WHERE run_id = ? ORDER BY captured_at ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []models.Scene
	for rows.Next() {
		var sc models.Scene
		if err := rows.Scan(&sc.ID, &sc.RunID, &sc.SceneID, &sc.CapturedAt, &sc.CloudCover, &sc.ValidPixels); err != nil {
			return nil, err
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

// SaveSeries replaces the annual series for a run. Zero-count years store
// a NULL mean so gaps survive the round trip.
func (s *Store) SaveSeries(runID int64, points []aggregate.SeriesPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM series_points WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return err
	}
	for _, p := range points {
		mean := sql.NullFloat64{Float64: p.MeanIndex, Valid: p.ImageCount > 0}
		if _, err := tx.Exec(`
			INSERT INTO series_points (run_id, year, mean_index, image_count)
			VALUES (?, ?, ?, ?)
		`, runID, p.Year, mean, p.ImageCount); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSeries(runID int64) ([]aggregate.SeriesPoint, error) {
	rows, err := s.db.Query(`
		SELECT year, mean_index, image_count FROM series_points
		WHERE run_id = ? ORDER BY year ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []aggregate.SeriesPoint
	for rows.Next() {
		var p aggregate.SeriesPoint
		var mean sql.NullFloat64
		if err := rows.Scan(&p.Year, &mean, &p.ImageCount); err != nil {
			return nil, err
		}
		if mean.Valid {
			p.MeanIndex = mean.Float64
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// SaveSamples persists the point-sample table. Expects slope, mean_index
// and cluster columns; other bands are not stored.
func (s *Store) SaveSamples(runID int64, tbl *sample.Table) error {
	slopes, err := tbl.Column("slope")
	if err != nil {
		return err
	}
	means, err := tbl.Column("mean_index")
	if err != nil {
		return err
	}
	clusters, err := tbl.Column("cluster")
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM samples WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return err
	}
	for i, r := range tbl.Rows {
		if _, err := tx.Exec(`
			INSERT INTO samples (run_id, lon, lat, slope, mean_index, cluster)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, r.Lon, r.Lat, slopes[i], means[i], int(clusters[i])); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSamples(runID int64) ([]models.SampleRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, lon, lat, slope, mean_index, cluster FROM samples
		WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.SampleRow
	for rows.Next() {
		var r models.SampleRow
		if err := rows.Scan(&r.RunID, &r.Lon, &r.Lat, &r.Slope, &r.MeanIndex, &r.Cluster); err != nil {
			return nil, err
		}
		samples = append(samples, r)
	}
	return samples, rows.Err()
}
