// Package cluster partitions pixels of a trend/statistic band stack with
// k-means: fit once on a bounded random sample, then label every unmasked
// pixel of the source stack. Labels are arbitrary small integers with no
// inherent ordering.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"vegtrend/internal/raster"
)

const (
	DefaultClusters = 4
	defaultMaxIter  = 50
)

type KMeans struct {
	K       int
	MaxIter int
	Seed    int64
}

func New(k int, seed int64) KMeans {
	if k < 1 {
		k = DefaultClusters
	}
	return KMeans{K: k, MaxIter: defaultMaxIter, Seed: seed}
}

// Model holds the learned centroids. Fit once, apply everywhere.
type Model struct {
	Centroids [][]float64
}

// Fit runs k-means++ seeding and Lloyd iterations over the sample rows.
// Deterministic for a given seed.
func (k KMeans) Fit(samples [][]float64) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cluster: no samples")
	}
	if len(samples) < k.K {
		return nil, fmt.Errorf("cluster: %d samples cannot form %d clusters", len(samples), k.K)
	}
	dims := len(samples[0])
	for i, s := range samples {
		if len(s) != dims {
			return nil, fmt.Errorf("cluster: sample %d has %d features, want %d", i, len(s), dims)
		}
	}

	maxIter := k.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	rng := rand.New(rand.NewSource(k.Seed))
	centroids := seedPlusPlus(samples, k.K, rng)

	assign := make([]int, len(samples))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, s := range samples {
			c := nearest(centroids, s)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k.K)
		counts := make([]int, k.K)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, s := range samples {
			c := assign[i]
			counts[c]++
			for d, v := range s {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an emptied cluster from a random sample.
				centroids[c] = append([]float64(nil), samples[rng.Intn(len(samples))]...)
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return &Model{Centroids: centroids}, nil
}

// Predict returns the label of the nearest centroid.
func (m *Model) Predict(v []float64) int {
	return nearest(m.Centroids, v)
}

// Label applies the learned partition to the whole stack, producing a
// label grid. Pixels masked in any layer stay masked.
func (m *Model) Label(layers []raster.Layer) (*raster.Grid, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("cluster: no layers")
	}
	tmpl := layers[0].Grid
	for _, l := range layers[1:] {
		if !l.Grid.SameShape(tmpl) {
			return nil, fmt.Errorf("cluster: layer %s shape differs", l.Name)
		}
	}

	out := raster.Like(tmpl)
	v := make([]float64, len(layers))
	for y := 0; y < tmpl.H; y++ {
		for x := 0; x < tmpl.W; x++ {
			masked := false
			for i, l := range layers {
				val := l.Grid.At(x, y)
				if math.IsNaN(val) {
					masked = true
					break
				}
				v[i] = val
			}
			if masked {
				continue
			}
			out.Set(x, y, float64(m.Predict(v)))
		}
	}
	return out, nil
}

// SampleFeatures draws up to maxRows unmasked pixel vectors from the
// stack, uniformly without replacement. The bound is an upper limit, not a
// guarantee.
func SampleFeatures(layers []raster.Layer, maxRows int, seed int64) ([][]float64, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("cluster: no layers")
	}
	tmpl := layers[0].Grid
	for _, l := range layers[1:] {
		if !l.Grid.SameShape(tmpl) {
			return nil, fmt.Errorf("cluster: layer %s shape differs", l.Name)
		}
	}

	var rows [][]float64
	for y := 0; y < tmpl.H; y++ {
		for x := 0; x < tmpl.W; x++ {
			v := make([]float64, len(layers))
			masked := false
			for i, l := range layers {
				val := l.Grid.At(x, y)
				if math.IsNaN(val) {
					masked = true
					break
				}
				v[i] = val
			}
			if !masked {
				rows = append(rows, v)
			}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows, nil
}

func seedPlusPlus(samples [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), samples[rng.Intn(len(samples))]...))

	dists := make([]float64, len(samples))
	for len(centroids) < k {
		total := 0.0
		for i, s := range samples {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := sqDist(s, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// Degenerate sample: duplicate a point.
			centroids = append(centroids, append([]float64(nil), samples[rng.Intn(len(samples))]...))
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		pick := len(samples) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), samples[pick]...))
	}
	return centroids
}

func nearest(centroids [][]float64, v []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
