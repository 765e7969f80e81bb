// Package charts produces summary figures for a run: the annual index
// series with its fitted trend line, and a sample scatter colored by
// cluster.
package charts

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"vegtrend/internal/aggregate"
	"vegtrend/internal/sample"
	"vegtrend/internal/trend"
)

var clusterColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// SaveSeries writes a scatter of annual mean index values with the OLS
// fit overlaid as a dashed line. Zero-count years are omitted from the
// scatter but leave a visible gap on the x axis.
func SaveSeries(points []aggregate.SeriesPoint, path string) error {
	p := plot.New()
	p.Title.Text = "Annual mean vegetation index"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Mean index"

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if pt.ImageCount == 0 {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(pt.Year), Y: pt.MeanIndex})
	}
	if len(xys) == 0 {
		return fmt.Errorf("series chart: no years with data")
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("series scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(4)
	scatter.GlyphStyle.Color = clusterColors[0]
	p.Add(scatter, plotter.NewGrid())
	p.Legend.Add("annual mean", scatter)

	if slope, intercept, ok := trend.FitSeries(points); ok {
		firstYear := 0
		for _, pt := range points {
			if pt.ImageCount > 0 {
				firstYear = pt.Year
				break
			}
		}
		line := plotter.NewFunction(func(x float64) float64 {
			return intercept + slope*(x-float64(firstYear))
		})
		line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		line.Width = vg.Points(2)
		line.Color = clusterColors[3]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("fit %+.4f/yr", slope), line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save series chart: %w", err)
	}
	return nil
}

// SaveClusterScatter plots sample points in slope/mean-index space, one
// scatter per cluster so each gets its own color and legend entry.
func SaveClusterScatter(tbl *sample.Table, path string) error {
	slopes, err := tbl.Column("slope")
	if err != nil {
		return err
	}
	means, err := tbl.Column("mean_index")
	if err != nil {
		return err
	}
	labels, err := tbl.Column("cluster")
	if err != nil {
		return err
	}

	byCluster := map[int]plotter.XYs{}
	for i := range tbl.Rows {
		c := int(labels[i])
		byCluster[c] = append(byCluster[c], plotter.XY{X: slopes[i], Y: means[i]})
	}

	p := plot.New()
	p.Title.Text = "Trend vs mean index by cluster"
	p.X.Label.Text = "Slope (index units / year)"
	p.Y.Label.Text = "Mean index"

	maxCluster := 0
	for c := range byCluster {
		if c > maxCluster {
			maxCluster = c
		}
	}
	for c := 0; c <= maxCluster; c++ {
		xys, ok := byCluster[c]
		if !ok {
			continue
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("cluster %d scatter: %w", c, err)
		}
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Color = clusterColors[c%len(clusterColors)]
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("cluster %d (n=%d)", c, len(xys)), scatter)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save cluster scatter: %w", err)
	}
	return nil
}

// SaveSlopeBoxes draws one box plot of slope per cluster, which is the
// fastest way to see which clusters are greening and which are browning.
func SaveSlopeBoxes(tbl *sample.Table, path string) error {
	slopes, err := tbl.Column("slope")
	if err != nil {
		return err
	}
	labels, err := tbl.Column("cluster")
	if err != nil {
		return err
	}

	byCluster := map[int]plotter.Values{}
	maxCluster := 0
	for i := range tbl.Rows {
		c := int(labels[i])
		byCluster[c] = append(byCluster[c], slopes[i])
		if c > maxCluster {
			maxCluster = c
		}
	}

	p := plot.New()
	p.Title.Text = "Slope distribution by cluster"
	p.Y.Label.Text = "Slope (index units / year)"
	p.NominalX(clusterNames(maxCluster + 1)...)

	for c := 0; c <= maxCluster; c++ {
		vals, ok := byCluster[c]
		if !ok {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(c), vals)
		if err != nil {
			return fmt.Errorf("cluster %d box: %w", c, err)
		}
		box.FillColor = clusterColors[c%len(clusterColors)]
		p.Add(box)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save slope boxes: %w", err)
	}
	return nil
}

func clusterNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("cluster %d", i)
	}
	return names
}
