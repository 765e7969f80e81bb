package aggregate

// SeriesPoint is one row of the regional annual index series: the mean of
// the statistic grid over the region for a year, plus how many captures
// contributed. Years with Count 0 carry no mean.
type SeriesPoint struct {
	Year       int     `csv:"year"`
	MeanIndex  float64 `csv:"mean_index"`
	ImageCount int     `csv:"image_count"`
}

// Series collapses annual statistic images into the flat table used for
// charts and CSV export. Zero-count years are kept with MeanIndex 0 so the
// gap stays visible in the output.
func Series(stats []Stat) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(stats))
	for _, st := range stats {
		p := SeriesPoint{Year: st.Year, ImageCount: st.Count}
		if st.Count > 0 && st.Grid.ValidCount() > 0 {
			p.MeanIndex = st.Grid.Mean()
		}
		points = append(points, p)
	}
	return points
}
