package catalog

import (
	"fmt"
	"math"
	"time"

	"vegtrend/internal/raster"
	"vegtrend/internal/spectral"
)

// RemoteError is a failed imagery platform call: network, auth or quota.
// Fatal; the pipeline does not degrade around it.
type RemoteError struct {
	Op     string
	Status int
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("imagery platform %s: status %d: %s", e.Op, e.Status, e.Msg)
	}
	return fmt.Sprintf("imagery platform %s: %s", e.Op, e.Msg)
}

// SceneMeta is one archive entry returned by a scene search.
type SceneMeta struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	CloudCover float64   `json:"cloud_cover"`
}

type searchResponse struct {
	Scenes []SceneMeta `json:"scenes"`
}

// clipResponse is a clipped multi-band raster. Band arrays are row-major,
// north row first; null marks pixels outside the clip geometry.
type clipResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Extent struct {
		MinLon float64 `json:"min_lon"`
		MinLat float64 `json:"min_lat"`
		MaxLon float64 `json:"max_lon"`
		MaxLat float64 `json:"max_lat"`
	} `json:"extent"`
	Bands map[string][]*float64 `json:"bands"`
}

func (c *clipResponse) toScene(meta SceneMeta) (*spectral.Scene, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("scene %s: bad raster shape %dx%d", meta.ID, c.Width, c.Height)
	}
	extent := raster.Extent{
		MinLon: c.Extent.MinLon, MinLat: c.Extent.MinLat,
		MaxLon: c.Extent.MaxLon, MaxLat: c.Extent.MaxLat,
	}
	s := &spectral.Scene{
		ID:         meta.ID,
		Time:       meta.CapturedAt,
		CloudCover: meta.CloudCover,
		Bands:      make(map[spectral.Band]*raster.Grid, len(c.Bands)),
	}
	for name, values := range c.Bands {
		if len(values) != c.Width*c.Height {
			return nil, fmt.Errorf("scene %s: band %s has %d values, want %d", meta.ID, name, len(values), c.Width*c.Height)
		}
		g := raster.New(c.Width, c.Height, extent)
		for i, v := range values {
			x, y := i%c.Width, i/c.Width
			if v == nil {
				g.Set(x, y, math.NaN())
			} else {
				g.Set(x, y, *v)
			}
		}
		s.Bands[spectral.Band(name)] = g
	}
	return s, nil
}
