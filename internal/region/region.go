// Package region resolves the area of interest that constrains every
// downstream query: a polygon from a GeoJSON file, a buffered point, or a
// watershed boundary fetched by ID.
package region

import (
	"fmt"
	"math"

	"vegtrend/internal/raster"
)

type Point struct {
	Lon, Lat float64
}

// Region is an immutable polygonal area of interest. Only exterior rings
// are kept; holes in source geometries are ignored.
type Region struct {
	rings [][]Point
}

func FromRings(rings [][]Point) (*Region, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("region: no rings")
	}
	for i, ring := range rings {
		if len(ring) < 3 {
			return nil, fmt.Errorf("region: ring %d has %d points, need at least 3", i, len(ring))
		}
	}
	copied := make([][]Point, len(rings))
	for i, ring := range rings {
		copied[i] = append([]Point(nil), ring...)
		// The shoelace and containment loops walk last-to-first edges,
		// so every stored ring is closed.
		if ring[0] != ring[len(ring)-1] {
			copied[i] = append(copied[i], ring[0])
		}
	}
	return &Region{rings: copied}, nil
}

// FromPoint buffers a lat/lon point by the given radius in meters,
// approximated as a 32-gon. Degree-to-meter factors follow the usual
// series expansion for the WGS84 ellipsoid.
func FromPoint(lat, lon, bufferMeters float64) (*Region, error) {
	if bufferMeters <= 0 {
		return nil, fmt.Errorf("region: buffer must be positive, got %v", bufferMeters)
	}
	latRad := lat * math.Pi / 180
	metersPerDegLat := 111132.92 - 559.82*math.Cos(2*latRad)
	metersPerDegLon := 111412.84 * math.Cos(latRad)

	const vertices = 32
	ring := make([]Point, 0, vertices+1)
	for i := 0; i < vertices; i++ {
		theta := 2 * math.Pi * float64(i) / vertices
		ring = append(ring, Point{
			Lon: lon + bufferMeters*math.Cos(theta)/metersPerDegLon,
			Lat: lat + bufferMeters*math.Sin(theta)/metersPerDegLat,
		})
	}
	ring = append(ring, ring[0])
	return FromRings([][]Point{ring})
}

// Bounds is the bounding box over all rings.
func (r *Region) Bounds() raster.Extent {
	e := raster.Extent{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, ring := range r.rings {
		for _, p := range ring {
			e.MinLon = math.Min(e.MinLon, p.Lon)
			e.MinLat = math.Min(e.MinLat, p.Lat)
			e.MaxLon = math.Max(e.MaxLon, p.Lon)
			e.MaxLat = math.Max(e.MaxLat, p.Lat)
		}
	}
	return e
}

// Centroid is the area-weighted centroid over all rings (shoelace formula).
// Degenerate zero-area rings fall back to the vertex mean.
func (r *Region) Centroid() Point {
	var cx, cy, area float64
	for _, ring := range r.rings {
		for i := 0; i < len(ring)-1; i++ {
			cross := ring[i].Lon*ring[i+1].Lat - ring[i+1].Lon*ring[i].Lat
			cx += (ring[i].Lon + ring[i+1].Lon) * cross
			cy += (ring[i].Lat + ring[i+1].Lat) * cross
			area += cross
		}
	}
	if math.Abs(area) < 1e-12 {
		var sx, sy float64
		n := 0
		for _, ring := range r.rings {
			for _, p := range ring[:len(ring)-1] {
				sx += p.Lon
				sy += p.Lat
				n++
			}
		}
		return Point{Lon: sx / float64(n), Lat: sy / float64(n)}
	}
	return Point{Lon: cx / (3 * area), Lat: cy / (3 * area)}
}

// Contains reports whether the point lies inside any ring (ray casting).
func (r *Region) Contains(lon, lat float64) bool {
	for _, ring := range r.rings {
		if pointInRing(lon, lat, ring) {
			return true
		}
	}
	return false
}

func pointInRing(lon, lat float64, ring []Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if (ring[i].Lat > lat) != (ring[j].Lat > lat) &&
			lon < (ring[j].Lon-ring[i].Lon)*(lat-ring[i].Lat)/(ring[j].Lat-ring[i].Lat)+ring[i].Lon {
			inside = !inside
		}
	}
	return inside
}
