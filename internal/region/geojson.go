package region

import (
	"encoding/json"
	"fmt"
	"io"
)

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometry    *geoJSON        `json:"geometry,omitempty"`
	Features    []geoJSON       `json:"features,omitempty"`
}

// FromGeoJSON reads a Polygon, MultiPolygon, Feature or FeatureCollection
// and takes the first polygonal geometry found.
func FromGeoJSON(r io.Reader) (*Region, error) {
	var doc geoJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	rings, err := polygonRings(&doc)
	if err != nil {
		return nil, err
	}
	return FromRings(rings)
}

func polygonRings(g *geoJSON) ([][]Point, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("parse polygon coordinates: %w", err)
		}
		if len(coords) == 0 {
			return nil, fmt.Errorf("polygon has no rings")
		}
		// Exterior ring only; holes are not meaningful as a query filter.
		return [][]Point{toRing(coords[0])}, nil
	case "MultiPolygon":
		var coords [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("parse multipolygon coordinates: %w", err)
		}
		var rings [][]Point
		for _, poly := range coords {
			if len(poly) > 0 {
				rings = append(rings, toRing(poly[0]))
			}
		}
		if len(rings) == 0 {
			return nil, fmt.Errorf("multipolygon has no rings")
		}
		return rings, nil
	case "Feature":
		if g.Geometry == nil {
			return nil, fmt.Errorf("feature has no geometry")
		}
		return polygonRings(g.Geometry)
	case "FeatureCollection":
		for i := range g.Features {
			rings, err := polygonRings(&g.Features[i])
			if err == nil {
				return rings, nil
			}
		}
		return nil, fmt.Errorf("feature collection has no polygonal geometry")
	default:
		return nil, fmt.Errorf("unsupported geojson type %q", g.Type)
	}
}

func toRing(coords [][2]float64) []Point {
	ring := make([]Point, len(coords))
	for i, c := range coords {
		ring[i] = Point{Lon: c[0], Lat: c[1]}
	}
	return ring
}

// WriteGeoJSON emits the region as a Polygon or MultiPolygon geometry.
func (r *Region) WriteGeoJSON(w io.Writer) error {
	var payload any
	if len(r.rings) == 1 {
		payload = map[string]any{"type": "Polygon", "coordinates": [][][2]float64{fromRing(r.rings[0])}}
	} else {
		coords := make([][][][2]float64, len(r.rings))
		for i, ring := range r.rings {
			coords[i] = [][][2]float64{fromRing(ring)}
		}
		payload = map[string]any{"type": "MultiPolygon", "coordinates": coords}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

func fromRing(ring []Point) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[i] = [2]float64{p.Lon, p.Lat}
	}
	return out
}
