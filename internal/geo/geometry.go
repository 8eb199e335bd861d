package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusM is the mean Earth radius used for distance and area math
	EarthRadiusM = 6371000.0

	// bufferSegments is the number of ring vertices used when buffering a point
	bufferSegments = 32
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the point is within WGS84 bounds.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: %f", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: %f", p.Lon)
	}
	return nil
}

// Kind distinguishes the geometry shapes the engine works with.
type Kind int

const (
	KindPoint Kind = iota
	KindPolygon
)

// Geometry is the spatial region used to bound backend queries and clip
// output imagery. It is either a bare point or a polygon (administrative
// boundary or point buffer). Geometries live for one request only.
type Geometry struct {
	Kind    Kind    `json:"kind"`
	Center  Point   `json:"center"`
	Ring    []Point `json:"ring,omitempty"`
	RadiusM float64 `json:"radiusM,omitempty"` // set when the polygon came from Buffer
	Name    string  `json:"name,omitempty"`    // admin boundary name when known
}

// NewPoint builds a point geometry.
func NewPoint(lat, lon float64) Geometry {
	return Geometry{Kind: KindPoint, Center: Point{Lat: lat, Lon: lon}}
}

// NewPolygon builds a polygon geometry from an exterior ring. The ring does
// not need to be closed; at least three vertices are required.
func NewPolygon(ring []Point) (Geometry, error) {
	if len(ring) < 3 {
		return Geometry{}, fmt.Errorf("polygon requires at least 3 vertices, got %d", len(ring))
	}
	g := Geometry{Kind: KindPolygon, Ring: ring}
	g.Center = g.centroid()
	return g, nil
}

// Buffer returns a polygon approximating a circle of the given radius around
// the geometry's center. Used as the fallback region when no administrative
// boundary encloses a point.
func (g Geometry) Buffer(radiusM float64) Geometry {
	center := g.Center
	ring := make([]Point, 0, bufferSegments)
	latRad := center.Lat * math.Pi / 180
	dLat := radiusM / EarthRadiusM * 180 / math.Pi
	dLon := dLat / math.Cos(latRad)
	for i := 0; i < bufferSegments; i++ {
		theta := 2 * math.Pi * float64(i) / bufferSegments
		ring = append(ring, Point{
			Lat: center.Lat + dLat*math.Sin(theta),
			Lon: center.Lon + dLon*math.Cos(theta),
		})
	}
	return Geometry{Kind: KindPolygon, Center: center, Ring: ring, RadiusM: radiusM}
}

// Area returns the approximate area in square meters. Points have zero area.
func (g Geometry) Area() float64 {
	if g.Kind == KindPoint || len(g.Ring) < 3 {
		return 0
	}
	// Equirectangular shoelace, adequate for region-sized polygons.
	latRad := g.Center.Lat * math.Pi / 180
	mPerDegLat := 2 * math.Pi * EarthRadiusM / 360
	mPerDegLon := mPerDegLat * math.Cos(latRad)

	var sum float64
	n := len(g.Ring)
	for i := 0; i < n; i++ {
		a := g.Ring[i]
		b := g.Ring[(i+1)%n]
		sum += (a.Lon * mPerDegLon) * (b.Lat * mPerDegLat)
		sum -= (b.Lon * mPerDegLon) * (a.Lat * mPerDegLat)
	}
	return math.Abs(sum) / 2
}

// BBox returns the geometry's bounding box as (south, west, north, east).
func (g Geometry) BBox() (south, west, north, east float64) {
	if g.Kind == KindPoint || len(g.Ring) == 0 {
		return g.Center.Lat, g.Center.Lon, g.Center.Lat, g.Center.Lon
	}
	south, north = g.Ring[0].Lat, g.Ring[0].Lat
	west, east = g.Ring[0].Lon, g.Ring[0].Lon
	for _, p := range g.Ring[1:] {
		south = math.Min(south, p.Lat)
		north = math.Max(north, p.Lat)
		west = math.Min(west, p.Lon)
		east = math.Max(east, p.Lon)
	}
	return south, west, north, east
}

func (g Geometry) centroid() Point {
	if len(g.Ring) == 0 {
		return g.Center
	}
	var lat, lon float64
	for _, p := range g.Ring {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(g.Ring))
	return Point{Lat: lat / n, Lon: lon / n}
}

// GeoJSON renders the geometry as a GeoJSON object for backend requests.
func (g Geometry) GeoJSON() map[string]interface{} {
	if g.Kind == KindPoint {
		return map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{g.Center.Lon, g.Center.Lat},
		}
	}
	coords := make([][]float64, 0, len(g.Ring)+1)
	for _, p := range g.Ring {
		coords = append(coords, []float64{p.Lon, p.Lat})
	}
	if len(g.Ring) > 0 {
		first := g.Ring[0]
		coords = append(coords, []float64{first.Lon, first.Lat})
	}
	return map[string]interface{}{
		"type":        "Polygon",
		"coordinates": [][][]float64{coords},
	}
}
