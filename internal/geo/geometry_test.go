package geo

import (
	"math"
	"testing"
)

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		wantErr bool
	}{
		{"valid", Point{Lat: 48.85, Lon: 2.35}, false},
		{"lat too high", Point{Lat: 95, Lon: 0}, true},
		{"lon too low", Point{Lat: 0, Lon: -181}, true},
		{"boundary", Point{Lat: -90, Lon: 180}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBufferProducesPolygon(t *testing.T) {
	g := NewPoint(48.8566, 2.3522).Buffer(10000)

	if g.Kind != KindPolygon {
		t.Fatalf("expected polygon, got kind %d", g.Kind)
	}
	if len(g.Ring) != bufferSegments {
		t.Errorf("expected %d vertices, got %d", bufferSegments, len(g.Ring))
	}
	if g.RadiusM != 10000 {
		t.Errorf("expected radius 10000, got %f", g.RadiusM)
	}

	// Every vertex should be roughly 10km from the center.
	for _, p := range g.Ring {
		dLat := (p.Lat - g.Center.Lat) * 2 * math.Pi * EarthRadiusM / 360
		dLon := (p.Lon - g.Center.Lon) * 2 * math.Pi * EarthRadiusM / 360 * math.Cos(g.Center.Lat*math.Pi/180)
		dist := math.Hypot(dLat, dLon)
		if math.Abs(dist-10000) > 100 {
			t.Fatalf("vertex %v is %fm from center, expected ~10000m", p, dist)
		}
	}
}

func TestBufferArea(t *testing.T) {
	g := NewPoint(0, 0).Buffer(10000)

	// A 32-gon slightly undershoots the circle area; allow 5%.
	want := math.Pi * 10000 * 10000
	got := g.Area()
	if math.Abs(got-want)/want > 0.05 {
		t.Errorf("buffer area = %f, expected within 5%% of %f", got, want)
	}
}

func TestPointAreaIsZero(t *testing.T) {
	if a := NewPoint(10, 20).Area(); a != 0 {
		t.Errorf("point area = %f, expected 0", a)
	}
}

func TestNewPolygonRequiresThreeVertices(t *testing.T) {
	_, err := NewPolygon([]Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}})
	if err == nil {
		t.Error("expected error for 2-vertex ring")
	}
}

func TestBBox(t *testing.T) {
	g, err := NewPolygon([]Point{
		{Lat: 10, Lon: 20},
		{Lat: 12, Lon: 21},
		{Lat: 11, Lon: 19},
	})
	if err != nil {
		t.Fatalf("NewPolygon failed: %v", err)
	}

	south, west, north, east := g.BBox()
	if south != 10 || west != 19 || north != 12 || east != 21 {
		t.Errorf("BBox() = %f,%f,%f,%f", south, west, north, east)
	}
}

func TestGeoJSONPolygonClosesRing(t *testing.T) {
	g, _ := NewPolygon([]Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
	})

	obj := g.GeoJSON()
	if obj["type"] != "Polygon" {
		t.Fatalf("expected Polygon, got %v", obj["type"])
	}
	rings := obj["coordinates"].([][][]float64)
	ring := rings[0]
	if len(ring) != 4 {
		t.Fatalf("expected closed ring of 4 coords, got %d", len(ring))
	}
	if ring[0][0] != ring[3][0] || ring[0][1] != ring[3][1] {
		t.Error("ring is not closed")
	}
}
