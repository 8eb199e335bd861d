package boundary

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/serjvanilla/go-overpass"

	"imagery-engine/internal/geo"
)

// Source looks up the smallest administrative boundary polygon enclosing a
// point. The boolean reports whether any boundary was found; lookup failure
// is downgraded to a buffer by the caller, never a hard error for requests.
type Source interface {
	Lookup(ctx context.Context, pt geo.Point) (geo.Geometry, bool, error)
}

// DefaultEndpoint is the public Overpass API interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassSource resolves administrative boundaries from OpenStreetMap via
// the Overpass API.
type OverpassSource struct {
	client  overpass.Client
	timeout time.Duration
}

// NewOverpassSource creates a boundary source against the given Overpass
// endpoint.
func NewOverpassSource(endpoint string, timeout time.Duration) *OverpassSource {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := &http.Client{Timeout: timeout}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassSource{client: client, timeout: timeout}
}

// Lookup finds the enclosing administrative area with the highest
// admin_level (the smallest region) and assembles its outer ring.
func (s *OverpassSource) Lookup(ctx context.Context, pt geo.Point) (geo.Geometry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		[out:json];
		is_in(%f,%f)->.a;
		rel(pivot.a)["boundary"="administrative"]["admin_level"];
		out geom;
	`, pt.Lat, pt.Lon)

	result, err := s.query(ctx, query)
	if err != nil {
		return geo.Geometry{}, false, fmt.Errorf("overpass boundary query failed: %w", err)
	}

	relation := smallestEnclosing(result)
	if relation == nil {
		return geo.Geometry{}, false, nil
	}

	ring := outerRing(relation)
	if len(ring) < 3 {
		return geo.Geometry{}, false, nil
	}

	polygon, err := geo.NewPolygon(ring)
	if err != nil {
		return geo.Geometry{}, false, nil
	}
	polygon.Name = relation.Tags["name"]
	log.Printf("[Boundary] Found admin boundary %q (admin_level=%s, %d vertices)",
		polygon.Name, relation.Tags["admin_level"], len(ring))
	return polygon, true, nil
}

func (s *OverpassSource) query(ctx context.Context, query string) (*overpass.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.client.Query(query)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// smallestEnclosing picks the relation with the highest admin_level number,
// i.e. the most specific administrative unit containing the point.
func smallestEnclosing(result *overpass.Result) *overpass.Relation {
	type candidate struct {
		relation *overpass.Relation
		level    int
	}
	var candidates []candidate
	for _, rel := range result.Relations {
		level, err := strconv.Atoi(rel.Tags["admin_level"])
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{relation: rel, level: level})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].level > candidates[j].level
	})
	return candidates[0].relation
}

// outerRing concatenates the nodes of the relation's outer member ways.
func outerRing(rel *overpass.Relation) []geo.Point {
	var ring []geo.Point
	for _, member := range rel.Members {
		if member.Way == nil || member.Role != "outer" {
			continue
		}
		for _, node := range member.Way.Nodes {
			ring = append(ring, geo.Point{Lat: node.Lat, Lon: node.Lon})
		}
	}
	return ring
}
