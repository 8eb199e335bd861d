package location

import (
	"context"
	"errors"
	"fmt"
	"log"

	"imagery-engine/internal/boundary"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/geocode"
)

// ErrLocationNotFound reports that no strategy produced a coordinate. It is
// terminal for the request: without a geometry nothing downstream can run.
var ErrLocationNotFound = errors.New("location not found")

// DefaultBufferRadiusM is the fallback buffer radius when no administrative
// boundary encloses the resolved point.
const DefaultBufferRadiusM = 10000

// CoordinateInferrer is the LLM collaborator used when geocoding yields
// nothing. Implementations may be absent; the resolver treats a nil
// inferrer as "no result".
type CoordinateInferrer interface {
	InferCoordinates(ctx context.Context, location, dateContext string) (geocode.Coordinates, bool, error)
}

// TierRecorder counts resolutions by the tier that produced the coordinate.
// A metrics.Collector satisfies it.
type TierRecorder interface {
	RecordLocationTier(tier string)
}

// Request carries the location inputs of an analysis request.
type Request struct {
	Location    string
	Coordinates *geocode.Coordinates // explicit coordinates always win
	Window      dates.Window         // temporal context for LLM disambiguation
}

// Resolver turns a place name (plus optional explicit coordinates) into a
// geometry through a tiered strategy: explicit coordinates, cached geocoder,
// LLM inference, admin boundary lookup, point buffer.
type Resolver struct {
	geocoder   geocode.Geocoder
	inferrer   CoordinateInferrer
	boundaries boundary.Source
	bufferM    float64
	metrics    TierRecorder
}

// NewResolver wires the resolver. inferrer and boundaries may be nil; the
// corresponding tiers then report no result.
func NewResolver(geocoder geocode.Geocoder, inferrer CoordinateInferrer, boundaries boundary.Source, bufferM float64) *Resolver {
	if bufferM <= 0 {
		bufferM = DefaultBufferRadiusM
	}
	return &Resolver{
		geocoder:   geocoder,
		inferrer:   inferrer,
		boundaries: boundaries,
		bufferM:    bufferM,
	}
}

// Instrument attaches the winning-tier counter.
func (r *Resolver) Instrument(m TierRecorder) {
	r.metrics = m
}

func (r *Resolver) recordTier(tier string) {
	if r.metrics != nil {
		r.metrics.RecordLocationTier(tier)
	}
}

// Resolve produces a geometry for the request, or ErrLocationNotFound once
// every coordinate tier is exhausted. Boundary lookup failure downgrades to
// a fixed-radius buffer, never to an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (geo.Geometry, error) {
	point, err := r.resolvePoint(ctx, req)
	if err != nil {
		return geo.Geometry{}, err
	}

	if r.boundaries != nil {
		polygon, found, err := r.boundaries.Lookup(ctx, point)
		if err != nil {
			log.Printf("[LocationResolver] Boundary lookup failed for %q, falling back to %.0fm buffer: %v",
				req.Location, r.bufferM, err)
		} else if found {
			return polygon, nil
		} else {
			log.Printf("[LocationResolver] No admin boundary encloses (%f, %f), falling back to %.0fm buffer",
				point.Lat, point.Lon, r.bufferM)
		}
	}

	return geo.NewPoint(point.Lat, point.Lon).Buffer(r.bufferM), nil
}

// resolvePoint walks the coordinate tiers in order, stopping at the first
// that yields a point.
func (r *Resolver) resolvePoint(ctx context.Context, req Request) (geo.Point, error) {
	if req.Coordinates != nil {
		point := geo.Point{Lat: req.Coordinates.Lat, Lon: req.Coordinates.Lon}
		if err := point.Validate(); err != nil {
			return geo.Point{}, fmt.Errorf("%w: %v", ErrLocationNotFound, err)
		}
		log.Printf("[LocationResolver] Using explicit coordinates (%f, %f)", point.Lat, point.Lon)
		r.recordTier("explicit")
		return point, nil
	}

	if req.Location == "" {
		return geo.Point{}, fmt.Errorf("%w: empty location and no coordinates", ErrLocationNotFound)
	}

	if r.geocoder != nil {
		coords, found, err := r.geocoder.Geocode(ctx, req.Location)
		if err != nil {
			// Geocoder timeouts and service errors count as "no result".
			log.Printf("[LocationResolver] Geocoder error for %q, trying LLM: %v", req.Location, err)
		} else if found {
			r.recordTier("geocoder")
			return geo.Point{Lat: coords.Lat, Lon: coords.Lon}, nil
		}
	}

	if r.inferrer != nil {
		log.Printf("[LocationResolver] Geocoder empty for %q, attempting LLM coordinate inference", req.Location)
		coords, found, err := r.inferrer.InferCoordinates(ctx, req.Location, dateContext(req.Window))
		if err != nil {
			log.Printf("[LocationResolver] LLM inference failed for %q: %v", req.Location, err)
		} else if found {
			log.Printf("[LocationResolver] LLM provided coordinates (%f, %f)", coords.Lat, coords.Lon)
			r.recordTier("llm")
			return geo.Point{Lat: coords.Lat, Lon: coords.Lon}, nil
		}
	}

	return geo.Point{}, fmt.Errorf("%w: %q", ErrLocationNotFound, req.Location)
}

func dateContext(w dates.Window) string {
	if w.Mode == dates.ModeLatest || w.Start.IsZero() {
		return ""
	}
	return fmt.Sprintf(" for the period between %s and %s",
		w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}
