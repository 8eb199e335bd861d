// Package ee defines the remote-sensing backend boundary: collection
// queries, tile rendering, and region statistics. The engine treats the
// backend as opaque; its errors propagate unretried so the caller can decide
// whether to try again later.
package ee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagery-engine/internal/catalog"
	"imagery-engine/internal/geo"
)

// ErrUnavailable marks any backend-level failure (quota, permission,
// timeout). Match with errors.Is.
var ErrUnavailable = errors.New("backend unavailable")

// BackendError carries the failing operation and HTTP status for caller
// diagnostics.
type BackendError struct {
	Op     string
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is makes every BackendError match ErrUnavailable.
func (e *BackendError) Is(target error) bool { return target == ErrUnavailable }

// Image describes one acquisition inside a collection.
type Image struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	AcquiredAt time.Time `json:"acquired_at"`
	CloudCover float64   `json:"cloud_cover"`
}

// Reducer names the per-pixel statistic used to composite a filtered
// collection into one image.
type Reducer string

const (
	ReducerMedian     Reducer = "median"
	ReducerMean       Reducer = "mean"
	ReducerMostRecent Reducer = "most_recent"
)

// QueryRequest filters a collection by geometry, date window, and quality.
type QueryRequest struct {
	Collection string
	Geometry   geo.Geometry
	Start, End time.Time
	CloudProp  string  // "" disables cloud filtering
	MaxCloud   float64 // ceiling in percent
}

// RenderRequest asks the backend to composite, clip, visualize, and open a
// tile session for the described image.
type RenderRequest struct {
	Collections []string // one entry, or two for a merged virtual collection
	Geometry    geo.Geometry
	Start, End  time.Time
	Bands       []string
	Derive      *catalog.BandMath
	Reducer     Reducer
	Vis         catalog.VisParams
}

// ReduceRequest asks for summary statistics of one band over a geometry.
type ReduceRequest struct {
	Collections []string
	Geometry    geo.Geometry
	Start, End  time.Time
	Bands       []string
	Derive      *catalog.BandMath
	Reducer     Reducer
	Band        string  // band the statistics are computed on
	ScaleM      float64 // sampling scale in meters
}

// RegionStats is the reduced statistics result.
type RegionStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int64   `json:"count"`
}

// Backend is the remote-sensing collaborator consumed by the core.
type Backend interface {
	// QueryCollection returns the images matching the filter, possibly none.
	QueryCollection(ctx context.Context, req QueryRequest) ([]Image, error)
	// RenderTile returns a tile URL template for the composited image.
	RenderTile(ctx context.Context, req RenderRequest) (string, error)
	// ReduceRegion computes band statistics over the geometry.
	ReduceRegion(ctx context.Context, req ReduceRequest) (RegionStats, error)
}
