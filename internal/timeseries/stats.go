package timeseries

import (
	"context"
	"fmt"

	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/selector"
)

// Calculator reduces a resolved selection to summary statistics over the
// region.
type Calculator struct {
	backend ee.Backend
}

// NewCalculator wraps a backend for region statistics.
func NewCalculator(backend ee.Backend) *Calculator {
	return &Calculator{backend: backend}
}

// Reduce computes statistics on the selection's statistics band. Selections
// without one (true-color and categorical products) return nil stats and no
// error.
func (c *Calculator) Reduce(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*ee.RegionStats, error) {
	if res.StatBand == "" {
		return nil, nil
	}
	req := ee.ReduceRequest{
		Collections: res.Collections,
		Geometry:    region,
		Start:       res.Window.Start,
		End:         res.Window.End,
		Bands:       res.Collection.Bands,
		Derive:      res.Collection.Derive,
		Reducer:     res.Reducer,
		Band:        res.StatBand,
		ScaleM:      res.Collection.ResolutionM,
	}
	stats, err := c.backend.ReduceRegion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reducing %s over region: %w", res.StatBand, err)
	}
	return &stats, nil
}
