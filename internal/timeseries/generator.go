package timeseries

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"imagery-engine/internal/admission"
	"imagery-engine/internal/catalog"
	"imagery-engine/internal/common"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/selector"
	"imagery-engine/internal/tiles"
)

// ImageSelector picks imagery for one bucket window.
type ImageSelector interface {
	Select(ctx context.Context, t common.ProcessingType, window dates.Window, region geo.Geometry, satelliteHint string) (*selector.Resolved, error)
}

// TileRenderer opens a tile session for a resolved selection.
type TileRenderer interface {
	Render(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*tiles.Handle, error)
}

// StatsReducer computes region statistics for a resolved selection.
type StatsReducer interface {
	Reduce(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*ee.RegionStats, error)
}

// Step is one bucket's outcome. A bucket with no imagery keeps its slot with
// NoImagery set; a backend failure keeps its slot with Error set. The series
// never reorders or drops buckets.
type Step struct {
	Index      int             `json:"index"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Satellite  string          `json:"satellite,omitempty"`
	Widened    bool            `json:"widened,omitempty"`
	Tile       *tiles.Handle   `json:"tile,omitempty"`
	Statistics *ee.RegionStats `json:"statistics,omitempty"`
	NoImagery  bool            `json:"no_imagery,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Request describes one time-series run.
type Request struct {
	Type          common.ProcessingType
	Window        dates.Window
	Interval      Interval
	Region        geo.Geometry
	SatelliteHint string
}

// Generator fans bucket resolution out over a bounded worker pool.
type Generator struct {
	selector ImageSelector
	renderer TileRenderer
	stats    StatsReducer
	limiter  *admission.Limiter
}

// NewGenerator wires the per-bucket pipeline. limiter may be shared with
// other backend callers; nil gets a private default.
func NewGenerator(sel ImageSelector, renderer TileRenderer, stats StatsReducer, limiter *admission.Limiter) *Generator {
	if limiter == nil {
		limiter = admission.NewLimiter(admission.DefaultLimit)
	}
	return &Generator{selector: sel, renderer: renderer, stats: stats, limiter: limiter}
}

// Generate resolves every bucket of the series. Each step lands at its
// bucket's index regardless of completion order. Per-bucket failures are
// recorded in the step and do not stop the rest of the series; only context
// cancellation and invalid requests fail the whole run.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Step, error) {
	buckets, err := Buckets(req.Window, req.Interval)
	if err != nil {
		return nil, err
	}
	log.Printf("[TimeSeries] %s %s series: %d buckets over %s", req.Interval, req.Type, len(buckets), req.Window)

	steps := make([]Step, len(buckets))
	var wg sync.WaitGroup
	for i, bucket := range buckets {
		wg.Add(1)
		go func(i int, bucket Bucket) {
			defer wg.Done()
			steps[i] = g.resolveBucket(ctx, req, i, bucket)
		}(i, bucket)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (g *Generator) resolveBucket(ctx context.Context, req Request, index int, bucket Bucket) Step {
	step := Step{
		Index: index,
		Start: common.FormatISO8601(bucket.Start),
		End:   common.FormatISO8601(bucket.End),
	}
	if err := g.limiter.Acquire(ctx); err != nil {
		step.Error = err.Error()
		return step
	}
	defer g.limiter.Release()

	res, err := g.selector.Select(ctx, req.Type, queryWindow(req.Type, bucket), req.Region, req.SatelliteHint)
	if err != nil {
		if errors.Is(err, selector.ErrNoImagery) {
			// The step keeps the attempted collections and windows so the
			// caller can see what was tried for the gap.
			step.NoImagery = true
			step.Error = err.Error()
			return step
		}
		log.Printf("[TimeSeries] bucket %d (%s..%s) selection failed: %v", index, step.Start, step.End, err)
		step.Error = err.Error()
		return step
	}
	step.Satellite = res.Collection.Name
	step.Widened = res.Widened

	tile, err := g.renderer.Render(ctx, res, req.Region)
	if err != nil {
		log.Printf("[TimeSeries] bucket %d (%s..%s) rendering failed: %v", index, step.Start, step.End, err)
		step.Error = err.Error()
		return step
	}
	step.Tile = tile

	if g.stats != nil {
		stats, err := g.stats.Reduce(ctx, res, req.Region)
		if err != nil {
			// The tile is still useful without numbers under it.
			log.Printf("[TimeSeries] bucket %d statistics failed: %v", index, err)
		} else {
			step.Statistics = stats
		}
	}
	return step
}

// queryWindow returns the selection window for one bucket. Year-keyed
// products are annual mosaics with no imagery inside a narrower range, so
// their buckets query the bucket's calendar year instead.
func queryWindow(t common.ProcessingType, bucket Bucket) dates.Window {
	if cfg, ok := catalog.For(t); ok && cfg.NeedsYear {
		y := bucket.Start.Year()
		return dates.Window{
			Start: time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC),
			Mode:  dates.ModeExplicit,
		}
	}
	return bucket.window()
}
