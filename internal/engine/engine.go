// Package engine orchestrates one analysis end to end: prompt analysis,
// location resolution, date normalization, imagery selection, tile
// rendering, and statistics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"imagery-engine/internal/admission"
	"imagery-engine/internal/catalog"
	"imagery-engine/internal/common"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/geocode"
	"imagery-engine/internal/llm"
	"imagery-engine/internal/location"
	"imagery-engine/internal/selector"
	"imagery-engine/internal/telemetry"
	"imagery-engine/internal/tiles"
	"imagery-engine/internal/timeseries"
	"imagery-engine/pkg/metrics"
)

// LocationResolver turns request location inputs into a geometry.
type LocationResolver interface {
	Resolve(ctx context.Context, req location.Request) (geo.Geometry, error)
}

// PromptAnalyzer extracts structured request fields from free text.
type PromptAnalyzer interface {
	AnalyzePrompt(ctx context.Context, prompt string) (*llm.PromptAnalysis, error)
}

// SeriesGenerator produces ordered time-series steps.
type SeriesGenerator interface {
	Generate(ctx context.Context, req timeseries.Request) ([]timeseries.Step, error)
}

// Engine wires the analysis pipeline. All collaborators are injected; the
// zero value is unusable.
type Engine struct {
	normalizer *dates.Normalizer
	locations  LocationResolver
	prompts    PromptAnalyzer
	selector   timeseries.ImageSelector
	renderer   timeseries.TileRenderer
	stats      timeseries.StatsReducer
	series     SeriesGenerator
	limiter    *admission.Limiter
	tracker    *telemetry.Tracker
	metrics    *metrics.Collector
}

// Options bundles the engine's collaborators. Prompts, Stats, Tracker, and
// Metrics may be nil.
type Options struct {
	Normalizer *dates.Normalizer
	Locations  LocationResolver
	Prompts    PromptAnalyzer
	Selector   timeseries.ImageSelector
	Renderer   timeseries.TileRenderer
	Stats      timeseries.StatsReducer
	Series     SeriesGenerator
	Limiter    *admission.Limiter
	Tracker    *telemetry.Tracker
	Metrics    *metrics.Collector
}

// New assembles an engine.
func New(opts Options) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = dates.New()
	}
	if opts.Limiter == nil {
		opts.Limiter = admission.NewLimiter(admission.DefaultLimit)
	}
	return &Engine{
		normalizer: opts.Normalizer,
		locations:  opts.Locations,
		prompts:    opts.Prompts,
		selector:   opts.Selector,
		renderer:   opts.Renderer,
		stats:      opts.Stats,
		series:     opts.Series,
		limiter:    opts.Limiter,
		tracker:    opts.Tracker,
		metrics:    opts.Metrics,
	}
}

// AnalyzeRequest is one imagery analysis. Either Prompt or Location must be
// set; explicit fields win over anything the prompt analyzer extracts.
type AnalyzeRequest struct {
	Prompt       string
	Location     string
	Latitude     *float64
	Longitude    *float64
	AnalysisType string
	Satellite    string
	StartDate    string
	EndDate      string
	Year         int
}

// LocationInfo describes the resolved region in a result.
type LocationInfo struct {
	Name     string                 `json:"name"`
	Lat      float64                `json:"lat"`
	Lon      float64                `json:"lon"`
	Boundary bool                   `json:"boundary"`
	GeoJSON  map[string]interface{} `json:"geojson,omitempty"`
}

// PeriodView is the imagery outcome for one date window.
type PeriodView struct {
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Satellite  string          `json:"satellite"`
	ImageCount int             `json:"image_count"`
	Widened    bool            `json:"widened"`
	Merged     bool            `json:"merged"`
	Tile       *tiles.Handle   `json:"tile"`
	Statistics *ee.RegionStats `json:"statistics,omitempty"`
}

// AnalysisResult is the response of Analyze.
type AnalysisResult struct {
	ID           string                `json:"id"`
	AnalysisType common.ProcessingType `json:"analysis_type"`
	Location     LocationInfo          `json:"location"`
	PeriodView
}

// Analyze resolves, selects, renders, and reduces one analysis request.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	req, err := e.applyPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	ptype := common.ParseProcessingType(req.AnalysisType)
	window := e.windowFor(ptype, req.StartDate, req.EndDate, req.Year)

	region, err := e.resolveRegion(ctx, req, window)
	if err != nil {
		return nil, err
	}

	view, err := e.runPeriod(ctx, ptype, window, region, req.Satellite)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		ID:           uuid.NewString(),
		AnalysisType: ptype,
		Location:     locationInfo(req.Location, region),
		PeriodView:   *view,
	}
	e.track("analysis_completed", map[string]interface{}{
		"analysis_type": string(ptype),
		"satellite":     view.Satellite,
		"widened":       view.Widened,
		"merged":        view.Merged,
	})
	return result, nil
}

// TimeSeriesRequest is one time-series run over an explicit date range.
type TimeSeriesRequest struct {
	AnalyzeRequest
	Interval string
}

// TimeSeriesResult is the response of TimeSeries.
type TimeSeriesResult struct {
	ID           string                `json:"id"`
	AnalysisType common.ProcessingType `json:"analysis_type"`
	Location     LocationInfo          `json:"location"`
	Interval     timeseries.Interval   `json:"interval"`
	Start        string                `json:"start"`
	End          string                `json:"end"`
	Steps        []timeseries.Step     `json:"steps"`
}

// TimeSeries buckets the range and resolves imagery for every bucket.
func (e *Engine) TimeSeries(ctx context.Context, req TimeSeriesRequest) (*TimeSeriesResult, error) {
	base, err := e.applyPrompt(ctx, req.AnalyzeRequest)
	if err != nil {
		return nil, err
	}
	req.AnalyzeRequest = base

	interval, err := timeseries.ParseInterval(req.Interval)
	if err != nil {
		return nil, err
	}
	ptype := common.ParseProcessingType(req.AnalysisType)
	window := e.window(req.StartDate, req.EndDate, req.Year)
	if window.Mode == dates.ModeLatest {
		return nil, fmt.Errorf("time series requires an explicit date range")
	}

	region, err := e.resolveRegion(ctx, req.AnalyzeRequest, window)
	if err != nil {
		return nil, err
	}

	steps, err := e.series.Generate(ctx, timeseries.Request{
		Type:          ptype,
		Window:        window,
		Interval:      interval,
		Region:        region,
		SatelliteHint: req.Satellite,
	})
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.TimeSeriesBuckets.Observe(float64(len(steps)))
	}
	e.track("time_series_completed", map[string]interface{}{
		"analysis_type": string(ptype),
		"interval":      string(interval),
		"buckets":       len(steps),
	})
	return &TimeSeriesResult{
		ID:           uuid.NewString(),
		AnalysisType: ptype,
		Location:     locationInfo(req.Location, region),
		Interval:     interval,
		Start:        common.FormatISO8601(window.Start),
		End:          common.FormatISO8601(window.End),
		Steps:        steps,
	}, nil
}

// ComparePeriod names one side of a comparison.
type ComparePeriod struct {
	StartDate string
	EndDate   string
	Year      int
}

// CompareRequest contrasts the same region and analysis across two periods.
type CompareRequest struct {
	Location     string
	Latitude     *float64
	Longitude    *float64
	AnalysisType string
	Satellite    string
	Before       ComparePeriod
	After        ComparePeriod
}

// StatsDelta is the change between two periods' statistics.
type StatsDelta struct {
	MeanDelta   float64 `json:"mean_delta"`
	MeanPercent float64 `json:"mean_percent"`
}

// CompareResult is the response of Compare.
type CompareResult struct {
	ID           string                `json:"id"`
	AnalysisType common.ProcessingType `json:"analysis_type"`
	Location     LocationInfo          `json:"location"`
	Before       PeriodView            `json:"before"`
	After        PeriodView            `json:"after"`
	Delta        *StatsDelta           `json:"delta,omitempty"`
}

// Compare runs the analysis pipeline for both periods over one resolved
// region. Both periods must yield imagery; a single missing side fails the
// comparison.
func (e *Engine) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	ptype := common.ParseProcessingType(req.AnalysisType)

	before := e.window(req.Before.StartDate, req.Before.EndDate, req.Before.Year)
	after := e.window(req.After.StartDate, req.After.EndDate, req.After.Year)
	if before.Mode == dates.ModeLatest || after.Mode == dates.ModeLatest {
		return nil, fmt.Errorf("comparison requires explicit date ranges")
	}

	base := AnalyzeRequest{Location: req.Location, Latitude: req.Latitude, Longitude: req.Longitude}
	region, err := e.resolveRegion(ctx, base, before)
	if err != nil {
		return nil, err
	}

	beforeView, err := e.runPeriod(ctx, ptype, before, region, req.Satellite)
	if err != nil {
		return nil, fmt.Errorf("before period: %w", err)
	}
	afterView, err := e.runPeriod(ctx, ptype, after, region, req.Satellite)
	if err != nil {
		return nil, fmt.Errorf("after period: %w", err)
	}

	result := &CompareResult{
		ID:           uuid.NewString(),
		AnalysisType: ptype,
		Location:     locationInfo(req.Location, region),
		Before:       *beforeView,
		After:        *afterView,
		Delta:        statsDelta(beforeView.Statistics, afterView.Statistics),
	}
	e.track("comparison_completed", map[string]interface{}{
		"analysis_type": string(ptype),
	})
	return result, nil
}

// runPeriod executes selection, rendering, and statistics for one window
// under an admission slot.
func (e *Engine) runPeriod(ctx context.Context, ptype common.ProcessingType, window dates.Window, region geo.Geometry, satellite string) (*PeriodView, error) {
	if err := e.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.limiter.Release()

	res, err := e.selector.Select(ctx, ptype, window, region, satellite)
	if err != nil {
		if errors.Is(err, selector.ErrNoImagery) && e.metrics != nil {
			e.metrics.RecordNoImagery(string(ptype))
		}
		return nil, err
	}

	tile, err := e.renderer.Render(ctx, res, region)
	if err != nil {
		return nil, err
	}

	view := &PeriodView{
		Start:      common.FormatISO8601(res.Window.Start),
		End:        common.FormatISO8601(res.Window.End),
		Satellite:  res.Collection.Name,
		ImageCount: len(res.Images),
		Widened:    res.Widened,
		Merged:     res.Merged,
		Tile:       tile,
	}
	if e.stats != nil {
		stats, err := e.stats.Reduce(ctx, res, region)
		if err != nil {
			log.Printf("[Engine] statistics failed for %s: %v", ptype, err)
		} else {
			view.Statistics = stats
		}
	}
	if e.metrics != nil {
		fallback := false
		if cfg, ok := catalog.For(ptype); ok && len(cfg.Candidates) > 0 {
			fallback = cfg.Candidates[0].ID != res.Collection.ID
		}
		e.metrics.RecordAnalysis(string(ptype), view.Satellite, fallback, res.Widened, res.Merged)
	}
	return view, nil
}

// applyPrompt fills empty request fields from prompt analysis. Explicit
// fields always win.
func (e *Engine) applyPrompt(ctx context.Context, req AnalyzeRequest) (AnalyzeRequest, error) {
	if req.Prompt == "" {
		return req, nil
	}
	if e.prompts == nil {
		return req, fmt.Errorf("prompt analysis is not available")
	}
	analysis, err := e.prompts.AnalyzePrompt(ctx, req.Prompt)
	if err != nil {
		return req, fmt.Errorf("analyzing prompt: %w", err)
	}
	if req.Location == "" {
		req.Location = analysis.Location
	}
	if req.AnalysisType == "" {
		req.AnalysisType = analysis.ProcessingType
	}
	if req.Satellite == "" {
		req.Satellite = analysis.Satellite
	}
	if req.StartDate == "" {
		req.StartDate = analysis.StartDate
	}
	if req.EndDate == "" {
		req.EndDate = analysis.EndDate
	}
	if req.Year == 0 {
		req.Year = analysis.Year
	}
	if req.Latitude == nil && analysis.Latitude != nil && analysis.Longitude != nil {
		req.Latitude = analysis.Latitude
		req.Longitude = analysis.Longitude
	}
	return req, nil
}

// windowFor normalizes the date inputs for one analysis type. Year-keyed
// products (annual mosaics) default to the most recent complete year rather
// than a trailing window.
func (e *Engine) windowFor(ptype common.ProcessingType, start, end string, year int) dates.Window {
	if cfg, ok := catalog.For(ptype); ok && cfg.NeedsYear && start == "" && end == "" && year == 0 {
		year = time.Now().UTC().Year() - 1
	}
	return e.window(start, end, year)
}

// window normalizes the date inputs. Malformed dates fall back to the
// default trailing window instead of failing the whole analysis.
func (e *Engine) window(start, end string, year int) dates.Window {
	if start == "" && end == "" && year == 0 {
		return e.normalizer.Default()
	}
	window, err := e.normalizer.Range(start, end, year)
	if err != nil {
		log.Printf("[Engine] unusable date range (%q, %q, %d), using default window: %v", start, end, year, err)
		return e.normalizer.Default()
	}
	return window
}

func (e *Engine) resolveRegion(ctx context.Context, req AnalyzeRequest, window dates.Window) (geo.Geometry, error) {
	locReq := location.Request{Location: req.Location, Window: window}
	if req.Latitude != nil && req.Longitude != nil {
		locReq.Coordinates = &geocode.Coordinates{Lat: *req.Latitude, Lon: *req.Longitude}
	}
	return e.locations.Resolve(ctx, locReq)
}

func (e *Engine) track(event string, props map[string]interface{}) {
	e.tracker.TrackEvent(event, props)
}

func locationInfo(name string, region geo.Geometry) LocationInfo {
	info := LocationInfo{
		Name:     name,
		Lat:      region.Center.Lat,
		Lon:      region.Center.Lon,
		Boundary: region.Kind == geo.KindPolygon && region.RadiusM == 0,
		GeoJSON:  region.GeoJSON(),
	}
	if region.Name != "" {
		info.Name = region.Name
	}
	return info
}

func statsDelta(before, after *ee.RegionStats) *StatsDelta {
	if before == nil || after == nil {
		return nil
	}
	delta := &StatsDelta{MeanDelta: after.Mean - before.Mean}
	if before.Mean != 0 {
		delta.MeanPercent = delta.MeanDelta / before.Mean * 100
	}
	return delta
}
