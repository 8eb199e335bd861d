// Package selector turns an analysis type and a date window into a concrete
// imagery choice: which collection, which images, which reducer. The cascade
// walks the catalog's candidate list in priority order and carries no
// per-type branching of its own.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"imagery-engine/internal/catalog"
	"imagery-engine/internal/common"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
)

// ErrNoImagery marks exhaustion of every candidate collection. Match with
// errors.Is.
var ErrNoImagery = errors.New("no imagery available")

// Attempt records one collection query made during selection, for error
// reporting and logs.
type Attempt struct {
	Collection string
	Start, End time.Time
	MaxCloud   float64
}

func (a Attempt) String() string {
	if a.MaxCloud > 0 {
		return fmt.Sprintf("%s %s..%s (cloud<%.0f%%)", a.Collection,
			common.FormatISO8601(a.Start), common.FormatISO8601(a.End), a.MaxCloud)
	}
	return fmt.Sprintf("%s %s..%s", a.Collection,
		common.FormatISO8601(a.Start), common.FormatISO8601(a.End))
}

// NoImageryError reports which collections and windows were tried before
// giving up.
type NoImageryError struct {
	Type     common.ProcessingType
	Attempts []Attempt
}

func (e *NoImageryError) Error() string {
	tried := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		tried[i] = a.String()
	}
	return fmt.Sprintf("no %s imagery found after %d attempts: %s",
		e.Type, len(e.Attempts), strings.Join(tried, "; "))
}

func (e *NoImageryError) Is(target error) bool { return target == ErrNoImagery }

// Config tunes the widening and latest-imagery behavior.
type Config struct {
	// WidenBelowDays: explicit windows shorter than this are widened once
	// when every candidate comes back empty.
	WidenBelowDays int
	// WidenToDays is the total span of the widened window, centered on the
	// original midpoint.
	WidenToDays int
	// LatestWindowDays is the trailing search span for latest-imagery
	// requests.
	LatestWindowDays int
}

// DefaultConfig matches the sensor revisit cadences the thresholds were
// tuned for.
func DefaultConfig() Config {
	return Config{WidenBelowDays: 180, WidenToDays: 240, LatestWindowDays: 90}
}

// Resolved is the outcome of a successful selection. It carries everything
// tile rendering and statistics need; nothing downstream re-queries the
// catalog.
type Resolved struct {
	Type        common.ProcessingType
	Collection  catalog.Collection // primary collection
	Collections []string           // one ID, or two when merged
	Images      []ee.Image
	Reducer     ee.Reducer
	Window      dates.Window // effective window actually searched
	Widened     bool
	Merged      bool
	Vis         catalog.VisParams
	StatBand    string
}

// Selector runs the candidate cascade against a backend.
type Selector struct {
	backend ee.Backend
	cfg     Config
	now     func() time.Time
}

// New creates a Selector with the default widening configuration.
func New(backend ee.Backend) *Selector {
	return NewWithConfig(backend, DefaultConfig())
}

// NewWithConfig creates a Selector with explicit tuning.
func NewWithConfig(backend ee.Backend, cfg Config) *Selector {
	def := DefaultConfig()
	if cfg.WidenBelowDays <= 0 {
		cfg.WidenBelowDays = def.WidenBelowDays
	}
	if cfg.WidenToDays <= 0 {
		cfg.WidenToDays = def.WidenToDays
	}
	if cfg.LatestWindowDays <= 0 {
		cfg.LatestWindowDays = def.LatestWindowDays
	}
	return &Selector{backend: backend, cfg: cfg, now: time.Now}
}

// Select picks the best collection and image set for the analysis type over
// the window. satelliteHint, when it names a candidate, starts the cascade
// at that generation. Backend failures propagate as-is; only genuinely empty
// results advance the cascade.
func (s *Selector) Select(ctx context.Context, t common.ProcessingType, window dates.Window, region geo.Geometry, satelliteHint string) (*Resolved, error) {
	cfg, ok := catalog.For(t)
	if !ok {
		return nil, fmt.Errorf("no collection configuration for analysis type %q", t)
	}
	if window.Mode == dates.ModeLatest {
		return s.selectLatest(ctx, cfg, region, satelliteHint)
	}
	return s.selectExplicit(ctx, cfg, window, region, satelliteHint)
}

// selectLatest searches a trailing window ending today and keeps only the
// most recent acquisition. The window is never widened: stale imagery
// presented as "latest" is worse than an honest miss.
func (s *Selector) selectLatest(ctx context.Context, cfg catalog.AnalysisConfig, region geo.Geometry, hint string) (*Resolved, error) {
	end := s.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -s.cfg.LatestWindowDays)
	window := dates.Window{Start: start, End: end, Mode: dates.ModeLatest}

	var attempts []Attempt
	for _, cand := range cfg.CandidatesFor(hint) {
		if !cand.CoversWindow(start, end) {
			continue
		}
		images, att, err := s.query(ctx, cand, region, start, end, cand.MaxCloud)
		attempts = append(attempts, att)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			continue
		}
		latest := mostRecent(images)
		log.Printf("[Selector] latest %s imagery: %s acquired %s (cloud %.1f%%)",
			cfg.Type, cand.Name, common.FormatISO8601(latest.AcquiredAt), latest.CloudCover)
		return &Resolved{
			Type:        cfg.Type,
			Collection:  cand,
			Collections: []string{cand.ID},
			Images:      []ee.Image{latest},
			Reducer:     ee.ReducerMostRecent,
			Window:      window,
			Vis:         cfg.VisFor(cand.ID),
			StatBand:    cfg.StatBand,
		}, nil
	}
	return nil, &NoImageryError{Type: cfg.Type, Attempts: attempts}
}

// selectExplicit runs the priority cascade over the requested window, widens
// once when everything is empty and the window is short, then tries merging
// adjacent Landsat generations before giving up.
func (s *Selector) selectExplicit(ctx context.Context, cfg catalog.AnalysisConfig, window dates.Window, region geo.Geometry, hint string) (*Resolved, error) {
	candidates := cfg.CandidatesFor(hint)

	var attempts []Attempt
	res, atts, err := s.cascade(ctx, cfg, candidates, window, region, false)
	attempts = append(attempts, atts...)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	widened := window
	didWiden := false
	if window.Days() < s.cfg.WidenBelowDays {
		widened = s.widen(window)
		didWiden = true
		log.Printf("[Selector] no %s imagery in %s, widening to %s", cfg.Type, window, widened)
		res, atts, err = s.cascade(ctx, cfg, candidates, widened, region, true)
		attempts = append(attempts, atts...)
		if err != nil {
			return nil, err
		}
		if res != nil {
			res.Widened = true
			return res, nil
		}
	}

	res, atts, err = s.merge(ctx, cfg, candidates, widened, region)
	attempts = append(attempts, atts...)
	if err != nil {
		return nil, err
	}
	if res != nil {
		res.Widened = didWiden
		return res, nil
	}
	return nil, &NoImageryError{Type: cfg.Type, Attempts: attempts}
}

// cascade tries each candidate in order and stops at the first non-empty
// result. Priority is strict: one Landsat 9 scene beats fifty Landsat 8
// scenes.
func (s *Selector) cascade(ctx context.Context, cfg catalog.AnalysisConfig, candidates []catalog.Collection, window dates.Window, region geo.Geometry, widened bool) (*Resolved, []Attempt, error) {
	var attempts []Attempt
	for _, cand := range candidates {
		if !cand.CoversWindow(window.Start, window.End) {
			continue
		}
		maxCloud := cand.MaxCloud
		if widened {
			maxCloud = cand.WidenedMaxCloud
		}
		images, att, err := s.query(ctx, cand, region, window.Start, window.End, maxCloud)
		attempts = append(attempts, att)
		if err != nil {
			return nil, attempts, err
		}
		if len(images) == 0 {
			continue
		}
		log.Printf("[Selector] %s imagery: %d %s images in %s", cfg.Type, len(images), cand.Name, window)
		return &Resolved{
			Type:        cfg.Type,
			Collection:  cand,
			Collections: []string{cand.ID},
			Images:      images,
			Reducer:     ee.ReducerMedian,
			Window:      window,
			Vis:         cfg.VisFor(cand.ID),
			StatBand:    cfg.StatBand,
		}, attempts, nil
	}
	return nil, attempts, nil
}

// merge combines a candidate with its declared adjacent generation after the
// per-collection cascade has failed, using the relaxed cloud ceiling.
func (s *Selector) merge(ctx context.Context, cfg catalog.AnalysisConfig, candidates []catalog.Collection, window dates.Window, region geo.Geometry) (*Resolved, []Attempt, error) {
	var attempts []Attempt
	for _, cand := range candidates {
		if cand.MergeWith == "" || !cand.CoversWindow(window.Start, window.End) {
			continue
		}
		partner, ok := findCandidate(candidates, cand.MergeWith)
		if !ok || !partner.CoversWindow(window.Start, window.End) {
			continue
		}
		var merged []ee.Image
		for _, c := range []catalog.Collection{cand, partner} {
			images, att, err := s.query(ctx, c, region, window.Start, window.End, c.WidenedMaxCloud)
			attempts = append(attempts, att)
			if err != nil {
				return nil, attempts, err
			}
			merged = append(merged, images...)
		}
		if len(merged) == 0 {
			continue
		}
		log.Printf("[Selector] merged %s and %s: %d images in %s", cand.Name, partner.Name, len(merged), window)
		return &Resolved{
			Type:        cfg.Type,
			Collection:  cand,
			Collections: []string{cand.ID, partner.ID},
			Images:      merged,
			Reducer:     ee.ReducerMedian,
			Window:      window,
			Merged:      true,
			Vis:         cfg.VisFor(cand.ID),
			StatBand:    cfg.StatBand,
		}, attempts, nil
	}
	return nil, attempts, nil
}

func (s *Selector) query(ctx context.Context, cand catalog.Collection, region geo.Geometry, start, end time.Time, maxCloud float64) ([]ee.Image, Attempt, error) {
	att := Attempt{Collection: cand.ID, Start: start, End: end}
	req := ee.QueryRequest{
		Collection: cand.ID,
		Geometry:   region,
		Start:      start,
		End:        end,
	}
	if cand.CloudProp != "" {
		req.CloudProp = cand.CloudProp
		req.MaxCloud = maxCloud
		att.MaxCloud = maxCloud
	}
	images, err := s.backend.QueryCollection(ctx, req)
	return images, att, err
}

// widen recenters the window on its midpoint at the configured total span.
// The end never passes today.
func (s *Selector) widen(w dates.Window) dates.Window {
	half := s.cfg.WidenToDays / 2
	mid := w.Midpoint()
	start := mid.AddDate(0, 0, -half)
	end := mid.AddDate(0, 0, half)
	today := s.now().UTC().Truncate(24 * time.Hour)
	if end.After(today) {
		end = today
	}
	return dates.Window{Start: start, End: end, Mode: dates.ModeExplicit}
}

func mostRecent(images []ee.Image) ee.Image {
	best := images[0]
	for _, img := range images[1:] {
		if img.AcquiredAt.After(best.AcquiredAt) {
			best = img
		}
	}
	return best
}

func findCandidate(candidates []catalog.Collection, id string) (catalog.Collection, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return catalog.Collection{}, false
}
