package tiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"imagery-engine/internal/catalog"
	"imagery-engine/internal/common"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/selector"
)

type fakeBackend struct {
	url     string
	err     error
	lastReq ee.RenderRequest
}

func (f *fakeBackend) QueryCollection(context.Context, ee.QueryRequest) ([]ee.Image, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) RenderTile(_ context.Context, req ee.RenderRequest) (string, error) {
	f.lastReq = req
	return f.url, f.err
}

func (f *fakeBackend) ReduceRegion(context.Context, ee.ReduceRequest) (ee.RegionStats, error) {
	return ee.RegionStats{}, errors.New("not implemented")
}

func resolvedFixture() *selector.Resolved {
	cfg, _ := catalog.For(common.ProcessingNDVI)
	cand := cfg.Candidates[0]
	return &selector.Resolved{
		Type:        common.ProcessingNDVI,
		Collection:  cand,
		Collections: []string{cand.ID},
		Reducer:     ee.ReducerMedian,
		Window: dates.Window{
			Start: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		Vis:      cfg.VisFor(cand.ID),
		StatBand: cfg.StatBand,
	}
}

func TestRenderBuildsRequestFromSelection(t *testing.T) {
	backend := &fakeBackend{url: "https://tiles.example.com/{z}/{x}/{y}"}
	r := NewRenderer(backend)
	res := resolvedFixture()
	region := geo.NewPoint(48.85, 2.35).Buffer(10000)

	handle, err := r.Render(context.Background(), res, region)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if handle.URLTemplate != backend.url {
		t.Errorf("URL template = %q, want %q", handle.URLTemplate, backend.url)
	}
	if handle.Satellite != res.Collection.Name {
		t.Errorf("satellite = %q, want %q", handle.Satellite, res.Collection.Name)
	}
	req := backend.lastReq
	if len(req.Collections) != 1 || req.Collections[0] != res.Collection.ID {
		t.Errorf("request collections = %v", req.Collections)
	}
	if req.Derive == nil || req.Derive.Rename != "NDVI" {
		t.Errorf("derived band missing from request: %+v", req.Derive)
	}
	if !req.Start.Equal(res.Window.Start) || !req.End.Equal(res.Window.End) {
		t.Errorf("request window [%s, %s] does not match selection", req.Start, req.End)
	}
}

func TestRenderWrapsBackendFailure(t *testing.T) {
	backendErr := &ee.BackendError{Op: "tiles", Status: 500, Err: errors.New("boom")}
	r := NewRenderer(&fakeBackend{err: backendErr})

	_, err := r.Render(context.Background(), resolvedFixture(), geo.NewPoint(0, 0).Buffer(1000))
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
	if !errors.Is(err, ee.ErrUnavailable) {
		t.Errorf("backend error chain lost: %v", err)
	}
}

func TestRenderRejectsEmptyTemplate(t *testing.T) {
	r := NewRenderer(&fakeBackend{url: ""})
	_, err := r.Render(context.Background(), resolvedFixture(), geo.NewPoint(0, 0).Buffer(1000))
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
}
