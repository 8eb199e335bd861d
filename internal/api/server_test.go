package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"imagery-engine/internal/common"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/engine"
	"imagery-engine/internal/location"
	"imagery-engine/internal/selector"
	"imagery-engine/internal/tiles"
	"imagery-engine/internal/timeseries"
)

type fakeService struct {
	analyzeReq engine.AnalyzeRequest
	analyzeErr error
	seriesErr  error
	compareErr error
}

func (f *fakeService) Analyze(_ context.Context, req engine.AnalyzeRequest) (*engine.AnalysisResult, error) {
	f.analyzeReq = req
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &engine.AnalysisResult{
		ID:           "test-id",
		AnalysisType: common.ProcessingNDVI,
		Location:     engine.LocationInfo{Name: req.Location, Lat: 48.85, Lon: 2.35},
		PeriodView: engine.PeriodView{
			Start:     "2023-06-01",
			End:       "2023-09-01",
			Satellite: common.SatelliteSentinel2,
			Tile:      &tiles.Handle{URLTemplate: "https://tiles.example.com/{z}/{x}/{y}"},
		},
	}, nil
}

func (f *fakeService) TimeSeries(_ context.Context, req engine.TimeSeriesRequest) (*engine.TimeSeriesResult, error) {
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return &engine.TimeSeriesResult{
		ID:           "series-id",
		AnalysisType: common.ProcessingNDVI,
		Interval:     timeseries.IntervalMonthly,
		Steps:        []timeseries.Step{{Index: 0, Start: "2023-01-01", End: "2023-01-31"}},
	}, nil
}

func (f *fakeService) Compare(_ context.Context, req engine.CompareRequest) (*engine.CompareResult, error) {
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return &engine.CompareResult{ID: "compare-id", AnalysisType: common.ProcessingNDVI}, nil
}

func postJSON(t *testing.T, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	svc := &fakeService{}
	app := NewApp(svc, nil)

	resp, err := app.Test(postJSON(t, "/api/v1/analyze", map[string]interface{}{
		"location":      "Paris",
		"analysis_type": "NDVI",
		"start_date":    "2023-06-01",
		"end_date":      "2023-09-01",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["id"] != "test-id" {
		t.Errorf("body = %v", body)
	}
	if svc.analyzeReq.Location != "Paris" || svc.analyzeReq.StartDate != "2023-06-01" {
		t.Errorf("service saw %+v", svc.analyzeReq)
	}
}

func TestAnalyzeRequiresLocationOrPrompt(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/analyze", map[string]interface{}{
		"analysis_type": "NDVI",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeRejectsOutOfRangeCoordinates(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/analyze", map[string]interface{}{
		"latitude":  95.0,
		"longitude": 10.0,
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"location not found", location.ErrLocationNotFound, http.StatusNotFound, "location_not_found"},
		{"no imagery", &selector.NoImageryError{Type: common.ProcessingNDVI}, http.StatusNotFound, "no_imagery"},
		{"backend down", &ee.BackendError{Op: "tiles", Status: 503, Err: errors.New("unavailable")}, http.StatusBadGateway, "backend_error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := NewApp(&fakeService{analyzeErr: tc.err}, nil)
			resp, err := app.Test(postJSON(t, "/api/v1/analyze", map[string]interface{}{
				"location": "Paris",
			}))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if body := decodeBody(t, resp); body["code"] != tc.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tc.wantCode)
			}
		})
	}
}

func TestTimeSeriesRequiresDates(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/timeseries", map[string]interface{}{
		"location": "Paris",
		"interval": "monthly",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTimeSeriesHappyPath(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/timeseries", map[string]interface{}{
		"location":      "Paris",
		"analysis_type": "NDVI",
		"start_date":    "2023-01-01",
		"end_date":      "2023-12-31",
		"interval":      "monthly",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["id"] != "series-id" {
		t.Errorf("body = %v", body)
	}
}

func TestComparisonRequiresBothPeriods(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/comparison", map[string]interface{}{
		"location": "Aral Sea",
		"before":   map[string]interface{}{"year": 2018},
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestComparisonHappyPath(t *testing.T) {
	app := NewApp(&fakeService{}, nil)
	resp, err := app.Test(postJSON(t, "/api/v1/comparison", map[string]interface{}{
		"location":      "Aral Sea",
		"analysis_type": "SURFACE_WATER",
		"before":        map[string]interface{}{"year": 2018},
		"after":         map[string]interface{}{"year": 2023},
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["id"] != "compare-id" {
		t.Errorf("body = %v", body)
	}
}
