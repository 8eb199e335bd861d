package ee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"imagery-engine/internal/catalog"
)

// Metrics receives per-request backend observations. A metrics.Collector
// satisfies it; a nil Metrics disables recording.
type Metrics interface {
	ObserveBackendRequest(operation string, seconds float64)
	RecordBackendError(operation, status string)
}

// RESTBackend implements Backend against a remote-sensing HTTP service. A
// circuit breaker sheds load once the backend starts failing; individual
// requests are never retried here because the backend enforces per-account
// concurrency ceilings and the caller owns retry policy.
type RESTBackend struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics Metrics
}

// NewRESTBackend creates a backend client for the given base URL.
func NewRESTBackend(baseURL string, timeout time.Duration) *RESTBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-sensing-backend",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &RESTBackend{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// Instrument attaches request metrics. Call before serving traffic.
func (b *RESTBackend) Instrument(m Metrics) {
	b.metrics = m
}

type queryPayload struct {
	Collection string                 `json:"collection"`
	Geometry   map[string]interface{} `json:"geometry"`
	StartDate  string                 `json:"start_date"`
	EndDate    string                 `json:"end_date"`
	CloudProp  string                 `json:"cloud_property,omitempty"`
	MaxCloud   float64                `json:"max_cloud,omitempty"`
}

type queryResponse struct {
	Images []Image `json:"images"`
}

// QueryCollection filters the collection server-side and returns image
// descriptors, oldest first as delivered by the backend.
func (b *RESTBackend) QueryCollection(ctx context.Context, req QueryRequest) ([]Image, error) {
	payload := queryPayload{
		Collection: req.Collection,
		Geometry:   req.Geometry.GeoJSON(),
		StartDate:  req.Start.Format("2006-01-02"),
		EndDate:    req.End.Format("2006-01-02"),
		CloudProp:  req.CloudProp,
		MaxCloud:   req.MaxCloud,
	}

	var resp queryResponse
	if err := b.do(ctx, "query", "/v1/collections:query", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Images, nil
}

type renderPayload struct {
	Collections []string               `json:"collections"`
	Geometry    map[string]interface{} `json:"geometry"`
	StartDate   string                 `json:"start_date"`
	EndDate     string                 `json:"end_date"`
	Bands       []string               `json:"bands"`
	Derive      *catalog.BandMath      `json:"derive,omitempty"`
	Reducer     Reducer                `json:"reducer"`
	Vis         catalog.VisParams      `json:"visualization"`
}

type renderResponse struct {
	URLTemplate string `json:"url_template"`
}

// RenderTile composites, clips, and visualizes server-side, returning the
// tile URL template of the opened tile session.
func (b *RESTBackend) RenderTile(ctx context.Context, req RenderRequest) (string, error) {
	payload := renderPayload{
		Collections: req.Collections,
		Geometry:    req.Geometry.GeoJSON(),
		StartDate:   req.Start.Format("2006-01-02"),
		EndDate:     req.End.Format("2006-01-02"),
		Bands:       req.Bands,
		Derive:      req.Derive,
		Reducer:     req.Reducer,
		Vis:         req.Vis,
	}

	var resp renderResponse
	if err := b.do(ctx, "render", "/v1/tiles", payload, &resp); err != nil {
		return "", err
	}
	if resp.URLTemplate == "" {
		return "", &BackendError{Op: "render", Err: fmt.Errorf("empty tile URL template")}
	}
	return resp.URLTemplate, nil
}

type reducePayload struct {
	Collections []string               `json:"collections"`
	Geometry    map[string]interface{} `json:"geometry"`
	StartDate   string                 `json:"start_date"`
	EndDate     string                 `json:"end_date"`
	Bands       []string               `json:"bands"`
	Derive      *catalog.BandMath      `json:"derive,omitempty"`
	Reducer     Reducer                `json:"reducer"`
	Band        string                 `json:"band"`
	ScaleM      float64                `json:"scale_m"`
}

// ReduceRegion computes mean/stddev/min/max/count of one band over the
// geometry.
func (b *RESTBackend) ReduceRegion(ctx context.Context, req ReduceRequest) (RegionStats, error) {
	payload := reducePayload{
		Collections: req.Collections,
		Geometry:    req.Geometry.GeoJSON(),
		StartDate:   req.Start.Format("2006-01-02"),
		EndDate:     req.End.Format("2006-01-02"),
		Bands:       req.Bands,
		Derive:      req.Derive,
		Reducer:     req.Reducer,
		Band:        req.Band,
		ScaleM:      req.ScaleM,
	}

	var resp RegionStats
	if err := b.do(ctx, "reduce", "/v1/statistics", payload, &resp); err != nil {
		return RegionStats{}, err
	}
	return resp, nil
}

// do executes one JSON POST through the circuit breaker. Quota and server
// errors map to BackendError; no local retry.
func (b *RESTBackend) do(ctx context.Context, op, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", op, err)
	}

	started := time.Now()
	result, err := b.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, &BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("quota exceeded")}
		case resp.StatusCode >= 500:
			return nil, &BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("server error")}
		case resp.StatusCode != http.StatusOK:
			return nil, &BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
		}
		return data, nil
	})
	if b.metrics != nil {
		b.metrics.ObserveBackendRequest(op, time.Since(started).Seconds())
	}
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			b.recordError(op, strconv.Itoa(be.Status))
			return be
		}
		log.Printf("[Backend] %s request failed: %v", op, err)
		b.recordError(op, "transport")
		return &BackendError{Op: op, Err: err}
	}

	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return &BackendError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (b *RESTBackend) recordError(op, status string) {
	if b.metrics != nil {
		b.metrics.RecordBackendError(op, status)
	}
}
