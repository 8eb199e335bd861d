package ee

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imagery-engine/internal/geo"
)

// fakeMetrics records backend observations for assertions.
type fakeMetrics struct {
	observed map[string]int
	errored  map[string]string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{observed: map[string]int{}, errored: map[string]string{}}
}

func (f *fakeMetrics) ObserveBackendRequest(operation string, seconds float64) {
	f.observed[operation]++
}

func (f *fakeMetrics) RecordBackendError(operation, status string) {
	f.errored[operation] = status
}

func queryRequest() QueryRequest {
	return QueryRequest{
		Collection: "COPERNICUS/S2_SR_HARMONIZED",
		Geometry:   geo.NewPoint(48.85, 2.35).Buffer(10000),
		Start:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRESTBackendObservesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"images":[]}`))
	}))
	defer server.Close()

	m := newFakeMetrics()
	backend := NewRESTBackend(server.URL, 5*time.Second)
	backend.Instrument(m)

	if _, err := backend.QueryCollection(context.Background(), queryRequest()); err != nil {
		t.Fatalf("QueryCollection failed: %v", err)
	}
	if m.observed["query"] != 1 {
		t.Errorf("observed %d query requests, want 1", m.observed["query"])
	}
	if len(m.errored) != 0 {
		t.Errorf("unexpected error records: %v", m.errored)
	}
}

func TestRESTBackendRecordsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newFakeMetrics()
	backend := NewRESTBackend(server.URL, 5*time.Second)
	backend.Instrument(m)

	_, err := backend.QueryCollection(context.Background(), queryRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if m.errored["query"] != "503" {
		t.Errorf("recorded error status %q, want 503", m.errored["query"])
	}
	if m.observed["query"] != 1 {
		t.Errorf("failed request not observed: %d", m.observed["query"])
	}
}

func TestRESTBackendWorksUninstrumented(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"images":[]}`))
	}))
	defer server.Close()

	backend := NewRESTBackend(server.URL, 5*time.Second)
	if _, err := backend.QueryCollection(context.Background(), queryRequest()); err != nil {
		t.Fatalf("QueryCollection failed: %v", err)
	}
}
