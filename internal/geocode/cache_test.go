package geocode

import (
	"context"
	"errors"
	"testing"
)

// countingGeocoder records how many times each location hits the upstream.
type countingGeocoder struct {
	calls   map[string]int
	results map[string]Coordinates
	err     error
}

func newCountingGeocoder() *countingGeocoder {
	return &countingGeocoder{
		calls:   make(map[string]int),
		results: make(map[string]Coordinates),
	}
}

func (c *countingGeocoder) Geocode(_ context.Context, location string) (Coordinates, bool, error) {
	c.calls[location]++
	if c.err != nil {
		return Coordinates{}, false, c.err
	}
	coords, ok := c.results[location]
	return coords, ok, nil
}

func TestCachedGeocoderIdempotent(t *testing.T) {
	upstream := newCountingGeocoder()
	upstream.results["Paris, France"] = Coordinates{Lat: 48.8566, Lon: 2.3522}

	cached, err := NewCachedGeocoder(upstream, 8)
	if err != nil {
		t.Fatalf("NewCachedGeocoder failed: %v", err)
	}

	first, found, err := cached.Geocode(context.Background(), "Paris, France")
	if err != nil || !found {
		t.Fatalf("first lookup: found=%v err=%v", found, err)
	}
	second, found, err := cached.Geocode(context.Background(), "Paris, France")
	if err != nil || !found {
		t.Fatalf("second lookup: found=%v err=%v", found, err)
	}

	if first != second {
		t.Errorf("cache returned different coordinates: %v vs %v", first, second)
	}
	if upstream.calls["Paris, France"] != 1 {
		t.Errorf("upstream called %d times, want 1", upstream.calls["Paris, France"])
	}
}

func TestCachedGeocoderDoesNotCacheMisses(t *testing.T) {
	upstream := newCountingGeocoder()
	cached, _ := NewCachedGeocoder(upstream, 8)

	for i := 0; i < 2; i++ {
		_, found, err := cached.Geocode(context.Background(), "Nowhereville")
		if found || err != nil {
			t.Fatalf("lookup %d: found=%v err=%v", i, found, err)
		}
	}
	if upstream.calls["Nowhereville"] != 2 {
		t.Errorf("upstream called %d times for misses, want 2", upstream.calls["Nowhereville"])
	}
}

func TestCachedGeocoderDoesNotCacheErrors(t *testing.T) {
	upstream := newCountingGeocoder()
	upstream.err = errors.New("service timeout")
	cached, _ := NewCachedGeocoder(upstream, 8)

	_, _, err := cached.Geocode(context.Background(), "Paris, France")
	if err == nil {
		t.Fatal("expected error from upstream")
	}
	if cached.Len() != 0 {
		t.Errorf("error result was cached, Len() = %d", cached.Len())
	}
}

type countingMetric struct{ n int }

func (c *countingMetric) Inc() { c.n++ }

func TestCachedGeocoderCountsHitsAndMisses(t *testing.T) {
	upstream := newCountingGeocoder()
	upstream.results["Paris, France"] = Coordinates{Lat: 48.8566, Lon: 2.3522}

	cached, _ := NewCachedGeocoder(upstream, 8)
	hits := &countingMetric{}
	misses := &countingMetric{}
	cached.Instrument(hits, misses)

	cached.Geocode(context.Background(), "Paris, France")
	cached.Geocode(context.Background(), "Paris, France")
	cached.Geocode(context.Background(), "Nowhereville")

	if hits.n != 1 {
		t.Errorf("hits = %d, want 1", hits.n)
	}
	if misses.n != 2 {
		t.Errorf("misses = %d, want 2", misses.n)
	}
}

func TestCachedGeocoderEvicts(t *testing.T) {
	upstream := newCountingGeocoder()
	for _, loc := range []string{"a", "b", "c"} {
		upstream.results[loc] = Coordinates{Lat: 1, Lon: 1}
	}
	cached, _ := NewCachedGeocoder(upstream, 2)

	for _, loc := range []string{"a", "b", "c"} {
		cached.Geocode(context.Background(), loc)
	}
	if cached.Len() != 2 {
		t.Errorf("Len() = %d, want capacity 2", cached.Len())
	}
}
