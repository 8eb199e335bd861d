package geocode

import (
	"context"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the geocode cache. Location strings repeat
// heavily, so a small capacity covers most traffic.
const DefaultCacheSize = 128

// Counter is the increment-only metrics counter the cache records hits and
// misses to. A prometheus counter satisfies it.
type Counter interface {
	Inc()
}

// CachedGeocoder memoizes successful lookups in a bounded LRU. The cache is
// pure for the process lifetime: the same location string always yields the
// same coordinates without a second upstream call.
type CachedGeocoder struct {
	upstream Geocoder
	cache    *lru.Cache[string, Coordinates]
	hits     Counter
	misses   Counter
}

// NewCachedGeocoder wraps the upstream geocoder with an LRU of the given
// capacity. Capacity values below 1 fall back to DefaultCacheSize.
func NewCachedGeocoder(upstream Geocoder, capacity int) (*CachedGeocoder, error) {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	cache, err := lru.New[string, Coordinates](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedGeocoder{upstream: upstream, cache: cache}, nil
}

// Instrument attaches hit and miss counters. Either may be nil.
func (c *CachedGeocoder) Instrument(hits, misses Counter) {
	c.hits = hits
	c.misses = misses
}

// Geocode returns the cached coordinates when present, otherwise asks the
// upstream geocoder. Only successful lookups are cached; failures stay
// retryable.
func (c *CachedGeocoder) Geocode(ctx context.Context, location string) (Coordinates, bool, error) {
	if coords, ok := c.cache.Get(location); ok {
		if c.hits != nil {
			c.hits.Inc()
		}
		return coords, true, nil
	}
	if c.misses != nil {
		c.misses.Inc()
	}
	if c.upstream == nil {
		return Coordinates{}, false, nil
	}

	coords, found, err := c.upstream.Geocode(ctx, location)
	if err != nil || !found {
		return Coordinates{}, false, err
	}

	c.cache.Add(location, coords)
	log.Printf("[Geocoder] Cached %q -> (%f, %f)", location, coords.Lat, coords.Lon)
	return coords, true, nil
}

// Len reports the number of cached entries.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
