// Package cache memoizes opened tile sessions. Backend tile sessions are
// expensive to open and stay valid for hours, so identical analyses within
// the TTL reuse the same URL template.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"imagery-engine/internal/geo"
	"imagery-engine/internal/selector"
	"imagery-engine/internal/tiles"
)

// DefaultSize bounds the number of live sessions kept.
const DefaultSize = 256

// DefaultTTL stays under typical backend session lifetimes.
const DefaultTTL = 2 * time.Hour

// TileCache is a TTL-bounded LRU of tile handles.
type TileCache struct {
	entries *expirable.LRU[string, *tiles.Handle]
}

// NewTileCache creates a cache holding up to size handles for ttl each.
// Non-positive arguments fall back to the defaults.
func NewTileCache(size int, ttl time.Duration) *TileCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TileCache{entries: expirable.NewLRU[string, *tiles.Handle](size, nil, ttl)}
}

// Get returns the cached handle for the selection and region, if any.
func (c *TileCache) Get(res *selector.Resolved, region geo.Geometry) (*tiles.Handle, bool) {
	return c.entries.Get(cacheKey(res, region))
}

// Put stores a freshly opened handle.
func (c *TileCache) Put(res *selector.Resolved, region geo.Geometry, handle *tiles.Handle) {
	c.entries.Add(cacheKey(res, region), handle)
}

// Len reports the number of live entries.
func (c *TileCache) Len() int {
	return c.entries.Len()
}

// Renderer is the tile-opening collaborator the caching wrapper delegates
// to on a miss.
type Renderer interface {
	Render(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*tiles.Handle, error)
}

// CachingRenderer serves repeated renders of the same selection from the
// cache. Only successful renders are stored.
type CachingRenderer struct {
	inner Renderer
	cache *TileCache
}

// NewCachingRenderer wraps a renderer with a tile-session cache.
func NewCachingRenderer(inner Renderer, cache *TileCache) *CachingRenderer {
	if cache == nil {
		cache = NewTileCache(DefaultSize, DefaultTTL)
	}
	return &CachingRenderer{inner: inner, cache: cache}
}

// Render returns the cached handle when present, otherwise opens a session
// and caches it.
func (r *CachingRenderer) Render(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*tiles.Handle, error) {
	if handle, ok := r.cache.Get(res, region); ok {
		return handle, nil
	}
	handle, err := r.inner.Render(ctx, res, region)
	if err != nil {
		return nil, err
	}
	r.cache.Put(res, region, handle)
	return handle, nil
}

// cacheKey hashes everything that affects the rendered output: collections,
// window, reducer, visualization, and the region's bounding box.
func cacheKey(res *selector.Resolved, region geo.Geometry) string {
	south, west, north, east := region.BBox()
	h := sha256.New()
	for _, id := range res.Collections {
		fmt.Fprintf(h, "%s|", id)
	}
	fmt.Fprintf(h, "%s|%s|%s|%v|%.6f,%.6f,%.6f,%.6f",
		res.Window, res.Reducer, res.StatBand, res.Vis,
		south, west, north, east)
	return hex.EncodeToString(h.Sum(nil))
}
