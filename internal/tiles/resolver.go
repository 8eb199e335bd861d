// Package tiles turns a resolved imagery selection into a slippy-map tile
// session on the backend.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"log"

	"imagery-engine/internal/ee"
	"imagery-engine/internal/geo"
	"imagery-engine/internal/selector"
)

// ErrRenderFailed marks a tile session that could not be opened. Match with
// errors.Is.
var ErrRenderFailed = errors.New("tile rendering failed")

// Handle references a live tile session.
type Handle struct {
	// URLTemplate contains {z}/{x}/{y} placeholders.
	URLTemplate string `json:"url_template"`
	Satellite   string `json:"satellite"`
	Collections []string `json:"collections"`
}

// Renderer opens tile sessions for resolved selections.
type Renderer struct {
	backend ee.Backend
}

// NewRenderer wraps a backend for tile generation.
func NewRenderer(backend ee.Backend) *Renderer {
	return &Renderer{backend: backend}
}

// Render composites the resolved images over the geometry and opens a tile
// session. The request is built entirely from the selection; nothing here
// re-queries collections or retries the backend.
func (r *Renderer) Render(ctx context.Context, res *selector.Resolved, region geo.Geometry) (*Handle, error) {
	req := ee.RenderRequest{
		Collections: res.Collections,
		Geometry:    region,
		Start:       res.Window.Start,
		End:         res.Window.End,
		Bands:       res.Collection.Bands,
		Derive:      res.Collection.Derive,
		Reducer:     res.Reducer,
		Vis:         res.Vis,
	}
	urlTemplate, err := r.backend.RenderTile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrRenderFailed, res.Collection.Name, err)
	}
	if urlTemplate == "" {
		return nil, fmt.Errorf("%w for %s: backend returned empty URL template", ErrRenderFailed, res.Collection.Name)
	}
	log.Printf("[Tiles] opened %s session over %s", res.Collection.Name, res.Window)
	return &Handle{
		URLTemplate: urlTemplate,
		Satellite:   res.Collection.Name,
		Collections: res.Collections,
	}, nil
}
