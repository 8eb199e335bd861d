// Package telemetry records product analytics events. A nil tracker client
// disables everything; callers never check for it.
package telemetry

import (
	"log"

	"github.com/posthog/posthog-go"
)

// Tracker sends engine events to PostHog.
type Tracker struct {
	client     posthog.Client
	distinctID string
}

// NewTracker initializes a PostHog-backed tracker. An empty API key returns
// a disabled tracker.
func NewTracker(apiKey, endpoint, distinctID string) *Tracker {
	if apiKey == "" {
		return &Tracker{distinctID: distinctID}
	}
	cfg := posthog.Config{}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	client, err := posthog.NewWithConfig(apiKey, cfg)
	if err != nil {
		log.Printf("[Telemetry] failed to initialize PostHog: %v", err)
		return &Tracker{distinctID: distinctID}
	}
	return &Tracker{client: client, distinctID: distinctID}
}

// TrackEvent sends one event. Safe on a disabled or nil tracker.
func (t *Tracker) TrackEvent(event string, props map[string]interface{}) {
	if t == nil || t.client == nil {
		return
	}
	t.client.Enqueue(posthog.Capture{
		DistinctId: t.distinctID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events.
func (t *Tracker) Close() {
	if t == nil || t.client == nil {
		return
	}
	t.client.Close()
}
