package geocode

import (
	"context"
	"log"

	"github.com/kelvins/geocoder"
)

// Coordinates is a geocoded latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Geocoder resolves a free-text location into coordinates. The boolean
// reports whether a result was found; service errors are returned separately
// so callers can decide how to degrade.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (Coordinates, bool, error)
}

// GoogleGeocoder adapts the Google Maps Geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the shared API key and returns the adapter.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// Geocode resolves the location text. A lookup that returns no usable
// coordinates is reported as not found rather than an error.
func (g *GoogleGeocoder) Geocode(_ context.Context, location string) (Coordinates, bool, error) {
	address := geocoder.Address{Street: location}

	result, err := geocoder.Geocoding(address)
	if err != nil {
		log.Printf("[Geocoder] Lookup failed for %q: %v", location, err)
		return Coordinates{}, false, err
	}
	if result.Latitude == 0 && result.Longitude == 0 {
		return Coordinates{}, false, nil
	}
	return Coordinates{Lat: result.Latitude, Lon: result.Longitude}, true, nil
}
