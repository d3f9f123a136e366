package geo

import (
	"context"
	"strings"

	"github.com/kelvins/geocoder"
	"github.com/pkg/errors"
)

// DefaultCountry is used for postal codes given without a country.
const DefaultCountry = "NL"

var (
	// ErrGeocoderDisabled is returned when no geocoding backend is configured.
	ErrGeocoderDisabled = errors.New("postal code lookup is not configured")
	// ErrAddressNotFound is returned when the backend cannot place an address.
	ErrAddressNotFound = errors.New("address not found")
)

// Geocoder maps a postal code onto a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, postcode, country string) (Point, error)
}

// GoogleGeocoder uses the Google geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the geocoding API key. The underlying client
// keeps the key process-wide.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// Geocode implements Geocoder. The backend call cannot be cancelled;
// ctx is only checked before it starts.
func (g *GoogleGeocoder) Geocode(ctx context.Context, postcode, country string) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	postcode = strings.TrimSpace(postcode)
	if postcode == "" {
		return Point{}, errors.Wrap(ErrInvalidInput, "empty postal code")
	}
	if country == "" {
		country = DefaultCountry
	}

	loc, err := geocoder.Geocoding(geocoder.Address{
		PostalCode: postcode,
		Country:    country,
	})
	if err != nil {
		return Point{}, errors.Wrapf(ErrAddressNotFound, "%s %s: %v", postcode, country, err)
	}

	p := Point{Lat: loc.Latitude, Lon: loc.Longitude}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}
