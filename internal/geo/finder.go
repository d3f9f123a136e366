package geo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

// Datasets is the part of the dataset store the Finder reads.
type Datasets interface {
	StationIDs() ([]int, error)
	Open(stationID int) (string, error)
}

// Finder resolves query points against the stations that have a dataset on disk.
type Finder struct {
	catalog  *knmi.Catalog
	datasets Datasets
	locator  Locator
	geocoder Geocoder
}

// NewFinder creates a Finder. A nil locator falls back to Linear; a nil
// geocoder disables postal code lookups.
func NewFinder(catalog *knmi.Catalog, datasets Datasets, locator Locator, geocoder Geocoder) *Finder {
	if locator == nil {
		locator = Linear{}
	}
	return &Finder{
		catalog:  catalog,
		datasets: datasets,
		locator:  locator,
		geocoder: geocoder,
	}
}

// Downloaded returns the catalog stations with a dataset, ordered by id.
func (f *Finder) Downloaded() ([]knmi.Station, error) {
	ids, err := f.datasets.StationIDs()
	if err != nil {
		return nil, err
	}
	return f.catalog.Subset(ids), nil
}

// ClosestTo returns the downloaded station nearest to p.
func (f *Finder) ClosestTo(p Point) (Match, error) {
	stations, err := f.Downloaded()
	if err != nil {
		return Match{}, err
	}
	return f.locator.Closest(p, stations)
}

// ClosestToPostcode geocodes a postal code and returns the downloaded
// station nearest to it.
func (f *Finder) ClosestToPostcode(ctx context.Context, postcode, country string) (Match, error) {
	if f.geocoder == nil {
		return Match{}, ErrGeocoderDisabled
	}
	p, err := f.geocoder.Geocode(ctx, postcode, country)
	if err != nil {
		return Match{}, err
	}
	return f.ClosestTo(p)
}

// DatasetPath returns the dataset file of a station.
func (f *Finder) DatasetPath(stationID int) (string, error) {
	path, err := f.datasets.Open(stationID)
	if err != nil {
		return "", errors.Wrapf(err, "station %d", stationID)
	}
	return path, nil
}
