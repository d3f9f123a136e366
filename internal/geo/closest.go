package geo

import (
	"math"

	"github.com/pkg/errors"
	"github.com/umahmood/haversine"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

// ErrInvalidInput is returned for an empty candidate list or an unusable point.
var ErrInvalidInput = errors.New("invalid input")

// tieToleranceKm is the distance below which two candidates count as equidistant.
const tieToleranceKm = 1e-9

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects NaN and out of range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return errors.Wrapf(ErrInvalidInput, "coordinate (%v, %v) out of range", p.Lat, p.Lon)
	}
	return nil
}

// Match is a resolved station and its distance to the query point.
type Match struct {
	Station    knmi.Station `json:"station"`
	DistanceKm float64      `json:"distanceKm"`
}

// Locator finds the station nearest to a point by great-circle distance.
// When several stations are equally close, the first in input order wins.
type Locator interface {
	Closest(p Point, stations []knmi.Station) (Match, error)
}

// Linear is a Locator scanning every candidate.
type Linear struct{}

// Closest implements Locator.
func (Linear) Closest(p Point, stations []knmi.Station) (Match, error) {
	if err := p.Validate(); err != nil {
		return Match{}, err
	}
	if len(stations) == 0 {
		return Match{}, errors.Wrap(ErrInvalidInput, "no candidate stations")
	}

	best := Match{Station: stations[0], DistanceKm: Distance(p, stations[0])}
	for _, st := range stations[1:] {
		if d := Distance(p, st); d < best.DistanceKm-tieToleranceKm {
			best = Match{Station: st, DistanceKm: d}
		}
	}
	return best, nil
}

// Closest resolves p with the Linear locator.
func Closest(p Point, stations []knmi.Station) (Match, error) {
	return Linear{}.Closest(p, stations)
}

// Distance returns the great-circle distance in kilometres.
func Distance(p Point, st knmi.Station) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: p.Lat, Lon: p.Lon},
		haversine.Coord{Lat: st.Latitude, Lon: st.Longitude},
	)
	return km
}
