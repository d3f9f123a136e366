package knmi

import (
	_ "embed"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed catalog.csv
var defaultCatalog string

// Catalog is a read-only, id-ordered set of stations.
type Catalog struct {
	stations []Station
	byID     map[int]Station
}

// DefaultCatalog returns the embedded catalog of KNMI hourly stations.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(strings.NewReader(defaultCatalog))
	if err != nil {
		panic("knmi: embedded catalog is malformed: " + err.Error())
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path yields the embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open station catalog")
	}
	defer f.Close()
	return ParseCatalog(f)
}

// ParseCatalog reads "id,name,latitude,longitude" rows. A first row whose id
// column is not numeric is taken as a header.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	c := &Catalog{byID: make(map[int]Station)}
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read station catalog")
		}

		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, errors.Wrapf(err, "catalog line %d: invalid station id", line)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog line %d: invalid latitude", line)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog line %d: invalid longitude", line)
		}
		if _, dup := c.byID[id]; dup {
			return nil, errors.Errorf("catalog line %d: duplicate station %d", line, id)
		}

		st := Station{ID: id, Name: strings.TrimSpace(rec[1]), Latitude: lat, Longitude: lon}
		c.byID[id] = st
		c.stations = append(c.stations, st)
	}

	sort.Slice(c.stations, func(i, j int) bool { return c.stations[i].ID < c.stations[j].ID })
	return c, nil
}

// Stations returns every station, ordered by id.
func (c *Catalog) Stations() []Station {
	return append([]Station(nil), c.stations...)
}

// Get returns a specific station by id.
func (c *Catalog) Get(id int) (Station, bool) {
	st, ok := c.byID[id]
	return st, ok
}

// Subset returns the catalog stations whose id is in ids, ordered by id.
// Unknown ids are skipped.
func (c *Catalog) Subset(ids []int) []Station {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Station
	for _, st := range c.stations {
		if _, ok := want[st.ID]; ok {
			out = append(out, st)
		}
	}
	return out
}
