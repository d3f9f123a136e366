package httpapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/i474232898/knmi-hourly/internal/geo"
	"github.com/i474232898/knmi-hourly/internal/knmi"
	"github.com/i474232898/knmi-hourly/internal/store"
)

var validate = validator.New()

// RunStarter starts a fetch run in the background.
type RunStarter interface {
	Start(stations knmi.StationRange, periods []string) (string, error)
}

// Deps bundles what the handlers need.
type Deps struct {
	Finder   *geo.Finder
	Runs     RunStarter
	History  knmi.RunStore
	Stations knmi.StationRange
	Periods  []string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		stations, err := d.Finder.Downloaded()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list stations")
		}
		if stations == nil {
			stations = []knmi.Station{}
		}
		return c.JSON(fiber.Map{"stations": stations})
	})

	v1.Get("/stations/closest", func(c *fiber.Ctx) error {
		match, err := resolveClosest(c, d.Finder)
		if err != nil {
			return err
		}
		return c.JSON(match)
	})

	v1.Get("/stations/closest/dataset", func(c *fiber.Ctx) error {
		match, err := resolveClosest(c, d.Finder)
		if err != nil {
			return err
		}
		return sendDataset(c, d.Finder, match.Station.ID)
	})

	v1.Get("/stations/:id/dataset", func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil || id < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "station id must be a non-negative integer")
		}
		return sendDataset(c, d.Finder, id)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		runID, err := d.Runs.Start(d.Stations, d.Periods)
		if err != nil {
			if errors.Is(err, knmi.ErrRunInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start fetch run")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"runId": runID})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		return sendRun(c, d.History.Latest)
	})

	v1.Get("/runs/:id", func(c *fiber.Ctx) error {
		return sendRun(c, func() (*knmi.Summary, error) { return d.History.Get(c.Params("id")) })
	})
}

func sendRun(c *fiber.Ctx, lookup func() (*knmi.Summary, error)) error {
	summary, err := lookup()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no such fetch run")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load fetch run")
	}
	return c.JSON(summary)
}

func sendDataset(c *fiber.Ctx, finder *geo.Finder, stationID int) error {
	path, err := finder.DatasetPath(stationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no dataset for requested station")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load dataset")
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.SendFile(path)
}

func resolveClosest(c *fiber.Ctx, finder *geo.Finder) (geo.Match, error) {
	q, err := parseClosestQuery(c)
	if err != nil {
		return geo.Match{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var match geo.Match
	if q.Lat != nil && q.Lon != nil {
		match, err = finder.ClosestTo(geo.Point{Lat: *q.Lat, Lon: *q.Lon})
	} else {
		match, err = finder.ClosestToPostcode(c.UserContext(), q.Postcode, q.Country)
	}
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrGeocoderDisabled):
			return geo.Match{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, geo.ErrAddressNotFound):
			return geo.Match{}, fiber.NewError(fiber.StatusNotFound, "postal code could not be located")
		case errors.Is(err, geo.ErrInvalidInput):
			return geo.Match{}, fiber.NewError(fiber.StatusNotFound, "no station available for requested location")
		}
		return geo.Match{}, fiber.NewError(fiber.StatusInternalServerError, "failed to resolve station")
	}
	return match, nil
}

// closestQuery holds query parameters identifying a location: either a
// coordinate or a postal code.
type closestQuery struct {
	Lat      *float64 `validate:"required_without=Postcode,omitempty,gte=-90,lte=90"`
	Lon      *float64 `validate:"required_without=Postcode,omitempty,gte=-180,lte=180"`
	Postcode string   `validate:"required_without=Lat,omitempty,max=16"`
	Country  string   `validate:"omitempty,len=2,alpha"`
}

func parseClosestQuery(c *fiber.Ctx) (closestQuery, error) {
	var q closestQuery

	var err error
	if q.Lat, err = parseFloatQuery(c, "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = parseFloatQuery(c, "lon"); err != nil {
		return q, err
	}
	q.Postcode = c.Query("postcode")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseFloatQuery(c *fiber.Ctx, key string) (*float64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("%s must be a number", key)
	}
	return &v, nil
}
