package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/knmi-hourly/internal/geo"
	"github.com/i474232898/knmi-hourly/internal/knmi"
	"github.com/i474232898/knmi-hourly/internal/store"
)

type fakeRuns struct {
	err     error
	started int
}

func (f *fakeRuns) Start(knmi.StationRange, []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started++
	return "run-1", nil
}

func newTestApp(t *testing.T, runs RunStarter, history *store.RunHistory) *fiber.App {
	t.Helper()
	ds := store.NewDatasets(t.TempDir())
	require.NoError(t, ds.Append(260, "STN,YYYYMMDD,HH\n260,20200101,1\n"))
	require.NoError(t, ds.Append(380, "STN,YYYYMMDD,HH\n380,20200101,1\n"))

	app := fiber.New()
	RegisterRoutes(app, Deps{
		Finder:   geo.NewFinder(knmi.DefaultCatalog(), ds, geo.Linear{}, nil),
		Runs:     runs,
		History:  history,
		Stations: knmi.StationRange{Begin: 260, End: 261},
		Periods:  []string{"2011-2020"},
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// TestClosestQueryValidation verifies that the closest endpoint needs either
// a complete, in-range coordinate or a postal code.
func TestClosestQueryValidation(t *testing.T) {
	app := newTestApp(t, &fakeRuns{}, store.NewRunHistory(1))

	for _, target := range []string{
		"/api/v1/stations/closest",
		"/api/v1/stations/closest?lat=52.1",
		"/api/v1/stations/closest?lat=95&lon=5",
		"/api/v1/stations/closest?lat=north&lon=5",
		"/api/v1/stations/closest?postcode=3731&country=Netherlands",
		// postal codes need a geocoder, none is configured here
		"/api/v1/stations/closest?postcode=3731",
	} {
		resp, _ := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestClosestByCoordinate(t *testing.T) {
	app := newTestApp(t, &fakeRuns{}, store.NewRunHistory(1))

	resp, body := do(t, app, http.MethodGet, "/api/v1/stations/closest?lat=52.09&lon=5.12")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m geo.Match
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	assert.Equal(t, 260, m.Station.ID)
	assert.Equal(t, "De Bilt", m.Station.Name)
	assert.Greater(t, m.DistanceKm, 0.0)
}

func TestClosestDataset(t *testing.T) {
	app := newTestApp(t, &fakeRuns{}, store.NewRunHistory(1))

	resp, body := do(t, app, http.MethodGet, "/api/v1/stations/closest/dataset?lat=50.9&lon=5.7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "STN,YYYYMMDD,HH\n380,20200101,1\n", body)
}

func TestStationDataset(t *testing.T) {
	app := newTestApp(t, &fakeRuns{}, store.NewRunHistory(1))

	resp, body := do(t, app, http.MethodGet, "/api/v1/stations/260/dataset")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "STN,YYYYMMDD,HH\n260,20200101,1\n", body)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/stations/240/dataset")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/stations/abc/dataset")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListStations(t *testing.T) {
	app := newTestApp(t, &fakeRuns{}, store.NewRunHistory(1))

	resp, body := do(t, app, http.MethodGet, "/api/v1/stations")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Stations []knmi.Station `json:"stations"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload.Stations, 2)
	assert.Equal(t, 260, payload.Stations[0].ID)
	assert.Equal(t, 380, payload.Stations[1].ID)
}

func TestStartRun(t *testing.T) {
	runs := &fakeRuns{}
	app := newTestApp(t, runs, store.NewRunHistory(1))

	resp, body := do(t, app, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"runId":"run-1"}`, body)
	assert.Equal(t, 1, runs.started)

	runs.err = knmi.ErrRunInProgress
	resp, _ = do(t, app, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRunHistoryRoutes(t *testing.T) {
	history := store.NewRunHistory(5)
	app := newTestApp(t, &fakeRuns{}, history)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	history.SaveRun(&knmi.Summary{RunID: "abc", Counts: map[knmi.OutcomeKind]int{knmi.OutcomeSuccess: 3}})

	resp, body := do(t, app, http.MethodGet, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s knmi.Summary
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, "abc", s.RunID)
	assert.Equal(t, 3, s.Counts[knmi.OutcomeSuccess])

	resp, _ = do(t, app, http.MethodGet, "/api/v1/runs/abc")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
