package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.knmi.nl/knmi/map/page/klimatologie/gegevens/uurgegevens", cfg.BaseURL)
	assert.Equal(t, "stations_tmp", cfg.OutputDir)
	assert.Equal(t, knmi.StationRange{Begin: 200, End: 400}, cfg.Stations())
	assert.Equal(t, []string{"2001-2010", "2011-2020", "2021-2030"}, cfg.Periods)
	assert.Equal(t, 16, cfg.FetchConcurrency)
	assert.Equal(t, 0, cfg.FetchMaxRetries)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 24*time.Hour, cfg.FetchInterval)
	assert.True(t, cfg.FetchOnStartup)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KNMI_OUTPUT_DIR", "/var/lib/knmi")
	t.Setenv("KNMI_STATION_BEGIN", "260")
	t.Setenv("KNMI_STATION_END", "261")
	t.Setenv("KNMI_PERIODS", "2011-2020, 2021-2030")
	t.Setenv("KNMI_FETCH_CONCURRENCY", "4")
	t.Setenv("KNMI_FETCH_INTERVAL", "6h")
	t.Setenv("KNMI_FETCH_ON_STARTUP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/knmi", cfg.OutputDir)
	assert.Equal(t, knmi.StationRange{Begin: 260, End: 261}, cfg.Stations())
	assert.Equal(t, []string{"2011-2020", "2021-2030"}, cfg.Periods)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 6*time.Hour, cfg.FetchInterval)
	assert.False(t, cfg.FetchOnStartup)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"empty range":       {"KNMI_STATION_END", "200"},
		"zero concurrency":  {"KNMI_FETCH_CONCURRENCY", "0"},
		"negative retries":  {"KNMI_FETCH_MAX_RETRIES", "-1"},
		"short interval":    {"KNMI_FETCH_INTERVAL", "10s"},
		"bad duration":      {"KNMI_HTTP_TIMEOUT", "soon"},
		"bad log level":     {"KNMI_LOG_LEVEL", "loud"},
		"no periods":        {"KNMI_PERIODS", " , "},
		"non numeric begin": {"KNMI_STATION_BEGIN", "two hundred"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
