package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

// envPrefix namespaces every variable, e.g. KNMI_OUTPUT_DIR.
const envPrefix = "knmi"

type AppConfig struct {
	BaseURL   string `envconfig:"BASE_URL" default:"https://cdn.knmi.nl/knmi/map/page/klimatologie/gegevens/uurgegevens"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"stations_tmp"`

	// Half-open station id range fetched by every run.
	StationBegin int `envconfig:"STATION_BEGIN" default:"200"`
	StationEnd   int `envconfig:"STATION_END" default:"400"`

	// Decade windows, merged in the listed order.
	Periods []string `envconfig:"PERIODS" default:"2001-2010,2011-2020,2021-2030"`

	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"16"`
	FetchMaxRetries  int           `envconfig:"FETCH_MAX_RETRIES" default:"0"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`

	// FetchInterval controls how often the archives are downloaded again.
	FetchInterval  time.Duration `envconfig:"FETCH_INTERVAL" default:"24h"`
	FetchOnStartup bool          `envconfig:"FETCH_ON_STARTUP" default:"true"`

	CatalogPath    string `envconfig:"CATALOG_PATH"`
	GeocoderAPIKey string `envconfig:"GEOCODER_API_KEY"`

	RunHistory int `envconfig:"RUN_HISTORY" default:"20"` // summaries kept (0 = unlimited)

	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Infof("no .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot check by itself.
func (c *AppConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("KNMI_BASE_URL must not be empty")
	}
	if c.OutputDir == "" {
		return errors.New("KNMI_OUTPUT_DIR must not be empty")
	}
	if c.StationBegin < 0 || c.StationEnd <= c.StationBegin {
		return errors.Errorf("invalid station range [%d, %d)", c.StationBegin, c.StationEnd)
	}

	periods := c.Periods[:0]
	for _, p := range c.Periods {
		if p = strings.TrimSpace(p); p != "" {
			periods = append(periods, p)
		}
	}
	if len(periods) == 0 {
		return errors.New("KNMI_PERIODS must name at least one period")
	}
	c.Periods = periods

	if c.FetchConcurrency <= 0 {
		return errors.New("KNMI_FETCH_CONCURRENCY must be positive")
	}
	if c.FetchMaxRetries < 0 {
		return errors.New("KNMI_FETCH_MAX_RETRIES must not be negative")
	}
	if c.FetchInterval < time.Minute {
		return errors.Errorf("KNMI_FETCH_INTERVAL %s is shorter than a minute", c.FetchInterval)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid KNMI_LOG_LEVEL")
	}
	return nil
}

// Stations returns the configured station range.
func (c *AppConfig) Stations() knmi.StationRange {
	return knmi.StationRange{Begin: c.StationBegin, End: c.StationEnd}
}
