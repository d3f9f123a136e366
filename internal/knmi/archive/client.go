package archive

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/i474232898/knmi-hourly/internal/common"
	"github.com/i474232898/knmi-hourly/internal/knmi"
)

// errorMarkers identify the human readable page the archive server returns
// for a station/period combination it does not have.
var errorMarkers = []string{"Error"}

var errUnexpectedText = errors.New("unexpected text response")

// Client implements knmi.Fetcher against the KNMI archive server.
type Client struct {
	http    *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Client sharing httpClient's connection pool.
// maxRetries of zero performs exactly one GET per fetch.
func NewClient(httpClient *http.Client, maxRetries int) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "knmi-archive",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 10
		},
	})

	return &Client{
		http: httpClient,
		backoff: BackoffConfig{
			MaxRetries:      maxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: cb,
	}
}

// Fetch downloads one archive and classifies the response.
func (c *Client) Fetch(ctx context.Context, url string) knmi.Outcome {
	resp, err := getWithResilience(ctx, c.http, c.backoff, c.circuit, url)
	if err != nil {
		return knmi.TransportError(err)
	}
	return Classify(resp.StatusCode, resp.Body)
}

// Classify maps a status code and body onto an outcome.
func Classify(status int, body []byte) knmi.Outcome {
	if len(body) == 0 {
		if status == http.StatusNotFound {
			return knmi.NotFound()
		}
		if status >= 200 && status < 300 {
			return knmi.Empty()
		}
		return knmi.TransportError(errors.Errorf("unexpected status code: %d", status))
	}

	if IsZip(body) {
		if status >= 200 && status < 300 {
			return knmi.Success(body)
		}
		return knmi.TransportError(errors.Errorf("unexpected status code: %d", status))
	}

	text := utf8.Valid(body)
	if text && common.HasAny(string(body), errorMarkers...) {
		return knmi.NotFound()
	}
	if status == http.StatusNotFound {
		return knmi.NotFound()
	}
	if status < 200 || status >= 300 {
		return knmi.TransportError(errors.Errorf("unexpected status code: %d", status))
	}
	if text {
		return knmi.TransportError(errUnexpectedText)
	}
	// Binary content without a recognisable signature; the merger reports it
	// if it turns out not to be a readable container.
	return knmi.Success(body)
}

// IsZip reports whether payload looks like a zip container.
func IsZip(payload []byte) bool {
	for m := mimetype.Detect(payload); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
