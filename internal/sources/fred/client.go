// Package fred downloads daily, monthly and quarterly series from FRED.
// With an API key it uses the series/observations JSON API; without one it
// falls back to the public fredgraph.csv download.
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/upstream"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const maxBodySize = 32 << 20

// ClientConfig configures a Client. APIKey is optional.
type ClientConfig struct {
	Endpoint      string
	GraphEndpoint string
	APIKey        string
}

// Client fetches observations through an upstream.Client.
type Client struct {
	cfg    ClientConfig
	up     *upstream.Client
	logger *slog.Logger
}

// NewClient returns a Client. The credential is taken from cfg only.
func NewClient(cfg ClientConfig, up *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		up:     up,
		logger: infrastructure.WithComponent(logger, "fred"),
	}
}

// HasAPIKey reports whether the JSON API is used.
func (c *Client) HasAPIKey() bool { return c.cfg.APIKey != "" }

// Source describes the endpoint in use for meta sheets.
func (c *Client) Source() string {
	if c.HasAPIKey() {
		return "FRED API (https://api.stlouisfed.org)"
	}
	return "FRED graph CSV (https://fred.stlouisfed.org)"
}

// Observations returns the points of id between start and end inclusive.
// A zero start or end leaves that side to the provider default. A series
// with no observations is an upstream error.
func (c *Client) Observations(ctx context.Context, id string, start, end time.Time) ([]domain.Point, error) {
	var (
		points []domain.Point
		err    error
	)
	if c.HasAPIKey() {
		points, err = c.fetchJSON(ctx, id, start, end)
	} else {
		points, err = c.fetchCSV(ctx, id, start, end)
	}
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, apperrors.Upstreamf("no data for %s", id).WithContext("series_id", id)
	}
	c.logger.DebugContext(ctx, "series fetched",
		slog.String("series_id", id),
		slog.Int("points", len(points)))
	return points, nil
}

func (c *Client) fetchJSON(ctx context.Context, id string, start, end time.Time) ([]domain.Point, error) {
	q := url.Values{}
	q.Set("series_id", id)
	q.Set("api_key", c.cfg.APIKey)
	q.Set("file_type", "json")
	if !start.IsZero() {
		q.Set("observation_start", start.Format(dateLayout))
	}
	if !end.IsZero() {
		q.Set("observation_end", end.Format(dateLayout))
	}

	var body ObservationsResponse
	err := c.up.Do(ctx, "observations "+id,
		func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
		},
		func(resp *http.Response) error {
			body = ObservationsResponse{}
			if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, withSeries(err, id)
	}
	return ParseObservations(id, body.Observations)
}

func (c *Client) fetchCSV(ctx context.Context, id string, start, end time.Time) ([]domain.Point, error) {
	q := url.Values{}
	q.Set("id", id)
	if !start.IsZero() {
		q.Set("cosd", start.Format(dateLayout))
	}
	if !end.IsZero() {
		q.Set("coed", end.Format(dateLayout))
	}

	var raw []byte
	err := c.up.Do(ctx, "graph csv "+id,
		func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GraphEndpoint+"?"+q.Encode(), nil)
		},
		func(resp *http.Response) error {
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			raw = b
			return nil
		})
	if err != nil {
		return nil, withSeries(err, id)
	}
	return ParseCSV(id, raw)
}

func withSeries(err error, id string) error {
	if pe, ok := err.(*apperrors.PipelineError); ok {
		return pe.WithContext("series_id", id)
	}
	return err
}
