// Package bls requests monthly series from the BLS public API v2 and turns
// its responses into long-form observation records.
package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/upstream"
)

// ClientConfig configures a Client. APIKey is optional.
type ClientConfig struct {
	Endpoint    string
	APIKey      string
	BatchSize   int
	Concurrency int
	MaxYearSpan int
}

// Client fetches batches through an upstream.Client.
type Client struct {
	cfg    ClientConfig
	up     *upstream.Client
	logger *slog.Logger
}

// NewClient returns a Client. The credential is taken from cfg only.
func NewClient(cfg ClientConfig, up *upstream.Client, logger *slog.Logger) *Client {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Client{
		cfg:    cfg,
		up:     up,
		logger: infrastructure.WithComponent(logger, "bls"),
	}
}

// HasAPIKey reports whether requests carry a registration key.
func (c *Client) HasAPIKey() bool { return c.cfg.APIKey != "" }

// NewRequest builds the request body for one batch.
func (c *Client) NewRequest(ids []string, startYear, endYear int) Request {
	return Request{
		SeriesID:        ids,
		StartYear:       strconv.Itoa(startYear),
		EndYear:         strconv.Itoa(endYear),
		RegistrationKey: c.cfg.APIKey,
	}
}

// FetchBatch posts one batch and returns the decoded response. A non-success
// envelope status fails the attempt and is retried like a transport error.
func (c *Client) FetchBatch(ctx context.Context, ids []string, startYear, endYear int) (*Response, error) {
	body, err := json.Marshal(c.NewRequest(ids, startYear, endYear))
	if err != nil {
		return nil, apperrors.NewConfigError("encode request", err)
	}

	var out *Response
	what := fmt.Sprintf("batch of %d series %d-%d", len(ids), startYear, endYear)
	err = c.up.Do(ctx, what,
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		},
		func(resp *http.Response) error {
			var r Response
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if r.Status != StatusSucceeded {
				return &ProviderError{Status: r.Status, Message: r.Message}
			}
			out = &r
			return nil
		})
	if err != nil {
		return nil, err
	}

	if len(out.Message) > 0 {
		c.logger.WarnContext(ctx, "provider returned messages",
			slog.Int("batch_size", len(ids)),
			slog.Any("message", out.Message))
	}
	return out, nil
}

// FetchAll partitions ids and fetches every batch (and year window when
// MaxYearSpan is set). Responses are returned in batch order regardless of
// concurrency. The first failing batch aborts the run.
func (c *Client) FetchAll(ctx context.Context, ids []string, startYear, endYear int) ([]*Response, error) {
	type job struct {
		batch  int
		ids    []string
		window YearWindow
	}

	var jobs []job
	for i, batch := range Partition(ids, c.cfg.BatchSize) {
		for _, w := range YearWindows(startYear, endYear, c.cfg.MaxYearSpan) {
			jobs = append(jobs, job{batch: i + 1, ids: batch, window: w})
		}
	}

	c.logger.InfoContext(ctx, "fetching series",
		slog.Int("series", len(ids)),
		slog.Int("requests", len(jobs)),
		slog.Int("concurrency", c.cfg.Concurrency),
		slog.Bool("has_api_key", c.HasAPIKey()))

	results := make([]*Response, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			resp, err := c.FetchBatch(gctx, j.ids, j.window.Start, j.window.End)
			if err != nil {
				if pe, ok := err.(*apperrors.PipelineError); ok {
					pe.WithContext("batch", j.batch).WithContext("years", fmt.Sprintf("%d-%d", j.window.Start, j.window.End))
				}
				return err
			}
			c.logger.DebugContext(gctx, "batch fetched",
				slog.Int("batch", j.batch),
				slog.Int("series_returned", len(resp.Results.Series)))
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
