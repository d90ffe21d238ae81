// Package yahoo downloads daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/upstream"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const maxBodySize = 32 << 20

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint  string
	UserAgent string
}

// Client fetches chart data through an upstream.Client.
type Client struct {
	cfg    ClientConfig
	up     *upstream.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewClient returns a Client.
func NewClient(cfg ClientConfig, up *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		up:     up,
		logger: infrastructure.WithComponent(logger, "yahoo"),
		now:    time.Now,
	}
}

// DailyBars returns adjusted daily bars for symbol from start to end. A zero
// end means today. A symbol with no bars is an upstream error.
func (c *Client) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if end.IsZero() {
		end = c.now()
	}
	period1 := int64(0)
	if !start.IsZero() {
		period1 = start.Unix()
	}
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(period1, 10))
	// period2 is exclusive.
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div,split")
	target := c.cfg.Endpoint + "/" + url.PathEscape(symbol) + "?" + q.Encode()

	var result ChartResult
	err := c.up.Do(ctx, "chart "+symbol,
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return nil, err
			}
			if c.cfg.UserAgent != "" {
				req.Header.Set("User-Agent", c.cfg.UserAgent)
			}
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
		func(resp *http.Response) error {
			var body ChartResponse
			if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if body.Chart.Error != nil {
				return body.Chart.Error
			}
			if len(body.Chart.Result) == 0 {
				return fmt.Errorf("empty chart result")
			}
			result = body.Chart.Result[0]
			return nil
		})
	if err != nil {
		if pe, ok := err.(*apperrors.PipelineError); ok {
			return nil, pe.WithContext("symbol", symbol)
		}
		return nil, err
	}

	bars, err := ParseChart(result)
	if err != nil {
		return nil, err
	}
	bars = clip(bars, start, end)
	if len(bars) == 0 {
		return nil, apperrors.Upstreamf("no data for %s", symbol).WithContext("symbol", symbol)
	}
	c.logger.DebugContext(ctx, "bars fetched",
		slog.String("symbol", symbol),
		slog.Int("bars", len(bars)))
	return bars, nil
}

// clip drops bars outside [start, end] by calendar date.
func clip(bars []domain.Bar, start, end time.Time) []domain.Bar {
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(lo) || b.Date.After(hi) {
			continue
		}
		out = append(out, b)
	}
	return out
}
