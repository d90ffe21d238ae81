package fred

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/retry"
	"github.com/zipGajun/FAGA-DATA/internal/upstream"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(url, apiKey string) *Client {
	up := upstream.New(upstream.Config{
		Name:            "fred",
		Policy:          retry.DefaultPolicy(),
		BreakerFailures: 100,
	}, upstream.WithSleeper(retry.SleeperFunc(func(context.Context, time.Duration) error { return nil })),
		upstream.WithLogger(quietLogger()))
	return NewClient(ClientConfig{Endpoint: url, GraphEndpoint: url, APIKey: apiKey}, up, quietLogger())
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestObservations_JSONWithKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "DGS10", q.Get("series_id"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("file_type"))
		assert.Equal(t, "2024-01-01", q.Get("observation_start"))
		assert.Empty(t, q.Get("observation_end"))

		json.NewEncoder(w).Encode(ObservationsResponse{Observations: []Observation{
			{Date: "2024-01-02", Value: "3.95"},
			{Date: "2024-01-15", Value: "."},
			{Date: "2024-01-16", Value: "4.07"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "secret")
	assert.True(t, c.HasAPIKey())

	pts, err := c.Observations(context.Background(), "DGS10", day(2024, 1, 1), time.Time{})
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, day(2024, 1, 2), pts[0].Date)
	assert.Equal(t, 3.95, pts[0].Value)
	assert.True(t, pts[0].Valid)
	assert.False(t, pts[1].Valid, "'.' is missing")
	assert.Equal(t, 4.07, pts[2].Value)
}

func TestObservations_GraphCSVWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "M2SL", q.Get("id"))
		assert.Equal(t, "1990-01-01", q.Get("cosd"))
		assert.Equal(t, "1990-03-31", q.Get("coed"))
		assert.Empty(t, q.Get("api_key"))
		io.WriteString(w, "observation_date,M2SL\n1990-01-01,3166.8\n1990-02-01,\n1990-03-01,3192.8\n")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	assert.Contains(t, c.Source(), "graph CSV")

	pts, err := c.Observations(context.Background(), "M2SL", day(1990, 1, 1), day(1990, 3, 31))
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, 3166.8, pts[0].Value)
	assert.False(t, pts[1].Valid)
	assert.Equal(t, day(1990, 3, 1), pts[2].Date)
}

func TestObservations_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "DATE,VIXCLS\n2024-01-02,13.2\n")
	}))
	defer srv.Close()

	pts, err := newTestClient(srv.URL, "").Observations(context.Background(), "VIXCLS", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, pts, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestObservations_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		kind apperrors.Kind
	}{
		{name: "exhausted retries", code: http.StatusBadGateway, kind: apperrors.KindUpstream},
		{name: "empty series", body: "observation_date,X\n", code: http.StatusOK, kind: apperrors.KindUpstream},
		{name: "bad value", body: "observation_date,X\n2024-01-02,abc\n", code: http.StatusOK, kind: apperrors.KindDataFormat},
		{name: "bad date", body: "observation_date,X\n01/02/2024,1\n", code: http.StatusOK, kind: apperrors.KindDataFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, "").Observations(context.Background(), "X", time.Time{}, time.Time{})
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestParseCSV_PicksColumnByID(t *testing.T) {
	pts, err := ParseCSV("DGS2", []byte("\ufeffDATE,DGS1,DGS2\n2024-01-02,4.8,4.3\n"))
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 4.3, pts[0].Value)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
		err   bool
	}{
		{in: "1.25", want: 1.25, valid: true},
		{in: " -0.5 ", want: -0.5, valid: true},
		{in: "."},
		{in: ""},
		{in: "NaN"},
		{in: "n/a", err: true},
	}
	for _, tt := range tests {
		v, ok, err := ParseValue(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		assert.Equal(t, tt.want, v, tt.in)
	}
}
