package upstream

import (
	"context"
	"encoding/json"
	"errors"
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
)

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func newTestClient(cfg Config, sleeper retry.Sleeper) *Client {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	return New(cfg,
		WithSleeper(sleeper),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
}

func getJSON(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestClient_Do_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(Config{Name: "test"}, sleeper)

	var out struct{ OK bool }
	err := c.Do(context.Background(), "fetch series", getJSON(srv.URL), func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&out)
	})

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{1600 * time.Millisecond, 2560 * time.Millisecond}, sleeper.slept)
}

func TestClient_Do_ExhaustedIsUpstreamError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(Config{Name: "test", BreakerFailures: 10}, &recordingSleeper{})
	err := c.Do(context.Background(), "fetch series", getJSON(srv.URL), func(resp *http.Response) error { return nil })

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUpstream))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Contains(t, se.Body, "maintenance")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_DecodeFailureIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{not json`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(Config{Name: "test"}, &recordingSleeper{})
	err := c.Do(context.Background(), "fetch series", getJSON(srv.URL), func(resp *http.Response) error {
		var v map[string]interface{}
		return json.NewDecoder(resp.Body).Decode(&v)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Do_OpenBreakerStopsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(Config{Name: "test", BreakerFailures: 1, BreakerTimeout: time.Minute}, &recordingSleeper{})
	err := c.Do(context.Background(), "fetch series", getJSON(srv.URL), func(resp *http.Response) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Do_BuildErrorIsNotRetried(t *testing.T) {
	c := newTestClient(Config{Name: "test"}, &recordingSleeper{})
	builds := 0
	err := c.Do(context.Background(), "fetch series", func(ctx context.Context) (*http.Request, error) {
		builds++
		return nil, errors.New("bad url")
	}, func(resp *http.Response) error { return nil })

	require.Error(t, err)
	assert.Equal(t, 1, builds)
}

type unknownItem struct{}

func (unknownItem) Error() string  { return "unknown item" }
func (unknownItem) Rejected() bool { return true }

func TestClient_Do_RejectionsDoNotTripBreaker(t *testing.T) {
	var okCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/envelope":
			w.Write([]byte(`{}`))
		default:
			atomic.AddInt32(&okCalls, 1)
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	// Two fully retried 404s plus a rejected envelope exceed the threshold
	// many times over.
	c := newTestClient(Config{Name: "test", BreakerFailures: 2, BreakerTimeout: time.Minute}, &recordingSleeper{})
	noop := func(resp *http.Response) error { return nil }

	for i := 0; i < 2; i++ {
		err := c.Do(context.Background(), "missing", getJSON(srv.URL+"/missing"), noop)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}
	err := c.Do(context.Background(), "envelope", getJSON(srv.URL+"/envelope"), func(resp *http.Response) error {
		return unknownItem{}
	})
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	require.NoError(t, c.Do(context.Background(), "ok", getJSON(srv.URL+"/ok"), noop))
	assert.Equal(t, int32(1), atomic.LoadInt32(&okCalls))
}

func TestStatusError_Rejected(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&StatusError{Code: tt.code}).Rejected(), "status %d", tt.code)
	}
}
