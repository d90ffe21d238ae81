package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zipGajun/FAGA-DATA/internal/config"
	"github.com/zipGajun/FAGA-DATA/internal/retry"
)

var fixedNow = time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// testEnv returns an Env writing to a temp dir with every endpoint pointed
// at url and retries that never sleep. The circuit breaker keeps its
// shipped defaults.
func testEnv(t *testing.T, url string) *Env {
	t.Helper()
	cfg := config.Default()
	cfg.BLSAPIKey = ""
	cfg.FREDAPIKey = ""
	cfg.BLS.Endpoint = url
	cfg.BLS.RequestsPerSecond = 0
	cfg.FRED.Endpoint = url + "/fred/series/observations"
	cfg.FRED.GraphEndpoint = url + "/graph/fredgraph.csv"
	cfg.FRED.RequestsPerSecond = 0
	cfg.Yahoo.Endpoint = url + "/chart"
	cfg.Yahoo.RequestsPerSecond = 0
	cfg.Output.Dir = t.TempDir()

	return &Env{
		Config:  cfg,
		Logger:  quietLogger(),
		Sleeper: retry.SleeperFunc(func(context.Context, time.Duration) error { return nil }),
		Now:     func() time.Time { return fixedNow },
	}
}

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func sheetList(t *testing.T, path string) []string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	return f.GetSheetList()
}
