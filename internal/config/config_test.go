package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faga.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// clearEnv blanks every variable Load may read so the host environment
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BLS_API_KEY", "FRED_API_KEY",
		"FAGA_BLS_API_KEY", "FAGA_FRED_API_KEY",
		"FAGA_BLS_BATCH_SIZE", "FAGA_BLS_CONCURRENCY",
		"FAGA_RETRY_ATTEMPTS", "FAGA_RETRY_BACKOFF",
		"FAGA_OUTPUT_DIR", "FAGA_LOGGING_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileBody    string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 50, cfg.BLS.BatchSize)
				assert.Equal(t, 1, cfg.BLS.Concurrency)
				assert.Equal(t, 3, cfg.Retry.Attempts)
				assert.Equal(t, 1.6, cfg.Retry.Backoff)
				assert.Equal(t, 30*time.Second, cfg.Retry.HTTPTimeout)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Empty(t, cfg.BLSAPIKey)
			},
		},
		{
			name: "file overrides defaults",
			fileBody: `
bls:
  batch_size: 25
  concurrency: 2
retry:
  attempts: 5
  http_timeout: 10s
output:
  dir: out
  sheet_prefix: X_
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 25, cfg.BLS.BatchSize)
				assert.Equal(t, 2, cfg.BLS.Concurrency)
				assert.Equal(t, 5, cfg.Retry.Attempts)
				assert.Equal(t, 10*time.Second, cfg.Retry.HTTPTimeout)
				assert.Equal(t, 1.6, cfg.Retry.Backoff, "unset keys keep defaults")
				assert.Equal(t, "out", cfg.Output.Dir)
				assert.Equal(t, "X_", cfg.Output.SheetPrefix)
			},
		},
		{
			name:     "env overrides file",
			fileBody: "bls:\n  batch_size: 25\n",
			setupEnv: func(t *testing.T) {
				t.Setenv("FAGA_BLS_BATCH_SIZE", "10")
				t.Setenv("FAGA_RETRY_BACKOFF", "2")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10, cfg.BLS.BatchSize)
				assert.Equal(t, 2.0, cfg.Retry.Backoff)
			},
		},
		{
			name: "plain credential variables",
			setupEnv: func(t *testing.T) {
				t.Setenv("BLS_API_KEY", "bls-secret")
				t.Setenv("FRED_API_KEY", "fred-secret")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "bls-secret", cfg.BLSAPIKey)
				assert.Equal(t, "fred-secret", cfg.FREDAPIKey)
			},
		},
		{
			name: "prefixed credential wins",
			setupEnv: func(t *testing.T) {
				t.Setenv("BLS_API_KEY", "plain")
				t.Setenv("FAGA_BLS_API_KEY", "prefixed")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "prefixed", cfg.BLSAPIKey)
			},
		},
		{
			name:     "batch size above provider limit",
			fileBody: "bls:\n  batch_size: 51\n",
			wantErr:  true,
		},
		{
			name:     "unknown log level",
			fileBody: "logging:\n  level: chatty\n",
			wantErr:  true,
		},
		{
			name: "malformed env value",
			setupEnv: func(t *testing.T) {
				t.Setenv("FAGA_RETRY_ATTEMPTS", "three")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}
			path := ""
			if tt.fileBody != "" {
				path = writeConfigFile(t, tt.fileBody)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestValidate_FileOutputNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Telemetry.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Telemetry.MetricsFile = "metrics.prom"
	assert.NoError(t, cfg.Validate())
}
