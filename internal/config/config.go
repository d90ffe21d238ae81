package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "FAGA"

// Config represents the complete application configuration
type Config struct {
	Credentials `yaml:",inline"`
	Logging     LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	BLS         BLSConfig       `yaml:"bls" envconfig:"BLS"`
	FRED        FREDConfig      `yaml:"fred" envconfig:"FRED"`
	Yahoo       YahooConfig     `yaml:"yahoo" envconfig:"YAHOO"`
	Retry       RetryConfig     `yaml:"retry" envconfig:"RETRY"`
	Breaker     BreakerConfig   `yaml:"breaker" envconfig:"BREAKER"`
	Output      OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Telemetry   TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// Credentials are read from FAGA_BLS_API_KEY, falling back to the plain
// BLS_API_KEY (same for FRED). Both are optional.
type Credentials struct {
	BLSAPIKey  string `yaml:"bls_api_key" envconfig:"BLS_API_KEY"`
	FREDAPIKey string `yaml:"fred_api_key" envconfig:"FRED_API_KEY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// BLSConfig configures the BLS public API v2 requester.
type BLSConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required,url"`
	// BatchSize is the number of series ids per request. The API accepts at most 50.
	BatchSize   int `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"min=1,max=50"`
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=8"`
	// MaxYearSpan splits each batch into year windows of at most this many
	// years. Zero sends the whole range in one request.
	MaxYearSpan       int     `yaml:"max_year_span" envconfig:"MAX_YEAR_SPAN" validate:"min=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RPS" validate:"min=0"`
}

// FREDConfig configures the FRED observations client.
type FREDConfig struct {
	Endpoint          string  `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required,url"`
	GraphEndpoint     string  `yaml:"graph_endpoint" envconfig:"GRAPH_ENDPOINT" validate:"required,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RPS" validate:"min=0"`
}

// YahooConfig configures the Yahoo Finance chart client.
type YahooConfig struct {
	Endpoint          string  `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required,url"`
	UserAgent         string  `yaml:"user_agent" envconfig:"USER_AGENT"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RPS" validate:"min=0"`
}

// RetryConfig is shared by every upstream client.
type RetryConfig struct {
	Attempts    int           `yaml:"attempts" envconfig:"ATTEMPTS" validate:"min=1,max=10"`
	Backoff     float64       `yaml:"backoff" envconfig:"BACKOFF" validate:"gt=0"`
	MaxDelay    time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" validate:"required"`
}

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" envconfig:"CONSECUTIVE_FAILURES" validate:"min=1"`
	OpenTimeout         time.Duration `yaml:"open_timeout" envconfig:"OPEN_TIMEOUT" validate:"required"`
}

// OutputConfig controls where workbooks are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" envconfig:"DIR" validate:"required"`
	SheetPrefix string `yaml:"sheet_prefix" envconfig:"SHEET_PREFIX" validate:"max=16"`
}

// TelemetryConfig enables the optional trace and metrics files.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceFile   string `yaml:"trace_file" envconfig:"TRACE_FILE"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in increasing precedence. An
// empty path searches the default locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("config file %s", path), err)
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config file %s", path), err)
		}
	}

	// .env is optional; it never overrides variables already exported.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.NewConfigError("failed to read .env", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks field constraints. It is also called after CLI flags
// have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.Configf("logging.file_path is required when output is %q", c.Logging.Output)
	}
	if c.Telemetry.Enabled && c.Telemetry.TraceFile == "" && c.Telemetry.MetricsFile == "" {
		return apperrors.Configf("telemetry is enabled but neither trace_file nor metrics_file is set")
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"faga.yaml",
		"configs/faga.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/faga.log",
		},
		BLS: BLSConfig{
			Endpoint:          "https://api.bls.gov/publicAPI/v2/timeseries/data/",
			BatchSize:         50,
			Concurrency:       1,
			RequestsPerSecond: 2,
		},
		FRED: FREDConfig{
			Endpoint:          "https://api.stlouisfed.org/fred/series/observations",
			GraphEndpoint:     "https://fred.stlouisfed.org/graph/fredgraph.csv",
			RequestsPerSecond: 2,
		},
		Yahoo: YahooConfig{
			Endpoint:          "https://query1.finance.yahoo.com/v8/finance/chart",
			UserAgent:         "Mozilla/5.0 (compatible; faga-data/1.0)",
			RequestsPerSecond: 2,
		},
		Retry: RetryConfig{
			Attempts:    3,
			Backoff:     1.6,
			MaxDelay:    30 * time.Second,
			HTTPTimeout: 30 * time.Second,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "faga-data",
		},
	}
}
