// faga downloads macroeconomic and market time series (BLS, FRED, Yahoo
// Finance) and writes them as analysis-ready Excel workbooks.
//
// Usage:
//
//	faga bls cpi --start 2015-01
//	faga fred treasury --no-align
//	faga yahoo btc-gold
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/zipGajun/FAGA-DATA/internal/config"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/pipeline"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// session holds what the Before hook builds for the command actions.
type session struct {
	env       *pipeline.Env
	telemetry *infrastructure.Telemetry
	result    *pipeline.Result
	ran       bool
}

// run executes the CLI and returns the process exit code. stdout receives
// only the final one-line message.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	s := &session{}
	app := newApp(s)
	// Help and usage text go to stderr with the logs.
	app.Writer = stderr
	app.ErrWriter = stderr

	err := app.RunContext(ctx, args)
	if s.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := s.telemetry.Shutdown(shutdownCtx); serr != nil {
			infrastructure.GetLogger().Warn("telemetry shutdown failed", slog.String("error", serr.Error()))
		}
		cancel()
	}
	_ = infrastructure.CloseLogFile()

	if err != nil {
		if !s.ran && apperrors.KindOf(err) == "" {
			// Flag parsing and usage errors never reach an action.
			err = apperrors.NewConfigError("invalid arguments", err)
		}
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	if s.result != nil {
		fmt.Fprintf(stdout, "Saved: %s (%d sheets, %d records)\n", s.result.Path, len(s.result.Sheets), s.result.Records)
	}
	return 0
}

func newApp(s *session) *cli.App {
	return &cli.App{
		Name:    "faga",
		Usage:   "Export BLS, FRED and Yahoo Finance time series to Excel workbooks",
		Version: contracts.GetFullVersionString(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: faga.yaml or configs/faga.yaml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "out-dir",
				Aliases: []string{"o"},
				Usage:   "Directory the workbook is written to",
			},
			&cli.StringFlag{
				Name:  "sheet-prefix",
				Usage: "Prefix prepended to every sheet name",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent BLS batch requests",
			},
			&cli.StringFlag{
				Name:  "trace-file",
				Usage: "Write OpenTelemetry spans to this file (enables telemetry)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus textfile metrics here on exit (enables telemetry)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return nil
			}
			return s.setup(c)
		},
		Commands: []*cli.Command{
			blsCommand(s),
			fredCommand(s),
			yahooCommand(s),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// setup loads the configuration, applies global flag overrides and starts
// logging and telemetry.
func (s *session) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyOverrides(cfg, c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize logger", err)
	}
	tel, err := infrastructure.InitTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}

	s.telemetry = tel
	s.env = &pipeline.Env{Config: cfg, Logger: logger, Telemetry: tel}
	return nil
}

func applyOverrides(cfg *config.Config, c *cli.Context) {
	if v := c.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := c.String("out-dir"); v != "" {
		cfg.Output.Dir = v
	}
	if c.IsSet("sheet-prefix") {
		cfg.Output.SheetPrefix = c.String("sheet-prefix")
	}
	if c.IsSet("concurrency") {
		cfg.BLS.Concurrency = c.Int("concurrency")
	}
	if v := c.String("trace-file"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.TraceFile = v
	}
	if v := c.String("metrics-file"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.MetricsFile = v
	}
}

// job wraps a pipeline call as a command action.
func (s *session) job(fn func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		if s.env == nil {
			return errors.New("configuration was not loaded")
		}
		s.ran = true
		res, err := fn(c.Context, s.env, c)
		if err != nil {
			return err
		}
		s.result = res
		return nil
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "First date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "Last date (YYYY-MM-DD, default today)"},
		&cli.StringFlag{Name: "prefix", Usage: "Output file prefix"},
	}
}

func fredOptions(c *cli.Context) pipeline.FREDOptions {
	return pipeline.FREDOptions{Start: c.String("start"), End: c.String("end"), Prefix: c.String("prefix")}
}

func yahooOptions(c *cli.Context) pipeline.YahooOptions {
	o := pipeline.YahooOptions{Start: c.String("start"), End: c.String("end"), Prefix: c.String("prefix")}
	for _, sym := range c.StringSlice("symbols") {
		for _, part := range strings.Split(sym, ",") {
			if part = strings.TrimSpace(part); part != "" {
				o.Symbols = append(o.Symbols, part)
			}
		}
	}
	return o
}

func blsCommand(s *session) *cli.Command {
	var subs []*cli.Command
	for _, name := range []string{"cpi", "ppi", "employment"} {
		preset := pipeline.BLSPresets[name]
		subs = append(subs, &cli.Command{
			Name:  name,
			Usage: fmt.Sprintf("Export the BLS %s catalog (default start %s)", name, preset.Start),
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "start", Value: preset.Start, Usage: "First month (YYYY-MM)"},
				&cli.StringFlag{Name: "end", Usage: "Last month (YYYY-MM, default latest)"},
				&cli.StringFlag{Name: "series-map", Usage: "Series catalog (.csv, .tsv or .xlsx)", Value: preset.Variant.DefaultFile},
				&cli.StringFlag{Name: "prefix", Value: preset.Prefix, Usage: "Output file prefix"},
			},
			Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
				return pipeline.RunBLS(ctx, env, preset, pipeline.BLSOptions{
					Start:     c.String("start"),
					End:       c.String("end"),
					SeriesMap: c.String("series-map"),
					Prefix:    c.String("prefix"),
				})
			}),
		})
	}
	return &cli.Command{
		Name:        "bls",
		Usage:       "Export BLS monthly series with change tables",
		Subcommands: subs,
	}
}

func fredCommand(s *session) *cli.Command {
	var subs []*cli.Command
	for _, name := range []string{"m2", "vix", "fedfunds", "gdp", "indpro", "walcl"} {
		preset := pipeline.FREDPresets[name]
		subs = append(subs, &cli.Command{
			Name:  name,
			Usage: preset.Notes,
			Flags: rangeFlags(),
			Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
				return pipeline.RunFREDSeries(ctx, env, preset, fredOptions(c))
			}),
		})
	}
	subs = append(subs,
		&cli.Command{
			Name:  "series",
			Usage: "Export any FRED series by id",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "id", Required: true, Usage: "FRED series id"},
				&cli.StringFlag{Name: "column", Usage: "Output column name (default: the id)"},
			}, rangeFlags()...),
			Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
				return pipeline.RunFREDSeries(ctx, env, pipeline.SeriesPreset(c.String("id"), c.String("column")), fredOptions(c))
			}),
		},
		&cli.Command{
			Name:  "cpi",
			Usage: "Export the CPI family with YoY percent changes",
			Flags: rangeFlags(),
			Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
				return pipeline.RunFREDCPI(ctx, env, fredOptions(c))
			}),
		},
		&cli.Command{
			Name:  "treasury",
			Usage: "Export 1Y/2Y/10Y/20Y constant-maturity yields with monthly aggregates",
			Flags: append([]cli.Flag{
				&cli.BoolFlag{Name: "no-align", Usage: "Keep the raw FRED dates instead of forward-filling onto every business day"},
			}, rangeFlags()...),
			Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
				return pipeline.RunTreasury(ctx, env, pipeline.TreasuryOptions{
					FREDOptions: fredOptions(c),
					Unaligned:   c.Bool("no-align"),
				})
			}),
		},
	)
	return &cli.Command{
		Name:        "fred",
		Usage:       "Export FRED series",
		Subcommands: subs,
	}
}

func yahooCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "yahoo",
		Usage: "Export Yahoo Finance daily bars",
		Subcommands: []*cli.Command{
			{
				Name:  "indices",
				Usage: "Export equity indices (default ^IXIC and ^NDX)",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{Name: "symbols", Usage: "Symbols, repeated or comma separated"},
				}, rangeFlags()...),
				Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
					return pipeline.RunIndices(ctx, env, yahooOptions(c))
				}),
			},
			{
				Name:  "btc-gold",
				Usage: "Export bitcoin and gold with source fallback",
				Flags: rangeFlags(),
				Action: s.job(func(ctx context.Context, env *pipeline.Env, c *cli.Context) (*pipeline.Result, error) {
					return pipeline.RunBTCGold(ctx, env, yahooOptions(c))
				}),
			},
		},
	}
}
