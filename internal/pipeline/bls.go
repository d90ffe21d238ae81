package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/zipGajun/FAGA-DATA/internal/catalog"
	"github.com/zipGajun/FAGA-DATA/internal/dataprocessing"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/sources/bls"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// BLSSource is the provenance source name of BLS workbooks.
const BLSSource = "BLS Public API v2 (https://api.bls.gov)"

// BLSPreset holds the per-variant defaults of a BLS export.
type BLSPreset struct {
	Variant catalog.Variant
	Start   string
	Prefix  string
	Notes   string
}

// BLSPresets are the built-in BLS exports keyed by variant name.
var BLSPresets = map[string]BLSPreset{
	catalog.CPI.Name: {
		Variant: catalog.CPI,
		Start:   "2000-01",
		Prefix:  "cpi_details",
		Notes:   "Values are CPI index levels; MoM% and YoY% are computed from levels.",
	},
	catalog.PPI.Name: {
		Variant: catalog.PPI,
		Start:   "2010-01",
		Prefix:  "ppi_details",
		Notes:   "Values are PPI index levels; MoM% and YoY% are computed from levels.",
	},
	catalog.Employment.Name: {
		Variant: catalog.Employment,
		Start:   "2000-01",
		Prefix:  "employment_details",
		Notes:   "Levels: absolute and % changes; Rates: changes in percentage points (pp). All series seasonally adjusted unless you change IDs.",
	},
}

// BLSOptions selects what a BLS export fetches. Empty fields fall back to
// the preset.
type BLSOptions struct {
	Start     string
	End       string
	SeriesMap string
	Prefix    string
}

// RunBLS executes catalog -> fetch -> parse -> transform -> summarize ->
// write for one BLS preset.
func RunBLS(ctx context.Context, env *Env, preset BLSPreset, opts BLSOptions) (*Result, error) {
	if opts.Start == "" {
		opts.Start = preset.Start
	}
	if opts.SeriesMap == "" {
		opts.SeriesMap = preset.Variant.DefaultFile
	}
	if opts.Prefix == "" {
		opts.Prefix = preset.Prefix
	}

	start, err := domain.ParseMonth(opts.Start)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid start month", err).WithStage("params")
	}
	var end *time.Time
	endYear := env.now().Year()
	if opts.End != "" {
		e, err := domain.ParseMonth(opts.End)
		if err != nil {
			return nil, apperrors.NewConfigError("invalid end month", err).WithStage("params")
		}
		if e.Before(start) {
			return nil, apperrors.Configf("end %s is before start %s", opts.End, opts.Start).WithStage("params")
		}
		end, endYear = &e, e.Year()
	}

	logger := env.logger()
	client := env.blsClient()
	wb := env.workbook()

	var (
		cat       *catalog.Catalog
		responses []*bls.Response
		records   []domain.ObservationRecord
		pivot     *dataprocessing.Frame
		changes   []dataprocessing.ChangeTable
		coverage  []domain.CoverageRow
		count     int
		result    Result
	)

	stages := []Stage{
		{ID: "catalog", Run: func(ctx context.Context) error {
			c, err := catalog.Load(opts.SeriesMap, preset.Variant)
			if err != nil {
				return err
			}
			cat = c
			logger.InfoContext(ctx, "catalog_loaded",
				slog.String("source", c.Source),
				slog.Int("series", len(c.Series)),
				slog.Bool("has_kinds", c.HasKinds))
			return nil
		}},
		{ID: "fetch", Run: func(ctx context.Context) error {
			r, err := client.FetchAll(ctx, cat.IDs(), start.Year(), endYear)
			responses = r
			return err
		}},
		{ID: "parse", Run: func(ctx context.Context) error {
			recs, err := bls.ParseResponses(responses, cat.Lookup())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return apperrors.Upstreamf("no data returned from BLS for %d series", len(cat.Series))
			}
			metrics(env.Telemetry).RecordRecords(ctx, "bls", len(recs))
			records = recs
			return nil
		}},
		{ID: "transform", Run: func(ctx context.Context) error {
			records = dataprocessing.FilterWindow(records, start, end)
			dataprocessing.SortRecords(records)
			p, err := dataprocessing.Pivot(records, cat.Labels())
			if err != nil {
				return err
			}
			pivot = p
			changes = dataprocessing.BuildChanges(pivot, cat.Kinds(), cat.HasKinds)
			count = len(records)
			return nil
		}},
		{ID: "summarize", Run: func(ctx context.Context) error {
			coverage = dataprocessing.Coverage(records, cat.HasKinds)
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			if err := wb.AddRecords("Raw_Long", records, cat.HasKinds); err != nil {
				return err
			}
			if err := wb.AddFrame("Pivot_Level", pivot); err != nil {
				return err
			}
			for _, ct := range changes {
				if err := wb.AddFrame(ct.Name, ct.Frame); err != nil {
					return err
				}
			}
			if err := wb.AddCoverage("Coverage", coverage, cat.HasKinds); err != nil {
				return err
			}
			return wb.AddMeta("Meta_Info", provenance(ctx, env, BLSSource, opts.Start, opts.End,
				len(cat.Series), client.HasAPIKey(), preset.Notes).Pairs())
		}},
		env.writeStage(wb, opts.Prefix, &count, &result),
	}

	if err := NewRunner("bls."+preset.Variant.Name, env.Telemetry, logger).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}

// provenance builds the meta block of a run. An open end is reported as
// "latest".
func provenance(ctx context.Context, env *Env, source, start, end string, series int, hasKey bool, notes string) domain.Provenance {
	if end == "" {
		end = "latest"
	}
	return domain.Provenance{
		RunID:       infrastructure.GetRunID(ctx),
		GeneratedAt: env.now(),
		Source:      source,
		StartParam:  start,
		EndParam:    end,
		SeriesCount: series,
		HasAPIKey:   hasKey,
		Notes:       notes,
	}
}
