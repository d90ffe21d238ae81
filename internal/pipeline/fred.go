package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zipGajun/FAGA-DATA/internal/dataprocessing"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/sources/fred"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const dayLayout = "2006-01-02"

// FREDSeries maps a FRED id to its output column.
type FREDSeries struct {
	ID     string
	Column string
}

// FREDPreset is a fixed FRED export.
type FREDPreset struct {
	Name   string
	Series []FREDSeries
	Start  string
	Prefix string
	Notes  string
}

// FREDPresets are the single-table FRED exports.
var FREDPresets = map[string]FREDPreset{
	"m2": {
		Name: "m2", Series: []FREDSeries{{"M2SL", "M2_Money_Supply"}},
		Start: "1990-01-01", Prefix: "M2_money_supply",
		Notes: "M2 money stock, seasonally adjusted, billions of dollars, monthly.",
	},
	"vix": {
		Name: "vix", Series: []FREDSeries{{"VIXCLS", "VIX_Index"}},
		Start: "1990-01-01", Prefix: "vix_index",
		Notes: "CBOE volatility index, daily close.",
	},
	"fedfunds": {
		Name: "fedfunds", Series: []FREDSeries{{"DFF", "Federal_Funds_Rate"}},
		Start: "2000-01-01", Prefix: "Fed_Funds_Rate",
		Notes: "Federal funds effective rate, percent, daily.",
	},
	"gdp": {
		Name: "gdp", Series: []FREDSeries{{"A191RL1Q225SBEA", "Real_GDP_Growth_Rate"}},
		Start: "1980-01-01", Prefix: "Real_GDP_Growth_Rate",
		Notes: "Real GDP, percent change from preceding period, annualized, quarterly.",
	},
	"indpro": {
		Name: "indpro", Series: []FREDSeries{{"INDPRO", "Industrial_Production_Index"}},
		Start: "1990-01-01", Prefix: "industrial_production",
		Notes: "Industrial production total index, monthly.",
	},
	"walcl": {
		Name: "walcl",
		Series: []FREDSeries{
			{"RRPONTSYD", "Reverse_Repo"},
			{"WALCL", "Fed_Balance_Sheet"},
		},
		Start: "2020-01-01", Prefix: "daily_liquidity_proxies",
		Notes: "Daily liquidity proxies; WALCL is weekly and appears on its report dates only.",
	},
}

// SeriesPreset builds an ad hoc preset for one id. column defaults to id.
func SeriesPreset(id, column string) FREDPreset {
	if column == "" {
		column = id
	}
	return FREDPreset{Name: "series", Series: []FREDSeries{{ID: id, Column: column}}, Prefix: id}
}

// FREDOptions narrows a FRED export. Dates are YYYY-MM-DD; empty fields fall
// back to the preset, and an empty End means today.
type FREDOptions struct {
	Start  string
	End    string
	Prefix string
}

type dateRange struct {
	start, end       time.Time
	startRaw, endRaw string
}

func parseRange(defaultStart string, opts FREDOptions) (dateRange, error) {
	r := dateRange{startRaw: opts.Start, endRaw: opts.End}
	if r.startRaw == "" {
		r.startRaw = defaultStart
	}
	if r.startRaw != "" {
		t, err := time.Parse(dayLayout, r.startRaw)
		if err != nil {
			return r, apperrors.NewConfigError("invalid start date", err).WithStage("params")
		}
		r.start = t
	}
	if r.endRaw != "" {
		t, err := time.Parse(dayLayout, r.endRaw)
		if err != nil {
			return r, apperrors.NewConfigError("invalid end date", err).WithStage("params")
		}
		if !r.start.IsZero() && t.Before(r.start) {
			return r, apperrors.Configf("end %s is before start %s", r.endRaw, r.startRaw).WithStage("params")
		}
		r.end = t
	}
	return r, nil
}

func (r dateRange) endParam() string {
	if r.endRaw == "" {
		return "today"
	}
	return r.endRaw
}

// fetchFrame downloads one FRED series as a single-column daily frame.
func fetchFrame(ctx context.Context, client *fred.Client, env *Env, s FREDSeries, r dateRange) (*dataprocessing.Frame, error) {
	points, err := client.Observations(ctx, s.ID, r.start, r.end)
	if err != nil {
		return nil, err
	}
	metrics(env.Telemetry).RecordRecords(ctx, "fred", len(points))
	return dataprocessing.FromPoints(s.Column, points), nil
}

// RunFREDSeries exports the preset's series side by side on one Data sheet.
func RunFREDSeries(ctx context.Context, env *Env, preset FREDPreset, opts FREDOptions) (*Result, error) {
	r, err := parseRange(preset.Start, opts)
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = preset.Prefix
	}

	client := env.fredClient()
	wb := env.workbook()
	var (
		frames []*dataprocessing.Frame
		data   *dataprocessing.Frame
		count  int
		result Result
	)

	stages := []Stage{
		{ID: "fetch", Run: func(ctx context.Context) error {
			for _, s := range preset.Series {
				f, err := fetchFrame(ctx, client, env, s, r)
				if err != nil {
					return err
				}
				frames = append(frames, f)
			}
			return nil
		}},
		{ID: "transform", Run: func(ctx context.Context) error {
			d, err := dataprocessing.Concat(dataprocessing.DateColumn, frames...)
			if err != nil {
				return apperrors.NewConfigError("preset columns collide", err)
			}
			data, count = d, d.Len()
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			if err := wb.AddFrame("Data", data); err != nil {
				return err
			}
			p := provenance(ctx, env, client.Source(), r.startRaw, r.endParam(), len(preset.Series), client.HasAPIKey(), preset.Notes)
			p.Extra = []domain.KV{{Key: "series", Value: seriesList(preset.Series)}}
			return wb.AddMeta("Meta_Info", p.Pairs())
		}},
		env.writeStage(wb, opts.Prefix, &count, &result),
	}

	if err := NewRunner("fred."+preset.Name, env.Telemetry, env.logger()).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}

func seriesList(series []FREDSeries) string {
	parts := make([]string, len(series))
	for i, s := range series {
		parts[i] = s.Column + ":" + s.ID
	}
	return strings.Join(parts, ", ")
}

// FREDCPISeries is the FRED CPI family, seasonally adjusted.
var FREDCPISeries = []FREDSeries{
	{"CPIAUCSL", "All Items (Headline CPI, SA)"},
	{"CPILFESL", "Core CPI (Ex. Food & Energy, SA)"},
	{"CPIFABSL", "Food & Beverages (SA)"},
	{"CPIENGSL", "Energy (SA)"},
	{"CPIHOSSL", "Housing (SA)"},
	{"CPIAPPSL", "Apparel (SA)"},
	{"CPITRNSL", "Transportation (SA)"},
	{"CPIMEDSL", "Medical Care (SA)"},
	{"CPIRECSL", "Recreation (SA)"},
	{"CPIEDUSL", "Education & Communication (SA)"},
	{"CPIOGSSL", "Other Goods & Services (SA)"},
}

// RunFREDCPI exports the CPI family with YoY percent changes. A series that
// fails to download is listed on the Skipped sheet instead of failing the
// run; the run fails only when every series fails.
func RunFREDCPI(ctx context.Context, env *Env, opts FREDOptions) (*Result, error) {
	r, err := parseRange("", opts)
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "cpi_detailed"
	}

	logger := env.logger()
	client := env.fredClient()
	wb := env.workbook()
	var (
		frames  []*dataprocessing.Frame
		skipped [][]interface{}
		index   *dataprocessing.Frame
		yoy     *dataprocessing.Frame
		count   int
		result  Result
	)

	stages := []Stage{
		{ID: "fetch", Run: func(ctx context.Context) error {
			var lastErr error
			for _, s := range FREDCPISeries {
				f, err := fetchFrame(ctx, client, env, s, r)
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					logger.WarnContext(ctx, "series_skipped",
						slog.String("series_id", s.ID),
						slog.String("error", err.Error()))
					skipped = append(skipped, []interface{}{s.ID, err.Error()})
					lastErr = err
					continue
				}
				frames = append(frames, f)
			}
			if len(frames) == 0 {
				return apperrors.NewUpstreamError(fmt.Sprintf("all %d CPI series failed", len(FREDCPISeries)), lastErr)
			}
			return nil
		}},
		{ID: "transform", Run: func(ctx context.Context) error {
			d, err := dataprocessing.Concat(dataprocessing.DateColumn, frames...)
			if err != nil {
				return apperrors.NewConfigError("CPI columns collide", err)
			}
			index = d
			yoy = dataprocessing.SuffixColumns(
				dataprocessing.Change(index, index.Columns, dataprocessing.LagYoY, dataprocessing.ChangePct), " YoY(%)")
			count = index.Len()
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			if err := wb.AddFrame("Index_SA", index); err != nil {
				return err
			}
			if err := wb.AddFrame("YoY_pct", yoy); err != nil {
				return err
			}
			if len(skipped) > 0 {
				return wb.AddTable("Skipped", []string{"series_id", "error"}, skipped)
			}
			return nil
		}},
		env.writeStage(wb, opts.Prefix, &count, &result),
	}

	if err := NewRunner("fred.cpi", env.Telemetry, logger).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}

// Treasury tenors in output order.
var TreasuryTenors = []FREDSeries{
	{"DGS1", "1Y"},
	{"DGS2", "2Y"},
	{"DGS10", "10Y"},
	{"DGS20", "20Y"},
}

// TreasuryOptions extends FREDOptions. Daily yields are forward-filled onto
// every business day unless Unaligned is set.
type TreasuryOptions struct {
	FREDOptions
	Unaligned bool
}

// RunTreasury exports daily constant-maturity yields with monthly mean and
// business-month-end aggregates.
func RunTreasury(ctx context.Context, env *Env, opts TreasuryOptions) (*Result, error) {
	r, err := parseRange("2010-01-01", opts.FREDOptions)
	if err != nil {
		return nil, err
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "us_treasury_yields"
	}

	client := env.fredClient()
	wb := env.workbook()
	var (
		frames      []*dataprocessing.Frame
		daily       *dataprocessing.Frame
		monthlyMean *dataprocessing.Frame
		monthlyBM   *dataprocessing.Frame
		count       int
		result      Result
	)

	stages := []Stage{
		{ID: "fetch", Run: func(ctx context.Context) error {
			for _, t := range TreasuryTenors {
				f, err := fetchFrame(ctx, client, env, FREDSeries{ID: t.ID, Column: t.ID}, r)
				if err != nil {
					return err
				}
				frames = append(frames, f)
			}
			return nil
		}},
		{ID: "transform", Run: func(ctx context.Context) error {
			d, err := dataprocessing.Concat(dataprocessing.DateColumn, frames...)
			if err != nil {
				return apperrors.NewConfigError("treasury columns collide", err)
			}
			if !opts.Unaligned {
				d = dataprocessing.AlignBusinessDays(d)
			}
			daily = d
			monthlyMean = dataprocessing.SuffixColumns(dataprocessing.MonthlyMean(daily), "_MAVG")
			monthlyBM = dataprocessing.SuffixColumns(dataprocessing.BusinessMonthEnd(daily), "_MBE")
			count = daily.Len()
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			for _, t := range TreasuryTenors {
				if err := wb.AddFrame(t.Column+"_Daily", daily.Select(t.ID)); err != nil {
					return err
				}
			}
			for _, s := range []struct {
				name string
				f    *dataprocessing.Frame
			}{
				{"Combined_Daily", daily},
				{"Combined_Monthly_MAVG", monthlyMean},
				{"Combined_Monthly_MBE", monthlyBM},
			} {
				if err := wb.AddFrame(s.name, s.f); err != nil {
					return err
				}
			}

			var tenors []string
			for _, t := range TreasuryTenors {
				tenors = append(tenors, t.Column+":"+t.ID)
			}
			p := provenance(ctx, env, client.Source(), r.startRaw, r.endParam(), len(TreasuryTenors), client.HasAPIKey(),
				"Monthly mean = calendar-month average; month-end (MBE) = last value on the last business day")
			p.Extra = []domain.KV{
				{Key: "series", Value: strings.Join(tenors, ", ")},
				{Key: "unit", Value: "Percent per annum"},
				{Key: "align_to_business_days", Value: !opts.Unaligned},
				{Key: "rows_daily", Value: daily.Len()},
				{Key: "rows_monthly_mean", Value: monthlyMean.Len()},
				{Key: "rows_monthly_bm", Value: monthlyBM.Len()},
			}
			return wb.AddMeta("Meta", p.Pairs())
		}},
		env.writeStage(wb, prefix, &count, &result),
	}

	if err := NewRunner("fred.treasury", env.Telemetry, env.logger()).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}
