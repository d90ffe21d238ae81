package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zipGajun/FAGA-DATA/internal/dataprocessing"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/exporter"
	"github.com/zipGajun/FAGA-DATA/internal/sources/yahoo"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// DefaultIndexSymbols are the NASDAQ Composite and NASDAQ-100.
var DefaultIndexSymbols = []string{"^IXIC", "^NDX"}

// GoldCandidate is one gold price source tried in order.
type GoldCandidate struct {
	Symbol string
	Label  string
}

// GoldCandidates are the Yahoo symbols tried before the FRED fallback.
var GoldCandidates = []GoldCandidate{
	{"XAUUSD=X", "GoldSpot"},
	{"GC=F", "GoldFut"},
	{"GLD", "GoldETF"},
}

// GoldFRED is the last-resort gold series.
var GoldFRED = FREDSeries{ID: "GOLDAMGBD228NLBM", Column: "GoldLBMA_AM"}

// BTCSymbol is the Yahoo symbol of bitcoin in dollars.
const BTCSymbol = "BTC-USD"

// YahooOptions narrows a Yahoo export. Dates are YYYY-MM-DD.
type YahooOptions struct {
	Symbols []string
	Start   string
	End     string
	Prefix  string
}

// asset is one downloaded instrument with its daily and monthly tables.
type asset struct {
	name    string
	daily   *dataprocessing.Frame
	monthly *dataprocessing.Frame
}

func newAsset(name string, daily *dataprocessing.Frame, monthlyColumn string) asset {
	monthly := dataprocessing.MonthlyLast(dataprocessing.CloseColumn(daily, monthlyColumn))
	return asset{name: name, daily: daily, monthly: monthly}
}

func (o YahooOptions) dateRange(defaultStart string) (dateRange, error) {
	return parseRange(defaultStart, FREDOptions{Start: o.Start, End: o.End})
}

func fetchBars(ctx context.Context, client *yahoo.Client, env *Env, symbol string, r dateRange) (*dataprocessing.Frame, error) {
	bars, err := client.DailyBars(ctx, symbol, r.start, r.end)
	if err != nil {
		return nil, err
	}
	metrics(env.Telemetry).RecordRecords(ctx, "yahoo", len(bars))
	return dataprocessing.FromBars(bars)
}

func addAssets(wb *exporter.Workbook, assets []asset) error {
	for _, a := range assets {
		if err := wb.AddFrame(a.name+"_Daily", a.daily); err != nil {
			return err
		}
		if err := wb.AddFrame(a.name+"_Monthly", a.monthly); err != nil {
			return err
		}
	}
	return nil
}

func summaries(assets []asset) []domain.AssetSummary {
	out := make([]domain.AssetSummary, len(assets))
	for i, a := range assets {
		out[i] = dataprocessing.FrameSummary(a.name, a.daily)
	}
	return out
}

// RunIndices exports daily bars and month-end closes for equity indices.
func RunIndices(ctx context.Context, env *Env, opts YahooOptions) (*Result, error) {
	r, err := opts.dateRange("2010-01-01")
	if err != nil {
		return nil, err
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = DefaultIndexSymbols
	}
	if opts.Prefix == "" {
		opts.Prefix = "nasdaq_indices_full"
	}

	client := env.yahooClient()
	wb := env.workbook()
	var (
		assets []asset
		count  int
		result Result
	)

	stages := []Stage{
		{ID: "fetch", Run: func(ctx context.Context) error {
			for _, sym := range opts.Symbols {
				daily, err := fetchBars(ctx, client, env, sym, r)
				if err != nil {
					return err
				}
				assets = append(assets, newAsset(sym, daily, "Close_MonthEnd"))
				count += daily.Len()
			}
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			if err := addAssets(wb, assets); err != nil {
				return err
			}
			if err := wb.AddSummaries("Meta_Summary", summaries(assets)); err != nil {
				return err
			}
			p := provenance(ctx, env, "Yahoo Finance chart API", r.startRaw, r.endParam(), len(assets), false,
				"Prices adjusted by adjclose/close; monthly = calendar month-end last close")
			p.Extra = []domain.KV{{Key: "interval", Value: "1d"}}
			return wb.AddMeta("Meta_Info", p.Pairs())
		}},
		env.writeStage(wb, opts.Prefix, &count, &result),
	}

	if err := NewRunner("yahoo.indices", env.Telemetry, env.logger()).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunBTCGold exports bitcoin and gold. Gold is taken from the first source
// in GoldCandidates that returns data, then from FRED.
func RunBTCGold(ctx context.Context, env *Env, opts YahooOptions) (*Result, error) {
	r, err := opts.dateRange("2010-01-01")
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "btc_gold_fallback"
	}

	logger := env.logger()
	yc := env.yahooClient()
	fc := env.fredClient()
	wb := env.workbook()
	var (
		assets       []asset
		dailyClose   *dataprocessing.Frame
		monthlyClose *dataprocessing.Frame
		goldSource   string
		count        int
		result       Result
	)

	stages := []Stage{
		{ID: "fetch_btc", Run: func(ctx context.Context) error {
			daily, err := fetchBars(ctx, yc, env, BTCSymbol, r)
			if err != nil {
				return err
			}
			assets = append(assets, newAsset("BTC", daily, "MonthEnd"))
			return nil
		}},
		{ID: "fetch_gold", Run: func(ctx context.Context) error {
			var attempts []string
			for _, c := range GoldCandidates {
				daily, err := fetchBars(ctx, yc, env, c.Symbol, r)
				if err == nil {
					assets = append(assets, newAsset(c.Label, daily, "MonthEnd"))
					goldSource = c.Symbol
					return nil
				}
				if ctx.Err() != nil {
					return err
				}
				logger.WarnContext(ctx, "gold_source_failed",
					slog.String("symbol", c.Symbol),
					slog.String("error", err.Error()))
				attempts = append(attempts, c.Symbol)
			}

			daily, err := fetchFrame(ctx, fc, env, FREDSeries{ID: GoldFRED.ID, Column: "Price"}, r)
			if err != nil {
				attempts = append(attempts, "FRED "+GoldFRED.ID)
				return apperrors.NewUpstreamError(fmt.Sprintf("no gold data from %v", attempts), err)
			}
			assets = append(assets, newAsset(GoldFRED.Column, daily, "MonthEnd"))
			goldSource = "FRED " + GoldFRED.ID
			return nil
		}},
		{ID: "transform", Run: func(ctx context.Context) error {
			var dailies, monthlies []*dataprocessing.Frame
			for _, a := range assets {
				dailies = append(dailies, dataprocessing.CloseColumn(a.daily, a.name))
				monthlies = append(monthlies, dataprocessing.CloseColumn(a.monthly, a.name))
				if a.daily.Len() == 0 || a.monthly.Len() == 0 {
					return apperrors.DataFormatf("empty table for %s", a.name)
				}
			}
			d, err := dataprocessing.Concat(dataprocessing.DateColumn, dailies...)
			if err != nil {
				return apperrors.NewDataFormatError("combine daily closes", err)
			}
			m, err := dataprocessing.Concat(dataprocessing.DateColumn, monthlies...)
			if err != nil {
				return apperrors.NewDataFormatError("combine monthly closes", err)
			}
			dailyClose, monthlyClose = d, m
			count = d.Len()
			return nil
		}},
		{ID: "layout", Run: func(ctx context.Context) error {
			if err := addAssets(wb, assets); err != nil {
				return err
			}
			if err := wb.AddFrame("Combined_Close_Daily", dailyClose); err != nil {
				return err
			}
			if err := wb.AddFrame("Combined_Close_Monthly", monthlyClose); err != nil {
				return err
			}
			if err := wb.AddSummaries("Meta_Summary", summaries(assets)); err != nil {
				return err
			}
			p := provenance(ctx, env, "Yahoo Finance chart API + FRED fallback", r.startRaw, r.endParam(), len(assets), fc.HasAPIKey(),
				"Gold tried XAUUSD=X -> GC=F -> GLD -> FRED GOLDAMGBD228NLBM; monthly = calendar month-end last close")
			p.Extra = []domain.KV{
				{Key: "interval", Value: "1d"},
				{Key: "gold_source", Value: goldSource},
			}
			return wb.AddMeta("Meta_Info", p.Pairs())
		}},
		env.writeStage(wb, opts.Prefix, &count, &result),
	}

	if err := NewRunner("yahoo.btc_gold", env.Telemetry, logger).Run(ctx, stages...); err != nil {
		return nil, err
	}
	return &result, nil
}
