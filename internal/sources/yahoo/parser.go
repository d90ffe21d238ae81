package yahoo

import (
	"math"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// ParseChart converts a chart result into daily bars. Bars whose close is
// null are dropped. When adjusted closes are present, open, high, low and
// close are scaled by adjclose/close.
func ParseChart(res ChartResult) ([]domain.Bar, error) {
	if len(res.Indicators.Quote) == 0 {
		if len(res.Timestamp) == 0 {
			return nil, nil
		}
		return nil, apperrors.DataFormatf("chart for %s has timestamps but no quotes", res.Meta.Symbol)
	}
	q := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	n := len(res.Timestamp)
	for _, arr := range [][]*float64{q.Open, q.High, q.Low, q.Close} {
		if len(arr) != n {
			return nil, apperrors.DataFormatf("chart for %s has %d timestamps and %d prices",
				res.Meta.Symbol, n, len(arr)).WithContext("symbol", res.Meta.Symbol)
		}
	}

	bars := make([]domain.Bar, 0, n)
	for i, ts := range res.Timestamp {
		closeV, ok := value(q.Close, i)
		if !ok {
			continue
		}
		b := domain.Bar{Date: TradingDay(ts, res.Meta.GMTOffset), Close: closeV, AdjClose: closeV}
		b.Open, _ = value(q.Open, i)
		b.High, _ = value(q.High, i)
		b.Low, _ = value(q.Low, i)
		if v, ok := value(q.Volume, i); ok {
			b.Volume = int64(v)
		}
		if a, ok := value(adj, i); ok && closeV != 0 {
			f := a / closeV
			b.Open *= f
			b.High *= f
			b.Low *= f
			b.Close = a
			b.AdjClose = a
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// TradingDay converts a bar timestamp to its exchange-local calendar date at
// midnight UTC.
func TradingDay(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func value(arr []*float64, i int) (float64, bool) {
	if i >= len(arr) || arr[i] == nil {
		return 0, false
	}
	v := *arr[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
