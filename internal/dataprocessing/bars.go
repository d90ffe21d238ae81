package dataprocessing

import (
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// Bar frame columns.
const (
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColClose  = "Close"
	ColVolume = "Volume"
)

// FromBars builds a daily OHLCV frame indexed by Date. Later bars win on
// duplicate dates.
func FromBars(bars []domain.Bar) (*Frame, error) {
	cols := []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}
	series := make([][]domain.Point, len(cols))
	for _, b := range bars {
		for i, v := range []float64{b.Open, b.High, b.Low, b.Close, float64(b.Volume)} {
			series[i] = append(series[i], domain.Point{Date: b.Date, Value: v, Valid: true})
		}
	}

	frames := make([]*Frame, len(cols))
	for i, c := range cols {
		frames[i] = FromPoints(c, series[i])
	}
	out, err := Concat(DateColumn, frames...)
	if err != nil {
		return nil, apperrors.NewDataFormatError("build bar frame", err)
	}
	return out, nil
}

// CloseColumn returns the close prices of f as a single column named name.
// Frames without a Close column use their first column.
func CloseColumn(f *Frame, name string) *Frame {
	src := ColClose
	if f.ColumnIndex(ColClose) < 0 && len(f.Columns) > 0 {
		src = f.Columns[0]
	}
	return f.Select(src).Rename(func(string) string { return name })
}
