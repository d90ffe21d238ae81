package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestMonthlyLastAndMean(t *testing.T) {
	f := FromPoints("Close", []domain.Point{
		{Date: day(2024, 1, 30), Value: 10, Valid: true},
		{Date: day(2024, 1, 31), Value: 20, Valid: true},
		{Date: day(2024, 3, 1), Value: 30, Valid: true},
		{Date: day(2024, 3, 4), Value: 0, Valid: false},
	})

	last := MonthlyLast(f)
	assert.Equal(t, []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31)}, last.Index)
	assert.Equal(t, []Cell{Num(20), Null, Num(30)}, last.Data[0], "empty month is missing, trailing gap ignored")

	mean := MonthlyMean(f)
	assert.Equal(t, []Cell{Num(15), Null, Num(30)}, mean.Data[0])
}

func TestBusinessMonthEnd(t *testing.T) {
	assert.Equal(t, day(2024, 8, 30), LastBusinessDay(2024, time.August), "Aug 31 2024 is a Saturday")
	assert.Equal(t, day(2024, 7, 31), LastBusinessDay(2024, time.July))

	f := FromPoints("DGS10", []domain.Point{
		{Date: day(2024, 8, 29), Value: 3.8, Valid: true},
		{Date: day(2024, 8, 30), Value: 3.9, Valid: true},
	})
	bm := BusinessMonthEnd(f)
	require.Len(t, bm.Index, 1)
	assert.Equal(t, day(2024, 8, 30), bm.Index[0])
	assert.Equal(t, Num(3.9), bm.Data[0][0])
}

func TestAlignBusinessDays_ForwardFills(t *testing.T) {
	// Wed 2024-07-03, holiday Thu 07-04 absent, Fri 07-05 reported as ".", Mon 07-08.
	f := FromPoints("DGS2", []domain.Point{
		{Date: day(2024, 7, 3), Value: 4.7, Valid: true},
		{Date: day(2024, 7, 5), Valid: false},
		{Date: day(2024, 7, 8), Value: 4.6, Valid: true},
	})

	out := AlignBusinessDays(f)
	assert.Equal(t, []time.Time{day(2024, 7, 3), day(2024, 7, 4), day(2024, 7, 5), day(2024, 7, 8)}, out.Index)
	assert.Equal(t, []Cell{Num(4.7), Num(4.7), Num(4.7), Num(4.6)}, out.Data[0])
}

func TestFromPoints_SortsAndDeduplicates(t *testing.T) {
	f := FromPoints("X", []domain.Point{
		{Date: day(2024, 1, 3), Value: 3, Valid: true},
		{Date: day(2024, 1, 1), Value: 1, Valid: true},
		{Date: day(2024, 1, 3), Value: 4, Valid: true},
	})
	assert.Equal(t, []time.Time{day(2024, 1, 1), day(2024, 1, 3)}, f.Index)
	assert.Equal(t, []Cell{Num(1), Num(4)}, f.Data[0])
}

func TestWindow(t *testing.T) {
	f := FromPoints("X", []domain.Point{
		{Date: day(2024, 1, 1), Value: 1, Valid: true},
		{Date: day(2024, 1, 2), Value: 2, Valid: true},
		{Date: day(2024, 1, 3), Value: 3, Valid: true},
	})
	w := Window(f, day(2024, 1, 2), time.Time{})
	assert.Equal(t, []Cell{Num(2), Num(3)}, w.Data[0])
}

func TestFromBarsAndCloseColumn(t *testing.T) {
	bars := []domain.Bar{
		{Date: day(2024, 1, 3), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 20},
		{Date: day(2024, 1, 2), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}
	f, err := FromBars(bars)
	require.NoError(t, err)
	assert.Equal(t, []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}, f.Columns)
	assert.Equal(t, []time.Time{day(2024, 1, 2), day(2024, 1, 3)}, f.Index)
	assert.Equal(t, Num(1.5), f.Value(0, ColClose))
	assert.Equal(t, Num(20), f.Value(1, ColVolume))

	c := CloseColumn(f, "BTC")
	assert.Equal(t, []string{"BTC"}, c.Columns)
	assert.Equal(t, []Cell{Num(1.5), Num(2.5)}, c.Data[0])

	price := FromPoints("Price", []domain.Point{{Date: day(2024, 1, 2), Value: 2050, Valid: true}})
	assert.Equal(t, []string{"GoldLBMA_AM"}, CloseColumn(price, "GoldLBMA_AM").Columns)
}
