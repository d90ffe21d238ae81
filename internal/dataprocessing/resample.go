package dataprocessing

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// DateColumn is the index name of daily frames.
const DateColumn = "Date"

// monthKey identifies a calendar month.
type monthKey struct {
	year  int
	month time.Month
}

func keyOf(t time.Time) monthKey { return monthKey{t.Year(), t.Month()} }

// monthsSpanning lists every month from the first to the last index date.
func monthsSpanning(index []time.Time) []monthKey {
	if len(index) == 0 {
		return nil
	}
	first, last := index[0], index[len(index)-1]
	var out []monthKey
	for y, m := first.Year(), first.Month(); ; {
		out = append(out, monthKey{y, m})
		if y == last.Year() && m == last.Month() {
			break
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	return out
}

// LastBusinessDay returns the last Monday-Friday of the given month.
func LastBusinessDay(year int, month time.Month) time.Time {
	d := domain.MonthEnd(year, month)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// resampleMonthly groups rows by calendar month and reduces each column's
// present values with agg. Months without values yield missing cells. label
// picks the output date for each month.
func resampleMonthly(f *Frame, label func(monthKey) time.Time, agg func([]float64) float64) *Frame {
	months := monthsSpanning(f.Index)
	index := make([]time.Time, len(months))
	pos := make(map[monthKey]int, len(months))
	for i, m := range months {
		index[i] = label(m)
		pos[m] = i
	}

	out := NewFrame(f.IndexName, index, f.Columns)
	for c := range f.Columns {
		buckets := make([][]float64, len(months))
		for r, t := range f.Index {
			if cell := f.Data[c][r]; cell.Valid {
				i := pos[keyOf(t)]
				buckets[i] = append(buckets[i], cell.V)
			}
		}
		for i, vals := range buckets {
			if len(vals) > 0 {
				out.Data[c][i] = Num(agg(vals))
			}
		}
	}
	return out
}

func lastValue(v []float64) float64 { return v[len(v)-1] }

func meanValue(v []float64) float64 { return stat.Mean(v, nil) }

// MonthlyLast takes the last present value of each calendar month, indexed
// by the calendar month end.
func MonthlyLast(f *Frame) *Frame {
	return resampleMonthly(f, func(m monthKey) time.Time { return domain.MonthEnd(m.year, m.month) }, lastValue)
}

// MonthlyMean averages the present values of each calendar month, indexed by
// the calendar month end.
func MonthlyMean(f *Frame) *Frame {
	return resampleMonthly(f, func(m monthKey) time.Time { return domain.MonthEnd(m.year, m.month) }, meanValue)
}

// BusinessMonthEnd takes the last present value of each month, indexed by
// the month's last business day.
func BusinessMonthEnd(f *Frame) *Frame {
	return resampleMonthly(f, func(m monthKey) time.Time { return LastBusinessDay(m.year, m.month) }, lastValue)
}

// AlignBusinessDays reindexes f onto every weekday between its first and
// last date and forward-fills missing cells from the previous row.
func AlignBusinessDays(f *Frame) *Frame {
	if f.Len() == 0 {
		return f.Select(f.Columns...)
	}
	var index []time.Time
	for d := f.Index[0]; !d.After(f.Index[f.Len()-1]); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			index = append(index, d)
		}
	}

	src := make(map[int64]int, f.Len())
	for r, t := range f.Index {
		src[t.UnixNano()] = r
	}

	out := NewFrame(f.IndexName, index, f.Columns)
	for c := range f.Columns {
		last := Null
		for i, t := range index {
			if r, ok := src[t.UnixNano()]; ok && f.Data[c][r].Valid {
				last = f.Data[c][r]
			}
			out.Data[c][i] = last
		}
	}
	return out
}

// FromPoints builds a one-column frame from dated points. Later points win
// on duplicate dates.
func FromPoints(column string, points []domain.Point) *Frame {
	var (
		index []time.Time
		cells []Cell
	)
	pos := map[int64]int{}
	for _, p := range points {
		cell := Null
		if p.Valid {
			cell = Num(p.Value)
		}
		if i, ok := pos[p.Date.UnixNano()]; ok {
			cells[i] = cell
			continue
		}
		pos[p.Date.UnixNano()] = len(index)
		index = append(index, p.Date)
		cells = append(cells, cell)
	}

	f := NewFrame(DateColumn, nil, []string{column})
	f.Index = index
	f.Data[0] = cells
	sortFrame(f)
	return f
}

// sortFrame orders rows by index in place.
func sortFrame(f *Frame) {
	if sort.SliceIsSorted(f.Index, func(i, j int) bool { return f.Index[i].Before(f.Index[j]) }) {
		return
	}
	order := make([]int, f.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return f.Index[order[i]].Before(f.Index[order[j]]) })

	index := make([]time.Time, len(order))
	for i, o := range order {
		index[i] = f.Index[o]
	}
	for c := range f.Data {
		col := make([]Cell, len(order))
		for i, o := range order {
			col[i] = f.Data[c][o]
		}
		f.Data[c] = col
	}
	f.Index = index
}
