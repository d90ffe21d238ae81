package dataprocessing

import (
	"sort"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// PeriodEndColumn is the index name of monthly pivots.
const PeriodEndColumn = "PeriodEnd"

// FilterWindow keeps records with start <= PeriodEnd <= end. A zero start
// or nil end leaves that side open.
func FilterWindow(records []domain.ObservationRecord, start time.Time, end *time.Time) []domain.ObservationRecord {
	out := make([]domain.ObservationRecord, 0, len(records))
	for _, r := range records {
		if !start.IsZero() && r.PeriodEnd.Before(start) {
			continue
		}
		if end != nil && r.PeriodEnd.After(*end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortRecords orders records by label, then period.
func SortRecords(records []domain.ObservationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Label != records[j].Label {
			return records[i].Label < records[j].Label
		}
		return records[i].PeriodEnd.Before(records[j].PeriodEnd)
	})
}

// Pivot reshapes long records into a PeriodEnd x label frame. Columns follow
// columnOrder; labels not in columnOrder are appended sorted. Absent
// (period, label) pairs are missing cells. Two records for the same pair
// are a data-format error.
func Pivot(records []domain.ObservationRecord, columnOrder []string) (*Frame, error) {
	present := map[string]bool{}
	dates := map[int64]time.Time{}
	for _, r := range records {
		present[r.Label] = true
		dates[r.PeriodEnd.UnixNano()] = r.PeriodEnd
	}

	var columns []string
	listed := map[string]bool{}
	for _, l := range columnOrder {
		if present[l] && !listed[l] {
			columns = append(columns, l)
			listed[l] = true
		}
	}
	var extra []string
	for l := range present {
		if !listed[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	columns = append(columns, extra...)

	index := make([]time.Time, 0, len(dates))
	for _, t := range dates {
		index = append(index, t)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	rowOf := make(map[int64]int, len(index))
	for i, t := range index {
		rowOf[t.UnixNano()] = i
	}
	colOf := make(map[string]int, len(columns))
	for i, c := range columns {
		colOf[c] = i
	}

	f := NewFrame(PeriodEndColumn, index, columns)
	for _, r := range records {
		c, row := colOf[r.Label], rowOf[r.PeriodEnd.UnixNano()]
		if f.Data[c][row].Valid {
			return nil, apperrors.DataFormatf("duplicate observation for %q at %s",
				r.Label, r.PeriodEnd.Format("2006-01-02"))
		}
		f.Data[c][row] = Num(r.Value)
	}
	return f, nil
}

// Melt is the inverse of Pivot: one record per present cell, ordered by
// column then date. Only Label, PeriodEnd and Value are set.
func Melt(f *Frame) []domain.ObservationRecord {
	var out []domain.ObservationRecord
	for c, name := range f.Columns {
		for r, t := range f.Index {
			if cell := f.Data[c][r]; cell.Valid {
				out = append(out, domain.ObservationRecord{Label: name, PeriodEnd: t, Value: cell.V})
			}
		}
	}
	return out
}
