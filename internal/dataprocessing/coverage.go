package dataprocessing

import (
	"sort"
	"strings"
	"time"

	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// Coverage reports the first and last period and the record count per label
// (and kind when hasKinds). Rows are sorted by (kind, label), or by label
// alone without kinds.
func Coverage(records []domain.ObservationRecord, hasKinds bool) []domain.CoverageRow {
	type key struct {
		label string
		kind  domain.ValueKind
	}
	acc := map[key]*domain.CoverageRow{}
	for _, r := range records {
		k := key{label: r.Label}
		if hasKinds {
			k.kind = r.Kind
		}
		row, ok := acc[k]
		if !ok {
			row = &domain.CoverageRow{Label: k.label, Kind: k.kind, Start: r.PeriodEnd, End: r.PeriodEnd}
			acc[k] = row
		}
		if r.PeriodEnd.Before(row.Start) {
			row.Start = r.PeriodEnd
		}
		if r.PeriodEnd.After(row.End) {
			row.End = r.PeriodEnd
		}
		row.Rows++
	}

	out := make([]domain.CoverageRow, 0, len(acc))
	for _, row := range acc {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if hasKinds && out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// FrameSummary describes the rows, span and columns of a frame for a
// Meta_Summary sheet. Rows is the number of index entries.
func FrameSummary(asset string, f *Frame) domain.AssetSummary {
	s := domain.AssetSummary{
		Asset:   asset,
		Rows:    f.Len(),
		Columns: strings.Join(f.Columns, ", "),
	}
	if f.Len() > 0 {
		s.Start = f.Index[0]
		s.End = f.Index[f.Len()-1]
	}
	return s
}

// Window returns the rows of f with start <= date <= end. A zero start or
// zero end leaves that side open.
func Window(f *Frame, start, end time.Time) *Frame {
	var rows []int
	for r, t := range f.Index {
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		rows = append(rows, r)
	}
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = f.Index[r]
	}
	out := NewFrame(f.IndexName, index, f.Columns)
	for c := range f.Columns {
		for i, r := range rows {
			out.Data[c][i] = f.Data[c][r]
		}
	}
	return out
}
