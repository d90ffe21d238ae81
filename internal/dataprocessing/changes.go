package dataprocessing

import (
	"github.com/shopspring/decimal"

	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// ChangeOp selects how a value is compared with its lagged value.
type ChangeOp int

const (
	// ChangeAbs is current - lagged. For rate series this is the
	// percentage-point change.
	ChangeAbs ChangeOp = iota
	// ChangePct is (current / lagged - 1) * 100.
	ChangePct
)

const (
	// LagMoM is the row lag of month-over-month changes.
	LagMoM = 1
	// LagYoY is the row lag of year-over-year changes on monthly rows.
	LagYoY = 12
)

// ChangeTable is one named derived table.
type ChangeTable struct {
	Name  string
	Frame *Frame
}

var hundred = decimal.NewFromInt(100)

// Change computes op over cols with a row lag. The first lag rows, rows where
// either operand is missing, and percent changes over a zero base are
// missing.
func Change(f *Frame, cols []string, lag int, op ChangeOp) *Frame {
	src := f.Select(cols...)
	out := NewFrame(src.IndexName, src.Index, src.Columns)
	for c := range src.Columns {
		data := src.Data[c]
		for r := lag; r < len(data); r++ {
			cur, prev := data[r], data[r-lag]
			if !cur.Valid || !prev.Valid {
				continue
			}
			out.Data[c][r] = change(cur.V, prev.V, op)
		}
	}
	return out
}

func change(cur, prev float64, op ChangeOp) Cell {
	c, p := decimal.NewFromFloat(cur), decimal.NewFromFloat(prev)
	switch op {
	case ChangePct:
		if p.IsZero() {
			return Null
		}
		v, _ := c.Sub(p).Div(p).Mul(hundred).Float64()
		return Num(v)
	default:
		v, _ := c.Sub(p).Float64()
		return Num(v)
	}
}

// BuildChanges derives the change tables for a pivot. With kinds, level
// columns get absolute and percent MoM/YoY tables and rate columns get
// percentage-point MoM/YoY tables; a group with no columns produces no
// tables. Without kinds every column gets percent MoM/YoY.
func BuildChanges(pivot *Frame, kinds map[string]domain.ValueKind, hasKinds bool) []ChangeTable {
	if !hasKinds {
		return []ChangeTable{
			{Name: "MoM_pct", Frame: Change(pivot, pivot.Columns, LagMoM, ChangePct)},
			{Name: "YoY_pct", Frame: Change(pivot, pivot.Columns, LagYoY, ChangePct)},
		}
	}

	var levelCols, rateCols []string
	for _, c := range pivot.Columns {
		if kinds[c] == domain.ValueKindRate {
			rateCols = append(rateCols, c)
		} else {
			levelCols = append(levelCols, c)
		}
	}

	var out []ChangeTable
	if len(levelCols) > 0 {
		out = append(out,
			ChangeTable{Name: "MoM_abs_level", Frame: Change(pivot, levelCols, LagMoM, ChangeAbs)},
			ChangeTable{Name: "MoM_pct_level", Frame: Change(pivot, levelCols, LagMoM, ChangePct)},
			ChangeTable{Name: "YoY_abs_level", Frame: Change(pivot, levelCols, LagYoY, ChangeAbs)},
			ChangeTable{Name: "YoY_pct_level", Frame: Change(pivot, levelCols, LagYoY, ChangePct)},
		)
	}
	if len(rateCols) > 0 {
		out = append(out,
			ChangeTable{Name: "MoM_pp_rate", Frame: Change(pivot, rateCols, LagMoM, ChangeAbs)},
			ChangeTable{Name: "YoY_pp_rate", Frame: Change(pivot, rateCols, LagYoY, ChangeAbs)},
		)
	}
	return out
}

// SuffixColumns renames every column to "<name><suffix>".
func SuffixColumns(f *Frame, suffix string) *Frame {
	return f.Rename(func(s string) string { return s + suffix })
}
