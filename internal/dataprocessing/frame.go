package dataprocessing

import (
	"fmt"
	"sort"
	"time"
)

// Cell is a possibly-missing numeric value. A missing cell is never zero.
type Cell struct {
	V     float64
	Valid bool
}

// Num returns a present cell.
func Num(v float64) Cell { return Cell{V: v, Valid: true} }

// Null is the missing cell.
var Null = Cell{}

// Frame is a date-indexed table of nullable float columns. Index is
// strictly ascending. Data is stored column-major: Data[col][row].
type Frame struct {
	IndexName string
	Index     []time.Time
	Columns   []string
	Data      [][]Cell
}

// NewFrame returns a frame with every cell missing.
func NewFrame(indexName string, index []time.Time, columns []string) *Frame {
	f := &Frame{
		IndexName: indexName,
		Index:     append([]time.Time(nil), index...),
		Columns:   append([]string(nil), columns...),
		Data:      make([][]Cell, len(columns)),
	}
	for i := range f.Data {
		f.Data[i] = make([]Cell, len(index))
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Index) }

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of name.
func (f *Frame) Column(name string) ([]Cell, bool) {
	i := f.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return f.Data[i], true
}

// Value returns the cell at (row, name).
func (f *Frame) Value(row int, name string) Cell {
	col, ok := f.Column(name)
	if !ok || row < 0 || row >= len(col) {
		return Null
	}
	return col[row]
}

// Select returns a copy restricted to cols, in the given order. Unknown
// names are skipped.
func (f *Frame) Select(cols ...string) *Frame {
	out := &Frame{IndexName: f.IndexName, Index: append([]time.Time(nil), f.Index...)}
	for _, name := range cols {
		if data, ok := f.Column(name); ok {
			out.Columns = append(out.Columns, name)
			out.Data = append(out.Data, append([]Cell(nil), data...))
		}
	}
	return out
}

// Rename returns a copy with every column name passed through fn.
func (f *Frame) Rename(fn func(string) string) *Frame {
	out := f.Select(f.Columns...)
	for i, c := range out.Columns {
		out.Columns[i] = fn(c)
	}
	return out
}

// Equal reports whether two frames hold the same index, columns and cells.
func (f *Frame) Equal(o *Frame) bool {
	if f.Len() != o.Len() || len(f.Columns) != len(o.Columns) {
		return false
	}
	for i := range f.Index {
		if !f.Index[i].Equal(o.Index[i]) {
			return false
		}
	}
	for c := range f.Columns {
		if f.Columns[c] != o.Columns[c] {
			return false
		}
		for r := range f.Index {
			if f.Data[c][r] != o.Data[c][r] {
				return false
			}
		}
	}
	return true
}

// Concat outer-joins frames on their index. Column names must be unique
// across the inputs.
func Concat(indexName string, frames ...*Frame) (*Frame, error) {
	seen := map[int64]time.Time{}
	var columns []string
	names := map[string]bool{}
	for _, f := range frames {
		for _, t := range f.Index {
			seen[t.UnixNano()] = t
		}
		for _, c := range f.Columns {
			if names[c] {
				return nil, fmt.Errorf("duplicate column %q", c)
			}
			names[c] = true
			columns = append(columns, c)
		}
	}

	index := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		index = append(index, t)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })
	pos := make(map[int64]int, len(index))
	for i, t := range index {
		pos[t.UnixNano()] = i
	}

	out := NewFrame(indexName, index, columns)
	col := 0
	for _, f := range frames {
		for c := range f.Columns {
			for r, t := range f.Index {
				out.Data[col][pos[t.UnixNano()]] = f.Data[c][r]
			}
			col++
		}
	}
	return out, nil
}
