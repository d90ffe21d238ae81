package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zipGajun/FAGA-DATA/internal/dataprocessing"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const (
	// MaxSheetNameLength is the Excel limit on sheet names.
	MaxSheetNameLength = 31

	dateFormat = "yyyy-mm-dd"
	stage      = "write"
)

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")",
)

// sheet is one buffered worksheet. Row values are float64, int, string,
// bool, time.Time (written with the date style) or nil for an empty cell.
type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

// Workbook accumulates sheets and writes them in insertion order.
type Workbook struct {
	prefix  string
	sheets  []*sheet
	names   map[string]bool
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// Option configures a Workbook.
type Option func(*Workbook)

// WithSheetPrefix prepends p to every sheet name.
func WithSheetPrefix(p string) Option {
	return func(w *Workbook) { w.prefix = p }
}

// WithLogger sets the logger used by Save.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workbook) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics records written rows per sheet.
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(w *Workbook) { w.metrics = m }
}

// NewWorkbook returns an empty workbook.
func NewWorkbook(opts ...Option) *Workbook {
	w := &Workbook{
		names:  map[string]bool{},
		logger: infrastructure.WithComponent(nil, "exporter"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SheetName returns the final name for a logical sheet name: the prefix is
// applied, characters Excel forbids are replaced and the result is cut to
// 31 characters.
func (w *Workbook) SheetName(name string) string {
	s := sheetNameReplacer.Replace(w.prefix + name)
	s = strings.Trim(s, "'")
	if r := []rune(s); len(r) > MaxSheetNameLength {
		s = string(r[:MaxSheetNameLength])
	}
	return s
}

// SheetNames lists the final sheet names in write order.
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		out[i] = s.name
	}
	return out
}

// AddTable adds a sheet with a header row and data rows.
func (w *Workbook) AddTable(name string, header []string, rows [][]interface{}) error {
	final := w.SheetName(name)
	if final == "" {
		return apperrors.IOf("empty sheet name for %q", name).WithStage(stage)
	}
	key := strings.ToLower(final)
	if w.names[key] {
		return apperrors.IOf("duplicate sheet name %q", final).WithStage(stage)
	}
	for i, row := range rows {
		if len(row) > len(header) {
			return apperrors.IOf("sheet %q row %d has %d values for %d columns", final, i+1, len(row), len(header)).
				WithStage(stage)
		}
	}
	w.names[key] = true
	w.sheets = append(w.sheets, &sheet{name: final, header: header, rows: rows})
	return nil
}

// AddFrame adds a table whose first column is the frame's date index.
// Missing cells are left empty.
func (w *Workbook) AddFrame(name string, f *dataprocessing.Frame) error {
	header := append([]string{f.IndexName}, f.Columns...)
	rows := make([][]interface{}, f.Len())
	for r, t := range f.Index {
		row := make([]interface{}, 0, len(header))
		row = append(row, t)
		for c := range f.Columns {
			if cell := f.Data[c][r]; cell.Valid {
				row = append(row, cell.V)
			} else {
				row = append(row, nil)
			}
		}
		rows[r] = row
	}
	return w.AddTable(name, header, rows)
}

// AddRecords adds the long-form observation table. The value_type column is
// only written when hasKinds is set.
func (w *Workbook) AddRecords(name string, records []domain.ObservationRecord, hasKinds bool) error {
	header := []string{"series_id", "label", dataprocessing.PeriodEndColumn, "value"}
	if hasKinds {
		header = []string{"series_id", "label", "value_type", dataprocessing.PeriodEndColumn, "value"}
	}
	rows := make([][]interface{}, len(records))
	for i, r := range records {
		if hasKinds {
			rows[i] = []interface{}{r.SeriesID, r.Label, string(r.Kind), r.PeriodEnd, r.Value}
		} else {
			rows[i] = []interface{}{r.SeriesID, r.Label, r.PeriodEnd, r.Value}
		}
	}
	return w.AddTable(name, header, rows)
}

// AddCoverage adds the per-label coverage table.
func (w *Workbook) AddCoverage(name string, coverage []domain.CoverageRow, hasKinds bool) error {
	header := []string{"label", "start", "end", "rows"}
	if hasKinds {
		header = []string{"label", "value_type", "start", "end", "rows"}
	}
	rows := make([][]interface{}, len(coverage))
	for i, c := range coverage {
		if hasKinds {
			rows[i] = []interface{}{c.Label, string(c.Kind), c.Start, c.End, c.Rows}
		} else {
			rows[i] = []interface{}{c.Label, c.Start, c.End, c.Rows}
		}
	}
	return w.AddTable(name, header, rows)
}

// AddMeta adds a single-row sheet with one column per key.
func (w *Workbook) AddMeta(name string, pairs []domain.KV) error {
	header := make([]string, len(pairs))
	row := make([]interface{}, len(pairs))
	for i, kv := range pairs {
		header[i] = kv.Key
		row[i] = kv.Value
	}
	return w.AddTable(name, header, [][]interface{}{row})
}

// AddSummaries adds one row per asset.
func (w *Workbook) AddSummaries(name string, summaries []domain.AssetSummary) error {
	header := []string{"asset", "rows_daily", "start_daily", "end_daily", "columns"}
	rows := make([][]interface{}, len(summaries))
	for i, s := range summaries {
		rows[i] = []interface{}{s.Asset, s.Rows, optionalTime(s.Start), optionalTime(s.End), s.Columns}
	}
	return w.AddTable(name, header, rows)
}

func optionalTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Save writes every sheet to path. The workbook is written to a temporary
// file in the same directory and renamed over path only on success.
func (w *Workbook) Save(ctx context.Context, path string) error {
	if len(w.sheets) == 0 {
		return apperrors.IOf("workbook has no sheets").WithStage(stage)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewIOError("save cancelled", err).WithStage(stage)
	}

	start := time.Now()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewIOError("failed to create output directory", err).
			WithStage(stage).WithContext("dir", dir)
	}

	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.NewIOError("failed to create temporary file", err).
			WithStage(stage).WithContext("dir", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := f.WriteTo(tmp); err != nil {
		cleanup()
		return apperrors.NewIOError("failed to write workbook", err).WithStage(stage).WithContext("path", path)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return apperrors.NewIOError("failed to sync workbook", err).WithStage(stage).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewIOError("failed to close workbook", err).WithStage(stage).WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewIOError("failed to move workbook into place", err).WithStage(stage).WithContext("path", path)
	}

	for _, s := range w.sheets {
		w.metrics.RecordRows(ctx, s.name, len(s.rows))
	}
	w.logger.InfoContext(ctx, "Workbook saved",
		slog.String("path", path),
		slog.Int("sheets", len(w.sheets)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// build renders the buffered sheets into an excelize file.
func (w *Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()
	fail := func(msg string, err error, sheetName string) (*excelize.File, error) {
		f.Close()
		return nil, apperrors.NewIOError(msg, err).WithStage(stage).WithContext("sheet", sheetName)
	}

	format := dateFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return fail("failed to create date style", err, "")
	}

	for i, s := range w.sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fail("failed to name sheet", err, s.name)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fail("failed to create sheet", err, s.name)
		}
		if err := writeSheet(f, s, dateStyle); err != nil {
			return fail("failed to write sheet", err, s.name)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s *sheet, dateStyle int) error {
	sw, err := f.NewStreamWriter(s.name)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(1, max(len(s.header), 1), 14); err != nil {
		return err
	}

	header := make([]interface{}, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			if t, ok := v.(time.Time); ok {
				values[i] = excelize.Cell{StyleID: dateStyle, Value: t}
			} else {
				values[i] = v
			}
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	return sw.Flush()
}
