package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zipGajun/FAGA-DATA/internal/dataprocessing"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWorkbook_SheetName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		input  string
		want   string
	}{
		{name: "plain", input: "Raw_Long", want: "Raw_Long"},
		{name: "prefix", prefix: "CPI_", input: "Pivot_Level", want: "CPI_Pivot_Level"},
		{name: "forbidden characters", input: "Index(SA)/YoY:[%]?*", want: "Index(SA)_YoY_(%)__"},
		{name: "truncated", prefix: "Employment_", input: "Combined_Monthly_MAVG_extra", want: "Employment_Combined_Monthly_MAV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWorkbook(WithSheetPrefix(tt.prefix))
			got := wb.SheetName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), MaxSheetNameLength)
		})
	}
}

func TestWorkbook_RejectsDuplicateSheets(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddTable("Data", []string{"a"}, nil))

	err := wb.AddTable("data", []string{"a"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIO))

	err = wb.AddTable("Wide", []string{"a"}, [][]interface{}{{1, 2}})
	assert.Error(t, err)
}

func TestWorkbook_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "cpi_details_20240801.xlsx")

	jan := domain.MonthEnd(2024, time.January)
	feb := domain.MonthEnd(2024, time.February)
	records := []domain.ObservationRecord{
		{SeriesID: "CUSR0000SA0", Label: "CPI_All", Kind: domain.ValueKindLevel, PeriodEnd: jan, Value: 308.417},
		{SeriesID: "CUSR0000SA0", Label: "CPI_All", Kind: domain.ValueKindLevel, PeriodEnd: feb, Value: 310.326},
	}
	pivot := dataprocessing.NewFrame(dataprocessing.PeriodEndColumn, []time.Time{jan, feb}, []string{"CPI_All", "Core"})
	pivot.Data[0] = []dataprocessing.Cell{dataprocessing.Num(308.417), dataprocessing.Num(310.326)}
	pivot.Data[1] = []dataprocessing.Cell{dataprocessing.Null, dataprocessing.Num(1.5)}

	wb := NewWorkbook(WithSheetPrefix("X_"))
	require.NoError(t, wb.AddRecords("Raw_Long", records, true))
	require.NoError(t, wb.AddFrame("Pivot_Level", pivot))
	require.NoError(t, wb.AddCoverage("Coverage", []domain.CoverageRow{
		{Label: "CPI_All", Kind: domain.ValueKindLevel, Start: jan, End: feb, Rows: 2},
	}, true))
	require.NoError(t, wb.AddMeta("Meta_Info", []domain.KV{
		{Key: "source", Value: "BLS Public API v2 (https://api.bls.gov)"},
		{Key: "series_count", Value: 1},
		{Key: "has_api_key", Value: false},
	}))

	require.NoError(t, wb.Save(context.Background(), path))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{"X_Raw_Long", "X_Pivot_Level", "X_Coverage", "X_Meta_Info"}, f.GetSheetList())

	raw, err := f.GetRows("X_Raw_Long")
	require.NoError(t, err)
	require.Len(t, raw, 3)
	assert.Equal(t, []string{"series_id", "label", "value_type", "PeriodEnd", "value"}, raw[0])
	assert.Equal(t, "CUSR0000SA0", raw[1][0])
	assert.Equal(t, "level", raw[1][2])
	assert.Equal(t, "308.417", raw[1][4])

	pv, err := f.GetRows("X_Pivot_Level")
	require.NoError(t, err)
	require.Len(t, pv, 3)
	assert.Equal(t, []string{"PeriodEnd", "CPI_All", "Core"}, pv[0])
	require.Len(t, pv[1], 2, "missing trailing cell is empty")
	assert.Equal(t, "308.417", pv[1][1])
	assert.Equal(t, "1.5", pv[2][2])

	meta, err := f.GetRows("X_Meta_Info")
	require.NoError(t, err)
	require.Len(t, meta, 2)
	assert.Equal(t, []string{"source", "series_count", "has_api_key"}, meta[0])
	assert.Equal(t, "BLS Public API v2 (https://api.bls.gov)", meta[1][0])
	assert.Equal(t, "1", meta[1][1])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed away")
}

func TestWorkbook_SaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	wb := NewWorkbook()
	require.NoError(t, wb.AddTable("Data", []string{"a"}, [][]interface{}{{1.0}}))

	err := wb.Save(context.Background(), filepath.Join(blocker, "out.xlsx"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIO))

	err = NewWorkbook().Save(context.Background(), filepath.Join(dir, "empty.xlsx"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindIO))
	_, statErr := os.Stat(filepath.Join(dir, "empty.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWorkbook_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	wb := NewWorkbook()
	require.NoError(t, wb.AddSummaries("Meta_Summary", []domain.AssetSummary{
		{Asset: "BTC", Rows: 2, Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Columns: "Open, Close"},
	}))
	require.NoError(t, wb.Save(context.Background(), path))

	f := openWorkbook(t, path)
	rows, err := f.GetRows("Meta_Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"asset", "rows_daily", "start_daily", "end_daily", "columns"}, rows[0])
	assert.Equal(t, "BTC", rows[1][0])
	assert.Equal(t, "2", rows[1][1])
}
