// Package exporter writes export results to a single .xlsx workbook.
//
// A Workbook collects named sheets in memory and only touches the
// filesystem in Save, which writes to a temporary file next to the target
// and renames it into place. A failed save leaves no partial workbook.
//
// Example usage:
//
//	wb := exporter.NewWorkbook(exporter.WithSheetPrefix("CPI_"))
//	_ = wb.AddRecords("Raw_Long", records, false)
//	_ = wb.AddFrame("Pivot_Level", pivot)
//	err := wb.Save(ctx, "out/cpi_details_20240801.xlsx")
package exporter
