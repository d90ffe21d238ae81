// Package dataprocessing turns fetched observations into the tables that
// end up on workbook sheets.
//
// # Architecture
//
// The package is organized around one in-memory type, Frame: a
// date-indexed table of nullable numeric cells with ordered columns.
//
// 1. Transform: window filtering, long-to-wide pivot and back, outer joins
// 2. Changes: month-over-month and year-over-year tables by value kind
// 3. Resample: monthly last/mean, business-month-end, business-day fill
// 4. Coverage: per-series span and row counts
//
// # Usage
//
//	records = dataprocessing.FilterWindow(records, start, end)
//	pivot, err := dataprocessing.Pivot(records, catalog.Labels())
//	if err != nil {
//	    return err
//	}
//	tables := dataprocessing.BuildChanges(pivot, catalog.Kinds(), catalog.HasKinds)
//
// # Missing values
//
// A cell is either a number or null. Change tables are null wherever the
// current or lagged value is null or the base is zero; nulls are never
// treated as zero.
package dataprocessing
