// Package catalog loads the mapping of provider series ids to display
// labels (and optionally value kinds) that drives an export.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const (
	colSeriesID  = "series_id"
	colLabel     = "label"
	colValueType = "value_type"
)

// Variant describes one catalog flavour: its default file, whether rows
// must carry a value kind, and the built-in series used when no file exists.
type Variant struct {
	Name        string
	DefaultFile string
	RequireKind bool
	Defaults    []domain.SeriesSpec
}

// Catalog is an ordered, validated list of series.
type Catalog struct {
	Series   []domain.SeriesSpec
	HasKinds bool
	// Source is the file the catalog was read from, or "builtin".
	Source string
}

// IDs returns the series ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Series))
	for i, s := range c.Series {
		ids[i] = s.ID
	}
	return ids
}

// Labels returns the labels in catalog order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.Series))
	for i, s := range c.Series {
		labels[i] = s.Label
	}
	return labels
}

// Lookup indexes the catalog by series id.
func (c *Catalog) Lookup() map[string]domain.SeriesSpec {
	m := make(map[string]domain.SeriesSpec, len(c.Series))
	for _, s := range c.Series {
		m[s.ID] = s
	}
	return m
}

// Kinds maps label to value kind.
func (c *Catalog) Kinds() map[string]domain.ValueKind {
	m := make(map[string]domain.ValueKind, len(c.Series))
	for _, s := range c.Series {
		m[s.Label] = s.Kind
	}
	return m
}

var validate = validator.New()

// Load reads path when it exists and falls back to the variant defaults when
// it does not. An empty path means the variant's DefaultFile.
func Load(path string, v Variant) (*Catalog, error) {
	if path == "" {
		path = v.DefaultFile
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path, v)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("catalog %s", path), err)
		}
	}
	return Builtin(v)
}

// Builtin returns the variant's default series.
func Builtin(v Variant) (*Catalog, error) {
	if len(v.Defaults) == 0 {
		return nil, apperrors.Configf("catalog variant %q has no built-in series", v.Name)
	}
	series := make([]domain.SeriesSpec, len(v.Defaults))
	copy(series, v.Defaults)
	if !v.RequireKind {
		for i := range series {
			series[i].Kind = domain.ValueKindLevel
		}
	}
	c := &Catalog{Series: series, HasKinds: v.RequireKind, Source: "builtin"}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile parses a .csv, .tsv/.txt or .xlsx mapping file.
func LoadFile(path string, v Variant) (*Catalog, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read catalog %s", path), err)
	}
	c, err := fromRows(rows, v)
	if err != nil {
		if pe, ok := err.(*apperrors.PipelineError); ok {
			pe.WithContext("path", path)
		}
		return nil, err
	}
	c.Source = path
	return c, nil
}

func readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		return f.GetRows(sheets[0])
	case ".tsv", ".txt":
		return readDelimited(path, '\t')
	default:
		return readDelimited(path, ',')
	}
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func fromRows(rows [][]string, v Variant) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, apperrors.Configf("catalog is empty")
	}

	// Column names are normalized once: trimmed, lower-cased, BOM removed.
	columnMap := make(map[string]int)
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columnMap[name]; !dup {
			columnMap[name] = i
		}
	}
	required := []string{colSeriesID, colLabel}
	if v.RequireKind {
		required = append(required, colValueType)
	}
	for _, col := range required {
		if _, ok := columnMap[col]; !ok {
			return nil, apperrors.Configf("catalog is missing required column %q", col)
		}
	}
	kindCol, hasKindCol := columnMap[colValueType]

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	c := &Catalog{HasKinds: v.RequireKind}
	for n, row := range rows[1:] {
		id := cell(row, columnMap[colSeriesID])
		label := cell(row, columnMap[colLabel])
		if id == "" && label == "" && (!hasKindCol || cell(row, kindCol) == "") {
			continue
		}
		line := n + 2
		if id == "" {
			return nil, apperrors.Configf("catalog row %d: empty series_id", line)
		}
		if label == "" {
			return nil, apperrors.Configf("catalog row %d: empty label for series %s", line, id)
		}

		spec := domain.SeriesSpec{ID: id, Label: label, Kind: domain.ValueKindLevel}
		if v.RequireKind {
			kind, err := domain.ParseValueKind(cell(row, kindCol))
			if err != nil {
				return nil, apperrors.NewConfigError(fmt.Sprintf("catalog row %d: series %s", line, id), err)
			}
			spec.Kind = kind
		}
		c.Series = append(c.Series, spec)
	}

	if len(c.Series) == 0 {
		return nil, apperrors.Configf("catalog has no data rows")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate checks each spec and rejects duplicate ids and labels, since
// labels become pivot columns.
func (c *Catalog) validate() error {
	ids := make(map[string]bool, len(c.Series))
	labels := make(map[string]string, len(c.Series))
	for _, s := range c.Series {
		if err := validate.Struct(s); err != nil {
			return apperrors.NewConfigError(fmt.Sprintf("invalid series %s", s.ID), err)
		}
		if ids[s.ID] {
			return apperrors.Configf("duplicate series_id %s", s.ID)
		}
		ids[s.ID] = true
		if other, ok := labels[s.Label]; ok {
			return apperrors.Configf("label %q used by both %s and %s", s.Label, other, s.ID)
		}
		labels[s.Label] = s.ID
	}
	return nil
}
