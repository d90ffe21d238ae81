package fred

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// ParseValue converts a FRED value. "." and empty strings are missing.
func ParseValue(raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == Missing {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

// ParseObservations converts JSON observations into points.
func ParseObservations(id string, obs []Observation) ([]domain.Point, error) {
	points := make([]domain.Point, 0, len(obs))
	for _, o := range obs {
		p, err := parsePoint(o.Date, o.Value)
		if err != nil {
			return nil, err.WithContext("series_id", id)
		}
		points = append(points, p)
	}
	return points, nil
}

// ParseCSV reads a fredgraph.csv download. The first column is the date
// (headed "observation_date" or "DATE"); the value column is the one headed
// id, or the second column when no header matches.
func ParseCSV(id string, body []byte) ([]domain.Point, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\ufeff"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, apperrors.NewDataFormatError("empty CSV response", err).WithContext("series_id", id)
	}
	if len(header) < 2 {
		return nil, apperrors.DataFormatf("CSV response has %d columns, want 2", len(header)).WithContext("series_id", id)
	}
	col := 1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), id) {
			col = i
		}
	}

	var points []domain.Point
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewDataFormatError("malformed CSV response", err).
				WithContext("series_id", id).WithContext("line", line)
		}
		if len(rec) <= col {
			return nil, apperrors.DataFormatf("line %d has %d columns", line, len(rec)).WithContext("series_id", id)
		}
		p, perr := parsePoint(rec[0], rec[col])
		if perr != nil {
			return nil, perr.WithContext("series_id", id).WithContext("line", line)
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePoint(date, value string) (domain.Point, *apperrors.PipelineError) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return domain.Point{}, apperrors.NewDataFormatError("invalid observation date "+strconv.Quote(date), err)
	}
	v, ok, err := ParseValue(value)
	if err != nil {
		return domain.Point{}, apperrors.NewDataFormatError("invalid observation value "+strconv.Quote(value), err)
	}
	return domain.Point{Date: t, Value: v, Valid: ok}, nil
}
