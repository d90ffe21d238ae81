package bls

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"
)

// ParseResponse flattens one response into records. Only calendar-month
// periods M01..M12 are kept; annual averages (M13) and non-monthly codes are
// skipped. Series missing from lookup keep their raw id as label and are
// treated as levels. Any unparseable year, month or value fails the whole
// response.
func ParseResponse(resp *Response, lookup map[string]domain.SeriesSpec) ([]domain.ObservationRecord, error) {
	if resp == nil {
		return nil, nil
	}
	var out []domain.ObservationRecord
	for _, s := range resp.Results.Series {
		spec, ok := lookup[s.SeriesID]
		if !ok {
			spec = domain.SeriesSpec{ID: s.SeriesID, Label: s.SeriesID, Kind: domain.ValueKindLevel}
		}
		if spec.Kind == "" {
			spec.Kind = domain.ValueKindLevel
		}

		for _, dp := range s.Data {
			periodEnd, monthly, err := PeriodEnd(dp.Year, dp.Period)
			if err != nil {
				return nil, apperrors.NewDataFormatError(
					fmt.Sprintf("series %s: bad period %s/%s", s.SeriesID, dp.Year, dp.Period), err)
			}
			if !monthly {
				continue
			}
			value, err := ParseValue(dp.Value)
			if err != nil {
				return nil, apperrors.NewDataFormatError(
					fmt.Sprintf("series %s %s-%s: bad value %q", s.SeriesID, dp.Year, dp.Period, dp.Value), err)
			}
			out = append(out, domain.ObservationRecord{
				SeriesID:  s.SeriesID,
				Label:     spec.Label,
				Kind:      spec.Kind,
				PeriodEnd: periodEnd,
				Value:     value,
			})
		}
	}
	return out, nil
}

// ParseResponses parses every response in order and concatenates the records.
func ParseResponses(resps []*Response, lookup map[string]domain.SeriesSpec) ([]domain.ObservationRecord, error) {
	var out []domain.ObservationRecord
	for _, r := range resps {
		recs, err := ParseResponse(r, lookup)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// PeriodEnd maps a provider year and period code to the last day of that
// month. monthly is false for codes that are not M01..M12.
func PeriodEnd(year, period string) (t time.Time, monthly bool, err error) {
	period = strings.TrimSpace(period)
	if len(period) != 3 || period[0] != 'M' {
		return time.Time{}, false, nil
	}
	month, err := strconv.Atoi(period[1:])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid month code %q", period)
	}
	if month == 13 {
		return time.Time{}, false, nil
	}
	if month < 1 || month > 12 {
		return time.Time{}, false, fmt.Errorf("month code %q out of range", period)
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid year %q", year)
	}
	return domain.MonthEnd(y, time.Month(month)), true, nil
}

// ParseValue parses a provider value after removing grouping separators.
func ParseValue(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
