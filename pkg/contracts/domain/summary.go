package domain

import "time"

// CoverageRow summarizes the observed span of one label.
type CoverageRow struct {
	Label string    `json:"label"`
	Kind  ValueKind `json:"value_type,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Rows  int       `json:"rows"`
}

// Provenance describes how an output workbook was produced. It is
// informational only.
type Provenance struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`
	StartParam  string    `json:"start_param"`
	EndParam    string    `json:"end_param"`
	SeriesCount int       `json:"series_count"`
	HasAPIKey   bool      `json:"has_api_key"`
	Notes       string    `json:"notes,omitempty"`
	Extra       []KV      `json:"extra,omitempty"`
}

// KV is an ordered key/value pair for meta sheets.
type KV struct {
	Key   string
	Value interface{}
}

// Pairs flattens the provenance into ordered key/value rows.
func (p Provenance) Pairs() []KV {
	kv := []KV{
		{"run_id", p.RunID},
		{"generated_at", p.GeneratedAt.Format("2006-01-02T15:04:05")},
		{"source", p.Source},
		{"start_param", p.StartParam},
		{"end_param", p.EndParam},
		{"series_count", p.SeriesCount},
		{"has_api_key", p.HasAPIKey},
	}
	kv = append(kv, p.Extra...)
	if p.Notes != "" {
		kv = append(kv, KV{"notes", p.Notes})
	}
	return kv
}

// AssetSummary is one row of a Meta_Summary sheet.
type AssetSummary struct {
	Asset   string    `json:"asset"`
	Rows    int       `json:"rows_daily"`
	Start   time.Time `json:"start_daily"`
	End     time.Time `json:"end_daily"`
	Columns string    `json:"columns"`
}
