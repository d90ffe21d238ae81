package catalog

import "github.com/zipGajun/FAGA-DATA/pkg/contracts/domain"

// CPI is seasonally adjusted headline and core CPI-U.
var CPI = Variant{
	Name:        "cpi",
	DefaultFile: "cpi_series_map.csv",
	Defaults: []domain.SeriesSpec{
		{ID: "CUSR0000SA0", Label: "All items (SA)"},
		{ID: "CUSR0000SA0L1E", Label: "Core CPI ex. Food & Energy (SA)"},
	},
}

// PPI is final demand and manufacturing producer prices.
var PPI = Variant{
	Name:        "ppi",
	DefaultFile: "ppi_series_map.csv",
	Defaults: []domain.SeriesSpec{
		{ID: "WPSFD4", Label: "PPI Final Demand"},
		{ID: "WPSFD41", Label: "PPI Final Demand Goods"},
		{ID: "WPSFD49", Label: "PPI Final Demand Services"},
		{ID: "PCUOMFG--OMFG--", Label: "PPI All Manufacturing"},
	},
}

// Employment mixes CES payroll levels and CPS rates.
var Employment = Variant{
	Name:        "employment",
	DefaultFile: "employment_series_map.csv",
	RequireKind: true,
	Defaults: []domain.SeriesSpec{
		{ID: "CES0000000001", Label: "Total Nonfarm Payrolls (000s, SA)", Kind: domain.ValueKindLevel},
		{ID: "CES0500000001", Label: "Total Private Payrolls (000s, SA)", Kind: domain.ValueKindLevel},
		{ID: "CES3000000001", Label: "Manufacturing Payrolls (000s, SA)", Kind: domain.ValueKindLevel},
		{ID: "CES0500000002", Label: "Avg Weekly Hours - Total Private (hrs, SA)", Kind: domain.ValueKindLevel},
		{ID: "CES0500000003", Label: "Avg Hourly Earnings - Total Private (USD, SA)", Kind: domain.ValueKindLevel},
		{ID: "LNS14000000", Label: "Unemployment Rate (%, SA)", Kind: domain.ValueKindRate},
		{ID: "LNS11300000", Label: "Labor Force Participation Rate (%, SA)", Kind: domain.ValueKindRate},
		{ID: "LNS12300000", Label: "Employment-Population Ratio (%, SA)", Kind: domain.ValueKindRate},
		{ID: "LNS12000000", Label: "Employment Level (000s, SA)", Kind: domain.ValueKindLevel},
		{ID: "LNS13000000", Label: "Unemployment Level (000s, SA)", Kind: domain.ValueKindLevel},
	},
}

// Variants lists the built-in variants by name.
var Variants = map[string]Variant{
	CPI.Name:        CPI,
	PPI.Name:        PPI,
	Employment.Name: Employment,
}
