package bls

import "strings"

// StatusSucceeded is the only status value that marks a usable response.
const StatusSucceeded = "REQUEST_SUCCEEDED"

// MaxBatchSize is the provider's per-request series limit.
const MaxBatchSize = 50

// Request is the JSON body posted to the timeseries endpoint.
type Request struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

// Response is the provider envelope.
type Response struct {
	Status       string   `json:"status"`
	ResponseTime int      `json:"responseTime"`
	Message      []string `json:"message"`
	Results      Results  `json:"Results"`
}

// Results holds the per-series payloads.
type Results struct {
	Series []Series `json:"series"`
}

// Series is one requested series.
type Series struct {
	SeriesID string      `json:"seriesID"`
	Data     []DataPoint `json:"data"`
}

// DataPoint is one observation as the provider reports it.
type DataPoint struct {
	Year       string `json:"year"`
	Period     string `json:"period"`
	PeriodName string `json:"periodName"`
	Latest     string `json:"latest,omitempty"`
	Value      string `json:"value"`
}

// ProviderError is returned when the envelope status is not a success.
type ProviderError struct {
	Status  string
	Message []string
}

func (e *ProviderError) Error() string {
	if len(e.Message) == 0 {
		return "provider status " + e.Status
	}
	return "provider status " + e.Status + ": " + strings.Join(e.Message, "; ")
}
