package fred

// Observation is one row of the series/observations JSON response. FRED
// reports missing values as ".".
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// ObservationsResponse is the body of /fred/series/observations.
type ObservationsResponse struct {
	ObservationStart string        `json:"observation_start"`
	ObservationEnd   string        `json:"observation_end"`
	Count            int           `json:"count"`
	Observations     []Observation `json:"observations"`
}

// Missing is the FRED marker for an absent value.
const Missing = "."
