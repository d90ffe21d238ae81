package yahoo

import "fmt"

// ChartResponse is the body of /v8/finance/chart/{symbol}.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartResult holds one symbol's series. Price arrays are parallel to
// Timestamp and may contain nulls.
type ChartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

// Indicators carries the price arrays of a chart result.
type Indicators struct {
	Quote    []Quote          `json:"quote"`
	AdjClose []AdjCloseSeries `json:"adjclose"`
}

// Quote is the raw OHLCV block.
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// AdjCloseSeries is present when includeAdjustedClose is requested.
type AdjCloseSeries struct {
	AdjClose []*float64 `json:"adjclose"`
}

// ChartMeta is the subset of result metadata used for date conversion.
type ChartMeta struct {
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	ExchangeName string `json:"exchangeName"`
	Timezone     string `json:"exchangeTimezoneName"`
	GMTOffset    int64  `json:"gmtoffset"`
}

// ChartError is the provider's error envelope.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Rejected marks the envelope as a per-symbol refusal for the circuit
// breaker.
func (e *ChartError) Rejected() bool { return true }

func (e *ChartError) Error() string {
	return fmt.Sprintf("yahoo chart error %s: %s", e.Code, e.Description)
}
