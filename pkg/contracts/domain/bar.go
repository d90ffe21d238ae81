package domain

import "time"

// Bar is one daily OHLCV observation. Prices are already adjusted for
// splits and dividends when the source provides an adjusted close.
type Bar struct {
	Date     time.Time `json:"date" validate:"required"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume" validate:"min=0"`
}

// Point is a dated value that may be missing, as FRED reports gaps with ".".
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Valid bool      `json:"valid"`
}
