package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MPriceSummary describes an issuer's stored price history.
type MPriceSummary struct {
	Code          string          `json:"code"`
	Count         int             `json:"count"`
	FirstDate     *time.Time      `json:"first_date"`
	LastDate      *time.Time      `json:"last_date"`
	FirstPrice    decimal.Decimal `json:"first_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	MeanPrice     decimal.Decimal `json:"mean_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	TotalVolume   int64           `json:"total_volume"`
	MeanVolume    float64         `json:"mean_volume"`
	StdVolume     float64         `json:"std_volume"`

	// LastVolumeZScore compares the latest session's volume to the whole history.
	LastVolumeZScore       float64 `json:"last_volume_zscore"`
	PriceVolumeCorrelation float64 `json:"price_volume_correlation"`
}
