package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MPriceRow is one normalized row of the symbol-history table.
type MPriceRow struct {
	Date           time.Time       `json:"date"`
	LastTradePrice decimal.Decimal `json:"last_trade_price"`
	MaxPrice       decimal.Decimal `json:"max_price"`
	MinPrice       decimal.Decimal `json:"min_price"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	PriceChange    decimal.Decimal `json:"price_change"`
	Volume         int64           `json:"volume"`
	TurnoverBest   decimal.Decimal `json:"turnover_best"`
	TotalTurnover  decimal.Decimal `json:"total_turnover"`
}

// MStockPrice represents the stored stock data, keyed by (issuer, date).
type MStockPrice struct {
	IssuerID int64 `json:"issuer_id"`
	MPriceRow
}

// PlaceholderRow is the all-zero row synthesized for a day without trading data.
func PlaceholderRow(date time.Time) MPriceRow {
	return MPriceRow{Date: date}
}

// IsPlaceholder reports whether every value besides the date is zero.
func (r MPriceRow) IsPlaceholder() bool {
	return r.Volume == 0 && r.LastTradePrice.IsZero() && r.MaxPrice.IsZero() && r.MinPrice.IsZero() &&
		r.AvgPrice.IsZero() && r.PriceChange.IsZero() && r.TurnoverBest.IsZero() && r.TotalTurnover.IsZero()
}
