package storage

import (
	"context"
	"fmt"
	"strings"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
)

// Columns written per stock_prices row.
const paramsPerRow = 10

var priceColumns = []string{
	"issuer_id", "date", "last_trade_price", "max_price", "min_price", "avg_price",
	"price_change", "volume", "turnover_best", "total_turnover",
}

// -----------------------------------------------------------------------------

// Open builds and initializes the backend named by storage.db_type.
func Open(ctx context.Context, cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	switch cfg.Storage.DBType {
	case "postgres":
		db = NewPostgresDB(cfg, log)
	case "sqlite":
		db = NewSQLiteDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize %s: %w", cfg.Storage.DBType, err)
	}
	return db, nil
}

// -----------------------------------------------------------------------------

func joinColumns() string {
	return strings.Join(priceColumns, ", ")
}

// -----------------------------------------------------------------------------

// priceArgs flattens rows in priceColumns order. date is rendered by dateArg
// so each backend stores it in its native form.
func priceArgs(prices []models.MStockPrice, dateArg func(models.MPriceRow) interface{}) []interface{} {
	args := make([]interface{}, 0, len(prices)*paramsPerRow)
	for _, p := range prices {
		args = append(args,
			p.IssuerID, dateArg(p.MPriceRow),
			p.LastTradePrice, p.MaxPrice, p.MinPrice, p.AvgPrice,
			p.PriceChange, p.Volume, p.TurnoverBest, p.TotalTurnover,
		)
	}
	return args
}

// -----------------------------------------------------------------------------

// valuesClause renders rows*cols placeholders. placeholder receives the
// 1-based parameter index.
func valuesClause(rows, cols int, placeholder func(int) string) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// -----------------------------------------------------------------------------

// upsertAssignments is the shared ON CONFLICT update list.
func upsertAssignments() string {
	sets := make([]string, 0, len(priceColumns)-2)
	for _, c := range priceColumns[2:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return strings.Join(sets, ", ")
}

// -----------------------------------------------------------------------------

// splitBatches cuts prices into slices of at most size rows.
func splitBatches(prices []models.MStockPrice, size int) [][]models.MStockPrice {
	if size < 1 {
		size = 1
	}
	var out [][]models.MStockPrice
	for start := 0; start < len(prices); start += size {
		end := start + size
		if end > len(prices) {
			end = len(prices)
		}
		out = append(out, prices[start:end])
	}
	return out
}
