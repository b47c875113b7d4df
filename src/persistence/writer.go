package persistence

import (
	"context"
	"sort"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
)

// -----------------------------------------------------------------------------

// PriceWriter maps normalized rows onto stock_prices for one issuer.
type PriceWriter struct {
	db             interfaces.IDatabase
	batchSize      int
	skipZeroVolume bool
	logger         *logger.Logger
}

func NewPriceWriter(db interfaces.IDatabase, batchSize int, skipZeroVolume bool, log *logger.Logger) *PriceWriter {
	return &PriceWriter{db: db, batchSize: batchSize, skipZeroVolume: skipZeroVolume, logger: log}
}

// -----------------------------------------------------------------------------

// Persist upserts rows keyed by (issuer, date) and returns how many were
// written. Zero-volume rows are dropped when configured. Each batch commits on
// its own; a failed batch is logged and skipped, and the error returned names
// how many batches failed while the written count still covers the rest.
func (w *PriceWriter) Persist(ctx context.Context, issuerID int64, rows []models.MPriceRow) (int, error) {
	prices := w.prepare(issuerID, rows)
	if len(prices) == 0 {
		return 0, nil
	}

	size := w.batchSize
	if limit := w.db.BatchLimit(); size < 1 || size > limit {
		size = limit
	}

	written, failed, batches := 0, 0, 0
	var lastErr error
	for start := 0; start < len(prices); start += size {
		end := start + size
		if end > len(prices) {
			end = len(prices)
		}
		batches++

		if err := w.db.UpsertStockPrices(ctx, prices[start:end]); err != nil {
			failed++
			lastErr = err
			w.logger.Error("Issuer %d: batch %d (%s..%s) failed, skipping: %v", issuerID, batches,
				prices[start].Date.Format("2006-01-02"), prices[end-1].Date.Format("2006-01-02"), err)
			continue
		}
		written += end - start
	}

	if failed > 0 {
		return written, helpers.NewPersistenceFailureError(lastErr, "%d of %d batches failed for issuer %d", failed, batches, issuerID)
	}
	return written, nil
}

// -----------------------------------------------------------------------------

// prepare filters, de-duplicates by date (last occurrence wins) and orders rows.
func (w *PriceWriter) prepare(issuerID int64, rows []models.MPriceRow) []models.MStockPrice {
	byDate := make(map[string]int, len(rows))
	prices := make([]models.MStockPrice, 0, len(rows))

	skipped := 0
	for _, r := range rows {
		if w.skipZeroVolume && r.Volume == 0 {
			skipped++
			continue
		}
		key := r.Date.Format("2006-01-02")
		if i, ok := byDate[key]; ok {
			prices[i].MPriceRow = r
			continue
		}
		byDate[key] = len(prices)
		prices = append(prices, models.MStockPrice{IssuerID: issuerID, MPriceRow: r})
	}

	if skipped > 0 {
		w.logger.Debug("Issuer %d: skipped %d zero-volume rows", issuerID, skipped)
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	return prices
}
