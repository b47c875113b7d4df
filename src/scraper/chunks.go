package scraper

import (
	"fmt"
	"time"

	"mse-pipeline/src/models"
	"mse-pipeline/src/utils"
)

// MaxChunkDays is the widest span the symbol-history page renders in one query.
const MaxChunkDays = 30

// -----------------------------------------------------------------------------

// Partition splits [from, to] into contiguous, non-overlapping chunks. Each
// chunk ends at most maxDays after it starts, so every calendar day of the
// range falls in exactly one chunk; the last chunk may be shorter.
func Partition(symbol string, from, to time.Time, maxDays int) ([]models.MDateChunk, error) {
	if maxDays < 1 || maxDays > MaxChunkDays {
		maxDays = MaxChunkDays
	}

	from, to = utils.DateOnly(from), utils.DateOnly(to)
	if from.After(to) {
		return nil, fmt.Errorf("invalid range for %s: %s is after %s",
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	var chunks []models.MDateChunk
	for current := from; !current.After(to); {
		end := current.AddDate(0, 0, maxDays)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, models.MDateChunk{Symbol: symbol, FromDate: current, ToDate: end})
		current = end.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// -----------------------------------------------------------------------------

// FormatSiteDate renders a date the way the query form expects it (M/D/YYYY).
func FormatSiteDate(t time.Time) string {
	return t.Format("1/2/2006")
}
