package scraper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/utils"
)

// Removes any results table already on the page so the post-submit wait
// cannot match the one rendered for the default symbol.
const clearResultsScript = `document.querySelectorAll("#resultsTable").forEach(e => e.remove()); true`

// -----------------------------------------------------------------------------

// FetcherOptions tunes the Fetcher.
type FetcherOptions struct {
	PageURL        string
	NoDataSelector string
	ChunkDays      int
	Workers        int
	Wait           time.Duration
	// PlaceholderOnEmpty synthesizes a zero-volume row per day for chunks
	// that show "no data" or time out.
	PlaceholderOnEmpty bool
}

// -----------------------------------------------------------------------------

// Fetcher scrapes one symbol over a date range, chunk by chunk, through the pool.
type Fetcher struct {
	pool       interfaces.ISessionPool
	opts       FetcherOptions
	normalizer *Normalizer
	logger     *logger.Logger
}

func NewFetcher(pool interfaces.ISessionPool, opts FetcherOptions, log *logger.Logger) *Fetcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Fetcher{
		pool:       pool,
		opts:       opts,
		normalizer: NewNormalizer(log),
		logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Fetch scrapes [from, to] for symbol. Chunks run concurrently; a failed chunk
// is logged and counted, and the rest are still returned. Rows come back sorted
// by date. An error is returned only for an invalid range or when every chunk
// failed.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, from, to time.Time) (*models.MFetchReport, error) {
	chunks, err := Partition(symbol, from, to, f.opts.ChunkDays)
	if err != nil {
		return nil, err
	}

	results := make([]models.MChunkResult, len(chunks))
	errs := utils.RunTasks(ctx, f.opts.Workers, len(chunks), func(ctx context.Context, i int) error {
		results[i] = f.fetchChunk(ctx, chunks[i])
		return nil
	})

	report := &models.MFetchReport{Symbol: symbol, ChunksTotal: len(chunks), Rows: []models.MPriceRow{}}
	var lastErr error
	for i, res := range results {
		if res.Chunk.Symbol == "" {
			// never finished: cancelled before it started, or panicked
			err := errs[i]
			if err == nil {
				err = ctx.Err()
			}
			res = models.MChunkResult{Chunk: chunks[i], Status: models.ChunkFailed, Err: err}
		}

		switch res.Status {
		case models.ChunkOK:
			report.ChunksOK++
			report.Rows = append(report.Rows, res.Rows...)
		case models.ChunkEmpty:
			report.ChunksEmpty++
			if f.opts.PlaceholderOnEmpty {
				report.Rows = append(report.Rows, placeholderRows(res.Chunk)...)
			}
		default:
			report.ChunksFailed++
			lastErr = res.Err
			if report.FirstFailed == nil || res.Chunk.FromDate.Before(*report.FirstFailed) {
				from := res.Chunk.FromDate
				report.FirstFailed = &from
			}
			f.logger.Error("Chunk %s %s..%s failed: %v", symbol,
				res.Chunk.FromDate.Format("2006-01-02"), res.Chunk.ToDate.Format("2006-01-02"), res.Err)
		}
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].Date.Before(report.Rows[j].Date)
	})

	f.logger.Debug("Fetched %s: %d rows from %d chunks (%d ok, %d empty, %d failed)",
		symbol, len(report.Rows), report.ChunksTotal, report.ChunksOK, report.ChunksEmpty, report.ChunksFailed)

	if report.ChunksFailed == report.ChunksTotal {
		return report, fmt.Errorf("all %d chunks failed for %s: %w", report.ChunksTotal, symbol, lastErr)
	}
	return report, nil
}

// -----------------------------------------------------------------------------

// fetchChunk owns one session for the duration of one chunk. The session goes
// back to the pool unless the backend looks broken or the scrape panicked.
func (f *Fetcher) fetchChunk(ctx context.Context, chunk models.MDateChunk) models.MChunkResult {
	res := models.MChunkResult{Chunk: chunk}

	sess, err := f.pool.Acquire(ctx)
	if err != nil {
		res.Status, res.Err = models.ChunkFailed, err
		return res
	}

	discard := true
	defer func() {
		if discard {
			f.pool.Discard(sess)
		} else {
			f.pool.Release(sess)
		}
	}()

	status, rows, err := f.scrape(ctx, sess, chunk)
	discard = helpers.IsSessionFailure(err)

	switch {
	case err == nil:
		res.Status, res.Rows = status, rows
	case helpers.IsTimeout(err) && ctx.Err() == nil:
		f.logger.Warning("Chunk %s %s..%s timed out, treating as no data: %v", chunk.Symbol,
			chunk.FromDate.Format("2006-01-02"), chunk.ToDate.Format("2006-01-02"), err)
		res.Status = models.ChunkEmpty
	default:
		res.Status, res.Err = models.ChunkFailed, err
	}
	return res
}

// -----------------------------------------------------------------------------

func (f *Fetcher) scrape(ctx context.Context, sess interfaces.ISession, chunk models.MDateChunk) (models.ChunkStatus, []models.MPriceRow, error) {
	if err := sess.Navigate(ctx, f.opts.PageURL); err != nil {
		return "", nil, err
	}
	if err := sess.WaitVisible(ctx, SelFromDate, f.opts.Wait); err != nil {
		return "", nil, err
	}

	fields := [][2]string{
		{SelFromDate, FormatSiteDate(chunk.FromDate)},
		{SelToDate, FormatSiteDate(chunk.ToDate)},
		{SelCode, chunk.Symbol},
	}
	for _, fv := range fields {
		if err := sess.SetValue(ctx, fv[0], fv[1]); err != nil {
			return "", nil, err
		}
	}

	if err := sess.Evaluate(ctx, clearResultsScript, nil); err != nil {
		return "", nil, err
	}
	if err := sess.Click(ctx, SelSubmit); err != nil {
		return "", nil, err
	}

	found, err := sess.WaitAny(ctx, []string{SelResults, f.opts.NoDataSelector}, f.opts.Wait)
	if err != nil {
		return "", nil, err
	}
	if found != SelResults {
		return models.ChunkEmpty, nil, nil
	}

	html, err := sess.OuterHTML(ctx, SelResults)
	if err != nil {
		return "", nil, err
	}

	label := fmt.Sprintf("%s %s..%s", chunk.Symbol, chunk.FromDate.Format("2006-01-02"), chunk.ToDate.Format("2006-01-02"))
	rows, err := f.normalizer.ParseTable(html, label)
	if err != nil {
		return "", nil, err
	}
	return models.ChunkOK, rows, nil
}

// -----------------------------------------------------------------------------

func placeholderRows(chunk models.MDateChunk) []models.MPriceRow {
	rows := make([]models.MPriceRow, 0, chunk.Days())
	for d := chunk.FromDate; !d.After(chunk.ToDate); d = d.AddDate(0, 0, 1) {
		rows = append(rows, models.PlaceholderRow(d))
	}
	return rows
}
