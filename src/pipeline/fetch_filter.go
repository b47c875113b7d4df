package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/utils"
)

// -----------------------------------------------------------------------------

// DataFetchOptions configures DataFetchFilter.
type DataFetchOptions struct {
	Workers     int
	DefaultFrom time.Time
	// Save persists fetched rows; when false the stage only reports them.
	Save     bool
	Calendar *utils.TradingCalendar
	Reporter interfaces.IProgressReporter
	Now      func() time.Time
}

// -----------------------------------------------------------------------------

// DataFetchFilter fetches and persists prices. It accepts:
//   - models.MFetchRequest: one symbol over an explicit range, returns *models.MFetchResult
//   - []models.MIssuer: every issuer from its last_updated cursor to today, returns []string
//   - []string: issuer codes, looked up and handled like []models.MIssuer
type DataFetchFilter struct {
	db      interfaces.IDatabase
	fetcher interfaces.IPriceFetcher
	writer  interfaces.IPriceWriter
	opts    DataFetchOptions
	logger  *logger.Logger
}

func NewDataFetchFilter(db interfaces.IDatabase, fetcher interfaces.IPriceFetcher, writer interfaces.IPriceWriter, opts DataFetchOptions, log *logger.Logger) *DataFetchFilter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DataFetchFilter{db: db, fetcher: fetcher, writer: writer, opts: opts, logger: log}
}

func (f *DataFetchFilter) Name() string { return "DataFetchFilter" }

// -----------------------------------------------------------------------------

func (f *DataFetchFilter) Process(ctx context.Context, input interface{}) (interface{}, error) {
	switch in := input.(type) {
	case models.MFetchRequest:
		return f.FetchOne(ctx, in)
	case *models.MFetchRequest:
		return f.FetchOne(ctx, *in)
	case []models.MIssuer:
		return f.FetchMany(ctx, in)
	case []string:
		issuers := make([]models.MIssuer, 0, len(in))
		for _, code := range in {
			issuer, err := f.db.GetIssuer(ctx, code)
			if err != nil {
				f.logger.Error("Skipping %s: %v", code, err)
				continue
			}
			issuers = append(issuers, *issuer)
		}
		return f.FetchMany(ctx, issuers)
	default:
		return nil, fmt.Errorf("unsupported input type %T", input)
	}
}

// -----------------------------------------------------------------------------

// FetchOne fetches one symbol over [FromDate, ToDate]. An unknown symbol is a
// NotFoundError. The result carries the fetched rows even when saving fails.
// When some chunks failed the rows are saved but last_updated only moves up
// to the day before the earliest failed chunk.
func (f *DataFetchFilter) FetchOne(ctx context.Context, req models.MFetchRequest) (*models.MFetchResult, error) {
	issuer := req.Issuer
	if issuer == nil {
		var err error
		if issuer, err = f.db.GetIssuer(ctx, req.Symbol); err != nil {
			return nil, err
		}
	}
	symbol := issuer.Code

	result := &models.MFetchResult{Symbol: symbol}
	report, err := f.fetcher.Fetch(ctx, symbol, req.FromDate, req.ToDate)
	if report != nil {
		result.Report = *report
	}
	if err != nil {
		result.Err = err
		return result, err
	}

	if !f.opts.Save {
		return result, nil
	}

	written, err := f.writer.Persist(ctx, issuer.ID, report.Rows)
	result.Written = written
	if err != nil {
		result.Err = err
		return result, err
	}

	switch {
	case report.ChunksFailed == 0:
		f.advanceCursor(ctx, issuer, req.ToDate)
	case report.FirstFailed != nil:
		// rows past a failed chunk are incomplete, the next run resumes there
		f.advanceCursor(ctx, issuer, report.FirstFailed.AddDate(0, 0, -1))
		f.logger.Warning("%s: %d of %d chunks failed, cursor held before %s", symbol,
			report.ChunksFailed, report.ChunksTotal, report.FirstFailed.Format("2006-01-02"))
	default:
		f.logger.Warning("%s: %d of %d chunks failed, cursor not moved", symbol, report.ChunksFailed, report.ChunksTotal)
	}
	f.logger.Info("Fetched %s %s..%s: %d rows, %d written", symbol,
		req.FromDate.Format("2006-01-02"), req.ToDate.Format("2006-01-02"), len(report.Rows), written)
	return result, nil
}

// -----------------------------------------------------------------------------

// advanceCursor moves last_updated forward to the end of the fetched range,
// never backwards, so back-filling an old year leaves the cursor alone.
func (f *DataFetchFilter) advanceCursor(ctx context.Context, issuer *models.MIssuer, to time.Time) {
	at := to
	if now := f.opts.Now(); at.After(now) {
		at = now
	}
	if issuer.LastUpdated != nil && !at.After(*issuer.LastUpdated) {
		return
	}
	if err := f.db.TouchIssuer(ctx, issuer.ID, at); err != nil {
		f.logger.Warning("Failed to update last_updated for %s: %v", issuer.Code, err)
	}
}

// -----------------------------------------------------------------------------

// FetchMany brings every issuer up to date concurrently. Issuers with no
// trading day since last_updated are skipped. It returns the codes that
// finished without error, up-to-date ones included; failures are logged.
func (f *DataFetchFilter) FetchMany(ctx context.Context, issuers []models.MIssuer) ([]string, error) {
	now := f.opts.Now()
	today := utils.DateOnly(now)

	var (
		mu        sync.Mutex
		completed []string
		done      int
	)

	errs := utils.RunTasks(ctx, f.opts.Workers, len(issuers), func(ctx context.Context, i int) error {
		issuer := issuers[i]
		var err error

		if f.upToDate(issuer, now) {
			f.logger.Debug("%s is up to date (last updated %s)", issuer.Code, issuer.LastUpdated.Format("2006-01-02"))
		} else {
			from := f.opts.DefaultFrom
			if issuer.LastUpdated != nil {
				from = utils.DateOnly(*issuer.LastUpdated)
			}
			_, err = f.FetchOne(ctx, models.MFetchRequest{Symbol: issuer.Code, Issuer: &issuer, FromDate: from, ToDate: today})
		}

		mu.Lock()
		done++
		n := done
		if err == nil {
			completed = append(completed, issuer.Code)
		}
		mu.Unlock()

		if err != nil {
			f.logger.Error("Failed to update %s: %v", issuer.Code, err)
		}
		f.publish(issuer.Code, n, len(issuers), err)
		return err
	})

	failed := utils.CountErrors(errs)
	f.logger.Info("Updated %d/%d issuers (%d failed)", len(issuers)-failed, len(issuers), failed)

	if len(issuers) > 0 && failed == len(issuers) {
		return completed, fmt.Errorf("all %d issuers failed, last error: %w", failed, errs[len(errs)-1])
	}
	return completed, nil
}

// -----------------------------------------------------------------------------

func (f *DataFetchFilter) upToDate(issuer models.MIssuer, now time.Time) bool {
	if issuer.LastUpdated == nil || f.opts.Calendar == nil {
		return false
	}
	return !f.opts.Calendar.HasTradingDaySince(*issuer.LastUpdated, now)
}

func (f *DataFetchFilter) publish(code string, done, total int, err error) {
	if f.opts.Reporter == nil {
		return
	}
	ev := models.MProgressEvent{
		Kind:      "issuer",
		Symbol:    code,
		Done:      done,
		Total:     total,
		Success:   err == nil,
		Timestamp: f.opts.Now().Unix(),
	}
	if err != nil {
		ev.Message = err.Error()
	}
	f.opts.Reporter.Publish(ev)
}
