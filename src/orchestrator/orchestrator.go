package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/persistence"
	"mse-pipeline/src/pipeline"
	"mse-pipeline/src/utils"
)

// Options configures a full-history run.
type Options struct {
	Workers     int
	FromYear    int
	ToYear      int
	ArtifactDir string
	Now         func() time.Time
}

// -----------------------------------------------------------------------------

// Orchestrator fetches every (issuer, year) pair that has no artifact yet,
// persisting the rows and writing one CSV checkpoint per pair.
type Orchestrator struct {
	db       interfaces.IDatabase
	symbols  *pipeline.Pipeline
	fetch    *pipeline.DataFetchFilter
	reporter interfaces.IProgressReporter
	opts     Options
	logger   *logger.Logger
}

// New wires the orchestrator. symbols is a pipeline whose output is []string
// issuer codes; fetch runs the per-task fetch-and-persist.
func New(db interfaces.IDatabase, symbols *pipeline.Pipeline, fetch *pipeline.DataFetchFilter, reporter interfaces.IProgressReporter, opts Options, log *logger.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{db: db, symbols: symbols, fetch: fetch, reporter: reporter, opts: opts, logger: log}
}

// -----------------------------------------------------------------------------

// Run executes one pass over the configured years.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*models.MRunSummary, error) {
	return o.RunYears(ctx, runID, o.opts.FromYear, o.opts.ToYear)
}

// RunYears executes one pass over [fromYear, toYear]; a zero bound uses the
// configured one. A task's failure is logged and counted; it never stops its
// siblings. The summary is returned even when some tasks failed.
func (o *Orchestrator) RunYears(ctx context.Context, runID string, fromYear, toYear int) (*models.MRunSummary, error) {
	if fromYear == 0 {
		fromYear = o.opts.FromYear
	}
	if toYear == 0 {
		toYear = o.opts.ToYear
	}
	start := time.Now()
	summary := &models.MRunSummary{RunID: runID}

	issuers, err := o.issuers(ctx)
	if err != nil {
		return summary, err
	}

	tasks, skipped := o.plan(issuers, fromYear, toYear)
	summary.Total, summary.Skipped = len(tasks), skipped
	o.logger.Info("Run %s: %d tasks to fetch, %d already on disk", runID, len(tasks), skipped)
	o.publish(models.MProgressEvent{RunID: runID, Kind: "run_started", Total: len(tasks), Success: true})

	var (
		mu   sync.Mutex
		done int
	)
	results := make([]models.MTaskResult, len(tasks))
	utils.RunTasks(ctx, o.opts.Workers, len(tasks), func(ctx context.Context, i int) (err error) {
		res := models.MTaskResult{Task: tasks[i]}
		defer func() {
			if r := recover(); r != nil {
				res.Success, res.Err = false, fmt.Errorf("%s %d panicked: %v", res.Task.Symbol, res.Task.Year, r)
			}
			results[i] = res
			err = res.Err

			mu.Lock()
			done++
			n := done
			switch {
			case !res.Success:
				summary.Failed++
			case res.Rows == 0:
				summary.NoData++
			default:
				summary.Succeeded++
			}
			mu.Unlock()

			if res.Success {
				o.logger.Info("Completed %d for %s (%d/%d)", res.Task.Year, res.Task.Symbol, n, len(tasks))
			} else {
				o.logger.Error("Failed %d for %s (%d/%d): %v", res.Task.Year, res.Task.Symbol, n, len(tasks), res.Err)
			}

			ev := models.MProgressEvent{RunID: runID, Kind: "task", Symbol: res.Task.Symbol, Year: res.Task.Year,
				Done: n, Total: len(tasks), Success: res.Success}
			if res.Err != nil {
				ev.Message = res.Err.Error()
			}
			o.publish(ev)
		}()

		res = o.runTask(ctx, tasks[i])
		return res.Err
	})

	// tasks that never started because ctx was cancelled
	for _, r := range results {
		if r.Task.Symbol == "" {
			summary.Failed++
		}
	}

	summary.Seconds = time.Since(start).Seconds()
	o.logger.Info("Run %s finished in %.2f seconds: %d succeeded, %d without data, %d failed, %d skipped",
		runID, summary.Seconds, summary.Succeeded, summary.NoData, summary.Failed, summary.Skipped)
	o.publish(models.MProgressEvent{RunID: runID, Kind: "run_finished", Done: len(tasks), Total: len(tasks),
		Success: summary.Failed == 0, Message: fmt.Sprintf("%d failed", summary.Failed)})
	return summary, ctx.Err()
}

// -----------------------------------------------------------------------------

// issuers refreshes the symbol list and falls back to the stored issuers
// when the exchange cannot be listed.
func (o *Orchestrator) issuers(ctx context.Context) ([]models.MIssuer, error) {
	stored := func() ([]models.MIssuer, error) { return o.db.ListIssuers(ctx) }

	if o.symbols == nil {
		return stored()
	}

	out, err := o.symbols.Execute(ctx, nil)
	if err != nil {
		o.logger.Warning("Symbol refresh failed, using stored issuers: %v", err)
		return stored()
	}
	codes, ok := out.([]string)
	if !ok {
		return nil, fmt.Errorf("symbol pipeline returned %T, want []string", out)
	}

	all, err := stored()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}
	issuers := make([]models.MIssuer, 0, len(codes))
	for _, is := range all {
		if wanted[is.Code] {
			issuers = append(issuers, is)
		}
	}
	return issuers, nil
}

// -----------------------------------------------------------------------------

// plan builds the task list in (symbol, year) order, skipping checkpoints.
func (o *Orchestrator) plan(issuers []models.MIssuer, fromYear, toYear int) ([]models.MFetchTask, int) {
	today := utils.DateOnly(o.opts.Now())
	if toYear == 0 || toYear > today.Year() {
		toYear = today.Year()
	}

	var tasks []models.MFetchTask
	skipped := 0
	for _, is := range issuers {
		for year := fromYear; year <= toYear; year++ {
			if persistence.ArtifactExists(o.opts.ArtifactDir, is.Code, year) {
				skipped++
				continue
			}
			from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
			if to.After(today) {
				to = today
			}
			tasks = append(tasks, models.MFetchTask{Symbol: is.Code, IssuerID: is.ID, Year: year, FromDate: from, ToDate: to})
		}
	}
	return tasks, skipped
}

// -----------------------------------------------------------------------------

func (o *Orchestrator) runTask(ctx context.Context, task models.MFetchTask) (res models.MTaskResult) {
	res.Task = task

	issuer := &models.MIssuer{ID: task.IssuerID, Code: task.Symbol}
	if stored, err := o.db.GetIssuer(ctx, task.Symbol); err == nil {
		issuer = stored
	}

	result, err := o.fetch.FetchOne(ctx, models.MFetchRequest{
		Symbol: task.Symbol, Issuer: issuer, FromDate: task.FromDate, ToDate: task.ToDate,
	})
	if err != nil {
		res.Err = err
		return res
	}
	if rep := result.Report; rep.ChunksFailed > 0 {
		// a partial year is persisted but gets no checkpoint, so the next run retries it
		res.Err = fmt.Errorf("%d of %d chunks failed for %s %d", rep.ChunksFailed, rep.ChunksTotal, task.Symbol, task.Year)
		return res
	}

	rows := make([]models.MPriceRow, 0, len(result.Report.Rows))
	for _, r := range result.Report.Rows {
		if !r.IsPlaceholder() {
			rows = append(rows, r)
		}
	}

	res.Success = true
	res.Rows = len(rows)
	if len(rows) == 0 {
		return res
	}

	path := persistence.ArtifactPath(o.opts.ArtifactDir, task.Symbol, task.Year)
	if err := persistence.WriteArtifact(path, rows); err != nil {
		res.Success, res.Err = false, fmt.Errorf("write %s: %w", path, err)
	}
	return res
}

// -----------------------------------------------------------------------------

func (o *Orchestrator) publish(ev models.MProgressEvent) {
	if o.reporter == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = o.opts.Now().Unix()
	}
	o.reporter.Publish(ev)
}
