package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mse-pipeline/src/analysis"
	"mse-pipeline/src/browser"
	"mse-pipeline/src/config"
	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/news"
	"mse-pipeline/src/orchestrator"
	"mse-pipeline/src/persistence"
	"mse-pipeline/src/pipeline"
	"mse-pipeline/src/utils"
)

// Service is the application facade shared by the CLI, the HTTP API and the
// gRPC control plane. It owns the composed pipeline components.
type Service struct {
	cfg    *config.Config
	db     interfaces.IDatabase
	lister interfaces.ISymbolLister

	symbols  *pipeline.Pipeline
	fetch    *pipeline.DataFetchFilter
	scrape   *pipeline.DataFetchFilter
	orch     *orchestrator.Orchestrator
	news     *news.Collector
	content  *news.ContentFetcher
	importer *persistence.Importer

	pool    *browser.SessionPool
	started time.Time
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

// NewService composes the pipeline around already-built collaborators.
// reporter may be nil.
func NewService(
	cfg *config.Config,
	db interfaces.IDatabase,
	lister interfaces.ISymbolLister,
	fetcher interfaces.IPriceFetcher,
	netMgr interfaces.INetworkManager,
	reporter interfaces.IProgressReporter,
	log *logger.Logger,
) *Service {
	skipZero := cfg.Pipeline.SkipZeroVolume == nil || *cfg.Pipeline.SkipZeroVolume
	writer := persistence.NewPriceWriter(db, cfg.Pipeline.BatchSize, skipZero, log.Named("PriceWriter"))

	fetchOpts := pipeline.DataFetchOptions{
		Workers:     cfg.Pipeline.FetchWorkers,
		DefaultFrom: cfg.DefaultStart(),
		Save:        true,
		Calendar:    utils.GetCalendar(log),
		Reporter:    reporter,
	}
	fetch := pipeline.NewDataFetchFilter(db, fetcher, writer, fetchOpts, log.Named("DataFetchFilter"))
	scrapeOpts := fetchOpts
	scrapeOpts.Save = false
	scrape := pipeline.NewDataFetchFilter(db, fetcher, writer, scrapeOpts, log.Named("DataFetchFilter"))

	symbols := pipeline.NewPipeline(log.Named("Pipeline")).
		AddFilter(pipeline.NewIssuerListFilter(lister, db, cfg.Scraper.ExcludedPrefix, log.Named("IssuerListFilter")))

	orch := orchestrator.New(db, symbols, fetch, reporter, orchestrator.Options{
		Workers:     cfg.Orchestrator.Workers,
		FromYear:    cfg.Orchestrator.FromYear,
		ToYear:      cfg.Orchestrator.ToYear,
		ArtifactDir: cfg.Orchestrator.ArtifactDir,
	}, log.Named("Orchestrator"))

	importWriter := persistence.NewPriceWriter(db, cfg.Orchestrator.ImportBatch, skipZero, log.Named("PriceWriter"))

	return &Service{
		cfg:      cfg,
		db:       db,
		lister:   lister,
		symbols:  symbols,
		fetch:    fetch,
		scrape:   scrape,
		orch:     orch,
		news:     news.NewCollector(netMgr, db, cfg.Scraper.BaseURL, cfg.Scraper.IssuerPath, log.Named("NewsCollector")),
		importer: persistence.NewImporter(db, importWriter, cfg.Orchestrator.Workers, log.Named("Importer")),
		started:  time.Now(),
		logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Close releases the browser sessions and the database.
func (s *Service) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return s.db.Close()
}

// -----------------------------------------------------------------------------

func (s *Service) RefreshSymbols(ctx context.Context) ([]string, error) {
	out, err := s.symbols.Execute(ctx, nil)
	if err != nil {
		return nil, err
	}
	codes, _ := out.([]string)
	return codes, nil
}

func (s *Service) ListSymbols(ctx context.Context) ([]models.MSymbol, error) {
	return s.lister.ListSymbols(ctx)
}

// -----------------------------------------------------------------------------

func (s *Service) FetchSymbol(ctx context.Context, code string, from, to time.Time, save bool) (*models.MFetchResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if from.After(to) {
		return nil, helpers.NewConfigurationError(nil, "from date %s is after to date %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	filter := s.fetch
	if !save {
		filter = s.scrape
	}
	res, err := filter.FetchOne(ctx, models.MFetchRequest{Symbol: code, FromDate: from, ToDate: to})
	if helpers.IsNotFound(err) {
		return nil, helpers.NewNotFoundError("issuer %s not found, run symbols first", code)
	}
	return res, err
}

func (s *Service) FetchStale(ctx context.Context) ([]string, error) {
	issuers, err := s.db.ListIssuers(ctx)
	if err != nil {
		return nil, err
	}
	return s.fetch.FetchMany(ctx, issuers)
}

func (s *Service) FetchAll(ctx context.Context, runID string, fromYear, toYear int) (*models.MRunSummary, error) {
	return s.orch.RunYears(ctx, runID, fromYear, toYear)
}

// -----------------------------------------------------------------------------

func (s *Service) ListIssuers(ctx context.Context) ([]models.MIssuer, error) {
	return s.db.ListIssuers(ctx)
}

func (s *Service) GetIssuer(ctx context.Context, code string) (*models.MIssuer, error) {
	return s.db.GetIssuer(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Service) GetPrices(ctx context.Context, code string) ([]models.MStockPrice, error) {
	issuer, err := s.GetIssuer(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.db.GetStockPrices(ctx, issuer.ID)
}

func (s *Service) Summary(ctx context.Context, code string) (*models.MPriceSummary, error) {
	issuer, err := s.GetIssuer(ctx, code)
	if err != nil {
		return nil, err
	}
	prices, err := s.db.GetStockPrices(ctx, issuer.ID)
	if err != nil {
		return nil, err
	}
	return analysis.Summarize(issuer.Code, prices), nil
}

// -----------------------------------------------------------------------------

// CollectNews fetches news for the given codes, or for every stored issuer
// when codes is empty.
func (s *Service) CollectNews(ctx context.Context, codes []string) (int, error) {
	var issuers []models.MIssuer
	if len(codes) == 0 {
		all, err := s.db.ListIssuers(ctx)
		if err != nil {
			return 0, err
		}
		issuers = all
	} else {
		for _, code := range codes {
			issuer, err := s.GetIssuer(ctx, code)
			if err != nil {
				return 0, err
			}
			issuers = append(issuers, *issuer)
		}
	}
	return s.news.Collect(ctx, issuers)
}

func (s *Service) ListNews(ctx context.Context, code string) ([]models.MIssuerNews, error) {
	issuer, err := s.GetIssuer(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.db.ListNews(ctx, issuer.ID)
}

// FetchNewsContent renders stored news pages to fill in their body text.
// It needs the browser session pool, so it is unavailable without Build.
func (s *Service) FetchNewsContent(ctx context.Context, emptyOnly bool) (int, error) {
	if s.content == nil {
		return 0, helpers.NewConfigurationError(nil, "news content needs browser sessions")
	}
	return s.content.FetchAll(ctx, emptyOnly)
}

// -----------------------------------------------------------------------------

// ImportCSV loads artifacts from dir, or from the configured artifact
// directory when dir is empty.
func (s *Service) ImportCSV(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		dir = s.cfg.Orchestrator.ArtifactDir
	}
	return s.importer.ImportDir(ctx, dir)
}

func (s *Service) ClearPrices(ctx context.Context) (int64, error) {
	start := time.Now()
	s.logger.Warning("Clearing all stock price records...")
	n, err := s.db.ClearStockPrices(ctx)
	if err != nil {
		return 0, helpers.NewPersistenceFailureError(err, "clear stock prices")
	}
	s.logger.Info("Successfully deleted %d records in %.2f seconds", n, time.Since(start).Seconds())
	return n, nil
}

// -----------------------------------------------------------------------------

func (s *Service) Status(ctx context.Context) (*models.MServiceStatus, error) {
	issuers, err := s.db.ListIssuers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}

	st := &models.MServiceStatus{
		Name:          s.cfg.Name,
		DBType:        s.cfg.Storage.DBType,
		Issuers:       len(issuers),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if s.pool != nil {
		ps := s.pool.Stats()
		st.SessionsIdle, st.SessionsInUse = ps.Idle, ps.InUse
		st.SessionsCreated, st.SessionsDiscarded = ps.Created, ps.Discarded
	}
	return st, nil
}
