package service

import (
	"context"
	"strings"

	"mse-pipeline/src/browser"
	"mse-pipeline/src/config"
	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/network"
	"mse-pipeline/src/news"
	"mse-pipeline/src/scraper"
	"mse-pipeline/src/storage"
)

// Build wires the production stack from configuration: the database, a
// chromedp-backed session pool, the scraper and the rate-limited HTTP client.
func Build(ctx context.Context, cfg *config.Config, reporter interfaces.IProgressReporter, log *logger.Logger) (*Service, error) {
	dbName := "SQLiteDB"
	if cfg.Storage.DBType == "postgres" {
		dbName = "PostgresDB"
	}
	db, err := storage.Open(ctx, cfg.MConfig, logger.NewLogger(cfg.MConfig, dbName))
	if err != nil {
		return nil, err
	}

	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}
	proxyManager := helpers.NewProxyManager(proxies, cfg.Network.UserAgent, logger.NewLogger(cfg.MConfig, "ProxyManager"))

	maxSessions := cfg.Browser.MaxSessions
	if maxSessions == 0 {
		log.Info("Session pool unbounded; memory allows about %d browsers", helpers.RecommendedSessionCap())
	}
	factory := browser.NewChromeFactory(cfg.Browser, proxyManager, logger.NewLogger(cfg.MConfig, "Chrome"))
	pool := browser.NewSessionPool(factory, maxSessions, logger.NewLogger(cfg.MConfig, "SessionPool"))

	base := strings.TrimRight(cfg.Scraper.BaseURL, "/")
	historyURL := base + cfg.Scraper.SymbolHistoryPath
	lister := scraper.NewSymbolLister(pool, historyURL, cfg.WaitTimeout(), logger.NewLogger(cfg.MConfig, "SymbolLister"))
	fetcher := scraper.NewFetcher(pool, scraper.FetcherOptions{
		PageURL:            historyURL,
		NoDataSelector:     cfg.Scraper.NoDataSelector,
		ChunkDays:          cfg.Scraper.ChunkDays,
		Workers:            cfg.Scraper.ChunkWorkers,
		Wait:               cfg.WaitTimeout(),
		PlaceholderOnEmpty: cfg.Scraper.PlaceholderOnEmpty == nil || *cfg.Scraper.PlaceholderOnEmpty,
	}, logger.NewLogger(cfg.MConfig, "Fetcher"))

	netMgr := network.NewAsyncNetworkManager(cfg.MConfig, proxyManager, logger.NewLogger(cfg.MConfig, "NetworkManager"))

	svc := NewService(cfg, db, lister, fetcher, netMgr, reporter, log)
	svc.pool = pool
	svc.content = news.NewContentFetcher(pool, db, cfg.WaitTimeout(), cfg.Network.RequestsPerSecond, logger.NewLogger(cfg.MConfig, "NewsContent"))
	return svc, nil
}
