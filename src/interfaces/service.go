package interfaces

import (
	"context"
	"time"

	"mse-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// IPipelineService is the surface shared by the CLI, HTTP API and gRPC control.
// -----------------------------------------------------------------------------

type IPipelineService interface {
	RefreshSymbols(ctx context.Context) ([]string, error)
	ListSymbols(ctx context.Context) ([]models.MSymbol, error)

	// FetchSymbol fetches one issuer over [from, to]; save=false only scrapes.
	FetchSymbol(ctx context.Context, code string, from, to time.Time, save bool) (*models.MFetchResult, error)
	FetchStale(ctx context.Context) ([]string, error)
	// FetchAll runs the orchestrator; zero years fall back to the configured span.
	FetchAll(ctx context.Context, runID string, fromYear, toYear int) (*models.MRunSummary, error)

	ListIssuers(ctx context.Context) ([]models.MIssuer, error)
	GetIssuer(ctx context.Context, code string) (*models.MIssuer, error)
	GetPrices(ctx context.Context, code string) ([]models.MStockPrice, error)
	Summary(ctx context.Context, code string) (*models.MPriceSummary, error)

	CollectNews(ctx context.Context, codes []string) (int, error)
	ListNews(ctx context.Context, code string) ([]models.MIssuerNews, error)
	// FetchNewsContent fills in article text; emptyOnly skips items that have it.
	FetchNewsContent(ctx context.Context, emptyOnly bool) (int, error)

	ImportCSV(ctx context.Context, dir string) (int, error)
	ClearPrices(ctx context.Context) (int64, error)

	Status(ctx context.Context) (*models.MServiceStatus, error)
}
