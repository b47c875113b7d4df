package interfaces

import (
	"context"
	"time"

	"mse-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables. Existing data is kept.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// UpsertIssuer creates the issuer or updates its name, returning the stored row.
	UpsertIssuer(ctx context.Context, code, name string) (*models.MIssuer, error)

	// GetIssuer returns a NotFoundError for unknown codes.
	GetIssuer(ctx context.Context, code string) (*models.MIssuer, error)

	ListIssuers(ctx context.Context) ([]models.MIssuer, error)

	// TouchIssuer stamps last_updated after a completed fetch cycle. The
	// stamp only moves forward; an older at is ignored.
	TouchIssuer(ctx context.Context, issuerID int64, at time.Time) error

	// -----------------------------------------------------------------------------

	// UpsertStockPrices writes one batch atomically, keyed by (issuer, date).
	UpsertStockPrices(ctx context.Context, prices []models.MStockPrice) error

	// GetStockPrices returns an issuer's history ordered by date ascending.
	GetStockPrices(ctx context.Context, issuerID int64) ([]models.MStockPrice, error)

	// ClearStockPrices deletes every price row and returns how many were removed.
	ClearStockPrices(ctx context.Context) (int64, error)

	// -----------------------------------------------------------------------------

	// SaveNews inserts items not yet stored for (issuer, source_url); returns the number added.
	SaveNews(ctx context.Context, items []models.MIssuerNews) (int, error)

	ListNews(ctx context.Context, issuerID int64) ([]models.MIssuerNews, error)

	// ListNewsForContent returns news across all issuers ordered by id, only
	// the items without content when emptyOnly is set.
	ListNewsForContent(ctx context.Context, emptyOnly bool) ([]models.MIssuerNews, error)

	// UpdateNewsContent returns a NotFoundError for unknown ids.
	UpdateNewsContent(ctx context.Context, newsID int64, content string) error

	// -----------------------------------------------------------------------------

	// BatchLimit is the largest number of price rows one statement may carry.
	BatchLimit() int

	// Close the database connection
	Close() error
}
