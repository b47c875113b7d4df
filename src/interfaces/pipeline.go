package interfaces

import (
	"context"
	"time"

	"mse-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// IFilter is one stage of a pipeline; its output feeds the next stage.
// -----------------------------------------------------------------------------

type IFilter interface {
	Name() string
	Process(ctx context.Context, input interface{}) (interface{}, error)
}

// -----------------------------------------------------------------------------

// ISymbolLister scrapes the exchange symbol catalog.
type ISymbolLister interface {
	ListSymbols(ctx context.Context) ([]models.MSymbol, error)
}

// IPriceFetcher returns date-ordered rows for one symbol over [from, to]
// inside the report, alongside per-chunk outcome counts.
type IPriceFetcher interface {
	Fetch(ctx context.Context, symbol string, from, to time.Time) (*models.MFetchReport, error)
}

// IPriceWriter persists rows for one issuer, returning the number written.
type IPriceWriter interface {
	Persist(ctx context.Context, issuerID int64, rows []models.MPriceRow) (int, error)
}

// -----------------------------------------------------------------------------

// IProgressReporter receives orchestrator progress events.
type IProgressReporter interface {
	Publish(event models.MProgressEvent)
}
