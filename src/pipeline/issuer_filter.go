package pipeline

import (
	"context"
	"strings"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
)

// -----------------------------------------------------------------------------

// IssuerListFilter lists the exchange's symbols, drops the reserved prefix,
// and upserts the rest as issuers. Its input is ignored; it outputs []string.
type IssuerListFilter struct {
	lister         interfaces.ISymbolLister
	db             interfaces.IDatabase
	excludedPrefix string
	logger         *logger.Logger
}

func NewIssuerListFilter(lister interfaces.ISymbolLister, db interfaces.IDatabase, excludedPrefix string, log *logger.Logger) *IssuerListFilter {
	return &IssuerListFilter{lister: lister, db: db, excludedPrefix: excludedPrefix, logger: log}
}

func (f *IssuerListFilter) Name() string { return "IssuerListFilter" }

// -----------------------------------------------------------------------------

func (f *IssuerListFilter) Process(ctx context.Context, _ interface{}) (interface{}, error) {
	symbols, err := f.lister.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(symbols))
	excluded := 0
	for _, s := range symbols {
		if f.excludedPrefix != "" && strings.HasPrefix(s.Code, f.excludedPrefix) {
			excluded++
			continue
		}
		if _, err := f.db.UpsertIssuer(ctx, s.Code, s.DisplayName); err != nil {
			f.logger.Error("Failed to store issuer %s: %v", s.Code, err)
			continue
		}
		codes = append(codes, s.Code)
	}

	f.logger.Info("Stored %d issuers (%d excluded by prefix %q)", len(codes), excluded, f.excludedPrefix)
	return codes, nil
}
