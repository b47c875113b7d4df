package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/scraper"
	"mse-pipeline/src/utils"
)

// -----------------------------------------------------------------------------

// Importer loads SYMBOL_YEAR.csv checkpoints into the database.
type Importer struct {
	db         interfaces.IDatabase
	writer     interfaces.IPriceWriter
	normalizer *scraper.Normalizer
	workers    int
	logger     *logger.Logger
}

func NewImporter(db interfaces.IDatabase, writer interfaces.IPriceWriter, workers int, log *logger.Logger) *Importer {
	return &Importer{
		db:         db,
		writer:     writer,
		normalizer: scraper.NewNormalizer(log),
		workers:    workers,
		logger:     log,
	}
}

// -----------------------------------------------------------------------------

// ImportDir imports every *.csv in dir for issuers already in the database and
// returns the number of rows written. Files for unknown issuers and files that
// fail to parse are logged and skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	start := time.Now()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("artifact directory %q not found", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no CSV files found in %s", dir)
	}
	sort.Strings(files)

	issuers, err := im.db.ListIssuers(ctx)
	if err != nil {
		return 0, err
	}
	if len(issuers) == 0 {
		return 0, fmt.Errorf("no issuers in the database; refresh symbols first")
	}
	ids := make(map[string]int64, len(issuers))
	for _, is := range issuers {
		ids[is.Code] = is.ID
	}

	im.logger.Info("Found %d CSV files to process", len(files))

	var (
		mu        sync.Mutex
		total     int
		processed int
	)
	errs := utils.RunTasks(ctx, im.workers, len(files), func(ctx context.Context, i int) error {
		n, err := im.importFile(ctx, files[i], ids)
		if err != nil {
			im.logger.Error("Error processing %s: %v", files[i], err)
			return err
		}

		mu.Lock()
		total += n
		processed++
		done := processed
		mu.Unlock()

		im.logger.Info("Processed %s: %d records (%d/%d files)", filepath.Base(files[i]), n, done, len(files))
		return nil
	})

	im.logger.Info("Import completed in %.2f seconds: %d files, %d records, %d failed",
		time.Since(start).Seconds(), processed, total, utils.CountErrors(errs))
	return total, nil
}

// -----------------------------------------------------------------------------

func (im *Importer) importFile(ctx context.Context, path string, ids map[string]int64) (int, error) {
	symbol, _, err := ParseArtifactName(path)
	if err != nil {
		return 0, err
	}
	id, ok := ids[symbol]
	if !ok {
		return 0, fmt.Errorf("issuer %q not found", symbol)
	}

	rows, err := ReadArtifact(path, im.normalizer)
	if err != nil {
		return 0, err
	}
	return im.writer.Persist(ctx, id, rows)
}
