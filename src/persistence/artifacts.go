package persistence

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mse-pipeline/src/models"
	"mse-pipeline/src/scraper"
)

// -----------------------------------------------------------------------------

// ArtifactPath is dir/SYMBOL_YEAR.csv.
func ArtifactPath(dir, symbol string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.csv", symbol, year))
}

// ArtifactExists reports whether the checkpoint for (symbol, year) is on disk.
func ArtifactExists(dir, symbol string, year int) bool {
	info, err := os.Stat(ArtifactPath(dir, symbol, year))
	return err == nil && !info.IsDir()
}

// ParseArtifactName splits "ALK_2019.csv" into its symbol and year.
func ParseArtifactName(path string) (string, int, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", 0, fmt.Errorf("artifact name %q is not SYMBOL_YEAR", filepath.Base(path))
	}
	year, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("artifact name %q has no year: %w", filepath.Base(path), err)
	}
	return base[:idx], year, nil
}

// -----------------------------------------------------------------------------

// WriteArtifact writes rows to path through a temp file and rename, so a
// crash never leaves a half-written checkpoint behind.
func WriteArtifact(path string, rows []models.MPriceRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeCSV(w io.Writer, rows []models.MPriceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scraper.Columns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Date.Format("2006-01-02"),
			r.LastTradePrice.String(),
			r.MaxPrice.String(),
			r.MinPrice.String(),
			r.AvgPrice.String(),
			r.PriceChange.String(),
			strconv.FormatInt(r.Volume, 10),
			r.TurnoverBest.String(),
			r.TotalTurnover.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// -----------------------------------------------------------------------------

// ReadArtifact parses a checkpoint file. Columns are matched by header name,
// so files with extra or reordered columns still load.
func ReadArtifact(path string, n *scraper.Normalizer) ([]models.MPriceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = scraper.CanonicalHeader(strings.TrimPrefix(h, "\ufeff"))
	}

	label := filepath.Base(path)
	var rows []models.MPriceRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("%s line %d: %w", label, line, err)
		}

		cells := make(map[string]string, len(header))
		for i, v := range record {
			if i < len(header) {
				cells[header[i]] = v
			}
		}
		if row, ok := n.Row(cells, fmt.Sprintf("%s line %d", label, line)); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
