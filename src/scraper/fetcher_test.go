package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(pool *fakePool, placeholder bool) *Fetcher {
	return NewFetcher(pool, FetcherOptions{
		PageURL:            "https://example.test/en/stats/symbolhistory/TEL",
		NoDataSelector:     noDataSel,
		ChunkDays:          30,
		Workers:            4,
		Wait:               time.Second,
		PlaceholderOnEmpty: placeholder,
	}, nil)
}

func TestFetchReturnsAllDaysSorted(t *testing.T) {
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		return tableFor(from, to), nil
	}}
	f := newTestFetcher(pool, true)

	report, err := f.Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 2, 15))
	require.NoError(t, err)

	assert.Equal(t, 2, report.ChunksTotal)
	assert.Equal(t, 2, report.ChunksOK)
	require.Len(t, report.Rows, 46)
	for i := 1; i < len(report.Rows); i++ {
		assert.True(t, report.Rows[i-1].Date.Before(report.Rows[i].Date))
	}
	assert.Equal(t, date(2024, 1, 1), report.Rows[0].Date)
	assert.Equal(t, date(2024, 2, 15), report.Rows[45].Date)
	assert.Equal(t, 2, pool.released)
}

func TestFetchNoDataChunkYieldsPlaceholders(t *testing.T) {
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		if from == "2/1/2024" {
			return "", nil
		}
		return tableFor(from, to), nil
	}}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksEmpty)
	require.Len(t, report.Rows, 46)

	for _, r := range report.Rows {
		if !r.Date.Before(date(2024, 2, 1)) {
			assert.EqualValues(t, 0, r.Volume)
			assert.True(t, r.LastTradePrice.IsZero())
		}
	}
}

func TestFetchNoDataWithoutPlaceholders(t *testing.T) {
	pool := &fakePool{site: func(string, string, string) (string, error) { return "", nil }}

	report, err := newTestFetcher(pool, false).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 1, 10))
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Equal(t, 1, report.ChunksEmpty)
}

func TestFetchTimeoutTreatedAsNoData(t *testing.T) {
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		return "", helpers.NewTimeoutError(nil, "results never appeared")
	}}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksEmpty)
	assert.Len(t, report.Rows, 5)
}

func TestFetchEmptyTableIsOkNotError(t *testing.T) {
	pool := &fakePool{site: func(string, string, string) (string, error) {
		return `<table id="resultsTable"><thead><tr><th>Date</th></tr></thead><tbody></tbody></table>`, nil
	}}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksOK)
	assert.Empty(t, report.Rows)
}

func TestFetchSessionFailureDiscardsAndIsolatesChunk(t *testing.T) {
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		if from == "1/1/2024" {
			return "", helpers.NewSessionFailureError(errBrowserCrashed, "wait")
		}
		return tableFor(from, to), nil
	}}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksFailed)
	assert.Equal(t, 1, report.ChunksOK)
	assert.Len(t, report.Rows, 15)
	assert.Equal(t, 1, pool.discarded)
	assert.Equal(t, 1, pool.released)
}

func TestFetchPanickingChunkDiscardsSession(t *testing.T) {
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		if from == "1/1/2024" {
			panic("nil results node")
		}
		return tableFor(from, to), nil
	}}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksFailed)
	assert.Equal(t, 1, report.ChunksOK)
	assert.Len(t, report.Rows, 15)
	require.NotNil(t, report.FirstFailed)
	assert.True(t, date(2024, 1, 1).Equal(*report.FirstFailed))

	assert.Equal(t, 1, pool.discarded)
	assert.Equal(t, 1, pool.released)
	assert.Equal(t, pool.made, pool.discarded+pool.released)
}

func TestFetchPanicIsTheChunkError(t *testing.T) {
	pool := &fakePool{site: func(string, string, string) (string, error) {
		panic("nil results node")
	}}

	_, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 1, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: nil results node")
	assert.NotContains(t, err.Error(), "%!w")
}

func TestFetchAllChunksFailed(t *testing.T) {
	boom := errors.New("cannot launch chrome")
	pool := &fakePool{acquireErr: boom}

	report, err := newTestFetcher(pool, true).Fetch(context.Background(), "ALK", date(2024, 1, 1), date(2024, 2, 15))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, report.ChunksFailed)
}

func TestFetchInvalidRange(t *testing.T) {
	_, err := newTestFetcher(&fakePool{}, true).Fetch(context.Background(), "ALK", date(2024, 2, 1), date(2024, 1, 1))
	assert.Error(t, err)
}

func TestFetchSubmitsSymbolAndSiteDates(t *testing.T) {
	var seen []string
	pool := &fakePool{site: func(code, from, to string) (string, error) {
		seen = append(seen, code, from, to)
		return tableFor(from, to), nil
	}}
	f := newTestFetcher(pool, true)
	f.opts.Workers = 1

	_, err := f.Fetch(context.Background(), "TNB", date(2024, 3, 4), date(2024, 3, 6))
	require.NoError(t, err)
	assert.Equal(t, []string{"TNB", "3/4/2024", "3/6/2024"}, seen)
}

func TestPlaceholderRowsCoverChunk(t *testing.T) {
	rows := placeholderRows(models.MDateChunk{FromDate: date(2024, 2, 27), ToDate: date(2024, 3, 1)})
	require.Len(t, rows, 4)
	assert.Equal(t, date(2024, 2, 29), rows[2].Date)
}
