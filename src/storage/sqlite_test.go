package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"}}
	db := NewSQLiteDB(cfg, nil)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func price(issuerID int64, day int, last string, volume int64) models.MStockPrice {
	return models.MStockPrice{
		IssuerID: issuerID,
		MPriceRow: models.MPriceRow{
			Date:           time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
			LastTradePrice: decimal.RequireFromString(last),
			AvgPrice:       decimal.RequireFromString(last),
			Volume:         volume,
			TotalTurnover:  decimal.NewFromInt(volume).Mul(decimal.RequireFromString(last)),
		},
	}
}

func TestUpsertIssuerCreatesThenRenames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := db.UpsertIssuer(ctx, "ALK", "Alkaloid")
	require.NoError(t, err)
	assert.Nil(t, a.LastUpdated)

	b, err := db.UpsertIssuer(ctx, "ALK", "Alkaloid AD Skopje")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Alkaloid AD Skopje", b.Name)

	list, err := db.ListIssuers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetIssuerNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetIssuer(context.Background(), "NOPE")
	assert.True(t, helpers.IsNotFound(err))
}

func TestTouchIssuer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "KMB", "Komercijalna")

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.TouchIssuer(ctx, issuer.ID, at))

	got, err := db.GetIssuer(ctx, "KMB")
	require.NoError(t, err)
	require.NotNil(t, got.LastUpdated)
	assert.True(t, at.Equal(*got.LastUpdated))

	require.NoError(t, db.TouchIssuer(ctx, issuer.ID, at.AddDate(-1, 0, 0)))
	got, err = db.GetIssuer(ctx, "KMB")
	require.NoError(t, err)
	assert.True(t, at.Equal(*got.LastUpdated))
}

func TestUpsertStockPricesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "ALK", "Alkaloid")

	require.NoError(t, db.UpsertStockPrices(ctx, []models.MStockPrice{
		price(issuer.ID, 3, "100.50", 10),
		price(issuer.ID, 2, "99.00", 5),
	}))
	require.NoError(t, db.UpsertStockPrices(ctx, []models.MStockPrice{
		price(issuer.ID, 3, "101.25", 12),
	}))

	stored, err := db.GetStockPrices(ctx, issuer.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, 2, stored[0].Date.Day())
	assert.Equal(t, 3, stored[1].Date.Day())
	assert.True(t, decimal.RequireFromString("101.25").Equal(stored[1].LastTradePrice))
	assert.EqualValues(t, 12, stored[1].Volume)
}

func TestUpsertStockPricesAboveVariableLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "TEL", "Makedonski Telekom")

	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]models.MStockPrice, sqliteBatchSize+50)
	for i := range prices {
		prices[i] = models.MStockPrice{IssuerID: issuer.ID, MPriceRow: models.MPriceRow{Date: start.AddDate(0, 0, i), Volume: 1}}
	}
	require.NoError(t, db.UpsertStockPrices(ctx, prices))

	stored, err := db.GetStockPrices(ctx, issuer.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(prices))
}

func TestUpsertStockPricesRejectsUnknownIssuer(t *testing.T) {
	db := newTestDB(t)
	err := db.UpsertStockPrices(context.Background(), []models.MStockPrice{price(999, 1, "1", 1)})
	assert.True(t, helpers.IsPersistenceFailure(err))
}

func TestClearStockPrices(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "ALK", "Alkaloid")
	require.NoError(t, db.UpsertStockPrices(ctx, []models.MStockPrice{price(issuer.ID, 1, "1", 1), price(issuer.ID, 2, "1", 1)}))

	n, err := db.ClearStockPrices(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = db.GetIssuer(ctx, "ALK")
	assert.NoError(t, err, "issuers survive a price wipe")
}

func TestSaveNewsSkipsKnownURLs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "ALK", "Alkaloid")

	item := models.MIssuerNews{
		IssuerID:      issuer.ID,
		Title:         "Dividend announcement",
		PublishedDate: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		SourceURL:     "https://www.mse.mk/en/news/1",
	}
	added, err := db.SaveNews(ctx, []models.MIssuerNews{item})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = db.SaveNews(ctx, []models.MIssuerNews{item})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	news, err := db.ListNews(ctx, issuer.ID)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Dividend announcement", news[0].Title)
	assert.Equal(t, item.PublishedDate, news[0].PublishedDate)
}

func TestNewsContentUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issuer, _ := db.UpsertIssuer(ctx, "KMB", "Komercijalna banka")

	_, err := db.SaveNews(ctx, []models.MIssuerNews{
		{IssuerID: issuer.ID, Title: "Q1 results", PublishedDate: time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC), SourceURL: "https://seinet.com.mk/document/1"},
		{IssuerID: issuer.ID, Title: "AGM", PublishedDate: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), SourceURL: "https://seinet.com.mk/document/2"},
	})
	require.NoError(t, err)

	pending, err := db.ListNewsForContent(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "Q1 results", pending[0].Title)

	require.NoError(t, db.UpdateNewsContent(ctx, pending[0].ID, "Net profit up 12%"))

	pending, err = db.ListNewsForContent(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "AGM", pending[0].Title)

	all, err := db.ListNewsForContent(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Net profit up 12%", all[0].Content)

	err = db.UpdateNewsContent(ctx, 9999, "x")
	assert.True(t, helpers.IsNotFound(err))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "mongo"}}
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestOpenSQLiteFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mse.db")
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: path}}
	ctx := context.Background()

	db, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = db.UpsertIssuer(ctx, "ALK", "Alkaloid")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetIssuer(ctx, "ALK")
	assert.NoError(t, err)
}

func TestValuesClause(t *testing.T) {
	got := valuesClause(2, 3, func(n int) string { return "$" + string(rune('0'+n)) })
	assert.Equal(t, "($1, $2, $3), ($4, $5, $6)", got)
}
