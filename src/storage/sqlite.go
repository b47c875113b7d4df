package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	sqliteBatchSize = sqliteMaxVars / paramsPerRow // 3200 rows

	sqliteDate = "2006-01-02"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS issuers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		last_updated TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS stock_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		issuer_id INTEGER NOT NULL REFERENCES issuers(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		last_trade_price TEXT NOT NULL DEFAULT '0',
		max_price TEXT NOT NULL DEFAULT '0',
		min_price TEXT NOT NULL DEFAULT '0',
		avg_price TEXT NOT NULL DEFAULT '0',
		price_change TEXT NOT NULL DEFAULT '0',
		volume INTEGER NOT NULL DEFAULT 0,
		turnover_best TEXT NOT NULL DEFAULT '0',
		total_turnover TEXT NOT NULL DEFAULT '0',
		UNIQUE (issuer_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS issuer_news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		issuer_id INTEGER NOT NULL REFERENCES issuers(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		published_date TEXT NOT NULL,
		source_url TEXT NOT NULL,
		UNIQUE (issuer_id, source_url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_prices_date ON stock_prices (date)`,
}

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) *SQLiteDB {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// one connection: writes are serialized and ":memory:" stays a single database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			d.Logger.Warning("Failed to apply %s: %v", p, err)
		}
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	d.Logger.Info("SQLite initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) UpsertIssuer(ctx context.Context, code, name string) (*models.MIssuer, error) {
	row := d.DB.QueryRowContext(ctx, `
		INSERT INTO issuers (code, name) VALUES (?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name
		RETURNING id, code, name, last_updated
	`, code, name)

	issuer, err := scanSQLiteIssuer(row)
	if err != nil {
		return nil, helpers.NewPersistenceFailureError(err, "upsert issuer %s", code)
	}
	return issuer, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) GetIssuer(ctx context.Context, code string) (*models.MIssuer, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, code, name, last_updated FROM issuers WHERE code = ?`, code)
	issuer, err := scanSQLiteIssuer(row)
	if err == sql.ErrNoRows {
		return nil, helpers.NewNotFoundError("issuer %s not found", code)
	}
	return issuer, err
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListIssuers(ctx context.Context) ([]models.MIssuer, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id, code, name, last_updated FROM issuers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MIssuer
	for rows.Next() {
		issuer, err := scanSQLiteIssuer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *issuer)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) TouchIssuer(ctx context.Context, issuerID int64, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339)
	_, err := d.DB.ExecContext(ctx,
		`UPDATE issuers SET last_updated = ? WHERE id = ? AND (last_updated IS NULL OR last_updated < ?)`,
		stamp, issuerID, stamp)
	return err
}

// -----------------------------------------------------------------------------

// UpsertStockPrices writes all rows in one transaction, split into statements
// that stay under SQLite's bound-variable limit.
func (d *SQLiteDB) UpsertStockPrices(ctx context.Context, prices []models.MStockPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewPersistenceFailureError(err, "begin price batch")
	}
	defer tx.Rollback()

	for _, batch := range splitBatches(prices, sqliteBatchSize) {
		query := fmt.Sprintf(`INSERT INTO stock_prices (%s) VALUES %s ON CONFLICT (issuer_id, date) DO UPDATE SET %s`,
			joinColumns(), valuesClause(len(batch), paramsPerRow, func(int) string { return "?" }), upsertAssignments())

		args := priceArgs(batch, func(r models.MPriceRow) interface{} { return r.Date.Format(sqliteDate) })
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return helpers.NewPersistenceFailureError(err, "upsert %d prices", len(batch))
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewPersistenceFailureError(err, "commit price batch")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) GetStockPrices(ctx context.Context, issuerID int64) ([]models.MStockPrice, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM stock_prices WHERE issuer_id = ? ORDER BY date ASC`, joinColumns()), issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MStockPrice
	for rows.Next() {
		var p models.MStockPrice
		var date string
		if err := rows.Scan(&p.IssuerID, &date, &p.LastTradePrice, &p.MaxPrice, &p.MinPrice, &p.AvgPrice,
			&p.PriceChange, &p.Volume, &p.TurnoverBest, &p.TotalTurnover); err != nil {
			return nil, err
		}
		if p.Date, err = time.Parse(sqliteDate, date); err != nil {
			return nil, helpers.NewParseFailureError(err, "stored date %q", date)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ClearStockPrices(ctx context.Context) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `DELETE FROM stock_prices`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveNews(ctx context.Context, items []models.MIssuerNews) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issuer_news (issuer_id, title, content, published_date, source_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (issuer_id, source_url) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, n := range items {
		res, err := stmt.ExecContext(ctx, n.IssuerID, n.Title, n.Content, n.PublishedDate.Format(sqliteDate), n.SourceURL)
		if err != nil {
			return 0, helpers.NewPersistenceFailureError(err, "save news %q", n.Title)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			added++
		}
	}

	return added, tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListNews(ctx context.Context, issuerID int64) ([]models.MIssuerNews, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, issuer_id, title, content, published_date, source_url
		FROM issuer_news WHERE issuer_id = ? ORDER BY published_date DESC, id DESC
	`, issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MIssuerNews
	for rows.Next() {
		var n models.MIssuerNews
		var published string
		if err := rows.Scan(&n.ID, &n.IssuerID, &n.Title, &n.Content, &published, &n.SourceURL); err != nil {
			return nil, err
		}
		n.PublishedDate, _ = time.Parse(sqliteDate, published)
		out = append(out, n)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListNewsForContent(ctx context.Context, emptyOnly bool) ([]models.MIssuerNews, error) {
	query := `SELECT id, issuer_id, title, content, published_date, source_url FROM issuer_news`
	if emptyOnly {
		query += ` WHERE content = ''`
	}
	rows, err := d.DB.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MIssuerNews
	for rows.Next() {
		var n models.MIssuerNews
		var published string
		if err := rows.Scan(&n.ID, &n.IssuerID, &n.Title, &n.Content, &published, &n.SourceURL); err != nil {
			return nil, err
		}
		n.PublishedDate, _ = time.Parse(sqliteDate, published)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (d *SQLiteDB) UpdateNewsContent(ctx context.Context, newsID int64, content string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE issuer_news SET content = ? WHERE id = ?`, content, newsID)
	if err != nil {
		return helpers.NewPersistenceFailureError(err, "update news %d", newsID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return helpers.NewNotFoundError("news %d not found", newsID)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) BatchLimit() int { return sqliteBatchSize }

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteIssuer(row rowScanner) (*models.MIssuer, error) {
	var issuer models.MIssuer
	var updated sql.NullString
	if err := row.Scan(&issuer.ID, &issuer.Code, &issuer.Name, &updated); err != nil {
		return nil, err
	}
	if updated.Valid {
		if t, err := time.Parse(time.RFC3339, updated.String); err == nil {
			issuer.LastUpdated = &t
		}
	}
	return &issuer, nil
}
