package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/lib/pq"
)

// Postgres batch constants
const (
	postgresMaxParams = 65535
	postgresBatchSize = postgresMaxParams / paramsPerRow // 6553 rows

	defaultSchema = "mse"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) *PostgresDB {
	return &PostgresDB{
		Config: cfg,
		Schema: defaultSchema,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// table returns the schema-qualified, quoted table name.
func (d *PostgresDB) table(name string) string {
	return pq.QuoteIdentifier(d.Schema) + "." + pq.QuoteIdentifier(name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(d.Schema))); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables(ctx context.Context) error {
	issuers, prices, news := d.table("issuers"), d.table("stock_prices"), d.table("issuer_news")

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				code VARCHAR(16) NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				last_updated TIMESTAMPTZ
			);
		`, issuers),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				issuer_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				date DATE NOT NULL,
				last_trade_price NUMERIC(10,2) NOT NULL DEFAULT 0,
				max_price NUMERIC(10,2) NOT NULL DEFAULT 0,
				min_price NUMERIC(10,2) NOT NULL DEFAULT 0,
				avg_price NUMERIC(10,2) NOT NULL DEFAULT 0,
				price_change NUMERIC(10,2) NOT NULL DEFAULT 0,
				volume BIGINT NOT NULL DEFAULT 0,
				turnover_best NUMERIC(15,2) NOT NULL DEFAULT 0,
				total_turnover NUMERIC(15,2) NOT NULL DEFAULT 0,
				UNIQUE (issuer_id, date)
			);
		`, prices, issuers),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				issuer_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				published_date DATE NOT NULL,
				source_url TEXT NOT NULL,
				UNIQUE (issuer_id, source_url)
			);
		`, news, issuers),
	}

	for _, stmt := range statements {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) UpsertIssuer(ctx context.Context, code, name string) (*models.MIssuer, error) {
	row := d.DB.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, code, name, last_updated
	`, d.table("issuers")), code, name)

	issuer, err := scanPostgresIssuer(row)
	if err != nil {
		return nil, helpers.NewPersistenceFailureError(err, "upsert issuer %s", code)
	}
	return issuer, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetIssuer(ctx context.Context, code string) (*models.MIssuer, error) {
	row := d.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT id, code, name, last_updated FROM %s WHERE code = $1`, d.table("issuers")), code)
	issuer, err := scanPostgresIssuer(row)
	if err == sql.ErrNoRows {
		return nil, helpers.NewNotFoundError("issuer %s not found", code)
	}
	return issuer, err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListIssuers(ctx context.Context) ([]models.MIssuer, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, code, name, last_updated FROM %s ORDER BY code`, d.table("issuers")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MIssuer
	for rows.Next() {
		issuer, err := scanPostgresIssuer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *issuer)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) TouchIssuer(ctx context.Context, issuerID int64, at time.Time) error {
	_, err := d.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET last_updated = $1 WHERE id = $2 AND (last_updated IS NULL OR last_updated < $1)`, d.table("issuers")), at.UTC(), issuerID)
	return err
}

// -----------------------------------------------------------------------------

// UpsertStockPrices writes every row in a single transaction using multi-row
// INSERT ... ON CONFLICT statements.
func (d *PostgresDB) UpsertStockPrices(ctx context.Context, prices []models.MStockPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewPersistenceFailureError(err, "begin price batch")
	}
	defer tx.Rollback()

	for _, batch := range splitBatches(prices, postgresBatchSize) {
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s ON CONFLICT (issuer_id, date) DO UPDATE SET %s`,
			d.table("stock_prices"), joinColumns(),
			valuesClause(len(batch), paramsPerRow, func(n int) string { return fmt.Sprintf("$%d", n) }),
			upsertAssignments())

		args := priceArgs(batch, func(r models.MPriceRow) interface{} { return r.Date })
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

func (d *PostgresDB) GetStockPrices(ctx context.Context, issuerID int64) ([]models.MStockPrice, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE issuer_id = $1 ORDER BY date ASC`, joinColumns(), d.table("stock_prices")), issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MStockPrice
	for rows.Next() {
		var p models.MStockPrice
		if err := rows.Scan(&p.IssuerID, &p.Date, &p.LastTradePrice, &p.MaxPrice, &p.MinPrice, &p.AvgPrice,
			&p.PriceChange, &p.Volume, &p.TurnoverBest, &p.TotalTurnover); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ClearStockPrices(ctx context.Context) (int64, error) {
	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, d.table("stock_prices")))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveNews(ctx context.Context, items []models.MIssuerNews) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (issuer_id, title, content, published_date, source_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (issuer_id, source_url) DO NOTHING
	`, d.table("issuer_news")))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, n := range items {
		res, err := stmt.ExecContext(ctx, n.IssuerID, n.Title, n.Content, n.PublishedDate, n.SourceURL)
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

func (d *PostgresDB) ListNews(ctx context.Context, issuerID int64) ([]models.MIssuerNews, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, issuer_id, title, content, published_date, source_url
		FROM %s WHERE issuer_id = $1 ORDER BY published_date DESC, id DESC
	`, d.table("issuer_news")), issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MIssuerNews
	for rows.Next() {
		var n models.MIssuerNews
		if err := rows.Scan(&n.ID, &n.IssuerID, &n.Title, &n.Content, &n.PublishedDate, &n.SourceURL); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListNewsForContent(ctx context.Context, emptyOnly bool) ([]models.MIssuerNews, error) {
	query := fmt.Sprintf(`SELECT id, issuer_id, title, content, published_date, source_url FROM %s`, d.table("issuer_news"))
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
		if err := rows.Scan(&n.ID, &n.IssuerID, &n.Title, &n.Content, &n.PublishedDate, &n.SourceURL); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (d *PostgresDB) UpdateNewsContent(ctx context.Context, newsID int64, content string) error {
	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET content = $1 WHERE id = $2`, d.table("issuer_news")), content, newsID)
	if err != nil {
		return helpers.NewPersistenceFailureError(err, "update news %d", newsID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return helpers.NewNotFoundError("news %d not found", newsID)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) BatchLimit() int { return postgresBatchSize }

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func scanPostgresIssuer(row rowScanner) (*models.MIssuer, error) {
	var issuer models.MIssuer
	var updated sql.NullTime
	if err := row.Scan(&issuer.ID, &issuer.Code, &issuer.Name, &updated); err != nil {
		return nil, err
	}
	if updated.Valid {
		t := updated.Time.UTC()
		issuer.LastUpdated = &t
	}
	return &issuer, nil
}
