package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
	Now    func() time.Time
}

// -----------------------------------------------------------------------------

// NewPostgresDB uses the configured schema, else one named after the executable.
func NewPostgresDB(cfg models.MStorageConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.DBConnectionString == "" {
		return nil, helpers.NewConfigurationError("postgres: db_connection_string is empty", nil)
	}

	schema := cfg.Schema
	if schema == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		name := filepath.Base(exe)
		schema = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return &PostgresDB{
		Config: cfg,
		Schema: schema,
		Logger: log,
		Now:    time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

// table returns a quoted schema-qualified identifier.
func (d *PostgresDB) table(name string) string {
	return pq.QuoteIdentifier(d.Schema) + "." + pq.QuoteIdentifier(name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}
	d.DB = db

	if _, err := d.DB.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+pq.QuoteIdentifier(d.Schema)); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}
	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				symbol TEXT NOT NULL,
				timeframe TEXT NOT NULL,
				timestamp BIGINT NOT NULL,
				open DOUBLE PRECISION,
				high DOUBLE PRECISION,
				low DOUBLE PRECISION,
				close DOUBLE PRECISION,
				volume DOUBLE PRECISION,
				adjusted_close DOUBLE PRECISION,
				vwap DOUBLE PRECISION,
				trade_count BIGINT,
				provider TEXT,
				PRIMARY KEY (symbol, timeframe, timestamp)
			);
		`, d.table("ohlcv_bars")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				canonical TEXT NOT NULL,
				provider TEXT NOT NULL,
				provider_symbol TEXT NOT NULL,
				exchange TEXT,
				currency TEXT,
				market_type TEXT,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (canonical, provider)
			);
		`, d.table("symbol_mappings")),
	}
	for _, q := range statements {
		if _, err := d.DB.ExecContext(ctx, q); err != nil {
			return helpers.NewDatabaseError("create tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveBars(ctx context.Context, bars []models.MOHLCV) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (`+barColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			adjusted_close = EXCLUDED.adjusted_close,
			vwap = EXCLUDED.vwap,
			trade_count = EXCLUDED.trade_count,
			provider = EXCLUDED.provider
	`, d.table("ohlcv_bars")))
	if err != nil {
		return helpers.NewDatabaseError("prepare bar upsert", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, barArgs(b)...); err != nil {
			return helpers.NewDatabaseError("upsert bar "+b.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit bars", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadBars(ctx context.Context, symbol string, timeframe models.TimeFrame, start, end time.Time) ([]models.MOHLCV, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+barColumns+` FROM %s
		WHERE symbol = $1 AND timeframe = $2 AND timestamp BETWEEN $3 AND $4
		ORDER BY timestamp ASC
	`, d.table("ohlcv_bars")), symbol, string(timeframe), start.Unix(), end.Unix())
	if err != nil {
		return nil, helpers.NewDatabaseError("query bars", err)
	}
	bars, err := scanBars(rows)
	if err != nil {
		return nil, helpers.NewDatabaseError("scan bars", err)
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData(ctx context.Context) error {
	cutoff, days := retentionCutoff(d.Config, d.Now())

	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, d.table("ohlcv_bars")), cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup bars", err)
	}
	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed: %d bars older than %d days removed", n, days)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
