package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	_ "modernc.org/sqlite"
)

// rows written per transaction
const sqliteBatchSize = 5000

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
	Now    func() time.Time
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg models.MStorageConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.DBPath == "" {
		return nil, helpers.NewConfigurationError("sqlite: db_path is empty", nil)
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
		Now:    time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(ctx context.Context) error {
	dsn := d.Config.DBPath
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewDatabaseError("create db directory", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}
	d.Logger.Info("SQLite archive ready at %s", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ohlcv_bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			adjusted_close REAL,
			vwap REAL,
			trade_count INTEGER,
			provider TEXT,
			PRIMARY KEY (symbol, timeframe, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS symbol_mappings (
			canonical TEXT NOT NULL,
			provider TEXT NOT NULL,
			provider_symbol TEXT NOT NULL,
			exchange TEXT,
			currency TEXT,
			market_type TEXT,
			updated_at INTEGER,
			PRIMARY KEY (canonical, provider)
		);`,
	}
	for _, q := range statements {
		if _, err := d.DB.ExecContext(ctx, q); err != nil {
			return helpers.NewDatabaseError("create tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// SaveBars upserts in transactions of sqliteBatchSize rows.
func (d *AsyncSQLiteDB) SaveBars(ctx context.Context, bars []models.MOHLCV) error {
	for start := 0; start < len(bars); start += sqliteBatchSize {
		end := min(start+sqliteBatchSize, len(bars))
		if err := d.saveChunk(ctx, bars[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *AsyncSQLiteDB) saveChunk(ctx context.Context, bars []models.MOHLCV) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ohlcv_bars (`+barColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			adjusted_close = excluded.adjusted_close,
			vwap = excluded.vwap,
			trade_count = excluded.trade_count,
			provider = excluded.provider
	`)
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

func (d *AsyncSQLiteDB) LoadBars(ctx context.Context, symbol string, timeframe models.TimeFrame, start, end time.Time) ([]models.MOHLCV, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+barColumns+` FROM ohlcv_bars
		WHERE symbol = ? AND timeframe = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC
	`, symbol, string(timeframe), start.Unix(), end.Unix())
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

func (d *AsyncSQLiteDB) SaveSymbolMappings(ctx context.Context, mappings []models.MSymbolMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbol_mappings (`+mappingColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical, provider) DO UPDATE SET
			provider_symbol = excluded.provider_symbol,
			exchange = excluded.exchange,
			currency = excluded.currency,
			market_type = excluded.market_type,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare mapping upsert", err)
	}
	defer stmt.Close()

	now := d.Now().UTC().Unix()
	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.Canonical, m.Provider, m.ProviderSymbol, m.Exchange, m.Currency, string(m.MarketType), now); err != nil {
			return helpers.NewDatabaseError("upsert mapping "+m.Canonical, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit mappings", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadSymbolMappings(ctx context.Context) ([]models.MSymbolMapping, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+mappingColumns+` FROM symbol_mappings ORDER BY canonical, provider`)
	if err != nil {
		return nil, helpers.NewDatabaseError("query mappings", err)
	}
	out, err := scanMappings(rows)
	if err != nil {
		return nil, helpers.NewDatabaseError("scan mappings", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData(ctx context.Context) error {
	cutoff, days := retentionCutoff(d.Config, d.Now())

	res, err := d.DB.ExecContext(ctx, "DELETE FROM ohlcv_bars WHERE timestamp < ?", cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup bars", err)
	}
	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed: %d bars older than %d days removed", n, days)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
