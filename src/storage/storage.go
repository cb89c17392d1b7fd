package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/utils"
)

// NewDatabase picks the archive backend named by cfg.DBType.
func NewDatabase(cfg models.MStorageConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch strings.ToLower(cfg.DBType) {
	case "", "sqlite":
		return NewAsyncSQLiteDB(cfg, log.Named("SQLite"))
	case "postgres", "postgresql":
		return NewPostgresDB(cfg, log.Named("Postgres"))
	}
	return nil, helpers.NewConfigurationError(fmt.Sprintf("unknown db_type %q", cfg.DBType), nil)
}

// -----------------------------------------------------------------------------

const barColumns = "symbol, timeframe, timestamp, open, high, low, close, volume, adjusted_close, vwap, trade_count, provider"

// barArgs flattens a bar in barColumns order. Timestamps are unix seconds.
func barArgs(b models.MOHLCV) []any {
	return []any{
		b.Symbol, string(b.TimeFrame), b.Timestamp.Unix(),
		b.Open, b.High, b.Low, b.Close, b.Volume,
		nullFloat(b.AdjustedClose), nullFloat(b.VWAP), nullInt(b.TradeCount),
		b.Provider,
	}
}

// -----------------------------------------------------------------------------

func scanBars(rows *sql.Rows) ([]models.MOHLCV, error) {
	defer rows.Close()

	var bars []models.MOHLCV
	for rows.Next() {
		var (
			b          models.MOHLCV
			tf         string
			ts         int64
			adj, vwap  sql.NullFloat64
			tradeCount sql.NullInt64
		)
		if err := rows.Scan(&b.Symbol, &tf, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &adj, &vwap, &tradeCount, &b.Provider); err != nil {
			return nil, err
		}
		b.TimeFrame = models.TimeFrame(tf)
		b.Timestamp = time.Unix(ts, 0).UTC()
		if adj.Valid {
			b.AdjustedClose = &adj.Float64
		}
		if vwap.Valid {
			b.VWAP = &vwap.Float64
		}
		if tradeCount.Valid {
			b.TradeCount = &tradeCount.Int64
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// -----------------------------------------------------------------------------

const mappingColumns = "canonical, provider, provider_symbol, exchange, currency, market_type"

func scanMappings(rows *sql.Rows) ([]models.MSymbolMapping, error) {
	defer rows.Close()

	var out []models.MSymbolMapping
	for rows.Next() {
		var m models.MSymbolMapping
		var mt string
		if err := rows.Scan(&m.Canonical, &m.Provider, &m.ProviderSymbol, &m.Exchange, &m.Currency, &mt); err != nil {
			return nil, err
		}
		m.MarketType = models.MarketType(mt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// retentionCutoff is the unix second before which bars are dropped.
func retentionCutoff(cfg models.MStorageConfig, now time.Time) (int64, int) {
	days := cfg.RetentionDays
	if days <= 0 {
		days = utils.DefaultRetentionDays
	}
	return now.UTC().AddDate(0, 0, -days).Unix(), days
}

// -----------------------------------------------------------------------------

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
