package storage

import (
	"path/filepath"
	"testing"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	db, err := NewAsyncSQLiteDB(models.MStorageConfig{
		DBPath:        filepath.Join(t.TempDir(), "archive", "test.db"),
		RetentionDays: 30,
	}, logger.NewLogger(nil, "SQLiteTest"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize(t.Context()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func bar(sym string, ts time.Time, closePrice float64) models.MOHLCV {
	return models.MOHLCV{
		Symbol: sym, Timestamp: ts, TimeFrame: models.TimeFrame1Day,
		Open: closePrice - 1, High: closePrice + 1, Low: closePrice - 2, Close: closePrice,
		Volume: 1000, Provider: "yahoo",
	}
}

func TestSaveBarsUpsertsAndLoadsAscending(t *testing.T) {
	t.Parallel()

	// Arrange
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	vwap := 100.5
	trades := int64(42)
	withExtras := bar("AAPL", d1, 100)
	withExtras.VWAP = &vwap
	withExtras.TradeCount = &trades

	// Act
	require.NoError(t, db.SaveBars(t.Context(), []models.MOHLCV{bar("AAPL", d2, 101), withExtras, bar("MSFT", d1, 300)}))
	require.NoError(t, db.SaveBars(t.Context(), []models.MOHLCV{bar("AAPL", d2, 102)}))
	bars, err := db.LoadBars(t.Context(), "AAPL", models.TimeFrame1Day, d1, d2)

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, d1, bars[0].Timestamp)
	require.Equal(t, 100.5, *bars[0].VWAP)
	require.Equal(t, int64(42), *bars[0].TradeCount)
	require.Nil(t, bars[0].AdjustedClose)
	require.Equal(t, 102.0, bars[1].Close, "second save must overwrite")
	require.Equal(t, models.TimeFrame1Day, bars[1].TimeFrame)
}

func TestLoadBarsFiltersTimeframeAndRange(t *testing.T) {
	t.Parallel()

	// Arrange
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	hourly := bar("AAPL", d1, 100)
	hourly.TimeFrame = models.TimeFrame1Hour
	require.NoError(t, db.SaveBars(t.Context(), []models.MOHLCV{bar("AAPL", d1, 100), hourly, bar("AAPL", d1.AddDate(0, 0, 10), 110)}))

	// Act
	bars, err := db.LoadBars(t.Context(), "AAPL", models.TimeFrame1Day, d1, d1.AddDate(0, 0, 5))

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestSymbolMappingsRoundTrip(t *testing.T) {
	t.Parallel()

	// Arrange
	db := newTestDB(t)
	mappings := []models.MSymbolMapping{
		{Canonical: "BRK.B", Provider: "yahoo", ProviderSymbol: "BRK-B", Exchange: "XNYS", Currency: "USD", MarketType: models.MarketUSStock},
		{Canonical: "SAP.DE", Provider: "finnhub", ProviderSymbol: "SAP.DE"},
	}

	// Act
	require.NoError(t, db.SaveSymbolMappings(t.Context(), mappings))
	mappings[0].ProviderSymbol = "BRK/B"
	require.NoError(t, db.SaveSymbolMappings(t.Context(), mappings[:1]))
	loaded, err := db.LoadSymbolMappings(t.Context())

	// Assert
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "BRK/B", loaded[0].ProviderSymbol)
	require.Equal(t, models.MarketUSStock, loaded[0].MarketType)
	require.Equal(t, "SAP.DE", loaded[1].Canonical)
}

func TestCleanupOldDataHonorsRetention(t *testing.T) {
	t.Parallel()

	// Arrange
	db := newTestDB(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db.Now = func() time.Time { return now }
	old := bar("AAPL", now.AddDate(0, 0, -31), 90)
	recent := bar("AAPL", now.AddDate(0, 0, -1), 100)
	require.NoError(t, db.SaveBars(t.Context(), []models.MOHLCV{old, recent}))

	// Act
	require.NoError(t, db.CleanupOldData(t.Context()))
	bars, err := db.LoadBars(t.Context(), "AAPL", models.TimeFrame1Day, now.AddDate(-1, 0, 0), now)

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.Equal(t, recent.Timestamp, bars[0].Timestamp)
}

func TestNewDatabaseByType(t *testing.T) {
	t.Parallel()

	// Act
	sqlite, sqliteErr := NewDatabase(models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "x.db")}, nil)
	pg, pgErr := NewDatabase(models.MStorageConfig{DBType: "postgres", DBConnectionString: "postgres://localhost/x", Schema: "hub"}, nil)
	_, unknownErr := NewDatabase(models.MStorageConfig{DBType: "oracle"}, nil)

	// Assert
	require.NoError(t, sqliteErr)
	require.IsType(t, &AsyncSQLiteDB{}, sqlite)
	require.NoError(t, pgErr)
	require.Equal(t, `"hub"."ohlcv_bars"`, pg.(*PostgresDB).table("ohlcv_bars"))
	var target *helpers.ConfigurationError
	require.ErrorAs(t, unknownErr, &target)
}
