package storage

import (
	"context"
	"fmt"
	"regexp"

	"market-data-hub/src/helpers"
	"market-data-hub/src/models"

	"github.com/lib/pq"
)

// schema.table.field references expand to the values of that column
var tableRefRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSymbolMappings(ctx context.Context, mappings []models.MSymbolMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (`+mappingColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (canonical, provider) DO UPDATE SET
			provider_symbol = EXCLUDED.provider_symbol,
			exchange = EXCLUDED.exchange,
			currency = EXCLUDED.currency,
			market_type = EXCLUDED.market_type,
			updated_at = EXCLUDED.updated_at
	`, d.table("symbol_mappings")))
	if err != nil {
		return helpers.NewDatabaseError("prepare mapping upsert", err)
	}
	defer stmt.Close()

	now := d.Now().UTC()
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

func (d *PostgresDB) LoadSymbolMappings(ctx context.Context) ([]models.MSymbolMapping, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(`SELECT `+mappingColumns+` FROM %s ORDER BY canonical, provider`, d.table("symbol_mappings")))
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

// ResolveSymbols expands schema.table.field entries into the symbols stored in
// that column; every other entry is kept as is.
func (d *PostgresDB) ResolveSymbols(ctx context.Context, raw []string) ([]string, error) {
	var out []string
	for _, sym := range raw {
		m := tableRefRegex.FindStringSubmatch(sym)
		if len(m) != 4 {
			out = append(out, sym)
			continue
		}

		loaded, err := d.GetSymbolsFromTable(ctx, m[1], m[2], m[3])
		if err != nil {
			return out, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
		}
		d.Logger.Info("Loaded %d symbols from %s", len(loaded), sym)
		out = append(out, loaded...)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetSymbolsFromTable(ctx context.Context, schema, table, field string) ([]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.%s`, pq.QuoteIdentifier(field), pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, helpers.NewDatabaseError("query "+schema+"."+table, err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, helpers.NewDatabaseError("scan symbol", err)
		}
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate symbols", err)
	}
	return symbols, nil
}
