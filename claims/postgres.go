package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool used by the Postgres loader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres connects to dsn, reads the whole claims table and indexes it.
func LoadPostgres(ctx context.Context, dsn, table string) (*History, error) {
	records, err := ReadPostgresDSN(ctx, dsn, table)
	if err != nil {
		return nil, err
	}
	return NewHistory(records), nil
}

// ReadPostgresDSN connects to dsn and reads the whole claims table.
func ReadPostgresDSN(ctx context.Context, dsn, table string) ([]Record, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	return ReadPostgres(ctx, pool, table)
}

// ReadPostgres selects every row of table. The table name may be schema
// qualified ("public.claims").
func ReadPostgres(ctx context.Context, q Querier, table string) ([]Record, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	ident := pgx.Identifier(strings.Split(table, "."))

	query := `
        SELECT date::text, county, coalesce(area_type, ''), metro,
               coalesce(population, 0)::bigint, claim_type,
               claim_count::bigint, total_cost::float8,
               coalesce(avg_cost_per_claim, 0)::float8
        FROM ` + ident.Sanitize() + `
        ORDER BY date, county, claim_type`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var row ParquetRow
		if err := rows.Scan(&row.Date, &row.County, &row.AreaType, &row.Metro,
			&row.Population, &row.ClaimType, &row.ClaimCount, &row.TotalCost,
			&row.AvgCostPerClaim); err != nil {
			return nil, fmt.Errorf("scan claims: %w", err)
		}
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	return records, nil
}
