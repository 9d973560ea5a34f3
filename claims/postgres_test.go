package claims_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimcast/claims"
)

// fakeRows serves fixed rows through the pgx.Rows interface.
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				s := row[i].(string)
				*p = &s
			}
		case *int64:
			*p = row[i].(int64)
		case *float64:
			*p = row[i].(float64)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestReadPostgres(t *testing.T) {
	metro := "Kansas City"
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"2024-01-01", "Johnson", "urban", metro, int64(600000), "emergency", int64(12), 1200.0, 100.0},
		{"2024-01-02", "Ford", "rural", nil, int64(30000), "pharmacy", int64(4), 80.0, 0.0},
	}}}

	records, err := claims.ReadPostgres(context.Background(), q, "public.daily_claims")
	require.NoError(t, err)
	assert.Contains(t, q.query, `"public"."daily_claims"`)
	require.Len(t, records, 2)

	assert.Equal(t, claims.MustParseDate("2024-01-01"), records[0].Date)
	assert.Equal(t, "Kansas City", records[0].Metro)
	assert.Equal(t, 12, records[0].ClaimCount)

	assert.Empty(t, records[1].Metro)
	assert.Equal(t, 20.0, records[1].AvgCostPerClaim, "missing average is derived")
}

func TestReadPostgresErrors(t *testing.T) {
	ctx := context.Background()

	_, err := claims.ReadPostgres(ctx, &fakeQuerier{}, "  ")
	assert.Error(t, err)

	boom := errors.New("connection reset")
	_, err = claims.ReadPostgres(ctx, &fakeQuerier{err: boom}, "claims")
	assert.ErrorIs(t, err, boom)

	_, err = claims.ReadPostgres(ctx, &fakeQuerier{rows: &fakeRows{err: boom}}, "claims")
	assert.ErrorIs(t, err, boom)

	bad := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"2024-01-01", "Johnson", "urban", nil, int64(1), "emergency", int64(-3), 10.0, 0.0},
	}}}
	_, err = claims.ReadPostgres(ctx, bad, "claims")
	assert.ErrorContains(t, err, "row 1")
}
