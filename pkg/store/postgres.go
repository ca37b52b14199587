package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresStore persists the aggregated series in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS aggregated_prices (
			symbol    VARCHAR(32)    NOT NULL,
			bucket_ts TIMESTAMPTZ    NOT NULL,
			price     NUMERIC(30,10) NOT NULL,
			sources   TEXT[]         NOT NULL,
			filled    BOOLEAN        NOT NULL,
			PRIMARY KEY (symbol, bucket_ts)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append upserts one point. Re-appending the same bucket overwrites it, which
// keeps retries idempotent.
func (s *PostgresStore) Append(ctx context.Context, point AggregatedPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregated_prices (symbol, bucket_ts, price, sources, filled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, bucket_ts)
		DO UPDATE SET price = EXCLUDED.price, sources = EXCLUDED.sources, filled = EXCLUDED.filled`,
		point.Symbol,
		point.Timestamp.UTC(),
		point.Price.String(),
		pq.Array(point.Sources),
		point.Filled,
	)
	if err != nil {
		return fmt.Errorf("failed to append point: %w", err)
	}
	return nil
}

// QueryRange returns points in [from, to] ordered by bucket timestamp.
func (s *PostgresStore) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]AggregatedPoint, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, bucket_ts, price, sources, filled
		FROM aggregated_prices
		WHERE symbol = $1 AND bucket_ts >= $2 AND bucket_ts <= $3
		ORDER BY bucket_ts ASC`,
		symbol, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query range: %w", err)
	}
	defer rows.Close()

	var result []AggregatedPoint
	for rows.Next() {
		var (
			point    AggregatedPoint
			priceStr string
			srcs     pq.StringArray
		)
		if err := rows.Scan(&point.Symbol, &point.Timestamp, &priceStr, &srcs, &point.Filled); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		point.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		point.Sources = []string(srcs)
		point.Timestamp = point.Timestamp.UTC()
		result = append(result, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return result, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
