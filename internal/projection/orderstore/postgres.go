package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL. Schema lives in
// migrations/ and is applied at startup by the consume command.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Record, error) {
	query := `
		SELECT order_id, status, customer_id, items, total, created_at, updated_at
		FROM orders
		WHERE order_id = $1
	`

	rec := &Record{}
	var items []byte
	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.OrderID, &rec.Status, &rec.CustomerID, &items,
		&rec.Total, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	if rec.Items == nil {
		items = []byte("[]")
	}

	query := `
		INSERT INTO orders (order_id, status, customer_id, items, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			customer_id = EXCLUDED.customer_id,
			items = EXCLUDED.items,
			total = EXCLUDED.total,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		rec.OrderID, rec.Status, rec.CustomerID, items,
		rec.Total, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, orderID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	query := `
		SELECT order_id, status, customer_id, items, total, created_at, updated_at
		FROM orders
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec := &Record{}
		var items []byte
		if err := rows.Scan(
			&rec.OrderID, &rec.Status, &rec.CustomerID, &items,
			&rec.Total, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}
