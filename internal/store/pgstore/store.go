// Package pgstore implements the trip store on Postgres via pgx.
// One row per bundle; trips are kept as a jsonb document, matching the
// wire shape, so the store never needs to understand leg structure.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/store"
	"github.com/avdheim/transit-planner/internal/transit"
	"github.com/avdheim/transit-planner/migrations"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Tests can pass a transaction for free per-test isolation.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type closer interface {
	Close()
}

type Store struct {
	db db
}

func New(db db) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded migrations through goose.
func Migrate(sqlDB *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("pgstore: set dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, b *transit.Bundle) (out *transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("postgres", "insert", err) }()

	trips, err := transit.MarshalTrips(b.Trips)
	if err != nil {
		return nil, fmt.Errorf("pgstore: marshal trips: %w", err)
	}

	const q = `
		INSERT INTO trip_bundles (event_id, data_source, trips)
		VALUES (@event_id, @data_source, @trips)
		RETURNING id`

	cp := b.Clone()
	row := s.db.QueryRow(ctx, q, pgx.NamedArgs{
		"event_id":    cp.EventID,
		"data_source": cp.DataSource,
		"trips":       trips,
	})
	if err := row.Scan(&cp.ID); err != nil {
		return nil, fmt.Errorf("pgstore: insert: %w", err)
	}
	return cp, nil
}

func (s *Store) Update(ctx context.Context, b *transit.Bundle) (err error) {
	defer func() { observability.ObserveStoreOp("postgres", "update", err) }()

	trips, err := transit.MarshalTrips(b.Trips)
	if err != nil {
		return fmt.Errorf("pgstore: marshal trips: %w", err)
	}

	const q = `
		UPDATE trip_bundles
		SET event_id = @event_id, data_source = @data_source, trips = @trips
		WHERE id = @id`

	tag, err := s.db.Exec(ctx, q, pgx.NamedArgs{
		"id":          b.ID,
		"event_id":    b.EventID,
		"data_source": b.DataSource,
		"trips":       trips,
	})
	if err != nil {
		return fmt.Errorf("pgstore: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (err error) {
	defer func() { observability.ObserveStoreOp("postgres", "delete", err) }()

	const q = `DELETE FROM trip_bundles WHERE id = @id`

	tag, err := s.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByEventID(ctx context.Context, eventID int64) (err error) {
	defer func() { observability.ObserveStoreOp("postgres", "delete_by_event", err) }()

	const q = `DELETE FROM trip_bundles WHERE event_id = @event_id`

	if _, err := s.db.Exec(ctx, q, pgx.NamedArgs{"event_id": eventID}); err != nil {
		return fmt.Errorf("pgstore: delete by event: %w", err)
	}
	return nil
}

func (s *Store) FetchByID(ctx context.Context, id int64) (out *transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("postgres", "fetch_by_id", err) }()

	const q = `
		SELECT id, event_id, data_source, trips
		FROM trip_bundles
		WHERE id = @id`

	b, err := scanBundle(s.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) FetchByEventID(ctx context.Context, eventID int64) (out []*transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("postgres", "fetch_by_event", err) }()

	const q = `
		SELECT id, event_id, data_source, trips
		FROM trip_bundles
		WHERE event_id = @event_id
		ORDER BY id`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"event_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("pgstore: fetch by event: %w", err)
	}
	defer rows.Close()

	var bundles []*transit.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: fetch by event: %w", err)
	}
	return bundles, nil
}

func (s *Store) Close() error {
	if c, ok := s.db.(closer); ok {
		c.Close()
	}
	return nil
}

func scanBundle(row pgx.Row) (*transit.Bundle, error) {
	var (
		b     transit.Bundle
		trips string
	)
	if err := row.Scan(&b.ID, &b.EventID, &b.DataSource, &trips); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: scan: %w", err)
	}

	t, err := transit.UnmarshalTrips(trips)
	if err != nil {
		return nil, fmt.Errorf("pgstore: unmarshal trips on row %d: %w", b.ID, err)
	}
	b.Trips = t
	return &b, nil
}
