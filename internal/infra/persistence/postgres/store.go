// Package postgres persists the band collection to PostgreSQL through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"bandkeeper/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/bandkeeper?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS musicbands (
		id BIGINT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		coordinate_x BIGINT NOT NULL,
		coordinate_y DOUBLE PRECISION NOT NULL,
		creation_date TIMESTAMPTZ NOT NULL,
		number_of_participants INTEGER NOT NULL CHECK (number_of_participants > 0),
		singles_count INTEGER,
		music_genre TEXT,
		label TEXT,
		owner TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS musicbands_initialization_date (
		id INTEGER PRIMARY KEY,
		initialized_at TIMESTAMPTZ NOT NULL
	)`,
}

const selectBands = `SELECT id, name, coordinate_x, coordinate_y, creation_date, number_of_participants, singles_count, music_genre, label, owner FROM musicbands ORDER BY position`

const insertBand = `INSERT INTO musicbands (id, position, name, coordinate_x, coordinate_y, creation_date, number_of_participants, singles_count, music_genre, label, owner) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

const upsertInitDate = `INSERT INTO musicbands_initialization_date (id, initialized_at) VALUES ($1,$2) ON CONFLICT (id) DO UPDATE SET initialized_at = EXCLUDED.initialized_at`

// Store rewrites the whole collection in one transaction on every Save.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore connects to dsn (falling back to a local default) and ensures
// the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Load reads the collection in its stored order.
func (s *Store) Load(ctx context.Context) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var collection domain.Collection
	err := s.db.QueryRowContext(ctx, `SELECT initialized_at FROM musicbands_initialization_date WHERE id = 1`).Scan(&collection.InitializedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.Collection{}, fmt.Errorf("select initialization date: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, selectBands)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("select bands: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			b       domain.Band
			singles sql.NullInt64
			genre   sql.NullString
			label   sql.NullString
			owner   sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Coordinates.X, &b.Coordinates.Y, &b.CreationDate,
			&b.NumberOfParticipants, &singles, &genre, &label, &owner); err != nil {
			return domain.Collection{}, fmt.Errorf("scan band: %w", err)
		}
		b.CreationDate = b.CreationDate.UTC()
		if singles.Valid {
			b.SinglesCount = domain.IntPtr(int(singles.Int64))
		}
		if genre.Valid {
			g, err := domain.ParseGenre(genre.String)
			if err != nil {
				return domain.Collection{}, fmt.Errorf("decode genre of band %d: %w", b.ID, err)
			}
			b.Genre = &g
		}
		if label.Valid {
			b.Label = &domain.Label{Name: label.String}
		}
		b.Owner = owner.String
		collection.Bands = append(collection.Bands, b)
	}
	if err := rows.Err(); err != nil {
		return domain.Collection{}, fmt.Errorf("iterate bands: %w", err)
	}
	collection.InitializedAt = collection.InitializedAt.UTC()
	return collection, nil
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, collection domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE musicbands`); err != nil {
		return fmt.Errorf("truncate musicbands: %w", err)
	}
	for i, b := range collection.Bands {
		if _, err := tx.ExecContext(ctx, insertBand,
			b.ID, int64(i), b.Name, b.Coordinates.X, b.Coordinates.Y,
			b.CreationDate.UTC(), int64(b.NumberOfParticipants),
			nullInt(b.SinglesCount), nullGenre(b.Genre), nullLabel(b.Label), b.Owner,
		); err != nil {
			return fmt.Errorf("insert band %d: %w", b.ID, err)
		}
	}
	if !collection.InitializedAt.IsZero() {
		if _, err := tx.ExecContext(ctx, upsertInitDate, int64(1), collection.InitializedAt.UTC()); err != nil {
			return fmt.Errorf("upsert initialization date: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullGenre(g *domain.MusicGenre) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: g.String(), Valid: true}
}

func nullLabel(l *domain.Label) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: l.Name, Valid: true}
}
