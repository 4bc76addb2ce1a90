// Package sqlite persists the band collection to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bandkeeper/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.Backend = (*Store)(nil)

var schema = []string{`CREATE TABLE IF NOT EXISTS musicbands (
	id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	coordinate_x INTEGER NOT NULL,
	coordinate_y REAL NOT NULL,
	creation_date TEXT NOT NULL,
	number_of_participants INTEGER NOT NULL,
	singles_count INTEGER,
	music_genre TEXT,
	label TEXT,
	owner TEXT
)`, `CREATE TABLE IF NOT EXISTS musicbands_initialization_date (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	initialized_at TEXT NOT NULL
)`}

const selectBands = `SELECT id, name, coordinate_x, coordinate_y, creation_date, number_of_participants,
	singles_count, music_genre, label, owner FROM musicbands ORDER BY position`

const insertBand = `INSERT INTO musicbands (id, position, name, coordinate_x, coordinate_y, creation_date,
	number_of_participants, singles_count, music_genre, label, owner) VALUES (?,?,?,?,?,?,?,?,?,?,?)`

// Store rewrites the whole collection in one transaction on every Save.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path and ensures the
// schema exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "bandkeeper.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases intact
	db.SetMaxOpenConns(1)
	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Load reads the collection in its stored order.
func (s *Store) Load(ctx context.Context) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var collection domain.Collection
	var initRaw string
	err := s.db.QueryRowContext(ctx, `SELECT initialized_at FROM musicbands_initialization_date WHERE id = 1`).Scan(&initRaw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.Collection{}, fmt.Errorf("select initialization date: %w", err)
	default:
		if collection.InitializedAt, err = time.Parse(time.RFC3339Nano, initRaw); err != nil {
			return domain.Collection{}, fmt.Errorf("decode initialization date: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, selectBands)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("select bands: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			b       domain.Band
			created string
			singles sql.NullInt64
			genre   sql.NullString
			label   sql.NullString
			owner   sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Coordinates.X, &b.Coordinates.Y, &created,
			&b.NumberOfParticipants, &singles, &genre, &label, &owner); err != nil {
			return domain.Collection{}, fmt.Errorf("scan band: %w", err)
		}
		if b.CreationDate, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return domain.Collection{}, fmt.Errorf("decode creation date of band %d: %w", b.ID, err)
		}
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
	return collection, nil
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, collection domain.Collection) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM musicbands`); err != nil {
		return fmt.Errorf("clear bands: %w", err)
	}
	for i, b := range collection.Bands {
		if _, err := tx.ExecContext(ctx, insertBand,
			b.ID, i, b.Name, b.Coordinates.X, b.Coordinates.Y,
			b.CreationDate.UTC().Format(time.RFC3339Nano), b.NumberOfParticipants,
			nullInt(b.SinglesCount), nullGenre(b.Genre), nullLabel(b.Label), b.Owner,
		); err != nil {
			return fmt.Errorf("insert band %d: %w", b.ID, err)
		}
	}
	if !collection.InitializedAt.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO musicbands_initialization_date(id, initialized_at) VALUES(1, ?)
			ON CONFLICT(id) DO UPDATE SET initialized_at=excluded.initialized_at`,
			collection.InitializedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("upsert initialization date: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

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
