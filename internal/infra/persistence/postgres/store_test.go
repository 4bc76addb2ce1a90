package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"bandkeeper/internal/infra/persistence/postgres/testutil"
	"bandkeeper/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("expected pgx driver, got %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := openStub(t)
	var tables int
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			tables++
		}
	}
	if tables != 2 {
		t.Fatalf("expected both tables to be created, got execs: %v", conn.Execs)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	initAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	want := domain.Collection{
		InitializedAt: initAt,
		Bands: []domain.Band{
			{ID: 3, Name: "Zeta", Coordinates: domain.Coordinates{X: 1, Y: 2}, CreationDate: created, NumberOfParticipants: 2, Genre: domain.GenrePtr(domain.GenrePostPunk), Owner: "bob"},
			{ID: 1, Name: "Alpha", Coordinates: domain.Coordinates{X: 5, Y: -3}, CreationDate: created, NumberOfParticipants: 4, SinglesCount: domain.IntPtr(6), Label: &domain.Label{Name: "Sub Pop"}},
		},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rows := conn.Rows("musicbands"); len(rows) != 2 || rows[0]["position"] != int64(0) {
		t.Fatalf("unexpected stored rows %v", rows)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.InitializedAt.Equal(initAt) {
		t.Fatalf("initialization date mismatch %v", got.InitializedAt)
	}
	if len(got.Bands) != 2 || got.Bands[0].ID != 3 || got.Bands[1].ID != 1 {
		t.Fatalf("unexpected order %+v", got.Bands)
	}
	for i := range want.Bands {
		if !got.Bands[i].Equal(want.Bands[i]) || got.Bands[i].Owner != want.Bands[i].Owner {
			t.Fatalf("band %d mismatch: %+v vs %+v", i, got.Bands[i], want.Bands[i])
		}
	}

	// saving again replaces rows instead of appending
	if err := store.Save(ctx, domain.Collection{InitializedAt: initAt, Bands: want.Bands[:1]}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if rows := conn.Rows("musicbands"); len(rows) != 1 {
		t.Fatalf("expected 1 row after second save, got %d", len(rows))
	}
	if rows := conn.Rows("musicbands_initialization_date"); len(rows) != 1 {
		t.Fatalf("expected a single initialization row, got %d", len(rows))
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	store, _ := openStub(t)
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty collection, got %+v", got)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	band := domain.Collection{Bands: []domain.Band{{ID: 1, Name: "A", NumberOfParticipants: 1}}}

	t.Run("ping", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailPing = true
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore(ctx, "dsn"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("begin", func(t *testing.T) {
		store, conn := openStub(t)
		conn.FailBegin = true
		if err := store.Save(ctx, band); err == nil || !strings.Contains(err.Error(), "begin tx") {
			t.Fatalf("expected begin error, got %v", err)
		}
	})
	t.Run("insert", func(t *testing.T) {
		store, conn := openStub(t)
		conn.FailTables = map[string]bool{"musicbands": true}
		if err := store.Save(ctx, band); err == nil {
			t.Fatalf("expected insert error")
		}
		if _, err := store.Load(ctx); err == nil || !strings.Contains(err.Error(), "select bands") {
			t.Fatalf("expected select error, got %v", err)
		}
	})
	t.Run("commit", func(t *testing.T) {
		store, conn := openStub(t)
		conn.FailCommit = true
		if err := store.Save(ctx, band); err == nil || !strings.Contains(err.Error(), "commit") {
			t.Fatalf("expected commit error, got %v", err)
		}
	})
}
