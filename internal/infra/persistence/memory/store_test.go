package memory

import (
	"context"
	"testing"
	"time"

	"bandkeeper/pkg/domain"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	initAt := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	band := domain.Band{ID: 1, Name: "A", NumberOfParticipants: 2, SinglesCount: domain.IntPtr(3)}
	if err := store.Save(ctx, domain.Collection{Bands: []domain.Band{band}, InitializedAt: initAt}); err != nil {
		t.Fatalf("save: %v", err)
	}
	*band.SinglesCount = 99

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Bands) != 1 || *got.Bands[0].SinglesCount != 3 || !got.InitializedAt.Equal(initAt) {
		t.Fatalf("unexpected collection %+v", got)
	}
	if store.Saves() != 1 {
		t.Fatalf("expected one save, got %d", store.Saves())
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStoreWith(domain.Collection{Bands: []domain.Band{{ID: 1}}})
	if _, err := store.Load(ctx); err == nil {
		t.Fatalf("expected error for cancelled load")
	}
	if err := store.Save(ctx, domain.Collection{}); err == nil {
		t.Fatalf("expected error for cancelled save")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
