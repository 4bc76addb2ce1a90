package core

import (
	"context"
	"fmt"

	"bandkeeper/pkg/domain"
)

// BootstrapSource reports where the initial collection came from.
type BootstrapSource string

const (
	SourceBackend BootstrapSource = "backend"
	SourceSeed    BootstrapSource = "seed"
	SourceEmpty   BootstrapSource = "empty"
)

// Bootstrap fills store from backend, falling back to seed when the backend
// has never been initialized. A nil seed leaves a fresh collection. Loaded
// collections with repeated ids are rejected with DuplicateIdDetected.
func Bootstrap(ctx context.Context, store *MemoryStore, backend, seed domain.Loader) (BootstrapSource, error) {
	collection, err := backend.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load collection: %w", err)
	}
	source := SourceBackend
	if collection.Empty() {
		source = SourceEmpty
		if seed != nil {
			if collection, err = seed.Load(ctx); err != nil {
				return "", fmt.Errorf("load seed: %w", err)
			}
			source = SourceSeed
		}
	}
	if err := store.Seed(collection.Bands, collection.InitializedAt); err != nil {
		return "", err
	}
	return source, nil
}
