package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"bandkeeper/internal/blob"
	"bandkeeper/pkg/domain"
)

// ExportPrefix is the blob key prefix of collection exports.
const ExportPrefix = "exports/"

// ChangePublisher fans out committed changes to downstream consumers.
type ChangePublisher interface {
	Publish(ctx context.Context, changes []Change) error
}

// ExportResult describes an archived collection snapshot.
type ExportResult struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Size  int64  `json:"size_bytes"`
	URL   string `json:"url,omitempty"`
}

type exportDocument struct {
	ExportedAt    time.Time     `json:"exported_at"`
	ExportedBy    string        `json:"exported_by,omitempty"`
	InitializedAt time.Time     `json:"initialized_at"`
	Bands         []domain.Band `json:"bands"`
}

// exportKey names an export after its timestamp plus a random suffix so two
// exports in the same second never collide under create-only stores.
func exportKey(at time.Time) string {
	return fmt.Sprintf("%s%s-%s.json", ExportPrefix, at.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

// archiveSnapshot writes snapshot to store and returns where it landed.
func archiveSnapshot(ctx context.Context, store blob.Store, snapshot domain.Collection, user string, at time.Time) (ExportResult, error) {
	doc := exportDocument{
		ExportedAt:    at,
		ExportedBy:    user,
		InitializedAt: snapshot.InitializedAt,
		Bands:         snapshot.Bands,
	}
	if doc.Bands == nil {
		doc.Bands = []domain.Band{}
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode export: %w", err)
	}
	key := exportKey(at)
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"bands": fmt.Sprint(len(doc.Bands))},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("put %s: %w", key, err)
	}
	res := ExportResult{Key: info.Key, Count: len(doc.Bands), Size: info.Size}
	url, err := store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: 15 * time.Minute})
	switch {
	case err == nil:
		res.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return res, fmt.Errorf("presign %s: %w", key, err)
	}
	return res, nil
}
