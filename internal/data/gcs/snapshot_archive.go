// Package gcs archives canonical snapshot documents to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/snapshot"
)

const contentTypeJSON = "application/json"

// objectStore is the subset of bucket operations the archive needs
type objectStore interface {
	put(ctx context.Context, name string, data []byte, metadata map[string]string) error
	get(ctx context.Context, name string) ([]byte, error)
}

// SnapshotArchive writes one object per snapshot at {prefix}/{twin_id}/{snapshot_id}.json
type SnapshotArchive struct {
	client *storage.Client
	store  objectStore
	prefix string
	logger *slog.Logger
}

// NewSnapshotArchive creates a storage client using Application Default Credentials
func NewSnapshotArchive(ctx context.Context, logger *slog.Logger, cfg *config.ArchiveConfig) (*SnapshotArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &SnapshotArchive{
		client: client,
		store:  &bucketStore{bucket: client.Bucket(cfg.Bucket)},
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

func (a *SnapshotArchive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// ObjectName returns the archive path of a snapshot
func ObjectName(prefix string, twinID, snapshotID uuid.UUID) string {
	return path.Join(prefix, twinID.String(), snapshotID.String()+".json")
}

// Archive stores the canonical document; the object bytes hash to the snapshot's content hash
func (a *SnapshotArchive) Archive(ctx context.Context, s *snapshot.Snapshot) error {
	doc, err := snapshot.CanonicalDocument(s)
	if err != nil {
		return fmt.Errorf("failed to canonicalize snapshot: %w", err)
	}

	name := ObjectName(a.prefix, s.TwinID, s.ID)
	metadata := map[string]string{
		"content_hash":    s.ContentHash,
		"weights_version": s.WeightsVersion,
	}
	if err := a.store.put(ctx, name, doc, metadata); err != nil {
		a.logger.Error("Failed to archive snapshot", "snapshot_id", s.ID.String(), "object", name, "error", err)
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}

	a.logger.Debug("Archived snapshot", "snapshot_id", s.ID.String(), "object", name)
	return nil
}

// Fetch returns the archived canonical document of a snapshot
func (a *SnapshotArchive) Fetch(ctx context.Context, twinID, snapshotID uuid.UUID) ([]byte, error) {
	data, err := a.store.get(ctx, ObjectName(a.prefix, twinID, snapshotID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived snapshot: %w", err)
	}
	return data, nil
}

type bucketStore struct {
	bucket *storage.BucketHandle
}

func (b *bucketStore) put(ctx context.Context, name string, data []byte, metadata map[string]string) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentTypeJSON
	w.Metadata = metadata

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (b *bucketStore) get(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}
