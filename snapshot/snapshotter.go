// Package snapshot serializes and compresses the entire current-state
// store into single retrievable artifacts. Snapshots are independent,
// overlapping, and disposable: deleting one never affects another.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/store"
)

// Snapshot types.
const (
	TypeScheduled = "scheduled"
	TypeManual    = "manual"
)

// DefaultBatchSize bounds how many entities a snapshot reads per page.
const DefaultBatchSize = 500

// Snapshot describes one stored point-in-time copy. Payload is only
// populated by Restore; List and Get return metadata.
type Snapshot struct {
	ID               string
	Type             string
	Description      string
	SnapshotDate     time.Time
	EntityCount      int64
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio float64
	CreatedAt        time.Time
}

// Snapshotter creates and manages snapshots.
type Snapshotter struct {
	db        *sql.DB
	entities  *store.Store
	codec     *codec.Codec
	logger    *zap.SugaredLogger
	batchSize int
	now       func() time.Time
}

// New creates a snapshotter reading entities from the given store.
func New(db *sql.DB, entities *store.Store, c *codec.Codec, logger *zap.SugaredLogger) *Snapshotter {
	return &Snapshotter{
		db:        db,
		entities:  entities,
		codec:     c,
		logger:    logger,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Snapshotter) SetClock(now func() time.Time) {
	s.now = now
}

// Create reads the whole current-state store in bounded batches,
// serializes and compresses it as one unit, and writes a single
// snapshot row. Any failure mid-read aborts the snapshot; nothing
// partial is ever persisted because the only write is the final
// insert.
func (s *Snapshotter) Create(ctx context.Context, snapType, description string) (*Snapshot, error) {
	if snapType == "" {
		snapType = TypeManual
	}

	var all []*entity.Entity
	afterID := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch, err := s.entities.ListBatch(ctx, afterID, s.batchSize)
		if err != nil {
			return nil, errors.Wrap(err, "read current state")
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		afterID = batch[len(batch)-1].ID
	}

	raw, err := json.Marshal(all)
	if err != nil {
		return nil, errors.Wrap(err, "serialize snapshot")
	}

	compressed, err := s.codec.Compress(raw)
	if err != nil {
		return nil, errors.Wrap(err, "compress snapshot")
	}

	now := s.now().UTC()
	snap := &Snapshot{
		ID:               "snap_" + uuid.NewString(),
		Type:             snapType,
		Description:      description,
		SnapshotDate:     now,
		EntityCount:      int64(len(all)),
		OriginalSize:     int64(len(raw)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: codec.Ratio(len(compressed), len(raw)),
		CreatedAt:        now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, type, description, snapshot_date, entity_count,
		                       original_size, compressed_size, compression_ratio, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Type, snap.Description,
		now.Format(time.RFC3339Nano), snap.EntityCount,
		snap.OriginalSize, snap.CompressedSize, snap.CompressionRatio,
		compressed, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrap(err, "write snapshot")
	}

	s.logger.Infow("Snapshot created",
		"snapshot_id", snap.ID,
		"type", snap.Type,
		"entities", snap.EntityCount,
		"original_size", snap.OriginalSize,
		"compressed_size", snap.CompressedSize,
	)
	return snap, nil
}

// Get returns snapshot metadata, or errors.ErrNotFound.
func (s *Snapshotter) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, description, snapshot_date, entity_count,
		       original_size, compressed_size, compression_ratio, created_at
		FROM snapshots WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "snapshot %s", id)
		}
		return nil, errors.Wrap(err, "get snapshot")
	}
	return snap, nil
}

// List returns all snapshots, newest first, without payloads.
func (s *Snapshotter) List(ctx context.Context) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, description, snapshot_date, entity_count,
		       original_size, compressed_size, compression_ratio, created_at
		FROM snapshots ORDER BY snapshot_date DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Restore decompresses a snapshot's payload back into the entity set
// it captured.
func (s *Snapshotter) Restore(ctx context.Context, id string) ([]*entity.Entity, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE id = ?", id).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "snapshot %s", id)
		}
		return nil, errors.Wrap(err, "read snapshot payload")
	}

	raw, err := s.codec.Decompress(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", id)
	}

	var entities []*entity.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", id)
	}
	return entities, nil
}

// Delete removes one snapshot.
func (s *Snapshotter) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "delete snapshot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "check snapshot delete")
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "snapshot %s", id)
	}
	return nil
}

// DeleteOlderThan purges snapshots taken before the cutoff. Used by
// retention cleanup.
func (s *Snapshotter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM snapshots WHERE snapshot_date < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.Wrap(err, "purge snapshots")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count purged snapshots")
	}
	return n, nil
}

// Count returns the number of stored snapshots.
func (s *Snapshotter) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count snapshots")
	}
	return n, nil
}

func scanSnapshot(row interface{ Scan(...any) error }) (*Snapshot, error) {
	var (
		snap         Snapshot
		snapshotDate string
		createdAt    string
	)
	err := row.Scan(&snap.ID, &snap.Type, &snap.Description, &snapshotDate, &snap.EntityCount,
		&snap.OriginalSize, &snap.CompressedSize, &snap.CompressionRatio, &createdAt)
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, snapshotDate); perr == nil {
		snap.SnapshotDate = t
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		snap.CreatedAt = t
	}
	return &snap, nil
}
