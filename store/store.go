// Package store implements the current-state store and the short-term
// change log. The two are updated atomically: an upsert writes the new
// entity row and appends exactly one change record in a single
// transaction, so no record of a failed upsert exists in either table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/internal/keyedmutex"
)

// Query constants
const (
	entitySelectQuery = `
		SELECT id, type, name, content, search_text, metadata, relationships,
		       version, change_count, last_modified
		FROM entities WHERE id = ?`

	entityInsertQuery = `
		INSERT INTO entities (id, type, name, content, search_text, metadata, relationships,
		                      version, change_count, last_modified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	entityUpdateQuery = `
		UPDATE entities
		SET type = ?, name = ?, content = ?, search_text = ?, metadata = ?, relationships = ?,
		    version = ?, change_count = ?, last_modified = ?
		WHERE id = ? AND version = ?`

	changeInsertQuery = `
		INSERT INTO change_log (entity_id, entity_type, action, changed_fields,
		                        prev_digest, new_digest, timestamp_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Invalidator is notified after a committed upsert so cached query
// results referencing the entity can be dropped.
type Invalidator interface {
	InvalidateForEntity(entityID string)
}

// Store provides atomic access to the current-state store and the
// change log backed by a shared SQLite database.
type Store struct {
	db          *sql.DB
	logger      *zap.SugaredLogger
	locks       *keyedmutex.KeyedMutex
	invalidator Invalidator
	now         func() time.Time
}

// New creates a store. The invalidator may be nil when no cache is
// attached (tests, offline tooling).
func New(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		locks:  keyedmutex.New(),
		now:    time.Now,
	}
}

// SetInvalidator attaches the cache invalidation hook. Called once at
// wiring time, before the store receives traffic.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// SetClock overrides the time source. Used by tests to age records.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// UpsertResult summarizes a committed upsert.
type UpsertResult struct {
	EntityID      string
	Version       int64
	Action        entity.Action
	ChangedFields map[string]entity.FieldChange
}

// Upsert writes the entity as the new current state and appends one
// change record reflecting the field-level diff, atomically. Concurrent
// upserts to the same entity serialize on a per-entity lock; different
// entities do not block each other. Returns errors.ErrValidation for
// an empty entity ID and errors.ErrConflict if the row version moved
// underneath the transaction (external writer on the same file).
func (s *Store) Upsert(ctx context.Context, e *entity.Entity) (*UpsertResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.locks.Lock(e.ID)
	defer s.locks.Unlock(e.ID)

	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin upsert tx")
	}
	defer tx.Rollback()

	prior, err := scanEntityRow(tx.QueryRowContext(ctx, entitySelectQuery, e.ID))
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, "read prior state")
	}

	next := *e
	next.Type = entity.NormalizeType(string(e.Type))
	next.LastModified = now

	action := entity.ActionCreated
	if prior != nil {
		action = entity.ActionModified
		next.Version = prior.Version + 1
		next.ChangeCount = prior.ChangeCount + 1
	} else {
		next.Version = 1
		next.ChangeCount = 1
	}

	changed := entity.Diff(prior, &next)

	var prevDigest *entity.Digest
	if prior != nil {
		d := entity.ComputeDigest(prior)
		prevDigest = &d
	}
	newDigest := entity.ComputeDigest(&next)

	metadataJSON, relationshipsJSON, err := marshalEntityFields(&next)
	if err != nil {
		return nil, err
	}

	if prior == nil {
		_, err = tx.ExecContext(ctx, entityInsertQuery,
			next.ID, next.Type, next.Name, next.Content, next.SearchText,
			metadataJSON, relationshipsJSON,
			next.Version, next.ChangeCount,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, errors.Wrap(err, "insert entity")
		}
	} else {
		res, err := tx.ExecContext(ctx, entityUpdateQuery,
			next.Type, next.Name, next.Content, next.SearchText,
			metadataJSON, relationshipsJSON,
			next.Version, next.ChangeCount, now.Format(time.RFC3339Nano),
			next.ID, prior.Version,
		)
		if err != nil {
			return nil, errors.Wrap(err, "update entity")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "check update result")
		}
		if affected == 0 {
			// Version guard failed: the row moved between our read and
			// write. The caller re-reads and retries.
			return nil, errors.Wrapf(errors.ErrConflict, "entity %s version %d", next.ID, prior.Version)
		}
	}

	if err := appendChange(ctx, tx, &entity.ChangeRecord{
		Timestamp:      now,
		EntityID:       next.ID,
		EntityType:     next.Type,
		Action:         action,
		ChangedFields:  changed,
		PreviousDigest: prevDigest,
		NewDigest:      newDigest,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit upsert")
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateForEntity(next.ID)
	}

	s.logger.Debugw("Entity upserted",
		"entity_id", next.ID,
		"action", action,
		"version", next.Version,
		"changed_fields", len(changed),
	)

	return &UpsertResult{
		EntityID:      next.ID,
		Version:       next.Version,
		Action:        action,
		ChangedFields: changed,
	}, nil
}

// Get returns the current record for the entity, or errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, entityID string) (*entity.Entity, error) {
	e, err := scanEntityRow(s.db.QueryRowContext(ctx, entitySelectQuery, entityID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", entityID)
		}
		return nil, errors.Wrap(err, "get entity")
	}
	return e, nil
}

// Count returns the number of live current-state records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count entities")
	}
	return n, nil
}

// ListBatch returns up to limit entities with IDs strictly after
// afterID, ordered by ID. The snapshotter pages through the whole
// store with this to bound memory use.
func (s *Store) ListBatch(ctx context.Context, afterID string, limit int) ([]*entity.Entity, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, content, search_text, metadata, relationships,
		       version, change_count, last_modified
		FROM entities WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list entities")
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MatchCurrent returns current-state entities whose name, content,
// derived search text, or metadata contains the query substring,
// case-insensitively. Ranking happens in the search coordinator; this
// over-fetches by a small factor so the coordinator has candidates to
// score.
func (s *Store) MatchCurrent(ctx context.Context, query string, limit int) ([]*entity.Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, content, search_text, metadata, relationships,
		       version, change_count, last_modified
		FROM entities
		WHERE name LIKE ? COLLATE NOCASE
		   OR content LIKE ? COLLATE NOCASE
		   OR search_text LIKE ? COLLATE NOCASE
		   OR metadata LIKE ? COLLATE NOCASE
		ORDER BY last_modified DESC
		LIMIT ?`, pattern, pattern, pattern, pattern, limit*4)
	if err != nil {
		return nil, errors.Wrap(err, "match entities")
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			if s.logger != nil {
				s.logger.Warnw("Failed to scan entity row", "error", err)
			}
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// marshalEntityFields marshals the entity's structured fields to JSON
// for storage.
func marshalEntityFields(e *entity.Entity) (metadataJSON, relationshipsJSON string, err error) {
	mb, err := json.Marshal(e.Metadata)
	if err != nil {
		return "", "", errors.Wrap(err, "marshal metadata")
	}
	rb, err := json.Marshal(e.Relationships)
	if err != nil {
		return "", "", errors.Wrap(err, "marshal relationships")
	}
	return string(mb), string(rb), nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entity.Entity, error) {
	var (
		e                 entity.Entity
		typ               string
		metadataJSON      string
		relationshipsJSON string
		lastModified      string
	)

	err := row.Scan(&e.ID, &typ, &e.Name, &e.Content, &e.SearchText,
		&metadataJSON, &relationshipsJSON,
		&e.Version, &e.ChangeCount, &lastModified)
	if err != nil {
		return nil, err
	}

	e.Type = entity.Type(typ)
	if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
		return nil, errors.Wrap(err, "unmarshal metadata")
	}
	if err := json.Unmarshal([]byte(relationshipsJSON), &e.Relationships); err != nil {
		return nil, errors.Wrap(err, "unmarshal relationships")
	}
	if e.LastModified, err = time.Parse(time.RFC3339Nano, lastModified); err != nil {
		return nil, errors.Wrap(err, "parse last_modified")
	}
	return &e, nil
}

func scanEntityRow(row *sql.Row) (*entity.Entity, error) {
	e, err := scanEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// appendChange inserts one change record inside the upsert transaction.
// The change log is append-only; nothing ever updates these rows.
func appendChange(ctx context.Context, tx *sql.Tx, rec *entity.ChangeRecord) error {
	changedJSON, err := json.Marshal(rec.ChangedFields)
	if err != nil {
		return errors.Wrap(err, "marshal changed fields")
	}

	var prevJSON any
	if rec.PreviousDigest != nil {
		b, err := json.Marshal(rec.PreviousDigest)
		if err != nil {
			return errors.Wrap(err, "marshal previous digest")
		}
		prevJSON = string(b)
	}

	newJSON, err := json.Marshal(rec.NewDigest)
	if err != nil {
		return errors.Wrap(err, "marshal new digest")
	}

	_, err = tx.ExecContext(ctx, changeInsertQuery,
		rec.EntityID,
		rec.EntityType,
		rec.Action,
		string(changedJSON),
		prevJSON,
		string(newJSON),
		rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, "append change record")
	}
	return nil
}
