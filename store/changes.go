package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
)

// ChangeFilter narrows a change-log query. Zero values mean
// unrestricted: an empty EntityID matches all entities, zero times
// leave the window open on that side.
type ChangeFilter struct {
	EntityID string
	From     time.Time
	To       time.Time
}

// DefaultChangeBatchSize is how many change rows an iterator fetches
// per round trip.
const DefaultChangeBatchSize = 256

// Changes returns a restartable iterator over matching change records
// in timestamp-ascending order. The iterator pages through the log
// with keyset pagination, so wide time ranges never materialize in
// memory at once.
func (s *Store) Changes(filter ChangeFilter) *ChangeIterator {
	return &ChangeIterator{
		db:        s.db,
		filter:    filter,
		batchSize: DefaultChangeBatchSize,
	}
}

// CountChanges returns the number of change-log rows for an entity,
// or for all entities when entityID is empty.
func (s *Store) CountChanges(ctx context.Context, entityID string) (int64, error) {
	var (
		n   int64
		err error
	)
	if entityID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_log").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_log WHERE entity_id = ?", entityID).Scan(&n)
	}
	if err != nil {
		return 0, errors.Wrap(err, "count changes")
	}
	return n, nil
}

// WithBatchSize overrides the iterator's fetch size. Values <= 0 keep
// the default.
func (it *ChangeIterator) WithBatchSize(n int) *ChangeIterator {
	if n > 0 {
		it.batchSize = n
	}
	return it
}

// ChangeIterator walks the change log in (timestamp, id) order. It is
// restartable: each batch re-queries from the last seen position, so a
// long scan survives interleaved writes without skipping or repeating
// rows that existed when the scan passed their position.
type ChangeIterator struct {
	db        *sql.DB
	filter    ChangeFilter
	batchSize int

	buf    []*entity.ChangeRecord
	pos    int
	lastTS int64
	lastID int64
	done   bool
}

// Next returns the next change record, or nil when the iterator is
// exhausted.
func (it *ChangeIterator) Next(ctx context.Context) (*entity.ChangeRecord, error) {
	if it.pos >= len(it.buf) {
		if it.done {
			return nil, nil
		}
		if err := it.fetch(ctx); err != nil {
			return nil, err
		}
		if len(it.buf) == 0 {
			return nil, nil
		}
	}

	rec := it.buf[it.pos]
	it.pos++
	it.lastTS = rec.Timestamp.UnixNano()
	it.lastID = rec.ID
	return rec, nil
}

// Collect drains the iterator into a slice. Convenient for bounded
// ranges and tests; prefer Next for wide scans.
func (it *ChangeIterator) Collect(ctx context.Context) ([]*entity.ChangeRecord, error) {
	var out []*entity.ChangeRecord
	for {
		rec, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

func (it *ChangeIterator) fetch(ctx context.Context) error {
	var (
		conds []string
		args  []any
	)

	// Keyset position: strictly after the last row we handed out.
	conds = append(conds, "(timestamp_ns > ? OR (timestamp_ns = ? AND id > ?))")
	args = append(args, it.lastTS, it.lastTS, it.lastID)

	if it.filter.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, it.filter.EntityID)
	}
	if !it.filter.From.IsZero() {
		conds = append(conds, "timestamp_ns >= ?")
		args = append(args, it.filter.From.UnixNano())
	}
	if !it.filter.To.IsZero() {
		conds = append(conds, "timestamp_ns <= ?")
		args = append(args, it.filter.To.UnixNano())
	}

	query := `
		SELECT id, entity_id, entity_type, action, changed_fields, prev_digest, new_digest, timestamp_ns
		FROM change_log
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY timestamp_ns ASC, id ASC
		LIMIT ?`
	args = append(args, it.batchSize)

	rows, err := it.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "query change log")
	}
	defer rows.Close()

	it.buf = it.buf[:0]
	it.pos = 0
	for rows.Next() {
		rec, err := ScanChange(rows)
		if err != nil {
			return err
		}
		it.buf = append(it.buf, rec)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate change log")
	}

	if len(it.buf) < it.batchSize {
		it.done = true
	}
	return nil
}

// ScanChange decodes one change_log row. Shared with the archiver,
// which selects aged rows with its own query.
func ScanChange(row interface{ Scan(...any) error }) (*entity.ChangeRecord, error) {
	var (
		rec         entity.ChangeRecord
		entityType  string
		action      string
		changedJSON string
		prevJSON    sql.NullString
		newJSON     string
		tsNanos     int64
	)

	if err := row.Scan(&rec.ID, &rec.EntityID, &entityType, &action,
		&changedJSON, &prevJSON, &newJSON, &tsNanos); err != nil {
		return nil, errors.Wrap(err, "scan change row")
	}

	rec.EntityType = entity.Type(entityType)
	rec.Action = entity.Action(action)
	rec.Timestamp = time.Unix(0, tsNanos).UTC()

	if err := json.Unmarshal([]byte(changedJSON), &rec.ChangedFields); err != nil {
		return nil, errors.Wrap(err, "unmarshal changed fields")
	}
	if prevJSON.Valid {
		var d entity.Digest
		if err := json.Unmarshal([]byte(prevJSON.String), &d); err != nil {
			return nil, errors.Wrap(err, "unmarshal previous digest")
		}
		rec.PreviousDigest = &d
	}
	if err := json.Unmarshal([]byte(newJSON), &rec.NewDigest); err != nil {
		return nil, errors.Wrap(err, "unmarshal new digest")
	}
	return &rec, nil
}
