// Package archive implements the long-term tier: a periodic job that
// compresses aged change-log records into per-entity, per-day bundles,
// and the store for reading those bundles back.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
)

// Record is one compressed bundle covering a single entity's change
// records for one calendar day.
type Record struct {
	ID               string
	EntityID         string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Payload          []byte
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio float64
	ChangeCount      int64
	CreatedAt        time.Time
}

// Store reads and writes the long-term archive table.
type Store struct {
	db     *sql.DB
	codec  *codec.Codec
	logger *zap.SugaredLogger
}

// NewStore creates an archive store sharing the cairn database handle.
func NewStore(db *sql.DB, c *codec.Codec, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, codec: c, logger: logger}
}

// Candidates returns archive records whose period overlaps [from, to].
// Zero times leave that side of the window open. Payloads come back
// compressed; callers decompress per record via Open so a narrow time
// filter avoids needless decompression.
func (s *Store) Candidates(ctx context.Context, from, to time.Time) ([]*Record, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "period_end_ns >= ?")
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		conds = append(conds, "period_start_ns <= ?")
		args = append(args, to.UnixNano())
	}

	query := `
		SELECT id, entity_id, period_start_ns, period_end_ns, payload,
		       original_size, compressed_size, compression_ratio, change_count, created_at
		FROM long_term_archive`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY period_start_ns ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query archive records")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Open decompresses a record's payload back to its change records.
// Returns an error wrapping codec.ErrDecompression if the payload is
// unreadable; callers drop that record's contribution and continue.
func (s *Store) Open(rec *Record) ([]*entity.ChangeRecord, error) {
	raw, err := s.codec.Decompress(rec.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "archive record %s", rec.ID)
	}

	var changes []*entity.ChangeRecord
	if err := json.Unmarshal(raw, &changes); err != nil {
		return nil, errors.Wrapf(codec.ErrDecompression, "decode archive record %s: %v", rec.ID, err)
	}
	return changes, nil
}

// Count returns the number of archive rows and the total change
// records they hold.
func (s *Store) Count(ctx context.Context) (records, changes int64, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(change_count), 0) FROM long_term_archive").
		Scan(&records, &changes)
	if err != nil {
		return 0, 0, errors.Wrap(err, "count archive records")
	}
	return records, changes, nil
}

// DeleteOlderThan purges archive rows whose period ended before the
// cutoff. Used by retention cleanup.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM long_term_archive WHERE period_end_ns < ?", cutoff.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "purge archive records")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count purged archive records")
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		rec        Record
		startNanos int64
		endNanos   int64
		createdAt  string
	)
	if err := rows.Scan(&rec.ID, &rec.EntityID, &startNanos, &endNanos, &rec.Payload,
		&rec.OriginalSize, &rec.CompressedSize, &rec.CompressionRatio,
		&rec.ChangeCount, &createdAt); err != nil {
		return nil, errors.Wrap(err, "scan archive row")
	}
	rec.PeriodStart = time.Unix(0, startNanos).UTC()
	rec.PeriodEnd = time.Unix(0, endNanos).UTC()
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
