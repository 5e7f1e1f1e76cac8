package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/store"
)

const (
	// DefaultThresholdDays is the age at which change records become
	// eligible for archival.
	DefaultThresholdDays = 30

	// DefaultMaxGroupsPerRun bounds a single archival run so the job
	// stays interruptible. Remaining groups are picked up next run.
	DefaultMaxGroupsPerRun = 256

	archiveInsertQuery = `
		INSERT INTO long_term_archive (id, entity_id, period_start_ns, period_end_ns, payload,
		                               original_size, compressed_size, compression_ratio,
		                               change_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// Config tunes the archiver.
type Config struct {
	ThresholdDays   int
	MaxGroupsPerRun int
}

// DefaultConfig returns sensible archiver defaults.
func DefaultConfig() Config {
	return Config{
		ThresholdDays:   DefaultThresholdDays,
		MaxGroupsPerRun: DefaultMaxGroupsPerRun,
	}
}

// Result summarizes one archival run.
type Result struct {
	GroupsArchived int
	GroupsFailed   int
	Archived       int // change records written to the archive
	Deleted        int // change records removed from the short-term log
}

// Archiver moves aged change records from the short-term log into
// compressed per-(entity, day) archive bundles. The job is idempotent:
// it filters strictly on age and re-groups from whatever remains in
// the log, so re-running after a crash or partial failure is safe.
type Archiver struct {
	db     *sql.DB
	codec  *codec.Codec
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewArchiver creates an archiver over the shared database handle.
func NewArchiver(db *sql.DB, c *codec.Codec, cfg Config, logger *zap.SugaredLogger) *Archiver {
	if cfg.ThresholdDays <= 0 {
		cfg.ThresholdDays = DefaultThresholdDays
	}
	if cfg.MaxGroupsPerRun <= 0 {
		cfg.MaxGroupsPerRun = DefaultMaxGroupsPerRun
	}
	return &Archiver{
		db:     db,
		codec:  c,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Used by tests to age records.
func (a *Archiver) SetClock(now func() time.Time) {
	a.now = now
}

// group is one (entity, calendar day) bundle of aged change records.
type group struct {
	entityID string
	day      string // UTC calendar day, YYYY-MM-DD
	records  []*entity.ChangeRecord
}

// Run performs one archival pass. Per-group failures are logged and
// skipped; the failed group stays in the change log and is retried on
// the next run. Checks ctx between groups for cooperative cancellation.
func (a *Archiver) Run(ctx context.Context) (*Result, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.cfg.ThresholdDays)

	groups, err := a.collectGroups(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, g := range groups {
		select {
		case <-ctx.Done():
			// Graceful shutdown: stop accepting new groups. Everything
			// not yet archived stays in the change log.
			return result, ctx.Err()
		default:
		}

		if err := a.archiveGroup(ctx, g); err != nil {
			result.GroupsFailed++
			a.logger.Errorw("Archival group failed",
				"entity_id", g.entityID,
				"day", g.day,
				"records", len(g.records),
				"error", err,
			)
			continue
		}

		result.GroupsArchived++
		result.Archived += len(g.records)
		result.Deleted += len(g.records)
	}

	if result.GroupsArchived > 0 || result.GroupsFailed > 0 {
		a.logger.Infow("Archival run complete",
			"groups_archived", result.GroupsArchived,
			"groups_failed", result.GroupsFailed,
			"records_archived", result.Archived,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}

	return result, nil
}

// collectGroups selects all change records older than the cutoff and
// groups them by (entity, UTC day), bounded by MaxGroupsPerRun.
func (a *Archiver) collectGroups(ctx context.Context, cutoff time.Time) ([]*group, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, action, changed_fields, prev_digest, new_digest, timestamp_ns
		FROM change_log
		WHERE timestamp_ns < ?
		ORDER BY entity_id ASC, timestamp_ns ASC, id ASC`, cutoff.UnixNano())
	if err != nil {
		return nil, errors.Wrap(err, "select aged change records")
	}
	defer rows.Close()

	var (
		groups []*group
		byKey  = make(map[string]*group)
	)
	for rows.Next() {
		rec, err := store.ScanChange(rows)
		if err != nil {
			return nil, err
		}

		day := rec.Timestamp.UTC().Format("2006-01-02")
		key := rec.EntityID + "\x00" + day
		g, ok := byKey[key]
		if !ok {
			if len(groups) >= a.cfg.MaxGroupsPerRun {
				// Bounded run; the rest ages in place until next pass.
				continue
			}
			g = &group{entityID: rec.EntityID, day: day}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, rec)
	}
	return groups, rows.Err()
}

// archiveGroup serializes, compresses, and durably writes one group,
// then deletes exactly that group's source rows. The insert and the
// delete share a transaction: a crash before commit leaves every
// record in the change log, so no record is ever counted as archived
// and also lost.
func (a *Archiver) archiveGroup(ctx context.Context, g *group) error {
	raw, err := json.Marshal(g.records)
	if err != nil {
		return errors.Wrap(err, "serialize group")
	}

	compressed, err := a.codec.Compress(raw)
	if err != nil {
		return errors.Wrap(err, "compress group")
	}

	periodStart := g.records[0].Timestamp
	periodEnd := g.records[len(g.records)-1].Timestamp

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin archive tx")
	}
	defer tx.Rollback()

	now := a.now().UTC()
	_, err = tx.ExecContext(ctx, archiveInsertQuery,
		"arc_"+uuid.NewString(),
		g.entityID,
		periodStart.UnixNano(),
		periodEnd.UnixNano(),
		compressed,
		int64(len(raw)),
		int64(len(compressed)),
		codec.Ratio(len(compressed), len(raw)),
		int64(len(g.records)),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "write archive record")
	}

	// Delete only the exact rows bundled above, never a wider range.
	placeholders := make([]string, len(g.records))
	args := make([]any, len(g.records))
	for i, rec := range g.records {
		placeholders[i] = "?"
		args[i] = rec.ID
	}
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM change_log WHERE id IN (%s)", strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return errors.Wrap(err, "delete archived change records")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "count deleted change records")
	}
	if deleted != int64(len(g.records)) {
		return errors.Newf("expected to delete %d change records, deleted %d", len(g.records), deleted)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit archive group")
	}

	a.logger.Debugw("Archived group",
		"entity_id", g.entityID,
		"day", g.day,
		"records", len(g.records),
		"original_size", len(raw),
		"compressed_size", len(compressed),
	)
	return nil
}
