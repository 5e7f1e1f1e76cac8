// Package manager assembles the tiered knowledge-state core: the
// current-state store and change log, the archiver, the snapshotter,
// the query cache, the search coordinator, and the background
// scheduler. A Manager is constructed once at process start and passed
// by reference to callers; there is no global instance.
package manager

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/cairnstack/cairn/archive"
	"github.com/cairnstack/cairn/cache"
	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/config"
	"github.com/cairnstack/cairn/db"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/scheduler"
	"github.com/cairnstack/cairn/search"
	"github.com/cairnstack/cairn/snapshot"
	"github.com/cairnstack/cairn/store"
)

// Manager owns the stores and background jobs and exposes the
// operations the ingestion, query-serving, and administrative layers
// call.
type Manager struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.SugaredLogger

	entities    *store.Store
	archives    *archive.Store
	archiver    *archive.Archiver
	snapshots   *snapshot.Snapshotter
	queryCache  *cache.Cache
	coordinator *search.Coordinator
	ticker      *scheduler.Ticker
}

// New wires a Manager over an already-opened, migrated database.
func New(conn *sql.DB, cfg *config.Config, logger *zap.SugaredLogger) *Manager {
	archiveCfg := cfg.GetArchiveConfig()
	cacheCfg := cfg.GetCacheConfig()
	schedCfg := cfg.GetSchedulerConfig()

	c := codec.New(archiveCfg.CompressionLevel)

	entities := store.New(conn, logger)
	queryCache := cache.New(time.Duration(cacheCfg.TTLSeconds)*time.Second, logger)
	entities.SetInvalidator(queryCache)

	archives := archive.NewStore(conn, c, logger)
	archiver := archive.NewArchiver(conn, c, archive.Config{
		ThresholdDays:   archiveCfg.CompressionThresholdDays,
		MaxGroupsPerRun: archiveCfg.MaxGroupsPerRun,
	}, logger)
	snapshots := snapshot.New(conn, entities, c, logger)
	coordinator := search.NewCoordinator(entities, archives, queryCache, logger)

	m := &Manager{
		db:          conn,
		cfg:         cfg,
		logger:      logger,
		entities:    entities,
		archives:    archives,
		archiver:    archiver,
		snapshots:   snapshots,
		queryCache:  queryCache,
		coordinator: coordinator,
	}

	ticker := scheduler.NewTicker(scheduler.TickerConfig{
		Interval: time.Duration(schedCfg.TickerIntervalSeconds) * time.Second,
	}, logger)
	ticker.AddJob("archival", time.Duration(schedCfg.ArchivalIntervalSeconds)*time.Second, func(ctx context.Context) error {
		_, err := m.TriggerArchival(ctx)
		return ignoreClosed(err)
	})
	ticker.AddJob("snapshot", time.Duration(schedCfg.SnapshotIntervalSeconds)*time.Second, func(ctx context.Context) error {
		_, err := m.CreateSnapshot(ctx, snapshot.TypeScheduled, "scheduled snapshot")
		return ignoreClosed(err)
	})
	ticker.AddJob("cache-sweep", time.Duration(schedCfg.SweepIntervalSeconds)*time.Second, func(ctx context.Context) error {
		m.queryCache.Sweep()
		return nil
	})
	ticker.AddJob("retention-cleanup", time.Duration(schedCfg.CleanupIntervalSeconds)*time.Second, func(ctx context.Context) error {
		_, err := m.TriggerCleanup(ctx)
		return ignoreClosed(err)
	})
	m.ticker = ticker

	return m
}

// ignoreClosed swallows database-closed errors from background jobs.
// They happen when shutdown closes the handle while a pass is mid
// flight and are not worth alarming on.
func ignoreClosed(err error) error {
	if db.IsDatabaseClosed(err) {
		return nil
	}
	return err
}

// Open opens (and migrates) the configured database and wires a
// Manager over it. Startup failures here are the only fatal errors in
// the subsystem.
func Open(cfg *config.Config, logger *zap.SugaredLogger) (*Manager, error) {
	conn, err := db.Open(cfg.GetDatabasePath(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "initialize stores")
	}
	if err := db.Migrate(conn, logger); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate stores")
	}
	return New(conn, cfg, logger), nil
}

// Start launches the background scheduler.
func (m *Manager) Start() {
	m.ticker.Start()
}

// Stop gracefully stops the scheduler. In-flight archival or snapshot
// passes observe cancellation and finish their current group.
func (m *Manager) Stop() {
	m.ticker.Stop()
}

// Close stops background work and closes the database.
func (m *Manager) Close() error {
	m.Stop()
	return m.db.Close()
}

// UpsertEntity writes the entity as current state, appends a change
// record, and invalidates cached results referencing it — atomically.
// On errors.ErrConflict the caller should re-read and retry.
func (m *Manager) UpsertEntity(ctx context.Context, e *entity.Entity) (*store.UpsertResult, error) {
	return m.entities.Upsert(ctx, e)
}

// GetEntity returns the current record, or errors.ErrNotFound.
func (m *Manager) GetEntity(ctx context.Context, entityID string) (*entity.Entity, error) {
	return m.entities.Get(ctx, entityID)
}

// Search answers a tiered query per the search options.
func (m *Manager) Search(ctx context.Context, query string, opts search.Options) (*search.Results, error) {
	return m.coordinator.Search(ctx, query, opts)
}

// Statistics summarizes the state of all tiers.
type Statistics struct {
	CurrentCount    int64
	ShortTermCount  int64
	LongTermRecords int64
	LongTermChanges int64
	SnapshotCount   int64
	CacheEntries    int
	CacheHits       int64
}

// GetStatistics reports per-tier record counts and cache activity.
func (m *Manager) GetStatistics(ctx context.Context) (*Statistics, error) {
	current, err := m.entities.Count(ctx)
	if err != nil {
		return nil, err
	}
	shortTerm, err := m.entities.CountChanges(ctx, "")
	if err != nil {
		return nil, err
	}
	archiveRecords, archiveChanges, err := m.archives.Count(ctx)
	if err != nil {
		return nil, err
	}
	snapCount, err := m.snapshots.Count(ctx)
	if err != nil {
		return nil, err
	}
	entries, hits := m.queryCache.Stats()

	return &Statistics{
		CurrentCount:    current,
		ShortTermCount:  shortTerm,
		LongTermRecords: archiveRecords,
		LongTermChanges: archiveChanges,
		SnapshotCount:   snapCount,
		CacheEntries:    entries,
		CacheHits:       hits,
	}, nil
}

// CreateSnapshot serializes and compresses the whole current-state
// store into one snapshot artifact.
func (m *Manager) CreateSnapshot(ctx context.Context, snapType, description string) (*snapshot.Snapshot, error) {
	return m.snapshots.Create(ctx, snapType, description)
}

// Snapshots exposes snapshot listing, restore, and deletion.
func (m *Manager) Snapshots() *snapshot.Snapshotter {
	return m.snapshots
}

// TriggerArchival runs one archival pass immediately.
func (m *Manager) TriggerArchival(ctx context.Context) (*archive.Result, error) {
	return m.archiver.Run(ctx)
}

// CleanupResult reports what retention cleanup purged.
type CleanupResult struct {
	PurgedArchives  int64
	PurgedSnapshots int64
}

// TriggerCleanup purges archive records and snapshots past their
// retention windows.
func (m *Manager) TriggerCleanup(ctx context.Context) (*CleanupResult, error) {
	archiveCfg := m.cfg.GetArchiveConfig()
	now := time.Now().UTC()

	purgedArchives, err := m.archives.DeleteOlderThan(ctx, now.AddDate(0, 0, -archiveCfg.LongTermRetentionDays))
	if err != nil {
		return nil, err
	}
	purgedSnapshots, err := m.snapshots.DeleteOlderThan(ctx, now.AddDate(0, 0, -archiveCfg.ShortTermRetentionDays))
	if err != nil {
		return nil, err
	}

	if purgedArchives > 0 || purgedSnapshots > 0 {
		m.logger.Infow("Retention cleanup complete",
			"purged_archives", purgedArchives,
			"purged_snapshots", purgedSnapshots,
		)
	}

	return &CleanupResult{
		PurgedArchives:  purgedArchives,
		PurgedSnapshots: purgedSnapshots,
	}, nil
}

// InvalidateCache clears the whole query cache. Administrative reset.
func (m *Manager) InvalidateCache() {
	m.queryCache.InvalidateAll()
}

// Archiver exposes the archiver for tests and tooling that need to
// adjust its clock.
func (m *Manager) Archiver() *archive.Archiver {
	return m.archiver
}

// Store exposes the underlying entity store.
func (m *Manager) Store() *store.Store {
	return m.entities
}
