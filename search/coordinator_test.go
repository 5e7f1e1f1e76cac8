package search

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairnstack/cairn/archive"
	"github.com/cairnstack/cairn/cache"
	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	cairntest "github.com/cairnstack/cairn/internal/testing"
	"github.com/cairnstack/cairn/store"
)

type fixture struct {
	entities    *store.Store
	archiver    *archive.Archiver
	results     *cache.Cache
	coordinator *Coordinator
}

func newFixture(t *testing.T) *fixture {
	conn := cairntest.CreateTestDB(t)
	log := zap.NewNop().Sugar()
	c := codec.Default()

	entities := store.New(conn, log)
	results := cache.New(time.Hour, log)
	entities.SetInvalidator(results)
	archives := archive.NewStore(conn, c, log)
	archiver := archive.NewArchiver(conn, c, archive.DefaultConfig(), log)

	return &fixture{
		entities:    entities,
		archiver:    archiver,
		results:     results,
		coordinator: NewCoordinator(entities, archives, results, log),
	}
}

func (f *fixture) upsertAt(t *testing.T, e *entity.Entity, at time.Time) {
	t.Helper()
	f.entities.SetClock(func() time.Time { return at })
	_, err := f.entities.Upsert(context.Background(), e)
	require.NoError(t, err)
}

func product(id, name, content string) *entity.Entity {
	return &entity.Entity{
		ID:      id,
		Type:    entity.TypeProduct,
		Name:    name,
		Content: content,
	}
}

func TestSearchCurrentOnly(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	f.upsertAt(t, product("P1", "epoxy adhesive", "two-part marine epoxy"), now)
	f.upsertAt(t, product("P2", "silicone sealant", "bathroom sealant"), now)

	res, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)

	require.Len(t, res.Current, 1)
	assert.Equal(t, "P1", res.Current[0].Entity.ID)
	assert.Equal(t, SourceCurrent, res.Current[0].Source)
	assert.Empty(t, res.History, "history tier must stay untouched without IncludeHistory")
	assert.Empty(t, res.Archive)
	assert.Equal(t, 1, res.TotalCount)
}

func TestSearchRanking(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	f.upsertAt(t, product("P1", "epoxy", "exact name"), now)
	f.upsertAt(t, product("P2", "epoxy adhesive", "prefix name"), now)
	f.upsertAt(t, product("P3", "marine epoxy kit", "contains in name"), now)

	res, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)
	require.Len(t, res.Current, 3)

	assert.Equal(t, "P1", res.Current[0].Entity.ID)
	assert.Equal(t, "P2", res.Current[1].Entity.ID)
	assert.Equal(t, "P3", res.Current[2].Entity.ID)
	assert.Greater(t, res.Current[0].Score, res.Current[1].Score)
	assert.Greater(t, res.Current[1].Score, res.Current[2].Score)
}

func TestSearchHistoryTimeRange(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	// One change 30 days ago, one within the last 7 days.
	e := product("P1", "epoxy adhesive", "original formula")
	f.upsertAt(t, e, now.AddDate(0, 0, -30))
	e.Content = "updated epoxy formula"
	f.upsertAt(t, e, now.AddDate(0, 0, -3))

	withoutHistory, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)
	assert.Empty(t, withoutHistory.History)

	lastWeek, err := f.coordinator.Search(context.Background(), "epoxy", Options{
		IncludeHistory: true,
		From:           now.AddDate(0, 0, -7),
	})
	require.NoError(t, err)
	require.Len(t, lastWeek.History, 1, "only the in-range change record matches")
	assert.Equal(t, SourceHistory, lastWeek.History[0].Source)
	assert.True(t, lastWeek.History[0].Change.Timestamp.After(now.AddDate(0, 0, -7)))
}

func TestSearchArchiveTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -60)
	f.upsertAt(t, product("P1", "epoxy adhesive", "legacy formulation"), old)

	_, err := f.archiver.Run(ctx)
	require.NoError(t, err)

	// The change now lives only in the archive tier.
	withoutLongTerm, err := f.coordinator.Search(ctx, "legacy", Options{IncludeHistory: true})
	require.NoError(t, err)
	assert.Empty(t, withoutLongTerm.History)
	assert.Empty(t, withoutLongTerm.Archive)

	withLongTerm, err := f.coordinator.Search(ctx, "legacy", Options{IncludeLongTerm: true})
	require.NoError(t, err)
	require.Len(t, withLongTerm.Archive, 1)
	assert.Equal(t, "P1", withLongTerm.Archive[0].Change.EntityID)
	assert.Equal(t, SourceArchive, withLongTerm.Archive[0].Source)
}

func TestSearchCachesResults(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.upsertAt(t, product("P1", "epoxy adhesive", "content"), now)

	first, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)

	second, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)
	assert.Same(t, first, second, "second call must come from the cache")

	entries, hits := f.results.Stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, int64(1), hits)
}

func TestUpsertInvalidatesCachedSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	e := product("P1", "epoxy adhesive", "version one")
	f.upsertAt(t, e, now)

	stale, err := f.coordinator.Search(ctx, "epoxy", Options{})
	require.NoError(t, err)
	assert.Equal(t, "version one", stale.Current[0].Entity.Content)

	// Mutating P1 must evict any cached result referencing it.
	e.Content = "version two"
	f.upsertAt(t, e, now.Add(time.Minute))

	fresh, err := f.coordinator.Search(ctx, "epoxy", Options{})
	require.NoError(t, err)
	require.Len(t, fresh.Current, 1)
	assert.Equal(t, "version two", fresh.Current[0].Entity.Content)
	assert.Equal(t, int64(2), fresh.Current[0].Entity.Version)
}

func TestSearchDifferentOptionsDifferentCacheEntries(t *testing.T) {
	f := newFixture(t)
	f.upsertAt(t, product("P1", "epoxy adhesive", "content"), time.Now().UTC())

	_, err := f.coordinator.Search(context.Background(), "epoxy", Options{})
	require.NoError(t, err)
	_, err = f.coordinator.Search(context.Background(), "epoxy", Options{IncludeHistory: true})
	require.NoError(t, err)

	entries, _ := f.results.Stats()
	assert.Equal(t, 2, entries)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSearchLimit(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	for _, id := range []string{"P1", "P2", "P3", "P4", "P5"} {
		f.upsertAt(t, product(id, "epoxy "+id, "epoxy content"), now)
	}

	res, err := f.coordinator.Search(context.Background(), "epoxy", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Current, 2)
}

func TestScore(t *testing.T) {
	exact := product("P1", "epoxy", "")
	prefix := product("P2", "epoxy adhesive", "")
	contains := product("P3", "marine epoxy", "")
	unrelated := product("P4", "sealant", "")

	assert.Greater(t, Score("epoxy", exact), Score("epoxy", prefix))
	assert.Greater(t, Score("epoxy", prefix), Score("epoxy", contains))
	assert.Greater(t, Score("epoxy", contains), Score("epoxy", unrelated))
	assert.Zero(t, Score("epoxy", unrelated))

	keyworded := product("P5", "fast-set kit", "")
	keyworded.Metadata.Keywords = []string{"epoxy"}
	assert.Positive(t, Score("epoxy", keyworded))
}
