package store

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedChanges writes count versions of each entity at one-minute
// intervals starting from base.
func seedChanges(t *testing.T, s *Store, base time.Time, entityIDs []string, count int) {
	t.Helper()

	tick := 0
	for i := 0; i < count; i++ {
		for _, id := range entityIDs {
			at := base.Add(time.Duration(tick) * time.Minute)
			s.SetClock(func() time.Time { return at })

			e := sampleEntity(id)
			e.Content = e.Content + " " + at.String()
			_, err := s.Upsert(context.Background(), e)
			require.NoError(t, err)
			tick++
		}
	}
}

func TestChangesOrderedAscending(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedChanges(t, s, base, []string{"P1", "P2"}, 3)

	recs, err := s.Changes(ChangeFilter{}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 6)

	for i := 1; i < len(recs); i++ {
		assert.False(t, recs[i].Timestamp.Before(recs[i-1].Timestamp),
			"records must be timestamp-ascending")
	}
}

func TestChangesFilterByEntity(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedChanges(t, s, base, []string{"P1", "P2"}, 2)

	recs, err := s.Changes(ChangeFilter{EntityID: "P2"}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "P2", rec.EntityID)
	}
}

func TestChangesFilterByTimeRange(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedChanges(t, s, base, []string{"P1"}, 5)

	from := base.Add(1 * time.Minute)
	to := base.Add(3 * time.Minute)
	recs, err := s.Changes(ChangeFilter{From: from, To: to}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	for _, rec := range recs {
		assert.False(t, rec.Timestamp.Before(from))
		assert.False(t, rec.Timestamp.After(to))
	}
}

func TestChangesPaginatesWithoutGapsOrDuplicates(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedChanges(t, s, base, []string{"P1"}, 10)

	// Batch size far smaller than the result set forces several fetches.
	it := s.Changes(ChangeFilter{}).WithBatchSize(3)

	seen := make(map[int64]bool)
	count := 0
	for {
		rec, err := it.Next(context.Background())
		require.NoError(t, err)
		if rec == nil {
			break
		}
		assert.False(t, seen[rec.ID], "row %d returned twice", rec.ID)
		seen[rec.ID] = true
		count++
	}
	assert.Equal(t, 10, count)
}

func TestChangesEmptyLog(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.Changes(ChangeFilter{}).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
