// Package search implements the tiered search coordinator: a fan-out
// and merge layer over the current-state store, the short-term change
// log, and the decompressed long-term archive, fronted by the query
// cache.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cairnstack/cairn/archive"
	"github.com/cairnstack/cairn/cache"
	"github.com/cairnstack/cairn/codec"
	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/store"
)

// DefaultLimit caps results per tier when the caller does not set one.
const DefaultLimit = 25

// Source tiers tagged on merged results.
const (
	SourceCurrent = "current"
	SourceHistory = "history"
	SourceArchive = "archive"
)

// Options controls which tiers a search consults.
type Options struct {
	IncludeHistory  bool
	IncludeLongTerm bool
	From            time.Time // zero = unbounded
	To              time.Time // zero = unbounded
	Limit           int
}

// encode produces the deterministic option encoding used in cache keys.
func (o Options) encode() string {
	return fmt.Sprintf("h=%t|lt=%t|from=%d|to=%d|limit=%d",
		o.IncludeHistory, o.IncludeLongTerm, o.From.UnixNano(), o.To.UnixNano(), o.Limit)
}

// CurrentMatch is a current-state hit with its relevance score.
type CurrentMatch struct {
	Entity *entity.Entity
	Score  int
	Source string
}

// ChangeMatch is a history or archive hit.
type ChangeMatch struct {
	Change *entity.ChangeRecord
	Source string
}

// Results is a merged, tier-tagged search response.
type Results struct {
	Current    []CurrentMatch
	History    []ChangeMatch
	Archive    []ChangeMatch
	TotalCount int
	Took       time.Duration
}

// entityIDs lists every entity a result set references, for cache
// invalidation bookkeeping.
func (r *Results) entityIDs() []string {
	seen := make(map[string]struct{})
	for _, m := range r.Current {
		seen[m.Entity.ID] = struct{}{}
	}
	for _, m := range r.History {
		seen[m.Change.EntityID] = struct{}{}
	}
	for _, m := range r.Archive {
		seen[m.Change.EntityID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// Coordinator answers queries by consulting the cache first, then the
// storage tiers the options enable.
type Coordinator struct {
	entities *store.Store
	archives *archive.Store
	results  *cache.Cache
	logger   *zap.SugaredLogger
}

// NewCoordinator wires the coordinator to its tiers.
func NewCoordinator(entities *store.Store, archives *archive.Store, results *cache.Cache, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		entities: entities,
		archives: archives,
		results:  results,
		logger:   logger,
	}
}

// Search runs a tiered query. Individual archive decompression
// failures are logged and skipped; they never fail the whole query.
func (c *Coordinator) Search(ctx context.Context, query string, opts Options) (*Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrap(errors.ErrValidation, "empty search query")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	key := cache.Key(query, opts.encode())
	if v, ok := c.results.Get(key); ok {
		if cached, ok := v.(*Results); ok {
			c.logger.Debugw("Search cache hit", "query", query)
			return cached, nil
		}
	}

	start := time.Now()
	res := &Results{}

	current, err := c.searchCurrent(ctx, query, opts.Limit)
	if err != nil {
		return nil, err
	}
	res.Current = current

	if opts.IncludeHistory {
		history, err := c.searchHistory(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		res.History = history
	}

	if opts.IncludeLongTerm {
		res.Archive = c.searchArchive(ctx, query, opts)
	}

	res.TotalCount = len(res.Current) + len(res.History) + len(res.Archive)
	res.Took = time.Since(start)

	c.results.Put(key, res, res.entityIDs())

	c.logger.Debugw("Search complete",
		"query", query,
		"current", len(res.Current),
		"history", len(res.History),
		"archive", len(res.Archive),
		"took", res.Took,
	)
	return res, nil
}

// searchCurrent matches the current-state store and ranks hits by the
// relevance score, capped at limit.
func (c *Coordinator) searchCurrent(ctx context.Context, query string, limit int) ([]CurrentMatch, error) {
	candidates, err := c.entities.MatchCurrent(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search current state")
	}

	matches := make([]CurrentMatch, 0, len(candidates))
	for _, e := range candidates {
		matches = append(matches, CurrentMatch{
			Entity: e,
			Score:  Score(query, e),
			Source: SourceCurrent,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// searchHistory scans change-log records in the requested time range
// for textual matches.
func (c *Coordinator) searchHistory(ctx context.Context, query string, opts Options) ([]ChangeMatch, error) {
	it := c.entities.Changes(store.ChangeFilter{From: opts.From, To: opts.To})

	var matches []ChangeMatch
	for {
		rec, err := it.Next(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "scan change log")
		}
		if rec == nil {
			break
		}
		if matchesChange(query, rec) {
			matches = append(matches, ChangeMatch{Change: rec, Source: SourceHistory})
			if len(matches) >= opts.Limit {
				break
			}
		}
	}
	return matches, nil
}

// searchArchive decompresses candidate archive records, pre-filtered
// by period overlap so untouched periods are never decompressed.
func (c *Coordinator) searchArchive(ctx context.Context, query string, opts Options) []ChangeMatch {
	candidates, err := c.archives.Candidates(ctx, opts.From, opts.To)
	if err != nil {
		c.logger.Warnw("Failed to list archive candidates", "error", err)
		return nil
	}

	var matches []ChangeMatch
	for _, rec := range candidates {
		if len(matches) >= opts.Limit {
			break
		}

		changes, err := c.archives.Open(rec)
		if err != nil {
			// An unreadable record drops its contribution, nothing more.
			if errors.Is(err, codec.ErrDecompression) {
				c.logger.Warnw("Skipping unreadable archive record",
					"archive_id", rec.ID,
					"entity_id", rec.EntityID,
					"error", err,
				)
				continue
			}
			c.logger.Warnw("Failed to open archive record", "archive_id", rec.ID, "error", err)
			continue
		}

		for _, ch := range changes {
			if !opts.From.IsZero() && ch.Timestamp.Before(opts.From) {
				continue
			}
			if !opts.To.IsZero() && ch.Timestamp.After(opts.To) {
				continue
			}
			if matchesChange(query, ch) {
				matches = append(matches, ChangeMatch{Change: ch, Source: SourceArchive})
				if len(matches) >= opts.Limit {
					break
				}
			}
		}
	}
	return matches
}

// matchesChange reports whether a change record textually matches the
// query: entity ID, digested name, or any changed field value.
func matchesChange(query string, rec *entity.ChangeRecord) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(rec.EntityID), q) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.NewDigest.Name), q) {
		return true
	}
	for _, fc := range rec.ChangedFields {
		if strings.Contains(strings.ToLower(fc.New), q) || strings.Contains(strings.ToLower(fc.Old), q) {
			return true
		}
	}
	return false
}
