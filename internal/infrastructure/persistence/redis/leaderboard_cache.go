// Package redis implements the Redis-backed read caches of the progression
// engine.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/leaderboard"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Key patterns for leaderboard cache entries.
const (
	// keyLeaderboardPage prefixes cached result pages, suffixed with the
	// query's deterministic cache key.
	keyLeaderboardPage = "lb:page:"

	// keyLeaderboardRank prefixes cached per-user ranks, suffixed with the
	// query cache key and the user id.
	keyLeaderboardRank = "lb:rank:"
)

// entryRecord is the JSON shape of one cached ranking row.
type entryRecord struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	Score    float64 `json:"score"`
	Attempts int     `json:"attempts"`
	Level    int     `json:"level"`
}

// pageRecord is the JSON shape of one cached page.
type pageRecord struct {
	Entries []entryRecord `json:"entries"`
	Total   int           `json:"total"`
}

// LeaderboardCache implements leaderboard.Cache over plain JSON values.
// Pages are cached whole under the query's cache key; the short TTL bounds
// staleness, so nothing invalidates pages on individual submissions.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// GetPage returns a cached page and its full-set size.
// Returns shared.ErrNotFound on a miss.
func (l *LeaderboardCache) GetPage(ctx context.Context, key string) ([]*leaderboard.Entry, int, error) {
	var page pageRecord
	err := l.cache.Get(ctx, keyLeaderboardPage+key, &page)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, 0, shared.ErrNotFound
		}
		return nil, 0, err
	}

	entries := make([]*leaderboard.Entry, len(page.Entries))
	for i, rec := range page.Entries {
		entries[i] = toEntry(rec)
	}

	return entries, page.Total, nil
}

// SetPage caches a page with the given TTL.
func (l *LeaderboardCache) SetPage(ctx context.Context, key string, entries []*leaderboard.Entry, total int, ttl time.Duration) error {
	page := pageRecord{
		Entries: make([]entryRecord, len(entries)),
		Total:   total,
	}
	for i, entry := range entries {
		page.Entries[i] = toRecord(entry)
	}

	return l.cache.Set(ctx, keyLeaderboardPage+key, page, ttl)
}

// GetRank returns the cached rank row for one user under a query.
// Returns shared.ErrNotFound on a miss.
func (l *LeaderboardCache) GetRank(ctx context.Context, key string, userID shared.UserID) (*leaderboard.Entry, error) {
	var rec entryRecord
	err := l.cache.Get(ctx, rankKey(key, userID), &rec)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return toEntry(rec), nil
}

// SetRank caches one user's rank row.
func (l *LeaderboardCache) SetRank(ctx context.Context, key string, entry *leaderboard.Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}

	return l.cache.Set(ctx, rankKey(key, entry.UserID), toRecord(entry), ttl)
}

// Invalidate drops every cached page and rank.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	if err := l.cache.DeleteByPattern(ctx, keyLeaderboardPage+"*"); err != nil {
		return err
	}
	return l.cache.DeleteByPattern(ctx, keyLeaderboardRank+"*")
}

func rankKey(queryKey string, userID shared.UserID) string {
	return keyLeaderboardRank + queryKey + ":" + userID.String()
}

func toRecord(entry *leaderboard.Entry) entryRecord {
	return entryRecord{
		Rank:     int(entry.Rank),
		UserID:   entry.UserID.String(),
		Score:    entry.Score,
		Attempts: entry.Attempts,
		Level:    entry.Level,
	}
}

func toEntry(rec entryRecord) *leaderboard.Entry {
	return &leaderboard.Entry{
		Rank:     leaderboard.Rank(rec.Rank),
		UserID:   shared.UserID(rec.UserID),
		Score:    rec.Score,
		Attempts: rec.Attempts,
		Level:    rec.Level,
	}
}
