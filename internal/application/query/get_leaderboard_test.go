package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/leaderboard"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

func queryTestLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

// ─── фейковое хранилище рейтинга ───

type fakeLeaderboardRepo struct {
	entries  []*leaderboard.Entry
	rank     *leaderboard.Entry
	topCalls int
}

func (r *fakeLeaderboardRepo) TopByMetric(_ context.Context, _ leaderboard.Query, _ time.Time) ([]*leaderboard.Entry, error) {
	r.topCalls++
	return r.entries, nil
}

func (r *fakeLeaderboardRepo) RankFor(_ context.Context, _ leaderboard.Query, _ time.Time, userID shared.UserID) (*leaderboard.Entry, error) {
	if r.rank != nil && r.rank.UserID == userID {
		return r.rank, nil
	}
	return nil, nil
}

func (r *fakeLeaderboardRepo) TotalCount(_ context.Context, _ leaderboard.Query, _ time.Time) (int, error) {
	return len(r.entries) + 100, nil
}

// ─── фейковый кеш ───

type fakeLeaderboardCache struct {
	pages map[string][]*leaderboard.Entry
	total map[string]int
	ranks map[string]*leaderboard.Entry
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{
		pages: make(map[string][]*leaderboard.Entry),
		total: make(map[string]int),
		ranks: make(map[string]*leaderboard.Entry),
	}
}

func (c *fakeLeaderboardCache) GetPage(_ context.Context, key string) ([]*leaderboard.Entry, int, error) {
	page, ok := c.pages[key]
	if !ok {
		return nil, 0, shared.ErrNotFound
	}
	return page, c.total[key], nil
}

func (c *fakeLeaderboardCache) SetPage(_ context.Context, key string, entries []*leaderboard.Entry, total int, _ time.Duration) error {
	c.pages[key] = entries
	c.total[key] = total
	return nil
}

func (c *fakeLeaderboardCache) GetRank(_ context.Context, key string, userID shared.UserID) (*leaderboard.Entry, error) {
	entry, ok := c.ranks[key+":"+userID.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entry, nil
}

func (c *fakeLeaderboardCache) SetRank(_ context.Context, key string, entry *leaderboard.Entry, _ time.Duration) error {
	c.ranks[key+":"+entry.UserID.String()] = entry
	return nil
}

func (c *fakeLeaderboardCache) Invalidate(_ context.Context) error {
	c.pages = make(map[string][]*leaderboard.Entry)
	c.total = make(map[string]int)
	c.ranks = make(map[string]*leaderboard.Entry)
	return nil
}

func rankedEntries() []*leaderboard.Entry {
	return []*leaderboard.Entry{
		{Rank: 1, UserID: "user-a", Score: 500, Level: 3},
		{Rank: 2, UserID: "user-b", Score: 300, Level: 2},
		{Rank: 3, UserID: "user-c", Score: 300, Level: 2},
	}
}

func TestGetLeaderboard_RepoFallbackPopulatesCache(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries()}
	cache := newFakeLeaderboardCache()
	h := NewGetLeaderboardHandler(repo, cache, DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "xp"})

	assert.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Len(t, result.Entries, 3)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "user-a", result.Entries[0].UserID)
	assert.Equal(t, 500, result.Entries[0].Score)
	assert.Equal(t, 103, result.TotalCount)
	assert.True(t, result.HasMore)
	assert.Equal(t, "all_time", result.Period)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, leaderboard.DefaultLimit, result.PageSize)

	// Повторный запрос обслуживается из кеша без похода в хранилище.
	again, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "xp"})
	assert.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, 1, repo.topCalls)
}

func TestGetLeaderboard_RequesterOutsidePage(t *testing.T) {
	repo := &fakeLeaderboardRepo{
		entries: rankedEntries(),
		rank:    &leaderboard.Entry{Rank: 42, UserID: "user-z", Score: 10, Level: 1},
	}
	h := NewGetLeaderboardHandler(repo, newFakeLeaderboardCache(), DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Metric:      "xp",
		RequesterID: "user-z",
	})

	assert.NoError(t, err)
	assert.NotNil(t, result.Requester)
	assert.Equal(t, 42, result.Requester.Rank)
	assert.Equal(t, "user-z", result.Requester.UserID)
}

func TestGetLeaderboard_RequesterOnPage(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries()}
	h := NewGetLeaderboardHandler(repo, newFakeLeaderboardCache(), DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Metric:      "xp",
		RequesterID: "user-b",
	})

	assert.NoError(t, err)
	assert.NotNil(t, result.Requester)
	assert.Equal(t, 2, result.Requester.Rank)
}

func TestGetLeaderboard_RequesterAbsentFromSet(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries()}
	h := NewGetLeaderboardHandler(repo, newFakeLeaderboardCache(), DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Metric:      "xp",
		RequesterID: "user-nobody",
	})

	assert.NoError(t, err)
	assert.Nil(t, result.Requester)
}

func TestGetLeaderboard_AccuracyRoundedAtDisplay(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: []*leaderboard.Entry{
		{Rank: 1, UserID: "user-a", Score: 87.5, Attempts: 12, Level: 2},
	}}
	h := NewGetLeaderboardHandler(repo, newFakeLeaderboardCache(), DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "accuracy"})

	assert.NoError(t, err)
	assert.Equal(t, 88, result.Entries[0].Score)
	assert.Equal(t, 12, result.Entries[0].Attempts)
}

func TestGetLeaderboard_Validation(t *testing.T) {
	h := NewGetLeaderboardHandler(&fakeLeaderboardRepo{}, nil, DefaultGetLeaderboardHandlerConfig(), queryTestLogger())
	ctx := context.Background()

	_, err := h.Handle(ctx, GetLeaderboardQuery{Metric: "elo"})
	assert.ErrorIs(t, err, shared.ErrUnknownMetric)

	_, err = h.Handle(ctx, GetLeaderboardQuery{Metric: "xp", Period: "daily"})
	assert.ErrorIs(t, err, shared.ErrUnknownPeriod)

	// exam_specific без фильтра по экзамену отклоняется.
	_, err = h.Handle(ctx, GetLeaderboardQuery{Metric: "exam_specific"})
	assert.Error(t, err)

	// accuracy с порогом вне списка 1/5/10/20 отклоняется.
	_, err = h.Handle(ctx, GetLeaderboardQuery{Metric: "accuracy", MinAttempts: 7})
	assert.Error(t, err)
}

func TestGetLeaderboard_NilCache(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries()}
	h := NewGetLeaderboardHandler(repo, nil, DefaultGetLeaderboardHandlerConfig(), queryTestLogger())

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "streak"})
	assert.NoError(t, err)
	assert.Len(t, result.Entries, 3)
}
