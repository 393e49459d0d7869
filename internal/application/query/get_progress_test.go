package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ─── фейковые хранилища прогрессии ───

type fakeProfileReader struct {
	profile *profile.Profile
}

func (r *fakeProfileReader) Create(_ context.Context, _ *profile.Profile) error { return nil }

func (r *fakeProfileReader) Get(_ context.Context, userID shared.UserID) (*profile.Profile, error) {
	if r.profile != nil && r.profile.UserID == userID {
		return r.profile, nil
	}
	return nil, shared.ErrProfileNotFound
}

func (r *fakeProfileReader) GetForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	return r.Get(ctx, userID)
}

func (r *fakeProfileReader) GetOrCreateForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	return r.Get(ctx, userID)
}

func (r *fakeProfileReader) Save(_ context.Context, _ *profile.Profile) error { return nil }

func (r *fakeProfileReader) AppendXPHistory(_ context.Context, _ profile.XPHistoryEntry) error {
	return nil
}

func (r *fakeProfileReader) GetXPHistory(_ context.Context, _ shared.UserID, _, _ time.Time) ([]profile.XPHistoryEntry, error) {
	return nil, nil
}

type fakeAttemptReader struct {
	attempts []*quiz.Attempt
}

func (r *fakeAttemptReader) Create(_ context.Context, _ *quiz.Attempt) error { return nil }

func (r *fakeAttemptReader) GetByID(_ context.Context, _ quiz.AttemptID) (*quiz.Attempt, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeAttemptReader) GetByIdempotencyKey(_ context.Context, _ shared.UserID, _ string) (*quiz.Attempt, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeAttemptReader) ListByUser(_ context.Context, userID shared.UserID, limit, _ int) ([]*quiz.Attempt, error) {
	var out []*quiz.Attempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeAttemptReader) CountByUserAndExam(_ context.Context, _ shared.UserID, _ quiz.ExamType, _ time.Time) (int, error) {
	return len(r.attempts), nil
}

func (r *fakeAttemptReader) AggregatesByUser(_ context.Context, _ shared.UserID) (*quiz.UserAggregates, error) {
	return &quiz.UserAggregates{}, nil
}

type fakeAchievementReader struct {
	defs   []*achievement.Achievement
	earned []*achievement.EarnedAchievement
}

func (r *fakeAchievementReader) ListDefinitions(_ context.Context) ([]*achievement.Achievement, error) {
	return r.defs, nil
}

func (r *fakeAchievementReader) GetByID(_ context.Context, _ achievement.AchievementID) (*achievement.Achievement, error) {
	return nil, shared.ErrAchievementNotFound
}

func (r *fakeAchievementReader) ListEarnedIDs(_ context.Context, _ shared.UserID) (map[achievement.AchievementID]bool, error) {
	return nil, nil
}

func (r *fakeAchievementReader) ListEarned(_ context.Context, userID shared.UserID) ([]*achievement.EarnedAchievement, error) {
	var out []*achievement.EarnedAchievement
	for _, e := range r.earned {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAchievementReader) Award(_ context.Context, _ *achievement.EarnedAchievement) (bool, error) {
	return false, nil
}

func (r *fakeAchievementReader) CountPerfectScores(_ context.Context, _ shared.UserID) (int, error) {
	return 0, nil
}

func TestGetProgress(t *testing.T) {
	prof, err := profile.NewProfile("user-1")
	assert.NoError(t, err)
	_, err = prof.ApplySubmission(profile.SubmissionStats{
		CorrectAnswers: 9,
		TotalQuestions: 10,
		EarnsXP:        true,
		SubmittedAt:    time.Now(),
	})
	assert.NoError(t, err)

	earnedAt := time.Now().UTC()
	h := NewGetProgressHandler(
		&fakeProfileReader{profile: prof},
		&fakeAttemptReader{attempts: []*quiz.Attempt{{
			ID:              "att-1",
			UserID:          "user-1",
			ExamType:        "aws-saa",
			Mode:            quiz.ModePractice,
			TotalQuestions:  10,
			CorrectAnswers:  9,
			ScorePercentage: 90.0,
			XPEarned:        135,
			CreatedAt:       earnedAt,
		}}},
		&fakeAchievementReader{
			defs: []*achievement.Achievement{{
				ID:       "ach-first",
				Code:     "first_quiz",
				Name:     "First Steps",
				XPReward: 50,
			}},
			earned: []*achievement.EarnedAchievement{{
				UserID:        "user-1",
				AchievementID: "ach-first",
				EarnedAt:      earnedAt,
			}},
		},
	)

	result, err := h.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})

	assert.NoError(t, err)
	// 9/10 правильных: база 90, множитель 1.5 -> 135 XP.
	assert.Equal(t, 135, result.XP)
	assert.Equal(t, 2, result.Level)
	assert.Equal(t, 1, result.StreakCurrent)
	assert.NotEmpty(t, result.LastActivityDate)

	assert.Len(t, result.Achievements, 1)
	assert.Equal(t, "first_quiz", result.Achievements[0].Code)
	assert.Equal(t, 50, result.Achievements[0].XPReward)

	assert.Len(t, result.RecentAttempts, 1)
	assert.Equal(t, "att-1", result.RecentAttempts[0].AttemptID)
	assert.Equal(t, 90.0, result.RecentAttempts[0].ScorePercentage)
}

func TestGetProgress_NewUserGetsEmptyProfile(t *testing.T) {
	h := NewGetProgressHandler(
		&fakeProfileReader{},
		&fakeAttemptReader{},
		&fakeAchievementReader{},
	)

	result, err := h.Handle(context.Background(), GetProgressQuery{UserID: "user-new"})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.XP)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, 0, result.StreakCurrent)
	assert.Empty(t, result.LastActivityDate)
	assert.Empty(t, result.Achievements)
	assert.Empty(t, result.RecentAttempts)
}

func TestGetProgressQuery_Validate(t *testing.T) {
	q := GetProgressQuery{UserID: "user-1"}
	assert.NoError(t, q.Validate())
	assert.Equal(t, 10, q.RecentAttempts)

	q = GetProgressQuery{UserID: "user-1", RecentAttempts: 500}
	assert.NoError(t, q.Validate())
	assert.Equal(t, 50, q.RecentAttempts)

	q = GetProgressQuery{}
	assert.Error(t, q.Validate())
}
