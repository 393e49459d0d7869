package command

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

type attemptFixture struct {
	handler   *SubmitAttemptHandler
	profiles  *fakeProfileRepo
	attempts  *fakeAttemptRepo
	awards    *fakeAchievementRepo
	publisher *fakePublisher
	tx        *fakeTxManager
}

func newAttemptFixture(store *fakeQuestionStore, defs ...*achievement.Achievement) *attemptFixture {
	profiles := newFakeProfileRepo()
	attempts := newFakeAttemptRepo()
	awards := newFakeAchievementRepo(defs...)
	publisher := &fakePublisher{}
	tx := &fakeTxManager{}

	h := NewSubmitAttemptHandler(
		store, profiles, attempts, awards, tx, publisher, testLogger(),
	)
	return &attemptFixture{
		handler:   h,
		profiles:  profiles,
		attempts:  attempts,
		awards:    awards,
		publisher: publisher,
		tx:        tx,
	}
}

func awsQuestionStore() *fakeQuestionStore {
	return newFakeQuestionStore(
		testQuestion("q1", "aws-saa", "networking", quiz.OptionA),
		testQuestion("q2", "aws-saa", "storage", quiz.OptionB),
		testQuestion("q3", "aws-saa", "compute", quiz.OptionC),
		testQuestion("q4", "aws-saa", "security", quiz.OptionD),
	)
}

func fullBatch() []AttemptAnswer {
	return []AttemptAnswer{
		{QuestionID: "q1", Answer: "A"},
		{QuestionID: "q2", Answer: "B"},
		{QuestionID: "q3", Answer: "C"},
		{QuestionID: "q4", Answer: "D"},
	}
}

func TestSubmitAttempt_PerfectBatch(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())
	ctx := context.Background()

	result, err := fx.handler.Handle(ctx, SubmitAttemptCommand{
		UserID:    "user-1",
		ExamType:  "aws-saa",
		Mode:      "practice",
		Answers:   fullBatch(),
		TimeTaken: 3 * time.Minute,
	})

	assert.NoError(t, err)
	outcome := result.Outcome
	assert.False(t, outcome.Replayed)
	assert.Equal(t, 4, outcome.Attempt.CorrectAnswers)
	assert.Equal(t, 100.0, outcome.Attempt.ScorePercentage)
	// Base 40, multiplier 1.5 at 100% accuracy.
	assert.Equal(t, 60, outcome.XPEarned)
	assert.Equal(t, 1, outcome.StreakCurrent)
	assert.Equal(t, 1, fx.tx.calls)

	prof, err := fx.profiles.Get(ctx, shared.UserID("user-1"))
	assert.NoError(t, err)
	assert.Equal(t, profile.XP(60), prof.XP)
	assert.Equal(t, 1, prof.TotalExamsTaken)
	assert.Equal(t, 4, prof.TotalQuestionsAnswered)
	assert.True(t, fx.publisher.has(shared.EventAttemptRecorded))
	assert.True(t, fx.publisher.has(shared.EventStreakUpdated))
}

func TestSubmitAttempt_ServerSideGradingIgnoresClientFlags(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())

	// Two right, two wrong: 50% accuracy, no multiplier. Base 20.
	result, err := fx.handler.Handle(context.Background(), SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
		Answers: []AttemptAnswer{
			{QuestionID: "q1", Answer: "A"},
			{QuestionID: "q2", Answer: "B"},
			{QuestionID: "q3", Answer: "A"},
			{QuestionID: "q4", Answer: "A"},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Outcome.Attempt.CorrectAnswers)
	assert.Equal(t, 50.0, result.Outcome.Attempt.ScorePercentage)
	assert.Equal(t, 20, result.Outcome.XPEarned)
}

func TestSubmitAttempt_StudyModeZeroXP(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())
	ctx := context.Background()

	result, err := fx.handler.Handle(ctx, SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "study",
		Answers:  fullBatch(),
	})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Outcome.XPEarned)
	assert.Equal(t, 1, result.Outcome.StreakCurrent)
	assert.False(t, fx.publisher.has(shared.EventXPGained))
}

func TestSubmitAttempt_IdempotentReplay(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())
	ctx := context.Background()

	cmd := SubmitAttemptCommand{
		UserID:         "user-1",
		ExamType:       "aws-saa",
		Mode:           "practice",
		Answers:        fullBatch(),
		IdempotencyKey: "req-42",
	}

	first, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)

	second, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)

	assert.True(t, second.Outcome.Replayed)
	assert.Equal(t, first.Outcome.Attempt.ID, second.Outcome.Attempt.ID)
	assert.Len(t, fx.attempts.attempts, 1)

	// The replay mutates nothing: XP credited exactly once.
	prof, err := fx.profiles.Get(ctx, shared.UserID("user-1"))
	assert.NoError(t, err)
	assert.Equal(t, profile.XP(60), prof.XP)
	assert.Equal(t, 1, prof.TotalExamsTaken)
}

func TestSubmitAttempt_ForeignQuestionRejectsBatch(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())

	_, err := fx.handler.Handle(context.Background(), SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
		Answers: []AttemptAnswer{
			{QuestionID: "q1", Answer: "A"},
			{QuestionID: "q-missing", Answer: "B"},
		},
	})

	assert.ErrorIs(t, err, shared.ErrForeignQuestion)
	assert.Empty(t, fx.attempts.attempts)
}

func TestSubmitAttempt_DuplicateQuestionRejected(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())

	_, err := fx.handler.Handle(context.Background(), SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
		Answers: []AttemptAnswer{
			{QuestionID: "q1", Answer: "A"},
			{QuestionID: "q1", Answer: "B"},
		},
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateAnswer)
}

func TestSubmitAttempt_EmptyBatchRejected(t *testing.T) {
	fx := newAttemptFixture(awsQuestionStore())

	_, err := fx.handler.Handle(context.Background(), SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
	})
	assert.ErrorIs(t, err, shared.ErrEmptySubmission)
}

func TestSubmitAttempt_UnlocksAchievementWithReward(t *testing.T) {
	firstQuiz := &achievement.Achievement{
		ID:            "ach-first",
		Code:          "first_quiz",
		Name:          "First Steps",
		CriteriaType:  achievement.CriteriaQuizCount,
		CriteriaValue: 1,
		XPReward:      50,
	}
	fx := newAttemptFixture(awsQuestionStore(), firstQuiz)
	ctx := context.Background()

	result, err := fx.handler.Handle(ctx, SubmitAttemptCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
		Answers:  fullBatch(),
	})

	assert.NoError(t, err)
	outcome := result.Outcome
	assert.Len(t, outcome.Unlocked, 1)
	assert.Equal(t, "first_quiz", outcome.Unlocked[0].Code)
	assert.Equal(t, 50, outcome.RewardXP)

	// 60 attempt XP + 50 reward.
	prof, err := fx.profiles.Get(ctx, shared.UserID("user-1"))
	assert.NoError(t, err)
	assert.Equal(t, profile.XP(110), prof.XP)
	// Level derives from the post-reward total: floor(sqrt(110/100))+1 = 2.
	assert.Equal(t, profile.Level(2), prof.Level)
	assert.True(t, outcome.LevelUp)
	assert.True(t, fx.publisher.has(shared.EventAchievementUnlocked))
	assert.True(t, fx.publisher.has(shared.EventLevelUp))

	// History records the attempt grant and the reward grant separately.
	assert.Len(t, fx.profiles.history, 2)
	assert.Equal(t, profile.XPReasonAttempt, fx.profiles.history[0].Reason)
	assert.Equal(t, profile.XPReasonAchievementReward, fx.profiles.history[1].Reason)
}

func TestSubmitAttempt_AchievementAwardedExactlyOnce(t *testing.T) {
	firstQuiz := &achievement.Achievement{
		ID:            "ach-first",
		Code:          "first_quiz",
		CriteriaType:  achievement.CriteriaQuizCount,
		CriteriaValue: 1,
		XPReward:      50,
	}
	fx := newAttemptFixture(awsQuestionStore(), firstQuiz)
	ctx := context.Background()

	cmd := SubmitAttemptCommand{
		UserID: "user-1", ExamType: "aws-saa", Mode: "practice", Answers: fullBatch(),
	}

	first, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)
	assert.Len(t, first.Outcome.Unlocked, 1)

	second, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)
	assert.Empty(t, second.Outcome.Unlocked)

	earned, err := fx.awards.ListEarned(ctx, shared.UserID("user-1"))
	assert.NoError(t, err)
	assert.Len(t, earned, 1)
}

func TestSubmitAttempt_RewardNeverRetriggersEvaluation(t *testing.T) {
	// level_reached 2 is satisfied only after the first_quiz reward lands.
	// One sweep per submission means it unlocks on the NEXT submission,
	// not recursively within this one.
	firstQuiz := &achievement.Achievement{
		ID:            "ach-first",
		Code:          "first_quiz",
		CriteriaType:  achievement.CriteriaQuizCount,
		CriteriaValue: 1,
		XPReward:      50,
	}
	levelTwo := &achievement.Achievement{
		ID:            "ach-level-2",
		Code:          "level_2",
		CriteriaType:  achievement.CriteriaLevelReached,
		CriteriaValue: 2,
	}
	fx := newAttemptFixture(awsQuestionStore(), firstQuiz, levelTwo)
	ctx := context.Background()

	cmd := SubmitAttemptCommand{
		UserID: "user-1", ExamType: "aws-saa", Mode: "practice", Answers: fullBatch(),
	}

	first, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)

	unlockedCodes := make([]string, 0, len(first.Outcome.Unlocked))
	for _, a := range first.Outcome.Unlocked {
		unlockedCodes = append(unlockedCodes, a.Code)
	}
	assert.NotContains(t, unlockedCodes, "level_2")

	second, err := fx.handler.Handle(ctx, cmd)
	assert.NoError(t, err)
	assert.Len(t, second.Outcome.Unlocked, 1)
	assert.Equal(t, "level_2", second.Outcome.Unlocked[0].Code)
}
