package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

func evalContext(t *testing.T) EvaluationContext {
	t.Helper()

	p, err := profile.NewProfile(shared.UserID("user-1"))
	assert.NoError(t, err)
	p.TotalExamsTaken = 5
	p.TotalQuestionsAnswered = 50
	p.StreakCurrent = 3
	p.StreakLongest = 3
	assert.NoError(t, p.AddXP(450)) // level 3

	attempt, err := quiz.NewAttempt(quiz.NewAttemptParams{
		ID:             "att-1",
		UserID:         "user-1",
		ExamType:       "aws-saa",
		Mode:           quiz.ModePractice,
		TotalQuestions: 10,
		CorrectAnswers: 10,
		TimeTaken:      time.Minute,
		XPEarned:       150,
	})
	assert.NoError(t, err)

	return EvaluationContext{
		Profile: p,
		Attempt: attempt,
		Aggregates: &quiz.UserAggregates{
			AttemptsByExam: map[quiz.ExamType]int{
				"aws-saa": 4,
				"ckad":    1,
			},
			AccuracyByDomain: map[string]float64{
				"networking": 92.5,
				"storage":    61.0,
			},
			QuestionsAnswered: 50,
		},
		PerfectScoreCount: 2,
	}
}

func TestIsSatisfied_QuizCount(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a1", Code: "getting_started", CriteriaType: CriteriaQuizCount, CriteriaValue: 5}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 6
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_QuizCountScopedToExam(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{
		ID: "a2", Code: "aws_regular",
		CriteriaType: CriteriaQuizCount, CriteriaValue: 4,
		CriteriaExamType: "aws-saa",
	}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaExamType = "ckad"
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_PerfectScore(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a3", Code: "flawless", CriteriaType: CriteriaPerfectScore, CriteriaValue: 2}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 3
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_StreakLength(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a4", Code: "on_fire", CriteriaType: CriteriaStreakLength, CriteriaValue: 3}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 7
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_DomainAccuracy(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a5", Code: "domain_expert", CriteriaType: CriteriaDomainAccuracy, CriteriaValue: 90}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 95
	assert.False(t, a.IsSatisfied(ctx))

	ctx.Aggregates = nil
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_ExamSpecificCount(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{
		ID: "a6", Code: "ckad_explorer",
		CriteriaType: CriteriaExamSpecificCount, CriteriaValue: 1,
		CriteriaExamType: "ckad",
	}
	assert.True(t, a.IsSatisfied(ctx))

	// unscoped exam_specific_count falls back to the attempt's exam type
	a.CriteriaExamType = ""
	a.CriteriaValue = 4
	assert.True(t, a.IsSatisfied(ctx))
	a.CriteriaValue = 5
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_LevelReached(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a7", Code: "apprentice", CriteriaType: CriteriaLevelReached, CriteriaValue: 3}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 4
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_QuestionCount(t *testing.T) {
	ctx := evalContext(t)

	a := &Achievement{ID: "a8", Code: "fifty_questions", CriteriaType: CriteriaQuestionCount, CriteriaValue: 50}
	assert.True(t, a.IsSatisfied(ctx))

	a.CriteriaValue = 51
	assert.False(t, a.IsSatisfied(ctx))
}

func TestIsSatisfied_UnknownCriteria(t *testing.T) {
	ctx := evalContext(t)
	a := &Achievement{ID: "a9", Code: "mystery", CriteriaType: "mystery", CriteriaValue: 1}
	assert.False(t, a.IsSatisfied(ctx))
}

func TestAchievementValidate(t *testing.T) {
	a := &Achievement{ID: "a1", Code: "getting_started", CriteriaType: CriteriaQuizCount, CriteriaValue: 5, XPReward: 50}
	assert.NoError(t, a.Validate())

	a.CriteriaValue = 0
	assert.Error(t, a.Validate())

	a.CriteriaValue = 5
	a.CriteriaType = "bogus"
	assert.Error(t, a.Validate())
}
