package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

func validAttemptParams() NewAttemptParams {
	return NewAttemptParams{
		ID:             "att-1",
		UserID:         testUserID,
		ExamType:       "aws-saa",
		Mode:           ModePractice,
		TotalQuestions: 10,
		CorrectAnswers: 7,
		TimeTaken:      5 * time.Minute,
		XPEarned:       77,
	}
}

func TestNewAttempt_ComputesScore(t *testing.T) {
	a, err := NewAttempt(validAttemptParams())
	assert.NoError(t, err)
	assert.InDelta(t, 70.0, a.ScorePercentage, 1e-9)
	assert.False(t, a.IsPerfectScore())
}

func TestNewAttempt_ScoreKeepsFractionalPrecision(t *testing.T) {
	params := validAttemptParams()
	params.TotalQuestions = 3
	params.CorrectAnswers = 2

	a, err := NewAttempt(params)
	assert.NoError(t, err)
	assert.InDelta(t, 100.0*2.0/3.0, a.ScorePercentage, 1e-9)
}

func TestNewAttempt_PerfectScore(t *testing.T) {
	params := validAttemptParams()
	params.CorrectAnswers = 10

	a, err := NewAttempt(params)
	assert.NoError(t, err)
	assert.True(t, a.IsPerfectScore())
	assert.InDelta(t, 100.0, a.ScorePercentage, 1e-9)
}

func TestNewAttempt_Validation(t *testing.T) {
	params := validAttemptParams()
	params.TotalQuestions = 0
	_, err := NewAttempt(params)
	assert.ErrorIs(t, err, shared.ErrEmptySubmission)

	params = validAttemptParams()
	params.CorrectAnswers = 11
	_, err = NewAttempt(params)
	assert.Error(t, err)

	params = validAttemptParams()
	params.CorrectAnswers = -1
	_, err = NewAttempt(params)
	assert.Error(t, err)

	params = validAttemptParams()
	params.TimeTaken = -time.Second
	_, err = NewAttempt(params)
	assert.Error(t, err)

	params = validAttemptParams()
	params.Mode = "turbo"
	_, err = NewAttempt(params)
	assert.Error(t, err)
}

func TestValidateBatch(t *testing.T) {
	assert.ErrorIs(t, ValidateBatch(nil), shared.ErrEmptySubmission)

	err := ValidateBatch([]AnswerSubmission{
		{QuestionID: "q1", Answer: OptionA},
		{QuestionID: "q1", Answer: OptionB},
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateAnswer)

	err = ValidateBatch([]AnswerSubmission{
		{QuestionID: "q1", Answer: OptionA},
		{QuestionID: "q2", Answer: OptionB},
	})
	assert.NoError(t, err)
}

func TestModeEarnsXP(t *testing.T) {
	assert.True(t, ModePractice.EarnsXP())
	assert.False(t, ModeStudy.EarnsXP())
}
