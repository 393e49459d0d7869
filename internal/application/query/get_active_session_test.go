package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ─── фейковые хранилища сессий и вопросов ───

type fakeSessionReader struct {
	active *quiz.Session
}

func (r *fakeSessionReader) Create(_ context.Context, _ *quiz.Session) error { return nil }

func (r *fakeSessionReader) GetByID(_ context.Context, id quiz.SessionID) (*quiz.Session, error) {
	if r.active != nil && r.active.ID == id {
		return r.active, nil
	}
	return nil, shared.ErrSessionNotFound
}

func (r *fakeSessionReader) GetActiveByUser(_ context.Context, userID shared.UserID) (*quiz.Session, error) {
	if r.active != nil && r.active.UserID == userID {
		return r.active, nil
	}
	return nil, shared.ErrSessionNotFound
}

func (r *fakeSessionReader) Update(_ context.Context, _ *quiz.Session, _ int) error { return nil }

type fakeQuestionReader struct {
	questions map[quiz.QuestionID]*quiz.Question
}

func (r *fakeQuestionReader) GetByID(_ context.Context, id quiz.QuestionID) (*quiz.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, shared.ErrQuestionNotFound
	}
	return q, nil
}

func (r *fakeQuestionReader) GetByIDs(_ context.Context, ids []quiz.QuestionID) (map[quiz.QuestionID]*quiz.Question, error) {
	out := make(map[quiz.QuestionID]*quiz.Question)
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (r *fakeQuestionReader) Sample(_ context.Context, _ quiz.ExamType, _ int) ([]*quiz.Question, error) {
	return nil, shared.ErrQuestionNotFound
}

func activeSessionFixture(t *testing.T) (*GetActiveSessionHandler, *quiz.Session) {
	t.Helper()

	session, err := quiz.NewSession("sess-1", "user-1", "aws-saa", quiz.ModePractice,
		[]quiz.QuestionID{"q1", "q2"})
	assert.NoError(t, err)
	assert.NoError(t, session.RecordAnswer("q1", quiz.OptionA, true, time.Now()))

	questions := &fakeQuestionReader{questions: map[quiz.QuestionID]*quiz.Question{
		"q2": {
			ID:       "q2",
			ExamType: "aws-saa",
			Domain:   "storage",
			Text:     "which storage class",
			Options: []quiz.Option{
				{Label: quiz.OptionA, Text: "standard", Explanation: "secret"},
				{Label: quiz.OptionB, Text: "glacier"},
				{Label: quiz.OptionC, Text: "onezone"},
				{Label: quiz.OptionD, Text: "intelligent"},
			},
			CorrectAnswer: quiz.OptionB,
		},
	}}

	h := NewGetActiveSessionHandler(&fakeSessionReader{active: session}, questions)
	return h, session
}

func TestGetActiveSession(t *testing.T) {
	h, _ := activeSessionFixture(t)

	result, err := h.Handle(context.Background(), GetActiveSessionQuery{UserID: "user-1"})

	assert.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "sess-1", result.Session.SessionID)
	assert.Equal(t, 1, result.Session.CurrentIndex)
	assert.Equal(t, 2, result.Session.TotalQuestions)
	assert.Equal(t, 1, result.Session.CorrectSoFar)
	assert.NotNil(t, result.Session.CurrentQuestion)
	assert.Equal(t, "q2", result.Session.CurrentQuestion.ID)
	assert.Len(t, result.Session.CurrentQuestion.Options, 4)
}

func TestGetActiveSession_NoSession(t *testing.T) {
	h := NewGetActiveSessionHandler(&fakeSessionReader{}, &fakeQuestionReader{})

	result, err := h.Handle(context.Background(), GetActiveSessionQuery{UserID: "user-1"})

	assert.NoError(t, err)
	assert.False(t, result.Found)
	assert.Nil(t, result.Session)
}

func TestGetActiveSession_ForeignUserSeesNothing(t *testing.T) {
	h, _ := activeSessionFixture(t)

	result, err := h.Handle(context.Background(), GetActiveSessionQuery{UserID: "user-2"})

	assert.NoError(t, err)
	assert.False(t, result.Found)
}
