package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

func newStartSessionHandler(store *fakeQuestionStore) (*StartSessionHandler, *fakeSessionRepo, *fakePublisher) {
	sessions := newFakeSessionRepo()
	publisher := &fakePublisher{}
	h := NewStartSessionHandler(sessions, store, publisher, testLogger())
	return h, sessions, publisher
}

func TestStartSession(t *testing.T) {
	store := newFakeQuestionStore(
		testQuestion("q1", "aws-saa", "networking", quiz.OptionA),
		testQuestion("q2", "aws-saa", "storage", quiz.OptionB),
		testQuestion("q3", "aws-saa", "compute", quiz.OptionC),
	)
	h, sessions, publisher := newStartSessionHandler(store)

	result, err := h.Handle(context.Background(), StartSessionCommand{
		UserID:   "user-1",
		ExamType: "aws-saa",
		Mode:     "practice",
		Count:    3,
	})

	assert.NoError(t, err)
	assert.NotNil(t, result.Session)
	assert.Equal(t, 3, result.Session.Length())
	assert.Equal(t, quiz.SessionStatusInProgress, result.Session.Status)
	assert.NotNil(t, result.FirstQuestion)
	assert.Equal(t, result.Session.QuestionIDs[0], result.FirstQuestion.ID)
	assert.True(t, publisher.has(shared.EventSessionStarted))

	active, err := sessions.GetActiveByUser(context.Background(), shared.UserID("user-1"))
	assert.NoError(t, err)
	assert.Equal(t, result.Session.ID, active.ID)
}

func TestStartSession_SecondActiveSessionRejected(t *testing.T) {
	store := newFakeQuestionStore(testQuestion("q1", "aws-saa", "networking", quiz.OptionA))
	h, _, _ := newStartSessionHandler(store)

	cmd := StartSessionCommand{UserID: "user-1", ExamType: "aws-saa", Mode: "practice", Count: 1}

	_, err := h.Handle(context.Background(), cmd)
	assert.NoError(t, err)

	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrActiveSessionConflict)
}

func TestStartSession_NoQuestionsForExam(t *testing.T) {
	store := newFakeQuestionStore(testQuestion("q1", "aws-saa", "networking", quiz.OptionA))
	h, _, _ := newStartSessionHandler(store)

	_, err := h.Handle(context.Background(), StartSessionCommand{
		UserID:   "user-1",
		ExamType: "ckad",
		Mode:     "practice",
		Count:    1,
	})
	assert.ErrorIs(t, err, shared.ErrQuestionNotFound)
}

func TestStartSessionCommand_Validate(t *testing.T) {
	valid := StartSessionCommand{UserID: "user-1", ExamType: "aws-saa", Mode: "study", Count: 10}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cmd  StartSessionCommand
	}{
		{"missing user", StartSessionCommand{ExamType: "aws-saa", Mode: "practice", Count: 1}},
		{"bad exam type", StartSessionCommand{UserID: "user-1", ExamType: "x", Mode: "practice", Count: 1}},
		{"bad mode", StartSessionCommand{UserID: "user-1", ExamType: "aws-saa", Mode: "exam", Count: 1}},
		{"zero count", StartSessionCommand{UserID: "user-1", ExamType: "aws-saa", Mode: "practice", Count: 0}},
		{"count too large", StartSessionCommand{UserID: "user-1", ExamType: "aws-saa", Mode: "practice", Count: 101}},
	}
	for _, tt := range tests {
		assert.Error(t, tt.cmd.Validate(), tt.name)
	}
}
