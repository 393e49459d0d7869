package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand opens an interactive quiz session for a user.
type StartSessionCommand struct {
	UserID   string
	ExamType string
	Mode     string
	Count    int
}

// Validate checks command input before any repository access.
func (c *StartSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := quiz.NewExamType(c.ExamType); err != nil {
		return err
	}
	if _, err := quiz.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Count < quiz.MinSessionQuestions || c.Count > quiz.MaxSessionQuestions {
		return fmt.Errorf("%w: question count must be %d..%d, got %d",
			shared.ErrValueOutOfRange, quiz.MinSessionQuestions, quiz.MaxSessionQuestions, c.Count)
	}
	return nil
}

// StartSessionResult carries the new session and its first question.
type StartSessionResult struct {
	Session       *quiz.Session
	FirstQuestion *quiz.Question
	Events        []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionHandler samples questions and creates the session. The
// single-active-session rule is enforced by the storage layer, so two
// concurrent starts race on the insert rather than on a read.
type StartSessionHandler struct {
	sessions  quiz.SessionRepository
	questions quiz.QuestionStore
	publisher shared.EventPublisher
	log       *logger.Logger
}

func NewStartSessionHandler(
	sessions quiz.SessionRepository,
	questions quiz.QuestionStore,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *StartSessionHandler {
	return &StartSessionHandler{
		sessions:  sessions,
		questions: questions,
		publisher: publisher,
		log:       log.With(logger.Component("start_session")),
	}
}

// Handle creates the session or surfaces shared.ErrActiveSessionConflict
// when the user already has one in progress.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID, _ := shared.NewUserID(cmd.UserID)
	examType, _ := quiz.NewExamType(cmd.ExamType)
	mode, _ := quiz.ParseMode(cmd.Mode)

	sampled, err := h.questions.Sample(ctx, examType, cmd.Count)
	if err != nil {
		return nil, fmt.Errorf("start session: sample questions: %w", err)
	}
	if len(sampled) == 0 {
		return nil, shared.ErrQuestionNotFound
	}

	questionIDs := make([]quiz.QuestionID, len(sampled))
	for i, q := range sampled {
		questionIDs[i] = q.ID
	}

	session, err := quiz.NewSession(
		quiz.SessionID(uuid.NewString()),
		userID,
		examType,
		mode,
		questionIDs,
	)
	if err != nil {
		return nil, err
	}

	if err := h.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	h.log.Info("session started",
		logger.SessionID(session.ID.String()),
		logger.UserID(userID.String()),
		logger.ExamType(examType.String()),
		logger.Int("questions", session.Length()),
	)

	event := shared.NewSessionStartedEvent(
		session.ID.String(), userID.String(), examType.String(), string(mode), session.Length())
	publishAll(h.publisher, h.log, []shared.Event{event})

	return &StartSessionResult{
		Session:       session,
		FirstQuestion: sampled[0],
		Events:        []shared.Event{event},
	}, nil
}
