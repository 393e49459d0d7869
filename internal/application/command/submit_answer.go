package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerCommand answers the current question of an active session.
type SubmitAnswerCommand struct {
	SessionID  string
	UserID     string
	QuestionID string
	Answer     string
}

// Validate checks command input before any repository access.
func (c *SubmitAnswerCommand) Validate() error {
	if !quiz.SessionID(c.SessionID).IsValid() {
		return shared.NewDomainError("quiz", "SubmitAnswer", shared.ErrValidation, "session id is required")
	}
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if !quiz.QuestionID(c.QuestionID).IsValid() {
		return shared.NewDomainError("quiz", "SubmitAnswer", shared.ErrValidation, "question id is required")
	}
	if !quiz.NormalizeLabel(c.Answer).IsValid() {
		return shared.NewDomainError("quiz", "SubmitAnswer", shared.ErrValidation, "answer must be one of A, B, C, D")
	}
	return nil
}

// SubmitAnswerResult carries per-answer feedback plus, when the answer was
// the last one, the full completion outcome.
type SubmitAnswerResult struct {
	IsCorrect     bool
	CorrectAnswer quiz.OptionLabel
	Explanation   string

	// NextQuestion is nil once the session is complete.
	NextQuestion *quiz.Question

	// Completion is non-nil only for the final answer.
	Completion *SubmissionOutcome
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerHandler grades one answer, advances the session cursor, and on
// the final answer converts the session into an attempt through the
// submission pipeline. All writes share a single transaction.
type SubmitAnswerHandler struct {
	sessions  quiz.SessionRepository
	questions quiz.QuestionStore
	pipeline  *submissionPipeline
	txManager shared.TxManager
	publisher shared.EventPublisher
	log       *logger.Logger
}

func NewSubmitAnswerHandler(
	sessions quiz.SessionRepository,
	questions quiz.QuestionStore,
	profiles profile.Repository,
	attempts quiz.AttemptRepository,
	achievements achievement.Repository,
	txManager shared.TxManager,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitAnswerHandler {
	log = log.With(logger.Component("submit_answer"))
	return &SubmitAnswerHandler{
		sessions:  sessions,
		questions: questions,
		pipeline:  newSubmissionPipeline(profiles, attempts, achievements, log),
		txManager: txManager,
		publisher: publisher,
		log:       log,
	}
}

// Handle grades the answer against the session's current question. Two
// concurrent submissions for the same cursor position race on the
// conditional update; the loser gets shared.ErrConcurrentModification.
func (h *SubmitAnswerHandler) Handle(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		result *SubmitAnswerResult
		events []shared.Event
	)

	err := h.txManager.InTx(ctx, func(ctx context.Context) error {
		session, err := h.sessions.GetByID(ctx, quiz.SessionID(cmd.SessionID))
		if err != nil {
			return err
		}
		// A session is only visible to its owner.
		if session.UserID.String() != cmd.UserID {
			return shared.ErrSessionNotFound
		}

		question, err := h.questions.GetByID(ctx, quiz.QuestionID(cmd.QuestionID))
		if err != nil {
			return err
		}

		answer := quiz.NormalizeLabel(cmd.Answer)
		isCorrect := question.IsCorrect(cmd.Answer)
		expectedIndex := session.CurrentIndex

		if err := session.RecordAnswer(question.ID, answer, isCorrect, time.Now().UTC()); err != nil {
			return err
		}
		if err := h.sessions.Update(ctx, session, expectedIndex); err != nil {
			return err
		}

		result = &SubmitAnswerResult{
			IsCorrect:     isCorrect,
			CorrectAnswer: question.CorrectAnswer,
		}
		if opt, ok := question.OptionByLabel(question.CorrectAnswer); ok {
			result.Explanation = opt.Explanation
		}

		if session.Status == quiz.SessionStatusCompleted {
			outcome, err := h.pipeline.record(ctx, submissionInput{
				UserID:    session.UserID,
				ExamType:  session.ExamType,
				Mode:      session.Mode,
				Answers:   session.Answers,
				TimeTaken: session.TimeTaken(),
			}, quiz.AttemptID(uuid.NewString()))
			if err != nil {
				return err
			}
			result.Completion = outcome
			events = outcome.Events
			return nil
		}

		nextID, ok := session.CurrentQuestionID()
		if !ok {
			return fmt.Errorf("submit answer: session %s has no current question", session.ID)
		}
		next, err := h.questions.GetByID(ctx, nextID)
		if err != nil {
			return err
		}
		result.NextQuestion = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Completion != nil {
		h.log.Info("session completed",
			logger.SessionID(cmd.SessionID),
			logger.UserID(cmd.UserID),
			logger.AttemptID(result.Completion.Attempt.ID.String()),
			logger.XPAmount(result.Completion.XPEarned),
		)
	}
	publishAll(h.publisher, h.log, events)

	return result, nil
}
